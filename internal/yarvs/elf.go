// Copyright 2019 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package yarvs

import (
	"debug/elf"
	"fmt"
)

// SegmentFlags mirrors the RWX permission bits a PT_LOAD segment carries,
// independent of debug/elf's representation, so the rest of the package
// never imports debug/elf directly.
type SegmentFlags byte

const (
	SegRead    SegmentFlags = 1 << 0
	SegWrite   SegmentFlags = 1 << 1
	SegExecute SegmentFlags = 1 << 2
)

// Segment is a single loadable ELF segment, trimmed to what hart
// initialization needs to stage it into guest memory.
type Segment struct {
	Data            []byte
	MemorySize      DoubleWord
	VirtualAddress  DoubleWord
	Flags           SegmentFlags
}

// ELFImage is the loadable-segment view of a parsed executable, adapting
// the standard library's debug/elf the way spec.md §1 treats ELF parsing:
// an external collaborator, not part of the specified hart core.
type ELFImage struct {
	Entry    DoubleWord
	Segments []Segment
}

// LoadELF opens and validates path as a 64-bit RISC-V executable and
// returns its loadable segments. Any failure here is a host-level error
// (spec.md §6: "Invalid class/type/machine yields a startup-time error,
// not an architectural exception"), never an architectural one.
func LoadELF(path string) (*ELFImage, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, hostErrorf("could not open ELF file %q: %v", path, err)
	}
	defer f.Close()

	if f.Class != elf.ELFCLASS64 {
		return nil, hostErrorf("only 64-bit ELF files are supported, got %v", f.Class)
	}
	if f.Type != elf.ET_EXEC {
		return nil, hostErrorf("ELF is of type %v; executable (ET_EXEC) expected", f.Type)
	}
	if f.Machine != elf.EM_RISCV {
		return nil, hostErrorf("only RISC-V executables are supported, got %v", f.Machine)
	}

	img := &ELFImage{Entry: f.Entry}
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		data := make([]byte, prog.Filesz)
		if _, err := prog.ReadAt(data, 0); err != nil {
			return nil, hostErrorf("could not read ELF segment at %#x: %v", prog.Vaddr, err)
		}

		var flags SegmentFlags
		if prog.Flags&elf.PF_R != 0 {
			flags |= SegRead
		}
		if prog.Flags&elf.PF_W != 0 {
			flags |= SegWrite
		}
		if prog.Flags&elf.PF_X != 0 {
			flags |= SegExecute
		}

		img.Segments = append(img.Segments, Segment{
			Data:           data,
			MemorySize:     prog.Memsz,
			VirtualAddress: prog.Vaddr,
			Flags:          flags,
		})
	}
	return img, nil
}

// LoadablePages enumerates, for each loadable segment, every page from
// the one holding VirtualAddress through the one holding
// VirtualAddress+MemorySize (inclusive), mapped to the union of RWX flags
// every segment enumerating that page requests. Grounded on
// original_source/src/elf_loader.cpp's get_loadable_pages.
func (img *ELFImage) LoadablePages() map[DoubleWord]SegmentFlags {
	pages := map[DoubleWord]SegmentFlags{}
	for _, seg := range img.Segments {
		first := maskBits(seg.VirtualAddress, 63, PageBits)
		last := maskBits(seg.VirtualAddress+seg.MemorySize, 63, PageBits)
		for page := first; page <= last; page += PageSize {
			pages[page] |= seg.Flags
		}
	}
	return pages
}

// String renders a SegmentFlags triple the way a trace log would.
func (f SegmentFlags) String() string {
	r, w, x := '-', '-', '-'
	if f&SegRead != 0 {
		r = 'r'
	}
	if f&SegWrite != 0 {
		w = 'w'
	}
	if f&SegExecute != 0 {
		x = 'x'
	}
	return fmt.Sprintf("%c%c%c", r, w, x)
}
