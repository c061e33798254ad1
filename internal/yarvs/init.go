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

import "sort"

// rootPageTablePPN is the physical page number of the root page table,
// pinned by spec.md §4.8 step 1.
const rootPageTablePPN = 1

// defaultExceptionHandler is the four-instruction machine-code sequence
// staged at physical address 0 by InitializeHart, reproduced byte-for-byte
// from original_source/src/main.cpp's kDefaultExceptionHandler:
//
//	csrrw x10, mcause, x0
//	addi  x10, x10, 100
//	addi  x17, x0, 93
//	ecall
var defaultExceptionHandler = [4]RawInstruction{
	0x34201573,
	0x06450513,
	0x05d00893,
	0x00000073,
}

// stackTop returns the mode-specific address one page above the top of
// the stack region, per spec.md §4.8 step 2.
func stackTop(mode SATPMode) (DoubleWord, error) {
	switch mode {
	case SATPSv39:
		return 0x3f_ffff_4000, nil
	case SATPSv48:
		return 0x7fff_ffff_4000, nil
	case SATPSv57:
		return 0xffff_ffff_ffff_4000, nil
	default:
		return 0, hostErrorf("translation mode %v is not supported", mode)
	}
}

// InitializeHart stages img into h's physical memory and page tables,
// builds the mappings the ELF and stack segments need, installs the
// default exception handler, and positions pc/sp for the run loop to
// start at User privilege, exactly as spec.md §4.8 specifies.
func InitializeHart(h *Hart, img *ELFImage, mode SATPMode, stackPages int) error {
	top, err := stackTop(mode)
	if err != nil {
		return err
	}
	if stackPages < 1 {
		return hostErrorf("n-stack-pages must be positive, got %d", stackPages)
	}

	h.CSRs.SetSATP(mode, 0, rootPageTablePPN)
	h.CSRs.SetMTVecBase(0)
	h.CSRs.SetMXR(true)

	pages := img.LoadablePages()
	stackLastPage := maskBits(top, 63, PageBits)
	for i := 0; i <= stackPages; i++ {
		pages[stackLastPage-DoubleWord(i)*PageSize] |= SegRead | SegWrite
	}

	va := make([]DoubleWord, 0, len(pages))
	for page := range pages {
		va = append(va, page)
	}
	sort.Slice(va, func(i, j int) bool { return va[i] < va[j] })

	ptLevels := mode.PTLevels()
	tablePPN := DoubleWord(rootPageTablePPN + 1)
	dataPPN := DoubleWord(PhysMemSize) / (4 * PageSize)

	vaToPA := make(map[DoubleWord]DoubleWord, len(va))
	for _, page := range va {
		flags := pages[page]
		a := DoubleWord(rootPageTablePPN) * PageSize

		for i := ptLevels - 1; i > 0; i-- {
			pa := a + VPN(page, i)*8
			pte := PTE(LoadPhys[DoubleWord](h.Phys, pa))
			if pte.Valid() {
				a = pte.PPN() * PageSize
				continue
			}
			ptr := MakePTE(tablePPN, false, false, false, true, false)
			StorePhys[DoubleWord](h.Phys, pa, DoubleWord(ptr))
			a = tablePPN * PageSize
			tablePPN++
		}

		leaf := MakePTE(dataPPN, flags&SegRead != 0, flags&SegWrite != 0, flags&SegExecute != 0, true, false)
		pa := a + VPN(page, 0)*8
		StorePhys[DoubleWord](h.Phys, pa, DoubleWord(leaf))

		vaToPA[page] = dataPPN * PageSize
		dataPPN++
	}

	// Pages sorted by virtual address get consecutive data_ppn values, so
	// a segment's file_size bytes land in physically contiguous memory
	// even when it spans more than one page -- a single copy suffices.
	for _, seg := range img.Segments {
		vPage := maskBits(seg.VirtualAddress, 63, PageBits)
		pa := vaToPA[vPage] | maskBits(seg.VirtualAddress, PageBits-1, 0)
		h.Phys.StoreBytes(pa, seg.Data)
	}

	for i, word := range defaultExceptionHandler {
		StorePhys[Word](h.Phys, DoubleWord(i)*4, word)
	}
	h.CSRs.SetMTVecBase(0)

	h.PC = img.Entry
	h.GPRs.Set(RegSP, top)
	return nil
}
