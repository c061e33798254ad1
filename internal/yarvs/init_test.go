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

import "testing"

func TestInitializeHartMapsSegmentAndSetsEntry(t *testing.T) {
	h := NewHart()
	img := &ELFImage{
		Entry: 0x1000,
		Segments: []Segment{
			{
				Data:           []byte{0xAA, 0xBB, 0xCC, 0xDD},
				MemorySize:     0x10,
				VirtualAddress: 0x1000,
				Flags:          SegRead | SegWrite | SegExecute,
			},
		},
	}

	if err := InitializeHart(h, img, SATPSv39, 4); err != nil {
		t.Fatalf("InitializeHart() error = %v", err)
	}

	if h.PC != 0x1000 {
		t.Errorf("PC = %#x, want %#x", h.PC, 0x1000)
	}
	wantSP, err := stackTop(SATPSv39)
	if err != nil {
		t.Fatalf("stackTop() error = %v", err)
	}
	if got := h.GPRs.Get(RegSP); got != wantSP {
		t.Errorf("sp = %#x, want %#x", got, wantSP)
	}
	if h.CSRs.SATPMode() != SATPSv39 {
		t.Errorf("SATPMode() = %v, want Sv39", h.CSRs.SATPMode())
	}
	if h.CSRs.SATPPPN() != rootPageTablePPN {
		t.Errorf("SATPPPN() = %d, want %d", h.CSRs.SATPPPN(), rootPageTablePPN)
	}
	if !h.CSRs.MXR() {
		t.Errorf("MXR = false, want true")
	}
	if h.CSRs.MTVecBase() != 0 {
		t.Errorf("mtvec.base = %#x, want 0", h.CSRs.MTVecBase())
	}

	got, f := Load[Byte](h.Mem, 0x1000, PrivUser)
	if f != nil {
		t.Fatalf("Load(0x1000) fault = %+v", f)
	}
	if got != 0xAA {
		t.Errorf("Load(0x1000) = %#x, want 0xaa", got)
	}

	for i, want := range defaultExceptionHandler {
		if got := LoadPhys[Word](h.Phys, DoubleWord(i)*4); got != want {
			t.Errorf("handler word %d = %#x, want %#x", i, got, want)
		}
	}
}

func TestInitializeHartMapsStackPagesReadWrite(t *testing.T) {
	h := NewHart()
	img := &ELFImage{Entry: 0x1000}
	if err := InitializeHart(h, img, SATPSv48, 4); err != nil {
		t.Fatalf("InitializeHart() error = %v", err)
	}

	top, _ := stackTop(SATPSv48)
	stackPage := maskBits(top, 63, PageBits)

	if f := Store[DoubleWord](h.Mem, stackPage, 0x42, PrivUser); f != nil {
		t.Fatalf("Store() to stack page fault = %+v", f)
	}
	got, f := Load[DoubleWord](h.Mem, stackPage, PrivUser)
	if f != nil {
		t.Fatalf("Load() from stack page fault = %+v", f)
	}
	if got != 0x42 {
		t.Errorf("stack page round trip = %#x, want 0x42", got)
	}

	// A page well below the stack region and outside any segment should
	// remain unmapped.
	if _, f := Load[Byte](h.Mem, stackPage-0x10000, PrivUser); f == nil {
		t.Errorf("Load() from an unmapped page succeeded, want a page fault")
	}
}

func TestInitializeHartSegmentSpanningMultiplePages(t *testing.T) {
	h := NewHart()
	data := make([]byte, PageSize+0x20)
	for i := range data {
		data[i] = byte(i)
	}
	img := &ELFImage{
		Entry: 0x2000,
		Segments: []Segment{
			{Data: data, MemorySize: DoubleWord(len(data)), VirtualAddress: 0x2000, Flags: SegRead | SegWrite},
		},
	}
	if err := InitializeHart(h, img, SATPSv57, 1); err != nil {
		t.Fatalf("InitializeHart() error = %v", err)
	}

	for _, off := range []DoubleWord{0, PageSize - 1, PageSize, PageSize + 0x1f} {
		got, f := Load[Byte](h.Mem, 0x2000+off, PrivUser)
		if f != nil {
			t.Fatalf("Load(0x2000+%#x) fault = %+v", off, f)
		}
		if want := Byte(data[off]); got != want {
			t.Errorf("Load(0x2000+%#x) = %#x, want %#x", off, got, want)
		}
	}
}

func TestInitializeHartUnsupportedModeIsHostError(t *testing.T) {
	h := NewHart()
	img := &ELFImage{Entry: 0}
	err := InitializeHart(h, img, SATPBare, 4)
	if err == nil {
		t.Fatalf("InitializeHart() with Bare mode succeeded, want an error")
	}
	if _, ok := err.(*HostError); !ok {
		t.Errorf("error type = %T, want *HostError", err)
	}
}
