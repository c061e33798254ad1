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

// Package yarvs implements a single RV64I hart: decode, execute, paged
// memory translation and the privileged/trap subset needed to run
// user-and-supervisor-mode ELF binaries.
package yarvs

// Scalar aliases matching the RISC-V manual's naming (spec.md §3).
type (
	Byte       = uint8
	HalfWord   = uint16
	Word       = uint32
	DoubleWord = uint64

	RawInstruction = uint32
)

// XLEN is the register width of this hart.
const XLEN = 64

// riscvScalar constrains generic memory access helpers to the four
// natural RISC-V load/store widths.
type riscvScalar interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// PageSize is the size, in bytes, of a leaf translation unit.
const (
	PageBits = 12
	PageSize = 1 << PageBits
)
