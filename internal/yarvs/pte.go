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

// PTE is a single Sv39/Sv48/Sv57 page table entry: V[0] R[1] W[2] X[3]
// U[4] G[5] A[6] D[7] RSW[9:8] PPN[53:10], with [63:54] reserved and
// required to be zero.
type PTE DoubleWord

const (
	pteBitV = 0
	pteBitR = 1
	pteBitW = 2
	pteBitX = 3
	pteBitU = 4
	pteBitG = 5
	pteBitA = 6
	pteBitD = 7

	ptePPNFrom = 10
	ptePPNTo   = 53
	pteRsvFrom = 54
	pteRsvTo   = 63
)

func (p PTE) Valid() bool { return getBits(DoubleWord(p), pteBitV, pteBitV) != 0 }
func (p PTE) Read() bool  { return getBits(DoubleWord(p), pteBitR, pteBitR) != 0 }
func (p PTE) Write() bool { return getBits(DoubleWord(p), pteBitW, pteBitW) != 0 }
func (p PTE) Exec() bool  { return getBits(DoubleWord(p), pteBitX, pteBitX) != 0 }
func (p PTE) User() bool  { return getBits(DoubleWord(p), pteBitU, pteBitU) != 0 }
func (p PTE) Global() bool { return getBits(DoubleWord(p), pteBitG, pteBitG) != 0 }
func (p PTE) Accessed() bool { return getBits(DoubleWord(p), pteBitA, pteBitA) != 0 }
func (p PTE) Dirty() bool  { return getBits(DoubleWord(p), pteBitD, pteBitD) != 0 }
func (p PTE) PPN() DoubleWord { return getBits(DoubleWord(p), ptePPNTo, ptePPNFrom) }

// WithAccessed returns a copy of p with the A bit set.
func (p PTE) WithAccessed() PTE { return PTE(setBit(DoubleWord(p), pteBitA, true)) }

// WithDirty returns a copy of p with the D bit set.
func (p PTE) WithDirty() PTE { return PTE(setBit(DoubleWord(p), pteBitD, true)) }

// IsLeaf reports whether p is a leaf PTE (terminates translation): at
// least one of R/W/X is set. A pointer PTE (R=W=X=0) refers to the next
// page table level.
func (p PTE) IsLeaf() bool { return p.Read() || p.Write() || p.Exec() }

// IsPointer reports whether p refers to the next-level page table.
func (p PTE) IsPointer() bool { return p.Valid() && !p.IsLeaf() }

// UsesReservedBits reports whether any bit in [63:54] is set, which makes
// the PTE invalid regardless of V per the privileged spec.
func (p PTE) UsesReservedBits() bool {
	return getBits(DoubleWord(p), pteRsvTo, pteRsvFrom) != 0
}

// IsMisconfigured reports whether a leaf PTE violates the W-implies-R
// rule (W=1, R=0 is reserved).
func (p PTE) IsMisconfigured() bool { return p.Write() && !p.Read() }

// MakePTE builds a leaf or pointer PTE from its fields, used by hart
// initialization to stage identity/ELF mappings.
func MakePTE(ppn DoubleWord, r, w, x, u, g bool) PTE {
	v := setBits(0, ptePPNTo, ptePPNFrom, ppn)
	v = setBit(v, pteBitV, true)
	v = setBit(v, pteBitR, r)
	v = setBit(v, pteBitW, w)
	v = setBit(v, pteBitX, x)
	v = setBit(v, pteBitU, u)
	v = setBit(v, pteBitG, g)
	if r || w || x {
		// Leaf PTEs for identity-mapped boot memory are marked
		// accessed/dirty up front so translation never needs to
		// fault on A/D maintenance for pages the loader itself wrote.
		v = setBit(v, pteBitA, true)
		v = setBit(v, pteBitD, true)
	}
	return PTE(v)
}
