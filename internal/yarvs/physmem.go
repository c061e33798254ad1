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

import "encoding/binary"

// PhysMemSize is the size of the flat physical address space this core
// exposes: 4GiB, addressable by the low 32 bits of a physical address.
const PhysMemSize = 1 << 32

// PhysMem is a flat byte array standing in for physical RAM. All
// load/store helpers are little-endian, matching RISC-V's mandated
// memory byte order.
type PhysMem struct {
	bytes []byte
}

// NewPhysMem allocates a zero-filled physical address space.
func NewPhysMem() *PhysMem {
	return &PhysMem{bytes: make([]byte, PhysMemSize)}
}

// LoadPhys reads a little-endian scalar of T's width from physical
// address pa. Panics (host-level array bound failure) if the access runs
// past the end of the address space; callers are expected to have
// validated pa+sizeof(T) against PhysMemSize beforehand.
func LoadPhys[T riscvScalar](m *PhysMem, pa DoubleWord) T {
	var zero T
	switch any(zero).(type) {
	case Byte:
		return T(m.bytes[pa])
	case HalfWord:
		return T(binary.LittleEndian.Uint16(m.bytes[pa : pa+2]))
	case Word:
		return T(binary.LittleEndian.Uint32(m.bytes[pa : pa+4]))
	case DoubleWord:
		return T(binary.LittleEndian.Uint64(m.bytes[pa : pa+8]))
	default:
		panic("yarvs: unsupported scalar type in physmem Load")
	}
}

// StorePhys writes value's bytes, little-endian, to physical address pa.
func StorePhys[T riscvScalar](m *PhysMem, pa DoubleWord, value T) {
	switch v := any(value).(type) {
	case Byte:
		m.bytes[pa] = byte(v)
	case HalfWord:
		binary.LittleEndian.PutUint16(m.bytes[pa:pa+2], uint16(v))
	case Word:
		binary.LittleEndian.PutUint32(m.bytes[pa:pa+4], uint32(v))
	case DoubleWord:
		binary.LittleEndian.PutUint64(m.bytes[pa:pa+8], uint64(v))
	default:
		panic("yarvs: unsupported scalar type in physmem Store")
	}
}

// StoreBytes copies data verbatim starting at physical address pa, used
// to stage ELF segment contents during hart initialization.
func (m *PhysMem) StoreBytes(pa DoubleWord, data []byte) {
	copy(m.bytes[pa:], data)
}

// LoadBytes returns a slice of n bytes starting at physical address pa,
// sharing the backing array (no copy). PagedMem.HostPtr uses it.
func (m *PhysMem) LoadBytes(pa DoubleWord, n int) []byte {
	return m.bytes[pa : pa+DoubleWord(n)]
}

// HostPtr exposes a direct slice into the backing array from pa to the
// end of physical memory; later stores are visible through it.
func (m *PhysMem) HostPtr(pa DoubleWord) []byte {
	return m.bytes[pa:]
}
