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

// AccessKind identifies the kind of memory access being translated, since
// the page-table permission check and the page-fault cause both depend
// on it.
type AccessKind byte

const (
	AccessRead AccessKind = iota
	AccessWrite
	AccessExecute
)

// Fault describes an architectural exception raised while servicing a
// memory access. Info carries the value raise_exception needs for
// stval/mtval: the faulting virtual address for page faults.
type Fault struct {
	Cause Cause
	Info  DoubleWord
}

func pageFaultCause(kind AccessKind) Cause {
	switch kind {
	case AccessExecute:
		return CauseInstrPageFault
	case AccessWrite:
		return CauseStoreAMOPageFault
	default:
		return CauseLoadPageFault
	}
}

// PagedMem layers Sv39/Sv48/Sv57 translation and access-permission
// enforcement over a flat PhysMem, driven by the satp/mstatus CSRs.
type PagedMem struct {
	Phys *PhysMem
	CSRs *CSRegFile
}

// NewPagedMem builds a translation layer over phys, sharing csrs with the
// hart's CSR file so satp/mstatus changes take effect immediately.
func NewPagedMem(phys *PhysMem, csrs *CSRegFile) *PagedMem {
	return &PagedMem{Phys: phys, CSRs: csrs}
}

// translate resolves va to a physical address for an access of the given
// kind made while the hart is at curPriv, per the walk in spec.md §4.3.
func (m *PagedMem) translate(va DoubleWord, kind AccessKind, curPriv PrivilegeLevel) (DoubleWord, *Fault) {
	effPriv := m.CSRs.EffectivePrivilege(curPriv)
	if m.CSRs.SATPMode() == SATPBare || effPriv == PrivMachine {
		return va, nil
	}

	mode := m.CSRs.SATPMode()
	vaBits := mode.VABits()
	if !IsSignExtended(va, vaBits) {
		return 0, &Fault{Cause: pageFaultCause(kind), Info: va}
	}

	i := mode.PTLevels() - 1
	a := m.CSRs.SATPPPN() * PageSize

	for {
		pteAddr := a + VPN(va, i)*8
		pte := PTE(LoadPhys[DoubleWord](m.Phys, pteAddr))

		if !pte.Valid() || pte.UsesReservedBits() || pte.IsMisconfigured() {
			return 0, &Fault{Cause: pageFaultCause(kind), Info: va}
		}

		if pte.IsPointer() {
			if i == 0 {
				return 0, &Fault{Cause: pageFaultCause(kind), Info: va}
			}
			a = pte.PPN() * PageSize
			i--
			continue
		}

		// Leaf PTE: permission checks.
		switch kind {
		case AccessRead:
			if m.CSRs.MXR() {
				if !pte.Read() && !pte.Exec() {
					return 0, &Fault{Cause: pageFaultCause(kind), Info: va}
				}
			} else if !pte.Read() {
				return 0, &Fault{Cause: pageFaultCause(kind), Info: va}
			}
		case AccessWrite:
			if !pte.Write() {
				return 0, &Fault{Cause: pageFaultCause(kind), Info: va}
			}
		case AccessExecute:
			if !pte.Exec() {
				return 0, &Fault{Cause: pageFaultCause(kind), Info: va}
			}
		}

		if effPriv == PrivSupervisor && pte.User() && !m.CSRs.SUM() {
			return 0, &Fault{Cause: pageFaultCause(kind), Info: va}
		}

		if i > 0 && getBits(pte.PPN(), i*9-1, 0) != 0 {
			return 0, &Fault{Cause: pageFaultCause(kind), Info: va}
		}

		needA := !pte.Accessed()
		needD := kind == AccessWrite && (!pte.Accessed() || !pte.Dirty())
		if needA || needD {
			reloaded := LoadPhys[DoubleWord](m.Phys, pteAddr)
			if reloaded != DoubleWord(pte) {
				continue // restart at step 1, same (a, i)
			}
			updated := pte.WithAccessed()
			if kind == AccessWrite {
				updated = updated.WithDirty()
			}
			StorePhys[DoubleWord](m.Phys, pteAddr, DoubleWord(updated))
			pte = updated
		}

		return composePhysAddr(pte, va, i), nil
	}
}

// composePhysAddr builds the final physical address from a leaf PTE found
// at level i: the PTE's PPN for the bits above the superpage's low i*9
// bits, and the virtual address's own VPN fields below that, followed by
// the page offset.
func composePhysAddr(pte PTE, va DoubleWord, i int) DoubleWord {
	ppn := pte.PPN()
	if i > 0 {
		var low DoubleWord
		for lvl := i - 1; lvl >= 0; lvl-- {
			low = low<<vpnWidth | VPN(va, lvl)
		}
		ppn = setBits(ppn, i*vpnWidth-1, 0, low)
	}
	return ppn*PageSize + PageOffset(va)
}

// Load translates va for a read of width sizeof(T) and returns the value
// stored there, or the fault raised while translating.
func Load[T riscvScalar](m *PagedMem, va DoubleWord, priv PrivilegeLevel) (T, *Fault) {
	pa, f := m.translate(va, AccessRead, priv)
	if f != nil {
		var zero T
		return zero, f
	}
	return LoadPhys[T](m.Phys, pa), nil
}

// Store translates va for a write of width sizeof(T) and stores value
// there, or returns the fault raised while translating.
func Store[T riscvScalar](m *PagedMem, va DoubleWord, value T, priv PrivilegeLevel) *Fault {
	pa, f := m.translate(va, AccessWrite, priv)
	if f != nil {
		return f
	}
	StorePhys[T](m.Phys, pa, value)
	return nil
}

// Fetch translates va for instruction fetch and returns the raw 32-bit
// instruction word there.
func (m *PagedMem) Fetch(va DoubleWord, priv PrivilegeLevel) (RawInstruction, *Fault) {
	pa, f := m.translate(va, AccessExecute, priv)
	if f != nil {
		return 0, f
	}
	return LoadPhys[Word](m.Phys, pa), nil
}

// HostPtr translates va for a read and returns a host-visible byte slice
// of the n physical bytes starting at the translated address, without a
// copy. Only va is translated, so the slice matches [va, va+n) only when
// that range stays inside one page. Callers must not hold the slice
// across further guest execution.
func (m *PagedMem) HostPtr(va DoubleWord, n int, priv PrivilegeLevel) ([]byte, *Fault) {
	pa, f := m.translate(va, AccessRead, priv)
	if f != nil {
		return nil, f
	}
	return m.Phys.LoadBytes(pa, n), nil
}

// ReadBytes copies n bytes starting at va into a scratch buffer,
// translating page by page through HostPtr, since adjacent virtual pages
// need not be physically contiguous. ECALL(write) reads its buffer this
// way.
func (m *PagedMem) ReadBytes(va DoubleWord, n int, priv PrivilegeLevel) ([]byte, *Fault) {
	out := make([]byte, 0, n)
	for len(out) < n {
		chunk := PageSize - int(PageOffset(va+DoubleWord(len(out))))
		if remaining := n - len(out); chunk > remaining {
			chunk = remaining
		}
		b, f := m.HostPtr(va+DoubleWord(len(out)), chunk, priv)
		if f != nil {
			return nil, f
		}
		out = append(out, b...)
	}
	return out, nil
}
