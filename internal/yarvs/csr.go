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

// PrivilegeLevel is one of the three architectural privilege levels this
// core models (there is no hypervisor level).
type PrivilegeLevel byte

const (
	PrivUser       PrivilegeLevel = 0
	PrivSupervisor PrivilegeLevel = 1
	PrivMachine    PrivilegeLevel = 3
)

func (p PrivilegeLevel) String() string {
	switch p {
	case PrivUser:
		return "U"
	case PrivSupervisor:
		return "S"
	case PrivMachine:
		return "M"
	default:
		return "?"
	}
}

// CSR numbers named by spec.md §3.
const (
	CSRSStatus  = 0x100
	CSRSTVec    = 0x105
	CSRSScratch = 0x140
	CSRSEPC     = 0x141
	CSRSCause   = 0x142
	CSRSTVal    = 0x143
	CSRSATP     = 0x180

	CSRMStatus  = 0x300
	CSRMISA     = 0x301
	CSRMEDeleg  = 0x302
	CSRMTVec    = 0x305
	CSRMScratch = 0x340
	CSRMEPC     = 0x341
	CSRMCause   = 0x342
	CSRMTVal    = 0x343
)

// NumCSRs is the size of the dense CSR bank (12-bit CSR address space).
const NumCSRs = 4096

// sstatusMaskBits lists the bit indices spec.md §3 names as kSStatusMask:
// {1, 5, 6, 8, 9..10, 13..14, 15..16, 18, 19, 32..33, 63}.
var sstatusMaskBits = []int{1, 5, 6, 8, 9, 10, 13, 14, 15, 16, 18, 19, 32, 33, 63}

// sstatusMask is the subset of mstatus bits sstatus exposes as a view.
var sstatusMask = func() DoubleWord {
	var m DoubleWord
	for _, b := range sstatusMaskBits {
		m = setBit(m, b, true)
	}
	return m
}()

// mstatus / sstatus bit layout, pinned down from original_source (see
// SPEC_FULL.md §3) and matching the RISC-V privileged spec.
const (
	bitSIE  = 1
	bitMIE  = 3
	bitSPIE = 5
	bitMPIE = 7
	bitSPP  = 8
	fromMPP = 11
	toMPP   = 12
	bitMPRV = 17
	bitSUM  = 18
	bitMXR  = 19
	fromUXL = 32
	toUXL   = 33
	bitSD   = 63
)

// XTVecMode is the two-bit trap-vector mode field. Only Direct is
// meaningful here: interrupts (which Vectored mode redirects) are out of
// scope for this core.
type XTVecMode byte

const (
	XTVecDirect   XTVecMode = 0
	XTVecVectored XTVecMode = 1
)

// CSRegFile is the dense 4096-entry control-and-status register bank.
type CSRegFile struct {
	regs [NumCSRs]DoubleWord
}

// Get returns the raw contents of CSR number i.
func (c *CSRegFile) Get(i uint64) DoubleWord { return c.regs[i] }

// Set stores value verbatim into CSR number i, without side effects. Used
// for CSRs that don't alias other state; sstatus/mstatus go through their
// dedicated setters below to preserve the aliasing invariant.
func (c *CSRegFile) Set(i uint64, value DoubleWord) { c.regs[i] = value }

// GetLowestPrivilege returns the minimum privilege level required to
// access CSR number i, encoded in bits [9:8] of the CSR address.
func GetLowestPrivilege(csr uint64) PrivilegeLevel {
	return PrivilegeLevel(getBits(csr, 9, 8))
}

// IsReadOnly reports whether CSR number csr is read-only, encoded as
// bits [11:10] == 0b11.
func IsReadOnly(csr uint64) bool { return getBits(csr, 11, 10) == 0b11 }

// IsDebugCSR reports whether csr falls in the debug-mode-only range.
func IsDebugCSR(csr uint64) bool { return csr >= 0x7B0 && csr <= 0x7BF }

// SStatus returns the current value of sstatus (a masked view of mstatus).
func (c *CSRegFile) SStatus() DoubleWord { return c.regs[CSRSStatus] }

// SetSStatus writes v's masked bits into both sstatus and the
// corresponding bits of mstatus, leaving the rest of mstatus untouched.
func (c *CSRegFile) SetSStatus(v DoubleWord) {
	c.regs[CSRSStatus] = v & sstatusMask
	c.regs[CSRMStatus] = (c.regs[CSRMStatus] &^ sstatusMask) | (v & sstatusMask)
}

// MStatus returns the current value of mstatus.
func (c *CSRegFile) MStatus() DoubleWord { return c.regs[CSRMStatus] }

// SetMStatus writes v to mstatus and refreshes sstatus's masked view of it.
func (c *CSRegFile) SetMStatus(v DoubleWord) {
	c.regs[CSRMStatus] = v
	c.regs[CSRSStatus] = v & sstatusMask
}

// mstatus/sstatus field accessors, implemented over the raw mstatus word
// (a single underlying word with an explicit mask) so the sstatus alias
// invariant can never drift.

func (c *CSRegFile) SIE() bool  { return getBits(c.MStatus(), bitSIE, bitSIE) != 0 }
func (c *CSRegFile) MIE() bool  { return getBits(c.MStatus(), bitMIE, bitMIE) != 0 }
func (c *CSRegFile) SPIE() bool { return getBits(c.MStatus(), bitSPIE, bitSPIE) != 0 }
func (c *CSRegFile) MPIE() bool { return getBits(c.MStatus(), bitMPIE, bitMPIE) != 0 }
func (c *CSRegFile) SPP() PrivilegeLevel {
	if getBits(c.MStatus(), bitSPP, bitSPP) != 0 {
		return PrivSupervisor
	}
	return PrivUser
}
func (c *CSRegFile) MPP() PrivilegeLevel { return PrivilegeLevel(getBits(c.MStatus(), toMPP, fromMPP)) }
func (c *CSRegFile) MPRV() bool          { return getBits(c.MStatus(), bitMPRV, bitMPRV) != 0 }
func (c *CSRegFile) SUM() bool           { return getBits(c.MStatus(), bitSUM, bitSUM) != 0 }
func (c *CSRegFile) MXR() bool           { return getBits(c.MStatus(), bitMXR, bitMXR) != 0 }

func (c *CSRegFile) SetSIE(b bool)  { c.SetMStatus(setBit(c.MStatus(), bitSIE, b)) }
func (c *CSRegFile) SetMIE(b bool)  { c.SetMStatus(setBit(c.MStatus(), bitMIE, b)) }
func (c *CSRegFile) SetSPIE(b bool) { c.SetMStatus(setBit(c.MStatus(), bitSPIE, b)) }
func (c *CSRegFile) SetMPIE(b bool) { c.SetMStatus(setBit(c.MStatus(), bitMPIE, b)) }
func (c *CSRegFile) SetSPP(p PrivilegeLevel) {
	c.SetMStatus(setBit(c.MStatus(), bitSPP, p != PrivUser))
}
func (c *CSRegFile) SetMPP(p PrivilegeLevel) {
	c.SetMStatus(setBits(c.MStatus(), toMPP, fromMPP, DoubleWord(p)))
}
func (c *CSRegFile) SetMPRV(b bool) { c.SetMStatus(setBit(c.MStatus(), bitMPRV, b)) }
func (c *CSRegFile) SetSUM(b bool)  { c.SetMStatus(setBit(c.MStatus(), bitSUM, b)) }
func (c *CSRegFile) SetMXR(b bool)  { c.SetMStatus(setBit(c.MStatus(), bitMXR, b)) }

// SATP fields (satp CSR: mode[63:60], asid[59:44], ppn[43:0]).
type SATPMode byte

const (
	SATPBare SATPMode = 0
	SATPSv39 SATPMode = 8
	SATPSv48 SATPMode = 9
	SATPSv57 SATPMode = 10
)

// PTLevels returns the number of page-table levels for a paged SATP mode.
func (m SATPMode) PTLevels() int {
	switch m {
	case SATPSv39:
		return 3
	case SATPSv48:
		return 4
	case SATPSv57:
		return 5
	default:
		return 0
	}
}

// VABits returns the number of significant virtual-address bits SvN
// requires sign-extension checks against.
func (m SATPMode) VABits() int {
	switch m {
	case SATPSv39:
		return 39
	case SATPSv48:
		return 48
	case SATPSv57:
		return 57
	default:
		return 0
	}
}

func (c *CSRegFile) SATPMode() SATPMode { return SATPMode(getBits(c.Get(CSRSATP), 63, 60)) }
func (c *CSRegFile) SATPPPN() DoubleWord {
	return maskBits(c.Get(CSRSATP), 43, 0)
}

// SetSATP sets satp's mode/asid/ppn fields directly (used only during
// hart initialization; the emulated ISA never lets a guest write satp
// bit-by-bit, only via a plain CSR write).
func (c *CSRegFile) SetSATP(mode SATPMode, asid HalfWord, ppn DoubleWord) {
	v := setBits(0, 63, 60, DoubleWord(mode))
	v = setBits(v, 59, 44, DoubleWord(asid))
	v = setBits(v, 43, 0, ppn)
	c.Set(CSRSATP, v)
}

// IsSATPActive reports whether address translation applies to a memory
// access made from currentLevel: spec.md §4.3's "effective privilege"
// computation plus the satp.mode != Bare / effective-priv != Machine gate.
func (c *CSRegFile) IsSATPActive(currentLevel PrivilegeLevel) bool {
	if c.SATPMode() == SATPBare {
		return false
	}
	return c.EffectivePrivilege(currentLevel) != PrivMachine
}

// EffectivePrivilege is MPP when mstatus.MPRV is set, else currentLevel.
func (c *CSRegFile) EffectivePrivilege(currentLevel PrivilegeLevel) PrivilegeLevel {
	if c.MPRV() {
		return c.MPP()
	}
	return currentLevel
}

// XTVec accessors for mtvec/stvec (base in [63:2], mode in [1:0]).
func xtvecBase(v DoubleWord) DoubleWord { return maskBits(v, 63, 2) }
func xtvecMode(v DoubleWord) XTVecMode  { return XTVecMode(getBits(v, 1, 0)) }

func (c *CSRegFile) MTVecBase() DoubleWord { return xtvecBase(c.Get(CSRMTVec)) }
func (c *CSRegFile) STVecBase() DoubleWord { return xtvecBase(c.Get(CSRSTVec)) }
func (c *CSRegFile) MTVecMode() XTVecMode  { return xtvecMode(c.Get(CSRMTVec)) }
func (c *CSRegFile) STVecMode() XTVecMode  { return xtvecMode(c.Get(CSRSTVec)) }

// SetMTVecBase sets mtvec's base, always in Direct mode (Vectored mode
// only matters for interrupts, which this core does not model).
func (c *CSRegFile) SetMTVecBase(base DoubleWord) { c.Set(CSRMTVec, xtvecBase(base)) }
func (c *CSRegFile) SetSTVecBase(base DoubleWord) { c.Set(CSRSTVec, xtvecBase(base)) }

// Cause encodes scause/mcause: bit 63 is the interrupt flag, bits [62:0]
// are the cause code. Exceptions always clear bit 63 (spec.md §9's
// resolved ambiguity).
type Cause = DoubleWord

// Exception cause codes (spec.md §7).
const (
	CauseInstrAddrMisaligned Cause = 0
	CauseInstrAccessFault    Cause = 1
	CauseIllegalInstruction  Cause = 2
	CauseBreakpoint          Cause = 3
	CauseLoadAddrMisaligned  Cause = 4
	CauseLoadAccessFault     Cause = 5
	CauseStoreAMOAddrMisal   Cause = 6
	CauseStoreAMOAccessFault Cause = 7
	CauseEnvCallFromUMode    Cause = 8
	CauseEnvCallFromSMode    Cause = 9
	CauseEnvCallFromMMode    Cause = 11
	CauseInstrPageFault      Cause = 12
	CauseLoadPageFault       Cause = 13
	CauseStoreAMOPageFault   Cause = 15
)

// ExceptionCauseName renders a cause code for tracing/error messages.
func ExceptionCauseName(cause Cause) string {
	switch cause {
	case CauseInstrAddrMisaligned:
		return "instruction address misaligned"
	case CauseInstrAccessFault:
		return "instruction access fault"
	case CauseIllegalInstruction:
		return "illegal instruction"
	case CauseBreakpoint:
		return "breakpoint"
	case CauseLoadAddrMisaligned:
		return "load address misaligned"
	case CauseLoadAccessFault:
		return "load access fault"
	case CauseStoreAMOAddrMisal:
		return "store/AMO address misaligned"
	case CauseStoreAMOAccessFault:
		return "store/AMO access fault"
	case CauseEnvCallFromUMode:
		return "environment call from U-mode"
	case CauseEnvCallFromSMode:
		return "environment call from S-mode"
	case CauseEnvCallFromMMode:
		return "environment call from M-mode"
	case CauseInstrPageFault:
		return "instruction page fault"
	case CauseLoadPageFault:
		return "load page fault"
	case CauseStoreAMOPageFault:
		return "store/AMO page fault"
	default:
		return "unknown cause"
	}
}

// setCause writes an exception cause (bit 63 = 0) into scause or mcause.
func setCause(cause Cause) DoubleWord { return setBit(cause, 63, false) }

// MISA extension bits used by this core (I, S, U) plus MXL=64.
func defaultMISA() DoubleWord {
	const (
		extI = 8
		extS = 18
		extU = 20
	)
	v := DoubleWord(0)
	v = setBit(v, extI, true)
	v = setBit(v, extS, true)
	v = setBit(v, extU, true)
	v = setBits(v, 63, 62, 2) // MXL = 64-bit
	return v
}
