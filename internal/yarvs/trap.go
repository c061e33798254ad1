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

// TrapState is the subset of hart state a trap delivery reads and
// mutates: the CSR bank, the current privilege level and the program
// counter. exec.go and hart.go pass *Hart fields in through this so
// raiseException stays testable on its own.
type TrapState struct {
	CSRs *CSRegFile
	Priv *PrivilegeLevel
	PC   *DoubleWord
}

// handlerMode picks the privilege level a given exception traps into:
// Machine unless the hart is already below Machine and medeleg delegates
// this cause to Supervisor.
func handlerMode(csrs *CSRegFile, curPriv PrivilegeLevel, cause Cause) PrivilegeLevel {
	if curPriv == PrivMachine {
		return PrivMachine
	}
	if getBits(csrs.Get(CSRMEDeleg), int(cause), int(cause)) != 0 {
		return PrivSupervisor
	}
	return PrivMachine
}

// raiseException delivers a synchronous exception per spec.md §4.5:
// redirects pc to the selected handler's trap vector, latches the
// faulting pc/info/cause into the handler's *epc/*tval/*cause CSRs, and
// records the pre-trap privilege level in the handler's *status.*PP field.
func raiseException(s *TrapState, cause Cause, info DoubleWord) {
	mode := handlerMode(s.CSRs, *s.Priv, cause)
	if mode == PrivMachine {
		s.CSRs.Set(CSRMEPC, *s.PC)
		s.CSRs.Set(CSRMTVal, info)
		s.CSRs.Set(CSRMCause, setCause(cause))
		s.CSRs.SetMPP(*s.Priv)
		*s.Priv = PrivMachine
		*s.PC = s.CSRs.MTVecBase()
		return
	}

	s.CSRs.Set(CSRSEPC, *s.PC)
	s.CSRs.Set(CSRSTVal, info)
	s.CSRs.Set(CSRSCause, setCause(cause))
	s.CSRs.SetSPP(*s.Priv)
	*s.Priv = PrivSupervisor
	*s.PC = s.CSRs.STVecBase()
}
