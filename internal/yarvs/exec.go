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

// Syscall numbers this core's ECALL dispatch recognizes (Linux-style).
const (
	sysWrite = 64
	sysExit  = 93
)

func boolToDW(b bool) DoubleWord {
	if b {
		return 1
	}
	return 0
}

// execute runs one decoded instruction. It returns ok=true when the
// instruction completed and PC has been advanced to its successor;
// ok=false when it raised an architectural exception (PC has already
// been redirected to the trap vector). A non-nil error signals a
// host-level condition (spec.md §7) that stops the hart outright.
func (h *Hart) execute(instr Instruction) (bool, error) {
	switch instr.ID {

	case ADD:
		return h.aluReg(instr, func(a, b DoubleWord) DoubleWord { return a + b }), nil
	case SUB:
		return h.aluReg(instr, func(a, b DoubleWord) DoubleWord { return a - b }), nil
	case AND:
		return h.aluReg(instr, func(a, b DoubleWord) DoubleWord { return a & b }), nil
	case OR:
		return h.aluReg(instr, func(a, b DoubleWord) DoubleWord { return a | b }), nil
	case XOR:
		return h.aluReg(instr, func(a, b DoubleWord) DoubleWord { return a ^ b }), nil
	case SLT:
		return h.aluReg(instr, func(a, b DoubleWord) DoubleWord { return boolToDW(toSigned(a) < toSigned(b)) }), nil
	case SLTU:
		return h.aluReg(instr, func(a, b DoubleWord) DoubleWord { return boolToDW(a < b) }), nil
	case SLL:
		return h.aluReg(instr, func(a, b DoubleWord) DoubleWord { return a << (b & 0x3f) }), nil
	case SRL:
		return h.aluReg(instr, func(a, b DoubleWord) DoubleWord { return a >> (b & 0x3f) }), nil
	case SRA:
		return h.aluReg(instr, func(a, b DoubleWord) DoubleWord {
			return toUnsigned(toSigned(a) >> (b & 0x3f))
		}), nil

	case ADDI:
		return h.aluImm(instr, func(a, b DoubleWord) DoubleWord { return a + b }), nil
	case ANDI:
		return h.aluImm(instr, func(a, b DoubleWord) DoubleWord { return a & b }), nil
	case ORI:
		return h.aluImm(instr, func(a, b DoubleWord) DoubleWord { return a | b }), nil
	case XORI:
		return h.aluImm(instr, func(a, b DoubleWord) DoubleWord { return a ^ b }), nil
	case SLTI:
		return h.aluImm(instr, func(a, b DoubleWord) DoubleWord { return boolToDW(toSigned(a) < toSigned(b)) }), nil
	case SLTIU:
		return h.aluImm(instr, func(a, b DoubleWord) DoubleWord { return boolToDW(a < b) }), nil
	case SLLI:
		return h.aluImm(instr, func(a, b DoubleWord) DoubleWord { return a << (b & 0x3f) }), nil
	case SRLI:
		return h.aluImm(instr, func(a, b DoubleWord) DoubleWord { return a >> (b & 0x3f) }), nil
	case SRAI:
		return h.aluImm(instr, func(a, b DoubleWord) DoubleWord {
			return toUnsigned(toSigned(a) >> (b & 0x3f))
		}), nil

	case ADDW:
		return h.alu32Reg(instr, func(a, b Word) Word { return a + b }), nil
	case SUBW:
		return h.alu32Reg(instr, func(a, b Word) Word { return a - b }), nil
	case SLLW:
		return h.alu32Reg(instr, func(a, b Word) Word { return a << (b & 0x1f) }), nil
	case SRLW:
		return h.alu32Reg(instr, func(a, b Word) Word { return a >> (b & 0x1f) }), nil
	case SRAW:
		return h.alu32Reg(instr, func(a, b Word) Word {
			return Word(int32(a) >> (b & 0x1f))
		}), nil

	case ADDIW:
		return h.alu32Imm(instr, func(a Word, imm DoubleWord) Word { return a + Word(imm) }), nil
	case SLLIW:
		return h.alu32Imm(instr, func(a Word, imm DoubleWord) Word { return a << (uint32(imm) & 0x1f) }), nil
	case SRLIW:
		return h.alu32Imm(instr, func(a Word, imm DoubleWord) Word { return a >> (uint32(imm) & 0x1f) }), nil
	case SRAIW:
		return h.alu32Imm(instr, func(a Word, imm DoubleWord) Word {
			return Word(int32(a) >> (uint32(imm) & 0x1f))
		}), nil

	case LUI:
		h.GPRs.Set(instr.RD, instr.Imm)
		h.PC += 4
		return true, nil
	case AUIPC:
		h.GPRs.Set(instr.RD, h.PC+instr.Imm)
		h.PC += 4
		return true, nil

	case JAL:
		h.GPRs.Set(instr.RD, h.PC+4)
		h.PC += instr.Imm
		return true, nil
	case JALR:
		target := (h.GPRs.Get(instr.RS1) + instr.Imm) &^ 1
		h.GPRs.Set(instr.RD, h.PC+4)
		h.PC = target
		return true, nil

	case BEQ:
		return h.branch(instr, func(a, b DoubleWord) bool { return a == b }), nil
	case BNE:
		return h.branch(instr, func(a, b DoubleWord) bool { return a != b }), nil
	case BLT:
		return h.branch(instr, func(a, b DoubleWord) bool { return toSigned(a) < toSigned(b) }), nil
	case BGE:
		return h.branch(instr, func(a, b DoubleWord) bool { return toSigned(a) >= toSigned(b) }), nil
	case BLTU:
		return h.branch(instr, func(a, b DoubleWord) bool { return a < b }), nil
	case BGEU:
		return h.branch(instr, func(a, b DoubleWord) bool { return a >= b }), nil

	case LB:
		return h.load(instr, func(va DoubleWord) (DoubleWord, *Fault) {
			v, f := Load[Byte](h.Mem, va, h.Priv)
			return sext(DoubleWord(v), 8), f
		}), nil
	case LH:
		return h.load(instr, func(va DoubleWord) (DoubleWord, *Fault) {
			v, f := Load[HalfWord](h.Mem, va, h.Priv)
			return sext(DoubleWord(v), 16), f
		}), nil
	case LW:
		return h.load(instr, func(va DoubleWord) (DoubleWord, *Fault) {
			v, f := Load[Word](h.Mem, va, h.Priv)
			return sext(DoubleWord(v), 32), f
		}), nil
	case LD:
		return h.load(instr, func(va DoubleWord) (DoubleWord, *Fault) {
			return Load[DoubleWord](h.Mem, va, h.Priv)
		}), nil
	case LBU:
		return h.load(instr, func(va DoubleWord) (DoubleWord, *Fault) {
			v, f := Load[Byte](h.Mem, va, h.Priv)
			return DoubleWord(v), f
		}), nil
	case LHU:
		return h.load(instr, func(va DoubleWord) (DoubleWord, *Fault) {
			v, f := Load[HalfWord](h.Mem, va, h.Priv)
			return DoubleWord(v), f
		}), nil
	case LWU:
		return h.load(instr, func(va DoubleWord) (DoubleWord, *Fault) {
			v, f := Load[Word](h.Mem, va, h.Priv)
			return DoubleWord(v), f
		}), nil

	case SB:
		return h.store(instr, func(va DoubleWord, v DoubleWord) *Fault {
			return Store[Byte](h.Mem, va, Byte(v), h.Priv)
		}), nil
	case SH:
		return h.store(instr, func(va DoubleWord, v DoubleWord) *Fault {
			return Store[HalfWord](h.Mem, va, HalfWord(v), h.Priv)
		}), nil
	case SW:
		return h.store(instr, func(va DoubleWord, v DoubleWord) *Fault {
			return Store[Word](h.Mem, va, Word(v), h.Priv)
		}), nil
	case SD:
		return h.store(instr, func(va DoubleWord, v DoubleWord) *Fault {
			return Store[DoubleWord](h.Mem, va, v, h.Priv)
		}), nil

	case FENCE:
		h.PC += 4
		return true, nil

	case ECALL:
		return h.execEcall(instr)
	case EBREAK:
		h.Running = false
		h.PC += 4
		return true, nil

	case CSRRW:
		return h.csrWrite(instr, h.GPRs.Get(instr.RS1))
	case CSRRWI:
		return h.csrWrite(instr, DoubleWord(instr.RS1))
	case CSRRS:
		return h.csrSetClear(instr, h.GPRs.Get(instr.RS1), func(old, rhs DoubleWord) DoubleWord { return old | rhs })
	case CSRRSI:
		return h.csrSetClear(instr, DoubleWord(instr.RS1), func(old, rhs DoubleWord) DoubleWord { return old | rhs })
	case CSRRC:
		return h.csrSetClear(instr, h.GPRs.Get(instr.RS1), func(old, rhs DoubleWord) DoubleWord { return old &^ rhs })
	case CSRRCI:
		return h.csrSetClear(instr, DoubleWord(instr.RS1), func(old, rhs DoubleWord) DoubleWord { return old &^ rhs })

	case MRET:
		mpp := h.CSRs.MPP()
		h.CSRs.SetMIE(h.CSRs.MPIE())
		h.CSRs.SetMPIE(true)
		h.CSRs.SetMPP(PrivUser)
		h.Priv = mpp
		h.PC = h.CSRs.Get(CSRMEPC)
		return true, nil
	case SRET:
		spp := h.CSRs.SPP()
		h.CSRs.SetSIE(h.CSRs.SPIE())
		h.CSRs.SetSPIE(true)
		h.CSRs.SetSPP(PrivUser)
		h.Priv = spp
		if h.Priv != PrivMachine {
			h.CSRs.SetMPRV(false)
		}
		h.PC = h.CSRs.Get(CSRSEPC)
		return true, nil

	case WFI:
		return false, hostErrorf("wfi is not implemented by this core")
	case SFENCEVMA:
		return false, hostErrorf("sfence.vma is not implemented by this core")
	}

	return false, hostErrorf("unimplemented instruction %v", instr.ID)
}

// aluReg/aluImm implement the register-register and register-immediate
// 64-bit ALU families; their *W counterparts truncate operands to 32
// bits before applying op (shift amounts in particular behave
// differently on the 32-bit value than a 64-bit shift then truncate
// would), per spec.md §4.5.

func (h *Hart) aluReg(instr Instruction, op func(a, b DoubleWord) DoubleWord) bool {
	res := op(h.GPRs.Get(instr.RS1), h.GPRs.Get(instr.RS2))
	h.GPRs.Set(instr.RD, res)
	h.PC += 4
	return true
}

func (h *Hart) aluImm(instr Instruction, op func(a, b DoubleWord) DoubleWord) bool {
	res := op(h.GPRs.Get(instr.RS1), instr.Imm)
	h.GPRs.Set(instr.RD, res)
	h.PC += 4
	return true
}

func (h *Hart) alu32Reg(instr Instruction, op func(a, b Word) Word) bool {
	res := op(Word(h.GPRs.Get(instr.RS1)), Word(h.GPRs.Get(instr.RS2)))
	h.GPRs.Set(instr.RD, sext(DoubleWord(res), 32))
	h.PC += 4
	return true
}

func (h *Hart) alu32Imm(instr Instruction, op func(a Word, imm DoubleWord) Word) bool {
	res := op(Word(h.GPRs.Get(instr.RS1)), instr.Imm)
	h.GPRs.Set(instr.RD, sext(DoubleWord(res), 32))
	h.PC += 4
	return true
}

func (h *Hart) branch(instr Instruction, taken func(a, b DoubleWord) bool) bool {
	if taken(h.GPRs.Get(instr.RS1), h.GPRs.Get(instr.RS2)) {
		h.PC += instr.Imm
	} else {
		h.PC += 4
	}
	return true
}

func (h *Hart) load(instr Instruction, loader func(va DoubleWord) (DoubleWord, *Fault)) bool {
	va := h.GPRs.Get(instr.RS1) + instr.Imm
	v, f := loader(va)
	if f != nil {
		h.raise(f.Cause, f.Info)
		return false
	}
	h.GPRs.Set(instr.RD, v)
	h.PC += 4
	return true
}

func (h *Hart) store(instr Instruction, storer func(va, v DoubleWord) *Fault) bool {
	va := h.GPRs.Get(instr.RS1) + instr.Imm
	if f := storer(va, h.GPRs.Get(instr.RS2)); f != nil {
		h.raise(f.Cause, f.Info)
		return false
	}
	h.PC += 4
	return true
}

// execEcall dispatches on x17 per the syscall ABI in spec.md §6.
func (h *Hart) execEcall(instr Instruction) (bool, error) {
	switch h.GPRs.Get(RegA7) {
	case sysWrite:
		return h.sysWrite(), nil
	case sysExit:
		h.Status = int(toSigned(h.GPRs.Get(RegA0)))
		h.Running = false
		h.PC += 4
		return true, nil
	default:
		return false, hostErrorf("unsupported syscall number %d", h.GPRs.Get(RegA7))
	}
}

func (h *Hart) sysWrite() bool {
	fd := int64(h.GPRs.Get(RegA0))
	va := h.GPRs.Get(RegA1)
	count := h.GPRs.Get(RegA2)

	data, f := h.Mem.ReadBytes(va, int(count), h.Priv)
	if f != nil {
		h.raise(f.Cause, f.Info)
		return false
	}

	w, ok := h.Files[int(fd)]
	if !ok {
		h.GPRs.Set(RegA0, toUnsigned(-1))
		h.PC += 4
		return true
	}
	n, err := w.Write(data)
	if err != nil {
		h.GPRs.Set(RegA0, toUnsigned(-1))
	} else {
		h.GPRs.Set(RegA0, DoubleWord(int64(n)))
	}
	h.PC += 4
	return true
}

// csrWrite implements CSRRW/CSRRWI: the write always happens; rd only
// receives the old value when rd ≠ x0.
func (h *Hart) csrWrite(instr Instruction, rhs DoubleWord) (bool, error) {
	csr := instr.Imm
	if h.Priv < GetLowestPrivilege(csr) || IsDebugCSR(csr) || IsReadOnly(csr) {
		h.raise(CauseIllegalInstruction, DoubleWord(instr.Raw))
		return false, nil
	}
	if instr.RD == RegZero {
		h.csrSet(csr, rhs)
	} else {
		old := h.csrGet(csr)
		h.csrSet(csr, rhs)
		h.GPRs.Set(instr.RD, old)
	}
	h.PC += 4
	return true, nil
}

// csrSetClear implements CSRRS/CSRRC/CSRRSI/CSRRCI. instr.RS1 holds
// either the source register index (reg forms) or the 5-bit immediate
// itself (imm forms, per decode.go's csrType); in both cases a zero
// value means "read only, don't write", which is exactly the check
// spec.md §4.5 specifies.
func (h *Hart) csrSetClear(instr Instruction, rhs DoubleWord, op func(old, rhs DoubleWord) DoubleWord) (bool, error) {
	csr := instr.Imm
	if h.Priv < GetLowestPrivilege(csr) || IsDebugCSR(csr) {
		h.raise(CauseIllegalInstruction, DoubleWord(instr.Raw))
		return false, nil
	}
	if instr.RS1 == RegZero {
		h.GPRs.Set(instr.RD, h.csrGet(csr))
		h.PC += 4
		return true, nil
	}
	if IsReadOnly(csr) {
		h.raise(CauseIllegalInstruction, DoubleWord(instr.Raw))
		return false, nil
	}
	old := h.csrGet(csr)
	h.csrSet(csr, op(old, rhs))
	h.GPRs.Set(instr.RD, old)
	h.PC += 4
	return true, nil
}

func (h *Hart) csrGet(csr DoubleWord) DoubleWord { return h.CSRs.Get(csr) }

// csrSet routes writes to mstatus/sstatus through their dedicated
// setters so the sstatus alias invariant holds even for a plain CSR
// write, not just the field-level accessors in csr.go.
func (h *Hart) csrSet(csr, v DoubleWord) {
	switch csr {
	case CSRSStatus:
		h.CSRs.SetSStatus(v)
	case CSRMStatus:
		h.CSRs.SetMStatus(v)
	default:
		h.CSRs.Set(csr, v)
	}
}
