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

// Base opcodes (raw[6:0]) this core decodes. Names follow the RISC-V
// base opcode map; unlisted opcodes (AMO, floating point, compressed,
// custom) are out of scope and fall through to "illegal instruction".
const (
	opLoad     = 0x03
	opMiscMem  = 0x0F
	opOpImm    = 0x13
	opAUIPC    = 0x17
	opOpImm32  = 0x1B
	opStore    = 0x23
	opOp       = 0x33
	opLUI      = 0x37
	opOp32     = 0x3B
	opBranch   = 0x63
	opJALR     = 0x67
	opJAL      = 0x6F
	opSystem   = 0x73
)

// decodeFunc fills in an Instruction's ID, operand fields, and immediate
// given the raw word it was looked up under.
type decodeFunc func(raw RawInstruction) Instruction

// opcodeMask is stage 1: indexed by the 7-bit opcode, it gives the mask
// to apply to raw before looking it up in matchTable. A zero mask means
// the opcode has no registered decoders.
var opcodeMask [128]RawInstruction

// matchTable is stage 2: maps raw&mask to the decoder that fills the
// rest of the Instruction.
var matchTable = map[RawInstruction]decodeFunc{}

func rs1Field(raw RawInstruction) uint64 { return uint64(getBits(DoubleWord(raw), 19, 15)) }
func rs2Field(raw RawInstruction) uint64 { return uint64(getBits(DoubleWord(raw), 24, 20)) }
func rdField(raw RawInstruction) uint64  { return uint64(getBits(DoubleWord(raw), 11, 7)) }

func immI(raw RawInstruction) DoubleWord {
	return sext(getBits(DoubleWord(raw), 31, 20), 12)
}

func immS(raw RawInstruction) DoubleWord {
	v := DoubleWord(raw)
	hi := getBits(v, 31, 25)
	lo := getBits(v, 11, 7)
	return sext(hi<<5|lo, 12)
}

func immB(raw RawInstruction) DoubleWord {
	v := DoubleWord(raw)
	bit12 := getBits(v, 31, 31)
	bit11 := getBits(v, 7, 7)
	bits10to5 := getBits(v, 30, 25)
	bits4to1 := getBits(v, 11, 8)
	combined := bit12<<12 | bit11<<11 | bits10to5<<5 | bits4to1<<1
	return sext(combined, 13)
}

func immU(raw RawInstruction) DoubleWord {
	v := getBits(DoubleWord(raw), 31, 12) << 12
	return sext(v, 32)
}

func immJ(raw RawInstruction) DoubleWord {
	v := DoubleWord(raw)
	bit20 := getBits(v, 31, 31)
	bits19to12 := getBits(v, 19, 12)
	bit11 := getBits(v, 20, 20)
	bits10to1 := getBits(v, 30, 21)
	combined := bit20<<20 | bits19to12<<12 | bit11<<11 | bits10to1<<1
	return sext(combined, 21)
}

// csrNumber extracts the 12-bit CSR number Zicsr instructions carry
// where ordinary I-type instructions would carry a sign-extended
// immediate; spec.md §3 has Instruction.imm hold it unsigned.
func csrNumber(raw RawInstruction) DoubleWord { return getBits(DoubleWord(raw), 31, 20) }

// zimm extracts the 5-bit zero-extended immediate the *I CSR variants
// read through the rs1 field position.
func zimm(raw RawInstruction) uint64 { return rs1Field(raw) }

func rType(id InstrID) decodeFunc {
	return func(raw RawInstruction) Instruction {
		return Instruction{Raw: raw, ID: id, RS1: rs1Field(raw), RS2: rs2Field(raw), RD: rdField(raw)}
	}
}

func iType(id InstrID) decodeFunc {
	return func(raw RawInstruction) Instruction {
		return Instruction{Raw: raw, ID: id, RS1: rs1Field(raw), RD: rdField(raw), Imm: immI(raw)}
	}
}

func sType(id InstrID) decodeFunc {
	return func(raw RawInstruction) Instruction {
		return Instruction{Raw: raw, ID: id, RS1: rs1Field(raw), RS2: rs2Field(raw), Imm: immS(raw)}
	}
}

func bType(id InstrID) decodeFunc {
	return func(raw RawInstruction) Instruction {
		return Instruction{Raw: raw, ID: id, RS1: rs1Field(raw), RS2: rs2Field(raw), Imm: immB(raw)}
	}
}

func uType(id InstrID) decodeFunc {
	return func(raw RawInstruction) Instruction {
		return Instruction{Raw: raw, ID: id, RD: rdField(raw), Imm: immU(raw)}
	}
}

func jType(id InstrID) decodeFunc {
	return func(raw RawInstruction) Instruction {
		return Instruction{Raw: raw, ID: id, RD: rdField(raw), Imm: immJ(raw)}
	}
}

func csrType(id InstrID, immediateForm bool) decodeFunc {
	return func(raw RawInstruction) Instruction {
		in := Instruction{Raw: raw, ID: id, RD: rdField(raw), Imm: csrNumber(raw)}
		if immediateForm {
			in.RS1 = zimm(raw)
		} else {
			in.RS1 = rs1Field(raw)
		}
		return in
	}
}

// decodeOpImmShift handles OP-IMM funct3=001/101 (SLLI/SRLI/SRAI), whose
// shift-type discriminator (bit 30) sits inside the would-be-immediate
// field, alongside the per-instance 6-bit shift amount. Since that
// discriminator is fixed per mnemonic but the shift amount isn't, the
// refinement happens here rather than in the mask table.
func decodeOpImmShift(raw RawInstruction) Instruction {
	shamt := getBits(DoubleWord(raw), 25, 20)
	id := SLLI
	if getBits(DoubleWord(raw), 14, 12) == 0b101 {
		if getBits(DoubleWord(raw), 30, 30) != 0 {
			id = SRAI
		} else {
			id = SRLI
		}
	}
	return Instruction{Raw: raw, ID: id, RS1: rs1Field(raw), RD: rdField(raw), Imm: shamt}
}

// decodeOpImm32Shift is decodeOpImmShift's W-variant counterpart: a
// 5-bit shift amount at [24:20].
func decodeOpImm32Shift(raw RawInstruction) Instruction {
	shamt := getBits(DoubleWord(raw), 24, 20)
	id := SLLIW
	if getBits(DoubleWord(raw), 14, 12) == 0b101 {
		if getBits(DoubleWord(raw), 30, 30) != 0 {
			id = SRAIW
		} else {
			id = SRLIW
		}
	}
	return Instruction{Raw: raw, ID: id, RS1: rs1Field(raw), RD: rdField(raw), Imm: shamt}
}

// decodePrivileged handles SYSTEM funct3=000: ECALL/EBREAK/SRET/MRET/WFI
// all encode as rd=rs1=0 with a fixed imm12, except SFENCE.VMA which
// takes two real register operands and is matched on funct7 alone.
func decodePrivileged(raw RawInstruction) Instruction {
	switch getBits(DoubleWord(raw), 31, 20) {
	case 0x000:
		return Instruction{Raw: raw, ID: ECALL}
	case 0x001:
		return Instruction{Raw: raw, ID: EBREAK}
	case 0x102:
		return Instruction{Raw: raw, ID: SRET}
	case 0x302:
		return Instruction{Raw: raw, ID: MRET}
	case 0x105:
		return Instruction{Raw: raw, ID: WFI}
	}
	if getBits(DoubleWord(raw), 31, 25) == 0b0001001 {
		return Instruction{Raw: raw, ID: SFENCEVMA, RS1: rs1Field(raw), RS2: rs2Field(raw)}
	}
	return Instruction{Raw: raw, ID: InstrInvalid}
}

func init() {
	// R-type opcodes discriminate fully on opcode|funct3|funct7: unlike
	// every other format, R-type has no immediate bits to collide with.
	const rMask = RawInstruction(0xFE00707F)
	opcodeMask[opOp] = rMask
	opcodeMask[opOp32] = rMask

	reg := func(funct3, funct7 RawInstruction, id InstrID, opcode RawInstruction) {
		key := funct7<<25 | funct3<<12 | opcode
		matchTable[key] = rType(id)
	}
	reg(0b000, 0b0000000, ADD, opOp)
	reg(0b000, 0b0100000, SUB, opOp)
	reg(0b001, 0b0000000, SLL, opOp)
	reg(0b010, 0b0000000, SLT, opOp)
	reg(0b011, 0b0000000, SLTU, opOp)
	reg(0b100, 0b0000000, XOR, opOp)
	reg(0b101, 0b0000000, SRL, opOp)
	reg(0b101, 0b0100000, SRA, opOp)
	reg(0b110, 0b0000000, OR, opOp)
	reg(0b111, 0b0000000, AND, opOp)
	reg(0b000, 0b0000000, ADDW, opOp32)
	reg(0b000, 0b0100000, SUBW, opOp32)
	reg(0b001, 0b0000000, SLLW, opOp32)
	reg(0b101, 0b0000000, SRLW, opOp32)
	reg(0b101, 0b0100000, SRAW, opOp32)

	// Every other opcode with a funct3 field discriminates on
	// opcode|funct3 only; any remaining ambiguity (shift-immediate
	// subtype, the SYSTEM funct3=0 family) is resolved inside the
	// decode function itself.
	const funct3Mask = RawInstruction(0x0000707F)
	opcodeMask[opLoad] = funct3Mask
	opcodeMask[opOpImm] = funct3Mask
	opcodeMask[opOpImm32] = funct3Mask
	opcodeMask[opStore] = funct3Mask
	opcodeMask[opBranch] = funct3Mask
	opcodeMask[opJALR] = funct3Mask
	opcodeMask[opSystem] = funct3Mask
	opcodeMask[opMiscMem] = funct3Mask

	withFunct3 := func(opcode, funct3 RawInstruction) RawInstruction { return funct3<<12 | opcode }

	matchTable[withFunct3(opLoad, 0b000)] = iType(LB)
	matchTable[withFunct3(opLoad, 0b001)] = iType(LH)
	matchTable[withFunct3(opLoad, 0b010)] = iType(LW)
	matchTable[withFunct3(opLoad, 0b011)] = iType(LD)
	matchTable[withFunct3(opLoad, 0b100)] = iType(LBU)
	matchTable[withFunct3(opLoad, 0b101)] = iType(LHU)
	matchTable[withFunct3(opLoad, 0b110)] = iType(LWU)

	matchTable[withFunct3(opOpImm, 0b000)] = iType(ADDI)
	matchTable[withFunct3(opOpImm, 0b001)] = decodeOpImmShift
	matchTable[withFunct3(opOpImm, 0b010)] = iType(SLTI)
	matchTable[withFunct3(opOpImm, 0b011)] = iType(SLTIU)
	matchTable[withFunct3(opOpImm, 0b100)] = iType(XORI)
	matchTable[withFunct3(opOpImm, 0b101)] = decodeOpImmShift
	matchTable[withFunct3(opOpImm, 0b110)] = iType(ORI)
	matchTable[withFunct3(opOpImm, 0b111)] = iType(ANDI)

	matchTable[withFunct3(opOpImm32, 0b000)] = iType(ADDIW)
	matchTable[withFunct3(opOpImm32, 0b001)] = decodeOpImm32Shift
	matchTable[withFunct3(opOpImm32, 0b101)] = decodeOpImm32Shift

	matchTable[withFunct3(opStore, 0b000)] = sType(SB)
	matchTable[withFunct3(opStore, 0b001)] = sType(SH)
	matchTable[withFunct3(opStore, 0b010)] = sType(SW)
	matchTable[withFunct3(opStore, 0b011)] = sType(SD)

	matchTable[withFunct3(opBranch, 0b000)] = bType(BEQ)
	matchTable[withFunct3(opBranch, 0b001)] = bType(BNE)
	matchTable[withFunct3(opBranch, 0b100)] = bType(BLT)
	matchTable[withFunct3(opBranch, 0b101)] = bType(BGE)
	matchTable[withFunct3(opBranch, 0b110)] = bType(BLTU)
	matchTable[withFunct3(opBranch, 0b111)] = bType(BGEU)

	matchTable[withFunct3(opJALR, 0b000)] = iType(JALR)

	matchTable[withFunct3(opMiscMem, 0b000)] = iType(FENCE)

	matchTable[withFunct3(opSystem, 0b000)] = decodePrivileged
	matchTable[withFunct3(opSystem, 0b001)] = csrType(CSRRW, false)
	matchTable[withFunct3(opSystem, 0b010)] = csrType(CSRRS, false)
	matchTable[withFunct3(opSystem, 0b011)] = csrType(CSRRC, false)
	matchTable[withFunct3(opSystem, 0b101)] = csrType(CSRRWI, true)
	matchTable[withFunct3(opSystem, 0b110)] = csrType(CSRRSI, true)
	matchTable[withFunct3(opSystem, 0b111)] = csrType(CSRRCI, true)

	// U-type and J-type opcodes carry no funct3: the opcode alone
	// selects the decoder.
	opcodeMask[opLUI] = 0x7F
	opcodeMask[opAUIPC] = 0x7F
	opcodeMask[opJAL] = 0x7F
	matchTable[RawInstruction(opLUI)] = uType(LUI)
	matchTable[RawInstruction(opAUIPC)] = uType(AUIPC)
	matchTable[RawInstruction(opJAL)] = jType(JAL)
}

// Decode dispatches raw through the two-stage opcode-mask / match-map
// table and returns the filled-in Instruction, or ok=false if no
// decoder matched (the caller raises IllegalInstruction with mtval=raw).
func Decode(raw RawInstruction) (Instruction, bool) {
	opcode := raw & 0x7F
	mask := opcodeMask[opcode]
	if mask == 0 {
		return Instruction{}, false
	}
	fn, ok := matchTable[raw&mask]
	if !ok {
		return Instruction{}, false
	}
	in := fn(raw)
	if in.ID == InstrInvalid {
		return Instruction{}, false
	}
	return in, true
}
