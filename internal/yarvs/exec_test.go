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

import (
	"bytes"
	"testing"
)

func mustDecode(t *testing.T, raw RawInstruction) Instruction {
	t.Helper()
	in, ok := Decode(raw)
	if !ok {
		t.Fatalf("Decode(%#x) failed, want ok", raw)
	}
	return in
}

func TestExecuteALURegReg(t *testing.T) {
	h := NewHart()
	h.GPRs.Set(1, 10)
	h.GPRs.Set(2, 3)

	tests := []struct {
		raw  RawInstruction
		want DoubleWord
	}{
		{encodeR(opOp, 0b000, 0b0000000, 3, 1, 2), 13},                 // add
		{encodeR(opOp, 0b000, 0b0100000, 3, 1, 2), 7},                  // sub
		{encodeR(opOp, 0b111, 0b0000000, 3, 1, 2), 10 & 3},             // and
		{encodeR(opOp, 0b110, 0b0000000, 3, 1, 2), 10 | 3},             // or
		{encodeR(opOp, 0b100, 0b0000000, 3, 1, 2), 10 ^ 3},             // xor
		{encodeR(opOp, 0b010, 0b0000000, 3, 1, 2), 0},                  // slt (10<3 false)
		{encodeR(opOp, 0b011, 0b0000000, 3, 1, 2), 0},                  // sltu
		{encodeR(opOp, 0b001, 0b0000000, 3, 1, 2), 10 << 3},            // sll
		{encodeR(opOp, 0b101, 0b0000000, 3, 1, 2), 10 >> 3},            // srl
		{encodeR(opOp, 0b101, 0b0100000, 3, 1, 2), 10 >> 3},            // sra (positive value)
	}
	for _, tc := range tests {
		instr := mustDecode(t, tc.raw)
		pcBefore := h.PC
		ok, err := h.execute(instr)
		if err != nil || !ok {
			t.Fatalf("execute(%v) = ok=%v err=%v", instr.ID, ok, err)
		}
		if got := h.GPRs.Get(3); got != tc.want {
			t.Errorf("%v: x3 = %d, want %d", instr.ID, got, tc.want)
		}
		if h.PC != pcBefore+4 {
			t.Errorf("%v: pc = %d, want %d", instr.ID, h.PC, pcBefore+4)
		}
	}
}

func TestExecuteSRANegative(t *testing.T) {
	h := NewHart()
	h.GPRs.Set(1, toUnsigned(-16))
	h.GPRs.Set(2, 2)
	instr := mustDecode(t, encodeR(opOp, 0b101, 0b0100000, 3, 1, 2)) // sra x3,x1,x2
	if ok, err := h.execute(instr); err != nil || !ok {
		t.Fatalf("execute(sra) = ok=%v err=%v", ok, err)
	}
	if got := toSigned(h.GPRs.Get(3)); got != -4 {
		t.Errorf("sra(-16,2) = %d, want -4", got)
	}
}

func TestExecuteALURegImm(t *testing.T) {
	h := NewHart()
	h.GPRs.Set(1, 5)

	addi := mustDecode(t, encodeI(opOpImm, 0b000, 3, 1, -2))
	if ok, err := h.execute(addi); err != nil || !ok {
		t.Fatalf("execute(addi) = ok=%v err=%v", ok, err)
	}
	if got := toSigned(h.GPRs.Get(3)); got != 3 {
		t.Errorf("addi x1,-2 = %d, want 3", got)
	}

	slli := mustDecode(t, encodeI(opOpImm, 0b001, 4, 1, 2))
	if ok, _ := h.execute(slli); !ok {
		t.Fatalf("execute(slli) failed")
	}
	if got := h.GPRs.Get(4); got != 20 {
		t.Errorf("slli x1,2 = %d, want 20", got)
	}
}

func TestExecuteWVariantsTruncateTo32Bits(t *testing.T) {
	h := NewHart()
	// x1 has a nonzero upper 32 bits; *W ops must only see the low 32.
	h.GPRs.Set(1, 0x1_0000_0001)
	h.GPRs.Set(2, 1)

	sllw := mustDecode(t, encodeR(opOp32, 0b001, 0b0000000, 3, 1, 2))
	if ok, err := h.execute(sllw); err != nil || !ok {
		t.Fatalf("execute(sllw) = ok=%v err=%v", ok, err)
	}
	if got := h.GPRs.Get(3); got != 2 {
		t.Errorf("sllw(0x100000001,1) = %#x, want 2", got)
	}

	h.GPRs.Set(1, 0x1_8000_0000) // low 32 bits: 0x80000000 (negative as int32)
	h.GPRs.Set(2, 4)
	sraw := mustDecode(t, encodeR(opOp32, 0b101, 0b0100000, 3, 1, 2))
	if ok, err := h.execute(sraw); err != nil || !ok {
		t.Fatalf("execute(sraw) = ok=%v err=%v", ok, err)
	}
	shifted := int32(-0x80000000)
	shifted >>= 4
	want := sext(DoubleWord(uint32(shifted)), 32)
	if got := h.GPRs.Get(3); got != want {
		t.Errorf("sraw = %#x, want %#x", got, want)
	}
}

func TestExecuteADDIWSignExtends(t *testing.T) {
	h := NewHart()
	h.GPRs.Set(1, 0x7fffffff)
	addiw := mustDecode(t, encodeI(opOpImm32, 0b000, 2, 1, 1)) // addiw x2,x1,1 overflows 32-bit
	if ok, err := h.execute(addiw); err != nil || !ok {
		t.Fatalf("execute(addiw) = ok=%v err=%v", ok, err)
	}
	if got := toSigned(h.GPRs.Get(2)); got != -0x80000000 {
		t.Errorf("addiw overflow = %d, want %d", got, int64(-0x80000000))
	}
}

func TestExecuteLUIAUIPC(t *testing.T) {
	h := NewHart()
	h.PC = 0x1000

	lui := mustDecode(t, RawInstruction(0x000040b7)) // lui x1,4
	if ok, _ := h.execute(lui); !ok {
		t.Fatalf("execute(lui) failed")
	}
	if got := h.GPRs.Get(1); got != 0x4000 {
		t.Errorf("lui x1,4 = %#x, want 0x4000", got)
	}

	h.PC = 0x1000
	auipc := mustDecode(t, RawInstruction(0x00004097)) // auipc x1,4
	if ok, _ := h.execute(auipc); !ok {
		t.Fatalf("execute(auipc) failed")
	}
	if got := h.GPRs.Get(1); got != 0x1000+0x4000 {
		t.Errorf("auipc = %#x, want %#x", got, 0x1000+0x4000)
	}
}

func TestExecuteJALJALR(t *testing.T) {
	h := NewHart()
	h.PC = 0x2000
	jal := mustDecode(t, encodeJ(opJAL, 1, 0x100))
	if ok, _ := h.execute(jal); !ok {
		t.Fatalf("execute(jal) failed")
	}
	if got := h.GPRs.Get(1); got != 0x2004 {
		t.Errorf("jal link = %#x, want 0x2004", got)
	}
	if h.PC != 0x2100 {
		t.Errorf("jal pc = %#x, want 0x2100", h.PC)
	}

	h.PC = 0x3000
	h.GPRs.Set(5, 0x4001) // low bit set, must be cleared
	jalr := mustDecode(t, encodeI(opJALR, 0b000, 6, 5, 0x10))
	if ok, _ := h.execute(jalr); !ok {
		t.Fatalf("execute(jalr) failed")
	}
	if h.PC != 0x4010 {
		t.Errorf("jalr pc = %#x, want 0x4010", h.PC)
	}
	if got := h.GPRs.Get(6); got != 0x3004 {
		t.Errorf("jalr link = %#x, want 0x3004", got)
	}
}

func TestExecuteBranches(t *testing.T) {
	h := NewHart()
	h.PC = 0x100
	h.GPRs.Set(1, 5)
	h.GPRs.Set(2, 5)

	beq := mustDecode(t, encodeB(opBranch, 0b000, 1, 2, 0x40))
	if ok, _ := h.execute(beq); !ok {
		t.Fatalf("execute(beq) failed")
	}
	if h.PC != 0x140 {
		t.Errorf("beq taken pc = %#x, want 0x140", h.PC)
	}

	h.PC = 0x100
	h.GPRs.Set(2, 6)
	bne := mustDecode(t, encodeB(opBranch, 0b001, 1, 2, 0x40))
	if ok, _ := h.execute(bne); !ok {
		t.Fatalf("execute(bne) failed")
	}
	if h.PC != 0x140 {
		t.Errorf("bne taken pc = %#x, want 0x140", h.PC)
	}

	h.PC = 0x100
	beqNotTaken := mustDecode(t, encodeB(opBranch, 0b000, 1, 2, 0x40))
	if ok, _ := h.execute(beqNotTaken); !ok {
		t.Fatalf("execute(beq) failed")
	}
	if h.PC != 0x104 {
		t.Errorf("beq not-taken pc = %#x, want 0x104", h.PC)
	}
}

func TestExecuteLoadStoreRoundTrip(t *testing.T) {
	h := NewHart()
	h.GPRs.Set(1, 0x2000) // base
	h.GPRs.Set(2, toUnsigned(-1))

	sd := mustDecode(t, encodeS(opStore, 0b011, 1, 2, 8)) // sd x2, 8(x1)
	if ok, err := h.execute(sd); err != nil || !ok {
		t.Fatalf("execute(sd) = ok=%v err=%v", ok, err)
	}

	ld := mustDecode(t, encodeI(opLoad, 0b011, 3, 1, 8)) // ld x3, 8(x1)
	if ok, err := h.execute(ld); err != nil || !ok {
		t.Fatalf("execute(ld) = ok=%v err=%v", ok, err)
	}
	if got := h.GPRs.Get(3); got != toUnsigned(-1) {
		t.Errorf("ld roundtrip = %#x, want all-ones", got)
	}

	sb := mustDecode(t, encodeS(opStore, 0b000, 1, 2, 0)) // sb x2, 0(x1): stores 0xff
	if ok, _ := h.execute(sb); !ok {
		t.Fatalf("execute(sb) failed")
	}
	lbu := mustDecode(t, encodeI(opLoad, 0b100, 4, 1, 0))
	if ok, _ := h.execute(lbu); !ok {
		t.Fatalf("execute(lbu) failed")
	}
	if got := h.GPRs.Get(4); got != 0xff {
		t.Errorf("lbu = %#x, want 0xff", got)
	}
	lb := mustDecode(t, encodeI(opLoad, 0b000, 5, 1, 0))
	if ok, _ := h.execute(lb); !ok {
		t.Fatalf("execute(lb) failed")
	}
	if got := toSigned(h.GPRs.Get(5)); got != -1 {
		t.Errorf("lb sign-extend = %d, want -1", got)
	}
}

func TestExecuteCSRRWRoundTrip(t *testing.T) {
	h := NewHart()
	h.Priv = PrivMachine
	h.CSRs.Set(CSRMScratch, 0x1111)
	h.GPRs.Set(1, 0xdeadbeef)

	csrrw := mustDecode(t, encodeI(opSystem, 0b001, 5, 1, CSRMScratch))
	ok, err := h.execute(csrrw)
	if err != nil || !ok {
		t.Fatalf("execute(csrrw) = ok=%v err=%v", ok, err)
	}
	if got := h.CSRs.Get(CSRMScratch); got != 0xdeadbeef {
		t.Errorf("mscratch after csrrw = %#x, want 0xdeadbeef", got)
	}
	if got := h.GPRs.Get(5); got != 0x1111 {
		t.Errorf("x5 after csrrw = %#x, want 0x1111 (old value)", got)
	}
}

func TestExecuteCSRIllegalFromLowerPrivilege(t *testing.T) {
	h := NewHart()
	h.Priv = PrivUser
	h.CSRs.SetMTVecBase(0x8000)

	csrrw := mustDecode(t, encodeI(opSystem, 0b001, 5, 1, CSRMScratch))
	ok, err := h.execute(csrrw)
	if err != nil {
		t.Fatalf("execute(csrrw from user) unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("execute(csrrw from user) = ok=true, want exception")
	}
	if h.Priv != PrivMachine {
		t.Errorf("priv after illegal csr access = %v, want Machine (trapped)", h.Priv)
	}
	if h.CSRs.Get(CSRMCause) != CauseIllegalInstruction {
		t.Errorf("mcause = %#x, want IllegalInstruction", h.CSRs.Get(CSRMCause))
	}
}

func TestExecuteCSRRSZeroSourceOnlyReads(t *testing.T) {
	h := NewHart()
	h.Priv = PrivMachine
	h.CSRs.Set(CSRMScratch, 0x42)

	csrrs := mustDecode(t, encodeI(opSystem, 0b010, 5, 0, CSRMScratch)) // rs1=x0
	ok, err := h.execute(csrrs)
	if err != nil || !ok {
		t.Fatalf("execute(csrrs rs1=0) = ok=%v err=%v", ok, err)
	}
	if got := h.GPRs.Get(5); got != 0x42 {
		t.Errorf("x5 = %#x, want 0x42", got)
	}
	if got := h.CSRs.Get(CSRMScratch); got != 0x42 {
		t.Errorf("mscratch mutated by a read-only csrrs, got %#x", got)
	}
}

func TestExecuteCSRRSSetBits(t *testing.T) {
	h := NewHart()
	h.Priv = PrivMachine
	h.CSRs.Set(CSRMScratch, 0x0f)
	h.GPRs.Set(1, 0xf0)

	csrrs := mustDecode(t, encodeI(opSystem, 0b010, 5, 1, CSRMScratch))
	ok, err := h.execute(csrrs)
	if err != nil || !ok {
		t.Fatalf("execute(csrrs) = ok=%v err=%v", ok, err)
	}
	if got := h.CSRs.Get(CSRMScratch); got != 0xff {
		t.Errorf("mscratch after csrrs set = %#x, want 0xff", got)
	}
	if got := h.GPRs.Get(5); got != 0x0f {
		t.Errorf("x5 = %#x, want 0x0f (old value)", got)
	}
}

func TestExecuteEbreakStopsRunLoop(t *testing.T) {
	h := NewHart()
	h.Running = true
	ebreak := mustDecode(t, 0x00100073)
	ok, err := h.execute(ebreak)
	if err != nil || !ok {
		t.Fatalf("execute(ebreak) = ok=%v err=%v", ok, err)
	}
	if h.Running {
		t.Errorf("Running after ebreak = true, want false")
	}
}

func TestExecuteWFIIsFatal(t *testing.T) {
	h := NewHart()
	wfi := mustDecode(t, 0x10500073)
	_, err := h.execute(wfi)
	if err == nil {
		t.Errorf("execute(wfi) err = nil, want fatal host error")
	}
}

func TestExecuteSFenceVMAIsFatal(t *testing.T) {
	h := NewHart()
	sfence := mustDecode(t, encodeR(opSystem, 0b000, 0b0001001, 0, 1, 2))
	_, err := h.execute(sfence)
	if err == nil {
		t.Errorf("execute(sfence.vma) err = nil, want fatal host error")
	}
}

func TestExecuteEcallWrite(t *testing.T) {
	h := NewHart()
	var buf bytes.Buffer
	h.Files[1] = &buf

	msg := []byte("hi")
	h.Phys.StoreBytes(0x5000, msg)

	h.GPRs.Set(RegA7, sysWrite)
	h.GPRs.Set(RegA0, 1) // fd
	h.GPRs.Set(RegA1, 0x5000)
	h.GPRs.Set(RegA2, DoubleWord(len(msg)))

	ecall := mustDecode(t, 0x00000073)
	ok, err := h.execute(ecall)
	if err != nil || !ok {
		t.Fatalf("execute(ecall write) = ok=%v err=%v", ok, err)
	}
	if buf.String() != "hi" {
		t.Errorf("write syscall wrote %q, want %q", buf.String(), "hi")
	}
	if got := toSigned(h.GPRs.Get(RegA0)); got != 2 {
		t.Errorf("x10 after write = %d, want 2", got)
	}
}

func TestExecuteEcallWriteUnknownFD(t *testing.T) {
	h := NewHart()
	h.GPRs.Set(RegA7, sysWrite)
	h.GPRs.Set(RegA0, 99)
	h.GPRs.Set(RegA1, 0)
	h.GPRs.Set(RegA2, 0)

	ecall := mustDecode(t, 0x00000073)
	ok, err := h.execute(ecall)
	if err != nil || !ok {
		t.Fatalf("execute(ecall write unknown fd) = ok=%v err=%v", ok, err)
	}
	if got := toSigned(h.GPRs.Get(RegA0)); got != -1 {
		t.Errorf("x10 = %d, want -1", got)
	}
}

func TestExecuteEcallExit(t *testing.T) {
	h := NewHart()
	h.Running = true
	h.GPRs.Set(RegA7, sysExit)
	h.GPRs.Set(RegA0, 42)

	ecall := mustDecode(t, 0x00000073)
	ok, err := h.execute(ecall)
	if err != nil || !ok {
		t.Fatalf("execute(ecall exit) = ok=%v err=%v", ok, err)
	}
	if h.Status != 42 {
		t.Errorf("Status = %d, want 42", h.Status)
	}
	if h.Running {
		t.Errorf("Running after exit = true, want false")
	}
}

func TestExecuteEcallUnknownSyscallIsFatal(t *testing.T) {
	h := NewHart()
	h.GPRs.Set(RegA7, 9999)

	ecall := mustDecode(t, 0x00000073)
	_, err := h.execute(ecall)
	if err == nil {
		t.Errorf("execute(ecall unknown) err = nil, want fatal host error")
	}
}

func TestExecuteMRETRestoresPrivilegeAndPC(t *testing.T) {
	h := NewHart()
	h.Priv = PrivMachine
	h.CSRs.SetMPP(PrivUser)
	h.CSRs.SetMPIE(true)
	h.CSRs.Set(CSRMEPC, 0x9000)

	mret := mustDecode(t, 0x30200073)
	ok, err := h.execute(mret)
	if err != nil || !ok {
		t.Fatalf("execute(mret) = ok=%v err=%v", ok, err)
	}
	if h.Priv != PrivUser {
		t.Errorf("priv after mret = %v, want User", h.Priv)
	}
	if h.PC != 0x9000 {
		t.Errorf("pc after mret = %#x, want 0x9000", h.PC)
	}
	if !h.CSRs.MIE() {
		t.Errorf("mstatus.MIE after mret = false, want true (restored from MPIE)")
	}
	if h.CSRs.MPP() != PrivUser {
		t.Errorf("mstatus.MPP after mret = %v, want User", h.CSRs.MPP())
	}
}

func TestExecuteSRETClearsMPRVWhenLeavingMachine(t *testing.T) {
	h := NewHart()
	h.Priv = PrivSupervisor
	h.CSRs.SetSPP(PrivUser)
	h.CSRs.SetMPRV(true)
	h.CSRs.Set(CSRSEPC, 0x7000)

	sret := mustDecode(t, 0x10200073)
	ok, err := h.execute(sret)
	if err != nil || !ok {
		t.Fatalf("execute(sret) = ok=%v err=%v", ok, err)
	}
	if h.Priv != PrivUser {
		t.Errorf("priv after sret = %v, want User", h.Priv)
	}
	if h.PC != 0x7000 {
		t.Errorf("pc after sret = %#x, want 0x7000", h.PC)
	}
	if h.CSRs.MPRV() {
		t.Errorf("mstatus.MPRV after sret to User = true, want cleared")
	}
}
