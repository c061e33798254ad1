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

// Package trace renders a per-instruction disassembly and GPR-diff log,
// generalizing the teacher's vm.go tabwriter register dump (gated by its
// Debug bitmask) into a yarvs.StepTracer implementation.
package trace

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/k0kubun/pp/v3"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/lmangani-labs/yarvs/internal/yarvs"
)

// regNames mirrors the teacher's RegNames table (vm.go), used to render
// the ABI name alongside the numeric register index in diff output.
var regNames = [yarvs.NumGPRs]string{
	"zero", "ra", "sp", "gp", "tp",
	"t0", "t1", "t2",
	"s0", "s1",
	"a0", "a1", "a2", "a3", "a4", "a5", "a6", "a7",
	"s2", "s3", "s4", "s5", "s6", "s7", "s8", "s9", "s10", "s11",
	"t3", "t4", "t5", "t6",
}

// Logger is a yarvs.StepTracer that, for each instruction that completes
// without faulting, writes the pc it was fetched from, the disassembled
// mnemonic and operands, and a tabwriter-aligned list of every GPR the
// instruction changed -- the same three pieces of information the
// teacher's dbgTmpl template renders -- followed by a pp dump of the
// decoded Instruction.
type Logger struct {
	dest io.Writer
	pp   *pp.PrettyPrinter
}

// NewLogger builds a Logger writing to w. When w is an *os.File backed by
// a terminal (checked with go-isatty), the destination is wrapped with
// go-colorable so the structured dump's ANSI color codes render correctly
// on every platform, including Windows consoles; otherwise output and the
// structured dump are both left uncolored, matching how a redirected-to-
// file log is expected to look.
func NewLogger(w io.Writer) *Logger {
	dest := w
	colored := false
	if f, ok := w.(*os.File); ok {
		fd := f.Fd()
		colored = isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
		dest = colorable.NewColorable(f)
	}

	p := pp.New()
	p.SetColoringEnabled(colored)

	return &Logger{dest: dest, pp: p}
}

// TraceStep implements yarvs.StepTracer.
func (l *Logger) TraceStep(h *yarvs.Hart, instr yarvs.Instruction, pcBefore yarvs.DoubleWord, before [yarvs.NumGPRs]yarvs.DoubleWord) {
	after := h.GPRs.Snapshot()

	fmt.Fprintf(l.dest, "%#06x: %-12s", pcBefore, disasm(instr))

	w := tabwriter.NewWriter(l.dest, 0, 0, 2, ' ', tabwriter.AlignRight)
	changed := false
	for i := 0; i < yarvs.NumGPRs; i++ {
		if after[i] == before[i] {
			continue
		}
		changed = true
		fmt.Fprintf(w, "%s(%d): %#x -> %#x\t", regNames[i], i, before[i], after[i])
	}
	w.Flush()
	if !changed {
		fmt.Fprintln(l.dest)
	}

	l.pp.Fprintln(l.dest, instr)
}

// disasm renders instr the way a minimal objdump would: mnemonic plus the
// operands that field carries meaning for, per spec.md §3's field layout.
func disasm(instr yarvs.Instruction) string {
	switch instr.ID {
	case yarvs.LUI, yarvs.AUIPC:
		return fmt.Sprintf("%s x%d, %#x", instr.ID, instr.RD, instr.Imm)
	case yarvs.JAL:
		return fmt.Sprintf("%s x%d, %#x", instr.ID, instr.RD, instr.Imm)
	case yarvs.FENCE, yarvs.ECALL, yarvs.EBREAK, yarvs.MRET, yarvs.SRET, yarvs.WFI, yarvs.SFENCEVMA:
		return instr.ID.String()
	case yarvs.JALR, yarvs.LB, yarvs.LH, yarvs.LW, yarvs.LD, yarvs.LBU, yarvs.LHU, yarvs.LWU:
		return fmt.Sprintf("%s x%d, %#x(x%d)", instr.ID, instr.RD, instr.Imm, instr.RS1)
	case yarvs.SB, yarvs.SH, yarvs.SW, yarvs.SD:
		return fmt.Sprintf("%s x%d, %#x(x%d)", instr.ID, instr.RS2, instr.Imm, instr.RS1)
	case yarvs.BEQ, yarvs.BNE, yarvs.BLT, yarvs.BGE, yarvs.BLTU, yarvs.BGEU:
		return fmt.Sprintf("%s x%d, x%d, %#x", instr.ID, instr.RS1, instr.RS2, instr.Imm)
	case yarvs.CSRRW, yarvs.CSRRS, yarvs.CSRRC:
		return fmt.Sprintf("%s x%d, %#x, x%d", instr.ID, instr.RD, instr.Imm, instr.RS1)
	case yarvs.CSRRWI, yarvs.CSRRSI, yarvs.CSRRCI:
		return fmt.Sprintf("%s x%d, %#x, %d", instr.ID, instr.RD, instr.Imm, instr.RS1)
	case yarvs.ADDI, yarvs.ANDI, yarvs.ORI, yarvs.XORI, yarvs.SLTI, yarvs.SLTIU,
		yarvs.SLLI, yarvs.SRLI, yarvs.SRAI, yarvs.ADDIW, yarvs.SLLIW, yarvs.SRLIW, yarvs.SRAIW:
		return fmt.Sprintf("%s x%d, x%d, %#x", instr.ID, instr.RD, instr.RS1, instr.Imm)
	default:
		return fmt.Sprintf("%s x%d, x%d, x%d", instr.ID, instr.RD, instr.RS1, instr.RS2)
	}
}
