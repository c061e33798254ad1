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
	"fmt"
	"io"
)

// kDefaultCacheCapacity and kDefaultBBLength are pinned to the values
// the original implementation uses (yarvs/hart.hpp): 64 cached basic
// blocks, each reserved at 24 instructions.
const (
	kDefaultCacheCapacity = 64
	kDefaultBBLength      = 24
)

// basicBlock is a cached, straight-line instruction sequence keyed by
// its first instruction's virtual address.
type basicBlock = []Instruction

// StepTracer receives a callback after every instruction that completes
// without faulting, for disassembly/GPR-diff logging (internal/trace).
type StepTracer interface {
	TraceStep(h *Hart, instr Instruction, pcBefore DoubleWord, gprsBefore [NumGPRs]DoubleWord)
}

// HostError is a host-level failure spec.md §7 distinguishes from
// architectural exceptions: an unknown syscall number, or executing
// WFI/SFENCE.VMA, neither of which this core implements.
type HostError struct {
	msg string
}

func (e *HostError) Error() string { return e.msg }

func hostErrorf(format string, args ...any) *HostError {
	return &HostError{msg: fmt.Sprintf(format, args...)}
}

// Hart is a single RISC-V hardware thread: register state, the CSR
// bank, paged memory, and the fetch-decode-execute loop with its
// basic-block cache.
type Hart struct {
	GPRs RegFile
	CSRs CSRegFile
	Phys *PhysMem
	Mem  *PagedMem

	Priv PrivilegeLevel
	PC   DoubleWord

	Running    bool
	Status     int
	InstrCount uint64

	bbCache *LRUCache[DoubleWord, basicBlock]

	// Files models the host file descriptors ECALL(write) can target.
	// Writing to an fd absent from this map returns a negative host
	// error in x10 rather than aborting the hart.
	Files map[int]io.Writer

	Tracer StepTracer
}

// NewHart builds a hart over a freshly allocated physical address space.
func NewHart() *Hart {
	phys := NewPhysMem()
	h := &Hart{
		Phys:    phys,
		bbCache: NewLRUCache[DoubleWord, basicBlock](kDefaultCacheCapacity),
		Files:   map[int]io.Writer{},
	}
	h.Mem = NewPagedMem(phys, &h.CSRs)
	h.CSRs.Set(CSRMISA, defaultMISA())
	return h
}

func (h *Hart) trapState() *TrapState {
	return &TrapState{CSRs: &h.CSRs, Priv: &h.Priv, PC: &h.PC}
}

func (h *Hart) raise(cause Cause, info DoubleWord) {
	raiseException(h.trapState(), cause, info)
}

// Run executes until the hart stops (EBREAK, the exit syscall, or a
// host-level error) and returns the number of instructions that
// completed without faulting, per spec.md §4.6. A non-nil error means
// the hart hit a host-level condition spec.md §7 models as fatal.
func (h *Hart) Run() (uint64, error) {
	h.Priv = PrivUser
	h.Running = true
	h.InstrCount = 0

	for h.Running {
		if bb, ok := h.bbCache.Lookup(h.PC); ok {
			if err := h.runCachedBlock(bb); err != nil {
				return h.InstrCount, err
			}
		} else {
			if err := h.buildAndRunBlock(); err != nil {
				return h.InstrCount, err
			}
		}
	}
	return h.InstrCount, nil
}

// runCachedBlock replays a previously built block. An instruction
// faulting partway through simply ends the replay early (the block
// stays cached; the trap has already redirected PC).
func (h *Hart) runCachedBlock(bb basicBlock) error {
	for _, instr := range bb {
		if !h.Running {
			return nil
		}
		ok, err := h.step(instr)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		h.InstrCount++
	}
	return nil
}

// buildAndRunBlock fetches and decodes a fresh basic block starting at
// the current PC, executing each instruction as it is appended. The
// block is committed to the cache only if it runs to a terminator
// without any instruction faulting.
func (h *Hart) buildAndRunBlock() error {
	bbPC := h.PC
	bb := make(basicBlock, 0, kDefaultBBLength)

	for {
		raw, fault := h.Mem.Fetch(h.PC, h.Priv)
		if fault != nil {
			h.raise(CauseInstrPageFault, h.PC)
			return nil
		}
		instr, ok := Decode(raw)
		if !ok {
			h.raise(CauseIllegalInstruction, DoubleWord(raw))
			return nil
		}
		bb = append(bb, instr)
		ran, err := h.step(instr)
		if err != nil {
			return err
		}
		if !ran {
			return nil
		}
		h.InstrCount++
		if instr.IsTerminator() || !h.Running {
			break
		}
	}
	h.bbCache.Update(bbPC, bb)
	return nil
}

// step executes a single decoded instruction and, if a tracer is
// attached, reports the pre-execution GPR snapshot alongside it.
func (h *Hart) step(instr Instruction) (bool, error) {
	var before [NumGPRs]DoubleWord
	pcBefore := h.PC
	if h.Tracer != nil {
		before = h.GPRs.Snapshot()
	}
	ok, err := h.execute(instr)
	if err != nil {
		return false, err
	}
	if ok && h.Tracer != nil {
		h.Tracer.TraceStep(h, instr, pcBefore, before)
	}
	return ok, nil
}
