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

import "testing"

func TestIsTerminator(t *testing.T) {
	for _, id := range []InstrID{BEQ, BNE, BLT, BGE, BLTU, BGEU, JAL, JALR, EBREAK, ECALL, MRET, SRET} {
		if in := (Instruction{ID: id}); !in.IsTerminator() {
			t.Errorf("%v not classified as a terminator", id)
		}
	}
	for _, id := range []InstrID{ADD, ADDI, LB, SD, FENCE, CSRRW, WFI} {
		if in := (Instruction{ID: id}); in.IsTerminator() {
			t.Errorf("%v incorrectly classified as a terminator", id)
		}
	}
}

func TestInstrIDString(t *testing.T) {
	if got := ADD.String(); got != "add" {
		t.Errorf("ADD.String() = %q, want %q", got, "add")
	}
	if got := InstrID(9999).String(); got != "unknown" {
		t.Errorf("unknown id String() = %q, want %q", got, "unknown")
	}
}
