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

// NumGPRs is the number of general-purpose registers, x0..x31.
const NumGPRs = 32

// Well-known GPR indices used by the ABI this hart emulates.
const (
	RegZero = 0
	RegRA   = 1
	RegSP   = 2
	RegA0   = 10
	RegA1   = 11
	RegA2   = 12
	RegA7   = 17
)

// RegFile is the general-purpose register bank. x0 is hardwired to zero:
// reads always return 0 and writes are silently discarded.
type RegFile struct {
	regs [NumGPRs]DoubleWord
}

// Get returns the value of register i. Reading x0 always returns 0.
func (r *RegFile) Get(i uint64) DoubleWord {
	return r.regs[i]
}

// Set stores value in register i. Writes to x0 are discarded.
func (r *RegFile) Set(i uint64, value DoubleWord) {
	if i == RegZero {
		return
	}
	r.regs[i] = value
}

// Snapshot returns a copy of all 32 registers, used by the tracer to diff
// state across a step.
func (r *RegFile) Snapshot() [NumGPRs]DoubleWord {
	return r.regs
}
