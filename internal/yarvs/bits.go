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

import "math"

// maskBits zeroes every bit outside [to, from], preserving positions.
func maskBits(n DoubleWord, to, from int) DoubleWord {
	if to == 63 && from == 0 {
		return n
	}
	width := to - from + 1
	mask := (DoubleWord(1)<<uint(width) - 1) << uint(from)
	return n & mask
}

// getBits low-aligns the extracted [to, from] field.
func getBits(n DoubleWord, to, from int) DoubleWord {
	return maskBits(n, to, from) >> uint(from)
}

// setBit replaces bit i of n with b.
func setBit(n DoubleWord, i int, b bool) DoubleWord {
	if b {
		return n | DoubleWord(1)<<uint(i)
	}
	return n &^ (DoubleWord(1) << uint(i))
}

// setBits replaces [to, from] of n with the (to-from+1) low bits of v.
func setBits(n DoubleWord, to, from int, v DoubleWord) DoubleWord {
	width := to - from + 1
	mask := (DoubleWord(1)<<uint(width) - 1) << uint(from)
	return (n &^ mask) | ((v << uint(from)) & mask)
}

// sext treats n's low width bits as a two's-complement value and
// sign-extends it to 64 bits. sext(v, 64) == v for every 64-bit v.
func sext(n DoubleWord, width int) DoubleWord {
	if width >= 64 {
		return n
	}
	low := maskBits(n, width-1, 0)
	return signBits[width-1].signExtend(low)
}

// toSigned reinterprets n's bits as a two's-complement int64.
func toSigned(n DoubleWord) int64 { return int64(n) }

// toUnsigned reinterprets a two's-complement value's bits as a DoubleWord.
func toUnsigned(n int64) DoubleWord { return DoubleWord(n) }

type signExtender struct {
	signBit DoubleWord
	ones    DoubleWord
}

func (s signExtender) signExtend(v DoubleWord) DoubleWord {
	if v&s.signBit != 0 {
		return v | s.ones
	}
	return v
}

// signBits[w] extends a value whose sign bit is bit w (0-indexed) to 64 bits.
var signBits [64]signExtender

func init() {
	b := DoubleWord(1)
	ones := DoubleWord(math.MaxUint64)
	ones <<= 1
	for i := 0; i < len(signBits); i++ {
		signBits[i] = signExtender{signBit: b, ones: ones}
		b <<= 1
		ones <<= 1
	}
}
