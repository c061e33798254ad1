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

// maxPTLevels is the largest page table depth this core supports (Sv57).
const maxPTLevels = 5

// vpnWidth is the width in bits of a single VPN[i] field, shared by
// Sv39/Sv48/Sv57.
const vpnWidth = 9

// VPN returns the i-th virtual page number field of va (VPN[0] is
// closest to the page offset). i must be in [0, maxPTLevels).
func VPN(va DoubleWord, i int) DoubleWord {
	from := PageBits + i*vpnWidth
	return getBits(va, from+vpnWidth-1, from)
}

// PageOffset returns the low PageBits bits of va, unchanged by
// translation.
func PageOffset(va DoubleWord) DoubleWord {
	return getBits(va, PageBits-1, 0)
}

// IsSignExtended reports whether va's bits above bit vaBits-1 are a
// proper sign extension of bit vaBits-1, as required of every virtual
// address under a paged SATP mode.
func IsSignExtended(va DoubleWord, vaBits int) bool {
	return sext(maskBits(va, vaBits-1, 0), vaBits) == va
}
