// Copyright 2026 KPATH Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package shaper

import "github.com/pkoukk/tiktoken-go"

// tokenCounter estimates a serialized result's size against the §4.8
// budgets. It prefers a real tokenizer and falls back to the spec's
// portable char/4 proxy when the encoding table can't be loaded (e.g. no
// network access to fetch tiktoken's vocabulary file).
type tokenCounter struct {
	encoding *tiktoken.Tiktoken
}

func newTokenCounter() *tokenCounter {
	encoding, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return &tokenCounter{}
	}
	return &tokenCounter{encoding: encoding}
}

// count returns the token estimate for data, used against tokenBudget.
func (tc *tokenCounter) count(data []byte) int {
	if tc.encoding == nil {
		return len(data) / 4
	}
	return len(tc.encoding.Encode(string(data), nil, nil))
}
