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

package search

import "github.com/kpath-project/kpath-search/pkg/vector"

// Filter narrows a result set post-search (§4.7). The domain filter is
// applied here since domains are carried directly in the index payload;
// capability filtering needs richer per-record data and is applied by the
// planner after a registry lookup.
type Filter struct {
	Domains []string
}

// apply retains results whose payload domain set intersects f.Domains. An
// empty filter passes everything through unchanged.
func (f Filter) apply(results []vector.Result) []vector.Result {
	if len(f.Domains) == 0 {
		return results
	}
	wanted := make(map[string]struct{}, len(f.Domains))
	for _, d := range f.Domains {
		wanted[d] = struct{}{}
	}

	out := results[:0]
	for _, r := range results {
		if intersects(r.Payload.Tags, wanted) {
			out = append(out, r)
		}
	}
	return out
}

func intersects(domains []string, wanted map[string]struct{}) bool {
	for _, d := range domains {
		if _, ok := wanted[d]; ok {
			return true
		}
	}
	return false
}
