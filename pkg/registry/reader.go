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

package registry

import "context"

// Reader is the read-only projection over the external registry (§4.5).
// It is the only component that talks to the registry; every other
// component in the module takes records by value.
type Reader interface {
	// IterActiveServices streams each active service with its capabilities
	// and domains pre-joined, calling fn for each. Iteration stops and
	// returns fn's error if fn returns one.
	IterActiveServices(ctx context.Context, fn func(ServiceRecord) error) error

	// IterActiveTools streams each active tool of each active service,
	// calling fn for each. Iteration stops and returns fn's error if fn
	// returns one.
	IterActiveTools(ctx context.Context, fn func(ToolRecord) error) error

	// GetService performs a point lookup by id, used by detail endpoints.
	GetService(ctx context.Context, id int64) (ServiceRecord, error)

	// GetTool performs a point lookup by id, used by detail endpoints.
	GetTool(ctx context.Context, id int64) (ToolRecord, error)

	// Close releases resources held by the reader (connections, watchers).
	Close() error
}
