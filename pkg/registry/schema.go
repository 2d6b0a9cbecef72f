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

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// CanonicalSchema normalizes an ad hoc input_schema/output_schema blob into
// a canonical JSON Schema document, for GET /tools/{id}/schema (§6.1). The
// registry stores these as free-form json.RawMessage since the core has no
// opinion on their shape; this is the one place that imposes JSON Schema
// structure on them, by round-tripping through jsonschema.Schema so that
// unrecognized keys are dropped and the $schema/$id draft markers are
// filled in consistently regardless of what the registry happened to store.
func CanonicalSchema(raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var schema jsonschema.Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, fmt.Errorf("not a valid JSON Schema document: %w", err)
	}

	canonical, err := json.Marshal(&schema)
	if err != nil {
		return nil, fmt.Errorf("marshal canonical schema: %w", err)
	}
	return canonical, nil
}
