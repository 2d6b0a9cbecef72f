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
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kpath-project/kpath-search/pkg/apperrors"
)

// SQLiteReader is a reference Registry Reader backed by a local SQLite
// database. Production deployments are expected to supply their own Reader
// over the real relational registry (§1: out of scope); this backend
// exists so the rest of the module can be exercised end to end without one.
type SQLiteReader struct {
	db *sql.DB
}

// NewSQLiteReader opens (or creates) a SQLite database at dsn and ensures
// its schema exists.
func NewSQLiteReader(dsn string) (*SQLiteReader, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite registry %s: %w", dsn, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite registry %s: %w", dsn, err)
	}
	r := &SQLiteReader{db: db}
	if err := r.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *SQLiteReader) ensureSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS services (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'active',
	tool_type TEXT NOT NULL DEFAULT '',
	visibility TEXT NOT NULL DEFAULT '',
	endpoint TEXT NOT NULL DEFAULT '',
	version TEXT NOT NULL DEFAULT '',
	interaction_modes TEXT NOT NULL DEFAULT '[]',
	agent_protocol TEXT NOT NULL DEFAULT 'null',
	auth_type TEXT NOT NULL DEFAULT '',
	auth_config TEXT NOT NULL DEFAULT 'null',
	tool_recommendations TEXT NOT NULL DEFAULT 'null',
	agent_capabilities TEXT NOT NULL DEFAULT 'null',
	communication_patterns TEXT NOT NULL DEFAULT 'null',
	orchestration_metadata TEXT NOT NULL DEFAULT 'null',
	integration_details TEXT NOT NULL DEFAULT 'null'
);
CREATE TABLE IF NOT EXISTS service_domains (
	service_id INTEGER NOT NULL REFERENCES services(id),
	domain TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS capabilities (
	id INTEGER PRIMARY KEY,
	service_id INTEGER NOT NULL REFERENCES services(id),
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	input_schema TEXT NOT NULL DEFAULT 'null',
	output_schema TEXT NOT NULL DEFAULT 'null'
);
CREATE TABLE IF NOT EXISTS tools (
	id INTEGER PRIMARY KEY,
	service_id INTEGER NOT NULL REFERENCES services(id),
	tool_name TEXT NOT NULL,
	tool_description TEXT NOT NULL DEFAULT '',
	input_schema TEXT NOT NULL DEFAULT 'null',
	output_schema TEXT NOT NULL DEFAULT 'null',
	example_calls TEXT NOT NULL DEFAULT '[]',
	tool_version TEXT NOT NULL DEFAULT '',
	is_active INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_services_status ON services(status);
CREATE INDEX IF NOT EXISTS idx_tools_active ON tools(is_active);
CREATE INDEX IF NOT EXISTS idx_tools_service ON tools(service_id);
`
	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("create registry schema: %w", err)
	}
	return nil
}

func (r *SQLiteReader) IterActiveServices(ctx context.Context, fn func(ServiceRecord) error) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, status, tool_type, visibility, endpoint, version,
		       interaction_modes, agent_protocol, auth_type, auth_config, tool_recommendations,
		       agent_capabilities, communication_patterns, orchestration_metadata, integration_details
		FROM services WHERE status = 'active' ORDER BY id`)
	if err != nil {
		return fmt.Errorf("query active services: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var svc ServiceRecord
		var interactionModes string
		if err := rows.Scan(&svc.ID, &svc.Name, &svc.Description, &svc.Status, &svc.ToolType,
			&svc.Visibility, &svc.Endpoint, &svc.Version, &interactionModes,
			&svc.AgentProtocol, &svc.AuthType, &svc.AuthConfig, &svc.ToolRecommendations,
			&svc.AgentCapabilities, &svc.CommunicationPatterns, &svc.OrchestrationMetadata,
			&svc.IntegrationDetails); err != nil {
			return fmt.Errorf("scan service row: %w", err)
		}
		_ = json.Unmarshal([]byte(interactionModes), &svc.InteractionModes)

		if svc.Domains, err = r.domainsFor(ctx, svc.ID); err != nil {
			return err
		}
		if svc.Capabilities, err = r.capabilitiesFor(ctx, svc.ID); err != nil {
			return err
		}

		if err := fn(svc); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *SQLiteReader) domainsFor(ctx context.Context, serviceID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT domain FROM service_domains WHERE service_id = ?`, serviceID)
	if err != nil {
		return nil, fmt.Errorf("query domains for service %d: %w", serviceID, err)
	}
	defer rows.Close()

	var domains []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan domain row: %w", err)
		}
		domains = append(domains, d)
	}
	return domains, rows.Err()
}

func (r *SQLiteReader) capabilitiesFor(ctx context.Context, serviceID int64) ([]Capability, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, input_schema, output_schema
		FROM capabilities WHERE service_id = ? ORDER BY id`, serviceID)
	if err != nil {
		return nil, fmt.Errorf("query capabilities for service %d: %w", serviceID, err)
	}
	defer rows.Close()

	var caps []Capability
	for rows.Next() {
		var c Capability
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.InputSchema, &c.OutputSchema); err != nil {
			return nil, fmt.Errorf("scan capability row: %w", err)
		}
		caps = append(caps, c)
	}
	return caps, rows.Err()
}

func (r *SQLiteReader) IterActiveTools(ctx context.Context, fn func(ToolRecord) error) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.id, t.service_id, t.tool_name, t.tool_description, t.input_schema,
		       t.output_schema, t.example_calls, t.tool_version, t.is_active
		FROM tools t
		JOIN services s ON s.id = t.service_id
		WHERE t.is_active = 1 AND s.status = 'active'
		ORDER BY t.id`)
	if err != nil {
		return fmt.Errorf("query active tools: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		tool, err := scanTool(rows)
		if err != nil {
			return err
		}
		if err := fn(tool); err != nil {
			return err
		}
	}
	return rows.Err()
}

func scanTool(rows *sql.Rows) (ToolRecord, error) {
	var t ToolRecord
	var exampleCalls string
	var isActive int
	if err := rows.Scan(&t.ID, &t.ServiceID, &t.ToolName, &t.ToolDescription, &t.InputSchema,
		&t.OutputSchema, &exampleCalls, &t.ToolVersion, &isActive); err != nil {
		return ToolRecord{}, fmt.Errorf("scan tool row: %w", err)
	}
	t.IsActive = isActive != 0
	if err := json.Unmarshal([]byte(exampleCalls), &t.ExampleCalls); err != nil {
		return ToolRecord{}, fmt.Errorf("tool %d: %w", t.ID, err)
	}
	return t, nil
}

func (r *SQLiteReader) GetService(ctx context.Context, id int64) (ServiceRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, status, tool_type, visibility, endpoint, version,
		       interaction_modes, agent_protocol, auth_type, auth_config, tool_recommendations,
		       agent_capabilities, communication_patterns, orchestration_metadata, integration_details
		FROM services WHERE id = ?`, id)

	var svc ServiceRecord
	var interactionModes string
	err := row.Scan(&svc.ID, &svc.Name, &svc.Description, &svc.Status, &svc.ToolType,
		&svc.Visibility, &svc.Endpoint, &svc.Version, &interactionModes,
		&svc.AgentProtocol, &svc.AuthType, &svc.AuthConfig, &svc.ToolRecommendations,
		&svc.AgentCapabilities, &svc.CommunicationPatterns, &svc.OrchestrationMetadata,
		&svc.IntegrationDetails)
	if err == sql.ErrNoRows {
		return ServiceRecord{}, apperrors.New(apperrors.NotFound, "service %d not found", id)
	}
	if err != nil {
		return ServiceRecord{}, fmt.Errorf("get service %d: %w", id, err)
	}
	_ = json.Unmarshal([]byte(interactionModes), &svc.InteractionModes)

	if svc.Domains, err = r.domainsFor(ctx, svc.ID); err != nil {
		return ServiceRecord{}, err
	}
	if svc.Capabilities, err = r.capabilitiesFor(ctx, svc.ID); err != nil {
		return ServiceRecord{}, err
	}
	return svc, nil
}

func (r *SQLiteReader) GetTool(ctx context.Context, id int64) (ToolRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, service_id, tool_name, tool_description, input_schema,
		       output_schema, example_calls, tool_version, is_active
		FROM tools WHERE id = ?`, id)
	if err != nil {
		return ToolRecord{}, fmt.Errorf("get tool %d: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return ToolRecord{}, apperrors.New(apperrors.NotFound, "tool %d not found", id)
	}
	return scanTool(rows)
}

func (r *SQLiteReader) Close() error {
	return r.db.Close()
}
