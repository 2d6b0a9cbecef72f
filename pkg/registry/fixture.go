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
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/kpath-project/kpath-search/pkg/apperrors"
)

// FixtureReader is a reference Registry Reader backed by two flat JSON
// files in a directory: services.json (a []ServiceRecord) and tools.json
// (a []ToolRecord). It is meant for local development and tests where
// standing up SQLiteReader is unnecessary ceremony.
//
// When Watch is started, edits to either file trigger onChange so the
// Search Manager can schedule a rebuild, mirroring the way a real registry
// would publish a change notification (§9: global process state).
type FixtureReader struct {
	dir string

	mu       sync.RWMutex
	services map[int64]ServiceRecord
	tools    map[int64]ToolRecord

	watcher *fsnotify.Watcher
}

// NewFixtureReader loads services.json and tools.json from dir.
func NewFixtureReader(dir string) (*FixtureReader, error) {
	r := &FixtureReader{dir: dir}
	if err := r.reload(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *FixtureReader) reload() error {
	services, err := loadJSONSlice[ServiceRecord](filepath.Join(r.dir, "services.json"))
	if err != nil {
		return fmt.Errorf("load services fixture: %w", err)
	}
	tools, err := loadJSONSlice[ToolRecord](filepath.Join(r.dir, "tools.json"))
	if err != nil {
		return fmt.Errorf("load tools fixture: %w", err)
	}

	serviceByID := make(map[int64]ServiceRecord, len(services))
	for _, s := range services {
		serviceByID[s.ID] = s
	}
	toolByID := make(map[int64]ToolRecord, len(tools))
	for _, t := range tools {
		toolByID[t.ID] = t
	}

	r.mu.Lock()
	r.services = serviceByID
	r.tools = toolByID
	r.mu.Unlock()
	return nil
}

func loadJSONSlice[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

func (r *FixtureReader) IterActiveServices(_ context.Context, fn func(ServiceRecord) error) error {
	r.mu.RLock()
	snapshot := make([]ServiceRecord, 0, len(r.services))
	for _, s := range r.services {
		if s.IsActive() {
			snapshot = append(snapshot, s)
		}
	}
	r.mu.RUnlock()

	for _, s := range snapshot {
		if err := fn(s); err != nil {
			return err
		}
	}
	return nil
}

func (r *FixtureReader) IterActiveTools(_ context.Context, fn func(ToolRecord) error) error {
	r.mu.RLock()
	active := make(map[int64]bool, len(r.services))
	for id, s := range r.services {
		active[id] = s.IsActive()
	}
	snapshot := make([]ToolRecord, 0, len(r.tools))
	for _, t := range r.tools {
		if t.IsActive && active[t.ServiceID] {
			snapshot = append(snapshot, t)
		}
	}
	r.mu.RUnlock()

	for _, t := range snapshot {
		if err := fn(t); err != nil {
			return err
		}
	}
	return nil
}

func (r *FixtureReader) GetService(_ context.Context, id int64) (ServiceRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.services[id]
	if !ok {
		return ServiceRecord{}, apperrors.New(apperrors.NotFound, "service %d not found", id)
	}
	return s, nil
}

func (r *FixtureReader) GetTool(_ context.Context, id int64) (ToolRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[id]
	if !ok {
		return ToolRecord{}, apperrors.New(apperrors.NotFound, "tool %d not found", id)
	}
	return t, nil
}

// Watch watches the fixture directory for writes and invokes onChange
// after each successful reload. Blocks until ctx is cancelled.
func (r *FixtureReader) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fixture watcher: %w", err)
	}
	r.watcher = watcher
	defer watcher.Close()

	if err := watcher.Add(r.dir); err != nil {
		return fmt.Errorf("watch fixture dir %s: %w", r.dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := r.reload(); err != nil {
				slog.Error("failed to reload registry fixture", "error", err)
				continue
			}
			if onChange != nil {
				onChange()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("fixture watcher error", "error", err)
		}
	}
}

func (r *FixtureReader) Close() error {
	if r.watcher != nil {
		return r.watcher.Close()
	}
	return nil
}
