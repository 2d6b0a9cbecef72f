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

// Package search owns the two vector indexes (services, tools) and their
// lifecycle: initial load or build, rebuilds, single-record upserts and
// deletes, and the top-k search primitives the planner composes into
// ranked results (§4.6).
package search

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kpath-project/kpath-search/pkg/apperrors"
	"github.com/kpath-project/kpath-search/pkg/embedding"
	"github.com/kpath-project/kpath-search/pkg/registry"
	"github.com/kpath-project/kpath-search/pkg/snapshot"
	"github.com/kpath-project/kpath-search/pkg/text"
	"github.com/kpath-project/kpath-search/pkg/vector"
)

// State is a build lifecycle state (§4.6).
type State string

const (
	Uninitialized State = "uninitialized"
	Loading       State = "loading"
	Ready         State = "ready"
	Rebuilding    State = "rebuilding"
	Failed        State = "failed"
)

// batchSize is the number of records embedded per backend call during a
// full rebuild (§4.6).
const batchSize = 64

// Status is the snapshot of manager health returned by Status().
type Status struct {
	State        State     `json:"state"`
	ServiceCount int       `json:"svc_count"`
	ToolCount    int       `json:"tool_count"`
	Model        string    `json:"model"`
	Dim          int       `json:"dim"`
	LastBuiltAt  time.Time `json:"last_built_at"`
	LastError    string    `json:"last_error,omitempty"`
}

// Manager owns the services and tools indexes, their snapshot persistence,
// and the single-writer build discipline per index (§5).
type Manager struct {
	reader   registry.Reader
	provider embedding.Provider
	dir      string
	logger   *slog.Logger

	servicesIndex *vector.Index
	toolsIndex    *vector.Index

	// toolsByService caches each tool's parent service id for cascade
	// deletes; it is maintained alongside toolsIndex and never consulted
	// on the query hot path.
	mu             sync.RWMutex
	toolsByService map[int64][]int64

	state       State
	stateMu     sync.Mutex
	lastBuiltAt time.Time
	lastError   error

	servicesBuildMu  sync.Mutex
	toolsBuildMu     sync.Mutex
	servicesInFlight *buildFuture
	toolsInFlight    *buildFuture
}

// buildFuture coalesces concurrent rebuild requests into a single
// in-flight build (§4.6: "a second request is coalesced").
type buildFuture struct {
	done chan struct{}
	err  error
}

func (f *buildFuture) wait() error {
	<-f.done
	return f.err
}

// New constructs a Manager bound to a registry reader and embedding
// provider. Both indexes start empty; call Start to attempt a snapshot
// load or schedule a build.
func New(reader registry.Reader, provider embedding.Provider, snapshotDir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		reader:         reader,
		provider:       provider,
		dir:            snapshotDir,
		logger:         logger,
		servicesIndex:  vector.New(provider.Identifier(), provider.Dim()),
		toolsIndex:     vector.New(provider.Identifier(), provider.Dim()),
		toolsByService: make(map[int64][]int64),
		state:          Uninitialized,
	}
}

func (m *Manager) setState(s State) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	m.state = s
}

func (m *Manager) setFailed(err error) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	m.state = Failed
	m.lastError = err
}

// Start attempts to load both indexes from their snapshots. On success the
// manager becomes Ready immediately. On a missing snapshot or a model/dim
// mismatch it schedules a background BuildAll and leaves the manager in
// Loading until that completes (§4.6).
func (m *Manager) Start(ctx context.Context) {
	m.setState(Loading)

	servicesOK := m.tryLoad(ctx, "services", m.servicesIndex)
	toolsOK := m.tryLoad(ctx, "tools", m.toolsIndex)

	if servicesOK && toolsOK {
		m.rebuildToolsByService()
		m.stateMu.Lock()
		m.state = Ready
		m.lastBuiltAt = time.Now().UTC()
		m.stateMu.Unlock()
		return
	}

	go func() {
		if err := m.BuildAll(context.Background()); err != nil {
			m.logger.Error("initial build failed", "error", err)
		}
	}()
}

func (m *Manager) tryLoad(ctx context.Context, name string, idx *vector.Index) bool {
	entries, _, err := snapshot.Load(m.dir, name, idx.Model(), idx.Dim())
	if err != nil {
		m.logger.Info("snapshot unavailable, will rebuild", "index", name, "error", err)
		return false
	}
	idx.Load(entries)
	return true
}

// Status reports the manager's current lifecycle state and index sizes.
func (m *Manager) Status() Status {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	s := Status{
		State:        m.state,
		ServiceCount: m.servicesIndex.Size(),
		ToolCount:    m.toolsIndex.Size(),
		Model:        m.provider.Identifier(),
		Dim:          m.provider.Dim(),
		LastBuiltAt:  m.lastBuiltAt,
	}
	if m.lastError != nil {
		s.LastError = m.lastError.Error()
	}
	return s
}

// ready reports whether queries may be served: the manager has completed
// at least one build (Ready or Rebuilding, since Rebuilding still serves
// off the pre-rebuild snapshot). Callers check separately that the index
// they search is non-empty.
func (m *Manager) ready() error {
	m.stateMu.Lock()
	state := m.state
	m.stateMu.Unlock()

	switch state {
	case Ready, Rebuilding:
		return nil
	case Failed:
		return apperrors.New(apperrors.IndexNotReady, "last build failed: %v", m.lastError)
	default:
		return apperrors.New(apperrors.IndexNotReady, "index is still loading")
	}
}

// BuildAll rebuilds both indexes from the registry. Idempotent: callers
// may invoke it repeatedly and overlapping calls are coalesced. The
// provider is fit once, up front, from the union of both corpora, so a
// lexical backend sees the same vocabulary building either index.
func (m *Manager) BuildAll(ctx context.Context) error {
	if err := m.fitProvider(ctx); err != nil {
		m.setFailed(err)
		return fmt.Errorf("fit embedding provider: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return m.rebuild(gctx, &m.servicesBuildMu, &m.servicesInFlight, "services", m.servicesIndex, m.buildServicesFresh)
	})
	g.Go(func() error {
		return m.rebuild(gctx, &m.toolsBuildMu, &m.toolsInFlight, "tools", m.toolsIndex, m.buildToolsFresh)
	})
	if err := g.Wait(); err != nil {
		m.setFailed(err)
		return err
	}

	m.rebuildToolsByService()
	m.stateMu.Lock()
	if m.state != Failed {
		m.state = Ready
		m.lastBuiltAt = time.Now().UTC()
	}
	m.stateMu.Unlock()
	return nil
}

// RebuildServices rebuilds the services index from the registry.
func (m *Manager) RebuildServices(ctx context.Context) error {
	if err := m.fitProvider(ctx); err != nil {
		return fmt.Errorf("fit embedding provider: %w", err)
	}
	return m.rebuild(ctx, &m.servicesBuildMu, &m.servicesInFlight, "services", m.servicesIndex, m.buildServicesFresh)
}

// RebuildTools rebuilds the tools index from the registry.
func (m *Manager) RebuildTools(ctx context.Context) error {
	if err := m.fitProvider(ctx); err != nil {
		return fmt.Errorf("fit embedding provider: %w", err)
	}
	return m.rebuild(ctx, &m.toolsBuildMu, &m.toolsInFlight, "tools", m.toolsIndex, m.buildToolsFresh)
}

// fitProvider refits the provider's vocabulary from the full composed
// corpus (services and tools) before any Embed call, when the provider
// chain bottoms out at a Fitter (the lexical backend). A no-op for a
// non-fitting backend (the neural provider). Called on every rebuild
// rather than once at startup so the lexical vocabulary always reflects
// the current registry content, not just the content at process start.
func (m *Manager) fitProvider(ctx context.Context) error {
	fitter, ok := m.provider.(embedding.Fitter)
	if !ok {
		return nil
	}

	var documents []string
	serviceNames := make(map[int64]string)
	if err := m.reader.IterActiveServices(ctx, func(s registry.ServiceRecord) error {
		serviceNames[s.ID] = s.Name
		documents = append(documents, text.ComposeService(s))
		return nil
	}); err != nil {
		return fmt.Errorf("iterate services: %w", err)
	}
	if err := m.reader.IterActiveTools(ctx, func(t registry.ToolRecord) error {
		if !t.IsActive {
			return nil
		}
		documents = append(documents, text.ComposeTool(t, serviceNames[t.ServiceID]))
		return nil
	}); err != nil {
		return fmt.Errorf("iterate tools: %w", err)
	}

	return fitter.Fit(documents)
}

// rebuild implements the coalescing single-writer-per-index discipline: if
// a build is already in flight for this index, the caller waits on it
// instead of starting a second one (§4.6, §5).
func (m *Manager) rebuild(ctx context.Context, mu *sync.Mutex, inFlight **buildFuture, name string, idx *vector.Index, build func(context.Context) ([]vector.Entry, error)) error {
	mu.Lock()
	if *inFlight != nil {
		f := *inFlight
		mu.Unlock()
		return f.wait()
	}
	f := &buildFuture{done: make(chan struct{})}
	*inFlight = f
	mu.Unlock()

	prevState := m.currentState()
	if prevState == Loading {
		m.setState(Loading)
	} else {
		m.setState(Rebuilding)
	}

	entries, err := build(ctx)
	if err == nil {
		idx.Load(entries)
		err = snapshot.Save(m.dir, name, idx, time.Now().UTC())
	}

	mu.Lock()
	*inFlight = nil
	mu.Unlock()

	f.err = err
	close(f.done)

	if err != nil {
		m.logger.Error("rebuild failed", "index", name, "error", err)
		m.setState(prevState)
		return err
	}
	m.logger.Info("rebuild complete", "index", name, "count", len(entries))
	if prevState == Ready {
		m.setState(Ready)
	}
	return nil
}

func (m *Manager) currentState() State {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	if m.state == Uninitialized {
		return Loading
	}
	return m.state
}

func (m *Manager) buildServicesFresh(ctx context.Context) ([]vector.Entry, error) {
	var records []registry.ServiceRecord
	err := m.reader.IterActiveServices(ctx, func(s registry.ServiceRecord) error {
		records = append(records, s)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate services: %w", err)
	}

	texts := make([]string, len(records))
	for i, s := range records {
		texts[i] = text.ComposeService(s)
	}

	vectors, err := embedBatches(ctx, m.provider, texts)
	if err != nil {
		return nil, err
	}

	entries := make([]vector.Entry, len(records))
	for i, s := range records {
		entries[i] = vector.Entry{
			ExternalID: s.ID,
			Vector:     vectors[i],
			Payload: vector.Payload{
				Name:        s.Name,
				Description: s.Description,
				Tags:        s.Domains,
			},
		}
	}
	return entries, nil
}

func (m *Manager) buildToolsFresh(ctx context.Context) ([]vector.Entry, error) {
	serviceNames := make(map[int64]string)
	if err := m.reader.IterActiveServices(ctx, func(s registry.ServiceRecord) error {
		serviceNames[s.ID] = s.Name
		return nil
	}); err != nil {
		return nil, fmt.Errorf("iterate services for tool composition: %w", err)
	}

	var records []registry.ToolRecord
	if err := m.reader.IterActiveTools(ctx, func(t registry.ToolRecord) error {
		if !t.IsActive {
			return nil
		}
		records = append(records, t)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("iterate tools: %w", err)
	}

	texts := make([]string, len(records))
	for i, t := range records {
		texts[i] = text.ComposeTool(t, serviceNames[t.ServiceID])
	}

	vectors, err := embedBatches(ctx, m.provider, texts)
	if err != nil {
		return nil, err
	}

	entries := make([]vector.Entry, len(records))
	for i, t := range records {
		entries[i] = vector.Entry{
			ExternalID: t.ID,
			Vector:     vectors[i],
			Payload: vector.Payload{
				Name:        t.ToolName,
				Description: t.ToolDescription,
				ParentID:    t.ServiceID,
			},
		}
	}
	return entries, nil
}

// embedBatches embeds texts in fixed-size batches (§4.6: 64) so a single
// huge rebuild never sends one oversized request to the backend.
func embedBatches(ctx context.Context, provider embedding.Provider, texts []string) ([]embedding.Vector, error) {
	out := make([]embedding.Vector, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := provider.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch [%d:%d]: %w", start, end, err)
		}
		copy(out[start:end], vectors)
	}
	return out, nil
}

func (m *Manager) rebuildToolsByService() {
	entries := m.toolsIndex.Export()
	next := make(map[int64][]int64, len(entries))
	for _, e := range entries {
		next[e.Payload.ParentID] = append(next[e.Payload.ParentID], e.ExternalID)
	}
	m.mu.Lock()
	m.toolsByService = next
	m.mu.Unlock()
}

// UpsertService re-reads a single service and replaces its row in the
// services index (§4.6).
func (m *Manager) UpsertService(ctx context.Context, id int64) error {
	s, err := m.reader.GetService(ctx, id)
	if err != nil {
		return apperrors.Wrap(apperrors.NotFound, err, "service %d", id)
	}
	if !s.IsActive() {
		return m.DeleteService(id)
	}

	vec, err := embedOne(ctx, m.provider, text.ComposeService(s))
	if err != nil {
		return err
	}
	return m.servicesIndex.Replace(id, vec, vector.Payload{Name: s.Name, Description: s.Description, Tags: s.Domains})
}

// UpsertTool re-reads a single tool and replaces its row in the tools
// index (§4.6).
func (m *Manager) UpsertTool(ctx context.Context, id int64) error {
	t, err := m.reader.GetTool(ctx, id)
	if err != nil {
		return apperrors.Wrap(apperrors.NotFound, err, "tool %d", id)
	}
	if !t.IsActive {
		return m.DeleteTool(id)
	}

	parentName := ""
	if s, err := m.reader.GetService(ctx, t.ServiceID); err == nil {
		parentName = s.Name
	}

	vec, err := embedOne(ctx, m.provider, text.ComposeTool(t, parentName))
	if err != nil {
		return err
	}
	if err := m.toolsIndex.Replace(id, vec, vector.Payload{Name: t.ToolName, Description: t.ToolDescription, ParentID: t.ServiceID}); err != nil {
		return err
	}

	m.mu.Lock()
	m.toolsByService[t.ServiceID] = appendUnique(m.toolsByService[t.ServiceID], id)
	m.mu.Unlock()
	return nil
}

// DeleteService removes a service and cascades to its tools (§4.6).
func (m *Manager) DeleteService(id int64) error {
	if err := m.servicesIndex.Remove(id); err != nil {
		return err
	}

	m.mu.Lock()
	toolIDs := m.toolsByService[id]
	delete(m.toolsByService, id)
	m.mu.Unlock()

	for _, toolID := range toolIDs {
		if err := m.toolsIndex.Remove(toolID); err != nil {
			return err
		}
	}
	return nil
}

// DeleteTool removes a single tool.
func (m *Manager) DeleteTool(id int64) error {
	entries := m.toolsIndex.Export()
	var parentID int64
	for _, e := range entries {
		if e.ExternalID == id {
			parentID = e.Payload.ParentID
			break
		}
	}
	if err := m.toolsIndex.Remove(id); err != nil {
		return err
	}

	m.mu.Lock()
	m.toolsByService[parentID] = removeID(m.toolsByService[parentID], id)
	m.mu.Unlock()
	return nil
}

// SearchServices returns the top-k services ranked by cosine similarity to
// queryVec. Filters, if non-nil, narrow the result set before truncation.
func (m *Manager) SearchServices(queryVec []float32, k int, filter Filter) ([]vector.Result, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	if m.servicesIndex.Size() == 0 {
		return nil, apperrors.New(apperrors.IndexNotReady, "services index is empty")
	}
	results, err := m.servicesIndex.Search(queryVec, -1)
	if err != nil {
		return nil, err
	}
	results = filter.apply(results)
	if k >= 0 && k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// SearchTools returns the top-k tools ranked by cosine similarity. Each
// result's Payload.ParentID carries the owning service id.
func (m *Manager) SearchTools(queryVec []float32, k int, filter Filter) ([]vector.Result, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	if m.toolsIndex.Size() == 0 {
		return nil, apperrors.New(apperrors.IndexNotReady, "tools index is empty")
	}
	results, err := m.toolsIndex.Search(queryVec, -1)
	if err != nil {
		return nil, err
	}
	results = filter.apply(results)
	if k >= 0 && k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// ToolsForService returns the external ids of the tools currently indexed
// under parentID, used by the workflows mode to attach a multi-tool
// bundle to its owning service.
func (m *Manager) ToolsForService(parentID int64) []int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.toolsByService[parentID]
	out := make([]int64, len(ids))
	copy(out, ids)
	return out
}

func embedOne(ctx context.Context, provider embedding.Provider, composed string) (embedding.Vector, error) {
	vectors, err := provider.Embed(ctx, []string{composed})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func appendUnique(ids []int64, id int64) []int64 {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func removeID(ids []int64, id int64) []int64 {
	out := ids[:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}
