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

package facade

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kpath-project/kpath-search/pkg/apperrors"
	"github.com/kpath-project/kpath-search/pkg/observability"
	"github.com/kpath-project/kpath-search/pkg/planner"
	"github.com/kpath-project/kpath-search/pkg/registry"
	"github.com/kpath-project/kpath-search/pkg/search"
	"github.com/kpath-project/kpath-search/pkg/shaper"
)

const similarDefaultLimit = 10

// Facade is the Search Facade (§4.9): it owns no state of its own beyond
// its collaborators, translating HTTP queries into Planner/Shaper calls and
// back into the wire envelope.
type Facade struct {
	planner *planner.Planner
	shaper  *shaper.Shaper
	manager *search.Manager
	reader  registry.Reader
	tracer  *observability.Tracer
	metrics *observability.Metrics
	logger  *slog.Logger
}

// New constructs a Facade. tracer and metrics may be nil, in which case the
// corresponding telemetry is skipped (§9: observability is ambient, never
// load-bearing for correctness).
func New(p *planner.Planner, s *shaper.Shaper, m *search.Manager, reader registry.Reader, tracer *observability.Tracer, metrics *observability.Metrics, logger *slog.Logger) *Facade {
	if logger == nil {
		logger = slog.Default()
	}
	return &Facade{planner: p, shaper: s, manager: m, reader: reader, tracer: tracer, metrics: metrics, logger: logger}
}

// Search validates req, dispatches it to the Planner, shapes the results,
// and logs/records the outcome (§4.9). callerID is resolved by an outer
// auth middleware and trusted as-is.
func (f *Facade) Search(ctx context.Context, req SearchRequest, callerID string) (shaper.Envelope, error) {
	start := time.Now()
	queryID := uuid.New().String()

	q, err := req.toQuery()
	if err != nil {
		f.logQuery(queryID, callerID, req.Mode, req.ResponseMode, req.Limit, 0, time.Since(start), err)
		return shaper.Envelope{}, err
	}

	ctx, span := f.tracer.StartSearch(ctx, string(q.Mode), q.ResponseMode)
	defer span.End()

	results, err := f.planner.Plan(ctx, q)
	if err != nil {
		f.tracer.RecordError(span, err)
		if f.metrics != nil {
			f.metrics.RecordSearchError(string(q.Mode), errorReason(err))
		}
		f.logQuery(queryID, callerID, string(q.Mode), q.ResponseMode, q.Limit, 0, time.Since(start), err)
		return shaper.Envelope{}, err
	}

	env, err := f.shaper.Shape(ctx, q.Text, q.Mode, shaper.ResponseMode(q.ResponseMode), results, time.Since(start))
	if err != nil {
		f.tracer.RecordError(span, err)
		f.logQuery(queryID, callerID, string(q.Mode), q.ResponseMode, q.Limit, 0, time.Since(start), err)
		return shaper.Envelope{}, apperrors.Wrap(apperrors.Internal, err, "failed to shape results")
	}

	f.tracer.AddSearchResults(span, env.TotalResults, false)
	elapsed := time.Since(start)
	if f.metrics != nil {
		f.metrics.RecordSearch(string(q.Mode), q.ResponseMode, elapsed, env.TotalResults)
	}
	f.logQuery(queryID, callerID, string(q.Mode), q.ResponseMode, q.Limit, env.TotalResults, elapsed, nil)
	return env, nil
}

// Similar finds services whose composed text is closest to serviceID's own
// (§6.1: GET /similar/{service_id}).
func (f *Facade) Similar(ctx context.Context, serviceID int64, limit int) (shaper.Envelope, error) {
	start := time.Now()
	if limit <= 0 {
		limit = similarDefaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	results, err := f.planner.PlanSimilar(ctx, serviceID, limit)
	if err != nil {
		if f.metrics != nil {
			f.metrics.RecordSearchError("similar", errorReason(err))
		}
		return shaper.Envelope{}, err
	}

	env, err := f.shaper.Shape(ctx, "", planner.AgentsOnly, shaper.Full, results, time.Since(start))
	if err != nil {
		return shaper.Envelope{}, apperrors.Wrap(apperrors.Internal, err, "failed to shape similarity results")
	}
	if f.metrics != nil {
		f.metrics.RecordSearch("similar", string(shaper.Full), time.Since(start), env.TotalResults)
	}
	return env, nil
}

// ToolDetail kinds for GET /tools/{id}/{kind} (§6.1).
type ToolDetailKind string

const (
	ToolDetails  ToolDetailKind = "details"
	ToolSchema   ToolDetailKind = "schema"
	ToolExamples ToolDetailKind = "examples"
	ToolSummary  ToolDetailKind = "summary"
)

// ToolDetail resolves a single tool projection at the requested detail
// level. The schema kind additionally canonicalizes the stored schema
// blobs via registry.CanonicalSchema.
func (f *Facade) ToolDetail(ctx context.Context, toolID int64, kind ToolDetailKind) (shaper.ToolProjection, error) {
	tool, err := f.reader.GetTool(ctx, toolID)
	if err != nil {
		return shaper.ToolProjection{}, apperrors.Wrap(apperrors.NotFound, err, "tool %d not found", toolID)
	}

	switch kind {
	case ToolSummary:
		return shaper.ToolProjection{ToolID: tool.ID, ToolName: tool.ToolName, ToolDescription: tool.ToolDescription}, nil
	case ToolSchema:
		inputSchema, err := registry.CanonicalSchema(tool.InputSchema)
		if err != nil {
			return shaper.ToolProjection{}, apperrors.Wrap(apperrors.InvalidRequest, err, "tool %d input schema is not canonicalizable", toolID)
		}
		outputSchema, err := registry.CanonicalSchema(tool.OutputSchema)
		if err != nil {
			return shaper.ToolProjection{}, apperrors.Wrap(apperrors.InvalidRequest, err, "tool %d output schema is not canonicalizable", toolID)
		}
		return shaper.ToolProjection{ToolID: tool.ID, ToolName: tool.ToolName, InputSchema: inputSchema, OutputSchema: outputSchema}, nil
	case ToolExamples:
		examples, _ := tool.ExampleCalls.MarshalJSON()
		return shaper.ToolProjection{ToolID: tool.ID, ToolName: tool.ToolName, ExampleCalls: examples}, nil
	default: // ToolDetails: everything, full fidelity.
		examples, _ := tool.ExampleCalls.MarshalJSON()
		return shaper.ToolProjection{
			ToolID:          tool.ID,
			ToolName:        tool.ToolName,
			ToolDescription: tool.ToolDescription,
			ToolVersion:     tool.ToolVersion,
			InputSchema:     tool.InputSchema,
			OutputSchema:    tool.OutputSchema,
			ExampleCalls:    examples,
		}, nil
	}
}

// Status reports the Search Manager's lifecycle state (§6.1: GET /status).
func (f *Facade) Status() search.Status {
	return f.manager.Status()
}

// RebuildTarget names which index(es) an admin rebuild request covers.
type RebuildTarget string

const (
	RebuildServices RebuildTarget = "services"
	RebuildTools    RebuildTarget = "tools"
	RebuildAll      RebuildTarget = "all"
)

// Rebuild kicks off an asynchronous rebuild and returns immediately; the
// caller observes progress via Status (§6.1: POST /rebuild responds
// {"accepted": true} without waiting for completion).
func (f *Facade) Rebuild(target RebuildTarget) {
	go func() {
		ctx := context.Background()
		var err error
		switch target {
		case RebuildServices:
			err = f.manager.RebuildServices(ctx)
		case RebuildTools:
			err = f.manager.RebuildTools(ctx)
		default:
			err = f.manager.BuildAll(ctx)
		}
		if err != nil {
			f.logger.Error("rebuild failed", "target", target, "error", err)
		}
	}()
}

// Initialize triggers the initial index build if the manager has never
// built one (§6.1: POST /initialize). It is idempotent: a manager that is
// already Ready or Rebuilding is left alone.
func (f *Facade) Initialize() {
	status := f.manager.Status()
	if status.State == search.Ready || status.State == search.Rebuilding || status.State == search.Loading {
		return
	}
	f.Rebuild(RebuildAll)
}

func errorReason(err error) string {
	if e, ok := apperrors.As(err); ok {
		return string(e.Code)
	}
	return "internal_error"
}

// logQuery emits the one structured log record per query the facade owns
// (§4.9): {query_id, caller_id, mode, response_mode, limit, total_results,
// search_time_ms, error?}. query_id is a fresh correlation id per request,
// not persisted, only useful for tying a log line to the matching trace span.
func (f *Facade) logQuery(queryID, callerID, mode, responseMode string, limit, totalResults int, elapsed time.Duration, err error) {
	attrs := []any{
		"query_id", queryID,
		"caller_id", callerID,
		"mode", mode,
		"response_mode", responseMode,
		"limit", limit,
		"total_results", totalResults,
		"search_time_ms", elapsed.Milliseconds(),
	}
	if err != nil {
		attrs = append(attrs, "error", err.Error())
		f.logger.Error("search query", attrs...)
		return
	}
	f.logger.Info("search query", attrs...)
}
