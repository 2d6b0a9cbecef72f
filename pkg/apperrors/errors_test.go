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

package apperrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSetsRetryableAndStatus(t *testing.T) {
	cases := []struct {
		code      Code
		status    int
		retryable bool
	}{
		{InvalidRequest, 400, false},
		{QueryEmpty, 400, false},
		{IndexNotReady, 503, true},
		{ModelMismatch, 503, true},
		{EmbeddingFailed, 503, true},
		{Overloaded, 429, true},
		{Cancelled, 499, false},
		{NotFound, 404, false},
		{Internal, 500, true},
	}

	for _, tc := range cases {
		err := New(tc.code, "boom")
		assert.Equalf(t, tc.retryable, err.Retryable, "%s retryable", tc.code)
		assert.Equalf(t, tc.status, err.Status(), "%s status", tc.code)
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Wrap(EmbeddingFailed, cause, "embed batch failed")

	require.True(t, errors.Is(err, cause), "errors.Is did not find wrapped cause")
	assert.Equal(t, "embed batch failed", err.Message)
}

func TestAsFindsDiscriminatedError(t *testing.T) {
	inner := New(NotFound, "tool %d not found", 42)
	wrapped := errors.New("outer context")

	_, ok := As(wrapped)
	assert.False(t, ok, "expected As to fail on a plain error")

	found, ok := As(inner)
	require.True(t, ok)
	assert.Equal(t, NotFound, found.Code)
}
