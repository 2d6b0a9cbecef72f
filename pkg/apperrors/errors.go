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

// Package apperrors defines the discriminated error envelope returned by
// the search facade: every error carries a stable code, a human message,
// and whether the caller may usefully retry.
package apperrors

import "fmt"

// Code discriminates the kind of failure (§7).
type Code string

const (
	InvalidRequest  Code = "InvalidRequest"
	QueryEmpty      Code = "QueryEmpty"
	IndexNotReady   Code = "IndexNotReady"
	ModelMismatch   Code = "ModelMismatch"
	EmbeddingFailed Code = "EmbeddingFailed"
	Overloaded      Code = "Overloaded"
	Cancelled       Code = "Cancelled"
	NotFound        Code = "NotFound"
	Internal        Code = "Internal"
)

// retryable records whether a caller may usefully retry each code.
var retryable = map[Code]bool{
	InvalidRequest:  false,
	QueryEmpty:      false,
	IndexNotReady:   true,
	ModelMismatch:   true,
	EmbeddingFailed: true,
	Overloaded:      true,
	Cancelled:       false,
	NotFound:        false,
	Internal:        true,
}

// httpStatus maps each code to its HTTP status (§6.1, §7).
var httpStatus = map[Code]int{
	InvalidRequest:  400,
	QueryEmpty:      400,
	IndexNotReady:   503,
	ModelMismatch:   503,
	EmbeddingFailed: 503,
	Overloaded:      429,
	Cancelled:       499,
	NotFound:        404,
	Internal:        500,
}

// Error is the discriminated envelope error type. It wraps an optional
// underlying cause for logging while keeping the wire envelope stable.
type Error struct {
	Code      Code   `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	cause     error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Status returns the HTTP status code for this error.
func (e *Error) Status() int {
	if s, ok := httpStatus[e.Code]; ok {
		return s
	}
	return 500
}

// New constructs an Error for the given code with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:      code,
		Message:   fmt.Sprintf(format, args...),
		Retryable: retryable[code],
	}
}

// Wrap constructs an Error for the given code, attaching cause for
// unwrapping and logging while keeping Message independent of cause's text.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:      code,
		Message:   fmt.Sprintf(format, args...),
		Retryable: retryable[code],
		cause:     cause,
	}
}

// As reports whether err is (or wraps) an *Error and returns it.
func As(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	if e, ok := err.(*Error); ok {
		return e, true
	}
	if u, ok := err.(interface{ Unwrap() error }); ok {
		return As(u.Unwrap())
	}
	return nil, false
}
