/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package errdefs defines the error taxonomy surfaced by the inspection
// pipeline. Most errors a caller can observe from pkg/inspector are one of
// the sentinels below, optionally wrapped with github.com/pkg/errors for
// context; Next also returns io.EOF unwrapped once a trace file is
// exhausted, and a few argument checks return plain errors.
package errdefs

import (
	"github.com/pkg/errors"
)

var (
	// ErrSourceOpen is returned when a capture source (live driver or trace
	// file) cannot be opened: bad path, permission denied, driver absent.
	ErrSourceOpen = errors.New("capture source open failed")
	// ErrSourceDecode is returned on a malformed raw event frame. Fatal for
	// file sources; counted and skipped for live sources.
	ErrSourceDecode = errors.New("malformed capture frame")
	// ErrCaptureInterrupted is returned by Next() once Close() has
	// interrupted a blocked pull, and by every subsequent Next() call.
	ErrCaptureInterrupted = errors.New("capture interrupted")
	// ErrFilterCompile is returned by Compile() on an invalid expression.
	// Use AsCompileError to retrieve position information.
	ErrFilterCompile = errors.New("filter compile error")
	// ErrConfigLocked is returned by configuration setters that are only
	// valid before a capture has been opened.
	ErrConfigLocked = errors.New("configuration locked after capture start")
	// ErrLookupFailed is returned when a thread or FD lookup misses and the
	// caller did not request synthesis.
	ErrLookupFailed = errors.New("lookup failed")
	// ErrDumpIo is returned on a dump write or rotation failure.
	ErrDumpIo = errors.New("dump i/o error")
	// ErrFatal marks a broken invariant. No code path in this module
	// returns it, and the inspector does not latch it or close on it.
	ErrFatal = errors.New("fatal inspector error")

	// ErrAlreadyExists mirrors a record already present where uniqueness is
	// required (e.g. double-insert of a thread id).
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotFound is the generic "no such record" sentinel used by
	// registries that don't need the richer ErrLookupFailed semantics.
	ErrNotFound = errors.New("not found")
)

// CompileError carries the position of a filter syntax error, pointing past
// the last consumed token as required by the filter-gate contract.
type CompileError struct {
	Pos int
	Msg string
}

func (e *CompileError) Error() string {
	return e.Msg
}

func (e *CompileError) Is(target error) bool {
	return target == ErrFilterCompile //nolint:errorlint
}

func (e *CompileError) Unwrap() error {
	return ErrFilterCompile
}

// NewFilterCompileError builds an error for which both errors.Is(err,
// ErrFilterCompile) and errors.As(err, &compileErr) succeed.
func NewFilterCompileError(pos int, msg string) error {
	return &CompileError{Pos: pos, Msg: msg}
}

// AsCompileError extracts the *CompileError from an error returned by
// Compile, if any.
func AsCompileError(err error) (*CompileError, bool) {
	var c *CompileError
	if errors.As(err, &c) {
		return c, true
	}
	return nil, false
}

// IsAlreadyExists returns true if err is or wraps ErrAlreadyExists.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsNotFound returns true if err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConfigLocked returns true if err is or wraps ErrConfigLocked.
func IsConfigLocked(err error) bool {
	return errors.Is(err, ErrConfigLocked)
}

// IsCaptureInterrupted returns true if err is or wraps ErrCaptureInterrupted.
func IsCaptureInterrupted(err error) bool {
	return errors.Is(err, ErrCaptureInterrupted)
}

// IsFatal returns true if err is or wraps ErrFatal.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}
