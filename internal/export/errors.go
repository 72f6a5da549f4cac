// Copyright (c) 2025 Netskope, Inc. All rights reserved.

package export

import (
	"errors"
	"fmt"
)

// FailureKind classifies why an export did not succeed.
type FailureKind int

const (
	// FailureUnknown is the zero value; it never leaves this package.
	FailureUnknown FailureKind = iota
	// FailureSetup: the record class or packaging artifact could not be
	// resolved before a job was built.
	FailureSetup
	// FailureConfiguration: the source path could not be qualified, or the
	// record class could not be bound as the map output type.
	FailureConfiguration
	// FailureEngine: the job could not be submitted or awaited at all.
	FailureEngine
	// FailureJobFailed: the job ran to completion and reported failure.
	FailureJobFailed
)

func (k FailureKind) String() string {
	switch k {
	case FailureSetup:
		return "setup"
	case FailureConfiguration:
		return "configuration"
	case FailureEngine:
		return "engine"
	case FailureJobFailed:
		return "job-failed"
	default:
		return "unknown"
	}
}

// Error is the typed failure an export run terminates with. It carries the
// table and stage so callers can log actionably.
type Error struct {
	Kind  FailureKind
	Table string
	Stage string
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("export of %s failed during %s (%s)", e.Table, e.Stage, e.Kind)
	}
	return fmt.Sprintf("export of %s failed during %s (%s): %v", e.Table, e.Stage, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the failure kind from an error returned by RunExport.
func KindOf(err error) FailureKind {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return FailureUnknown
}
