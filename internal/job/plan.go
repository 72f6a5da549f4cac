// Copyright (c) 2025 Netskope, Inc. All rights reserved.

// Package job assembles and runs export job plans: binding an export
// request to concrete engine constructs, and driving a submitted job to
// completion while collecting run metrics.
package job

import (
	"context"
	"strconv"
	"time"

	"github.com/netSkope/db-export-tool/internal/fsx"
	"github.com/netSkope/db-export-tool/internal/record"
	"github.com/netSkope/db-export-tool/internal/sink"
)

// Well-known configuration keys threaded through the plan's config carrier.
const (
	// MapTasksKey records the resolved map-task count.
	MapTasksKey = "export.map.tasks"
	// RecordClassKey records the codec identifier used for map-output typing.
	RecordClassKey = "export.record.class"
)

// DefaultMapper is the per-record export mapper binding.
const DefaultMapper = "record-export"

// InputFormat selects how input files are decoded.
type InputFormat string

const (
	// InputFormatAuto lets the engine specialize per file: container or text.
	InputFormatAuto InputFormat = "auto"
	// InputFormatText reads newline-delimited text records.
	InputFormatText InputFormat = "text"
	// InputFormatSequence reads sequence-container records.
	InputFormatSequence InputFormat = "sequence"
)

// OutputFormat selects the write side of the job.
type OutputFormat string

// OutputFormatDB binds the output to the database-backed sink.
const OutputFormatDB OutputFormat = "db"

// Conf is the string-keyed configuration carrier threaded through a plan.
type Conf map[string]string

// SetInt stores an integer value under key.
func (c Conf) SetInt(key string, v int) {
	c[key] = strconv.Itoa(v)
}

// GetInt reads an integer value, returning 0 when absent or malformed.
func (c Conf) GetInt(key string) int {
	n, err := strconv.Atoi(c[key])
	if err != nil {
		return 0
	}
	return n
}

// Request is the immutable description of one export operation.
type Request struct {
	SourcePath   string
	Table        string
	RecordClass  string       // optional explicit codec identifier
	SplitBy      string       // optional split column hint
	InputFormat  InputFormat  // empty means auto-detect upstream
	OutputFormat OutputFormat // empty means the database sink
	MapTasks     int          // 0 means derive from the engine default
}

// Plan binds a Request to concrete engine constructs. It is assembled by
// Configure, then ownership passes to the runner; it is never shared
// concurrently.
type Plan struct {
	Conf Conf

	FS        fsx.FileSystem
	InputPath string // absolute, filesystem-qualified

	InputFormat  InputFormat
	OutputFormat OutputFormat

	Mapper      string
	RecordClass string
	Table       string
	SplitBy     string
	MapTasks    int

	// MapSpeculative must be false before the plan is ever submitted:
	// duplicate map attempts against the non-idempotent sink would write
	// duplicate rows.
	MapSpeculative bool

	PackageRef string
	Registry   *record.Registry
	Sink       sink.Factory
}

// Handle identifies a submitted job at the engine.
type Handle string

// Counter names the runner reads after completion.
const (
	CounterGroupFS   = "fs"
	CounterBytesRead = "bytes_read"
)

// Engine is the execution-engine capability surface this layer depends on.
// One implementation exists per supported engine.
type Engine interface {
	// Submit validates and schedules a plan. Class-resolution failures
	// surface here, before any task runs.
	Submit(ctx context.Context, plan *Plan) (Handle, error)
	// Wait blocks until the job reaches a terminal state and reports
	// whether it succeeded. Cancellation is delegated to the engine.
	Wait(ctx context.Context, h Handle) (bool, error)
	// Counter reads a named counter for a finished run.
	Counter(h Handle, group, name string) int64
	// InputRecords reports how many input records the run consumed.
	InputRecords(h Handle) int64
	// DefaultMapTasks is the engine's parallelism default.
	DefaultMapTasks() int
}

// RunMetrics captures what a finished run moved and how long it took.
type RunMetrics struct {
	Elapsed   time.Duration
	BytesRead int64
	Records   int64
}
