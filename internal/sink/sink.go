// Copyright (c) 2025 Netskope, Inc. All rights reserved.

// Package sink is the write side of an export: decoded records go into a
// relational table. The sink is not idempotent, which is why the execution
// engine must never run duplicate writers for the same records.
package sink

import (
	"context"

	"github.com/netSkope/db-export-tool/internal/record"
)

// Writer receives decoded records for one map task. Writers are not safe
// for concurrent use; each task opens its own.
type Writer interface {
	Write(ctx context.Context, rec record.Record) error
	// Flush pushes any buffered records to the table.
	Flush(ctx context.Context) error
	Close() error
}

// Factory opens per-task writers over a shared connection.
type Factory interface {
	OpenWriter(ctx context.Context) (Writer, error)
	Close() error
}
