// Copyright (c) 2025 Netskope, Inc. All rights reserved.

package engine

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/netSkope/db-export-tool/internal/fsx"
	"github.com/netSkope/db-export-tool/internal/job"
	"github.com/netSkope/db-export-tool/internal/record"
	"github.com/netSkope/db-export-tool/internal/seqfile"
	"github.com/netSkope/db-export-tool/internal/sink"
	"go.uber.org/zap/zaptest"
	_ "modernc.org/sqlite"
)

type testEnv struct {
	db   *sql.DB
	reg  *record.Registry
	sink sink.Factory
	fs   *fsx.Local
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	if _, err := db.Exec(`CREATE TABLE events (id TEXT, name TEXT)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	reg := record.NewRegistry()
	reg.RegisterDelimitedTable("events", []string{"id", "name"}, ",")

	return &testEnv{
		db:   db,
		reg:  reg,
		sink: sink.NewDBWithConn(db, "events", []string{"id", "name"}, 50, zaptest.NewLogger(t)),
		fs:   fsx.NewLocal(),
	}
}

func (e *testEnv) plan(t *testing.T, inputPath string, inputFormat job.InputFormat, mapTasks int) *job.Plan {
	t.Helper()
	return &job.Plan{
		Conf:         make(job.Conf),
		FS:           e.fs,
		InputPath:    inputPath,
		InputFormat:  inputFormat,
		OutputFormat: job.OutputFormatDB,
		Mapper:       job.DefaultMapper,
		RecordClass:  "export.eventsRecord",
		Table:        "events",
		MapTasks:     mapTasks,
		Registry:     e.reg,
		Sink:         e.sink,
	}
}

func (e *testEnv) rowCount(t *testing.T) int {
	t.Helper()
	var n int
	if err := e.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	return n
}

func writeTextFixtures(t *testing.T, dir string, files, rowsPerFile int) {
	t.Helper()
	for f := 0; f < files; f++ {
		var buf bytes.Buffer
		for i := 0; i < rowsPerFile; i++ {
			fmt.Fprintf(&buf, "%d-%d,name-%d\n", f, i, i)
		}
		path := filepath.Join(dir, fmt.Sprintf("part-%05d", f))
		if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
	}
}

func TestLocal_TextExport(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	writeTextFixtures(t, dir, 3, 40)

	eng := NewLocal(zaptest.NewLogger(t))
	ctx := context.Background()

	handle, err := eng.Submit(ctx, env.plan(t, dir, job.InputFormatText, 2))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	success, err := eng.Wait(ctx, handle)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if !success {
		t.Fatal("Wait() reported failure for a valid export")
	}

	if got := env.rowCount(t); got != 120 {
		t.Errorf("rows in sink = %d, want 120", got)
	}
	if got := eng.InputRecords(handle); got != 120 {
		t.Errorf("InputRecords() = %d, want 120", got)
	}
	if got := eng.Counter(handle, job.CounterGroupFS, job.CounterBytesRead); got <= 0 {
		t.Errorf("bytes_read counter = %d, want > 0", got)
	}
	if got := eng.Counter(handle, "nope", "missing"); got != 0 {
		t.Errorf("unknown counter = %d, want 0", got)
	}
}

func TestLocal_SequenceExport(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()

	var buf bytes.Buffer
	w, err := seqfile.NewWriter(&buf, "export.Key", "export.eventsRecord")
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	for i := 0; i < 25; i++ {
		key := []byte(fmt.Sprintf("k%d", i))
		value := []byte(fmt.Sprintf("%d,name-%d", i, i))
		if err := w.Append(key, value); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "part-00000"), buf.Bytes(), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	eng := NewLocal(zaptest.NewLogger(t))
	ctx := context.Background()

	// Auto format: the engine specializes per file from the magic header.
	handle, err := eng.Submit(ctx, env.plan(t, dir, job.InputFormatAuto, 1))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	success, err := eng.Wait(ctx, handle)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if !success {
		t.Fatal("Wait() reported failure")
	}

	if got := env.rowCount(t); got != 25 {
		t.Errorf("rows in sink = %d, want 25", got)
	}
	if got := eng.InputRecords(handle); got != 25 {
		t.Errorf("InputRecords() = %d, want 25", got)
	}
}

func TestLocal_SubmitRejectsSpeculativePlan(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	writeTextFixtures(t, dir, 1, 1)

	plan := env.plan(t, dir, job.InputFormatText, 1)
	plan.MapSpeculative = true

	eng := NewLocal(zaptest.NewLogger(t))
	if _, err := eng.Submit(context.Background(), plan); err == nil {
		t.Error("Submit() should reject a plan with speculative map execution enabled")
	}
}

func TestLocal_SubmitUnresolvableClass(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	writeTextFixtures(t, dir, 1, 1)

	plan := env.plan(t, dir, job.InputFormatText, 1)
	plan.RecordClass = "export.missingRecord"

	eng := NewLocal(zaptest.NewLogger(t))
	if _, err := eng.Submit(context.Background(), plan); err == nil {
		t.Error("Submit() should fail when the record class cannot be resolved")
	}
}

func TestLocal_SubmitUnknownMapper(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	writeTextFixtures(t, dir, 1, 1)

	plan := env.plan(t, dir, job.InputFormatText, 1)
	plan.Mapper = "no-such-mapper"

	eng := NewLocal(zaptest.NewLogger(t))
	if _, err := eng.Submit(context.Background(), plan); err == nil {
		t.Error("Submit() should fail on an unknown mapper binding")
	}
}

func TestLocal_MalformedRecordsFailTheJob(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "part-00000")
	if err := os.WriteFile(path, []byte("1,ok\nthis-row-has-no-delimiter\n"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	eng := NewLocal(zaptest.NewLogger(t))
	ctx := context.Background()

	handle, err := eng.Submit(ctx, env.plan(t, dir, job.InputFormatText, 1))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	success, err := eng.Wait(ctx, handle)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if success {
		t.Error("Wait() should report failure when a record cannot be decoded")
	}
}

func TestLocal_WaitUnknownHandle(t *testing.T) {
	eng := NewLocal(zaptest.NewLogger(t))
	if _, err := eng.Wait(context.Background(), "bogus"); err == nil {
		t.Error("Wait() should fail for an unknown handle")
	}
}
