// Copyright (c) 2025 Netskope, Inc. All rights reserved.

// Package engine provides execution-engine implementations for export job
// plans. Local runs map tasks in-process with bounded parallelism; remote
// engines satisfy the same capability interface.
package engine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/netSkope/db-export-tool/internal/job"
	"github.com/netSkope/db-export-tool/internal/record"
	"github.com/netSkope/db-export-tool/internal/seqfile"
	"github.com/netSkope/db-export-tool/internal/sink"
	"go.uber.org/zap"
)

// defaultMapTasks is the parallelism used when a plan does not pin one.
const defaultMapTasks = 4

// Local executes export plans in-process. One map task handles one input
// split (one source file); tasks run in bounded-parallel batches.
type Local struct {
	logger       *zap.Logger
	defaultTasks int

	mu   sync.Mutex
	runs map[job.Handle]*run
}

// LocalOption configures a Local engine.
type LocalOption func(*Local)

// WithDefaultMapTasks overrides the engine's parallelism default.
func WithDefaultMapTasks(n int) LocalOption {
	return func(l *Local) {
		if n > 0 {
			l.defaultTasks = n
		}
	}
}

// NewLocal returns an in-process engine.
func NewLocal(logger *zap.Logger, opts ...LocalOption) *Local {
	l := &Local{
		logger:       logger,
		defaultTasks: defaultMapTasks,
		runs:         make(map[job.Handle]*run),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// DefaultMapTasks is the engine's parallelism default.
func (l *Local) DefaultMapTasks() int {
	return l.defaultTasks
}

// split is one unit of map work: a single input file.
type split struct {
	path string
	size int64
}

// run tracks one submitted job through to its terminal state.
type run struct {
	plan   *job.Plan
	codec  record.Codec
	splits []split

	done    chan struct{}
	success bool
	failure error

	bytesRead    atomic.Int64
	inputRecords atomic.Int64
}

// Submit validates a plan and schedules its tasks. Mapper and record-class
// bindings that cannot be resolved fail here, before any task runs.
func (l *Local) Submit(ctx context.Context, plan *job.Plan) (job.Handle, error) {
	if plan.MapSpeculative {
		return "", fmt.Errorf("refusing plan with speculative map execution enabled: sink is not idempotent")
	}
	if plan.Mapper != job.DefaultMapper {
		return "", fmt.Errorf("unknown mapper binding %q", plan.Mapper)
	}
	if plan.Sink == nil {
		return "", fmt.Errorf("plan has no output sink bound")
	}

	codec, err := plan.Registry.Codec(plan.RecordClass)
	if err != nil {
		return "", fmt.Errorf("resolve record class for submission: %w", err)
	}

	splits, err := l.planSplits(ctx, plan)
	if err != nil {
		return "", fmt.Errorf("plan input splits for %s: %w", plan.InputPath, err)
	}

	r := &run{
		plan:   plan,
		codec:  codec,
		splits: splits,
		done:   make(chan struct{}),
	}
	handle := job.Handle(uuid.NewString())

	l.mu.Lock()
	l.runs[handle] = r
	l.mu.Unlock()

	l.logger.Info("Submitted export job",
		zap.String("handle", string(handle)),
		zap.String("table", plan.Table),
		zap.Int("splits", len(splits)),
		zap.Int("map_tasks", plan.MapTasks))

	go l.execute(ctx, r)
	return handle, nil
}

// Wait blocks until the run reaches a terminal state.
func (l *Local) Wait(ctx context.Context, h job.Handle) (bool, error) {
	r, err := l.lookup(h)
	if err != nil {
		return false, err
	}
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("await job %s: %w", h, ctx.Err())
	case <-r.done:
		return r.success, nil
	}
}

// Counter reads a named counter for a run.
func (l *Local) Counter(h job.Handle, group, name string) int64 {
	r, err := l.lookup(h)
	if err != nil {
		return 0
	}
	if group == job.CounterGroupFS && name == job.CounterBytesRead {
		return r.bytesRead.Load()
	}
	return 0
}

// InputRecords reports how many input records the run consumed.
func (l *Local) InputRecords(h job.Handle) int64 {
	r, err := l.lookup(h)
	if err != nil {
		return 0
	}
	return r.inputRecords.Load()
}

func (l *Local) lookup(h job.Handle) (*run, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.runs[h]
	if !ok {
		return nil, fmt.Errorf("unknown job handle %s", h)
	}
	return r, nil
}

// planSplits maps the input path to one split per file. A directory yields
// a split per immediate child file.
func (l *Local) planSplits(ctx context.Context, plan *job.Plan) ([]split, error) {
	stat, err := plan.FS.Stat(ctx, plan.InputPath)
	if err != nil {
		return nil, err
	}
	if !stat.Dir {
		return []split{{path: stat.Path, size: stat.Size}}, nil
	}

	children, err := plan.FS.List(ctx, plan.InputPath)
	if err != nil {
		return nil, err
	}
	var splits []split
	for _, child := range children {
		if child.Dir {
			continue
		}
		splits = append(splits, split{path: child.Path, size: child.Size})
	}
	return splits, nil
}

// execute runs the splits in batches of at most MapTasks parallel tasks.
func (l *Local) execute(ctx context.Context, r *run) {
	defer close(r.done)

	maxParallel := r.plan.MapTasks
	if maxParallel <= 0 {
		maxParallel = l.defaultTasks
	}

	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < len(r.splits); i += maxParallel {
		batchEnd := i + maxParallel
		if batchEnd > len(r.splits) {
			batchEnd = len(r.splits)
		}

		for _, s := range r.splits[i:batchEnd] {
			wg.Add(1)
			go func(s split) {
				defer wg.Done()

				if err := l.runTask(ctx, r, s); err != nil {
					l.logger.Error("Map task failed",
						zap.String("split", s.path),
						zap.String("table", r.plan.Table),
						zap.Error(err))
					mu.Lock()
					if r.failure == nil {
						r.failure = err
					}
					mu.Unlock()
				}
			}(s)
		}

		wg.Wait()

		mu.Lock()
		failed := r.failure != nil
		mu.Unlock()
		if failed {
			break
		}
	}

	r.success = r.failure == nil
	l.logger.Info("Export job finished",
		zap.String("table", r.plan.Table),
		zap.Bool("success", r.success),
		zap.Int64("records", r.inputRecords.Load()),
		zap.Int64("bytes_read", r.bytesRead.Load()))
}

// runTask maps one split: read records, decode, write to the sink.
func (l *Local) runTask(ctx context.Context, r *run, s split) error {
	rc, err := r.plan.FS.Open(ctx, s.path)
	if err != nil {
		return fmt.Errorf("open split: %w", err)
	}
	defer rc.Close()

	counted := &countingReader{r: rc, n: &r.bytesRead}
	br := bufio.NewReader(counted)

	inputFormat := r.plan.InputFormat
	if inputFormat == job.InputFormatAuto {
		head, _ := br.Peek(3)
		if len(head) == 3 && [3]byte{head[0], head[1], head[2]} == seqfile.Magic {
			inputFormat = job.InputFormatSequence
		} else {
			inputFormat = job.InputFormatText
		}
	}

	w, err := r.plan.Sink.OpenWriter(ctx)
	if err != nil {
		return fmt.Errorf("open sink writer: %w", err)
	}

	switch inputFormat {
	case job.InputFormatSequence:
		err = l.mapSequence(ctx, r, br, w)
	case job.InputFormatText:
		err = l.mapText(ctx, r, br, w)
	default:
		err = fmt.Errorf("unsupported input format %q", inputFormat)
	}
	if err != nil {
		w.Close()
		return err
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("close sink writer: %w", err)
	}
	return nil
}

func (l *Local) mapText(ctx context.Context, r *run, br *bufio.Reader, w sink.Writer) error {
	scanner := bufio.NewScanner(br)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := l.mapOne(ctx, r, line, w); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (l *Local) mapSequence(ctx context.Context, r *run, br *bufio.Reader, w sink.Writer) error {
	sr, err := seqfile.NewReader(br)
	if err != nil {
		return fmt.Errorf("open sequence container: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, value, err := sr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := l.mapOne(ctx, r, value, w); err != nil {
			return err
		}
	}
}

// mapOne is the record-export mapper: decode one payload and write it.
func (l *Local) mapOne(ctx context.Context, r *run, payload []byte, w sink.Writer) error {
	rec, err := r.codec.Decode(payload)
	if err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	r.inputRecords.Add(1)
	return w.Write(ctx, rec)
}

// countingReader tracks bytes read from the source filesystem.
type countingReader struct {
	r io.Reader
	n *atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}
