// Copyright (c) 2025 Netskope, Inc. All rights reserved.

package job

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Run submits a plan and blocks until the job reaches a terminal state.
// This is the single suspension point of the export: the calling goroutine
// parks for the duration of the distributed run.
//
// Run reports the engine-native success flag and the run metrics; it does
// not translate job failure into an error. An error return means the job
// could not be submitted or awaited at all.
func Run(ctx context.Context, eng Engine, plan *Plan, logger *zap.Logger) (bool, RunMetrics, error) {
	var metrics RunMetrics

	start := time.Now()

	handle, err := eng.Submit(ctx, plan)
	if err != nil {
		return false, metrics, fmt.Errorf("submit export job for table %s: %w", plan.Table, err)
	}

	success, err := eng.Wait(ctx, handle)

	metrics.Elapsed = time.Since(start)
	metrics.BytesRead = eng.Counter(handle, CounterGroupFS, CounterBytesRead)

	if err != nil {
		return false, metrics, fmt.Errorf("await export job for table %s: %w", plan.Table, err)
	}

	bytesPerSec := 0.0
	if secs := metrics.Elapsed.Seconds(); secs > 0 {
		bytesPerSec = float64(metrics.BytesRead) / secs
	}
	logger.Info("Transferred export input",
		zap.Int64("bytes", metrics.BytesRead),
		zap.Duration("elapsed", metrics.Elapsed),
		zap.Float64("bytes_per_sec", bytesPerSec))

	if success {
		metrics.Records = eng.InputRecords(handle)
		logger.Info("Exported records",
			zap.Int64("records", metrics.Records),
			zap.String("table", plan.Table))
	}

	return success, metrics, nil
}
