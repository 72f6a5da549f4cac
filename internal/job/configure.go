// Copyright (c) 2025 Netskope, Inc. All rights reserved.

package job

import (
	"fmt"

	"github.com/netSkope/db-export-tool/internal/fsx"
	"github.com/netSkope/db-export-tool/internal/record"
	"github.com/netSkope/db-export-tool/internal/sink"
	"go.uber.org/zap"
)

// Policies are the per-export-kind choices Configure is parameterized by.
// Zero fields fall back to the generic export behavior.
type Policies struct {
	ChooseInputFormat  func(req Request) InputFormat
	ChooseOutputFormat func(req Request) OutputFormat
	DefaultMapTasks    func() int
}

// DefaultPolicies returns the generic export policies, deriving the task
// count default from the engine.
func DefaultPolicies(eng Engine) Policies {
	return Policies{
		DefaultMapTasks: eng.DefaultMapTasks,
	}
}

// Configure assembles a Plan from a Request. The declared record class must
// resolve against the registry and the source path must qualify against the
// filesystem; both are checked here, before anything is submitted.
//
// The request's input format is taken as given: when the caller left it
// unset, the surrounding workflow is expected to have resolved one from
// format detection before calling Configure.
func Configure(req Request, fs fsx.FileSystem, reg *record.Registry, snk sink.Factory, pol Policies, logger *zap.Logger) (*Plan, error) {
	// Input resolution.
	inputPath, err := fs.Qualify(req.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("cannot qualify export source %s: %w", req.SourcePath, err)
	}

	inputFormat := req.InputFormat
	if inputFormat == "" && pol.ChooseInputFormat != nil {
		inputFormat = pol.ChooseInputFormat(req)
	}
	if inputFormat == "" {
		inputFormat = InputFormatAuto
	}

	// Output resolution: wire the binding only; the sink itself is a
	// collaborator.
	outputFormat := req.OutputFormat
	if outputFormat == "" && pol.ChooseOutputFormat != nil {
		outputFormat = pol.ChooseOutputFormat(req)
	}
	if outputFormat == "" {
		outputFormat = OutputFormatDB
	}

	// The record class types the map output; it must be resolvable now.
	if _, err := reg.Codec(req.RecordClass); err != nil {
		return nil, fmt.Errorf("cannot bind record class %s: %w", req.RecordClass, err)
	}

	// Parallelism resolution.
	mapTasks := req.MapTasks
	if mapTasks <= 0 && pol.DefaultMapTasks != nil {
		mapTasks = pol.DefaultMapTasks()
	}
	if mapTasks <= 0 {
		mapTasks = 1
	}

	plan := &Plan{
		Conf:         make(Conf),
		FS:           fs,
		InputPath:    inputPath,
		InputFormat:  inputFormat,
		OutputFormat: outputFormat,
		Mapper:       DefaultMapper,
		RecordClass:  req.RecordClass,
		Table:        req.Table,
		SplitBy:      req.SplitBy,
		MapTasks:     mapTasks,
		Registry:     reg,
		Sink:         snk,
	}

	// Concurrent duplicate writes of the same records would be problematic.
	plan.MapSpeculative = false

	plan.Conf.SetInt(MapTasksKey, mapTasks)
	plan.Conf[RecordClassKey] = req.RecordClass

	logger.Debug("Assembled export job plan",
		zap.String("table", req.Table),
		zap.String("input_path", inputPath),
		zap.String("input_format", string(inputFormat)),
		zap.String("output_format", string(outputFormat)),
		zap.Int("map_tasks", mapTasks))

	return plan, nil
}
