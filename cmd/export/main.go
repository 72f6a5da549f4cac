// Copyright (c) 2025 Netskope, Inc. All rights reserved.

package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/netSkope/db-export-tool/internal/config"
	"github.com/netSkope/db-export-tool/internal/engine"
	"github.com/netSkope/db-export-tool/internal/export"
	"github.com/netSkope/db-export-tool/internal/format"
	"github.com/netSkope/db-export-tool/internal/fsx"
	"github.com/netSkope/db-export-tool/internal/job"
	explog "github.com/netSkope/db-export-tool/internal/log"
	"github.com/netSkope/db-export-tool/internal/record"
	"github.com/netSkope/db-export-tool/internal/sink"
	"github.com/netSkope/db-export-tool/internal/util"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

const dbConnectTimeout = 10 * time.Second

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := explog.NewLogger(cfg.LogDir, "export", cfg.Debug, cfg.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()

	// Resolve the source filesystem (local path or s3://)
	fs, err := fsx.Resolve(ctx, cfg.SourcePath, cfg.AWSRegion)
	if err != nil {
		logger.Error("Failed to resolve source filesystem", zap.Error(err))
		os.Exit(1)
	}

	// Probe-only mode: report the detected format and stop.
	if cfg.ProbeFormat {
		detected := format.Detect(ctx, fs, cfg.SourcePath, logger)
		fmt.Printf("%s\n", detected)
		return
	}

	logger.Info("Starting export tool",
		zap.String("table_name", cfg.TableName),
		zap.String("source_path", cfg.SourcePath))

	// Resolve the DB password from Secrets Manager if configured
	if cfg.DBSecret != "" && cfg.DBPassword == "" {
		password, err := util.ResolveDBPassword(ctx, cfg.DBSecret, cfg.DBRegion)
		if err != nil {
			logger.Error("Failed to resolve database password", zap.Error(err))
			os.Exit(1)
		}
		cfg.DBPassword = password
	}

	// Connect to the target database
	db, err := sql.Open("mysql", cfg.GetDBDSN())
	if err != nil {
		logger.Error("Failed to open database connection", zap.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(ctx, dbConnectTimeout)
	err = db.PingContext(pingCtx)
	cancel()
	if err != nil {
		logger.Error("Failed to connect to database",
			zap.String("host", cfg.DBHost),
			zap.Error(err))
		os.Exit(1)
	}

	// The column list drives both the record codec and the INSERT shape.
	// When not configured, the target table's schema is authoritative.
	columns := cfg.Columns
	if len(columns) == 0 {
		columns, err = fetchColumns(ctx, db, cfg.DBName, cfg.TableName)
		if err != nil {
			logger.Error("Failed to read target table columns", zap.Error(err))
			os.Exit(1)
		}
	}
	logger.Info("Resolved target columns",
		zap.String("table", cfg.TableName),
		zap.Strings("columns", columns))

	// Register the record codec for the target table
	reg := record.NewRegistry()
	if cfg.RecordClass != "" {
		codec := record.NewDelimitedCodec(cfg.RecordClass, columns, cfg.FieldDelimiter)
		reg.Register(cfg.TableName, codec, cfg.TableName+"-codecs")
	} else {
		reg.RegisterDelimitedTable(cfg.TableName, columns, cfg.FieldDelimiter)
	}

	dbSink := sink.NewDBWithConn(db, cfg.TableName, columns, cfg.BatchSize, logger)
	defer dbSink.Close()

	orch := export.New(fs, reg, newEngine(logger, cfg), dbSink, logger)

	metrics, err := orch.RunExport(ctx, job.Request{
		SourcePath:   cfg.SourcePath,
		Table:        cfg.TableName,
		RecordClass:  cfg.RecordClass,
		SplitBy:      cfg.SplitBy,
		InputFormat:  job.InputFormat(cfg.InputFormat),
		OutputFormat: job.OutputFormat(cfg.OutputFormat),
		MapTasks:     cfg.MapTasks,
	})
	if err != nil {
		logger.Error("Export failed",
			zap.String("table", cfg.TableName),
			zap.String("failure_kind", export.KindOf(err).String()),
			zap.Error(err))
		fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
		os.Exit(1)
	}

	// Print summary
	if !cfg.Quiet {
		fmt.Printf("\n=== Export Summary ===\n")
		fmt.Printf("Table: %s\n", cfg.TableName)
		fmt.Printf("Source: %s\n", cfg.SourcePath)
		fmt.Printf("Records exported: %d\n", metrics.Records)
		fmt.Printf("Bytes read: %d\n", metrics.BytesRead)
		fmt.Printf("Elapsed: %s\n", metrics.Elapsed.Round(time.Millisecond))
	}
}

// newEngine builds the execution engine for this run.
func newEngine(logger *zap.Logger, cfg *config.Config) job.Engine {
	if cfg.MapTasks > 0 {
		return engine.NewLocal(logger, engine.WithDefaultMapTasks(cfg.MapTasks))
	}
	return engine.NewLocal(logger)
}

// fetchColumns reads the target table's column names in ordinal order.
func fetchColumns(ctx context.Context, db *sql.DB, schema, table string) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT column_name FROM information_schema.columns
		 WHERE table_schema = ? AND table_name = ?
		 ORDER BY ordinal_position`, schema, table)
	if err != nil {
		return nil, fmt.Errorf("query columns for %s.%s: %w", schema, table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column name: %w", err)
		}
		columns = append(columns, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read columns for %s.%s: %w", schema, table, err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s.%s has no columns or does not exist", schema, table)
	}
	return columns, nil
}
