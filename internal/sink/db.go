// Copyright (c) 2025 Netskope, Inc. All rights reserved.

package sink

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/netSkope/db-export-tool/internal/record"
	"go.uber.org/zap"
)

const (
	dbPoolSize  = 10
	dbConnLife  = 30 * time.Minute
	pingTimeout = 5 * time.Second

	// defaultBatchSize is the number of rows per INSERT when the caller
	// does not pin one.
	defaultBatchSize = 1000
)

// DB writes export records into a relational table over database/sql.
type DB struct {
	db        *sql.DB
	table     string
	columns   []string
	batchSize int
	logger    *zap.Logger
}

// NewDB opens a pooled connection for the target table and verifies it with
// a bounded ping.
func NewDB(ctx context.Context, driver, dsn, table string, columns []string, batchSize int, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(dbPoolSize)
	db.SetConnMaxLifetime(dbConnLife)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewDBWithConn(db, table, columns, batchSize, logger), nil
}

// NewDBWithConn wraps an existing connection. The caller keeps ownership of
// nothing; Close closes the connection.
func NewDBWithConn(db *sql.DB, table string, columns []string, batchSize int, logger *zap.Logger) *DB {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &DB{
		db:        db,
		table:     table,
		columns:   columns,
		batchSize: batchSize,
		logger:    logger,
	}
}

// OpenWriter returns a batching writer for one map task.
func (d *DB) OpenWriter(_ context.Context) (Writer, error) {
	return &dbWriter{sink: d}, nil
}

// Close closes the underlying connection pool.
func (d *DB) Close() error {
	if d.db != nil {
		err := d.db.Close()
		d.db = nil
		return err
	}
	return nil
}

// dbWriter buffers records and writes them as multi-row INSERTs inside a
// transaction, one transaction per batch.
type dbWriter struct {
	sink    *DB
	pending []record.Record
	written int64
}

func (w *dbWriter) Write(ctx context.Context, rec record.Record) error {
	if len(rec.Values) != len(w.sink.columns) {
		return fmt.Errorf("record has %d values, table %s expects %d columns",
			len(rec.Values), w.sink.table, len(w.sink.columns))
	}
	w.pending = append(w.pending, rec)
	if len(w.pending) >= w.sink.batchSize {
		return w.Flush(ctx)
	}
	return nil
}

func (w *dbWriter) Flush(ctx context.Context) error {
	if len(w.pending) == 0 {
		return nil
	}

	query, args := w.buildInsert()

	tx, err := w.sink.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback() // safe to call even if committed

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert batch into %s: %w", w.sink.table, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	w.written += int64(len(w.pending))
	w.sink.logger.Debug("Flushed record batch",
		zap.String("table", w.sink.table),
		zap.Int("rows", len(w.pending)),
		zap.Int64("total_rows", w.written))
	w.pending = w.pending[:0]
	return nil
}

func (w *dbWriter) Close() error {
	return w.Flush(context.Background())
}

func (w *dbWriter) buildInsert() (string, []interface{}) {
	cols := strings.Join(w.sink.columns, ", ")
	row := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(w.sink.columns)), ", ") + ")"

	rows := make([]string, len(w.pending))
	args := make([]interface{}, 0, len(w.pending)*len(w.sink.columns))
	for i, rec := range w.pending {
		rows[i] = row
		for _, v := range rec.Values {
			args = append(args, v)
		}
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		w.sink.table, cols, strings.Join(rows, ", "))
	return query, args
}
