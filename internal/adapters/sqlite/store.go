// Package sqlite persists records into an append-only SQLite table.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bft-labs/tickship/internal/domain"
	"github.com/bft-labs/tickship/internal/ports"
	"github.com/bft-labs/tickship/pkg/log"
)

// DefaultTable is the table written when Config.Table is empty.
const DefaultTable = "ticks"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config configures a Store.
type Config struct {
	// Path is the database file. It is created if missing.
	Path string

	// Table is the destination table, created on first connection.
	Table string

	// PoolSize defaults to 2: the dispatcher writes from a single goroutine.
	PoolSize int

	Logger log.Logger
}

// Store implements ports.BatchSink on a sqlitex.Pool.
type Store struct {
	pool   *sqlitex.Pool
	table  string
	insert string
	logger log.Logger
}

var _ ports.BatchSink = (*Store)(nil)

// Open opens (or creates) the database and ensures the table exists.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite store: path is required")
	}
	table := cfg.Table
	if table == "" {
		table = DefaultTable
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("sqlite store: invalid table name %q", table)
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 2
	}

	s := &Store{
		table:  table,
		insert: fmt.Sprintf(`INSERT INTO %q ("timestamp", "value") VALUES (?, ?)`, table),
		logger: log.OrNoop(cfg.Logger),
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: s.prepareConn,
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite store: opening %s: %w", cfg.Path, err)
	}
	s.pool = pool

	// Take one connection now so schema errors surface at startup.
	conn, err := pool.Take(context.Background())
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("sqlite store: %w", err)
	}
	pool.Put(conn)

	s.logger.Info("sqlite store opened",
		log.String("path", cfg.Path),
		log.String("table", table),
	)
	return s, nil
}

func (s *Store) prepareConn(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}

	schema := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
	"timestamp" INTEGER NOT NULL,
	"value"     INTEGER NOT NULL
);`, s.table)
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Persist inserts one record.
func (s *Store) Persist(ctx context.Context, rec domain.Record) error {
	tick, err := domain.ParseTick(rec)
	if err != nil {
		return err
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("sqlite store: take: %w", err)
	}
	defer s.pool.Put(conn)

	return s.insertTick(conn, tick)
}

// PersistBatch inserts the batch in one IMMEDIATE transaction. Records that
// do not convert are skipped and reported in the returned error; the rest
// are written.
func (s *Store) PersistBatch(ctx context.Context, batch *domain.Batch) (int, error) {
	if batch.Empty() {
		return 0, nil
	}

	ticks, convErr := batch.Ticks()
	if len(ticks) == 0 {
		return 0, convErr
	}

	if err := s.insertTicks(ctx, ticks); err != nil {
		return 0, errors.Join(err, convErr)
	}
	return len(ticks), convErr
}

func (s *Store) insertTicks(ctx context.Context, ticks []domain.Tick) (err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("sqlite store: take: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("sqlite store: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	for _, tick := range ticks {
		if err := s.insertTick(conn, tick); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) insertTick(conn *sqlite.Conn, tick domain.Tick) error {
	err := sqlitex.Execute(conn, s.insert, &sqlitex.ExecOptions{
		Args: []any{tick.Timestamp, int64(tick.Value)},
	})
	if err != nil {
		return fmt.Errorf("sqlite store: insert into %s: %w", s.table, err)
	}
	return nil
}

// Ticks returns every stored row in insertion order.
func (s *Store) Ticks(ctx context.Context) ([]domain.Tick, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: take: %w", err)
	}
	defer s.pool.Put(conn)

	var ticks []domain.Tick
	query := fmt.Sprintf(`SELECT "timestamp", "value" FROM %q ORDER BY rowid`, s.table)
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			ticks = append(ticks, domain.Tick{
				Timestamp: stmt.ColumnInt64(0),
				Value:     int32(stmt.ColumnInt64(1)),
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite store: select: %w", err)
	}
	return ticks, nil
}

// Table returns the destination table name.
func (s *Store) Table() string {
	return s.table
}

// Close closes the pool. It blocks until borrowed connections are returned.
func (s *Store) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("sqlite store: close: %w", err)
	}
	return nil
}
