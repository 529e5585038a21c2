package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/teemow/inboxquery/internal/instrumentation"
	"github.com/teemow/inboxquery/internal/logging"
)

var (
	// ErrNoTable is returned when a table does not exist.
	ErrNoTable = errors.New("table does not exist")
	// ErrNoRows is returned when there is no result to work with.
	ErrNoRows = errors.New("no rows")
)

// Store wraps the SQLite database that holds uploaded tables.
type Store struct {
	db      *sqlx.DB
	metrics *instrumentation.Metrics
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithMetrics records backend operation metrics.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open connects to the database file at path, creating it and its directory
// if needed.
func Open(path string, opts ...Option) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{db: db, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	s.logger = logging.WithService(s.logger, instrumentation.ServiceSQLite)
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Column describes one table column.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type tableInfo struct {
	CID     int     `db:"cid"`
	Name    string  `db:"name"`
	Type    string  `db:"type"`
	NotNull int     `db:"notnull"`
	Default *string `db:"dflt_value"`
	PK      int     `db:"pk"`
}

// Schema returns the columns of table in declaration order.
func (s *Store) Schema(ctx context.Context, table string) ([]Column, error) {
	var info []tableInfo
	err := s.observe(ctx, instrumentation.OperationSchema, func(ctx context.Context) error {
		return s.db.SelectContext(ctx, &info, "PRAGMA table_info("+QuoteIdent(table)+")")
	})
	if err != nil {
		return nil, fmt.Errorf("read schema of %s: %w", table, err)
	}
	if len(info) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoTable, table)
	}

	cols := make([]Column, len(info))
	for i, c := range info {
		cols[i] = Column{Name: c.Name, Type: c.Type}
	}
	return cols, nil
}

// SchemaText renders columns as "name (TYPE)" lines.
func SchemaText(cols []Column) string {
	lines := make([]string, len(cols))
	for i, c := range cols {
		lines[i] = fmt.Sprintf("%s (%s)", c.Name, c.Type)
	}
	return strings.Join(lines, "\n")
}

// Query runs a statement and collects every row.
func (s *Store) Query(ctx context.Context, query string) (*ResultSet, error) {
	var rs *ResultSet
	err := s.observe(ctx, instrumentation.OperationQuery, func(ctx context.Context) error {
		rows, err := s.db.QueryxContext(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		cols, err := rows.Columns()
		if err != nil {
			return err
		}
		rs = &ResultSet{Columns: cols, Rows: [][]any{}}
		for rows.Next() {
			vals, err := rows.SliceScan()
			if err != nil {
				return err
			}
			for i, v := range vals {
				if b, ok := v.([]byte); ok {
					vals[i] = string(b)
				}
			}
			rs.Rows = append(rs.Rows, vals)
		}
		instrumentation.SetResultCount(ctx, len(rs.Rows))
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordResultRows(ctx, len(rs.Rows))
	s.logger.DebugContext(ctx, "query executed",
		slog.String("sql", logging.TruncateQuery(query, 120)),
		logging.Rows(len(rs.Rows)))
	return rs, nil
}

// Head returns the first n rows of table.
func (s *Store) Head(ctx context.Context, table string, n int) (*ResultSet, error) {
	if n < 0 {
		n = 0
	}
	return s.Query(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", QuoteIdent(table), n))
}

// QuoteIdent quotes a SQLite identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// observe runs fn as an observed SQLite call.
func (s *Store) observe(ctx context.Context, op string, fn func(context.Context) error) error {
	return instrumentation.ObserveBackend(ctx, s.metrics, instrumentation.ServiceSQLite, op, fn)
}
