package sqlstore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/teemow/inboxquery/internal/instrumentation"
	"github.com/teemow/inboxquery/internal/logging"
)

// Inferred column types.
const (
	TypeInteger = "INTEGER"
	TypeReal    = "REAL"
	TypeText    = "TEXT"
)

var nonWord = regexp.MustCompile(`\W+`)

// ErrFileNotFound is returned by Import when the source file is missing.
var ErrFileNotFound = errors.New("File does not exist or cannot be accessed")

// SanitizeColumn replaces every run of non-word characters with an
// underscore and trims surrounding whitespace.
func SanitizeColumn(name string) string {
	return strings.TrimSpace(nonWord.ReplaceAllString(name, "_"))
}

// TableName derives a table name from a file path: the base name without
// extension, with hyphens replaced by underscores.
func TableName(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.ReplaceAll(base, "-", "_")
}

// LoadResult describes a loaded table.
type LoadResult struct {
	Table   string
	Columns []Column
	Rows    int
}

// Import copies the CSV at src into dataDir and loads it into a table named
// after the file. An existing table of that name is replaced.
func (s *Store) Import(ctx context.Context, src, dataDir string) (*LoadResult, error) {
	abs, err := filepath.Abs(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, src)
	}
	if fi, err := os.Stat(abs); err != nil || fi.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, abs)
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	target := filepath.Join(dataDir, filepath.Base(abs))
	if err := copyFile(abs, target); err != nil {
		return nil, fmt.Errorf("failed to read/write file: %w", err)
	}

	return s.LoadCSV(ctx, target, TableName(abs))
}

func copyFile(src, dst string) error {
	srcAbs, _ := filepath.Abs(src)
	dstAbs, _ := filepath.Abs(dst)
	if srcAbs == dstAbs {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// LoadCSV reads the CSV file at path and replaces table with its contents.
// Header names are sanitized with SanitizeColumn; column types are inferred
// as INTEGER, then REAL, then TEXT. Empty cells are stored as NULL.
func (s *Store) LoadCSV(ctx context.Context, path, table string) (*LoadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	header, records, err := readCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read csv %s: %w", filepath.Base(path), err)
	}

	names := columnNames(header)
	cols := make([]Column, len(names))
	for i, name := range names {
		cols[i] = Column{Name: name, Type: inferType(records, i)}
	}

	err = s.observe(ctx, instrumentation.OperationLoad, func(ctx context.Context) error {
		return s.replaceTable(ctx, table, cols, records)
	})
	if err != nil {
		return nil, fmt.Errorf("load table %s: %w", table, err)
	}

	s.logger.InfoContext(ctx, "csv loaded",
		logging.Table(table),
		logging.Rows(len(records)),
		slog.Int("columns", len(cols)))
	return &LoadResult{Table: table, Columns: cols, Rows: len(records)}, nil
}

func (s *Store) replaceTable(ctx context.Context, table string, cols []Column, records [][]string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	defs := make([]string, len(cols))
	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = QuoteIdent(c.Name)
		defs[i] = quoted[i] + " " + c.Type
		marks[i] = "?"
	}

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+QuoteIdent(table)); err != nil {
		return err
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", QuoteIdent(table), strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return err
	}

	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		QuoteIdent(table), strings.Join(quoted, ", "), strings.Join(marks, ", "))
	stmt, err := tx.PreparexContext(ctx, insert)
	if err != nil {
		return err
	}
	defer stmt.Close()

	args := make([]any, len(cols))
	for _, rec := range records {
		for i, c := range cols {
			args[i] = convert(rec[i], c.Type)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// readCSV returns the header and the data rows. Short rows are padded with
// empty cells; rows wider than the header are rejected.
func readCSV(r io.Reader) ([]string, [][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, errors.New("file is empty")
	}
	if err != nil {
		return nil, nil, err
	}
	header[0] = strings.TrimPrefix(header[0], "\ufeff")

	var records [][]string
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		if len(rec) > len(header) {
			return nil, nil, fmt.Errorf("line %d: expected %d fields, saw %d", line, len(header), len(rec))
		}
		for len(rec) < len(header) {
			rec = append(rec, "")
		}
		records = append(records, rec)
	}
	return header, records, nil
}

// columnNames sanitizes the header and makes every name unique.
func columnNames(header []string) []string {
	used := make(map[string]bool, len(header))
	names := make([]string, len(header))
	for i, h := range header {
		name := SanitizeColumn(h)
		if name == "" || name == "_" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		candidate := name
		for n := 2; used[strings.ToLower(candidate)]; n++ {
			candidate = fmt.Sprintf("%s_%d", name, n)
		}
		used[strings.ToLower(candidate)] = true
		names[i] = candidate
	}
	return names
}

func inferType(records [][]string, col int) string {
	typ := TypeInteger
	seenValue := false
	for _, rec := range records {
		v := strings.TrimSpace(rec[col])
		if v == "" {
			continue
		}
		seenValue = true
		if typ == TypeInteger {
			if _, err := strconv.ParseInt(v, 10, 64); err == nil {
				continue
			}
			typ = TypeReal
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return TypeText
		}
	}
	if !seenValue {
		return TypeText
	}
	return typ
}

func convert(v, typ string) any {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	switch typ {
	case TypeInteger:
		if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return n
		}
	case TypeReal:
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return f
		}
	}
	return v
}
