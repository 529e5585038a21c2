package sqlstore

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
)

// ResultSet holds the rows returned by a query.
type ResultSet struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Empty reports whether the result has no rows.
func (r *ResultSet) Empty() bool {
	return r == nil || len(r.Rows) == 0
}

// ColumnIndex returns the position of name, or -1.
func (r *ResultSet) ColumnIndex(name string) int {
	for i, c := range r.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Head returns a view of the first n rows.
func (r *ResultSet) Head(n int) *ResultSet {
	if n > len(r.Rows) {
		n = len(r.Rows)
	}
	return &ResultSet{Columns: r.Columns, Rows: r.Rows[:n]}
}

// Strings returns column col rendered as text.
func (r *ResultSet) Strings(col int) []string {
	out := make([]string, len(r.Rows))
	for i, row := range r.Rows {
		out[i] = FormatValue(row[col])
	}
	return out
}

// FormatValue renders a scanned value.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case string:
		return t
	case []byte:
		return string(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// Markdown renders the result as a pipe table.
func (r *ResultSet) Markdown() string {
	var b strings.Builder
	b.WriteString("| " + strings.Join(escapeCells(r.Columns), " | ") + " |\n")
	seps := make([]string, len(r.Columns))
	for i := range seps {
		seps[i] = "---"
	}
	b.WriteString("|" + strings.Join(seps, "|") + "|\n")
	for _, row := range r.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = FormatValue(v)
		}
		b.WriteString("| " + strings.Join(escapeCells(cells), " | ") + " |\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func escapeCells(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		c = strings.ReplaceAll(c, "|", `\|`)
		out[i] = strings.ReplaceAll(c, "\n", " ")
	}
	return out
}

// Text renders the result as right-aligned plain-text columns.
func (r *ResultSet) Text() string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, strings.Join(r.Columns, "\t")+"\t")
	for _, row := range r.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = strings.ReplaceAll(FormatValue(v), "\t", " ")
		}
		fmt.Fprintln(w, strings.Join(cells, "\t")+"\t")
	}
	_ = w.Flush()

	lines := strings.Split(strings.TrimRight(b.String(), "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " ")
	}
	return strings.Join(lines, "\n")
}

// WriteCSV writes the result with a header row.
func (r *ResultSet) WriteCSV(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	_ = w.Write(r.Columns)
	for _, row := range r.Rows {
		rec := make([]string, len(row))
		for i, v := range row {
			if v != nil {
				rec[i] = FormatValue(v)
			}
		}
		_ = w.Write(rec)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// PreviewRows is the number of rows written to the response preview.
const PreviewRows = 5

// Export writes the result as CSV to csvPath and the query with a short
// preview to txtPath.
func Export(r *ResultSet, query, csvPath, txtPath string) error {
	if r.Empty() {
		return ErrNoRows
	}
	if err := r.WriteCSV(csvPath); err != nil {
		return fmt.Errorf("write %s: %w", csvPath, err)
	}

	text := fmt.Sprintf("SQL Query:\n%s\n\nResult Preview:\n%s", query, r.Head(PreviewRows).Text())
	if err := os.WriteFile(txtPath, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", txtPath, err)
	}
	return nil
}
