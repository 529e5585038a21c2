package dashboard

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/teemow/inboxquery/internal/sqlstore"
)

// Kind is a chart type.
type Kind string

const (
	KindBar     Kind = "bar"
	KindLine    Kind = "line"
	KindScatter Kind = "scatter"
)

// Kinds lists the supported chart types in display order.
var Kinds = []Kind{KindBar, KindLine, KindScatter}

var (
	// ErrUnsupportedKind is returned for an unknown chart type.
	ErrUnsupportedKind = errors.New("Unsupported plot type. Use 'bar', 'line', or 'scatter'.")
	// ErrInvalidColumns is returned when a requested axis column is missing.
	ErrInvalidColumns = errors.New("Invalid column names")
)

// ParseKind validates a chart type. Empty means KindBar.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return KindBar, nil
	case KindBar, KindLine, KindScatter:
		return k, nil
	default:
		return "", ErrUnsupportedKind
	}
}

// DefaultAxes picks column 0 for x and column 1 for y, or column 0 for both
// when the result has a single column.
func DefaultAxes(rs *sqlstore.ResultSet) (x, y int) {
	if len(rs.Columns) > 1 {
		return 0, 1
	}
	return 0, 0
}

// Axes resolves column names to indexes.
func Axes(rs *sqlstore.ResultSet, xColumn, yColumn string) (x, y int, err error) {
	x, y = rs.ColumnIndex(xColumn), rs.ColumnIndex(yColumn)
	if x < 0 || y < 0 {
		return 0, 0, fmt.Errorf("%w. Available columns: %s", ErrInvalidColumns, strings.Join(rs.Columns, ", "))
	}
	return x, y, nil
}

// Render writes a standalone HTML page with one chart of column y against
// column x.
func Render(w io.Writer, kind Kind, rs *sqlstore.ResultSet, x, y int, title string) error {
	xs := rs.Strings(x)
	name := rs.Columns[y]

	global := []charts.GlobalOpts{
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: title,
			Width:     "100%",
			Height:    "460px",
		}),
	}

	switch kind {
	case KindBar:
		c := charts.NewBar()
		c.SetGlobalOptions(global...)
		items := make([]opts.BarData, len(rs.Rows))
		for i, row := range rs.Rows {
			items[i] = opts.BarData{Name: xs[i], Value: chartValue(row[y])}
		}
		c.SetXAxis(xs).AddSeries(name, items)
		return c.Render(w)
	case KindLine:
		c := charts.NewLine()
		c.SetGlobalOptions(global...)
		items := make([]opts.LineData, len(rs.Rows))
		for i, row := range rs.Rows {
			items[i] = opts.LineData{Name: xs[i], Value: chartValue(row[y])}
		}
		c.SetXAxis(xs).AddSeries(name, items)
		return c.Render(w)
	case KindScatter:
		c := charts.NewScatter()
		c.SetGlobalOptions(global...)
		items := make([]opts.ScatterData, len(rs.Rows))
		for i, row := range rs.Rows {
			items[i] = opts.ScatterData{Name: xs[i], Value: chartValue(row[y])}
		}
		c.SetXAxis(xs).AddSeries(name, items)
		return c.Render(w)
	default:
		return ErrUnsupportedKind
	}
}

// chartValue turns a cell into a number when it looks like one. NULL becomes
// "-", which the chart treats as a gap.
func chartValue(v any) any {
	switch t := v.(type) {
	case nil:
		return "-"
	case int64, float64:
		return t
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f
		}
		return t
	default:
		return sqlstore.FormatValue(t)
	}
}

// WritePlot renders yColumn against xColumn into a standalone HTML file.
func WritePlot(path string, kind Kind, rs *sqlstore.ResultSet, xColumn, yColumn string) error {
	if rs.Empty() {
		return sqlstore.ErrNoRows
	}
	x, y, err := Axes(rs, xColumn, yColumn)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	title := fmt.Sprintf("%s by %s", yColumn, xColumn)
	if err := Render(f, kind, rs, x, y, title); err != nil {
		_ = f.Close()
		return fmt.Errorf("render chart: %w", err)
	}
	return f.Close()
}
