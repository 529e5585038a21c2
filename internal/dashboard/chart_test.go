package dashboard

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/inboxquery/internal/sqlstore"
)

func salesResult() *sqlstore.ResultSet {
	return &sqlstore.ResultSet{
		Columns: []string{"region", "total"},
		Rows: [][]any{
			{"north", int64(10)},
			{"south", 2.5},
			{"west", nil},
		},
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"", KindBar, false},
		{"bar", KindBar, false},
		{"Line", KindLine, false},
		{" scatter ", KindScatter, false},
		{"pie", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedKind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDefaultAxes(t *testing.T) {
	x, y := DefaultAxes(salesResult())
	assert.Equal(t, 0, x)
	assert.Equal(t, 1, y)

	x, y = DefaultAxes(&sqlstore.ResultSet{Columns: []string{"only"}})
	assert.Equal(t, 0, x)
	assert.Equal(t, 0, y)
}

func TestAxes_InvalidColumn(t *testing.T) {
	_, _, err := Axes(salesResult(), "region", "missing")
	require.ErrorIs(t, err, ErrInvalidColumns)
	assert.EqualError(t, err, "Invalid column names. Available columns: region, total")
}

func TestChartValue(t *testing.T) {
	assert.Equal(t, "-", chartValue(nil))
	assert.Equal(t, int64(3), chartValue(int64(3)))
	assert.Equal(t, 4.5, chartValue("4.5"))
	assert.Equal(t, "abc", chartValue("abc"))
	assert.Equal(t, "raw", chartValue([]byte("raw")))
}

func TestRender(t *testing.T) {
	for _, kind := range Kinds {
		t.Run(string(kind), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Render(&buf, kind, salesResult(), 0, 1, "totals"))
			assert.Contains(t, buf.String(), "<html")
			assert.Contains(t, buf.String(), "north")
		})
	}

	var buf bytes.Buffer
	assert.ErrorIs(t, Render(&buf, Kind("pie"), salesResult(), 0, 1, ""), ErrUnsupportedKind)
}

func TestWritePlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "plot.html")

	require.NoError(t, WritePlot(path, KindLine, salesResult(), "region", "total"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "total by region")

	assert.ErrorIs(t, WritePlot(path, KindBar, &sqlstore.ResultSet{}, "a", "b"), sqlstore.ErrNoRows)
	assert.ErrorIs(t, WritePlot(path, KindBar, salesResult(), "nope", "total"), ErrInvalidColumns)
}
