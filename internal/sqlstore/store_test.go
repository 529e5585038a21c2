package sqlstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func writeCSV(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const salesCSV = `Region Name,Units Sold,Unit-Price,Notes
north,10,2.5,first
south,7,3,
east,,4.25,"with, comma"
`

func TestSanitizeColumn(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Region Name", "Region_Name"},
		{"Unit-Price ($)", "Unit_Price_"},
		{"already_ok", "already_ok"},
		{"a  b", "a_b"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeColumn(tt.in))
		})
	}
}

func TestColumnNames(t *testing.T) {
	tests := []struct {
		name   string
		header []string
		want   []string
	}{
		{"unique", []string{"a", "b"}, []string{"a", "b"}},
		{"duplicates", []string{"a", "a", "a"}, []string{"a", "a_2", "a_3"}},
		{"suffix already taken", []string{"a", "a", "a_2"}, []string{"a", "a_2", "a_2_2"}},
		{"taken before the duplicate", []string{"a_2", "a", "a"}, []string{"a_2", "a", "a_3"}},
		{"case insensitive", []string{"Region", "region"}, []string{"Region", "region_2"}},
		{"blank", []string{"", "x"}, []string{"column_1", "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, columnNames(tt.header))
		})
	}
}

func TestTableName(t *testing.T) {
	assert.Equal(t, "sales_2024", TableName("/tmp/in/sales-2024.csv"))
	assert.Equal(t, "data", TableName("data.csv"))
	assert.Equal(t, "archive.v2", TableName("archive.v2.csv"))
}

func TestStore_LoadCSV(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	path := writeCSV(t, t.TempDir(), "sales.csv", salesCSV)

	res, err := s.LoadCSV(ctx, path, "sales")
	require.NoError(t, err)
	assert.Equal(t, "sales", res.Table)
	assert.Equal(t, 3, res.Rows)
	assert.Equal(t, []Column{
		{Name: "Region_Name", Type: TypeText},
		{Name: "Units_Sold", Type: TypeInteger},
		{Name: "Unit_Price", Type: TypeReal},
		{Name: "Notes", Type: TypeText},
	}, res.Columns)

	cols, err := s.Schema(ctx, "sales")
	require.NoError(t, err)
	assert.Equal(t, res.Columns, cols)
	assert.Equal(t, "Region_Name (TEXT)\nUnits_Sold (INTEGER)\nUnit_Price (REAL)\nNotes (TEXT)", SchemaText(cols))

	rs, err := s.Query(ctx, `SELECT "Units_Sold", "Notes" FROM "sales" WHERE "Region_Name" = 'east'`)
	require.NoError(t, err)
	require.Len(t, rs.Rows, 1)
	assert.Nil(t, rs.Rows[0][0], "empty cells are stored as NULL")
	assert.Equal(t, "with, comma", rs.Rows[0][1])

	rs, err = s.Query(ctx, `SELECT SUM("Units_Sold") AS total FROM "sales"`)
	require.NoError(t, err)
	assert.Equal(t, []string{"total"}, rs.Columns)
	assert.Equal(t, int64(17), rs.Rows[0][0])
}

func TestStore_LoadCSVReplacesTable(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()

	_, err := s.LoadCSV(ctx, writeCSV(t, dir, "a.csv", "x,y\n1,2\n3,4\n"), "t")
	require.NoError(t, err)
	_, err = s.LoadCSV(ctx, writeCSV(t, dir, "b.csv", "z\nhello\n"), "t")
	require.NoError(t, err)

	cols, err := s.Schema(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, []Column{{Name: "z", Type: TypeText}}, cols)

	rs, err := s.Query(ctx, `SELECT * FROM "t"`)
	require.NoError(t, err)
	assert.Len(t, rs.Rows, 1)
}

func TestStore_LoadCSVEdgeCases(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()

	t.Run("short rows are padded", func(t *testing.T) {
		res, err := s.LoadCSV(ctx, writeCSV(t, dir, "short.csv", "a,b\n1\n2,3\n"), "short")
		require.NoError(t, err)
		assert.Equal(t, 2, res.Rows)
	})

	t.Run("wide rows are rejected", func(t *testing.T) {
		_, err := s.LoadCSV(ctx, writeCSV(t, dir, "wide.csv", "a,b\n1,2,3\n"), "wide")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 2")
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := s.LoadCSV(ctx, writeCSV(t, dir, "empty.csv", ""), "empty")
		require.Error(t, err)
	})

	t.Run("duplicate and blank headers", func(t *testing.T) {
		res, err := s.LoadCSV(ctx, writeCSV(t, dir, "dup.csv", "\ufeffa,a,,%\n1,2,3,4\n"), "dup")
		require.NoError(t, err)
		names := make([]string, len(res.Columns))
		for i, c := range res.Columns {
			names[i] = c.Name
		}
		assert.Equal(t, []string{"a", "a_2", "column_3", "column_4"}, names)
	})

	t.Run("suffix collides with a later header", func(t *testing.T) {
		res, err := s.LoadCSV(ctx, writeCSV(t, dir, "taken.csv", "a,a,a_2\n1,2,3\n"), "taken")
		require.NoError(t, err)
		names := make([]string, len(res.Columns))
		for i, c := range res.Columns {
			names[i] = c.Name
		}
		assert.Equal(t, []string{"a", "a_2", "a_2_2"}, names)
	})

	t.Run("header only", func(t *testing.T) {
		res, err := s.LoadCSV(ctx, writeCSV(t, dir, "hdr.csv", "a,b\n"), "hdr")
		require.NoError(t, err)
		assert.Equal(t, 0, res.Rows)
		assert.Equal(t, TypeText, res.Columns[0].Type)
	})
}

func TestStore_Import(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	src := writeCSV(t, t.TempDir(), "q1-sales.csv", "a\n1\n")
	dataDir := filepath.Join(t.TempDir(), "data")

	res, err := s.Import(ctx, src, dataDir)
	require.NoError(t, err)
	assert.Equal(t, "q1_sales", res.Table)

	copied, err := os.ReadFile(filepath.Join(dataDir, "q1-sales.csv"))
	require.NoError(t, err)
	assert.Equal(t, "a\n1\n", string(copied))

	missing := filepath.Join(t.TempDir(), "nope.csv")
	_, err = s.Import(ctx, missing, dataDir)
	require.ErrorIs(t, err, ErrFileNotFound)
	assert.Equal(t, "File does not exist or cannot be accessed: "+missing, err.Error())
}

func TestStore_SchemaMissingTable(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Schema(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNoTable)
}

func TestStore_QueryError(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Query(context.Background(), "SELEC nonsense")
	assert.Error(t, err)
}

func TestStore_Head(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	var b strings.Builder
	b.WriteString("n\n")
	for i := 0; i < 10; i++ {
		b.WriteString("1\n")
	}
	_, err := s.LoadCSV(ctx, writeCSV(t, t.TempDir(), "ten.csv", b.String()), "ten")
	require.NoError(t, err)

	rs, err := s.Head(ctx, "ten", 5)
	require.NoError(t, err)
	assert.Len(t, rs.Rows, 5)

	rs, err = s.Head(ctx, "ten", -1)
	require.NoError(t, err)
	assert.Empty(t, rs.Rows)
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"plain"`, QuoteIdent("plain"))
	assert.Equal(t, `"we""ird"`, QuoteIdent(`we"ird`))
}
