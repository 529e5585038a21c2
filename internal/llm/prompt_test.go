package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSQLPrompt(t *testing.T) {
	p := SQLPrompt("sales_2024", "region (TEXT)\namount (REAL)", "total by region")

	assert.True(t, strings.HasPrefix(p, "You are a professional SQL generator."))
	assert.Contains(t, p, `SQLite table named "sales_2024"`)
	assert.Contains(t, p, "The schema of the table is:\nregion (TEXT)\namount (REAL)\n")
	assert.Contains(t, p, `"""total by region"""`)
	assert.True(t, strings.HasSuffix(p, "Respond with only the SQL query."))
}

func TestExtractSQL(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{"bare", "SELECT 1", "SELECT 1"},
		{"padded", "\n  SELECT 1;  \n", "SELECT 1;"},
		{"sql fence", "```sql\nSELECT \"a\" FROM \"t\"\n```", `SELECT "a" FROM "t"`},
		{"upper fence", "```SQL\nSELECT 1\n```", "SELECT 1"},
		{"plain fence", "```\nSELECT 1\n```", "SELECT 1"},
		{"multiline", "```sql\nSELECT a\nFROM t\nWHERE b > 1\n```", "SELECT a\nFROM t\nWHERE b > 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractSQL(tt.reply))
		})
	}
}
