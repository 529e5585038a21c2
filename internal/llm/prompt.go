package llm

import (
	"fmt"
	"regexp"
	"strings"
)

// AnalyzePrompt asks the model to interpret a mailbox request.
func AnalyzePrompt(query string) string {
	return "Analyze this Gmail request: " + query
}

const sqlPromptTemplate = `You are a professional SQL generator. A user uploaded a CSV file, which is now a SQLite table named "%s".

The schema of the table is:
%s

Your task is to convert natural language questions into pure SQL queries. DO NOT provide JavaScript, Python, explanations, markdown, or anything else. Only valid SQL.

Wrap table and column names in double quotes.

Here is the user's question:
"""%s"""

Respond with only the SQL query.`

// SQLPrompt asks the model to translate question into a query over table.
// schema holds one "name (TYPE)" line per column.
func SQLPrompt(table, schema, question string) string {
	return fmt.Sprintf(sqlPromptTemplate, table, schema, question)
}

var fencedBlock = regexp.MustCompile("(?is)^```[a-z]*\\s*(.*?)\\s*```$")

// ExtractSQL strips a surrounding markdown code fence from a model reply.
func ExtractSQL(reply string) string {
	reply = strings.TrimSpace(reply)
	if m := fencedBlock.FindStringSubmatch(reply); m != nil {
		return strings.TrimSpace(m[1])
	}
	return reply
}
