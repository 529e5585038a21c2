// Package sql_tools provides the MCP tools of the query server: CSV upload,
// natural-language to SQL translation, manual queries and result export.
//
// Each MCP client session keeps its own uploaded table and last result.
// Every stored result is published on the session hub, which is how the
// dashboard learns that it should redraw.
//
// Tools:
//   - sql_upload_csv: load a CSV file into a table named after the file
//   - sql_nl_to_sql: ask the language model for a query and run it
//   - sql_run_manual: run a query as written
//   - sql_show_answer: the last result as a text table
//   - sql_show_table_head: the first rows of the uploaded table
//   - sql_export_for_dash: write the last result to the data directory
//   - sql_show_plot: render the last result as a standalone chart
package sql_tools
