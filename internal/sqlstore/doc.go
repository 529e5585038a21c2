// Package sqlstore loads CSV files into SQLite tables and runs queries
// against them.
//
// Tables are created from the CSV header with sanitized column names and
// inferred INTEGER, REAL or TEXT types. Query results come back as a
// ResultSet that renders as a markdown or plain-text table and can be
// exported for the dashboard.
package sqlstore
