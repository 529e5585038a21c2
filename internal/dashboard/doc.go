// Package dashboard serves a small web page that charts the latest SQL
// query result and reloads whenever a new result is stored.
//
// Charts are rendered with go-echarts. Updates are pushed to the browser
// over Server-Sent Events from the session hub, so the page never polls.
//
// Routes:
//
//	GET /            the page
//	GET /chart       the chart for ?kind=bar|line|scatter and optional ?session=
//	GET /events      Server-Sent Events, one message per stored result
//	GET /api/result  the latest result as JSON
//
// WritePlot renders the same chart into a standalone HTML file.
package dashboard
