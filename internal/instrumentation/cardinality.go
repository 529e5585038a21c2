package instrumentation

import "strings"

// Operation label values for backend metrics and spans.
const (
	OperationList     = "list"
	OperationGet      = "get"
	OperationSend     = "send"
	OperationDelete   = "delete"
	OperationSearch   = "search"
	OperationLoad     = "load"
	OperationQuery    = "query"
	OperationSchema   = "schema"
	OperationExport   = "export"
	OperationComplete = "complete"
	OperationRefresh  = "refresh"
)

var knownLabels = map[string]bool{
	"ALL": true, "INBOX": true, "SENT": true, "DRAFT": true, "SPAM": true, "TRASH": true,
}

// LabelValue bounds a mailbox label to the fixed search label set so that it
// can be used as a metric attribute. Anything else becomes "other".
func LabelValue(label string) string {
	l := strings.ToUpper(strings.TrimSpace(label))
	if l == "" {
		return "INBOX"
	}
	if knownLabels[l] {
		return l
	}
	return "other"
}
