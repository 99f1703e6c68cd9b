package filter

import "strings"

// Tokens recognized by the filters in the structured "threadtime" log form.
const (
	// ProcStartToken marks a process-start event record.
	ProcStartToken = "am_proc_start"

	// ProductMarker matches the product tag with its preceding separator so
	// the byte in front of it can be inspected for the severity indicator.
	ProductMarker = " Magisk"
)

// Filter is a pure predicate over one raw log line (terminator included).
// Filters are stateless and safe to call concurrently.
type Filter func(line string) bool

// ProcStart reports whether line is a process-start event.
func ProcStart(line string) bool {
	return strings.Contains(line, ProcStartToken)
}

// ProductLog reports whether line mentions the product tag at a severity
// worth persisting. The byte immediately before the first marker occurrence
// is the severity indicator; debug and verbose records are excluded. A
// marker at offset zero has no severity byte and never matches.
func ProductLog(line string) bool {
	i := strings.Index(line, ProductMarker)
	if i <= 0 {
		return false
	}
	return line[i-1] != 'D' && line[i-1] != 'V'
}

// DebugCatchAll reports whether line is anything other than a process-start
// event. It feeds the auxiliary diagnostic sink.
func DebugCatchAll(line string) bool {
	return !strings.Contains(line, ProcStartToken)
}
