package model

// EventKind identifies one listener slot in the registry. The set is closed:
// slots are fixed at startup and never extended at runtime.
type EventKind int

const (
	// EventWatch is the dynamically attached process-watch sink. It forwards
	// process-start events to an external consumer over a control connection.
	EventWatch EventKind = iota

	// EventPersist is the persistent on-disk log file.
	EventPersist

	// EventDebug is the optional debug log file receiving everything except
	// process-start events.
	EventDebug
)

// Kinds returns all event kinds in enumeration order. Dispatch iterates
// slots in this order so sinks observe a deterministic delivery sequence.
func Kinds() []EventKind {
	return []EventKind{EventWatch, EventPersist, EventDebug}
}

func (k EventKind) String() string {
	switch k {
	case EventWatch:
		return "watch"
	case EventPersist:
		return "persist"
	case EventDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// Control protocol command codes. Each control connection sends exactly one
// little-endian int32; there is no application-level reply.
const (
	// CmdNoop is a readiness signal sent by the health-check client. It has
	// no effect on the daemon.
	CmdNoop int32 = iota

	// CmdAttachWatch installs the sending connection itself as the watch
	// sink. The daemon never writes a response; forwarded log lines start
	// flowing on the same connection.
	CmdAttachWatch
)
