package sink

// Sink is a destination for log lines that matched a listener's filter.
// Lines arrive exactly as read from the log source, terminator included.
// Writes come from the single dispatching goroutine; Close may race with a
// concurrent Write only through the registry's watch-slot clear path, which
// both net.Conn and os.File tolerate.
type Sink interface {
	// Write forwards a single line verbatim.
	Write(line string) error

	// Close releases the underlying descriptor.
	Close() error
}
