package model

// Shared defaults used by both the daemon and health-check binaries.
const (
	// DefaultLogcatPath is the log source command. Resolved via PATH when
	// not absolute; on Android this is /system/bin/logcat.
	DefaultLogcatPath = "logcat"

	// DefaultAPIPort serves the read-only status API.
	DefaultAPIPort = 7600

	// DefaultLineBuffer is the channel buffer between the log source reader
	// and the dispatcher.
	DefaultLineBuffer = 1000
)
