package control

import (
	"encoding/binary"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/tinytelemetry/logwatchd/internal/model"
	"github.com/tinytelemetry/logwatchd/internal/registry"
	"github.com/tinytelemetry/logwatchd/internal/sink"
)

// DefaultSocketPath returns the default Unix socket path for the control
// endpoint. It prefers $XDG_RUNTIME_DIR/logwatchd/control.sock, falling back
// to a state directory under the home.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "logwatchd", "control.sock")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/logwatchd.sock"
	}
	return filepath.Join(home, ".local", "state", "logwatchd", "control.sock")
}

// Listen creates the control endpoint. It is called exactly once at daemon
// start; connections are accepted serially by at most one attach task at a
// time, so a second concurrent attach attempt simply queues.
func Listen(socketPath string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(socketPath), 0755); err != nil {
		return nil, fmt.Errorf("control: mkdir: %w", err)
	}

	// Remove stale socket if it exists.
	if _, err := os.Stat(socketPath); err == nil {
		conn, dialErr := net.DialTimeout("unix", socketPath, 500*time.Millisecond)
		if dialErr != nil {
			os.Remove(socketPath)
		} else {
			conn.Close()
			return nil, fmt.Errorf("control: another daemon is already listening on %s", socketPath)
		}
	}

	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("control: listen: %w", err)
	}
	log.Printf("control: listening on %s", socketPath)
	return ln, nil
}

// ServeAttach accepts control connections until one sends CmdAttachWatch,
// installs that connection as the watch sink, and returns. Connections
// sending any other command are closed silently and accepting continues.
// It returns a non-nil error only when the listener is closed, which is how
// the dispatcher cancels a pending attach task on shutdown.
func ServeAttach(ln net.Listener, reg *registry.Registry) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		cmd, err := readCommand(conn)
		if err != nil || cmd != model.CmdAttachWatch {
			conn.Close()
			continue
		}
		reg.SetSink(model.EventWatch, sink.NewConnSink(conn))
		log.Printf("control: watch sink attached")
		return nil
	}
}

func readCommand(conn net.Conn) (int32, error) {
	var cmd int32
	if err := binary.Read(conn, binary.LittleEndian, &cmd); err != nil {
		return 0, fmt.Errorf("control: read command: %w", err)
	}
	return cmd, nil
}
