package control

import (
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/tinytelemetry/logwatchd/internal/model"
)

const dialTimeout = 5 * time.Second

// Attach connects to the control socket and asks the daemon to install the
// connection as the watch sink. The returned connection carries forwarded
// process-start lines; there is no attach acknowledgement.
func Attach(socketPath string) (net.Conn, error) {
	conn, err := net.DialTimeout("unix", socketPath, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("control: dial: %w", err)
	}
	if err := writeCommand(conn, model.CmdAttachWatch); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// Noop sends the no-op readiness signal and disconnects. Used by the
// health-check client once the probe reports the log source readable.
func Noop(socketPath string) error {
	conn, err := net.DialTimeout("unix", socketPath, dialTimeout)
	if err != nil {
		return fmt.Errorf("control: dial: %w", err)
	}
	defer conn.Close()
	return writeCommand(conn, model.CmdNoop)
}

func writeCommand(conn net.Conn, cmd int32) error {
	if err := binary.Write(conn, binary.LittleEndian, cmd); err != nil {
		return fmt.Errorf("control: write command: %w", err)
	}
	return nil
}
