package logsource

import (
	"log"
	"os/exec"
	"syscall"
)

// Probe checks that the log source is currently readable. It spawns command
// with no filter arguments, performs exactly one blocking one-byte read with
// no timeout, then terminates and reaps the child regardless of outcome.
//
// Probe is the sole gate on the daemon's loggable flag: an unhealthy result
// disables logging permanently for the run.
func Probe(command string) bool {
	cmd := exec.Command(command)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		log.Printf("probe: stdout pipe: %v", err)
		return false
	}
	if err := cmd.Start(); err != nil {
		log.Printf("probe: cannot start %s: %v", command, err)
		return false
	}

	buf := make([]byte, 1)
	n, _ := stdout.Read(buf)

	if cmd.Process != nil {
		_ = cmd.Process.Signal(syscall.SIGTERM)
	}
	_ = cmd.Wait()

	if n != len(buf) {
		log.Printf("probe: cannot read from %s, logging unavailable", command)
		return false
	}
	return true
}
