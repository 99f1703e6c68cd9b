package logsource

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"sync"
	"syscall"

	"github.com/tinytelemetry/logwatchd/internal/model"
)

// FilterArgs is the full argument set for the monitored log stream: the
// events, main and crash buffers in threadtime form, with default output
// restricted to fatal-only while the process-start and product tags pass at
// any severity.
func FilterArgs() []string {
	return []string{
		"-b", "events", "-b", "main", "-b", "crash",
		"-v", "threadtime",
		"-s", "am_proc_start", "Magisk", "*:F",
	}
}

// Source wraps one log source child process and turns its output into a
// stream of lines. Lines keep their newline terminator; an over-length line
// is read into a growable buffer until its terminator is found, never split
// across records. The line channel closes when the child's output ends,
// which is how the dispatcher learns the child died.
type Source struct {
	cmd   *exec.Cmd
	lines chan string

	waitOnce sync.Once
	waitErr  error
}

// Start spawns command with the given arguments and begins reading lines in
// a background goroutine.
func Start(command string, args ...string) (*Source, error) {
	cmd := exec.Command(command, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("logsource: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("logsource: start %s: %w", command, err)
	}

	s := &Source{
		cmd:   cmd,
		lines: make(chan string, model.DefaultLineBuffer),
	}
	go s.read(stdout)
	return s, nil
}

func (s *Source) read(stdout io.Reader) {
	defer close(s.lines)

	reader := bufio.NewReader(stdout)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			s.lines <- line
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Printf("logsource: read: %v", err)
			}
			return
		}
	}
}

// Lines returns the stream of raw log lines. It is closed when the child's
// output ends.
func (s *Source) Lines() <-chan string { return s.lines }

// Stop signals the child to terminate. The pipe read unblocks with EOF and
// the line channel closes shortly after.
func (s *Source) Stop() {
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Signal(syscall.SIGTERM)
	}
}

// Wait reaps the child, once. Safe to call after Stop or after the line
// channel closed on its own.
func (s *Source) Wait() error {
	s.waitOnce.Do(func() {
		s.waitErr = s.cmd.Wait()
	})
	return s.waitErr
}
