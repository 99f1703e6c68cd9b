package sink

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

const (
	// BackupSuffix is appended to a pre-existing log file when it is rotated
	// aside at startup. This is the only rotation the daemon performs.
	BackupSuffix = ".bak"

	defaultFileMode = 0644
	defaultDirMode  = 0755
)

// FileSink appends log lines to a plain-text file, one record per line.
type FileSink struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// NewFileSink rotates any existing file at path to path+BackupSuffix, then
// creates the file truncated.
func NewFileSink(path string) (*FileSink, error) {
	if path == "" {
		return nil, errors.New("sink: file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), defaultDirMode); err != nil {
		return nil, fmt.Errorf("sink: mkdir: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, path+BackupSuffix); err != nil {
			return nil, fmt.Errorf("sink: rotate: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, defaultFileMode)
	if err != nil {
		return nil, fmt.Errorf("sink: open: %w", err)
	}
	return &FileSink{path: path, file: f}, nil
}

// Write appends one line exactly as received.
func (s *FileSink) Write(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return errors.New("sink: file closed")
	}
	if _, err := io.WriteString(s.file, line); err != nil {
		return fmt.Errorf("sink: write %s: %w", s.path, err)
	}
	return nil
}

// Close closes the underlying file. Further writes fail.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// Path returns the sink's file path.
func (s *FileSink) Path() string { return s.path }
