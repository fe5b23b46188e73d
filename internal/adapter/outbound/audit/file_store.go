// Package audit provides audit trail persistence: JSON Lines to a file or
// stream, or a SQLite database.
package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/odisys/ces-gate/internal/domain/audit"
)

// FileStore implements audit.Store by appending JSON Lines to a file.
type FileStore struct {
	mu   sync.Mutex
	file *os.File
	w    *bufio.Writer
}

// NewFileStore opens (creating if needed) the audit file at path.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit file: %w", err)
	}
	return &FileStore{file: f, w: bufio.NewWriter(f)}, nil
}

// Compile-time check that FileStore implements audit.Store.
var _ audit.Store = (*FileStore)(nil)

// Write appends one record as a JSON line and flushes it. Audit records are
// flushed per write so a crash loses at most the in-flight record.
func (s *FileStore) Write(_ context.Context, record audit.Record) error {
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(line); err != nil {
		return fmt.Errorf("write audit record: %w", err)
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("write audit record: %w", err)
	}
	return s.w.Flush()
}

// Close flushes and closes the audit file.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.w.Flush(); err != nil {
		_ = s.file.Close()
		return err
	}
	return s.file.Close()
}

// StreamStore implements audit.Store by writing JSON Lines to any writer,
// typically stdout.
type StreamStore struct {
	mu sync.Mutex
	w  io.Writer
}

// NewStreamStore creates a StreamStore over w.
func NewStreamStore(w io.Writer) *StreamStore {
	return &StreamStore{w: w}
}

var _ audit.Store = (*StreamStore)(nil)

// Write emits one record as a JSON line.
func (s *StreamStore) Write(_ context.Context, record audit.Record) error {
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = fmt.Fprintf(s.w, "%s\n", line)
	return err
}

// Close is a no-op: the stream is owned by the caller.
func (s *StreamStore) Close() error { return nil }
