package calendar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Sink delivers a rendered calendar document somewhere a calendar client can
// pick it up.
type Sink interface {
	Deliver(ctx context.Context, name string, body []byte) error
}

// DirSink writes each document as a file in Dir.
type DirSink struct {
	Dir string
}

// Deliver writes body to Dir/name atomically.
func (s *DirSink) Deliver(ctx context.Context, name string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.Dir == "" {
		return errors.New("export directory is empty")
	}
	if name == "" || filepath.Base(name) != name {
		return fmt.Errorf("invalid calendar file name %q", name)
	}

	if err := os.MkdirAll(s.Dir, 0o750); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.Dir, ".pay-*.ics.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write calendar file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync calendar file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close calendar file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("failed to set calendar file permissions: %w", err)
	}

	if err := os.Rename(tmpName, filepath.Join(s.Dir, name)); err != nil {
		return fmt.Errorf("failed to move calendar file into place: %w", err)
	}
	return nil
}

// WriterSink streams documents to W, e.g. stdout for piping into another tool.
type WriterSink struct {
	W  io.Writer
	mu sync.Mutex
}

// Deliver writes body to the underlying writer.
func (s *WriterSink) Deliver(ctx context.Context, _ string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.W.Write(body); err != nil {
		return fmt.Errorf("failed to write calendar document: %w", err)
	}
	return nil
}

// DiscardSink drops every document.
type DiscardSink struct{}

// Deliver does nothing.
func (DiscardSink) Deliver(context.Context, string, []byte) error { return nil }
