package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/kzharvest/harvester/pkg/record"
	"github.com/kzharvest/harvester/pkg/storage"
)

// Sink appends one JSON line per record to a file opened in append mode.
// Every line goes out in a single write call, so several Sinks holding their
// own handle on the same path never split each other's lines.
type Sink struct {
	mu      sync.Mutex
	f       *os.File
	path    string
	created bool
}

// Open opens path for appending, creating it when missing.
func Open(path string) (*Sink, error) {
	created := false
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		created = true
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("file sink: open %s: %w", path, err)
	}
	return &Sink{f: f, path: path, created: created}, nil
}

// Path returns the file the sink appends to.
func (s *Sink) Path() string { return s.path }

// Created reports whether Open had to create the file.
func (s *Sink) Created() bool { return s.created }

// Persist encodes rec and appends it as one line.
func (s *Sink) Persist(_ context.Context, rec record.Record) error {
	line, err := record.Encode(rec)
	if err != nil {
		return fmt.Errorf("file sink: %w: %w", storage.ErrSerialization, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return fmt.Errorf("file sink: %w: %s is closed", storage.ErrIO, s.path)
	}
	if _, err := s.f.Write(line); err != nil {
		return fmt.Errorf("file sink: %w: write %s %s: %w", storage.ErrIO, rec.Label(), s.path, err)
	}
	return nil
}

// Close syncs and closes the file. Calling Close twice is a no-op.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	f := s.f
	s.f = nil
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("file sink: sync %s: %w", s.path, err)
	}
	return f.Close()
}
