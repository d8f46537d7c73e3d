package storage

import (
	"context"
	"errors"

	"github.com/kzharvest/harvester/pkg/record"
)

var (
	// ErrSerialization marks a record that could not be rendered for the sink.
	ErrSerialization = errors.New("serialization failed")
	// ErrIO marks a failed write to the underlying destination.
	ErrIO = errors.New("io failed")
)

// Sink persists harvested records. Failures are reported per record and are
// never fatal to the caller's scan.
type Sink interface {
	Persist(ctx context.Context, rec record.Record) error
	Close() error
}

// Queuer is implemented by sinks whose Persist only accepts the record for a
// later write.
type Queuer interface {
	Queued() bool
}

// IsQueued reports whether s defers writes past Persist.
func IsQueued(s Sink) bool {
	q, ok := s.(Queuer)
	return ok && q.Queued()
}

// NopCloser wraps a sink that is owned elsewhere so several scanners can hold
// it without closing it out from under each other.
func NopCloser(s Sink) Sink {
	return nopCloser{s}
}

type nopCloser struct {
	Sink
}

func (nopCloser) Close() error { return nil }

func (n nopCloser) Queued() bool { return IsQueued(n.Sink) }
