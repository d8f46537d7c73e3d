package multi

import (
	"context"
	"errors"

	"github.com/kzharvest/harvester/pkg/record"
	"github.com/kzharvest/harvester/pkg/storage"
)

// Multi fans out records to several sinks. If one sink fails, the remaining
// sinks still receive the record.
type Multi struct {
	sinks []storage.Sink
}

// New creates a Multi over the given sinks. Nil sinks are skipped.
func New(sinks ...storage.Sink) *Multi {
	m := &Multi{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Persist delivers rec to every sink and joins the errors.
func (m *Multi) Persist(ctx context.Context, rec record.Record) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Persist(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink, collecting errors.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
