package scanning

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/kzharvest/harvester/pkg/fetch"
	"github.com/kzharvest/harvester/pkg/processing"
)

// DefaultPacing is the pause between two advancing requests of one scanner.
const DefaultPacing = 727 * time.Millisecond

// State is the scanner's position in its run loop.
type State int32

const (
	Idle State = iota
	Running
	Stalled
	Done
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Stalled:
		return "stalled"
	case Done:
		return "done"
	default:
		return "idle"
	}
}

// OutcomeHandler applies a fetch outcome and decides what comes next.
type OutcomeHandler interface {
	Handle(ctx context.Context, id uint64, out fetch.Outcome, stalls int) processing.Decision
}

// Stats counts what a scanner has seen so far.
type Stats struct {
	Fetches  int64
	Found    int64
	NotFound int64
	Errors   int64
	Gaps     int64
	Current  uint64
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithPacing sets the delay between advancing requests. Default: 727ms.
func WithPacing(d time.Duration) Option {
	return func(s *Scanner) { s.pacing = d }
}

// WithLogger sets the scanner's logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Scanner) { s.logger = l }
}

// WithSleeper replaces the context-aware sleep used for pacing and stalls.
func WithSleeper(f func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Scanner) { s.sleep = f }
}

// Scanner walks one Direction, fetching every ID and handing the outcome to
// its handler. A NotFound outcome holds the scanner on the same ID; anything
// else moves it one step.
type Scanner struct {
	dir     Direction
	fetcher fetch.Fetcher
	handler OutcomeHandler
	pacing  time.Duration
	logger  *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error

	state    atomic.Int32
	current  atomic.Uint64
	fetches  atomic.Int64
	found    atomic.Int64
	notFound atomic.Int64
	failures atomic.Int64
	gaps     atomic.Int64
}

// New creates a Scanner for dir.
func New(dir Direction, fetcher fetch.Fetcher, handler OutcomeHandler, opts ...Option) *Scanner {
	s := &Scanner{
		dir:     dir,
		fetcher: fetcher,
		handler: handler,
		pacing:  DefaultPacing,
		logger:  slog.Default(),
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run drives the scan until the direction's bound is crossed or ctx ends.
// It returns nil on completion and ctx.Err() on cancellation; an unbounded
// forward scan only ever returns through cancellation.
func (s *Scanner) Run(ctx context.Context) error {
	defer s.logSummary()

	id, ok := s.dir.First()
	if !ok {
		s.setState(Done)
		s.logger.Info("nothing to scan")
		return nil
	}
	s.logger.Info("scanner started", "start", id, "step", s.dir.Step, "bounded", s.dir.Bounded())

	stalls := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.setState(Running)
		s.current.Store(id)

		out := s.fetcher.Fetch(ctx, id)
		if out.Kind == fetch.TransportError && ctx.Err() != nil {
			return ctx.Err()
		}
		s.count(out)

		decision := s.handler.Handle(ctx, id, out, stalls)
		if decision.Action == processing.StallAndRetry {
			stalls++
			s.setState(Stalled)
			if err := s.sleep(ctx, decision.Delay); err != nil {
				return err
			}
			continue
		}

		stalls = 0
		if decision.Gap {
			s.gaps.Add(1)
		}
		next, ok := s.dir.Next(id)
		if !ok {
			s.setState(Done)
			s.logger.Info("scanner reached its bound", "last", id)
			return nil
		}
		if err := s.sleep(ctx, s.pacing); err != nil {
			return err
		}
		id = next
	}
}

// State returns the scanner's current state.
func (s *Scanner) State() State { return State(s.state.Load()) }

// Stats returns a snapshot of the scanner's counters.
func (s *Scanner) Stats() Stats {
	return Stats{
		Fetches:  s.fetches.Load(),
		Found:    s.found.Load(),
		NotFound: s.notFound.Load(),
		Errors:   s.failures.Load(),
		Gaps:     s.gaps.Load(),
		Current:  s.current.Load(),
	}
}

func (s *Scanner) setState(st State) { s.state.Store(int32(st)) }

func (s *Scanner) count(out fetch.Outcome) {
	s.fetches.Add(1)
	switch out.Kind {
	case fetch.Found:
		s.found.Add(1)
	case fetch.NotFound:
		s.notFound.Add(1)
	default:
		s.failures.Add(1)
	}
}

func (s *Scanner) logSummary() {
	st := s.Stats()
	s.logger.Info("scanner stopped",
		"state", s.State(),
		"fetches", st.Fetches,
		"found", st.Found,
		"not_found", st.NotFound,
		"errors", st.Errors,
		"gaps", st.Gaps,
		"current", st.Current,
	)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
