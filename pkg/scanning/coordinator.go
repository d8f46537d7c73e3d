package scanning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kzharvest/harvester/pkg/fetch"
	"github.com/kzharvest/harvester/pkg/processing"
	"github.com/kzharvest/harvester/pkg/storage"
)

// OpenFunc provides the output sink for the scanner with the given name. It
// is called once per scanner; the scanner closes the sink when it stops.
type OpenFunc func(name string) (storage.Sink, error)

// Plan holds the operator's three inputs, minus the output path which lives
// behind OpenFunc.
type Plan struct {
	ForwardStart uint64
	// ForwardCount bounds the forward scan to that many IDs. 0 is unbounded.
	ForwardCount uint64
	// BackwardStart is exclusive: the backward scan visits BackwardStart-1
	// down to 0.
	BackwardStart uint64
}

// Coordinator runs one forward and one backward scanner side by side.
type Coordinator struct {
	Fetcher fetch.Fetcher
	Open    OpenFunc
	DLQ     processing.DLQPublisher
	// Zero Policy.StallDelay and zero Pacing fall back to the defaults.
	Policy  processing.Policy
	Pacing  time.Duration
	Logger  *slog.Logger
	// Sleep overrides the scanners' sleep; nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Run starts both scanners and returns once both have stopped. The scanners
// do not cancel each other: the backward scan finishing leaves the forward
// scan running. Cancellation of ctx is a clean stop and returns nil.
func (c *Coordinator) Run(ctx context.Context, plan Plan) error {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pacing := c.Pacing
	if pacing <= 0 {
		pacing = DefaultPacing
	}
	policy := c.Policy
	if policy.StallDelay <= 0 {
		policy.StallDelay = processing.DefaultStallDelay
	}
	dirs := []Direction{
		ForwardN(plan.ForwardStart, plan.ForwardCount),
		Backward(plan.BackwardStart),
	}

	sinks := make([]storage.Sink, 0, len(dirs))
	for _, dir := range dirs {
		sink, err := c.Open(dir.Name)
		if err != nil {
			for _, s := range sinks {
				s.Close()
			}
			return fmt.Errorf("open sink for %s scan: %w", dir.Name, err)
		}
		sinks = append(sinks, sink)
	}

	var g errgroup.Group
	for i, dir := range dirs {
		dir := dir // per-iteration copy (go.mod targets 1.21 loop semantics)
		sink := sinks[i]
		scanLogger := logger.With("scanner", dir.Name)
		handler := &processing.Handler{
			Sink:     sink,
			DLQ:      c.DLQ,
			Policy:   policy,
			Logger:   scanLogger,
			Frontier: dir.Step == Up,
		}
		opts := []Option{WithPacing(pacing), WithLogger(scanLogger)}
		if c.Sleep != nil {
			opts = append(opts, WithSleeper(c.Sleep))
		}
		sc := New(dir, c.Fetcher, handler, opts...)

		g.Go(func() error {
			defer func() {
				if err := sink.Close(); err != nil {
					scanLogger.Error("closing sink", "error", err)
				}
			}()
			err := sc.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("%s scan: %w", dir.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}
