package scanning

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kzharvest/harvester/pkg/fetch"
	"github.com/kzharvest/harvester/pkg/processing"
	"github.com/kzharvest/harvester/pkg/record"
)

// scriptedFetcher replays queued outcomes per ID and falls back to Found.
type scriptedFetcher struct {
	mu      sync.Mutex
	script  map[uint64][]fetch.Outcome
	visits  []uint64
	onFetch func(id uint64, n int)
}

func (f *scriptedFetcher) Fetch(ctx context.Context, id uint64) fetch.Outcome {
	f.mu.Lock()
	f.visits = append(f.visits, id)
	n := len(f.visits)
	var out fetch.Outcome
	if q := f.script[id]; len(q) > 0 {
		out = q[0]
		f.script[id] = q[1:]
	} else {
		out = fetch.FoundOutcome(record.Record{ID: &id})
	}
	f.mu.Unlock()
	if f.onFetch != nil {
		f.onFetch(id, n)
	}
	return out
}

func (f *scriptedFetcher) visited() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint64(nil), f.visits...)
}

type recordingSink struct {
	mu  sync.Mutex
	ids []uint64
}

func (s *recordingSink) Persist(_ context.Context, rec record.Record) error {
	s.mu.Lock()
	s.ids = append(s.ids, *rec.ID)
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) Close() error { return nil }

type sleepLog struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (l *sleepLog) sleep(ctx context.Context, d time.Duration) error {
	l.mu.Lock()
	l.delays = append(l.delays, d)
	l.mu.Unlock()
	return ctx.Err()
}

const (
	testPacing = 727 * time.Millisecond
	testStall  = 5 * time.Minute
)

func newTestScanner(dir Direction, f fetch.Fetcher, sink *recordingSink, sl *sleepLog) *Scanner {
	h := &processing.Handler{Sink: sink, Policy: processing.Policy{StallDelay: testStall}}
	return New(dir, f, h, WithPacing(testPacing), WithSleeper(sl.sleep))
}

func TestNotFoundHoldsPosition(t *testing.T) {
	f := &scriptedFetcher{script: map[uint64][]fetch.Outcome{
		1: {fetch.NotFoundOutcome(), fetch.NotFoundOutcome(), fetch.NotFoundOutcome()},
	}}
	sink := &recordingSink{}
	sl := &sleepLog{}

	if err := newTestScanner(Backward(2), f, sink, sl).Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if got, want := f.visited(), []uint64{1, 1, 1, 1, 0}; !equalIDs(got, want) {
		t.Fatalf("visits = %v, want %v", got, want)
	}
	if got, want := sink.ids, []uint64{1, 0}; !equalIDs(got, want) {
		t.Fatalf("persisted = %v, want %v", got, want)
	}
	wantDelays := []time.Duration{testStall, testStall, testStall, testPacing}
	if len(sl.delays) != len(wantDelays) {
		t.Fatalf("delays = %v, want %v", sl.delays, wantDelays)
	}
	for i := range wantDelays {
		if sl.delays[i] != wantDelays[i] {
			t.Fatalf("delays = %v, want %v", sl.delays, wantDelays)
		}
	}
}

func TestTransportErrorAdvancesOneStep(t *testing.T) {
	f := &scriptedFetcher{script: map[uint64][]fetch.Outcome{
		2: {fetch.TransportOutcome(errors.New("connection reset"))},
	}}
	sink := &recordingSink{}

	if err := newTestScanner(Backward(3), f, sink, &sleepLog{}).Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if got, want := f.visited(), []uint64{2, 1, 0}; !equalIDs(got, want) {
		t.Fatalf("visits = %v, want %v", got, want)
	}
	if got, want := sink.ids, []uint64{1, 0}; !equalIDs(got, want) {
		t.Fatalf("persisted = %v, want %v", got, want)
	}
}

func TestBackwardScanVisitsDownToZero(t *testing.T) {
	f := &scriptedFetcher{}
	sink := &recordingSink{}
	sc := newTestScanner(Backward(5), f, sink, &sleepLog{})

	if err := sc.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if got, want := f.visited(), []uint64{4, 3, 2, 1, 0}; !equalIDs(got, want) {
		t.Fatalf("visits = %v, want %v", got, want)
	}
	if sc.State() != Done {
		t.Fatalf("state = %s, want done", sc.State())
	}
	st := sc.Stats()
	if st.Fetches != 5 || st.Found != 5 || st.Current != 0 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestBackwardFromZeroDoesNothing(t *testing.T) {
	f := &scriptedFetcher{}
	if err := newTestScanner(Backward(0), f, &recordingSink{}, &sleepLog{}).Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(f.visited()) != 0 {
		t.Fatalf("expected no visits, got %v", f.visited())
	}
}

func TestForwardScanRunsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const window = 50
	f := &scriptedFetcher{onFetch: func(id uint64, n int) {
		if n == window {
			cancel()
		}
	}}
	sink := &recordingSink{}

	err := newTestScanner(Forward(100), f, sink, &sleepLog{}).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	visits := f.visited()
	if len(visits) != window {
		t.Fatalf("got %d visits, want %d", len(visits), window)
	}
	for i, id := range visits {
		if id != uint64(100+i) {
			t.Fatalf("visit %d = %d, want %d", i, id, 100+i)
		}
	}
}

func TestForwardNStopsAfterCount(t *testing.T) {
	f := &scriptedFetcher{}
	sink := &recordingSink{}
	if err := newTestScanner(ForwardN(10, 3), f, sink, &sleepLog{}).Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if got, want := sink.ids, []uint64{10, 11, 12}; !equalIDs(got, want) {
		t.Fatalf("persisted = %v, want %v", got, want)
	}
}

func TestStallIsInterruptedByCancel(t *testing.T) {
	f := &scriptedFetcher{script: map[uint64][]fetch.Outcome{
		7: {fetch.NotFoundOutcome()},
	}}
	h := &processing.Handler{Policy: processing.Policy{StallDelay: time.Hour}}
	sc := New(Forward(7), f, h, WithPacing(0))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sc.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for sc.State() != Stalled {
		if time.Now().After(deadline) {
			t.Fatal("scanner never stalled")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestGapSkipsAfterMaxStalls(t *testing.T) {
	f := &scriptedFetcher{script: map[uint64][]fetch.Outcome{
		3: {fetch.NotFoundOutcome(), fetch.NotFoundOutcome(), fetch.NotFoundOutcome()},
	}}
	sink := &recordingSink{}
	h := &processing.Handler{Sink: sink, Policy: processing.Policy{StallDelay: time.Second, MaxStalls: 2}}
	sc := New(Backward(4), f, h, WithSleeper((&sleepLog{}).sleep))

	if err := sc.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if got, want := f.visited(), []uint64{3, 3, 3, 2, 1, 0}; !equalIDs(got, want) {
		t.Fatalf("visits = %v, want %v", got, want)
	}
	if got, want := sink.ids, []uint64{2, 1, 0}; !equalIDs(got, want) {
		t.Fatalf("persisted = %v, want %v", got, want)
	}
	if sc.Stats().Gaps != 1 {
		t.Fatalf("gaps = %d, want 1", sc.Stats().Gaps)
	}
}

func TestCancelledFetchIsNotHandled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := fetch.Func(func(ctx context.Context, id uint64) fetch.Outcome {
		cancel()
		return fetch.TransportOutcome(ctx.Err())
	})
	sink := &recordingSink{}
	sc := New(Forward(1), f, &processing.Handler{Sink: sink, Policy: processing.DefaultPolicy()})

	if err := sc.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if sc.Stats().Errors != 0 {
		t.Fatalf("shutdown fetch counted as error: %+v", sc.Stats())
	}
}
