package fetch

import (
	"context"
	"fmt"

	"github.com/kzharvest/harvester/pkg/record"
)

// Kind tags the result of a single fetch.
type Kind int

const (
	// Found carries a decoded record.
	Found Kind = iota
	// NotFound means the ID does not (yet) hold a record.
	NotFound
	// TransportError covers connection failures, unexpected statuses and
	// bodies that do not decode.
	TransportError
)

func (k Kind) String() string {
	switch k {
	case Found:
		return "found"
	case NotFound:
		return "not_found"
	case TransportError:
		return "transport_error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome is the tagged result of Fetcher.Fetch.
type Outcome struct {
	Kind   Kind
	Record record.Record
	Err    error
}

func FoundOutcome(rec record.Record) Outcome { return Outcome{Kind: Found, Record: rec} }

func NotFoundOutcome() Outcome { return Outcome{Kind: NotFound} }

func TransportOutcome(err error) Outcome { return Outcome{Kind: TransportError, Err: err} }

// Fetcher retrieves one record by ID. Implementations must not retry; retry
// policy belongs to the caller.
type Fetcher interface {
	Fetch(ctx context.Context, id uint64) Outcome
}

// Func adapts a plain function to the Fetcher interface.
type Func func(ctx context.Context, id uint64) Outcome

func (f Func) Fetch(ctx context.Context, id uint64) Outcome { return f(ctx, id) }
