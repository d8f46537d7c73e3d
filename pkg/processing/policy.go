package processing

import (
	"time"

	"github.com/kzharvest/harvester/pkg/fetch"
)

// DefaultStallDelay is how long a scanner waits before asking again for an ID
// that does not exist yet.
const DefaultStallDelay = 5 * time.Minute

// Action is what a scanner does after a fetch.
type Action int

const (
	// Advance moves the scanner to the next ID.
	Advance Action = iota
	// StallAndRetry waits Decision.Delay and fetches the same ID again.
	StallAndRetry
)

func (a Action) String() string {
	if a == StallAndRetry {
		return "stall_and_retry"
	}
	return "advance"
}

// Decision is the policy's verdict for one fetch outcome.
type Decision struct {
	Action Action
	Delay  time.Duration
	// Gap is set when an ID is skipped after exhausting MaxStalls.
	Gap bool
}

// Policy maps fetch outcomes to scanner actions. The same policy governs both
// scan directions. A zero StallDelay means DefaultStallDelay.
type Policy struct {
	StallDelay time.Duration
	// MaxStalls bounds consecutive NotFound retries of one ID before it is
	// skipped as a gap. 0 retries forever.
	MaxStalls int
}

// DefaultPolicy stalls for five minutes and never gives up on an ID.
func DefaultPolicy() Policy {
	return Policy{StallDelay: DefaultStallDelay}
}

// Decide returns the action for out. stalls is the number of NotFound
// outcomes already seen for the current ID.
func (p Policy) Decide(out fetch.Outcome, stalls int) Decision {
	if out.Kind != fetch.NotFound {
		return Decision{Action: Advance}
	}
	if p.MaxStalls > 0 && stalls >= p.MaxStalls {
		return Decision{Action: Advance, Gap: true}
	}
	delay := p.StallDelay
	if delay <= 0 {
		delay = DefaultStallDelay
	}
	return Decision{Action: StallAndRetry, Delay: delay}
}
