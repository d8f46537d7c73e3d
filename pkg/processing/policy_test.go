package processing

import (
	"errors"
	"testing"
	"time"

	"github.com/kzharvest/harvester/pkg/fetch"
	"github.com/kzharvest/harvester/pkg/record"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		out    fetch.Outcome
		stalls int
		want   Decision
	}{
		{
			name:   "found advances",
			policy: DefaultPolicy(),
			out:    fetch.FoundOutcome(record.Record{}),
			want:   Decision{Action: Advance},
		},
		{
			name:   "transport error advances",
			policy: DefaultPolicy(),
			out:    fetch.TransportOutcome(errors.New("dial tcp: refused")),
			want:   Decision{Action: Advance},
		},
		{
			name:   "not found stalls with default delay",
			policy: DefaultPolicy(),
			out:    fetch.NotFoundOutcome(),
			want:   Decision{Action: StallAndRetry, Delay: 5 * time.Minute},
		},
		{
			name:   "zero stall delay uses the default",
			policy: Policy{},
			out:    fetch.NotFoundOutcome(),
			want:   Decision{Action: StallAndRetry, Delay: DefaultStallDelay},
		},
		{
			name:   "unbounded policy keeps stalling",
			policy: Policy{StallDelay: time.Second},
			out:    fetch.NotFoundOutcome(),
			stalls: 10000,
			want:   Decision{Action: StallAndRetry, Delay: time.Second},
		},
		{
			name:   "bounded policy stalls below the limit",
			policy: Policy{StallDelay: time.Second, MaxStalls: 3},
			out:    fetch.NotFoundOutcome(),
			stalls: 2,
			want:   Decision{Action: StallAndRetry, Delay: time.Second},
		},
		{
			name:   "bounded policy skips a gap at the limit",
			policy: Policy{StallDelay: time.Second, MaxStalls: 3},
			out:    fetch.NotFoundOutcome(),
			stalls: 3,
			want:   Decision{Action: Advance, Gap: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.policy.Decide(tt.out, tt.stalls)
			if got != tt.want {
				t.Fatalf("got %+v want %+v", got, tt.want)
			}
		})
	}
}

func TestActionString(t *testing.T) {
	if Advance.String() != "advance" || StallAndRetry.String() != "stall_and_retry" {
		t.Fatalf("unexpected action names: %s %s", Advance, StallAndRetry)
	}
}
