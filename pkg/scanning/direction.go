package scanning

import "math"

// Step is the increment applied to the ID after each advance.
type Step int

const (
	Up   Step = 1
	Down Step = -1
)

func (s Step) String() string {
	if s == Down {
		return "down"
	}
	return "up"
}

// Direction describes the ID sequence one scanner walks.
type Direction struct {
	Name  string
	Start uint64
	Step  Step
	// Limit is an exclusive upper bound for upward scans. 0 means unbounded.
	Limit uint64
	empty bool
}

// Forward walks start, start+1, ... without end.
func Forward(start uint64) Direction {
	return Direction{Name: "forward", Start: start, Step: Up}
}

// ForwardN walks count IDs upward from start. count 0 is unbounded.
func ForwardN(start, count uint64) Direction {
	d := Forward(start)
	if count == 0 {
		return d
	}
	if start > math.MaxUint64-count {
		d.Limit = math.MaxUint64
	} else {
		d.Limit = start + count
	}
	return d
}

// Backward walks from-1 down to 0 inclusive. from itself is not visited, and
// Backward(0) visits nothing.
func Backward(from uint64) Direction {
	if from == 0 {
		return Direction{Name: "backward", Step: Down, empty: true}
	}
	return Direction{Name: "backward", Start: from - 1, Step: Down}
}

// First returns the first ID to visit, or false if the sequence is empty.
func (d Direction) First() (uint64, bool) {
	if d.empty {
		return 0, false
	}
	if d.Step == Up && d.Limit > 0 && d.Start >= d.Limit {
		return 0, false
	}
	return d.Start, true
}

// Next returns the ID after id, or false once the bound is crossed.
func (d Direction) Next(id uint64) (uint64, bool) {
	if d.Step == Down {
		if id == 0 {
			return 0, false
		}
		return id - 1, true
	}
	if id == math.MaxUint64 {
		return 0, false
	}
	next := id + 1
	if d.Limit > 0 && next >= d.Limit {
		return 0, false
	}
	return next, true
}

// Bounded reports whether the sequence ends on its own.
func (d Direction) Bounded() bool {
	return d.Step == Down || d.Limit > 0
}
