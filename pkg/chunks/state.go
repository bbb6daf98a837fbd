package chunks

import (
	"sort"
	"sync"
)

// State is the load state of one chunk.
type State int

const (
	StateUnloaded State = iota
	StateInFlight
	StateLoaded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateInFlight:
		return "in-flight"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StateTable tracks per-chunk state for one session. Indices never seen are
// unloaded. At most one fetch per index can be in flight: TryStart is the
// only way to enter StateInFlight and it is an atomic check-and-set.
type StateTable struct {
	mu     sync.Mutex
	states map[int]State
	done   map[int]chan struct{}
}

// NewStateTable returns an empty table.
func NewStateTable() *StateTable {
	return &StateTable{
		states: make(map[int]State),
		done:   make(map[int]chan struct{}),
	}
}

// State returns the current state of index i.
func (t *StateTable) State(i int) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.states[i]
}

// TryStart marks i in flight if it is unloaded and reports whether the
// caller now owns the fetch. Otherwise it returns the current state and, for
// an in-flight chunk, a channel closed when that fetch settles.
func (t *StateTable) TryStart(i int) (started bool, current State, done <-chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch st := t.states[i]; st {
	case StateUnloaded:
		t.states[i] = StateInFlight
		ch := make(chan struct{})
		t.done[i] = ch
		return true, StateInFlight, ch
	case StateInFlight:
		return false, st, t.done[i]
	default:
		return false, st, nil
	}
}

// Finish settles the in-flight fetch of i with final state st (loaded,
// failed, or unloaded when the fetch was abandoned) and wakes waiters.
func (t *StateTable) Finish(i int, st State) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.states[i] != StateInFlight {
		return
	}
	if st == StateUnloaded {
		delete(t.states, i)
	} else {
		t.states[i] = st
	}
	if ch, ok := t.done[i]; ok {
		close(ch)
		delete(t.done, i)
	}
}

// ResetFailed returns every failed chunk to unloaded and reports which.
func (t *StateTable) ResetFailed() []int {
	t.mu.Lock()
	defer t.mu.Unlock()

	var reset []int
	for i, st := range t.states {
		if st == StateFailed {
			delete(t.states, i)
			reset = append(reset, i)
		}
	}
	sort.Ints(reset)
	return reset
}

// Counts summarises the table.
type Counts struct {
	Loaded   int
	InFlight int
	Failed   int
}

// Counts returns how many chunks are in each non-idle state.
func (t *StateTable) Counts() Counts {
	t.mu.Lock()
	defer t.mu.Unlock()

	var c Counts
	for _, st := range t.states {
		switch st {
		case StateLoaded:
			c.Loaded++
		case StateInFlight:
			c.InFlight++
		case StateFailed:
			c.Failed++
		}
	}
	return c
}

// Indices returns the sorted indices currently in state st. Unloaded is not
// enumerable and returns nil.
func (t *StateTable) Indices(st State) []int {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []int
	for i, s := range t.states {
		if s == st {
			out = append(out, i)
		}
	}
	sort.Ints(out)
	return out
}
