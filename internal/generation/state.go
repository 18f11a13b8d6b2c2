package generation

import (
	"errors"
	"sync"
	"time"
)

type State string

const (
	StateIdle       State = "idle"
	StateRefining   State = "refining"
	StateGenerating State = "generating"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

var ErrInFlight = errors.New("a design is already being generated")

// Tracker is the request state machine of one session. Only one run may be
// between Begin and finish at a time.
type Tracker struct {
	mu        sync.Mutex
	state     State
	lastErr   error
	changedAt time.Time
}

func NewTracker() *Tracker {
	return &Tracker{state: StateIdle, changedAt: time.Now()}
}

func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == "" {
		return StateIdle
	}
	return t.state
}

func (t *Tracker) LastError() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

func (t *Tracker) Busy() bool {
	s := t.State()
	return s == StateRefining || s == StateGenerating
}

// Begin moves Idle, Succeeded or Failed to Refining.
func (t *Tracker) Begin() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateRefining || t.state == StateGenerating {
		return ErrInFlight
	}
	t.state = StateRefining
	t.lastErr = nil
	t.changedAt = time.Now()
	return nil
}

func (t *Tracker) advance(to State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = to
	t.changedAt = time.Now()
}

func (t *Tracker) finish(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.state = StateFailed
	} else {
		t.state = StateSucceeded
	}
	t.lastErr = err
	t.changedAt = time.Now()
}
