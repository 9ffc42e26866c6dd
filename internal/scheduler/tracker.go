package scheduler

import "sync"

// ItemState is the load state of one displayed item.
type ItemState int

const (
	NotRequested ItemState = iota
	Requested
	Loaded
	Failed
)

func (s ItemState) String() string {
	switch s {
	case Requested:
		return "requested"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	default:
		return "not_requested"
	}
}

// Item is a displayed entry identified by a key (an original path or a face id).
type Item struct {
	Key  string `json:"key"`
	Rect Rect   `json:"rect"`
}

// Tracker owns the per-item load state. Failed is terminal, like Loaded.
type Tracker struct {
	mu     sync.Mutex
	states map[string]ItemState
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{states: make(map[string]ItemState)}
}

// Dispatch marks every not-yet-requested item intersecting the visible area
// (expanded by margin) as requested and passes it to submit. The check and the
// flip happen under one lock, so an item is submitted at most once. Items
// submit rejects go back to NotRequested. Returns the submitted keys.
func (t *Tracker) Dispatch(visible Rect, margin int, items []Item, submit func(key string) error) []string {
	area := visible.Expand(margin)

	t.mu.Lock()
	defer t.mu.Unlock()

	var submitted []string
	for _, item := range items {
		if t.states[item.Key] != NotRequested || !item.Rect.Intersects(area) {
			continue
		}
		t.states[item.Key] = Requested
		if err := submit(item.Key); err != nil {
			delete(t.states, item.Key)
			continue
		}
		submitted = append(submitted, item.Key)
	}
	return submitted
}

// Complete records the outcome of a requested load.
func (t *Tracker) Complete(key string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ok {
		t.states[key] = Loaded
	} else {
		t.states[key] = Failed
	}
}

// State returns the current state of key.
func (t *Tracker) State(key string) ItemState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.states[key]
}

// Forget resets key to NotRequested, allowing it to be dispatched again.
func (t *Tracker) Forget(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.states, key)
}

// Reset forgets every item.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.states)
}
