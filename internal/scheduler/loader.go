package scheduler

import "context"

// LoadFunc produces the cached file for key. An empty result means failure.
type LoadFunc func(ctx context.Context, key string) string

// Result is delivered once per dispatched item.
type Result struct {
	Key  string
	Path string
	OK   bool
}

// Loader binds a Tracker to a Pool: dispatched items are loaded on the pool
// and their outcome is recorded before onDone is called.
type Loader struct {
	tracker *Tracker
	pool    *Pool
	load    LoadFunc
	onDone  func(Result)
}

// NewLoader creates a loader with its own tracker.
func NewLoader(pool *Pool, load LoadFunc, onDone func(Result)) *Loader {
	if onDone == nil {
		onDone = func(Result) {}
	}
	return &Loader{
		tracker: NewTracker(),
		pool:    pool,
		load:    load,
		onDone:  onDone,
	}
}

// Tracker exposes the loader's item states.
func (l *Loader) Tracker() *Tracker {
	return l.tracker
}

// Update dispatches loads for the items that became due with this viewport.
func (l *Loader) Update(visible Rect, margin int, items []Item) []string {
	return l.tracker.Dispatch(visible, margin, items, func(key string) error {
		return l.pool.Submit(func(ctx context.Context) {
			path := l.load(ctx, key)
			ok := path != ""
			l.tracker.Complete(key, ok)
			l.onDone(Result{Key: key, Path: path, OK: ok})
		})
	})
}
