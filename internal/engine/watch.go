package engine

import "sync"

// watchHub fans committed changes out to live-query subscribers. Both the
// in-memory and the SQLite engines share it: they call notify after every
// successful commit and the hub recomputes each affected subscriber's
// result set.
type watchHub struct {
	mu       sync.Mutex
	nextID   int
	watchers map[int]*watcher
}

func newWatchHub() *watchHub {
	return &watchHub{watchers: make(map[int]*watcher)}
}

// watcher implements Subscription. Delivery is latest-wins over a buffered
// channel: a slow consumer only ever misses intermediate snapshots, never
// the most recent one.
type watcher struct {
	hub        *watchHub
	id         int
	collection string
	query      Query
	ch         chan Snapshot
	closed     bool
}

func (w *watcher) Updates() <-chan Snapshot { return w.ch }

// Close unregisters the watcher and closes its channel. Safe to call twice.
func (w *watcher) Close() {
	w.hub.mu.Lock()
	defer w.hub.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	delete(w.hub.watchers, w.id)
	close(w.ch)
}

// subscribe registers a new watcher and delivers its initial snapshot.
// fetch must be safe to call without any store lock held.
func (h *watchHub) subscribe(collection string, q Query, fetch func(string, Query) ([]Document, error)) *watcher {
	h.mu.Lock()
	defer h.mu.Unlock()

	w := &watcher{
		hub:        h,
		id:         h.nextID,
		collection: collection,
		query:      q,
		ch:         make(chan Snapshot, 1),
	}
	h.nextID++
	h.watchers[w.id] = w

	docs, err := fetch(collection, q)
	w.deliver(Snapshot{Docs: docs, Err: err})
	return w
}

// notify recomputes and delivers snapshots for every watcher on the given
// collection. Callers must have released their write lock first so fetch
// can read a consistent post-commit state.
func (h *watchHub) notify(collection string, fetch func(string, Query) ([]Document, error)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, w := range h.watchers {
		if w.collection != collection {
			continue
		}
		docs, err := fetch(w.collection, w.query)
		w.deliver(Snapshot{Docs: docs, Err: err})
	}
}

// deliver pushes a snapshot, displacing a stale undelivered one if present.
// Must be called with the hub lock held.
func (w *watcher) deliver(snap Snapshot) {
	if w.closed {
		return
	}
	select {
	case w.ch <- snap:
	default:
		select {
		case <-w.ch:
		default:
		}
		select {
		case w.ch <- snap:
		default:
		}
	}
}
