package session

import "sync"

// Observer holds the current Snapshot for one browser session and notifies
// subscribers when it changes.
//
// The snapshot is replaced atomically: readers always see a complete state,
// and when publishes race the last write wins. Subscribers receive events in
// publish order; a disposed subscription receives nothing further.
type Observer struct {
	mu       sync.Mutex
	notifyMu sync.Mutex

	snapshot Snapshot
	subs     map[int]func(Snapshot)
	nextID   int
	closed   bool
}

// NewObserver creates an observer in the Pending state
func NewObserver() *Observer {
	return &Observer{
		snapshot: Snapshot{Status: StatusPending},
		subs:     make(map[int]func(Snapshot)),
	}
}

// Snapshot returns the current state
func (o *Observer) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshot
}

// Publish replaces the snapshot and notifies subscribers in order.
// Publishes after Close are discarded; this is what drops stale restore
// completions for sessions that were signed out mid-restore.
func (o *Observer) Publish(snapshot Snapshot) {
	// notifyMu serializes whole publish cycles so subscribers observe
	// events in the order they were published
	o.notifyMu.Lock()
	defer o.notifyMu.Unlock()

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.snapshot = snapshot
	ids := make([]int, 0, len(o.subs))
	for id := range o.subs {
		ids = append(ids, id)
	}
	o.mu.Unlock()

	for _, id := range ids {
		o.mu.Lock()
		fn, active := o.subs[id]
		o.mu.Unlock()
		if active {
			fn(snapshot)
		}
	}
}

// Subscribe registers fn and immediately delivers the current snapshot.
// The returned disposer removes the subscription; it is safe to call more
// than once.
func (o *Observer) Subscribe(fn func(Snapshot)) func() {
	o.notifyMu.Lock()

	o.mu.Lock()
	id := o.nextID
	o.nextID++
	o.subs[id] = fn
	current := o.snapshot
	o.mu.Unlock()

	// Initial delivery happens inside the notify cycle so a racing Publish
	// cannot slip an event in front of it
	fn(current)
	o.notifyMu.Unlock()

	return func() {
		o.mu.Lock()
		delete(o.subs, id)
		o.mu.Unlock()
	}
}

// SubscriberCount reports active subscriptions
func (o *Observer) SubscriberCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.subs)
}

// Close discards the observer. Later publishes are dropped and all
// subscriptions are removed.
func (o *Observer) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	o.subs = make(map[int]func(Snapshot))
}
