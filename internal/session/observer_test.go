package session

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticCredentials struct {
	token string
	err   error
}

func (s staticCredentials) Credential(context.Context, bool) (string, error) {
	return s.token, s.err
}

func authSnapshot(id string) Snapshot {
	return Snapshot{
		Status:    StatusAuthenticated,
		Principal: NewPrincipal(id, id+"@example.com", id, "", staticCredentials{token: "tok"}),
	}
}

func TestObserverStartsPending(t *testing.T) {
	o := NewObserver()
	assert.Equal(t, StatusPending, o.Snapshot().Status)

	var first *Snapshot
	dispose := o.Subscribe(func(s Snapshot) {
		if first == nil {
			first = &s
		}
	})
	defer dispose()

	require.NotNil(t, first)
	assert.Equal(t, StatusPending, first.Status)
}

func TestObserverLastWriteWins(t *testing.T) {
	o := NewObserver()

	var got []Status
	dispose := o.Subscribe(func(s Snapshot) {
		got = append(got, s.Status)
	})
	defer dispose()

	o.Publish(authSnapshot("u1"))
	o.Publish(Anonymous)
	o.Publish(authSnapshot("u2"))

	assert.Equal(t, []Status{StatusPending, StatusAuthenticated, StatusAnonymous, StatusAuthenticated}, got)
	final := o.Snapshot()
	assert.Equal(t, StatusAuthenticated, final.Status)
	assert.Equal(t, "u2", final.Principal.ID)
}

func TestObserverDisposerStopsDelivery(t *testing.T) {
	o := NewObserver()

	calls := 0
	dispose := o.Subscribe(func(Snapshot) { calls++ })
	assert.Equal(t, 1, calls) // initial delivery

	dispose()
	o.Publish(Anonymous)
	assert.Equal(t, 1, calls)

	// Double dispose is harmless
	dispose()
	assert.Equal(t, 0, o.SubscriberCount())
}

func TestObserverNoLeakedSubscriptions(t *testing.T) {
	o := NewObserver()

	for range 100 {
		dispose := o.Subscribe(func(Snapshot) {})
		dispose()
	}

	assert.Equal(t, 0, o.SubscriberCount())
}

func TestObserverPublishAfterCloseDropped(t *testing.T) {
	o := NewObserver()
	o.Publish(authSnapshot("u1"))
	o.Close()

	o.Publish(Anonymous)
	assert.Equal(t, StatusAuthenticated, o.Snapshot().Status)
}

func TestObserverConcurrentPublishes(t *testing.T) {
	o := NewObserver()

	var mu sync.Mutex
	var seen []Snapshot
	dispose := o.Subscribe(func(s Snapshot) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})
	defer dispose()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.Publish(Anonymous)
			o.Publish(authSnapshot("u"))
		}()
	}
	wg.Wait()

	// No torn reads: every delivered snapshot is internally consistent
	mu.Lock()
	defer mu.Unlock()
	for _, s := range seen {
		if s.Status == StatusAuthenticated {
			assert.NotNil(t, s.Principal)
		} else {
			assert.Nil(t, s.Principal)
		}
	}
}
