// Package relays tracks active relay invocations so shutdown can wait for
// them to drain and force-close stragglers.
package relays

import (
	"context"
	"sync"
)

// Handle lets the tracker tear down one active relay. Close must be safe to
// call more than once and must unblock the relay's pending socket I/O.
type Handle struct {
	Close func()
}

type Tracker struct {
	mu     sync.Mutex
	active map[string]*trackedRelay
	wg     sync.WaitGroup
}

type trackedRelay struct {
	handle Handle
	once   sync.Once
}

func NewTracker() *Tracker {
	return &Tracker{active: make(map[string]*trackedRelay)}
}

// Register adds a relay under sessionID and returns its unregister func.
// Registering the same id again supersedes (and releases) the old entry.
func (t *Tracker) Register(sessionID string, h Handle) (unregister func()) {
	if t == nil {
		return func() {}
	}

	entry := &trackedRelay{handle: h}

	t.mu.Lock()
	if t.active == nil {
		t.active = make(map[string]*trackedRelay)
	}
	old := t.active[sessionID]
	t.active[sessionID] = entry
	t.wg.Add(1)
	t.mu.Unlock()

	if old != nil {
		t.unregister(sessionID, old)
	}

	return func() { t.unregister(sessionID, entry) }
}

func (t *Tracker) unregister(sessionID string, entry *trackedRelay) {
	if t == nil || entry == nil {
		return
	}
	entry.once.Do(func() {
		t.mu.Lock()
		if t.active != nil && t.active[sessionID] == entry {
			delete(t.active, sessionID)
		}
		t.mu.Unlock()
		t.wg.Done()
	})
}

func (t *Tracker) Count() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}

// CloseAll force-closes every active relay's sockets. Handles are invoked
// outside the tracker lock.
func (t *Tracker) CloseAll() (closed int) {
	if t == nil {
		return 0
	}

	var closes []func()
	t.mu.Lock()
	for _, entry := range t.active {
		if entry == nil || entry.handle.Close == nil {
			continue
		}
		closes = append(closes, entry.handle.Close)
	}
	t.mu.Unlock()

	for _, closeFn := range closes {
		closeFn()
		closed++
	}
	return closed
}

// Wait blocks until every registered relay has unregistered or ctx is done,
// reporting whether the drain completed.
func (t *Tracker) Wait(ctx context.Context) bool {
	if t == nil {
		return true
	}
	if ctx == nil {
		t.wg.Wait()
		return true
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		t.wg.Wait()
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
