// Package term implements the virtual keyboard/display endpoint a task
// sees. Input dispatch is single-threaded per terminal: handlers never
// run concurrently with each other, so handler state needs no locking.
package term

import (
	"io"
	"sync"
)

// Handler consumes one chunk of raw terminal input. A zero-length chunk
// is the out-of-band user-cancel event (ESC), not data.
type Handler func([]byte)

type subscriber struct {
	id uint64
	fn Handler
}

// Terminal is a subscribable byte-stream endpoint owned by one task.
type Terminal struct {
	mu     sync.Mutex
	out    io.Writer
	subs   []subscriber
	nextID uint64

	// dispatchMu serializes Input calls; the kernel additionally points
	// it at the owning task's run lock so terminal handlers never
	// overlap the task's datagram handlers either.
	dispatchMu sync.Locker
}

// New creates a terminal writing its display output to out.
func New(out io.Writer) *Terminal {
	t := &Terminal{out: out}
	t.dispatchMu = &sync.Mutex{}
	return t
}

// SetDispatchLock replaces the lock held around handler dispatch.
// Must be called before any Input arrives.
func (t *Terminal) SetDispatchLock(l sync.Locker) {
	t.dispatchMu = l
}

// Subscription is the token returned by Subscribe; it is the only way
// to unsubscribe. Canceling twice is a no-op.
type Subscription struct {
	t  *Terminal
	id uint64
}

// Subscribe appends fn to the dispatch order and returns its token.
// Subscribing the same function again yields an independent token; each
// token is dispatched exactly once per input.
func (t *Terminal) Subscribe(fn Handler) Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	id := t.nextID
	t.subs = append(t.subs, subscriber{id: id, fn: fn})
	return Subscription{t: t, id: id}
}

// Cancel removes the subscription from its terminal.
func (s Subscription) Cancel() {
	if s.t == nil {
		return
	}
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	for i, sub := range s.t.subs {
		if sub.id == s.id {
			s.t.subs = append(s.t.subs[:i], s.t.subs[i+1:]...)
			return
		}
	}
}

// Reset drops every subscriber. The kernel calls this when the owning
// task terminates so no handler survives the task.
func (t *Terminal) Reset() {
	t.mu.Lock()
	t.subs = nil
	t.mu.Unlock()
}

// Subscribers reports the current number of subscribed handlers.
func (t *Terminal) Subscribers() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

// Input dispatches b to every subscriber in subscription order,
// synchronously. An empty b signals user cancel and is dispatched
// like any other chunk.
func (t *Terminal) Input(b []byte) {
	t.mu.Lock()
	subs := make([]subscriber, len(t.subs))
	copy(subs, t.subs)
	t.mu.Unlock()

	t.dispatchMu.Lock()
	defer t.dispatchMu.Unlock()
	for _, s := range subs {
		s.fn(b)
	}
}

// Write emits s to the display without a trailing newline.
func (t *Terminal) Write(s string) {
	t.WriteBytes([]byte(s))
}

// WriteLn emits s followed by a newline.
func (t *Terminal) WriteLn(s string) {
	t.WriteBytes(append([]byte(s), '\n'))
}

// WriteBytes emits raw bytes to the display.
func (t *Terminal) WriteBytes(b []byte) {
	t.mu.Lock()
	out := t.out
	t.mu.Unlock()
	if out == nil {
		return
	}
	_, _ = out.Write(b)
}

// SetOutput redirects display output. A nil writer discards output.
func (t *Terminal) SetOutput(out io.Writer) {
	t.mu.Lock()
	t.out = out
	t.mu.Unlock()
}
