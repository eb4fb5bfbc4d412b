// Package future implements ResponseFuture: the shared handle used to
// observe and control a submitted request, fan out state events to
// registered observers, and act as the rendezvous point for sendOn
// deferred writes.
package future

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/momentics/asynchttp/internal/cerr"
	"github.com/momentics/asynchttp/state"
)

// Sender performs the actual write of a deferred sendOn payload (e.g. a
// WebSocket frame) once its trigger state has been observed and the
// channel is writable. It returns an error to stop draining and surface
// Error(cause).
type Sender func(payload any) error

// ResponseFuture is the shared, concurrency-safe handle returned by
// Client.Submit. Its handler lists are append-only: concurrent
// registration may race with in-flight dispatch, and a newly added handler
// may or may not observe an event already being delivered — documented
// behavior, not a bug.
type ResponseFuture struct {
	mu        sync.Mutex
	handlers  map[state.StateType][]func(any)
	universal []func(state.StateType, any)

	cancelled atomic.Bool

	deferred    *DeferredSendQueue
	observed    map[state.StateType]bool
	sender      Sender
	writable    func() bool
	onCancel    func()
	diagnostics func(format string, args ...any)

	latch *Notify[struct{}]
}

// New creates an unbound ResponseFuture. The connection-level hooks
// (onCancel, sender, writable) are installed later via Bind once the
// connection exists; onCancel then runs exactly once, on the winning
// cancellation transition.
func New() *ResponseFuture {
	return &ResponseFuture{
		handlers: make(map[state.StateType][]func(any)),
		deferred: NewDeferredSendQueue(),
		observed: make(map[state.StateType]bool),
		latch:    NewNotify[struct{}](),
		diagnostics: func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, format+"\n", args...)
		},
	}
}

// Bind attaches the connection-level hooks once the socket exists: onCancel
// closes the channel / cancels the connect-write future; sender performs a
// deferred-send write; writable reports whether the channel currently
// accepts writes.
func (f *ResponseFuture) Bind(onCancel func(), sender Sender, writable func() bool) {
	f.mu.Lock()
	f.onCancel = onCancel
	f.sender = sender
	f.writable = writable
	f.mu.Unlock()
}

// On registers an untyped observer for StateType t, invoked in registration
// order alongside any other observers of t.
func (f *ResponseFuture) On(t state.StateType, fn func(payload any)) {
	f.mu.Lock()
	f.handlers[t] = append(f.handlers[t], fn)
	f.mu.Unlock()
}

// OnAny registers a universal observer receiving every event.
func (f *ResponseFuture) OnAny(fn func(t state.StateType, payload any)) {
	f.mu.Lock()
	f.universal = append(f.universal, fn)
	f.mu.Unlock()
}

// OnState registers a strictly typed observer for StateType t. It is a
// free function, not a method, because Go methods cannot carry their own
// type parameters.
func OnState[T any](f *ResponseFuture, t state.StateType, fn func(state.State[T])) {
	f.On(t, func(payload any) {
		typed, ok := payload.(T)
		if !ok {
			f.diagnostics("asynchttp: payload type mismatch for %s: got %T", t, payload)
			var zero T
			fn(state.State[T]{Type: t, Payload: zero})
			return
		}
		fn(state.State[T]{Type: t, Payload: typed})
	})
}

// Dispatch fans out an event to every registered observer of t and every
// universal observer, in registration order, synchronously on the calling
// (I/O) goroutine. It also marks t as observed and drains any sendOn queue
// pending on it. Callers are responsible for any cancellation-based
// suppression before invoking Dispatch (§5: the cancelled flag is checked
// at pipeline entry points, not inside fan-out itself).
func (f *ResponseFuture) Dispatch(t state.StateType, payload any) {
	f.mu.Lock()
	handlers := append([]func(any){}, f.handlers[t]...)
	universal := append([]func(state.StateType, any){}, f.universal...)
	f.observed[t] = true
	f.mu.Unlock()

	switch t {
	case state.Error, state.Timeout, state.Cancelled:
		f.deferred.DiscardAll()
	}

	for _, h := range handlers {
		f.safeInvoke(func() { h(payload) })
	}
	for _, u := range universal {
		payload := payload
		f.safeInvoke(func() { u(t, payload) })
	}

	f.drain(t)

	if t == state.Closed || t == state.Cancelled {
		f.latch.Complete(struct{}{})
	}
}

// safeInvoke catches an observer panic (Observer error, §7) and routes it
// through the diagnostics hook instead of aborting dispatch to the
// remaining observers.
func (f *ResponseFuture) safeInvoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			f.diagnostics("asynchttp: observer panicked: %v", r)
		}
	}()
	fn()
}

// Cancel requests cancellation. It is idempotent and safe to call from any
// goroutine. Returns true exactly once, on the winning transition, per P7.
func (f *ResponseFuture) Cancel() bool {
	if !f.cancelled.CompareAndSwap(false, true) {
		return false
	}
	f.runOnCancel()
	f.Dispatch(state.Cancelled, state.None{})
	return true
}

// TimeoutCancel is used by the deadline timer: on the winning transition it
// emits Timeout(elapsed) then Cancelled as a single atomic sequence, so a
// racing user Cancel() cannot interleave a duplicate Cancelled (the "prior
// Timeout suppresses subsequent Cancelled duplication" rule falls out of
// the shared CAS).
func (f *ResponseFuture) TimeoutCancel(elapsed state.TimeoutElapsed) bool {
	if !f.cancelled.CompareAndSwap(false, true) {
		return false
	}
	f.Dispatch(state.Timeout, elapsed)
	f.runOnCancel()
	f.Dispatch(state.Cancelled, state.None{})
	return true
}

func (f *ResponseFuture) runOnCancel() {
	f.mu.Lock()
	onCancel := f.onCancel
	f.mu.Unlock()
	if onCancel != nil {
		onCancel()
	}
}

// IsCancelled reports the current cancellation flag.
func (f *ResponseFuture) IsCancelled() bool { return f.cancelled.Load() }

// SendOn enqueues payload for dispatch once StateType t has been observed
// and the channel is writable. It is illegal for pre-connect (Connecting)
// or terminal states.
func (f *ResponseFuture) SendOn(t state.StateType, payload any) error {
	switch t {
	case state.Connecting, state.Closed, state.Error, state.Cancelled, state.Timeout:
		return cerr.New(cerr.CodeIllegalState, "sendOn illegal for pre-connect or terminal state").
			WithContext("state", t.String())
	}
	f.deferred.Enqueue(t, payload)
	f.mu.Lock()
	observed := f.observed[t]
	f.mu.Unlock()
	if observed {
		f.drain(t)
	}
	return nil
}

// drain writes every payload queued for t, in FIFO order, stopping and
// discarding the remainder on the first write failure.
func (f *ResponseFuture) drain(t state.StateType) {
	f.mu.Lock()
	sender := f.sender
	writable := f.writable
	f.mu.Unlock()
	if sender == nil || writable == nil || !writable() {
		return
	}
	for _, payload := range f.deferred.DrainAll(t) {
		if err := sender(payload); err != nil {
			f.deferred.DiscardAll()
			f.Dispatch(state.Error, cerr.Wrap(cerr.CodeUnexpectedClose, "deferred send failed", err))
			return
		}
	}
}

// Await blocks until Closed (or cancellation) is observed, or ctx is done.
// It is a test-only helper; production code must use observers.
func (f *ResponseFuture) Await(ctx context.Context) error {
	done := make(chan struct{})
	f.latch.Subscribe(func(struct{}) { close(done) })
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
