package future

import (
	"sync"

	"github.com/eapache/queue"

	"github.com/momentics/asynchttp/state"
)

// DeferredSendQueue maps a trigger StateType to its ordered sequence of
// outbound payloads awaiting drain, per ResponseFuture.sendOn.
type DeferredSendQueue struct {
	mu     sync.Mutex
	queues map[state.StateType]*queue.Queue
}

// NewDeferredSendQueue returns an empty deferred send queue.
func NewDeferredSendQueue() *DeferredSendQueue {
	return &DeferredSendQueue{queues: make(map[state.StateType]*queue.Queue)}
}

// Enqueue appends payload to the FIFO for t.
func (d *DeferredSendQueue) Enqueue(t state.StateType, payload any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	q, ok := d.queues[t]
	if !ok {
		q = queue.New()
		d.queues[t] = q
	}
	q.Add(payload)
}

// DrainAll removes and returns every queued payload for t, in FIFO order.
func (d *DeferredSendQueue) DrainAll(t state.StateType) []any {
	d.mu.Lock()
	defer d.mu.Unlock()
	q, ok := d.queues[t]
	if !ok {
		return nil
	}
	out := make([]any, 0, q.Length())
	for q.Length() > 0 {
		out = append(out, q.Remove())
	}
	return out
}

// DiscardAll clears every trigger state's queue, used when the future
// reaches a failure state.
func (d *DeferredSendQueue) DiscardAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queues = make(map[state.StateType]*queue.Queue)
}
