// Package reactor implements the shared non-blocking I/O worker pool that
// stands in for the "shared non-blocking I/O reactor" of the concurrency
// model: a fixed set of goroutine-backed loops, each driving a disjoint
// subset of connections serially for their lifetime, fronted by an
// eapache/queue task queue exactly as the teacher's executor does.
package reactor

import (
	"sync"

	"github.com/eapache/queue"

	"github.com/momentics/asynchttp/internal/cerr"
)

// Task is a unit of work submitted to a Loop.
type Task func()

// Loop is a single-goroutine serial executor: every task submitted to one
// Loop instance runs strictly after the previous one completes, giving a
// connection affinitized to it serial decode/encode/callback semantics.
type Loop struct {
	mu     sync.Mutex
	cond   *sync.Cond
	q      *queue.Queue
	closed bool
	done   chan struct{}
}

func newLoop() *Loop {
	l := &Loop{q: queue.New(), done: make(chan struct{})}
	l.cond = sync.NewCond(&l.mu)
	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		l.mu.Lock()
		for l.q.Length() == 0 && !l.closed {
			l.cond.Wait()
		}
		if l.q.Length() == 0 && l.closed {
			l.mu.Unlock()
			return
		}
		task := l.q.Remove().(Task)
		l.mu.Unlock()
		task()
	}
}

// Submit enqueues a task for serial execution on this loop. Returns a
// CodeIllegalState error if the loop has been shut down.
func (l *Loop) Submit(t Task) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return cerr.New(cerr.CodeIllegalState, "reactor loop closed")
	}
	l.q.Add(t)
	l.cond.Signal()
	return nil
}

func (l *Loop) close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.cond.Broadcast()
}

// Group is a fixed pool of Loops; connections are affinitized to a Loop for
// their lifetime via Assign.
type Group struct {
	loops []*Loop
}

// NewGroup creates a Group with n loops (the "threadCount" configuration
// option).
func NewGroup(n int) *Group {
	if n < 1 {
		n = 1
	}
	g := &Group{loops: make([]*Loop, n)}
	for i := range g.loops {
		g.loops[i] = newLoop()
	}
	return g
}

// Assign deterministically affinitizes a connection (identified by an
// arbitrary but stable key, e.g. a monotonically increasing connection id)
// to one Loop for its lifetime.
func (g *Group) Assign(key uint64) *Loop {
	return g.loops[key%uint64(len(g.loops))]
}

// Shutdown closes every loop and waits for in-flight tasks to drain.
func (g *Group) Shutdown() {
	for _, l := range g.loops {
		l.close()
	}
	for _, l := range g.loops {
		<-l.done
	}
}
