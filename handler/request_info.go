package handler

import (
	"net/url"
	"sync/atomic"
	"time"

	"github.com/momentics/asynchttp/future"
	"github.com/momentics/asynchttp/reactor"
	"github.com/momentics/asynchttp/request"
	"github.com/momentics/asynchttp/ws"
)

// RequestInfo is the per-submission mutable control block owned
// exclusively by the current connection attempt. At most one attached
// decoder chain references a RequestInfo at a time; a redirect atomically
// swaps the connection's attached RequestInfo by constructing a new one and
// silencing the old one.
type RequestInfo struct {
	Request       *request.Request
	TargetURL     *url.URL
	Future        *future.ResponseFuture
	RedirectCount int
	Start         time.Time
	Deadline      reactor.Cancelable
	ChunkedBody   request.ChunkedProducer
	WSVersion     int
	Handshaker    *ws.Handshaker

	// silenced marks a RequestInfo whose connection attempt has been
	// superseded by a redirect: straggling events from the old connection
	// must not reach the shared ResponseFuture (§4.4 per-request
	// attribution).
	silenced atomic.Bool
}

// NewRequestInfo builds the control block for a fresh connection attempt.
func NewRequestInfo(req *request.Request, target *url.URL, fut *future.ResponseFuture, redirectCount int) *RequestInfo {
	return &RequestInfo{
		Request:       req,
		TargetURL:     target,
		Future:        fut,
		RedirectCount: redirectCount,
		Start:         time.Now(),
		ChunkedBody:   req.ChunkedBody,
		WSVersion:     req.WebSocketVer,
	}
}

// Silence marks this RequestInfo's events as dead-lettered: any further
// Dispatch attempts against it must be suppressed.
func (ri *RequestInfo) Silence() { ri.silenced.Store(true) }

// Silenced reports whether this RequestInfo has been superseded.
func (ri *RequestInfo) Silenced() bool { return ri.silenced.Load() }

// Cancelled mirrors the ResponseFuture's cancellation flag, per the data
// model's "atomic cancelled flag shared with the ResponseFuture".
func (ri *RequestInfo) Cancelled() bool { return ri.Future.IsCancelled() }
