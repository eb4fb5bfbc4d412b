// Package handler implements the response pipeline's terminal stage: the
// message handler that drives one connection attempt's full request/response
// cycle, makes the redirect decision, aggregates content, and dispatches
// every state.StateType event onto the request's shared ResponseFuture.
package handler

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"github.com/momentics/asynchttp/cookiejar"
	"github.com/momentics/asynchttp/internal/cerr"
	"github.com/momentics/asynchttp/marshal"
	"github.com/momentics/asynchttp/pipeline"
	"github.com/momentics/asynchttp/request"
	"github.com/momentics/asynchttp/state"
	"github.com/momentics/asynchttp/ws"
)

// RedirectFunc re-submits method against newURL, carrying the existing
// RequestInfo's shared Future and incremented RedirectCount forward. It is
// supplied by the client package, which owns bootstrap selection and the
// reactor Group a new connection attempt runs on.
type RedirectFunc func(method request.Method, newURL *url.URL, previous *RequestInfo)

// FrameFunc is invoked for every WebSocket data frame received after a
// successful upgrade.
type FrameFunc func(f *ws.Frame)

// Deps bundles the message handler's collaborators. The client core injects
// this struct instead of the handler package importing client directly,
// avoiding an import cycle.
type Deps struct {
	Limits       pipeline.Limits
	Jar          cookiejar.Jar
	Marshallers  *marshal.Registry
	MaxRedirects int
	Redirect     RedirectFunc
}

// Run drives one connection attempt end to end: write the request head and
// body, read the response head, decide redirect-or-terminal, stream and
// aggregate content, dispatch Finished/Closed, and (after a successful
// upgrade) hand off to the WebSocket frame loop. It owns conn's lifetime and
// always closes it before returning.
func Run(conn net.Conn, info *RequestInfo, deps Deps, onFrame FrameFunc) {
	fut := info.Future
	closed := false
	closeConn := func() {
		if !closed {
			closed = true
			conn.Close()
		}
	}
	defer closeConn()

	dispatch := func(t state.StateType, payload any) {
		if info.Silenced() {
			return
		}
		fut.Dispatch(t, payload)
	}

	fut.Bind(func() { closeConn() }, func(payload any) error {
		f, ok := payload.(*ws.Frame)
		if !ok {
			return cerr.New(cerr.CodeIllegalState, "sendOn payload is not a websocket frame")
		}
		return ws.Encode(conn, f, true)
	}, func() bool { return !closed })

	br := bufio.NewReader(conn)
	bw := bufio.NewWriter(conn)

	preHead, err := writeRequest(br, bw, info, dispatch)
	if err != nil {
		dispatch(state.Error, err)
		closeConn()
		dispatch(state.Closed, state.None{})
		return
	}

	rs := NewResponseState(info.Request.Flags.AggregateResponse)

	for {
		var head *state.ResponseHead
		if preHead != nil {
			head, preHead = preHead, nil
		} else {
			head, err = pipeline.ReadResponseHead(br, deps.Limits)
			if err != nil {
				if info.Cancelled() {
					closeConn()
					dispatch(state.Closed, state.None{})
					return
				}
				dispatch(state.Error, err)
				closeConn()
				dispatch(state.Closed, state.None{})
				return
			}
		}

		if head.StatusCode == http.StatusContinue {
			// An out-of-band 100 Continue that arrived after we had already
			// decided to send the body (or never asked for one): nothing
			// more to do with it, keep waiting for the real response.
			continue
		}

		head.RequestURL = info.TargetURL.String()

		if deps.Jar != nil {
			deps.Jar.Extract(http.Header(head.Header), info.TargetURL)
		}

		if redirectURL, rerr, isRedirect := decideRedirect(info, head, deps); isRedirect {
			if rerr != nil {
				dispatch(state.HeadersReceived, head)
				dispatch(state.Error, rerr)
				closeConn()
				dispatch(state.Closed, state.None{})
				return
			}
			dispatch(state.HeadersReceived, head)
			dispatch(state.Redirect, redirectURL.String())
			nextMethod := info.Request.Method
			if head.StatusCode == http.StatusSeeOther {
				nextMethod = request.GET
			}
			info.Silence()
			closeConn()
			deps.Redirect(nextMethod, redirectURL, info)
			return
		}

		dispatch(state.HeadersReceived, head)

		if info.Handshaker != nil && ws.IsUpgradeResponse(http.Header(head.Header)) {
			if verr := info.Handshaker.VerifyResponse(head.StatusCode, http.Header(head.Header)); verr != nil {
				dispatch(state.Error, verr)
				closeConn()
				dispatch(state.Closed, state.None{})
				return
			}
			dispatch(state.WebsocketHandshakeComplete, state.None{})
			runWebSocketLoop(conn, br, info, dispatch, onFrame)
			closeConn()
			dispatch(state.Closed, state.None{})
			return
		}

		raw := pipeline.NewBodyReader(br, head, deps.Limits)
		body := raw
		if info.Request.Headers.Has("Accept-Encoding") {
			var decErr error
			body, decErr = pipeline.NewDecodingBodyReader(raw, head, deps.Limits)
			if decErr != nil {
				dispatch(state.Error, decErr)
				closeConn()
				dispatch(state.Closed, state.None{})
				return
			}
		}

		for {
			data, last, berr := body.Next()
			if berr != nil {
				var ce *cerr.Error
				if cerr.As(berr, &ce) && ce.Code == cerr.CodeUnexpectedClose && !info.Cancelled() {
					sendFullResponse(rs, head, deps, dispatch)
					closeConn()
					dispatch(state.Closed, state.None{})
					return
				}
				dispatch(state.Error, berr)
				closeConn()
				dispatch(state.Closed, state.None{})
				return
			}
			if info.Cancelled() {
				closeConn()
				dispatch(state.Closed, state.None{})
				return
			}
			if len(data) > 0 {
				dispatch(state.ContentReceived, state.Chunk{Data: data, Last: last})
				rs.AppendChunk(data)
			}
			if last {
				sendFullResponse(rs, head, deps, dispatch)
				closeConn()
				dispatch(state.Closed, state.None{})
				return
			}
		}
	}
}

// writeRequest serializes the request head and (if present) the body,
// observing the 100-continue protocol for chunked bodies flagged
// Send100Continue. When the peer answers an Expect: 100-continue with a
// non-100 final response instead, that response head is returned as preHead
// so the main loop processes it without a second read.
func writeRequest(br *bufio.Reader, bw *bufio.Writer, info *RequestInfo, dispatch func(state.StateType, any)) (*state.ResponseHead, error) {
	req := info.Request
	dispatch(state.SendRequest, req)

	if err := pipeline.WriteRequestHead(bw, req); err != nil {
		return nil, err
	}

	switch req.BodyKind {
	case request.BodyBytes:
		if len(req.Body) > 0 {
			if _, err := bw.Write(req.Body); err != nil {
				return nil, cerr.Wrap(cerr.CodeUnexpectedClose, "failed writing request body", err)
			}
		}
		if err := bw.Flush(); err != nil {
			return nil, cerr.Wrap(cerr.CodeUnexpectedClose, "failed flushing request", err)
		}
		dispatch(state.AwaitingResponse, state.None{})
		return nil, nil

	case request.BodyChunked:
		if err := bw.Flush(); err != nil {
			return nil, cerr.Wrap(cerr.CodeUnexpectedClose, "failed flushing request head", err)
		}
		if req.Flags.Send100Continue && req.Headers.Get("Expect") != "" {
			limits := pipeline.DefaultLimits()
			head, err := pipeline.ReadResponseHead(br, limits)
			if err != nil {
				return nil, err
			}
			if head.StatusCode != http.StatusContinue {
				// Server declined the body outright: hand its response
				// straight to the main loop, the body producer is never
				// invoked.
				return head, nil
			}
		}
		if err := writeChunkedBody(bw, info.ChunkedBody); err != nil {
			return nil, err
		}
		dispatch(state.AwaitingResponse, state.None{})
		return nil, nil

	default:
		if err := bw.Flush(); err != nil {
			return nil, cerr.Wrap(cerr.CodeUnexpectedClose, "failed flushing request", err)
		}
		dispatch(state.AwaitingResponse, state.None{})
		return nil, nil
	}
}

// writeChunkedBody pulls one chunk at a time from producer, writing and
// flushing each before asking for the next, per §4.8's backpressure rule.
func writeChunkedBody(bw *bufio.Writer, producer request.ChunkedProducer) error {
	call := 0
	for {
		data, err := producer.NextChunk(call)
		if err != nil {
			return cerr.Wrap(cerr.CodeUnexpectedClose, "chunked body producer failed", err)
		}
		call++
		if data == nil {
			if _, err := bw.WriteString("0\r\n\r\n"); err != nil {
				return cerr.Wrap(cerr.CodeUnexpectedClose, "failed writing final chunk", err)
			}
			if err := bw.Flush(); err != nil {
				return cerr.Wrap(cerr.CodeUnexpectedClose, "failed flushing final chunk", err)
			}
			return nil
		}
		if _, err := fmt.Fprintf(bw, "%x\r\n", len(data)); err != nil {
			return cerr.Wrap(cerr.CodeUnexpectedClose, "failed writing chunk size", err)
		}
		if _, err := bw.Write(data); err != nil {
			return cerr.Wrap(cerr.CodeUnexpectedClose, "failed writing chunk data", err)
		}
		if _, err := bw.WriteString("\r\n"); err != nil {
			return cerr.Wrap(cerr.CodeUnexpectedClose, "failed writing chunk terminator", err)
		}
		if err := bw.Flush(); err != nil {
			return cerr.Wrap(cerr.CodeUnexpectedClose, "failed flushing chunk", err)
		}
	}
}

// decideRedirect implements §4.4 step 2: a redirect status with no Location
// header is not a redirect at all (falls through to normal handling); one
// past the configured maximum, or with an unparseable Location, surfaces as
// a redirect-kind Error instead of silently terminating.
func decideRedirect(info *RequestInfo, head *state.ResponseHead, deps Deps) (target *url.URL, err error, isRedirect bool) {
	if !IsRedirectStatus(head.StatusCode) {
		return nil, nil, false
	}
	loc := firstHeaderValue(head.Header, "Location")
	if loc == "" {
		return nil, nil, false
	}
	if info.RedirectCount >= deps.MaxRedirects {
		return nil, cerr.New(cerr.CodeRedirectLoop, "maximum redirect count exceeded").
			WithContext("max_redirects", deps.MaxRedirects), true
	}
	u, rerr := ResolveRedirectLocation(info.TargetURL, loc)
	if rerr != nil {
		return nil, rerr, true
	}
	return u, nil, true
}

func firstHeaderValue(header map[string][]string, name string) string {
	vals := header[canonicalHeaderName(name)]
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

func canonicalHeaderName(name string) string {
	return http.CanonicalHeaderKey(name)
}

// sendFullResponse implements §4.4 step 4's terminal delivery: an empty
// aggregate suppresses both FullContentReceived and Finished (Closed still
// follows from the caller), and the send happens at most once per response
// cycle.
func sendFullResponse(rs *ResponseState, head *state.ResponseHead, deps Deps, dispatch func(state.StateType, any)) {
	if rs.FullResponseSent {
		return
	}
	rs.FullResponseSent = true
	if !rs.AggregateEnabled || rs.Aggregate.Len() == 0 {
		return
	}
	body := append([]byte(nil), rs.Aggregate.Bytes()...)
	dispatch(state.FullContentReceived, state.Aggregate{Body: body})
	dispatch(state.Finished, state.Response{Head: *head, Body: body})
}

// runWebSocketLoop reads frames off the upgraded connection until a Close
// frame, an error, or cancellation, dispatching WebSocketFrameReceived for
// each data frame and invoking onFrame for application-level consumption.
func runWebSocketLoop(conn net.Conn, br *bufio.Reader, info *RequestInfo, dispatch func(state.StateType, any), onFrame FrameFunc) {
	for {
		if info.Cancelled() {
			return
		}
		frame, err := ws.Decode(br)
		if err != nil {
			if !info.Cancelled() {
				dispatch(state.Error, cerr.Wrap(cerr.CodeUnexpectedClose, "websocket read failed", err))
			}
			return
		}
		switch frame.Opcode {
		case ws.OpcodeClose:
			return
		case ws.OpcodePing:
			_ = ws.Encode(conn, &ws.Frame{Final: true, Opcode: ws.OpcodePong, Payload: frame.Payload}, true)
		case ws.OpcodePong:
			// Liveness acknowledgement only, no event.
		default:
			dispatch(state.WebSocketFrameReceived, frame)
			if onFrame != nil {
				onFrame(frame)
			}
		}
	}
}
