package request

import (
	"fmt"
	"net/url"
	"time"

	"github.com/momentics/asynchttp/internal/cerr"
)

// Builder is the mutable, single-owner fluent request builder. It is not
// safe for concurrent use and must not be mutated after Build/execute,
// matching the "no thread-safe mutation after submission" non-goal.
type Builder struct {
	method       Method
	httpVersion  string
	rawURL       string
	headers      *Headers
	bodyKind     BodyKind
	body         []byte
	chunked      ChunkedProducer
	wsVersion    int
	timeout      time.Duration
	hasTimeout   bool
	flags        Flags
	buildErr     error
}

// NewBuilder starts a request for method against rawURL.
func NewBuilder(method Method, rawURL string) *Builder {
	return &Builder{
		method:      method,
		httpVersion: "HTTP/1.1",
		rawURL:      rawURL,
		headers:     NewHeaders(),
		flags:       DefaultFlags(),
	}
}

// Header adds a header value, preserving insertion order (P8).
func (b *Builder) Header(name, value string) *Builder {
	b.headers.Add(name, value)
	return b
}

// SetHeader replaces all values for name.
func (b *Builder) SetHeader(name, value string) *Builder {
	b.headers.Set(name, value)
	return b
}

// Body sets a fixed byte-slice body, exactly one of Body/ChunkedBody may be
// used.
func (b *Builder) Body(data []byte) *Builder {
	b.bodyKind = BodyBytes
	b.body = data
	b.chunked = nil
	return b
}

// ChunkedBody installs a chunked body producer (§4.8).
func (b *Builder) ChunkedBody(producer ChunkedProducer) *Builder {
	b.bodyKind = BodyChunked
	b.chunked = producer
	b.body = nil
	return b
}

// WebSocketVersion requests a WebSocket upgrade at the given protocol
// version (13 is RFC 6455 and the only version this module speaks, but the
// field exists so a future handshaker can widen it).
func (b *Builder) WebSocketVersion(v int) *Builder {
	b.wsVersion = v
	return b
}

// Timeout sets a per-request deadline, overriding the client default.
func (b *Builder) Timeout(d time.Duration) *Builder {
	b.timeout = d
	b.hasTimeout = true
	return b
}

// AggregateResponse toggles whether the client buffers the full response
// body before emitting FullContentReceived/Finished.
func (b *Builder) AggregateResponse(v bool) *Builder {
	b.flags.AggregateResponse = v
	return b
}

// Send100Continue toggles the Expect: 100-continue handshake for chunked
// request bodies. Requests with a fixed byte body are sent without
// Expect and do not wait for a 100 Continue.
func (b *Builder) Send100Continue(v bool) *Builder {
	b.flags.Send100Continue = v
	return b
}

// SuppressHost/SuppressConnection/SuppressDate disable the corresponding
// automatic header per the external interfaces policy table.
func (b *Builder) SuppressHost() *Builder       { b.flags.IncludeHost = false; return b }
func (b *Builder) SuppressConnection() *Builder { b.flags.IncludeConnection = false; return b }
func (b *Builder) SuppressDate() *Builder       { b.flags.IncludeDate = false; return b }

// Build resolves the URL and produces the immutable Request snapshot. It is
// the only operation in this package permitted to return an error directly
// (InvalidArgument for unparseable URLs), matching the "submission never
// throws for I/O, only for programmer errors" propagation policy.
func (b *Builder) Build() (*Request, error) {
	if b.buildErr != nil {
		return nil, b.buildErr
	}
	u, err := url.Parse(b.rawURL)
	if err != nil {
		return nil, cerr.Wrap(cerr.CodeInvalidArgument, "invalid request URL", err).
			WithContext("url", b.rawURL)
	}
	if !u.IsAbs() {
		return nil, cerr.New(cerr.CodeInvalidArgument, "request URL must be absolute").
			WithContext("url", b.rawURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, cerr.New(cerr.CodeInvalidArgument, fmt.Sprintf("unsupported scheme %q", u.Scheme))
	}

	return &Request{
		Method:       b.method,
		HTTPVersion:  b.httpVersion,
		URL:          u,
		Headers:      b.headers.Clone(),
		BodyKind:     b.bodyKind,
		Body:         b.body,
		ChunkedBody:  b.chunked,
		WebSocketVer: b.wsVersion,
		Timeout:      b.timeout,
		HasTimeout:   b.hasTimeout,
		Flags:        b.flags,
	}, nil
}
