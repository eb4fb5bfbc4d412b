// Package client implements the asynchttp.Client facade: functional-option
// construction, request submission over the shared reactor Group, TLS
// bootstrap caching, and redirect re-submission. It follows the teacher's
// WebSocketClient construction shape (ClientConfig + functional
// ClientOption + a connect/dial internal) generalized from a single
// reconnecting WebSocket session to per-request HTTP/1.1 connection
// attempts fanned out across a reactor.Group.
package client

import (
	"context"
	"crypto/tls"
	"net"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/momentics/asynchttp/control"
	"github.com/momentics/asynchttp/future"
	"github.com/momentics/asynchttp/handler"
	"github.com/momentics/asynchttp/internal/cerr"
	"github.com/momentics/asynchttp/internal/sockopts"
	"github.com/momentics/asynchttp/pipeline"
	"github.com/momentics/asynchttp/reactor"
	"github.com/momentics/asynchttp/request"
	"github.com/momentics/asynchttp/state"
	"github.com/momentics/asynchttp/ws"
)

// Client is the entry point for submitting asynchronous HTTP/1.1 requests,
// with transparent redirect following and WebSocket upgrade support.
type Client struct {
	cfg       Config
	group     *reactor.Group
	scheduler reactor.Scheduler
	tlsCache  *tlsBootstrapCache

	Metrics *control.MetricsRegistry
	Debug   *control.DebugProbes
	live    *liveConfig

	connSeq  atomic.Uint64
	shutdown atomic.Bool
}

// New constructs a Client from DefaultConfig overridden by opts.
func New(opts ...Option) *Client {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Resolver != nil {
		cfg.Dialer.Resolver = cfg.Resolver
	}
	scheduler := reactor.NewScheduler()
	c := &Client{
		cfg:       cfg,
		group:     reactor.NewGroup(cfg.ThreadCount),
		scheduler: scheduler,
		Metrics:   control.NewMetricsRegistry(),
		Debug:     control.NewDebugProbes(),
		live:      newLiveConfig(),
	}
	c.tlsCache = newTLSBootstrapCache(scheduler)
	c.Debug.RegisterProbe("client.thread_count", func() any { return cfg.ThreadCount })
	c.Debug.RegisterProbe("client.max_redirects", func() any { return cfg.MaxRedirects })
	control.RegisterPlatformProbes(c.Debug)
	return c
}

// Get, Post, Put, Delete and Head are convenience constructors matching the
// common-case request lifecycle; each still returns a *future.ResponseFuture
// observers attach to before (or after) the request is actually submitted.
func (c *Client) Get(rawURL string) (*future.ResponseFuture, error) {
	return c.do(request.NewBuilder(request.GET, rawURL))
}

func (c *Client) Head(rawURL string) (*future.ResponseFuture, error) {
	return c.do(request.NewBuilder(request.HEAD, rawURL))
}

func (c *Client) Delete(rawURL string) (*future.ResponseFuture, error) {
	return c.do(request.NewBuilder(request.DELETE, rawURL))
}

func (c *Client) Post(rawURL string, contentType string, body []byte) (*future.ResponseFuture, error) {
	b := request.NewBuilder(request.POST, rawURL).Body(body)
	if contentType != "" {
		b.SetHeader("Content-Type", contentType)
	}
	return c.do(b)
}

func (c *Client) Put(rawURL string, contentType string, body []byte) (*future.ResponseFuture, error) {
	b := request.NewBuilder(request.PUT, rawURL).Body(body)
	if contentType != "" {
		b.SetHeader("Content-Type", contentType)
	}
	return c.do(b)
}

// Build returns a fresh Builder; Submit executes whatever it produces.
func (c *Client) Build(method request.Method, rawURL string) *request.Builder {
	return request.NewBuilder(method, rawURL)
}

func (c *Client) do(b *request.Builder) (*future.ResponseFuture, error) {
	req, err := b.Build()
	if err != nil {
		return nil, err
	}
	return c.Submit(req)
}

// Submit validates the client is not shut down, constructs the shared
// ResponseFuture, and fans the first connection attempt out onto the
// reactor Group.
func (c *Client) Submit(req *request.Request) (*future.ResponseFuture, error) {
	if c.shutdown.Load() {
		return nil, cerr.New(cerr.CodeIllegalState, "client has been shut down")
	}
	c.Metrics.Counters.RequestsStarted.Add(1)
	fut := future.New()
	fut.On(state.Closed, func(any) { c.Metrics.Counters.RequestsFinished.Add(1) })
	fut.On(state.Error, func(any) { c.Metrics.Counters.Errors.Add(1) })
	c.submitAttempt(req, req.URL, fut, 0)
	return fut, nil
}

// submitAttempt runs one connection attempt (fresh TCP/TLS dial, fresh
// RequestInfo) affinitized to a reactor Loop keyed by a monotonically
// increasing connection id, per the Group.Assign contract.
func (c *Client) submitAttempt(req *request.Request, target *url.URL, fut *future.ResponseFuture, redirectCount int) {
	id := c.connSeq.Add(1)
	loop := c.group.Assign(id)

	err := loop.Submit(func() {
		c.runAttempt(req, target, fut, redirectCount)
	})
	if err != nil {
		fut.Dispatch(state.Error, cerr.Wrap(cerr.CodeIllegalState, "reactor loop rejected submission", err))
	}
}

func (c *Client) runAttempt(req *request.Request, target *url.URL, fut *future.ResponseFuture, redirectCount int) {
	cfg := c.snapshotConfig()
	req = req.Clone()
	applyHeaderPolicy(req, target, cfg)
	for _, ic := range cfg.Interceptors {
		ic(&RequestView{Request: req, URL: target})
	}

	var hs *ws.Handshaker
	if req.WebSocketVer != 0 {
		if !cfg.WebSocketSupport {
			c.emitImmediateError(fut, cerr.New(cerr.CodeNotSupported, "WebSocket upgrade requested but WebSocketSupport is disabled"))
			return
		}
		hs = ws.NewHandshaker(target, "", 0, req.WebSocketVer)
		hdr, herr := hs.BuildRequestHeaders()
		if herr != nil {
			c.emitImmediateError(fut, herr)
			return
		}
		for name, vals := range hdr {
			for _, v := range vals {
				req.Headers.Set(name, v)
			}
		}
	}

	info := handler.NewRequestInfo(req, target, fut, redirectCount)
	info.Handshaker = hs

	if fut.IsCancelled() {
		return
	}

	timeout := cfg.Timeout
	if req.HasTimeout {
		timeout = req.Timeout
	}
	if timeout > 0 {
		info.Deadline = c.scheduler.Schedule(timeout, func() {
			fut.TimeoutCancel(state.TimeoutElapsed{Elapsed: time.Since(info.Start)})
		})
	}

	fut.Dispatch(state.Connecting, state.None{})

	conn, dialErr := c.dial(target)
	if dialErr != nil {
		if info.Deadline != nil {
			info.Deadline.Cancel()
		}
		c.emitImmediateError(fut, dialErr)
		return
	}

	if cfg.CookieJar != nil {
		req.Headers.Del("Cookie")
		for _, cookie := range cfg.CookieJar.Decorate(target) {
			req.Headers.Add("Cookie", cookie.String())
		}
	}

	deps := handler.Deps{
		Limits: pipeline.Limits{
			MaxInitialLineLength: cfg.MaxInitialLineLength,
			MaxHeadersSize:       cfg.MaxHeadersSize,
			MaxChunkSize:         cfg.MaxChunkSize,
		},
		Jar:          cfg.CookieJar,
		Marshallers:  cfg.Marshallers,
		MaxRedirects: cfg.MaxRedirects,
		Redirect: func(method request.Method, newURL *url.URL, previous *handler.RequestInfo) {
			c.followRedirect(method, newURL, previous)
		},
	}
	if !cfg.FollowRedirects {
		deps.MaxRedirects = 0
	}

	c.Metrics.Counters.ActiveConnections.Add(1)
	fut.Dispatch(state.Connected, state.None{})
	handler.Run(conn, info, deps, nil)
	c.Metrics.Counters.ActiveConnections.Add(-1)
	if info.Deadline != nil {
		info.Deadline.Cancel()
	}
}

// snapshotConfig returns a copy of the fields Reconfigure is allowed to
// mutate after construction, taken under live.mu so a concurrent Reconfigure
// call can never race a connection attempt reading stale half-written
// values.
func (c *Client) snapshotConfig() Config {
	c.live.mu.RLock()
	defer c.live.mu.RUnlock()
	return c.cfg
}

func (c *Client) followRedirect(method request.Method, newURL *url.URL, previous *handler.RequestInfo) {
	c.Metrics.Counters.RedirectsFollowed.Add(1)
	next := previous.Request.WithURL(newURL)
	if method != previous.Request.Method {
		next = next.AsMethodOnly(method)
	}
	c.submitAttempt(next, newURL, previous.Future, previous.RedirectCount+1)
}

func (c *Client) emitImmediateError(fut *future.ResponseFuture, err error) {
	for _, ic := range c.cfg.ErrorInterceptors {
		ic(err)
	}
	fut.Dispatch(state.Error, err)
	fut.Dispatch(state.Closed, state.None{})
}

// dial resolves scheme, opens the TCP connection, applies channelOptions,
// and performs the TLS handshake for https targets using the bootstrap
// cache.
func (c *Client) dial(u *url.URL) (net.Conn, error) {
	host, port, err := splitHostPort(u)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	conn, err := c.cfg.Dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	if err != nil {
		return nil, cerr.Wrap(cerr.CodeConnect, "failed connecting to "+u.Host, err)
	}

	if err := sockopts.Apply(conn, c.cfg.ChannelOptions); err != nil {
		conn.Close()
		return nil, err
	}

	if u.Scheme != "https" {
		return conn, nil
	}

	base := c.cfg.TLSConfig
	if base == nil {
		base = &tls.Config{}
	}
	tlsCfg := c.tlsCache.Get(net.JoinHostPort(host, port), host, base)

	tlsConn, err := pipeline.WrapTLS(ctx, conn, tlsCfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return tlsConn, nil
}

// Shutdown drains the reactor Group, giving in-flight connection attempts
// up to the given window to finish before returning.
func (c *Client) Shutdown(ctx context.Context) {
	c.shutdown.Store(true)
	done := make(chan struct{})
	go func() {
		c.group.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func splitHostPort(u *url.URL) (host, port string, err error) {
	host = u.Hostname()
	port = u.Port()
	if port == "" {
		if u.Scheme == "https" {
			port = "443"
		} else {
			port = "80"
		}
	}
	if host == "" {
		return "", "", cerr.New(cerr.CodeInvalidArgument, "request URL has no host")
	}
	return host, port, nil
}

// applyHeaderPolicy installs the automatic Host/Connection/Date/User-Agent/
// Accept-Encoding headers per the external interfaces table, honoring each
// per-request suppression flag and never overwriting a header the caller
// set explicitly.
func applyHeaderPolicy(req *request.Request, target *url.URL, cfg Config) {
	if req.Flags.IncludeHost && !req.Headers.Has("Host") {
		req.Headers.Set("Host", hostHeaderValue(target))
	}
	if req.Flags.IncludeConnection && !req.Headers.Has("Connection") {
		req.Headers.Set("Connection", "close")
	}
	if req.Flags.IncludeDate && !req.Headers.Has("Date") {
		req.Headers.Set("Date", time.Now().UTC().Format(time.RFC1123))
	}
	if cfg.UserAgent != "" && !req.Headers.Has("User-Agent") {
		req.Headers.Set("User-Agent", cfg.UserAgent)
	}
	if cfg.Compression && !req.Headers.Has("Accept-Encoding") {
		req.Headers.Set("Accept-Encoding", "gzip, deflate")
	}
	switch req.BodyKind {
	case request.BodyBytes:
		if !req.Headers.Has("Content-Length") {
			req.Headers.Set("Content-Length", strconv.Itoa(len(req.Body)))
		}
	case request.BodyChunked:
		if !req.Headers.Has("Transfer-Encoding") {
			req.Headers.Set("Transfer-Encoding", "chunked")
		}
		if req.Flags.Send100Continue && cfg.Send100Continue && !req.Headers.Has("Expect") {
			req.Headers.Set("Expect", "100-continue")
		}
	}
}

func hostHeaderValue(u *url.URL) string {
	if u.Port() == "" {
		return u.Hostname()
	}
	return u.Host
}

