package client

import (
	"crypto/tls"
	"net"
	"time"

	"github.com/momentics/asynchttp/cookiejar"
	"github.com/momentics/asynchttp/internal/sockopts"
	"github.com/momentics/asynchttp/marshal"
	"github.com/momentics/asynchttp/pipeline"
)

// Interceptor observes or rewrites a request immediately before it is
// written to the wire, including on every redirect hop.
type Interceptor func(req *RequestView)

// ErrorInterceptor observes the errors a connection attempt raises before
// the connection is handed to the message handler (a disabled WebSocket
// upgrade, a failed handshake-key generation, a failed dial), ahead of the
// Error event sent to the caller's observers. Other Error events (a
// rejected reactor submission, and every error raised once the request is
// on the wire) reach observers without passing through it. It is a
// per-Client hook, not process-wide, since two Clients in the same process
// may want independent diagnostics (§9 design note).
type ErrorInterceptor func(err error)

// Config is the full configuration surface a Client is built from.
type Config struct {
	Compression          bool
	MaxChunkSize         int
	MaxInitialLineLength int
	MaxHeadersSize       int
	ThreadCount          int
	FollowRedirects      bool
	MaxRedirects         int
	UserAgent            string
	Timeout              time.Duration
	Send100Continue      bool
	CookieJar            cookiejar.Jar
	TLSConfig            *tls.Config
	Dialer               *net.Dialer
	Resolver             *net.Resolver
	Interceptors         []Interceptor
	ErrorInterceptors    []ErrorInterceptor
	ChannelOptions       sockopts.Options
	Marshallers          *marshal.Registry
	WebSocketSupport     bool
}

// DefaultConfig mirrors the configuration surface's documented defaults.
func DefaultConfig() Config {
	limits := pipeline.DefaultLimits()
	return Config{
		Compression:          false,
		MaxChunkSize:         limits.MaxChunkSize,
		MaxInitialLineLength: limits.MaxInitialLineLength,
		MaxHeadersSize:       limits.MaxHeadersSize,
		ThreadCount:          4,
		FollowRedirects:      true,
		MaxRedirects:         15,
		UserAgent:            "",
		Timeout:              0,
		Send100Continue:      true,
		CookieJar:            cookiejar.New(),
		Dialer:               &net.Dialer{Timeout: 10 * time.Second},
		ChannelOptions:       sockopts.DefaultOptions(),
		Marshallers:          marshal.NewRegistry(),
		WebSocketSupport:     false,
	}
}

// Option configures a Client at construction time, following the teacher's
// functional-option convention (client.ClientOption in the original
// WebSocketClient).
type Option func(*Config)

func WithCompression(v bool) Option            { return func(c *Config) { c.Compression = v } }
func WithMaxChunkSize(n int) Option            { return func(c *Config) { c.MaxChunkSize = n } }
func WithMaxInitialLineLength(n int) Option    { return func(c *Config) { c.MaxInitialLineLength = n } }
func WithMaxHeadersSize(n int) Option          { return func(c *Config) { c.MaxHeadersSize = n } }
func WithThreadCount(n int) Option             { return func(c *Config) { c.ThreadCount = n } }
func WithFollowRedirects(v bool) Option        { return func(c *Config) { c.FollowRedirects = v } }
func WithMaxRedirects(n int) Option            { return func(c *Config) { c.MaxRedirects = n } }
func WithUserAgent(ua string) Option           { return func(c *Config) { c.UserAgent = ua } }
func WithTimeout(d time.Duration) Option       { return func(c *Config) { c.Timeout = d } }
func WithSend100Continue(v bool) Option        { return func(c *Config) { c.Send100Continue = v } }
func WithCookieJar(j cookiejar.Jar) Option      { return func(c *Config) { c.CookieJar = j } }
func WithTLSConfig(cfg *tls.Config) Option      { return func(c *Config) { c.TLSConfig = cfg } }
func WithDialer(d *net.Dialer) Option          { return func(c *Config) { c.Dialer = d } }
func WithResolver(r *net.Resolver) Option      { return func(c *Config) { c.Resolver = r } }
func WithChannelOptions(o sockopts.Options) Option {
	return func(c *Config) { c.ChannelOptions = o }
}
func WithMarshallers(r *marshal.Registry) Option { return func(c *Config) { c.Marshallers = r } }
func WithWebSocketSupport(v bool) Option         { return func(c *Config) { c.WebSocketSupport = v } }

// WithInterceptor appends a request interceptor.
func WithInterceptor(i Interceptor) Option {
	return func(c *Config) { c.Interceptors = append(c.Interceptors, i) }
}

// WithErrorInterceptor appends an error interceptor.
func WithErrorInterceptor(i ErrorInterceptor) Option {
	return func(c *Config) { c.ErrorInterceptors = append(c.ErrorInterceptors, i) }
}
