// Package sockopts applies the configuration surface's channelOptions to a
// dialed TCP connection before the HTTP/1.1 pipeline attaches to it.
package sockopts

// Options mirrors the subset of socket tuning knobs the configuration
// surface exposes: Nagle disable, kernel buffer sizing, and keepalive.
type Options struct {
	NoDelay      bool
	RecvBuffer   int
	SendBuffer   int
	KeepAlive    bool
	KeepAliveSec int
}

// DefaultOptions matches the teacher's own TCP_NODELAY-on-by-default
// transport construction.
func DefaultOptions() Options {
	return Options{NoDelay: true, KeepAlive: true, KeepAliveSec: 30}
}
