//go:build !linux
// +build !linux

package sockopts

import "net"

// Apply is a no-op outside Linux: the configuration surface's channelOptions
// is a best-effort tuning hook, not a portability guarantee, matching the
// teacher's own platform split between reactor_linux.go and
// reactor_windows.go for raw socket behavior.
func Apply(conn net.Conn, opts Options) error {
	return nil
}
