//go:build linux
// +build linux

package sockopts

import (
	"net"

	"golang.org/x/sys/unix"

	"github.com/momentics/asynchttp/internal/cerr"
)

// Apply tunes a dialed *net.TCPConn's socket options via SetsockoptInt,
// grounded on the teacher's linuxTransport.newTransportInternal TCP_NODELAY
// setup. Non-TCP connections (e.g. a test net.Pipe) are left untouched.
func Apply(conn net.Conn, opts Options) error {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	raw, err := tc.SyscallConn()
	if err != nil {
		return cerr.Wrap(cerr.CodeConnect, "failed obtaining raw socket for channelOptions", err)
	}

	var sockErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		if opts.NoDelay {
			if e := unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); e != nil {
				sockErr = e
				return
			}
		}
		if opts.RecvBuffer > 0 {
			if e := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, opts.RecvBuffer); e != nil {
				sockErr = e
				return
			}
		}
		if opts.SendBuffer > 0 {
			if e := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, opts.SendBuffer); e != nil {
				sockErr = e
				return
			}
		}
		if opts.KeepAlive {
			if e := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); e != nil {
				sockErr = e
				return
			}
			if opts.KeepAliveSec > 0 {
				if e := unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, opts.KeepAliveSec); e != nil {
					sockErr = e
					return
				}
			}
		}
	})
	if ctrlErr != nil {
		return cerr.Wrap(cerr.CodeConnect, "failed applying channelOptions", ctrlErr)
	}
	if sockErr != nil {
		return cerr.Wrap(cerr.CodeConnect, "failed applying channelOptions", sockErr)
	}
	return nil
}
