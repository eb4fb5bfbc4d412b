package pipeline

import (
	"context"
	"crypto/tls"
	"net"

	"github.com/momentics/asynchttp/internal/cerr"
)

// WrapTLS performs the optional TLS pipeline stage: it wraps conn in a TLS
// client session bound to cfg (already carrying the correct ServerName for
// SNI) and completes the handshake, forwarding any failure as a TLS
// handshake error rather than a raw library error.
func WrapTLS(ctx context.Context, conn net.Conn, cfg *tls.Config) (net.Conn, error) {
	tlsConn := tls.Client(conn, cfg)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return nil, cerr.Wrap(cerr.CodeTLSHandshake, "tls handshake failed", err)
	}
	return tlsConn, nil
}
