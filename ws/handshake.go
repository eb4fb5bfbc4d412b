package ws

import (
	"bufio"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/momentics/asynchttp/internal/cerr"
)

// webSocketGUID is the RFC 6455 handshake magic string, carried over from
// the teacher's server-side handshake constant.
const webSocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// Version13 is the only WebSocket protocol version this module speaks; the
// field exists on the request/handshaker for forward compatibility but
// spec.md's "highest supported" default currently resolves to this one.
const Version13 = 13

// Handshaker encapsulates WebSocket upgrade negotiation state: the target
// URL, chosen subprotocol, max frame size and protocol version.
type Handshaker struct {
	URL             *url.URL
	Subprotocol     string
	MaxFrameSize    int
	Version         int
	key             string
	expectedAccept  string
}

// NewHandshaker builds a handshaker bound to u with default version 13 and
// no subprotocol.
func NewHandshaker(u *url.URL, subprotocol string, maxFrameSize, version int) *Handshaker {
	if version == 0 {
		version = Version13
	}
	if maxFrameSize == 0 {
		maxFrameSize = MaxFramePayload
	}
	return &Handshaker{URL: u, Subprotocol: subprotocol, MaxFrameSize: maxFrameSize, Version: version}
}

// BuildRequestHeaders generates the Sec-WebSocket-Key and returns the
// upgrade-request headers to merge into the outgoing HTTP request.
func (h *Handshaker) BuildRequestHeaders() (http.Header, error) {
	keyBytes := make([]byte, 16)
	if _, err := rand.Read(keyBytes); err != nil {
		return nil, cerr.Wrap(cerr.CodeConnect, "failed to generate websocket key", err)
	}
	h.key = base64.StdEncoding.EncodeToString(keyBytes)
	h.expectedAccept = computeAccept(h.key)

	hdr := http.Header{}
	hdr.Set("Connection", "Upgrade")
	hdr.Set("Upgrade", "websocket")
	hdr.Set("Sec-WebSocket-Key", h.key)
	hdr.Set("Sec-WebSocket-Version", fmt.Sprintf("%d", h.Version))
	if h.Subprotocol != "" {
		hdr.Set("Sec-WebSocket-Protocol", h.Subprotocol)
	}
	return hdr, nil
}

// VerifyResponse validates a 101 Switching Protocols response against the
// handshake this Handshaker initiated.
func (h *Handshaker) VerifyResponse(statusCode int, header http.Header) error {
	if statusCode != http.StatusSwitchingProtocols {
		return cerr.New(cerr.CodeConnect, fmt.Sprintf("unexpected handshake status %d", statusCode))
	}
	if !headerContainsToken(header, "Connection", "Upgrade") {
		return cerr.New(cerr.CodeConnect, "handshake response missing Connection: Upgrade")
	}
	if !strings.EqualFold(header.Get("Upgrade"), "websocket") {
		return cerr.New(cerr.CodeConnect, "handshake response missing Upgrade: websocket")
	}
	accept := header.Get("Sec-WebSocket-Accept")
	if accept == "" || accept != h.expectedAccept {
		return cerr.New(cerr.CodeConnect, "handshake response Sec-WebSocket-Accept mismatch")
	}
	return nil
}

// ParseUpgradeResponse reads an HTTP response head (status line + headers)
// from br and reports its status code and headers, for callers driving the
// handshake over a raw connection rather than through the main pipeline.
func ParseUpgradeResponse(br *bufio.Reader) (int, http.Header, error) {
	tp := textproto.NewReader(br)
	statusLine, err := tp.ReadLine()
	if err != nil {
		return 0, nil, cerr.Wrap(cerr.CodeCodec, "failed reading handshake status line", err)
	}
	parts := strings.SplitN(statusLine, " ", 3)
	if len(parts) < 2 {
		return 0, nil, cerr.New(cerr.CodeCodec, "malformed handshake status line")
	}
	var code int
	if _, err := fmt.Sscanf(parts[1], "%d", &code); err != nil {
		return 0, nil, cerr.Wrap(cerr.CodeCodec, "malformed handshake status code", err)
	}
	mimeHeader, err := tp.ReadMIMEHeader()
	if err != nil {
		return 0, nil, cerr.Wrap(cerr.CodeCodec, "failed reading handshake headers", err)
	}
	return code, http.Header(mimeHeader), nil
}

// IsUpgradeResponse reports whether a decoded response head requests a
// WebSocket upgrade per §4.6: Connection: Upgrade and Upgrade: websocket.
func IsUpgradeResponse(header http.Header) bool {
	return headerContainsToken(header, "Connection", "Upgrade") &&
		strings.EqualFold(header.Get("Upgrade"), "websocket")
}

func computeAccept(key string) string {
	h := sha1.New()
	h.Write([]byte(key + webSocketGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func headerContainsToken(h http.Header, name, token string) bool {
	token = strings.ToLower(token)
	for _, v := range h[http.CanonicalHeaderKey(name)] {
		for _, p := range strings.Split(v, ",") {
			if strings.ToLower(strings.TrimSpace(p)) == token {
				return true
			}
		}
	}
	return false
}
