package ws_test

import (
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/url"
	"testing"

	"github.com/momentics/asynchttp/ws"
)

const webSocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	return u
}

func TestHandshakeRoundTrip(t *testing.T) {
	u := mustURL(t, "ws://example.com/echo")
	h := ws.NewHandshaker(u, "", 0, 0)

	reqHeaders, err := h.BuildRequestHeaders()
	if err != nil {
		t.Fatalf("build request headers: %v", err)
	}
	key := reqHeaders.Get("Sec-WebSocket-Key")
	if key == "" {
		t.Fatal("expected a Sec-WebSocket-Key to be generated")
	}

	accept := serverAccept(key)
	respHeaders := http.Header{}
	respHeaders.Set("Connection", "Upgrade")
	respHeaders.Set("Upgrade", "websocket")
	respHeaders.Set("Sec-WebSocket-Accept", accept)

	if err := h.VerifyResponse(http.StatusSwitchingProtocols, respHeaders); err != nil {
		t.Fatalf("verify response: %v", err)
	}
}

func TestHandshakeRejectsWrongAccept(t *testing.T) {
	u := mustURL(t, "ws://example.com/echo")
	h := ws.NewHandshaker(u, "", 0, 0)
	if _, err := h.BuildRequestHeaders(); err != nil {
		t.Fatalf("build request headers: %v", err)
	}

	respHeaders := http.Header{}
	respHeaders.Set("Connection", "Upgrade")
	respHeaders.Set("Upgrade", "websocket")
	respHeaders.Set("Sec-WebSocket-Accept", "not-the-right-value")

	if err := h.VerifyResponse(http.StatusSwitchingProtocols, respHeaders); err == nil {
		t.Fatal("expected accept mismatch to be rejected")
	}
}

func TestHandshakeRejectsNonSwitchingStatus(t *testing.T) {
	u := mustURL(t, "ws://example.com/echo")
	h := ws.NewHandshaker(u, "", 0, 0)
	if _, err := h.BuildRequestHeaders(); err != nil {
		t.Fatalf("build request headers: %v", err)
	}
	if err := h.VerifyResponse(http.StatusOK, http.Header{}); err == nil {
		t.Fatal("expected non-101 status to be rejected")
	}
}

func TestIsUpgradeResponse(t *testing.T) {
	h := http.Header{}
	h.Set("Connection", "keep-alive, Upgrade")
	h.Set("Upgrade", "websocket")
	if !ws.IsUpgradeResponse(h) {
		t.Fatal("expected header set to be recognized as an upgrade response")
	}

	plain := http.Header{}
	plain.Set("Connection", "keep-alive")
	if ws.IsUpgradeResponse(plain) {
		t.Fatal("did not expect a plain response to be recognized as an upgrade")
	}
}

// serverAccept mirrors the RFC 6455 accept-key computation the server side
// performs, used here purely to synthesize a valid response in tests.
func serverAccept(key string) string {
	h := sha1.New()
	h.Write([]byte(key + webSocketGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
