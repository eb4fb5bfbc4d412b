package handler_test

import (
	"bufio"
	"io"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/momentics/asynchttp/future"
	"github.com/momentics/asynchttp/handler"
	"github.com/momentics/asynchttp/marshal"
	"github.com/momentics/asynchttp/pipeline"
	"github.com/momentics/asynchttp/request"
	"github.com/momentics/asynchttp/state"
)

func newRequestInfo(t *testing.T, rawURL string) (*handler.RequestInfo, *future.ResponseFuture) {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	req, err := request.NewBuilder(request.GET, rawURL).Build()
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	fut := future.New()
	return handler.NewRequestInfo(req, u, fut, 0), fut
}

func defaultDeps() handler.Deps {
	return handler.Deps{
		Limits:       pipeline.DefaultLimits(),
		MaxRedirects: 5,
		Marshallers:  marshal.NewRegistry(),
	}
}

func TestRunDeliversSimpleResponse(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	info, fut := newRequestInfo(t, "http://example.com/")

	done := make(chan struct{})
	fut.On(state.Closed, func(any) { close(done) })

	var gotHeaders *state.ResponseHead
	fut.On(state.HeadersReceived, func(payload any) { gotHeaders = payload.(*state.ResponseHead) })

	var gotBody state.Aggregate
	fut.On(state.FullContentReceived, func(payload any) { gotBody = payload.(state.Aggregate) })

	fut.On(state.Error, func(payload any) { t.Errorf("unexpected error: %v", payload) })

	go handler.Run(clientConn, info, defaultDeps(), nil)

	go func() {
		br := bufio.NewReader(serverConn)
		for {
			line, err := br.ReadString('\n')
			if err != nil || line == "\r\n" {
				break
			}
		}
		io.WriteString(serverConn, "HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello")
		serverConn.Close()
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for Closed")
	}

	if gotHeaders == nil || gotHeaders.StatusCode != 200 {
		t.Fatalf("expected a 200 response head, got %+v", gotHeaders)
	}
	if string(gotBody.Body) != "hello" {
		t.Fatalf("expected aggregated body %q, got %q", "hello", gotBody.Body)
	}
}

func TestRunDetectsRedirect(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	info, fut := newRequestInfo(t, "http://example.com/old")

	var redirectedTo string
	redirectCalled := make(chan struct{})
	deps := defaultDeps()
	deps.Redirect = func(method request.Method, newURL *url.URL, previous *handler.RequestInfo) {
		redirectedTo = newURL.String()
		close(redirectCalled)
	}

	fut.On(state.Error, func(payload any) { t.Errorf("unexpected error: %v", payload) })

	go handler.Run(clientConn, info, deps, nil)

	go func() {
		br := bufio.NewReader(serverConn)
		for {
			line, err := br.ReadString('\n')
			if err != nil || line == "\r\n" {
				break
			}
		}
		io.WriteString(serverConn, "HTTP/1.1 302 Found\r\nLocation: http://example.com/new\r\nContent-Length: 0\r\n\r\n")
	}()

	select {
	case <-redirectCalled:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for redirect")
	}
	serverConn.Close()

	if redirectedTo != "http://example.com/new" {
		t.Fatalf("expected redirect to http://example.com/new, got %q", redirectedTo)
	}
}

func TestRunClosesGracefullyOnMidBodyDisconnect(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	info, fut := newRequestInfo(t, "http://example.com/")

	done := make(chan struct{})
	fut.On(state.Closed, func(any) { close(done) })
	fut.On(state.Error, func(payload any) { t.Errorf("expected no Error event, got %v", payload) })

	go handler.Run(clientConn, info, defaultDeps(), nil)

	go func() {
		br := bufio.NewReader(serverConn)
		for {
			line, err := br.ReadString('\n')
			if err != nil || line == "\r\n" {
				break
			}
		}
		io.WriteString(serverConn, "HTTP/1.1 200 OK\r\nContent-Length: 100\r\n\r\nshort")
		serverConn.Close()
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for Closed")
	}
}
