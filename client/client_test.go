package client_test

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/momentics/asynchttp/client"
	"github.com/momentics/asynchttp/state"
)

// startEchoServer accepts a single connection, reads the request line and
// headers, and writes back a fixed response built from respond.
func startEchoServer(t *testing.T, respond func(conn net.Conn)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		respond(conn)
	}()
	t.Cleanup(func() { ln.Close() })
	return ln.Addr().String()
}

func drainRequest(conn net.Conn) {
	br := bufio.NewReader(conn)
	for {
		line, err := br.ReadString('\n')
		if err != nil || line == "\r\n" {
			return
		}
	}
}

func TestClientGetReceivesBody(t *testing.T) {
	addr := startEchoServer(t, func(conn net.Conn) {
		drainRequest(conn)
		io.WriteString(conn, "HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok")
	})

	c := client.New(client.WithTimeout(2 * time.Second))
	defer c.Shutdown(context.Background())

	fut, err := c.Get(fmt.Sprintf("http://%s/", addr))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	var body []byte
	fut.On(state.FullContentReceived, func(payload any) {
		body = payload.(state.Aggregate).Body
	})
	fut.On(state.Error, func(payload any) { t.Errorf("unexpected error: %v", payload) })

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := fut.Await(ctx); err != nil {
		t.Fatalf("await: %v", err)
	}

	if string(body) != "ok" {
		t.Fatalf("expected body %q, got %q", "ok", body)
	}
}

func TestClientTimeoutCancelsUnresponsiveConnection(t *testing.T) {
	addr := startEchoServer(t, func(conn net.Conn) {
		// Accept the connection and the request, then never respond.
		drainRequest(conn)
		time.Sleep(2 * time.Second)
	})

	c := client.New(client.WithTimeout(50 * time.Millisecond))
	defer c.Shutdown(context.Background())

	fut, err := c.Get(fmt.Sprintf("http://%s/", addr))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	var timedOut bool
	fut.On(state.Timeout, func(any) { timedOut = true })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := fut.Await(ctx); err != nil {
		t.Fatalf("await: %v", err)
	}
	if !timedOut {
		t.Fatal("expected a Timeout event for an unresponsive connection")
	}
}

func TestClientReconfigureChangesFollowRedirects(t *testing.T) {
	c := client.New(client.WithFollowRedirects(true))
	defer c.Shutdown(context.Background())

	c.Reconfigure(map[string]any{"followRedirects": false})

	addr := startEchoServer(t, func(conn net.Conn) {
		drainRequest(conn)
		io.WriteString(conn, "HTTP/1.1 302 Found\r\nLocation: /elsewhere\r\nContent-Length: 0\r\n\r\n")
	})

	fut, err := c.Get(fmt.Sprintf("http://%s/", addr))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	var gotRedirectEvent bool
	fut.On(state.Redirect, func(any) { gotRedirectEvent = true })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := fut.Await(ctx); err != nil {
		t.Fatalf("await: %v", err)
	}
	if gotRedirectEvent {
		t.Fatal("expected Reconfigure(followRedirects=false) to suppress automatic redirect following")
	}
}
