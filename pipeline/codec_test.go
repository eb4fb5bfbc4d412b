package pipeline_test

import (
	"bufio"
	"strings"
	"testing"

	"github.com/momentics/asynchttp/internal/cerr"
	"github.com/momentics/asynchttp/pipeline"
	"github.com/momentics/asynchttp/state"
)

func TestReadResponseHeadParsesStatusAndHeaders(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nContent-Length: 5\r\n\r\nhello"
	br := bufio.NewReader(strings.NewReader(raw))

	head, err := pipeline.ReadResponseHead(br, pipeline.DefaultLimits())
	if err != nil {
		t.Fatalf("ReadResponseHead: %v", err)
	}
	if head.StatusCode != 200 || head.Status != "OK" {
		t.Fatalf("unexpected status: %+v", head)
	}
	if got := head.Header["Content-Type"]; len(got) != 1 || got[0] != "text/plain" {
		t.Fatalf("unexpected Content-Type header: %v", got)
	}

	body := pipeline.NewBodyReader(br, head, pipeline.DefaultLimits())
	data, last, err := body.Next()
	if err != nil {
		t.Fatalf("body.Next: %v", err)
	}
	if string(data) != "hello" || !last {
		t.Fatalf("expected final chunk %q, got %q last=%v", "hello", data, last)
	}
}

func TestReadResponseHeadRejectsMalformedStatusLine(t *testing.T) {
	br := bufio.NewReader(strings.NewReader("garbage\r\n\r\n"))
	if _, err := pipeline.ReadResponseHead(br, pipeline.DefaultLimits()); err == nil {
		t.Fatal("expected malformed status line to be rejected")
	}
}

func TestChunkedBodyReaderDecodesMultipleChunks(t *testing.T) {
	raw := "5\r\nhello\r\n6\r\n world\r\n0\r\n\r\n"
	br := bufio.NewReader(strings.NewReader(raw))
	head := &state.ResponseHead{Header: map[string][]string{"Transfer-Encoding": {"chunked"}}}
	body := pipeline.NewBodyReader(br, head, pipeline.DefaultLimits())

	var got []byte
	for {
		data, last, err := body.Next()
		if err != nil {
			t.Fatalf("body.Next: %v", err)
		}
		got = append(got, data...)
		if last {
			break
		}
	}
	if string(got) != "hello world" {
		t.Fatalf("expected %q, got %q", "hello world", got)
	}
}

func TestChunkedBodyReaderRejectsMalformedSize(t *testing.T) {
	raw := "zzz\r\n"
	br := bufio.NewReader(strings.NewReader(raw))
	head := &state.ResponseHead{Header: map[string][]string{"Transfer-Encoding": {"chunked"}}}
	body := pipeline.NewBodyReader(br, head, pipeline.DefaultLimits())

	_, _, err := body.Next()
	var ce *cerr.Error
	if !cerr.As(err, &ce) || ce.Code != cerr.CodeCodec {
		t.Fatalf("expected CodeCodec for a malformed chunk size, got %v", err)
	}
}

func TestContentLengthBodyReaderUnexpectedCloseIsClassified(t *testing.T) {
	raw := "only 4"
	br := bufio.NewReader(strings.NewReader(raw))
	head := &state.ResponseHead{Header: map[string][]string{"Content-Length": {"100"}}}
	body := pipeline.NewBodyReader(br, head, pipeline.DefaultLimits())

	// The bytes that did arrive are handed back first; the short body is
	// reported on the following call.
	data, last, err := body.Next()
	if err != nil || last || string(data) != "only 4" {
		t.Fatalf("expected the partial bytes %q first, got %q last=%v err=%v", "only 4", data, last, err)
	}
	_, _, err = body.Next()
	var ce *cerr.Error
	if !cerr.As(err, &ce) || ce.Code != cerr.CodeUnexpectedClose {
		t.Fatalf("expected CodeUnexpectedClose for a short read, got %v", err)
	}
}

func TestEOFBodyReaderReadsUntilEOF(t *testing.T) {
	br := bufio.NewReader(strings.NewReader("trailing body, no content-length"))
	head := &state.ResponseHead{Header: map[string][]string{}}
	body := pipeline.NewBodyReader(br, head, pipeline.DefaultLimits())

	var got []byte
	for {
		data, last, err := body.Next()
		if err != nil {
			t.Fatalf("body.Next: %v", err)
		}
		got = append(got, data...)
		if last {
			break
		}
	}
	if string(got) != "trailing body, no content-length" {
		t.Fatalf("unexpected body: %q", got)
	}
}
