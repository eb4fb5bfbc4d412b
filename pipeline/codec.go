package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/momentics/asynchttp/internal/cerr"
	"github.com/momentics/asynchttp/request"
	"github.com/momentics/asynchttp/state"
)

// WriteRequestHead serializes the request line and headers (but not the
// body) to w, including the trailing blank line.
func WriteRequestHead(w *bufio.Writer, req *request.Request) error {
	target := req.URL.RequestURI()
	if _, err := fmt.Fprintf(w, "%s %s %s\r\n", req.Method, target, req.HTTPVersion); err != nil {
		return cerr.Wrap(cerr.CodeCodec, "failed writing request line", err)
	}
	var writeErr error
	req.Headers.Each(func(name, value string) {
		if writeErr != nil {
			return
		}
		if _, err := fmt.Fprintf(w, "%s: %s\r\n", name, value); err != nil {
			writeErr = err
		}
	})
	if writeErr != nil {
		return cerr.Wrap(cerr.CodeCodec, "failed writing request headers", writeErr)
	}
	if _, err := w.WriteString("\r\n"); err != nil {
		return cerr.Wrap(cerr.CodeCodec, "failed writing header terminator", err)
	}
	return nil
}

// ReadResponseHead parses an HTTP/1.1 status line and header block from
// br, bounded by limits.MaxInitialLineLength and limits.MaxHeadersSize.
func ReadResponseHead(br *bufio.Reader, limits Limits) (*state.ResponseHead, error) {
	line, err := readBoundedLine(br, limits.MaxInitialLineLength)
	if err != nil {
		return nil, cerr.Wrap(cerr.CodeCodec, "failed reading status line", err)
	}
	proto, statusCode, statusText, err := parseStatusLine(line)
	if err != nil {
		return nil, err
	}

	headers, err := readHeaders(br, limits.MaxHeadersSize)
	if err != nil {
		return nil, err
	}

	return &state.ResponseHead{
		StatusCode: statusCode,
		Status:     statusText,
		Proto:      proto,
		Header:     headers,
	}, nil
}

func parseStatusLine(line string) (proto string, code int, text string, err error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return "", 0, "", cerr.New(cerr.CodeCodec, "malformed status line").WithContext("line", line)
	}
	code, convErr := strconv.Atoi(parts[1])
	if convErr != nil {
		return "", 0, "", cerr.Wrap(cerr.CodeCodec, "malformed status code", convErr)
	}
	text = ""
	if len(parts) == 3 {
		text = parts[2]
	}
	return parts[0], code, text, nil
}

func readHeaders(br *bufio.Reader, maxSize int) (map[string][]string, error) {
	headers := make(map[string][]string)
	total := 0
	for {
		line, err := readBoundedLine(br, maxSize-total)
		if err != nil {
			return nil, cerr.Wrap(cerr.CodeCodec, "failed reading response headers", err)
		}
		total += len(line)
		if total > maxSize {
			return nil, cerr.New(cerr.CodeCodec, "response headers exceed configured maximum size")
		}
		if line == "" {
			return headers, nil
		}
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			return nil, cerr.New(cerr.CodeCodec, "malformed response header line").WithContext("line", line)
		}
		name := http1CanonicalHeader(strings.TrimSpace(line[:idx]))
		value := strings.TrimSpace(line[idx+1:])
		headers[name] = append(headers[name], value)
	}
}

func readBoundedLine(br *bufio.Reader, max int) (string, error) {
	if max <= 0 {
		return "", cerr.New(cerr.CodeCodec, "initial line or headers exceed configured maximum size")
	}
	raw, err := br.ReadString('\n')
	if err != nil {
		return "", err
	}
	raw = strings.TrimRight(raw, "\r\n")
	if len(raw) > max {
		return "", cerr.New(cerr.CodeCodec, "line exceeds configured maximum size")
	}
	return raw, nil
}

func http1CanonicalHeader(name string) string {
	parts := strings.Split(name, "-")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + strings.ToLower(p[1:])
	}
	return strings.Join(parts, "-")
}

// BodyReader yields successive body chunks, each capped at the configured
// maxChunkSize, reporting Last on the final chunk per the
// "marked last OR content-length reached" rule.
type BodyReader interface {
	Next() (data []byte, last bool, err error)
}

// NewBodyReader selects the body framing strategy from the decoded
// response head: chunked transfer-encoding, a known Content-Length, or
// (RFC-compatible) EOF-terminated.
func NewBodyReader(br *bufio.Reader, head *state.ResponseHead, limits Limits) BodyReader {
	if hasToken(head.Header["Transfer-Encoding"], "chunked") {
		return &chunkedBodyReader{br: br, maxChunk: limits.MaxChunkSize}
	}
	if cl, ok := contentLength(head.Header); ok {
		return &contentLengthBodyReader{br: br, remaining: cl, maxChunk: limits.MaxChunkSize}
	}
	return &eofBodyReader{br: br, maxChunk: limits.MaxChunkSize}
}

func hasToken(values []string, token string) bool {
	for _, v := range values {
		for _, p := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(p), token) {
				return true
			}
		}
	}
	return false
}

func contentLength(header map[string][]string) (int64, bool) {
	vals := header["Content-Length"]
	if len(vals) == 0 {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(vals[0]), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

type contentLengthBodyReader struct {
	br        *bufio.Reader
	remaining int64
	maxChunk  int
}

func (r *contentLengthBodyReader) Next() ([]byte, bool, error) {
	if r.remaining <= 0 {
		return nil, true, nil
	}
	want := int64(r.maxChunk)
	if r.remaining < want {
		want = r.remaining
	}
	buf := make([]byte, want)
	n, err := io.ReadFull(r.br, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, false, cerr.Wrap(cerr.CodeUnexpectedClose, "connection closed before content-length was satisfied", err)
	}
	r.remaining -= int64(n)
	return buf[:n], r.remaining <= 0, nil
}

type chunkedBodyReader struct {
	br       *bufio.Reader
	maxChunk int
	done     bool
}

func (r *chunkedBodyReader) Next() ([]byte, bool, error) {
	if r.done {
		return nil, true, nil
	}
	sizeLine, err := readBoundedLine(r.br, 64)
	if err != nil {
		return nil, false, cerr.Wrap(cerr.CodeUnexpectedClose, "connection closed while reading chunk size", err)
	}
	sizeLine = strings.SplitN(sizeLine, ";", 2)[0]
	size, err := strconv.ParseInt(strings.TrimSpace(sizeLine), 16, 64)
	if err != nil {
		return nil, false, cerr.Wrap(cerr.CodeCodec, "malformed chunk size", err)
	}
	if size > int64(r.maxChunk) {
		return nil, false, cerr.New(cerr.CodeCodec, "chunk size exceeds configured maximum")
	}
	if size == 0 {
		// Drain trailer headers up to the blank line.
		for {
			line, err := readBoundedLine(r.br, 8192)
			if err != nil {
				return nil, false, cerr.Wrap(cerr.CodeUnexpectedClose, "connection closed while reading chunk trailer", err)
			}
			if line == "" {
				break
			}
		}
		r.done = true
		return nil, true, nil
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r.br, buf); err != nil {
		return nil, false, cerr.Wrap(cerr.CodeUnexpectedClose, "connection closed while reading chunk body", err)
	}
	var crlf [2]byte
	if _, err := io.ReadFull(r.br, crlf[:]); err != nil {
		return nil, false, cerr.Wrap(cerr.CodeUnexpectedClose, "connection closed while reading chunk terminator", err)
	}
	return buf, false, nil
}

type eofBodyReader struct {
	br       *bufio.Reader
	maxChunk int
}

func (r *eofBodyReader) Next() ([]byte, bool, error) {
	buf := make([]byte, r.maxChunk)
	n, err := r.br.Read(buf)
	if n > 0 {
		return buf[:n], false, nil
	}
	if err == io.EOF {
		return nil, true, nil
	}
	if err != nil {
		return nil, false, cerr.Wrap(cerr.CodeUnexpectedClose, "connection closed while reading response body", err)
	}
	return nil, false, nil
}
