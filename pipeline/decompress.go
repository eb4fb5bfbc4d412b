package pipeline

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"io"
	"strings"

	"github.com/momentics/asynchttp/internal/cerr"
	"github.com/momentics/asynchttp/state"
)

// bodyReaderAsReader adapts a BodyReader back into an io.Reader so it can
// feed a stdlib decompressor, buffering any bytes a caller didn't fully
// consume from the previous Next() call.
type bodyReaderAsReader struct {
	src  BodyReader
	buf  []byte
	done bool
}

func (a *bodyReaderAsReader) Read(p []byte) (int, error) {
	for len(a.buf) == 0 {
		if a.done {
			return 0, io.EOF
		}
		data, last, err := a.src.Next()
		if err != nil {
			return 0, err
		}
		a.buf = data
		if last {
			a.done = true
		}
		if len(data) == 0 && last {
			return 0, io.EOF
		}
	}
	n := copy(p, a.buf)
	a.buf = a.buf[n:]
	return n, nil
}

// NewDecodingBodyReader wraps the raw, framing-level BodyReader with a
// transparent gzip/deflate decompressor when the response head's
// Content-Encoding asks for one and the client advertised support, per the
// optional decompressor pipeline stage (§4.5).
func NewDecodingBodyReader(raw BodyReader, head *state.ResponseHead, limits Limits) (BodyReader, error) {
	enc := strings.ToLower(strings.TrimSpace(firstHeader(head.Header, "Content-Encoding")))
	switch enc {
	case "", "identity":
		return raw, nil
	case "gzip":
		adapter := &bodyReaderAsReader{src: raw}
		gz, err := gzip.NewReader(adapter)
		if err != nil {
			return nil, cerr.Wrap(cerr.CodeCodec, "failed initializing gzip decompressor", err)
		}
		return &eofBodyReader{br: bufio.NewReader(gz), maxChunk: limits.MaxChunkSize}, nil
	case "deflate":
		fr := flate.NewReader(&bodyReaderAsReader{src: raw})
		return &eofBodyReader{br: bufio.NewReader(fr), maxChunk: limits.MaxChunkSize}, nil
	default:
		return raw, nil
	}
}

func firstHeader(header map[string][]string, name string) string {
	vals := header[name]
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}
