// Package pipeline implements the per-connection decoder chain: HTTP/1.1
// request encoding and response decoding, an optional transparent
// gzip/deflate decompressor, and the TLS wrapping stage, composed ahead of
// the application-level MessageHandler.
package pipeline

// Limits bounds the HTTP/1.1 codec, matching the configuration surface's
// maxInitialLineLength/maxHeadersSize/maxChunkSize options.
type Limits struct {
	MaxInitialLineLength int
	MaxHeadersSize       int
	MaxChunkSize         int
}

// DefaultLimits returns the documented configuration defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxInitialLineLength: 2048,
		MaxHeadersSize:       16384,
		MaxChunkSize:         65536,
	}
}
