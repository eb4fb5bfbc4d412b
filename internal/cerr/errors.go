// Package cerr defines the structured error taxonomy surfaced as Error
// state payloads across the client. It is modeled directly on the
// ErrorCode/Error pair the reactor packages use for their own faults.
package cerr

import "fmt"

// ErrorCode discriminates the error taxonomy described by the request
// lifecycle: resolution, connect, TLS, codec, timeout, redirect,
// cancellation, unexpected close, marshalling and observer faults.
type ErrorCode int

const (
	CodeUnknown ErrorCode = iota
	CodeInvalidArgument
	CodeResolution
	CodeConnect
	CodeTLSHandshake
	CodeCodec
	CodeTimeout
	CodeInvalidRedirectURL
	CodeRedirectLoop
	CodeCancelled
	CodeUnexpectedClose
	CodeMarshal
	CodeObserver
	CodeNotSupported
	CodeIllegalState
)

var codeNames = map[ErrorCode]string{
	CodeUnknown:            "unknown",
	CodeInvalidArgument:    "invalid_argument",
	CodeResolution:         "resolution",
	CodeConnect:            "connect",
	CodeTLSHandshake:       "tls_handshake",
	CodeCodec:              "codec",
	CodeTimeout:            "timeout",
	CodeInvalidRedirectURL: "invalid_redirect_url",
	CodeRedirectLoop:       "redirect_loop",
	CodeCancelled:          "cancelled",
	CodeUnexpectedClose:    "unexpected_close",
	CodeMarshal:            "marshal",
	CodeObserver:           "observer",
	CodeNotSupported:       "not_supported",
	CodeIllegalState:       "illegal_state",
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "unknown"
}

// Error is a structured error carrying a taxonomy code, a message and
// optional context key/values, so observers can branch on Code without
// string matching.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	Cause   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates a structured error of the given taxonomy code.
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a structured error around an underlying cause.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// WithContext attaches a context key/value and returns the receiver for
// chaining, matching the teacher's diagnostic builder pattern.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// IsRedirectKind reports whether the error is one of the two redirect
// error kinds that must always surface, even after cancellation.
func IsRedirectKind(err error) bool {
	var ce *Error
	if !As(err, &ce) {
		return false
	}
	return ce.Code == CodeInvalidRedirectURL || ce.Code == CodeRedirectLoop
}

// As walks err's single-Unwrap chain and stores the first *Error it finds
// in target, a local stand-in for errors.As that saves callers importing
// the standard errors package just for this one check.
func As(err error, target **Error) bool {
	for err != nil {
		if ce, ok := err.(*Error); ok {
			*target = ce
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

var (
	ErrNotSupported    = New(CodeNotSupported, "operation not supported on this platform")
	ErrIllegalState    = New(CodeIllegalState, "operation illegal in current state")
	ErrInvalidArgument = New(CodeInvalidArgument, "invalid argument")
)
