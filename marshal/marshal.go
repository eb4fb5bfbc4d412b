// Package marshal implements the content marshalling registry: a
// (reflect.Type, MIME type) <-> byte-sequence codec for decoding a response
// body into an application type. The client carries a Registry in its
// Config and in handler.Deps but does not apply it to responses itself;
// Finished delivers the raw body bytes. It is
// grounded on the teacher's ReadJSON/WriteJSON helpers, which reach for
// encoding/json as the default wire codec.
package marshal

import (
	"encoding/json"
	"reflect"

	"github.com/momentics/asynchttp/internal/cerr"
)

// Marshaller converts between a byte sequence and an application value for
// one MIME type.
type Marshaller interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Registry maps a MIME type to the Marshaller responsible for it.
type Registry struct {
	byMIME map[string]Marshaller
}

// NewRegistry returns a registry preloaded with the JSON default, matching
// the teacher's ReadJSON/WriteJSON default behavior.
func NewRegistry() *Registry {
	r := &Registry{byMIME: make(map[string]Marshaller)}
	r.Register("application/json", jsonMarshaller{})
	return r
}

// Register installs (or replaces) the Marshaller for a MIME type.
func (r *Registry) Register(mime string, m Marshaller) {
	r.byMIME[mime] = m
}

// For returns the Marshaller registered for mime, or ok=false.
func (r *Registry) For(mime string) (Marshaller, bool) {
	m, ok := r.byMIME[mime]
	return m, ok
}

// Unmarshal decodes data into a new value of vType using the Marshaller
// registered for mime, returning a *cerr.Error (CodeMarshal) on failure or
// when no Marshaller is registered.
func (r *Registry) Unmarshal(mime string, data []byte, vType reflect.Type) (any, error) {
	m, ok := r.For(mime)
	if !ok {
		return nil, cerr.New(cerr.CodeMarshal, "no marshaller registered for content type").
			WithContext("mime", mime)
	}
	out := reflect.New(vType).Interface()
	if err := m.Unmarshal(data, out); err != nil {
		return nil, cerr.Wrap(cerr.CodeMarshal, "failed unmarshalling response body", err).
			WithContext("mime", mime)
	}
	return reflect.ValueOf(out).Elem().Interface(), nil
}

type jsonMarshaller struct{}

func (jsonMarshaller) Marshal(v any) ([]byte, error)        { return json.Marshal(v) }
func (jsonMarshaller) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
