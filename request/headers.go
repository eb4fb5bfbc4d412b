package request

import "strings"

// headerField is one insertion into the ordered header multimap.
type headerField struct {
	name  string
	value string
}

// Headers is an insertion-ordered multimap preserving both the order of
// distinct header names and duplicate values for the same name (P8: header
// insertion order is preserved on the wire). net/http.Header's
// map[string][]string cannot give this guarantee across distinct names
// since map iteration order is randomized, which is why this module keeps
// its own slice-backed ordered type instead of reusing it.
type Headers struct {
	fields []headerField
}

// NewHeaders returns an empty ordered header set.
func NewHeaders() *Headers {
	return &Headers{}
}

// Add appends a name/value pair, preserving any existing values for name.
func (h *Headers) Add(name, value string) *Headers {
	h.fields = append(h.fields, headerField{name: canonical(name), value: value})
	return h
}

// Set removes any existing values for name and inserts value as the sole
// occurrence, at the position of the first prior occurrence if any existed,
// otherwise appended.
func (h *Headers) Set(name, value string) *Headers {
	name = canonical(name)
	replaced := false
	out := h.fields[:0:0]
	for _, f := range h.fields {
		if f.name == name {
			if !replaced {
				out = append(out, headerField{name: name, value: value})
				replaced = true
			}
			continue
		}
		out = append(out, f)
	}
	if !replaced {
		out = append(out, headerField{name: name, value: value})
	}
	h.fields = out
	return h
}

// Get returns the first value for name, or "" if absent.
func (h *Headers) Get(name string) string {
	name = canonical(name)
	for _, f := range h.fields {
		if f.name == name {
			return f.value
		}
	}
	return ""
}

// Values returns all values for name in insertion order.
func (h *Headers) Values(name string) []string {
	name = canonical(name)
	var out []string
	for _, f := range h.fields {
		if f.name == name {
			out = append(out, f.value)
		}
	}
	return out
}

// Has reports whether name has at least one value.
func (h *Headers) Has(name string) bool {
	name = canonical(name)
	for _, f := range h.fields {
		if f.name == name {
			return true
		}
	}
	return false
}

// Del removes all values for name.
func (h *Headers) Del(name string) *Headers {
	name = canonical(name)
	out := h.fields[:0:0]
	for _, f := range h.fields {
		if f.name != name {
			out = append(out, f)
		}
	}
	h.fields = out
	return h
}

// Each invokes fn for every name/value pair in wire order.
func (h *Headers) Each(fn func(name, value string)) {
	for _, f := range h.fields {
		fn(f.name, f.value)
	}
}

// Clone returns an independent copy.
func (h *Headers) Clone() *Headers {
	cp := &Headers{fields: make([]headerField, len(h.fields))}
	copy(cp.fields, h.fields)
	return cp
}

func canonical(name string) string {
	if name == "" {
		return name
	}
	parts := strings.Split(name, "-")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + strings.ToLower(p[1:])
	}
	return strings.Join(parts, "-")
}
