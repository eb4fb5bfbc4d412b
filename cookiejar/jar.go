// Package cookiejar implements the cookie decoration hook: a jar extracts
// Set-Cookie headers on HeadersReceived and decorates outgoing requests
// with matching Cookie headers, filtered by domain and path. It is built on
// net/http.Cookie for wire parsing/serialization since no third-party
// cookie library appears anywhere in the retrieved example pack.
package cookiejar

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Jar is the cookie decorator hook's external contract: Extract is invoked
// under the jar's write lock on HeadersReceived, Decorate under the read
// lock immediately before a request (or redirect) is sent.
type Jar interface {
	Extract(header http.Header, u *url.URL)
	Decorate(u *url.URL) []*http.Cookie
}

type entry struct {
	cookie  *http.Cookie
	domain  string
	path    string
	expires time.Time
	hasExp  bool
}

// MemoryJar is an in-memory Jar, modeled on the RWMutex-guarded registry
// shape used throughout the retrieved pack's control components.
type MemoryJar struct {
	mu      sync.RWMutex
	byDomain map[string][]*entry
}

// New returns an empty in-memory cookie jar.
func New() *MemoryJar {
	return &MemoryJar{byDomain: make(map[string][]*entry)}
}

// Extract parses Set-Cookie headers from header and stores them, scoped to
// u's host/path when the cookie itself does not specify a domain/path.
func (j *MemoryJar) Extract(header http.Header, u *url.URL) {
	resp := &http.Response{Header: header}
	cookies := resp.Cookies()
	if len(cookies) == 0 {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, c := range cookies {
		domain := strings.ToLower(c.Domain)
		if domain == "" {
			domain = strings.ToLower(u.Hostname())
		} else {
			domain = strings.TrimPrefix(domain, ".")
		}
		path := c.Path
		if path == "" {
			path = defaultPath(u.Path)
		}
		e := &entry{cookie: c, domain: domain, path: path}
		if !c.Expires.IsZero() {
			e.expires = c.Expires
			e.hasExp = true
		}
		if c.MaxAge < 0 {
			j.remove(domain, c.Name)
			continue
		}
		j.remove(domain, c.Name)
		j.byDomain[domain] = append(j.byDomain[domain], e)
	}
}

func (j *MemoryJar) remove(domain, name string) {
	entries := j.byDomain[domain]
	out := entries[:0:0]
	for _, e := range entries {
		if e.cookie.Name != name {
			out = append(out, e)
		}
	}
	j.byDomain[domain] = out
}

// Decorate returns the cookies that match u's host and path, for the caller
// to attach as a Cookie header.
func (j *MemoryJar) Decorate(u *url.URL) []*http.Cookie {
	j.mu.RLock()
	defer j.mu.RUnlock()
	host := strings.ToLower(u.Hostname())
	now := time.Now()
	var out []*http.Cookie
	for domain, entries := range j.byDomain {
		if !domainMatches(host, domain) {
			continue
		}
		for _, e := range entries {
			if e.hasExp && now.After(e.expires) {
				continue
			}
			if !pathMatches(u.Path, e.path) {
				continue
			}
			out = append(out, e.cookie)
		}
	}
	return out
}

func domainMatches(host, domain string) bool {
	if host == domain {
		return true
	}
	return strings.HasSuffix(host, "."+domain)
}

func pathMatches(reqPath, cookiePath string) bool {
	if cookiePath == "" || cookiePath == "/" {
		return true
	}
	if reqPath == cookiePath {
		return true
	}
	return strings.HasPrefix(reqPath, strings.TrimSuffix(cookiePath, "/")+"/")
}

func defaultPath(p string) string {
	idx := strings.LastIndex(p, "/")
	if idx <= 0 {
		return "/"
	}
	return p[:idx]
}
