package cookiejar_test

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/momentics/asynchttp/cookiejar"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestExtractAndDecorateSameHost(t *testing.T) {
	j := cookiejar.New()
	u := mustURL(t, "http://example.com/account")

	h := http.Header{}
	h.Add("Set-Cookie", "session=abc123; Path=/")
	j.Extract(h, u)

	got := j.Decorate(u)
	if len(got) != 1 || got[0].Name != "session" || got[0].Value != "abc123" {
		t.Fatalf("expected session cookie to be decorated back, got %+v", got)
	}
}

func TestDecorateDoesNotLeakToUnrelatedHost(t *testing.T) {
	j := cookiejar.New()
	j.Extract(mustHeader("Set-Cookie", "a=1; Path=/"), mustURL(t, "http://a.example.com/"))

	got := j.Decorate(mustURL(t, "http://b.example.com/"))
	if len(got) != 0 {
		t.Fatalf("expected no cookies for an unrelated host, got %+v", got)
	}
}

func TestDecorateRespectsPathScope(t *testing.T) {
	j := cookiejar.New()
	u := mustURL(t, "http://example.com/")
	j.Extract(mustHeader("Set-Cookie", "scoped=1; Path=/admin"), u)

	if got := j.Decorate(mustURL(t, "http://example.com/public")); len(got) != 0 {
		t.Fatalf("expected /admin-scoped cookie to be excluded from /public, got %+v", got)
	}
	if got := j.Decorate(mustURL(t, "http://example.com/admin/users")); len(got) != 1 {
		t.Fatalf("expected /admin-scoped cookie to match /admin/users, got %+v", got)
	}
}

func TestExpiredCookieNotDecorated(t *testing.T) {
	j := cookiejar.New()
	u := mustURL(t, "http://example.com/")
	past := time.Now().Add(-time.Hour).UTC().Format(http.TimeFormat)
	j.Extract(mustHeader("Set-Cookie", "old=1; Expires="+past), u)

	if got := j.Decorate(u); len(got) != 0 {
		t.Fatalf("expected an expired cookie to be excluded, got %+v", got)
	}
}

func TestMaxAgeNegativeRemovesCookie(t *testing.T) {
	j := cookiejar.New()
	u := mustURL(t, "http://example.com/")
	j.Extract(mustHeader("Set-Cookie", "gone=1"), u)
	if got := j.Decorate(u); len(got) != 1 {
		t.Fatalf("expected cookie to be set before deletion, got %+v", got)
	}

	j.Extract(mustHeader("Set-Cookie", "gone=1; Max-Age=-1"), u)
	if got := j.Decorate(u); len(got) != 0 {
		t.Fatalf("expected Max-Age=-1 to delete the cookie, got %+v", got)
	}
}

func mustHeader(name, value string) http.Header {
	h := http.Header{}
	h.Add(name, value)
	return h
}
