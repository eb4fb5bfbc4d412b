package handler

import (
	"net/url"
	"strings"

	"github.com/momentics/asynchttp/internal/cerr"
)

// redirectStatuses are the status codes that carry redirect intent per the
// message handler algorithm.
var redirectStatuses = map[int]bool{
	300: true, 301: true, 302: true, 303: true, 305: true, 307: true,
}

// IsRedirectStatus reports whether code is one of the recognized redirect
// statuses.
func IsRedirectStatus(code int) bool { return redirectStatuses[code] }

// ResolveRedirectLocation resolves a (URL-decoded) Location header value
// against the original request URL per §4.4 step 2:
//   - a value containing "://" is parsed directly;
//   - a value beginning with "/" is path-absolute against the original
//     scheme/host/port;
//   - otherwise it is appended to the original path, inserting "/" when
//     neither side already has one.
func ResolveRedirectLocation(original *url.URL, location string) (*url.URL, error) {
	decoded, err := url.QueryUnescape(location)
	if err != nil {
		decoded = location
	}

	if strings.Contains(decoded, "://") {
		u, err := url.Parse(decoded)
		if err != nil {
			return nil, cerr.Wrap(cerr.CodeInvalidRedirectURL, "invalid absolute redirect location", err).
				WithContext("location", location)
		}
		return u, nil
	}

	if strings.HasPrefix(decoded, "/") {
		u := *original
		path, query, _ := strings.Cut(decoded, "?")
		u.Path = path
		u.RawQuery = query
		u.Fragment = ""
		return &u, nil
	}

	u := *original
	base := original.Path
	sep := ""
	if !strings.HasSuffix(base, "/") && !strings.HasPrefix(decoded, "/") {
		sep = "/"
	}
	path, query, _ := strings.Cut(decoded, "?")
	u.Path = base + sep + path
	u.RawQuery = query
	u.Fragment = ""
	return &u, nil
}
