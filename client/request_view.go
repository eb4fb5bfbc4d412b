package client

import (
	"net/url"

	"github.com/momentics/asynchttp/request"
)

// RequestView is the mutable view an Interceptor observes immediately
// before a request (or redirect hop) goes to the wire.
type RequestView struct {
	Request *request.Request
	URL     *url.URL
}
