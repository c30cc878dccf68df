package feed

import (
	"net/http"
	"time"

	"github.com/doyensec/safeurl"
)

const DefaultUserAgent = "news-relay/1.0 (+https://github.com/lysyi3m/news-relay)"

// NewHTTPClient returns the client used for feed requests. Unless private
// targets are allowed, connections to loopback, private and link-local
// addresses are refused after DNS resolution.
func NewHTTPClient(timeout time.Duration, allowPrivate bool) *http.Client {
	if allowPrivate {
		return &http.Client{Timeout: timeout}
	}

	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()

	return safeurl.Client(config).Client
}
