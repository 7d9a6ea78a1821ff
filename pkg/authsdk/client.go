package authsdk

import (
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds every request made through NewSDKClient.
const DefaultTimeout = 10 * time.Second

// SDKClient talks to the collaboration backend's auth endpoints. The refresh
// credential travels as a cookie, so HTTPClient must carry the cookie jar
// that holds it.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

type Option func(*SDKClient)

// WithCookieJar installs jar on the client's HTTP client.
func WithCookieJar(jar http.CookieJar) Option {
	return func(c *SDKClient) { c.HTTPClient.Jar = jar }
}

// WithTimeout replaces DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *SDKClient) {
		if d > 0 {
			c.HTTPClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces the HTTP client entirely.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *SDKClient) {
		if hc != nil {
			c.HTTPClient = hc
		}
	}
}

// NewSDKClient creates a client for the backend at baseURL.
func NewSDKClient(baseURL string, opts ...Option) *SDKClient {
	c := &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
