// Package client is a Go client for the userkey web service API.
package client

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

type Option func(*Client)

// WithAuthToken sets the bearer token sent with every request.
func WithAuthToken(token string) Option {
	return func(c *Client) {
		c.authToken = token
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// urlBuilder assembles request URLs from route constants with {param}
// placeholders and query parameters.
type urlBuilder struct {
	base   string
	path   string
	params url.Values
}

func (c *Client) url() urlBuilder {
	return urlBuilder{base: c.baseURL, params: url.Values{}}
}

func (b urlBuilder) setPath(path string) urlBuilder {
	b.path = path
	return b
}

func (b urlBuilder) setPathParam(name, value string) urlBuilder {
	b.path = strings.ReplaceAll(b.path, "{"+name+"}", url.PathEscape(value))
	return b
}

func (b urlBuilder) addQueryParam(name string, value any) urlBuilder {
	b.params.Add(name, toString(value))
	return b
}

func (b urlBuilder) build() string {
	full := b.base + b.path
	if len(b.params) > 0 {
		full += "?" + b.params.Encode()
	}
	return full
}

func correlationFromResponse(resp *http.Response) string {
	if resp == nil {
		return ""
	}
	return resp.Header.Get("X-Correlation-ID")
}
