// Package networking provides utilities for outbound HTTP calls made by runorg.
package networking

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

// HttpTimeout is the timeout for outgoing HTTP requests
const HttpTimeout = 30 * time.Second

// HTTPClient is the interface for HTTP clients, satisfied by *http.Client.
// It exists so tests can substitute a recording client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// IsLocalhost reports whether host refers to the local machine.
// The port, if present, is ignored.
func IsLocalhost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// ValidateEndpointURLWithInsecure validates that an endpoint URL is well formed
// and uses HTTPS. Plain HTTP is allowed only for localhost, or for any host
// when insecureAllowHTTP is set (testing only).
func ValidateEndpointURLWithInsecure(endpoint string, insecureAllowHTTP bool) error {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("malformed URL %q: %w", endpoint, err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL %q has no host", endpoint)
	}
	if parsed.Scheme == "https" {
		return nil
	}
	if parsed.Scheme == "http" && (insecureAllowHTTP || IsLocalhost(parsed.Host)) {
		return nil
	}
	return fmt.Errorf("URL %q must use HTTPS", endpoint)
}

// ValidatingTransport is for validating URLs prior to request
type ValidatingTransport struct {
	Transport         http.RoundTripper
	InsecureAllowHTTP bool
}

// RoundTrip validates the request URL prior to forwarding
func (t *ValidatingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := ValidateEndpointURLWithInsecure(req.URL.String(), t.InsecureAllowHTTP); err != nil {
		return nil, err
	}
	return t.Transport.RoundTrip(req)
}

// HttpClientBuilder provides a fluent interface for building HTTP clients
type HttpClientBuilder struct {
	clientTimeout         time.Duration
	tlsHandshakeTimeout   time.Duration
	responseHeaderTimeout time.Duration
	insecureAllowHTTP     bool
}

// NewHttpClientBuilder returns a new HttpClientBuilder
func NewHttpClientBuilder() *HttpClientBuilder {
	return &HttpClientBuilder{
		clientTimeout:         HttpTimeout,
		tlsHandshakeTimeout:   10 * time.Second,
		responseHeaderTimeout: 10 * time.Second,
	}
}

// WithTimeout sets the overall request timeout
func (b *HttpClientBuilder) WithTimeout(timeout time.Duration) *HttpClientBuilder {
	if timeout > 0 {
		b.clientTimeout = timeout
	}
	return b
}

// WithInsecureAllowHTTP allows plain-HTTP endpoints on non-localhost hosts.
// Intended for tests against local mock identity providers.
func (b *HttpClientBuilder) WithInsecureAllowHTTP(allow bool) *HttpClientBuilder {
	b.insecureAllowHTTP = allow
	return b
}

// Build creates the configured HTTP client
func (b *HttpClientBuilder) Build() (*http.Client, error) {
	transport := &http.Transport{
		TLSHandshakeTimeout:   b.tlsHandshakeTimeout,
		ResponseHeaderTimeout: b.responseHeaderTimeout,
	}

	client := &http.Client{
		Transport: &ValidatingTransport{
			Transport:         transport,
			InsecureAllowHTTP: b.insecureAllowHTTP,
		},
		Timeout: b.clientTimeout,
	}

	return client, nil
}
