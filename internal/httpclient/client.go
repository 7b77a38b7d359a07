// Package httpclient builds the HTTP clients used for Bot API traffic and
// file downloads.
package httpclient

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

const DefaultUserAgent = "circlebot"

// Config holds HTTP client configuration.
type Config struct {
	RequestTimeout        time.Duration // Whole exchange, body included
	ConnectTimeout        time.Duration
	TLSTimeout            time.Duration
	ResponseHeaderTimeout time.Duration // 0 = RequestTimeout
	IdleTimeout           time.Duration
	KeepAlive             time.Duration

	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int

	// UserAgent is sent on requests that do not set one.
	UserAgent string
}

// DefaultConfig suits a single bot talking to one API host.
func DefaultConfig() Config {
	return Config{
		RequestTimeout:      30 * time.Second,
		ConnectTimeout:      10 * time.Second,
		TLSTimeout:          10 * time.Second,
		IdleTimeout:         90 * time.Second,
		KeepAlive:           30 * time.Second,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		UserAgent:           DefaultUserAgent,
	}
}

// New creates an HTTP client from cfg. Proxies are taken from the usual
// HTTPS_PROXY and NO_PROXY variables.
func New(cfg Config) *http.Client {
	headerTimeout := cfg.ResponseHeaderTimeout
	if headerTimeout == 0 {
		headerTimeout = cfg.RequestTimeout
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: cfg.KeepAlive,
		}).DialContext,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
		TLSHandshakeTimeout:   cfg.TLSTimeout,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       cfg.IdleTimeout,
		ResponseHeaderTimeout: headerTimeout,
		ExpectContinueTimeout: time.Second,
		ForceAttemptHTTP2:     true,
	}

	var rt http.RoundTripper = transport
	if cfg.UserAgent != "" {
		rt = &userAgent{next: transport, value: cfg.UserAgent}
	}
	return &http.Client{Transport: rt, Timeout: cfg.RequestTimeout}
}

type userAgent struct {
	next  *http.Transport
	value string
}

func (u *userAgent) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", u.value)
	}
	return u.next.RoundTrip(req)
}

// CloseIdleConnections is forwarded so http.Client.CloseIdleConnections
// reaches the pool.
func (u *userAgent) CloseIdleConnections() {
	u.next.CloseIdleConnections()
}

// Transport returns the *http.Transport behind a client built by New.
func Transport(c *http.Client) *http.Transport {
	switch rt := c.Transport.(type) {
	case *http.Transport:
		return rt
	case *userAgent:
		return rt.next
	}
	return nil
}
