package engine

import (
	"crypto/tls"
	"net/http"
	"time"
)

const defaultClientTimeout = 60 * time.Second

// NewHTTPClient returns the client shared by the upstream API adapters.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          32,
			MaxIdleConnsPerHost:   8,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
		// API endpoints never redirect legitimately; following one could leak the credential header.
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Wrap layers the budget, host boundary and metrics transports over c.
func Wrap(c *http.Client, budget int64, allowedHosts []string, metrics *MetricsTransport) *http.Client {
	base := c.Transport
	if len(allowedHosts) > 0 {
		base = &HostBoundaryTransport{Base: base, AllowedHosts: allowedHosts}
	}
	if budget > 0 {
		base = &RequestBudgetTransport{Base: base, Max: budget}
	}
	if metrics != nil {
		metrics.Base = base
		base = metrics
	}
	out := *c
	out.Transport = base
	return &out
}
