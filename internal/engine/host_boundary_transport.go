package engine

import (
	"fmt"
	"net/http"
	"strings"
)

// HostBoundaryTransport blocks requests to hosts other than the configured API hosts,
// so a credential header can only ever reach its own service.
type HostBoundaryTransport struct {
	Base         http.RoundTripper
	AllowedHosts []string
}

func (t *HostBoundaryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	host := strings.ToLower(req.URL.Hostname())
	if host == "" {
		return nil, fmt.Errorf("blocked request: empty host")
	}
	allowed := false
	for _, h := range t.AllowedHosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" && (host == h || strings.HasSuffix(host, "."+h)) {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("blocked request to unexpected host: %s", host)
	}

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}
