package policy

import (
	"net/netip"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

const (
	ReasonInvalidFormat   = "invalid format"
	ReasonPrivateAddress  = "private or local address"
	ReasonServiceDomain   = "reputation service domain"
	ReasonPlatformDomain  = "major platform domain"
	reputationServiceRoot = "virustotal.com"
)

// Large platforms whose verdicts are noise rather than signal.
var platformDomains = []string{
	"google.com",
	"youtube.com",
	"facebook.com",
	"instagram.com",
	"twitter.com",
	"x.com",
	"linkedin.com",
	"microsoft.com",
	"apple.com",
	"amazon.com",
	"wikipedia.org",
	"reddit.com",
	"tiktok.com",
	"whatsapp.com",
}

var localSuffixes = []string{".localhost", ".local", ".internal"}

// Validation is the outcome of a policy check. Rejections are values, not errors.
type Validation struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// URLPolicy decides whether a URL may be sent to the reputation store.
type URLPolicy struct {
	denied []string
}

var defaultPolicy = New(nil)

func New(extraDenied []string) *URLPolicy {
	denied := make([]string, 0, len(platformDomains)+len(extraDenied))
	denied = append(denied, platformDomains...)
	for _, d := range extraDenied {
		d = strings.Trim(strings.ToLower(strings.TrimSpace(d)), ".")
		if d != "" {
			denied = append(denied, d)
		}
	}
	return &URLPolicy{denied: denied}
}

// ValidateURLForScanning applies the built-in denylist.
func ValidateURLForScanning(raw string) Validation {
	return defaultPolicy.Validate(raw)
}

func (p *URLPolicy) Validate(raw string) Validation {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return reject(ReasonInvalidFormat)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return reject(ReasonInvalidFormat)
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return reject(ReasonInvalidFormat)
	}

	if isLocalHost(host) {
		return reject(ReasonPrivateAddress)
	}
	if matchesDomain(host, reputationServiceRoot) {
		return reject(ReasonServiceDomain)
	}
	for _, d := range p.denied {
		if matchesDomain(host, d) {
			return reject(ReasonPlatformDomain)
		}
	}
	return Validation{Valid: true}
}

func reject(reason string) Validation {
	return Validation{Valid: false, Reason: reason}
}

func isLocalHost(host string) bool {
	if host == "localhost" {
		return true
	}
	for _, s := range localSuffixes {
		if strings.HasSuffix(host, s) {
			return true
		}
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	return addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsUnspecified()
}

// matchesDomain reports an exact or subdomain match of host against domain.
func matchesDomain(host, domain string) bool {
	if host == domain || strings.HasSuffix(host, "."+domain) {
		return true
	}
	root, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return false
	}
	return root == domain
}
