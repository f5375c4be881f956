package report

import (
	"net/url"
	"regexp"
	"strings"
	"sync"
)

var (
	reBearer    = regexp.MustCompile(`(?i)\b(bearer\s+)([a-z0-9\-\._~\+\/]+=*)`)
	reApiKeyKV  = regexp.MustCompile(`(?i)\b(x-apikey|x-goog-api-key|api[_-]?key|key|access[_-]?token|token|secret|authorization)\s*[:=]\s*([^\s,;&"]+)`)
	reLongToken = regexp.MustCompile(`\b[a-zA-Z0-9_\-]{40,}\b`)
	reHexDigest = regexp.MustCompile(`^[a-fA-F0-9]+$`)
	customMu    sync.RWMutex
	customRes   []*regexp.Regexp
)

// SetRedactionPatterns installs extra redaction regexes from configuration.
// Invalid patterns are skipped.
func SetRedactionPatterns(patterns []string) {
	var res []*regexp.Regexp
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err == nil {
			res = append(res, re)
		}
	}
	customMu.Lock()
	customRes = res
	customMu.Unlock()
}

func SanitizeText(s string) string {
	out := s
	out = reBearer.ReplaceAllString(out, "${1}<redacted>")
	out = reApiKeyKV.ReplaceAllString(out, "${1}=<redacted>")
	out = reLongToken.ReplaceAllStringFunc(out, func(tok string) string {
		// fingerprints are content digests, not secrets
		if reHexDigest.MatchString(tok) {
			return tok
		}
		return tok[:4] + "...<redacted>..." + tok[len(tok)-4:]
	})
	customMu.RLock()
	defer customMu.RUnlock()
	for _, re := range customRes {
		out = re.ReplaceAllString(out, "<redacted>")
	}
	return out
}

func SanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return SanitizeText(raw)
	}

	q := u.Query()
	for k := range q {
		kl := strings.ToLower(k)
		if strings.Contains(kl, "token") ||
			strings.Contains(kl, "key") ||
			strings.Contains(kl, "secret") ||
			strings.Contains(kl, "auth") ||
			strings.Contains(kl, "session") ||
			strings.Contains(kl, "pass") {
			q.Set(k, "<redacted>")
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// SanitizeTarget redacts a URL target through SanitizeURL and anything else,
// such as a claim or file name, through SanitizeText.
func SanitizeTarget(target string) string {
	if strings.Contains(target, "://") {
		return SanitizeURL(target)
	}
	return SanitizeText(target)
}
