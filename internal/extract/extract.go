package extract

import (
	"net"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// MaxLinks caps how many links Links returns.
const MaxLinks = 50

var textURLRegex = regexp.MustCompile(`(?i)\bhttps?://[^\s<>"'()\[\]{}]+`)

// Links returns the distinct absolute http(s) links in an email or message
// body, in order of appearance. HTML attributes and bare URLs in text are both
// considered; relative references are dropped unless the document sets <base>.
func Links(body string) []string {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return dedupeAndLimitLinks(normalizeAll(nil, textLinks(body)), MaxLinks)
	}
	raw, base := extractData(doc)
	return dedupeAndLimitLinks(normalizeAll(base, raw), MaxLinks)
}

func normalizeAll(base *url.URL, refs []string) []string {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		if u := resolveURL(base, ref); u != "" {
			out = append(out, u)
		}
	}
	return out
}

func textLinks(s string) []string {
	var out []string
	for _, m := range textURLRegex.FindAllString(s, -1) {
		out = append(out, strings.TrimRight(m, ".,;:!?"))
	}
	return out
}

func extractData(n *html.Node) ([]string, *url.URL) {
	var links []string
	var base *url.URL

	var f func(*html.Node)
	f = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			links = append(links, textLinks(n.Data)...)
		case html.ElementNode:
			switch n.Data {
			case "base":
				if base == nil {
					if v, ok := attr(n, "href"); ok {
						if parsed, err := url.Parse(v); err == nil && parsed.IsAbs() {
							base = parsed
						}
					}
				}
			case "a", "area":
				if v, ok := attr(n, "href"); ok {
					links = append(links, v)
				}
			case "img", "iframe":
				if v, ok := attr(n, "src"); ok {
					links = append(links, v)
				}
			case "form":
				if v, ok := attr(n, "action"); ok {
					links = append(links, v)
				}
			case "button", "input":
				if v, ok := attr(n, "formaction"); ok {
					links = append(links, v)
				}
			case "meta":
				httpEquiv, _ := attr(n, "http-equiv")
				content, _ := attr(n, "content")
				if strings.EqualFold(httpEquiv, "refresh") {
					if idx := strings.Index(strings.ToLower(content), "url="); idx != -1 {
						links = append(links, strings.Trim(content[idx+4:], "'\" "))
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)
	return links, base
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

func resolveURL(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	refLower := strings.ToLower(ref)
	if strings.HasPrefix(refLower, "#") ||
		strings.HasPrefix(refLower, "javascript:") ||
		strings.HasPrefix(refLower, "mailto:") ||
		strings.HasPrefix(refLower, "tel:") ||
		strings.HasPrefix(refLower, "data:") {
		return ""
	}

	refURL, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if !refURL.IsAbs() {
		if base == nil {
			return ""
		}
		refURL = base.ResolveReference(refURL)
	}
	normalized, ok := normalizeURL(refURL.String())
	if !ok {
		return ""
	}
	return normalized
}

// normalizeURL lowercases scheme and host, drops default ports and fragments.
// Queries are kept verbatim; reordering them would change the reputation
// identifier.
func normalizeURL(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", false
	}

	port := u.Port()
	switch {
	case u.Scheme == "http" && port == "80":
		u.Host = host
	case u.Scheme == "https" && port == "443":
		u.Host = host
	case port != "":
		u.Host = net.JoinHostPort(host, port)
	default:
		u.Host = host
	}

	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), true
}

func dedupeAndLimitLinks(links []string, limit int) []string {
	if len(links) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(links))
	out := make([]string, 0, len(links))
	for _, link := range links {
		link = strings.TrimSpace(link)
		if link == "" {
			continue
		}
		if _, exists := seen[link]; exists {
			continue
		}
		seen[link] = struct{}{}
		out = append(out, link)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
