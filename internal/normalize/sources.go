package normalize

import (
	"strings"

	"github.com/MOYARU/vigil/internal/report"
)

// MergeSources concatenates the lists in order and keeps the first source seen
// for each URI. Callers pass registry sources ahead of grounding citations.
func MergeSources(lists ...[]report.Source) []report.Source {
	out := []report.Source{}
	seen := make(map[string]struct{})
	for _, list := range lists {
		for _, s := range list {
			uri := strings.TrimSpace(s.URI)
			if uri == "" {
				continue
			}
			if _, ok := seen[uri]; ok {
				continue
			}
			seen[uri] = struct{}{}
			title := strings.TrimSpace(s.Title)
			if title == "" {
				title = uri
			}
			out = append(out, report.Source{Title: title, URI: uri})
		}
	}
	return out
}
