package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/MOYARU/vigil/internal/report"
)

// Headers the prompt layout mandates. The Context Builder emits the same names.
const (
	HeaderVerdict         = "Verdict"
	HeaderScore           = "Score"
	HeaderAnalysis        = "Analysis"
	HeaderExplanation     = "Explanation"
	HeaderRecommendations = "Recommendations"
	HeaderSources         = "Sources"
)

var (
	reHeader  = regexp.MustCompile(`(?im)^[ \t>#*_]*(verdict|score|analysis|explanation|recommendations|sources)[ \t*_]*:[ \t*_]*`)
	reVerdict = regexp.MustCompile(`(?im)^[ \t>#*_]*verdict[ \t*_]*:[ \t*_]*([a-z][a-z _-]*)`)
	reScore   = regexp.MustCompile(`(?im)^[ \t>#*_]*score[ \t*_]*:[ \t*_]*(-?\d+)`)
	reBullet  = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)
)

var (
	threatVerdicts = []string{string(report.ThreatMalicious), string(report.ThreatSuspicious), string(report.ThreatSafe)}
	claimVerdicts  = []string{string(report.ClaimUncertain), string(report.ClaimFalse), string(report.ClaimTrue)}
	mediaVerdicts  = []string{string(report.MediaLikelyReal), string(report.MediaLikelyFake), string(report.MediaUncertain)}
)

type section struct {
	name       string
	start, end int // body bounds within the text
}

// ThreatFromText parses the Verdict/Score/Analysis/Recommendations layout.
func ThreatFromText(text string) report.ThreatAssessment {
	secs := sections(text)
	return report.ThreatAssessment{
		Score:     scoreFromText(text),
		Verdict:   report.ThreatVerdict(verdictFromText(text, threatVerdicts, string(report.ThreatSuspicious))),
		Narrative: narrative(text, secs),
		Actions:   actions(text, secs),
	}
}

// FactCheckFromText parses the Verdict/Explanation layout. Sources are merged
// by the caller from grounding metadata, never from the text body.
func FactCheckFromText(text string, sources []report.Source) report.FactCheck {
	if sources == nil {
		sources = []report.Source{}
	}
	return report.FactCheck{
		Verdict:     report.ClaimVerdict(verdictFromText(text, claimVerdicts, string(report.ClaimUncertain))),
		Explanation: narrative(text, sections(text)),
		Sources:     sources,
	}
}

// sections locates the first occurrence of each recognized header; each body
// runs to the next one. A repeated header belongs to the body it appears in.
// Explanation and Analysis name the same section.
func sections(text string) []section {
	var out []section
	seen := make(map[string]bool)
	for _, loc := range reHeader.FindAllStringSubmatchIndex(text, -1) {
		name := strings.ToLower(text[loc[2]:loc[3]])
		key := name
		if key == "explanation" {
			key = "analysis"
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		if n := len(out); n > 0 {
			out[n-1].end = loc[0]
		}
		out = append(out, section{name: name, start: loc[1], end: len(text)})
	}
	return out
}

func find(secs []section, names ...string) (section, bool) {
	for _, s := range secs {
		for _, n := range names {
			if s.name == strings.ToLower(n) {
				return s, true
			}
		}
	}
	return section{}, false
}

func verdictFromText(text string, allowed []string, def string) string {
	m := reVerdict.FindStringSubmatch(text)
	if m == nil {
		return def
	}
	return matchVerdict(m[1], allowed, def)
}

// matchVerdict maps a free-form token onto the closed set, case-insensitively.
func matchVerdict(token string, allowed []string, def string) string {
	t := strings.ToUpper(strings.TrimSpace(token))
	t = strings.NewReplacer(" ", "_", "-", "_").Replace(t)
	t = strings.Trim(t, "_*.")
	if t == "" {
		return def
	}
	for _, v := range allowed {
		if t == v || strings.HasPrefix(t, v+"_") {
			return v
		}
	}
	return def
}

// scoreFromText returns the first Score line. Values are not clamped.
func scoreFromText(text string) int {
	m := reScore.FindStringSubmatch(text)
	if m == nil {
		return report.DefaultScore
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return report.DefaultScore
	}
	return n
}

func narrative(text string, secs []section) string {
	if s, ok := find(secs, HeaderAnalysis, HeaderExplanation); ok {
		if body := strings.TrimSpace(text[s.start:s.end]); body != "" {
			return body
		}
		return report.DefaultNarrative
	}
	// No narrative header: keep whatever is not a Verdict or Score line.
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		if reVerdict.MatchString(line) || reScore.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}
	if body := strings.TrimSpace(strings.Join(kept, "\n")); body != "" {
		return body
	}
	return report.DefaultNarrative
}

func actions(text string, secs []section) []string {
	s, ok := find(secs, HeaderRecommendations)
	if !ok {
		return []string{report.DefaultAction}
	}
	out := splitList(text[s.start:s.end])
	if len(out) == 0 {
		return []string{report.DefaultAction}
	}
	return out
}

func splitList(block string) []string {
	var out []string
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(reBullet.ReplaceAllString(line, ""))
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}
