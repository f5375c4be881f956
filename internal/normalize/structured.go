package normalize

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/MOYARU/vigil/internal/report"
)

// fields is an upstream JSON object decoded one key at a time so that every
// default below is explicit. Unparsable input decodes as an empty object.
type fields map[string]json.RawMessage

func decodeFields(text string) fields {
	var f fields
	if err := json.Unmarshal([]byte(stripFences(text)), &f); err != nil || f == nil {
		return fields{}
	}
	return f
}

// ThreatFromJSON decodes a structured threat assessment.
func ThreatFromJSON(text string) report.ThreatAssessment {
	f := decodeFields(text)
	actions := f.listField("actions", "recommendations")
	if len(actions) == 0 {
		actions = []string{report.DefaultAction}
	}
	return report.ThreatAssessment{
		Score:     f.intField(report.DefaultScore, "score"),
		Verdict:   report.ThreatVerdict(f.verdict(threatVerdicts, string(report.ThreatSuspicious))),
		Narrative: f.stringField(report.DefaultNarrative, "narrative", "analysis"),
		Actions:   actions,
	}
}

// MediaFromJSON decodes a structured media authenticity result.
func MediaFromJSON(text string) report.MediaAuthenticity {
	f := decodeFields(text)
	return report.MediaAuthenticity{
		Verdict:        report.MediaVerdict(f.verdict(mediaVerdicts, string(report.MediaUncertain))),
		Confidence:     f.intField(report.DefaultScore, "confidence"),
		Narrative:      f.stringField(report.DefaultNarrative, "narrative", "analysis"),
		VisualFindings: nonNil(f.listField("visualFindings", "visual_findings")),
		AudioFindings:  nonNil(f.listField("audioFindings", "audio_findings")),
	}
}

// FactCheckFromJSON decodes a structured fact-check. Sources found in the
// object are deduplicated like grounding citations.
func FactCheckFromJSON(text string) report.FactCheck {
	f := decodeFields(text)
	var sources []report.Source
	if raw, ok := f.first("sources"); ok {
		var items []struct {
			Title string `json:"title"`
			URI   string `json:"uri"`
			URL   string `json:"url"`
		}
		if json.Unmarshal(raw, &items) == nil {
			for _, it := range items {
				uri := it.URI
				if uri == "" {
					uri = it.URL
				}
				sources = append(sources, report.Source{Title: it.Title, URI: uri})
			}
		}
	}
	return report.FactCheck{
		Verdict:     report.ClaimVerdict(f.verdict(claimVerdicts, string(report.ClaimUncertain))),
		Explanation: f.stringField(report.DefaultNarrative, "explanation", "narrative"),
		Sources:     MergeSources(sources),
	}
}

func (f fields) first(keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		if raw, ok := f[k]; ok && len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
			return raw, true
		}
	}
	return nil, false
}

func (f fields) verdict(allowed []string, def string) string {
	var s string
	raw, ok := f.first("verdict")
	if !ok || json.Unmarshal(raw, &s) != nil {
		return def
	}
	return matchVerdict(s, allowed, def)
}

// intField accepts JSON numbers and numeric strings, rounding fractions.
func (f fields) intField(def int, keys ...string) int {
	raw, ok := f.first(keys...)
	if !ok {
		return def
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return roundInt(n, def)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(s, "%")), 64); err == nil {
			return roundInt(v, def)
		}
	}
	return def
}

// roundInt returns def for values an int cannot hold.
func roundInt(v float64, def int) int {
	r := math.Round(v)
	if math.IsNaN(r) || r >= float64(math.MaxInt) || r < float64(math.MinInt) {
		return def
	}
	return int(r)
}

func (f fields) stringField(def string, keys ...string) string {
	raw, ok := f.first(keys...)
	if !ok {
		return def
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || strings.TrimSpace(s) == "" {
		return def
	}
	return strings.TrimSpace(s)
}

// listField keeps the non-empty string entries of an array; a bare string is a
// one-element list.
func (f fields) listField(keys ...string) []string {
	raw, ok := f.first(keys...)
	if !ok {
		return nil
	}
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		var s string
		if json.Unmarshal(raw, &s) == nil && strings.TrimSpace(s) != "" {
			return []string{strings.TrimSpace(s)}
		}
		return nil
	}
	var out []string
	for _, it := range items {
		if s, ok := it.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

// stripFences drops a surrounding ``` block and any prose outside the outermost object.
func stripFences(text string) string {
	t := strings.TrimSpace(text)
	if strings.HasPrefix(t, "```") {
		if nl := strings.IndexByte(t, '\n'); nl >= 0 {
			t = t[nl+1:]
		}
		t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	}
	if i, j := strings.IndexByte(t, '{'), strings.LastIndexByte(t, '}'); i >= 0 && j > i {
		t = t[i : j+1]
	}
	return strings.TrimSpace(t)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
