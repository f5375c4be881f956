package report

type ThreatVerdict string
type ClaimVerdict string
type MediaVerdict string

const (
	ThreatSafe       ThreatVerdict = "SAFE"
	ThreatSuspicious ThreatVerdict = "SUSPICIOUS"
	ThreatMalicious  ThreatVerdict = "MALICIOUS"

	ClaimTrue      ClaimVerdict = "TRUE"
	ClaimFalse     ClaimVerdict = "FALSE"
	ClaimUncertain ClaimVerdict = "UNCERTAIN"

	MediaLikelyReal MediaVerdict = "LIKELY_REAL"
	MediaLikelyFake MediaVerdict = "LIKELY_FAKE"
	MediaUncertain  MediaVerdict = "UNCERTAIN"
)

const (
	DefaultScore     = 50
	DefaultNarrative = "Analysis unavailable."
	DefaultAction    = "Proceed with caution."
)

// Source is a cited reference, unique by URI within a result.
type Source struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// Counts is the per-category engine tally of a reputation report.
// All four categories are always present.
type Counts struct {
	Malicious  int `json:"malicious"`
	Suspicious int `json:"suspicious"`
	Harmless   int `json:"harmless"`
	Undetected int `json:"undetected"`
}

func (c Counts) Total() int {
	return c.Malicious + c.Suspicious + c.Harmless + c.Undetected
}

// Detections is the number of engines flagging the resource.
func (c Counts) Detections() int {
	return c.Malicious + c.Suspicious
}

type FactCheck struct {
	Verdict     ClaimVerdict `json:"verdict"`
	Explanation string       `json:"explanation"`
	Sources     []Source     `json:"sources"`
}

type ThreatAssessment struct {
	Score      int           `json:"score"`
	Verdict    ThreatVerdict `json:"verdict"`
	Narrative  string        `json:"narrative"`
	Actions    []string      `json:"actions"`
	Reputation *Counts       `json:"reputationCounts,omitempty"`
	ReportLink string        `json:"reportLink,omitempty"`
}

type MediaAuthenticity struct {
	Verdict        MediaVerdict `json:"verdict"`
	Confidence     int          `json:"confidence"`
	Narrative      string       `json:"narrative"`
	VisualFindings []string     `json:"visualFindings"`
	AudioFindings  []string     `json:"audioFindings"`
}

// ClampPercent bounds v to [0,100] for display. Parsed scores are not clamped.
func ClampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
