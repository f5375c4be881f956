package normalize

import "github.com/MOYARU/vigil/internal/report"

// ApplyDetectionFloor raises a threat verdict to match engine detections:
// any malicious detection means at least SUSPICIOUS, more than threshold means
// MALICIOUS. It never lowers a verdict.
func ApplyDetectionFloor(t report.ThreatAssessment, c report.Counts, threshold int) report.ThreatAssessment {
	switch {
	case c.Malicious > threshold:
		t.Verdict = report.ThreatMalicious
	case c.Malicious > 0 && t.Verdict == report.ThreatSafe:
		t.Verdict = report.ThreatSuspicious
	}
	return t
}
