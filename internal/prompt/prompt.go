package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/MOYARU/vigil/internal/normalize"
	"github.com/MOYARU/vigil/internal/report"
	"github.com/MOYARU/vigil/internal/reputation"
)

// DefaultMaliciousThreshold is the detection count above which the model is
// told to answer MALICIOUS.
const DefaultMaliciousThreshold = 5

// maxListedEngines bounds the per-engine lines rendered into a prompt.
const maxListedEngines = 20

// ThreatInput describes one file or URL under assessment.
type ThreatInput struct {
	Kind reputation.Kind

	// File artifacts
	Name        string
	Size        int64
	ContentType string
	Fingerprint string

	// URL artifacts
	URL string

	// Report is nil when the store had no verdict and nothing was submitted.
	Report    *reputation.Report
	Threshold int
}

// ThreatPrompt renders the free-text threat assessment request. The header
// layout at the end is what normalize.ThreatFromText parses.
func ThreatPrompt(in ThreatInput) string {
	threshold := in.Threshold
	if threshold <= 0 {
		threshold = DefaultMaliciousThreshold
	}

	var b strings.Builder
	b.WriteString("You are a security analyst. Assess whether the following artifact is safe.\n\n")
	switch in.Kind {
	case reputation.KindURL:
		fmt.Fprintf(&b, "URL: %s\n", in.URL)
	default:
		fmt.Fprintf(&b, "File name: %s\n", in.Name)
		fmt.Fprintf(&b, "File size: %d bytes\n", in.Size)
		if in.ContentType != "" {
			fmt.Fprintf(&b, "File type: %s\n", in.ContentType)
		}
		if in.Fingerprint != "" {
			fmt.Fprintf(&b, "SHA-256: %s\n", in.Fingerprint)
		}
	}
	b.WriteString("\n")

	if in.Report == nil {
		b.WriteString("Reputation data: none available. Base the verdict on the artifact metadata alone and say so.\n\n")
	} else {
		b.WriteString(ReputationSummary(*in.Report))
		b.WriteString("\n")
		fmt.Fprintf(&b, "Rules:\n")
		fmt.Fprintf(&b, "- If any engine reports the artifact as malicious, the verdict must be SUSPICIOUS or MALICIOUS.\n")
		fmt.Fprintf(&b, "- If more than %d engines report it as malicious, the verdict must be MALICIOUS.\n\n", threshold)
	}

	writeLayout(&b,
		normalize.HeaderVerdict+": <SAFE | SUSPICIOUS | MALICIOUS>",
		normalize.HeaderScore+": <integer 0-100, where 100 is completely safe>",
		normalize.HeaderAnalysis+":\n<markdown narrative explaining the verdict>",
		normalize.HeaderRecommendations+":\n- <one action per line>",
	)
	return b.String()
}

// ReputationSummary renders counts, the detection ratio and, when engines
// flagged the resource, their labels.
func ReputationSummary(r reputation.Report) string {
	c := r.Counts
	var b strings.Builder
	b.WriteString("Reputation report:\n")
	fmt.Fprintf(&b, "- Malicious: %d\n", c.Malicious)
	fmt.Fprintf(&b, "- Suspicious: %d\n", c.Suspicious)
	fmt.Fprintf(&b, "- Harmless: %d\n", c.Harmless)
	fmt.Fprintf(&b, "- Undetected: %d\n", c.Undetected)
	fmt.Fprintf(&b, "- Detection ratio: %s\n", Ratio(c))
	if !r.ScanTimestamp.IsZero() {
		fmt.Fprintf(&b, "- Last analysed: %s\n", r.ScanTimestamp.Format("2006-01-02 15:04 MST"))
	}

	if c.Detections() > 0 {
		detected := r.DetectedEngines()
		names := make([]string, 0, len(detected))
		for name := range detected {
			names = append(names, name)
		}
		sort.Strings(names)
		if len(names) > 0 {
			b.WriteString("Engines that flagged it:\n")
		}
		for i, name := range names {
			if i == maxListedEngines {
				fmt.Fprintf(&b, "- ... and %d more\n", len(names)-maxListedEngines)
				break
			}
			fmt.Fprintf(&b, "- %s: %s\n", name, detected[name].Label)
		}
	}
	return b.String()
}

// Ratio is "detections/total", e.g. "3/70".
func Ratio(c report.Counts) string {
	return fmt.Sprintf("%d/%d", c.Detections(), c.Total())
}

func writeLayout(b *strings.Builder, lines ...string) {
	b.WriteString("Answer in plain text using exactly these section headers, in this order, each at the start of a line:\n\n")
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString("\n")
	}
}
