package prompt

import (
	"fmt"
	"strings"

	"github.com/MOYARU/vigil/internal/reputation"
)

// maxEmailChars bounds the email body embedded in a prompt.
const maxEmailChars = 20000

// LinkFinding is the outcome of checking one link found in an email.
type LinkFinding struct {
	URL string
	// Rejected holds the URL policy reason when the link was not looked up.
	Rejected string
	Report   *reputation.Report
	Err      string
}

// EmailPrompt asks for a structured phishing assessment of an email.
func EmailPrompt(email string, links []LinkFinding) string {
	body := strings.TrimSpace(email)
	if len(body) > maxEmailChars {
		body = body[:maxEmailChars] + "\n[truncated]"
	}

	var b strings.Builder
	b.WriteString("You are an email security analyst. Decide whether this email is a phishing or scam attempt.\n")
	b.WriteString("Look at the sender, urgency, requests for credentials or payment, and the links.\n\n")
	b.WriteString("Email:\n\"\"\"\n")
	b.WriteString(body)
	b.WriteString("\n\"\"\"\n\n")

	if len(links) > 0 {
		b.WriteString("Links found in the email:\n")
		for _, l := range links {
			switch {
			case l.Rejected != "":
				fmt.Fprintf(&b, "- %s: not checked (%s)\n", l.URL, l.Rejected)
			case l.Err != "":
				fmt.Fprintf(&b, "- %s: lookup failed (%s)\n", l.URL, l.Err)
			case l.Report == nil:
				fmt.Fprintf(&b, "- %s: unknown to the reputation service\n", l.URL)
			default:
				c := l.Report.Counts
				fmt.Fprintf(&b, "- %s: %d malicious, %d suspicious (%s engines flagged it)\n",
					l.URL, c.Malicious, c.Suspicious, Ratio(c))
			}
		}
		b.WriteString("If any link has malicious detections, the verdict must be SUSPICIOUS or MALICIOUS.\n\n")
	}

	b.WriteString("Respond with JSON only: score (0-100, 100 is safe), verdict (SAFE, SUSPICIOUS or MALICIOUS), narrative (markdown), actions (list of short recommendations).\n")
	return b.String()
}

// MediaPrompt asks for a structured authenticity assessment of the attached media.
func MediaPrompt(contentType string) string {
	kind := "media file"
	switch {
	case strings.HasPrefix(contentType, "image/"):
		kind = "image"
	case strings.HasPrefix(contentType, "video/"):
		kind = "video"
	case strings.HasPrefix(contentType, "audio/"):
		kind = "audio recording"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a digital forensics analyst. Determine whether the attached %s is authentic or AI-generated or manipulated.\n", kind)
	b.WriteString("Look for generation artifacts: inconsistent lighting, warped hands or text, unnatural skin, lip-sync drift, robotic prosody, spliced audio.\n")
	b.WriteString("Respond with JSON only: verdict (LIKELY_REAL, LIKELY_FAKE or UNCERTAIN), confidence (0-100), narrative, visualFindings (list), audioFindings (list).\n")
	return b.String()
}

// ThreatSchema is the response schema for structured threat assessments.
var ThreatSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"score":     map[string]any{"type": "INTEGER"},
		"verdict":   map[string]any{"type": "STRING", "enum": []string{"SAFE", "SUSPICIOUS", "MALICIOUS"}},
		"narrative": map[string]any{"type": "STRING"},
		"actions":   map[string]any{"type": "ARRAY", "items": map[string]any{"type": "STRING"}},
	},
	"required": []string{"score", "verdict", "narrative", "actions"},
}

// MediaSchema is the response schema for media authenticity checks.
var MediaSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"verdict":        map[string]any{"type": "STRING", "enum": []string{"LIKELY_REAL", "LIKELY_FAKE", "UNCERTAIN"}},
		"confidence":     map[string]any{"type": "INTEGER"},
		"narrative":      map[string]any{"type": "STRING"},
		"visualFindings": map[string]any{"type": "ARRAY", "items": map[string]any{"type": "STRING"}},
		"audioFindings":  map[string]any{"type": "ARRAY", "items": map[string]any{"type": "STRING"}},
	},
	"required": []string{"verdict", "confidence", "narrative", "visualFindings", "audioFindings"},
}
