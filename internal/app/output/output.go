package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/MOYARU/vigil/internal/app/ui"
	"github.com/MOYARU/vigil/internal/engine"
	"github.com/MOYARU/vigil/internal/failure"
	msges "github.com/MOYARU/vigil/internal/messages"
	"github.com/MOYARU/vigil/internal/report"
)

var progressMu sync.Mutex

// PrintPollProgress redraws the polling bar on the same line.
func PrintPollProgress(elapsed, budget time.Duration) {
	progressMu.Lock()
	defer progressMu.Unlock()

	width := 30
	filled := width
	if budget > 0 {
		filled = int(float64(width) * (float64(elapsed) / float64(budget)))
	}
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	bar := strings.Repeat("#", filled) + strings.Repeat("-", width-filled)
	fmt.Print(msges.GetUIMessage("PollProgress", bar, elapsed.Round(time.Second), budget))
}

func verdictColor(verdict string) string {
	switch verdict {
	case string(report.ThreatSafe), string(report.ClaimTrue), string(report.MediaLikelyReal):
		return ui.ColorSafe
	case string(report.ThreatSuspicious):
		return ui.ColorSuspicious
	case string(report.ThreatMalicious), string(report.ClaimFalse), string(report.MediaLikelyFake):
		return ui.ColorMalicious
	default:
		return ui.ColorInfo
	}
}

// PrintThreat prints a threat assessment with colors.
func PrintThreat(t report.ThreatAssessment) {
	fmt.Printf("\n%s%s%s\n", ui.ColorWhite, msges.GetUIMessage("ThreatTitle"), ui.ColorReset)
	fmt.Printf("%s[%s]%s %s: %s\n", verdictColor(string(t.Verdict)), t.Verdict, ui.ColorReset,
		msges.GetUIMessage("ScoreLabel"), formatPercent(t.Score))
	if t.Reputation != nil {
		fmt.Printf("%s - %s: %d/%d (malicious %d, suspicious %d)%s\n", ui.ColorGray, msges.GetUIMessage("DetectionsLabel"),
			t.Reputation.Detections(), t.Reputation.Total(), t.Reputation.Malicious, t.Reputation.Suspicious, ui.ColorReset)
	}
	if t.ReportLink != "" {
		fmt.Printf("%s - %s: %s%s\n", ui.ColorGray, msges.GetUIMessage("ReportLinkLabel"), t.ReportLink, ui.ColorReset)
	}
	fmt.Printf("\n%s\n", t.Narrative)
	printList(msges.GetUIMessage("ActionsLabel"), t.Actions)
}

// PrintFactCheck prints a fact-check with its sources.
func PrintFactCheck(f report.FactCheck) {
	fmt.Printf("\n%s%s%s\n", ui.ColorWhite, msges.GetUIMessage("FactCheckTitle"), ui.ColorReset)
	fmt.Printf("%s[%s]%s\n", verdictColor(string(f.Verdict)), f.Verdict, ui.ColorReset)
	fmt.Printf("\n%s\n", f.Explanation)

	fmt.Printf("\n%s%s:%s\n", ui.ColorWhite, msges.GetUIMessage("SourcesLabel"), ui.ColorReset)
	if len(f.Sources) == 0 {
		fmt.Printf("%s - %s%s\n", ui.ColorGray, msges.GetUIMessage("NoSources"), ui.ColorReset)
		return
	}
	for _, s := range f.Sources {
		fmt.Printf("%s - %s%s\n", ui.ColorGray, s.Title, ui.ColorReset)
		fmt.Printf("%s   %s%s\n", ui.ColorGray, s.URI, ui.ColorReset)
	}
}

// PrintMedia prints a media authenticity result.
func PrintMedia(m report.MediaAuthenticity) {
	fmt.Printf("\n%s%s%s\n", ui.ColorWhite, msges.GetUIMessage("MediaTitle"), ui.ColorReset)
	fmt.Printf("%s[%s]%s %s: %s\n", verdictColor(string(m.Verdict)), m.Verdict, ui.ColorReset,
		msges.GetUIMessage("ConfidenceLabel"), formatPercent(m.Confidence))
	fmt.Printf("\n%s\n", m.Narrative)
	printList(msges.GetUIMessage("VisualFindingsLabel"), m.VisualFindings)
	printList(msges.GetUIMessage("AudioFindingsLabel"), m.AudioFindings)
}

func printList(label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Printf("\n%s%s:%s\n", ui.ColorWhite, label, ui.ColorReset)
	for _, it := range items {
		fmt.Printf("%s - %s%s\n", ui.ColorGray, it, ui.ColorReset)
	}
}

// formatPercent clamps for display and notes the raw value when it was out of range.
func formatPercent(v int) string {
	c := report.ClampPercent(v)
	if c == v {
		return fmt.Sprintf("%d/100", v)
	}
	return fmt.Sprintf("%d/100 %s", c, msges.GetUIMessage("ScoreDisplayClamped", v))
}

// FailureID maps an error to its message id.
func FailureID(err error) string {
	switch {
	case errors.Is(err, failure.ErrInputRead):
		return "INPUT_READ"
	case errors.Is(err, failure.ErrPolicyRejected):
		return "POLICY_REJECTED"
	case errors.Is(err, failure.ErrTimedOut):
		return "TIMED_OUT"
	case errors.Is(err, failure.ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, failure.ErrQuotaExceeded):
		return "QUOTA_EXCEEDED"
	case errors.Is(err, failure.ErrSubmissionDeclined):
		return "SUBMISSION_DECLINED"
	case errors.Is(err, engine.ErrRequestBudgetExceeded):
		return "BUDGET_EXCEEDED"
	case errors.Is(err, failure.ErrTransient):
		return "TRANSIENT"
	default:
		return ""
	}
}

// PrintFailure explains err with its title and suggested fix.
func PrintFailure(err error) {
	msg := msges.GetMessage(FailureID(err))
	detail := failure.ReasonOf(err)
	if detail == "" {
		detail = err.Error()
	}
	fmt.Printf("\n%s[!] %s%s\n", ui.ColorRed, msg.Title, ui.ColorReset)
	fmt.Printf("%s - %s%s\n", ui.ColorGray, report.SanitizeText(fmt.Sprintf(msg.Message, detail)), ui.ColorReset)
	fmt.Printf("%s - %s%s\n", ui.ColorGray, msg.Fix, ui.ColorReset)
}

// PrintRequestStats prints the metrics transport totals.
func PrintRequestStats(count int64, total time.Duration) {
	fmt.Printf("%s%s%s\n", ui.ColorGray, msges.GetUIMessage("RequestStats", count, total.Round(time.Millisecond)), ui.ColorReset)
}

// SaveJSONReport writes result to vigil_report_<kind>_<target>_<time>.json in
// the working directory and returns the file name.
func SaveJSONReport(kind, target string, result any, startTime, endTime time.Time) (string, error) {
	type JSONReport struct {
		Kind      string    `json:"kind"`
		Target    string    `json:"target"`
		StartTime time.Time `json:"start_time"`
		EndTime   time.Time `json:"end_time"`
		Result    any       `json:"result"`
	}

	reportData := JSONReport{
		Kind:      kind,
		Target:    report.SanitizeTarget(target),
		StartTime: startTime,
		EndTime:   endTime,
		Result:    result,
	}

	filename := fmt.Sprintf("vigil_report_%s_%s_%s.json", kind, sanitizeFilePart(reportData.Target), time.Now().Format("20060102_150405"))

	file, err := os.Create(filename)
	if err != nil {
		return "", err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(reportData); err != nil {
		return "", err
	}

	fmt.Printf("\n%s\n", msges.GetUIMessage("JSONReportSaved", filename))
	return filename, nil
}

func sanitizeFilePart(target string) string {
	s := strings.ReplaceAll(target, "://", "_")
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
	if len(s) > 60 {
		s = s[:60]
	}
	if s == "" {
		s = "input"
	}
	return s
}
