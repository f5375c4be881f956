package output

import (
	"fmt"
	"html/template"
	"os"
	"time"

	"github.com/MOYARU/vigil/internal/app/ui"
	msges "github.com/MOYARU/vigil/internal/messages"
	"github.com/MOYARU/vigil/internal/report"
)

type HTMLSection struct {
	Title string
	Items []string
}

// HTML report
type HTMLReportData struct {
	Kind       string
	Target     string
	ScanTime   string
	Duration   string
	Verdict    string
	VerdictCSS string
	Metric     string // score or confidence
	Narrative  string
	ReportLink string
	Reputation *report.Counts
	Sections   []HTMLSection
	Sources    []report.Source

	UITitle    string
	UITarget   string
	UIScanTime string
	UIDuration string
	UISources  string
}

// SaveHTMLReport renders one assessment result as a standalone HTML page and
// returns the file name. result must be one of the report result types.
func SaveHTMLReport(kind, target string, result any, startTime, endTime time.Time) (string, error) {
	data := HTMLReportData{
		Kind:       kind,
		Target:     report.SanitizeTarget(target),
		ScanTime:   startTime.Format("2006-01-02 15:04:05"),
		Duration:   endTime.Sub(startTime).Round(time.Millisecond).String(),
		UITitle:    msges.GetUIMessage("HTMLReportTitle"),
		UITarget:   msges.GetUIMessage("HTMLTarget"),
		UIScanTime: msges.GetUIMessage("HTMLScanTime"),
		UIDuration: msges.GetUIMessage("HTMLDuration"),
		UISources:  msges.GetUIMessage("SourcesLabel"),
	}

	switch r := result.(type) {
	case report.ThreatAssessment:
		data.Verdict = string(r.Verdict)
		data.Metric = msges.GetUIMessage("ScoreLabel") + " " + formatPercent(r.Score)
		data.Narrative = r.Narrative
		data.ReportLink = r.ReportLink
		data.Reputation = r.Reputation
		data.Sections = []HTMLSection{{Title: msges.GetUIMessage("ActionsLabel"), Items: r.Actions}}
	case report.FactCheck:
		data.Verdict = string(r.Verdict)
		data.Narrative = r.Explanation
		data.Sources = r.Sources
	case report.MediaAuthenticity:
		data.Verdict = string(r.Verdict)
		data.Metric = msges.GetUIMessage("ConfidenceLabel") + " " + formatPercent(r.Confidence)
		data.Narrative = r.Narrative
		data.Sections = []HTMLSection{
			{Title: msges.GetUIMessage("VisualFindingsLabel"), Items: r.VisualFindings},
			{Title: msges.GetUIMessage("AudioFindingsLabel"), Items: r.AudioFindings},
		}
	default:
		return "", fmt.Errorf("unsupported result type %T", result)
	}
	data.VerdictCSS = verdictClass(data.Verdict)

	t, err := template.New("report").Parse(htmlTemplate)
	if err != nil {
		return "", err
	}

	filename := fmt.Sprintf("vigil_report_%s_%s.html", kind, time.Now().Format("20060102_150405"))
	f, err := os.Create(filename)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := t.Execute(f, data); err != nil {
		return "", err
	}
	fmt.Println(msges.GetUIMessage("HTMLReportSaved", filename))
	return filename, nil
}

func verdictClass(verdict string) string {
	switch verdictColor(verdict) {
	case ui.ColorSafe:
		return "good"
	case ui.ColorSuspicious:
		return "warn"
	case ui.ColorMalicious:
		return "bad"
	default:
		return "neutral"
	}
}

const htmlTemplate = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.UITitle}} - {{.Target}}</title>
    <style>
        :root {
            --bg: #ffffff;
            --text: #16324d;
            --muted: #5b738c;
            --line: #d9e1ea;
            --good: #1f9d55;
            --warn: #e6a900;
            --bad: #d64545;
            --neutral: #6f7f8f;
            --radius-lg: 16px;
            --shadow-1: 0 8px 20px rgba(16, 53, 88, 0.08);
        }
        * { box-sizing: border-box; }
        body {
            font-family: "Segoe UI", "Inter", "Helvetica Neue", Arial, sans-serif;
            line-height: 1.6;
            color: var(--text);
            margin: 0;
            padding: 28px 16px 40px;
            background: var(--bg);
        }
        .page { max-width: 960px; margin: 0 auto; }
        h1, h2, h3 { margin: 0; color: #0b3d6e; }
        .surface {
            border: 1px solid var(--line);
            border-radius: var(--radius-lg);
            box-shadow: var(--shadow-1);
            padding: 24px;
            margin-bottom: 20px;
        }
        .meta { color: var(--muted); margin-top: 10px; }
        .verdict {
            display: inline-block;
            padding: 6px 14px;
            border-radius: 999px;
            color: #fff;
            font-weight: 700;
            letter-spacing: .03em;
        }
        .good { background: var(--good); }
        .warn { background: var(--warn); color: #1d1d1d; }
        .bad { background: var(--bad); }
        .neutral { background: var(--neutral); }
        .metric { margin-left: 12px; font-weight: 600; }
        .narrative { white-space: pre-wrap; }
        ul { padding-left: 20px; }
        a { color: #1d6eea; word-break: break-all; }
    </style>
</head>
<body>
<div class="page">
    <div class="surface">
        <h1>{{.UITitle}}</h1>
        <div class="meta">
            <div>{{.UITarget}}: {{.Target}}</div>
            <div>{{.UIScanTime}}: {{.ScanTime}}</div>
            <div>{{.UIDuration}}: {{.Duration}}</div>
        </div>
    </div>
    <div class="surface">
        <span class="verdict {{.VerdictCSS}}">{{.Verdict}}</span>
        {{if .Metric}}<span class="metric">{{.Metric}}</span>{{end}}
        {{if .Reputation}}<p class="meta">{{.Reputation.Detections}}/{{.Reputation.Total}} engines flagged this artifact (malicious {{.Reputation.Malicious}}, suspicious {{.Reputation.Suspicious}}).</p>{{end}}
        {{if .ReportLink}}<p class="meta"><a href="{{.ReportLink}}">{{.ReportLink}}</a></p>{{end}}
        <p class="narrative">{{.Narrative}}</p>
    </div>
    {{range .Sections}}{{if .Items}}
    <div class="surface">
        <h3>{{.Title}}</h3>
        <ul>{{range .Items}}<li>{{.}}</li>{{end}}</ul>
    </div>
    {{end}}{{end}}
    {{if .Sources}}
    <div class="surface">
        <h3>{{.UISources}}</h3>
        <ul>{{range .Sources}}<li><a href="{{.URI}}" rel="noopener noreferrer">{{.Title}}</a></li>{{end}}</ul>
    </div>
    {{end}}
</div>
</body>
</html>
`
