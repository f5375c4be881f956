package prompt

import (
	"strings"
	"testing"

	"github.com/MOYARU/vigil/internal/claims"
	"github.com/MOYARU/vigil/internal/report"
	"github.com/MOYARU/vigil/internal/reputation"
)

func TestThreatPromptWithDetections(t *testing.T) {
	rep := reputation.Report{
		Counts: report.Counts{Malicious: 7, Suspicious: 1, Harmless: 50, Undetected: 12},
		Engines: map[string]reputation.EngineFinding{
			"Kaspersky": {Detected: true, Label: "Trojan.Win32.Agent"},
			"ESET":      {Detected: true, Label: "Win32/Agent"},
			"Avira":     {Detected: false, Label: "undetected"},
		},
	}
	got := ThreatPrompt(ThreatInput{Kind: reputation.KindFile, Name: "invoice.exe", Size: 2048, Report: &rep})

	for _, want := range []string{
		"File name: invoice.exe",
		"- Malicious: 7",
		"- Undetected: 12",
		"Detection ratio: 8/70",
		"- ESET: Win32/Agent",
		"- Kaspersky: Trojan.Win32.Agent",
		"more than 5 engines",
		"Verdict: <SAFE | SUSPICIOUS | MALICIOUS>",
		"Recommendations:",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("prompt missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Avira") {
		t.Fatalf("undetected engines must not be listed:\n%s", got)
	}
	if strings.Index(got, "- ESET") > strings.Index(got, "- Kaspersky") {
		t.Fatalf("engines must be listed in name order")
	}
}

func TestThreatPromptCleanReportOmitsEngines(t *testing.T) {
	rep := reputation.Report{
		Counts:  report.Counts{Harmless: 60, Undetected: 10},
		Engines: map[string]reputation.EngineFinding{"ESET": {Label: "clean"}},
	}
	got := ThreatPrompt(ThreatInput{Kind: reputation.KindURL, URL: "https://news.example.com/story", Report: &rep, Threshold: 3})
	if strings.Contains(got, "Engines that flagged it") {
		t.Fatalf("clean report must not list engines:\n%s", got)
	}
	if !strings.Contains(got, "URL: https://news.example.com/story") || !strings.Contains(got, "more than 3 engines") {
		t.Fatalf("unexpected prompt:\n%s", got)
	}
}

func TestThreatPromptWithoutReportKeepsHeaderOrder(t *testing.T) {
	got := ThreatPrompt(ThreatInput{Kind: reputation.KindFile, Name: "a.txt"})
	if !strings.Contains(got, "none available") {
		t.Fatalf("missing no-report note:\n%s", got)
	}
	if strings.Contains(got, "Rules:") {
		t.Fatalf("detection rules need a report:\n%s", got)
	}
	last := -1
	for _, h := range []string{"Verdict:", "Score:", "Analysis:", "Recommendations:"} {
		i := strings.Index(got, h)
		if i <= last {
			t.Fatalf("header %q out of order:\n%s", h, got)
		}
		last = i
	}
}

func TestFactCheckPrompt(t *testing.T) {
	got := FactCheckPrompt("  The moon is made of cheese ", []claims.Review{
		{Claim: "Moon is cheese", Publisher: "Snopes", Rating: "False", URL: "https://snopes.example/moon"},
		{Claim: "Cheese moon", Rating: "Pants on fire", URL: "https://pf.example/moon"},
	})
	for _, want := range []string{
		`Claim: "The moon is made of cheese"`,
		`Snopes rated "Moon is cheese" as "False" (https://snopes.example/moon)`,
		"Unknown publisher rated",
		"Verdict: <TRUE | FALSE | UNCERTAIN>",
		"Explanation:",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("prompt missing %q:\n%s", want, got)
		}
	}

	bare := FactCheckPrompt("x", nil)
	if strings.Contains(bare, "Published fact-checks") {
		t.Fatalf("no reviews should render no review block")
	}
}

func TestEmailPromptLinkStates(t *testing.T) {
	bad := reputation.Report{Counts: report.Counts{Malicious: 4, Harmless: 6}}
	got := EmailPrompt("Please verify your account", []LinkFinding{
		{URL: "http://10.0.0.5/", Rejected: "private or local address"},
		{URL: "https://evil.example/login", Report: &bad},
		{URL: "https://new.example/", Report: nil},
		{URL: "https://flaky.example/", Err: "transient failure"},
	})
	for _, want := range []string{
		"http://10.0.0.5/: not checked (private or local address)",
		"https://evil.example/login: 4 malicious, 0 suspicious (4/10 engines flagged it)",
		"https://new.example/: unknown to the reputation service",
		"https://flaky.example/: lookup failed (transient failure)",
		"Respond with JSON only",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("prompt missing %q:\n%s", want, got)
		}
	}
}

func TestMediaPromptKind(t *testing.T) {
	if got := MediaPrompt("video/mp4"); !strings.Contains(got, "attached video") {
		t.Fatalf("unexpected prompt: %s", got)
	}
	if got := MediaPrompt("application/octet-stream"); !strings.Contains(got, "attached media file") {
		t.Fatalf("unexpected prompt: %s", got)
	}
}
