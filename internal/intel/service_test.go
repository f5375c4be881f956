package intel

import (
	"context"
	"errors"
	"io"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MOYARU/vigil/internal/analysis"
	"github.com/MOYARU/vigil/internal/claims"
	"github.com/MOYARU/vigil/internal/failure"
	"github.com/MOYARU/vigil/internal/fingerprint"
	"github.com/MOYARU/vigil/internal/genai"
	"github.com/MOYARU/vigil/internal/report"
	"github.com/MOYARU/vigil/internal/reputation"
)

const threatAnswer = "Verdict: SAFE\nScore: 90\nAnalysis:\nLooks fine.\nRecommendations:\n- Keep it"

type fakeStore struct {
	mu        sync.Mutex
	reports   map[string]reputation.Report
	fetchErr  error
	queued    int // FetchReport answers with an unanalysed report this many times
	analysis  reputation.Report
	fetched   []string
	submitted []string
	polls     int
}

func (s *fakeStore) FetchReport(_ context.Context, id string, _ reputation.Kind) (reputation.Report, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetched = append(s.fetched, id)
	if s.fetchErr != nil {
		return reputation.Report{}, false, s.fetchErr
	}
	if s.queued > 0 {
		s.queued--
		return reputation.Report{ResourceID: id}, true, nil
	}
	r, ok := s.reports[id]
	return r, ok, nil
}

func (s *fakeStore) SubmitFile(_ context.Context, name string, r io.Reader) (string, error) {
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitted = append(s.submitted, name)
	return "analysis-1", nil
}

func (s *fakeStore) SubmitURL(_ context.Context, raw string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitted = append(s.submitted, raw)
	return "analysis-2", nil
}

func (s *fakeStore) FetchAnalysis(context.Context, string) (reputation.Report, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls++
	if s.polls < 3 {
		return reputation.Report{}, true, nil
	}
	return s.analysis, true, nil
}

type fakeRegistry struct {
	reviews []claims.Review
	err     error
}

func (r *fakeRegistry) Search(context.Context, string) ([]claims.Review, error) {
	return r.reviews, r.err
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.t = c.t.Add(d)
	return nil
}

func newTestService(store *fakeStore, model genai.Generator) *Service {
	s := New(store, model, nil, nil, Options{})
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s.Now = clock.Now
	s.Sleep = clock.Sleep
	s.Logf = func(string, ...any) {}
	return s
}

func TestAssessFileFoundNeverSubmits(t *testing.T) {
	data := []byte("hello world")
	fp := fingerprint.Sum(data)
	store := &fakeStore{reports: map[string]reputation.Report{
		fp: {ResourceID: fp, Counts: report.Counts{Harmless: 60, Undetected: 10}, ReferenceLink: "https://vt.example/file/" + fp},
	}}
	model := genai.NewFake(threatAnswer)
	s := newTestService(store, model)
	s.ConfirmSubmit = func(context.Context, reputation.Kind, string) bool {
		t.Fatalf("confirmation must not be asked for a known file")
		return false
	}

	got, err := s.AssessFile(context.Background(), "hello.txt", data)
	if err != nil {
		t.Fatalf("AssessFile: %v", err)
	}
	if len(store.submitted) != 0 || store.polls != 0 {
		t.Fatalf("known file was submitted: %v polls=%d", store.submitted, store.polls)
	}
	if got.Verdict != report.ThreatSafe || got.Score != 90 {
		t.Fatalf("unexpected assessment: %#v", got)
	}
	if got.Reputation == nil || got.Reputation.Total() != 70 || got.ReportLink == "" {
		t.Fatalf("reputation not attached: %#v", got)
	}
	reqs := model.Requests()
	if len(reqs) != 1 || !strings.Contains(reqs[0].Prompt, "SHA-256: "+fp) || reqs[0].Grounding || reqs[0].Schema != nil {
		t.Fatalf("unexpected model request: %#v", reqs)
	}
}

func TestAssessFileSubmitsAndPollsWhenUnknown(t *testing.T) {
	store := &fakeStore{analysis: reputation.Report{Counts: report.Counts{Malicious: 9, Undetected: 50}}}
	s := newTestService(store, genai.NewFake(threatAnswer))
	s.Options.EnforceVerdictFloor = true

	var states []analysis.State
	s.OnTransition = func(_, to analysis.State) { states = append(states, to) }

	got, err := s.AssessFile(context.Background(), "dropper.exe", []byte("MZ..."))
	if err != nil {
		t.Fatalf("AssessFile: %v", err)
	}
	if !reflect.DeepEqual(store.submitted, []string{"dropper.exe"}) || store.polls != 3 {
		t.Fatalf("unexpected store use: submitted=%v polls=%d", store.submitted, store.polls)
	}
	if got.Verdict != report.ThreatMalicious {
		t.Fatalf("detection floor not applied: %s", got.Verdict)
	}
	want := []analysis.State{analysis.StateSubmitted, analysis.StatePolling, analysis.StateComplete}
	if !reflect.DeepEqual(states, want) {
		t.Fatalf("unexpected transitions: %v", states)
	}
}

func TestAssessFileTrustsModelWithoutFloor(t *testing.T) {
	store := &fakeStore{analysis: reputation.Report{Counts: report.Counts{Malicious: 9, Undetected: 50}}}
	s := newTestService(store, genai.NewFake(threatAnswer))

	got, err := s.AssessFile(context.Background(), "dropper.exe", []byte("MZ..."))
	if err != nil {
		t.Fatalf("AssessFile: %v", err)
	}
	if got.Verdict != report.ThreatSafe {
		t.Fatalf("verdict must be left as returned, got %s", got.Verdict)
	}
}

func TestAssessFileDeclinedSubmission(t *testing.T) {
	store := &fakeStore{}
	s := newTestService(store, genai.NewFake(threatAnswer))
	s.ConfirmSubmit = func(context.Context, reputation.Kind, string) bool { return false }

	_, err := s.AssessFile(context.Background(), "secret.docx", []byte("private"))
	if !errors.Is(err, failure.ErrSubmissionDeclined) {
		t.Fatalf("expected ErrSubmissionDeclined, got %v", err)
	}
	if len(store.submitted) != 0 {
		t.Fatalf("declined file was submitted")
	}
}

func TestAssessFileLookupFailureIsNotNotFound(t *testing.T) {
	store := &fakeStore{fetchErr: failure.New(failure.ErrTransient, "test", "boom")}
	s := newTestService(store, genai.NewFake(threatAnswer))

	_, err := s.AssessFile(context.Background(), "a", []byte("a"))
	if !errors.Is(err, failure.ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
	if len(store.submitted) != 0 {
		t.Fatalf("transient lookup failure must not lead to a submission")
	}
}

func TestAssessURLPolicyRejectedBeforeNetwork(t *testing.T) {
	store := &fakeStore{}
	model := genai.NewFake(threatAnswer)
	s := newTestService(store, model)

	_, err := s.AssessURL(context.Background(), "http://169.254.169.254/latest/meta-data/")
	if !errors.Is(err, failure.ErrPolicyRejected) {
		t.Fatalf("expected ErrPolicyRejected, got %v", err)
	}
	if len(store.fetched) != 0 || len(model.Requests()) != 0 {
		t.Fatalf("rejected URL reached an external service")
	}
}

func TestAssessURLSubmitsUnknown(t *testing.T) {
	store := &fakeStore{analysis: reputation.Report{Counts: report.Counts{Harmless: 70}, ReferenceLink: "https://vt.example/url/x"}}
	s := newTestService(store, genai.NewFake(threatAnswer))

	got, err := s.AssessURL(context.Background(), "https://news.example.com/story")
	if err != nil {
		t.Fatalf("AssessURL: %v", err)
	}
	if !reflect.DeepEqual(store.fetched, []string{reputation.URLIdentifier("https://news.example.com/story")}) {
		t.Fatalf("lookup did not use the identifier: %v", store.fetched)
	}
	if len(store.submitted) != 1 || got.ReportLink != "https://vt.example/url/x" {
		t.Fatalf("unexpected result: submitted=%v %#v", store.submitted, got)
	}
}

func TestAssessURLWaitsForQueuedReport(t *testing.T) {
	raw := "https://queued.example/landing"
	id := reputation.URLIdentifier(raw)
	store := &fakeStore{queued: 3, reports: map[string]reputation.Report{
		id: {ResourceID: id, Counts: report.Counts{Malicious: 2, Harmless: 60}},
	}}
	model := genai.NewFake(threatAnswer)
	s := newTestService(store, model)
	s.ConfirmSubmit = func(context.Context, reputation.Kind, string) bool {
		t.Fatalf("a queued resource must not be uploaded again")
		return false
	}

	got, err := s.AssessURL(context.Background(), raw)
	if err != nil {
		t.Fatalf("AssessURL: %v", err)
	}
	if len(store.submitted) != 0 || store.polls != 0 || len(store.fetched) != 4 {
		t.Fatalf("unexpected store use: submitted=%v polls=%d fetched=%d", store.submitted, store.polls, len(store.fetched))
	}
	if got.Reputation == nil || got.Reputation.Malicious != 2 {
		t.Fatalf("completed counts not attached: %#v", got.Reputation)
	}
	prompt := model.Requests()[0].Prompt
	if !strings.Contains(prompt, "Detection ratio: 2/62") || strings.Contains(prompt, "0/0") {
		t.Fatalf("prompt built from an unanalysed report:\n%s", prompt)
	}
}

func TestAssessFileQueuedReportTimesOut(t *testing.T) {
	store := &fakeStore{queued: 1000}
	s := newTestService(store, genai.NewFake(threatAnswer))
	s.Options.PollInterval = 10 * time.Second
	s.Options.MaxWait = 30 * time.Second

	_, err := s.AssessFile(context.Background(), "queued.bin", []byte("queued"))
	if !errors.Is(err, failure.ErrTimedOut) {
		t.Fatalf("expected ErrTimedOut, got %v", err)
	}
	if len(store.submitted) != 0 || len(store.fetched) != 4 {
		t.Fatalf("unexpected store use: submitted=%v fetched=%d", store.submitted, len(store.fetched))
	}
}

func TestAssessEmailQueuedLinkIsUnknown(t *testing.T) {
	store := &fakeStore{queued: 1}
	model := genai.NewFake(`{"score": 60, "verdict": "SUSPICIOUS"}`)
	s := newTestService(store, model)

	if _, err := s.AssessEmail(context.Background(), "see https://queued.example/doc"); err != nil {
		t.Fatalf("AssessEmail: %v", err)
	}
	if len(store.submitted) != 0 || store.polls != 0 {
		t.Fatalf("email links must stay read-only: submitted=%v polls=%d", store.submitted, store.polls)
	}
	prompt := model.Requests()[0].Prompt
	if !strings.Contains(prompt, "https://queued.example/doc: unknown to the reputation service") {
		t.Fatalf("queued link must be reported as unknown:\n%s", prompt)
	}
}

func TestAssessURLTimesOut(t *testing.T) {
	store := &fakeStore{}
	s := newTestService(store, genai.NewFake(threatAnswer))
	s.Options.PollInterval = 10 * time.Second
	s.Options.MaxWait = 60 * time.Second

	_, err := s.AssessURL(context.Background(), "https://slow.example/")
	if !errors.Is(err, failure.ErrTimedOut) {
		t.Fatalf("expected ErrTimedOut, got %v", err)
	}
	if store.polls != 6 {
		t.Fatalf("expected 6 polls, got %d", store.polls)
	}
}

func TestCheckClaimMergesRegistrySourcesFirst(t *testing.T) {
	model := genai.NewFake("Verdict: FALSE\nExplanation:\nNo evidence.")
	model.Citations = []report.Source{
		{Title: "Grounded", URI: "https://snopes.example/moon"},
		{Title: "News", URI: "https://news.example/moon"},
	}
	s := newTestService(&fakeStore{}, model)
	s.Registry = &fakeRegistry{reviews: []claims.Review{
		{Publisher: "Snopes", Title: "Moon myth", URL: "https://snopes.example/moon", Rating: "False"},
	}}

	got, err := s.CheckClaim(context.Background(), "The moon is made of cheese")
	if err != nil {
		t.Fatalf("CheckClaim: %v", err)
	}
	want := report.FactCheck{
		Verdict:     report.ClaimFalse,
		Explanation: "No evidence.",
		Sources: []report.Source{
			{Title: "Snopes: Moon myth", URI: "https://snopes.example/moon"},
			{Title: "News", URI: "https://news.example/moon"},
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("mismatch.\n got:  %#v\n want: %#v", got, want)
	}
	if reqs := model.Requests(); len(reqs) != 1 || !reqs[0].Grounding || reqs[0].Schema != nil {
		t.Fatalf("fact checks must use grounded text generation: %#v", reqs)
	}
}

func TestCheckClaimPromptCarriesRegistryReviews(t *testing.T) {
	model := genai.NewFake("Verdict: FALSE\nExplanation:\nDebunked.")
	s := newTestService(&fakeStore{}, model)
	s.Registry = &fakeRegistry{reviews: []claims.Review{
		{Claim: "Moon is cheese", Publisher: "Snopes", Rating: "Pants on Fire", URL: "https://snopes.example/moon"},
	}}

	if _, err := s.CheckClaim(context.Background(), "The moon is made of cheese"); err != nil {
		t.Fatalf("CheckClaim: %v", err)
	}
	reqs := model.Requests()
	if len(reqs) != 1 {
		t.Fatalf("expected one model request, got %d", len(reqs))
	}
	for _, want := range []string{"Snopes", "Pants on Fire", "https://snopes.example/moon"} {
		if !strings.Contains(reqs[0].Prompt, want) {
			t.Fatalf("prompt is missing %q:\n%s", want, reqs[0].Prompt)
		}
	}
}

func TestCheckClaimRegistryFailureDegrades(t *testing.T) {
	model := genai.NewFake("Verdict: TRUE\nExplanation: yes")
	s := newTestService(&fakeStore{}, model)
	s.Registry = &fakeRegistry{err: errors.New("registry down")}

	got, err := s.CheckClaim(context.Background(), "water is wet")
	if err != nil {
		t.Fatalf("CheckClaim: %v", err)
	}
	if got.Verdict != report.ClaimTrue || got.Sources == nil || len(got.Sources) != 0 {
		t.Fatalf("unexpected result: %#v", got)
	}
}

func TestCheckClaimModelFailure(t *testing.T) {
	model := genai.NewFake("")
	model.Error = failure.New(failure.ErrQuotaExceeded, "genai.generate", "status 429")
	s := newTestService(&fakeStore{}, model)

	if _, err := s.CheckClaim(context.Background(), "x"); !errors.Is(err, failure.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if _, err := s.CheckClaim(context.Background(), "  "); !errors.Is(err, failure.ErrInputRead) {
		t.Fatalf("expected ErrInputRead for an empty claim, got %v", err)
	}
}

func TestAssessEmailChecksLinksWithoutSubmitting(t *testing.T) {
	bad := "https://evil.example/login"
	store := &fakeStore{reports: map[string]reputation.Report{
		reputation.URLIdentifier(bad): {Counts: report.Counts{Malicious: 2, Harmless: 60}},
	}}
	model := genai.NewFake(`{"score": 95, "verdict": "SAFE", "narrative": "Looks like a newsletter", "actions": []}`)
	s := newTestService(store, model)
	s.Options.EnforceVerdictFloor = true

	body := `<p>Reset your password <a href="` + bad + `">here</a> or visit http://127.0.0.1/admin and https://unknown.example/</p>`
	got, err := s.AssessEmail(context.Background(), body)
	if err != nil {
		t.Fatalf("AssessEmail: %v", err)
	}
	if len(store.submitted) != 0 {
		t.Fatalf("email links must never be submitted")
	}
	if len(store.fetched) != 2 {
		t.Fatalf("expected lookups for the two allowed links, got %v", store.fetched)
	}
	if got.Verdict != report.ThreatSuspicious {
		t.Fatalf("expected the floor to raise SAFE to SUSPICIOUS, got %s", got.Verdict)
	}
	if !reflect.DeepEqual(got.Actions, []string{report.DefaultAction}) {
		t.Fatalf("empty actions must default: %#v", got.Actions)
	}

	reqs := model.Requests()
	if len(reqs) != 1 || reqs[0].Schema == nil || reqs[0].Grounding {
		t.Fatalf("email assessment must be a structured request: %#v", reqs)
	}
	for _, want := range []string{
		"http://127.0.0.1/admin: not checked (private or local address)",
		bad + ": 2 malicious",
		"https://unknown.example/: unknown to the reputation service",
	} {
		if !strings.Contains(reqs[0].Prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, reqs[0].Prompt)
		}
	}
}

func TestAssessEmailLookupLimit(t *testing.T) {
	store := &fakeStore{}
	s := newTestService(store, genai.NewFake(`{}`))
	s.Options.MaxEmailLinks = 2

	body := "https://a.example/ https://b.example/ https://c.example/ https://d.example/"
	if _, err := s.AssessEmail(context.Background(), body); err != nil {
		t.Fatalf("AssessEmail: %v", err)
	}
	if len(store.fetched) != 2 {
		t.Fatalf("expected 2 lookups, got %d", len(store.fetched))
	}
}

func TestAssessMedia(t *testing.T) {
	model := genai.NewFake(`{"verdict":"LIKELY_FAKE","confidence":81,"narrative":"GAN artifacts","visualFindings":["warped hands"]}`)
	s := newTestService(&fakeStore{}, model)

	got, err := s.AssessMedia(context.Background(), "image/png", []byte{0x89, 'P', 'N', 'G'})
	if err != nil {
		t.Fatalf("AssessMedia: %v", err)
	}
	if got.Verdict != report.MediaLikelyFake || got.Confidence != 81 || len(got.AudioFindings) != 0 {
		t.Fatalf("unexpected result: %#v", got)
	}
	reqs := model.Requests()
	if len(reqs) != 1 || len(reqs[0].Attachments) != 1 || reqs[0].Attachments[0].MIMEType != "image/png" {
		t.Fatalf("media must be attached: %#v", reqs)
	}

	if _, err := s.AssessMedia(context.Background(), "image/png", nil); !errors.Is(err, failure.ErrInputRead) {
		t.Fatalf("expected ErrInputRead, got %v", err)
	}
}
