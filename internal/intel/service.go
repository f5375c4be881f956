package intel

import (
	"bytes"
	"context"
	"log"
	"net/http"
	"time"

	"github.com/MOYARU/vigil/internal/analysis"
	"github.com/MOYARU/vigil/internal/claims"
	"github.com/MOYARU/vigil/internal/failure"
	"github.com/MOYARU/vigil/internal/fingerprint"
	"github.com/MOYARU/vigil/internal/genai"
	"github.com/MOYARU/vigil/internal/normalize"
	"github.com/MOYARU/vigil/internal/policy"
	"github.com/MOYARU/vigil/internal/prompt"
	"github.com/MOYARU/vigil/internal/report"
	"github.com/MOYARU/vigil/internal/reputation"
)

// DefaultMaxEmailLinks is how many allowed email links get a reputation lookup.
const DefaultMaxEmailLinks = 5

type Options struct {
	PollInterval        time.Duration
	MaxWait             time.Duration
	MaliciousThreshold  int
	EnforceVerdictFloor bool
	MaxEmailLinks       int
}

// Service runs the assessment flows. Its fields are set once before use;
// concurrent calls share nothing else.
type Service struct {
	Store    reputation.Store
	Model    genai.Generator
	Registry claims.Registry // optional
	Policy   *policy.URLPolicy
	Options  Options

	// ConfirmSubmit is asked before an unseen artifact is uploaded.
	// A nil hook allows every submission.
	ConfirmSubmit func(ctx context.Context, kind reputation.Kind, resourceID string) bool
	OnTransition  func(from, to analysis.State)

	// Now and Sleep are handed to the polling machine.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
	Logf  func(format string, args ...any)
}

func New(store reputation.Store, model genai.Generator, registry claims.Registry, p *policy.URLPolicy, opts Options) *Service {
	if p == nil {
		p = policy.New(nil)
	}
	return &Service{
		Store:    store,
		Model:    model,
		Registry: registry,
		Policy:   p,
		Options:  opts,
	}
}

// AssessFile fingerprints data and reuses an existing verdict when the store
// has one. A file the store holds but has not analysed is waited for; an
// unknown file is uploaded and its analysis waited for.
func (s *Service) AssessFile(ctx context.Context, name string, data []byte) (report.ThreatAssessment, error) {
	fp := fingerprint.Sum(data)
	rep, found, err := reputation.Lookup(ctx, s.Store, s.Policy, fp, reputation.KindFile)
	if err != nil {
		return report.ThreatAssessment{}, err
	}
	if found && !rep.Complete() {
		s.logf("file %s is queued at the store; waiting for its analysis", fp)
		if rep, err = s.awaitQueued(ctx, fp, reputation.KindFile); err != nil {
			return report.ThreatAssessment{}, err
		}
	}
	if !found {
		if !s.confirm(ctx, reputation.KindFile, fp) {
			return report.ThreatAssessment{}, failure.New(failure.ErrSubmissionDeclined, "intel.assess_file", name)
		}
		m := s.machine()
		pending, err := m.SubmitFile(ctx, fp, name, bytes.NewReader(data))
		if err != nil {
			return report.ThreatAssessment{}, err
		}
		s.logf("submitted file %s as %s", fp, pending.SubmissionID)
		if rep, err = m.Wait(ctx, pending); err != nil {
			return report.ThreatAssessment{}, err
		}
	}

	return s.assessThreat(ctx, prompt.ThreatInput{
		Kind:        reputation.KindFile,
		Name:        name,
		Size:        int64(len(data)),
		ContentType: http.DetectContentType(data),
		Fingerprint: fp,
		Report:      &rep,
	})
}

// AssessURL is AssessFile for URLs. Denied URLs fail before any network call.
func (s *Service) AssessURL(ctx context.Context, raw string) (report.ThreatAssessment, error) {
	if v := s.Policy.Validate(raw); !v.Valid {
		return report.ThreatAssessment{}, failure.New(failure.ErrPolicyRejected, "intel.assess_url", v.Reason)
	}
	rep, found, err := reputation.Lookup(ctx, s.Store, s.Policy, raw, reputation.KindURL)
	if err != nil {
		return report.ThreatAssessment{}, err
	}
	id := reputation.URLIdentifier(raw)
	if found && !rep.Complete() {
		s.logf("url %s is queued at the store; waiting for its analysis", report.SanitizeURL(raw))
		if rep, err = s.awaitQueued(ctx, id, reputation.KindURL); err != nil {
			return report.ThreatAssessment{}, err
		}
	}
	if !found {
		if !s.confirm(ctx, reputation.KindURL, id) {
			return report.ThreatAssessment{}, failure.New(failure.ErrSubmissionDeclined, "intel.assess_url", report.SanitizeURL(raw))
		}
		m := s.machine()
		pending, err := m.SubmitURL(ctx, raw)
		if err != nil {
			return report.ThreatAssessment{}, err
		}
		s.logf("submitted url %s as %s", report.SanitizeURL(raw), pending.SubmissionID)
		if rep, err = m.Wait(ctx, pending); err != nil {
			return report.ThreatAssessment{}, err
		}
	}

	return s.assessThreat(ctx, prompt.ThreatInput{
		Kind:   reputation.KindURL,
		URL:    raw,
		Report: &rep,
	})
}

func (s *Service) assessThreat(ctx context.Context, in prompt.ThreatInput) (report.ThreatAssessment, error) {
	in.Threshold = s.threshold()
	gen, err := s.Model.Generate(ctx, genai.Request{Prompt: prompt.ThreatPrompt(in)})
	if err != nil {
		return report.ThreatAssessment{}, err
	}

	out := normalize.ThreatFromText(gen.Text)
	if in.Report == nil {
		return out, nil
	}
	if s.Options.EnforceVerdictFloor {
		out = normalize.ApplyDetectionFloor(out, in.Report.Counts, s.threshold())
	}
	counts := in.Report.Counts
	out.Reputation = &counts
	out.ReportLink = in.Report.ReferenceLink
	return out, nil
}

// awaitQueued polls a resource the store knows but has not analysed yet,
// without uploading it again.
func (s *Service) awaitQueued(ctx context.Context, id string, kind reputation.Kind) (reputation.Report, error) {
	m := s.machine()
	return m.Wait(ctx, m.Track(id, kind))
}

func (s *Service) machine() *analysis.Machine {
	m := analysis.New(s.Store, s.Options.PollInterval, s.Options.MaxWait)
	m.Now = s.Now
	m.Sleep = s.Sleep
	m.OnTransition = s.OnTransition
	return m
}

func (s *Service) confirm(ctx context.Context, kind reputation.Kind, id string) bool {
	if s.ConfirmSubmit == nil {
		return true
	}
	return s.ConfirmSubmit(ctx, kind, id)
}

func (s *Service) threshold() int {
	if s.Options.MaliciousThreshold > 0 {
		return s.Options.MaliciousThreshold
	}
	return prompt.DefaultMaliciousThreshold
}

func (s *Service) logf(format string, args ...any) {
	if s.Logf != nil {
		s.Logf(format, args...)
		return
	}
	log.Printf("intel: "+format, args...)
}
