package intel

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/MOYARU/vigil/internal/claims"
	"github.com/MOYARU/vigil/internal/extract"
	"github.com/MOYARU/vigil/internal/failure"
	"github.com/MOYARU/vigil/internal/genai"
	"github.com/MOYARU/vigil/internal/normalize"
	"github.com/MOYARU/vigil/internal/prompt"
	"github.com/MOYARU/vigil/internal/report"
	"github.com/MOYARU/vigil/internal/reputation"
)

// lookupConcurrency bounds parallel reputation lookups for email links.
const lookupConcurrency = 3

// CheckClaim searches the claims registry first and hands its reviews to the
// model as prior findings. A failed registry search only costs those findings.
func (s *Service) CheckClaim(ctx context.Context, claim string) (report.FactCheck, error) {
	claim = strings.TrimSpace(claim)
	if claim == "" {
		return report.FactCheck{}, failure.New(failure.ErrInputRead, "intel.check_claim", "empty claim")
	}

	var reviews []claims.Review
	if s.Registry != nil {
		r, err := s.Registry.Search(ctx, claim)
		switch {
		case err == nil:
			reviews = r
		case ctx.Err() != nil:
			return report.FactCheck{}, ctx.Err()
		default:
			s.logf("claims registry unavailable: %s", report.SanitizeText(err.Error()))
		}
	}

	gen, err := s.Model.Generate(ctx, genai.Request{
		Prompt:    prompt.FactCheckPrompt(claim, reviews),
		Grounding: true,
	})
	if err != nil {
		return report.FactCheck{}, err
	}

	sources := normalize.MergeSources(claims.Sources(reviews), gen.Citations)
	return normalize.FactCheckFromText(gen.Text, sources), nil
}

// AssessEmail checks the links of an email without submitting anything and
// asks for a structured phishing verdict.
func (s *Service) AssessEmail(ctx context.Context, body string) (report.ThreatAssessment, error) {
	if strings.TrimSpace(body) == "" {
		return report.ThreatAssessment{}, failure.New(failure.ErrInputRead, "intel.assess_email", "empty email")
	}

	findings := s.checkLinks(ctx, extract.Links(body))
	if err := ctx.Err(); err != nil {
		return report.ThreatAssessment{}, err
	}

	gen, err := s.Model.Generate(ctx, genai.Request{
		Prompt: prompt.EmailPrompt(body, findings),
		Schema: prompt.ThreatSchema,
	})
	if err != nil {
		return report.ThreatAssessment{}, err
	}
	out := normalize.ThreatFromJSON(gen.Text)

	if s.Options.EnforceVerdictFloor {
		var worst report.Counts
		for _, f := range findings {
			if f.Report != nil && f.Report.Counts.Malicious > worst.Malicious {
				worst = f.Report.Counts
			}
		}
		out = normalize.ApplyDetectionFloor(out, worst, s.threshold())
	}
	return out, nil
}

func (s *Service) checkLinks(ctx context.Context, links []string) []prompt.LinkFinding {
	limit := s.Options.MaxEmailLinks
	if limit <= 0 {
		limit = DefaultMaxEmailLinks
	}

	findings := make([]prompt.LinkFinding, len(links))
	var g errgroup.Group
	g.SetLimit(lookupConcurrency)
	looked := 0
	for i, link := range links {
		findings[i].URL = link
		if v := s.Policy.Validate(link); !v.Valid {
			findings[i].Rejected = v.Reason
			continue
		}
		if looked == limit {
			findings[i].Rejected = "lookup limit reached"
			continue
		}
		looked++
		i, link := i, link
		g.Go(func() error {
			rep, found, err := reputation.Lookup(ctx, s.Store, s.Policy, link, reputation.KindURL)
			switch {
			case err != nil:
				findings[i].Err = failure.ReasonOf(err)
				if findings[i].Err == "" {
					findings[i].Err = report.SanitizeText(err.Error())
				}
			case found && rep.Complete():
				findings[i].Report = &rep
			}
			return nil
		})
	}
	_ = g.Wait()
	return findings
}

// AssessMedia asks for a structured authenticity verdict on an image, video or
// audio file.
func (s *Service) AssessMedia(ctx context.Context, contentType string, data []byte) (report.MediaAuthenticity, error) {
	if len(data) == 0 {
		return report.MediaAuthenticity{}, failure.New(failure.ErrInputRead, "intel.assess_media", "empty media")
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	gen, err := s.Model.Generate(ctx, genai.Request{
		Prompt:      prompt.MediaPrompt(contentType),
		Schema:      prompt.MediaSchema,
		Attachments: []genai.Attachment{{MIMEType: contentType, Data: data}},
	})
	if err != nil {
		return report.MediaAuthenticity{}, err
	}
	return normalize.MediaFromJSON(gen.Text), nil
}
