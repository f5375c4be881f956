package claims

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/MOYARU/vigil/internal/engine"
	"github.com/MOYARU/vigil/internal/failure"
	"github.com/MOYARU/vigil/internal/report"
	appver "github.com/MOYARU/vigil/internal/version"
)

const DefaultFactCheckBaseURL = "https://factchecktools.googleapis.com/v1alpha1"

// maxReviews bounds how many prior reviews a search returns.
const maxReviews = 10

// Registry searches previously published fact-checks.
type Registry interface {
	Search(ctx context.Context, text string) ([]Review, error)
}

// Review is one published fact-check of a claim.
type Review struct {
	Claim     string `json:"claim"`
	Publisher string `json:"publisher"`
	Rating    string `json:"rating"`
	URL       string `json:"url"`
	Title     string `json:"title"`
}

// Sources converts reviews into citations, publisher first in the title.
func Sources(reviews []Review) []report.Source {
	out := make([]report.Source, 0, len(reviews))
	for _, r := range reviews {
		if r.URL == "" {
			continue
		}
		title := r.Title
		switch {
		case title == "" && r.Publisher != "":
			title = r.Publisher
		case title != "" && r.Publisher != "":
			title = r.Publisher + ": " + title
		}
		out = append(out, report.Source{Title: title, URI: r.URL})
	}
	return out
}

// FactCheckTools implements Registry against the Google Fact Check Tools API.
type FactCheckTools struct {
	baseURL  string
	apiKey   string
	language string
	client   *http.Client
}

func NewFactCheckTools(baseURL, apiKey, language string, client *http.Client) *FactCheckTools {
	if baseURL == "" {
		baseURL = DefaultFactCheckBaseURL
	}
	if client == nil {
		client = engine.NewHTTPClient(0)
	}
	return &FactCheckTools{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		language: language,
		client:   client,
	}
}

type searchResponse struct {
	Claims []struct {
		Text        string `json:"text"`
		Claimant    string `json:"claimant"`
		ClaimReview []struct {
			Publisher struct {
				Name string `json:"name"`
				Site string `json:"site"`
			} `json:"publisher"`
			URL           string `json:"url"`
			Title         string `json:"title"`
			TextualRating string `json:"textualRating"`
		} `json:"claimReview"`
	} `json:"claims"`
}

func (f *FactCheckTools) Search(ctx context.Context, text string) ([]Review, error) {
	const op = "claims.search"
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	q := url.Values{}
	q.Set("query", text)
	q.Set("key", f.apiKey)
	q.Set("pageSize", fmt.Sprint(maxReviews))
	if f.language != "" {
		q.Set("languageCode", f.language)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/claims:search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create claims search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", appver.UserAgent())

	resp, err := f.client.Do(req)
	if err != nil {
		// url.Error carries the full URL, key included.
		return nil, failure.New(failure.ErrTransient, op, report.SanitizeText(err.Error()))
	}
	defer resp.Body.Close()

	body, err := engine.DecodeResponseBody(resp)
	if err != nil {
		return nil, failure.Wrap(failure.ErrTransient, op, err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, failure.New(failure.ErrUnauthorized, op, fmt.Sprintf("status %d", resp.StatusCode))
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, failure.New(failure.ErrQuotaExceeded, op, fmt.Sprintf("status %d", resp.StatusCode))
	case resp.StatusCode >= 300:
		return nil, failure.New(failure.ErrTransient, op, fmt.Sprintf("status %d", resp.StatusCode))
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, failure.Wrap(failure.ErrTransient, op, fmt.Errorf("decode claims response: %w", err))
	}

	var out []Review
	for _, c := range sr.Claims {
		for _, r := range c.ClaimReview {
			publisher := r.Publisher.Name
			if publisher == "" {
				publisher = r.Publisher.Site
			}
			out = append(out, Review{
				Claim:     c.Text,
				Publisher: publisher,
				Rating:    r.TextualRating,
				URL:       r.URL,
				Title:     r.Title,
			})
			if len(out) == maxReviews {
				return out, nil
			}
		}
	}
	return out, nil
}
