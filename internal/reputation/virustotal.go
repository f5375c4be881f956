package reputation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MOYARU/vigil/internal/engine"
	"github.com/MOYARU/vigil/internal/failure"
	"github.com/MOYARU/vigil/internal/report"
	appver "github.com/MOYARU/vigil/internal/version"
)

const (
	DefaultVirusTotalBaseURL = "https://www.virustotal.com/api/v3"
	DefaultVirusTotalGUIURL  = "https://www.virustotal.com/gui"
)

// VirusTotal implements Store against the VirusTotal v3 REST API.
type VirusTotal struct {
	baseURL string
	guiURL  string
	apiKey  string
	client  *http.Client
}

func NewVirusTotal(baseURL, apiKey string, client *http.Client) *VirusTotal {
	if baseURL == "" {
		baseURL = DefaultVirusTotalBaseURL
	}
	if client == nil {
		client = engine.NewHTTPClient(0)
	}
	return &VirusTotal{
		baseURL: strings.TrimRight(baseURL, "/"),
		guiURL:  DefaultVirusTotalGUIURL,
		apiKey:  apiKey,
		client:  client,
	}
}

type vtStats struct {
	Malicious  int `json:"malicious"`
	Suspicious int `json:"suspicious"`
	Harmless   int `json:"harmless"`
	Undetected int `json:"undetected"`
}

type vtEngineResult struct {
	Category   string `json:"category"`
	EngineName string `json:"engine_name"`
	Result     string `json:"result"`
}

type vtObject struct {
	Data struct {
		ID         string `json:"id"`
		Type       string `json:"type"`
		Attributes struct {
			LastAnalysisDate    int64                     `json:"last_analysis_date"`
			LastAnalysisStats   vtStats                   `json:"last_analysis_stats"`
			LastAnalysisResults map[string]vtEngineResult `json:"last_analysis_results"`

			// analysis objects
			Date    int64                     `json:"date"`
			Status  string                    `json:"status"`
			Stats   vtStats                   `json:"stats"`
			Results map[string]vtEngineResult `json:"results"`
		} `json:"attributes"`
	} `json:"data"`
	Meta struct {
		FileInfo struct {
			SHA256 string `json:"sha256"`
		} `json:"file_info"`
		URLInfo struct {
			ID string `json:"id"`
		} `json:"url_info"`
	} `json:"meta"`
}

type vtError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (v *VirusTotal) FetchReport(ctx context.Context, resourceID string, kind Kind) (Report, bool, error) {
	collection := "files"
	if kind == KindURL {
		collection = "urls"
	}
	var obj vtObject
	found, err := v.get(ctx, "reputation.fetch_report", collection+"/"+url.PathEscape(resourceID), &obj)
	if err != nil || !found {
		return Report{}, found, err
	}
	a := obj.Data.Attributes
	return Report{
		ResourceID:    resourceID,
		ScanTimestamp: unixTime(a.LastAnalysisDate),
		Counts:        countsFrom(a.LastAnalysisStats),
		Engines:       enginesFrom(a.LastAnalysisResults),
		ReferenceLink: v.guiLink(kind, resourceID),
	}, true, nil
}

func (v *VirusTotal) FetchAnalysis(ctx context.Context, submissionID string) (Report, bool, error) {
	var obj vtObject
	found, err := v.get(ctx, "reputation.fetch_analysis", "analyses/"+url.PathEscape(submissionID), &obj)
	if err != nil || !found {
		return Report{}, found, err
	}
	a := obj.Data.Attributes
	rep := Report{
		ResourceID:    submissionID,
		ScanTimestamp: unixTime(a.Date),
		Counts:        countsFrom(a.Stats),
		Engines:       enginesFrom(a.Results),
		ReferenceLink: v.guiURL + "/analysis/" + url.PathEscape(submissionID),
	}
	switch {
	case obj.Meta.FileInfo.SHA256 != "":
		rep.ResourceID = obj.Meta.FileInfo.SHA256
		rep.ReferenceLink = v.guiLink(KindFile, rep.ResourceID)
	case obj.Meta.URLInfo.ID != "":
		rep.ResourceID = obj.Meta.URLInfo.ID
		rep.ReferenceLink = v.guiLink(KindURL, rep.ResourceID)
	}
	return rep, true, nil
}

func (v *VirusTotal) SubmitFile(ctx context.Context, name string, r io.Reader) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("create multipart part: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", failure.Wrap(failure.ErrInputRead, "reputation.submit_file", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart body: %w", err)
	}
	return v.submit(ctx, "reputation.submit_file", "files", mw.FormDataContentType(), &body)
}

func (v *VirusTotal) SubmitURL(ctx context.Context, rawURL string) (string, error) {
	form := url.Values{"url": {rawURL}}
	return v.submit(ctx, "reputation.submit_url", "urls", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
}

func (v *VirusTotal) submit(ctx context.Context, op, path, contentType string, body io.Reader) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/"+path, body)
	if err != nil {
		return "", fmt.Errorf("create %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", contentType)

	var obj vtObject
	found, err := v.do(req, op, &obj)
	if err != nil {
		return "", err
	}
	if !found || obj.Data.ID == "" {
		return "", failure.Wrapf(failure.ErrTransient, op, "store returned no submission id")
	}
	return obj.Data.ID, nil
}

func (v *VirusTotal) get(ctx context.Context, op, path string, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/"+path, nil)
	if err != nil {
		return false, fmt.Errorf("create %s request: %w", op, err)
	}
	return v.do(req, op, out)
}

func (v *VirusTotal) do(req *http.Request, op string, out any) (bool, error) {
	req.Header.Set("x-apikey", v.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", appver.UserAgent())

	resp, err := v.client.Do(req)
	if err != nil {
		return false, failure.Wrap(failure.ErrTransient, op, err)
	}
	defer resp.Body.Close()

	body, err := engine.DecodeResponseBody(resp)
	if err != nil {
		return false, failure.Wrap(failure.ErrTransient, op, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return false, failure.New(failure.ErrUnauthorized, op, errorMessage(resp.StatusCode, body))
	case resp.StatusCode == http.StatusTooManyRequests:
		return false, failure.New(failure.ErrQuotaExceeded, op, errorMessage(resp.StatusCode, body))
	case resp.StatusCode >= 300:
		return false, failure.New(failure.ErrTransient, op, errorMessage(resp.StatusCode, body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return false, failure.Wrap(failure.ErrTransient, op, fmt.Errorf("decode response: %w", err))
	}
	return true, nil
}

func (v *VirusTotal) guiLink(kind Kind, id string) string {
	if kind == KindURL {
		return v.guiURL + "/url/" + url.PathEscape(id)
	}
	return v.guiURL + "/file/" + url.PathEscape(id)
}

func errorMessage(status int, body []byte) string {
	var e vtError
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Code != "" {
		return fmt.Sprintf("status %d: %s: %s", status, e.Error.Code, e.Error.Message)
	}
	return fmt.Sprintf("status %d", status)
}

func countsFrom(s vtStats) report.Counts {
	return report.Counts{
		Malicious:  s.Malicious,
		Suspicious: s.Suspicious,
		Harmless:   s.Harmless,
		Undetected: s.Undetected,
	}
}

func enginesFrom(results map[string]vtEngineResult) map[string]EngineFinding {
	out := make(map[string]EngineFinding, len(results))
	for name, r := range results {
		if r.EngineName != "" {
			name = r.EngineName
		}
		label := r.Result
		if label == "" {
			label = r.Category
		}
		out[name] = EngineFinding{
			Detected: r.Category == "malicious" || r.Category == "suspicious",
			Label:    label,
		}
	}
	return out
}

func unixTime(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
