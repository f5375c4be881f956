package genai

import (
	"bytes"
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

const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiModel   = "gemini-2.5-flash"
)

// Gemini implements Generator for the Gemini generateContent REST API.
type Gemini struct {
	baseURL string
	model   string
	apiKey  string
	client  *http.Client
}

func NewGemini(baseURL, model, apiKey string, client *http.Client) *Gemini {
	if baseURL == "" {
		baseURL = DefaultGeminiBaseURL
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	if client == nil {
		client = engine.NewHTTPClient(0)
	}
	return &Gemini{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		apiKey:  apiKey,
		client:  client,
	}
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	Tools            []map[string]any        `json:"tools,omitempty"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"data"` // base64 on the wire
}

type geminiGenerationConfig struct {
	ResponseMIMEType string         `json:"responseMimeType,omitempty"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason      string `json:"finishReason"`
		GroundingMetadata struct {
			GroundingChunks []struct {
				Web struct {
					URI   string `json:"uri"`
					Title string `json:"title"`
				} `json:"web"`
			} `json:"groundingChunks"`
		} `json:"groundingMetadata"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (g *Gemini) Generate(ctx context.Context, req Request) (Generation, error) {
	const op = "genai.generate"
	if err := req.Validate(); err != nil {
		return Generation{}, err
	}

	parts := []geminiPart{{Text: req.Prompt}}
	for _, a := range req.Attachments {
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{MIMEType: a.MIMEType, Data: a.Data}})
	}
	payload := geminiRequest{Contents: []geminiContent{{Role: "user", Parts: parts}}}
	if req.Grounding {
		payload.Tools = []map[string]any{{"google_search": map[string]any{}}}
	}
	if req.Schema != nil {
		payload.GenerationConfig = &geminiGenerationConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   req.Schema,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Generation{}, fmt.Errorf("marshal gemini request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, url.PathEscape(g.model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Generation{}, fmt.Errorf("create gemini request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)
	httpReq.Header.Set("User-Agent", appver.UserAgent())

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return Generation{}, failure.Wrap(failure.ErrTransient, op, err)
	}
	defer resp.Body.Close()

	respBody, err := engine.DecodeResponseBody(resp)
	if err != nil {
		return Generation{}, failure.Wrap(failure.ErrTransient, op, err)
	}

	if resp.StatusCode >= 400 {
		msg := fmt.Sprintf("status %d", resp.StatusCode)
		var errBody geminiErrorResponse
		if json.Unmarshal(respBody, &errBody) == nil && errBody.Error.Message != "" {
			msg = fmt.Sprintf("status %d: %s: %s", resp.StatusCode, errBody.Error.Status, errBody.Error.Message)
		}
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return Generation{}, failure.New(failure.ErrUnauthorized, op, msg)
		case http.StatusTooManyRequests:
			return Generation{}, failure.New(failure.ErrQuotaExceeded, op, msg)
		default:
			return Generation{}, failure.New(failure.ErrTransient, op, msg)
		}
	}

	var gr geminiResponse
	if err := json.Unmarshal(respBody, &gr); err != nil {
		return Generation{}, failure.Wrap(failure.ErrTransient, op, fmt.Errorf("decode gemini response: %w", err))
	}

	// An empty or blocked answer is left to the normalizer's defaults.
	out := Generation{Citations: []report.Source{}}
	if len(gr.Candidates) == 0 {
		return out, nil
	}
	first := gr.Candidates[0]
	var text strings.Builder
	for _, p := range first.Content.Parts {
		text.WriteString(p.Text)
	}
	out.Text = text.String()
	for _, c := range first.GroundingMetadata.GroundingChunks {
		if c.Web.URI == "" {
			continue
		}
		out.Citations = append(out.Citations, report.Source{Title: c.Web.Title, URI: c.Web.URI})
	}
	return out, nil
}
