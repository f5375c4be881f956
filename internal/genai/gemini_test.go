package genai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MOYARU/vigil/internal/failure"
)

func TestGeminiGroundedText(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/test-model:generateContent" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "secret" {
			t.Errorf("missing api key header")
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Verdict: TRUE\n"},{"text":"Explanation: yes"}]},
			"groundingMetadata":{"groundingChunks":[{"web":{"uri":"https://a.example","title":"A"}},{"web":{}}]}}]}`))
	}))
	defer srv.Close()

	g := NewGemini(srv.URL, "test-model", "secret", srv.Client())
	gen, err := g.Generate(context.Background(), Request{Prompt: "check", Grounding: true})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if gen.Text != "Verdict: TRUE\nExplanation: yes" {
		t.Fatalf("unexpected text: %q", gen.Text)
	}
	if len(gen.Citations) != 1 || gen.Citations[0].URI != "https://a.example" || gen.Citations[0].Title != "A" {
		t.Fatalf("unexpected citations: %#v", gen.Citations)
	}
	tools, ok := got["tools"].([]any)
	if !ok || len(tools) != 1 {
		t.Fatalf("expected google_search tool, got %#v", got["tools"])
	}
	if _, ok := got["generationConfig"]; ok {
		t.Fatalf("grounded request must not carry a schema")
	}
}

func TestGeminiStructuredWithAttachment(t *testing.T) {
	var got geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"verdict\":\"LIKELY_REAL\"}"}]}}]}`))
	}))
	defer srv.Close()

	g := NewGemini(srv.URL, "m", "k", srv.Client())
	schema := map[string]any{"type": "OBJECT"}
	gen, err := g.Generate(context.Background(), Request{
		Prompt:      "inspect",
		Schema:      schema,
		Attachments: []Attachment{{MIMEType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if gen.Text != `{"verdict":"LIKELY_REAL"}` {
		t.Fatalf("unexpected text: %q", gen.Text)
	}
	if got.GenerationConfig == nil || got.GenerationConfig.ResponseMIMEType != "application/json" {
		t.Fatalf("missing generation config: %#v", got.GenerationConfig)
	}
	if len(got.Contents) != 1 || len(got.Contents[0].Parts) != 2 {
		t.Fatalf("unexpected contents: %#v", got.Contents)
	}
	inline := got.Contents[0].Parts[1].InlineData
	if inline == nil || inline.MIMEType != "image/png" || string(inline.Data) != "\x89PNG" {
		t.Fatalf("unexpected inline data: %#v", inline)
	}
}

func TestGeminiRejectsSchemaWithGrounding(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	g := NewGemini(srv.URL, "m", "k", srv.Client())
	_, err := g.Generate(context.Background(), Request{Prompt: "x", Schema: map[string]any{}, Grounding: true})
	if !errors.Is(err, ErrIncompatibleOptions) {
		t.Fatalf("expected ErrIncompatibleOptions, got %v", err)
	}
	if called {
		t.Fatalf("request must be rejected before any network call")
	}
}

func TestGeminiErrorMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusForbidden, failure.ErrUnauthorized},
		{http.StatusTooManyRequests, failure.ErrQuotaExceeded},
		{http.StatusInternalServerError, failure.ErrTransient},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"error":{"code":1,"message":"nope","status":"DENIED"}}`))
		}))
		g := NewGemini(srv.URL, "m", "k", srv.Client())
		_, err := g.Generate(context.Background(), Request{Prompt: "x"})
		srv.Close()
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
	}
}

func TestGeminiEmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
	}))
	defer srv.Close()

	gen, err := NewGemini(srv.URL, "m", "k", srv.Client()).Generate(context.Background(), Request{Prompt: "x"})
	if err != nil {
		t.Fatalf("blocked answers are not errors: %v", err)
	}
	if gen.Text != "" || gen.Citations == nil {
		t.Fatalf("unexpected generation: %#v", gen)
	}
}

func TestFakeRecordsRequests(t *testing.T) {
	f := NewFake("ok")
	if _, err := f.Generate(context.Background(), Request{Prompt: "a"}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := f.Generate(context.Background(), Request{Schema: map[string]any{}, Grounding: true}); !errors.Is(err, ErrIncompatibleOptions) {
		t.Fatalf("fake must validate requests too, got %v", err)
	}
	if reqs := f.Requests(); len(reqs) != 2 || reqs[0].Prompt != "a" {
		t.Fatalf("unexpected requests: %#v", reqs)
	}
}
