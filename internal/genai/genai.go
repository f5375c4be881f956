package genai

import (
	"context"
	"errors"

	"github.com/MOYARU/vigil/internal/report"
)

// ErrIncompatibleOptions is returned when a request asks for a response schema
// and search grounding at once; the upstream model cannot do both.
var ErrIncompatibleOptions = errors.New("genai: response schema and grounding cannot be combined")

// Generator is the reasoning model.
type Generator interface {
	Generate(ctx context.Context, req Request) (Generation, error)
}

type Attachment struct {
	MIMEType string
	Data     []byte
}

type Request struct {
	Prompt string
	// Schema requests a structured JSON response.
	Schema      map[string]any
	Grounding   bool
	Attachments []Attachment
}

func (r Request) Validate() error {
	if r.Schema != nil && r.Grounding {
		return ErrIncompatibleOptions
	}
	return nil
}

type Generation struct {
	Text      string
	Citations []report.Source
}
