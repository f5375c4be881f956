package genai

import (
	"context"
	"sync"

	"github.com/MOYARU/vigil/internal/report"
)

// Fake is a canned Generator. It records every request it receives.
type Fake struct {
	Text      string
	Citations []report.Source
	Error     error

	mu       sync.Mutex
	requests []Request
}

func NewFake(text string) *Fake {
	return &Fake{Text: text}
}

func (f *Fake) Generate(ctx context.Context, req Request) (Generation, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if err := req.Validate(); err != nil {
		return Generation{}, err
	}
	if f.Error != nil {
		return Generation{}, f.Error
	}
	return Generation{Text: f.Text, Citations: append([]report.Source{}, f.Citations...)}, nil
}

// Requests returns a copy of the requests seen so far.
func (f *Fake) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.requests...)
}
