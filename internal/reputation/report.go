package reputation

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/MOYARU/vigil/internal/report"
)

type Kind string

const (
	KindFile Kind = "FILE"
	KindURL  Kind = "URL"
)

type EngineFinding struct {
	Detected bool   `json:"detected"`
	Label    string `json:"label"`
}

// Report is one reputation verdict. It is built fresh per lookup or poll and
// not modified afterwards.
type Report struct {
	ResourceID    string                   `json:"resourceId"`
	ScanTimestamp time.Time                `json:"scanTimestamp"`
	Counts        report.Counts            `json:"counts"`
	Engines       map[string]EngineFinding `json:"perEngineFindings"`
	ReferenceLink string                   `json:"referenceLink"`
}

// Complete reports whether any engine produced a result.
func (r Report) Complete() bool {
	return r.Counts.Total() > 0
}

// DetectedEngines returns the engines that flagged the resource.
func (r Report) DetectedEngines() map[string]EngineFinding {
	out := make(map[string]EngineFinding)
	for name, f := range r.Engines {
		if f.Detected {
			out[name] = f
		}
	}
	return out
}

// Pending is a submission the store is still analysing.
type Pending struct {
	SubmissionID string
	Kind         Kind
	ResourceID   string
	StartedAt    time.Time
}

// URLIdentifier converts a URL into the store's identifier: unpadded URL-safe base64.
func URLIdentifier(raw string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strings.TrimSpace(raw)))
}

// URLFromIdentifier reverses URLIdentifier.
func URLFromIdentifier(id string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(id)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
