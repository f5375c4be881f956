package reputation

import (
	"context"
	"io"

	"github.com/MOYARU/vigil/internal/failure"
	"github.com/MOYARU/vigil/internal/policy"
)

// Store is the external reputation service.
// Fetch methods report found=false for unknown resources; that is not an error.
type Store interface {
	FetchReport(ctx context.Context, resourceID string, kind Kind) (Report, bool, error)
	SubmitFile(ctx context.Context, name string, r io.Reader) (submissionID string, err error)
	SubmitURL(ctx context.Context, rawURL string) (submissionID string, err error)
	FetchAnalysis(ctx context.Context, submissionID string) (Report, bool, error)
}

// Lookup fetches an existing verdict. URLs are checked against the denylist
// before anything leaves the process and are then converted to identifiers.
func Lookup(ctx context.Context, s Store, p *policy.URLPolicy, resourceID string, kind Kind) (Report, bool, error) {
	id := resourceID
	if kind == KindURL {
		var v policy.Validation
		if p != nil {
			v = p.Validate(resourceID)
		} else {
			v = policy.ValidateURLForScanning(resourceID)
		}
		if !v.Valid {
			return Report{}, false, failure.New(failure.ErrPolicyRejected, "reputation.lookup", v.Reason)
		}
		id = URLIdentifier(resourceID)
	}
	return s.FetchReport(ctx, id, kind)
}
