package prompt

import (
	"fmt"
	"strings"

	"github.com/MOYARU/vigil/internal/claims"
	"github.com/MOYARU/vigil/internal/normalize"
)

// FactCheckPrompt asks for a grounded verdict on claim, listing prior
// published reviews from the claims registry when there are any.
func FactCheckPrompt(claim string, reviews []claims.Review) string {
	var b strings.Builder
	b.WriteString("You are a fact-checker. Use web search to verify the following claim.\n\n")
	fmt.Fprintf(&b, "Claim: %q\n\n", strings.TrimSpace(claim))

	if len(reviews) > 0 {
		b.WriteString("Published fact-checks of similar claims:\n")
		for _, r := range reviews {
			fmt.Fprintf(&b, "- %s rated %q as %q (%s)\n", orUnknown(r.Publisher), r.Claim, r.Rating, r.URL)
		}
		b.WriteString("Weigh these reviews but do not copy their ratings blindly.\n\n")
	}

	writeLayout(&b,
		normalize.HeaderVerdict+": <TRUE | FALSE | UNCERTAIN>",
		normalize.HeaderExplanation+":\n<concise explanation citing evidence>",
	)
	return b.String()
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown publisher"
	}
	return s
}
