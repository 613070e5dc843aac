package figures

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/timmy/coursegen/internal/logger"
	"github.com/timmy/coursegen/internal/service"
)

var citationRe = regexp.MustCompile(`\(([A-Z][A-Za-z'’-]+),\s*((?:19|20)\d{2})\)`)

// Citation is an (Author, Year) reference found in the text.
type Citation struct {
	Author string
	Year   int
}

// CitationCheck is the lookup result for one citation.
type CitationCheck struct {
	Citation
	Confirmed bool
	DOI       string
	Title     string
}

// FindCitations returns the unique in-text citations in order of appearance.
func FindCitations(md string) []Citation {
	seen := make(map[string]bool)
	var out []Citation
	for _, m := range citationRe.FindAllStringSubmatch(md, -1) {
		key := m[1] + "|" + m[2]
		if seen[key] {
			continue
		}
		seen[key] = true
		year, _ := strconv.Atoi(m[2])
		out = append(out, Citation{Author: m[1], Year: year})
	}
	return out
}

// VerifyCitations looks each citation up. A work matches when any of its
// issued years is within one year of the cited year. Lookup errors leave the
// citation unconfirmed.
func VerifyCitations(ctx context.Context, works service.WorkSearcher, cites []Citation) []CitationCheck {
	checks := make([]CitationCheck, 0, len(cites))
	for _, c := range cites {
		check := CitationCheck{Citation: c}
		found, err := works.SearchWorks(ctx, c.Author, 3)
		if err != nil {
			logger.FromContext(ctx).WithError(err).Warnf("[figures] citation lookup failed for %s %d", c.Author, c.Year)
			checks = append(checks, check)
			continue
		}
	match:
		for _, w := range found {
			for _, y := range w.Years {
				if y >= c.Year-1 && y <= c.Year+1 {
					check.Confirmed = true
					check.DOI = w.DOI
					check.Title = w.Title
					break match
				}
			}
		}
		checks = append(checks, check)
	}
	return checks
}

// VerificationReport renders the checks as a markdown section.
func VerificationReport(checks []CitationCheck) string {
	var b strings.Builder
	b.WriteString("## Reference Verification\n")
	b.WriteString("The following in-text citations were checked against CrossRef at build time:\n\n")
	for _, c := range checks {
		if c.Confirmed {
			fmt.Fprintf(&b, "- Confirmed: (%s, %d)", c.Author, c.Year)
			if c.DOI != "" {
				fmt.Fprintf(&b, " DOI: %s", c.DOI)
			}
			if c.Title != "" {
				fmt.Fprintf(&b, " %q", c.Title)
			}
			b.WriteString("\n")
			continue
		}
		fmt.Fprintf(&b, "- Unconfirmed: (%s, %d) no close match found\n", c.Author, c.Year)
	}
	return b.String()
}
