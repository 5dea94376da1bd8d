package process

import (
	"strings"

	"github.com/Sriram-PR/doc-outline/pkg/toc"
)

// SectionBody is the markdown owned by one section: its heading line and
// everything up to the next heading line. The preamble before the first
// heading has an empty Section.
type SectionBody struct {
	toc.Section
	Body       string `json:"body"`
	TokenCount int    `json:"token_count"`
}

// SplitSections cuts markdown at every outline heading. A whitespace-only
// preamble is dropped.
func SplitSections(markdown string) []SectionBody {
	located := toc.LocateSections(markdown)
	bodies := make([]SectionBody, 0, len(located)+1)

	if len(located) == 0 || located[0].Start > 0 {
		end := len(markdown)
		if len(located) > 0 {
			end = located[0].Start
		}
		if preamble := markdown[:end]; strings.TrimSpace(preamble) != "" {
			bodies = append(bodies, SectionBody{Body: preamble, TokenCount: CountTokens(preamble)})
		}
	}

	for i, loc := range located {
		end := len(markdown)
		if i+1 < len(located) {
			end = located[i+1].Start
		}
		body := markdown[loc.Start:end]
		bodies = append(bodies, SectionBody{
			Section:    loc.Section,
			Body:       body,
			TokenCount: CountTokens(body),
		})
	}
	return bodies
}
