package toc

import (
	"regexp"
	"strconv"
	"strings"
)

// Section is one heading of a markdown document together with its anchor id.
type Section struct {
	ID          string `json:"id" yaml:"id"`                     // Unique slug within one extraction
	Title       string `json:"title" yaml:"title"`               // Heading text, trimmed, inline markup kept
	Level       int    `json:"level" yaml:"level"`               // Number of leading '#' (1-6)
	SequenceKey string `json:"sequence_key" yaml:"sequence_key"` // "section-<index>", stable per position
}

// headingPattern matches ATX headings at the start of a line. An ordinal list
// marker ("1. ") may precede the hashes; the upstream summary generator emits
// headings as numbered list items.
var headingPattern = regexp.MustCompile(`(?m)^(?:\d+\.[ \t]+)?(#{1,6})[ \t]+(.+)$`)

// --- Slug derivation ---
var nonSlugChars = regexp.MustCompile(`[^\w\s-]`)
var whitespaceRuns = regexp.MustCompile(`\s+`)

// Slugify derives a URL-fragment-safe id from heading text.
func Slugify(title string) string {
	slug := strings.ToLower(title)
	slug = nonSlugChars.ReplaceAllString(slug, "")
	return whitespaceRuns.ReplaceAllString(slug, "-")
}

// ExtractSections scans markdown for heading lines and returns them in source
// order with de-duplicated ids. It never fails: input without headings yields
// an empty slice.
//
// Lines inside fenced code blocks are not special-cased, so a "# comment" in a
// shell snippet is reported as a heading.
func ExtractSections(markdown string) []Section {
	located := LocateSections(markdown)
	sections := make([]Section, len(located))
	for i, loc := range located {
		sections[i] = loc.Section
	}
	return sections
}

// Located is a section plus the byte range [Start, End) of its heading line
// in the source, excluding the line terminator.
type Located struct {
	Section
	Start int
	End   int
}

// LocateSections is ExtractSections with source offsets.
func LocateSections(markdown string) []Located {
	matches := headingPattern.FindAllStringSubmatchIndex(markdown, -1)
	located := make([]Located, 0, len(matches))
	issued := NewSlugSet()

	for i, m := range matches {
		title := strings.TrimSpace(markdown[m[4]:m[5]])
		located = append(located, Located{
			Section: Section{
				ID:          issued.Issue(Slugify(title)),
				Title:       title,
				Level:       m[3] - m[2],
				SequenceKey: "section-" + strconv.Itoa(i),
			},
			Start: m[0],
			End:   m[1],
		})
	}
	return located
}

// SlugSet hands out unique slugs for a single document pass.
type SlugSet struct {
	seen map[string]struct{}
}

// NewSlugSet returns an empty SlugSet.
func NewSlugSet() *SlugSet {
	return &SlugSet{seen: make(map[string]struct{})}
}

// Issue returns base if unused, otherwise base-1, base-2, ... (first free).
func (s *SlugSet) Issue(base string) string {
	id := base
	for n := 1; s.Has(id); n++ {
		id = base + "-" + strconv.Itoa(n)
	}
	s.seen[id] = struct{}{}
	return id
}

// Has reports whether id was already issued.
func (s *SlugSet) Has(id string) bool {
	_, ok := s.seen[id]
	return ok
}
