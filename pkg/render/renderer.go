package render

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"github.com/Sriram-PR/doc-outline/pkg/toc"
	"github.com/Sriram-PR/doc-outline/pkg/utils"
)

// Document is a rendered markdown document and the outline its anchors came from.
type Document struct {
	HTML     string        `json:"html"`
	Sections []toc.Section `json:"sections"`
	Tree     []*toc.Node   `json:"tree,omitempty"`
}

// Renderer converts markdown to HTML, giving every heading element the anchor
// id of its outline section so navigator links resolve.
type Renderer struct {
	md  goldmark.Markdown
	log *logrus.Entry
}

// NewRenderer creates a Renderer with GitHub-flavored markdown enabled.
func NewRenderer(log *logrus.Entry) *Renderer {
	return &Renderer{
		md:  goldmark.New(goldmark.WithExtensions(extension.GFM)),
		log: log,
	}
}

// Render extracts the outline of markdown and renders it with heading anchors.
func (r *Renderer) Render(markdown string) (*Document, error) {
	src := []byte(markdown)
	located := toc.LocateSections(markdown)
	sections := make([]toc.Section, len(located))
	for i, loc := range located {
		sections[i] = loc.Section
	}

	doc := r.md.Parser().Parse(text.NewReader(src))
	r.assignAnchors(doc, src, located)

	var buf bytes.Buffer
	if err := r.md.Renderer().Render(&buf, src, doc); err != nil {
		return nil, fmt.Errorf("%w: rendering markdown: %w", utils.ErrParsing, err)
	}

	return &Document{
		HTML:     buf.String(),
		Sections: sections,
		Tree:     toc.BuildTree(sections),
	}, nil
}

// assignAnchors gives each goldmark heading the id of the outline section
// whose heading line contains the heading's first content byte. Headings the
// pattern scan never saw (setext, indented or quoted headings) get a fresh
// slug that cannot collide with any section id.
func (r *Renderer) assignAnchors(doc ast.Node, src []byte, located []toc.Located) {
	issued := toc.NewSlugSet()
	for _, loc := range located {
		issued.Issue(loc.ID)
	}

	used := make([]bool, len(located))
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		heading, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}

		title := headingText(heading, src)
		var id string
		idx, found := pairHeading(heading, located, used)
		if found {
			used[idx] = true
			id = located[idx].ID
		} else {
			id = issued.Issue(toc.Slugify(title))
			if r.log != nil {
				r.log.WithField("heading", title).Debugf("Heading has no outline entry, using anchor '%s'", id)
			}
		}

		heading.SetAttributeString("id", []byte(id))
		return ast.WalkSkipChildren, nil
	})
}

// pairHeading finds the unused located section whose line range holds the
// heading's first content byte. An empty ATX heading has no content lines;
// it takes the first unused section with an empty title at its level that
// starts after the last paired section.
func pairHeading(heading *ast.Heading, located []toc.Located, used []bool) (int, bool) {
	if heading.Lines().Len() > 0 {
		pos := heading.Lines().At(0).Start
		i := sort.Search(len(located), func(i int) bool { return located[i].End > pos })
		if i < len(located) && located[i].Start <= pos && !used[i] {
			return i, true
		}
		return 0, false
	}

	after := 0
	for i := range located {
		if used[i] {
			after = i + 1
		}
	}
	for i := after; i < len(located); i++ {
		if !used[i] && located[i].Level == heading.Level && trimClosingHashes(located[i].Title) == "" {
			return i, true
		}
	}
	return 0, false
}

// headingText returns the raw source of a heading's content lines.
func headingText(heading *ast.Heading, src []byte) string {
	var buf bytes.Buffer
	lines := heading.Lines()
	for i := 0; i < lines.Len(); i++ {
		if i > 0 {
			buf.WriteByte(' ')
		}
		line := lines.At(i)
		buf.Write(bytes.TrimSpace(line.Value(src)))
	}
	return strings.TrimSpace(buf.String())
}

// trimClosingHashes drops an ATX closing sequence ("## Foo ##").
func trimClosingHashes(s string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(s), "#")
	return strings.TrimSpace(trimmed)
}
