package process

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/Sriram-PR/doc-outline/pkg/toc"
)

// Heading is a heading as a CommonMark parser sees it.
type Heading struct {
	Level int
	Text  string // Raw inline source, closing hashes removed
}

// ExtractHeadings parses markdown with goldmark and returns its headings in
// document order. Unlike toc.ExtractSections it understands code fences,
// setext underlines and container blocks.
func ExtractHeadings(markdown []byte) []Heading {
	doc := goldmark.DefaultParser().Parse(text.NewReader(markdown))

	var headings []Heading
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		heading, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}

		var buf bytes.Buffer
		lines := heading.Lines()
		for i := 0; i < lines.Len(); i++ {
			if i > 0 {
				buf.WriteByte(' ')
			}
			seg := lines.At(i)
			buf.Write(bytes.TrimSpace(seg.Value(markdown)))
		}
		if buf.Len() > 0 {
			headings = append(headings, Heading{Level: heading.Level, Text: normalizeHeading(buf.String())})
		}
		return ast.WalkSkipChildren, nil
	})
	return headings
}

// Mismatch describes a heading only one of the two scanners reports.
type Mismatch struct {
	Level   int    `json:"level"`
	Title   string `json:"title"`
	Scanner string `json:"scanner"` // "pattern" or "commonmark"
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s %s only seen by %s scan", strings.Repeat("#", m.Level), m.Title, m.Scanner)
}

// CrossCheck compares the line-pattern outline with goldmark's headings and
// returns headings found by only one of them, in document order per scanner.
// Typical causes are "#" lines inside code fences (pattern only) and setext
// headings (commonmark only).
func CrossCheck(markdown string) []Mismatch {
	sections := toc.ExtractSections(markdown)
	headings := ExtractHeadings([]byte(markdown))

	matched := make([]bool, len(headings))
	var mismatches []Mismatch
	cursor := 0
	for _, sec := range sections {
		found := false
		for j := cursor; j < len(headings); j++ {
			if headings[j].Level == sec.Level && headings[j].Text == normalizeHeading(sec.Title) {
				matched[j] = true
				cursor = j + 1
				found = true
				break
			}
		}
		if !found {
			mismatches = append(mismatches, Mismatch{Level: sec.Level, Title: sec.Title, Scanner: "pattern"})
		}
	}
	for j, h := range headings {
		if !matched[j] {
			mismatches = append(mismatches, Mismatch{Level: h.Level, Title: h.Text, Scanner: "commonmark"})
		}
	}
	return mismatches
}

func normalizeHeading(s string) string {
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(s), "#"))
}
