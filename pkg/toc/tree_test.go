package toc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTree_Nesting(t *testing.T) {
	sections := ExtractSections(`# Title
## Section A
### Subsection A1
## Section B
# Appendix
`)

	roots := BuildTree(sections)

	require.Len(t, roots, 2)
	assert.Equal(t, "title", roots[0].Section.ID)
	assert.Equal(t, "appendix", roots[1].Section.ID)

	require.Len(t, roots[0].Children, 2)
	secA := roots[0].Children[0]
	assert.Equal(t, "section-a", secA.Section.ID)
	require.Len(t, secA.Children, 1)
	assert.Equal(t, "subsection-a1", secA.Children[0].Section.ID)
	assert.Equal(t, "section-b", roots[0].Children[1].Section.ID)
	assert.Empty(t, roots[1].Children)
}

func TestBuildTree_SkippedLevelsAndLeadingDeepHeading(t *testing.T) {
	sections := ExtractSections("### Notes\n# Title\n#### Deep\n## Shallower\n")

	roots := BuildTree(sections)

	require.Len(t, roots, 2)
	assert.Equal(t, "notes", roots[0].Section.ID)
	require.Len(t, roots[1].Children, 2)
	assert.Equal(t, "deep", roots[1].Children[0].Section.ID)
	assert.Equal(t, "shallower", roots[1].Children[1].Section.ID)
}

func TestBuildTree_Empty(t *testing.T) {
	assert.Empty(t, BuildTree(nil))
}

func TestRenderMarkdownList(t *testing.T) {
	sections := ExtractSections("## Overview\n### Revenue\n## Overview\n")

	got := RenderMarkdownList(sections)

	expected := "- [Overview](#overview)\n" +
		"  - [Revenue](#revenue)\n" +
		"- [Overview](#overview-1)\n"
	assert.Equal(t, expected, got)
	assert.Empty(t, RenderMarkdownList(nil))
}

func TestStats(t *testing.T) {
	stats := Stats(ExtractSections("## A\n### B\n### C\n#### D\n"))

	assert.Equal(t, 4, stats.Count)
	assert.Equal(t, 2, stats.MinLevel)
	assert.Equal(t, 4, stats.MaxLevel)
	assert.Equal(t, map[int]int{2: 1, 3: 2, 4: 1}, stats.ByLevel)

	empty := Stats(nil)
	assert.Equal(t, 0, empty.Count)
	assert.Equal(t, 0, empty.MinLevel)
}
