package toc

import (
	"fmt"
	"strings"
)

// Node is a section with the sections nested beneath it.
type Node struct {
	Section  Section `json:"section"`
	Children []*Node `json:"children,omitempty"`
}

// BuildTree nests sections by heading level. Each section becomes a child of
// the closest preceding section with a lower level; sections with no such
// ancestor are returned as roots.
func BuildTree(sections []Section) []*Node {
	type stackEntry struct {
		node  *Node
		level int
	}

	var roots []*Node
	var stack []stackEntry

	for _, sec := range sections {
		node := &Node{Section: sec}

		// Pop until the top of the stack is a shallower heading
		for len(stack) > 0 && stack[len(stack)-1].level >= sec.Level {
			stack = stack[:len(stack)-1]
		}

		if len(stack) == 0 {
			roots = append(roots, node)
		} else {
			parent := stack[len(stack)-1].node
			parent.Children = append(parent.Children, node)
		}
		stack = append(stack, stackEntry{node: node, level: sec.Level})
	}
	return roots
}

// RenderMarkdownList renders an "On this page" navigator as a markdown bullet
// list. Entries are indented two spaces per level below the shallowest level
// present in sections.
func RenderMarkdownList(sections []Section) string {
	if len(sections) == 0 {
		return ""
	}
	base := MinLevel(sections)

	var sb strings.Builder
	for _, sec := range sections {
		indent := strings.Repeat("  ", sec.Level-base)
		fmt.Fprintf(&sb, "%s- [%s](#%s)\n", indent, sec.Title, sec.ID)
	}
	return sb.String()
}

// MinLevel returns the shallowest heading level in sections, or 0 if empty.
func MinLevel(sections []Section) int {
	minLevel := 0
	for _, sec := range sections {
		if minLevel == 0 || sec.Level < minLevel {
			minLevel = sec.Level
		}
	}
	return minLevel
}

// OutlineStats summarizes the shape of an outline.
type OutlineStats struct {
	Count    int         `json:"count"`
	ByLevel  map[int]int `json:"by_level"`
	MinLevel int         `json:"min_level"`
	MaxLevel int         `json:"max_level"`
}

// Stats counts sections per heading level.
func Stats(sections []Section) OutlineStats {
	stats := OutlineStats{
		Count:    len(sections),
		ByLevel:  make(map[int]int),
		MinLevel: MinLevel(sections),
	}
	for _, sec := range sections {
		stats.ByLevel[sec.Level]++
		if sec.Level > stats.MaxLevel {
			stats.MaxLevel = sec.Level
		}
	}
	return stats
}
