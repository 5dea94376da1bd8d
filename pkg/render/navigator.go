package render

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Sriram-PR/doc-outline/pkg/toc"
	"github.com/Sriram-PR/doc-outline/pkg/utils"
)

const navigatorSkeleton = `<nav class="toc" aria-label="On this page"><ul></ul></nav>`

// RenderNavigator renders the "On this page" list as nested HTML lists. Each
// entry links to its section anchor and carries a toc-level-N class.
// Returns an empty string when there are no sections.
func RenderNavigator(sections []toc.Section) (string, error) {
	if len(sections) == 0 {
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(navigatorSkeleton))
	if err != nil {
		return "", fmt.Errorf("%w: navigator skeleton: %w", utils.ErrParsing, err)
	}

	nav := doc.Find("nav.toc")
	appendNodes(nav.ChildrenFiltered("ul"), toc.BuildTree(sections))

	out, err := goquery.OuterHtml(nav)
	if err != nil {
		return "", fmt.Errorf("%w: serializing navigator: %w", utils.ErrParsing, err)
	}
	return out, nil
}

// appendNodes adds one <li> per node to list, recursing into children.
func appendNodes(list *goquery.Selection, nodes []*toc.Node) {
	for _, node := range nodes {
		list.AppendHtml(`<li><a></a></li>`)
		item := list.ChildrenFiltered("li").Last()
		item.SetAttr("class", fmt.Sprintf("toc-level-%d", node.Section.Level))
		item.SetAttr("data-key", node.Section.SequenceKey)
		item.ChildrenFiltered("a").
			SetAttr("href", "#"+node.Section.ID).
			SetText(node.Section.Title)

		if len(node.Children) > 0 {
			item.AppendHtml(`<ul></ul>`)
			appendNodes(item.ChildrenFiltered("ul"), node.Children)
		}
	}
}
