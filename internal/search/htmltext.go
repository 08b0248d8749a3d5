package search

import (
	"strings"

	"golang.org/x/net/html"
)

// htmlToText flattens an HTML fragment to its plain text content. Search
// APIs return highlighted snippets with <b> and entity escapes; reports and
// claims need clean text.
func htmlToText(fragment string) string {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.Join(strings.Fields(sb.String()), " ")
}
