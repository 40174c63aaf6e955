package webscraper

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// skipTags never contribute visible text.
var skipTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"svg":      true,
	"head":     true,
	"iframe":   true,
}

// VisibleText parses an HTML document and returns its rendered text, one
// non-empty trimmed text node per line.
func VisibleText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}

	var lines []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			if skipTags[n.Data] {
				return
			}
		case html.TextNode:
			if s := collapseSpace(n.Data); s != "" {
				lines = append(lines, s)
			}
			return
		case html.CommentNode:
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.Join(lines, "\n"), nil
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
