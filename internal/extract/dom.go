package extract

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// textContent concatenates every text node below n with no separators, the
// way a browser's textContent does.
func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}

	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			buf.WriteString(node.Data)
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return buf.String()
}

// attr returns the value of key and whether it was present.
func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// hasClasses reports whether n carries every class in want.
func hasClasses(n *html.Node, want string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	val, ok := attr(n, "class")
	if !ok {
		return false
	}
	have := make(map[string]bool)
	for _, c := range strings.Fields(val) {
		have[c] = true
	}
	for _, c := range strings.Fields(want) {
		if !have[c] {
			return false
		}
	}
	return true
}

// isElement returns a predicate matching elements of the given atom.
func isElement(a atom.Atom) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == a
	}
}

// findAll returns every descendant of n (excluding n) matching predicate, in
// document order.
func findAll(n *html.Node, predicate func(*html.Node) bool) []*html.Node {
	var results []*html.Node

	var walk func(*html.Node)
	walk = func(node *html.Node) {
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if predicate(c) {
				results = append(results, c)
			}
			walk(c)
		}
	}

	walk(n)
	return results
}

// findFirst returns the first node at or below n matching predicate.
func findFirst(n *html.Node, predicate func(*html.Node) bool) *html.Node {
	if predicate(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, predicate); found != nil {
			return found
		}
	}
	return nil
}

// children returns the direct children of n matching predicate.
func children(n *html.Node, predicate func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if predicate(c) {
			out = append(out, c)
		}
	}
	return out
}

// findNext returns the first node after n in document order matching
// predicate, without leaving the subtree rooted at scope.
func findNext(n, scope *html.Node, predicate func(*html.Node) bool) *html.Node {
	for node := nextInOrder(n, scope); node != nil; node = nextInOrder(node, scope) {
		if predicate(node) {
			return node
		}
	}
	return nil
}

// nextInOrder steps a pre-order traversal bounded by scope.
func nextInOrder(n, scope *html.Node) *html.Node {
	if n.FirstChild != nil {
		return n.FirstChild
	}
	for node := n; node != nil && node != scope; node = node.Parent {
		if node.NextSibling != nil {
			return node.NextSibling
		}
	}
	return nil
}

// nodePath describes where n sits in the tree, for log context.
func nodePath(n *html.Node) string {
	var parts []string
	for node := n; node != nil && node.Type != html.DocumentNode; node = node.Parent {
		if node.Type != html.ElementNode {
			continue
		}
		idx := 1
		for s := node.PrevSibling; s != nil; s = s.PrevSibling {
			if s.Type == html.ElementNode && s.Data == node.Data {
				idx++
			}
		}
		parts = append(parts, fmt.Sprintf("%s[%d]", node.Data, idx))
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return "/" + strings.Join(parts, "/")
}
