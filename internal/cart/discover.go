package cart

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var ErrNoProductForm = errors.New("no product form with a selected variant")

// DiscoverVariantID finds the storefront's add-to-cart form and returns the
// variant id it would submit: the hidden id input first, then the id select.
func DiscoverVariantID(r io.Reader) (string, bool, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", false, fmt.Errorf("parse product page: %w", err)
	}

	form := findNode(doc, func(n *html.Node) bool {
		return n.DataAtom == atom.Form && strings.TrimRight(attr(n, "action"), "/") == "/cart/add"
	})
	if form == nil {
		return "", false, nil
	}

	input := findNode(form, func(n *html.Node) bool {
		return n.DataAtom == atom.Input && attr(n, "name") == "id" && strings.TrimSpace(attr(n, "value")) != ""
	})
	if input != nil {
		return strings.TrimSpace(attr(input, "value")), true, nil
	}

	sel := findNode(form, func(n *html.Node) bool {
		return n.DataAtom == atom.Select && attr(n, "name") == "id"
	})
	if sel == nil {
		return "", false, nil
	}
	if v := selectValue(sel); v != "" {
		return v, true, nil
	}
	return "", false, nil
}

// selectValue mirrors HTMLSelectElement.value: the selected option, else the
// first option.
func selectValue(sel *html.Node) string {
	var first *html.Node
	var selected *html.Node
	walk(sel, func(n *html.Node) {
		if n.DataAtom != atom.Option {
			return
		}
		if first == nil {
			first = n
		}
		if hasAttr(n, "selected") {
			selected = n
		}
	})

	opt := selected
	if opt == nil {
		opt = first
	}
	if opt == nil {
		return ""
	}
	if hasAttr(opt, "value") {
		return strings.TrimSpace(attr(opt, "value"))
	}
	return strings.TrimSpace(textContent(opt))
}

func findNode(root *html.Node, match func(*html.Node) bool) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) {
		if found == nil && n.Type == html.ElementNode && match(n) {
			found = n
		}
	})
	return found
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	})
	return b.String()
}
