// Package markup finds viewer mounts in host page markup: elements carrying
// a data-pdf-url attribute.
package markup

import (
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	URLAttr   = "data-pdf-url"
	WidthAttr = "data-pdf-width"
)

// Mount is one element that hosts a viewer.
type Mount struct {
	// URL is the document address, resolved against the page when a base
	// was given.
	URL   string
	ID    string
	Tag   string
	Width int
}

// Find parses an HTML document and returns its mounts in document order.
// When base is not empty, relative document URLs are resolved against it
// and against the page's <base href>.
func Find(r io.Reader, base string) ([]Mount, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("markup: parse: %w", err)
	}
	var baseURL *url.URL
	if base != "" {
		if baseURL, err = url.Parse(base); err != nil {
			return nil, fmt.Errorf("markup: base url: %w", err)
		}
	}
	var mounts []Mount
	walk(doc, &baseURL, &mounts)
	return mounts, nil
}

// FindString is Find over a string.
func FindString(source, base string) ([]Mount, error) {
	return Find(strings.NewReader(source), base)
}

func walk(n *html.Node, base **url.URL, mounts *[]Mount) {
	if n.Type == html.ElementNode {
		if n.DataAtom == atom.Base && *base != nil {
			if href, ok := attr(n, "href"); ok {
				if u, err := (*base).Parse(href); err == nil {
					*base = u
				}
			}
		}
		if raw, ok := attr(n, URLAttr); ok && strings.TrimSpace(raw) != "" {
			*mounts = append(*mounts, mount(n, strings.TrimSpace(raw), *base))
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, base, mounts)
	}
}

func mount(n *html.Node, raw string, base *url.URL) Mount {
	m := Mount{URL: raw, Tag: n.Data}
	m.ID, _ = attr(n, "id")
	if base != nil {
		if u, err := base.Parse(raw); err == nil {
			m.URL = u.String()
		}
	}
	if w, ok := attr(n, WidthAttr); ok {
		if v, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(w), "px")); err == nil && v > 0 {
			m.Width = v
		}
	}
	return m
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}
