// Package linkextract pulls linked resource URLs out of an HTML page,
// limited deliberately to script/img src and link href — the More
// discovery stage's only source of new probe targets, never full link
// crawling (an explicit non-goal).
package linkextract

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// fallback regexes mirror the source tool's raw src="..." scrape, kept
// alongside the HTML-parser walk and deduplicated against it (§9 open
// question c: the original unions both without deduping).
var fallbackPatterns = []*regexp.Regexp{
	regexp.MustCompile(`src="(.+?)"`),
	regexp.MustCompile(`src='(.+?)'`),
}

// Extract returns the deduplicated set of src/href values found in
// script, img, and link tags, plus the regex fallback scrape, skipping
// data: URLs.
func Extract(body []byte) []string {
	seen := make(map[string]struct{})

	doc, err := html.Parse(bytes.NewReader(body))
	if err == nil {
		var walk func(n *html.Node)
		walk = func(n *html.Node) {
			if n.Type == html.ElementNode {
				switch n.Data {
				case "script", "img":
					if src := attr(n, "src"); src != "" {
						seen[src] = struct{}{}
					}
				case "link":
					if href := attr(n, "href"); href != "" {
						seen[href] = struct{}{}
					}
				}
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
		}
		walk(doc)
	}

	for _, re := range fallbackPatterns {
		for _, m := range re.FindAllSubmatch(body, -1) {
			if len(m) > 1 {
				seen[string(m[1])] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(seen))
	for u := range seen {
		if strings.HasPrefix(u, "data:") {
			continue
		}
		out = append(out, u)
	}
	return out
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
