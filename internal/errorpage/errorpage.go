// Package errorpage computes stable digests used to recognize soft-404
// pages: pages that respond with status 200 but are, in substance, a
// generic "not found" page whose content varies only in timestamps and
// embedded paths.
package errorpage

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// same canonicalization cascade as nmap's http.lua clean_404, applied in
// this exact order: clock-of-day and AM/PM tokens, epoch-ms timestamps,
// 8-digit date runs, delimited dates with a 4-digit year, 6-digit date
// runs, delimited dates with a 2-digit year, then absolute Unix and
// Windows paths.
var cleanupPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d?\d:?){2,3}`),
	regexp.MustCompile(`(?i)AM`),
	regexp.MustCompile(`(?i)PM`),
	regexp.MustCompile(`\d{13}`),
	regexp.MustCompile(`\d{8}`),
	regexp.MustCompile(`\d{4}-\d{2}-\d{2}`),
	regexp.MustCompile(`\d{4}/\d{2}/\d{2}`),
	regexp.MustCompile(`\d{2}-\d{2}-\d{4}`),
	regexp.MustCompile(`\d{2}/\d{2}/\d{4}`),
	regexp.MustCompile(`\d{6}`),
	regexp.MustCompile(`\d{2}-\d{2}-\d{2}`),
	regexp.MustCompile(`\d{2}/\d{2}/\d{2}`),
	regexp.MustCompile(`/[^ ]+`),
	regexp.MustCompile(`[a-zA-Z]:\\[^ ]+`),
}

// clean strips everything the cascade above flags and returns the
// remaining text, ready to be digested.
func clean(page string) string {
	for _, re := range cleanupPatterns {
		page = re.ReplaceAllString(page, "")
	}
	return page
}

// Digest returns the canonicalized MD5 digest of raw page content.
func Digest(body []byte) string {
	sum := md5.Sum([]byte(clean(string(body))))
	return hex.EncodeToString(sum[:])
}

// DigestText returns the canonicalized MD5 digest of the page's visible
// text only (HTML tags and their attributes stripped).
func DigestText(body []byte) string {
	return Digest([]byte(VisibleText(body)))
}

// VisibleText extracts the concatenation of all HTML text nodes, matching
// the behavior of stripping tags but keeping character data, the same
// role the source's HTMLParser-based stripper plays.
func VisibleText(body []byte) string {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return string(body)
	}
	var buf strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return buf.String()
}
