// Package matcher evaluates fingerprints against fetched responses: the
// four match kinds (md5, string, regex, header) plus the 404-class gate
// that keeps fingerprints scoped to the status they expect.
package matcher

import (
	"regexp"
	"strings"

	"github.com/wiggo/wiggo/internal/fetcher"
	"github.com/wiggo/wiggo/internal/fingerprint"
)

// Matcher evaluates fingerprints against responses. ErrorPages is the
// single error-page digest set: the ErrorPage discovery stage fills it
// and every later status-gate check reads it; no other method reads a
// separate copy (§9 open question b).
type Matcher struct {
	ErrorPages map[string]struct{}
}

// New creates a Matcher with an empty error-page set.
func New() *Matcher {
	return &Matcher{ErrorPages: make(map[string]struct{})}
}

// Match is a matched fingerprint, carrying its (possibly back-filled)
// URL and, for regex matches with a %s placeholder, the substituted
// output string.
type Match struct {
	Fingerprint *fingerprint.Fingerprint
	URL         string
	Output      string
}

// checkPage implements the §4.4 status gate.
func (m *Matcher) checkPage(resp *fetcher.Response, fp *fingerprint.Fingerprint) bool {
	_, isErrorDigest := m.ErrorPages[resp.MD5404]
	is404 := resp.StatusCode == 404 || isErrorDigest

	if fp.Code.Any {
		return true
	}
	fpIs404 := fp.Code.Value == 404
	// XOR: fail if exactly one of (is404, fpIs404) holds.
	return is404 == fpIs404
}

// GetResult evaluates every fingerprint in fps against response and
// returns every one that matched.
func (m *Matcher) GetResult(fps []*fingerprint.Fingerprint, resp *fetcher.Response) []Match {
	if resp == nil {
		return nil
	}

	isImage := resp.IsImage()

	var matches []Match
	for _, fp := range fps {
		if !m.checkPage(resp, fp) {
			continue
		}
		if fp.Type == "" {
			continue
		}

		var match *Match
		switch {
		case fp.Header != "":
			match = m.matchHeader(fp, resp)
		case fp.Type == fingerprint.KindMD5:
			match = m.matchMD5(fp, resp.MD5)
		case fp.Type == fingerprint.KindString && !isImage:
			match = m.matchString(fp, resp.Body)
		case fp.Type == fingerprint.KindRegex && !isImage:
			match = m.matchRegex(fp, resp.Body)
		}

		if match == nil {
			continue
		}
		if match.URL == "" {
			match.URL = resp.URL
		}
		matches = append(matches, *match)
	}
	return matches
}

func (m *Matcher) matchMD5(fp *fingerprint.Fingerprint, digest string) *Match {
	if fp.Match != digest {
		return nil
	}
	return &Match{Fingerprint: fp, URL: fp.URL, Output: fp.Output}
}

func (m *Matcher) matchString(fp *fingerprint.Fingerprint, body []byte) *Match {
	if !strings.Contains(string(body), fp.Match) {
		return nil
	}
	return &Match{Fingerprint: fp, URL: fp.URL, Output: fp.Output}
}

func (m *Matcher) matchRegex(fp *fingerprint.Fingerprint, body []byte) *Match {
	re, err := regexp.Compile(fp.Match)
	if err != nil {
		return nil
	}
	found := re.FindSubmatch(body)
	if found == nil {
		return nil
	}
	output := fp.Output
	if strings.Contains(output, "%s") && len(found) > 1 {
		output = strings.Replace(output, "%s", string(found[1]), 1)
	}
	return &Match{Fingerprint: fp, URL: fp.URL, Output: output}
}

// matchHeader dispatches to the nested string/regex match against a
// header value, treating the value as the "body".
func (m *Matcher) matchHeader(fp *fingerprint.Fingerprint, resp *fetcher.Response) *Match {
	want := strings.ToLower(fp.Header)
	for name, values := range resp.Headers {
		if strings.ToLower(name) != want {
			continue
		}
		value := strings.Join(values, ", ")
		switch fp.Type {
		case fingerprint.KindString:
			return m.matchString(fp, []byte(value))
		case fingerprint.KindRegex:
			return m.matchRegex(fp, []byte(value))
		}
	}
	return nil
}
