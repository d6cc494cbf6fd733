// Package fetcher implements the concurrent, scope-restricted HTTP
// requester: group-based probing with HEAD/GET optimization, same-origin
// redirect following, and cache population.
package fetcher

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/wiggo/wiggo/internal/errorpage"
)

const idChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = idChars[int(b[i])%len(idChars)]
	}
	return string(b)
}

// Response captures everything the matcher and discovery stages need
// from one fetched page, gob-encodable so it can be persisted in the
// on-disk cache.
type Response struct {
	URL        string
	Scheme     string
	Host       string
	StatusCode int
	StatusText string
	Headers    http.Header
	Body       []byte

	// MD5 is the digest of the raw body bytes.
	MD5 string
	// MD5404 is the canonicalized-page digest used for soft-404 detection.
	MD5404 string
	// MD5404Text is the same canonicalization over visible text only.
	MD5404Text string

	// ID is a random 16-char identifier, stable for the response's
	// lifetime, used to de-duplicate cache entries that alias the same
	// underlying page (e.g. a URL and its post-redirect URL).
	ID string

	// CrawledResponse is set when a More-stage fetch produced this
	// response, so later More-stage passes skip re-parsing it.
	CrawledResponse bool
}

// NewResponse builds a Response from raw HTTP metadata and body, computing
// all three digests once, at construction, per the data model invariant.
func NewResponse(rawURL, scheme, host string, status int, statusText string, headers http.Header, body []byte) *Response {
	return &Response{
		URL:        rawURL,
		Scheme:     scheme,
		Host:       host,
		StatusCode: status,
		StatusText: statusText,
		Headers:    headers,
		Body:       body,
		MD5:        md5Hex(body),
		MD5404:     errorpage.Digest(body),
		MD5404Text: errorpage.DigestText(body),
		ID:         randomID(),
	}
}

// IsImage reports whether this response's Content-Type indicates an
// image, or is absent — the conservative default the matcher uses to
// skip string/regex matching.
func (r *Response) IsImage() bool {
	ct := r.Headers.Get("Content-Type")
	if ct == "" {
		return true
	}
	return len(ct) >= 6 && ct[:6] == "image/"
}

func md5Hex(body []byte) string {
	sum := md5.Sum(body)
	return hex.EncodeToString(sum[:])
}
