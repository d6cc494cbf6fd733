package fetcher

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/wiggo/wiggo/internal/fingerprint"
	"github.com/wiggo/wiggo/internal/ratelimit"
	"github.com/wiggo/wiggo/internal/urlutil"
)

// ErrUnknownHost is returned by DetectRedirect when the target cannot be
// resolved or connected to at all.
type ErrUnknownHost struct {
	URL string
	Err error
}

func (e *ErrUnknownHost) Error() string {
	return fmt.Sprintf("unknown host: %s: %v", e.URL, e.Err)
}

func (e *ErrUnknownHost) Unwrap() error { return e.Err }

// ResponseCache is the subset of internal/cache.Cache the requester
// needs; declared here (rather than imported) so internal/cache, which
// already depends on this package for the Response type, does not form
// an import cycle.
type ResponseCache interface {
	Get(url string) (*Response, bool)
	Contains(url string) bool
	Put(url string, resp *Response)
}

// Requester is the concurrent, scope-restricted HTTP client described in
// §4.3: it schedules probes in fixed-size worker-pool batches, enforces
// the HEAD/GET optimization, and drops anything that would leave scope.
type Requester struct {
	client    *http.Client
	transport *http.Transport

	Threads   int
	UserAgent string
	Prefix    string

	limiter *ratelimit.HostLimiter
	cache   ResponseCache

	// scopeHost is the (possibly redirect-updated) target host; probes
	// resolving to any other host are dropped silently.
	scopeHost string
}

// New creates a Requester. cache and limiter may be shared across stages
// of the same scan; limiter may be nil for unlimited pacing.
func New(threads int, userAgent, prefix string, timeout time.Duration, cache ResponseCache, limiter *ratelimit.HostLimiter) *Requester {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig:       &tls.Config{},
	}

	r := &Requester{
		Threads:   threads,
		UserAgent: userAgent,
		Prefix:    prefix,
		limiter:   limiter,
		cache:     cache,
		transport: transport,
	}

	r.client = &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return r
}

// SetProxy configures an HTTP(S) proxy for all subsequent requests.
func (r *Requester) SetProxy(proxyURL string) error {
	if proxyURL == "" {
		return nil
	}
	u, err := url.Parse(proxyURL)
	if err != nil {
		return fmt.Errorf("fetcher: invalid proxy %q: %w", proxyURL, err)
	}
	r.transport.Proxy = http.ProxyURL(u)
	return nil
}

// SetScope sets the host probes are restricted to.
func (r *Requester) SetScope(host string) {
	r.scopeHost = host
}

// Close releases idle connections.
func (r *Requester) Close() {
	r.transport.CloseIdleConnections()
}

// DetectRedirect issues a GET for rawURL and reports whether the final
// scheme+host differs from the original, populating the cache for both
// the original and resolved base URLs. Unlike a probe, this follows a
// redirect to any origin — its whole job is to learn about exactly that
// crossing before the orchestrator decides whether to proceed.
func (r *Requester) DetectRedirect(ctx context.Context, rawURL string) (redirected bool, newBase string, err error) {
	orig, err := url.Parse(rawURL)
	if err != nil {
		return false, "", &ErrUnknownHost{URL: rawURL, Err: err}
	}

	resp, finalURL, err := r.followAnyRedirect(ctx, rawURL, 10)
	if err != nil {
		return false, "", &ErrUnknownHost{URL: rawURL, Err: err}
	}

	final, _ := url.Parse(finalURL)
	origLoc := orig.Scheme + "://" + orig.Host
	newLoc := final.Scheme + "://" + final.Host

	r.cache.Put(newLoc, resp)
	r.cache.Put(rawURL, resp)

	return origLoc != newLoc, newLoc, nil
}

// followAnyRedirect follows redirects regardless of origin, unlike
// doFollowingRedirects which probes use and which aborts on a
// cross-origin hop per §4.3 rule 5.
func (r *Requester) followAnyRedirect(ctx context.Context, startURL string, maxHops int) (*Response, string, error) {
	current := startURL
	for hop := 0; hop <= maxHops; hop++ {
		raw, err := r.rawDo(ctx, current, http.MethodGet)
		if err != nil {
			return nil, "", err
		}

		if raw.resp.StatusCode >= 300 && raw.resp.StatusCode < 400 {
			loc := raw.resp.Header.Get("Location")
			raw.resp.Body.Close()
			if loc == "" {
				return r.buildResponse(current, raw)
			}
			next, err := url.Parse(loc)
			if err != nil {
				return nil, "", fmt.Errorf("invalid redirect location: %w", err)
			}
			current = parsedURL(current).ResolveReference(next).String()
			continue
		}

		return r.buildResponse(current, raw)
	}
	return nil, "", fmt.Errorf("max redirects exceeded")
}

// ProbeResult pairs a fingerprint group with the response obtained for
// it (nil if the probe produced no usable response).
type ProbeResult struct {
	Group    fingerprint.Group
	Response *Response
}

// Run schedules one probe per group over a fixed-size worker pool and
// returns every result once all probes have completed. Order of results
// is not guaranteed to match the input order.
//
// alwaysGET, set by the ErrorPage stage, suppresses the HEAD
// pre-check so a genuinely-404 URL still gets GET'd and digested —
// otherwise a group whose fingerprints default to code=200 would see a
// 404 HEAD and never fetch the body needed to compute md5_404.
func (r *Requester) Run(ctx context.Context, groups []fingerprint.Group, alwaysGET bool) []ProbeResult {
	threads := r.Threads
	if threads < 1 {
		threads = 1
	}

	jobs := make(chan fingerprint.Group)
	results := make([]ProbeResult, 0, len(groups))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < threads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for g := range jobs {
				resp := r.probe(ctx, g, alwaysGET)
				mu.Lock()
				results = append(results, ProbeResult{Group: g, Response: resp})
				mu.Unlock()
			}
		}()
	}

	for _, g := range groups {
		jobs <- g
	}
	close(jobs)
	wg.Wait()

	return results
}

// probe implements the per-group rules from §4.3.
func (r *Requester) probe(ctx context.Context, g fingerprint.Group, alwaysGET bool) *Response {
	targetURL, err := url.Parse(g.URL)
	if err != nil {
		return nil
	}
	// Relative URLs are resolved against the scope host over plain http;
	// the target's own scheme is not consulted. Absolute fingerprint URLs
	// keep the scheme they carry.
	if !targetURL.IsAbs() {
		targetURL.Scheme = "http"
		targetURL.Host = r.scopeHost
		if r.Prefix != "" {
			targetURL.Path = r.Prefix + targetURL.Path
		}
	}

	if !urlutil.IsSameHost(targetURL.Host, r.scopeHost) {
		return nil // scope guard: drop silently
	}
	completeURL := targetURL.String()

	if cached, ok := r.cache.Get(completeURL); ok {
		return cached
	}

	if err := r.limiter.Wait(ctx, targetURL.Host); err != nil {
		return nil
	}

	if !alwaysGET && g.CanUseHEAD() {
		headResp, _, err := r.do(ctx, completeURL, http.MethodHead)
		if err != nil {
			return nil
		}
		if headResp.StatusCode != http.StatusOK {
			return nil
		}
	}

	resp, finalURL, err := r.doFollowingRedirects(ctx, completeURL, http.MethodGet, 10)
	if err != nil {
		return nil
	}

	r.cache.Put(completeURL, resp)
	if finalURL != completeURL {
		r.cache.Put(finalURL, resp)
	}
	return resp
}

// doFollowingRedirects follows only same-origin redirects, aborting with
// an error the moment a redirect would leave the original host.
func (r *Requester) doFollowingRedirects(ctx context.Context, startURL, method string, maxHops int) (*Response, string, error) {
	origin, err := url.Parse(startURL)
	if err != nil {
		return nil, "", err
	}

	current := startURL
	for hop := 0; hop <= maxHops; hop++ {
		raw, err := r.rawDo(ctx, current, method)
		if err != nil {
			return nil, "", err
		}

		if raw.resp.StatusCode >= 300 && raw.resp.StatusCode < 400 {
			loc := raw.resp.Header.Get("Location")
			raw.resp.Body.Close()
			if loc == "" {
				return r.buildResponse(current, raw)
			}
			next, err := url.Parse(loc)
			if err != nil {
				return nil, "", fmt.Errorf("invalid redirect location: %w", err)
			}
			resolved := parsedURL(current).ResolveReference(next)
			if resolved.Scheme != origin.Scheme || !urlutil.IsSameHost(resolved.Host, origin.Host) {
				return nil, "", fmt.Errorf("cross-origin redirect to %s", resolved.Host)
			}
			current = resolved.String()
			continue
		}

		return r.buildResponse(current, raw)
	}
	return nil, "", fmt.Errorf("max redirects exceeded")
}

func parsedURL(raw string) *url.URL {
	u, _ := url.Parse(raw)
	return u
}

type rawResponse struct {
	resp *http.Response
}

func (r *Requester) rawDo(ctx context.Context, rawURL, method string) (*rawResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", r.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	return &rawResponse{resp: resp}, nil
}

func (r *Requester) buildResponse(finalURL string, raw *rawResponse) (*Response, string, error) {
	defer raw.resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(raw.resp.Body, 10*1024*1024))
	if err != nil {
		return nil, "", err
	}

	u, _ := url.Parse(finalURL)
	resp := NewResponse(finalURL, u.Scheme, u.Host, raw.resp.StatusCode, raw.resp.Status, raw.resp.Header, body)
	return resp, finalURL, nil
}

// do is a single non-redirect-following request, used for HEAD checks.
func (r *Requester) do(ctx context.Context, rawURL, method string) (*http.Response, string, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", r.UserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	resp.Body.Close()
	return resp, rawURL, nil
}
