package stage

import (
	"context"
	"regexp"
	"strings"

	"github.com/wiggo/wiggo/internal/fingerprint"
)

var titlePattern = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)

// TitleStage fetches the site root and extracts the page title.
type TitleStage struct{}

func (TitleStage) Name() string { return "title" }

func (TitleStage) Run(ctx context.Context, sc *ScanContext) error {
	probes := sc.Requester.Run(ctx, []fingerprint.Group{{URL: "/"}}, true)
	if len(probes) == 0 || probes[0].Response == nil {
		return nil
	}
	resp := probes[0].Response
	sc.RootMD5Text = resp.MD5404Text

	if m := titlePattern.FindSubmatch(resp.Body); m != nil {
		sc.Results.SiteInfo.Title = strings.TrimSpace(string(m[1]))
	}
	return nil
}
