package stage

import (
	"context"
	"net"
)

// IPStage resolves the target hostname to its first reported address.
type IPStage struct{}

func (IPStage) Name() string { return "ip" }

func (IPStage) Run(ctx context.Context, sc *ScanContext) error {
	host := sc.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	addrs, err := net.DefaultResolver.LookupHost(ctx, host)
	if err != nil || len(addrs) == 0 {
		return nil
	}
	sc.Results.SiteInfo.IP = addrs[0]
	return nil
}
