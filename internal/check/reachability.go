package check

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ReachabilityConfig tunes the target URL checker.
type ReachabilityConfig struct {
	// Timeout bounds each request. Default: 7 seconds.
	Timeout time.Duration

	// SubPath is an optional path appended to the target URL before probing.
	SubPath string

	// AcceptRedirects treats 3xx as healthy in addition to 2xx.
	AcceptRedirects bool
}

// ReachabilityChecker issues a request against the bot's target URL. It tries
// a cheap HEAD first and falls back to a single GET when HEAD is ambiguous
// (method not supported) or errors out.
type ReachabilityChecker struct {
	cfg        ReachabilityConfig
	httpClient *http.Client
}

// NewReachabilityChecker creates a reachability checker.
func NewReachabilityChecker(cfg ReachabilityConfig) *ReachabilityChecker {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 7 * time.Second
	}
	return &ReachabilityChecker{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
			// Redirects are classified, not followed, so 3xx handling stays
			// a policy decision.
			CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Check probes the target address.
func (c *ReachabilityChecker) Check(ctx context.Context, target string) Result {
	if target == "" {
		return fail("target url not set", 0)
	}
	probeURL, err := c.buildURL(target)
	if err != nil {
		return fail(fmt.Sprintf("invalid target url: %v", err), 0)
	}

	status, err := c.request(ctx, http.MethodHead, probeURL)
	if err != nil || status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented {
		// One fallback attempt with the expensive verb.
		status, err = c.request(ctx, http.MethodGet, probeURL)
	}
	if err != nil {
		return fail(fmt.Sprintf("unreachable: %v", err), 0)
	}

	if c.healthyStatus(status) {
		return ok(fmt.Sprintf("HTTP %d", status), status)
	}
	return fail(fmt.Sprintf("HTTP %d", status), status)
}

func (c *ReachabilityChecker) healthyStatus(status int) bool {
	if status >= 200 && status < 300 {
		return true
	}
	return c.cfg.AcceptRedirects && status >= 300 && status < 400
}

func (c *ReachabilityChecker) buildURL(target string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("missing scheme or host in %q", target)
	}
	if c.cfg.SubPath != "" {
		u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(c.cfg.SubPath, "/")
	}
	return u.String(), nil
}

func (c *ReachabilityChecker) request(ctx context.Context, method, probeURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, probeURL, http.NoBody)
	if err != nil {
		return 0, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}
