package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/mod/semver"

	"github.com/oszuidwest/zwfm-ducker/internal/types"
	"github.com/oszuidwest/zwfm-ducker/internal/util"
)

const (
	githubRepo           = "oszuidwest/zwfm-ducker"
	versionCheckInterval = 24 * time.Hour
	versionCheckDelay    = 30 * time.Second // Delay before first check to keep startup quiet
	versionCheckTimeout  = 30 * time.Second // HTTP request timeout
	versionMaxRetries    = 3                // Max attempts per check cycle
	versionRetryDelay    = 1 * time.Minute  // First delay between attempts
	versionRetryMaxDelay = 10 * time.Minute
)

// VersionChecker checks for new releases and reports update availability. It is safe for concurrent use.
type VersionChecker struct {
	client     *http.Client
	releaseURL string
	retryDelay time.Duration

	mu     sync.RWMutex
	latest string
	etag   string // For conditional requests (304 Not Modified)
}

// NewVersionChecker returns a VersionChecker for the project's release feed.
// Call Run to start checking.
func NewVersionChecker() *VersionChecker {
	return &VersionChecker{
		client:     &http.Client{Timeout: versionCheckTimeout},
		releaseURL: "https://api.github.com/repos/" + githubRepo + "/releases/latest",
		retryDelay: versionRetryDelay,
	}
}

// Run checks for updates once after a short delay and then daily until ctx is cancelled.
func (vc *VersionChecker) Run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in version checker", "panic", r)
		}
	}()

	select {
	case <-time.After(versionCheckDelay):
		vc.checkWithRetry(ctx)
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(versionCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			vc.checkWithRetry(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// checkWithRetry performs the version check, doubling the delay between failed
// attempts up to versionRetryMaxDelay.
func (vc *VersionChecker) checkWithRetry(ctx context.Context) {
	delay := vc.retryDelay
	for attempt := 1; ; attempt++ {
		if vc.check(ctx) {
			return
		}
		if attempt == versionMaxRetries {
			slog.Debug("version check failed, giving up until next cycle", "attempts", attempt)
			return
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
		delay = min(2*delay, versionRetryMaxDelay)
	}
}

// githubRelease represents a release with version and status information.
type githubRelease struct {
	TagName    string `json:"tag_name"`
	Draft      bool   `json:"draft"`
	Prerelease bool   `json:"prerelease"`
}

// check retrieves the latest release and reports whether the check is settled.
// It returns false only for failures worth retrying.
func (vc *VersionChecker) check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeoutCause(ctx, versionCheckTimeout, errors.New("release feed request timeout"))
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, vc.releaseURL, http.NoBody)
	if err != nil {
		return false
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "zwfm-ducker/"+Version)

	vc.mu.RLock()
	etag := vc.etag
	vc.mu.RUnlock()
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := vc.client.Do(req)
	if err != nil {
		slog.Debug("version check request failed", "error", err)
		return false
	}
	defer resp.Body.Close() //nolint:errcheck // Read-only response, close error not actionable

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotModified, resp.StatusCode == http.StatusNotFound:
		return true
	case resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusTooManyRequests:
		// Rate limited
		return false
	case resp.StatusCode >= 500:
		return false
	default:
		return true
	}

	var release githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return false
	}
	if release.Draft || release.Prerelease {
		return true
	}
	if release.TagName == "" {
		return false
	}

	vc.mu.Lock()
	vc.latest = normalizeVersion(release.TagName)
	if newEtag := resp.Header.Get("ETag"); newEtag != "" {
		vc.etag = newEtag
	}
	vc.mu.Unlock()

	slog.Debug("version check complete", "latest", release.TagName)
	return true
}

// Info returns the current version info for status responses.
func (vc *VersionChecker) Info() types.VersionInfo {
	vc.mu.RLock()
	defer vc.mu.RUnlock()

	current := normalizeVersion(Version)
	info := types.VersionInfo{
		Current:   current,
		Latest:    vc.latest,
		Commit:    Commit,
		BuildTime: util.FormatHumanTime(BuildTime),
	}

	if vc.latest != "" && current != "dev" && current != "unknown" {
		info.UpdateAvail = isNewerVersion(vc.latest, current)
	}

	return info
}

// normalizeVersion returns a version string without the leading "v".
func normalizeVersion(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "v")
}

// isNewerVersion reports whether latest is newer than current.
func isNewerVersion(latest, current string) bool {
	return semver.Compare("v"+normalizeVersion(latest), "v"+normalizeVersion(current)) > 0
}
