// Package fetch downloads release artifacts into the process work dir.
//
// Transient network failures retry with bounded exponential backoff.
// Client errors (4xx) do not: the URL is wrong, not the weather. Digest
// verification is deliberately outside this package so a checksum mismatch
// can never re-enter the retry loop.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v5"

	"toolforge/internal/execx"
)

// ErrUnretryable marks failures where retrying the same request cannot
// help (4xx statuses, malformed URLs).
var ErrUnretryable = errors.New("unretryable download failure")

// Client performs artifact downloads.
type Client struct {
	HTTP      *http.Client
	Log       execx.Logger
	UserAgent string
	MaxTries  uint
	// RetryInterval seeds the exponential backoff; tests shrink it.
	RetryInterval time.Duration
}

// New returns a Client with production defaults. timeout bounds a single
// attempt end to end.
func New(timeout time.Duration) *Client {
	return &Client{
		HTTP:          &http.Client{Timeout: timeout},
		Log:           execx.NopLogger{},
		UserAgent:     "toolforge/1.0",
		MaxTries:      3,
		RetryInterval: 500 * time.Millisecond,
	}
}

// Download fetches rawURL into destDir and returns the artifact path. The
// body is staged to a temp file and renamed into place, so a partial
// download never appears under the final name.
func (c *Client) Download(ctx context.Context, rawURL, destDir string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" {
		return "", fmt.Errorf("%w: parse url %q", ErrUnretryable, rawURL)
	}
	name := path.Base(parsed.Path)
	if name == "" || name == "/" || name == "." {
		name = "artifact"
	}
	dest := filepath.Join(destDir, name)

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("prepare download destination: %w", err)
	}

	bo := backoff.NewExponentialBackOff()
	if c.RetryInterval > 0 {
		bo.InitialInterval = c.RetryInterval
	}
	tries := c.MaxTries
	if tries == 0 {
		tries = 3
	}

	attempt := 0
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		if attempt > 1 {
			c.Log.Printf("retrying download (attempt %d): %s", attempt, rawURL)
		}
		return struct{}{}, c.attempt(ctx, rawURL, dest)
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(tries))
	if err != nil {
		return "", err
	}
	return dest, nil
}

func (c *Client) attempt(ctx context.Context, rawURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("%w: create request: %v", ErrUnretryable, err))
	}
	req.Header.Set("User-Agent", c.UserAgent)

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return backoff.Permanent(fmt.Errorf("%w: %s returned %s", ErrUnretryable, rawURL, resp.Status))
	default:
		return fmt.Errorf("download %s: unexpected status %s", rawURL, resp.Status)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(dest), "download-*.tmp")
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create temp file: %w", err))
	}
	tmpPath := tmpFile.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := io.Copy(tmpFile, resp.Body); err != nil {
		tmpFile.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		return backoff.Permanent(fmt.Errorf("promote download: %w", err))
	}
	return nil
}
