// Package fetch retrieves portal pages and downloads lot attachments over HTTP.
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
	"regexp"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"go.uber.org/zap"
)

// DefaultTimeout is the default timeout for HTTP requests.
const DefaultTimeout = 60 * time.Second

// ErrNetwork matches every *NetworkError.
var ErrNetwork = errors.New("network error")

// NetworkError reports a failed request. StatusCode is 0 when no response was received.
type NetworkError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrNetwork) true for any NetworkError.
func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// Client performs GET requests with a shared timeout and user agent.
type Client struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	logger    *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the timeout for HTTP requests.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithHTTPClient replaces the underlying http.Client. WithTimeout is ignored when set.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a new Client.
func NewClient(opts ...Option) *Client {
	c := &Client{timeout: DefaultTimeout, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: c.timeout}
	}
	return c
}

// get issues the request and returns the response when the status is 200.
func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &NetworkError{URL: rawURL, Err: err}
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &NetworkError{URL: rawURL, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &NetworkError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	return resp, nil
}

// Fetch returns the body of the page at rawURL.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := c.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{URL: rawURL, Err: err}
	}
	return body, nil
}

// Download saves the body of rawURL into dir under the name suggested by the Content-Disposition
// header, or the last segment of the URL path. The file appears atomically once the body is
// complete; an existing file with that name is replaced.
// It returns the path written.
func (c *Client) Download(ctx context.Context, rawURL, dir string) (string, error) {
	resp, err := c.get(ctx, rawURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	name, ok := FilenameFromDisposition(resp.Header.Get("Content-Disposition"))
	if !ok {
		name = filenameFromURL(rawURL)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	target := filepath.Join(dir, name)

	out, err := renameio.NewPendingFile(target, renameio.WithPermissions(0644))
	if err != nil {
		return "", fmt.Errorf("create %s: %w", target, err)
	}
	defer out.Cleanup()
	n, err := io.Copy(out, resp.Body)
	if err == nil {
		err = out.CloseAtomicallyReplace()
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", &NetworkError{URL: rawURL, Err: err}
	}
	c.logger.Debug("downloaded file", zap.String("url", rawURL), zap.String("path", target), zap.Int64("bytes", n))
	return target, nil
}

var (
	filenameStarRe = regexp.MustCompile(`(?i)filename\*=(?:UTF-8'[^']*')?([^;]+)`)
	filenameRe     = regexp.MustCompile(`(?i)filename=(?:UTF-8'')?([^;]+)`)
)

// FilenameFromDisposition parses the file name out of a Content-Disposition header value.
// The RFC 5987 filename* form wins over filename. Quotes are trimmed and percent-escapes decoded.
func FilenameFromDisposition(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	var raw string
	if m := filenameStarRe.FindStringSubmatch(header); m != nil {
		raw = m[1]
	} else if m := filenameRe.FindStringSubmatch(header); m != nil {
		raw = m[1]
	} else {
		return "", false
	}
	raw = strings.Trim(strings.TrimSpace(raw), `"`)
	if unescaped, err := url.PathUnescape(raw); err == nil {
		raw = unescaped
	}
	name := safeName(raw)
	return name, name != ""
}

func filenameFromURL(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	name := path.Base(strings.TrimRight(p, "/"))
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	if name = safeName(name); name == "" {
		return "download"
	}
	return name
}

// safeName strips any directory part so the file stays inside the download directory.
func safeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return name
}
