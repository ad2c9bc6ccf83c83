/*
Package publish creates hosted releases on GitHub and GitLab.
*/
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/oarkflow/releaseit/internal/config"
)

// Release describes the hosted release to create.
type Release struct {
	Tag        string
	Name       string
	Notes      string
	Version    string
	Draft      bool
	PreRelease bool
	Assets     []string
}

// Publisher creates a hosted release and returns its URL.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, rel Release) (string, error)
}

// Option configures a publisher.
type Option func(*client)

// WithBaseURL overrides the API endpoint, e.g. for self-hosted instances.
func WithBaseURL(apiURL string) Option {
	return func(c *client) { c.apiURL = strings.TrimSuffix(apiURL, "/") }
}

// WithUploadURL overrides the asset upload endpoint.
func WithUploadURL(uploadURL string) Option {
	return func(c *client) { c.uploadURL = strings.TrimSuffix(uploadURL, "/") }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) { c.http = hc }
}

// WithToken sets the token instead of reading it from the environment.
func WithToken(token string) Option {
	return func(c *client) { c.token = token }
}

type client struct {
	http      *http.Client
	apiURL    string
	uploadURL string
	token     string
	header    func(req *http.Request, token string)
}

func newClient(cfg config.ReleaseTarget, opts []Option) *client {
	c := &client{
		http:  &http.Client{Timeout: 60 * time.Second},
		token: os.Getenv(cfg.TokenRef),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do sends a request and decodes a JSON response into out when non-nil.
func (c *client) do(ctx context.Context, method, url string, body io.Reader, contentType string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if f, ok := body.(*os.File); ok {
		if stat, err := f.Stat(); err == nil {
			req.ContentLength = stat.Size()
		}
	}
	c.header(req, c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, fmt.Errorf("%s %s returned status %d: %s", method, url, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func (c *client) doJSON(ctx context.Context, method, url string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	return c.do(ctx, method, url, body, "application/json", out)
}

// ResolveAssets expands glob patterns relative to dir. Patterns matching
// nothing are logged and skipped.
func ResolveAssets(dir string, patterns []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(dir, pattern)
		}
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid asset pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			log.Warn("Asset pattern matched no files", "pattern", pattern)
		}
		for _, m := range matches {
			if info, err := os.Stat(m); err != nil || info.IsDir() || seen[m] {
				continue
			}
			seen[m] = true
			files = append(files, m)
		}
	}
	return files, nil
}

func contentType(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}
