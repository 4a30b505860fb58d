// Package client is the HTTP client the CLI uses to talk to a running
// webget server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/usewebget/webget/render"
	"github.com/usewebget/webget/schema"
)

// ErrServerUnreachable wraps network-level failures so callers can tell
// "no server running" apart from a server-side error.
var ErrServerUnreachable = errors.New("client: server unreachable")

// Client talks to one webget server.
type Client struct {
	base string
	http *http.Client
}

// New creates a client for the server at base, e.g.
// "http://127.0.0.1:3637".
func New(base string) *Client {
	return &Client{
		base: base,
		// Renders hold the request open for the whole pipeline.
		http: &http.Client{Timeout: 5 * time.Minute},
	}
}

// Health reports whether the server answers its health check.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServerUnreachable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("client: health check returned %d", resp.StatusCode)
	}
	return nil
}

// Screenshot renders one asset on the server and returns its outcome.
func (c *Client) Screenshot(ctx context.Context, asset *schema.Asset) (render.Outcome, error) {
	body, err := json.Marshal(asset)
	if err != nil {
		return render.Outcome{}, fmt.Errorf("client: encode asset: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/screenshot", bytes.NewReader(body))
	if err != nil {
		return render.Outcome{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return render.Outcome{}, fmt.Errorf("%w: %v", ErrServerUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return render.Outcome{}, fmt.Errorf("client: screenshot returned %d: %s", resp.StatusCode, readError(resp.Body))
	}

	var out render.Outcome
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return render.Outcome{}, fmt.Errorf("client: decode outcome: %w", err)
	}
	return out, nil
}

// FetchImage downloads the capture behind an outcome path. The path may
// be a full URL produced by the server or a bare store key.
func (c *Client) FetchImage(ctx context.Context, path string) ([]byte, error) {
	target := path
	if u, err := url.Parse(path); err != nil || !u.IsAbs() {
		target = c.base + "/image?path=" + url.QueryEscape(path)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServerUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("client: image fetch returned %d: %s", resp.StatusCode, readError(resp.Body))
	}
	return io.ReadAll(resp.Body)
}

// Stop asks the server to shut down.
func (c *Client) Stop(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/stop", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServerUnreachable, err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("client: stop returned %d", resp.StatusCode)
	}
	return nil
}

// WaitHealthy polls the health endpoint until the server answers or ctx
// expires. Used after spawning the server in the background.
func (c *Client) WaitHealthy(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if err := c.Health(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrServerUnreachable, ctx.Err())
		case <-ticker.C:
		}
	}
}

func readError(r io.Reader) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(r).Decode(&body); err != nil || body.Error == "" {
		return "unknown error"
	}
	return body.Error
}
