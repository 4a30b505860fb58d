// Package render drives one asset through the full pipeline: resolve
// nested inputs, open an isolated browser session, replay the action
// sequence, capture, and classify the result against the stored
// baseline. Every failure inside a render converts to an error outcome
// at this boundary; nothing escapes to the caller.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/usewebget/webget/browser"
	"github.com/usewebget/webget/geom"
	"github.com/usewebget/webget/history"
	"github.com/usewebget/webget/schema"
	"github.com/usewebget/webget/ssim"
	"github.com/usewebget/webget/store"
)

// MatchThreshold is the SSIM score above which a capture is considered
// unchanged and the baseline is left untouched.
const MatchThreshold = 0.99

// inputFanout bounds how many nested inputs render concurrently.
const inputFanout = 4

// webgetScheme marks URLs served by the local template route.
const webgetScheme = "webget://"

// SessionFactory opens a configured browser session.
type SessionFactory func(ctx context.Context, opts browser.SessionOpts) (browser.Session, error)

// CompareFunc scores two decoded images.
type CompareFunc func(a, b ssim.Image) ssim.Result

// Config wires a Pipeline.
type Config struct {
	// Browser supplies sessions unless NewSession overrides it.
	Browser *browser.Manager

	// Store holds baselines and scratch captures.
	Store store.Store

	// History records outcomes when set. Best-effort.
	History *history.Store

	// ServerURL is the externally resolvable base of the local server,
	// used to resolve the webget:// scheme, to hand nested-input
	// captures to parent pages, and to load template documents.
	ServerURL string

	// NewSession overrides session creation. Tests inject mocks here.
	NewSession SessionFactory

	// Compare overrides the similarity kernel. Defaults to ssim.Compare
	// with default options.
	Compare CompareFunc

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.NewSession == nil && c.Browser != nil {
		c.NewSession = c.Browser.NewSession
	}
	if c.Compare == nil {
		c.Compare = func(a, b ssim.Image) ssim.Result {
			return ssim.Compare(a, b, nil)
		}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Pipeline renders assets. Safe for concurrent use; each render owns its
// session exclusively.
type Pipeline struct {
	cfg Config
}

// New creates a Pipeline.
func New(cfg Config) *Pipeline {
	cfg.defaults()
	return &Pipeline{cfg: cfg}
}

// Render runs the full pipeline for one asset and records the outcome.
func (p *Pipeline) Render(ctx context.Context, asset *schema.Asset) Outcome {
	start := time.Now()
	out := p.render(ctx, asset, 0)

	if p.cfg.History != nil {
		input := asset.Input
		if input == "" {
			input = asset.URL
		}
		p.cfg.History.Append(ctx, history.Record{
			Input:    input,
			Status:   string(out.Status),
			SSIM:     out.SSIM,
			Path:     out.Path,
			Error:    out.Error,
			Duration: time.Since(start),
		})
	}
	return out
}

func (p *Pipeline) render(ctx context.Context, asset *schema.Asset, depth int) (out Outcome) {
	// The session layer reports failures as errors, but a panic inside
	// the automation stack must still settle this asset, not the batch.
	defer func() {
		if r := recover(); r != nil {
			p.cfg.Logger.Error("render: panic recovered", "url", asset.URL, "panic", r)
			out = Outcome{Status: StatusError, Error: fmt.Sprint(r)}
		}
	}()

	// Fast-fail before any browser resource is acquired.
	if err := asset.Validate(); err != nil {
		return errorOutcome(err)
	}

	target, errOut := p.resolveURL(ctx, asset, depth)
	if errOut != nil {
		return *errOut
	}

	sess, err := p.cfg.NewSession(ctx, browser.SessionOpts{
		Width:             asset.Width,
		Height:            asset.Height,
		DeviceScaleFactor: asset.DeviceScaleFactor,
		ColorScheme:       asset.ColorScheme,
		ReducedMotion:     asset.ReducedMotion,
		ForcedColors:      asset.ForcedColors,
		StorageState:      asset.StorageState,
		Headed:            asset.Headed,
	})
	if err != nil {
		return errorOutcome(err)
	}
	defer sess.Close()

	if err := sess.Goto(ctx, target); err != nil {
		return errorOutcome(err)
	}

	exec := &executor{sess: sess}
	for _, action := range asset.Actions {
		if err := exec.Execute(ctx, action); err != nil {
			return errorOutcome(err)
		}
	}

	img, err := p.capture(ctx, sess, asset, exec.crop)
	if err != nil {
		return errorOutcome(err)
	}

	return p.classify(ctx, asset, img)
}

// resolveURL expands the webget:// scheme, applies baseUrl, and renders
// nested inputs concurrently, substituting each child's path as a query
// parameter named by its key. All siblings settle before the first
// error (in sorted key order) is returned.
func (p *Pipeline) resolveURL(ctx context.Context, asset *schema.Asset, depth int) (string, *Outcome) {
	raw := asset.URL
	if strings.HasPrefix(raw, webgetScheme) {
		raw = p.cfg.ServerURL + "/" + strings.TrimPrefix(raw, webgetScheme)
	}

	u, err := url.Parse(raw)
	if err != nil {
		out := errorOutcome(fmt.Errorf("render: parse url %s: %w", asset.URL, err))
		return "", &out
	}
	if asset.BaseURL != "" && !u.IsAbs() {
		base, err := url.Parse(asset.BaseURL)
		if err != nil {
			out := errorOutcome(fmt.Errorf("render: parse baseUrl %s: %w", asset.BaseURL, err))
			return "", &out
		}
		u = base.ResolveReference(u)
	}

	if len(asset.Inputs) == 0 {
		return u.String(), nil
	}

	keys := make([]string, 0, len(asset.Inputs))
	for k := range asset.Inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	results := make([]Outcome, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(inputFanout)
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			results[i] = p.render(gctx, asset.Inputs[key], depth+1)
			if results[i].Status == StatusError {
				// Cancel gctx so in-flight siblings settle fast; Wait
				// still blocks until all of them return.
				return fmt.Errorf("input %s: %s", key, results[i].Error)
			}
			return nil
		})
	}
	_ = g.Wait()

	q := u.Query()
	for i, key := range keys {
		if results[i].Status == StatusError {
			return "", &results[i]
		}
		q.Set(key, results[i].Path)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// capture produces the final image bytes: a direct clipped screenshot,
// or a template composite where the raw capture is embedded into a frame
// document and re-shot from there.
func (p *Pipeline) capture(ctx context.Context, sess browser.Session, asset *schema.Asset, crop *geom.Rect) ([]byte, error) {
	if asset.Border != "" {
		rect := crop
		if rect == nil {
			w, h := sess.Viewport()
			rect = &geom.Rect{Width: float64(w), Height: float64(h)}
		}
		if err := sess.OverlayBorder(ctx, asset.Border, *rect); err != nil {
			return nil, err
		}
	}

	shot := browser.ShotOpts{
		Format:         asset.ImageType(),
		Quality:        asset.Quality,
		Clip:           crop,
		OmitBackground: asset.OmitBackground,
	}

	if asset.Template == "" {
		return sess.Screenshot(ctx, shot)
	}

	// Template compositing: park the raw capture in the store, open the
	// frame document pointing at it, size the page to the template's
	// bounds element, and take the final shot from the template page.
	raw, err := sess.Screenshot(ctx, shot)
	if err != nil {
		return nil, err
	}
	key := p.scratchKey(asset.ImageType())
	if err := p.cfg.Store.Put(ctx, key, raw); err != nil {
		return nil, err
	}

	tmpl, err := p.cfg.NewSession(ctx, browser.SessionOpts{
		DeviceScaleFactor: asset.DeviceScaleFactor,
		Headed:            asset.Headed,
	})
	if err != nil {
		return nil, err
	}
	defer tmpl.Close()

	turl := fmt.Sprintf("%s/templates/%s?src=%s&url=%s",
		p.cfg.ServerURL, asset.Template,
		url.QueryEscape(p.publicPath(key)), url.QueryEscape(asset.URL))
	if err := tmpl.Goto(ctx, turl); err != nil {
		return nil, err
	}

	bounds, err := tmpl.BoundingBox(ctx, "#bounds")
	if err != nil {
		return nil, err
	}
	if err := tmpl.SetViewport(ctx, int(bounds.Width), int(bounds.Height)); err != nil {
		return nil, err
	}

	return tmpl.Screenshot(ctx, browser.ShotOpts{
		Format:         asset.ImageType(),
		Quality:        asset.Quality,
		OmitBackground: true,
	})
}

func (p *Pipeline) scratchKey(t schema.ImageType) string {
	ext := "png"
	if t == schema.ImageTypeJPEG {
		ext = "jpg"
	}
	return "scratch/" + uuid.Must(uuid.NewV7()).String() + "." + ext
}

// publicPath converts a store key into a URL the browser and the CLI can
// fetch.
func (p *Pipeline) publicPath(key string) string {
	if p.cfg.ServerURL == "" {
		return key
	}
	return p.cfg.ServerURL + "/image?path=" + url.QueryEscape(key)
}
