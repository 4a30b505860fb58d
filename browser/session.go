package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/usewebget/webget/geom"
	"github.com/usewebget/webget/schema"
)

// Session is the capability surface one render drives: navigate,
// interact, measure, capture. Implementations are single-page and not
// safe for concurrent use; the pipeline runs actions strictly in order.
type Session interface {
	Goto(ctx context.Context, url string) error
	Click(ctx context.Context, opts ClickOpts) error
	Hover(ctx context.Context, selector, frame string) error
	Fill(ctx context.Context, selector, frame, text string) error
	Scroll(ctx context.Context, selector string, offset float64) error
	BoundingBox(ctx context.Context, selector string) (geom.Rect, error)
	MaxScrollExtent(ctx context.Context, selector string) (float64, error)
	SetViewport(ctx context.Context, width, height int) error
	Viewport() (width, height int)
	OverlayBorder(ctx context.Context, border string, rect geom.Rect) error
	Screenshot(ctx context.Context, opts ShotOpts) ([]byte, error)
	Close() error
}

// ClickOpts parameterises one click.
type ClickOpts struct {
	Selector      string
	FrameSelector string
	ClickCount    int
	Button        string
	Position      *schema.Point
}

// ShotOpts parameterises one capture.
type ShotOpts struct {
	Format         schema.ImageType
	Quality        int
	Clip           *geom.Rect
	OmitBackground bool
}

// SessionOpts configures a new isolated browser context.
type SessionOpts struct {
	Width             int
	Height            int
	DeviceScaleFactor float64
	ColorScheme       string
	ReducedMotion     string
	ForcedColors      string
	StorageState      *schema.StorageState
	Headed            bool
}

// NewSession opens an isolated incognito context and page configured
// from opts. The caller must Close the session on every exit path.
func (m *Manager) NewSession(ctx context.Context, opts SessionOpts) (Session, error) {
	b, err := m.acquire(opts.Headed)
	if err != nil {
		return nil, err
	}

	incog, err := b.Incognito()
	if err != nil {
		return nil, fmt.Errorf("browser: incognito context: %w", err)
	}

	s := &rodSession{
		cfg:    m.cfg,
		incog:  incog,
		width:  opts.Width,
		height: opts.Height,
		dsf:    opts.DeviceScaleFactor,
	}
	if s.width <= 0 {
		s.width = schema.DefaultWidth
	}
	if s.height <= 0 {
		s.height = schema.DefaultHeight
	}
	if s.dsf <= 0 {
		s.dsf = 1
	}

	if err := s.open(ctx, opts); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

type rodSession struct {
	cfg    Config
	incog  *rod.Browser
	page   *rod.Page
	width  int
	height int
	dsf    float64
}

func (s *rodSession) open(ctx context.Context, opts SessionOpts) error {
	if ss := opts.StorageState; ss != nil && len(ss.Cookies) > 0 {
		params := make([]*proto.NetworkCookieParam, 0, len(ss.Cookies))
		for _, c := range ss.Cookies {
			params = append(params, &proto.NetworkCookieParam{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				Expires:  proto.TimeSinceEpoch(c.Expires),
				HTTPOnly: c.HTTPOnly,
				Secure:   c.Secure,
				SameSite: proto.NetworkCookieSameSite(c.SameSite),
			})
		}
		if err := s.incog.SetCookies(params); err != nil {
			return fmt.Errorf("browser: set cookies: %w", err)
		}
	}

	page, err := s.incog.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return fmt.Errorf("browser: create page: %w", err)
	}
	s.page = page

	if err := s.SetViewport(ctx, s.width, s.height); err != nil {
		return err
	}

	var feats []*proto.EmulationMediaFeature
	if opts.ColorScheme != "" {
		feats = append(feats, &proto.EmulationMediaFeature{Name: "prefers-color-scheme", Value: opts.ColorScheme})
	}
	if opts.ReducedMotion != "" {
		feats = append(feats, &proto.EmulationMediaFeature{Name: "prefers-reduced-motion", Value: opts.ReducedMotion})
	}
	if opts.ForcedColors != "" {
		feats = append(feats, &proto.EmulationMediaFeature{Name: "forced-colors", Value: opts.ForcedColors})
	}
	if len(feats) > 0 {
		err := proto.EmulationSetEmulatedMedia{Features: feats}.Call(page)
		if err != nil {
			return fmt.Errorf("browser: emulate media: %w", err)
		}
	}

	if ss := opts.StorageState; ss != nil && len(ss.Origins) > 0 {
		encoded, err := json.Marshal(ss.Origins)
		if err != nil {
			return fmt.Errorf("browser: encode origins: %w", err)
		}
		js := fmt.Sprintf(`() => {
			const origins = %s;
			for (const origin of origins) {
				if (location.origin !== origin.origin) continue;
				for (const entry of origin.localStorage) {
					localStorage.setItem(entry.name, entry.value);
				}
			}
		}`, encoded)
		if _, err := page.EvalOnNewDocument(js); err != nil {
			return fmt.Errorf("browser: seed local storage: %w", err)
		}
	}
	return nil
}

// Goto navigates and waits for the load event, then for network idle
// bounded by the navigation timeout. An idle timeout proceeds rather
// than fails: slow trackers should not block a capture.
func (s *rodSession) Goto(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, s.cfg.NavTimeout)
	defer cancel()

	p := s.page.Context(navCtx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("browser: navigation timeout for %s: %w", url, err)
	}
	if err := p.WaitIdle(s.cfg.NavTimeout); err != nil {
		s.cfg.Logger.Debug("browser: network idle timeout, proceeding", "url", url)
	}
	return nil
}

// element resolves a selector, optionally inside an iframe named by
// frame, bounded by the action timeout.
func (s *rodSession) element(ctx context.Context, selector, frame string) (*rod.Element, error) {
	scope := s.page.Context(ctx)

	if frame != "" {
		frameEl, err := scope.Timeout(s.cfg.ActionTimeout).Element(frame)
		if err != nil {
			return nil, &FrameNotFoundError{Frame: frame}
		}
		framePage, err := frameEl.Frame()
		if err != nil {
			return nil, &FrameNotFoundError{Frame: frame}
		}
		scope = framePage.Context(ctx)
	}

	el, err := scope.Timeout(s.cfg.ActionTimeout).Element(selector)
	if err != nil {
		return nil, &SelectorNotFoundError{Selector: selector}
	}
	return el, nil
}

func mouseButton(name string) proto.InputMouseButton {
	switch name {
	case "right":
		return proto.InputMouseButtonRight
	case "middle":
		return proto.InputMouseButtonMiddle
	}
	return proto.InputMouseButtonLeft
}

// Click clicks the target and parks the pointer at the origin so it
// never appears in the capture.
func (s *rodSession) Click(ctx context.Context, opts ClickOpts) error {
	el, err := s.element(ctx, opts.Selector, opts.FrameSelector)
	if err != nil {
		return err
	}

	count := opts.ClickCount
	if count <= 0 {
		count = 1
	}
	button := mouseButton(opts.Button)

	if opts.Position != nil {
		shape, err := el.Shape()
		if err != nil {
			return &SelectorNotFoundError{Selector: opts.Selector}
		}
		box := shape.Box()
		if err := s.page.Mouse.MoveTo(proto.Point{
			X: box.X + opts.Position.X,
			Y: box.Y + opts.Position.Y,
		}); err != nil {
			return fmt.Errorf("browser: move to position: %w", err)
		}
		if err := s.page.Mouse.Click(button, count); err != nil {
			return &SelectorNotFoundError{Selector: opts.Selector}
		}
	} else if err := el.Click(button, count); err != nil {
		return &SelectorNotFoundError{Selector: opts.Selector}
	}

	return s.page.Mouse.MoveTo(proto.Point{X: 0, Y: 0})
}

// Hover moves the pointer over the target and leaves it there.
func (s *rodSession) Hover(ctx context.Context, selector, frame string) error {
	el, err := s.element(ctx, selector, frame)
	if err != nil {
		return err
	}
	if err := el.Hover(); err != nil {
		return &SelectorNotFoundError{Selector: selector}
	}
	return nil
}

// Fill replaces the target's content with text. Repeating the same fill
// yields the same final state.
func (s *rodSession) Fill(ctx context.Context, selector, frame, text string) error {
	el, err := s.element(ctx, selector, frame)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("browser: select text in %q: %w", selector, err)
	}
	if err := el.Input(text); err != nil {
		return fmt.Errorf("browser: fill %q: %w", selector, err)
	}
	return nil
}

// Scroll sets the target's nearest scrollable ancestor so the target
// sits offset pixels below the ancestor's top edge.
func (s *rodSession) Scroll(ctx context.Context, selector string, offset float64) error {
	el, err := s.element(ctx, selector, "")
	if err != nil {
		return err
	}
	if _, err := el.Eval(scrollToScript, offset); err != nil {
		return fmt.Errorf("browser: scroll %q: %w", selector, err)
	}
	return nil
}

// BoundingBox measures the target in page coordinates.
func (s *rodSession) BoundingBox(ctx context.Context, selector string) (geom.Rect, error) {
	el, err := s.element(ctx, selector, "")
	if err != nil {
		return geom.Rect{}, err
	}
	shape, err := el.Shape()
	if err != nil {
		return geom.Rect{}, &ElementNotFoundError{Selector: selector}
	}
	box := shape.Box()
	return geom.Rect{X: box.X, Y: box.Y, Width: box.Width, Height: box.Height}, nil
}

// MaxScrollExtent measures how far the target's scroll ancestor can
// scroll beyond the viewport.
func (s *rodSession) MaxScrollExtent(ctx context.Context, selector string) (float64, error) {
	el, err := s.element(ctx, selector, "")
	if err != nil {
		return 0, err
	}
	res, err := el.Eval(maxScrollScript)
	if err != nil {
		return 0, fmt.Errorf("browser: measure scroll extent of %q: %w", selector, err)
	}
	return res.Value.Num(), nil
}

// SetViewport resizes the emulated viewport, keeping the device scale.
func (s *rodSession) SetViewport(ctx context.Context, width, height int) error {
	err := proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: s.dsf,
		Mobile:            false,
	}.Call(s.page.Context(ctx))
	if err != nil {
		return fmt.Errorf("browser: set viewport: %w", err)
	}
	s.width, s.height = width, height
	return nil
}

// Viewport returns the current emulated viewport size.
func (s *rodSession) Viewport() (int, int) {
	return s.width, s.height
}

// OverlayBorder draws a fixed-position CSS border over rect before the
// capture.
func (s *rodSession) OverlayBorder(ctx context.Context, border string, rect geom.Rect) error {
	_, err := s.page.Context(ctx).Eval(borderScript, border, rect.X, rect.Y, rect.Width, rect.Height)
	if err != nil {
		return fmt.Errorf("browser: overlay border: %w", err)
	}
	return nil
}

// Screenshot captures the page, optionally clipped and with the
// background omitted for transparent composites.
func (s *rodSession) Screenshot(ctx context.Context, opts ShotOpts) ([]byte, error) {
	req := &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	}
	if opts.Format == schema.ImageTypeJPEG {
		req.Format = proto.PageCaptureScreenshotFormatJpeg
		if opts.Quality > 0 {
			q := opts.Quality
			req.Quality = &q
		}
	}
	if opts.Clip != nil {
		req.Clip = &proto.PageViewport{
			X:      opts.Clip.X,
			Y:      opts.Clip.Y,
			Width:  opts.Clip.Width,
			Height: opts.Clip.Height,
			Scale:  1,
		}
	}

	page := s.page.Context(ctx)
	if opts.OmitBackground {
		alpha := float64(0)
		err := proto.EmulationSetDefaultBackgroundColorOverride{
			Color: &proto.DOMRGBA{R: 0, G: 0, B: 0, A: &alpha},
		}.Call(page)
		if err != nil {
			return nil, fmt.Errorf("browser: transparent background: %w", err)
		}
		defer func() {
			_ = proto.EmulationSetDefaultBackgroundColorOverride{}.Call(s.page)
		}()
	}

	data, err := page.Timeout(s.cfg.NavTimeout).Screenshot(false, req)
	if err != nil {
		return nil, fmt.Errorf("browser: screenshot: %w", err)
	}
	return data, nil
}

// Close disposes the page and its incognito context.
func (s *rodSession) Close() error {
	var err error
	if s.page != nil {
		err = s.page.Close()
		s.page = nil
	}
	if s.incog != nil && s.incog.BrowserContextID != "" {
		_ = proto.TargetDisposeBrowserContext{
			BrowserContextID: s.incog.BrowserContextID,
		}.Call(s.incog)
	}
	return err
}
