package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/usewebget/webget/browser"
	"github.com/usewebget/webget/geom"
	"github.com/usewebget/webget/ssim"
	"github.com/usewebget/webget/store"
)

// fakeSession records every call so tests can assert ordering and
// arguments without a browser.
type fakeSession struct {
	calls     []string
	selectors []string
	gotoURLs  []string
	viewports [][2]int

	shot    []byte
	box     geom.Rect
	extent  float64
	width   int
	height  int
	failOn  string
	failErr error
	closed  bool
}

func (s *fakeSession) fail(method string) error {
	if s.failOn != method {
		return nil
	}
	if s.failErr != nil {
		return s.failErr
	}
	return fmt.Errorf("%s failed", method)
}

func (s *fakeSession) Goto(ctx context.Context, url string) error {
	s.calls = append(s.calls, "Goto")
	s.gotoURLs = append(s.gotoURLs, url)
	return s.fail("Goto")
}

func (s *fakeSession) Click(ctx context.Context, opts browser.ClickOpts) error {
	s.calls = append(s.calls, "Click")
	s.selectors = append(s.selectors, opts.Selector)
	return s.fail("Click")
}

func (s *fakeSession) Hover(ctx context.Context, selector, frame string) error {
	s.calls = append(s.calls, "Hover")
	s.selectors = append(s.selectors, selector)
	return s.fail("Hover")
}

func (s *fakeSession) Fill(ctx context.Context, selector, frame, text string) error {
	s.calls = append(s.calls, "Fill")
	s.selectors = append(s.selectors, selector)
	return s.fail("Fill")
}

func (s *fakeSession) Scroll(ctx context.Context, selector string, offset float64) error {
	s.calls = append(s.calls, "Scroll")
	s.selectors = append(s.selectors, selector)
	return s.fail("Scroll")
}

func (s *fakeSession) BoundingBox(ctx context.Context, selector string) (geom.Rect, error) {
	s.calls = append(s.calls, "BoundingBox")
	s.selectors = append(s.selectors, selector)
	return s.box, s.fail("BoundingBox")
}

func (s *fakeSession) MaxScrollExtent(ctx context.Context, selector string) (float64, error) {
	s.calls = append(s.calls, "MaxScrollExtent")
	s.selectors = append(s.selectors, selector)
	return s.extent, s.fail("MaxScrollExtent")
}

func (s *fakeSession) SetViewport(ctx context.Context, width, height int) error {
	s.calls = append(s.calls, "SetViewport")
	s.viewports = append(s.viewports, [2]int{width, height})
	s.width, s.height = width, height
	return s.fail("SetViewport")
}

func (s *fakeSession) Viewport() (int, int) {
	if s.width == 0 {
		return 1280, 720
	}
	return s.width, s.height
}

func (s *fakeSession) OverlayBorder(ctx context.Context, border string, rect geom.Rect) error {
	s.calls = append(s.calls, "OverlayBorder")
	return s.fail("OverlayBorder")
}

func (s *fakeSession) Screenshot(ctx context.Context, opts browser.ShotOpts) ([]byte, error) {
	s.calls = append(s.calls, "Screenshot")
	if err := s.fail("Screenshot"); err != nil {
		return nil, err
	}
	return s.shot, nil
}

func (s *fakeSession) Close() error {
	s.calls = append(s.calls, "Close")
	s.closed = true
	return nil
}

// sessionFactory hands out fake sessions and remembers them so tests can
// inspect each one after the render settles.
type sessionFactory struct {
	mu       sync.Mutex
	sessions []*fakeSession
	make     func() *fakeSession
}

func (f *sessionFactory) new(ctx context.Context, opts browser.SessionOpts) (browser.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.make()
	f.sessions = append(f.sessions, s)
	return s, nil
}

// memStore is an in-memory Store for tests.
type memStore struct {
	mu   sync.Mutex
	m    map[string][]byte
	puts map[string]int
}

func newMemStore() *memStore {
	return &memStore{m: map[string][]byte{}, puts: map[string]int{}}
}

func (s *memStore) Put(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = append([]byte(nil), data...)
	s.puts[key]++
	return nil
}

func (s *memStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.m[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return data, nil
}

func (s *memStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.m[key]
	return ok, nil
}

func geomRect(x, y, w, h float64) geom.Rect {
	return geom.Rect{X: x, Y: y, Width: w, Height: h}
}

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func fixedCompare(score float64) CompareFunc {
	return func(a, b ssim.Image) ssim.Result {
		return ssim.Result{SSIM: score, MCS: score}
	}
}

func assertStatus(t *testing.T, out Outcome, want Status) {
	t.Helper()
	if out.Status != want {
		t.Fatalf("status = %q (error %q), want %q", out.Status, out.Error, want)
	}
}

func assertContains(t *testing.T, s, sub string) {
	t.Helper()
	if !strings.Contains(s, sub) {
		t.Fatalf("%q does not contain %q", s, sub)
	}
}
