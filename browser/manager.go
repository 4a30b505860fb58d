// Package browser manages the shared Chrome processes and exposes the
// Session capability the render pipeline drives: goto, click, hover,
// fill, scroll, measure, screenshot. Exactly one automation backend
// exists (Rod); everything above this package talks to the Session
// interface only.
package browser

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// Config configures the browser Manager.
type Config struct {
	// ActionTimeout bounds element resolution and single actions.
	// Default: 5s.
	ActionTimeout time.Duration

	// NavTimeout bounds navigation and the post-load network-idle wait.
	// Default: 10s.
	NavTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.ActionTimeout <= 0 {
		c.ActionTimeout = 5 * time.Second
	}
	if c.NavTimeout <= 0 {
		c.NavTimeout = 10 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager owns at most two long-lived Chrome processes, one headless and
// one headed, launched lazily on first use. Sessions are isolated
// incognito contexts inside whichever process the asset asked for.
type Manager struct {
	cfg Config

	mu     sync.Mutex
	closed bool
	procs  [2]*proc // headless, headed
}

type proc struct {
	browser *rod.Browser
	lnch    *launcher.Launcher
}

// NewManager creates a Manager. Chrome launches on the first session.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg}
}

func (m *Manager) acquire(headed bool) (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("browser: manager is closed")
	}

	idx := 0
	if headed {
		idx = 1
	}
	if p := m.procs[idx]; p != nil {
		return p.browser, nil
	}

	l := launcher.New().Headless(!headed)
	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("browser: launch: %w", err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}

	m.cfg.Logger.Info("browser: launched chrome", "headed", headed, "url", u)
	m.procs[idx] = &proc{browser: b, lnch: l}
	return b, nil
}

// Shutdown closes every Chrome process. The manager cannot be reused.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	for i, p := range m.procs {
		if p == nil {
			continue
		}
		if err := p.browser.Close(); err != nil {
			m.cfg.Logger.Warn("browser: close failed", "error", err)
		}
		p.lnch.Cleanup()
		m.procs[i] = nil
	}
	m.cfg.Logger.Info("browser: shut down")
	return nil
}

// NavTimeout exposes the configured navigation timeout for callers that
// need to bound work around a session (template compositing).
func (m *Manager) NavTimeout() time.Duration {
	return m.cfg.NavTimeout
}
