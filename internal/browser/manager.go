// Package browser attaches the engine to a live Chrome page: it manages
// the browser connection, streams DOM mutations out through an injected
// MutationObserver, and writes restyled subtrees back in.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// Config configures the browser manager.
type Config struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty launches a local Chrome via launcher.
	RemoteURL string

	// Stealth applies anti-automation-detection setup to every tab.
	Stealth bool

	// NavTimeout bounds page navigation. Default: 30s.
	NavTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.NavTimeout <= 0 {
		c.NavTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager owns the Chrome connection and the tabs opened through it.
type Manager struct {
	cfg Config

	mu      sync.RWMutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

// NewManager creates a Manager. Call Start to connect.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg}
}

// Start connects to Chrome, launching a local instance when no remote
// URL is configured.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("browser: manager is closed")
	}

	wsURL := m.cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().
			Headless(true).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		m.lnch = l
		m.cfg.Logger.Info("browser: launched local chrome", "url", wsURL)
	} else {
		m.cfg.Logger.Info("browser: connecting to remote", "url", wsURL)
	}

	b := rod.New().Context(ctx).ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("browser: connect: %w", err)
	}
	m.browser = b
	return nil
}

// Browser returns the connected Rod handle, or nil before Start.
func (m *Manager) Browser() *rod.Browser {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser
}

// Close shuts the connection down and cleans up a locally launched
// Chrome.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.browser != nil {
		m.browser.Close()
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
	return nil
}
