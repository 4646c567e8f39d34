package browser

import (
	"context"
	"fmt"
	"net/url"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Tab wraps one Rod page being restyled.
type Tab struct {
	Page    *rod.Page
	PageURL string
	PageID  string
}

// OpenTab creates a tab and navigates it. With stealth enabled the page
// is created through the stealth bundle so automation fingerprints are
// masked before any site script runs.
func OpenTab(ctx context.Context, mgr *Manager, pageURL, pageID string) (*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	var (
		page *rod.Page
		err  error
	)
	if mgr.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, mgr.cfg.NavTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		mgr.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}

	return &Tab{Page: page, PageURL: pageURL, PageID: pageID}, nil
}

// Host returns the hostname of the tab's URL, for whitelist and
// per-site override matching.
func (t *Tab) Host() string {
	u, err := url.Parse(t.PageURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// Snapshot serialises the live DOM as outer HTML. This seeds the mirror
// tree before restyling begins.
func (t *Tab) Snapshot(ctx context.Context) ([]byte, error) {
	res, err := t.Page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, fmt.Errorf("browser: snapshot: %w", err)
	}
	return []byte(res.Value.Str()), nil
}

// Close closes the tab.
func (t *Tab) Close() error {
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}
