package browser

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/wudooh/sink"
)

// applyPatchJS locates a node by its sibling-indexed path and replaces
// its outer HTML. Unresolvable paths report false: the node may have
// been removed since the patch was rendered, which is not an error.
const applyPatchJS = `(xpath, html) => {
	const res = document.evaluate(xpath, document, null,
		XPathResult.FIRST_ORDERED_NODE_TYPE, null);
	const node = res.singleNodeValue;
	if (!node) return false;
	if (node.nodeType === 1) {
		node.outerHTML = html;
		return true;
	}
	return false;
}`

// PatchSink writes restyled subtrees back into the live page. It
// implements sink.Sink so the watcher and controller can stay unaware
// of the browser.
type PatchSink struct {
	tab    *Tab
	logger *slog.Logger
}

// NewPatchSink creates a PatchSink for a tab.
func NewPatchSink(tab *Tab, logger *slog.Logger) *PatchSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &PatchSink{tab: tab, logger: logger}
}

// Send replaces the patched subtree in the live page.
func (s *PatchSink) Send(ctx context.Context, p sink.Patch) error {
	res, err := s.tab.Page.Context(ctx).Eval(applyPatchJS, p.XPath, p.HTML)
	if err != nil {
		return fmt.Errorf("browser: apply patch %s: %w", p.XPath, err)
	}
	if !res.Value.Bool() {
		s.logger.Debug("patch target gone, skipped", "xpath", p.XPath, "page_id", p.PageID)
	}
	return nil
}

// Close is a no-op; the tab owns the page lifecycle.
func (s *PatchSink) Close() error { return nil }
