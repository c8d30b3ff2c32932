package spc

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/sells-group/onboard-cli/internal/config"
)

const (
	probeTimeout   = 2 * time.Second
	shortcutSettle = 1500 * time.Millisecond
)

// Page is the subset of browser operations the query flow needs.
type Page interface {
	Finder
	Navigate(ctx context.Context, url string) error
	Fill(ctx context.Context, loc Locator, value string) error
	Click(ctx context.Context, loc Locator) error
	PressEscape(ctx context.Context) error
	HTML(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
}

// chromePage drives the tab bound to the context it is called with.
type chromePage struct{}

func (chromePage) Exists(ctx context.Context, loc Locator) (bool, error) {
	sel, by := loc.Query()
	pctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	var nodes []*cdp.Node
	if err := chromedp.Run(pctx, chromedp.Nodes(sel, &nodes, by, chromedp.AtLeast(0))); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, nil
	}
	return len(nodes) > 0, nil
}

func (chromePage) Navigate(ctx context.Context, url string) error {
	return chromedp.Run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (chromePage) Fill(ctx context.Context, loc Locator, value string) error {
	sel, by := loc.Query()
	return chromedp.Run(ctx,
		chromedp.WaitVisible(sel, by),
		chromedp.Clear(sel, by),
		chromedp.SendKeys(sel, value, by),
	)
}

func (chromePage) Click(ctx context.Context, loc Locator) error {
	sel, by := loc.Query()
	return chromedp.Run(ctx, chromedp.Click(sel, by, chromedp.NodeVisible))
}

func (chromePage) PressEscape(ctx context.Context) error {
	return chromedp.Run(ctx, chromedp.KeyEvent(kb.Escape))
}

func (chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	err := chromedp.Run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (chromePage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := chromedp.Run(ctx, chromedp.FullScreenshot(&buf, 90))
	return buf, err
}

// openChrome starts (or attaches to) a browser and returns a tab context.
func openChrome(ctx context.Context, cfg config.SPCConfig, log *zap.Logger) (context.Context, Page, context.CancelFunc) {
	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if cfg.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, cfg.RemoteURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", cfg.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-extensions", true),
			chromedp.Flag("disable-popup-blocking", true),
			chromedp.Flag("no-first-run", true),
			chromedp.WindowSize(1366, 900),
		)
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, opts...)
	}

	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			log.Debug(fmt.Sprintf(format, args...))
		}),
	)

	return tabCtx, chromePage{}, func() {
		tabCancel()
		allocCancel()
	}
}
