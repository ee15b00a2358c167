package scraper

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/kaiji/internal/common"
)

// blockedResourceTypes are routed to failure inside every page for speed.
// Images, stylesheets, fonts and media are never needed for extraction.
var blockedResourceTypes = []network.ResourceType{
	network.ResourceTypeImage,
	network.ResourceTypeStylesheet,
	network.ResourceTypeFont,
	network.ResourceTypeMedia,
}

// browserSession owns one headless Chrome process. Sessions start lazily:
// the plain HTTP path never pays the browser startup cost.
type browserSession struct {
	browserCtx  context.Context
	allocCancel context.CancelFunc
	ctxCancel   context.CancelFunc
	logger      arbor.ILogger
}

// newBrowserSession starts the exec allocator and a browser context with
// the configured user agent.
func newBrowserSession(config common.ScraperConfig, logger arbor.ILogger) (*browserSession, error) {
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", config.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", config.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(config.UserAgent),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, ctxCancel := chromedp.NewContext(allocCtx)

	// Startup probe so a missing Chrome binary fails here, not mid-scrape.
	probeCtx, probeCancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer probeCancel()
	if err := chromedp.Run(probeCtx, chromedp.Navigate("about:blank")); err != nil {
		ctxCancel()
		allocCancel()
		return nil, err
	}

	logger.Debug().Str("user_agent", config.UserAgent).Msg("Browser session started")
	return &browserSession{
		browserCtx:  browserCtx,
		allocCancel: allocCancel,
		ctxCancel:   ctxCancel,
		logger:      logger,
	}, nil
}

// close releases the browser context and allocator.
func (b *browserSession) close() {
	b.ctxCancel()
	b.allocCancel()
	b.logger.Debug().Msg("Browser session closed")
}

// newTab opens a page-scoped context with resource blocking installed.
// The returned cancel closes the tab.
func (b *browserSession) newTab(timeout time.Duration) (context.Context, context.CancelFunc, error) {
	tabCtx, tabCancel := chromedp.NewContext(b.browserCtx)
	timedCtx, timedCancel := context.WithTimeout(tabCtx, timeout)

	cancel := func() {
		timedCancel()
		tabCancel()
	}

	patterns := make([]*fetch.RequestPattern, 0, len(blockedResourceTypes))
	for _, rt := range blockedResourceTypes {
		patterns = append(patterns, &fetch.RequestPattern{ResourceType: rt})
	}

	chromedp.ListenTarget(timedCtx, func(ev any) {
		if e, ok := ev.(*fetch.EventRequestPaused); ok {
			go func() {
				c := chromedp.FromContext(tabCtx)
				execCtx := cdp.WithExecutor(tabCtx, c.Target)
				_ = fetch.FailRequest(e.RequestID, network.ErrorReasonBlockedByClient).Do(execCtx)
			}()
		}
	})

	if err := chromedp.Run(timedCtx,
		network.Enable(),
		fetch.Enable().WithPatterns(patterns),
	); err != nil {
		cancel()
		return nil, nil, err
	}

	return timedCtx, cancel, nil
}

// fetchPage navigates and returns the rendered HTML. An HTTP status of 400
// or above on the main document surfaces as *common.PageAccessError.
func (b *browserSession) fetchPage(timeout time.Duration, url string) (string, error) {
	tabCtx, cancel, err := b.newTab(timeout)
	if err != nil {
		return "", err
	}
	defer cancel()

	var status int64
	chromedp.ListenTarget(tabCtx, func(ev any) {
		if e, ok := ev.(*network.EventResponseReceived); ok {
			if e.Type == network.ResourceTypeDocument && status == 0 {
				status = e.Response.Status
			}
		}
	})

	var html string
	err = chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		// Give late XHR-driven rendering a moment to settle.
		chromedp.Sleep(2*time.Second),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", err
	}

	if status >= 400 {
		return "", &common.PageAccessError{URL: url, StatusCode: int(status)}
	}
	return html, nil
}

// downloadPDF navigates to a bot-walled PDF in a fresh tab and saves the
// resulting browser download to savePath.
func (b *browserSession) downloadPDF(timeout time.Duration, url, savePath string) error {
	tabCtx, cancel, err := b.newTab(timeout)
	if err != nil {
		return err
	}
	defer cancel()

	tmpDir, err := stageDownloadDir(savePath)
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	done := make(chan string, 1)
	chromedp.ListenTarget(tabCtx, func(ev any) {
		if e, ok := ev.(*browser.EventDownloadProgress); ok {
			if e.State == browser.DownloadProgressStateCompleted {
				select {
				case done <- e.GUID:
				default:
				}
			}
		}
	})

	if err := chromedp.Run(tabCtx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(tmpDir).
			WithEventsEnabled(true),
	); err != nil {
		return err
	}

	// Navigating to a direct download aborts the page load; that specific
	// sentinel means the download started and is not an error.
	if err := chromedp.Run(tabCtx, chromedp.Navigate(url)); err != nil {
		if !strings.Contains(err.Error(), "net::ERR_ABORTED") {
			return err
		}
	}

	select {
	case guid := <-done:
		return os.Rename(filepath.Join(tmpDir, guid), savePath)
	case <-tabCtx.Done():
		return tabCtx.Err()
	}
}

// stageDownloadDir creates a staging directory next to the destination so
// the final rename never crosses a filesystem boundary.
func stageDownloadDir(savePath string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(savePath), 0755); err != nil {
		return "", err
	}
	return os.MkdirTemp(filepath.Dir(savePath), ".kaiji-dl-*")
}
