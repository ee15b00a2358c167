package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/kaiji/internal/common"
	"github.com/ternarybob/kaiji/internal/interfaces"
)

// Service is the rate-limited scraping substrate. Plain HTTP handles
// idempotent GETs and quick downloads; the headless browser starts lazily
// for JS-rendered pages and bot-walled PDFs.
type Service struct {
	config     common.ScraperConfig
	logger     arbor.ILogger
	httpClient *http.Client
	limiter    *RateLimiter
	robots     *RobotsChecker
	retry      *RetryPolicy

	mu      sync.Mutex
	browser *browserSession
}

// Compile-time assertion
var _ interfaces.Scraper = (*Service)(nil)

// NewService creates a scraper from configuration.
func NewService(config common.ScraperConfig, logger arbor.ILogger) *Service {
	httpClient := &http.Client{Timeout: config.RequestTimeout}
	return &Service{
		config:     config,
		logger:     logger,
		httpClient: httpClient,
		limiter:    NewRateLimiter(config.RequestInterval),
		robots:     NewRobotsChecker(httpClient, logger),
		retry:      NewDownloadRetryPolicy(),
	}
}

// ensureBrowser starts the headless browser on first use.
func (s *Service) ensureBrowser() (*browserSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browser != nil {
		return s.browser, nil
	}
	session, err := newBrowserSession(s.config, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	s.browser = session
	return session, nil
}

// Close releases the browser if it was started.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browser != nil {
		s.browser.close()
		s.browser = nil
	}
	return nil
}

// FetchPage returns rendered HTML for a URL via the headless browser.
func (s *Service) FetchPage(ctx context.Context, pageURL string) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}
	s.checkRobots(ctx, pageURL)

	session, err := s.ensureBrowser()
	if err != nil {
		return "", err
	}

	html, err := session.fetchPage(s.config.RequestTimeout, pageURL)
	if err != nil {
		return "", err
	}

	s.logger.Debug().Str("url", pageURL).Int("html_len", len(html)).Msg("Fetched page")
	return html, nil
}

// DownloadPDF saves a PDF using the two-stage strategy: plain HTTP first,
// browser fallback on HTTP 403.
func (s *Service) DownloadPDF(ctx context.Context, pdfURL, savePath string, force bool, referer string) (string, error) {
	if !force {
		if _, err := os.Stat(savePath); err == nil {
			s.logger.Debug().Str("path", savePath).Msg("PDF already downloaded, skipping")
			return savePath, nil
		}
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}
	s.checkRobots(ctx, pdfURL)

	statusCode, err := s.downloadViaHTTP(ctx, pdfURL, savePath, referer)
	if err == nil {
		return savePath, nil
	}

	if statusCode == http.StatusForbidden {
		s.logger.Debug().Str("url", pdfURL).Msg("HTTP download got 403, falling back to browser")
		session, berr := s.ensureBrowser()
		if berr != nil {
			return "", &common.DocumentDownloadError{URL: pdfURL, Message: "browser startup failed", Cause: berr}
		}
		if berr := session.downloadPDF(s.config.DownloadTimeout, pdfURL, savePath); berr != nil {
			return "", &common.DocumentDownloadError{URL: pdfURL, Message: "browser download failed", Cause: berr}
		}
		return savePath, nil
	}

	return "", &common.DocumentDownloadError{URL: pdfURL, Message: err.Error(), Cause: err}
}

// downloadViaHTTP issues a browser-like GET and writes the body to
// savePath atomically. Returns the HTTP status for fallback decisions.
func (s *Service) downloadViaHTTP(ctx context.Context, pdfURL, savePath, referer string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pdfURL, nil)
	if err != nil {
		return 0, err
	}
	s.applyBrowserHeaders(req, pdfURL, referer)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(savePath), 0755); err != nil {
		return resp.StatusCode, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(savePath), ".kaiji-*")
	if err != nil {
		return resp.StatusCode, err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return resp.StatusCode, err
	}
	if err := tmp.Close(); err != nil {
		return resp.StatusCode, err
	}
	if err := os.Rename(tmp.Name(), savePath); err != nil {
		return resp.StatusCode, err
	}

	s.logger.Debug().Str("url", pdfURL).Str("path", savePath).Msg("Downloaded PDF via HTTP")
	return resp.StatusCode, nil
}

// applyBrowserHeaders sets a browser-like header set. Referer defaults to
// the URL origin when not supplied.
func (s *Service) applyBrowserHeaders(req *http.Request, pdfURL, referer string) {
	if referer == "" {
		if parsed, err := url.Parse(pdfURL); err == nil && parsed.Host != "" {
			referer = parsed.Scheme + "://" + parsed.Host + "/"
		}
	}

	req.Header.Set("User-Agent", s.config.UserAgent)
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
	req.Header.Set("Accept", "application/pdf,application/octet-stream,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ja,en-US;q=0.9,en;q=0.8")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "same-origin")
}

// checkRobots logs when robots.txt disallows a path. The check is
// advisory; fetching proceeds either way.
func (s *Service) checkRobots(ctx context.Context, rawURL string) {
	if !s.config.FollowRobotsTxt {
		return
	}
	s.robots.Allowed(ctx, rawURL)
}

// ResolveURL resolves href against base. Already-absolute URLs pass
// through unchanged.
func ResolveURL(base, href string) string {
	parsedBase, err := url.Parse(base)
	if err != nil {
		return href
	}
	parsedHref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return parsedBase.ResolveReference(parsedHref).String()
}
