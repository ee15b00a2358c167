package interfaces

import "context"

// Scraper is the rate-limited HTTP/browser substrate shared by the IR
// engine, the LLM explorer, and the download paths.
type Scraper interface {
	// FetchPage returns fully rendered HTML for a URL. An HTTP status of
	// 400 or above surfaces as *common.PageAccessError.
	FetchPage(ctx context.Context, url string) (string, error)

	// DownloadPDF saves a PDF to savePath, preferring a plain HTTP GET and
	// falling back to the headless browser on HTTP 403. When the target
	// already exists and force is false no network call is made. Referer
	// may be empty; the URL origin is used in that case.
	DownloadPDF(ctx context.Context, url, savePath string, force bool, referer string) (string, error)

	// Close releases the browser and HTTP resources on all exit paths.
	Close() error
}
