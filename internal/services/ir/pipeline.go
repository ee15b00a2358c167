package ir

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/kaiji/internal/common"
	"github.com/ternarybob/kaiji/internal/interfaces"
	"github.com/ternarybob/kaiji/internal/models"
)

// FetchOptions tunes an IR fetch. Zero values mean: all categories,
// default lookback window, keep cached files, produce summaries.
type FetchOptions struct {
	Category    models.IRCategory
	Since       *time.Time
	Force       bool
	WithSummary bool

	// Homepage lets callers without a template supply a starting point
	// for IR-page discovery.
	Homepage string
}

// DefaultFetchOptions returns the options used when the caller has no
// preferences.
func DefaultFetchOptions() FetchOptions {
	return FetchOptions{WithSummary: true}
}

// Service is the IR pipeline: it combines the template engine, the LLM
// explorer, the scraper, the PDF extractor, and the summarizer into the
// operations the agent exposes.
type Service struct {
	config    common.IRConfig
	storage   common.StorageConfig
	engine    *TemplateEngine
	explorer  *Explorer
	scraper   interfaces.Scraper
	extractor interfaces.PDFExtractor
	provider  interfaces.LLMProvider
	logger    arbor.ILogger
}

// NewService creates the IR pipeline service.
func NewService(
	config common.IRConfig,
	storage common.StorageConfig,
	engine *TemplateEngine,
	explorer *Explorer,
	s interfaces.Scraper,
	extractor interfaces.PDFExtractor,
	provider interfaces.LLMProvider,
	logger arbor.ILogger,
) *Service {
	return &Service{
		config:    config,
		storage:   storage,
		engine:    engine,
		explorer:  explorer,
		scraper:   s,
		extractor: extractor,
		provider:  provider,
		logger:    logger,
	}
}

// FetchIRDocuments collects IR documents for a company. The template
// path is preferred; the LLM explorer fills in when the template yields
// nothing or no template exists but a homepage is known.
func (s *Service) FetchIRDocuments(ctx context.Context, secCode string, opts FetchOptions) ([]models.IRDocument, error) {
	since := s.resolveSince(opts.Since)

	tmpl, err := s.engine.LoadTemplate(secCode)
	if err != nil {
		return nil, err
	}

	var docs []models.IRDocument
	folderName := ""

	switch {
	case tmpl != nil:
		folderName = tmpl.Company.Name
		docs, err = s.engine.Scrape(ctx, tmpl, opts.Category)
		if err != nil {
			var pageErr *common.PageAccessError
			if !errors.As(err, &pageErr) {
				return nil, err
			}
			s.logger.Warn().
				Str("sec_code", secCode).
				Err(err).
				Msg("Template scrape hit inaccessible page, falling back to exploration")
			docs = nil
		}
		if len(docs) == 0 {
			docs, err = s.explorer.Explore(ctx, tmpl.IRPage.BaseURL, s.maxLinks())
			if err != nil {
				return nil, &common.TemplateNotFoundError{
					SecCode: secCode,
					Message: fmt.Sprintf("template scrape returned nothing and LLM exploration of %s failed: %v", tmpl.IRPage.BaseURL, err),
				}
			}
		}

	case opts.Homepage != "":
		irURL, err := s.explorer.DiscoverIRPage(ctx, opts.Homepage)
		if err != nil {
			return nil, &common.TemplateNotFoundError{
				SecCode: secCode,
				Message: fmt.Sprintf("no template registered and IR page discovery from %s failed: %v", opts.Homepage, err),
			}
		}
		docs, err = s.explorer.Explore(ctx, irURL, s.maxLinks())
		if err != nil {
			return nil, &common.TemplateNotFoundError{
				SecCode: secCode,
				Message: fmt.Sprintf("no template registered and LLM exploration of %s failed: %v", irURL, err),
			}
		}

	default:
		return nil, &common.TemplateNotFoundError{
			SecCode: secCode,
			Message: "no scraping template registered and no homepage known; use explore_ir_page with the company's IR URL",
		}
	}

	docs = s.refine(docs, since, opts.Category)
	return s.materialize(ctx, docs, secCode, folderName, opts), nil
}

// ExploreIRPage runs the pipeline from an arbitrary page URL. The save
// folder is named after the domain's second-level label.
func (s *Service) ExploreIRPage(ctx context.Context, pageURL string, opts FetchOptions) ([]models.IRDocument, error) {
	since := s.resolveSince(opts.Since)

	docs, err := s.explorer.Explore(ctx, pageURL, s.maxLinks())
	if err != nil {
		return nil, err
	}

	docs = s.refine(docs, since, opts.Category)
	return s.materialize(ctx, docs, "", secondLevelLabel(pageURL), opts), nil
}

// FetchAllRegistered runs FetchIRDocuments for every template. A
// company's failure is logged and recorded as an empty result; the
// call itself never fails.
func (s *Service) FetchAllRegistered(ctx context.Context, opts FetchOptions) map[string][]models.IRDocument {
	results := map[string][]models.IRDocument{}
	for _, secCode := range s.engine.RegisteredSecCodes() {
		docs, err := s.FetchIRDocuments(ctx, secCode, opts)
		if err != nil {
			s.logger.Warn().
				Str("sec_code", secCode).
				Err(err).
				Msg("Skipping company after IR fetch failure")
			results[secCode] = []models.IRDocument{}
			continue
		}
		results[secCode] = docs
	}
	return results
}

func (s *Service) resolveSince(since *time.Time) time.Time {
	if since != nil {
		return *since
	}
	days := s.config.SinceDays
	if days <= 0 {
		days = 90
	}
	return time.Now().AddDate(0, 0, -days)
}

func (s *Service) maxLinks() int {
	if s.config.MaxLinks > 0 {
		return s.config.MaxLinks
	}
	return 20
}

// refine applies the date filter, URL dedup, title reclassification,
// and the optional category filter, in that order.
func (s *Service) refine(docs []models.IRDocument, since time.Time, category models.IRCategory) []models.IRDocument {
	var dated []models.IRDocument
	for _, doc := range docs {
		if doc.PublishedDate != nil && doc.PublishedDate.Before(since) {
			continue
		}
		dated = append(dated, doc)
	}

	deduped := dedupeByURL(dated)

	var out []models.IRDocument
	for _, doc := range deduped {
		doc.Category = reclassify(doc.Title)
		if category != "" && doc.Category != category {
			continue
		}
		out = append(out, doc)
	}
	return out
}

// materialize downloads or summarizes each document per its type and
// the cache state. Summary failures never drop a document.
func (s *Service) materialize(ctx context.Context, docs []models.IRDocument, secCode, folderName string, opts FetchOptions) []models.IRDocument {
	out := make([]models.IRDocument, 0, len(docs))
	for _, doc := range docs {
		s.processDocument(ctx, &doc, secCode, folderName, opts)
		out = append(out, doc)
	}
	return out
}

func (s *Service) processDocument(ctx context.Context, doc *models.IRDocument, secCode, folderName string, opts FetchOptions) {
	if !isPDFURL(doc.URL) {
		// HTML news page: nothing to download.
		if opts.WithSummary {
			s.summarizeNewsPage(ctx, doc)
		}
		return
	}

	savePath := models.BuildIRPath(s.storage.DownloadDir, secCode, folderName, doc.Category, urlBasename(doc.URL))

	if !opts.Force {
		if _, err := os.Stat(savePath); err == nil {
			doc.IsSkipped = true
			doc.FilePath = savePath
			return
		}
	}

	path, err := s.scraper.DownloadPDF(ctx, doc.URL, savePath, opts.Force, "")
	if err != nil {
		s.logger.Warn().
			Str("url", doc.URL).
			Err(err).
			Msg("IR document download failed")
		return
	}
	doc.FilePath = path

	if opts.WithSummary {
		s.summarizePDF(ctx, doc)
	}
}

func (s *Service) summarizeNewsPage(ctx context.Context, doc *models.IRDocument) {
	pageHTML, err := s.scraper.FetchPage(ctx, doc.URL)
	if err != nil {
		s.logger.Warn().Str("url", doc.URL).Err(err).Msg("Failed to fetch news page for summary")
		return
	}
	content, err := extractMainContent(pageHTML)
	if err != nil || content == "" {
		s.logger.Warn().Str("url", doc.URL).Err(err).Msg("Failed to extract news page content")
		return
	}
	summary, err := summarizeText(ctx, s.provider, content)
	if err != nil {
		s.logger.Warn().Str("url", doc.URL).Err(err).Msg("News page summarization failed")
		return
	}
	doc.Summary = summary
}

func (s *Service) summarizePDF(ctx context.Context, doc *models.IRDocument) {
	parsed, err := s.extractor.ToMarkdown(ctx, doc.FilePath, models.StrategyAuto, models.PageRange{})
	if err != nil {
		s.logger.Warn().Str("path", doc.FilePath).Err(err).Msg("PDF extraction for summary failed")
		return
	}
	summary, err := summarizeText(ctx, s.provider, parsed.Text)
	if err != nil {
		s.logger.Warn().Str("path", doc.FilePath).Err(err).Msg("PDF summarization failed")
		return
	}
	doc.Summary = summary
}

func isPDFURL(rawURL string) bool {
	cleaned := strings.Split(rawURL, "?")[0]
	return strings.HasSuffix(strings.ToLower(cleaned), ".pdf")
}

// secondLevelLabel extracts the registrable label from a URL's host:
// "https://www.toyota.co.jp/ir" yields "toyota".
func secondLevelLabel(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return "unknown"
	}
	host := strings.Split(parsed.Host, ":")[0]
	labels := strings.Split(host, ".")
	if len(labels) < 2 {
		return host
	}

	candidate := labels[len(labels)-2]
	// Country-code hierarchies like co.jp push the label one left.
	if len(labels) >= 3 {
		switch candidate {
		case "co", "ne", "or", "ac", "go", "com", "net":
			candidate = labels[len(labels)-3]
		}
	}
	return candidate
}
