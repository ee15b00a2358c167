package ir

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/kaiji/internal/interfaces"
	"github.com/ternarybob/kaiji/internal/models"
	"github.com/ternarybob/kaiji/internal/services/scraper"
)

// Template filenames start with the 5-digit securities code.
var secCodePrefix = regexp.MustCompile(`^\d{5}$`)

// CustomScraper replaces the generic selector scrape for sites whose IR
// pages need bespoke handling. Implementations honor the same return
// contract as the engine.
type CustomScraper interface {
	Scrape(ctx context.Context, s interfaces.Scraper, tmpl *models.IRTemplate, category models.IRCategory) ([]models.IRDocument, error)
}

// TemplateEngine loads per-company YAML scraping templates and runs
// their selector-based scrape. It never downloads documents; that is
// the pipeline's job.
type TemplateEngine struct {
	templatesDir string
	scraper      interfaces.Scraper
	registry     map[string]CustomScraper
	validate     *validator.Validate
	logger       arbor.ILogger

	mu    sync.Mutex
	cache map[string]*models.IRTemplate
}

// NewTemplateEngine creates a template engine. registry maps
// custom_class names to implementations and may be nil.
func NewTemplateEngine(templatesDir string, s interfaces.Scraper, registry map[string]CustomScraper, logger arbor.ILogger) *TemplateEngine {
	if registry == nil {
		registry = map[string]CustomScraper{}
	}
	return &TemplateEngine{
		templatesDir: templatesDir,
		scraper:      s,
		registry:     registry,
		validate:     validator.New(),
		logger:       logger,
		cache:        map[string]*models.IRTemplate{},
	}
}

// LoadTemplate finds and parses the template for a securities code.
// Returns (nil, nil) when no template file exists.
func (e *TemplateEngine) LoadTemplate(secCode string) (*models.IRTemplate, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if tmpl, ok := e.cache[secCode]; ok {
		return tmpl, nil
	}

	matches, err := filepath.Glob(filepath.Join(e.templatesDir, secCode+"_*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to glob templates: %w", err)
	}
	if len(matches) == 0 {
		return nil, nil
	}
	sort.Strings(matches)
	path := matches[0]

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", path, err)
	}

	var tmpl models.IRTemplate
	if err := yaml.Unmarshal(data, &tmpl); err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", path, err)
	}
	if err := e.validate.Struct(&tmpl); err != nil {
		return nil, fmt.Errorf("invalid template %s: %w", path, err)
	}
	if tmpl.CustomClass != "" {
		if _, ok := e.registry[tmpl.CustomClass]; !ok {
			return nil, fmt.Errorf("template %s names unknown custom_class %q", path, tmpl.CustomClass)
		}
	}

	e.cache[secCode] = &tmpl
	e.logger.Debug().
		Str("sec_code", secCode).
		Str("path", path).
		Msg("Loaded IR template")
	return &tmpl, nil
}

// HasTemplate reports whether a template file exists for the code.
func (e *TemplateEngine) HasTemplate(secCode string) bool {
	tmpl, err := e.LoadTemplate(secCode)
	return err == nil && tmpl != nil
}

// RegisteredSecCodes lists the securities codes of every template file
// in the templates directory.
func (e *TemplateEngine) RegisteredSecCodes() []string {
	matches, err := filepath.Glob(filepath.Join(e.templatesDir, "*.yaml"))
	if err != nil {
		return nil
	}

	seen := map[string]bool{}
	var codes []string
	for _, path := range matches {
		code, _, ok := strings.Cut(filepath.Base(path), "_")
		if !ok || !secCodePrefix.MatchString(code) {
			continue
		}
		if !seen[code] {
			seen[code] = true
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return codes
}

// Scrape runs the template's sections. An empty category scrapes every
// section; otherwise only the matching one.
func (e *TemplateEngine) Scrape(ctx context.Context, tmpl *models.IRTemplate, category models.IRCategory) ([]models.IRDocument, error) {
	if tmpl.CustomClass != "" {
		custom := e.registry[tmpl.CustomClass]
		return custom.Scrape(ctx, e.scraper, tmpl, category)
	}

	var docs []models.IRDocument
	for name, section := range tmpl.IRPage.Sections {
		if category != "" && string(category) != name {
			continue
		}
		sectionCategory := models.IRCategory(name)
		if !models.ValidIRCategory(name) {
			sectionCategory = models.IRCategoryDisclosures
		}

		sectionDocs, err := e.scrapeSection(ctx, tmpl, &section, sectionCategory)
		if err != nil {
			return nil, err
		}
		docs = append(docs, sectionDocs...)
	}
	return docs, nil
}

func (e *TemplateEngine) scrapeSection(ctx context.Context, tmpl *models.IRTemplate, section *models.IRTemplateSection, category models.IRCategory) ([]models.IRDocument, error) {
	sectionURL := scraper.ResolveURL(tmpl.IRPage.BaseURL, section.URL)

	html, err := e.scraper.FetchPage(ctx, sectionURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", sectionURL, err)
	}

	var linkPattern *regexp.Regexp
	if section.LinkPattern != "" {
		linkPattern, err = regexp.Compile(section.LinkPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid link_pattern %q: %w", section.LinkPattern, err)
		}
	}

	var docs []models.IRDocument
	doc.Find(section.Selector).Each(func(_ int, sel *goquery.Selection) {
		anchor := sel
		if goquery.NodeName(sel) != "a" {
			anchor = sel.Find("a").First()
		}
		href, ok := anchor.Attr("href")
		if !ok || href == "" {
			return
		}
		if linkPattern != nil && !linkPattern.MatchString(href) {
			return
		}
		if !strings.HasSuffix(strings.ToLower(strings.Split(href, "?")[0]), ".pdf") {
			return
		}

		title := strings.TrimSpace(anchor.Text())
		if title == "" {
			title = urlBasename(href)
		}

		var published *time.Time
		if section.DateSelector != "" {
			dateText := strings.TrimSpace(sel.Find(section.DateSelector).First().Text())
			if dateText != "" && section.DateFormat != "" {
				if t, err := time.Parse(dateFormatToLayout(section.DateFormat), dateText); err == nil {
					published = &t
				}
			}
		}

		docs = append(docs, models.IRDocument{
			Title:         title,
			URL:           scraper.ResolveURL(sectionURL, href),
			Category:      category,
			PublishedDate: published,
		})
	})

	e.logger.Debug().
		Str("section_url", sectionURL).
		Str("category", string(category)).
		Int("documents", len(docs)).
		Msg("Scraped template section")
	return docs, nil
}

// strftime directives supported in template date formats.
var strftimeReplacer = strings.NewReplacer(
	"%Y", "2006",
	"%m", "01",
	"%d", "02",
	"%H", "15",
	"%M", "04",
	"%S", "05",
)

// dateFormatToLayout converts a %Y/%m/%d-style format string to a Go
// time layout.
func dateFormatToLayout(format string) string {
	return strftimeReplacer.Replace(format)
}

// urlBasename returns the decoded final path element of a URL.
func urlBasename(href string) string {
	cleaned := strings.Split(href, "?")[0]
	base := filepath.Base(cleaned)
	if decoded, err := url.QueryUnescape(base); err == nil {
		return decoded
	}
	return base
}
