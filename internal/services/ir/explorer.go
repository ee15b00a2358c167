package ir

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"golang.org/x/net/html"

	"github.com/ternarybob/kaiji/internal/interfaces"
	"github.com/ternarybob/kaiji/internal/models"
	"github.com/ternarybob/kaiji/internal/services/scraper"
)

// compactHTMLLimit caps the page representation sent to the model.
const compactHTMLLimit = 15000

// minTextFragment filters boilerplate text nodes out of the compact
// representation.
const minTextFragment = 10

// explorePromptHeader carries the category taxonomy. The
// guidance-revision example pins down the most common misclassification.
const explorePromptHeader = `あなたは日本の上場企業のIRページを分析するアシスタントです。
以下のページ内容から、IR資料へのリンクを抽出してください。

カテゴリの定義:
- earnings: 決算短信、決算説明会資料、有価証券報告書など定期的な業績資料
- news: プレスリリース、お知らせ、製品発表など一般的なニュース
- disclosures: 適時開示。業績予想の修正、配当予想の修正、自己株式の取得、
  M&A、役員人事、増資・減資、訴訟、行政処分など

注意: 「業績予想の修正に関するお知らせ」は earnings ではなく disclosures です。

PDFリンクを優先してください。PDFが無い場合のみニュースページのHTMLリンクを
含めてかまいません。published_date はISO形式(YYYY-MM-DD)、不明なら空文字列に
してください。confidence は 0 から 1 の数値です。最大 %d 件。

ページ内容:
`

// exploredLink is the per-link shape requested from the model.
type exploredLink struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Category      string  `json:"category"`
	PublishedDate string  `json:"published_date"`
	Confidence    float64 `json:"confidence"`
}

type exploreResponse struct {
	Links []exploredLink `json:"links"`
}

var exploreSchema = &interfaces.Schema{
	Type: "object",
	Properties: map[string]*interfaces.Schema{
		"links": {
			Type: "array",
			Items: &interfaces.Schema{
				Type: "object",
				Properties: map[string]*interfaces.Schema{
					"title":          {Type: "string"},
					"url":            {Type: "string"},
					"category":       {Type: "string", Enum: []string{"earnings", "news", "disclosures"}},
					"published_date": {Type: "string", Description: "ISO date or empty string"},
					"confidence":     {Type: "number"},
				},
				Required: []string{"title", "url", "category"},
			},
		},
	},
	Required: []string{"links"},
}

// Explorer finds IR documents on pages that have no template, by
// compacting the page and asking the model to pick out document links.
type Explorer struct {
	scraper  interfaces.Scraper
	provider interfaces.LLMProvider
	logger   arbor.ILogger
}

// NewExplorer creates an LLM-backed page explorer.
func NewExplorer(s interfaces.Scraper, provider interfaces.LLMProvider, logger arbor.ILogger) *Explorer {
	return &Explorer{scraper: s, provider: provider, logger: logger}
}

// Explore fetches pageURL and returns the IR documents the model finds
// on it, capped at maxLinks.
func (e *Explorer) Explore(ctx context.Context, pageURL string, maxLinks int) ([]models.IRDocument, error) {
	pageHTML, err := e.scraper.FetchPage(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	compact := CompactHTML(pageHTML)
	if compact == "" {
		return nil, fmt.Errorf("page %s produced no analyzable content", pageURL)
	}

	prompt := fmt.Sprintf(explorePromptHeader, maxLinks) + compact

	var resp exploreResponse
	if err := e.provider.InvokeStructured(ctx, prompt, exploreSchema, &resp); err != nil {
		return nil, err
	}

	docs := make([]models.IRDocument, 0, len(resp.Links))
	for _, link := range resp.Links {
		if link.URL == "" {
			continue
		}
		if len(docs) >= maxLinks {
			break
		}
		category := models.IRCategory(link.Category)
		if !models.ValidIRCategory(link.Category) {
			category = models.IRCategoryDisclosures
		}

		var published *time.Time
		if link.PublishedDate != "" {
			if t, err := time.Parse("2006-01-02", link.PublishedDate); err == nil {
				published = &t
			}
		}

		docs = append(docs, models.IRDocument{
			Title:         strings.TrimSpace(link.Title),
			URL:           scraper.ResolveURL(pageURL, link.URL),
			Category:      category,
			PublishedDate: published,
		})
	}

	e.logger.Info().
		Str("url", pageURL).
		Int("documents", len(docs)).
		Msg("LLM exploration complete")
	return docs, nil
}

// CompactHTML reduces a page to an LLM-friendly text representation:
// links keep their URLs, headings keep their level, boilerplate tags
// and short fragments are dropped.
func CompactHTML(pageHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return ""
	}

	doc.Find("script, style, nav, footer, header, noscript").Remove()

	seen := map[string]bool{}
	var fragments []string
	emit := func(fragment string) {
		fragment = strings.TrimSpace(fragment)
		if fragment == "" || seen[fragment] {
			return
		}
		seen[fragment] = true
		fragments = append(fragments, fragment)
	}

	doc.Find("a, p, h1, h2, h3, h4, li, td, div").Each(func(_ int, sel *goquery.Selection) {
		switch name := goquery.NodeName(sel); name {
		case "a":
			text := strings.TrimSpace(sel.Text())
			href, _ := sel.Attr("href")
			if text == "" || href == "" {
				return
			}
			if strings.HasSuffix(strings.ToLower(strings.Split(href, "?")[0]), ".pdf") {
				emit(fmt.Sprintf("[PDF] [%s](%s)", text, href))
			} else {
				emit(fmt.Sprintf("[%s](%s)", text, href))
			}
		case "h1", "h2", "h3", "h4":
			level := int(name[1] - '0')
			text := strings.TrimSpace(sel.Text())
			if text != "" {
				emit(strings.Repeat("#", level) + " " + text)
			}
		default:
			text := strings.TrimSpace(ownText(sel))
			if len([]rune(text)) > minTextFragment {
				emit(text)
			}
		}
	})

	joined := strings.Join(fragments, "\n\n")
	if len(joined) > compactHTMLLimit {
		cut := compactHTMLLimit
		// Back off to a rune boundary so multibyte text stays valid.
		for cut > 0 && !utf8.RuneStart(joined[cut]) {
			cut--
		}
		joined = joined[:cut]
	}
	return joined
}

// ownText collects the selection's direct text nodes, excluding nested
// element text so container divs don't duplicate their children.
func ownText(sel *goquery.Selection) string {
	var out strings.Builder
	for _, node := range sel.Nodes {
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == html.TextNode {
				out.WriteString(child.Data)
			}
		}
	}
	return out.String()
}

// IR-page URL shapes and anchor-text keywords used for discovery.
var irURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)/ir(/|$)`),
	regexp.MustCompile(`(?i)/investors?(/|$)`),
	regexp.MustCompile(`(?i)/stockholders(/|$)`),
	regexp.MustCompile(`(?i)investor[-_]relations`),
}

var irTextKeywords = []string{"IR", "投資家", "株主", "investor"}

// DiscoverIRPage walks the homepage's anchors and returns the first
// absolute URL that looks like an investor-relations page.
func (e *Explorer) DiscoverIRPage(ctx context.Context, homepageURL string) (string, error) {
	pageHTML, err := e.scraper.FetchPage(ctx, homepageURL)
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", homepageURL, err)
	}

	var found string
	doc.Find("a").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return true
		}

		matches := false
		for _, pattern := range irURLPatterns {
			if pattern.MatchString(href) {
				matches = true
				break
			}
		}
		if !matches {
			text := strings.TrimSpace(sel.Text())
			for _, kw := range irTextKeywords {
				if strings.Contains(text, kw) {
					matches = true
					break
				}
			}
		}
		if !matches {
			return true
		}

		found = scraper.ResolveURL(homepageURL, href)
		return false
	})

	if found == "" {
		return "", fmt.Errorf("no IR page link found on %s", homepageURL)
	}
	return found, nil
}
