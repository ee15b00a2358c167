package models

import "time"

// IRCategory is the closed category set for investor-relations documents.
type IRCategory string

const (
	IRCategoryEarnings    IRCategory = "earnings"
	IRCategoryNews        IRCategory = "news"
	IRCategoryDisclosures IRCategory = "disclosures"
)

// IRCategories lists every valid category in taxonomy order.
var IRCategories = []IRCategory{IRCategoryEarnings, IRCategoryNews, IRCategoryDisclosures}

// ValidIRCategory reports whether s names a known category.
func ValidIRCategory(s string) bool {
	switch IRCategory(s) {
	case IRCategoryEarnings, IRCategoryNews, IRCategoryDisclosures:
		return true
	}
	return false
}

// ImpactLabel classifies a summary impact point.
type ImpactLabel string

const (
	ImpactBullish ImpactLabel = "bullish"
	ImpactBearish ImpactLabel = "bearish"
	ImpactWarning ImpactLabel = "warning"
)

// ImpactPoint is one labeled takeaway inside a document summary.
type ImpactPoint struct {
	Label       ImpactLabel `json:"label"`
	Description string      `json:"description"`
}

// IRSummary is the structured LLM summary of an IR document.
type IRSummary struct {
	Overview string        `json:"overview"`
	Points   []ImpactPoint `json:"points"`
}

// IRDocument is a scraped investor-relations artifact. URL is always
// absolute after resolution. IsSkipped means the local cache already held
// the file; a non-nil FilePath with IsSkipped points at the cached copy.
type IRDocument struct {
	Title         string     `json:"title"`
	URL           string     `json:"url"`
	Category      IRCategory `json:"category"`
	PublishedDate *time.Time `json:"published_date,omitempty"`
	FilePath      string     `json:"file_path,omitempty"`
	Summary       *IRSummary `json:"summary,omitempty"`
	IsSkipped     bool       `json:"is_skipped"`
}

// IRTemplate is the YAML scraping template, one per company. The template
// filename encodes the securities code as a 5-digit prefix.
type IRTemplate struct {
	Company     IRTemplateCompany `yaml:"company" validate:"required"`
	IRPage      IRTemplatePage    `yaml:"ir_page" validate:"required"`
	CustomClass string            `yaml:"custom_class,omitempty"`
}

type IRTemplateCompany struct {
	SecCode    string `yaml:"sec_code" validate:"required,len=5,numeric"`
	Name       string `yaml:"name" validate:"required"`
	EdinetCode string `yaml:"edinet_code,omitempty"`
}

type IRTemplatePage struct {
	BaseURL  string                       `yaml:"base_url" validate:"required,url"`
	Sections map[string]IRTemplateSection `yaml:"sections" validate:"required,dive"`
}

type IRTemplateSection struct {
	URL          string `yaml:"url" validate:"required"`
	Selector     string `yaml:"selector" validate:"required"`
	LinkPattern  string `yaml:"link_pattern,omitempty"`
	DateSelector string `yaml:"date_selector,omitempty"`
	DateFormat   string `yaml:"date_format,omitempty"`
}
