package models

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ternarybob/kaiji/internal/common"
)

// CachedDocument is derived from a filesystem path under the download
// hierarchy. Flat-layout files carry only the DocID.
type CachedDocument struct {
	DocID       string
	SecCode     string
	CompanyName string
	DocTypeCode string
	Period      string // YYYYMM taken from period end
	Path        string
}

// BuildDownloadPath computes the canonical on-disk location for a filing
// PDF: <root>/<sec>_<filer>/<type>_<name>/<YYYYMM>/<doc_id>.pdf.
// Unknown metadata fields become the literal "unknown".
func BuildDownloadPath(root string, meta *FilingMetadata) string {
	sec := common.OrUnknown(meta.SecCode)
	filer := common.SanitizeFilename(common.OrUnknown(meta.FilerName))
	docType := common.OrUnknown(meta.DocTypeCode)
	typeName := common.SanitizeFilename(DocTypeName(meta.DocTypeCode))
	period := periodYearMonth(meta.PeriodEnd)

	return filepath.Join(root,
		fmt.Sprintf("%s_%s", sec, filer),
		fmt.Sprintf("%s_%s", docType, typeName),
		period,
		meta.DocID+".pdf")
}

// BuildIRPath computes the on-disk location for an IR artifact:
// <root>/<sec>_<filer>/ir/<category>/<filename>.
func BuildIRPath(root, secCode, filerName string, category IRCategory, filename string) string {
	sec := common.OrUnknown(secCode)
	filer := common.SanitizeFilename(common.OrUnknown(filerName))
	return filepath.Join(root,
		fmt.Sprintf("%s_%s", sec, filer),
		"ir",
		string(category),
		common.SanitizeFilename(filename))
}

// ParseCachedPath decomposes a path under the download root back into the
// identifying fields. Paths outside the hierarchy yield only the DocID.
func ParseCachedPath(root, path string) *CachedDocument {
	doc := &CachedDocument{
		Path:  path,
		DocID: strings.TrimSuffix(filepath.Base(path), ".pdf"),
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		return doc
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	// <sec>_<filer>/<type>_<name>/<YYYYMM>/<doc_id>.pdf
	if len(parts) != 4 {
		return doc
	}

	if sec, filer, ok := strings.Cut(parts[0], "_"); ok {
		doc.SecCode = sec
		doc.CompanyName = filer
	}
	if code, _, ok := strings.Cut(parts[1], "_"); ok {
		doc.DocTypeCode = code
	}
	doc.Period = parts[2]
	return doc
}

// periodYearMonth reduces an ISO date to YYYYMM, or "unknown".
func periodYearMonth(isoDate string) string {
	cleaned := strings.ReplaceAll(isoDate, "-", "")
	if len(cleaned) < 6 {
		return "unknown"
	}
	return cleaned[:6]
}
