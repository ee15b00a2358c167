package interfaces

import (
	"context"

	"github.com/ternarybob/kaiji/internal/models"
)

// PDFExtractor converts a PDF on disk to markdown text.
type PDFExtractor interface {
	// ToMarkdown extracts pageRange of the PDF using the given strategy.
	// StrategyAuto tries the worker strategies in order and accepts the
	// first result whose trimmed length exceeds the quality gate.
	ToMarkdown(ctx context.Context, pdfPath string, strategy models.ExtractionStrategy, pageRange models.PageRange) (*models.ParsedPDFContent, error)
}
