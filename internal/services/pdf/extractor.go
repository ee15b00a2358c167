// -----------------------------------------------------------------------
// PDF Extractor Service - Convert PDF documents to markdown text
// Uses pdfcpu for Go-native PDF processing
// -----------------------------------------------------------------------

package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/kaiji/internal/common"
	"github.com/ternarybob/kaiji/internal/interfaces"
	"github.com/ternarybob/kaiji/internal/models"
)

// Results shorter than this are treated as a failed extraction by the
// auto orchestrator. Real filings pages always clear it.
const qualityGateChars = 100

// worker is one concrete extraction strategy over a clamped page range.
type worker func(ctx context.Context, pdfPath string, start, end int) (string, error)

// Extractor implements the PDFExtractor interface. The vision provider
// is optional; without one the auto chain stops after OCR.
type Extractor struct {
	logger  arbor.ILogger
	vision  interfaces.LLMProvider
	tempDir string
	workers map[models.ExtractionStrategy]worker
}

var _ interfaces.PDFExtractor = (*Extractor)(nil)

// NewExtractor creates a PDF extractor. vision may be nil.
func NewExtractor(vision interfaces.LLMProvider, logger arbor.ILogger) *Extractor {
	tempDir := filepath.Join(os.TempDir(), "kaiji-pdf")
	os.MkdirAll(tempDir, 0755)

	e := &Extractor{
		logger:  logger,
		vision:  vision,
		tempDir: tempDir,
	}
	e.workers = map[models.ExtractionStrategy]worker{
		models.StrategyNativeBasic: func(ctx context.Context, path string, start, end int) (string, error) {
			texts, err := e.extractPageTexts(path, start, end)
			if err != nil {
				return "", err
			}
			return renderBasic(texts, start, end), nil
		},
		models.StrategyNativeStructured: func(ctx context.Context, path string, start, end int) (string, error) {
			texts, err := e.extractPageTexts(path, start, end)
			if err != nil {
				return "", err
			}
			return renderStructured(texts, start, end), nil
		},
		models.StrategyOCR:       e.runOCR,
		models.StrategyVisionLLM: e.runVision,
	}
	return e
}

// ToMarkdown extracts pageRange of the PDF using the given strategy.
func (e *Extractor) ToMarkdown(ctx context.Context, pdfPath string, strategy models.ExtractionStrategy, pageRange models.PageRange) (*models.ParsedPDFContent, error) {
	if _, err := os.Stat(pdfPath); err != nil {
		return nil, &common.ParseError{Message: "PDF file not found", PdfPath: pdfPath, Strategy: string(strategy)}
	}

	count, err := pageCount(pdfPath)
	if err != nil {
		return nil, err
	}
	start, end := pageRange.Clamp(count)
	if start > end {
		return nil, &common.ParseError{
			Message:  fmt.Sprintf("invalid page range %d-%d for %d pages", pageRange.Start, pageRange.End, count),
			PdfPath:  pdfPath,
			Strategy: string(strategy),
		}
	}

	e.logger.Debug().
		Str("path", pdfPath).
		Str("strategy", string(strategy)).
		Int("start", start).
		Int("end", end).
		Msg("Extracting PDF")

	switch strategy {
	case models.StrategyAuto:
		return e.runAuto(ctx, pdfPath, start, end, count)
	case models.StrategyNativeBasic, models.StrategyNativeStructured, models.StrategyOCR, models.StrategyVisionLLM:
		text, err := e.runStrategy(ctx, pdfPath, strategy, start, end)
		if err != nil {
			return nil, err
		}
		return e.result(text, strategy, start, end, count), nil
	default:
		return nil, &common.ParseError{Message: "unknown extraction strategy", PdfPath: pdfPath, Strategy: string(strategy)}
	}
}

func (e *Extractor) runStrategy(ctx context.Context, pdfPath string, strategy models.ExtractionStrategy, start, end int) (string, error) {
	return e.workers[strategy](ctx, pdfPath, start, end)
}

// runAuto tries structured extraction, then OCR, then vision, accepting
// the first result that clears the quality gate. When everything fails
// the ParseError lists every strategy's failure.
func (e *Extractor) runAuto(ctx context.Context, pdfPath string, start, end, pageCount int) (*models.ParsedPDFContent, error) {
	chain := []models.ExtractionStrategy{
		models.StrategyNativeStructured,
		models.StrategyOCR,
	}
	if e.vision != nil && e.vision.SupportsVision() {
		chain = append(chain, models.StrategyVisionLLM)
	}

	var failures []string
	for _, strategy := range chain {
		text, err := e.runStrategy(ctx, pdfPath, strategy, start, end)
		if err != nil {
			e.logger.Debug().
				Str("strategy", string(strategy)).
				Err(err).
				Msg("Extraction strategy failed, falling through")
			failures = append(failures, fmt.Sprintf("%s: %v", strategy, err))
			continue
		}
		if len(strings.TrimSpace(text)) <= qualityGateChars {
			failures = append(failures, fmt.Sprintf("%s: result below quality gate (%d chars)", strategy, len(strings.TrimSpace(text))))
			continue
		}
		return e.result(text, strategy, start, end, pageCount), nil
	}

	return nil, &common.ParseError{
		Message:  strings.Join(failures, "; "),
		PdfPath:  pdfPath,
		Strategy: string(models.StrategyAuto),
	}
}

func (e *Extractor) result(text string, strategy models.ExtractionStrategy, start, end, pageCount int) *models.ParsedPDFContent {
	return &models.ParsedPDFContent{
		Text:           text,
		PagesProcessed: end - start + 1,
		StrategyUsed:   strategy,
		Metadata: map[string]any{
			"start_page": start,
			"end_page":   end,
			"page_count": pageCount,
		},
	}
}
