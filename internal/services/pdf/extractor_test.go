package pdf

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/kaiji/internal/common"
	"github.com/ternarybob/kaiji/internal/interfaces"
	"github.com/ternarybob/kaiji/internal/models"
)

// writeFixturePDF builds a small text PDF with one line per page.
func writeFixturePDF(t *testing.T, pages []string) string {
	t.Helper()
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetFont("Helvetica", "", 12)
	for _, line := range pages {
		doc.AddPage()
		doc.Cell(0, 10, line)
	}
	path := filepath.Join(t.TempDir(), "fixture.pdf")
	require.NoError(t, doc.OutputFileAndClose(path))
	return path
}

func newTestExtractor(vision interfaces.LLMProvider) *Extractor {
	return NewExtractor(vision, common.GetLogger())
}

func TestToMarkdown_NativeBasicPageMarkers(t *testing.T) {
	path := writeFixturePDF(t, []string{
		"Consolidated results for fiscal year 2024",
		"Segment information and outlook",
	})

	extractor := newTestExtractor(nil)
	result, err := extractor.ToMarkdown(context.Background(), path, models.StrategyNativeBasic, models.PageRange{})
	require.NoError(t, err)

	assert.Equal(t, models.StrategyNativeBasic, result.StrategyUsed)
	assert.Equal(t, 2, result.PagesProcessed)
	assert.Contains(t, result.Text, "--- Page 1 ---")
	assert.Contains(t, result.Text, "--- Page 2 ---")
	assert.Contains(t, result.Text, "Consolidated")
}

func TestToMarkdown_StructuredHeadings(t *testing.T) {
	path := writeFixturePDF(t, []string{"Annual report summary page"})

	extractor := newTestExtractor(nil)
	result, err := extractor.ToMarkdown(context.Background(), path, models.StrategyNativeStructured, models.PageRange{})
	require.NoError(t, err)

	assert.Contains(t, result.Text, "## Page 1")
	assert.NotContains(t, result.Text, "--- Page")
}

func TestToMarkdown_PageRangeSubset(t *testing.T) {
	path := writeFixturePDF(t, []string{"page one text", "page two text", "page three text"})

	extractor := newTestExtractor(nil)
	result, err := extractor.ToMarkdown(context.Background(), path, models.StrategyNativeBasic, models.PageRange{Start: 2, End: 2})
	require.NoError(t, err)

	assert.Equal(t, 1, result.PagesProcessed)
	assert.Contains(t, result.Text, "--- Page 2 ---")
	assert.NotContains(t, result.Text, "--- Page 1 ---")
	assert.NotContains(t, result.Text, "--- Page 3 ---")
}

func TestToMarkdown_InvalidRange(t *testing.T) {
	path := writeFixturePDF(t, []string{"only page"})

	extractor := newTestExtractor(nil)
	_, err := extractor.ToMarkdown(context.Background(), path, models.StrategyNativeBasic, models.PageRange{Start: 5, End: 2})

	var parseErr *common.ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestToMarkdown_MissingFile(t *testing.T) {
	extractor := newTestExtractor(nil)
	_, err := extractor.ToMarkdown(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"), models.StrategyAuto, models.PageRange{})

	var parseErr *common.ParseError
	require.ErrorAs(t, err, &parseErr)
}

// stubVision is a vision-capable provider stand-in.
type stubVision struct {
	response string
}

func (s *stubVision) ModelName() string     { return "stub-vision" }
func (s *stubVision) ProviderName() string  { return "stub" }
func (s *stubVision) SupportsVision() bool  { return true }
func (s *stubVision) InvokeStructured(ctx context.Context, prompt string, schema *interfaces.Schema, out any) error {
	return nil
}
func (s *stubVision) Chat(ctx context.Context, messages []interfaces.ChatMessage) (string, error) {
	return s.response, nil
}
func (s *stubVision) InvokeVision(ctx context.Context, textPrompt string, image []byte, mimeType string) (string, error) {
	return s.response, nil
}

func TestAuto_FallsThroughToVision(t *testing.T) {
	path := writeFixturePDF(t, []string{"thin page"})
	visionText := "## Page 1\n\n" + strings.Repeat("lorem ", 40)

	extractor := newTestExtractor(&stubVision{})
	extractor.workers[models.StrategyNativeStructured] = func(ctx context.Context, p string, start, end int) (string, error) {
		return "Page 1 header\n\n\n\n\n", nil
	}
	extractor.workers[models.StrategyOCR] = func(ctx context.Context, p string, start, end int) (string, error) {
		return "", &common.OcrError{Message: "tesseract is not installed", NotInstalled: true}
	}
	extractor.workers[models.StrategyVisionLLM] = func(ctx context.Context, p string, start, end int) (string, error) {
		return visionText, nil
	}

	result, err := extractor.ToMarkdown(context.Background(), path, models.StrategyAuto, models.PageRange{})
	require.NoError(t, err)

	assert.Equal(t, models.StrategyVisionLLM, result.StrategyUsed)
	assert.Greater(t, len(result.Text), 100)
}

func TestAuto_AllFailuresComposite(t *testing.T) {
	path := writeFixturePDF(t, []string{"thin page"})

	extractor := newTestExtractor(&stubVision{})
	extractor.workers[models.StrategyNativeStructured] = func(ctx context.Context, p string, start, end int) (string, error) {
		return "short", nil
	}
	extractor.workers[models.StrategyOCR] = func(ctx context.Context, p string, start, end int) (string, error) {
		return "", &common.OcrError{Message: "tesseract is not installed", NotInstalled: true}
	}
	extractor.workers[models.StrategyVisionLLM] = func(ctx context.Context, p string, start, end int) (string, error) {
		return "", &common.VisionApiError{Message: "no page images found in PDF"}
	}

	_, err := extractor.ToMarkdown(context.Background(), path, models.StrategyAuto, models.PageRange{})

	var parseErr *common.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, string(models.StrategyAuto), parseErr.Strategy)
	assert.Contains(t, parseErr.Message, "native-structured")
	assert.Contains(t, parseErr.Message, "ocr")
	assert.Contains(t, parseErr.Message, "vision-llm")
	assert.Contains(t, parseErr.Message, "; ")
}

func TestAuto_SkipsVisionWithoutProvider(t *testing.T) {
	path := writeFixturePDF(t, []string{"thin page"})

	extractor := newTestExtractor(nil)
	extractor.workers[models.StrategyNativeStructured] = func(ctx context.Context, p string, start, end int) (string, error) {
		return "short", nil
	}
	extractor.workers[models.StrategyOCR] = func(ctx context.Context, p string, start, end int) (string, error) {
		return "", &common.OcrError{Message: "tesseract is not installed", NotInstalled: true}
	}

	_, err := extractor.ToMarkdown(context.Background(), path, models.StrategyAuto, models.PageRange{})

	var parseErr *common.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.NotContains(t, parseErr.Message, "vision-llm")
}

func TestStructurePage_PipeTables(t *testing.T) {
	text := "Revenue summary\n売上高\t1,000\t1,200\n営業利益\t100\t150\nClosing note"
	structured := structurePage(text)

	assert.Contains(t, structured, "| 売上高 | 1,000 | 1,200 |")
	assert.Contains(t, structured, "| --- | --- | --- |")
	assert.Contains(t, structured, "Revenue summary")
	assert.Contains(t, structured, "Closing note")
}

func TestDecodeContentText_ShowTextOperators(t *testing.T) {
	stream := []byte("BT /F1 12 Tf 10 20 Td (Hello) Tj 0 -14 Td (World \\(2024\\)) Tj ET")
	text := decodeContentText(stream)

	assert.Contains(t, text, "Hello")
	assert.Contains(t, text, "World (2024)")
}
