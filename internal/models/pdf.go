package models

// ExtractionStrategy names a PDF-to-markdown extraction strategy. Auto is
// the fallback orchestrator; the others are concrete workers.
type ExtractionStrategy string

const (
	StrategyAuto             ExtractionStrategy = "auto"
	StrategyNativeBasic      ExtractionStrategy = "native-basic"
	StrategyNativeStructured ExtractionStrategy = "native-structured"
	StrategyOCR              ExtractionStrategy = "ocr"
	StrategyVisionLLM        ExtractionStrategy = "vision-llm"
)

// ParsedPDFContent is the result of a PDF extraction.
type ParsedPDFContent struct {
	Text           string
	PagesProcessed int
	StrategyUsed   ExtractionStrategy
	Metadata       map[string]any
}

// PageRange selects 1-based inclusive pages. Zero values mean first/last.
type PageRange struct {
	Start int
	End   int
}

// Clamp normalizes the range against a known page count. Start below 1
// becomes 1; End of 0 or beyond the document becomes pageCount.
func (r PageRange) Clamp(pageCount int) (int, int) {
	start := r.Start
	if start < 1 {
		start = 1
	}
	end := r.End
	if end < 1 || end > pageCount {
		end = pageCount
	}
	return start, end
}
