package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/ternarybob/kaiji/internal/common"
)

// pageCount reads the document page count without extracting anything.
func pageCount(pdfPath string) (int, error) {
	pdfCtx, err := api.ReadContextFile(pdfPath)
	if err != nil {
		return 0, &common.ParseError{Message: fmt.Sprintf("failed to read PDF: %v", err), PdfPath: pdfPath}
	}
	return pdfCtx.PageCount, nil
}

// extractPageTexts pulls per-page text for the clamped range. pdfcpu
// extracts raw content streams per page; the text is decoded from the
// stream's show-text operators.
func (e *Extractor) extractPageTexts(pdfPath string, start, end int) (map[int]string, error) {
	outDir, err := os.MkdirTemp(e.tempDir, "content-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(outDir)

	conf := model.NewDefaultConfiguration()
	selected := []string{fmt.Sprintf("%d-%d", start, end)}
	if err := api.ExtractContentFile(pdfPath, outDir, selected, conf); err != nil {
		return nil, &common.ParseError{Message: fmt.Sprintf("content extraction failed: %v", err), PdfPath: pdfPath}
	}

	texts := make(map[int]string)
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read extraction output: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		// Output naming differs across pdfcpu versions; current versions
		// prefix the source file stem, e.g. "fixture_Content_page_1.txt".
		name := entry.Name()
		if idx := strings.Index(name, "Content_page_"); idx >= 0 {
			name = name[idx:]
		}
		var pageNum int
		if _, err := fmt.Sscanf(name, "Content_page_%d", &pageNum); err != nil {
			if _, err := fmt.Sscanf(name, "page_%d", &pageNum); err != nil {
				continue
			}
		}
		raw, err := os.ReadFile(filepath.Join(outDir, entry.Name()))
		if err != nil {
			continue
		}
		texts[pageNum] = decodeContentText(raw)
	}
	return texts, nil
}

// decodeContentText recovers readable text from a PDF content stream by
// walking its show-text operators. Literal strings in Tj/TJ/quote
// operators are concatenated; text-positioning operators become line
// breaks.
func decodeContentText(content []byte) string {
	var out strings.Builder
	i := 0
	for i < len(content) {
		switch content[i] {
		case '(':
			str, next := readLiteralString(content, i)
			out.WriteString(str)
			i = next
		case 'T':
			if i+1 < len(content) {
				switch content[i+1] {
				case 'd', 'D', '*':
					if out.Len() > 0 && !strings.HasSuffix(out.String(), "\n") {
						out.WriteByte('\n')
					}
					i += 2
					continue
				}
			}
			i++
		case '\'', '"':
			if out.Len() > 0 && !strings.HasSuffix(out.String(), "\n") {
				out.WriteByte('\n')
			}
			i++
		default:
			i++
		}
	}
	return strings.TrimSpace(out.String())
}

// readLiteralString consumes a parenthesized PDF string starting at
// content[start] == '(' and returns its value plus the next offset.
func readLiteralString(content []byte, start int) (string, int) {
	var out strings.Builder
	depth := 0
	i := start
	for i < len(content) {
		c := content[i]
		switch c {
		case '\\':
			if i+1 < len(content) {
				switch content[i+1] {
				case 'n':
					out.WriteByte('\n')
				case 't':
					out.WriteByte('\t')
				case 'r', 'b', 'f':
					// Ignored control escapes.
				default:
					out.WriteByte(content[i+1])
				}
				i += 2
				continue
			}
			i++
		case '(':
			depth++
			if depth > 1 {
				out.WriteByte(c)
			}
			i++
		case ')':
			depth--
			if depth == 0 {
				return out.String(), i + 1
			}
			out.WriteByte(c)
			i++
		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.String(), i
}

// columnSplit matches gaps treated as table-column boundaries.
var columnSplit = regexp.MustCompile(`\t+| {2,}`)

// renderBasic joins page texts with the plain text-only page markers.
func renderBasic(texts map[int]string, start, end int) string {
	var out strings.Builder
	for page := start; page <= end; page++ {
		if out.Len() > 0 {
			out.WriteString("\n\n")
		}
		out.WriteString("--- Page " + strconv.Itoa(page) + " ---\n\n")
		out.WriteString(texts[page])
	}
	return out.String()
}

// renderStructured joins page texts under markdown page headings and
// converts detected multi-column rows to pipe tables.
func renderStructured(texts map[int]string, start, end int) string {
	var out strings.Builder
	for page := start; page <= end; page++ {
		if out.Len() > 0 {
			out.WriteString("\n\n")
		}
		out.WriteString("## Page " + strconv.Itoa(page) + "\n\n")
		out.WriteString(structurePage(texts[page]))
	}
	return out.String()
}

// structurePage rewrites runs of multi-column lines as markdown tables.
func structurePage(text string) string {
	lines := strings.Split(text, "\n")
	var out []string
	inTable := false
	for _, line := range lines {
		cells := columnSplit.Split(strings.TrimSpace(line), -1)
		isRow := len(cells) >= 2 && strings.TrimSpace(line) != ""
		if isRow {
			out = append(out, "| "+strings.Join(cells, " | ")+" |")
			if !inTable {
				sep := make([]string, len(cells))
				for i := range sep {
					sep[i] = "---"
				}
				out = append(out, "| "+strings.Join(sep, " | ")+" |")
			}
			inTable = true
		} else {
			out = append(out, line)
			inTable = false
		}
	}
	return strings.Join(out, "\n")
}
