package pdf

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/ternarybob/kaiji/internal/common"
)

const tesseractBinary = "tesseract"

// Japanese filings need both scripts; English covers romanized names
// and figures.
const tesseractLanguages = "jpn+eng"

// runOCR converts the page range through the external tesseract binary
// over extracted page images.
func (e *Extractor) runOCR(ctx context.Context, pdfPath string, start, end int) (string, error) {
	binPath, err := exec.LookPath(tesseractBinary)
	if err != nil {
		return "", &common.OcrError{Message: "tesseract is not installed", NotInstalled: true}
	}

	outDir, images, err := e.extractPageImages(pdfPath, start, end)
	if err != nil {
		return "", &common.OcrError{Message: fmt.Sprintf("failed to extract page images: %v", err)}
	}
	defer os.RemoveAll(outDir)

	if len(images) == 0 {
		return "", &common.OcrError{Message: "no page images found in PDF"}
	}

	pageTexts := make(map[int][]string)
	for _, img := range images {
		text, err := e.ocrImage(ctx, binPath, img.path)
		if err != nil {
			return "", err
		}
		if text != "" {
			pageTexts[img.page] = append(pageTexts[img.page], text)
		}
	}

	var out strings.Builder
	for page := start; page <= end; page++ {
		parts, ok := pageTexts[page]
		if !ok {
			continue
		}
		if out.Len() > 0 {
			out.WriteString("\n\n")
		}
		out.WriteString("## Page " + strconv.Itoa(page) + "\n\n")
		out.WriteString(strings.Join(parts, "\n\n"))
	}
	return out.String(), nil
}

func (e *Extractor) ocrImage(ctx context.Context, binPath, imagePath string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binPath, imagePath, "stdout", "-l", tesseractLanguages)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		e.logger.Warn().
			Str("image", imagePath).
			Str("stderr", strings.TrimSpace(stderr.String())).
			Err(err).
			Msg("OCR run failed")
		return "", &common.OcrError{Message: fmt.Sprintf("tesseract failed on %s: %v", imagePath, err)}
	}
	return strings.TrimSpace(stdout.String()), nil
}
