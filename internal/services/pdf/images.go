package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/ternarybob/kaiji/internal/common"
)

// pageImage is one embedded image pulled out of a PDF page. Scanned
// filings carry a single full-page image per page.
type pageImage struct {
	page int
	path string
	mime string
}

// Extracted image files carry the page number between underscores.
var imageFilePattern = regexp.MustCompile(`_(\d+)_[^_]*\.(png|jpg|jpeg|tif|tiff)$`)

var imageMimeTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
}

// extractPageImages pulls the embedded images for the clamped page range
// into a temp directory and returns them ordered by page. The caller
// owns the returned directory and must remove it.
func (e *Extractor) extractPageImages(pdfPath string, start, end int) (string, []pageImage, error) {
	outDir, err := os.MkdirTemp(e.tempDir, "images-")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	conf := model.NewDefaultConfiguration()
	selected := []string{fmt.Sprintf("%d-%d", start, end)}
	if err := api.ExtractImagesFile(pdfPath, outDir, selected, conf); err != nil {
		os.RemoveAll(outDir)
		return "", nil, &common.ParseError{Message: fmt.Sprintf("image extraction failed: %v", err), PdfPath: pdfPath}
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		os.RemoveAll(outDir)
		return "", nil, fmt.Errorf("failed to read extraction output: %w", err)
	}

	var images []pageImage
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := imageFilePattern.FindStringSubmatch(strings.ToLower(entry.Name()))
		if m == nil {
			continue
		}
		page, err := strconv.Atoi(m[1])
		if err != nil || page < start || page > end {
			continue
		}
		images = append(images, pageImage{
			page: page,
			path: filepath.Join(outDir, entry.Name()),
			mime: imageMimeTypes[m[2]],
		})
	}

	sort.Slice(images, func(i, j int) bool {
		if images[i].page != images[j].page {
			return images[i].page < images[j].page
		}
		return images[i].path < images[j].path
	})
	return outDir, images, nil
}
