package pdf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/kaiji/internal/common"
)

// visionPrompt is the fixed extraction instruction sent with each page
// image. Accounting terminology must survive verbatim, so the prompt is
// written in Japanese.
const visionPrompt = `このPDFページの画像をMarkdownテキストに変換してください。

ルール:
- 見出しは「#」プレフィックスを使用する
- 表はMarkdownのパイプ形式(| セル | セル |)で再現する
- 図やグラフは [figure: 内容の説明] として記述する
- ヘッダー、フッター、ページ番号は省略する
- 日本語の固有名詞と数値は正確に転記する
- 会計用語(売上高、営業利益、経常利益など)は原文のまま保持する

Markdownテキストのみを出力してください。`

const visionRateLimitRetries = 3

// runVision converts the page range by sending each page's embedded
// image to the vision-capable model.
func (e *Extractor) runVision(ctx context.Context, pdfPath string, start, end int) (string, error) {
	if e.vision == nil || !e.vision.SupportsVision() {
		return "", &common.VisionApiError{Message: "no vision-capable provider configured"}
	}

	outDir, images, err := e.extractPageImages(pdfPath, start, end)
	if err != nil {
		return "", &common.VisionApiError{Message: "failed to extract page images", Cause: err}
	}
	defer os.RemoveAll(outDir)

	if len(images) == 0 {
		return "", &common.VisionApiError{Message: "no page images found in PDF"}
	}

	pageTexts := make(map[int][]string)
	for _, img := range images {
		data, err := os.ReadFile(img.path)
		if err != nil {
			return "", &common.VisionApiError{Message: "failed to read page image", Cause: err}
		}

		text, err := e.invokeVisionWithRetry(ctx, data, img.mime)
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
			out.WriteString("\n\n---\n\n")
		}
		out.WriteString("## Page " + strconv.Itoa(page) + "\n\n")
		out.WriteString(strings.Join(parts, "\n\n"))
	}
	return out.String(), nil
}

// invokeVisionWithRetry retries rate-limited calls with a linear delay;
// other failures surface immediately.
func (e *Extractor) invokeVisionWithRetry(ctx context.Context, image []byte, mimeType string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < visionRateLimitRetries; attempt++ {
		text, err := e.vision.InvokeVision(ctx, visionPrompt, image, mimeType)
		if err == nil {
			return strings.TrimSpace(text), nil
		}

		visionErr := &common.VisionApiError{Message: "vision extraction failed", Cause: err}
		var llmErr *common.LLMProviderError
		if !errors.As(err, &llmErr) || !llmErr.IsRateLimited() {
			return "", visionErr
		}
		lastErr = visionErr

		delay := time.Duration(attempt+1) * 5 * time.Second
		e.logger.Warn().
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("Vision call rate limited, backing off")
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
	return "", fmt.Errorf("vision retries exhausted: %w", lastErr)
}
