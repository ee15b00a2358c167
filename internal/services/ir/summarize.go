package ir

import (
	"context"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/kaiji/internal/interfaces"
	"github.com/ternarybob/kaiji/internal/models"
)

// summaryInputLimit caps the document text sent to the summarizer.
const summaryInputLimit = 30000

const summaryPrompt = `以下は日本の上場企業のIR資料の内容です。投資家向けに要約してください。

overview: 資料全体の要約(2〜3文)。
points: 投資判断に影響するポイントのリスト。各ポイントに label を付ける:
- bullish: 株価にプラスの材料
- bearish: 株価にマイナスの材料
- warning: リスクや注意事項

資料内容:
`

var summarySchema = &interfaces.Schema{
	Type: "object",
	Properties: map[string]*interfaces.Schema{
		"overview": {Type: "string"},
		"points": {
			Type: "array",
			Items: &interfaces.Schema{
				Type: "object",
				Properties: map[string]*interfaces.Schema{
					"label":       {Type: "string", Enum: []string{"bullish", "bearish", "warning"}},
					"description": {Type: "string"},
				},
				Required: []string{"label", "description"},
			},
		},
	},
	Required: []string{"overview", "points"},
}

// summarizeText asks the model for a structured summary of document
// text, capping the input first.
func summarizeText(ctx context.Context, provider interfaces.LLMProvider, text string) (*models.IRSummary, error) {
	if len(text) > summaryInputLimit {
		text = text[:summaryInputLimit]
	}

	var summary models.IRSummary
	if err := provider.InvokeStructured(ctx, summaryPrompt+text, summarySchema, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// extractMainContent pulls the readable part of an HTML news page as
// markdown, preferring article over main over body.
func extractMainContent(pageHTML string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, nav, footer, noscript").Remove()

	var content *goquery.Selection
	for _, selector := range []string{"article", "main", "body"} {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			content = sel
			break
		}
	}
	if content == nil {
		content = doc.Selection
	}

	rendered, err := goquery.OuterHtml(content)
	if err != nil {
		return "", err
	}

	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(rendered)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(markdown), nil
}
