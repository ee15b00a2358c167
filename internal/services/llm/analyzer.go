package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/kaiji/internal/interfaces"
)

// analyzerInputLimit caps each document fed to the analysis prompts.
const analyzerInputLimit = 30000

const analyzePrompt = `以下は日本の上場企業の開示書類から抽出した本文です。投資家向けの分析レポートを作成してください。
前期の書類が与えられている場合は前期比の変化も分析してください。

`

const comparePrompt = `以下の複数の開示書類を比較し、指定された観点ごとに相違点と傾向をまとめてください。

`

var analyzeSchema = &interfaces.Schema{
	Type: "object",
	Properties: map[string]*interfaces.Schema{
		"summary":            {Type: "string", Description: "書類全体の要約"},
		"financial_overview": {Type: "string", Description: "業績・財務状況の概観"},
		"risks":              {Type: "array", Items: &interfaces.Schema{Type: "string"}},
		"highlights":         {Type: "array", Items: &interfaces.Schema{Type: "string"}},
		"period_comparison":  {Type: "string", Description: "前期比の変化。前期資料が無ければ空文字列"},
	},
	Required: []string{"summary", "financial_overview"},
}

// LLMAnalyzer is a prompt-based implementation of the analysis
// contract. A heavier external pipeline can replace it behind the same
// interface.
type LLMAnalyzer struct {
	provider interfaces.LLMProvider
}

var _ interfaces.Analyzer = (*LLMAnalyzer)(nil)

// NewLLMAnalyzer creates an analyzer backed by the given provider.
func NewLLMAnalyzer(provider interfaces.LLMProvider) *LLMAnalyzer {
	return &LLMAnalyzer{provider: provider}
}

func (a *LLMAnalyzer) Analyze(ctx context.Context, markdown string, priorMarkdown string) (map[string]any, error) {
	prompt := analyzePrompt + "## 対象書類\n\n" + capInput(markdown)
	if priorMarkdown != "" {
		prompt += "\n\n## 前期の書類\n\n" + capInput(priorMarkdown)
	}

	var report map[string]any
	if err := a.provider.InvokeStructured(ctx, prompt, analyzeSchema, &report); err != nil {
		return nil, err
	}
	return report, nil
}

func (a *LLMAnalyzer) Summarize(ctx context.Context, markdown string, focus string) (string, error) {
	prompt := "以下の開示書類を要約してください。"
	if focus != "" {
		prompt += fmt.Sprintf("特に「%s」に注目してください。", focus)
	}
	prompt += "\n\n" + capInput(markdown)

	return a.provider.Chat(ctx, []interfaces.ChatMessage{{Role: "user", Content: prompt}})
}

func (a *LLMAnalyzer) Compare(ctx context.Context, markdowns []string, aspects []string) (string, error) {
	var prompt strings.Builder
	prompt.WriteString(comparePrompt)
	if len(aspects) > 0 {
		prompt.WriteString("観点: " + strings.Join(aspects, "、") + "\n\n")
	}
	for i, markdown := range markdowns {
		fmt.Fprintf(&prompt, "## 書類%d\n\n%s\n\n", i+1, capInput(markdown))
	}

	return a.provider.Chat(ctx, []interfaces.ChatMessage{{Role: "user", Content: prompt.String()}})
}

func capInput(text string) string {
	if len(text) > analyzerInputLimit {
		return text[:analyzerInputLimit]
	}
	return text
}
