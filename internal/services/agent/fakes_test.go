package agent

import (
	"context"
	"fmt"

	"github.com/ternarybob/kaiji/internal/interfaces"
	"github.com/ternarybob/kaiji/internal/models"
)

// scriptProvider replays canned replies and records what it was sent.
type scriptProvider struct {
	replies []string
	err     error
	chats   [][]interfaces.ChatMessage
}

var _ interfaces.LLMProvider = (*scriptProvider)(nil)

func (p *scriptProvider) ModelName() string    { return "script" }
func (p *scriptProvider) ProviderName() string { return "script" }
func (p *scriptProvider) SupportsVision() bool { return false }

func (p *scriptProvider) Chat(_ context.Context, messages []interfaces.ChatMessage) (string, error) {
	p.chats = append(p.chats, messages)
	if p.err != nil {
		return "", p.err
	}
	if len(p.replies) == 0 {
		return "", fmt.Errorf("script exhausted")
	}
	reply := p.replies[0]
	p.replies = p.replies[1:]
	return reply, nil
}

func (p *scriptProvider) InvokeStructured(context.Context, string, *interfaces.Schema, any) error {
	return fmt.Errorf("not scripted")
}

func (p *scriptProvider) InvokeVision(context.Context, string, []byte, string) (string, error) {
	return "", fmt.Errorf("not scripted")
}

type fakeAnalyzer struct {
	report        map[string]any
	summary       string
	comparison    string
	lastPrior     string
	lastFocus     string
	lastMarkdowns []string
	lastAspects   []string
	err           error
}

var _ interfaces.Analyzer = (*fakeAnalyzer)(nil)

func (a *fakeAnalyzer) Analyze(_ context.Context, markdown, prior string) (map[string]any, error) {
	a.lastPrior = prior
	if a.err != nil {
		return nil, a.err
	}
	if a.report == nil {
		return map[string]any{"summary": "ok"}, nil
	}
	return a.report, nil
}

func (a *fakeAnalyzer) Summarize(_ context.Context, markdown, focus string) (string, error) {
	a.lastFocus = focus
	return a.summary, a.err
}

func (a *fakeAnalyzer) Compare(_ context.Context, markdowns, aspects []string) (string, error) {
	a.lastMarkdowns = markdowns
	a.lastAspects = aspects
	return a.comparison, a.err
}

type fakeExtractor struct {
	text  string
	err   error
	calls int
}

var _ interfaces.PDFExtractor = (*fakeExtractor)(nil)

func (e *fakeExtractor) ToMarkdown(_ context.Context, _ string, strategy models.ExtractionStrategy, _ models.PageRange) (*models.ParsedPDFContent, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return &models.ParsedPDFContent{Text: e.text, StrategyUsed: strategy}, nil
}
