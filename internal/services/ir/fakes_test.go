package ir

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/kaiji/internal/interfaces"
)

// fakeScraper serves canned pages and records downloads without any
// network or browser.
type fakeScraper struct {
	pages     map[string]string
	pageErrs  map[string]error
	downloads []string
	fetched   []string
}

func newFakeScraper() *fakeScraper {
	return &fakeScraper{pages: map[string]string{}, pageErrs: map[string]error{}}
}

func (f *fakeScraper) FetchPage(_ context.Context, url string) (string, error) {
	f.fetched = append(f.fetched, url)
	if err, ok := f.pageErrs[url]; ok {
		return "", err
	}
	page, ok := f.pages[url]
	if !ok {
		return "", fmt.Errorf("no fixture page for %s", url)
	}
	return page, nil
}

func (f *fakeScraper) DownloadPDF(_ context.Context, url, savePath string, _ bool, _ string) (string, error) {
	f.downloads = append(f.downloads, url)
	if err := os.MkdirAll(filepath.Dir(savePath), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(savePath, []byte("%PDF-1.4 fixture"), 0o644); err != nil {
		return "", err
	}
	return savePath, nil
}

func (f *fakeScraper) Close() error { return nil }

var _ interfaces.Scraper = (*fakeScraper)(nil)

// stubProvider returns a fixed JSON payload for structured calls and
// records the prompts it received.
type stubProvider struct {
	response string
	err      error
	prompts  []string
}

func (p *stubProvider) ModelName() string    { return "stub-model" }
func (p *stubProvider) ProviderName() string { return "stub" }
func (p *stubProvider) SupportsVision() bool { return false }

func (p *stubProvider) InvokeStructured(_ context.Context, prompt string, _ *interfaces.Schema, out any) error {
	p.prompts = append(p.prompts, prompt)
	if p.err != nil {
		return p.err
	}
	return json.Unmarshal([]byte(p.response), out)
}

func (p *stubProvider) Chat(_ context.Context, messages []interfaces.ChatMessage) (string, error) {
	if len(messages) > 0 {
		p.prompts = append(p.prompts, messages[len(messages)-1].Content)
	}
	if p.err != nil {
		return "", p.err
	}
	return p.response, nil
}

func (p *stubProvider) InvokeVision(context.Context, string, []byte, string) (string, error) {
	return "", fmt.Errorf("stub provider has no vision support")
}

var _ interfaces.LLMProvider = (*stubProvider)(nil)
