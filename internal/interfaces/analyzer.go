package interfaces

import "context"

// Analyzer is the contract for the downstream analysis pipeline (an
// external collaborator). The agent's analyze/summarize/compare tools
// delegate here; this repository does not reimplement the pipeline.
type Analyzer interface {
	// Analyze produces a comprehensive report for an extracted document,
	// optionally against a prior period's document.
	Analyze(ctx context.Context, markdown string, priorMarkdown string) (map[string]any, error)

	// Summarize produces a focused summary of an extracted document.
	Summarize(ctx context.Context, markdown string, focus string) (string, error)

	// Compare produces a comparison report over two or more extracted
	// documents on the requested aspects.
	Compare(ctx context.Context, markdowns []string, aspects []string) (string, error)
}
