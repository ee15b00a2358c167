package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/kaiji/internal/common"
	"github.com/ternarybob/kaiji/internal/interfaces"
	"github.com/ternarybob/kaiji/internal/models"
	"github.com/ternarybob/kaiji/internal/services/cache"
	"github.com/ternarybob/kaiji/internal/services/directory"
	"github.com/ternarybob/kaiji/internal/services/edinet"
	"github.com/ternarybob/kaiji/internal/services/ir"
)

// ToolHandler executes one tool call and returns the content that
// re-enters the conversation.
type ToolHandler func(ctx context.Context, args map[string]any) (string, error)

// Tool pairs a documented schema with its handler.
type Tool struct {
	Name        string
	Description string
	Schema      *interfaces.Schema
	Handler     ToolHandler
}

// Deps are the services the tool layer composes.
type Deps struct {
	Directory *directory.Service
	Search    *edinet.SearchService
	Client    *edinet.Client
	Cache     *cache.Service
	Extractor interfaces.PDFExtractor
	IR        *ir.Service
	Analyzer  interfaces.Analyzer
	Storage   common.StorageConfig
	Logger    arbor.ILogger
}

// Toolset is the registry the orchestrator executes against.
type Toolset struct {
	deps   Deps
	tools  map[string]*Tool
	order  []string
	logger arbor.ILogger
}

// NewToolset wires the nine research tools over the given services.
func NewToolset(deps Deps) *Toolset {
	t := &Toolset{
		deps:   deps,
		tools:  map[string]*Tool{},
		logger: deps.Logger,
	}

	t.register(&Tool{
		Name:        "search_company",
		Description: "Find companies by name or code. Returns ranked candidates with EDINET code, securities code, and names.",
		Schema: objectSchema(map[string]*interfaces.Schema{
			"query": {Type: "string", Description: "Company name (Japanese or English) or a securities/EDINET code"},
			"limit": {Type: "integer", Description: "Maximum candidates to return, default 5"},
		}, "query"),
		Handler: t.searchCompany,
	})

	t.register(&Tool{
		Name:        "search_documents",
		Description: "Search regulatory filings by company and document type over a date range.",
		Schema: objectSchema(map[string]*interfaces.Schema{
			"sec_code":       {Type: "string", Description: "5-digit securities code, exact match"},
			"edinet_code":    {Type: "string", Description: "EDINET code, exact match"},
			"company_name":   {Type: "string", Description: "Substring of the Japanese filer name"},
			"doc_type_codes": {Type: "array", Items: &interfaces.Schema{Type: "string"}, Description: "Document type codes, e.g. [\"120\"]"},
			"start_date":     {Type: "string", Description: "ISO date, inclusive"},
			"end_date":       {Type: "string", Description: "ISO date, inclusive"},
			"search_order":   {Type: "string", Enum: []string{"newest_first", "oldest_first"}},
			"max_documents":  {Type: "integer", Description: "Hard cap on returned documents"},
		}),
		Handler: t.searchDocuments,
	})

	t.register(&Tool{
		Name:        "download_document",
		Description: "Download a filing PDF to the local cache. Pass the metadata fields from search_documents so the file lands in the company hierarchy.",
		Schema: objectSchema(map[string]*interfaces.Schema{
			"doc_id":          {Type: "string", Description: "8-character document ID"},
			"sec_code":        {Type: "string"},
			"filer_name":      {Type: "string"},
			"doc_type_code":   {Type: "string"},
			"period_end":      {Type: "string"},
			"period_start":    {Type: "string"},
			"doc_description": {Type: "string"},
		}, "doc_id"),
		Handler: t.downloadDocument,
	})

	t.register(&Tool{
		Name:        "analyze_document",
		Description: "Produce a comprehensive analysis report for a filing, optionally against a prior period's filing.",
		Schema: objectSchema(map[string]*interfaces.Schema{
			"doc_id":          {Type: "string"},
			"prior_doc_id":    {Type: "string", Description: "Optional prior-period document for comparison"},
			"sec_code":        {Type: "string"},
			"filer_name":      {Type: "string"},
			"doc_type_code":   {Type: "string"},
			"period_end":      {Type: "string"},
			"period_start":    {Type: "string"},
			"doc_description": {Type: "string"},
		}, "doc_id"),
		Handler: t.analyzeDocument,
	})

	t.register(&Tool{
		Name:        "summarize_document",
		Description: "Summarize a filing, optionally focused on a topic.",
		Schema: objectSchema(map[string]*interfaces.Schema{
			"doc_id":          {Type: "string"},
			"focus":           {Type: "string", Description: "Optional focus topic, e.g. 業績見通し"},
			"sec_code":        {Type: "string"},
			"filer_name":      {Type: "string"},
			"doc_type_code":   {Type: "string"},
			"period_end":      {Type: "string"},
			"period_start":    {Type: "string"},
			"doc_description": {Type: "string"},
		}, "doc_id"),
		Handler: t.summarizeDocument,
	})

	t.register(&Tool{
		Name:        "compare_documents",
		Description: "Compare two or more filings on the given aspects.",
		Schema: objectSchema(map[string]*interfaces.Schema{
			"doc_ids": {Type: "array", Items: &interfaces.Schema{Type: "string"}, Description: "At least two document IDs"},
			"aspects": {Type: "array", Items: &interfaces.Schema{Type: "string"}, Description: "Aspects to compare, e.g. 売上高, 利益率"},
		}, "doc_ids"),
		Handler: t.compareDocuments,
	})

	t.register(&Tool{
		Name:        "fetch_ir_documents",
		Description: "Fetch investor-relations documents (earnings briefings, timely disclosures) from a company's IR pages.",
		Schema: objectSchema(map[string]*interfaces.Schema{
			"sec_code":     {Type: "string", Description: "5-digit securities code"},
			"category":     {Type: "string", Enum: []string{"earnings", "news", "disclosures"}},
			"since_days":   {Type: "integer", Description: "Lookback window in days, default 90"},
			"force":        {Type: "boolean", Description: "Redownload documents already cached, default false"},
			"with_summary": {Type: "boolean", Description: "Generate LLM summaries for fetched documents, default true"},
		}, "sec_code"),
		Handler: t.fetchIRDocuments,
	})

	t.register(&Tool{
		Name:        "fetch_ir_news",
		Description: "Fetch recent IR news items for a company.",
		Schema: objectSchema(map[string]*interfaces.Schema{
			"sec_code":   {Type: "string"},
			"limit":      {Type: "integer", Description: "Maximum items, default 10"},
			"since_days": {Type: "integer"},
		}, "sec_code"),
		Handler: t.fetchIRNews,
	})

	t.register(&Tool{
		Name:        "explore_ir_page",
		Description: "Explore an arbitrary IR page URL with the LLM and collect the documents linked from it.",
		Schema: objectSchema(map[string]*interfaces.Schema{
			"url":          {Type: "string"},
			"since_days":   {Type: "integer"},
			"force":        {Type: "boolean", Description: "Redownload documents already cached, default false"},
			"with_summary": {Type: "boolean", Description: "Generate LLM summaries for fetched documents, default true"},
		}, "url"),
		Handler: t.exploreIRPage,
	})

	return t
}

func (t *Toolset) register(tool *Tool) {
	t.tools[tool.Name] = tool
	t.order = append(t.order, tool.Name)
}

// Names lists the registered tools in registration order.
func (t *Toolset) Names() []string {
	return append([]string(nil), t.order...)
}

// Execute runs one tool call. Failures become error responses, never
// propagated errors.
func (t *Toolset) Execute(ctx context.Context, call ToolCall) ToolResponse {
	tool, ok := t.tools[call.Name]
	if !ok {
		return ToolResponse{
			ToolUseID: call.ID,
			Content:   fmt.Sprintf("unknown tool %q", call.Name),
			IsError:   true,
		}
	}

	content, err := tool.Handler(ctx, call.Arguments)
	if err != nil {
		t.logger.Warn().
			Str("tool", call.Name).
			Err(err).
			Msg("Tool execution failed")
		return ToolResponse{ToolUseID: call.ID, Content: err.Error(), IsError: true}
	}
	return ToolResponse{ToolUseID: call.ID, Content: content}
}

// FormatForPrompt renders the tool catalogue for the system prompt.
func (t *Toolset) FormatForPrompt() string {
	var sb strings.Builder
	for _, name := range t.order {
		tool := t.tools[name]
		schemaJSON, _ := json.Marshal(tool.Schema)
		fmt.Fprintf(&sb, "### %s\n%s\nArguments schema: %s\n\n", tool.Name, tool.Description, schemaJSON)
	}
	return strings.TrimSpace(sb.String())
}

// --- handlers ---

func (t *Toolset) searchCompany(ctx context.Context, args map[string]any) (string, error) {
	query := argString(args, "query")
	if query == "" {
		return "", fmt.Errorf("query is required")
	}
	limit := argInt(args, "limit", 5)

	candidates, err := t.deps.Directory.Search(ctx, query, limit)
	if err != nil {
		return "", err
	}
	return marshalContent(map[string]any{"candidates": candidates})
}

func (t *Toolset) searchDocuments(ctx context.Context, args map[string]any) (string, error) {
	filter := &models.DocumentFilter{
		SecCode:      argString(args, "sec_code"),
		EdinetCode:   argString(args, "edinet_code"),
		CompanyName:  argString(args, "company_name"),
		DocTypeCodes: argStringSlice(args, "doc_type_codes"),
		StartDate:    argDate(args, "start_date"),
		EndDate:      argDate(args, "end_date"),
		SearchOrder:  models.SearchOrder(argString(args, "search_order")),
		MaxDocuments: argInt(args, "max_documents", 0),
	}

	docs, err := t.deps.Search.Search(ctx, filter)
	if err != nil {
		return "", err
	}
	return marshalContent(map[string]any{"count": len(docs), "documents": docs})
}

func (t *Toolset) downloadDocument(ctx context.Context, args map[string]any) (string, error) {
	docID := argString(args, "doc_id")
	if docID == "" {
		return "", fmt.Errorf("doc_id is required")
	}

	path, err := t.resolveDocument(ctx, docID, args)
	if err != nil {
		return "", err
	}
	return marshalContent(map[string]any{
		"file_path": path,
		"metadata":  metadataFromArgs(docID, args, path),
	})
}

func (t *Toolset) analyzeDocument(ctx context.Context, args map[string]any) (string, error) {
	docID := argString(args, "doc_id")
	if docID == "" {
		return "", fmt.Errorf("doc_id is required")
	}

	markdown, path, err := t.extractDocument(ctx, docID, args)
	if err != nil {
		return "", err
	}

	var prior string
	if priorID := argString(args, "prior_doc_id"); priorID != "" {
		prior, _, err = t.extractDocument(ctx, priorID, nil)
		if err != nil {
			return "", fmt.Errorf("failed to prepare prior document %s: %w", priorID, err)
		}
	}

	report, err := t.deps.Analyzer.Analyze(ctx, markdown, prior)
	if err != nil {
		return "", err
	}
	return marshalContent(map[string]any{
		"report":   report,
		"metadata": metadataFromArgs(docID, args, path),
	})
}

func (t *Toolset) summarizeDocument(ctx context.Context, args map[string]any) (string, error) {
	docID := argString(args, "doc_id")
	if docID == "" {
		return "", fmt.Errorf("doc_id is required")
	}

	markdown, path, err := t.extractDocument(ctx, docID, args)
	if err != nil {
		return "", err
	}

	summary, err := t.deps.Analyzer.Summarize(ctx, markdown, argString(args, "focus"))
	if err != nil {
		return "", err
	}
	return marshalContent(map[string]any{
		"summary":  summary,
		"metadata": metadataFromArgs(docID, args, path),
	})
}

func (t *Toolset) compareDocuments(ctx context.Context, args map[string]any) (string, error) {
	docIDs := argStringSlice(args, "doc_ids")
	if len(docIDs) < 2 {
		return "", fmt.Errorf("compare_documents needs at least two doc_ids")
	}

	markdowns := make([]string, 0, len(docIDs))
	for _, docID := range docIDs {
		markdown, _, err := t.extractDocument(ctx, docID, nil)
		if err != nil {
			return "", fmt.Errorf("failed to prepare document %s: %w", docID, err)
		}
		markdowns = append(markdowns, markdown)
	}

	comparison, err := t.deps.Analyzer.Compare(ctx, markdowns, argStringSlice(args, "aspects"))
	if err != nil {
		return "", err
	}
	return marshalContent(map[string]any{"comparison": comparison, "doc_ids": docIDs})
}

func (t *Toolset) fetchIRDocuments(ctx context.Context, args map[string]any) (string, error) {
	secCode := argString(args, "sec_code")
	if secCode == "" {
		return "", fmt.Errorf("sec_code is required")
	}

	opts := irFetchOptions(args)
	opts.Category = models.IRCategory(argString(args, "category"))
	docs, err := t.deps.IR.FetchIRDocuments(ctx, directory.NormalizeSecCode(secCode), opts)
	if err != nil {
		return "", err
	}
	return marshalContent(map[string]any{"count": len(docs), "documents": docs})
}

func (t *Toolset) fetchIRNews(ctx context.Context, args map[string]any) (string, error) {
	secCode := argString(args, "sec_code")
	if secCode == "" {
		return "", fmt.Errorf("sec_code is required")
	}
	limit := argInt(args, "limit", 10)

	opts := ir.FetchOptions{
		Category: models.IRCategoryNews,
		Since:    sinceFromDays(argInt(args, "since_days", 0)),
	}
	docs, err := t.deps.IR.FetchIRDocuments(ctx, directory.NormalizeSecCode(secCode), opts)
	if err != nil {
		return "", err
	}
	if len(docs) > limit {
		docs = docs[:limit]
	}
	return marshalContent(map[string]any{"count": len(docs), "items": docs})
}

func (t *Toolset) exploreIRPage(ctx context.Context, args map[string]any) (string, error) {
	pageURL := argString(args, "url")
	if pageURL == "" {
		return "", fmt.Errorf("url is required")
	}

	docs, err := t.deps.IR.ExploreIRPage(ctx, pageURL, irFetchOptions(args))
	if err != nil {
		return "", err
	}
	return marshalContent(map[string]any{"count": len(docs), "documents": docs})
}

// irFetchOptions maps tool arguments onto the IR pipeline options.
// Summaries are on unless the model opts out.
func irFetchOptions(args map[string]any) ir.FetchOptions {
	return ir.FetchOptions{
		Since:       sinceFromDays(argInt(args, "since_days", 0)),
		Force:       argBool(args, "force"),
		WithSummary: argBoolDefault(args, "with_summary", true),
	}
}

// resolveDocument returns a local path for a filing PDF, downloading it
// when the cache misses. Metadata hints place the file in the company
// hierarchy; without them it lands flat under the download root.
func (t *Toolset) resolveDocument(ctx context.Context, docID string, args map[string]any) (string, error) {
	cached, err := t.deps.Cache.FindByDocID(docID)
	if err != nil {
		return "", err
	}
	if cached != nil {
		return cached.Path, nil
	}

	var savePath string
	if argString(args, "sec_code") != "" || argString(args, "filer_name") != "" {
		meta := &models.FilingMetadata{
			DocID:          docID,
			SecCode:        argString(args, "sec_code"),
			FilerName:      argString(args, "filer_name"),
			DocTypeCode:    argString(args, "doc_type_code"),
			PeriodEnd:      argString(args, "period_end"),
			PeriodStart:    argString(args, "period_start"),
			DocDescription: argString(args, "doc_description"),
		}
		savePath = models.BuildDownloadPath(t.deps.Storage.DownloadDir, meta)
	} else {
		savePath = filepath.Join(t.deps.Storage.DownloadDir, docID+".pdf")
	}

	return t.deps.Client.DownloadDocument(ctx, docID, models.DownloadTypePDF, savePath)
}

// extractDocument resolves a filing to disk and converts it to
// markdown with the auto strategy.
func (t *Toolset) extractDocument(ctx context.Context, docID string, args map[string]any) (string, string, error) {
	path, err := t.resolveDocument(ctx, docID, args)
	if err != nil {
		return "", "", err
	}
	if _, err := os.Stat(path); err != nil {
		return "", "", fmt.Errorf("document %s is not on disk: %w", docID, err)
	}

	parsed, err := t.deps.Extractor.ToMarkdown(ctx, path, models.StrategyAuto, models.PageRange{})
	if err != nil {
		return "", "", err
	}
	return parsed.Text, path, nil
}

// --- argument coercion ---

func argString(args map[string]any, key string) string {
	if args == nil {
		return ""
	}
	if v, ok := args[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func argInt(args map[string]any, key string, fallback int) int {
	if args == nil {
		return fallback
	}
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func argBool(args map[string]any, key string) bool {
	return argBoolDefault(args, key, false)
}

func argBoolDefault(args map[string]any, key string, fallback bool) bool {
	if args == nil {
		return fallback
	}
	if v, ok := args[key].(bool); ok {
		return v
	}
	return fallback
}

func argStringSlice(args map[string]any, key string) []string {
	if args == nil {
		return nil
	}
	raw, ok := args[key].([]any)
	if !ok {
		if single, ok := args[key].(string); ok && single != "" {
			return []string{single}
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func argDate(args map[string]any, key string) *time.Time {
	s := argString(args, key)
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}

func sinceFromDays(days int) *time.Time {
	if days <= 0 {
		return nil
	}
	t := time.Now().AddDate(0, 0, -days)
	return &t
}

func metadataFromArgs(docID string, args map[string]any, path string) map[string]any {
	return map[string]any{
		"doc_id":          docID,
		"sec_code":        argString(args, "sec_code"),
		"filer_name":      argString(args, "filer_name"),
		"doc_type_code":   argString(args, "doc_type_code"),
		"period_end":      argString(args, "period_end"),
		"period_start":    argString(args, "period_start"),
		"doc_description": argString(args, "doc_description"),
		"file_path":       path,
	}
}

func marshalContent(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func objectSchema(props map[string]*interfaces.Schema, required ...string) *interfaces.Schema {
	return &interfaces.Schema{Type: "object", Properties: props, Required: required}
}
