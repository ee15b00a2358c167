package agent

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/kaiji/internal/common"
)

func testAgentConfig() common.AgentConfig {
	return common.AgentConfig{MaxTurns: 5, MaxToolCalls: 5, Timeout: time.Minute}
}

func testToolset(tools ...*Tool) *Toolset {
	ts := &Toolset{tools: map[string]*Tool{}, logger: common.GetLogger()}
	for _, tool := range tools {
		ts.register(tool)
	}
	return ts
}

func echoTool(name string) *Tool {
	return &Tool{
		Name:        name,
		Description: "test tool",
		Schema:      objectSchema(nil),
		Handler: func(_ context.Context, args map[string]any) (string, error) {
			return fmt.Sprintf(`{"ok": true, "tool": %q}`, name), nil
		},
	}
}

func toolUseReply(name, args string) string {
	return fmt.Sprintf("I need more data.\n```json\n{\"tool_use\": {\"id\": \"tu_1\", \"name\": %q, \"arguments\": %s}}\n```", name, args)
}

func TestRun_FinalAnswerWithoutTools(t *testing.T) {
	provider := &scriptProvider{replies: []string{"Toyota's securities code is 72030."}}
	orch := NewOrchestrator(provider, testToolset(), testAgentConfig(), common.GetLogger())

	result, err := orch.Run(context.Background(), "What is Toyota's securities code?")
	require.NoError(t, err)

	assert.Equal(t, "Toyota's securities code is 72030.", result.Answer)
	assert.Equal(t, 1, result.Turns)
	assert.Empty(t, result.ToolsUsed)
	assert.Equal(t, "general", result.Intent)
	assert.Empty(t, result.Documents)
}

func TestRun_ToolCallThenAnswer(t *testing.T) {
	provider := &scriptProvider{replies: []string{
		toolUseReply("search_documents", `{"sec_code": "72030"}`),
		"Found one annual report.",
	}}
	toolset := testToolset(&Tool{
		Name:   "search_documents",
		Schema: objectSchema(nil),
		Handler: func(_ context.Context, args map[string]any) (string, error) {
			assert.Equal(t, "72030", args["sec_code"])
			return `{"count": 1, "metadata": {"doc_id": "S100TEST", "sec_code": "72030", "filer_name": "トヨタ自動車株式会社", "doc_type_code": "120", "period_end": "2024-03-31"}}`, nil
		},
	})
	orch := NewOrchestrator(provider, toolset, testAgentConfig(), common.GetLogger())

	result, messages, err := orch.RunWithHistory(context.Background(), nil, "Find Toyota's latest annual report")
	require.NoError(t, err)

	assert.Equal(t, "Found one annual report.", result.Answer)
	assert.Equal(t, 2, result.Turns)
	assert.Equal(t, []string{"search_documents"}, result.ToolsUsed)
	assert.Equal(t, "search", result.Intent)

	require.Len(t, result.Documents, 1)
	doc := result.Documents[0]
	assert.Equal(t, "S100TEST", doc.DocID)
	assert.Equal(t, "72030", doc.SecCode)
	assert.Equal(t, "トヨタ自動車株式会社", doc.FilerName)
	assert.Equal(t, "120", doc.DocTypeCode)
	assert.Equal(t, "2024-03-31", doc.PeriodEnd)

	// The observation re-enters the second LLM call as a user turn.
	require.Len(t, provider.chats, 2)
	last := provider.chats[1][len(provider.chats[1])-1]
	assert.Equal(t, "user", last.Role)
	assert.True(t, strings.HasPrefix(last.Content, "Tool 'search_documents' returned:"))

	// Conversation state records the tool turn for later runs.
	assert.Equal(t, "system", messages[0].Role)
	roles := make([]string, 0, len(messages))
	for _, msg := range messages {
		roles = append(roles, msg.Role)
	}
	assert.Contains(t, roles, "tool")
}

func TestRun_ToolsUsedDedupAndIntentPriority(t *testing.T) {
	provider := &scriptProvider{replies: []string{
		toolUseReply("download_document", `{"doc_id": "S100AAA1"}`),
		toolUseReply("analyze_document", `{"doc_id": "S100AAA1"}`),
		toolUseReply("download_document", `{"doc_id": "S100BBB2"}`),
		"Done.",
	}}
	toolset := testToolset(echoTool("download_document"), echoTool("analyze_document"))
	orch := NewOrchestrator(provider, toolset, testAgentConfig(), common.GetLogger())

	result, err := orch.Run(context.Background(), "download and analyze")
	require.NoError(t, err)

	assert.Equal(t, []string{"download_document", "analyze_document"}, result.ToolsUsed)
	assert.Equal(t, "download", result.Intent)
}

func TestRun_ToolErrorBecomesObservation(t *testing.T) {
	provider := &scriptProvider{replies: []string{
		toolUseReply("search_documents", `{}`),
		"The search failed, so I cannot answer.",
	}}
	toolset := testToolset(&Tool{
		Name:   "search_documents",
		Schema: objectSchema(nil),
		Handler: func(context.Context, map[string]any) (string, error) {
			return "", fmt.Errorf("EDINET returned 500")
		},
	})
	orch := NewOrchestrator(provider, toolset, testAgentConfig(), common.GetLogger())

	result, messages, err := orch.RunWithHistory(context.Background(), nil, "search")
	require.NoError(t, err)

	assert.Equal(t, "The search failed, so I cannot answer.", result.Answer)

	var observation string
	for _, msg := range messages {
		if msg.Role == "tool" {
			observation = msg.Content.Normalize()
		}
	}
	assert.True(t, strings.HasPrefix(observation, "ERROR:"))
	assert.Contains(t, observation, "EDINET returned 500")
}

func TestRun_UnknownToolIsObservation(t *testing.T) {
	provider := &scriptProvider{replies: []string{
		toolUseReply("no_such_tool", `{}`),
		"That tool does not exist.",
	}}
	orch := NewOrchestrator(provider, testToolset(), testAgentConfig(), common.GetLogger())

	result, err := orch.Run(context.Background(), "query")
	require.NoError(t, err)
	assert.Equal(t, "That tool does not exist.", result.Answer)
}

func TestRun_TurnLimit(t *testing.T) {
	provider := &scriptProvider{replies: []string{
		toolUseReply("echo", `{}`),
		toolUseReply("echo", `{}`),
	}}
	config := testAgentConfig()
	config.MaxTurns = 2
	orch := NewOrchestrator(provider, testToolset(echoTool("echo")), config, common.GetLogger())

	result, err := orch.Run(context.Background(), "loop forever")
	require.NoError(t, err)

	assert.Contains(t, result.Answer, "turn limit")
	assert.Equal(t, 2, result.Turns)
}

func TestRun_ToolCallBudget(t *testing.T) {
	provider := &scriptProvider{replies: []string{
		toolUseReply("echo", `{}`),
		toolUseReply("echo", `{}`),
	}}
	config := testAgentConfig()
	config.MaxToolCalls = 1
	orch := NewOrchestrator(provider, testToolset(echoTool("echo")), config, common.GetLogger())

	result, err := orch.Run(context.Background(), "loop forever")
	require.NoError(t, err)

	assert.Contains(t, result.Answer, "tool-call budget")
}

func TestRun_LLMFailureBecomesAnswer(t *testing.T) {
	provider := &scriptProvider{err: fmt.Errorf("rate limited")}
	orch := NewOrchestrator(provider, testToolset(), testAgentConfig(), common.GetLogger())

	result, err := orch.Run(context.Background(), "query")
	require.NoError(t, err)

	assert.Contains(t, result.Answer, "could not be completed")
	assert.Contains(t, result.Answer, "rate limited")
}

func TestRunWithHistory_PrependsSystemOnce(t *testing.T) {
	provider := &scriptProvider{replies: []string{"first answer", "second answer"}}
	orch := NewOrchestrator(provider, testToolset(), testAgentConfig(), common.GetLogger())

	_, messages, err := orch.RunWithHistory(context.Background(), nil, "first question")
	require.NoError(t, err)
	require.Equal(t, "system", messages[0].Role)

	result, messages, err := orch.RunWithHistory(context.Background(), messages, "second question")
	require.NoError(t, err)

	assert.Equal(t, "second answer", result.Answer)
	systemCount := 0
	for _, msg := range messages {
		if msg.Role == "system" {
			systemCount++
		}
	}
	assert.Equal(t, 1, systemCount)
}

func TestBuildResult_MultiPartFinalContent(t *testing.T) {
	orch := NewOrchestrator(&scriptProvider{}, testToolset(), testAgentConfig(), common.GetLogger())
	messages := []Message{
		{Role: "system", Content: TextContent("prompt")},
		{Role: "user", Content: TextContent("question")},
		{Role: "assistant", Content: BlocksContent([]ContentBlock{
			{Type: "text", Text: "Toyota"},
			{Type: "tool_use", ID: "t1", Name: "x"},
			{Type: "text", Text: "found"},
		})},
	}

	result := orch.buildResult(messages, 1)

	assert.Equal(t, "Toyota\nfound", result.Answer)
	assert.Empty(t, result.Documents)
}

func TestParseToolUse(t *testing.T) {
	t.Run("fenced block", func(t *testing.T) {
		call, ok := parseToolUse("Let me search.\n```json\n{\"tool_use\": {\"id\": \"tu_9\", \"name\": \"search_company\", \"arguments\": {\"query\": \"トヨタ\"}}}\n```")
		require.True(t, ok)
		assert.Equal(t, "tu_9", call.ID)
		assert.Equal(t, "search_company", call.Name)
		assert.Equal(t, "トヨタ", call.Arguments["query"])
	})

	t.Run("plain answer", func(t *testing.T) {
		_, ok := parseToolUse("The latest filing is the FY2024 annual report.")
		assert.False(t, ok)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, ok := parseToolUse("```json\n{\"tool_use\": {broken}\n```")
		assert.False(t, ok)
	})

	t.Run("missing tool name", func(t *testing.T) {
		_, ok := parseToolUse("```json\n{\"tool_use\": {\"id\": \"tu_1\", \"arguments\": {}}}\n```")
		assert.False(t, ok)
	})
}

func TestInferIntent(t *testing.T) {
	tests := []struct {
		tools []string
		want  string
	}{
		{[]string{"search_company", "search_documents"}, "search"},
		{[]string{"download_document"}, "download"},
		{[]string{"analyze_document", "fetch_ir_news"}, "analyze"},
		{[]string{"compare_documents"}, "compare"},
		{[]string{"summarize_document"}, "summarize"},
		{[]string{"fetch_ir_documents"}, "ir"},
		{[]string{"explore_ir_page"}, "ir"},
		{nil, "general"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, inferIntent(tt.tools), "tools %v", tt.tools)
	}
}

func TestBuildSystemPrompt(t *testing.T) {
	toolset := testToolset(echoTool("search_company"), echoTool("download_document"))
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	prompt := buildSystemPrompt(toolset, now)

	assert.Contains(t, prompt, "## Current date")
	assert.Contains(t, prompt, "2025-03-01")
	assert.Contains(t, prompt, "### search_company")
	assert.Contains(t, prompt, "### download_document")
	assert.Contains(t, prompt, "tool_use")
}
