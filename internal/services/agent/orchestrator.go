package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/kaiji/internal/common"
	"github.com/ternarybob/kaiji/internal/interfaces"
)

// Orchestrator drives the ReAct loop: the model plans, the toolset
// executes, observations re-enter the prompt, and the loop ends on a
// reply without a tool call. Failures become final-answer content; the
// orchestrator itself does not surface errors to the caller.
type Orchestrator struct {
	provider interfaces.LLMProvider
	toolset  *Toolset
	config   common.AgentConfig
	logger   arbor.ILogger
	now      func() time.Time
}

// NewOrchestrator binds a chat model, a toolset, and loop bounds.
func NewOrchestrator(provider interfaces.LLMProvider, toolset *Toolset, config common.AgentConfig, logger arbor.ILogger) *Orchestrator {
	if config.MaxTurns <= 0 {
		config.MaxTurns = 10
	}
	if config.MaxToolCalls <= 0 {
		config.MaxToolCalls = 15
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Minute
	}
	return &Orchestrator{
		provider: provider,
		toolset:  toolset,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// Run executes a single-shot query.
func (o *Orchestrator) Run(ctx context.Context, query string) (*Result, error) {
	result, _, err := o.RunWithHistory(ctx, nil, query)
	return result, err
}

// RunWithHistory executes a query against prior conversation state and
// returns the updated message list alongside the result, so callers can
// maintain multi-turn sessions without the orchestrator owning them.
func (o *Orchestrator) RunWithHistory(ctx context.Context, history []Message, query string) (*Result, []Message, error) {
	ctx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	runID := uuid.New().String()
	start := o.now()

	messages := append([]Message(nil), history...)
	if len(messages) == 0 || messages[0].Role != "system" {
		messages = append([]Message{{
			Role:    "system",
			Content: TextContent(buildSystemPrompt(o.toolset, o.now())),
		}}, messages...)
	}
	messages = append(messages, Message{Role: "user", Content: TextContent(query)})

	o.logger.Debug().
		Str("run_id", runID).
		Str("query", query).
		Msg("Starting agent run")

	turns := 0
	toolCallCount := 0

	for turns < o.config.MaxTurns {
		if ctx.Err() != nil {
			messages = o.finish(messages, fmt.Sprintf("The run was cancelled after %s.", time.Since(start).Round(time.Second)))
			break
		}
		turns++

		response, err := o.provider.Chat(ctx, toChatMessages(messages))
		if err != nil {
			o.logger.Warn().Str("run_id", runID).Err(err).Msg("LLM call failed")
			messages = o.finish(messages, fmt.Sprintf("The request could not be completed: %v", err))
			break
		}

		call, ok := parseToolUse(response)
		if !ok {
			if strings.TrimSpace(response) == "" {
				// Not an answer yet; let the next turn try again.
				continue
			}
			messages = append(messages, Message{Role: "assistant", Content: TextContent(response)})
			break
		}

		if toolCallCount >= o.config.MaxToolCalls {
			messages = o.finish(messages, fmt.Sprintf("Stopped after reaching the tool-call budget (%d). Partial findings may be incomplete.", o.config.MaxToolCalls))
			break
		}
		toolCallCount++
		if call.ID == "" {
			call.ID = uuid.New().String()
		}

		o.logger.Debug().
			Str("run_id", runID).
			Int("turn", turns).
			Str("tool", call.Name).
			Msg("Agent requested tool use")

		toolResp := o.toolset.Execute(ctx, *call)

		messages = append(messages,
			Message{Role: "assistant", Content: TextContent(response), ToolCalls: []ToolCall{*call}},
			Message{Role: "tool", Content: TextContent(toolResp.Content), ToolCalls: []ToolCall{{ID: call.ID, Name: call.Name}}},
		)
		if toolResp.IsError {
			// Mark the observation so the model can react to failures.
			messages[len(messages)-1].Content = TextContent("ERROR: " + toolResp.Content)
		}
	}

	if last := lastMessage(messages); last == nil || last.Role != "assistant" || len(last.ToolCalls) > 0 {
		messages = o.finish(messages, fmt.Sprintf("Stopped after reaching the turn limit (%d) without a final answer.", o.config.MaxTurns))
	}

	result := o.buildResult(messages, turns)

	o.logger.Debug().
		Str("run_id", runID).
		Int("turns", turns).
		Int("tool_calls", toolCallCount).
		Str("intent", result.Intent).
		Str("duration", time.Since(start).String()).
		Msg("Agent run complete")

	return result, messages, nil
}

// finish appends a synthetic final answer so the run always ends with
// assistant content.
func (o *Orchestrator) finish(messages []Message, answer string) []Message {
	return append(messages, Message{Role: "assistant", Content: TextContent(answer)})
}

func lastMessage(messages []Message) *Message {
	if len(messages) == 0 {
		return nil
	}
	return &messages[len(messages)-1]
}

// buildResult inspects the final conversation state: final answer,
// first-occurrence tool list, inferred intent, and harvested documents.
func (o *Orchestrator) buildResult(messages []Message, turns int) *Result {
	result := &Result{Turns: turns}

	if last := lastMessage(messages); last != nil {
		result.Answer = last.Content.Normalize()
	}

	seen := map[string]bool{}
	for _, msg := range messages {
		if msg.Role != "assistant" {
			continue
		}
		for _, call := range msg.ToolCalls {
			if !seen[call.Name] {
				seen[call.Name] = true
				result.ToolsUsed = append(result.ToolsUsed, call.Name)
			}
		}
	}
	result.Intent = inferIntent(result.ToolsUsed)
	result.Documents = harvestDocuments(messages)
	return result
}

// intentPriority mirrors the keyword-to-tool mapping order of the
// system prompt.
var intentPriority = []struct {
	intent string
	tools  []string
}{
	{"search", []string{"search_documents", "search_company"}},
	{"download", []string{"download_document"}},
	{"analyze", []string{"analyze_document"}},
	{"compare", []string{"compare_documents"}},
	{"summarize", []string{"summarize_document"}},
	{"ir", []string{"fetch_ir_documents", "fetch_ir_news", "explore_ir_page"}},
}

func inferIntent(toolsUsed []string) string {
	used := map[string]bool{}
	for _, name := range toolsUsed {
		used[name] = true
	}
	for _, entry := range intentPriority {
		for _, tool := range entry.tools {
			if used[tool] {
				return entry.intent
			}
		}
	}
	return "general"
}

// harvestDocuments collects DocumentInfo records from tool payloads
// whose JSON content carries a metadata object with a doc_id. Non-JSON
// content is skipped silently.
func harvestDocuments(messages []Message) []DocumentInfo {
	var docs []DocumentInfo
	seen := map[string]bool{}

	for _, msg := range messages {
		if msg.Role != "tool" {
			continue
		}
		var payload map[string]any
		if err := json.Unmarshal([]byte(msg.Content.Normalize()), &payload); err != nil {
			continue
		}
		meta, ok := payload["metadata"].(map[string]any)
		if !ok {
			continue
		}
		docID, _ := meta["doc_id"].(string)
		if docID == "" || seen[docID] {
			continue
		}
		seen[docID] = true

		docs = append(docs, DocumentInfo{
			DocID:          docID,
			SecCode:        stringField(meta, "sec_code"),
			FilerName:      stringField(meta, "filer_name"),
			DocTypeCode:    stringField(meta, "doc_type_code"),
			DocDescription: stringField(meta, "doc_description"),
			PeriodStart:    stringField(meta, "period_start"),
			PeriodEnd:      stringField(meta, "period_end"),
			FilePath:       stringField(meta, "file_path"),
		})
	}
	return docs
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// toChatMessages flattens the typed conversation for the provider.
// Tool observations travel as user turns, teacher-loop style.
func toChatMessages(messages []Message) []interfaces.ChatMessage {
	out := make([]interfaces.ChatMessage, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case "tool":
			name := ""
			if len(msg.ToolCalls) > 0 {
				name = msg.ToolCalls[0].Name
			}
			out = append(out, interfaces.ChatMessage{
				Role:    "user",
				Content: fmt.Sprintf("Tool '%s' returned:\n\n%s", name, msg.Content.Normalize()),
			})
		default:
			out = append(out, interfaces.ChatMessage{Role: msg.Role, Content: msg.Content.Normalize()})
		}
	}
	return out
}

var toolUsePattern = regexp.MustCompile("(?s)```json\\s*(\\{.*?\"tool_use\".*?\\})\\s*```")

// parseToolUse extracts a tool call from a model reply. A reply with no
// parseable tool_use block is a final answer.
func parseToolUse(response string) (*ToolCall, bool) {
	matches := toolUsePattern.FindStringSubmatch(response)
	if len(matches) < 2 {
		return nil, false
	}

	var wrapper struct {
		ToolUse ToolCall `json:"tool_use"`
	}
	if err := json.Unmarshal([]byte(matches[1]), &wrapper); err != nil {
		return nil, false
	}
	if strings.TrimSpace(wrapper.ToolUse.Name) == "" {
		return nil, false
	}
	return &wrapper.ToolUse, true
}
