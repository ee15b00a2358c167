package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ContentBlock is one element of a multi-part message, as produced by
// tool-calling chat backends.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

type contentKind int

const (
	contentNull contentKind = iota
	contentText
	contentBlocks
)

// MessageContent is the sealed content variant a message carries: plain
// text, a block list, or null.
type MessageContent struct {
	kind   contentKind
	text   string
	blocks []ContentBlock
}

// TextContent wraps a plain string.
func TextContent(s string) MessageContent {
	return MessageContent{kind: contentText, text: s}
}

// BlocksContent wraps a block list.
func BlocksContent(blocks []ContentBlock) MessageContent {
	return MessageContent{kind: contentBlocks, blocks: blocks}
}

// NullContent is the absent-content variant.
func NullContent() MessageContent {
	return MessageContent{kind: contentNull}
}

// Normalize flattens content to a plain string: text passes through,
// blocks concatenate their text entries with newlines (non-text blocks
// are ignored), null becomes the empty string.
func (c MessageContent) Normalize() string {
	switch c.kind {
	case contentText:
		return c.text
	case contentBlocks:
		var parts []string
		for _, block := range c.blocks {
			if block.Type == "text" {
				parts = append(parts, block.Text)
			}
		}
		return strings.Join(parts, "\n")
	default:
		return ""
	}
}

// ContentFromAny coerces a dynamic value into the sealed variant. It
// never fails: unrecognized shapes are stringified, and anything that
// cannot be stringified meaningfully becomes null.
func ContentFromAny(v any) MessageContent {
	switch val := v.(type) {
	case nil:
		return NullContent()
	case string:
		return TextContent(val)
	case []ContentBlock:
		return BlocksContent(val)
	case []any:
		blocks := make([]ContentBlock, 0, len(val))
		for _, item := range val {
			raw, err := json.Marshal(item)
			if err != nil {
				continue
			}
			var block ContentBlock
			if err := json.Unmarshal(raw, &block); err != nil {
				continue
			}
			blocks = append(blocks, block)
		}
		return BlocksContent(blocks)
	default:
		return TextContent(fmt.Sprintf("%v", val))
	}
}

// ToolCall is a structured tool invocation requested by the model.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolResponse is the outcome of executing one tool call.
type ToolResponse struct {
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error"`
}

// Message is one conversation turn. Role is "system", "user",
// "assistant", or "tool".
type Message struct {
	Role      string
	Content   MessageContent
	ToolCalls []ToolCall
}

// DocumentInfo identifies a filing touched during a run, harvested
// from tool payload metadata.
type DocumentInfo struct {
	DocID          string `json:"doc_id"`
	SecCode        string `json:"sec_code,omitempty"`
	FilerName      string `json:"filer_name,omitempty"`
	DocTypeCode    string `json:"doc_type_code,omitempty"`
	DocDescription string `json:"doc_description,omitempty"`
	PeriodStart    string `json:"period_start,omitempty"`
	PeriodEnd      string `json:"period_end,omitempty"`
	FilePath       string `json:"file_path,omitempty"`
}

// Result is the structured outcome of an agent run.
type Result struct {
	Answer    string         `json:"result"`
	Intent    string         `json:"intent"`
	ToolsUsed []string       `json:"tools_used"`
	Documents []DocumentInfo `json:"documents"`
	Turns     int            `json:"turns"`
}
