package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ternarybob/kaiji/internal/interfaces"
)

const anthropicMaxTokens = 8192

// AnthropicProvider wraps the Claude Messages API.
type AnthropicProvider struct {
	clientBase
	client anthropic.Client
}

var _ interfaces.LLMProvider = (*AnthropicProvider)(nil)

func (p *AnthropicProvider) SupportsVision() bool { return true }

func (p *AnthropicProvider) Chat(ctx context.Context, messages []interfaces.ChatMessage) (string, error) {
	var system string
	params := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			system = msg.Content
		case "assistant":
			params = append(params, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			params = append(params, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	return p.invoke(ctx, func(ctx context.Context) (string, error) {
		req := anthropic.MessageNewParams{
			Model:     anthropic.Model(p.model),
			MaxTokens: anthropicMaxTokens,
			Messages:  params,
		}
		if system != "" {
			req.System = []anthropic.TextBlockParam{{Text: system}}
		}
		resp, err := p.client.Messages.New(ctx, req)
		if err != nil {
			return "", err
		}
		var text strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				text.WriteString(block.Text)
			}
		}
		if text.Len() == 0 {
			return "", fmt.Errorf("empty response from Claude API")
		}
		return text.String(), nil
	})
}

func (p *AnthropicProvider) InvokeStructured(ctx context.Context, prompt string, schema *interfaces.Schema, out any) error {
	full := prompt + schemaInstruction(schema)

	text, err := p.invoke(ctx, func(ctx context.Context) (string, error) {
		return p.complete(ctx, []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(full)),
		})
	})
	if err != nil {
		return err
	}

	if err := decodeStructured(text, out); err != nil {
		return p.structuredError("failed to parse structured response", err)
	}
	return nil
}

func (p *AnthropicProvider) InvokeVision(ctx context.Context, textPrompt string, image []byte, mimeType string) (string, error) {
	encoded := base64.StdEncoding.EncodeToString(image)
	return p.invoke(ctx, func(ctx context.Context) (string, error) {
		return p.complete(ctx, []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(mimeType, encoded),
				anthropic.NewTextBlock(textPrompt),
			),
		})
	})
}

func (p *AnthropicProvider) complete(ctx context.Context, messages []anthropic.MessageParam) (string, error) {
	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: anthropicMaxTokens,
		Messages:  messages,
	})
	if err != nil {
		return "", err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("empty response from Claude API")
	}
	return text.String(), nil
}
