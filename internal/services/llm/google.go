package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/ternarybob/kaiji/internal/interfaces"
)

// GoogleProvider wraps the Gemini API. Gemini enforces structured
// output natively via responseSchema, so no prompt-level schema
// instructions are needed.
type GoogleProvider struct {
	clientBase
	client *genai.Client
}

var _ interfaces.LLMProvider = (*GoogleProvider)(nil)

func (p *GoogleProvider) SupportsVision() bool { return true }

func (p *GoogleProvider) Chat(ctx context.Context, messages []interfaces.ChatMessage) (string, error) {
	config := &genai.GenerateContentConfig{}
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			config.SystemInstruction = genai.NewContentFromText(msg.Content, genai.RoleUser)
		case "assistant":
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}

	return p.invoke(ctx, func(ctx context.Context) (string, error) {
		resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, config)
		if err != nil {
			return "", err
		}
		if resp == nil || len(resp.Candidates) == 0 {
			return "", fmt.Errorf("empty response from Gemini API")
		}
		return resp.Text(), nil
	})
}

func (p *GoogleProvider) InvokeStructured(ctx context.Context, prompt string, schema *interfaces.Schema, out any) error {
	config := &genai.GenerateContentConfig{}
	if schema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = toGenaiSchema(schema)
	}

	text, err := p.invoke(ctx, func(ctx context.Context) (string, error) {
		contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
		resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, config)
		if err != nil {
			return "", err
		}
		if resp == nil || len(resp.Candidates) == 0 {
			return "", fmt.Errorf("empty response from Gemini API")
		}
		return resp.Text(), nil
	})
	if err != nil {
		return err
	}

	if err := decodeStructured(text, out); err != nil {
		return p.structuredError("failed to parse structured response", err)
	}
	return nil
}

func (p *GoogleProvider) InvokeVision(ctx context.Context, textPrompt string, image []byte, mimeType string) (string, error) {
	return p.invoke(ctx, func(ctx context.Context) (string, error) {
		parts := []*genai.Part{
			genai.NewPartFromText(textPrompt),
			genai.NewPartFromBytes(image, mimeType),
		}
		contents := []*genai.Content{{Role: genai.RoleUser, Parts: parts}}
		resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, nil)
		if err != nil {
			return "", err
		}
		if resp == nil || len(resp.Candidates) == 0 {
			return "", fmt.Errorf("empty response from Gemini API")
		}
		return resp.Text(), nil
	})
}

// toGenaiSchema converts the declarative schema to Gemini's native
// schema representation.
func toGenaiSchema(schema *interfaces.Schema) *genai.Schema {
	if schema == nil {
		return nil
	}

	out := &genai.Schema{Description: schema.Description}
	switch schema.Type {
	case "object":
		out.Type = genai.TypeObject
	case "array":
		out.Type = genai.TypeArray
	case "string":
		out.Type = genai.TypeString
	case "number":
		out.Type = genai.TypeNumber
	case "integer":
		out.Type = genai.TypeInteger
	case "boolean":
		out.Type = genai.TypeBoolean
	}
	out.Enum = schema.Enum
	out.Required = schema.Required
	if schema.Items != nil {
		out.Items = toGenaiSchema(schema.Items)
	}
	if len(schema.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(schema.Properties))
		for name, prop := range schema.Properties {
			out.Properties[name] = toGenaiSchema(prop)
		}
	}
	return out
}
