package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ternarybob/kaiji/internal/common"
	"github.com/ternarybob/kaiji/internal/interfaces"
)

// OpenAIProvider talks to the OpenAI chat-completions API, or to any
// server speaking the same protocol when used as the local backend.
type OpenAIProvider struct {
	clientBase
	apiKey     string
	baseURL    string
	httpClient *http.Client
	vision     bool
}

var _ interfaces.LLMProvider = (*OpenAIProvider)(nil)

// localVisionModelPrefixes marks local model families known to accept
// image input. Local servers expose no capability metadata, so the
// model name is the only signal.
var localVisionModelPrefixes = []string{
	"llava", "qwen2-vl", "qwen2.5-vl", "minicpm-v", "gemma-3", "pixtral", "llama3.2-vision",
}

func localModelSupportsVision(model string) bool {
	lower := strings.ToLower(model)
	for _, prefix := range localVisionModelPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func (p *OpenAIProvider) SupportsVision() bool { return p.vision }

// Chat-completions wire types; only the fields this client uses.

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatContentPart struct {
	Type     string         `json:"type"`
	Text     string         `json:"text,omitempty"`
	ImageURL *chatImagePart `json:"image_url,omitempty"`
}

type chatImagePart struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (p *OpenAIProvider) Chat(ctx context.Context, messages []interfaces.ChatMessage) (string, error) {
	wire := make([]chatMessage, len(messages))
	for i, msg := range messages {
		wire[i] = chatMessage{Role: msg.Role, Content: msg.Content}
	}
	return p.invoke(ctx, func(ctx context.Context) (string, error) {
		return p.complete(ctx, wire)
	})
}

func (p *OpenAIProvider) InvokeStructured(ctx context.Context, prompt string, schema *interfaces.Schema, out any) error {
	full := prompt + schemaInstruction(schema)

	text, err := p.invoke(ctx, func(ctx context.Context) (string, error) {
		return p.complete(ctx, []chatMessage{{Role: "user", Content: full}})
	})
	if err != nil {
		return err
	}

	if err := decodeStructured(text, out); err != nil {
		return p.structuredError("failed to parse structured response", err)
	}
	return nil
}

func (p *OpenAIProvider) InvokeVision(ctx context.Context, textPrompt string, image []byte, mimeType string) (string, error) {
	if !p.vision {
		return "", &common.VisionApiError{
			Message: fmt.Sprintf("model %s does not support vision input", p.model),
		}
	}

	dataURI := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))
	message := chatMessage{
		Role: "user",
		Content: []chatContentPart{
			{Type: "text", Text: textPrompt},
			{Type: "image_url", ImageURL: &chatImagePart{URL: dataURI}},
		},
	}

	return p.invoke(ctx, func(ctx context.Context) (string, error) {
		return p.complete(ctx, []chatMessage{message})
	})
}

func (p *OpenAIProvider) complete(ctx context.Context, messages []chatMessage) (string, error) {
	body, err := json.Marshal(chatRequest{Model: p.model, Messages: messages})
	if err != nil {
		return "", err
	}

	endpoint := strings.TrimSuffix(p.baseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("status %d: unparseable response: %s", resp.StatusCode, truncateForLog(respBody))
	}
	if resp.StatusCode != http.StatusOK {
		msg := truncateForLog(respBody)
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, msg)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty response from %s", p.provider)
	}
	return parsed.Choices[0].Message.Content, nil
}

func truncateForLog(body []byte) string {
	s := string(body)
	if len(s) > 200 {
		return s[:200]
	}
	return s
}
