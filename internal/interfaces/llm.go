package interfaces

import "context"

// Schema is a declarative JSON-schema fragment used for structured LLM
// output. Providers translate it to their native schema representation
// (Gemini responseSchema) or inline it into the prompt as instructions.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// ChatMessage is one turn of a plain-text conversation. Role is one of
// "system", "user", "assistant".
type ChatMessage struct {
	Role    string
	Content string
}

// LLMProvider is the single polymorphic interface over vendor backends.
type LLMProvider interface {
	ModelName() string
	ProviderName() string
	SupportsVision() bool

	// Chat sends a multi-turn conversation and returns the assistant's
	// plain-text reply.
	Chat(ctx context.Context, messages []ChatMessage) (string, error)

	// InvokeStructured sends prompt and parses the response against schema
	// into out (a pointer to the target struct). Failures surface as
	// *common.LLMProviderError.
	InvokeStructured(ctx context.Context, prompt string, schema *Schema, out any) error

	// InvokeVision sends a text prompt plus one image. Calling this on a
	// provider whose SupportsVision is false returns *common.VisionApiError.
	InvokeVision(ctx context.Context, textPrompt string, image []byte, mimeType string) (string, error)
}
