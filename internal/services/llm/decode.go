package llm

import (
	"encoding/json"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"

	"github.com/ternarybob/kaiji/internal/interfaces"
)

// stripCodeFence removes a surrounding markdown code fence from an LLM
// response, if present.
func stripCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// decodeStructured parses an LLM response into out. Models wrap JSON in
// fences and produce minor syntax errors often enough that a repair
// pass is the norm, not the exception.
func decodeStructured(raw string, out any) error {
	text := stripCodeFence(raw)

	if err := json.Unmarshal([]byte(text), out); err == nil {
		return nil
	}

	repaired, err := jsonrepair.RepairJSON(text)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(repaired), out)
}

// schemaInstruction renders the declarative schema as prompt text for
// providers without native structured output.
func schemaInstruction(schema *interfaces.Schema) string {
	if schema == nil {
		return ""
	}
	encoded, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return ""
	}
	return "\n\nRespond with JSON only, no prose, matching this JSON schema exactly:\n" + string(encoded)
}
