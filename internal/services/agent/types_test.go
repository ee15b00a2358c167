package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageContentNormalize(t *testing.T) {
	tests := []struct {
		name    string
		content MessageContent
		want    string
	}{
		{
			name:    "text passes through",
			content: TextContent("トヨタ自動車の有価証券報告書"),
			want:    "トヨタ自動車の有価証券報告書",
		},
		{
			name: "text blocks join with newlines",
			content: BlocksContent([]ContentBlock{
				{Type: "text", Text: "first"},
				{Type: "text", Text: "second"},
			}),
			want: "first\nsecond",
		},
		{
			name: "non-text blocks are ignored",
			content: BlocksContent([]ContentBlock{
				{Type: "text", Text: "Toyota"},
				{Type: "tool_use", ID: "tu_1", Name: "search_company"},
				{Type: "text", Text: "found"},
			}),
			want: "Toyota\nfound",
		},
		{
			name:    "null is empty",
			content: NullContent(),
			want:    "",
		},
		{
			name:    "empty block list is empty",
			content: BlocksContent(nil),
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.content.Normalize())
		})
	}
}

func TestContentFromAny(t *testing.T) {
	t.Run("nil becomes null", func(t *testing.T) {
		assert.Equal(t, "", ContentFromAny(nil).Normalize())
	})

	t.Run("string becomes text", func(t *testing.T) {
		assert.Equal(t, "hello", ContentFromAny("hello").Normalize())
	})

	t.Run("block slice passes through", func(t *testing.T) {
		blocks := []ContentBlock{{Type: "text", Text: "a"}}
		assert.Equal(t, "a", ContentFromAny(blocks).Normalize())
	})

	t.Run("dynamic slice is coerced per element", func(t *testing.T) {
		raw := []any{
			map[string]any{"type": "text", "text": "Toyota"},
			map[string]any{"type": "tool_use", "id": "tu_1", "name": "search_company"},
			map[string]any{"type": "text", "text": "found"},
		}
		assert.Equal(t, "Toyota\nfound", ContentFromAny(raw).Normalize())
	})

	t.Run("unmarshalable elements are skipped", func(t *testing.T) {
		raw := []any{
			map[string]any{"type": "text", "text": "kept"},
			func() {},
		}
		assert.Equal(t, "kept", ContentFromAny(raw).Normalize())
	})

	t.Run("other values are stringified", func(t *testing.T) {
		assert.Equal(t, "42", ContentFromAny(42).Normalize())
	})
}
