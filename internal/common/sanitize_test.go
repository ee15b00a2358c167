package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"invalid chars replaced", `a<b>c:d"e/f\g|h?i*j`, "a_b_c_d_e_f_g_h_i_j"},
		{"runs collapsed", "a//\\b", "a_b"},
		{"trimmed", "  トヨタ自動車  ", "トヨタ自動車"},
		{"empty becomes unknown", "", "unknown"},
		{"whitespace only", "   ", "unknown"},
		{"control chars", "a\x00b\x1fc", "a_b_c"},
		{"japanese preserved", "有価証券報告書", "有価証券報告書"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.input))
		})
	}
}

func TestSanitizeFilenameIdempotent(t *testing.T) {
	inputs := []string{`a<b>c`, "a//b", "  x  ", "", "トヨタ自動車株式会社"}
	for _, in := range inputs {
		once := SanitizeFilename(in)
		assert.Equal(t, once, SanitizeFilename(once))
	}
}

func TestOrUnknown(t *testing.T) {
	assert.Equal(t, "unknown", OrUnknown(""))
	assert.Equal(t, "unknown", OrUnknown("  "))
	assert.Equal(t, "72030", OrUnknown("72030"))
}
