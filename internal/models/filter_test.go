package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentFilterMatches(t *testing.T) {
	doc := &FilingMetadata{
		DocID:       "S100TEST",
		EdinetCode:  "E02144",
		SecCode:     "72030",
		FilerName:   "トヨタ自動車株式会社",
		DocTypeCode: "120",
	}

	tests := []struct {
		name   string
		filter DocumentFilter
		want   bool
	}{
		{"empty filter matches everything", DocumentFilter{}, true},
		{"sec code exact match", DocumentFilter{SecCode: "72030"}, true},
		{"sec code mismatch", DocumentFilter{SecCode: "70110"}, false},
		{"edinet code exact match", DocumentFilter{EdinetCode: "E02144"}, true},
		{"edinet code mismatch", DocumentFilter{EdinetCode: "E00001"}, false},
		{"company name substring", DocumentFilter{CompanyName: "トヨタ"}, true},
		{"company name not contained", DocumentFilter{CompanyName: "ホンダ"}, false},
		{"doc type membership", DocumentFilter{DocTypeCodes: []string{"140", "120"}}, true},
		{"doc type excluded", DocumentFilter{DocTypeCodes: []string{"140"}}, false},
		{"all fields combined with AND", DocumentFilter{SecCode: "72030", CompanyName: "トヨタ", DocTypeCodes: []string{"120"}}, true},
		{"one failing field rejects", DocumentFilter{SecCode: "72030", DocTypeCodes: []string{"350"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(doc))
		})
	}
}
