package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagUnmarshal(t *testing.T) {
	tests := []struct {
		raw     string
		want    bool
		wantErr bool
	}{
		{`"1"`, true, false},
		{`"0"`, false, false},
		{`1`, true, false},
		{`0`, false, false},
		{`true`, true, false},
		{`false`, false, false},
		{`null`, false, false},
		{`""`, false, false},
		{`"2"`, false, true},
		{`"yes"`, false, true},
	}

	for _, tt := range tests {
		var f Flag
		err := json.Unmarshal([]byte(tt.raw), &f)
		if tt.wantErr {
			assert.Error(t, err, "raw %s", tt.raw)
			continue
		}
		require.NoError(t, err, "raw %s", tt.raw)
		assert.Equal(t, tt.want, f.Bool(), "raw %s", tt.raw)
	}
}

func TestFlagMarshal(t *testing.T) {
	data, err := json.Marshal(Flag(true))
	require.NoError(t, err)
	assert.Equal(t, `"1"`, string(data))

	data, err = json.Marshal(Flag(false))
	require.NoError(t, err)
	assert.Equal(t, `"0"`, string(data))
}

func TestFilingMetadataFromAPI(t *testing.T) {
	raw := `{
		"docID": "S100TEST",
		"edinetCode": "E02144",
		"secCode": "72030",
		"filerName": "トヨタ自動車株式会社",
		"docTypeCode": "120",
		"periodStart": "2023-04-01",
		"periodEnd": "2024-03-31",
		"submitDateTime": "2024-06-26 14:00",
		"docDescription": "有価証券報告書－第120期",
		"pdfFlag": "1",
		"xbrlFlag": "0"
	}`

	var meta FilingMetadata
	require.NoError(t, json.Unmarshal([]byte(raw), &meta))

	assert.Equal(t, "S100TEST", meta.DocID)
	assert.Equal(t, "72030", meta.SecCode)
	assert.Equal(t, "120", meta.DocTypeCode)
	assert.True(t, meta.PdfFlag.Bool())
	assert.False(t, meta.XbrlFlag.Bool())
	assert.Equal(t, "2024-06-26 14:00", meta.SortKey())
}

func TestDocTypeName(t *testing.T) {
	assert.Equal(t, "有価証券報告書", DocTypeName(DocTypeAnnualReport))
	assert.Equal(t, "四半期報告書", DocTypeName(DocTypeQuarterlyReport))
	assert.Equal(t, "大量保有報告書", DocTypeName(DocTypeLargeHoldingReport))
	assert.Equal(t, "unknown", DocTypeName("999"))
}
