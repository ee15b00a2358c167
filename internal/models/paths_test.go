package models

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDownloadPath(t *testing.T) {
	meta := &FilingMetadata{
		DocID:       "S100TEST",
		SecCode:     "72030",
		FilerName:   "トヨタ自動車株式会社",
		DocTypeCode: "120",
		PeriodEnd:   "2024-03-31",
	}

	path := BuildDownloadPath("downloads", meta)

	assert.Equal(t, filepath.Join(
		"downloads",
		"72030_トヨタ自動車株式会社",
		"120_有価証券報告書",
		"202403",
		"S100TEST.pdf",
	), path)
}

func TestBuildDownloadPath_MissingMetadata(t *testing.T) {
	meta := &FilingMetadata{DocID: "S100TEST"}

	path := BuildDownloadPath("downloads", meta)

	assert.Equal(t, filepath.Join(
		"downloads",
		"unknown_unknown",
		"unknown_unknown",
		"unknown",
		"S100TEST.pdf",
	), path)
}

func TestBuildIRPath(t *testing.T) {
	path := BuildIRPath("downloads", "72030", "トヨタ自動車", IRCategoryEarnings, "tanshin_2024.pdf")

	assert.Equal(t, filepath.Join(
		"downloads",
		"72030_トヨタ自動車",
		"ir",
		"earnings",
		"tanshin_2024.pdf",
	), path)
}

func TestParseCachedPath_RoundTrip(t *testing.T) {
	meta := &FilingMetadata{
		DocID:       "S100TEST",
		SecCode:     "72030",
		FilerName:   "トヨタ自動車株式会社",
		DocTypeCode: "120",
		PeriodEnd:   "2024-03-31",
	}
	path := BuildDownloadPath("downloads", meta)

	doc := ParseCachedPath("downloads", path)
	require.NotNil(t, doc)

	assert.Equal(t, "S100TEST", doc.DocID)
	assert.Equal(t, "72030", doc.SecCode)
	assert.Equal(t, "トヨタ自動車株式会社", doc.CompanyName)
	assert.Equal(t, "120", doc.DocTypeCode)
	assert.Equal(t, "202403", doc.Period)
	assert.Equal(t, path, doc.Path)
}

func TestParseCachedPath_FlatLayout(t *testing.T) {
	path := filepath.Join("downloads", "S100FLAT.pdf")

	doc := ParseCachedPath("downloads", path)
	require.NotNil(t, doc)

	assert.Equal(t, "S100FLAT", doc.DocID)
	assert.Empty(t, doc.SecCode)
	assert.Empty(t, doc.DocTypeCode)
	assert.Empty(t, doc.Period)
}

func TestPeriodYearMonth(t *testing.T) {
	assert.Equal(t, "202403", periodYearMonth("2024-03-31"))
	assert.Equal(t, "202412", periodYearMonth("2024-12-01"))
	assert.Equal(t, "unknown", periodYearMonth(""))
	assert.Equal(t, "unknown", periodYearMonth("2024"))
}
