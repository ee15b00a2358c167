package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/kaiji/internal/models"
)

func TestReclassify(t *testing.T) {
	tests := []struct {
		title string
		want  models.IRCategory
	}{
		// お知らせ alone is news, but the disclosure keyword wins.
		{"業績予想の修正に関するお知らせ", models.IRCategoryDisclosures},
		{"自己株式の取得状況に関するお知らせ", models.IRCategoryDisclosures},
		{"代表取締役の異動について", models.IRCategoryDisclosures},
		{"2024年3月期 決算短信〔日本基準〕(連結)", models.IRCategoryEarnings},
		{"決算説明会資料", models.IRCategoryEarnings},
		{"有価証券報告書", models.IRCategoryEarnings},
		{"新製品発売のお知らせ", models.IRCategoryNews},
		{"プレスリリース一覧", models.IRCategoryNews},
		// No keyword at all defaults to disclosures.
		{"その他の資料", models.IRCategoryDisclosures},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, reclassify(tc.title), tc.title)
	}
}

func TestDedupeByURL(t *testing.T) {
	docs := []models.IRDocument{
		{Title: "お知らせ", URL: "https://example.com/a.pdf", Category: models.IRCategoryNews},
		{Title: "2024年3月期 決算短信", URL: "https://example.com/a.pdf", Category: models.IRCategoryNews},
		{Title: "別の資料", URL: "https://example.com/b.pdf", Category: models.IRCategoryEarnings},
	}

	out := dedupeByURL(docs)
	require.Len(t, out, 2)

	// First entry survives but keyword scoring corrects the category.
	assert.Equal(t, "お知らせ", out[0].Title)
	assert.Equal(t, models.IRCategoryEarnings, out[0].Category)

	// Singletons keep their category untouched.
	assert.Equal(t, "https://example.com/b.pdf", out[1].URL)
	assert.Equal(t, models.IRCategoryEarnings, out[1].Category)
}

func TestDedupeByURL_TieKeepsFirstCategory(t *testing.T) {
	docs := []models.IRDocument{
		{Title: "資料1", URL: "https://example.com/a.pdf", Category: models.IRCategoryNews},
		{Title: "資料2", URL: "https://example.com/a.pdf", Category: models.IRCategoryEarnings},
	}

	out := dedupeByURL(docs)
	require.Len(t, out, 1)
	assert.Equal(t, models.IRCategoryNews, out[0].Category)
}
