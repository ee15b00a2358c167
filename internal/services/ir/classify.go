package ir

import (
	"strings"

	"github.com/ternarybob/kaiji/internal/models"
)

// Keyword families for title-based classification. The disclosure list
// tracks the timely-disclosure categories of the exchange.
var disclosureKeywords = []string{
	"業績予想の修正", "業績予想", "配当予想の修正", "配当予想",
	"自己株式", "自社株買い", "株式分割", "株式併合",
	"合併", "買収", "子会社", "資本提携", "業務提携", "株式交換", "株式移転",
	"役員", "人事", "代表取締役", "異動",
	"増資", "減資", "新株", "社債",
	"訴訟", "行政処分", "課徴金",
	"適時開示",
}

var earningsKeywords = []string{
	"決算短信", "決算説明", "決算補足", "決算", "四半期報告", "有価証券報告書",
	"半期報告", "月次", "財務ハイライト",
}

var newsKeywords = []string{
	"プレスリリース", "お知らせ", "ニュース", "新製品", "発売", "開催", "受賞",
	"展示会", "キャンペーン",
}

func countKeywordHits(title string, keywords []string) int {
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(title, kw) {
			hits++
		}
	}
	return hits
}

// reclassify assigns a category from the title with strict precedence:
// disclosure keywords beat earnings keywords beat news keywords, and
// ambiguous titles default to disclosures.
func reclassify(title string) models.IRCategory {
	if countKeywordHits(title, disclosureKeywords) > 0 {
		return models.IRCategoryDisclosures
	}
	if countKeywordHits(title, earningsKeywords) > 0 {
		return models.IRCategoryEarnings
	}
	if countKeywordHits(title, newsKeywords) > 0 {
		return models.IRCategoryNews
	}
	return models.IRCategoryDisclosures
}

// bestCategoryForGroup scores a duplicated URL's titles against each
// category's keywords and picks the winner; on a tie the first entry's
// category stands.
func bestCategoryForGroup(group []models.IRDocument) models.IRCategory {
	scores := map[models.IRCategory]int{}
	for _, doc := range group {
		scores[models.IRCategoryDisclosures] += 2 * countKeywordHits(doc.Title, disclosureKeywords)
		scores[models.IRCategoryEarnings] += 2 * countKeywordHits(doc.Title, earningsKeywords)
		scores[models.IRCategoryNews] += 2 * countKeywordHits(doc.Title, newsKeywords)
	}

	best := group[0].Category
	bestScore := 0
	for _, category := range models.IRCategories {
		if scores[category] > bestScore {
			best = category
			bestScore = scores[category]
		}
	}
	return best
}

// dedupeByURL collapses documents sharing a URL, keeping the first
// entry but letting keyword scoring pick the category.
func dedupeByURL(docs []models.IRDocument) []models.IRDocument {
	groups := map[string][]models.IRDocument{}
	var order []string
	for _, doc := range docs {
		if _, ok := groups[doc.URL]; !ok {
			order = append(order, doc.URL)
		}
		groups[doc.URL] = append(groups[doc.URL], doc)
	}

	out := make([]models.IRDocument, 0, len(order))
	for _, url := range order {
		group := groups[url]
		kept := group[0]
		if len(group) > 1 {
			kept.Category = bestCategoryForGroup(group)
		}
		out = append(out, kept)
	}
	return out
}
