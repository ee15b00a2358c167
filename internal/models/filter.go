package models

import (
	"strings"
	"time"
)

// SearchOrder controls the iteration direction and final ordering hint for
// a filings search.
type SearchOrder string

const (
	SearchOrderNewestFirst SearchOrder = "newest_first"
	SearchOrderOldestFirst SearchOrder = "oldest_first"
)

// DocumentFilter is a filings search request. Populated fields are combined
// with AND logic; DocTypeCodes is OR within itself.
type DocumentFilter struct {
	SecCode      string      // exact match, canonical 5-digit form
	EdinetCode   string      // exact match
	CompanyName  string      // substring containment over the Japanese filer name
	DocTypeCodes []string    // membership test, OR logic
	StartDate    *time.Time  // inclusive; nil means end date minus five years
	EndDate      *time.Time  // inclusive; nil means today
	SearchOrder  SearchOrder // defaults to newest-first
	MaxDocuments int         // hard cap on returned documents; 0 means unlimited
}

// Matches reports whether a filing survives every populated filter field.
func (f *DocumentFilter) Matches(doc *FilingMetadata) bool {
	if f.SecCode != "" && doc.SecCode != f.SecCode {
		return false
	}
	if f.EdinetCode != "" && doc.EdinetCode != f.EdinetCode {
		return false
	}
	if f.CompanyName != "" && !strings.Contains(doc.FilerName, f.CompanyName) {
		return false
	}
	if len(f.DocTypeCodes) > 0 {
		found := false
		for _, code := range f.DocTypeCodes {
			if doc.DocTypeCode == code {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
