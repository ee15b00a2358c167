package models

// Company is one record from the downloadable EDINET code list.
type Company struct {
	EdinetCode  string // 6-character submitter identifier, e.g. "E02144"
	SecCode     string // canonical 5-digit securities code, empty for unlisted
	NameJa      string
	NameKana    string // phonetic katakana name, optional
	NameEn      string // optional
	Listed      bool
	IndustryDiv string // industry classification from the code list
}

// CompanyCandidate is a ranked fuzzy-search result.
type CompanyCandidate struct {
	Company    Company
	Similarity int // 0..100, partial-ratio best score across name fields
}
