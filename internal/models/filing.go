package models

import (
	"encoding/json"
	"fmt"
)

// Flag is a boolean that arrives from the Filings API as the strings "0" or
// "1". It normalizes to a bool on ingest and marshals back the same way.
type Flag bool

// UnmarshalJSON accepts "1"/"0" strings, bare numbers, and JSON booleans.
func (f *Flag) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"1"`, `1`, `true`:
		*f = true
	case `"0"`, `0`, `false`, `null`, `""`:
		*f = false
	default:
		return fmt.Errorf("invalid flag value: %s", string(data))
	}
	return nil
}

// MarshalJSON emits the API's string form.
func (f Flag) MarshalJSON() ([]byte, error) {
	if f {
		return json.Marshal("1")
	}
	return json.Marshal("0")
}

// Bool returns the flag as a plain bool.
func (f Flag) Bool() bool { return bool(f) }

// FilingMetadata is the unit produced by the Filings API per document.
// DocID is the stable 8-character primary key on the filings side.
type FilingMetadata struct {
	DocID            string `json:"docID"`
	EdinetCode       string `json:"edinetCode"`
	SecCode          string `json:"secCode,omitempty"`
	FilerName        string `json:"filerName"`
	DocTypeCode      string `json:"docTypeCode"`
	PeriodStart      string `json:"periodStart,omitempty"`
	PeriodEnd        string `json:"periodEnd,omitempty"`
	SubmitDateTime   string `json:"submitDateTime,omitempty"`
	DocDescription   string `json:"docDescription,omitempty"`
	XbrlFlag         Flag   `json:"xbrlFlag"`
	PdfFlag          Flag   `json:"pdfFlag"`
	AttachDocFlag    Flag   `json:"attachDocFlag"`
	EnglishDocFlag   Flag   `json:"englishDocFlag"`
	CsvFlag          Flag   `json:"csvFlag"`
	WithdrawalStatus string `json:"withdrawalStatus,omitempty"`
	DisclosureStatus string `json:"disclosureStatus,omitempty"`
	LegalStatus      string `json:"legalStatus,omitempty"`
}

// SortKey returns the ordering key for newest-first sorting. Ordering is
// defined only by submission timestamp; a missing timestamp sorts last by
// comparing as the empty string.
func (m *FilingMetadata) SortKey() string {
	return m.SubmitDateTime
}

// Document-type codes in the portal's 3-digit taxonomy.
const (
	DocTypeAnnualReport        = "120"
	DocTypeAnnualCorrection    = "130"
	DocTypeQuarterlyReport     = "140"
	DocTypeQuarterlyCorrection = "150"
	DocTypeHalfYearReport      = "160"
	DocTypeHalfYearCorrection  = "170"
	DocTypeExtraordinaryReport = "180"
	DocTypeLargeHoldingReport  = "350"
)

// DocTypeNames maps document-type codes to human-readable Japanese names.
// Used when building the download hierarchy.
var DocTypeNames = map[string]string{
	DocTypeAnnualReport:        "有価証券報告書",
	DocTypeAnnualCorrection:    "訂正有価証券報告書",
	DocTypeQuarterlyReport:     "四半期報告書",
	DocTypeQuarterlyCorrection: "訂正四半期報告書",
	DocTypeHalfYearReport:      "半期報告書",
	DocTypeHalfYearCorrection:  "訂正半期報告書",
	DocTypeExtraordinaryReport: "臨時報告書",
	DocTypeLargeHoldingReport:  "大量保有報告書",
}

// DocTypeName returns the readable name for a code, or "unknown".
func DocTypeName(code string) string {
	if name, ok := DocTypeNames[code]; ok {
		return name
	}
	return "unknown"
}

// DownloadType selects the artifact format on the download endpoint.
type DownloadType int

const (
	DownloadTypeXBRL        DownloadType = 1 // structured-data ZIP
	DownloadTypePDF         DownloadType = 2
	DownloadTypeAttachments DownloadType = 3 // attachments ZIP
	DownloadTypeEnglish     DownloadType = 4 // English ZIP
	DownloadTypeCSV         DownloadType = 5 // CSV ZIP
)
