package edinet

import "github.com/ternarybob/kaiji/internal/models"

// ListParameter echoes the request parameters inside the list envelope.
type ListParameter struct {
	Date string `json:"date"`
	Type string `json:"type"`
}

// ResultSet carries the result count inside the list envelope.
type ResultSet struct {
	Count int `json:"count"`
}

// ListMetadata is the metadata block of the list envelope. Status is a
// numeric string; a non-200 value is an error disguised as HTTP 200.
type ListMetadata struct {
	Title           string        `json:"title"`
	Parameter       ListParameter `json:"parameter"`
	ResultSet       ResultSet     `json:"resultset"`
	ProcessDateTime string        `json:"processDateTime"`
	Status          string        `json:"status"`
	Message         string        `json:"message"`
}

// DocumentListResponse is the full list envelope. Results is absent for
// the count-only request type.
type DocumentListResponse struct {
	Metadata ListMetadata            `json:"metadata"`
	Results  []models.FilingMetadata `json:"results,omitempty"`
}

// Request types on the list endpoint.
const (
	ListTypeCount = 1 // metadata only
	ListTypeFull  = 2 // full details
)
