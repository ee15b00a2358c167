package common

import (
	"errors"
	"fmt"
	"strings"
)

func containsAny(s string, subs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range subs {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}

// ApiErrorKind discriminates the typed variants of a Filings API error.
type ApiErrorKind string

const (
	ApiErrorGeneric        ApiErrorKind = "generic"
	ApiErrorAuthentication ApiErrorKind = "authentication"
	ApiErrorNotFound       ApiErrorKind = "not_found"
	ApiErrorServer         ApiErrorKind = "server"
)

// ApiError is a normalized error from the disclosure filings API. The
// API reports failures both through HTTP status codes and through
// status fields inside HTTP 200 bodies; both paths funnel into this
// type. A StatusCode of 0 means the body could not be interpreted.
type ApiError struct {
	Kind       ApiErrorKind
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *ApiError) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("filings api error (%s, status %d) at %s: %s", e.Kind, e.StatusCode, e.Endpoint, e.Message)
	}
	return fmt.Sprintf("filings api error (%s, status %d): %s", e.Kind, e.StatusCode, e.Message)
}

// Retryable reports whether the request may succeed on a retry. Only
// server-side failures qualify.
func (e *ApiError) Retryable() bool {
	return e.Kind == ApiErrorServer
}

func NewApiError(statusCode int, message, endpoint string) *ApiError {
	return &ApiError{Kind: ApiErrorGeneric, StatusCode: statusCode, Message: message, Endpoint: endpoint}
}

func NewAuthenticationError(statusCode int, message, endpoint string) *ApiError {
	return &ApiError{Kind: ApiErrorAuthentication, StatusCode: statusCode, Message: message, Endpoint: endpoint}
}

func NewNotFoundError(statusCode int, message, endpoint string) *ApiError {
	return &ApiError{Kind: ApiErrorNotFound, StatusCode: statusCode, Message: message, Endpoint: endpoint}
}

func NewServerError(statusCode int, message, endpoint string) *ApiError {
	return &ApiError{Kind: ApiErrorServer, StatusCode: statusCode, Message: message, Endpoint: endpoint}
}

// ParseError reports a PDF extraction failure. Strategy names the
// extraction strategy that failed, or "auto" when every strategy in
// the chain failed.
type ParseError struct {
	Message  string
	PdfPath  string
	Strategy string
}

func (e *ParseError) Error() string {
	if e.PdfPath != "" {
		return fmt.Sprintf("pdf parse error (%s) for %s: %s", e.Strategy, e.PdfPath, e.Message)
	}
	return fmt.Sprintf("pdf parse error (%s): %s", e.Strategy, e.Message)
}

// VisionApiError reports a failure from a vision-capable model call.
type VisionApiError struct {
	Message string
	Cause   error
}

func (e *VisionApiError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("vision api error: %s: %v", e.Message, e.Cause)
	}
	return "vision api error: " + e.Message
}

func (e *VisionApiError) Unwrap() error { return e.Cause }

// IsRateLimited reports whether the underlying failure was a quota or
// rate-limit rejection.
func (e *VisionApiError) IsRateLimited() bool {
	if e.Cause != nil {
		var llmErr *LLMProviderError
		if errors.As(e.Cause, &llmErr) && llmErr.IsRateLimited() {
			return true
		}
	}
	return containsAny(e.Message, "429", "quota", "rate limit")
}

// OcrError reports a failure in the OCR extraction path. NotInstalled
// is set when the tesseract binary is absent from PATH.
type OcrError struct {
	Message      string
	NotInstalled bool
}

func (e *OcrError) Error() string {
	return "ocr error: " + e.Message
}

// LLMProviderError wraps a failure from an LLM provider call with the
// provider and model identity for diagnostics.
type LLMProviderError struct {
	Provider string
	Model    string
	Message  string
	Cause    error
}

func (e *LLMProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("llm provider %s (%s): %s: %v", e.Provider, e.Model, e.Message, e.Cause)
	}
	return fmt.Sprintf("llm provider %s (%s): %s", e.Provider, e.Model, e.Message)
}

func (e *LLMProviderError) Unwrap() error { return e.Cause }

// IsRateLimited reports whether the provider rejected the call for
// quota or rate-limit reasons.
func (e *LLMProviderError) IsRateLimited() bool {
	return containsAny(e.Message, "429", "quota", "rate limit", "resource_exhausted") ||
		(e.Cause != nil && containsAny(e.Cause.Error(), "429", "quota", "rate limit", "resource_exhausted"))
}

// CodeListDownloadError reports a failure to fetch or parse the
// company code list archive.
type CodeListDownloadError struct {
	Message string
	Cause   error
}

func (e *CodeListDownloadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("code list download error: %s: %v", e.Message, e.Cause)
	}
	return "code list download error: " + e.Message
}

func (e *CodeListDownloadError) Unwrap() error { return e.Cause }

// PageAccessError reports a non-success HTTP status when fetching a
// web page.
type PageAccessError struct {
	URL        string
	StatusCode int
}

func (e *PageAccessError) Error() string {
	return fmt.Sprintf("page access error: %s returned status %d", e.URL, e.StatusCode)
}

// DocumentDownloadError reports a failure to download a document file
// from a web site.
type DocumentDownloadError struct {
	URL     string
	Message string
	Cause   error
}

func (e *DocumentDownloadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("document download error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("document download error for %s: %s", e.URL, e.Message)
}

func (e *DocumentDownloadError) Unwrap() error { return e.Cause }

// TemplateNotFoundError reports that no scraping template exists for a
// securities code and automatic exploration could not fill the gap.
type TemplateNotFoundError struct {
	SecCode string
	Message string
}

func (e *TemplateNotFoundError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("no ir template for %s: %s", e.SecCode, e.Message)
	}
	return "no ir template for " + e.SecCode
}

// CompanyNotFoundError reports that a company lookup matched nothing.
type CompanyNotFoundError struct {
	Query string
}

func (e *CompanyNotFoundError) Error() string {
	return "no company matched query: " + e.Query
}
