package edinet

import (
	"encoding/json"
	"strconv"

	"github.com/ternarybob/kaiji/internal/common"
)

// statusToError maps an API status code plus a message taken from the
// response body to a typed error. A zero return means success.
func statusToError(statusCode int, message, endpoint string) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	switch {
	case statusCode == 401:
		return common.NewAuthenticationError(statusCode, message, endpoint)
	case statusCode == 404:
		return common.NewNotFoundError(statusCode, message, endpoint)
	case statusCode >= 500:
		return common.NewServerError(statusCode, message, endpoint)
	default:
		return common.NewApiError(statusCode, message, endpoint)
	}
}

// The API reports some failures inside an HTTP 200 body. Two shapes
// exist: a flat {"statusCode": N, "message": ...} object and the list
// envelope's {"metadata": {"status": "N", "message": ...}}.

type flatErrorBody struct {
	StatusCode *int   `json:"statusCode"`
	Message    string `json:"message"`
}

type envelopeErrorBody struct {
	Metadata *struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"metadata"`
}

// inspectJSONBody normalizes an error reported inside a JSON body. If
// the body matches neither known shape it is still an error condition
// for callers that expected binary content, reported with status 0.
func inspectJSONBody(body []byte, endpoint string) error {
	var flat flatErrorBody
	if err := json.Unmarshal(body, &flat); err == nil && flat.StatusCode != nil {
		return statusToError(*flat.StatusCode, flat.Message, endpoint)
	}

	var env envelopeErrorBody
	if err := json.Unmarshal(body, &env); err == nil && env.Metadata != nil && env.Metadata.Status != "" {
		code, err := strconv.Atoi(env.Metadata.Status)
		if err != nil {
			return common.NewApiError(0, "unexpected JSON response", endpoint)
		}
		return statusToError(code, env.Metadata.Message, endpoint)
	}

	return common.NewApiError(0, "unexpected JSON response", endpoint)
}
