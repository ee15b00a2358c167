package edinet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/kaiji/internal/common"
	"github.com/ternarybob/kaiji/internal/models"
	"github.com/ternarybob/kaiji/internal/services/scraper"
)

// Client is a typed client for the disclosure filings API. It covers the
// two endpoints the API exposes: the per-date document list and the
// per-document artifact download. API failures surface as *common.ApiError
// regardless of whether the API reported them through the HTTP status or
// inside an HTTP 200 body.
type Client struct {
	config         common.EdinetConfig
	logger         arbor.ILogger
	listClient     *http.Client
	downloadClient *http.Client
	listRetry      *scraper.RetryPolicy
	downloadRetry  *scraper.RetryPolicy
}

// NewClient creates a filings API client from configuration.
func NewClient(config common.EdinetConfig, logger arbor.ILogger) *Client {
	return &Client{
		config:         config,
		logger:         logger,
		listClient:     &http.Client{Timeout: config.ListTimeout},
		downloadClient: &http.Client{Timeout: config.DownloadTimeout},
		listRetry:      scraper.NewRetryPolicy(),
		downloadRetry:  scraper.NewDownloadRetryPolicy(),
	}
}

// ListDocuments fetches the document list for a single submission date.
// listType selects between the count-only and full-detail responses.
func (c *Client) ListDocuments(ctx context.Context, date time.Time, listType int) (*DocumentListResponse, error) {
	endpoint := c.config.BaseURL + "/documents.json"

	params := url.Values{}
	params.Set("date", date.Format("2006-01-02"))
	params.Set("type", strconv.Itoa(listType))
	params.Set("Subscription-Key", c.config.APIKey)

	var response *DocumentListResponse
	err := c.listRetry.Execute(ctx, c.logger, func() error {
		list, err := c.fetchList(ctx, endpoint, params)
		if err != nil {
			return err
		}
		response = list
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("date", date.Format("2006-01-02")).
		Int("count", response.Metadata.ResultSet.Count).
		Msg("Fetched document list")
	return response, nil
}

func (c *Client) fetchList(ctx context.Context, endpoint string, params url.Values) (*DocumentListResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build list request: %w", err)
	}

	resp, err := c.listClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read list response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusToError(resp.StatusCode, extractMessage(body, resp.StatusCode), endpoint)
	}

	var list DocumentListResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, common.NewApiError(0, "unexpected JSON response", endpoint)
	}

	// The API reports per-date failures inside a 200 envelope.
	if list.Metadata.Status != "" && list.Metadata.Status != "200" {
		return nil, inspectJSONBody(body, endpoint)
	}

	return &list, nil
}

// DownloadDocument fetches one document artifact and writes it to
// savePath atomically. The returned path equals savePath on success.
// A JSON content type on the download endpoint always means the API is
// reporting an error instead of serving the artifact.
func (c *Client) DownloadDocument(ctx context.Context, docID string, downloadType models.DownloadType, savePath string) (string, error) {
	endpoint := fmt.Sprintf("%s/documents/%s", c.config.BaseURL, docID)

	params := url.Values{}
	params.Set("type", strconv.Itoa(int(downloadType)))
	params.Set("Subscription-Key", c.config.APIKey)

	err := c.downloadRetry.Execute(ctx, c.logger, func() error {
		return c.fetchDocument(ctx, endpoint, params, savePath)
	})
	if err != nil {
		return "", err
	}

	c.logger.Info().
		Str("doc_id", docID).
		Int("type", int(downloadType)).
		Str("path", savePath).
		Msg("Downloaded document")
	return savePath, nil
}

func (c *Client) fetchDocument(ctx context.Context, endpoint string, params url.Values, savePath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := c.downloadClient.Do(req)
	if err != nil {
		return fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return statusToError(resp.StatusCode, extractMessage(body, resp.StatusCode), endpoint)
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		if err := inspectJSONBody(body, endpoint); err != nil {
			return err
		}
		return common.NewApiError(0, "unexpected JSON response", endpoint)
	}

	return writeAtomic(savePath, resp.Body)
}

// writeAtomic streams content to a temp file in the target directory and
// renames it into place, so interrupted downloads never leave partial
// files at the final path.
func writeAtomic(savePath string, r io.Reader) error {
	dir := filepath.Dir(savePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write download: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, savePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move download into place: %w", err)
	}
	return nil
}

// extractMessage pulls a human-readable message out of an error body,
// falling back to the standard HTTP status text.
func extractMessage(body []byte, statusCode int) string {
	var flat flatErrorBody
	if err := json.Unmarshal(body, &flat); err == nil && flat.Message != "" {
		return flat.Message
	}
	var env envelopeErrorBody
	if err := json.Unmarshal(body, &env); err == nil && env.Metadata != nil && env.Metadata.Message != "" {
		return env.Metadata.Message
	}
	return http.StatusText(statusCode)
}
