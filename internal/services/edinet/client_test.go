package edinet

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/kaiji/internal/common"
	"github.com/ternarybob/kaiji/internal/models"
)

func newTestClient(baseURL string) *Client {
	config := common.EdinetConfig{
		BaseURL:         baseURL,
		APIKey:          "test-key",
		ListTimeout:     5 * time.Second,
		DownloadTimeout: 5 * time.Second,
	}
	return NewClient(config, common.GetLogger())
}

func TestListDocuments_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/documents.json", r.URL.Path)
		assert.Equal(t, "2024-06-03", r.URL.Query().Get("date"))
		assert.Equal(t, "2", r.URL.Query().Get("type"))
		assert.Equal(t, "test-key", r.URL.Query().Get("Subscription-Key"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"metadata": {
				"title": "API",
				"resultset": {"count": 2},
				"status": "200",
				"message": "OK"
			},
			"results": [
				{"docID": "S100AAAA", "edinetCode": "E02144", "secCode": "72030", "filerName": "トヨタ自動車株式会社", "docTypeCode": "120", "submitDateTime": "2024-06-03 09:00", "pdfFlag": "1", "xbrlFlag": "1", "csvFlag": "0"},
				{"docID": "S100BBBB", "edinetCode": "E99999", "secCode": "", "filerName": "テスト株式会社", "docTypeCode": "180", "submitDateTime": "2024-06-03 10:30", "pdfFlag": "0"}
			]
		}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	list, err := client.ListDocuments(context.Background(), time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), ListTypeFull)
	require.NoError(t, err)

	assert.Equal(t, 2, list.Metadata.ResultSet.Count)
	require.Len(t, list.Results, 2)
	assert.Equal(t, "S100AAAA", list.Results[0].DocID)
	assert.True(t, list.Results[0].PdfFlag.Bool())
	assert.False(t, list.Results[1].PdfFlag.Bool())
}

func TestListDocuments_NotFoundNoRetry(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"statusCode": 404, "message": "not found"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.ListDocuments(context.Background(), time.Now(), ListTypeFull)

	var apiErr *common.ApiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, common.ApiErrorNotFound, apiErr.Kind)
	assert.Equal(t, 404, apiErr.StatusCode)
	assert.Equal(t, "not found", apiErr.Message)
	assert.False(t, apiErr.Retryable())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestListDocuments_NotFoundEnvelopeInsideOK(t *testing.T) {
	// A date with no filings comes back as HTTP 200 carrying a full
	// envelope whose metadata status says 404.
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"metadata": {"title": "提出された書類を把握するためのAPI",
			"parameter": {"date": "2024-01-15", "type": "2"},
			"resultset": {"count": 0},
			"status": "404", "message": "Not Found"}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.ListDocuments(context.Background(), time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), ListTypeFull)

	var apiErr *common.ApiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, common.ApiErrorNotFound, apiErr.Kind)
	assert.Equal(t, 404, apiErr.StatusCode)
	assert.Equal(t, "Not Found", apiErr.Message)
	assert.Contains(t, apiErr.Endpoint, "/documents.json")
	assert.False(t, apiErr.Retryable())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestListDocuments_AuthErrorInsideOK(t *testing.T) {
	// Authentication failures can arrive as an HTTP 200 envelope with a
	// non-200 metadata status.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"metadata": {"status": "401", "message": "invalid subscription key"}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.ListDocuments(context.Background(), time.Now(), ListTypeFull)

	var apiErr *common.ApiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, common.ApiErrorAuthentication, apiErr.Kind)
	assert.Equal(t, 401, apiErr.StatusCode)
	assert.Equal(t, "invalid subscription key", apiErr.Message)
}

func TestDownloadDocument_WritesFile(t *testing.T) {
	pdfBytes := []byte("%PDF-1.7 fake content")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/documents/S100AAAA", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("type"))
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(pdfBytes)
	}))
	defer server.Close()

	savePath := filepath.Join(t.TempDir(), "nested", "S100AAAA.pdf")
	client := newTestClient(server.URL)
	path, err := client.DownloadDocument(context.Background(), "S100AAAA", models.DownloadTypePDF, savePath)
	require.NoError(t, err)
	assert.Equal(t, savePath, path)

	written, err := os.ReadFile(savePath)
	require.NoError(t, err)
	assert.Equal(t, pdfBytes, written)

	// No temp file remnants next to the download.
	entries, err := os.ReadDir(filepath.Dir(savePath))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDownloadDocument_JSONBodyMeansError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"statusCode": 404, "message": "document not found"}`))
	}))
	defer server.Close()

	savePath := filepath.Join(t.TempDir(), "doc.pdf")
	client := newTestClient(server.URL)
	_, err := client.DownloadDocument(context.Background(), "S100ZZZZ", models.DownloadTypePDF, savePath)

	var apiErr *common.ApiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, common.ApiErrorNotFound, apiErr.Kind)
	assert.NoFileExists(t, savePath)
}

func TestDownloadDocument_UnrecognizedJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"something": "else entirely"}`))
	}))
	defer server.Close()

	savePath := filepath.Join(t.TempDir(), "doc.pdf")
	client := newTestClient(server.URL)
	_, err := client.DownloadDocument(context.Background(), "S100ZZZZ", models.DownloadTypePDF, savePath)

	var apiErr *common.ApiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 0, apiErr.StatusCode)
	assert.Equal(t, "unexpected JSON response", apiErr.Message)
	assert.NoFileExists(t, savePath)
}

func TestStatusToError_Kinds(t *testing.T) {
	tests := []struct {
		status int
		kind   common.ApiErrorKind
	}{
		{401, common.ApiErrorAuthentication},
		{404, common.ApiErrorNotFound},
		{500, common.ApiErrorServer},
		{503, common.ApiErrorServer},
		{400, common.ApiErrorGeneric},
	}
	for _, tt := range tests {
		err := statusToError(tt.status, "msg", "ep")
		var apiErr *common.ApiError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, tt.kind, apiErr.Kind, "status %d", tt.status)
	}
	assert.NoError(t, statusToError(200, "", "ep"))
}
