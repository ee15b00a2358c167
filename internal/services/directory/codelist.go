package directory

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"github.com/ternarybob/kaiji/internal/common"
	"github.com/ternarybob/kaiji/internal/models"
)

// Cache artifact names match the CSV entry published inside the
// code-list archive.
const (
	codeListFileName  = "EdinetcodeDlInfo.csv"
	timestampFileName = "EdinetcodeDlInfo.csv.timestamp"
)

// Column headers of the published code-list CSV. The file uses
// full-width characters in its header row.
const (
	colEdinetCode = "ＥＤＩＮＥＴコード"
	colListing    = "上場区分"
	colNameJa     = "提出者名"
	colNameEn     = "提出者名（英字）"
	colNameKana   = "提出者名（ヨミ）"
	colIndustry   = "提出者業種"
	colSecCode    = "証券コード"
)

const listedValue = "上場"

// refreshCodeList downloads the code-list archive, extracts the first
// CSV entry, and writes it to the cache directory with a timestamp
// sidecar. The CSV is stored as-is in its original encoding.
func (s *Service) refreshCodeList(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.CodeListURL, nil)
	if err != nil {
		return &common.CodeListDownloadError{Message: "failed to build request", Cause: err}
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &common.CodeListDownloadError{Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &common.CodeListDownloadError{
			Message: fmt.Sprintf("unexpected status %d from %s", resp.StatusCode, s.config.CodeListURL),
		}
	}

	archive, err := io.ReadAll(resp.Body)
	if err != nil {
		return &common.CodeListDownloadError{Message: "failed to read archive", Cause: err}
	}

	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return &common.CodeListDownloadError{Message: "failed to open archive", Cause: err}
	}

	var entry *zip.File
	for _, f := range reader.File {
		if strings.HasSuffix(strings.ToLower(f.Name), ".csv") {
			entry = f
			break
		}
	}
	if entry == nil {
		return &common.CodeListDownloadError{Message: "archive contains no CSV entry"}
	}

	rc, err := entry.Open()
	if err != nil {
		return &common.CodeListDownloadError{Message: "failed to open CSV entry", Cause: err}
	}
	defer rc.Close()

	csvBytes, err := io.ReadAll(rc)
	if err != nil {
		return &common.CodeListDownloadError{Message: "failed to extract CSV entry", Cause: err}
	}

	if err := os.MkdirAll(s.config.CacheDir, 0755); err != nil {
		return &common.CodeListDownloadError{Message: "failed to create cache directory", Cause: err}
	}
	csvPath := filepath.Join(s.config.CacheDir, codeListFileName)
	if err := os.WriteFile(csvPath, csvBytes, 0644); err != nil {
		return &common.CodeListDownloadError{Message: "failed to write CSV cache", Cause: err}
	}
	stamp := time.Now().Format(time.RFC3339)
	if err := os.WriteFile(filepath.Join(s.config.CacheDir, timestampFileName), []byte(stamp), 0644); err != nil {
		return &common.CodeListDownloadError{Message: "failed to write timestamp sidecar", Cause: err}
	}

	s.logger.Info().
		Str("path", csvPath).
		Int("bytes", len(csvBytes)).
		Msg("Refreshed company code list")
	return nil
}

// cacheValid reports whether a cached code list exists and is younger
// than the configured validity window.
func (s *Service) cacheValid() bool {
	csvPath := filepath.Join(s.config.CacheDir, codeListFileName)
	if _, err := os.Stat(csvPath); err != nil {
		return false
	}

	data, err := os.ReadFile(filepath.Join(s.config.CacheDir, timestampFileName))
	if err != nil {
		return false
	}
	refreshed, err := time.Parse(time.RFC3339, strings.TrimSpace(string(data)))
	if err != nil {
		return false
	}

	return time.Since(refreshed) < time.Duration(s.config.ValidityDays)*24*time.Hour
}

// loadCodeList parses the cached Shift_JIS CSV into company records.
// The first line is a human-readable preamble and is skipped; the next
// line is the column header. Rows without a submitter identifier are
// skipped.
func (s *Service) loadCodeList() ([]models.Company, error) {
	csvPath := filepath.Join(s.config.CacheDir, codeListFileName)
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, &common.CodeListDownloadError{Message: "failed to open cached CSV", Cause: err}
	}
	defer f.Close()

	decoded := transform.NewReader(f, japanese.ShiftJIS.NewDecoder())
	reader := csv.NewReader(decoded)
	reader.FieldsPerRecord = -1

	// Preamble line.
	if _, err := reader.Read(); err != nil {
		return nil, &common.CodeListDownloadError{Message: "failed to read CSV preamble", Cause: err}
	}

	header, err := reader.Read()
	if err != nil {
		return nil, &common.CodeListDownloadError{Message: "failed to read CSV header", Cause: err}
	}
	cols := map[string]int{}
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{colEdinetCode, colNameJa} {
		if _, ok := cols[required]; !ok {
			return nil, &common.CodeListDownloadError{Message: "CSV header missing column " + required}
		}
	}

	field := func(row []string, name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var companies []models.Company
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.logger.Warn().Err(err).Msg("Skipping malformed code-list row")
			continue
		}

		edinetCode := field(row, colEdinetCode)
		if edinetCode == "" {
			continue
		}

		secCode := field(row, colSecCode)
		if secCode == "0" {
			secCode = ""
		}

		companies = append(companies, models.Company{
			EdinetCode:  edinetCode,
			SecCode:     secCode,
			NameJa:      field(row, colNameJa),
			NameKana:    field(row, colNameKana),
			NameEn:      field(row, colNameEn),
			Listed:      field(row, colListing) == listedValue,
			IndustryDiv: field(row, colIndustry),
		})
	}

	return companies, nil
}
