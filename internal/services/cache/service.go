package cache

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/kaiji/internal/models"
)

// Filter narrows a cache scan. Empty fields match everything at their
// level of the hierarchy.
type Filter struct {
	SecCode     string
	DocTypeCode string
	Period      string // YYYYMM
}

// Stats summarizes the download cache.
type Stats struct {
	TotalDocuments int `json:"total_documents"`
	TotalCompanies int `json:"total_companies"`
}

// Service is a pure filesystem index over the download hierarchy. No
// sidecar database is kept; the directory layout is the index.
type Service struct {
	downloadDir string
	logger      arbor.ILogger
}

// NewService creates a cache service over the download root.
func NewService(downloadDir string, logger arbor.ILogger) *Service {
	return &Service{downloadDir: downloadDir, logger: logger}
}

// FindByDocID walks the download root for <docID>.pdf and returns the
// first match, or nil when the document is not cached.
func (s *Service) FindByDocID(docID string) (*models.CachedDocument, error) {
	target := docID + ".pdf"

	var found string
	err := filepath.WalkDir(s.downloadDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == target {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if found == "" {
		return nil, nil
	}
	return models.ParseCachedPath(s.downloadDir, found), nil
}

// FindByFilter globs the hierarchy with wildcards for unset fields:
// <sec>_*/<type>_*/<period>/*.pdf.
func (s *Service) FindByFilter(filter Filter) ([]*models.CachedDocument, error) {
	pattern := filepath.Join(s.downloadDir,
		segmentGlob(filter.SecCode),
		segmentGlob(filter.DocTypeCode),
		orWildcard(filter.Period),
		"*.pdf")

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	docs := make([]*models.CachedDocument, 0, len(matches))
	for _, path := range matches {
		docs = append(docs, models.ParseCachedPath(s.downloadDir, path))
	}
	return docs, nil
}

// ListAll enumerates every cached PDF, including flat-layout files that
// sit outside the hierarchy.
func (s *Service) ListAll() ([]*models.CachedDocument, error) {
	var docs []*models.CachedDocument
	err := filepath.WalkDir(s.downloadDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(strings.ToLower(d.Name()), ".pdf") {
			docs = append(docs, models.ParseCachedPath(s.downloadDir, path))
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return docs, nil
}

// GetCacheStats counts cached documents and the distinct securities
// codes they belong to.
func (s *Service) GetCacheStats() (*Stats, error) {
	docs, err := s.ListAll()
	if err != nil {
		return nil, err
	}

	companies := map[string]bool{}
	for _, doc := range docs {
		if doc.SecCode != "" {
			companies[doc.SecCode] = true
		}
	}
	return &Stats{TotalDocuments: len(docs), TotalCompanies: len(companies)}, nil
}

// segmentGlob builds the glob for a <prefix>_<name> path segment.
func segmentGlob(prefix string) string {
	if prefix == "" {
		return "*"
	}
	return prefix + "_*"
}

func orWildcard(s string) string {
	if s == "" {
		return "*"
	}
	return s
}
