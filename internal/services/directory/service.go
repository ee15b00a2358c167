package directory

import (
	"context"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/kaiji/internal/common"
	"github.com/ternarybob/kaiji/internal/models"
)

// edinetCodePattern matches a submitter identifier: one letter followed
// by five digits.
var edinetCodePattern = regexp.MustCompile(`^[A-Z]\d{5}$`)

var secCodePattern = regexp.MustCompile(`^\d{4,5}$`)

// legalPrefixes are the common Japanese legal-entity forms stripped
// before prefix matching.
var legalPrefixes = []string{"株式会社", "合同会社", "有限会社", "合名会社", "合資会社"}

// industryKeywords are heavy-industry hints used as the final ranking
// tiebreaker; names of flagship manufacturers tend to contain one.
var industryKeywords = []string{"自動車", "重工業", "重工", "製作所", "製鉄", "鉄鋼", "造船", "電機"}

const fuzzyCutoff = 50

// Service resolves user-entered identifiers to canonical company
// records backed by the downloadable code list. Loading is lazy; the
// list refreshes when the cached copy is older than the TTL.
type Service struct {
	config     common.DirectoryConfig
	logger     arbor.ILogger
	httpClient *http.Client

	mu        sync.Mutex
	companies []models.Company
	byEdinet  map[string]int
	bySecCode map[string]int
}

// NewService creates a company directory service.
func NewService(config common.DirectoryConfig, logger arbor.ILogger) *Service {
	return &Service{
		config:     config,
		logger:     logger,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// ensureLoaded makes the in-memory directory available, refreshing the
// cached code list first when it is missing or stale.
func (s *Service) ensureLoaded(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.companies != nil {
		return nil
	}

	if !s.cacheValid() {
		if err := s.refreshCodeList(ctx); err != nil {
			return err
		}
	}

	companies, err := s.loadCodeList()
	if err != nil {
		return err
	}

	s.companies = companies
	s.byEdinet = make(map[string]int, len(companies))
	s.bySecCode = make(map[string]int, len(companies))
	for i, c := range companies {
		s.byEdinet[c.EdinetCode] = i
		if c.SecCode != "" {
			s.bySecCode[c.SecCode] = i
		}
	}

	s.logger.Info().
		Int("companies", len(companies)).
		Msg("Company directory loaded")
	return nil
}

// NormalizeSecCode converts a 4-digit market code to the canonical
// 5-digit form used by the filings side. Other inputs pass through.
func NormalizeSecCode(code string) string {
	if len(code) == 4 && secCodePattern.MatchString(code) {
		return code + "0"
	}
	return code
}

// FindByEdinetCode resolves a submitter identifier to its record.
func (s *Service) FindByEdinetCode(ctx context.Context, code string) (*models.Company, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	if i, ok := s.byEdinet[code]; ok {
		company := s.companies[i]
		return &company, nil
	}
	return nil, &common.CompanyNotFoundError{Query: code}
}

// FindBySecCode resolves a securities code (4 or 5 digits) to its record.
func (s *Service) FindBySecCode(ctx context.Context, code string) (*models.Company, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	if i, ok := s.bySecCode[NormalizeSecCode(code)]; ok {
		company := s.companies[i]
		return &company, nil
	}
	return nil, &common.CompanyNotFoundError{Query: code}
}

// Search resolves a free-form query to ranked company candidates. Codes
// resolve exactly at similarity 100; anything else goes through a fuzzy
// scan over the name fields.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]models.CompanyCandidate, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &common.CompanyNotFoundError{Query: query}
	}
	if limit <= 0 {
		limit = 5
	}

	if edinetCodePattern.MatchString(query) {
		if i, ok := s.byEdinet[query]; ok {
			return []models.CompanyCandidate{{Company: s.companies[i], Similarity: 100}}, nil
		}
		return nil, &common.CompanyNotFoundError{Query: query}
	}

	if secCodePattern.MatchString(query) {
		if i, ok := s.bySecCode[NormalizeSecCode(query)]; ok {
			return []models.CompanyCandidate{{Company: s.companies[i], Similarity: 100}}, nil
		}
		return nil, &common.CompanyNotFoundError{Query: query}
	}

	candidates := s.fuzzyScan(query)
	if len(candidates) == 0 {
		return nil, &common.CompanyNotFoundError{Query: query}
	}
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// fuzzyScan scores every record against the query and ranks survivors.
func (s *Service) fuzzyScan(query string) []models.CompanyCandidate {
	upperQuery := strings.ToUpper(query)

	var candidates []models.CompanyCandidate
	for _, c := range s.companies {
		score := fuzzy.PartialRatio(query, c.NameJa)
		if c.NameKana != "" {
			if kana := fuzzy.PartialRatio(query, c.NameKana); kana > score {
				score = kana
			}
		}
		if c.NameEn != "" {
			if en := fuzzy.PartialRatio(upperQuery, strings.ToUpper(c.NameEn)); en > score {
				score = en
			}
		}
		if score >= fuzzyCutoff {
			candidates = append(candidates, models.CompanyCandidate{Company: c, Similarity: score})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		ap, bp := isPrefixMatch(query, a.Company.NameJa), isPrefixMatch(query, b.Company.NameJa)
		if ap != bp {
			return ap
		}
		if a.Company.Listed != b.Company.Listed {
			return a.Company.Listed
		}
		ak, bk := hasIndustryKeyword(a.Company.NameJa), hasIndustryKeyword(b.Company.NameJa)
		if ak != bk {
			return ak
		}
		return false
	})
	return candidates
}

// isPrefixMatch checks the query against the raw name and against the
// name with a leading legal-entity prefix removed.
func isPrefixMatch(query, name string) bool {
	if strings.HasPrefix(name, query) {
		return true
	}
	for _, prefix := range legalPrefixes {
		if trimmed, ok := strings.CutPrefix(name, prefix); ok {
			return strings.HasPrefix(trimmed, query)
		}
	}
	return false
}

func hasIndustryKeyword(name string) bool {
	for _, kw := range industryKeywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}
