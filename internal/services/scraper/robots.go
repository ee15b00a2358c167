package scraper

import (
	"bufio"
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"
)

// RobotsChecker caches parsed robots.txt rules per origin. Only Disallow
// directives under "User-agent: *" are honored. The check is advisory: a
// missing robots.txt, a 404, or a fetch failure permits all paths.
type RobotsChecker struct {
	client *http.Client
	logger arbor.ILogger
	mu     sync.Mutex
	rules  map[string][]string // origin -> disallowed path prefixes
}

// NewRobotsChecker creates a checker backed by the given HTTP client.
func NewRobotsChecker(client *http.Client, logger arbor.ILogger) *RobotsChecker {
	return &RobotsChecker{
		client: client,
		logger: logger,
		rules:  make(map[string][]string),
	}
}

// Allowed reports whether the URL's path escapes every cached Disallow
// prefix for its origin, fetching and parsing robots.txt on first use.
func (r *RobotsChecker) Allowed(ctx context.Context, rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return true
	}
	origin := parsed.Scheme + "://" + parsed.Host

	r.mu.Lock()
	disallowed, cached := r.rules[origin]
	r.mu.Unlock()

	if !cached {
		disallowed = r.fetchRules(ctx, origin)
		r.mu.Lock()
		r.rules[origin] = disallowed
		r.mu.Unlock()
	}

	path := parsed.Path
	if path == "" {
		path = "/"
	}
	for _, prefix := range disallowed {
		if strings.HasPrefix(path, prefix) {
			r.logger.Warn().
				Str("url", rawURL).
				Str("rule", prefix).
				Msg("robots.txt disallows path")
			return false
		}
	}
	return true
}

// fetchRules downloads and parses robots.txt for an origin. Any failure
// yields an empty rule set (default permit).
func (r *RobotsChecker) fetchRules(ctx context.Context, origin string) []string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Debug().Err(err).Str("origin", origin).Msg("robots.txt fetch failed, permitting all")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var disallowed []string
	applies := false
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		field, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		field = strings.ToLower(strings.TrimSpace(field))
		value = strings.TrimSpace(value)

		switch field {
		case "user-agent":
			applies = value == "*" || value == ""
		case "disallow":
			// An empty Disallow value permits everything in the group.
			if applies && value != "" {
				disallowed = append(disallowed, value)
			}
		}
	}

	r.logger.Debug().
		Str("origin", origin).
		Int("rules", len(disallowed)).
		Msg("Parsed robots.txt")
	return disallowed
}
