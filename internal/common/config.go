package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration. Values are resolved with
// the precedence: environment variables > config file > defaults. Downstream
// code never reads environment variables directly.
type Config struct {
	Logging   LoggingConfig   `toml:"logging"`
	Scraper   ScraperConfig   `toml:"scraper"`
	Edinet    EdinetConfig    `toml:"edinet"`
	Directory DirectoryConfig `toml:"directory"`
	LLM       LLMConfig       `toml:"llm"`
	IR        IRConfig        `toml:"ir"`
	Storage   StorageConfig   `toml:"storage"`
	Agent     AgentConfig     `toml:"agent"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// ScraperConfig contains settings for the HTTP/browser scraping substrate.
type ScraperConfig struct {
	UserAgent       string        `toml:"user_agent"`
	RequestInterval time.Duration `toml:"request_interval"` // Minimum delay between outbound requests
	RequestTimeout  time.Duration `toml:"request_timeout"`
	DownloadTimeout time.Duration `toml:"download_timeout"` // Hard timeout for the browser download fallback
	FollowRobotsTxt bool          `toml:"follow_robots_txt"`
	Headless        bool          `toml:"headless"`
	NoSandbox       bool          `toml:"no_sandbox"`
}

// EdinetConfig contains settings for the Filings API client.
type EdinetConfig struct {
	BaseURL         string        `toml:"base_url"`
	APIKey          string        `toml:"api_key"`
	ListTimeout     time.Duration `toml:"list_timeout"`
	DownloadTimeout time.Duration `toml:"download_timeout"`
}

// DirectoryConfig contains settings for the company code-list directory.
type DirectoryConfig struct {
	CodeListURL  string `toml:"code_list_url"`
	CacheDir     string `toml:"cache_dir"`
	ValidityDays int    `toml:"validity_days"`
}

// LLMConfig mirrors the settings surface recognized by the provider factory.
type LLMConfig struct {
	Provider        string        `toml:"provider"` // openai | google | anthropic | local
	Model           string        `toml:"model"`
	VisionProvider  string        `toml:"vision_provider"`
	VisionModel     string        `toml:"vision_model"`
	Timeout         time.Duration `toml:"timeout"`
	MaxRetries      int           `toml:"max_retries"`
	RPMLimit        int           `toml:"rpm_limit"`
	OpenAIAPIKey    string        `toml:"openai_api_key"`
	GoogleAPIKey    string        `toml:"google_api_key"`
	AnthropicAPIKey string        `toml:"anthropic_api_key"`
	LocalBaseURL    string        `toml:"local_base_url"`
}

// IRConfig contains settings for the IR scraping pipeline.
type IRConfig struct {
	TemplatesDir string `toml:"templates_dir"`
	SinceDays    int    `toml:"since_days"` // Default lookback window for IR documents
	MaxLinks     int    `toml:"max_links"`  // Cap on links requested from the LLM explorer
}

type StorageConfig struct {
	DownloadDir string `toml:"download_dir"`
}

// AgentConfig bounds the tool-orchestration loop.
type AgentConfig struct {
	MaxTurns     int           `toml:"max_turns"`
	MaxToolCalls int           `toml:"max_tool_calls"`
	Timeout      time.Duration `toml:"timeout"`
}

// NewDefaultConfig returns a config populated with defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		Scraper: ScraperConfig{
			UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
			RequestInterval: time.Second,
			RequestTimeout:  30 * time.Second,
			DownloadTimeout: 60 * time.Second,
			FollowRobotsTxt: true,
			Headless:        true,
			NoSandbox:       true,
		},
		Edinet: EdinetConfig{
			BaseURL:         "https://api.edinet-fsa.go.jp/api/v2",
			ListTimeout:     30 * time.Second,
			DownloadTimeout: 60 * time.Second,
		},
		Directory: DirectoryConfig{
			CodeListURL:  "https://disclosure2dl.edinet-fsa.go.jp/searchdocument/codelist/Edinetcode.zip",
			CacheDir:     filepath.Join(os.TempDir(), "kaiji", "codelist"),
			ValidityDays: 7,
		},
		LLM: LLMConfig{
			Provider:     "openai",
			Timeout:      120 * time.Second,
			MaxRetries:   3,
			RPMLimit:     60,
			LocalBaseURL: "http://localhost:11434/v1",
		},
		IR: IRConfig{
			TemplatesDir: "templates",
			SinceDays:    90,
			MaxLinks:     20,
		},
		Storage: StorageConfig{
			DownloadDir: "downloads",
		},
		Agent: AgentConfig{
			MaxTurns:     10,
			MaxToolCalls: 15,
			Timeout:      5 * time.Minute,
		},
	}
}

// LoadConfig loads configuration with priority: defaults -> config file ->
// .env file -> environment variables. The path may be empty, in which case
// only the other sources apply.
func LoadConfig(path string) (*Config, error) {
	// .env entries become process env vars before overrides are read.
	// Real env vars win over .env values.
	_ = godotenv.Load()

	config := NewDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)
	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(config *Config) {
	if level := os.Getenv("KAIJI_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("KAIJI_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	if key := os.Getenv("EDINET_API_KEY"); key != "" {
		config.Edinet.APIKey = key
	}
	if base := os.Getenv("EDINET_BASE_URL"); base != "" {
		config.Edinet.BaseURL = base
	}

	if dir := os.Getenv("DOWNLOAD_DIR"); dir != "" {
		config.Storage.DownloadDir = dir
	}
	if dir := os.Getenv("KAIJI_TEMPLATES_DIR"); dir != "" {
		config.IR.TemplatesDir = dir
	}

	if provider := os.Getenv("LLM_PROVIDER"); provider != "" {
		config.LLM.Provider = provider
	}
	if model := os.Getenv("LLM_MODEL"); model != "" {
		config.LLM.Model = model
	}
	if provider := os.Getenv("LLM_VISION_PROVIDER"); provider != "" {
		config.LLM.VisionProvider = provider
	}
	if model := os.Getenv("LLM_VISION_MODEL"); model != "" {
		config.LLM.VisionModel = model
	}
	if timeout := os.Getenv("LLM_TIMEOUT"); timeout != "" {
		if secs, err := strconv.Atoi(timeout); err == nil && secs > 0 {
			config.LLM.Timeout = time.Duration(secs) * time.Second
		}
	}
	if retries := os.Getenv("LLM_MAX_RETRIES"); retries != "" {
		if n, err := strconv.Atoi(retries); err == nil && n >= 0 {
			config.LLM.MaxRetries = n
		}
	}
	if rpm := os.Getenv("LLM_RPM_LIMIT"); rpm != "" {
		if n, err := strconv.Atoi(rpm); err == nil && n > 0 {
			config.LLM.RPMLimit = n
		}
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		config.LLM.OpenAIAPIKey = key
	}
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		config.LLM.GoogleAPIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		config.LLM.AnthropicAPIKey = key
	}
	if base := os.Getenv("LOCAL_BASE_URL"); base != "" {
		config.LLM.LocalBaseURL = base
	}
}
