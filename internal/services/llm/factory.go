package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/ternarybob/kaiji/internal/common"
	"github.com/ternarybob/kaiji/internal/interfaces"
)

// Provider names recognized by the factory.
const (
	ProviderOpenAI    = "openai"
	ProviderGoogle    = "google"
	ProviderAnthropic = "anthropic"
	ProviderLocal     = "local"
)

const openAIBaseURL = "https://api.openai.com/v1"

// defaultModels gives each provider a sensible model when none is
// configured.
var defaultModels = map[string]string{
	ProviderOpenAI:    "gpt-4o-mini",
	ProviderGoogle:    "gemini-2.0-flash",
	ProviderAnthropic: "claude-sonnet-4-5",
	ProviderLocal:     "qwen2.5",
}

// Factory builds providers from configuration. The rate limiter is
// shared across every provider the factory creates, so the configured
// requests-per-minute ceiling holds process-wide.
type Factory struct {
	config  common.LLMConfig
	logger  arbor.ILogger
	limiter *rate.Limiter

	mu            sync.Mutex
	defaultCached interfaces.LLMProvider
	visionCached  interfaces.LLMProvider
}

// NewFactory creates a provider factory from configuration.
func NewFactory(config common.LLMConfig, logger arbor.ILogger) *Factory {
	var limiter *rate.Limiter
	if config.RPMLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(config.RPMLimit)/60.0), 1)
	}
	return &Factory{config: config, logger: logger, limiter: limiter}
}

// DefaultProvider returns the configured text provider, building it on
// first use.
func (f *Factory) DefaultProvider() (interfaces.LLMProvider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.defaultCached != nil {
		return f.defaultCached, nil
	}
	provider, err := f.build(f.config.Provider, f.config.Model)
	if err != nil {
		return nil, err
	}
	f.defaultCached = provider
	return provider, nil
}

// VisionProvider returns the provider used for vision calls. Without a
// vision override it falls back to the default provider.
func (f *Factory) VisionProvider() (interfaces.LLMProvider, error) {
	f.mu.Lock()
	visionProvider := f.config.VisionProvider
	visionModel := f.config.VisionModel
	if f.visionCached != nil {
		cached := f.visionCached
		f.mu.Unlock()
		return cached, nil
	}
	f.mu.Unlock()

	if visionProvider == "" && visionModel == "" {
		return f.DefaultProvider()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.visionCached != nil {
		return f.visionCached, nil
	}

	name := visionProvider
	if name == "" {
		name = f.config.Provider
	}
	provider, err := f.build(name, visionModel)
	if err != nil {
		return nil, err
	}
	f.visionCached = provider
	return provider, nil
}

// ResetCache drops memoized providers so the next call rebuilds them
// from current configuration.
func (f *Factory) ResetCache() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.defaultCached = nil
	f.visionCached = nil
}

// build constructs a provider, validating the vendor credential. The
// local backend needs no key.
func (f *Factory) build(providerName, model string) (interfaces.LLMProvider, error) {
	providerName = strings.ToLower(strings.TrimSpace(providerName))
	if providerName == "" {
		providerName = ProviderOpenAI
	}
	if model == "" {
		model = defaultModels[providerName]
	}

	base := clientBase{
		provider:   providerName,
		model:      model,
		limiter:    f.limiter,
		maxRetries: f.config.MaxRetries,
		timeout:    f.config.Timeout,
		logger:     f.logger,
	}

	f.logger.Debug().
		Str("provider", providerName).
		Str("model", model).
		Msg("Building LLM provider")

	switch providerName {
	case ProviderOpenAI:
		if f.config.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
		}
		return &OpenAIProvider{
			clientBase: base,
			apiKey:     f.config.OpenAIAPIKey,
			baseURL:    openAIBaseURL,
			httpClient: &http.Client{Timeout: f.config.Timeout + 30*time.Second},
			vision:     true,
		}, nil

	case ProviderLocal:
		baseURL := f.config.LocalBaseURL
		if baseURL == "" {
			return nil, fmt.Errorf("LOCAL_BASE_URL is required for the local provider")
		}
		return &OpenAIProvider{
			clientBase: base,
			baseURL:    baseURL,
			httpClient: &http.Client{Timeout: f.config.Timeout + 30*time.Second},
			vision:     localModelSupportsVision(model),
		}, nil

	case ProviderGoogle:
		if f.config.GoogleAPIKey == "" {
			return nil, fmt.Errorf("GOOGLE_API_KEY is required for the google provider")
		}
		client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
			APIKey:  f.config.GoogleAPIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		return &GoogleProvider{clientBase: base, client: client}, nil

	case ProviderAnthropic:
		if f.config.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for the anthropic provider")
		}
		client := anthropic.NewClient(option.WithAPIKey(f.config.AnthropicAPIKey))
		return &AnthropicProvider{clientBase: base, client: client}, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", providerName)
	}
}
