package chat

import (
	"context"
	"fmt"
	"os"
	"strconv"

	einoark "github.com/cloudwego/eino-ext/components/model/ark"
	einogemini "github.com/cloudwego/eino-ext/components/model/gemini"
	einoollama "github.com/cloudwego/eino-ext/components/model/ollama"
	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"
)

// Backend enumerates the supported chat-model providers.
type Backend string

const (
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendOpenAI selects the OpenAI API, or any OpenAI-compatible
	// endpoint via MODEL_BASE_URL (e.g. Gemini's OpenAI compatibility
	// gateway).
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendArk selects an Ark (Volcano Engine) compatible runtime.
	BackendArk Backend = "ark"
	// BackendGemini selects Google Gemini via the native genai client.
	BackendGemini Backend = "gemini"
)

// ProviderConfig holds the provider-level settings resolved from the
// environment or explicit caller-supplied values.
type ProviderConfig struct {
	// Backend identifies which provider to use.
	Backend Backend

	// Model is the model name or deployment ID (e.g. "gpt-4o",
	// "gemini-2.5-flash", "llama3").
	Model string

	// BaseURL overrides the default API endpoint (required for Ollama and
	// Azure; optional for OpenAI-compatible gateways).
	BaseURL string

	// APIKey is the authentication credential for the selected provider.
	APIKey string

	// AzureDeployment is the Azure OpenAI deployment name (Azure only).
	AzureDeployment string

	// AzureAPIVersion is the Azure OpenAI REST API version (Azure only).
	AzureAPIVersion string

	// MaxTokens caps the tokens the model may generate per response.
	MaxTokens int

	// Temperature controls response randomness (0.0–1.0).
	Temperature float32
}

// ProviderFromEnv resolves a ProviderConfig from environment variables.
//
//	MODEL_PROVIDER    = ollama | openai | azure | ark | gemini (default: ollama)
//	MODEL_NAME        model or deployment name per backend
//	MODEL_BASE_URL    endpoint override (Ollama default: http://localhost:11434)
//	MODEL_API_KEY     credential; falls back to the backend's native var
//	                  (OPENAI_API_KEY, AZURE_OPENAI_API_KEY, GOOGLE_API_KEY, ARK_API_KEY)
//	MODEL_MAX_TOKENS  default 4096
//	MODEL_TEMPERATURE default 0.2
func ProviderFromEnv() *ProviderConfig {
	backend := Backend(getEnvOrDefault("MODEL_PROVIDER", string(BackendOllama)))

	apiKey := os.Getenv("MODEL_API_KEY")
	if apiKey == "" {
		switch backend {
		case BackendOpenAI:
			apiKey = os.Getenv("OPENAI_API_KEY")
		case BackendAzure:
			apiKey = os.Getenv("AZURE_OPENAI_API_KEY")
		case BackendGemini:
			apiKey = os.Getenv("GOOGLE_API_KEY")
		case BackendArk:
			apiKey = os.Getenv("ARK_API_KEY")
		}
	}

	baseURL := os.Getenv("MODEL_BASE_URL")
	if baseURL == "" && backend == BackendAzure {
		baseURL = os.Getenv("AZURE_OPENAI_ENDPOINT")
	}

	modelName := os.Getenv("MODEL_NAME")
	if modelName == "" {
		switch backend {
		case BackendOllama:
			modelName = "llama3"
		case BackendOpenAI:
			modelName = "gpt-4o"
		case BackendGemini:
			modelName = "gemini-2.5-flash"
		}
	}

	return &ProviderConfig{
		Backend:         backend,
		Model:           modelName,
		BaseURL:         baseURL,
		APIKey:          apiKey,
		AzureDeployment: os.Getenv("AZURE_OPENAI_DEPLOYMENT"),
		AzureAPIVersion: getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2024-02-01"),
		MaxTokens:       getEnvInt("MODEL_MAX_TOKENS", 4096),
		Temperature:     getEnvFloat32("MODEL_TEMPERATURE", 0.2),
	}
}

// NewModel constructs a Model for the given provider config, delegating to
// the matching backend factory. Config errors surface at startup rather
// than on the first request.
func NewModel(ctx context.Context, cfg *ProviderConfig) (Model, error) {
	var (
		m   model.BaseChatModel
		err error
	)

	switch cfg.Backend {
	case BackendOllama:
		m, err = newOllama(ctx, cfg)
	case BackendOpenAI:
		m, err = newOpenAI(ctx, cfg)
	case BackendAzure:
		m, err = newAzure(ctx, cfg)
	case BackendArk:
		m, err = newArk(ctx, cfg)
	case BackendGemini:
		m, err = newGemini(ctx, cfg)
	default:
		return nil, fmt.Errorf("chat: unknown backend %q — valid values: ollama, openai, azure, ark, gemini", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	return NewEinoModel(m), nil
}

// newOllama constructs a chat model backed by a local Ollama instance.
func newOllama(ctx context.Context, cfg *ProviderConfig) (model.BaseChatModel, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	v, err := einoollama.NewChatModel(ctx, &einoollama.ChatModelConfig{
		BaseURL: baseURL,
		Model:   cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("chat: ollama model init failed: %w", err)
	}
	return v, nil
}

// newOpenAI constructs a chat model backed by the OpenAI API or any
// OpenAI-compatible endpoint when BaseURL is set.
func newOpenAI(ctx context.Context, cfg *ProviderConfig) (model.BaseChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("chat: MODEL_API_KEY is required for the openai backend")
	}
	v, err := einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		MaxTokens:   &cfg.MaxTokens,
		Temperature: &cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("chat: openai model init failed: %w", err)
	}
	return v, nil
}

// newAzure constructs a chat model backed by Azure OpenAI Service.
func newAzure(ctx context.Context, cfg *ProviderConfig) (model.BaseChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("chat: MODEL_API_KEY is required for the azure backend")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("chat: MODEL_BASE_URL (Azure endpoint) is required for the azure backend")
	}
	if cfg.AzureDeployment == "" {
		return nil, fmt.Errorf("chat: AZURE_OPENAI_DEPLOYMENT is required for the azure backend")
	}
	v, err := einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{
		Model:       cfg.AzureDeployment,
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		ByAzure:     true,
		APIVersion:  cfg.AzureAPIVersion,
		MaxTokens:   &cfg.MaxTokens,
		Temperature: &cfg.Temperature,
		// Use the deployment name as-is — the default mapper strips
		// dots/colons which breaks deployment names like "gpt-4.1".
		AzureModelMapperFunc: func(model string) string { return model },
	})
	if err != nil {
		return nil, fmt.Errorf("chat: azure model init failed: %w", err)
	}
	return v, nil
}

// newArk constructs a chat model backed by an Ark-compatible runtime.
func newArk(ctx context.Context, cfg *ProviderConfig) (model.BaseChatModel, error) {
	maxTokens := cfg.MaxTokens
	temp := cfg.Temperature
	v, err := einoark.NewChatModel(ctx, &einoark.ChatModelConfig{
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		MaxTokens:   &maxTokens,
		Temperature: &temp,
	})
	if err != nil {
		return nil, fmt.Errorf("chat: ark model init failed: %w", err)
	}
	return v, nil
}

// newGemini constructs a chat model backed by Google Gemini.
func newGemini(ctx context.Context, cfg *ProviderConfig) (model.BaseChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("chat: MODEL_API_KEY is required for the gemini backend")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("chat: failed to create Gemini client: %w", err)
	}
	v, err := einogemini.NewChatModel(ctx, &einogemini.Config{
		Client: client,
		Model:  cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("chat: gemini model init failed: %w", err)
	}
	return v, nil
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvFloat32 returns the float32 value of the named environment
// variable, or fallback if the variable is unset, empty, or not parseable.
func getEnvFloat32(key string, fallback float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return fallback
}
