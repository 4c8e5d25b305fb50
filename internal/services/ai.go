package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/huangang/replydesk/internal/config"
	"github.com/huangang/replydesk/pkg/logger"
	"github.com/ollama/ollama/api"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
	"gorm.io/gorm"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAzure     = "azure"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderGemini    = "gemini"

	aiTestTimeout = 60 * time.Second
)

var ErrAICredentialsMissing = errors.New("AI credentials are not configured")

// AICredentials is one resolved endpoint. Empty fields are filled from the
// next source in line.
type AICredentials struct {
	APIKey    string `json:"api_key"`
	BaseURL   string `json:"base_url"`
	ModelName string `json:"model_name"`
}

func (c AICredentials) complete() bool {
	return c.APIKey != "" && c.BaseURL != "" && c.ModelName != ""
}

func (c *AICredentials) fill(apiKey, baseURL, model string) {
	if c.APIKey == "" {
		c.APIKey = strings.TrimSpace(apiKey)
	}
	if c.BaseURL == "" {
		c.BaseURL = strings.TrimSpace(baseURL)
	}
	if c.ModelName == "" {
		c.ModelName = strings.TrimSpace(model)
	}
}

type AIService struct {
	db       *gorm.DB
	config   *config.OpenAIConfig
	settings *SystemSettingService
	replies  *AIReplyService
	accounts *AccountService
}

func NewAIService(db *gorm.DB, cfg *config.OpenAIConfig, settings *SystemSettingService) *AIService {
	return &AIService{
		db:       db,
		config:   cfg,
		settings: settings,
		replies:  NewAIReplyService(db),
		accounts: NewAccountService(db),
	}
}

type TestReplyRequest struct {
	Message      string         `json:"message" binding:"required"`
	TestSettings *AICredentials `json:"test_settings"`
}

type TestReplyResult struct {
	Reply    string `json:"reply"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// TestReply sends one message through the credentials that would serve the
// account, or through the draft credentials when the request carries a
// complete set.
func (s *AIService) TestReply(ctx context.Context, userID uint, admin bool, accountID string, req *TestReplyRequest) (*TestReplyResult, error) {
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !admin && account.UserID != userID {
		return nil, ErrAccountNotFound
	}

	creds, prompt, err := s.resolve(ctx, accountID, req.TestSettings)
	if err != nil {
		return nil, err
	}

	provider := DetectProvider(creds.ModelName, creds.BaseURL)
	if creds.APIKey == "" && provider != ProviderOllama {
		return nil, ErrAICredentialsMissing
	}

	ctx, cancel := context.WithTimeout(ctx, aiTestTimeout)
	defer cancel()

	logger.Info().Str("account", accountID).Str("provider", provider).Str("model", creds.ModelName).Msg("AI reply test")

	reply, err := s.call(ctx, provider, creds, prompt, req.Message)
	if err != nil {
		logger.Warn().Err(err).Str("provider", provider).Msg("AI reply test failed")
		return nil, err
	}
	return &TestReplyResult{Reply: reply, Provider: provider, Model: creds.ModelName}, nil
}

func (s *AIService) resolve(ctx context.Context, accountID string, draft *AICredentials) (AICredentials, string, error) {
	var creds AICredentials
	if draft != nil && draft.complete() {
		creds = *draft
	}

	var prompt string
	setting, err := s.replies.Get(ctx, accountID)
	if err != nil {
		return creds, "", err
	}
	if setting != nil {
		creds.fill(setting.APIKey, setting.BaseURL, setting.ModelName)
		prompt = DefaultPrompt(setting.CustomPrompts)
	}

	values, err := s.settings.All(ctx)
	if err != nil {
		return creds, "", err
	}
	creds.fill(values["ai_api_key"], values["ai_api_url"], values["ai_model"])

	if s.config != nil {
		creds.fill(s.config.APIKey, s.config.BaseURL, s.config.Model)
	}
	return creds, prompt, nil
}

// DefaultPrompt extracts the "default" entry of a custom_prompts object.
func DefaultPrompt(customPrompts string) string {
	raw := strings.TrimSpace(customPrompts)
	if raw == "" {
		return ""
	}
	var prompts map[string]string
	if err := json.Unmarshal([]byte(raw), &prompts); err != nil {
		return ""
	}
	return prompts["default"]
}

// DetectProvider picks the SDK for a model/base URL pair.
func DetectProvider(model, baseURL string) string {
	m := strings.ToLower(model)
	u := strings.ToLower(baseURL)
	switch {
	case strings.Contains(m, "gemini"):
		return ProviderGemini
	case strings.Contains(m, "claude"):
		return ProviderAnthropic
	case strings.Contains(u, ":11434") || strings.Contains(u, "ollama"):
		return ProviderOllama
	case strings.Contains(u, "openai.azure.com"):
		return ProviderAzure
	default:
		return ProviderOpenAI
	}
}

func (s *AIService) call(ctx context.Context, provider string, creds AICredentials, system, message string) (string, error) {
	switch provider {
	case ProviderAnthropic:
		return callAnthropic(ctx, creds, system, message)
	case ProviderOllama:
		return callOllama(ctx, creds, system, message)
	case ProviderGemini:
		return callGemini(ctx, creds, system, message)
	case ProviderAzure:
		return callChatCompletion(ctx, openai.DefaultAzureConfig(creds.APIKey, creds.BaseURL), creds.ModelName, system, message)
	default:
		cfg := openai.DefaultConfig(creds.APIKey)
		if creds.BaseURL != "" {
			cfg.BaseURL = strings.TrimRight(creds.BaseURL, "/")
		}
		return callChatCompletion(ctx, cfg, creds.ModelName, system, message)
	}
}

func callChatCompletion(ctx context.Context, cfg openai.ClientConfig, model, system, message string) (string, error) {
	client := openai.NewClientWithConfig(cfg)

	var messages []openai.ChatCompletionMessage
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: message})

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty response from model")
	}
	return resp.Choices[0].Message.Content, nil
}

func callAnthropic(ctx context.Context, creds AICredentials, system, message string) (string, error) {
	opts := []option.RequestOption{option.WithAPIKey(creds.APIKey)}
	if creds.BaseURL != "" && !strings.Contains(creds.BaseURL, "api.anthropic.com") {
		opts = append(opts, option.WithBaseURL(creds.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(creds.ModelName),
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(message)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}
	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}

func callOllama(ctx context.Context, creds AICredentials, system, message string) (string, error) {
	base := creds.BaseURL
	if base == "" {
		base = "http://localhost:11434"
	}
	u, err := url.Parse(strings.TrimSuffix(strings.TrimRight(base, "/"), "/v1"))
	if err != nil {
		return "", fmt.Errorf("invalid Ollama base URL: %w", err)
	}
	client := api.NewClient(u, http.DefaultClient)

	var messages []api.Message
	if system != "" {
		messages = append(messages, api.Message{Role: "system", Content: system})
	}
	messages = append(messages, api.Message{Role: "user", Content: message})

	stream := false
	var b strings.Builder
	err = client.Chat(ctx, &api.ChatRequest{
		Model:    creds.ModelName,
		Messages: messages,
		Stream:   &stream,
	}, func(resp api.ChatResponse) error {
		b.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama: %w", err)
	}
	return b.String(), nil
}

func callGemini(ctx context.Context, creds AICredentials, system, message string) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: creds.APIKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return "", fmt.Errorf("gemini client: %w", err)
	}
	var cfg *genai.GenerateContentConfig
	if system != "" {
		cfg = &genai.GenerateContentConfig{SystemInstruction: genai.NewContentFromText(system, genai.RoleUser)}
	}
	resp, err := client.Models.GenerateContent(ctx, creds.ModelName, genai.Text(message), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	return resp.Text(), nil
}
