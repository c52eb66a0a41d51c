package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	ProviderDashScope = "dashscope"
	ProviderOpenAI    = "openai"
	ProviderMock      = "mock"

	StrategyInline     = "inline"
	StrategySystemRole = "system_role"
)

const defaultChatInstructions = `You are CyberWill, a relationship coach helping the user understand and talk with the person described in the profile.
- Answer in the same language as the user.
- Be warm, honest and practical; keep replies short and use plain paragraphs or short lists.
- Respect the other person's boundaries and consent. Never suggest manipulation, pressure or deception.
- If the user mentions self-harm or danger to someone, encourage them to contact local emergency services.`

type Config struct {
	AppEnv           string
	AppName          string
	AppPort          string
	LogLevel         string
	LogFormat        string
	CORSAllowOrigins []string

	AIProvider     string
	PromptStrategy string

	DashScopeAPIKey  string
	DashScopeAppID   string
	DashScopeBaseURL string

	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAIBaseURL     string
	AIMaxOutputTokens int
	AITimeoutSeconds  int

	ChatInstructions        string
	ChatInstructionsEnabled bool

	DatabaseURL             string
	DBAutoMigrate           bool
	RedisURL                string
	AnalysisCacheTTLSeconds int
}

func Load() Config {
	_ = godotenv.Load(".env")

	dashScopeKey := getEnv("DASHSCOPE_API_KEY", "")
	provider := strings.ToLower(getEnv("AI_PROVIDER", ProviderDashScope))

	return Config{
		AppEnv:                  getEnv("APP_ENV", "local"),
		AppName:                 getEnv("APP_NAME", "CyberWill API"),
		AppPort:                 getEnv("APP_PORT", "8000"),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		LogFormat:               getEnv("LOG_FORMAT", "json"),
		CORSAllowOrigins:        getEnvCSV("CORS_ALLOW_ORIGINS", []string{"*"}),
		AIProvider:              provider,
		PromptStrategy:          strings.ToLower(getEnv("PROMPT_STRATEGY", defaultStrategy(provider))),
		DashScopeAPIKey:         dashScopeKey,
		DashScopeAppID:          getEnv("APP_ID", ""),
		DashScopeBaseURL:        getEnv("DASHSCOPE_BASE_URL", "https://dashscope.aliyuncs.com/api/v1"),
		OpenAIAPIKey:            getEnv("OPENAI_API_KEY", dashScopeKey),
		OpenAIModel:             getEnv("OPENAI_MODEL", "qwen-plus"),
		OpenAIBaseURL:           getEnv("OPENAI_BASE_URL", "https://dashscope.aliyuncs.com/compatible-mode/v1"),
		AIMaxOutputTokens:       getEnvInt("AI_MAX_OUTPUT_TOKENS", 1200),
		AITimeoutSeconds:        getEnvInt("AI_TIMEOUT_SECONDS", 60),
		ChatInstructions:        getEnv("CHAT_INSTRUCTIONS", defaultChatInstructions),
		ChatInstructionsEnabled: getEnvBool("CHAT_INSTRUCTIONS_ENABLED", true),
		DatabaseURL:             getEnv("DATABASE_URL", ""),
		DBAutoMigrate:           getEnvBool("DB_AUTO_MIGRATE", true),
		RedisURL:                getEnv("REDIS_URL", ""),
		AnalysisCacheTTLSeconds: getEnvInt("ANALYSIS_CACHE_TTL_SECONDS", 86400),
	}
}

// Validate rejects settings the process cannot start with. Missing provider
// credentials are not fatal; see Warnings.
func (c Config) Validate() error {
	if strings.TrimSpace(c.AppPort) == "" {
		return errors.New("APP_PORT is required")
	}
	switch c.AIProvider {
	case ProviderDashScope, ProviderOpenAI, ProviderMock:
	default:
		return fmt.Errorf("AI_PROVIDER %q is not supported", c.AIProvider)
	}
	switch c.PromptStrategy {
	case StrategyInline, StrategySystemRole:
	default:
		return fmt.Errorf("PROMPT_STRATEGY %q is not supported", c.PromptStrategy)
	}
	if c.AnalysisCacheTTLSeconds < 0 {
		return errors.New("ANALYSIS_CACHE_TTL_SECONDS must not be negative")
	}
	return nil
}

// Warnings lists configuration gaps that make provider calls fail at request
// time.
func (c Config) Warnings() []string {
	var warnings []string
	switch c.AIProvider {
	case ProviderDashScope:
		if strings.TrimSpace(c.DashScopeAPIKey) == "" {
			warnings = append(warnings, "DASHSCOPE_API_KEY not found in environment variables")
		}
		if strings.TrimSpace(c.DashScopeAppID) == "" {
			warnings = append(warnings, "APP_ID not found in environment variables")
		}
	case ProviderOpenAI:
		if strings.TrimSpace(c.OpenAIAPIKey) == "" {
			warnings = append(warnings, "OPENAI_API_KEY not found in environment variables")
		}
		if strings.TrimSpace(c.OpenAIModel) == "" {
			warnings = append(warnings, "OPENAI_MODEL is empty")
		}
	}
	return warnings
}

// ActiveChatInstructions returns the fixed instructions prepended to chat
// prompts, or "" when they are disabled.
func (c Config) ActiveChatInstructions() string {
	if !c.ChatInstructionsEnabled {
		return ""
	}
	return strings.TrimSpace(c.ChatInstructions)
}

func defaultStrategy(provider string) string {
	if provider == ProviderOpenAI {
		return StrategySystemRole
	}
	return StrategyInline
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvCSV(key string, fallback []string) []string {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, item := range parts {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return fallback
	}
	return result
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}
