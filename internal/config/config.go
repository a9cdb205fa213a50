package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	APIPort  string
	LogLevel string

	AnthropicAPIKey   string
	AnthropicBaseURL  string
	AnthropicModel    string
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIModel       string
	OpenAIEmbedModel  string
	PreferredProvider string
	ProviderTimeout   time.Duration

	BreakerEnabled     bool
	BreakerMinRequests int
	BreakerFailureRate float64
	BreakerOpenSeconds int

	// PostgresDSN and NATSURL are optional. Without a DSN actions are only
	// logged; without NATS no lifecycle events are published.
	PostgresDSN       string
	NATSURL           string
	NATSSubjectPrefix string
	NATSQueueGroup    string

	AutomationConfigPath string
	FixturesPath         string
	StewardMaxToolSteps  int

	APIRateLimitRPS      float64
	APIRateLimitBurst    int
	APIBackpressureLimit int
	APIBackpressureWait  time.Duration

	MCPEnabled bool

	WorkerMetricsPort string
}

func Load() Config {
	return Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		AnthropicAPIKey:   mustEnv("ANTHROPIC_API_KEY", ""),
		AnthropicBaseURL:  mustEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
		AnthropicModel:    mustEnv("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
		OpenAIAPIKey:      mustEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     mustEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:       mustEnv("OPENAI_MODEL", "gpt-4o"),
		OpenAIEmbedModel:  mustEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
		PreferredProvider: strings.ToLower(mustEnv("STEWARD_PREFERRED_PROVIDER", "anthropic")),
		ProviderTimeout:   time.Duration(mustEnvInt("PROVIDER_TIMEOUT_SECONDS", 60)) * time.Second,

		BreakerEnabled:     mustEnvBool("PROVIDER_BREAKER_ENABLED", true),
		BreakerMinRequests: mustEnvInt("PROVIDER_BREAKER_MIN_REQUESTS", 5),
		BreakerFailureRate: mustEnvFloat("PROVIDER_BREAKER_FAILURE_RATIO", 0.6),
		BreakerOpenSeconds: mustEnvInt("PROVIDER_BREAKER_OPEN_SECONDS", 30),

		PostgresDSN:       mustEnv("POSTGRES_DSN", ""),
		NATSURL:           mustEnv("NATS_URL", ""),
		NATSSubjectPrefix: mustEnv("NATS_SUBJECT_PREFIX", "steward.actions"),
		NATSQueueGroup:    mustEnv("NATS_QUEUE_GROUP", "audit-workers"),

		AutomationConfigPath: mustEnv("AUTOMATION_CONFIG_PATH", ""),
		FixturesPath:         mustEnv("FIXTURES_PATH", ""),
		StewardMaxToolSteps:  mustEnvInt("STEWARD_MAX_TOOL_STEPS", 5),

		APIRateLimitRPS:      mustEnvFloat("API_RATE_LIMIT_RPS", 20),
		APIRateLimitBurst:    mustEnvInt("API_RATE_LIMIT_BURST", 40),
		APIBackpressureLimit: mustEnvInt("API_BACKPRESSURE_MAX_IN_FLIGHT", 64),
		APIBackpressureWait:  time.Duration(mustEnvInt("API_BACKPRESSURE_WAIT_MS", 250)) * time.Millisecond,

		MCPEnabled: mustEnvBool("MCP_ENABLED", true),

		WorkerMetricsPort: mustEnv("WORKER_METRICS_PORT", "9090"),
	}
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}
