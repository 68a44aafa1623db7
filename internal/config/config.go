package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates every setting of the service.
type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	AI      AIConfig
	Chat    ChatConfig
	Log     LogConfig
	Debug   bool
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr         string
	CookieSecure bool
	// RateLimitPerMinute bounds send-message calls per browser identity; 0 disables it.
	RateLimitPerMinute int
}

// StorageConfig points at the SQLite database file, or ":memory:".
type StorageConfig struct {
	Path string
}

// AIConfig describes vendor selection and generation parameters.
type AIConfig struct {
	Provider         string
	OpenAIKey        string
	OpenAIBaseURL    string
	AnthropicKey     string
	AnthropicBaseURL string
	Model            string
	MaxTokens        int
	Temperature      float64
	SystemPrompt     string
	Timeout          time.Duration
}

// ChatConfig tunes the message relay.
type ChatConfig struct {
	HistoryLimit int
}

// LogConfig mirrors logger.Config.
type LogConfig struct {
	Level  string
	Pretty bool
}

// DefaultSystemPrompt is used when AI_SYSTEM_PROMPT is unset.
const DefaultSystemPrompt = `You are QaderiChat, a friendly, engaging, and socially intelligent AI assistant created by Qaderi.

Be warm, conversational and approachable. Ask follow-up questions, share useful insights,
remember context from the conversation and adapt your tone to the user's energy.
Always aim to be helpful and make the conversation enjoyable.`

func defaults(v *viper.Viper) {
	v.SetDefault("port", "8000")
	v.SetDefault("cookie_secure", false)
	v.SetDefault("rate_limit_per_minute", 30)
	v.SetDefault("database_path", "qaderichat.db")
	v.SetDefault("ai_provider", "anthropic")
	v.SetDefault("openai_api_key", "")
	v.SetDefault("openai_base_url", "")
	v.SetDefault("anthropic_api_key", "")
	v.SetDefault("anthropic_base_url", "")
	v.SetDefault("ai_model", "")
	v.SetDefault("ai_max_tokens", 300)
	v.SetDefault("ai_temperature", 0.8)
	v.SetDefault("ai_system_prompt", DefaultSystemPrompt)
	v.SetDefault("ai_timeout", "45s")
	v.SetDefault("chat_history_limit", 10)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)
	v.SetDefault("debug", false)
}

// Load reads configuration from the environment and, when CONFIG_FILE is
// set, from that file. Environment variables take precedence.
func Load() (*Config, error) {
	v := viper.New()
	defaults(v)
	v.AutomaticEnv()

	if file := strings.TrimSpace(v.GetString("config_file")); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	server, err := loadServerConfig(v)
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig(v)
	if err != nil {
		return nil, err
	}

	historyLimit, err := parseInt(v, "chat_history_limit")
	if err != nil {
		return nil, err
	}
	if historyLimit < 1 {
		historyLimit = 1
	}

	logPretty, err := parseBool(v, "log_pretty")
	if err != nil {
		return nil, err
	}

	debug, err := parseBool(v, "debug")
	if err != nil {
		return nil, err
	}

	path := strings.TrimSpace(v.GetString("database_path"))
	if path == "" {
		return nil, fmt.Errorf("DATABASE_PATH must not be empty")
	}

	return &Config{
		Server:  server,
		Storage: StorageConfig{Path: path},
		AI:      ai,
		Chat:    ChatConfig{HistoryLimit: historyLimit},
		Log: LogConfig{
			Level:  strings.TrimSpace(v.GetString("log_level")),
			Pretty: logPretty,
		},
		Debug: debug,
	}, nil
}

// loadServerConfig resolves the listen address from PORT.
func loadServerConfig(v *viper.Viper) (ServerConfig, error) {
	port := strings.TrimSpace(v.GetString("port"))
	if port == "" {
		port = "8000"
	}
	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	addr := port
	if !strings.Contains(port, ":") {
		// PORT may also be ":8000" or "127.0.0.1:8000".
		addr = ":" + port
	}

	secure, err := parseBool(v, "cookie_secure")
	if err != nil {
		return ServerConfig{}, err
	}

	perMinute, err := parseInt(v, "rate_limit_per_minute")
	if err != nil {
		return ServerConfig{}, err
	}
	if perMinute < 0 {
		perMinute = 0
	}

	return ServerConfig{Addr: addr, CookieSecure: secure, RateLimitPerMinute: perMinute}, nil
}

func loadAIConfig(v *viper.Viper) (AIConfig, error) {
	maxTokens, err := parseInt(v, "ai_max_tokens")
	if err != nil {
		return AIConfig{}, err
	}
	if maxTokens <= 0 {
		return AIConfig{}, fmt.Errorf("AI_MAX_TOKENS must be positive, got %d", maxTokens)
	}

	temperature, err := parseFloat(v, "ai_temperature")
	if err != nil {
		return AIConfig{}, err
	}
	if temperature < 0 || temperature > 2 {
		return AIConfig{}, fmt.Errorf("AI_TEMPERATURE must be within [0, 2], got %v", temperature)
	}

	timeout, err := parseDuration(v, "ai_timeout")
	if err != nil {
		return AIConfig{}, err
	}
	if timeout < 0 {
		return AIConfig{}, fmt.Errorf("AI_TIMEOUT must not be negative, got %s", timeout)
	}

	return AIConfig{
		Provider:         strings.ToLower(strings.TrimSpace(v.GetString("ai_provider"))),
		OpenAIKey:        strings.TrimSpace(v.GetString("openai_api_key")),
		OpenAIBaseURL:    strings.TrimSpace(v.GetString("openai_base_url")),
		AnthropicKey:     strings.TrimSpace(v.GetString("anthropic_api_key")),
		AnthropicBaseURL: strings.TrimSpace(v.GetString("anthropic_base_url")),
		Model:            strings.TrimSpace(v.GetString("ai_model")),
		MaxTokens:        maxTokens,
		Temperature:      temperature,
		SystemPrompt:     v.GetString("ai_system_prompt"),
		Timeout:          timeout,
	}, nil
}

// UsableKey reports whether key is set and is not a template placeholder
// such as "your_openai_api_key_here".
func UsableKey(key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		return false
	}
	return !(strings.HasPrefix(key, "your_") && strings.HasSuffix(key, "_here"))
}

func envName(key string) string {
	return strings.ToUpper(key)
}

func parseBool(v *viper.Viper, key string) (bool, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return false, nil
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", envName(key), raw, err)
	}
	return val, nil
}

func parseInt(v *viper.Viper, key string) (int, error) {
	raw := strings.TrimSpace(v.GetString(key))
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", envName(key), raw, err)
	}
	return val, nil
}

func parseFloat(v *viper.Viper, key string) (float64, error) {
	raw := strings.TrimSpace(v.GetString(key))
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", envName(key), raw, err)
	}
	return val, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", envName(key), raw, err)
	}
	return val, nil
}
