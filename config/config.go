package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config stores all configuration of the application. Values come from an
// optional YAML file, the environment and a .env file, in that order of
// increasing precedence except that .env never overrides real variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Calendar CalendarConfig `mapstructure:"calendar"`
	Gmail    GmailConfig    `mapstructure:"gmail"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

// Addr is the address to listen on.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

type LLMConfig struct {
	Provider    string  `mapstructure:"provider"` // "groq", "openai", "anthropic" or "google"
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	TopP        float64 `mapstructure:"top_p"`

	// VertexProject switches the google provider from the Gemini API to
	// Vertex AI. APIKey is then an OAuth access token.
	VertexProject string `mapstructure:"vertex_project"`
	VertexRegion  string `mapstructure:"vertex_region"`
}

type CalendarConfig struct {
	Command      string   `mapstructure:"command"`
	Args         []string `mapstructure:"args"`
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	RefreshToken string   `mapstructure:"refresh_token"`
	// TokenFile, when set, is watched for a new refresh token.
	TokenFile string `mapstructure:"token_file"`
}

// GmailConfig is optional; email tools fail per call when Command is empty.
type GmailConfig struct {
	Command         string   `mapstructure:"command"`
	Args            []string `mapstructure:"args"`
	OAuthPath       string   `mapstructure:"oauth_path"`
	CredentialsPath string   `mapstructure:"credentials_path"`
}

type DispatchConfig struct {
	LookaheadDays int    `mapstructure:"lookahead_days"`
	SystemPrompt  string `mapstructure:"system_prompt"`
	DebugFile     string `mapstructure:"debug_file"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

const envPrefix = "CALENDAR_ASSISTANT"

var defaultModels = map[string]string{
	"groq":      "qwen-2.5-32b",
	"openai":    "gpt-4o",
	"anthropic": "claude-3-5-haiku-latest",
	"google":    "gemini-2.0-flash",
}

var apiKeyEnv = map[string]string{
	"groq":      "GROQ_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"google":    "GEMINI_API_KEY",
}

// legacyEnv maps config keys to the variable names the deployment has always
// used. The prefixed name still works for every key.
var legacyEnv = map[string]string{
	"server.port":            "PORT",
	"calendar.client_id":     "GOOGLE_CLIENT_ID",
	"calendar.client_secret": "GOOGLE_CLIENT_SECRET",
	"calendar.refresh_token": "GOOGLE_REFRESH_TOKEN",
	"gmail.oauth_path":       "GMAIL_OAUTH_PATH",
	"gmail.credentials_path": "GMAIL_CREDENTIALS_PATH",
}

// Load reads configuration. configPath may be empty, in which case
// config.yaml is looked for in the working directory. envFiles default to
// ".env"; a missing file is not an error.
func Load(configPath string, envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetDefault("server.port", "3000")
	v.SetDefault("server.host", "")
	v.SetDefault("llm.provider", "groq")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.top_p", 0.95)
	v.SetDefault("llm.vertex_project", "")
	v.SetDefault("llm.vertex_region", "us-central1")
	v.SetDefault("calendar.command", "node")
	v.SetDefault("calendar.args", []string{"GongRzhe_Calendar-MCP-Server/build/index.js"})
	v.SetDefault("calendar.client_id", "")
	v.SetDefault("calendar.client_secret", "")
	v.SetDefault("calendar.refresh_token", "")
	v.SetDefault("calendar.token_file", "")
	v.SetDefault("gmail.command", "")
	v.SetDefault("gmail.args", []string{})
	v.SetDefault("gmail.oauth_path", "")
	v.SetDefault("gmail.credentials_path", "")
	v.SetDefault("dispatch.lookahead_days", 30)
	v.SetDefault("dispatch.system_prompt", "")
	v.SetDefault("dispatch.debug_file", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetEnvPrefix(envPrefix)
	// Replace dots with underscores in env var names, e.g. llm.api_key becomes CALENDAR_ASSISTANT_LLM_API_KEY.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = defaultModels[cfg.LLM.Provider]
	}
	if cfg.LLM.APIKey == "" {
		if env, ok := apiKeyEnv[cfg.LLM.Provider]; ok {
			cfg.LLM.APIKey = os.Getenv(env)
		}
	}
	return &cfg, nil
}

// Validate reports every missing or invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if _, ok := defaultModels[c.LLM.Provider]; !ok {
		errs = append(errs, fmt.Errorf("llm.provider %q is not one of groq, openai, anthropic, google", c.LLM.Provider))
	} else if c.LLM.APIKey == "" {
		errs = append(errs, fmt.Errorf("missing API key: set %s or llm.api_key", apiKeyEnv[c.LLM.Provider]))
	}
	if c.Calendar.Command == "" {
		errs = append(errs, errors.New("calendar.command is required"))
	}
	if c.Calendar.ClientID == "" {
		errs = append(errs, errors.New("missing required environment variable: GOOGLE_CLIENT_ID"))
	}
	if c.Calendar.ClientSecret == "" {
		errs = append(errs, errors.New("missing required environment variable: GOOGLE_CLIENT_SECRET"))
	}
	if c.Dispatch.LookaheadDays < 0 {
		errs = append(errs, errors.New("dispatch.lookahead_days must not be negative"))
	}
	return errors.Join(errs...)
}
