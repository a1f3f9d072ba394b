package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ListenAddr    string `mapstructure:"listen_addr"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	APIKey        string `mapstructure:"api_key"`

	Evolution  EvolutionConfig  `mapstructure:"evolution"`
	OpenRouter OpenRouterConfig `mapstructure:"openrouter"`
	AutoReply  AutoReplyConfig  `mapstructure:"auto_reply"`
	Stream     StreamConfig     `mapstructure:"stream"`
}

type EvolutionConfig struct {
	URL           string        `mapstructure:"url"`
	APIKey        string        `mapstructure:"api_key"`
	Timeout       time.Duration `mapstructure:"timeout"`
	SocketEnabled bool          `mapstructure:"socket_enabled"`

	// DefaultInstance is the instance the /me bootstrap route looks up and,
	// when absent upstream, creates with a webhook subscription pointing back
	// at this gateway.
	DefaultInstance string `mapstructure:"default_instance"`
}

type OpenRouterConfig struct {
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type AutoReplyConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	PromptFile string `mapstructure:"prompt_file"`
}

type StreamConfig struct {
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	BufferSize        int           `mapstructure:"buffer_size"`
	TokenTTL          time.Duration `mapstructure:"token_ttl"`
	TokenSweepEvery   time.Duration `mapstructure:"token_sweep_every"`
	PollTimeout       time.Duration `mapstructure:"poll_timeout"`
}

// LoadConfig reads configuration from an optional YAML file plus environment
// variables. Env names keep the shapes the deployment already uses
// (EVOLUTION_API_URL, EVOLUTION_API_KEY, OPEN_ROUTER_API_KEY).
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("listen_addr", ":3333")
	v.SetDefault("public_base_url", "http://localhost:3333")
	v.SetDefault("evolution.timeout", 30*time.Second)
	v.SetDefault("evolution.socket_enabled", false)
	v.SetDefault("evolution.default_instance", "iddouser-sunobot")
	v.SetDefault("openrouter.url", "https://openrouter.ai/api/v1")
	v.SetDefault("openrouter.model", "moonshotai/kimi-k2:free")
	v.SetDefault("auto_reply.enabled", true)
	v.SetDefault("auto_reply.prompt_file", "prompt.txt")
	v.SetDefault("stream.heartbeat_interval", 30*time.Second)
	v.SetDefault("stream.buffer_size", 1024)
	v.SetDefault("stream.token_ttl", 10*time.Minute)
	v.SetDefault("stream.token_sweep_every", 5*time.Minute)
	v.SetDefault("stream.poll_timeout", 30*time.Second)

	_ = v.BindEnv("listen_addr", "LISTEN_ADDR")
	_ = v.BindEnv("public_base_url", "PUBLIC_BASE_URL")
	_ = v.BindEnv("api_key", "GATEWAY_API_KEY")
	_ = v.BindEnv("evolution.url", "EVOLUTION_API_URL")
	_ = v.BindEnv("evolution.api_key", "EVOLUTION_API_KEY")
	_ = v.BindEnv("evolution.socket_enabled", "EVOLUTION_SOCKET_ENABLED")
	_ = v.BindEnv("evolution.default_instance", "EVOLUTION_DEFAULT_INSTANCE")
	_ = v.BindEnv("openrouter.api_key", "OPEN_ROUTER_API_KEY")
	_ = v.BindEnv("openrouter.model", "OPEN_ROUTER_MODEL")
	_ = v.BindEnv("auto_reply.enabled", "AUTO_REPLY_ENABLED")
	_ = v.BindEnv("auto_reply.prompt_file", "AUTO_REPLY_PROMPT_FILE")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Evolution.URL == "" {
		return fmt.Errorf("config: EVOLUTION_API_URL is required")
	}
	if c.Evolution.APIKey == "" {
		return fmt.Errorf("config: EVOLUTION_API_KEY is required")
	}
	if c.APIKey == "" {
		return fmt.Errorf("config: GATEWAY_API_KEY is required")
	}
	if c.AutoReply.Enabled && c.OpenRouter.APIKey == "" {
		return fmt.Errorf("config: OPEN_ROUTER_API_KEY is required while auto-reply is enabled")
	}
	return nil
}
