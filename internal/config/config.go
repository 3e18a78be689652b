// Package config loads the service configuration from a YAML file with
// environment variable overrides for secrets and deploy-specific values.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Supabase  SupabaseConfig  `yaml:"supabase"`
	LLM       LLMConfig       `yaml:"llm"`
	Redis     RedisConfig     `yaml:"redis"`
	Chain     ChainConfig     `yaml:"chain"`
	Database  DatabaseConfig  `yaml:"database"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Recommend RecommendConfig `yaml:"recommend"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	Env  string `yaml:"env"`
}

type SupabaseConfig struct {
	URL        string `yaml:"url"`
	ServiceKey string `yaml:"service_key"`
}

type LLMConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	TTL      time.Duration `yaml:"ttl"`
}

type ChainConfig struct {
	RPCURL             string `yaml:"rpc_url"`
	WSURL              string `yaml:"ws_url"`
	IdentityRegistry   string `yaml:"identity_registry"`
	ReputationRegistry string `yaml:"reputation_registry"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RateLimitConfig struct {
	MaxCallsPerMinute int `yaml:"max_calls_per_minute"`
	BurstSize         int `yaml:"burst_size"`
}

type RecommendConfig struct {
	MinReputation int `yaml:"min_reputation"`
	Limit         int `yaml:"limit"`
}

// LoadConfig reads the YAML file at path, then applies env overrides. A
// missing file is not an error: everything can come from the environment.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	if f, err := os.Open(path); err == nil {
		defer f.Close()
		decoder := yaml.NewDecoder(f)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv() {
	overrideString(&c.Server.Port, "PORT")
	overrideString(&c.Server.Env, "ENV")
	overrideString(&c.Supabase.URL, "SUPABASE_URL")
	overrideString(&c.Supabase.ServiceKey, "SUPABASE_SERVICE_KEY")
	overrideString(&c.LLM.APIKey, "OPENROUTER_API_KEY")
	overrideString(&c.LLM.BaseURL, "OPENROUTER_BASE_URL")
	overrideString(&c.LLM.Model, "OPENROUTER_MODEL")
	overrideString(&c.Redis.Addr, "REDIS_ADDR")
	overrideString(&c.Redis.Password, "REDIS_PASSWORD")
	overrideString(&c.Chain.RPCURL, "RPC_URL")
	overrideString(&c.Chain.WSURL, "WS_URL")
	overrideString(&c.Chain.IdentityRegistry, "IDENTITY_REGISTRY_ADDRESS")
	overrideString(&c.Chain.ReputationRegistry, "REPUTATION_REGISTRY_ADDRESS")
	overrideString(&c.Database.URL, "DATABASE_URL")
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.Env == "" {
		c.Server.Env = "development"
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = 60 * time.Second
	}
	if c.RateLimit.MaxCallsPerMinute == 0 {
		c.RateLimit.MaxCallsPerMinute = 60
	}
	if c.Recommend.MinReputation == 0 {
		c.Recommend.MinReputation = 70
	}
	if c.Recommend.Limit == 0 {
		c.Recommend.Limit = 10
	}
}

func overrideString(dst *string, envKey string) {
	if v := os.Getenv(envKey); v != "" {
		*dst = v
	}
}
