// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App        AppConfig               `mapstructure:"app"`
	Camunda    CamundaConfig           `mapstructure:"camunda"`
	HTTP       HTTPConfig              `mapstructure:"http"`
	GenAI      GenAIConfig             `mapstructure:"genai"`
	Generation GenerationConfig        `mapstructure:"generation"`
	Cache      CacheConfig             `mapstructure:"cache"`
	Workers    map[string]WorkerConfig `mapstructure:"workers"`
	Logging    LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type HTTPConfig struct {
	Address        string   `mapstructure:"address"`
	MetricsAddress string   `mapstructure:"metrics_address"`
	RequestTimeout int      `mapstructure:"request_timeout"` // milliseconds
	AllowOrigins   []string `mapstructure:"allow_origins"`
}

// GenAIConfig configures the upstream generative model. Model, temperature and
// output size are fixed at setup; call sites never override them per request.
type GenAIConfig struct {
	BaseURL         string   `mapstructure:"base_url"`
	APIKey          string   `mapstructure:"api_key"`
	Model           string   `mapstructure:"model"`
	FallbackModels  []string `mapstructure:"fallback_models"`
	Temperature     float64  `mapstructure:"temperature"`
	MaxOutputTokens int      `mapstructure:"max_output_tokens"`
	Timeout         int      `mapstructure:"timeout"` // milliseconds
}

// Models returns the primary model followed by the fallback candidates, in
// preference order and without duplicates.
func (g GenAIConfig) Models() []string {
	seen := make(map[string]bool, len(g.FallbackModels)+1)
	out := make([]string, 0, len(g.FallbackModels)+1)
	for _, m := range append([]string{g.Model}, g.FallbackModels...) {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

type GenerationConfig struct {
	MaxAttempts    int  `mapstructure:"max_attempts"`
	AttemptTimeout int  `mapstructure:"attempt_timeout"` // milliseconds
	BackoffBase    int  `mapstructure:"backoff_base"`    // milliseconds
	BackoffMax     int  `mapstructure:"backoff_max"`     // milliseconds
	Dedupe         bool `mapstructure:"dedupe"`
}

type CacheConfig struct {
	Redis      RedisConfig `mapstructure:"redis"`
	DefaultTTL int         `mapstructure:"default_ttl"` // seconds
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Enabled reports whether a cache store has been configured at all.
func (c CacheConfig) Enabled() bool {
	return c.Redis.Address != ""
}

type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`      // milliseconds
	MaxAttempts   int  `mapstructure:"max_attempts"` // 0 = generation default
	CacheTTL      int  `mapstructure:"cache_ttl"`    // seconds, 0 = cache default
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// String hides secrets so the config can be logged at startup.
func (g GenAIConfig) String() string {
	return fmt.Sprintf("GenAIConfig{BaseURL:%s Model:%s FallbackModels:%v Temperature:%.2f MaxOutputTokens:%d Timeout:%dms}",
		g.BaseURL, g.Model, g.FallbackModels, g.Temperature, g.MaxOutputTokens, g.Timeout)
}

// CacheTTLFor returns the cache TTL for a worker, falling back to the cache default.
func (c *Config) CacheTTLFor(taskType string) time.Duration {
	if w, ok := c.Workers[taskType]; ok && w.CacheTTL > 0 {
		return time.Duration(w.CacheTTL) * time.Second
	}
	return time.Duration(c.Cache.DefaultTTL) * time.Second
}
