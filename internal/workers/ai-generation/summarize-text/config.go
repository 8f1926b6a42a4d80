package summarizetext

import "time"

type Config struct {
	Timeout      time.Duration
	MaxAttempts  int // 0 = engine default
	CacheTTL     time.Duration
	MaxTextRunes int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:      60 * time.Second,
		CacheTTL:     24 * time.Hour,
		MaxTextRunes: 20000,
	}
}
