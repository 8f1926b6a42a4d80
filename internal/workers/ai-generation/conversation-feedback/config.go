package conversationfeedback

import "time"

type Config struct {
	Timeout     time.Duration
	MaxAttempts int
	CacheTTL    time.Duration
	MaxTurns    int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:  60 * time.Second,
		CacheTTL: 24 * time.Hour,
		MaxTurns: 200,
	}
}
