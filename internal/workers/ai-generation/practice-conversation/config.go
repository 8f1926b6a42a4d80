package practiceconversation

import "time"

type Config struct {
	Timeout     time.Duration
	MaxAttempts int
	// MaxHistory keeps only the most recent turns in the prompt.
	MaxHistory int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:    30 * time.Second,
		MaxHistory: 30,
	}
}
