package vibegeneration

import "time"

type Config struct {
	Timeout     time.Duration
	MaxAttempts int
	CacheTTL    time.Duration
	MaxPhotos   int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:   90 * time.Second,
		CacheTTL:  7 * 24 * time.Hour,
		MaxPhotos: 4,
	}
}
