package photoverification

import "time"

type Config struct {
	Timeout          time.Duration
	MaxAttempts      int
	MaxProfilePhotos int
	// MinConfidence is the lowest model confidence accepted as verified.
	MinConfidence float64
}

func LoadConfig() *Config {
	return &Config{
		Timeout:          90 * time.Second,
		MaxProfilePhotos: 5,
		MinConfidence:    0.8,
	}
}
