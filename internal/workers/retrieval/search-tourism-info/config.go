package searchtourisminfo

import "time"

type Config struct {
	Timeout time.Duration
	// MinConfidence below which the best answer is flagged for review.
	MinConfidence float64
}

func LoadConfig() *Config {
	return &Config{
		Timeout:       10 * time.Second,
		MinConfidence: 60,
	}
}
