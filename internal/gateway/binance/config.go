package binance

import "time"

type Config struct {
	APIKey      string
	APISecret   string
	Testnet     bool
	HTTPTimeout time.Duration
	RecvWindow  int64
}

func (c Config) withDefaults() Config {
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 15 * time.Second
	}
	if c.RecvWindow <= 0 {
		c.RecvWindow = 5000
	}
	return c
}
