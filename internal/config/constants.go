package config

import "time"

const (
	ServerReadTimeout     = 30 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerRequestTimeout  = 60 * time.Second
	ServerShutdownTimeout = 10 * time.Second

	DBPingTimeout = 5 * time.Second

	CleanupJobInterval = 10 * time.Minute

	// PairRateLimit bounds pairing-code requests per IP per window.
	PairRateLimit       = 5
	PairRateLimitWindow = time.Minute
)
