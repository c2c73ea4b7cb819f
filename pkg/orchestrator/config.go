package orchestrator

import (
	"fmt"
	"strings"
	"time"
)

type MemoryPolicy string

const (
	// MemoryPerQuery starts every query from an empty transcript.
	MemoryPerQuery MemoryPolicy = "per_query"
	// MemorySession carries completed queries into later ones.
	MemorySession MemoryPolicy = "session"
)

const (
	DefaultMaxRounds    = 10
	DefaultMaxTokens    = 1000
	DefaultModelTimeout = 60 * time.Second
	DefaultToolTimeout  = 30 * time.Second
)

type Config struct {
	SessionID    string
	System       string
	MaxRounds    int
	MaxTokens    int
	ModelTimeout time.Duration
	ToolTimeout  time.Duration
	Memory       MemoryPolicy
	// RefreshTools re-lists tools at the start of every query. When false the
	// first listing is reused until RefreshTools is called.
	RefreshTools bool
}

func (c Config) withDefaults() Config {
	if c.MaxRounds <= 0 {
		c.MaxRounds = DefaultMaxRounds
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.ModelTimeout <= 0 {
		c.ModelTimeout = DefaultModelTimeout
	}
	if c.ToolTimeout <= 0 {
		c.ToolTimeout = DefaultToolTimeout
	}
	if c.Memory == "" {
		c.Memory = MemoryPerQuery
	}
	return c
}

// ParseMemoryPolicy accepts "per_query" or "session" (case-insensitive).
func ParseMemoryPolicy(value string) (MemoryPolicy, error) {
	switch MemoryPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", MemoryPerQuery:
		return MemoryPerQuery, nil
	case MemorySession:
		return MemorySession, nil
	default:
		return "", fmt.Errorf("unknown memory policy %q", value)
	}
}
