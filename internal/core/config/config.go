// Package config provides configuration management for launchrules.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config is the complete runtime configuration.
type Config struct {
	Rules    RulesConfig
	Database DatabaseConfig
	HTTP     HTTPConfig
	GRPC     GRPCConfig
	Log      LogConfig
}

// RulesConfig controls where the active rule set comes from.
type RulesConfig struct {
	// File is loaded at startup and, when Watch is set, reloaded on change.
	File           string
	Watch          bool
	Debounce       time.Duration
	ValidateSchema bool
}

// DatabaseConfig controls the event history store.
type DatabaseConfig struct {
	URL           string
	QueryTimeout  time.Duration
	Retention     time.Duration
	PruneSchedule string
}

// HTTPConfig controls the HTTP API.
type HTTPConfig struct {
	Host           string
	Port           int
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

// GRPCConfig controls the gRPC health endpoint. Port 0 disables it.
type GRPCConfig struct {
	Port int
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string
	Format string
}

// Default returns configuration with default values.
func Default() *Config {
	return &Config{
		Rules: RulesConfig{
			File:           "./rules.json",
			Watch:          true,
			Debounce:       500 * time.Millisecond,
			ValidateSchema: true,
		},
		Database: DatabaseConfig{
			URL:           "sqlite://./data/history.db",
			QueryTimeout:  2 * time.Second,
			Retention:     30 * 24 * time.Hour,
			PruneSchedule: "@hourly",
		},
		HTTP: HTTPConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			RequestTimeout: 30 * time.Second,
			MaxBodyBytes:   1 << 20,
		},
		GRPC: GRPCConfig{
			Port: 50051,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// SigningKeys extracts rule-signing secrets from environment variables.
// Supports LR_SIGNING_KEY (single) and LR_SIGNING_KEY_N (rotation).
// Returns map of key_id -> decoded secret bytes.
// Key IDs are UUIDv7 (32 hex chars without hyphens).
func SigningKeys() (map[string][]byte, error) {
	keys := make(map[string][]byte)

	add := func(name, val string) error {
		keyID, decoded, err := ParseSigningKey(val)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if _, exists := keys[keyID]; exists {
			return fmt.Errorf("duplicate key_id '%s' found in environment variables (check LR_SIGNING_KEY and LR_SIGNING_KEY_* for conflicts)", keyID)
		}
		keys[keyID] = decoded
		return nil
	}

	// Format: <key_id>:<base64_secret>
	if val := os.Getenv("LR_SIGNING_KEY"); val != "" {
		if err := add("LR_SIGNING_KEY", val); err != nil {
			return nil, err
		}
	}

	// Numbered keys keep old and new secrets valid during rotation
	for i := 1; ; i++ {
		name := fmt.Sprintf("LR_SIGNING_KEY_%d", i)
		val := os.Getenv(name)
		if val == "" {
			break
		}
		if err := add(name, val); err != nil {
			return nil, err
		}
	}

	return keys, nil
}

// ParseSigningKey parses key_id:base64_secret format.
// Key ID must be 32 hex chars (UUIDv7 without hyphens).
func ParseSigningKey(envValue string) (keyID string, secret []byte, err error) {
	parts := strings.SplitN(strings.TrimSpace(envValue), ":", 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("format must be <key_id>:<base64_secret>")
	}

	keyID = parts[0]
	if len(keyID) != 32 {
		return "", nil, fmt.Errorf("key_id must be 32 hex chars (UUIDv7 without hyphens)")
	}
	for _, c := range keyID {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return "", nil, fmt.Errorf("key_id must be hex chars only")
		}
	}

	secret, err = base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", nil, fmt.Errorf("invalid base64 encoding: %w", err)
	}
	if len(secret) < 32 {
		return "", nil, fmt.Errorf("secret must be at least 32 bytes, got %d", len(secret))
	}

	return keyID, secret, nil
}
