package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/solatis/launchrules/internal/core/logging"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"rules":     "rules.file",
	"watch":     "rules.watch",
	"db":        "database.url",
	"http-port": "http.port",
	"grpc-port": "grpc.port",
	"log-level": "log.level",
}

// LoadConfig loads configuration using viper.
// CLI flags > environment > config file > defaults precedence.
// flags may be nil; only flags the user changed override other sources.
func LoadConfig(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	// Bind environment variables with LR_ prefix, e.g. LR_HTTP_PORT
	v.SetEnvPrefix("LR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	// Signing keys are environment-only
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &Config{
		Rules: RulesConfig{
			File:           v.GetString("rules.file"),
			Watch:          v.GetBool("rules.watch"),
			Debounce:       v.GetDuration("rules.debounce"),
			ValidateSchema: v.GetBool("rules.validate_schema"),
		},
		Database: DatabaseConfig{
			URL:           v.GetString("database.url"),
			QueryTimeout:  v.GetDuration("database.query_timeout"),
			Retention:     v.GetDuration("database.retention"),
			PruneSchedule: v.GetString("database.prune_schedule"),
		},
		HTTP: HTTPConfig{
			Host:           v.GetString("http.host"),
			Port:           v.GetInt("http.port"),
			RequestTimeout: v.GetDuration("http.request_timeout"),
			MaxBodyBytes:   v.GetInt64("http.max_body_bytes"),
		},
		GRPC: GRPCConfig{
			Port: v.GetInt("grpc.port"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("rules.file", d.Rules.File)
	v.SetDefault("rules.watch", d.Rules.Watch)
	v.SetDefault("rules.debounce", d.Rules.Debounce.String())
	v.SetDefault("rules.validate_schema", d.Rules.ValidateSchema)

	v.SetDefault("database.url", d.Database.URL)
	v.SetDefault("database.query_timeout", d.Database.QueryTimeout.String())
	v.SetDefault("database.retention", d.Database.Retention.String())
	v.SetDefault("database.prune_schedule", d.Database.PruneSchedule)

	v.SetDefault("http.host", d.HTTP.Host)
	v.SetDefault("http.port", d.HTTP.Port)
	v.SetDefault("http.request_timeout", d.HTTP.RequestTimeout.String())
	v.SetDefault("http.max_body_bytes", d.HTTP.MaxBodyBytes)

	v.SetDefault("grpc.port", d.GRPC.Port)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// validateConfig checks ports, positive durations and the prune schedule.
func validateConfig(cfg *Config) error {
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", cfg.HTTP.Port)
	}
	if cfg.GRPC.Port < 0 || cfg.GRPC.Port > 65535 {
		return fmt.Errorf("grpc.port must be between 0 and 65535, got %d", cfg.GRPC.Port)
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		return fmt.Errorf("http.request_timeout must be positive, got %v", cfg.HTTP.RequestTimeout)
	}
	if cfg.HTTP.MaxBodyBytes <= 0 {
		return fmt.Errorf("http.max_body_bytes must be positive, got %d", cfg.HTTP.MaxBodyBytes)
	}
	if cfg.Rules.Debounce < 0 {
		return fmt.Errorf("rules.debounce must not be negative, got %v", cfg.Rules.Debounce)
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("database.url must be set")
	}
	if cfg.Database.QueryTimeout < 0 {
		return fmt.Errorf("database.query_timeout must not be negative, got %v", cfg.Database.QueryTimeout)
	}
	if cfg.Database.Retention < 0 {
		return fmt.Errorf("database.retention must not be negative, got %v", cfg.Database.Retention)
	}
	if cfg.Database.PruneSchedule != "" {
		if _, err := cron.ParseStandard(cfg.Database.PruneSchedule); err != nil {
			return fmt.Errorf("database.prune_schedule is invalid: %w", err)
		}
	}
	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level is invalid: %w", err)
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text, got %q", cfg.Log.Format)
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only secrets (12-factor principle).
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.InConfig("signing_key") || v.InConfig("http.signing_key") {
		return fmt.Errorf("signing keys not allowed in config files (use LR_SIGNING_KEY environment variable)")
	}
	return nil
}
