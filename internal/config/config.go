package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	StoreFile     = "file"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	LogLevel          string
	Store             string
	StateDir          string
	Journal           string
	Ledger            string
	LedgerLockWait    time.Duration
	PGDSN             string
	InitialShareScale uint64
	RPCURL            string
	Listen            string
	Window            time.Duration
	BatchSize         int
	StatsState        string
	RecomputeFrom     uint64
	MaxRetries        int
	RetryBackoff      time.Duration
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AMM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "info")
	v.SetDefault("store", StoreFile)
	v.SetDefault("state-dir", "./data/pools")
	v.SetDefault("journal", "./data/events.jsonl")
	v.SetDefault("ledger", "./data/ledger.json")
	v.SetDefault("ledger-lock-wait", 10*time.Second)
	v.SetDefault("initial-share-scale", uint64(1))
	v.SetDefault("listen", ":8080")
	v.SetDefault("window", "5m")
	v.SetDefault("batch-size", 1000)
	v.SetDefault("stats-state", "./data/stats_state.json")
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	window, err := time.ParseDuration(v.GetString("window"))
	if err != nil {
		return Config{}, fmt.Errorf("parse window: %w", err)
	}
	recomputeFrom, err := ParseTimestamp(v.GetString("recompute-from"))
	if err != nil {
		return Config{}, fmt.Errorf("parse recompute-from: %w", err)
	}

	cfg := Config{
		LogLevel:          v.GetString("log-level"),
		Store:             strings.ToLower(v.GetString("store")),
		StateDir:          v.GetString("state-dir"),
		Journal:           v.GetString("journal"),
		Ledger:            v.GetString("ledger"),
		LedgerLockWait:    v.GetDuration("ledger-lock-wait"),
		PGDSN:             v.GetString("pg-dsn"),
		InitialShareScale: v.GetUint64("initial-share-scale"),
		RPCURL:            v.GetString("rpc"),
		Listen:            v.GetString("listen"),
		Window:            window,
		BatchSize:         v.GetInt("batch-size"),
		StatsState:        v.GetString("stats-state"),
		RecomputeFrom:     recomputeFrom,
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values no command can run with.
func (c Config) Validate() error {
	switch c.Store {
	case StoreFile:
		if c.StateDir == "" {
			return fmt.Errorf("state-dir is required for the file store")
		}
	case StorePostgres:
		if c.PGDSN == "" {
			return fmt.Errorf("pg-dsn is required for the postgres store")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown store %q (want file, postgres or memory)", c.Store)
	}
	if c.InitialShareScale == 0 {
		return fmt.Errorf("initial-share-scale must be > 0")
	}
	if c.Window < time.Second {
		return fmt.Errorf("window must be at least 1s")
	}
	if c.LedgerLockWait < 0 {
		return fmt.Errorf("ledger-lock-wait must be >= 0")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max-retries must be >= 0")
	}
	return nil
}

// ParseTimestamp parses a timestamp value (unix seconds or RFC3339).
func ParseTimestamp(input string) (uint64, error) {
	if strings.TrimSpace(input) == "" {
		return 0, nil
	}

	if isNumeric(input) {
		val, err := strconv.ParseUint(input, 10, 64)
		if err != nil {
			return 0, err
		}
		return val, nil
	}

	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return 0, err
	}
	return uint64(tm.Unix()), nil
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}
