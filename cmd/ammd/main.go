package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "ammd",
		Short:        "Constant-product pool engine",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file path")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("store", "file", "pool store (file, postgres, memory)")
	flags.String("state-dir", "./data/pools", "pool state directory for the file store")
	flags.String("journal", "./data/events.jsonl", "pool event journal JSONL")
	flags.String("ledger", "./data/ledger.json", "custody ledger snapshot")
	flags.Duration("ledger-lock-wait", 10*time.Second, "how long a writing command waits for another run's ledger lock")
	flags.String("pg-dsn", "", "Postgres DSN")
	flags.Uint64("initial-share-scale", 1, "shares minted per unit of token A on the first deposit")
	flags.Int("max-retries", 5, "maximum retry attempts for RPC calls")
	flags.Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")

	root.AddCommand(
		newInitCmd(),
		newDepositCmd(),
		newSwapCmd(),
		newWithdrawCmd(),
		newUpdateCmd(),
		newQuoteCmd(),
		newShowCmd(),
		newListCmd(),
		newFundCmd(),
		newStatsCmd(),
		newReconcileCmd(),
		newServeCmd(),
	)
	return root
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
