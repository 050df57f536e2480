package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ammcore/internal/amm"
	"ammcore/internal/config"
	"ammcore/internal/custody"
	"ammcore/internal/fixedpoint"
	"ammcore/internal/model"
	"ammcore/internal/storage"
	"ammcore/internal/storage/postgres"
)

// app is the runtime shared by every subcommand.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	store   amm.PoolStore
	pg      *postgres.Store
	ledger  *custody.Ledger
	lock    *custody.FileLock
	journal *storage.JsonlStorage
	engine  *amm.Engine
	out     io.Writer

	// persist holds the ledger lock while open and saves the snapshot on
	// close.
	persist bool
}

type appOptions struct {
	persist  bool
	observer amm.Observer
}

func openApp(ctx context.Context, cmd *cobra.Command, opts appOptions) (*app, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, out: cmd.OutOrStdout(), persist: opts.persist}
	if err := a.open(ctx, opts); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) open(ctx context.Context, opts appOptions) error {
	if a.cfg.PGDSN != "" {
		pg, err := postgres.NewStore(ctx, a.cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		a.pg = pg
		if err := pg.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}
	}

	switch a.cfg.Store {
	case config.StoreMemory:
		a.store = storage.NewMemoryStore()
	case config.StoreFile:
		fs, err := storage.NewFileStore(a.cfg.StateDir)
		if err != nil {
			return err
		}
		a.store = fs
	case config.StorePostgres:
		a.store = a.pg
	}

	a.ledger = custody.NewLedger(a.logger)
	if a.cfg.Ledger != "" {
		if a.persist {
			if err := a.lockLedger(ctx); err != nil {
				return err
			}
		}
		if err := a.ledger.Load(a.cfg.Ledger); err != nil {
			return err
		}
	}

	sinks := eventSinks{}
	if a.cfg.Journal != "" {
		if dir := filepath.Dir(a.cfg.Journal); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create journal dir: %w", err)
			}
		}
		a.journal = storage.NewJsonlStorage(a.cfg.Journal)
		sinks = append(sinks, a.journal)
	}
	if a.pg != nil {
		sinks = append(sinks, a.pg)
	}

	a.engine = amm.NewEngine(amm.Config{
		InitialShareScale: a.cfg.InitialShareScale,
		Observer:          opts.observer,
	}, a.store, a.ledger, sinks, a.logger)

	a.logger.Debug("runtime ready",
		zap.String("store", a.cfg.Store),
		zap.String("state_dir", a.cfg.StateDir),
		zap.String("journal", a.cfg.Journal),
		zap.String("ledger", a.cfg.Ledger),
		zap.String("pg_dsn", redactDSN(a.cfg.PGDSN)),
	)
	return nil
}

// lockLedger waits up to LedgerLockWait for other runs to release the ledger.
func (a *app) lockLedger(ctx context.Context) error {
	if dir := filepath.Dir(a.cfg.Ledger); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create ledger dir: %w", err)
		}
	}
	waitCtx, cancel := context.WithTimeout(ctx, a.cfg.LedgerLockWait)
	defer cancel()
	lock, err := custody.LockFile(waitCtx, a.cfg.Ledger, 0)
	if err != nil {
		return err
	}
	a.lock = lock
	return nil
}

// Close persists the ledger when asked to and releases connections.
func (a *app) Close() error {
	var err error
	if a.lock != nil && a.engine != nil {
		err = a.ledger.Save(a.cfg.Ledger)
	}
	if a.lock != nil {
		err = errors.Join(err, a.lock.Release())
	}
	if a.pg != nil {
		a.pg.Close()
	}
	_ = a.logger.Sync()
	return err
}

func (a *app) print(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// eventSinks fans committed events out to every sink.
type eventSinks []amm.EventSink

func (s eventSinks) PutEventBatch(events []model.PoolEvent) error {
	var errs []error
	for _, sink := range s {
		if err := sink.PutEventBatch(events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// parseAmount reads smallest units, or a decimal in the token's scale when
// human is set. Empty input is zero.
func parseAmount(input string, decimals uint8, human bool) (uint64, error) {
	if input == "" {
		return 0, nil
	}
	if human {
		return fixedpoint.ParseAmount(input, decimals)
	}
	v, err := strconv.ParseUint(input, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", input, err)
	}
	return v, nil
}

func withApp(cmd *cobra.Command, opts appOptions, fn func(ctx context.Context, a *app) error) (err error) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cmd, opts)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(ctx, a)
}

// loadPool resolves the --pool flag.
func (a *app) loadPool(ctx context.Context, cmd *cobra.Command) (model.Pool, error) {
	raw, _ := cmd.Flags().GetString("pool")
	id, err := model.ParsePoolID(raw)
	if err != nil {
		return model.Pool{}, err
	}
	return a.engine.Pool(ctx, id)
}

func addressFlag(cmd *cobra.Command, name string) (common.Address, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return common.Address{}, fmt.Errorf("--%s is required", name)
	}
	return model.ParseAddress(raw)
}
