package main

import (
	"context"
	"fmt"
	"math/big"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ammcore/internal/chain"
	"ammcore/internal/model"
	"ammcore/internal/reconcile"
)

func newReconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare pool reserves with on-chain vault balances",
	}
	cmd.Flags().String("pool", "", "pool id (0x-prefixed hex)")
	cmd.Flags().String("rpc", "", "EVM JSON-RPC URL")
	cmd.Flags().String("vault", "", "on-chain vault address (defaults to the pool's custody vault)")
	cmd.Flags().Uint64("block", 0, "block to read at, 0 means latest")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
			if a.cfg.RPCURL == "" {
				return fmt.Errorf("rpc url is required")
			}
			pool, err := a.loadPool(ctx, cmd)
			if err != nil {
				return err
			}
			vault := pool.Vault()
			if raw, _ := cmd.Flags().GetString("vault"); raw != "" {
				if vault, err = model.ParseAddress(raw); err != nil {
					return err
				}
			}

			client, err := chain.NewClient(ctx, a.cfg.RPCURL)
			if err != nil {
				return fmt.Errorf("connect rpc: %w", err)
			}
			defer client.Close()

			chainID, err := client.GetChainID(ctx)
			if err != nil {
				return fmt.Errorf("chain id: %w", err)
			}

			var block *big.Int
			if n, _ := cmd.Flags().GetUint64("block"); n > 0 {
				block = new(big.Int).SetUint64(n)
			} else {
				head, err := client.HeaderByNumber(ctx, nil)
				if err != nil {
					return fmt.Errorf("latest header: %w", err)
				}
				block = head.Number
			}

			reader, err := chain.NewTokenReader(chain.TokenReaderConfig{
				MaxRetries:   a.cfg.MaxRetries,
				RetryBackoff: a.cfg.RetryBackoff,
			}, client, a.logger)
			if err != nil {
				return err
			}

			a.logger.Info("reconcile start",
				zap.String("pool", pool.ID.Hex()),
				zap.String("vault", vault.Hex()),
				zap.String("chain_id", chainID.String()),
				zap.String("block", block.String()),
			)

			report, err := reconcile.New(reader, a.logger).Check(ctx, pool, vault, block)
			if err != nil {
				return err
			}
			if err := a.print(report); err != nil {
				return err
			}
			return report.Err()
		})
	}
	return cmd
}
