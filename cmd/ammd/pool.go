package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"ammcore/internal/amm"
	"ammcore/internal/api"
	"ammcore/internal/custody"
	"ammcore/internal/fixedpoint"
	"ammcore/internal/model"
	"ammcore/internal/storage"
)

func addPoolFlags(cmd *cobra.Command, withCaller bool) {
	cmd.Flags().String("pool", "", "pool id (0x-prefixed hex)")
	if withCaller {
		cmd.Flags().String("caller", "", "caller address")
	}
	cmd.Flags().Bool("human", false, "read amounts as decimals in the token scale")
}

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a pool with its first liquidity",
	}
	cmd.Flags().String("caller", "", "caller address")
	cmd.Flags().Uint64("seed", 0, "pool seed")
	cmd.Flags().String("token-a", "", "token A address")
	cmd.Flags().String("token-b", "", "token B address")
	cmd.Flags().Uint8("decimals-a", 0, "token A decimals")
	cmd.Flags().Uint8("decimals-b", 0, "token B decimals")
	cmd.Flags().String("amount-a", "", "initial token A deposit")
	cmd.Flags().String("amount-b", "", "initial token B deposit")
	cmd.Flags().Uint16("fee-bps", 30, "swap fee in basis points")
	cmd.Flags().String("authority", "", "pool authority (defaults to the caller)")
	cmd.Flags().Bool("human", false, "read amounts as decimals in the token scale")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, appOptions{persist: true}, func(ctx context.Context, a *app) error {
			caller, err := addressFlag(cmd, "caller")
			if err != nil {
				return err
			}
			tokenA, err := addressFlag(cmd, "token-a")
			if err != nil {
				return err
			}
			tokenB, err := addressFlag(cmd, "token-b")
			if err != nil {
				return err
			}
			authority := caller
			if raw, _ := cmd.Flags().GetString("authority"); raw != "" {
				if authority, err = model.ParseAddress(raw); err != nil {
					return err
				}
			}

			seed, _ := cmd.Flags().GetUint64("seed")
			decA, _ := cmd.Flags().GetUint8("decimals-a")
			decB, _ := cmd.Flags().GetUint8("decimals-b")
			feeBps, _ := cmd.Flags().GetUint16("fee-bps")
			human, _ := cmd.Flags().GetBool("human")

			rawA, _ := cmd.Flags().GetString("amount-a")
			amountA, err := parseAmount(rawA, decA, human)
			if err != nil {
				return err
			}
			rawB, _ := cmd.Flags().GetString("amount-b")
			amountB, err := parseAmount(rawB, decB, human)
			if err != nil {
				return err
			}

			pool, err := a.engine.Initialize(ctx, caller, amm.InitializeRequest{
				Seed:      seed,
				TokenA:    tokenA,
				TokenB:    tokenB,
				DecimalsA: decA,
				DecimalsB: decB,
				AmountA:   amountA,
				AmountB:   amountB,
				FeeBps:    feeBps,
				Authority: authority,
			})
			if err != nil {
				return err
			}
			return a.print(api.ConvertPoolToResponse(pool))
		})
	}
	return cmd
}

func newDepositCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deposit",
		Short: "Add liquidity to a pool",
	}
	addPoolFlags(cmd, true)
	cmd.Flags().String("desired-a", "", "token A to deposit at most")
	cmd.Flags().String("desired-b", "", "token B to deposit at most")
	cmd.Flags().String("min-a", "", "minimum token A accepted")
	cmd.Flags().String("min-b", "", "minimum token B accepted")
	cmd.Flags().Uint64("shares", 0, "mint exactly this many shares, paying at most desired-a/desired-b")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, appOptions{persist: true}, func(ctx context.Context, a *app) error {
			pool, err := a.loadPool(ctx, cmd)
			if err != nil {
				return err
			}
			caller, err := addressFlag(cmd, "caller")
			if err != nil {
				return err
			}
			amounts, err := parseAmountFlags(cmd, pool, "desired-a", "desired-b", "min-a", "min-b")
			if err != nil {
				return err
			}

			var res amm.DepositResult
			if shares, _ := cmd.Flags().GetUint64("shares"); shares > 0 {
				res, err = a.engine.DepositShares(ctx, pool.ID, caller, amm.DepositSharesRequest{
					Shares: shares,
					MaxA:   amounts[0],
					MaxB:   amounts[1],
				})
			} else {
				res, err = a.engine.Deposit(ctx, pool.ID, caller, amm.DepositRequest{
					DesiredA: amounts[0],
					DesiredB: amounts[1],
					MinA:     amounts[2],
					MinB:     amounts[3],
				})
			}
			if err != nil {
				return err
			}
			return a.print(liquidityOutput(res.Shares, res.AmountA, res.AmountB, res.Pool))
		})
	}
	return cmd
}

func newSwapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Swap one pool token for the other",
	}
	addPoolFlags(cmd, true)
	cmd.Flags().String("direction", "a_to_b", "a_to_b or b_to_a")
	cmd.Flags().String("amount-in", "", "input amount")
	cmd.Flags().String("min-out", "", "minimum output accepted")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, appOptions{persist: true}, func(ctx context.Context, a *app) error {
			pool, err := a.loadPool(ctx, cmd)
			if err != nil {
				return err
			}
			caller, err := addressFlag(cmd, "caller")
			if err != nil {
				return err
			}
			rawDir, _ := cmd.Flags().GetString("direction")
			dir, err := model.ParseDirection(rawDir)
			if err != nil {
				return err
			}
			amountIn, minOut, err := parseSwapAmounts(cmd, pool, dir)
			if err != nil {
				return err
			}

			res, err := a.engine.Swap(ctx, pool.ID, caller, amm.SwapRequest{
				Direction:    dir,
				AmountIn:     amountIn,
				MinAmountOut: minOut,
			})
			if err != nil {
				return err
			}
			return a.print(map[string]interface{}{
				"direction":  res.Direction,
				"amount_in":  formatUint(res.AmountIn),
				"fee":        formatUint(res.Fee),
				"fee_exact":  res.FeeExact.String(),
				"amount_out": formatUint(res.AmountOut),
				"pool":       api.ConvertPoolToResponse(res.Pool),
			})
		})
	}
	return cmd
}

func newWithdrawCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Burn shares for a proportional part of the reserves",
	}
	addPoolFlags(cmd, true)
	cmd.Flags().Uint64("shares", 0, "shares to burn")
	cmd.Flags().String("min-a", "", "minimum token A accepted")
	cmd.Flags().String("min-b", "", "minimum token B accepted")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, appOptions{persist: true}, func(ctx context.Context, a *app) error {
			pool, err := a.loadPool(ctx, cmd)
			if err != nil {
				return err
			}
			caller, err := addressFlag(cmd, "caller")
			if err != nil {
				return err
			}
			shares, _ := cmd.Flags().GetUint64("shares")
			mins, err := parseAmountFlags(cmd, pool, "min-a", "min-b")
			if err != nil {
				return err
			}

			res, err := a.engine.Withdraw(ctx, pool.ID, caller, amm.WithdrawRequest{
				Shares: shares,
				MinA:   mins[0],
				MinB:   mins[1],
			})
			if err != nil {
				return err
			}
			return a.print(liquidityOutput(res.Shares, res.AmountA, res.AmountB, res.Pool))
		})
	}
	return cmd
}

func newUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change the fee or lock state of a pool (authority only)",
	}
	cmd.Flags().String("pool", "", "pool id (0x-prefixed hex)")
	cmd.Flags().String("caller", "", "caller address")
	cmd.Flags().Uint16("fee-bps", 0, "new swap fee in basis points")
	cmd.Flags().Bool("lock", false, "lock the pool")
	cmd.Flags().Bool("unlock", false, "unlock the pool")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, appOptions{persist: true}, func(ctx context.Context, a *app) error {
			pool, err := a.loadPool(ctx, cmd)
			if err != nil {
				return err
			}
			caller, err := addressFlag(cmd, "caller")
			if err != nil {
				return err
			}

			var req amm.UpdateRequest
			if cmd.Flags().Changed("fee-bps") {
				fee, _ := cmd.Flags().GetUint16("fee-bps")
				req.FeeBps = &fee
			}
			lock, _ := cmd.Flags().GetBool("lock")
			unlock, _ := cmd.Flags().GetBool("unlock")
			switch {
			case lock && unlock:
				return fmt.Errorf("--lock and --unlock are exclusive")
			case lock:
				req.Locked = &lock
			case unlock:
				locked := false
				req.Locked = &locked
			}

			updated, err := a.engine.Update(ctx, pool.ID, caller, req)
			if err != nil {
				return err
			}
			return a.print(api.ConvertPoolToResponse(updated))
		})
	}
	return cmd
}

func newQuoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a swap without executing it",
	}
	addPoolFlags(cmd, false)
	cmd.Flags().String("direction", "a_to_b", "a_to_b or b_to_a")
	cmd.Flags().String("amount-in", "", "input amount")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
			pool, err := a.loadPool(ctx, cmd)
			if err != nil {
				return err
			}
			rawDir, _ := cmd.Flags().GetString("direction")
			dir, err := model.ParseDirection(rawDir)
			if err != nil {
				return err
			}
			amountIn, _, err := parseSwapAmounts(cmd, pool, dir)
			if err != nil {
				return err
			}

			q, err := a.engine.Quote(ctx, pool.ID, dir, amountIn)
			if err != nil {
				return err
			}
			_, _, decIn, decOut := pool.Reserves(dir)
			return a.print(map[string]interface{}{
				"direction":        dir,
				"amount_in":        formatUint(q.AmountIn),
				"fee":              formatUint(q.FeeAmount),
				"fee_exact":        q.FeeExact.String(),
				"amount_out":       formatUint(q.AmountOut),
				"amount_out_human": fixedpoint.Format(q.AmountOut, decOut),
				"amount_in_human":  fixedpoint.Format(q.AmountIn, decIn),
				"price_impact_bps": q.PriceImpactBps,
			})
		})
	}
	return cmd
}

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print one pool",
	}
	cmd.Flags().String("pool", "", "pool id (0x-prefixed hex)")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
			pool, err := a.loadPool(ctx, cmd)
			if err != nil {
				return err
			}
			return a.print(api.ConvertPoolToResponse(pool))
		})
	}
	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print every pool",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, appOptions{}, func(ctx context.Context, a *app) error {
				pools, err := a.engine.Pools(ctx)
				if err != nil {
					return err
				}
				out := make([]api.PoolResponse, 0, len(pools))
				for _, pool := range pools {
					out = append(out, api.ConvertPoolToResponse(pool))
				}
				return a.print(out)
			})
		},
	}
}

func newFundCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fund",
		Short: "Credit an account with pool tokens in the custody ledger",
		Long: "Credit an account with pool tokens in the custody ledger. The pool may not " +
			"exist yet: without --pool its id is derived from --seed, --token-a, --token-b and --authority.",
	}
	addPoolFlags(cmd, false)
	cmd.Flags().Uint64("seed", 0, "pool seed")
	cmd.Flags().String("token-a", "", "token A address")
	cmd.Flags().String("token-b", "", "token B address")
	cmd.Flags().String("authority", "", "pool authority")
	cmd.Flags().Uint8("decimals", 0, "token decimals for --human when the pool does not exist yet")
	cmd.Flags().String("account", "", "account to credit")
	cmd.Flags().String("asset", "a", "asset to credit (a or b)")
	cmd.Flags().String("amount", "", "amount to credit")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, appOptions{persist: true}, func(ctx context.Context, a *app) error {
			id, err := fundPoolID(cmd)
			if err != nil {
				return err
			}
			account, err := addressFlag(cmd, "account")
			if err != nil {
				return err
			}
			rawAsset, _ := cmd.Flags().GetString("asset")
			var asset model.Asset
			if err := asset.UnmarshalText([]byte(rawAsset)); err != nil {
				return err
			}

			decimals, _ := cmd.Flags().GetUint8("decimals")
			pool, err := a.engine.Pool(ctx, id)
			switch {
			case err == nil:
				decimals = pool.DecimalsA
				if asset == model.AssetB {
					decimals = pool.DecimalsB
				}
			case !errors.Is(err, storage.ErrPoolNotFound):
				return err
			}

			human, _ := cmd.Flags().GetBool("human")
			raw, _ := cmd.Flags().GetString("amount")
			amount, err := parseAmount(raw, decimals, human)
			if err != nil {
				return err
			}

			if err := a.ledger.Credit(id, asset, account, amount); err != nil {
				return err
			}
			return a.print(map[string]interface{}{
				"pool":    id,
				"account": account,
				"asset":   asset,
				"balance": formatUint(a.ledger.Balance(custody.Key{Pool: id, Asset: asset, Account: account})),
			})
		})
	}
	return cmd
}

func fundPoolID(cmd *cobra.Command) (common.Hash, error) {
	if raw, _ := cmd.Flags().GetString("pool"); raw != "" {
		return model.ParsePoolID(raw)
	}
	tokenA, err := addressFlag(cmd, "token-a")
	if err != nil {
		return common.Hash{}, err
	}
	tokenB, err := addressFlag(cmd, "token-b")
	if err != nil {
		return common.Hash{}, err
	}
	authority, err := addressFlag(cmd, "authority")
	if err != nil {
		return common.Hash{}, err
	}
	seed, _ := cmd.Flags().GetUint64("seed")
	return model.PoolID(seed, tokenA, tokenB, authority), nil
}

// parseAmountFlags reads flags naming alternately token A and token B amounts.
func parseAmountFlags(cmd *cobra.Command, pool model.Pool, names ...string) ([]uint64, error) {
	human, _ := cmd.Flags().GetBool("human")
	out := make([]uint64, len(names))
	for i, name := range names {
		decimals := pool.DecimalsA
		if i%2 == 1 {
			decimals = pool.DecimalsB
		}
		raw, _ := cmd.Flags().GetString(name)
		v, err := parseAmount(raw, decimals, human)
		if err != nil {
			return nil, fmt.Errorf("--%s: %w", name, err)
		}
		out[i] = v
	}
	return out, nil
}

func parseSwapAmounts(cmd *cobra.Command, pool model.Pool, dir model.Direction) (uint64, uint64, error) {
	human, _ := cmd.Flags().GetBool("human")
	_, _, decIn, decOut := pool.Reserves(dir)

	raw, _ := cmd.Flags().GetString("amount-in")
	amountIn, err := parseAmount(raw, decIn, human)
	if err != nil {
		return 0, 0, fmt.Errorf("--amount-in: %w", err)
	}
	var minOut uint64
	if cmd.Flags().Lookup("min-out") != nil {
		raw, _ = cmd.Flags().GetString("min-out")
		if minOut, err = parseAmount(raw, decOut, human); err != nil {
			return 0, 0, fmt.Errorf("--min-out: %w", err)
		}
	}
	return amountIn, minOut, nil
}

func liquidityOutput(shares, amountA, amountB uint64, pool model.Pool) map[string]interface{} {
	return map[string]interface{}{
		"shares":   formatUint(shares),
		"amount_a": formatUint(amountA),
		"amount_b": formatUint(amountB),
		"pool":     api.ConvertPoolToResponse(pool),
	}
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}
