package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"ammcore/internal/amm"
	"ammcore/internal/curve"
	"ammcore/internal/custody"
	"ammcore/internal/model"
	"ammcore/internal/storage"
)

// CallerHeader carries the authenticated caller address.
const CallerHeader = "X-Caller"

// ResponseError represent the response error struct
type ResponseError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// PoolsHandler represent the httphandler for pools
type PoolsHandler struct {
	engine *amm.Engine
	logger *zap.Logger
}

// PoolResponse renders a pool with amounts as decimal strings.
type PoolResponse struct {
	ID          string `json:"id"`
	Seed        string `json:"seed"`
	TokenA      string `json:"token_a"`
	TokenB      string `json:"token_b"`
	DecimalsA   uint8  `json:"decimals_a"`
	DecimalsB   uint8  `json:"decimals_b"`
	ReserveA    string `json:"reserve_a"`
	ReserveB    string `json:"reserve_b"`
	TotalShares string `json:"total_shares"`
	FeeBps      uint16 `json:"fee_bps"`
	Locked      bool   `json:"locked"`
	Status      string `json:"status"`
	Authority   string `json:"authority"`
	Version     uint64 `json:"version"`
	// SpotPrice is the B value of one whole A token, empty for a drained pool.
	SpotPrice string `json:"spot_price,omitempty"`
}

type initializeRequest struct {
	Seed      uint64 `json:"seed,string"`
	TokenA    string `json:"token_a"`
	TokenB    string `json:"token_b"`
	DecimalsA uint8  `json:"decimals_a"`
	DecimalsB uint8  `json:"decimals_b"`
	AmountA   uint64 `json:"amount_a,string"`
	AmountB   uint64 `json:"amount_b,string"`
	FeeBps    uint16 `json:"fee_bps"`
	Authority string `json:"authority,omitempty"`
}

type depositRequest struct {
	DesiredA uint64 `json:"desired_a,string"`
	DesiredB uint64 `json:"desired_b,string"`
	MinA     uint64 `json:"min_a,string"`
	MinB     uint64 `json:"min_b,string"`
	// Shares switches to exact-share mode, with DesiredA/B as maximums.
	Shares uint64 `json:"shares,string,omitempty"`
}

type swapRequest struct {
	Direction    model.Direction `json:"direction"`
	AmountIn     uint64          `json:"amount_in,string"`
	MinAmountOut uint64          `json:"min_amount_out,string"`
}

type withdrawRequest struct {
	Shares uint64 `json:"shares,string"`
	MinA   uint64 `json:"min_a,string"`
	MinB   uint64 `json:"min_b,string"`
}

type updateRequest struct {
	FeeBps *uint16 `json:"fee_bps,omitempty"`
	Locked *bool   `json:"locked,omitempty"`
}

type liquidityResponse struct {
	Shares  string       `json:"shares"`
	AmountA string       `json:"amount_a"`
	AmountB string       `json:"amount_b"`
	Pool    PoolResponse `json:"pool"`
}

type swapResponse struct {
	Direction model.Direction `json:"direction"`
	AmountIn  string          `json:"amount_in"`
	Fee       string          `json:"fee"`
	FeeExact  string          `json:"fee_exact"`
	AmountOut string          `json:"amount_out"`
	Pool      PoolResponse    `json:"pool"`
}

type quoteResponse struct {
	AmountIn       string `json:"amount_in"`
	Fee            string `json:"fee"`
	FeeExact       string `json:"fee_exact"`
	AmountOut      string `json:"amount_out"`
	PriceImpactBps uint64 `json:"price_impact_bps"`
}

const resourcePrefix = "/pools"

func formatPoolsResource(resource string) string {
	return resourcePrefix + resource
}

// NewPoolsHandler will initialize the pools/ resources endpoint
func NewPoolsHandler(e *echo.Echo, engine *amm.Engine, logger *zap.Logger) {
	handler := &PoolsHandler{engine: engine, logger: logger}

	e.POST(formatPoolsResource(""), handler.Initialize)
	e.GET(formatPoolsResource(""), handler.GetPools)
	e.GET(formatPoolsResource("/:id"), handler.GetPool)
	e.GET(formatPoolsResource("/:id/quote"), handler.GetQuote)
	e.POST(formatPoolsResource("/:id/deposit"), handler.Deposit)
	e.POST(formatPoolsResource("/:id/swap"), handler.Swap)
	e.POST(formatPoolsResource("/:id/withdraw"), handler.Withdraw)
	e.POST(formatPoolsResource("/:id/update"), handler.Update)
}

func (h *PoolsHandler) Initialize(c echo.Context) error {
	caller, err := callerOf(c)
	if err != nil {
		return badRequest(c, err)
	}
	var req initializeRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err)
	}
	tokenA, err := model.ParseAddress(req.TokenA)
	if err != nil {
		return badRequest(c, err)
	}
	tokenB, err := model.ParseAddress(req.TokenB)
	if err != nil {
		return badRequest(c, err)
	}
	var authority common.Address
	if req.Authority != "" {
		if authority, err = model.ParseAddress(req.Authority); err != nil {
			return badRequest(c, err)
		}
	}

	pool, err := h.engine.Initialize(c.Request().Context(), caller, amm.InitializeRequest{
		Seed:      req.Seed,
		TokenA:    tokenA,
		TokenB:    tokenB,
		DecimalsA: req.DecimalsA,
		DecimalsB: req.DecimalsB,
		AmountA:   req.AmountA,
		AmountB:   req.AmountB,
		FeeBps:    req.FeeBps,
		Authority: authority,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, ConvertPoolToResponse(pool))
}

func (h *PoolsHandler) GetPools(c echo.Context) error {
	pools, err := h.engine.Pools(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	out := make([]PoolResponse, 0, len(pools))
	for _, pool := range pools {
		out = append(out, ConvertPoolToResponse(pool))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PoolsHandler) GetPool(c echo.Context) error {
	id, err := model.ParsePoolID(c.Param("id"))
	if err != nil {
		return badRequest(c, err)
	}
	pool, err := h.engine.Pool(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, ConvertPoolToResponse(pool))
}

func (h *PoolsHandler) GetQuote(c echo.Context) error {
	id, err := model.ParsePoolID(c.Param("id"))
	if err != nil {
		return badRequest(c, err)
	}
	dir, err := model.ParseDirection(c.QueryParam("direction"))
	if err != nil {
		return badRequest(c, err)
	}
	amountIn, err := strconv.ParseUint(c.QueryParam("amount_in"), 10, 64)
	if err != nil {
		return badRequest(c, err)
	}
	q, err := h.engine.Quote(c.Request().Context(), id, dir, amountIn)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, quoteResponse{
		AmountIn:       formatUint(q.AmountIn),
		Fee:            formatUint(q.FeeAmount),
		FeeExact:       q.FeeExact.String(),
		AmountOut:      formatUint(q.AmountOut),
		PriceImpactBps: q.PriceImpactBps,
	})
}

func (h *PoolsHandler) Deposit(c echo.Context) error {
	id, caller, err := poolAndCaller(c)
	if err != nil {
		return badRequest(c, err)
	}
	var req depositRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err)
	}

	var res amm.DepositResult
	if req.Shares > 0 {
		res, err = h.engine.DepositShares(c.Request().Context(), id, caller, amm.DepositSharesRequest{
			Shares: req.Shares,
			MaxA:   req.DesiredA,
			MaxB:   req.DesiredB,
		})
	} else {
		res, err = h.engine.Deposit(c.Request().Context(), id, caller, amm.DepositRequest{
			DesiredA: req.DesiredA,
			DesiredB: req.DesiredB,
			MinA:     req.MinA,
			MinB:     req.MinB,
		})
	}
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, liquidityResponse{
		Shares:  formatUint(res.Shares),
		AmountA: formatUint(res.AmountA),
		AmountB: formatUint(res.AmountB),
		Pool:    ConvertPoolToResponse(res.Pool),
	})
}

func (h *PoolsHandler) Swap(c echo.Context) error {
	id, caller, err := poolAndCaller(c)
	if err != nil {
		return badRequest(c, err)
	}
	var req swapRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err)
	}
	res, err := h.engine.Swap(c.Request().Context(), id, caller, amm.SwapRequest{
		Direction:    req.Direction,
		AmountIn:     req.AmountIn,
		MinAmountOut: req.MinAmountOut,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, swapResponse{
		Direction: res.Direction,
		AmountIn:  formatUint(res.AmountIn),
		Fee:       formatUint(res.Fee),
		FeeExact:  res.FeeExact.String(),
		AmountOut: formatUint(res.AmountOut),
		Pool:      ConvertPoolToResponse(res.Pool),
	})
}

func (h *PoolsHandler) Withdraw(c echo.Context) error {
	id, caller, err := poolAndCaller(c)
	if err != nil {
		return badRequest(c, err)
	}
	var req withdrawRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err)
	}
	res, err := h.engine.Withdraw(c.Request().Context(), id, caller, amm.WithdrawRequest{
		Shares: req.Shares,
		MinA:   req.MinA,
		MinB:   req.MinB,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, liquidityResponse{
		Shares:  formatUint(res.Shares),
		AmountA: formatUint(res.AmountA),
		AmountB: formatUint(res.AmountB),
		Pool:    ConvertPoolToResponse(res.Pool),
	})
}

func (h *PoolsHandler) Update(c echo.Context) error {
	id, caller, err := poolAndCaller(c)
	if err != nil {
		return badRequest(c, err)
	}
	var req updateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err)
	}
	pool, err := h.engine.Update(c.Request().Context(), id, caller, amm.UpdateRequest{
		FeeBps: req.FeeBps,
		Locked: req.Locked,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, ConvertPoolToResponse(pool))
}

func (h *PoolsHandler) fail(c echo.Context, err error) error {
	status := getStatusCode(err)
	resp := ResponseError{Message: err.Error()}
	if code, ok := amm.CodeOf(err); ok {
		resp.Code = code.String()
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
		resp.Message = http.StatusText(status)
	}
	return c.JSON(status, resp)
}

func getStatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if code, ok := amm.CodeOf(err); ok {
		switch code {
		case amm.CodeInvalidAuthority:
			return http.StatusForbidden
		case amm.CodePoolLocked:
			return http.StatusLocked
		case amm.CodeSlippageExceeded:
			return http.StatusConflict
		default:
			return http.StatusBadRequest
		}
	}
	switch {
	case errors.Is(err, storage.ErrPoolNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrPoolExists), errors.Is(err, storage.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, custody.ErrInsufficientFunds), errors.Is(err, custody.ErrInvalidTransfer):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func badRequest(c echo.Context, err error) error {
	return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
}

func callerOf(c echo.Context) (common.Address, error) {
	return model.ParseAddress(c.Request().Header.Get(CallerHeader))
}

func poolAndCaller(c echo.Context) (common.Hash, common.Address, error) {
	id, err := model.ParsePoolID(c.Param("id"))
	if err != nil {
		return common.Hash{}, common.Address{}, err
	}
	caller, err := callerOf(c)
	if err != nil {
		return common.Hash{}, common.Address{}, err
	}
	return id, caller, nil
}

// ConvertPoolToResponse converts a given pool to the appropriate response type.
func ConvertPoolToResponse(pool model.Pool) PoolResponse {
	resp := PoolResponse{
		ID:          pool.ID.Hex(),
		Seed:        formatUint(pool.Seed),
		TokenA:      pool.TokenA.Hex(),
		TokenB:      pool.TokenB.Hex(),
		DecimalsA:   pool.DecimalsA,
		DecimalsB:   pool.DecimalsB,
		ReserveA:    formatUint(pool.ReserveA),
		ReserveB:    formatUint(pool.ReserveB),
		TotalShares: formatUint(pool.TotalShares),
		FeeBps:      pool.FeeBps,
		Locked:      pool.Locked,
		Status:      string(pool.Status()),
		Authority:   pool.Authority.Hex(),
		Version:     pool.Version,
	}
	if price, err := curve.SpotPrice(pool.ReserveA, pool.ReserveB, pool.DecimalsA, pool.DecimalsB); err == nil {
		resp.SpotPrice = price.String()
	}
	return resp
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}
