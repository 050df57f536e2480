package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"ammcore/internal/amm"
	"ammcore/internal/custody"
	"ammcore/internal/model"
	"ammcore/internal/storage"
)

var (
	tokenA = common.HexToAddress("0x1111111111111111111111111111111111111111")
	tokenB = common.HexToAddress("0x2222222222222222222222222222222222222222")
	owner  = common.HexToAddress("0x3333333333333333333333333333333333333333")
	trader = common.HexToAddress("0x4444444444444444444444444444444444444444")
)

type testServer struct {
	handler http.Handler
	ledger  *custody.Ledger
	poolID  common.Hash
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ledger := custody.NewLedger(nil)
	engine := amm.NewEngine(amm.Config{}, storage.NewMemoryStore(), ledger, nil, nil)
	reg := prometheus.NewRegistry()
	srv := NewServer(Config{Registerer: reg, Gatherer: reg}, engine, nil)

	id := model.PoolID(1, tokenA, tokenB, owner)
	require.NoError(t, ledger.Credit(id, model.AssetA, owner, 10_000))
	require.NoError(t, ledger.Credit(id, model.AssetB, owner, 10_000))
	require.NoError(t, ledger.Credit(id, model.AssetA, trader, 1_000))
	return &testServer{handler: srv.Handler(), ledger: ledger, poolID: id}
}

func (s *testServer) do(t *testing.T, method, path string, caller common.Address, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if caller != (common.Address{}) {
		req.Header.Set(CallerHeader, caller.Hex())
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) initialize(t *testing.T) PoolResponse {
	t.Helper()
	body := `{"seed":"1","token_a":"` + tokenA.Hex() + `","token_b":"` + tokenB.Hex() +
		`","decimals_a":6,"decimals_b":6,"amount_a":"1000","amount_b":"1000","fee_bps":30}`
	rec := s.do(t, http.MethodPost, "/pools", owner, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var pool PoolResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pool))
	return pool
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ResponseError {
	t.Helper()
	var resp ResponseError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestInitializeAndGet(t *testing.T) {
	s := newTestServer(t)
	pool := s.initialize(t)
	require.Equal(t, s.poolID.Hex(), pool.ID)
	require.Equal(t, "1000", pool.ReserveA)
	require.Equal(t, "1000", pool.TotalShares)
	require.Equal(t, "active", pool.Status)
	require.Equal(t, "1", pool.SpotPrice)

	rec := s.do(t, http.MethodGet, "/pools/"+s.poolID.Hex(), common.Address{}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/pools", common.Address{}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var pools []PoolResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pools))
	require.Len(t, pools, 1)

	body := `{"seed":"1","token_a":"` + tokenA.Hex() + `","token_b":"` + tokenB.Hex() +
		`","decimals_a":6,"decimals_b":6,"amount_a":"1000","amount_b":"1000","fee_bps":30}`
	rec = s.do(t, http.MethodPost, "/pools", owner, body)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestSwapSlippageOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.initialize(t)
	base := "/pools/" + s.poolID.Hex()

	rec := s.do(t, http.MethodGet, base+"/quote?direction=a_to_b&amount_in=100", common.Address{}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var q quoteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &q))
	require.Equal(t, "90", q.AmountOut)
	require.Equal(t, "0", q.Fee)
	require.Equal(t, "0.3", q.FeeExact)

	rec = s.do(t, http.MethodPost, base+"/swap", trader, `{"direction":"a_to_b","amount_in":"100","min_amount_out":"91"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "SlippageExceeded", decodeError(t, rec).Code)

	rec = s.do(t, http.MethodPost, base+"/swap", trader, `{"direction":"a_to_b","amount_in":"100","min_amount_out":"90"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var swap swapResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &swap))
	require.Equal(t, "90", swap.AmountOut)
	require.Equal(t, "1100", swap.Pool.ReserveA)
	require.Equal(t, "910", swap.Pool.ReserveB)

	require.Equal(t, uint64(90), s.ledger.Balance(custody.Key{Pool: s.poolID, Asset: model.AssetB, Account: trader}))
}

func TestDepositAndWithdrawOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.initialize(t)
	base := "/pools/" + s.poolID.Hex()

	rec := s.do(t, http.MethodPost, base+"/deposit", owner, `{"desired_a":"800","desired_b":"900","min_a":"0","min_b":"0"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var dep liquidityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dep))
	require.Equal(t, "800", dep.Shares)
	require.Equal(t, "800", dep.AmountA)
	require.Equal(t, "800", dep.AmountB)

	rec = s.do(t, http.MethodPost, base+"/deposit", owner, `{"shares":"100","desired_a":"100","desired_b":"100"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, base+"/withdraw", owner, `{"shares":"1900","min_a":"0","min_b":"0"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var wd liquidityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &wd))
	require.Equal(t, "1900", wd.AmountA)
	require.Equal(t, "0", wd.Pool.TotalShares)

	rec = s.do(t, http.MethodPost, base+"/withdraw", trader, `{"shares":"1"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "InsufficientBalance", decodeError(t, rec).Code)
}

func TestUpdateAuthorityAndLock(t *testing.T) {
	s := newTestServer(t)
	s.initialize(t)
	base := "/pools/" + s.poolID.Hex()

	rec := s.do(t, http.MethodPost, base+"/update", trader, `{"locked":true}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "InvalidAuthority", decodeError(t, rec).Code)

	rec = s.do(t, http.MethodPost, base+"/update", owner, `{"locked":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, base+"/swap", trader, `{"direction":"a_to_b","amount_in":"100","min_amount_out":"0"}`)
	require.Equal(t, http.StatusLocked, rec.Code)
	require.Equal(t, "PoolLocked", decodeError(t, rec).Code)

	rec = s.do(t, http.MethodPost, base+"/update", owner, `{"fee_bps":10001}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "InvalidFee", decodeError(t, rec).Code)

	rec = s.do(t, http.MethodPost, base+"/update", owner, `{"locked":false,"fee_bps":100}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var pool PoolResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pool))
	require.False(t, pool.Locked)
	require.Equal(t, uint16(100), pool.FeeBps)
}

func TestRequestValidation(t *testing.T) {
	s := newTestServer(t)
	s.initialize(t)
	base := "/pools/" + s.poolID.Hex()

	rec := s.do(t, http.MethodPost, base+"/swap", common.Address{}, `{"direction":"a_to_b","amount_in":"1"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/pools/0x1234", common.Address{}, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	missing := model.PoolID(99, tokenA, tokenB, owner)
	rec = s.do(t, http.MethodGet, "/pools/"+missing.Hex(), common.Address{}, "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, base+"/quote?direction=up&amount_in=1", common.Address{}, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// The trader holds no B.
	rec = s.do(t, http.MethodPost, base+"/swap", trader, `{"direction":"b_to_a","amount_in":"10","min_amount_out":"0"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/healthcheck", common.Address{}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/metrics", common.Address{}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "amm_http_requests_total")
}
