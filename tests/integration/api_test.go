package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"wallet-escrow-engine/config"
	httpHandler "wallet-escrow-engine/internal/adapter/http/handler"
	"wallet-escrow-engine/internal/adapter/storage/memory"
	redisStorage "wallet-escrow-engine/internal/adapter/storage/redis"
	"wallet-escrow-engine/internal/service"
	"wallet-escrow-engine/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testApp builds the full application stack on the in-memory storage driver
// with miniredis backing the settled-reference cache. This exercises the
// real HTTP layer, middleware, handlers, and services end-to-end.

type testApp struct {
	server *httptest.Server
	redis  *miniredis.Miniredis
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})

	wallets := memory.NewWalletStore()
	txns := memory.NewTransactionStore()
	deals := memory.NewDealStore()
	transactor := memory.NewTransactor()
	refCache := redisStorage.NewReferenceCache(rdb)
	log := logger.NewWithWriter("error", io.Discard)
	payments := config.PaymentsConfig{PayeeAddress: "engine@upi", PayeeName: "WalletEngine", Currency: "INR"}

	locker := service.NewWalletLocker()
	ledger := service.NewLedgerService(wallets, txns, transactor, locker, nil, log)
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		Ledger:      ledger,
		Deposits:    service.NewDepositService(wallets, txns, transactor, locker, refCache, nil, payments, log),
		Withdrawals: service.NewWithdrawalService(wallets, txns, transactor, locker, nil, log),
		Escrow:      service.NewEscrowService(deals, ledger, nil, log),
		Logger:      log,
	})

	return &testApp{
		server: httptest.NewServer(router),
		redis:  mr,
	}
}

func (a *testApp) close() {
	a.server.Close()
	a.redis.Close()
}

type apiResponse struct {
	Status    int
	Data      json.RawMessage
	ErrorCode string
}

func (a *testApp) call(t *testing.T, method, path string, body any) apiResponse {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var env struct {
		Data      json.RawMessage `json:"data"`
		ErrorCode string          `json:"error_code"`
	}
	require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	return apiResponse{Status: resp.StatusCode, Data: env.Data, ErrorCode: env.ErrorCode}
}

func (a *testApp) balance(t *testing.T, userID int64) int64 {
	t.Helper()
	resp := a.call(t, http.MethodGet, fmt.Sprintf("/api/v1/wallets/%d", userID), nil)
	require.Equal(t, http.StatusOK, resp.Status)
	var wallet struct {
		Balance int64 `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &wallet))
	return wallet.Balance
}

// Deposit lifecycle: issue reference, confirm once, re-confirm rejected.
func TestDepositLifecycle(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	resp := app.call(t, http.MethodPost, "/api/v1/deposits", map[string]any{"user_id": 1, "amount": 10000})
	require.Equal(t, http.StatusCreated, resp.Status)

	var ref struct {
		Reference string `json:"reference"`
		PayLink   string `json:"pay_link"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &ref))
	assert.Contains(t, ref.PayLink, "am=100.00")

	resp = app.call(t, http.MethodPost, "/api/v1/deposits/"+ref.Reference+"/confirm", nil)
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, int64(10000), app.balance(t, 1))

	// Settled reference cached in Redis.
	assert.True(t, app.redis.Exists("deposit:settled:"+ref.Reference))

	resp = app.call(t, http.MethodPost, "/api/v1/deposits/"+ref.Reference+"/confirm", nil)
	assert.Equal(t, http.StatusConflict, resp.Status)
	assert.Equal(t, "WLT_004", resp.ErrorCode)
	assert.Equal(t, int64(10000), app.balance(t, 1))
}

// Withdrawal lifecycle: request holds funds, reject refunds them, a fresh
// request approves cleanly.
func TestWithdrawalLifecycle(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	resp := app.call(t, http.MethodPost, "/api/v1/wallets/2/credit", map[string]any{"amount": 2000, "description": "seed"})
	require.Equal(t, http.StatusCreated, resp.Status)

	resp = app.call(t, http.MethodPost, "/api/v1/withdrawals", map[string]any{
		"user_id": 2, "amount": 1500, "payout_address": "user@upi",
	})
	require.Equal(t, http.StatusCreated, resp.Status)
	var request struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &request))
	assert.Equal(t, int64(500), app.balance(t, 2))

	resp = app.call(t, http.MethodPost, "/api/v1/withdrawals/"+request.ID+"/reject", nil)
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, int64(2000), app.balance(t, 2))

	resp = app.call(t, http.MethodPost, "/api/v1/withdrawals", map[string]any{
		"user_id": 2, "amount": 800, "payout_address": "user@upi",
	})
	require.Equal(t, http.StatusCreated, resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, &request))

	resp = app.call(t, http.MethodPost, "/api/v1/withdrawals/"+request.ID+"/approve", nil)
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, int64(1200), app.balance(t, 2))
}

// Full escrow happy path across the HTTP surface.
func TestEscrowLifecycle(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	resp := app.call(t, http.MethodPost, "/api/v1/wallets/10/credit", map[string]any{"amount": 8000})
	require.Equal(t, http.StatusCreated, resp.Status)

	resp = app.call(t, http.MethodPost, "/api/v1/deals", map[string]any{
		"buyer_id": 10, "seller_id": 20, "amount": 8000, "description": "site build",
	})
	require.Equal(t, http.StatusCreated, resp.Status)
	var deal struct {
		DealID string `json:"deal_id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &deal))

	steps := []struct {
		path   string
		body   map[string]any
		status string
	}{
		{"/accept", map[string]any{"actor_id": 20}, "ACCEPTED"},
		{"/pay", map[string]any{"actor_id": 10}, "FUNDED"},
		{"/release", map[string]any{"actor_id": 10}, "COMPLETED"},
	}
	for _, step := range steps {
		resp = app.call(t, http.MethodPost, "/api/v1/deals/"+deal.DealID+step.path, step.body)
		require.Equal(t, http.StatusOK, resp.Status, step.path)
		require.NoError(t, json.Unmarshal(resp.Data, &deal))
		assert.Equal(t, step.status, deal.Status)
	}

	assert.Equal(t, int64(0), app.balance(t, 10))
	assert.Equal(t, int64(8000), app.balance(t, 20))
}

// Disputed escrow split: held funds divide between both parties.
func TestEscrowDisputeSplit(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	resp := app.call(t, http.MethodPost, "/api/v1/wallets/10/credit", map[string]any{"amount": 3001})
	require.Equal(t, http.StatusCreated, resp.Status)

	resp = app.call(t, http.MethodPost, "/api/v1/deals", map[string]any{
		"buyer_id": 10, "seller_id": 20, "amount": 3001,
	})
	require.Equal(t, http.StatusCreated, resp.Status)
	var deal struct {
		DealID string `json:"deal_id"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &deal))

	for _, step := range []struct {
		path string
		body map[string]any
	}{
		{"/accept", map[string]any{"actor_id": 20}},
		{"/pay", map[string]any{"actor_id": 10}},
		{"/dispute", map[string]any{"actor_id": 20}},
	} {
		resp = app.call(t, http.MethodPost, "/api/v1/deals/"+deal.DealID+step.path, step.body)
		require.Equal(t, http.StatusOK, resp.Status, step.path)
	}

	resp = app.call(t, http.MethodPost, "/api/v1/deals/"+deal.DealID+"/resolve", map[string]any{"resolution": "SPLIT"})
	require.Equal(t, http.StatusOK, resp.Status)

	assert.Equal(t, int64(1501), app.balance(t, 10))
	assert.Equal(t, int64(1500), app.balance(t, 20))
}
