package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"wallet-escrow-engine/config"
	"wallet-escrow-engine/internal/adapter/storage/memory"
	"wallet-escrow-engine/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestRouter wires the full router against the in-memory driver.
func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	wallets := memory.NewWalletStore()
	txns := memory.NewTransactionStore()
	deals := memory.NewDealStore()
	transactor := memory.NewTransactor()
	log := zerolog.Nop()
	payments := config.PaymentsConfig{PayeeAddress: "engine@upi", PayeeName: "WalletEngine", Currency: "INR"}

	locker := service.NewWalletLocker()
	ledger := service.NewLedgerService(wallets, txns, transactor, locker, nil, log)
	return SetupRouter(RouterDeps{
		Ledger:      ledger,
		Deposits:    service.NewDepositService(wallets, txns, transactor, locker, nil, nil, payments, log),
		Withdrawals: service.NewWithdrawalService(wallets, txns, transactor, locker, nil, log),
		Escrow:      service.NewEscrowService(deals, ledger, nil, log),
		Logger:      log,
	})
}

type envelope struct {
	Data      json.RawMessage `json:"data"`
	ErrorCode string          `json:"error_code"`
	Message   string          `json:"message"`
	RequestID string          `json:"request_id"`
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) (int, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w.Code, env
}

func decodeData(t *testing.T, env envelope, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, out))
}

func TestWalletEndpoints(t *testing.T) {
	r := newTestRouter(t)

	code, env := doJSON(t, r, http.MethodPost, "/api/v1/wallets", gin.H{"user_id": 100})
	require.Equal(t, http.StatusCreated, code)
	assert.NotEmpty(t, env.RequestID)

	var wallet struct {
		UserID  int64 `json:"user_id"`
		Balance int64 `json:"balance"`
	}
	decodeData(t, env, &wallet)
	assert.Equal(t, int64(100), wallet.UserID)
	assert.Equal(t, int64(0), wallet.Balance)

	// Credit then read back.
	code, _ = doJSON(t, r, http.MethodPost, "/api/v1/wallets/100/credit", gin.H{"amount": 5000, "description": "topup"})
	require.Equal(t, http.StatusCreated, code)

	code, env = doJSON(t, r, http.MethodGet, "/api/v1/wallets/100", nil)
	require.Equal(t, http.StatusOK, code)
	decodeData(t, env, &wallet)
	assert.Equal(t, int64(5000), wallet.Balance)

	// Debit more than the balance.
	code, env = doJSON(t, r, http.MethodPost, "/api/v1/wallets/100/debit", gin.H{"amount": 9000})
	assert.Equal(t, http.StatusPaymentRequired, code)
	assert.Equal(t, "WLT_002", env.ErrorCode)

	// Unknown wallet.
	code, env = doJSON(t, r, http.MethodGet, "/api/v1/wallets/777", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "WLT_003", env.ErrorCode)

	// Malformed user id in path.
	code, env = doJSON(t, r, http.MethodGet, "/api/v1/wallets/abc", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "WLT_001", env.ErrorCode)
}

func TestTransferEndpoint(t *testing.T) {
	r := newTestRouter(t)

	code, _ := doJSON(t, r, http.MethodPost, "/api/v1/wallets/1/credit", gin.H{"amount": 1000})
	require.Equal(t, http.StatusCreated, code)

	code, env := doJSON(t, r, http.MethodPost, "/api/v1/transfers", gin.H{
		"from_user_id": 1,
		"to_user_id":   2,
		"amount":       400,
		"description":  "split bill",
	})
	require.Equal(t, http.StatusCreated, code)

	var result struct {
		Debit  struct{ UserID int64 `json:"user_id"` } `json:"debit"`
		Credit struct{ UserID int64 `json:"user_id"` } `json:"credit"`
	}
	decodeData(t, env, &result)
	assert.Equal(t, int64(1), result.Debit.UserID)
	assert.Equal(t, int64(2), result.Credit.UserID)

	// Validation failure: missing amount.
	code, env = doJSON(t, r, http.MethodPost, "/api/v1/transfers", gin.H{"from_user_id": 1, "to_user_id": 2})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "WLT_001", env.ErrorCode)
}

func TestTransactionListEndpoint(t *testing.T) {
	r := newTestRouter(t)

	for i := 0; i < 5; i++ {
		code, _ := doJSON(t, r, http.MethodPost, "/api/v1/wallets/1/credit", gin.H{"amount": 100, "description": fmt.Sprintf("credit %d", i)})
		require.Equal(t, http.StatusCreated, code)
	}

	code, env := doJSON(t, r, http.MethodGet, "/api/v1/wallets/1/transactions?page=2&page_size=2", nil)
	require.Equal(t, http.StatusOK, code)

	var list struct {
		Items      []json.RawMessage `json:"items"`
		Total      int64             `json:"total"`
		Page       int               `json:"page"`
		PageSize   int               `json:"page_size"`
		TotalPages int               `json:"total_pages"`
	}
	decodeData(t, env, &list)
	assert.Len(t, list.Items, 2)
	assert.Equal(t, int64(5), list.Total)
	assert.Equal(t, 2, list.Page)
	assert.Equal(t, 3, list.TotalPages)
}

func TestDepositEndpoints(t *testing.T) {
	r := newTestRouter(t)

	code, env := doJSON(t, r, http.MethodPost, "/api/v1/deposits", gin.H{"user_id": 50, "amount": 7500})
	require.Equal(t, http.StatusCreated, code)

	var ref struct {
		Reference string `json:"reference"`
		PayLink   string `json:"pay_link"`
	}
	decodeData(t, env, &ref)
	assert.Len(t, ref.Reference, 8)
	assert.Contains(t, ref.PayLink, "upi://pay?")

	code, env = doJSON(t, r, http.MethodPost, "/api/v1/deposits/"+ref.Reference+"/confirm", nil)
	require.Equal(t, http.StatusOK, code)

	var txn struct {
		Kind   string `json:"kind"`
		Status string `json:"status"`
	}
	decodeData(t, env, &txn)
	assert.Equal(t, "CREDIT", txn.Kind)
	assert.Equal(t, "COMPLETED", txn.Status)

	// Confirming again is a duplicate.
	code, env = doJSON(t, r, http.MethodPost, "/api/v1/deposits/"+ref.Reference+"/confirm", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "WLT_004", env.ErrorCode)

	// Malformed reference is rejected before storage.
	code, env = doJSON(t, r, http.MethodPost, "/api/v1/deposits/NOPE/confirm", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "WLT_001", env.ErrorCode)
}

func TestWithdrawalEndpoints(t *testing.T) {
	r := newTestRouter(t)

	code, _ := doJSON(t, r, http.MethodPost, "/api/v1/wallets/5/credit", gin.H{"amount": 1000})
	require.Equal(t, http.StatusCreated, code)

	code, env := doJSON(t, r, http.MethodPost, "/api/v1/withdrawals", gin.H{
		"user_id":        5,
		"amount":         600,
		"payout_address": "user@upi",
	})
	require.Equal(t, http.StatusCreated, code)

	var request struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	decodeData(t, env, &request)
	assert.Equal(t, "PENDING", request.Status)

	// Held amount is gone from the balance.
	code, env = doJSON(t, r, http.MethodGet, "/api/v1/wallets/5", nil)
	require.Equal(t, http.StatusOK, code)
	var wallet struct {
		Balance int64 `json:"balance"`
	}
	decodeData(t, env, &wallet)
	assert.Equal(t, int64(400), wallet.Balance)

	// Pending queue shows the request.
	code, env = doJSON(t, r, http.MethodGet, "/api/v1/withdrawals/pending", nil)
	require.Equal(t, http.StatusOK, code)
	var pending []json.RawMessage
	decodeData(t, env, &pending)
	assert.Len(t, pending, 1)

	// Approve completes it.
	code, env = doJSON(t, r, http.MethodPost, "/api/v1/withdrawals/"+request.ID+"/approve", nil)
	require.Equal(t, http.StatusOK, code)
	decodeData(t, env, &request)
	assert.Equal(t, "COMPLETED", request.Status)

	// Rejecting an approved request conflicts.
	code, env = doJSON(t, r, http.MethodPost, "/api/v1/withdrawals/"+request.ID+"/reject", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "WLT_004", env.ErrorCode)

	// Invalid payout address fails validation.
	code, env = doJSON(t, r, http.MethodPost, "/api/v1/withdrawals", gin.H{
		"user_id":        5,
		"amount":         100,
		"payout_address": "not an address",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "WLT_001", env.ErrorCode)

	// Invalid transaction id in path.
	code, env = doJSON(t, r, http.MethodPost, "/api/v1/withdrawals/not-a-uuid/approve", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "WLT_001", env.ErrorCode)
}

func TestDealEndpoints(t *testing.T) {
	r := newTestRouter(t)

	// Fund the buyer.
	code, _ := doJSON(t, r, http.MethodPost, "/api/v1/wallets/100/credit", gin.H{"amount": 10000})
	require.Equal(t, http.StatusCreated, code)

	code, env := doJSON(t, r, http.MethodPost, "/api/v1/deals", gin.H{
		"buyer_id":    100,
		"seller_id":   200,
		"amount":      5000,
		"description": "logo design",
	})
	require.Equal(t, http.StatusCreated, code)

	var deal struct {
		DealID string `json:"deal_id"`
		Status string `json:"status"`
	}
	decodeData(t, env, &deal)
	assert.Equal(t, "PENDING", deal.Status)

	// Buyer cannot accept their own offer.
	code, env = doJSON(t, r, http.MethodPost, "/api/v1/deals/"+deal.DealID+"/accept", gin.H{"actor_id": 100})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "ESC_001", env.ErrorCode)

	// Seller accepts, buyer pays, buyer releases.
	code, env = doJSON(t, r, http.MethodPost, "/api/v1/deals/"+deal.DealID+"/accept", gin.H{"actor_id": 200})
	require.Equal(t, http.StatusOK, code)
	decodeData(t, env, &deal)
	assert.Equal(t, "ACCEPTED", deal.Status)

	code, env = doJSON(t, r, http.MethodPost, "/api/v1/deals/"+deal.DealID+"/pay", gin.H{"actor_id": 100})
	require.Equal(t, http.StatusOK, code)
	decodeData(t, env, &deal)
	assert.Equal(t, "FUNDED", deal.Status)

	code, env = doJSON(t, r, http.MethodPost, "/api/v1/deals/"+deal.DealID+"/release", gin.H{"actor_id": 100})
	require.Equal(t, http.StatusOK, code)
	decodeData(t, env, &deal)
	assert.Equal(t, "COMPLETED", deal.Status)

	// Seller got paid.
	code, env = doJSON(t, r, http.MethodGet, "/api/v1/wallets/200", nil)
	require.Equal(t, http.StatusOK, code)
	var wallet struct {
		Balance int64 `json:"balance"`
	}
	decodeData(t, env, &wallet)
	assert.Equal(t, int64(5000), wallet.Balance)

	// Deal listings.
	code, env = doJSON(t, r, http.MethodGet, "/api/v1/users/200/deals", nil)
	require.Equal(t, http.StatusOK, code)
	var deals []json.RawMessage
	decodeData(t, env, &deals)
	assert.Len(t, deals, 1)

	// Completed deal rejects further transitions.
	code, env = doJSON(t, r, http.MethodPost, "/api/v1/deals/"+deal.DealID+"/dispute", gin.H{"actor_id": 200})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "ESC_002", env.ErrorCode)
}

func TestDealDisputeResolution(t *testing.T) {
	r := newTestRouter(t)

	code, _ := doJSON(t, r, http.MethodPost, "/api/v1/wallets/100/credit", gin.H{"amount": 5000})
	require.Equal(t, http.StatusCreated, code)

	code, env := doJSON(t, r, http.MethodPost, "/api/v1/deals", gin.H{
		"buyer_id":  100,
		"seller_id": 200,
		"amount":    5000,
	})
	require.Equal(t, http.StatusCreated, code)

	var deal struct {
		DealID string `json:"deal_id"`
		Status string `json:"status"`
	}
	decodeData(t, env, &deal)

	for _, step := range []struct {
		path string
		body gin.H
	}{
		{"/accept", gin.H{"actor_id": 200}},
		{"/pay", gin.H{"actor_id": 100}},
		{"/dispute", gin.H{"actor_id": 100}},
	} {
		code, env = doJSON(t, r, http.MethodPost, "/api/v1/deals/"+deal.DealID+step.path, step.body)
		require.Equal(t, http.StatusOK, code, step.path)
	}

	// Unknown resolution is rejected.
	code, env = doJSON(t, r, http.MethodPost, "/api/v1/deals/"+deal.DealID+"/resolve", gin.H{"resolution": "KEEP_IT"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = doJSON(t, r, http.MethodPost, "/api/v1/deals/"+deal.DealID+"/resolve", gin.H{"resolution": "REFUND_BUYER"})
	require.Equal(t, http.StatusOK, code)
	decodeData(t, env, &deal)
	assert.Equal(t, "RESOLVED", deal.Status)

	// Buyer got the refund.
	code, env = doJSON(t, r, http.MethodGet, "/api/v1/wallets/100", nil)
	require.Equal(t, http.StatusOK, code)
	var wallet struct {
		Balance int64 `json:"balance"`
	}
	decodeData(t, env, &wallet)
	assert.Equal(t, int64(5000), wallet.Balance)
}

func TestHealthEndpoint(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
