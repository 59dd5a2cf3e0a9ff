package httpapi

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
)

func signWebhook(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (env *routerEnv) deliverWebhook(t *testing.T, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/cashfree", bytes.NewReader(body))
	req.Header.Set("x-webhook-timestamp", "1756100000")
	req.Header.Set("x-webhook-signature", signature)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func TestRouter_WalletRequiresAuth(t *testing.T) {
	env := newRouterEnv(t)

	rec := env.do(t, http.MethodGet, "/v1/wallet", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func TestRouter_DepositSettledByWebhook(t *testing.T) {
	env := newRouterEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/wallet/deposits", "user-1", map[string]any{
		"amount": "500",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	pending := decodeDataObject(t, rec)
	if pending["status"] != "pending" {
		t.Fatalf("expected pending deposit, got %v", pending["status"])
	}
	reference, _ := pending["reference"].(string)
	if reference == "" {
		t.Fatal("expected a ledger reference on the pending deposit")
	}

	// Balance must not move until the gateway confirms.
	rec = env.do(t, http.MethodGet, "/v1/wallet", "user-1", nil)
	if got := decodeDataObject(t, rec)["balance"]; got != "0" {
		t.Fatalf("expected zero balance before confirmation, got %v", got)
	}

	body := []byte(`{"type":"PAYMENT_SUCCESS_WEBHOOK","data":{"order":{"order_id":"` + reference + `"},"payment":{"cf_payment_id":9912345}}}`)
	rec = env.deliverWebhook(t, body, signWebhook(testWebhookSecret, "1756100000", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	ack := decodeDataObject(t, rec)
	if handled, _ := ack["handled"].(bool); !handled {
		t.Fatalf("expected webhook to settle the deposit, got %v", ack)
	}

	rec = env.do(t, http.MethodGet, "/v1/wallet", "user-1", nil)
	if got := decodeDataObject(t, rec)["balance"]; got != "500" {
		t.Fatalf("expected balance 500 after confirmation, got %v", got)
	}

	rec = env.do(t, http.MethodGet, "/v1/wallet/transactions/by-reference/"+reference, "user-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	settled := decodeDataObject(t, rec)
	if settled["status"] != "completed" {
		t.Fatalf("expected completed transaction, got %v", settled["status"])
	}
	if settled["externalRef"] != "9912345" {
		t.Fatalf("expected gateway payment id stamped, got %v", settled["externalRef"])
	}
}

func TestRouter_DepositRejectsUnknownFields(t *testing.T) {
	env := newRouterEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/wallet/deposits", "user-1", map[string]any{
		"amount": "50",
		"bogus":  true,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if reason := errorReason(t, rec); reason != "invalidInput" {
		t.Fatalf("expected reason invalidInput, got %q", reason)
	}
}

func TestRouter_DepositBlockedInEmbargoedRegion(t *testing.T) {
	env := newRouterEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/wallet/deposits", bytes.NewReader([]byte(`{"amount":"50"}`)))
	req.Header.Set("Authorization", "Bearer user-1")
	req.Header.Set("Fly-Client-Country", "CU")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d: %s", rec.Code, rec.Body.String())
	}
	if reason := errorReason(t, rec); reason != "forbidden" {
		t.Fatalf("expected reason forbidden, got %q", reason)
	}
}

func TestRouter_WithdrawalInsufficientFunds(t *testing.T) {
	env := newRouterEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/wallet/withdrawals", "user-1", map[string]any{
		"amount": "75",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d: %s", rec.Code, rec.Body.String())
	}
	if reason := errorReason(t, rec); reason != "insufficientFunds" {
		t.Fatalf("expected reason insufficientFunds, got %q", reason)
	}
}

func TestRouter_TransferMovesMoney(t *testing.T) {
	env := newRouterEnv(t)
	env.fund(t, "user-a", 300)

	rec := env.do(t, http.MethodPost, "/v1/wallet/transfers", "user-a", map[string]any{
		"toUserId": "user-b",
		"amount":   "120",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	result := decodeDataObject(t, rec)
	debit, _ := result["debit"].(map[string]any)
	if debit["status"] != "completed" {
		t.Fatalf("expected completed debit leg, got %v", debit)
	}

	rec = env.do(t, http.MethodGet, "/v1/wallet", "user-a", nil)
	if got := decodeDataObject(t, rec)["balance"]; got != "180" {
		t.Fatalf("expected sender balance 180, got %v", got)
	}
	rec = env.do(t, http.MethodGet, "/v1/wallet", "user-b", nil)
	if got := decodeDataObject(t, rec)["balance"]; got != "120" {
		t.Fatalf("expected recipient balance 120, got %v", got)
	}
}

func TestRouter_ListTransactionsRejectsUnknownType(t *testing.T) {
	env := newRouterEnv(t)

	rec := env.do(t, http.MethodGet, "/v1/wallet/transactions?type=lottery", "user-1", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_TransactionBelongsToCaller(t *testing.T) {
	env := newRouterEnv(t)
	env.fund(t, "user-a", 100)

	rec := env.do(t, http.MethodGet, "/v1/wallet/transactions", "user-a", nil)
	transactions := decodeDataList(t, rec)
	if len(transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(transactions))
	}
	grant, _ := transactions[0].(map[string]any)
	txID, _ := grant["id"].(string)
	if txID == "" {
		t.Fatal("expected transaction id")
	}

	// Another user must not see it through the id route.
	rec = env.do(t, http.MethodGet, "/v1/wallet/transactions/"+txID, "user-b", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for foreign transaction, got %d", rec.Code)
	}
}
