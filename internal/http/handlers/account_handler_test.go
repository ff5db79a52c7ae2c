package handlers

import (
	"net/http"
	"testing"

	"github.com/tbourn/pix-panel/internal/domain"
)

func TestPhotos_CatalogPurchaseFlow(t *testing.T) {
	e := newEnv(t)
	e.seedUser("u1", 1000)

	var created PhotoResponse
	w := e.do(http.MethodPost, "/admin/photos", "admin",
		`{"title":"Sunset","image_url":"https://cdn.example.com/1.jpg","price":"9.90"}`, &created)
	if w.Code != http.StatusCreated || created.Photo == nil || created.Photo.PriceCents != 990 {
		t.Fatalf("create photo: %d %s", w.Code, w.Body.String())
	}
	e.expectError(e.do(http.MethodPost, "/admin/photos", "admin", `{"title":"x","image_url":"not a url","price":1}`, nil),
		http.StatusBadRequest, ErrCodeBadRequest)

	var catalog CatalogResponse
	e.do(http.MethodGet, "/photos", "u1", nil, &catalog)
	if len(catalog.Photos) != 1 || catalog.Photos[0].Purchased {
		t.Fatalf("catalog = %+v", catalog.Photos)
	}

	var bought PurchaseResponse
	w = e.do(http.MethodPost, "/photos/purchase", "u1", map[string]string{"photo_id": created.Photo.ID}, &bought)
	if w.Code != http.StatusCreated || bought.Balance.Cents != 10 || bought.Transaction.Type != domain.EntryDebit {
		t.Fatalf("purchase: %d %s", w.Code, w.Body.String())
	}
	e.expectError(e.do(http.MethodPost, "/photos/purchase", "u1", map[string]string{"photo_id": created.Photo.ID}, nil),
		http.StatusBadRequest, ErrCodeAlreadyPurchased)

	var owned PurchasedResponse
	e.do(http.MethodGet, "/photos/purchased", "u1", nil, &owned)
	if len(owned.Photos) != 1 || owned.Photos[0].ID != created.Photo.ID {
		t.Fatalf("purchased = %+v", owned.Photos)
	}

	if w := e.do(http.MethodPatch, "/admin/photos/"+created.Photo.ID+"/active", "admin", `{"active":false}`, nil); w.Code != http.StatusOK {
		t.Fatalf("deactivate: %d %s", w.Code, w.Body.String())
	}
	e.do(http.MethodGet, "/photos", "u1", nil, &catalog)
	if len(catalog.Photos) != 0 {
		t.Fatalf("inactive photo listed")
	}
	e.expectError(e.do(http.MethodPatch, "/admin/photos/nope/active", "admin", `{"active":true}`, nil), http.StatusBadRequest, ErrCodeBadRequest)
	e.expectError(e.do(http.MethodPatch, "/admin/photos/"+created.Photo.ID+"/active", "admin", `{}`, nil), http.StatusBadRequest, ErrCodeBadRequest)
}

func TestPhotos_InsufficientBalance(t *testing.T) {
	e := newEnv(t)
	e.seedUser("u1", 100)

	var created PhotoResponse
	e.do(http.MethodPost, "/admin/photos", "admin", `{"title":"Big","image_url":"https://cdn.example.com/2.jpg","price":5}`, &created)

	e.expectError(e.do(http.MethodPost, "/photos/purchase", "u1", map[string]string{"photo_id": created.Photo.ID}, nil),
		http.StatusBadRequest, ErrCodeInsufficientFunds)
	e.expectError(e.do(http.MethodPost, "/photos/purchase", "u1", `{"photo_id":"x"}`, nil), http.StatusBadRequest, ErrCodeBadRequest)

	var bal BalanceResponse
	e.do(http.MethodGet, "/user/balance", "u1", nil, &bal)
	if bal.Balance.Cents != 100 {
		t.Fatalf("balance = %d", bal.Balance.Cents)
	}
}

func TestWallet_AdminAdjust(t *testing.T) {
	e := newEnv(t)
	e.seedUser("u1", 0)

	var res LedgerEntryResponse
	w := e.do(http.MethodPost, "/admin/users/u1/balance", "admin", `{"type":"credit","amount":"25.00"}`, &res)
	if w.Code != http.StatusOK || res.Transaction.BalanceAfter.Cents != 2500 || res.Transaction.Description != "Ajuste administrativo R$ 25,00" {
		t.Fatalf("adjust: %d %s", w.Code, w.Body.String())
	}
	e.expectError(e.do(http.MethodPost, "/admin/users/u1/balance", "admin", `{"type":"debit","amount":30}`, nil),
		http.StatusBadRequest, ErrCodeInsufficientFunds)
	e.expectError(e.do(http.MethodPost, "/admin/users/u1/balance", "admin", `{"type":"bonus","amount":1}`, nil),
		http.StatusBadRequest, ErrCodeBadRequest)
	e.expectError(e.do(http.MethodPost, "/admin/users/ghost/balance", "admin", `{"type":"credit","amount":1}`, nil),
		http.StatusNotFound, ErrCodeNotFound)
	e.expectError(e.do(http.MethodGet, "/user/balance", "ghost", nil, nil), http.StatusNotFound, ErrCodeNotFound)
}

func TestWithdrawals_RequestReviewProcess(t *testing.T) {
	e := newEnv(t)
	e.seedUser("u1", 10000)

	body := `{"amount":"40.00","pix_key":"529.982.247-25","pix_key_type":"cpf"}`
	var first WithdrawalResponse
	w := e.do(http.MethodPost, "/user/withdrawals", "u1", body, &first, "Idempotency-Key", "wd-1")
	if w.Code != http.StatusCreated || first.Withdrawal.Status != domain.WithdrawalPending || first.Withdrawal.PixKey != "52998224725" {
		t.Fatalf("request: %d %s", w.Code, w.Body.String())
	}

	var replay WithdrawalResponse
	w = e.do(http.MethodPost, "/user/withdrawals", "u1", body, &replay, "Idempotency-Key", "wd-1")
	if w.Code != http.StatusOK || !replay.Replayed || replay.Withdrawal.ID != first.Withdrawal.ID {
		t.Fatalf("replay: %d %s", w.Code, w.Body.String())
	}

	var bal BalanceResponse
	e.do(http.MethodGet, "/user/balance", "u1", nil, &bal)
	if bal.Balance.Cents != 6000 {
		t.Fatalf("held balance = %d", bal.Balance.Cents)
	}

	var mine ListWithdrawalsResponse
	e.do(http.MethodGet, "/user/withdrawals", "u1", nil, &mine)
	if len(mine.Withdrawals) != 1 || mine.Stats != nil {
		t.Fatalf("mine = %+v", mine)
	}
	var one WithdrawalResponse
	if w := e.do(http.MethodGet, "/user/withdrawals/"+first.Withdrawal.ID, "u1", nil, &one); w.Code != http.StatusOK {
		t.Fatalf("get: %d", w.Code)
	}
	e.expectError(e.do(http.MethodGet, "/user/withdrawals/"+first.Withdrawal.ID, "u2", nil, nil), http.StatusNotFound, ErrCodeNotFound)

	var queue ListWithdrawalsResponse
	e.do(http.MethodGet, "/admin/withdrawals?status=pending", "admin", nil, &queue)
	if len(queue.Withdrawals) != 1 || len(queue.Stats) != 1 || queue.Stats[0].Total.Cents != 4000 {
		t.Fatalf("queue = %+v", queue)
	}
	e.expectError(e.do(http.MethodGet, "/admin/withdrawals?status=bogus", "admin", nil, nil), http.StatusBadRequest, ErrCodeInvalidInput)

	id := first.Withdrawal.ID
	e.expectError(e.do(http.MethodPost, "/admin/withdrawals/"+id+"/process", "admin", `{"status":"completed"}`, nil),
		http.StatusBadRequest, ErrCodeConflict)
	e.expectError(e.do(http.MethodPost, "/admin/withdrawals/"+id+"/review", "admin", `{"decision":"maybe"}`, nil),
		http.StatusBadRequest, ErrCodeBadRequest)

	var reviewed WithdrawalResponse
	e.do(http.MethodPost, "/admin/withdrawals/"+id+"/review", "admin", `{"decision":"approve","notes":"ok"}`, &reviewed)
	if reviewed.Withdrawal.Status != domain.WithdrawalApproved || reviewed.Withdrawal.ReviewedBy == nil || *reviewed.Withdrawal.ReviewedBy != "admin" {
		t.Fatalf("review = %+v", reviewed.Withdrawal)
	}

	var failed WithdrawalResponse
	e.do(http.MethodPost, "/admin/withdrawals/"+id+"/process", "admin", `{"status":"failed"}`, &failed)
	if failed.Withdrawal.Status != domain.WithdrawalFailed {
		t.Fatalf("process = %+v", failed.Withdrawal)
	}
	e.do(http.MethodGet, "/user/balance", "u1", nil, &bal)
	if bal.Balance.Cents != 10000 {
		t.Fatalf("refund missing, balance = %d", bal.Balance.Cents)
	}
}

func TestWithdrawals_BodyValidation(t *testing.T) {
	e := newEnv(t)
	e.seedUser("u1", 10000)

	e.expectError(e.do(http.MethodPost, "/user/withdrawals", "u1", `{"amount":10,"pix_key":"123.456.789-00","pix_key_type":"cpf"}`, nil),
		http.StatusBadRequest, ErrCodeInvalidPixKey)
	e.expectError(e.do(http.MethodPost, "/user/withdrawals", "u1", `{"amount":10,"pix_key":"a@b.co","pix_key_type":"iban"}`, nil),
		http.StatusBadRequest, ErrCodeBadRequest)
	e.expectError(e.do(http.MethodPost, "/user/withdrawals", "u1", `{"amount":0,"pix_key":"a@b.co","pix_key_type":"email"}`, nil),
		http.StatusBadRequest, ErrCodeInvalidAmount)
	e.expectError(e.do(http.MethodPost, "/user/withdrawals", "u1", `{"amount":500,"pix_key":"a@b.co","pix_key_type":"email"}`, nil),
		http.StatusBadRequest, ErrCodeInsufficientFunds)
}

func TestConfig_SetAndList(t *testing.T) {
	e := newEnv(t)

	var set ConfigResponse
	w := e.do(http.MethodPost, "/admin/config", "admin", `{"key":"maintenance_mode","value":"true","description":"switch"}`, &set)
	if w.Code != http.StatusOK || set.Config == nil || set.Config.UpdatedBy != "admin" {
		t.Fatalf("set: %d %s", w.Code, w.Body.String())
	}
	e.expectError(e.do(http.MethodPost, "/admin/config", "admin", `{"key":"Bad Key","value":"1"}`, nil), http.StatusBadRequest, ErrCodeInvalidInput)
	e.expectError(e.do(http.MethodPost, "/admin/config", "admin", `{"value":"1"}`, nil), http.StatusBadRequest, ErrCodeBadRequest)

	var list ConfigListResponse
	e.do(http.MethodGet, "/admin/config", "admin", nil, &list)
	if len(list.Configs) != 1 || list.Configs[0].Value != "true" {
		t.Fatalf("list = %+v", list.Configs)
	}
}
