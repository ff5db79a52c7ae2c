package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/tbourn/pix-panel/internal/http/middleware"
	"github.com/tbourn/pix-panel/internal/services"
)

func Test_fail_500_LogsAndBody(t *testing.T) {
	r := gin.New()

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-500")
		middleware.WithLogger(c, &logger)
		c.Next()
	})
	r.GET("/boom", func(c *gin.Context) {
		fail(c, http.StatusInternalServerError, "internal_error", "kaboom")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.Success || resp.RequestID != "rid-500" || resp.Code != "internal_error" || resp.Message != "kaboom" {
		t.Fatalf("unexpected body: %+v", resp)
	}
	if !strings.Contains(buf.String(), `"level":"error"`) {
		t.Fatalf("expected error log, got: %s", buf.String())
	}
}

func Test_failErr_Mapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{services.ErrInvalidSignature, http.StatusUnauthorized, ErrCodeInvalidSignature},
		{services.ErrPaymentNotFound, http.StatusNotFound, ErrCodeNotFound},
		{services.ErrNotCancellable, http.StatusBadRequest, ErrCodeConflict},
		{fmt.Errorf("%w: too small", services.ErrInvalidAmount), http.StatusBadRequest, ErrCodeInvalidAmount},
		{services.ErrInsufficientBalance, http.StatusBadRequest, ErrCodeInsufficientFunds},
		{services.ErrAlreadyPurchased, http.StatusBadRequest, ErrCodeAlreadyPurchased},
		{services.ErrInvalidWithdrawal, http.StatusBadRequest, ErrCodeInvalidInput},
		{services.ErrProviderFailure, http.StatusBadGateway, ErrCodeUpstream},
		{fmt.Errorf("%w: sql closed", services.ErrUnavailable), http.StatusServiceUnavailable, ErrCodeUnavailable},
		{errors.New("disk on fire"), http.StatusInternalServerError, ErrCodeInternal},
	}
	for _, tc := range cases {
		r := gin.New()
		r.GET("/", func(c *gin.Context) { failErr(c, tc.err) })
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		var resp ErrorResponse
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
		if w.Code != tc.status || resp.Code != tc.code {
			t.Fatalf("%v: got %d/%s; want %d/%s", tc.err, w.Code, resp.Code, tc.status, tc.code)
		}
		if strings.Contains(resp.Message, "disk on fire") || strings.Contains(resp.Message, "sql closed") {
			t.Fatalf("internal detail leaked: %q", resp.Message)
		}
	}
}

func Test_clampPagination(t *testing.T) {
	cases := map[string][2]int{
		"":                       {1, 20},
		"?page=3&page_size=5":    {3, 5},
		"?page=0&page_size=0":    {1, 1},
		"?page=x&page_size=1000": {1, 100},
	}
	for q, want := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/"+q, nil)
		p, ps := clampPagination(c)
		if p != want[0] || ps != want[1] {
			t.Fatalf("%q: got (%d,%d); want %v", q, p, ps, want)
		}
	}
	if got := newPagination(2, 10, 25); got.TotalPages != 3 || !got.HasNext {
		t.Fatalf("newPagination = %+v", got)
	}
	if got := newPagination(3, 10, 25); got.HasNext {
		t.Fatalf("last page reports next: %+v", got)
	}
}

func Test_toCents(t *testing.T) {
	good := map[string]int64{"100": 10000, "100.5": 10050, "0.01": 1, "1234.56": 123456}
	for in, want := range good {
		got, err := toCents(decimal.RequireFromString(in))
		if err != nil || got != want {
			t.Fatalf("toCents(%s) = %d, %v; want %d", in, got, err, want)
		}
	}
	for _, in := range []string{"0", "-1", "0.001", "1.999"} {
		if _, err := toCents(decimal.RequireFromString(in)); err == nil {
			t.Fatalf("toCents(%s) accepted", in)
		}
	}
	if m := money(10050); m.Amount != "100.50" || m.Formatted != "R$ 100,50" {
		t.Fatalf("money = %+v", m)
	}
}
