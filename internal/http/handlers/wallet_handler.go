package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/tbourn/pix-panel/internal/domain"
	"github.com/tbourn/pix-panel/internal/http/middleware"
)

// BalanceResponse reports the current balance.
type BalanceResponse struct {
	Envelope
	Balance Money `json:"balance"`
}

// LedgerEntryView is a wallet transaction with display amounts.
type LedgerEntryView struct {
	domain.WalletTransaction
	Amount       Money `json:"amount"`
	BalanceAfter Money `json:"balance_after"`
}

// WalletResponse is the balance plus a page of the ledger.
type WalletResponse struct {
	Envelope
	Balance      Money             `json:"balance"`
	Transactions []LedgerEntryView `json:"transactions"`
	Pagination   Pagination        `json:"pagination"`
}

// AdjustBalanceRequest is an admin credit or debit.
type AdjustBalanceRequest struct {
	Type        string          `json:"type" binding:"required,oneof=credit debit" example:"credit"`
	Amount      decimal.Decimal `json:"amount" swaggertype:"number" example:"25.00"`
	Description string          `json:"description" binding:"max=255"`
}

// LedgerEntryResponse wraps one ledger entry.
type LedgerEntryResponse struct {
	Envelope
	Transaction LedgerEntryView `json:"transaction"`
}

func ledgerView(wt domain.WalletTransaction) LedgerEntryView {
	return LedgerEntryView{
		WalletTransaction: wt,
		Amount:            money(wt.AmountCents),
		BalanceAfter:      money(wt.BalanceAfterCents),
	}
}

// Balance godoc
// @ID          balance
// @Summary     Current balance
// @Tags        Wallet
// @Produce     json
// @Success     200  {object}  handlers.BalanceResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     503  {object}  handlers.ErrorResponse
// @Router      /user/balance [get]
func (h *Handlers) Balance(c *gin.Context) {
	cents, err := h.wallet.Balance(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, BalanceResponse{Envelope: succeed(""), Balance: money(cents)})
}

// Wallet godoc
// @ID          wallet
// @Summary     Balance and ledger
// @Tags        Wallet
// @Produce     json
// @Param       page       query  int  false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.WalletResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     503  {object}  handlers.ErrorResponse
// @Router      /user/wallet [get]
func (h *Handlers) Wallet(c *gin.Context) {
	page, pageSize := clampPagination(c)
	balance, items, total, err := h.wallet.Ledger(c.Request.Context(), middleware.UserID(c), page, pageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	views := make([]LedgerEntryView, 0, len(items))
	for _, wt := range items {
		views = append(views, ledgerView(wt))
	}
	ok(c, http.StatusOK, WalletResponse{
		Envelope:     succeed(""),
		Balance:      money(balance),
		Transactions: views,
		Pagination:   newPagination(page, pageSize, total),
	})
}

// AdjustBalance godoc
// @ID          adjustBalance
// @Summary     Credit or debit a user's wallet
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Param       id    path  string                         true  "User id"
// @Param       body  body  handlers.AdjustBalanceRequest  true  "Adjustment"
// @Success     200  {object}  handlers.LedgerEntryResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /admin/users/{id}/balance [post]
func (h *Handlers) AdjustBalance(c *gin.Context) {
	var req AdjustBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "type must be credit or debit")
		return
	}
	cents, err := toCents(req.Amount)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeInvalidAmount, err.Error())
		return
	}
	userID := strings.TrimSpace(c.Param("id"))
	wt, err := h.wallet.Adjust(c.Request.Context(), middleware.UserID(c), userID, req.Type, cents, req.Description)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, LedgerEntryResponse{Envelope: succeed("balance adjusted"), Transaction: ledgerView(*wt)})
}
