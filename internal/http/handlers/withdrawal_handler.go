// Withdrawal HTTP handlers.
//
// Users request payouts to a PIX key; admins review (approve or reject) and
// then record payout progress (processing, completed or failed). The amount is
// held when the request is made and refunded on rejection or failure.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/tbourn/pix-panel/internal/domain"
	"github.com/tbourn/pix-panel/internal/http/middleware"
	"github.com/tbourn/pix-panel/internal/services"
)

// CreateWithdrawalRequest is a payout request.
type CreateWithdrawalRequest struct {
	Amount     decimal.Decimal `json:"amount" swaggertype:"number" example:"50.00"`
	PixKey     string          `json:"pix_key" binding:"required,max=140" example:"ana@example.com"`
	PixKeyType string          `json:"pix_key_type" binding:"required,oneof=cpf cnpj email phone random" example:"email"`
}

// ReviewWithdrawalRequest carries an admin decision.
type ReviewWithdrawalRequest struct {
	Decision string `json:"decision" binding:"required,oneof=approve reject approved rejected" example:"approve"`
	Notes    string `json:"notes" binding:"max=2000"`
}

// ProcessWithdrawalRequest records payout progress.
type ProcessWithdrawalRequest struct {
	Status string `json:"status" binding:"required,oneof=processing completed failed" example:"completed"`
	Notes  string `json:"notes" binding:"max=2000"`
}

// WithdrawalView is a withdrawal with its amount rendered for display.
type WithdrawalView struct {
	domain.Withdrawal
	Amount Money `json:"amount"`
}

func withdrawalView(w domain.Withdrawal) WithdrawalView {
	return WithdrawalView{Withdrawal: w, Amount: money(w.AmountCents)}
}

func withdrawalViews(in []domain.Withdrawal) []WithdrawalView {
	out := make([]WithdrawalView, 0, len(in))
	for _, w := range in {
		out = append(out, withdrawalView(w))
	}
	return out
}

// WithdrawalResponse wraps one withdrawal.
type WithdrawalResponse struct {
	Envelope
	Withdrawal WithdrawalView `json:"withdrawal"`
	Replayed   bool           `json:"replayed,omitempty"`
}

// ListWithdrawalsResponse wraps a page of withdrawals; Stats is set on the
// admin queue only.
type ListWithdrawalsResponse struct {
	Envelope
	Withdrawals []WithdrawalView  `json:"withdrawals"`
	Pagination  Pagination        `json:"pagination"`
	Stats       []StatusTotalView `json:"stats,omitempty"`
}

// RequestWithdrawal godoc
// @ID          requestWithdrawal
// @Summary     Request a payout
// @Description Holds the amount and queues the request for review. An Idempotency-Key makes retries return the original request.
// @Tags        Withdrawals
// @Accept      json
// @Produce     json
// @Param       Idempotency-Key  header  string                            false  "Client retry key"
// @Param       body             body    handlers.CreateWithdrawalRequest  true   "Payout"
// @Success     201  {object}  handlers.WithdrawalResponse
// @Success     200  {object}  handlers.WithdrawalResponse  "Replayed"
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Router      /user/withdrawals [post]
func (h *Handlers) RequestWithdrawal(c *gin.Context) {
	var req CreateWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if isPixKeyError(err) {
			fail(c, http.StatusBadRequest, ErrCodeInvalidPixKey, "pix_key is not valid for pix_key_type")
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "pix_key and pix_key_type (cpf, cnpj, email, phone, random) are required")
		return
	}
	cents, err := toCents(req.Amount)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeInvalidAmount, err.Error())
		return
	}
	key, _ := middleware.GetIdempotencyKey(c)

	w, replayed, err := h.withdrawals.Request(c.Request.Context(), middleware.UserID(c), services.WithdrawalRequest{
		AmountCents:    cents,
		PixKey:         req.PixKey,
		PixKeyType:     req.PixKeyType,
		IdempotencyKey: key,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	status, msg := http.StatusCreated, "withdrawal requested"
	if replayed {
		status, msg = http.StatusOK, "withdrawal already requested"
	}
	ok(c, status, WithdrawalResponse{Envelope: succeed(msg), Withdrawal: withdrawalView(*w), Replayed: replayed})
}

// ListMyWithdrawals godoc
// @ID          listMyWithdrawals
// @Summary     Current user's withdrawals
// @Tags        Withdrawals
// @Produce     json
// @Param       page       query  int  false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListWithdrawalsResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Router      /user/withdrawals [get]
func (h *Handlers) ListMyWithdrawals(c *gin.Context) {
	page, pageSize := clampPagination(c)
	items, total, err := h.withdrawals.ListMine(c.Request.Context(), middleware.UserID(c), page, pageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ListWithdrawalsResponse{
		Envelope:    succeed(""),
		Withdrawals: withdrawalViews(items),
		Pagination:  newPagination(page, pageSize, total),
	})
}

// GetWithdrawal godoc
// @ID          getWithdrawal
// @Summary     One of the current user's withdrawals
// @Tags        Withdrawals
// @Produce     json
// @Param       id  path  string  true  "Withdrawal id"
// @Success     200  {object}  handlers.WithdrawalResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /user/withdrawals/{id} [get]
func (h *Handlers) GetWithdrawal(c *gin.Context) {
	w, err := h.withdrawals.Get(c.Request.Context(), middleware.UserID(c), strings.TrimSpace(c.Param("id")))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, WithdrawalResponse{Envelope: succeed(""), Withdrawal: withdrawalView(*w)})
}

// AdminListWithdrawals godoc
// @ID          adminListWithdrawals
// @Summary     Withdrawal queue
// @Description Paginated withdrawals, optionally filtered by status, with count and amount per status.
// @Tags        Admin
// @Produce     json
// @Param       status     query  string  false  "Status filter"  Enums(pending, approved, rejected, processing, completed, failed)
// @Param       page       query  int     false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListWithdrawalsResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Router      /admin/withdrawals [get]
func (h *Handlers) AdminListWithdrawals(c *gin.Context) {
	page, pageSize := clampPagination(c)
	res, err := h.withdrawals.ListAll(c.Request.Context(), strings.TrimSpace(c.Query("status")), page, pageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ListWithdrawalsResponse{
		Envelope:    succeed(""),
		Withdrawals: withdrawalViews(res.Items),
		Pagination:  newPagination(page, pageSize, res.Total),
		Stats:       statsView(res.Stats),
	})
}

// ReviewWithdrawal godoc
// @ID          reviewWithdrawal
// @Summary     Approve or reject a withdrawal
// @Description Rejection refunds the held amount.
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Param       id    path  string                            true  "Withdrawal id"
// @Param       body  body  handlers.ReviewWithdrawalRequest  true  "Decision"
// @Success     200  {object}  handlers.WithdrawalResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid decision or state"
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /admin/withdrawals/{id}/review [post]
func (h *Handlers) ReviewWithdrawal(c *gin.Context) {
	var req ReviewWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "decision must be approve or reject")
		return
	}
	w, err := h.withdrawals.Review(c.Request.Context(), middleware.UserID(c), strings.TrimSpace(c.Param("id")), req.Decision, req.Notes)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, WithdrawalResponse{Envelope: succeed("withdrawal " + string(w.Status)), Withdrawal: withdrawalView(*w)})
}

// ProcessWithdrawal godoc
// @ID          processWithdrawal
// @Summary     Record payout progress
// @Description Moves an approved withdrawal to processing, completed or failed. Failure refunds the held amount.
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Param       id    path  string                             true  "Withdrawal id"
// @Param       body  body  handlers.ProcessWithdrawalRequest  true  "Progress"
// @Success     200  {object}  handlers.WithdrawalResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /admin/withdrawals/{id}/process [post]
func (h *Handlers) ProcessWithdrawal(c *gin.Context) {
	var req ProcessWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status must be processing, completed or failed")
		return
	}
	w, err := h.withdrawals.Process(c.Request.Context(), middleware.UserID(c), strings.TrimSpace(c.Param("id")), req.Status, req.Notes)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, WithdrawalResponse{Envelope: succeed("withdrawal " + string(w.Status)), Withdrawal: withdrawalView(*w)})
}
