// PIX charge HTTP handlers.
//
// This file exposes the charge endpoints:
//   - POST /pix/create                (issue or reuse a charge)
//   - GET  /pix/active                (latest unexpired active charge)
//   - GET  /pix/payments              (history, paginated)
//   - GET  /pix/status/{id}           (refresh one charge)
//   - POST /pix/cancel/{id}           (cancel one charge)
//   - POST /pix/cancel-all-pending    (cancel every active charge)
//   - POST /pix/expire-payments       (sweep, scheduler or admin)
//   - GET  /admin/pix/check-expired   (sweep dry run)
//   - GET  /admin/payments/stats      (per-status aggregates)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/tbourn/pix-panel/internal/domain"
	"github.com/tbourn/pix-panel/internal/http/middleware"
	"github.com/tbourn/pix-panel/internal/repo"
)

//
// DTOs
//

// CreatePixRequest is the JSON payload for a new charge. Amount is in BRL and
// accepts a number or a string ("100.50").
type CreatePixRequest struct {
	Amount decimal.Decimal `json:"amount" swaggertype:"number" example:"100.50"`
}

// PaymentView is a payment with its amount rendered for display.
type PaymentView struct {
	domain.Payment
	Amount Money `json:"amount"`
}

func paymentView(p *domain.Payment) *PaymentView {
	if p == nil {
		return nil
	}
	return &PaymentView{Payment: *p, Amount: money(p.AmountCents)}
}

// PaymentResponse wraps a single payment.
type PaymentResponse struct {
	Envelope
	Payment *PaymentView `json:"payment"`
}

// ListPaymentsResponse wraps a page of payments.
type ListPaymentsResponse struct {
	Envelope
	Payments   []PaymentView `json:"payments"`
	Pagination Pagination    `json:"pagination"`
}

// CountResponse reports how many records an operation touched.
type CountResponse struct {
	Envelope
	Count int64 `json:"count" example:"3"`
}

// StatusTotalView is one row of a per-status aggregate.
type StatusTotalView struct {
	Status string `json:"status" example:"paid"`
	Count  int64  `json:"count" example:"12"`
	Total  Money  `json:"total"`
}

// StatsResponse wraps per-status aggregates.
type StatsResponse struct {
	Envelope
	Stats []StatusTotalView `json:"stats"`
}

func statsView(in []repo.StatusTotal) []StatusTotalView {
	out := make([]StatusTotalView, 0, len(in))
	for _, s := range in {
		out = append(out, StatusTotalView{Status: s.Status, Count: s.Count, Total: money(s.TotalCents)})
	}
	return out
}

//
// Handlers
//

// CreatePix godoc
// @ID          createPix
// @Summary     Create a PIX charge
// @Description Issues a charge for the current user. An Idempotency-Key replays the original payment; a user with an unexpired active charge gets that charge back.
// @Tags        PIX
// @Accept      json
// @Produce     json
// @Param       Idempotency-Key  header  string                     false  "Client retry key"
// @Param       body             body    handlers.CreatePixRequest  true   "Charge amount"
// @Success     201  {object}  handlers.PaymentResponse  "Created"
// @Success     200  {object}  handlers.PaymentResponse  "Existing charge returned"
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     502  {object}  handlers.ErrorResponse  "Provider unavailable"
// @Router      /pix/create [post]
func (h *Handlers) CreatePix(c *gin.Context) {
	var req CreatePixRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	cents, err := toCents(req.Amount)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeInvalidAmount, err.Error())
		return
	}
	key, _ := middleware.GetIdempotencyKey(c)

	p, created, err := h.pix.Create(c.Request.Context(), middleware.UserID(c), cents, key)
	if err != nil {
		failErr(c, err)
		return
	}
	status, msg := http.StatusOK, "existing charge"
	if created {
		status, msg = http.StatusCreated, "charge created"
	}
	ok(c, status, PaymentResponse{Envelope: succeed(msg), Payment: paymentView(p)})
}

// ActivePix godoc
// @ID          activePix
// @Summary     Current active charge
// @Description Returns the latest pending or awaiting charge that has not expired, or null.
// @Tags        PIX
// @Produce     json
// @Success     200  {object}  handlers.PaymentResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     503  {object}  handlers.ErrorResponse
// @Router      /pix/active [get]
func (h *Handlers) ActivePix(c *gin.Context) {
	p, err := h.pix.Active(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, PaymentResponse{Envelope: succeed(""), Payment: paymentView(p)})
}

// ListPix godoc
// @ID          listPix
// @Summary     Charge history
// @Tags        PIX
// @Produce     json
// @Param       page       query  int  false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListPaymentsResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     503  {object}  handlers.ErrorResponse
// @Router      /pix/payments [get]
func (h *Handlers) ListPix(c *gin.Context) {
	page, pageSize := clampPagination(c)
	items, total, err := h.pix.ListPage(c.Request.Context(), middleware.UserID(c), page, pageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	views := make([]PaymentView, 0, len(items))
	for i := range items {
		views = append(views, *paymentView(&items[i]))
	}
	ok(c, http.StatusOK, ListPaymentsResponse{
		Envelope:   succeed(""),
		Payments:   views,
		Pagination: newPagination(page, pageSize, total),
	})
}

// PixStatus godoc
// @ID          pixStatus
// @Summary     Refresh a charge
// @Description Looks the charge up by id, reference code or idempotent id. A stale charge is expired on read.
// @Tags        PIX
// @Produce     json
// @Param       id  path  string  true  "Payment id, reference code or idempotent id"
// @Success     200  {object}  handlers.PaymentResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /pix/status/{id} [get]
func (h *Handlers) PixStatus(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	p, err := h.pix.Status(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, PaymentResponse{Envelope: succeed(""), Payment: paymentView(p)})
}

// CancelPix godoc
// @ID          cancelPix
// @Summary     Cancel a charge
// @Tags        PIX
// @Produce     json
// @Param       id  path  string  true  "Payment id, reference code or idempotent id"
// @Success     200  {object}  handlers.PaymentResponse
// @Failure     400  {object}  handlers.ErrorResponse  "No longer cancellable"
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /pix/cancel/{id} [post]
func (h *Handlers) CancelPix(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	p, err := h.pix.Cancel(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, PaymentResponse{Envelope: succeed("charge cancelled"), Payment: paymentView(p)})
}

// CancelAllPix godoc
// @ID          cancelAllPix
// @Summary     Cancel every active charge of the current user
// @Tags        PIX
// @Produce     json
// @Success     200  {object}  handlers.CountResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Router      /pix/cancel-all-pending [post]
func (h *Handlers) CancelAllPix(c *gin.Context) {
	n, err := h.pix.CancelAllPending(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, CountResponse{Envelope: succeed("pending charges cancelled"), Count: n})
}

// ExpirePayments godoc
// @ID          expirePayments
// @Summary     Expire stale charges
// @Description Moves every pending or awaiting charge older than 30 minutes to expired. Safe to call repeatedly.
// @Tags        PIX
// @Produce     json
// @Param       X-Cron-Secret  header  string  false  "Scheduler secret, when configured"
// @Success     200  {object}  handlers.CountResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Router      /pix/expire-payments [post]
func (h *Handlers) ExpirePayments(c *gin.Context) {
	n, err := h.pix.ExpireStale(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, CountResponse{Envelope: succeed("stale charges expired"), Count: n})
}

// CheckExpired godoc
// @ID          checkExpired
// @Summary     Count stale charges
// @Description Reports how many charges the next sweep would expire.
// @Tags        Admin
// @Produce     json
// @Success     200  {object}  handlers.CountResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Router      /admin/pix/check-expired [get]
func (h *Handlers) CheckExpired(c *gin.Context) {
	n, err := h.pix.CountStale(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, CountResponse{Envelope: succeed(""), Count: n})
}

// PaymentStats godoc
// @ID          paymentStats
// @Summary     Charge aggregates per status
// @Tags        Admin
// @Produce     json
// @Success     200  {object}  handlers.StatsResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Router      /admin/payments/stats [get]
func (h *Handlers) PaymentStats(c *gin.Context) {
	stats, err := h.pix.Stats(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, StatsResponse{Envelope: succeed(""), Stats: statsView(stats)})
}
