package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/pix-panel/internal/domain"
	"github.com/tbourn/pix-panel/internal/http/middleware"
)

// WebhookResponse acknowledges a provider notification.
type WebhookResponse struct {
	Envelope
	PaymentID string               `json:"payment_id"`
	Status    domain.PaymentStatus `json:"status" example:"paid"`
	Duplicate bool                 `json:"duplicate"`
}

// WebhookEventsResponse wraps a page of recorded deliveries.
type WebhookEventsResponse struct {
	Envelope
	Events     []domain.WebhookEvent `json:"events"`
	Pagination Pagination            `json:"pagination"`
}

// PrimePagWebhook godoc
// @ID          primepagWebhook
// @Summary     PrimePag payment notification
// @Description Verifies the md5 MAC and applies the reported status. Redeliveries are acknowledged without side effects.
// @Tags        Webhooks
// @Accept      json
// @Produce     json
// @Param       body  body  object  true  "Provider notification"
// @Success     200  {object}  handlers.WebhookResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Bad signature"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown reference code"
// @Failure     413  {object}  handlers.ErrorResponse
// @Router      /webhook/primepag [post]
func (h *Handlers) PrimePagWebhook(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxWebhookBody))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "notification too large")
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable body")
		return
	}

	res, err := h.webhook.Handle(c.Request.Context(), body)
	if err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("webhook rejected")
		failErr(c, err)
		return
	}
	msg := "processed"
	if res.Duplicate {
		msg = "already processed"
	}
	ok(c, http.StatusOK, WebhookResponse{
		Envelope:  succeed(msg),
		PaymentID: res.PaymentID,
		Status:    res.Status,
		Duplicate: res.Duplicate,
	})
}

// ListWebhookEvents godoc
// @ID          listWebhookEvents
// @Summary     Webhook delivery audit
// @Tags        Admin
// @Produce     json
// @Param       reference  query  string  false  "Filter by reference code"
// @Param       page       query  int     false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.WebhookEventsResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Router      /admin/webhook-events [get]
func (h *Handlers) ListWebhookEvents(c *gin.Context) {
	page, pageSize := clampPagination(c)
	ref := strings.TrimSpace(c.Query("reference"))
	items, total, err := h.webhook.ListEvents(c.Request.Context(), ref, page, pageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, WebhookEventsResponse{
		Envelope:   succeed(""),
		Events:     items,
		Pagination: newPagination(page, pageSize, total),
	})
}
