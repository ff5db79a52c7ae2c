package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/pix-panel/internal/domain"
	"github.com/tbourn/pix-panel/internal/http/middleware"
)

// SetConfigRequest creates or replaces a setting.
type SetConfigRequest struct {
	Key         string `json:"key" binding:"required,max=128" example:"maintenance_mode"`
	Value       string `json:"value" example:"false"`
	Description string `json:"description" binding:"max=255"`
}

// ConfigListResponse lists every setting.
type ConfigListResponse struct {
	Envelope
	Configs []domain.AdminConfig `json:"configs"`
}

// ConfigResponse wraps one setting.
type ConfigResponse struct {
	Envelope
	Config *domain.AdminConfig `json:"config"`
}

// ListConfig godoc
// @ID          listConfig
// @Summary     Operational settings
// @Tags        Admin
// @Produce     json
// @Success     200  {object}  handlers.ConfigListResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     503  {object}  handlers.ErrorResponse
// @Router      /admin/config [get]
func (h *Handlers) ListConfig(c *gin.Context) {
	items, err := h.config.List(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ConfigListResponse{Envelope: succeed(""), Configs: items})
}

// SetConfig godoc
// @ID          setConfig
// @Summary     Create or update a setting
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.SetConfigRequest  true  "Setting"
// @Success     200  {object}  handlers.ConfigResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Router      /admin/config [post]
func (h *Handlers) SetConfig(c *gin.Context) {
	var req SetConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "key required")
		return
	}
	cfg, err := h.config.Set(c.Request.Context(), middleware.UserID(c), req.Key, req.Value, req.Description)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ConfigResponse{Envelope: succeed("setting saved"), Config: cfg})
}
