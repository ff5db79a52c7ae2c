package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tbourn/pix-panel/internal/domain"
	"github.com/tbourn/pix-panel/internal/http/middleware"
	"github.com/tbourn/pix-panel/internal/services"
)

// PurchasePhotoRequest names the photo to buy.
type PurchasePhotoRequest struct {
	PhotoID string `json:"photo_id" binding:"required,uuid" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
}

// CreatePhotoRequest adds a photo to the catalogue.
type CreatePhotoRequest struct {
	Title    string          `json:"title" binding:"required,max=255" example:"Sunset"`
	ImageURL string          `json:"image_url" binding:"required,url" example:"https://cdn.example.com/p/1.jpg"`
	Price    decimal.Decimal `json:"price" swaggertype:"number" example:"9.90"`
}

// SetPhotoActiveRequest toggles catalogue visibility.
type SetPhotoActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// CatalogResponse lists active photos for the viewer.
type CatalogResponse struct {
	Envelope
	Photos []services.CatalogItem `json:"photos"`
}

// PurchasedResponse lists the viewer's photos.
type PurchasedResponse struct {
	Envelope
	Photos []domain.Photo `json:"photos"`
}

// PurchaseResponse reports a completed purchase.
type PurchaseResponse struct {
	Envelope
	Purchase    *domain.PhotoPurchase `json:"purchase"`
	Transaction LedgerEntryView       `json:"transaction"`
	Balance     Money                 `json:"balance"`
}

// PhotoResponse wraps one photo.
type PhotoResponse struct {
	Envelope
	Photo *domain.Photo `json:"photo"`
}

// ListPhotos godoc
// @ID          listPhotos
// @Summary     Photo catalogue
// @Description Lists active photos, flagging the ones the current user owns.
// @Tags        Photos
// @Produce     json
// @Success     200  {object}  handlers.CatalogResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Router      /photos [get]
func (h *Handlers) ListPhotos(c *gin.Context) {
	items, err := h.photos.Catalog(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, CatalogResponse{Envelope: succeed(""), Photos: items})
}

// PurchasedPhotos godoc
// @ID          purchasedPhotos
// @Summary     Photos owned by the current user
// @Tags        Photos
// @Produce     json
// @Success     200  {object}  handlers.PurchasedResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Router      /photos/purchased [get]
func (h *Handlers) PurchasedPhotos(c *gin.Context) {
	items, err := h.photos.Purchased(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, PurchasedResponse{Envelope: succeed(""), Photos: items})
}

// PurchasePhoto godoc
// @ID          purchasePhoto
// @Summary     Buy a photo with the wallet balance
// @Description Debits the price and grants the photo atomically. A second purchase of the same photo is rejected.
// @Tags        Photos
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.PurchasePhotoRequest  true  "Photo to buy"
// @Success     201  {object}  handlers.PurchaseResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Insufficient balance, inactive or already purchased"
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /photos/purchase [post]
func (h *Handlers) PurchasePhoto(c *gin.Context) {
	var req PurchasePhotoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "photo_id must be a UUID")
		return
	}
	res, err := h.photos.Purchase(c.Request.Context(), middleware.UserID(c), req.PhotoID)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, PurchaseResponse{
		Envelope:    succeed("photo purchased"),
		Purchase:    res.Purchase,
		Transaction: ledgerView(*res.Transaction),
		Balance:     money(res.BalanceCents),
	})
}

// CreatePhoto godoc
// @ID          createPhoto
// @Summary     Add a photo to the catalogue
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.CreatePhotoRequest  true  "Photo"
// @Success     201  {object}  handlers.PhotoResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Router      /admin/photos [post]
func (h *Handlers) CreatePhoto(c *gin.Context) {
	var req CreatePhotoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "title and a valid image_url are required")
		return
	}
	cents, err := toCents(req.Price)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeInvalidAmount, err.Error())
		return
	}
	p, err := h.photos.Create(c.Request.Context(), req.Title, req.ImageURL, cents)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, PhotoResponse{Envelope: succeed("photo created"), Photo: p})
}

// SetPhotoActive godoc
// @ID          setPhotoActive
// @Summary     Show or hide a photo
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Param       id    path  string                          true  "Photo id"  format(uuid)
// @Param       body  body  handlers.SetPhotoActiveRequest  true  "Visibility"
// @Success     200  {object}  handlers.Envelope
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /admin/photos/{id}/active [patch]
func (h *Handlers) SetPhotoActive(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "photo id must be a UUID")
		return
	}
	var req SetPhotoActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "active flag required")
		return
	}
	if err := h.photos.SetActive(c.Request.Context(), id, *req.Active); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, succeed("photo updated"))
}
