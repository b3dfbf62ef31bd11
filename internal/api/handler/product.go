package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/priceguard/server/internal/api/respond"
	"github.com/priceguard/server/internal/product"
	"github.com/priceguard/server/internal/tracking"
)

// --------------------------------------------------------------------------
// Request bodies
// --------------------------------------------------------------------------

type verifyRequest struct {
	ProductURL string `json:"productUrl"`
}

type addProductRequest struct {
	ProductCode string `json:"productCode"`
	TargetPrice int    `json:"targetPrice"`
}

type deviceRequest struct {
	Token string `json:"token"`
}

// --------------------------------------------------------------------------
// Product endpoints
// --------------------------------------------------------------------------

// VerifyURL validates an 11st product URL and returns live product info.
// @Summary Verify a product URL
// @Tags product
// @Accept json
// @Produce json
// @Param body body verifyRequest true "Product URL"
// @Success 200 {object} product.Info
// @Failure 400 {object} respond.ErrorResponse
// @Router /product/verify [post]
func (h *Handler) VerifyURL(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body")
		return
	}

	info, err := h.svc.VerifyURL(r.Context(), req.ProductURL)
	if err != nil {
		if errors.Is(err, product.ErrInvalidURL) {
			respond.WriteError(w, http.StatusBadRequest, "INVALID_URL", "Not a valid product URL")
			return
		}
		h.internalError(w, "verify url", err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, info)
}

// AddProduct starts tracking a product for the authenticated user.
// @Summary Track a product
// @Tags product
// @Accept json
// @Produce json
// @Param body body addProductRequest true "Product code and target price"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Failure 409 {object} respond.ErrorResponse
// @Router /product [post]
func (h *Handler) AddProduct(w http.ResponseWriter, r *http.Request) {
	var req addProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductCode == "" {
		respond.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body")
		return
	}

	err := h.svc.AddTracking(r.Context(), UserID(r.Context()), req.ProductCode, req.TargetPrice)
	switch {
	case errors.Is(err, tracking.ErrAlreadyTracking):
		respond.WriteError(w, http.StatusConflict, "ALREADY_TRACKING", "Product already tracked")
	case errors.Is(err, product.ErrTargetPriceTooHigh):
		respond.WriteError(w, http.StatusBadRequest, "TARGET_PRICE_TOO_HIGH", "Target price exceeds maximum")
	case errors.Is(err, product.ErrProductNotFound):
		respond.WriteError(w, http.StatusBadRequest, "INVALID_PRODUCT", "Product could not be fetched")
	case err != nil:
		h.internalError(w, "add product", err)
	default:
		respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"message": "tracking started"})
	}
}

// TrackingList returns the authenticated user's tracked products.
// @Summary Tracking list
// @Tags product
// @Produce json
// @Success 200 {array} product.TrackedItem
// @Router /product/tracking [get]
func (h *Handler) TrackingList(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.TrackingList(r.Context(), UserID(r.Context()))
	if err != nil {
		h.internalError(w, "tracking list", err)
		return
	}
	if items == nil {
		items = []product.TrackedItem{}
	}
	respond.WriteJSON(w, http.StatusOK, items)
}

// Recommend returns the most tracked products with rank.
// @Summary Recommendation ranking
// @Tags product
// @Produce json
// @Success 200 {array} product.RecommendedItem
// @Router /product/recommend [get]
func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Recommend(r.Context())
	if err != nil {
		h.internalError(w, "recommend", err)
		return
	}
	if items == nil {
		items = []product.RecommendedItem{}
	}
	respond.WriteJSON(w, http.StatusOK, items)
}

// ProductDetails returns the detail view for one product.
// @Summary Product details
// @Tags product
// @Produce json
// @Param productCode path string true "Product code"
// @Success 200 {object} product.Details
// @Failure 404 {object} respond.ErrorResponse
// @Router /product/{productCode} [get]
func (h *Handler) ProductDetails(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "productCode")
	details, err := h.svc.GetDetails(r.Context(), UserID(r.Context()), code)
	if err != nil {
		if errors.Is(err, product.ErrProductNotFound) {
			respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", "Product not found")
			return
		}
		h.internalError(w, "product details", err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, details)
}

// UpdateTargetPrice changes the target price of a tracked product.
// @Summary Update target price
// @Tags product
// @Accept json
// @Produce json
// @Param body body addProductRequest true "Product code and new target price"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} respond.ErrorResponse
// @Router /product/target-price [patch]
func (h *Handler) UpdateTargetPrice(w http.ResponseWriter, r *http.Request) {
	var req addProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductCode == "" {
		respond.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body")
		return
	}

	err := h.svc.UpdateTargetPrice(r.Context(), UserID(r.Context()), req.ProductCode, req.TargetPrice)
	switch {
	case errors.Is(err, product.ErrProductNotFound), errors.Is(err, tracking.ErrNotTracking):
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", "Product not tracked")
	case errors.Is(err, product.ErrTargetPriceTooHigh):
		respond.WriteError(w, http.StatusBadRequest, "TARGET_PRICE_TOO_HIGH", "Target price exceeds maximum")
	case err != nil:
		h.internalError(w, "update target price", err)
	default:
		respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"message": "target price updated"})
	}
}

// DeleteProduct stops tracking a product.
// @Summary Stop tracking
// @Tags product
// @Produce json
// @Param productCode path string true "Product code"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} respond.ErrorResponse
// @Router /product/{productCode} [delete]
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "productCode")
	err := h.svc.StopTracking(r.Context(), UserID(r.Context()), code)
	switch {
	case errors.Is(err, product.ErrProductNotFound), errors.Is(err, tracking.ErrNotTracking):
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", "Product not tracked")
	case err != nil:
		h.internalError(w, "delete product", err)
	default:
		respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"message": "tracking stopped"})
	}
}

// RegisterDevice stores the authenticated user's push token.
// @Summary Register device token
// @Tags user
// @Accept json
// @Produce json
// @Param body body deviceRequest true "FCM device token"
// @Success 200 {object} map[string]interface{}
// @Router /user/device [put]
func (h *Handler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req deviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		respond.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body")
		return
	}
	if err := h.svc.RegisterDevice(r.Context(), UserID(r.Context()), req.Token); err != nil {
		h.internalError(w, "register device", err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"message": "device registered"})
}

// UnregisterDevice removes the authenticated user's push token.
// @Summary Unregister device token
// @Tags user
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /user/device [delete]
func (h *Handler) UnregisterDevice(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.UnregisterDevice(r.Context(), UserID(r.Context())); err != nil {
		h.internalError(w, "unregister device", err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"message": "device unregistered"})
}

func (h *Handler) internalError(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op+" failed", "error", err)
	respond.WriteError(w, http.StatusInternalServerError, "INTERNAL", "Internal server error")
}
