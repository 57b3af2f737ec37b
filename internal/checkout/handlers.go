package checkout

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/checkout-api/internal/catalog"
	"github.com/noah-isme/checkout-api/internal/common"
	"github.com/noah-isme/checkout-api/internal/order"
	"github.com/noah-isme/checkout-api/internal/payment"
)

// Handler exposes the checkout endpoints.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type checkoutLine struct {
	ItemID   uuid.UUID `json:"item_id" validate:"required"`
	Quantity int32     `json:"quantity" validate:"required,min=1"`
}

type checkoutRequest struct {
	Items      []checkoutLine `json:"items" validate:"required,min=1,dive"`
	DiscountID *uuid.UUID     `json:"discount_id"`
	TaxID      *uuid.UUID     `json:"tax_id"`
}

// CheckoutItem opens a session for one catalog item without creating an order.
func (h *Handler) CheckoutItem(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid item id", nil)
		return
	}
	session, err := h.Svc.CheckoutItem(r.Context(), itemID)
	if err != nil {
		writeCheckoutError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"id": session.ID, "url": session.URL})
}

// CheckoutOrder creates an order from the posted lines and opens a session
// for it in one request.
func (h *Handler) CheckoutOrder(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "malformed request body", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(req); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid checkout payload", err.Error())
			return
		}
	}
	params := order.CreateParams{DiscountID: req.DiscountID, TaxID: req.TaxID}
	for _, line := range req.Items {
		params.Lines = append(params.Lines, order.LineInput{ItemID: line.ItemID, Quantity: line.Quantity})
	}
	ord, session, err := h.Svc.CheckoutOrder(r.Context(), params)
	if err != nil {
		writeCheckoutError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{
		"id":       session.ID,
		"url":      session.URL,
		"order_id": ord.ID,
	})
}

// CheckoutExisting opens a session for a previously assembled draft order.
func (h *Handler) CheckoutExisting(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	ord, session, err := h.Svc.CheckoutExisting(r.Context(), orderID)
	if err != nil {
		writeCheckoutError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"id":       session.ID,
		"url":      session.URL,
		"order_id": ord.ID,
	})
}

// Success acknowledges a completed provider redirect.
func (h *Handler) Success(w http.ResponseWriter, r *http.Request) {
	common.JSON(w, http.StatusOK, map[string]any{"status": "success"})
}

// Cancel acknowledges an aborted provider redirect.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	common.JSON(w, http.StatusOK, map[string]any{"status": "cancelled"})
}

// writeCheckoutError maps checkout failures onto the error taxonomy. A
// gateway failure reports 400 with the order left committed in
// SESSION_FAILED, so the client can retry the same order.
func writeCheckoutError(w http.ResponseWriter, err error) {
	var unknownItem *order.UnknownItemError
	var badQty *order.InvalidQuantityError
	var gatewayErr *payment.GatewayError
	switch {
	case errors.As(err, &unknownItem):
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", unknownItem.Error(), nil)
	case errors.As(err, &badQty):
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", badQty.Error(), nil)
	case errors.Is(err, order.ErrNoLines):
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "at least one line is required", nil)
	case errors.Is(err, order.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
	case errors.Is(err, catalog.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "item not found", nil)
	case errors.As(err, &gatewayErr):
		common.JSONError(w, http.StatusBadRequest, "GATEWAY", "payment session could not be created", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
	}
}
