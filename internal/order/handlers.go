package order

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/checkout-api/internal/common"
	"github.com/noah-isme/checkout-api/internal/pricing"
)

// Handler exposes order aggregate endpoints.
type Handler struct {
	Svc *Service
}

// Create opens an empty draft order.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	ord, err := h.Svc.CreateDraft(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create order", nil)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": orderView(ord)})
}

// Get returns an order with its computed pricing breakdown.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	ord, err := h.Svc.Get(r.Context(), orderID)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": orderView(ord)})
}

type addLineRequest struct {
	ItemID   uuid.UUID `json:"itemId"`
	Quantity int32     `json:"quantity"`
}

// AddLine appends a line to a draft order.
func (h *Handler) AddLine(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	var req addLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "malformed request body", nil)
		return
	}
	ord, err := h.Svc.AddLine(r.Context(), orderID, req.ItemID, req.Quantity)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": orderView(ord)})
}

type attachRuleRequest struct {
	RuleID uuid.UUID `json:"ruleId"`
}

// AttachDiscount attaches a discount rule; stale references are ignored.
func (h *Handler) AttachDiscount(w http.ResponseWriter, r *http.Request) {
	h.attachRule(w, r, pricing.RoleDiscount)
}

// AttachTax attaches a tax rule; stale references are ignored.
func (h *Handler) AttachTax(w http.ResponseWriter, r *http.Request) {
	h.attachRule(w, r, pricing.RoleTax)
}

func (h *Handler) attachRule(w http.ResponseWriter, r *http.Request, role pricing.Role) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	var req attachRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "malformed request body", nil)
		return
	}
	ord, err := h.Svc.AttachRule(r.Context(), orderID, role, req.RuleID)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": orderView(ord)})
}

// writeOrderError maps domain errors onto the error taxonomy: unknown
// ids and bad quantities are validation failures, missing orders are 404,
// post-session mutation is a conflict, anything else is opaque.
func writeOrderError(w http.ResponseWriter, err error) {
	var unknownItem *UnknownItemError
	var badQty *InvalidQuantityError
	switch {
	case errors.As(err, &unknownItem):
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", unknownItem.Error(), nil)
	case errors.As(err, &badQty):
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", badQty.Error(), nil)
	case errors.Is(err, ErrNoLines):
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "at least one line is required", nil)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
	case errors.Is(err, ErrSessionAttached):
		common.JSONError(w, http.StatusConflict, "CONFLICT", "order already has a payment session", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
	}
}

func orderView(ord Order) map[string]any {
	lines := make([]map[string]any, 0, len(ord.Lines))
	for _, l := range ord.Lines {
		lines = append(lines, map[string]any{
			"id":       l.ID,
			"itemId":   l.Item.ID,
			"name":     l.Item.Name,
			"quantity": l.Quantity,
			"unitPrice": map[string]any{
				"amount":  l.Item.UnitPrice,
				"display": pricing.Display(l.Item.UnitPrice),
			},
		})
	}
	summary := ord.Summary()
	view := map[string]any{
		"id":        ord.ID,
		"createdAt": ord.CreatedAt,
		"status":    ord.Status,
		"isPaid":    ord.IsPaid,
		"lines":     lines,
		"pricing": map[string]any{
			"subtotal": summary.Subtotal,
			"discount": summary.Discount,
			"tax":      summary.Tax,
			"total":    summary.Total,
			"display":  pricing.Display(summary.Total),
		},
	}
	if ord.Discount != nil {
		view["discountId"] = ord.Discount.ID
	}
	if ord.Tax != nil {
		view["taxId"] = ord.Tax.ID
	}
	if ord.PaymentSessionID != "" {
		view["paymentSessionId"] = ord.PaymentSessionID
	}
	return view
}
