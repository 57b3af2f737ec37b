package pricing

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/checkout-api/internal/common"
)

// Handler exposes pricing rule management endpoints.
type Handler struct {
	Svc *Service
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "pricing service not configured", nil)
		return
	}
	var in CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "malformed request body", nil)
		return
	}
	rule, err := h.Svc.Create(r.Context(), in)
	if err != nil {
		var verrs validator.ValidationErrors
		switch {
		case errors.As(err, &verrs):
			common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid rule payload", verrs.Error())
		case errors.Is(err, ErrInvalidValue):
			common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		default:
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create rule", nil)
		}
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": rule})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "pricing service not configured", nil)
		return
	}
	var role *Role
	if raw := r.URL.Query().Get("role"); raw != "" {
		parsed := Role(raw)
		if parsed != RoleDiscount && parsed != RoleTax {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION", "role must be discount or tax", nil)
			return
		}
		role = &parsed
	}
	rules, err := h.Svc.List(r.Context(), role)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list rules", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rules})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "pricing service not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "ruleID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid rule id", nil)
		return
	}
	rule, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrRuleNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "rule not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load rule", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rule})
}
