package catalog

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/checkout-api/internal/common"
)

// Handler exposes catalog endpoints.
type Handler struct {
	Svc          *Service
	DefaultLimit int32
	MaxLimit     int32
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	var in CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "malformed request body", nil)
		return
	}
	item, err := h.Svc.Create(r.Context(), in)
	if err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid item payload", verrs.Error())
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create item", nil)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": item})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	defaultLimit := h.DefaultLimit
	if defaultLimit <= 0 {
		defaultLimit = 20
	}
	page, perPage := common.ParsePagination(r, int(defaultLimit))
	if h.MaxLimit > 0 && perPage > int(h.MaxLimit) {
		perPage = int(h.MaxLimit)
	}
	offset := int32((page - 1) * perPage)
	items, total, err := h.Svc.List(r.Context(), int32(perPage), offset)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list items", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": items,
		"pagination": common.Pagination{
			Page:       page,
			PerPage:    perPage,
			TotalItems: int(total),
		},
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid item id", nil)
		return
	}
	item, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "item not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load item", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"id":           item.ID,
			"name":         item.Name,
			"description":  item.Description,
			"unitPrice":    item.UnitPrice,
			"displayPrice": item.DisplayPrice(),
			"createdAt":    item.CreatedAt,
		},
	})
}
