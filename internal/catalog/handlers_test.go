package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/checkout-api/internal/pricing"
)

type memStore struct {
	items map[uuid.UUID]Item
	order []uuid.UUID
}

func newMemStore() *memStore {
	return &memStore{items: map[uuid.UUID]Item{}}
}

func (s *memStore) InsertItem(_ context.Context, item Item) (Item, error) {
	item.CreatedAt = time.Now()
	s.items[item.ID] = item
	s.order = append(s.order, item.ID)
	return item, nil
}

func (s *memStore) ListItems(_ context.Context, limit, offset int32) ([]Item, int64, error) {
	var out []Item
	for i := int(offset); i < len(s.order) && len(out) < int(limit); i++ {
		out = append(out, s.items[s.order[i]])
	}
	return out, int64(len(s.order)), nil
}

func (s *memStore) GetItem(_ context.Context, id uuid.UUID) (Item, error) {
	item, ok := s.items[id]
	if !ok {
		return Item{}, ErrNotFound
	}
	return item, nil
}

func newTestRouter(store *memStore) *chi.Mux {
	handler := &Handler{
		Svc:          &Service{Store: store, Validate: validator.New()},
		DefaultLimit: 20,
		MaxLimit:     100,
	}
	r := chi.NewRouter()
	r.Post("/items", handler.Create)
	r.Get("/items", handler.List)
	r.Get("/items/{itemID}", handler.Get)
	return r
}

func TestCreateItem(t *testing.T) {
	r := newTestRouter(newMemStore())

	body := bytes.NewBufferString(`{"name":"Classic Tee","description":"Cotton","unitPrice":1999}`)
	req := httptest.NewRequest(http.MethodPost, "/items", body)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		Data Item `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "Classic Tee", resp.Data.Name)
	require.Equal(t, pricing.Money(1999), resp.Data.UnitPrice)
	require.NotEqual(t, uuid.Nil, resp.Data.ID)
}

func TestCreateItemRejectsNegativePrice(t *testing.T) {
	r := newTestRouter(newMemStore())

	body := bytes.NewBufferString(`{"name":"Broken","unitPrice":-5}`)
	req := httptest.NewRequest(http.MethodPost, "/items", body)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "VALIDATION")
}

func TestGetItemDetail(t *testing.T) {
	store := newMemStore()
	item, err := store.InsertItem(context.Background(), Item{ID: uuid.New(), Name: "Mug", UnitPrice: 1250})
	require.NoError(t, err)

	r := newTestRouter(store)
	req := httptest.NewRequest(http.MethodGet, "/items/"+item.ID.String(), nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data struct {
			DisplayPrice string        `json:"displayPrice"`
			UnitPrice    pricing.Money `json:"unitPrice"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "12.50", resp.Data.DisplayPrice)
	require.Equal(t, pricing.Money(1250), resp.Data.UnitPrice)
}

func TestGetItemNotFound(t *testing.T) {
	r := newTestRouter(newMemStore())
	req := httptest.NewRequest(http.MethodGet, "/items/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "NOT_FOUND")
}

func TestListItemsPagination(t *testing.T) {
	store := newMemStore()
	for i := 0; i < 5; i++ {
		_, err := store.InsertItem(context.Background(), Item{ID: uuid.New(), Name: "Item", UnitPrice: 100})
		require.NoError(t, err)
	}

	r := newTestRouter(store)
	req := httptest.NewRequest(http.MethodGet, "/items?page=2&limit=2", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data       []Item `json:"data"`
		Pagination struct {
			Page       int `json:"page"`
			PerPage    int `json:"per_page"`
			TotalItems int `json:"total_items"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	require.Equal(t, 2, resp.Pagination.Page)
	require.Equal(t, 5, resp.Pagination.TotalItems)
}
