package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/checkout-api/internal/pricing"
)

// ErrNotFound is returned when an item id does not resolve.
var ErrNotFound = errors.New("item not found")

// Item is a catalog entry. Items are immutable once referenced by an order
// line: there is no update path, so historical orders never reprice.
type Item struct {
	ID          uuid.UUID     `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	UnitPrice   pricing.Money `json:"unitPrice"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// DisplayPrice renders the unit price in major units for presentation.
func (i Item) DisplayPrice() string {
	return pricing.Display(i.UnitPrice)
}

// Store describes the persistence operations the catalog relies on.
type Store interface {
	InsertItem(ctx context.Context, item Item) (Item, error)
	ListItems(ctx context.Context, limit, offset int32) ([]Item, int64, error)
	GetItem(ctx context.Context, id uuid.UUID) (Item, error)
}

// CreateInput is the payload for registering a new item.
type CreateInput struct {
	Name        string        `json:"name" validate:"required,max=64"`
	Description string        `json:"description"`
	UnitPrice   pricing.Money `json:"unitPrice" validate:"min=0"`
}

// Service provides catalog reads with an optional cache in front of the
// store, plus item registration.
type Service struct {
	Store    Store
	Cache    *Cache
	Validate *validator.Validate
}

// Create validates and persists a new catalog item.
func (s *Service) Create(ctx context.Context, in CreateInput) (Item, error) {
	if s == nil || s.Store == nil {
		return Item{}, errors.New("catalog service not configured")
	}
	if s.Validate != nil {
		if err := s.Validate.Struct(in); err != nil {
			return Item{}, err
		}
	}
	item := Item{
		ID:          uuid.New(),
		Name:        in.Name,
		Description: in.Description,
		UnitPrice:   in.UnitPrice,
	}
	created, err := s.Store.InsertItem(ctx, item)
	if err != nil {
		return Item{}, fmt.Errorf("insert item: %w", err)
	}
	_ = s.Cache.SetJSON(ctx, itemCacheKey(created.ID), created)
	return created, nil
}

// List returns a page of catalog items and the total count.
func (s *Service) List(ctx context.Context, limit, offset int32) ([]Item, int64, error) {
	if s == nil || s.Store == nil {
		return nil, 0, errors.New("catalog service not configured")
	}
	return s.Store.ListItems(ctx, limit, offset)
}

// Get loads one item, consulting the cache first.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Item, error) {
	if s == nil || s.Store == nil {
		return Item{}, errors.New("catalog service not configured")
	}
	var cached Item
	if hit, err := s.Cache.GetJSON(ctx, itemCacheKey(id), &cached); err == nil && hit {
		return cached, nil
	}
	item, err := s.Store.GetItem(ctx, id)
	if err != nil {
		return Item{}, err
	}
	_ = s.Cache.SetJSON(ctx, itemCacheKey(id), item)
	return item, nil
}

func itemCacheKey(id uuid.UUID) string {
	return "catalog:item:" + id.String()
}
