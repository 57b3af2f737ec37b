package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/checkout-api/internal/catalog"
)

// ItemStore persists catalog items in Postgres.
type ItemStore struct {
	Pool *pgxpool.Pool
}

func NewItemStore(pool *pgxpool.Pool) *ItemStore {
	return &ItemStore{Pool: pool}
}

const itemColumns = `id, name, description, unit_price, created_at`

func (s *ItemStore) InsertItem(ctx context.Context, item catalog.Item) (catalog.Item, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO items (id, name, description, unit_price)
		VALUES ($1, $2, $3, $4)
		RETURNING `+itemColumns,
		item.ID, item.Name, item.Description, item.UnitPrice)
	created, err := scanItem(row)
	if err != nil {
		return catalog.Item{}, fmt.Errorf("insert item: %w", err)
	}
	return created, nil
}

func (s *ItemStore) ListItems(ctx context.Context, limit, offset int32) ([]catalog.Item, int64, error) {
	var total int64
	if err := s.Pool.QueryRow(ctx, `SELECT count(*) FROM items`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count items: %w", err)
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT `+itemColumns+`
		FROM items
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := make([]catalog.Item, 0, limit)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list items: %w", err)
	}
	return items, total, nil
}

func (s *ItemStore) GetItem(ctx context.Context, id uuid.UUID) (catalog.Item, error) {
	return getItem(ctx, s.Pool, id)
}

func getItem(ctx context.Context, q querier, id uuid.UUID) (catalog.Item, error) {
	row := q.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.Item{}, catalog.ErrNotFound
		}
		return catalog.Item{}, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

func scanItem(row pgx.Row) (catalog.Item, error) {
	var item catalog.Item
	err := row.Scan(&item.ID, &item.Name, &item.Description, &item.UnitPrice, &item.CreatedAt)
	return item, err
}
