package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/checkout-api/internal/catalog"
	"github.com/noah-isme/checkout-api/internal/order"
	"github.com/noah-isme/checkout-api/internal/pricing"
)

// OrderStore persists order aggregates in Postgres. Multi-row writes run in
// a single transaction so no partially created order is ever visible.
type OrderStore struct {
	Pool *pgxpool.Pool
}

func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{Pool: pool}
}

func (s *OrderStore) InsertOrder(ctx context.Context) (order.Order, error) {
	ord := order.Order{ID: uuid.New(), Status: order.StatusEmpty}
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO orders (id, status)
		VALUES ($1, $2)
		RETURNING created_at`,
		ord.ID, ord.Status).Scan(&ord.CreatedAt)
	if err != nil {
		return order.Order{}, fmt.Errorf("insert order: %w", err)
	}
	return ord, nil
}

// CreateOrderWithLines creates the order, resolves and inserts every line,
// and attaches rule references in one transaction. An unknown item id rolls
// everything back. Rule references that do not resolve to an active rule of
// the right role are dropped rather than failing the creation.
func (s *OrderStore) CreateOrderWithLines(ctx context.Context, params order.CreateParams) (order.Order, error) {
	var ord order.Order
	err := withTx(ctx, s.Pool, func(tx pgx.Tx) error {
		ord = order.Order{ID: uuid.New(), Status: order.StatusPriced}
		err := tx.QueryRow(ctx, `
			INSERT INTO orders (id, status)
			VALUES ($1, $2)
			RETURNING created_at`,
			ord.ID, ord.Status).Scan(&ord.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for _, in := range params.Lines {
			line, err := insertLine(ctx, tx, ord.ID, in.ItemID, in.Quantity)
			if err != nil {
				return err
			}
			ord.Lines = append(ord.Lines, line)
		}

		if params.DiscountID != nil {
			rule, err := resolveActiveRule(ctx, tx, *params.DiscountID, pricing.RoleDiscount)
			if err != nil {
				return err
			}
			if rule != nil {
				if _, err := tx.Exec(ctx, `UPDATE orders SET discount_id = $2 WHERE id = $1`, ord.ID, rule.ID); err != nil {
					return fmt.Errorf("attach discount: %w", err)
				}
				ord.Discount = rule
			}
		}
		if params.TaxID != nil {
			rule, err := resolveActiveRule(ctx, tx, *params.TaxID, pricing.RoleTax)
			if err != nil {
				return err
			}
			if rule != nil {
				if _, err := tx.Exec(ctx, `UPDATE orders SET tax_id = $2 WHERE id = $1`, ord.ID, rule.ID); err != nil {
					return fmt.Errorf("attach tax: %w", err)
				}
				ord.Tax = rule
			}
		}
		return nil
	})
	if err != nil {
		return order.Order{}, err
	}
	return ord, nil
}

func (s *OrderStore) GetOrder(ctx context.Context, id uuid.UUID) (order.Order, error) {
	return getOrder(ctx, s.Pool, id)
}

// AddLine appends a line to an order that has no payment session yet and
// bumps an empty order to priced.
func (s *OrderStore) AddLine(ctx context.Context, orderID, itemID uuid.UUID, quantity int32) error {
	return withTx(ctx, s.Pool, func(tx pgx.Tx) error {
		if err := lockMutableOrder(ctx, tx, orderID); err != nil {
			return err
		}
		if _, err := insertLine(ctx, tx, orderID, itemID, quantity); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE orders SET status = $2 WHERE id = $1 AND status = $3`,
			orderID, order.StatusPriced, order.StatusEmpty)
		if err != nil {
			return fmt.Errorf("bump order status: %w", err)
		}
		return nil
	})
}

// AttachRule records a rule reference on an order without a session.
func (s *OrderStore) AttachRule(ctx context.Context, orderID uuid.UUID, role pricing.Role, ruleID uuid.UUID) error {
	column := "discount_id"
	if role == pricing.RoleTax {
		column = "tax_id"
	}
	return withTx(ctx, s.Pool, func(tx pgx.Tx) error {
		if err := lockMutableOrder(ctx, tx, orderID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE orders SET `+column+` = $2 WHERE id = $1`, orderID, ruleID)
		if err != nil {
			return fmt.Errorf("attach rule: %w", err)
		}
		return nil
	})
}

// AttachSession stores the gateway session id and marks the order created.
// Repeated attachment overwrites the previous session id.
func (s *OrderStore) AttachSession(ctx context.Context, orderID uuid.UUID, sessionID string) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE orders SET payment_session_id = $2, status = $3 WHERE id = $1`,
		orderID, sessionID, order.StatusSessionCreated)
	if err != nil {
		return fmt.Errorf("attach session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func (s *OrderStore) SetStatus(ctx context.Context, orderID uuid.UUID, status order.Status) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE orders SET status = $2 WHERE id = $1`, orderID, status)
	if err != nil {
		return fmt.Errorf("set order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// DeleteAbandonedDrafts removes orders created before the cutoff that have
// neither lines nor a payment session.
func (s *OrderStore) DeleteAbandonedDrafts(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.Pool.Exec(ctx, `
		DELETE FROM orders o
		WHERE o.payment_session_id IS NULL
		  AND o.created_at < $1
		  AND NOT EXISTS (SELECT 1 FROM order_lines l WHERE l.order_id = o.id)`,
		before)
	if err != nil {
		return 0, fmt.Errorf("delete abandoned drafts: %w", err)
	}
	return tag.RowsAffected(), nil
}

// lockMutableOrder row-locks the order and rejects mutation once a payment
// session id is attached.
func lockMutableOrder(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) error {
	var sessionID *string
	err := tx.QueryRow(ctx, `SELECT payment_session_id FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order.ErrNotFound
		}
		return fmt.Errorf("lock order: %w", err)
	}
	if sessionID != nil && *sessionID != "" {
		return order.ErrSessionAttached
	}
	return nil
}

func insertLine(ctx context.Context, tx pgx.Tx, orderID, itemID uuid.UUID, quantity int32) (order.Line, error) {
	item, err := getItem(ctx, tx, itemID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return order.Line{}, &order.UnknownItemError{ItemID: itemID}
		}
		return order.Line{}, err
	}
	line := order.Line{ID: uuid.New(), Item: item, Quantity: quantity}
	_, err = tx.Exec(ctx, `
		INSERT INTO order_lines (id, order_id, item_id, quantity)
		VALUES ($1, $2, $3, $4)`,
		line.ID, orderID, itemID, quantity)
	if err != nil {
		return order.Line{}, fmt.Errorf("insert line: %w", err)
	}
	return line, nil
}

func resolveActiveRule(ctx context.Context, q querier, id uuid.UUID, role pricing.Role) (*pricing.Rule, error) {
	rule, err := getRule(ctx, q, id)
	if err != nil {
		if errors.Is(err, pricing.ErrRuleNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !rule.IsActive || rule.Role != role {
		return nil, nil
	}
	return &rule, nil
}

func getOrder(ctx context.Context, q querier, id uuid.UUID) (order.Order, error) {
	var (
		ord        order.Order
		discountID *uuid.UUID
		taxID      *uuid.UUID
	)
	err := q.QueryRow(ctx, `
		SELECT id, status, is_paid, coalesce(payment_session_id, ''), created_at, discount_id, tax_id
		FROM orders WHERE id = $1`, id).
		Scan(&ord.ID, &ord.Status, &ord.IsPaid, &ord.PaymentSessionID, &ord.CreatedAt, &discountID, &taxID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order.Order{}, order.ErrNotFound
		}
		return order.Order{}, fmt.Errorf("get order: %w", err)
	}

	rows, err := q.Query(ctx, `
		SELECT l.id, l.quantity, i.id, i.name, i.description, i.unit_price, i.created_at
		FROM order_lines l
		JOIN items i ON i.id = l.item_id
		WHERE l.order_id = $1
		ORDER BY l.position`, id)
	if err != nil {
		return order.Order{}, fmt.Errorf("list order lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var line order.Line
		err := rows.Scan(&line.ID, &line.Quantity,
			&line.Item.ID, &line.Item.Name, &line.Item.Description, &line.Item.UnitPrice, &line.Item.CreatedAt)
		if err != nil {
			return order.Order{}, fmt.Errorf("scan order line: %w", err)
		}
		ord.Lines = append(ord.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return order.Order{}, fmt.Errorf("list order lines: %w", err)
	}

	if ord.Discount, err = loadRuleRef(ctx, q, discountID); err != nil {
		return order.Order{}, err
	}
	if ord.Tax, err = loadRuleRef(ctx, q, taxID); err != nil {
		return order.Order{}, err
	}
	return ord, nil
}

// loadRuleRef resolves a weak rule reference. A dangling reference loads as
// no rule at all.
func loadRuleRef(ctx context.Context, q querier, id *uuid.UUID) (*pricing.Rule, error) {
	if id == nil {
		return nil, nil
	}
	rule, err := getRule(ctx, q, *id)
	if err != nil {
		if errors.Is(err, pricing.ErrRuleNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rule, nil
}
