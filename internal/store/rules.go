package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/checkout-api/internal/pricing"
)

// RuleStore persists pricing rules in Postgres. Rule values are NUMERIC in
// the database and travel as text so no precision is lost.
type RuleStore struct {
	Pool *pgxpool.Pool
}

func NewRuleStore(pool *pgxpool.Pool) *RuleStore {
	return &RuleStore{Pool: pool}
}

const ruleColumns = `id, role, name, description, kind, value::text, is_active, created_at`

func (s *RuleStore) InsertRule(ctx context.Context, rule pricing.Rule) (pricing.Rule, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO pricing_rules (id, role, name, description, kind, value, is_active)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7)
		RETURNING `+ruleColumns,
		rule.ID, rule.Role, rule.Name, rule.Description, rule.Kind, rule.Value.String(), rule.IsActive)
	created, err := scanRule(row)
	if err != nil {
		return pricing.Rule{}, fmt.Errorf("insert rule: %w", err)
	}
	return created, nil
}

func (s *RuleStore) ListRules(ctx context.Context, role *pricing.Role) ([]pricing.Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM pricing_rules`
	args := []any{}
	if role != nil {
		query += ` WHERE role = $1`
		args = append(args, *role)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var rules []pricing.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return rules, nil
}

func (s *RuleStore) GetRule(ctx context.Context, id uuid.UUID) (pricing.Rule, error) {
	return getRule(ctx, s.Pool, id)
}

func getRule(ctx context.Context, q querier, id uuid.UUID) (pricing.Rule, error) {
	row := q.QueryRow(ctx, `SELECT `+ruleColumns+` FROM pricing_rules WHERE id = $1`, id)
	rule, err := scanRule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pricing.Rule{}, pricing.ErrRuleNotFound
		}
		return pricing.Rule{}, fmt.Errorf("get rule: %w", err)
	}
	return rule, nil
}

func scanRule(row pgx.Row) (pricing.Rule, error) {
	var (
		rule  pricing.Rule
		value string
	)
	err := row.Scan(&rule.ID, &rule.Role, &rule.Name, &rule.Description, &rule.Kind, &value, &rule.IsActive, &rule.CreatedAt)
	if err != nil {
		return pricing.Rule{}, err
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return pricing.Rule{}, fmt.Errorf("parse rule value %q: %w", value, err)
	}
	rule.Value = parsed
	return rule, nil
}
