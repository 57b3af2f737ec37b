package pricing

import (
	"context"
	"errors"
	"fmt"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrRuleNotFound is returned when a rule id does not resolve.
var ErrRuleNotFound = errors.New("pricing rule not found")

// ErrInvalidValue is returned when a rule value violates its kind's range.
var ErrInvalidValue = errors.New("invalid rule value")

// Store describes the persistence operations the rule service relies on.
type Store interface {
	InsertRule(ctx context.Context, rule Rule) (Rule, error)
	ListRules(ctx context.Context, role *Role) ([]Rule, error)
	GetRule(ctx context.Context, id uuid.UUID) (Rule, error)
}

// Service manages pricing rule definitions.
type Service struct {
	Store    Store
	Validate *validator.Validate
}

// CreateInput is the payload for defining a new rule.
type CreateInput struct {
	Role        string          `json:"role" validate:"required,oneof=discount tax"`
	Name        string          `json:"name" validate:"required,max=64"`
	Description string          `json:"description"`
	Kind        string          `json:"kind" validate:"required,oneof=percent fixed"`
	Value       decimal.Decimal `json:"value"`
	IsActive    *bool           `json:"isActive"`
}

// Create validates and persists a new pricing rule. Rules are active by
// default unless the payload says otherwise.
func (s *Service) Create(ctx context.Context, in CreateInput) (Rule, error) {
	if s == nil || s.Store == nil {
		return Rule{}, errors.New("pricing service not configured")
	}
	if s.Validate != nil {
		if err := s.Validate.Struct(in); err != nil {
			return Rule{}, err
		}
	}
	if in.Value.IsNegative() {
		return Rule{}, fmt.Errorf("%w: value must not be negative", ErrInvalidValue)
	}
	if Kind(in.Kind) == KindPercent && in.Value.GreaterThan(hundred) {
		return Rule{}, fmt.Errorf("%w: percent value must be between 0 and 100", ErrInvalidValue)
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	rule := Rule{
		ID:          uuid.New(),
		Role:        Role(in.Role),
		Name:        in.Name,
		Description: in.Description,
		Kind:        Kind(in.Kind),
		Value:       in.Value,
		IsActive:    active,
	}
	return s.Store.InsertRule(ctx, rule)
}

// List returns rules, optionally narrowed to one role.
func (s *Service) List(ctx context.Context, role *Role) ([]Rule, error) {
	if s == nil || s.Store == nil {
		return nil, errors.New("pricing service not configured")
	}
	return s.Store.ListRules(ctx, role)
}

// Get returns a single rule by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Rule, error) {
	if s == nil || s.Store == nil {
		return Rule{}, errors.New("pricing service not configured")
	}
	return s.Store.GetRule(ctx, id)
}

// ResolveActive resolves a rule reference for order attachment. A missing or
// inactive rule yields (nil, nil): stale references degrade to "no rule
// applied" instead of aborting checkout.
func (s *Service) ResolveActive(ctx context.Context, id uuid.UUID) (*Rule, error) {
	rule, err := s.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrRuleNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !rule.IsActive {
		return nil, nil
	}
	return &rule, nil
}
