package main

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/checkout-api/internal/catalog"
	"github.com/noah-isme/checkout-api/internal/pricing"
	"github.com/noah-isme/checkout-api/internal/store"
)

// Seeds a development database with a small catalog and a few pricing rules.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on environment variables")
	}

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		log.Fatalf("load env: %v", err)
	}
	dbURL := k.String("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()

	if err := store.Migrate(dbURL); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}

	items := store.NewItemStore(pool)
	rules := store.NewRuleStore(pool)

	seedItems := []catalog.Item{
		{ID: uuid.New(), Name: "Classic Tee", Description: "Heavyweight cotton tee", UnitPrice: 1999},
		{ID: uuid.New(), Name: "Hoodie", Description: "Fleece-lined pullover hoodie", UnitPrice: 4599},
		{ID: uuid.New(), Name: "Sticker Pack", Description: "Five die-cut vinyl stickers", UnitPrice: 499},
		{ID: uuid.New(), Name: "Mug", Description: "Ceramic mug, 350ml", UnitPrice: 1250},
	}
	for _, item := range seedItems {
		if _, err := items.InsertItem(ctx, item); err != nil {
			log.Fatalf("seed item %q: %v", item.Name, err)
		}
		log.Printf("seeded item %s (%s)", item.Name, item.ID)
	}

	seedRules := []pricing.Rule{
		{
			ID:       uuid.New(),
			Role:     pricing.RoleDiscount,
			Name:     "Launch 10%",
			Kind:     pricing.KindPercent,
			Value:    decimal.NewFromInt(10),
			IsActive: true,
		},
		{
			ID:          uuid.New(),
			Role:        pricing.RoleDiscount,
			Name:        "Five off",
			Description: "Flat 5.00 off the subtotal",
			Kind:        pricing.KindFixed,
			Value:       decimal.RequireFromString("5.00"),
			IsActive:    true,
		},
		{
			ID:       uuid.New(),
			Role:     pricing.RoleTax,
			Name:     "Sales tax 8%",
			Kind:     pricing.KindPercent,
			Value:    decimal.NewFromInt(8),
			IsActive: true,
		},
	}
	for _, rule := range seedRules {
		if _, err := rules.InsertRule(ctx, rule); err != nil {
			log.Fatalf("seed rule %q: %v", rule.Name, err)
		}
		log.Printf("seeded %s rule %s (%s)", rule.Role, rule.Name, rule.ID)
	}

	log.Println("seed complete")
}
