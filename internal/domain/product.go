package domain

import (
	"context"
	"errors"
)

var ErrProductNotFound = errors.New("product not found")

// Product carries the catalog fields the pricing engine needs: the listed
// unit price (which doubles as the negotiation reference price) and the
// availability flag. Catalog CRUD itself lives elsewhere.
type Product struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	IsActive bool    `json:"isActive"`
}

type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*Product, error)
}
