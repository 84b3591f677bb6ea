package postgres

import (
	"context"
	"fmt"

	"damdar-backend/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type productRepository struct {
	db *pgxpool.Pool
}

func NewProductRepository(db *pgxpool.Pool) domain.ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	q := queryer(ctx, r.db)
	var p domain.Product
	err := q.QueryRow(ctx, `
		SELECT id, name, price, is_active FROM products WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Price, &p.IsActive)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}
