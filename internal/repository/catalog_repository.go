package repository

import (
	"context"
	"fmt"
	"go-gin-seat-booking/internal/model"

	"github.com/jackc/pgx/v5"
)

type CatalogRepository interface {
	// ItemPrices 回傳上架中品項的價格，查無的品項不在結果中
	ItemPrices(ctx context.Context, tx pgx.Tx, kind model.ItemKind, itemIDs []string) (map[string]int64, error)
}

type CatalogRepositoryImpl struct{}

func NewCatalogRepository() CatalogRepository {
	return &CatalogRepositoryImpl{}
}

func (r *CatalogRepositoryImpl) ItemPrices(ctx context.Context, tx pgx.Tx, kind model.ItemKind, itemIDs []string) (map[string]int64, error) {
	prices := make(map[string]int64, len(itemIDs))
	if len(itemIDs) == 0 {
		return prices, nil
	}

	var table string
	switch kind {
	case model.ItemKindCombo:
		table = "combos"
	case model.ItemKindProduct:
		table = "products"
	default:
		return nil, fmt.Errorf("unknown item kind %q", kind)
	}

	rows, err := tx.Query(ctx, `SELECT id, price FROM `+table+` WHERE id = ANY($1) AND active`, itemIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s prices: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id    string
			price int64
		)
		if err := rows.Scan(&id, &price); err != nil {
			return nil, err
		}
		prices[id] = price
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return prices, nil
}
