package repository

import (
	"context"
	"fmt"
	"go-gin-seat-booking/internal/model"
	apperrors "go-gin-seat-booking/pkg/app_errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SaleRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Sale, error)
	FindByOrderRef(ctx context.Context, orderRef string) (*model.Sale, error)

	// Transaction methods
	Create(ctx context.Context, tx pgx.Tx, sale *model.Sale) error
	FindByOrderRefTx(ctx context.Context, tx pgx.Tx, orderRef string) (*model.Sale, error)
}

type SaleRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewSaleRepository(pool *pgxpool.Pool) SaleRepository {
	return &SaleRepositoryImpl{
		pool: pool,
	}
}

const salesPaymentRefConstraint = "sales_payment_ref_key"

// Create 寫入銷售主檔與座位、加購明細；order_ref 重複回傳 ErrAlreadySettled，
// payment_ref 被其他訂單使用回傳 ErrPaymentRefReused
func (r *SaleRepositoryImpl) Create(ctx context.Context, tx pgx.Tx, sale *model.Sale) error {
	query := `
		INSERT INTO sales (
			id, order_ref, customer_id, seller_id, payment_method, payment_ref,
			showtime_id, total, discount_ref, settled_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := tx.Exec(ctx, query,
		sale.ID, sale.OrderRef, sale.CustomerID, sale.SellerID, sale.PaymentMethod, sale.PaymentRef,
		sale.ShowtimeID, sale.Total, sale.DiscountRef, sale.SettledAt,
	)
	if err != nil {
		if violatedConstraint(err) == salesPaymentRefConstraint {
			return fmt.Errorf("%w: %s", apperrors.ErrPaymentRefReused, derefString(sale.PaymentRef))
		}
		if isUniqueViolation(err) {
			return apperrors.ErrAlreadySettled
		}
		return fmt.Errorf("failed to create sale: %w", err)
	}

	batch := &pgx.Batch{}
	for _, seat := range sale.Seats {
		batch.Queue(`
			INSERT INTO sale_seats (sale_id, showtime_id, seat_id, price, status)
			VALUES ($1, $2, $3, $4, $5)`,
			sale.ID, seat.ShowtimeID, seat.SeatID, seat.Price, seat.Status,
		)
	}
	for i, item := range sale.Items {
		batch.Queue(`
			INSERT INTO sale_items (sale_id, line_no, item_id, kind, quantity, unit_price, line_total)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			sale.ID, i+1, item.ItemID, item.Kind, item.Quantity, item.UnitPrice, item.LineTotal,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrAlreadySettled
		}
		return fmt.Errorf("failed to create sale lines: %w", err)
	}
	return nil
}

func (r *SaleRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*model.Sale, error) {
	return findSale(ctx, r.pool, "id = $1", id)
}

func (r *SaleRepositoryImpl) FindByOrderRef(ctx context.Context, orderRef string) (*model.Sale, error) {
	return findSale(ctx, r.pool, "order_ref = $1", orderRef)
}

func (r *SaleRepositoryImpl) FindByOrderRefTx(ctx context.Context, tx pgx.Tx, orderRef string) (*model.Sale, error) {
	return findSale(ctx, tx, "order_ref = $1", orderRef)
}

func findSale(ctx context.Context, q querier, where string, arg any) (*model.Sale, error) {
	query := `
		SELECT id, order_ref, customer_id, seller_id, payment_method, payment_ref,
		       showtime_id, total, discount_ref, settled_at
		FROM sales
		WHERE ` + where

	var sale model.Sale
	err := q.QueryRow(ctx, query, arg).Scan(
		&sale.ID,
		&sale.OrderRef,
		&sale.CustomerID,
		&sale.SellerID,
		&sale.PaymentMethod,
		&sale.PaymentRef,
		&sale.ShowtimeID,
		&sale.Total,
		&sale.DiscountRef,
		&sale.SettledAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrSaleNotFound
		}
		return nil, fmt.Errorf("failed to find sale: %w", err)
	}

	if err := loadSaleLines(ctx, q, &sale); err != nil {
		return nil, err
	}
	return &sale, nil
}

func loadSaleLines(ctx context.Context, q querier, sale *model.Sale) error {
	rows, err := q.Query(ctx, `
		SELECT showtime_id, seat_id, price, status
		FROM sale_seats
		WHERE sale_id = $1
		ORDER BY seat_id`, sale.ID)
	if err != nil {
		return fmt.Errorf("failed to load sale seats: %w", err)
	}
	sale.Seats, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.SaleSeat, error) {
		seat := model.SaleSeat{SaleID: sale.ID}
		err := row.Scan(&seat.ShowtimeID, &seat.SeatID, &seat.Price, &seat.Status)
		return seat, err
	})
	if err != nil {
		return fmt.Errorf("failed to scan sale seats: %w", err)
	}

	rows, err = q.Query(ctx, `
		SELECT item_id, kind, quantity, unit_price, line_total
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY line_no`, sale.ID)
	if err != nil {
		return fmt.Errorf("failed to load sale items: %w", err)
	}
	sale.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.SaleItem, error) {
		item := model.SaleItem{SaleID: sale.ID}
		err := row.Scan(&item.ItemID, &item.Kind, &item.Quantity, &item.UnitPrice, &item.LineTotal)
		return item, err
	})
	if err != nil {
		return fmt.Errorf("failed to scan sale items: %w", err)
	}
	return nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
