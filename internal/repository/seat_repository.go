package repository

import (
	"context"
	"fmt"
	"go-gin-seat-booking/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SeatRepository interface {
	ListByShowtime(ctx context.Context, showtimeID string) ([]*model.SeatShowtime, error)

	// Transaction methods
	LockSeats(ctx context.Context, tx pgx.Tx, showtimeID string, seatIDs []string) ([]*model.SeatShowtime, error)
	MarkSold(ctx context.Context, tx pgx.Tx, showtimeID string, seatIDs []string) (int64, error)
}

type SeatRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewSeatRepository(pool *pgxpool.Pool) SeatRepository {
	return &SeatRepositoryImpl{
		pool: pool,
	}
}

func (r *SeatRepositoryImpl) ListByShowtime(ctx context.Context, showtimeID string) ([]*model.SeatShowtime, error) {
	query := `
		SELECT showtime_id, seat_id, status, price, updated_at
		FROM seat_showtimes
		WHERE showtime_id = $1
		ORDER BY seat_id
	`
	rows, err := r.pool.Query(ctx, query, showtimeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list seats: %w", err)
	}
	return scanSeats(rows)
}

// LockSeats 以 seat_id 排序加上 row lock，固定順序避免 deadlock；不存在的座位不會出現在結果中
func (r *SeatRepositoryImpl) LockSeats(ctx context.Context, tx pgx.Tx, showtimeID string, seatIDs []string) ([]*model.SeatShowtime, error) {
	query := `
		SELECT showtime_id, seat_id, status, price, updated_at
		FROM seat_showtimes
		WHERE showtime_id = $1 AND seat_id = ANY($2)
		ORDER BY seat_id
		FOR UPDATE
	`
	rows, err := tx.Query(ctx, query, showtimeID, seatIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to lock seats: %w", err)
	}
	return scanSeats(rows)
}

func (r *SeatRepositoryImpl) MarkSold(ctx context.Context, tx pgx.Tx, showtimeID string, seatIDs []string) (int64, error) {
	query := `
		UPDATE seat_showtimes
		SET status = $3, updated_at = NOW()
		WHERE showtime_id = $1 AND seat_id = ANY($2) AND status = $4
	`
	result, err := tx.Exec(ctx, query, showtimeID, seatIDs, model.SeatStatusSold, model.SeatStatusOpen)
	if err != nil {
		return 0, fmt.Errorf("failed to mark seats sold: %w", err)
	}
	return result.RowsAffected(), nil
}

func scanSeats(rows pgx.Rows) ([]*model.SeatShowtime, error) {
	defer rows.Close()

	var seats []*model.SeatShowtime
	for rows.Next() {
		var seat model.SeatShowtime
		if err := rows.Scan(
			&seat.ShowtimeID,
			&seat.SeatID,
			&seat.Status,
			&seat.Price,
			&seat.UpdatedAt,
		); err != nil {
			return nil, err
		}
		seats = append(seats, &seat)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return seats, nil
}
