package repository

import (
	"context"
	"fmt"
	"go-gin-seat-booking/internal/model"
	apperrors "go-gin-seat-booking/pkg/app_errors"

	"github.com/jackc/pgx/v5"
)

type LoyaltyRepository interface {
	// Transaction methods
	FindForUpdate(ctx context.Context, tx pgx.Tx, actorID string) (*model.LoyaltyProfile, error)
	Update(ctx context.Context, tx pgx.Tx, profile *model.LoyaltyProfile) error
}

type LoyaltyRepositoryImpl struct{}

func NewLoyaltyRepository() LoyaltyRepository {
	return &LoyaltyRepositoryImpl{}
}

func (r *LoyaltyRepositoryImpl) FindForUpdate(ctx context.Context, tx pgx.Tx, actorID string) (*model.LoyaltyProfile, error) {
	query := `
		SELECT actor_id, points, tier_id, updated_at
		FROM loyalty_profiles
		WHERE actor_id = $1
		FOR UPDATE
	`
	var profile model.LoyaltyProfile
	err := tx.QueryRow(ctx, query, actorID).Scan(
		&profile.ActorID,
		&profile.Points,
		&profile.TierID,
		&profile.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrLoyaltyNotFound
		}
		return nil, fmt.Errorf("failed to find loyalty profile: %w", err)
	}
	return &profile, nil
}

func (r *LoyaltyRepositoryImpl) Update(ctx context.Context, tx pgx.Tx, profile *model.LoyaltyProfile) error {
	query := `
		UPDATE loyalty_profiles
		SET points = $2, tier_id = $3, updated_at = NOW()
		WHERE actor_id = $1
		RETURNING updated_at
	`
	err := tx.QueryRow(ctx, query, profile.ActorID, profile.Points, profile.TierID).Scan(&profile.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.ErrLoyaltyNotFound
		}
		return fmt.Errorf("failed to update loyalty profile: %w", err)
	}
	return nil
}
