package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/auth_service/internal/models"
)

func (r *GormRepo) CreateRefreshSession(ctx context.Context, s *models.RefreshSession) error {
	return r.DB.WithContext(ctx).Create(s).Error
}

// ConsumeRefreshSession atomically deletes the session matching the token
// digest and returns it. A single DELETE ... RETURNING keyed by the unique
// token_hash guarantees that of two racing calls exactly one gets the row;
// the loser gets ErrTokenNotFound. An expired row is still deleted, then
// reported as ErrTokenExpired.
func (r *GormRepo) ConsumeRefreshSession(ctx context.Context, tokenHash string) (*models.RefreshSession, error) {
	var session models.RefreshSession
	res := r.DB.WithContext(ctx).
		Clauses(clause.Returning{}).
		Where("token_hash = ?", tokenHash).
		Delete(&session)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrTokenNotFound
	}
	if session.ExpiresAt.Before(time.Now()) {
		return nil, ErrTokenExpired
	}
	return &session, nil
}

// DeleteRefreshSession removes the session for the digest if it exists.
// Missing rows are not an error; logout is idempotent.
func (r *GormRepo) DeleteRefreshSession(ctx context.Context, tokenHash string) error {
	return r.DB.WithContext(ctx).
		Where("token_hash = ?", tokenHash).
		Delete(&models.RefreshSession{}).Error
}

func (r *GormRepo) DeleteRefreshSessionsForUser(ctx context.Context, userID uuid.UUID) error {
	return r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.RefreshSession{}).Error
}

func (r *GormRepo) DeleteExpiredRefreshSessions(ctx context.Context) (int64, error) {
	res := r.DB.WithContext(ctx).
		Where("expires_at < ?", time.Now()).
		Delete(&models.RefreshSession{})
	return res.RowsAffected, res.Error
}
