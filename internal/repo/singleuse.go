package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/auth_service/internal/models"
)

func (r *GormRepo) CreateSingleUseToken(ctx context.Context, t *models.SingleUseToken) error {
	return r.DB.WithContext(ctx).Create(t).Error
}

func (r *GormRepo) consumeSingleUseToken(db *gorm.DB, purpose, tokenHash string) (*models.SingleUseToken, error) {
	var token models.SingleUseToken
	res := db.
		Clauses(clause.Returning{}).
		Where("purpose = ? AND token_hash = ?", purpose, tokenHash).
		Delete(&token)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrTokenNotFound
	}
	if token.ExpiresAt.Before(time.Now()) {
		return nil, ErrTokenExpired
	}
	return &token, nil
}

// ConsumeSingleUseToken is the atomic find-and-delete: the delete's row count
// is the only success signal, so concurrent calls with the same digest yield
// exactly one winner. Expired rows are deleted regardless and reported as
// ErrTokenExpired.
func (r *GormRepo) ConsumeSingleUseToken(ctx context.Context, purpose, tokenHash string) (*models.SingleUseToken, error) {
	return r.consumeSingleUseToken(r.DB.WithContext(ctx), purpose, tokenHash)
}

// ConsumeVerificationAndMarkVerified consumes an email-verification token and
// flips the owner's email_verified flag in one transaction, so a failed flag
// update does not burn the token.
func (r *GormRepo) ConsumeVerificationAndMarkVerified(ctx context.Context, tokenHash string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		token, err := r.consumeSingleUseToken(tx, models.PurposeEmailVerification, tokenHash)
		if err != nil {
			return err
		}
		if err := r.markEmailVerified(tx, token.UserID); err != nil {
			return err
		}
		userID = token.UserID
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return userID, nil
}

// DeleteSingleUseTokensForUser supersedes any live tokens the subject holds
// for the purpose.
func (r *GormRepo) DeleteSingleUseTokensForUser(ctx context.Context, userID uuid.UUID, purpose string) error {
	return r.DB.WithContext(ctx).
		Where("user_id = ? AND purpose = ?", userID, purpose).
		Delete(&models.SingleUseToken{}).Error
}

func (r *GormRepo) DeleteExpiredSingleUseTokens(ctx context.Context) (int64, error) {
	res := r.DB.WithContext(ctx).
		Where("expires_at < ?", time.Now()).
		Delete(&models.SingleUseToken{})
	return res.RowsAffected, res.Error
}
