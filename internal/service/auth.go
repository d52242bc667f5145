package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/auth_service/internal/models"
	"github.com/Skotchmaster/auth_service/internal/notifier"
	"github.com/Skotchmaster/auth_service/internal/repo"
	"github.com/Skotchmaster/auth_service/internal/tokenstore"
	pkg_hash "github.com/Skotchmaster/auth_service/pkg/hash"
	"github.com/Skotchmaster/auth_service/pkg/logging"
	"github.com/Skotchmaster/auth_service/pkg/tokens"
)

const minPasswordLen = 8

type AuthService struct {
	Repo     *repo.GormRepo
	Tokens   *tokens.Codec
	Store    *tokenstore.Store
	Notifier notifier.Notifier
}

type LoginResult struct {
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an unverified account and hands a verification secret to
// the notifier. The unique email constraint is the authoritative duplicate
// guard; the pre-check only saves a bcrypt round on the common case.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	email = normalizeEmail(email)
	if username == "" || email == "" || len(password) < minPasswordLen {
		return nil, ErrValidation
	}

	if taken, err := s.Repo.EmailTaken(ctx, email); err != nil {
		return nil, transient(err)
	} else if taken {
		return nil, ErrDuplicateAccount
	}

	pwHash, err := pkg_hash.HashPassword(password)
	if err != nil {
		l.Error("register_error", "reason", "cannot hash the password", "error", err)
		return nil, transient(err)
	}

	user := models.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: pwHash,
	}
	if err := s.Repo.CreateUser(ctx, &user); err != nil {
		if errors.Is(err, repo.ErrDuplicateEmail) {
			l.Warn("register_conflict", "email", email)
			return nil, ErrDuplicateAccount
		}
		return nil, transient(err)
	}

	// Verification delivery must not block registration: the account exists
	// even if the token store or mail pipeline is down.
	raw, err := s.Store.Issue(ctx, models.PurposeEmailVerification, user.ID, tokenstore.EmailVerificationTTL)
	if err != nil {
		l.Error("verification_issue_failed", "user_id", user.ID, "error", err)
	} else if err := s.Notifier.Notify(ctx, models.PurposeEmailVerification, user.Email, raw); err != nil {
		l.Error("notify_failed", "purpose", models.PurposeEmailVerification, "error", err)
	}

	l.Info("user_registered", "user_id", user.ID)
	return &user, nil
}

// Login verifies credentials and issues a token pair. Absent account and
// wrong password collapse into the same ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrValidation
	}

	user, err := s.Repo.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, transient(err)
	}

	if !user.EmailVerified {
		l.Warn("login_blocked", "reason", "email not verified", "user_id", user.ID)
		return nil, ErrEmailNotVerified
	}

	if !pkg_hash.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	res, err := s.issueSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	l.Info("login_successful", "user_id", user.ID)
	return res, nil
}

// issueSession signs a fresh access/refresh pair and persists the refresh
// digest. If the record cannot be persisted no tokens are handed back.
func (s *AuthService) issueSession(ctx context.Context, userID uuid.UUID) (*LoginResult, error) {
	accessExp := time.Now().Add(tokens.AccessTTL)
	accessToken, err := s.Tokens.SignAccess(userID.String(), accessExp)
	if err != nil {
		return nil, transient(err)
	}

	refreshExp := time.Now().Add(tokens.RefreshTTL)
	refreshToken, err := s.Tokens.SignRefresh(userID.String(), refreshExp)
	if err != nil {
		return nil, transient(err)
	}

	session := models.RefreshSession{
		TokenHash: pkg_hash.TokenDigest(refreshToken),
		UserID:    userID,
		ExpiresAt: refreshExp,
	}
	if err := s.Repo.CreateRefreshSession(ctx, &session); err != nil {
		return nil, transient(err)
	}

	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

// Refresh rotates a refresh credential. The old record is deleted before the
// new pair is issued, so presenting an already-rotated token finds no record.
// A structurally valid token with no backing record is a replay signal: every
// live session of that subject is revoked before the token is rejected.
func (s *AuthService) Refresh(ctx context.Context, rawRefreshToken string) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	subject, err := s.Tokens.VerifyRefresh(rawRefreshToken)
	if err != nil {
		return nil, err
	}
	userID, err := uuid.Parse(subject)
	if err != nil {
		return nil, tokens.ErrInvalidToken
	}

	if _, err := s.Repo.ConsumeRefreshSession(ctx, pkg_hash.TokenDigest(rawRefreshToken)); err != nil {
		switch {
		case errors.Is(err, repo.ErrTokenNotFound):
			l.Warn("refresh_replay_detected", "user_id", userID)
			if err := s.Repo.DeleteRefreshSessionsForUser(ctx, userID); err != nil {
				l.Error("session_revocation_failed", "user_id", userID, "error", err)
			}
			return nil, ErrInvalidRefreshToken
		case errors.Is(err, repo.ErrTokenExpired):
			return nil, ErrInvalidRefreshToken
		default:
			return nil, transient(err)
		}
	}

	res, err := s.issueSession(ctx, userID)
	if err != nil {
		return nil, err
	}

	l.Info("session_rotated", "user_id", userID)
	return res, nil
}

// LogOut deletes the backing refresh session if it exists. Idempotent: absent
// records and store failures never surface, so a client can always reach a
// logged-out state.
func (s *AuthService) LogOut(ctx context.Context, rawRefreshToken string) error {
	if rawRefreshToken == "" {
		return nil
	}
	if err := s.Repo.DeleteRefreshSession(ctx, pkg_hash.TokenDigest(rawRefreshToken)); err != nil {
		logging.FromContext(ctx).Error("logout_delete_failed", "svc", "auth.logout", "error", err)
	}
	return nil
}

// RequestPasswordReset issues a reset secret for the account, if one exists.
// An unknown email is not an error, so callers cannot enumerate accounts.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	l := logging.FromContext(ctx).With("svc", "auth.request_reset")

	email = normalizeEmail(email)
	if email == "" {
		return ErrValidation
	}

	user, err := s.Repo.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Info("reset_requested_unknown_email")
			return nil
		}
		return transient(err)
	}

	raw, err := s.Store.Issue(ctx, models.PurposePasswordReset, user.ID, tokenstore.PasswordResetTTL)
	if err != nil {
		return transient(err)
	}
	if err := s.Notifier.Notify(ctx, models.PurposePasswordReset, user.Email, raw); err != nil {
		l.Error("notify_failed", "purpose", models.PurposePasswordReset, "error", err)
	}

	l.Info("reset_requested", "user_id", user.ID)
	return nil
}

// ResetPassword consumes the reset secret, overwrites the password hash and
// revokes every live refresh session of the subject.
func (s *AuthService) ResetPassword(ctx context.Context, rawResetToken, newPassword string) error {
	l := logging.FromContext(ctx).With("svc", "auth.reset_password")

	if len(newPassword) < minPasswordLen {
		return ErrValidation
	}

	userID, err := s.Store.Consume(ctx, models.PurposePasswordReset, rawResetToken)
	if err != nil {
		if errors.Is(err, repo.ErrTokenNotFound) || errors.Is(err, repo.ErrTokenExpired) {
			return ErrInvalidOrExpiredToken
		}
		return transient(err)
	}

	pwHash, err := pkg_hash.HashPassword(newPassword)
	if err != nil {
		return transient(err)
	}
	if err := s.Repo.UpdatePasswordHash(ctx, userID, pwHash); err != nil {
		return transient(err)
	}

	// A reset must not leave prior sessions usable.
	if err := s.Repo.DeleteRefreshSessionsForUser(ctx, userID); err != nil {
		l.Error("session_revocation_failed", "user_id", userID, "error", err)
	}

	l.Info("password_reset", "user_id", userID)
	return nil
}

// VerifyEmail consumes the verification secret and flips the account flag in
// one transaction.
func (s *AuthService) VerifyEmail(ctx context.Context, rawVerificationToken string) error {
	l := logging.FromContext(ctx).With("svc", "auth.verify_email")

	userID, err := s.Repo.ConsumeVerificationAndMarkVerified(ctx, pkg_hash.TokenDigest(rawVerificationToken))
	if err != nil {
		if errors.Is(err, repo.ErrTokenNotFound) || errors.Is(err, repo.ErrTokenExpired) {
			return ErrInvalidOrExpiredToken
		}
		return transient(err)
	}

	l.Info("email_verified", "user_id", userID)
	return nil
}

// Me returns the public account projection for a verified subject id.
func (s *AuthService) Me(ctx context.Context, subject string) (*models.User, error) {
	userID, err := uuid.Parse(subject)
	if err != nil {
		return nil, tokens.ErrInvalidToken
	}
	user, err := s.Repo.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, transient(err)
	}
	return user, nil
}
