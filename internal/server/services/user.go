// Package services contains server-side business logic: accounts and
// sessions, the audit trail, and the two prediction families.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/windbreaker/internal/common"
	"github.com/dmitrijs2005/windbreaker/internal/cryptox"
	"github.com/dmitrijs2005/windbreaker/internal/logging"
	"github.com/dmitrijs2005/windbreaker/internal/server/auth"
	"github.com/dmitrijs2005/windbreaker/internal/server/config"
	"github.com/dmitrijs2005/windbreaker/internal/server/models"
	"github.com/dmitrijs2005/windbreaker/internal/server/repositories/repomanager"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Session is handed back on successful login.
type Session struct {
	AccessToken string
	TokenType   string
	UserName    string
	ExpiresAt   time.Time
}

// UserService provides the account operations:
// - Register: create users
// - Login: verify credentials and mint a session token
// - Validate: resolve a bearer token to its account
// - ResetPassword: overwrite a password, optionally revoking old tokens
type UserService struct {
	db                          *sql.DB
	repomanager                 repomanager.RepositoryManager
	audit                       *AuditLog
	logger                      logging.Logger
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
	revokeOnPasswordReset       bool

	now          func() time.Time
	hashPassword func(string) (string, error)

	dummyOnce sync.Once
	dummyHash string
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, audit *AuditLog, logger logging.Logger, cfg *config.Config) *UserService {
	return &UserService{
		db:                          db,
		repomanager:                 m,
		audit:                       audit,
		logger:                      logger,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
		revokeOnPasswordReset:       cfg.RevokeOnPasswordReset,
		now:                         time.Now,
		hashPassword:                cryptox.HashPassword,
	}
}

// Register creates an account. A taken email yields common.ErrDuplicateEmail.
func (s *UserService) Register(ctx context.Context, name, email, password, clientAddr string) (*models.User, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if err := validateRegistration(name, email, password); err != nil {
		return nil, err
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, common.ErrInternal
	}

	user := &models.User{Name: name, Email: email, PasswordHash: hash, CreatedAt: s.now().UTC()}
	u, err := s.repomanager.Users(s.db).Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrDuplicateEmail) {
			return nil, err
		}
		s.logger.Error(ctx, "create user failed", "error", err)
		return nil, common.ErrInternal
	}

	s.audit.Record(ctx, email, models.AuditRegisterSuccess, clientAddr)
	return u, nil
}

// Login verifies credentials and issues a session token. Unknown email and
// wrong password are indistinguishable: both yield
// common.ErrInvalidCredentials after a full hash verification.
func (s *UserService) Login(ctx context.Context, email, password, clientAddr string) (*Session, error) {
	email = normalizeEmail(email)

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		s.logger.Error(ctx, "load user failed", "error", err)
		return nil, common.ErrInternal
	}

	if user == nil {
		// burn the same time a real verification would
		_, _ = cryptox.VerifyPassword(password, s.getDummyHash())
		s.audit.Record(ctx, email, models.AuditLoginFailed, clientAddr)
		return nil, common.ErrInvalidCredentials
	}

	ok, err := cryptox.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		s.logger.Warn(ctx, "stored password hash is malformed", "user_id", user.ID)
	}
	if !ok {
		s.audit.Record(ctx, email, models.AuditLoginFailed, clientAddr)
		return nil, common.ErrInvalidCredentials
	}

	token, exp, err := auth.GenerateToken(user.Email, user.TokenVersion, s.jwtSecret, s.accessTokenValidityDuration, s.now())
	if err != nil {
		return nil, common.ErrInternal
	}

	s.audit.Record(ctx, email, models.AuditLoginSuccess, clientAddr)
	return &Session{AccessToken: token, TokenType: "bearer", UserName: user.Name, ExpiresAt: exp}, nil
}

// Validate resolves a bearer token to its account. Bad signature, expiry,
// a vanished account, or a stale token version all yield
// common.ErrUnauthorized.
func (s *UserService) Validate(ctx context.Context, token string) (*models.User, error) {
	claims, err := auth.ParseToken(token, s.jwtSecret, s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrUnauthorized, err)
	}

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, claims.Email())
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUnauthorized
		}
		s.logger.Error(ctx, "load user failed", "error", err)
		return nil, common.ErrInternal
	}

	if s.revokeOnPasswordReset && claims.Version != user.TokenVersion {
		return nil, fmt.Errorf("%w: token revoked", common.ErrUnauthorized)
	}

	return user, nil
}

// ResetPassword overwrites the password of email. Unknown accounts yield
// common.ErrNotFound.
func (s *UserService) ResetPassword(ctx context.Context, email, newPassword, clientAddr string) error {
	email = normalizeEmail(email)
	if newPassword == "" {
		return fmt.Errorf("%w: new_password must not be empty", common.ErrValidation)
	}

	hash, err := s.hashPassword(newPassword)
	if err != nil {
		return common.ErrInternal
	}

	_, err = s.repomanager.Users(s.db).UpdatePassword(ctx, email, hash, s.revokeOnPasswordReset)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.audit.Record(ctx, email, models.AuditPasswordResetFailedUserNotFound, clientAddr)
			return common.ErrNotFound
		}
		s.logger.Error(ctx, "update password failed", "error", err)
		return common.ErrInternal
	}

	s.audit.Record(ctx, email, models.AuditPasswordResetSuccess, clientAddr)
	return nil
}

// --- helpers below ---

func (s *UserService) getDummyHash() string {
	s.dummyOnce.Do(func() {
		pw, err := common.MakeRandHexString(16)
		if err == nil {
			s.dummyHash, _ = s.hashPassword(pw)
		}
	})
	return s.dummyHash
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateRegistration(name, email, password string) error {
	if name == "" {
		return fmt.Errorf("%w: name must not be empty", common.ErrValidation)
	}
	if err := validate.Var(email, "required,email"); err != nil {
		return fmt.Errorf("%w: invalid email address", common.ErrValidation)
	}
	if password == "" {
		return fmt.Errorf("%w: password must not be empty", common.ErrValidation)
	}
	return nil
}
