/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tomoncle/itemhub/cache"
	"github.com/tomoncle/itemhub/database"
	"github.com/tomoncle/itemhub/models"
	"github.com/tomoncle/itemhub/repository"
	"github.com/tomoncle/itemhub/security"
	"github.com/tomoncle/itemhub/types"
	"github.com/tomoncle/itemhub/utils"
	"github.com/uptrace/bun"
)

var (
	ErrBadCredentials    = errors.New("bad credentials")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrInvalidPassword   = errors.New("invalid password")
	ErrUnauthorized      = errors.New("unauthorized")
)

// dummyHash is verified against when the email is unknown so that both
// login failures cost the same.
var dummyHash, _ = security.HashPassword("itemhub-dummy-password")

// TokenCache is the optional read-through cache in front of access tokens.
type TokenCache interface {
	GetToken(ctx context.Context, hash string) (*cache.TokenEntry, error)
	SetToken(ctx context.Context, hash string, entry cache.TokenEntry, ttl time.Duration) error
	DeleteToken(ctx context.Context, hash string) error
}

type Config struct {
	PasswordMinLength int
	TokenLifetime     time.Duration
	CacheTTL          time.Duration
}

type Service struct {
	users  *repository.UserRepository
	tokens *repository.AccessTokenRepository
	cache  TokenCache
	cfg    Config
	logger *logrus.Logger
	now    func() time.Time
}

// NewService returns a Service. tokenCache may be nil.
func NewService(cfg Config, tokenCache TokenCache) *Service {
	if cfg.PasswordMinLength <= 0 {
		cfg.PasswordMinLength = 8
	}
	if cfg.TokenLifetime <= 0 {
		cfg.TokenLifetime = time.Hour
	}
	return &Service{
		users:  repository.NewUserRepository(),
		tokens: repository.NewAccessTokenRepository(),
		cache:  tokenCache,
		cfg:    cfg,
		logger: utils.NewLogger("AUTH"),
		now:    time.Now,
	}
}

func (s *Service) Users() *repository.UserRepository { return s.users }

func (s *Service) validatePassword(password, email string) error {
	if len(password) < s.cfg.PasswordMinLength {
		return fmt.Errorf("%w: password should be at least %d characters", ErrInvalidPassword, s.cfg.PasswordMinLength)
	}
	if email != "" && strings.Contains(strings.ToLower(password), models.NormalizeEmail(email)) {
		return fmt.Errorf("%w: password should not contain e-mail", ErrInvalidPassword)
	}
	return nil
}

// Register creates a regular user. Privilege flags in the input are ignored.
func (s *Service) Register(ctx context.Context, db bun.IDB, in models.UserCreate) (*models.User, error) {
	in.IsActive, in.IsSuperuser, in.IsVerified = nil, nil, nil
	return s.create(ctx, db, in)
}

func (s *Service) create(ctx context.Context, db bun.IDB, in models.UserCreate) (*models.User, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := s.validatePassword(in.Password, in.Email); err != nil {
		return nil, err
	}

	existing, err := s.users.GetByEmail(ctx, db, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserAlreadyExists
	}

	user, err := s.users.Create(ctx, db, in)
	if database.IsDuplicateKey(err) {
		return nil, ErrUserAlreadyExists
	}
	if err != nil {
		return nil, err
	}
	s.logger.WithField("user_id", user.ID).Info("user registered")
	return user, nil
}

// Login checks the credentials and returns a new bearer token.
func (s *Service) Login(ctx context.Context, db bun.IDB, email, password string) (string, error) {
	user, err := s.users.GetByEmail(ctx, db, email)
	if err != nil {
		return "", err
	}
	if user == nil {
		_, _ = security.VerifyPassword(password, dummyHash)
		return "", ErrBadCredentials
	}
	ok, err := security.VerifyPassword(password, user.HashedPassword)
	if err != nil || !ok || !user.IsActive {
		return "", ErrBadCredentials
	}

	token, err := security.NewToken()
	if err != nil {
		return "", err
	}
	_, err = s.tokens.Create(ctx, db, models.AccessTokenCreate{
		TokenHash: security.HashToken(token),
		UserID:    user.ID,
		Lifetime:  s.cfg.TokenLifetime,
	})
	if err != nil {
		return "", fmt.Errorf("store access token: %w", err)
	}
	s.logger.WithField("user_id", user.ID).Info("user logged in")
	return token, nil
}

// Logout revokes token. Unknown tokens are not an error.
func (s *Service) Logout(ctx context.Context, db bun.IDB, token string) error {
	hash := security.HashToken(token)
	if _, err := s.tokens.DeleteByHash(ctx, db, hash); err != nil {
		return err
	}
	s.forget(ctx, hash)
	return nil
}

// Authenticate resolves a bearer token to an active user.
func (s *Service) Authenticate(ctx context.Context, db bun.IDB, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	hash := security.HashToken(token)
	now := s.now()

	if entry := s.lookup(ctx, hash); entry != nil && now.Before(entry.ExpiresAt) {
		return s.activeUser(ctx, db, entry.UserID)
	}

	stored, err := s.tokens.GetByHash(ctx, db, hash)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, ErrUnauthorized
	}
	if stored.Expired(now) {
		if _, err := s.tokens.DeleteByHash(ctx, db, hash); err != nil {
			s.logger.WithError(err).Warn("failed to delete expired token")
		}
		s.forget(ctx, hash)
		return nil, ErrUnauthorized
	}

	user, err := s.activeUser(ctx, db, stored.UserID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		entry := cache.TokenEntry{UserID: stored.UserID, ExpiresAt: stored.ExpiresAt}
		if err := s.cache.SetToken(ctx, hash, entry, s.cfg.CacheTTL); err != nil {
			s.logger.WithError(err).Warn("failed to cache token")
		}
	}
	return user, nil
}

func (s *Service) activeUser(ctx context.Context, db bun.IDB, id uuid.UUID) (*models.User, error) {
	user, err := s.users.Get(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, ErrUnauthorized
	}
	return user, nil
}

func (s *Service) lookup(ctx context.Context, hash string) *cache.TokenEntry {
	if s.cache == nil || s.cfg.CacheTTL <= 0 {
		return nil
	}
	entry, err := s.cache.GetToken(ctx, hash)
	if err != nil {
		s.logger.WithError(err).Warn("token cache lookup failed")
		return nil
	}
	return entry
}

func (s *Service) forget(ctx context.Context, hash string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteToken(ctx, hash); err != nil {
		s.logger.WithError(err).Warn("failed to evict cached token")
	}
}

// UpdateUser applies a partial update. In safe mode, used for self-service,
// the privilege flags are dropped. A new password is validated and hashed.
func (s *Service) UpdateUser(ctx context.Context, db bun.IDB, user *models.User, in models.UserUpdate, safe bool) (*models.User, error) {
	if safe {
		in.IsActive = types.Optional[bool]{}
		in.IsSuperuser = types.Optional[bool]{}
		in.IsVerified = types.Optional[bool]{}
	}
	changes := in.Changes()

	if email, ok := changes["email"].(string); ok && email != user.Email {
		if err := models.ValidateEmail(email); err != nil {
			return nil, err
		}
		other, err := s.users.GetByEmail(ctx, db, email)
		if err != nil {
			return nil, err
		}
		if other != nil {
			return nil, ErrUserAlreadyExists
		}
	}

	if in.Password.IsSet() {
		password, ok := in.Password.Get()
		if !ok {
			return nil, fmt.Errorf("%w: password cannot be null", ErrInvalidPassword)
		}
		email := user.Email
		if e, ok := changes["email"].(string); ok {
			email = e
		}
		if err := s.validatePassword(password, email); err != nil {
			return nil, err
		}
		hashed, err := security.HashPassword(password)
		if err != nil {
			return nil, err
		}
		changes["hashed_password"] = hashed
	}

	updated, err := s.users.UpdateFields(ctx, db, user, changes)
	if database.IsDuplicateKey(err) {
		return nil, ErrUserAlreadyExists
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteUser removes a user; their items and tokens go with them.
func (s *Service) DeleteUser(ctx context.Context, db bun.IDB, id uuid.UUID) error {
	_, err := s.users.Remove(ctx, db, id)
	return err
}

// EnsureSuperuser creates the bootstrap superuser unless the email is taken.
func (s *Service) EnsureSuperuser(ctx context.Context, db bun.IDB, email, password string) (*models.User, error) {
	existing, err := s.users.GetByEmail(ctx, db, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	yes := true
	user, err := s.create(ctx, db, models.UserCreate{
		Email:       email,
		Password:    password,
		IsSuperuser: &yes,
		IsVerified:  &yes,
	})
	if err != nil {
		return nil, fmt.Errorf("create superuser: %w", err)
	}
	s.logger.WithField("email", user.Email).Info("first superuser created")
	return user, nil
}

// PurgeExpiredTokens deletes tokens past their expiry.
func (s *Service) PurgeExpiredTokens(ctx context.Context, db bun.IDB) (int64, error) {
	return s.tokens.DeleteExpired(ctx, db, s.now())
}
