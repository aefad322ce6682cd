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
	"sync"
	"testing"
	"time"

	"github.com/tomoncle/itemhub/cache"
	"github.com/tomoncle/itemhub/models"
	"github.com/tomoncle/itemhub/security"
	"github.com/tomoncle/itemhub/testutil"
	"github.com/tomoncle/itemhub/types"
)

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]cache.TokenEntry
	hits    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string]cache.TokenEntry{}}
}

func (c *memoryCache) GetToken(_ context.Context, hash string) (*cache.TokenEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[hash]
	if !ok {
		return nil, nil
	}
	c.hits++
	return &entry, nil
}

func (c *memoryCache) SetToken(_ context.Context, hash string, entry cache.TokenEntry, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[hash] = entry
	return nil
}

func (c *memoryCache) DeleteToken(_ context.Context, hash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, hash)
	return nil
}

func newService(tc TokenCache) *Service {
	return NewService(Config{PasswordMinLength: 8, TokenLifetime: time.Hour, CacheTTL: time.Minute}, tc)
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	s := newService(nil)
	yes := true

	user, err := s.Register(ctx, db, models.UserCreate{Email: "king.arthur@camelot.bt", Password: "guinevere", IsSuperuser: &yes})
	if err != nil {
		t.Fatalf("register error: %v", err)
	}
	if user.IsSuperuser {
		t.Fatal("register must not grant superuser")
	}

	if _, err := s.Register(ctx, db, models.UserCreate{Email: "KING.ARTHUR@camelot.bt", Password: "guinevere"}); !errors.Is(err, ErrUserAlreadyExists) {
		t.Fatalf("expected ErrUserAlreadyExists, got %v", err)
	}
	if _, err := s.Register(ctx, db, models.UserCreate{Email: "lancelot@camelot.bt", Password: "short"}); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
	if _, err := s.Register(ctx, db, models.UserCreate{Email: "lancelot@camelot.bt", Password: "xlancelot@camelot.bt"}); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword for a password containing the email, got %v", err)
	}
	if _, err := s.Register(ctx, db, models.UserCreate{Email: "not-an-email", Password: "guinevere"}); !errors.Is(err, models.ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
}

func TestLoginAuthenticateLogout(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	s := newService(nil)
	testutil.CreateUser(t, db, "user@example.com", "changethis", false)

	if _, err := s.Login(ctx, db, "user@example.com", "wrong-password"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("expected ErrBadCredentials, got %v", err)
	}
	if _, err := s.Login(ctx, db, "nobody@example.com", "changethis"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("expected ErrBadCredentials for unknown user, got %v", err)
	}

	token, err := s.Login(ctx, db, "USER@example.com", "changethis")
	if err != nil {
		t.Fatalf("login error: %v", err)
	}

	user, err := s.Authenticate(ctx, db, token)
	if err != nil || user.Email != "user@example.com" {
		t.Fatalf("authenticate returned %+v, %v", user, err)
	}
	if _, err := s.Authenticate(ctx, db, "bogus"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	if err := s.Logout(ctx, db, token); err != nil {
		t.Fatalf("logout error: %v", err)
	}
	if _, err := s.Authenticate(ctx, db, token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized after logout, got %v", err)
	}
}

func TestLoginInactiveUser(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	s := newService(nil)
	user := testutil.CreateUser(t, db, "inactive@example.com", "changethis", false)
	if _, err := s.Users().UpdateFields(ctx, db, user, map[string]any{"is_active": false}); err != nil {
		t.Fatalf("deactivate error: %v", err)
	}

	if _, err := s.Login(ctx, db, "inactive@example.com", "changethis"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("expected ErrBadCredentials, got %v", err)
	}
}

func TestAuthenticateExpiredToken(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	s := newService(nil)
	testutil.CreateUser(t, db, "user@example.com", "changethis", false)

	token, err := s.Login(ctx, db, "user@example.com", "changethis")
	if err != nil {
		t.Fatalf("login error: %v", err)
	}

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := s.Authenticate(ctx, db, token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if stored, _ := s.tokens.GetByHash(ctx, db, security.HashToken(token)); stored != nil {
		t.Fatal("expired token was not deleted")
	}
}

func TestAuthenticateUsesCache(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	tc := newMemoryCache()
	s := newService(tc)
	testutil.CreateUser(t, db, "user@example.com", "changethis", false)

	token, err := s.Login(ctx, db, "user@example.com", "changethis")
	if err != nil {
		t.Fatalf("login error: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := s.Authenticate(ctx, db, token); err != nil {
			t.Fatalf("authenticate error: %v", err)
		}
	}
	if tc.hits != 1 {
		t.Fatalf("expected the second call to hit the cache, hits = %d", tc.hits)
	}

	if err := s.Logout(ctx, db, token); err != nil {
		t.Fatalf("logout error: %v", err)
	}
	if len(tc.entries) != 0 {
		t.Fatal("logout left the token cached")
	}
}

func TestUpdateUser(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	s := newService(nil)
	user := testutil.CreateUser(t, db, "user@example.com", "changethis", false)
	testutil.CreateUser(t, db, "taken@example.com", "changethis", false)

	updated, err := s.UpdateUser(ctx, db, user, models.UserUpdate{
		Password:    types.Some("new-password"),
		IsSuperuser: types.Some(true),
	}, true)
	if err != nil {
		t.Fatalf("update error: %v", err)
	}
	if updated.IsSuperuser {
		t.Fatal("safe update granted superuser")
	}
	if ok, _ := security.VerifyPassword("new-password", updated.HashedPassword); !ok {
		t.Fatal("password was not changed")
	}

	if _, err := s.UpdateUser(ctx, db, updated, models.UserUpdate{Email: types.Some("Taken@example.com")}, true); !errors.Is(err, ErrUserAlreadyExists) {
		t.Fatalf("expected ErrUserAlreadyExists, got %v", err)
	}
	if _, err := s.UpdateUser(ctx, db, updated, models.UserUpdate{Password: types.Some("short")}, true); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}

	promoted, err := s.UpdateUser(ctx, db, updated, models.UserUpdate{IsSuperuser: types.Some(true)}, false)
	if err != nil || !promoted.IsSuperuser {
		t.Fatalf("unsafe update returned %+v, %v", promoted, err)
	}
}

func TestEnsureSuperuser(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	s := newService(nil)

	first, err := s.EnsureSuperuser(ctx, db, "admin@example.com", "changethis")
	if err != nil {
		t.Fatalf("ensure superuser error: %v", err)
	}
	if !first.IsSuperuser || !first.IsVerified || !first.IsActive {
		t.Fatalf("unexpected superuser %+v", first)
	}

	again, err := s.EnsureSuperuser(ctx, db, "admin@example.com", "changethis")
	if err != nil || again.ID != first.ID {
		t.Fatalf("second call returned %+v, %v", again, err)
	}
}

func TestPurgeExpiredTokens(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	s := newService(nil)
	testutil.CreateUser(t, db, "user@example.com", "changethis", false)

	if _, err := s.Login(ctx, db, "user@example.com", "changethis"); err != nil {
		t.Fatalf("login error: %v", err)
	}
	if n, err := s.PurgeExpiredTokens(ctx, db); err != nil || n != 0 {
		t.Fatalf("purge removed %d, %v", n, err)
	}
	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if n, err := s.PurgeExpiredTokens(ctx, db); err != nil || n != 1 {
		t.Fatalf("purge removed %d, %v", n, err)
	}
}

func TestContextUser(t *testing.T) {
	if UserFrom(context.Background()) != nil {
		t.Fatal("expected no user")
	}
	user := &models.User{Email: "a@example.com"}
	if UserFrom(WithUser(context.Background(), user)) != user {
		t.Fatal("user not round-tripped through context")
	}
}
