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

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tomoncle/itemhub/testutil"
)

func TestTokenTTL(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		ttl       time.Duration
		expiresAt time.Time
		want      time.Duration
	}{
		{"configured ttl", 5 * time.Minute, now.Add(time.Hour), 5 * time.Minute},
		{"capped by expiry", 5 * time.Minute, now.Add(time.Minute), time.Minute},
		{"already expired", 5 * time.Minute, now.Add(-time.Second), -time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TokenTTL(tt.ttl, tt.expiresAt, now); got != tt.want {
				t.Fatalf("TokenTTL() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestTokenRoundTrip(t *testing.T) {
	redisURL := testutil.RequireEnv(t, "REDIS_URL")
	ctx := context.Background()

	c, err := New(ctx, redisURL)
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	defer c.Close()

	hash := "test-" + uuid.NewString()
	if got, err := c.GetToken(ctx, hash); err != nil || got != nil {
		t.Fatalf("expected a miss, got %+v, %v", got, err)
	}

	entry := TokenEntry{UserID: uuid.New(), ExpiresAt: time.Now().Add(time.Hour).UTC()}
	if err := c.SetToken(ctx, hash, entry, time.Minute); err != nil {
		t.Fatalf("set token: %v", err)
	}
	got, err := c.GetToken(ctx, hash)
	if err != nil || got == nil || got.UserID != entry.UserID || !got.ExpiresAt.Equal(entry.ExpiresAt) {
		t.Fatalf("unexpected entry %+v, %v", got, err)
	}

	if err := c.DeleteToken(ctx, hash); err != nil {
		t.Fatalf("delete token: %v", err)
	}
	if got, _ := c.GetToken(ctx, hash); got != nil {
		t.Fatal("entry survived delete")
	}
}
