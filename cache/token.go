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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const tokenCachePrefix = "auth:token:"

// TokenEntry is what a validated bearer token resolves to.
type TokenEntry struct {
	UserID    uuid.UUID `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenTTL caps ttl so an entry never outlives the token itself. A result of
// zero or less means the entry must not be cached.
func TokenTTL(ttl time.Duration, expiresAt, now time.Time) time.Duration {
	if remaining := expiresAt.Sub(now); remaining < ttl {
		return remaining
	}
	return ttl
}

// GetToken returns nil on a miss. Unreadable entries count as a miss.
func (c *Cache) GetToken(ctx context.Context, hash string) (*TokenEntry, error) {
	data, err := c.client.Get(ctx, tokenCachePrefix+hash).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}

	var entry TokenEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, nil //nolint:nilerr
	}
	return &entry, nil
}

// SetToken caches entry for at most ttl and never past its expiry.
func (c *Cache) SetToken(ctx context.Context, hash string, entry TokenEntry, ttl time.Duration) error {
	ttl = TokenTTL(ttl, entry.ExpiresAt, time.Now())
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal token entry: %w", err)
	}
	return c.client.Set(ctx, tokenCachePrefix+hash, data, ttl).Err()
}

func (c *Cache) DeleteToken(ctx context.Context, hash string) error {
	return c.client.Del(ctx, tokenCachePrefix+hash).Err()
}
