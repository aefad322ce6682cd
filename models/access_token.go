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

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/uptrace/bun"
)

// AccessToken is a stored bearer token. Only the token digest is kept.
type AccessToken struct {
	bun.BaseModel `bun:"table:access_token,alias:at"`

	ID        string    `bun:"id,pk,type:varchar(26)" json:"id"`
	TokenHash string    `bun:"token_hash,notnull,unique" json:"-"`
	UserID    uuid.UUID `bun:"user_id,notnull,type:varchar(36)" json:"user_id"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	ExpiresAt time.Time `bun:"expires_at,notnull" json:"expires_at"`
}

// Expired reports whether the token is past its expiry at now.
func (t *AccessToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

type AccessTokenCreate struct {
	TokenHash string
	UserID    uuid.UUID
	Lifetime  time.Duration
}

func (in AccessTokenCreate) Build() (*AccessToken, error) {
	now := time.Now().UTC()
	return &AccessToken{
		ID:        ulid.Make().String(),
		TokenHash: in.TokenHash,
		UserID:    in.UserID,
		CreatedAt: now,
		ExpiresAt: now.Add(in.Lifetime),
	}, nil
}
