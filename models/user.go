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
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tomoncle/itemhub/security"
	"github.com/tomoncle/itemhub/types"
	"github.com/uptrace/bun"
)

var ErrInvalidEmail = errors.New("invalid email address")

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID             uuid.UUID `bun:"id,pk,type:varchar(36)" json:"id"`
	Email          string    `bun:"email,notnull,unique" json:"email"`
	HashedPassword string    `bun:"hashed_password,notnull" json:"-"`
	IsActive       bool      `bun:"is_active,notnull,default:true" json:"is_active"`
	IsSuperuser    bool      `bun:"is_superuser,notnull,default:false" json:"is_superuser"`
	IsVerified     bool      `bun:"is_verified,notnull,default:false" json:"is_verified"`
	CreatedAt      time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// UserCreate is the registration payload. Flags left nil take the column
// defaults.
type UserCreate struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	IsActive    *bool  `json:"is_active,omitempty"`
	IsSuperuser *bool  `json:"is_superuser,omitempty"`
	IsVerified  *bool  `json:"is_verified,omitempty"`
}

// NormalizeEmail trims and lower-cases an address. Emails are stored in this
// form so lookups can compare them directly.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail accepts a bare address, no display name.
func ValidateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	return nil
}

func (in UserCreate) Validate() error {
	return ValidateEmail(NormalizeEmail(in.Email))
}

// Build hashes the password and fills the generated columns.
func (in UserCreate) Build() (*User, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	hashed, err := security.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := &User{
		ID:             uuid.New(),
		Email:          NormalizeEmail(in.Email),
		HashedPassword: hashed,
		IsActive:       true,
		CreatedAt:      time.Now().UTC(),
	}
	if in.IsActive != nil {
		user.IsActive = *in.IsActive
	}
	if in.IsSuperuser != nil {
		user.IsSuperuser = *in.IsSuperuser
	}
	if in.IsVerified != nil {
		user.IsVerified = *in.IsVerified
	}
	return user, nil
}

// UserUpdate is a partial update of a user. Password is not a column; the
// auth service hashes it into hashed_password.
type UserUpdate struct {
	Email       types.Optional[string] `json:"email"`
	Password    types.Optional[string] `json:"password"`
	IsActive    types.Optional[bool]   `json:"is_active"`
	IsSuperuser types.Optional[bool]   `json:"is_superuser"`
	IsVerified  types.Optional[bool]   `json:"is_verified"`
}

func (in UserUpdate) Changes() map[string]any {
	changes := types.Changes{}
	if email, ok := in.Email.Get(); ok {
		changes["email"] = NormalizeEmail(email)
	} else {
		changes.Put("email", in.Email)
	}
	return changes.
		Put("is_active", in.IsActive).
		Put("is_superuser", in.IsSuperuser).
		Put("is_verified", in.IsVerified)
}
