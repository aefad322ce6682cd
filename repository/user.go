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

package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/tomoncle/itemhub/models"
	"github.com/uptrace/bun"
)

type UserRepository struct {
	*BaseRepository[models.User, models.UserCreate, models.UserUpdate]
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		BaseRepository: NewRepository[models.User, models.UserCreate, models.UserUpdate](),
	}
}

// GetByEmail returns nil when no user has the address.
func (r *UserRepository) GetByEmail(ctx context.Context, db bun.IDB, email string) (*models.User, error) {
	user := new(models.User)
	err := db.NewSelect().
		Model(user).
		Where("?TableAlias.email = ?", models.NormalizeEmail(email)).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}
