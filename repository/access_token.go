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
	"time"

	"github.com/google/uuid"
	"github.com/tomoncle/itemhub/models"
	"github.com/tomoncle/itemhub/types"
	"github.com/uptrace/bun"
)

type AccessTokenRepository struct {
	*BaseRepository[models.AccessToken, models.AccessTokenCreate, types.Changes]
}

func NewAccessTokenRepository() *AccessTokenRepository {
	return &AccessTokenRepository{
		BaseRepository: NewRepository[models.AccessToken, models.AccessTokenCreate, types.Changes](
			WithProtectedColumns("token_hash", "user_id"),
		),
	}
}

// GetByHash returns nil when the digest is unknown.
func (r *AccessTokenRepository) GetByHash(ctx context.Context, db bun.IDB, hash string) (*models.AccessToken, error) {
	token := new(models.AccessToken)
	err := db.NewSelect().
		Model(token).
		Where("?TableAlias.token_hash = ?", hash).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return token, nil
}

func (r *AccessTokenRepository) DeleteByHash(ctx context.Context, db bun.IDB, hash string) (int64, error) {
	return r.deleteWhere(ctx, db, "token_hash = ?", hash)
}

func (r *AccessTokenRepository) DeleteByUser(ctx context.Context, db bun.IDB, userID uuid.UUID) (int64, error) {
	return r.deleteWhere(ctx, db, "user_id = ?", userID)
}

// DeleteExpired removes tokens whose expiry is not after now.
func (r *AccessTokenRepository) DeleteExpired(ctx context.Context, db bun.IDB, now time.Time) (int64, error) {
	return r.deleteWhere(ctx, db, "expires_at <= ?", now.UTC())
}

func (r *AccessTokenRepository) deleteWhere(ctx context.Context, db bun.IDB, query string, args ...any) (int64, error) {
	res, err := db.NewDelete().
		Model((*models.AccessToken)(nil)).
		Where(query, args...).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
