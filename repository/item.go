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

	"github.com/google/uuid"
	"github.com/tomoncle/itemhub/models"
	"github.com/tomoncle/itemhub/types"
	"github.com/uptrace/bun"
)

// ItemRepository adds owner-scoped operations. owner_id is protected: only
// CreateWithOwner sets it.
type ItemRepository struct {
	*BaseRepository[models.Item, models.ItemCreate, models.ItemUpdate]
}

var _ Repository[models.Item, models.ItemCreate, models.ItemUpdate] = (*ItemRepository)(nil)

func NewItemRepository() *ItemRepository {
	return &ItemRepository{
		BaseRepository: NewRepository[models.Item, models.ItemCreate, models.ItemUpdate](
			WithProtectedColumns("owner_id"),
		),
	}
}

// CreateWithOwner creates an item owned by ownerID.
func (r *ItemRepository) CreateWithOwner(ctx context.Context, db bun.IDB, in models.ItemCreate, ownerID uuid.UUID) (*models.Item, error) {
	return r.CreateWith(ctx, db, in, func(item *models.Item) {
		item.OwnerID = ownerID
	})
}

// GetMultiByOwner lists the items of ownerID. An owner without items gets an
// empty slice.
func (r *ItemRepository) GetMultiByOwner(ctx context.Context, db bun.IDB, ownerID uuid.UUID, w types.Window) ([]*models.Item, error) {
	return r.List(ctx, db, types.NewQueryFilter("?TableAlias.owner_id = ?", ownerID), w)
}
