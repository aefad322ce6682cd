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
	"errors"

	"github.com/tomoncle/itemhub/types"
	"github.com/uptrace/bun"
)

var (
	// ErrNotFound is returned by Remove when no row has the given primary key.
	// It also matches sql.ErrNoRows.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidValue is returned by updates when a change cannot be stored in
	// the mapped field.
	ErrInvalidValue = errors.New("invalid value")

	// ErrUnsupportedModel is returned for models without exactly one primary
	// key column.
	ErrUnsupportedModel = errors.New("model must have exactly one primary key column")
)

// Builder is a create input that knows how to construct its entity.
type Builder[T any] interface {
	Build() (*T, error)
}

// CrudRepository defines the canonical operations over one entity table.
// Every call takes the session to run on; repositories keep no session.
type CrudRepository[T any, C Builder[T], U types.Changeset] interface {
	// Get returns the entity with the given primary key, or nil when there is
	// none.
	Get(ctx context.Context, db bun.IDB, id any) (*T, error)

	// GetMulti returns at most w.Limit entities after skipping w.Skip, in
	// primary key order.
	GetMulti(ctx context.Context, db bun.IDB, w types.Window) ([]*T, error)

	List(ctx context.Context, db bun.IDB, filter *types.QueryFilter, w types.Window) ([]*T, error)

	// Create builds the entity from in, commits it and returns it as stored.
	Create(ctx context.Context, db bun.IDB, in C) (*T, error)

	// Update writes the set fields of in that are mapped on the entity.
	Update(ctx context.Context, db bun.IDB, obj *T, in U) (*T, error)

	// UpdateFields is Update for a raw column-to-value mapping.
	UpdateFields(ctx context.Context, db bun.IDB, obj *T, changes map[string]any) (*T, error)

	// Remove deletes the entity and returns it as it was before deletion.
	Remove(ctx context.Context, db bun.IDB, id any) (*T, error)
}

// PageQueryRepository defines pagination functionality for listing entities.
type PageQueryRepository[T any] interface {
	Page(ctx context.Context, db bun.IDB, page *types.PageRequest) (*types.Pagination[T], error)
}

// Repository combines CRUD and pagination.
type Repository[T any, C Builder[T], U types.Changeset] interface {
	CrudRepository[T, C, U]
	PageQueryRepository[T]
}
