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
	"fmt"
	"reflect"

	"github.com/tomoncle/itemhub/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// Option configures a BaseRepository.
type Option func(*options)

type options struct {
	protected map[string]struct{}
}

// WithProtectedColumns marks columns that updates never write, whatever the
// changes contain.
func WithProtectedColumns(columns ...string) Option {
	return func(o *options) {
		for _, c := range columns {
			o.protected[c] = struct{}{}
		}
	}
}

// BaseRepository implements Repository for any bun model with a single
// primary key column. It is stateless and safe to share.
type BaseRepository[T any, C Builder[T], U types.Changeset] struct {
	opts options
}

// NewRepository returns a generic repository bound to the table of T.
func NewRepository[T any, C Builder[T], U types.Changeset](opts ...Option) *BaseRepository[T, C, U] {
	r := &BaseRepository[T, C, U]{opts: options{protected: map[string]struct{}{}}}
	for _, opt := range opts {
		opt(&r.opts)
	}
	return r
}

func (r *BaseRepository[T, C, U]) table(db bun.IDB) (*schema.Table, error) {
	table := db.Dialect().Tables().Get(reflect.TypeOf((*T)(nil)).Elem())
	if len(table.PKs) != 1 {
		return nil, fmt.Errorf("%w: %s has %d", ErrUnsupportedModel, table.TypeName, len(table.PKs))
	}
	return table, nil
}

func (r *BaseRepository[T, C, U]) pk(db bun.IDB) (string, error) {
	table, err := r.table(db)
	if err != nil {
		return "", err
	}
	return table.PKs[0].Name, nil
}

func (r *BaseRepository[T, C, U]) Get(ctx context.Context, db bun.IDB, id any) (*T, error) {
	pk, err := r.pk(db)
	if err != nil {
		return nil, err
	}
	entity := new(T)
	err = db.NewSelect().
		Model(entity).
		Where("?TableAlias.? = ?", bun.Ident(pk), id).
		OrderExpr("?TableAlias.? ASC", bun.Ident(pk)).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entity, nil
}

func (r *BaseRepository[T, C, U]) GetMulti(ctx context.Context, db bun.IDB, w types.Window) ([]*T, error) {
	return r.List(ctx, db, nil, w)
}

func (r *BaseRepository[T, C, U]) List(ctx context.Context, db bun.IDB, filter *types.QueryFilter, w types.Window) ([]*T, error) {
	pk, err := r.pk(db)
	if err != nil {
		return nil, err
	}
	w = w.Normalize()

	entities := make([]*T, 0)
	if w.Limit == 0 {
		// bun drops LIMIT 0 from the query
		return entities, nil
	}
	query := db.NewSelect().Model(&entities)
	if filter != nil {
		query = query.Where(filter.Schema, filter.Args...)
	}
	err = query.
		OrderExpr("?TableAlias.? ASC", bun.Ident(pk)).
		Offset(w.Skip).
		Limit(w.Limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return entities, nil
}

func (r *BaseRepository[T, C, U]) Page(ctx context.Context, db bun.IDB, pageRequest *types.PageRequest) (*types.Pagination[T], error) {
	pk, err := r.pk(db)
	if err != nil {
		return nil, err
	}

	var entities []*T
	query := db.NewSelect().Model(&entities)
	if filter := pageRequest.GetFilter(); filter != nil {
		query = query.Where(filter.Schema, filter.Args...)
	}
	pagination := types.NewDefaultPagination[T](pageRequest.GetPage(), pageRequest.GetPageSize())
	total, err := query.Count(ctx)
	if err != nil || total == 0 {
		return pagination, err
	}

	if orders := pageRequest.GetOrders(); len(orders) > 0 {
		query = query.Order(orders...)
	} else {
		query = query.OrderExpr("?TableAlias.? ASC", bun.Ident(pk))
	}
	err = query.
		Offset(pageRequest.GetOffset()).
		Limit(pageRequest.GetPageSize()).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	pagination.Total = total
	if entities != nil {
		pagination.Items = entities
	}
	return pagination, nil
}

func (r *BaseRepository[T, C, U]) Create(ctx context.Context, db bun.IDB, in C) (*T, error) {
	return r.CreateWith(ctx, db, in, nil)
}

// CreateWith is Create with a hook that may adjust the built entity before it
// is inserted. Specializations use it to stamp server-side columns.
func (r *BaseRepository[T, C, U]) CreateWith(ctx context.Context, db bun.IDB, in C, stamp func(*T)) (*T, error) {
	if _, err := r.table(db); err != nil {
		return nil, err
	}
	entity, err := in.Build()
	if err != nil {
		return nil, err
	}
	if stamp != nil {
		stamp(entity)
	}

	err = db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(entity).Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r.refresh(ctx, db, entity)
}

func (r *BaseRepository[T, C, U]) Update(ctx context.Context, db bun.IDB, obj *T, in U) (*T, error) {
	return r.UpdateFields(ctx, db, obj, in.Changes())
}

// UpdateFields walks the columns mapped on T and writes those present in
// changes. Primary key and protected columns are skipped, and keys that are
// not columns of T are ignored. obj is left untouched; the stored entity is
// returned.
func (r *BaseRepository[T, C, U]) UpdateFields(ctx context.Context, db bun.IDB, obj *T, changes map[string]any) (*T, error) {
	table, err := r.table(db)
	if err != nil {
		return nil, err
	}

	updated := new(T)
	*updated = *obj
	strct := reflect.ValueOf(updated).Elem()

	var columns []string
	for _, field := range table.Fields {
		if field.IsPK {
			continue
		}
		if _, ok := r.opts.protected[field.Name]; ok {
			continue
		}
		value, ok := changes[field.Name]
		if !ok {
			continue
		}
		if err := assign(field.Value(strct), value); err != nil {
			return nil, fmt.Errorf("column %s: %w", field.Name, err)
		}
		columns = append(columns, field.Name)
	}

	if len(columns) > 0 {
		err = db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			_, err := tx.NewUpdate().
				Model(updated).
				Column(columns...).
				WherePK().
				Exec(ctx)
			return err
		})
		if err != nil {
			return nil, err
		}
	}
	return r.refresh(ctx, db, updated)
}

func (r *BaseRepository[T, C, U]) Remove(ctx context.Context, db bun.IDB, id any) (*T, error) {
	pk, err := r.pk(db)
	if err != nil {
		return nil, err
	}

	entity := new(T)
	err = db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().
			Model(entity).
			Where("?TableAlias.? = ?", bun.Ident(pk), id).
			Limit(1).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		if err != nil {
			return err
		}
		_, err = tx.NewDelete().Model(entity).WherePK().Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entity, nil
}

// refresh reloads entity by its primary key so database defaults show up.
// A row deleted in the meantime is reported as ErrNotFound.
func (r *BaseRepository[T, C, U]) refresh(ctx context.Context, db bun.IDB, entity *T) (*T, error) {
	err := db.NewSelect().Model(entity).WherePK().Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if err != nil {
		return nil, err
	}
	return entity, nil
}
