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

package database

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

type sessionKey struct{}

// SessionProvider hands out request-scoped sessions. A session is a single
// pooled connection that is released when the scope ends.
type SessionProvider struct {
	db *bun.DB
}

func NewSessionProvider(db *bun.DB) *SessionProvider {
	return &SessionProvider{db: db}
}

// Acquire reserves a connection. The caller must Close it.
func (p *SessionProvider) Acquire(ctx context.Context) (*bun.Conn, error) {
	if p == nil || p.db == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire session: %w", err)
	}
	return &conn, nil
}

// Scope runs fn with a fresh session stored in ctx and releases it
// afterwards, whether fn fails or not.
func (p *SessionProvider) Scope(ctx context.Context, fn func(ctx context.Context, db bun.IDB) error) error {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(WithSession(ctx, conn), conn)
}

// WithSession stores db in ctx.
func WithSession(ctx context.Context, db bun.IDB) context.Context {
	return context.WithValue(ctx, sessionKey{}, db)
}

// SessionFrom returns the session stored in ctx, or nil.
func SessionFrom(ctx context.Context) bun.IDB {
	db, _ := ctx.Value(sessionKey{}).(bun.IDB)
	return db
}
