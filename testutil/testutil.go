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

// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/tomoncle/itemhub/database"
	"github.com/tomoncle/itemhub/models"
	"github.com/uptrace/bun"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

// Config returns an in-memory sqlite configuration with migrations enabled
// and background health checks disabled.
func Config() *database.Config {
	cfg := database.DefaultConfig()
	cfg.ConnectionConfig.DBName = ":memory:"
	cfg.ConnectionConfig.HealthCheckInterval = 0
	cfg.ConnectionConfig.EnableReconnect = false
	cfg.DataMigrateConfig.ForeignKeyFile = ""
	return cfg
}

// NewDB opens a migrated in-memory database that is closed with the test.
func NewDB(t testing.TB) *bun.DB {
	t.Helper()
	factory, err := database.Open(context.Background(), Config(), nil)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = factory.Close() })
	return factory.GetDB()
}

// CreateUser inserts an active user with the given password.
func CreateUser(t testing.TB, db bun.IDB, email, password string, superuser bool) *models.User {
	t.Helper()
	user, err := models.UserCreate{Email: email, Password: password, IsSuperuser: &superuser}.Build()
	if err != nil {
		t.Fatalf("build user: %v", err)
	}
	if _, err := db.NewInsert().Model(user).Exec(context.Background()); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	return user
}
