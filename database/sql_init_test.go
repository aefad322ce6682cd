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
	"database/sql"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newSQLiteDB(t *testing.T) *bun.DB {
	t.Helper()
	sqlDB, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	db := bun.NewDB(sqlDB, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestParseFileOrder(t *testing.T) {
	cases := map[string]int{
		"001_users.sql": 1,
		"20_items.sql":  20,
		"seed.sql":      unorderedSQLFile,
		"v1_seed.sql":   unorderedSQLFile,
	}
	for name, want := range cases {
		if got := parseFileOrder(name); got != want {
			t.Errorf("parseFileOrder(%q) = %d, want %d", name, got, want)
		}
	}
}

func TestSplitSQLStatements(t *testing.T) {
	content := `-- seed users
INSERT INTO t (a)
  VALUES (1);

INSERT INTO t (a) VALUES (2);
UPDATE t SET a = 3`
	want := []string{
		"INSERT INTO t (a) VALUES (1);",
		"INSERT INTO t (a) VALUES (2);",
		"UPDATE t SET a = 3",
	}
	if got := splitSQLStatements(content); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestReplaceEnvVariables(t *testing.T) {
	t.Setenv("ITEMHUB_SEED_TITLE", "Book")
	s := NewSQLInitManager(nil, "test", nil)

	out, err := s.replaceEnvVariables("INSERT INTO t VALUES ('{{.ITEMHUB_SEED_TITLE}}', '{{.ENVIRONMENT}}');")
	if err != nil {
		t.Fatalf("replace error: %v", err)
	}
	if out != "INSERT INTO t VALUES ('Book', 'test');" {
		t.Fatalf("unexpected output %q", out)
	}

	if _, err := s.replaceEnvVariables("SELECT '{{.ITEMHUB_UNSET_VARIABLE}}';"); err == nil {
		t.Fatal("expected an error for an unknown variable")
	}

	plain := "SELECT 1;"
	if out, _ := s.replaceEnvVariables(plain); out != plain {
		t.Fatalf("plain content changed: %q", out)
	}
}

func TestExecuteInitialization(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "common", "002_rows.sql"), "INSERT INTO seed (name) VALUES ('common');\n")
	writeFile(t, filepath.Join(root, "common", "001_schema.sql"), "CREATE TABLE seed (name TEXT NOT NULL);\n")
	writeFile(t, filepath.Join(root, "common", "README.md"), "ignored")
	writeFile(t, filepath.Join(root, "environments", "test", "001_rows.sql"), "INSERT INTO seed (name) VALUES ('{{.ENVIRONMENT}}');\n")
	writeFile(t, filepath.Join(root, "environments", "prod", "001_rows.sql"), "INSERT INTO seed (name) VALUES ('prod');\n")

	db := newSQLiteDB(t)
	s := NewSQLInitManager(db, "test", nil)
	s.SetSQLRootPath(root)

	results, err := s.ExecuteInitialization(ctx)
	if err != nil {
		t.Fatalf("initialization error: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 executed files, got %d", len(results))
	}
	if filepath.Base(results[0].File) != "001_schema.sql" {
		t.Fatalf("files ran out of order: %+v", results)
	}

	var names []string
	if err := db.NewSelect().Table("seed").Column("name").Order("name ASC").Scan(ctx, &names); err != nil {
		t.Fatalf("select error: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"common", "test"}) {
		t.Fatalf("unexpected seeded rows %v", names)
	}
}

func TestExecuteInitializationMissingRoot(t *testing.T) {
	s := NewSQLInitManager(newSQLiteDB(t), "test", nil)
	s.SetSQLRootPath(filepath.Join(t.TempDir(), "missing"))

	results, err := s.ExecuteInitialization(context.Background())
	if err != nil || len(results) != 0 {
		t.Fatalf("expected nothing to run, got %v, %v", results, err)
	}
}

func TestExecuteInitializationRollsBackFailedFile(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "common", "001_schema.sql"), "CREATE TABLE seed (name TEXT NOT NULL UNIQUE);\n")
	writeFile(t, filepath.Join(root, "common", "002_rows.sql"), "INSERT INTO seed (name) VALUES ('a');\nINSERT INTO seed (name) VALUES ('a');\n")

	db := newSQLiteDB(t)
	s := NewSQLInitManager(db, "", nil)
	s.SetSQLRootPath(root)

	if _, err := s.ExecuteInitialization(ctx); err == nil {
		t.Fatal("expected the duplicate insert to fail")
	}
	count, err := db.NewSelect().Table("seed").Count(ctx)
	if err != nil {
		t.Fatalf("count error: %v", err)
	}
	if count != 0 {
		t.Fatalf("failed file left %d rows behind", count)
	}
}
