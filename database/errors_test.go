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
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

func TestIsSqlError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		is   bool
		kind SQLError
	}{
		{"nil", nil, false, UnknownErr},
		{"plain", errors.New("boom"), false, UnknownErr},
		{"no rows", fmt.Errorf("scan: %w", sql.ErrNoRows), true, NoRowsErr},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, true, DuplicateKeyErr},
		{"mysql foreign key", &mysql.MySQLError{Number: 1452}, true, ForeignKeyViolationErr},
		{"mysql other", &mysql.MySQLError{Number: 9999}, true, UnknownErr},
		{"postgres unique", &pq.Error{Code: "23505"}, true, DuplicateKeyErr},
		{"postgres not null", fmt.Errorf("insert: %w", &pq.Error{Code: "23502"}), true, NotNullViolationErr},
		{"postgres cast", &pq.Error{Code: "22P02"}, true, InvalidTypeCastErr},
		{"sqlite unique", errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)"), true, DuplicateKeyErr},
		{"sqlite foreign key", errors.New("FOREIGN KEY constraint failed"), true, ForeignKeyViolationErr},
		{"sqlite no table", errors.New("SQL logic error: no such table: item (1)"), true, NoTableErr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is, kind := IsSqlError(tt.err)
			if is != tt.is || kind != tt.kind {
				t.Fatalf("IsSqlError() = %v, %s; want %v, %s", is, kind, tt.is, tt.kind)
			}
		})
	}
}

func TestIsConstraintViolation(t *testing.T) {
	if !IsConstraintViolation(&pq.Error{Code: "23503"}) {
		t.Error("expected foreign key violation to be a constraint violation")
	}
	if !IsConstraintViolation(errors.New("NOT NULL constraint failed: item.title")) {
		t.Error("expected not null violation to be a constraint violation")
	}
	if IsConstraintViolation(sql.ErrNoRows) {
		t.Error("no rows is not a constraint violation")
	}
	if IsDuplicateKey(&pq.Error{Code: "23503"}) {
		t.Error("foreign key violation is not a duplicate key")
	}
	if !IsDuplicateKey(&mysql.MySQLError{Number: 1062}) {
		t.Error("expected mysql 1062 to be a duplicate key")
	}
}
