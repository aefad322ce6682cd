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

import "github.com/tomoncle/itemhub/database"

func init() {
	database.RegisteredModel(database.NewModelAdapter((*User)(nil), 10))
	database.RegisteredModel(database.NewModelAdapter((*Item)(nil), 20,
		database.WithForeignKeys(database.ForeignKeyConstraint{
			Table:           "item",
			Column:          "owner_id",
			ReferenceTable:  "users",
			ReferenceColumn: "id",
			OnDelete:        "CASCADE",
		}),
		database.WithIndexes(
			database.IndexSpec{Name: "ix_item_title", Columns: []string{"title"}},
			database.IndexSpec{Name: "ix_item_description", Columns: []string{"description"}},
			database.IndexSpec{Name: "ix_item_owner_id", Columns: []string{"owner_id"}},
		),
	))
	database.RegisteredModel(database.NewModelAdapter((*AccessToken)(nil), 20,
		database.WithForeignKeys(database.ForeignKeyConstraint{
			Table:           "access_token",
			Column:          "user_id",
			ReferenceTable:  "users",
			ReferenceColumn: "id",
			OnDelete:        "CASCADE",
		}),
		database.WithIndexes(
			database.IndexSpec{Name: "ix_access_token_user_id", Columns: []string{"user_id"}},
			database.IndexSpec{Name: "ix_access_token_expires_at", Columns: []string{"expires_at"}},
		),
	))
}
