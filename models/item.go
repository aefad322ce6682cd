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

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/tomoncle/itemhub/types"
	"github.com/uptrace/bun"
)

var ErrTitleRequired = errors.New("title is required")

type Item struct {
	bun.BaseModel `bun:"table:item,alias:i"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	Title       string    `bun:"title,notnull" json:"title"`
	Description *string   `bun:"description" json:"description"`
	OwnerID     uuid.UUID `bun:"owner_id,notnull,type:varchar(36)" json:"owner_id"`
}

// ItemCreate carries no owner: the owner always comes from the caller's
// identity.
type ItemCreate struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
}

func (in ItemCreate) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return ErrTitleRequired
	}
	return nil
}

func (in ItemCreate) Build() (*Item, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return &Item{
		Title:       in.Title,
		Description: in.Description,
	}, nil
}

type ItemUpdate struct {
	Title       types.Optional[string] `json:"title"`
	Description types.Optional[string] `json:"description"`
}

func (in ItemUpdate) Changes() map[string]any {
	return types.Changes{}.
		Put("title", in.Title).
		Put("description", in.Description)
}
