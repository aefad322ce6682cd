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
	"reflect"
	"sort"
	"sync"
)

var defaultRegistry = newModelRegistry()

// SQLModel represents a database model used for automatic migration.
// Instance returns a struct pointer compatible with Bun; Priority orders table
// creation (lower values first, so referenced tables come before referencing
// ones).
type SQLModel interface {
	Instance() interface{}
	Priority() int
	ForeignKeys() []ForeignKeyConstraint
	Indexes() []IndexSpec
}

// IndexSpec describes a secondary index created by the create_indexes
// migration.
type IndexSpec struct {
	Name    string
	Columns []string
	Unique  bool
}

// ModelRegistry stores SQL models and exposes them in a deterministic order.
type ModelRegistry interface {
	Register(model SQLModel)
	Models() []SQLModel
}

type modelRegistry struct {
	models []SQLModel
	mutex  sync.RWMutex
}

func newModelRegistry() ModelRegistry {
	return &modelRegistry{
		models: make([]SQLModel, 0),
	}
}

// Register adds model, replacing an earlier registration of the same type.
func (r *modelRegistry) Register(model SQLModel) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	typ := reflect.TypeOf(model.Instance())
	for i, m := range r.models {
		if reflect.TypeOf(m.Instance()) == typ {
			r.models[i] = model
			return
		}
	}
	r.models = append(r.models, model)
}

func (r *modelRegistry) Models() []SQLModel {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]SQLModel, len(r.models))
	copy(result, r.models)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Priority() < result[j].Priority()
	})
	return result
}

type ModelAdapter struct {
	instance    interface{}
	priority    int
	foreignKeys []ForeignKeyConstraint
	indexes     []IndexSpec
}

// ModelOption configures a ModelAdapter.
type ModelOption func(*ModelAdapter)

// WithForeignKeys declares the code-defined foreign keys of a model.
func WithForeignKeys(fks ...ForeignKeyConstraint) ModelOption {
	return func(a *ModelAdapter) { a.foreignKeys = append(a.foreignKeys, fks...) }
}

// WithIndexes declares secondary indexes of a model.
func WithIndexes(idx ...IndexSpec) ModelOption {
	return func(a *ModelAdapter) { a.indexes = append(a.indexes, idx...) }
}

// NewModelAdapter wraps a struct instance and priority into an SQLModel.
func NewModelAdapter(instance interface{}, priority int, opts ...ModelOption) SQLModel {
	a := &ModelAdapter{
		instance: instance,
		priority: priority,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *ModelAdapter) Instance() interface{} { return a.instance }

func (a *ModelAdapter) Priority() int { return a.priority }

func (a *ModelAdapter) ForeignKeys() []ForeignKeyConstraint { return a.foreignKeys }

func (a *ModelAdapter) Indexes() []IndexSpec { return a.indexes }

// GetRegisteredModels returns all models registered in the default registry
// sorted by ascending priority.
func GetRegisteredModels() []SQLModel {
	return defaultRegistry.Models()
}

// RegisteredModel adds a model to the default registry.
func RegisteredModel(model SQLModel) {
	defaultRegistry.Register(model)
}

func RegisteredModelInstances() []interface{} {
	models := GetRegisteredModels()
	modelInstances := make([]interface{}, len(models))
	for i, model := range models {
		modelInstances[i] = model.Instance()
	}
	return modelInstances
}

// RegisteredForeignKeys collects the code-defined foreign keys of every
// registered model.
func RegisteredForeignKeys() []ForeignKeyConstraint {
	var out []ForeignKeyConstraint
	for _, m := range GetRegisteredModels() {
		out = append(out, m.ForeignKeys()...)
	}
	return out
}
