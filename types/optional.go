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

package types

import (
	"bytes"
	"encoding/json"
)

// Optional is a field of a partial update payload. It tells apart a key that
// was never sent (unset), a key sent as JSON null, and a key sent with a value.
type Optional[V any] struct {
	set   bool
	valid bool
	value V
}

// Some returns a set, non-null Optional.
func Some[V any](v V) Optional[V] {
	return Optional[V]{set: true, valid: true, value: v}
}

// Null returns a set Optional holding null.
func Null[V any]() Optional[V] {
	return Optional[V]{set: true}
}

// IsSet reports whether the field was present in the payload.
func (o Optional[V]) IsSet() bool { return o.set }

// IsNull reports whether the field was present and null.
func (o Optional[V]) IsNull() bool { return o.set && !o.valid }

// Get returns the value and whether it is set and non-null.
func (o Optional[V]) Get() (V, bool) {
	return o.value, o.set && o.valid
}

// Interface returns nil for null and the value otherwise. Callers must check
// IsSet first.
func (o Optional[V]) Interface() any {
	if !o.valid {
		return nil
	}
	return o.value
}

func (o *Optional[V]) UnmarshalJSON(data []byte) error {
	o.set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero V
		o.valid = false
		o.value = zero
		return nil
	}
	if err := json.Unmarshal(data, &o.value); err != nil {
		return err
	}
	o.valid = true
	return nil
}

func (o Optional[V]) MarshalJSON() ([]byte, error) {
	if !o.valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// Changeset is implemented by update inputs. Changes returns only the fields
// that were set, keyed by column name.
type Changeset interface {
	Changes() map[string]any
}

// Changes is a raw column-to-value mapping usable wherever a Changeset is.
type Changes map[string]any

func (c Changes) Changes() map[string]any { return c }

// Put records o under column when it is set.
func (c Changes) Put(column string, o interface {
	IsSet() bool
	Interface() any
}) Changes {
	if o.IsSet() {
		c[column] = o.Interface()
	}
	return c
}
