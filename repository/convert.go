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
	"fmt"
	"reflect"
)

// assign stores value into dst, converting where no information is lost.
// nil clears nillable fields and is rejected for the others.
func assign(dst reflect.Value, value any) error {
	if value == nil {
		switch dst.Kind() {
		case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice:
			dst.Set(reflect.Zero(dst.Type()))
			return nil
		}
		return fmt.Errorf("%w: null for %s", ErrInvalidValue, dst.Type())
	}

	src := reflect.ValueOf(value)
	if src.Type().AssignableTo(dst.Type()) {
		dst.Set(src)
		return nil
	}

	if src.Kind() == reflect.Ptr {
		if src.IsNil() {
			return assign(dst, nil)
		}
		return assign(dst, src.Elem().Interface())
	}

	if dst.Kind() == reflect.Ptr {
		elem := reflect.New(dst.Type().Elem())
		if err := assign(elem.Elem(), value); err != nil {
			return err
		}
		dst.Set(elem)
		return nil
	}

	if converted, ok := convert(src, dst.Type()); ok {
		dst.Set(converted)
		return nil
	}
	return fmt.Errorf("%w: %T for %s", ErrInvalidValue, value, dst.Type())
}

// convert allows same-kind conversions (named types) and numeric conversions
// that survive the round trip, so 3.0 fits an int64 but 3.5 does not.
func convert(src reflect.Value, typ reflect.Type) (reflect.Value, bool) {
	if !src.Type().ConvertibleTo(typ) {
		return reflect.Value{}, false
	}
	if src.Kind() == typ.Kind() {
		return src.Convert(typ), true
	}
	if !isNumeric(src.Kind()) || !isNumeric(typ.Kind()) {
		return reflect.Value{}, false
	}
	if src.CanInt() && src.Int() < 0 && typ.Kind() >= reflect.Uint && typ.Kind() <= reflect.Uint64 {
		return reflect.Value{}, false
	}
	out := src.Convert(typ)
	if !out.Convert(src.Type()).Equal(src) {
		return reflect.Value{}, false
	}
	return out, true
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
