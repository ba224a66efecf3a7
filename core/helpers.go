// Package core provides the fundamental building blocks of the mongodb-odm
// mapping layer.
// This file contains helper functions for reflection, field selection and
// decoding of result documents.
package core

import (
	"reflect"
	"time"
	"unsafe"

	"github.com/mitchellh/mapstructure"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// offsetOf returns the memory offset of a struct field selected by the given selector function.
//
// Example:
//
//	type User struct {
//	    ID   string
//	    Name string
//	}
//
//	offset := offsetOf(func(u *User) *string { return &u.Name })
func offsetOf[T any, F any](selector func(*T) *F) uintptr {
	var zero T
	base := uintptr(unsafe.Pointer(&zero))
	ptr := selector(&zero)
	return uintptr(unsafe.Pointer(ptr)) - base
}

// fieldNameFromSelectorFor resolves the Go struct field name from a selector function.
//
// It takes a function of the form func(*T) *F and uses reflection to map it
// back to the struct field name.
//
// Panics if the argument is not a function, or if the function does not return a field pointer.
func fieldNameFromSelectorFor[T any](selector any) string {
	if selector == nil {
		return ""
	}
	selectorValue := reflect.ValueOf(selector)
	if selectorValue.Kind() != reflect.Func {
		panic("selector must be a function")
	}

	var zero T
	typ := reflect.TypeOf(zero)
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	arg := reflect.New(typ)

	out := selectorValue.Call([]reflect.Value{arg})
	if len(out) == 0 || out[0].Kind() != reflect.Pointer {
		panic("selector must return a pointer to a field")
	}

	offset := out[0].Pointer() - arg.Pointer()
	for _, sf := range reflect.VisibleFields(typ) {
		if len(sf.Index) == 1 && sf.Offset == offset {
			return sf.Name
		}
	}
	return ""
}

// Include returns the Go struct field name given a selector function, so
// relationship and field names can be passed to pipeline stages without
// string literals.
//
// Example:
//
//	authorField := core.Include(func(p *Post) *User { return &p.Author })
//	builder.Lookup(authorField)
func Include[L any, F any](selector func(*L) *F) string {
	return fieldNameFromSelectorFor[L](selector)
}

// decodeRow maps a result document into a struct instance of type T.
//
// Keys are matched against the bson tags of T (case-insensitively as a
// fallback), numeric types are converted where needed and BSON dates are
// turned into time.Time.
func decodeRow[T any](row map[string]any, out *T) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "bson",
		WeaklyTypedInput: true,
		DecodeHook:       decodeDateTime,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(row)
}

func decodeDateTime(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(time.Time{}) {
		return data, nil
	}
	if dateTime, ok := data.(primitive.DateTime); ok {
		return dateTime.Time().UTC(), nil
	}
	return data, nil
}
