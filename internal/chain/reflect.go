package chain

import (
	"fmt"
	"reflect"
)

// structFieldsInOrder flattens the anonymous struct go-ethereum's ABI
// decoder builds for a tuple-typed return value into a slice of its
// field values, in declaration order. abi.Arguments.Unpack builds this
// struct dynamically via reflect.StructOf, so there is no static type
// to unpack into directly.
func structFieldsInOrder(v interface{}) ([]interface{}, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("expected a tuple struct, got %s", rv.Kind())
	}

	out := make([]interface{}, rv.NumField())
	for i := range out {
		out[i] = rv.Field(i).Interface()
	}
	return out, nil
}
