// Package serializer converts values to and from the byte strings stored in
// the cluster.
//
// A nil value serializes to an empty byte string and an empty byte string
// deserializes to nothing: the target is left untouched and no error is
// returned. Callers treat empty as absent.
package serializer

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"reflect"
)

type Serializer interface {
	Serialize(v any) ([]byte, error)
	Deserialize(data []byte, v any) error
}

// SerializationError wraps encoder and decoder failures.
type SerializationError struct {
	Op  string // "serialize" or "deserialize"
	Err error
}

func (e *SerializationError) Error() string { return "cannot " + e.Op + ": " + e.Err.Error() }

func (e *SerializationError) Unwrap() error { return e.Err }

// IsEmpty reports whether data encodes no value.
func IsEmpty(data []byte) bool { return len(data) == 0 }

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Chan, reflect.Func:
		return rv.IsNil()
	}
	return false
}

// JSON serializes values as JSON documents.
type JSON struct{}

func (JSON) Serialize(v any) ([]byte, error) {
	if isNil(v) {
		return []byte{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, &SerializationError{Op: "serialize", Err: err}
	}
	return b, nil
}

func (JSON) Deserialize(data []byte, v any) error {
	if IsEmpty(data) {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &SerializationError{Op: "deserialize", Err: err}
	}
	return nil
}

// Gob serializes values with encoding/gob. Both sides must agree on the
// concrete types.
type Gob struct{}

func (Gob) Serialize(v any) ([]byte, error) {
	if isNil(v) {
		return []byte{}, nil
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, &SerializationError{Op: "serialize", Err: err}
	}
	return buf.Bytes(), nil
}

func (Gob) Deserialize(data []byte, v any) error {
	if IsEmpty(data) {
		return nil
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return &SerializationError{Op: "deserialize", Err: err}
	}
	return nil
}

// Raw passes []byte and string values through unchanged.
type Raw struct{}

func (Raw) Serialize(v any) ([]byte, error) {
	switch x := v.(type) {
	case nil:
		return []byte{}, nil
	case []byte:
		return x, nil
	case string:
		return []byte(x), nil
	}
	return nil, &SerializationError{Op: "serialize", Err: fmt.Errorf("unsupported type %T", v)}
}

func (Raw) Deserialize(data []byte, v any) error {
	if IsEmpty(data) {
		return nil
	}
	switch x := v.(type) {
	case *[]byte:
		*x = append((*x)[:0], data...)
	case *string:
		*x = string(data)
	default:
		return &SerializationError{Op: "deserialize", Err: fmt.Errorf("unsupported type %T", v)}
	}
	return nil
}

var (
	_ Serializer = JSON{}
	_ Serializer = Gob{}
	_ Serializer = Raw{}
)
