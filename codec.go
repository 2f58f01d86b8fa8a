package diskcache

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
)

// Codec converts typed values to and from the opaque payloads the cache
// stores. The cache itself never depends on a codec; these helpers layer
// serialization strictly above the facade.
type Codec interface {
	// Marshal encodes a value into a payload.
	Marshal(v any) ([]byte, error)

	// Unmarshal decodes a payload into the value pointed to by v.
	Unmarshal(data []byte, v any) error
}

// JSONCodec encodes values as JSON. It is the default codec.
type JSONCodec struct{}

// Marshal implements Codec.
func (JSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal implements Codec.
func (JSONCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// PutValue encodes value with codec and stores the payload for key.
// A nil codec uses JSONCodec.
func PutValue(ctx context.Context, cache *Cache, key string, value any, codec Codec) error {
	if codec == nil {
		codec = JSONCodec{}
	}

	payload, err := codec.Marshal(value)
	if err != nil {
		return newCacheError("put", key, fmt.Errorf("failed to encode value: %w", err))
	}

	return cache.Put(ctx, key, payload)
}

// GetValue retrieves the payload for key and decodes it with codec into a T.
// A nil codec uses JSONCodec.
//
// An absent key fails with ErrNotFound. A payload that decodes successfully
// but yields a nil value (a JSON null into a pointer, map, or slice) fails
// with ErrNilValue instead; the two cases are distinct on purpose, since the
// key exists and only its decoded value is empty.
func GetValue[T any](ctx context.Context, cache *Cache, key string, codec Codec) (T, error) {
	var zero T
	if codec == nil {
		codec = JSONCodec{}
	}

	payload, err := cache.Get(ctx, key)
	if err != nil {
		return zero, err
	}

	var value T
	if err := codec.Unmarshal(payload, &value); err != nil {
		return zero, newCacheError("get", key, fmt.Errorf("failed to decode value: %w", err))
	}

	if decodedToNil(value) {
		return zero, newCacheError("get", key, ErrNilValue)
	}

	return value, nil
}

// decodedToNil reports whether a decoded value is nil for the kinds that
// can be.
func decodedToNil(value any) bool {
	rv := reflect.ValueOf(value)
	if !rv.IsValid() {
		return true
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}
