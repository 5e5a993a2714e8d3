package cluster

import (
	"context"
	"fmt"

	"github.com/codewandler/slotr/core/serializer"
)

// DefaultSerializer is used by the typed helpers when nil is passed.
var DefaultSerializer serializer.Serializer = serializer.JSON{}

func serializerOrDefault(s serializer.Serializer) serializer.Serializer {
	if s == nil {
		return DefaultSerializer
	}
	return s
}

// GetValue reads key and decodes it into T. ok is false when the key is
// absent or holds an empty value.
func GetValue[T any](ctx context.Context, c *Client, s serializer.Serializer, key string) (v T, ok bool, err error) {
	r, err := c.ExecuteSingleKey(ctx, "GET", []byte(key))
	if err != nil {
		return v, false, err
	}
	return decodeBulk[T](serializerOrDefault(s), r)
}

// SetValue encodes v and stores it under key.
func SetValue[T any](ctx context.Context, c *Client, s serializer.Serializer, key string, v T) error {
	data, err := serializerOrDefault(s).Serialize(v)
	if err != nil {
		return err
	}
	_, err = c.ExecuteSingleKey(ctx, "SET", []byte(key), data)
	return err
}

// MGetValues reads keys across the cluster. The result has one element per
// key in key order; absent keys are nil.
func MGetValues[T any](ctx context.Context, c *Client, s serializer.Serializer, keys ...string) ([]*T, error) {
	raw := make([][]byte, len(keys))
	for i, k := range keys {
		raw[i] = []byte(k)
	}
	r, err := c.ExecuteMultiKey(ctx, "MGET", raw)
	if err != nil {
		return nil, err
	}
	if r.Kind != KindArray || len(r.Array) != len(keys) {
		return nil, fmt.Errorf("%w: MGET returned %s", ErrUnexpectedReply, r.Kind)
	}

	s = serializerOrDefault(s)
	out := make([]*T, len(keys))
	for i, item := range r.Array {
		v, ok, err := decodeBulk[T](s, item)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", keys[i], err)
		}
		if ok {
			out[i] = &v
		}
	}
	return out, nil
}

func decodeBulk[T any](s serializer.Serializer, r Reply) (v T, ok bool, err error) {
	switch r.Kind {
	case KindNil:
		return v, false, nil
	case KindBulk:
	default:
		return v, false, fmt.Errorf("%w: expected bulk, got %s", ErrUnexpectedReply, r.Kind)
	}
	if serializer.IsEmpty(r.Bulk) {
		return v, false, nil
	}
	if err = s.Deserialize(r.Bulk, &v); err != nil {
		return v, false, err
	}
	return v, true, nil
}
