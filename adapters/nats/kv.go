package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

var (
	ErrKeyNotFound = errors.New("key not found")
)

type KvConfig struct {
	Connect Connector
	Bucket  string
	// History is the number of revisions kept per key, 1 if zero.
	History uint8
}

// KvStore stores JSON values in a JetStream key-value bucket.
type KvStore[T any] struct {
	kv      jetstream.KeyValue
	closeNc closeFunc
}

func NewKvStore[T any](ctx context.Context, cfg KvConfig) (*KvStore[T], error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket is required")
	}

	doConnect := cfg.Connect
	if doConnect == nil {
		doConnect = ConnectDefault()
	}

	nc, closeNc, err := doConnect()
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		closeNc()
		return nil, err
	}

	history := cfg.History
	if history == 0 {
		history = 1
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:   cfg.Bucket,
		Storage:  jetstream.FileStorage,
		History:  history,
		MaxBytes: 1024 * 1024,
	})
	if err != nil {
		closeNc()
		return nil, err
	}

	return &KvStore[T]{kv: kv, closeNc: closeNc}, nil
}

// Set stores v and returns the new revision.
func (k *KvStore[T]) Set(ctx context.Context, key string, v T) (uint64, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}
	return k.kv.Put(ctx, key, data)
}

func (k *KvStore[T]) Get(ctx context.Context, key string) (out T, err error) {
	v, err := k.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return out, ErrKeyNotFound
		}
		return out, fmt.Errorf("failed to get %s: %w", key, err)
	}
	err = json.Unmarshal(v.Value(), &out)
	return out, err
}

// Watch calls fn with the current value of key, if any, and with every
// later put until ctx is done. Values that fail to decode are passed to
// onError and skipped.
func (k *KvStore[T]) Watch(ctx context.Context, key string, fn func(v T, revision uint64), onError func(error)) error {
	w, err := k.kv.Watch(ctx, key)
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-w.Updates():
			if !ok {
				return nil
			}
			// nil marks the end of the initial values
			if e == nil || e.Operation() != jetstream.KeyValuePut {
				continue
			}
			var v T
			if err := json.Unmarshal(e.Value(), &v); err != nil {
				if onError != nil {
					onError(fmt.Errorf("decode %s@%d: %w", key, e.Revision(), err))
				}
				continue
			}
			fn(v, e.Revision())
		}
	}
}

func (k *KvStore[T]) Close() {
	if k.closeNc != nil {
		k.closeNc()
	}
}
