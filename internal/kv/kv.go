// Package kv is the persistence substrate contract: a flat durable key-value
// store whose only guaranteed operations are single-key get, set and delete.
// There is no batching, no transaction and no compare-and-swap.
package kv

import (
	"context"
	"encoding/json"
	"fmt"
)

type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
}

// GetJSON decodes the value stored at key into dest. It reports false when
// the key is absent and leaves dest untouched.
func GetJSON(ctx context.Context, store Store, key string, dest any) (bool, error) {
	raw, found, err := store.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func SetJSON(ctx context.Context, store Store, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return store.Set(ctx, key, payload)
}
