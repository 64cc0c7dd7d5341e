// Package kvtest wraps a kv.Store with per-key fault injection and a write
// log, so tests can assert which keys an operation touched.
package kvtest

import (
	"context"
	"sync"

	"kasirinaja/salecore/internal/kv"
)

type Faulty struct {
	kv.Store

	mu      sync.Mutex
	setErrs map[string]error
	getErrs map[string]error
	writes  []string
}

func Wrap(store kv.Store) *Faulty {
	return &Faulty{
		Store:   store,
		setErrs: make(map[string]error),
		getErrs: make(map[string]error),
	}
}

func (f *Faulty) FailSet(key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setErrs[key] = err
}

func (f *Faulty) FailGet(key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getErrs[key] = err
}

func (f *Faulty) Heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setErrs = make(map[string]error)
	f.getErrs = make(map[string]error)
}

// Writes returns the keys of successful Set and Del calls, in order.
func (f *Faulty) Writes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.writes))
	copy(out, f.writes)
	return out
}

func (f *Faulty) ResetWrites() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = nil
}

func (f *Faulty) Get(ctx context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	err := f.getErrs[key]
	f.mu.Unlock()
	if err != nil {
		return nil, false, err
	}
	return f.Store.Get(ctx, key)
}

func (f *Faulty) Set(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	err := f.setErrs[key]
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if err := f.Store.Set(ctx, key, value); err != nil {
		return err
	}
	f.record(key)
	return nil
}

func (f *Faulty) Del(ctx context.Context, key string) error {
	if err := f.Store.Del(ctx, key); err != nil {
		return err
	}
	f.record(key)
	return nil
}

func (f *Faulty) record(key string) {
	f.mu.Lock()
	f.writes = append(f.writes, key)
	f.mu.Unlock()
}
