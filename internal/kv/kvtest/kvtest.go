// Package kvtest provides key-value stores with scripted failures for tests.
package kvtest

import (
	"context"
	"errors"
	"sync"

	"PocketBazaar/internal/kv"
)

var ErrInjected = errors.New("injected failure")

// Flaky wraps a kv.Store and fails reads or writes for selected keys on
// demand. It records every successful write.
type Flaky struct {
	kv.Store

	mu        sync.Mutex
	failGet   map[string]bool
	failSet   map[string]bool
	writes    map[string]int
	lastValue map[string]string
}

func NewFlaky(inner kv.Store) *Flaky {
	if inner == nil {
		inner = kv.NewMemStore()
	}
	return &Flaky{
		Store:     inner,
		failGet:   map[string]bool{},
		failSet:   map[string]bool{},
		writes:    map[string]int{},
		lastValue: map[string]string{},
	}
}

func (f *Flaky) FailGet(key string, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failGet[key] = fail
}

func (f *Flaky) FailSet(key string, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSet[key] = fail
}

// Writes returns how many successful writes key has received.
func (f *Flaky) Writes(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes[key]
}

func (f *Flaky) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	fail := f.failGet[key]
	f.mu.Unlock()
	if fail {
		return "", false, ErrInjected
	}
	return f.Store.Get(ctx, key)
}

func (f *Flaky) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	fail := f.failSet[key]
	f.mu.Unlock()
	if fail {
		return ErrInjected
	}
	if err := f.Store.Set(ctx, key, value); err != nil {
		return err
	}

	f.mu.Lock()
	f.writes[key]++
	f.lastValue[key] = value
	f.mu.Unlock()
	return nil
}

// Last returns the most recent value successfully written to key.
func (f *Flaky) Last(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastValue[key]
}
