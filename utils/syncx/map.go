// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package syncx

import "sync"

// Map is a typed sync.Map keyed by strings
type Map[T any] struct {
	sync.Map
}

func (r *Map[T]) Get(key string) (T, bool) {
	res, ok := r.Load(key)
	if !ok {
		var zero T
		return zero, ok
	}
	return res.(T), true
}

func (r *Map[T]) Set(key string, value T) {
	r.Store(key, value)
}

// GetOrCompute returns the cached value for key or stores the result of
// compute. Errors are not cached. Concurrent callers may compute the same
// key more than once, the first stored value wins.
func (r *Map[T]) GetOrCompute(key string, compute func() (T, error)) (T, error) {
	if res, ok := r.Get(key); ok {
		return res, nil
	}
	res, err := compute()
	if err != nil {
		return res, err
	}
	actual, _ := r.LoadOrStore(key, res)
	return actual.(T), nil
}

// Len counts the stored entries
func (r *Map[T]) Len() int {
	n := 0
	r.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
