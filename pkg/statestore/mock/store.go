// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mock provides an in-memory state store for tests. Keys are
// iterated in sorted order and write failures can be injected.
package mock

import (
	"encoding"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/viewshare/replicator/pkg/storage"
)

var _ storage.StateStorer = (*Store)(nil)

type Store struct {
	mu       sync.RWMutex
	values   map[string][]byte
	putErr   error
	putCalls int
}

type Option func(*Store)

// WithPutError makes every Put fail with err, until SetPutError(nil).
func WithPutError(err error) Option {
	return func(s *Store) { s.putErr = err }
}

// NewStateStore returns a map backed state store.
func NewStateStore(opts ...Option) *Store {
	s := &Store{values: make(map[string][]byte)}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) SetPutError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putErr = err
}

// PutCalls returns the number of Put calls, including failed ones.
func (s *Store) PutCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.putCalls
}

func (s *Store) Get(key string, i interface{}) error {
	s.mu.RLock()
	data, ok := s.values[key]
	s.mu.RUnlock()
	if !ok {
		return storage.ErrNotFound
	}

	if u, ok := i.(encoding.BinaryUnmarshaler); ok {
		return u.UnmarshalBinary(data)
	}
	return json.Unmarshal(data, i)
}

func (s *Store) Put(key string, i interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.putCalls++
	if s.putErr != nil {
		return s.putErr
	}
	data, err := encode(i)
	if err != nil {
		return err
	}
	s.values[key] = data
	return nil
}

func encode(i interface{}) ([]byte, error) {
	if m, ok := i.(encoding.BinaryMarshaler); ok {
		return m.MarshalBinary()
	}
	return json.Marshal(i)
}

func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// Iterate calls iterFunc with copies of the values under prefix, in key
// order. The store is not locked while iterFunc runs.
func (s *Store) Iterate(prefix string, iterFunc storage.StateIterFunc) error {
	s.mu.RLock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	values := make(map[string][]byte, len(keys))
	for _, k := range keys {
		values[k] = append([]byte(nil), s.values[k]...)
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	for _, k := range keys {
		stop, err := iterFunc([]byte(k), values[k])
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
	return nil
}

func (s *Store) Close() error {
	return nil
}
