// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package test holds the behaviour suite every storage.StateStorer
// implementation is run against.
package test

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/viewshare/replicator/pkg/storage"
)

const (
	key1 = "key1" // stores the serialized type
	key2 = "key2" // stores a json struct
)

var (
	value1 = &Serializing{value: "value1"}
	value2 = checkpoint{Block: 4242, Timestamp: 1700000000}
)

type checkpoint struct {
	Block     uint64 `json:"block"`
	Timestamp int64  `json:"timestamp"`
}

type Serializing struct {
	value           string
	marshalCalled   bool
	unmarshalCalled bool
}

func (st *Serializing) MarshalBinary() (data []byte, err error) {
	d := []byte(st.value)
	st.marshalCalled = true

	return d, nil
}

func (st *Serializing) UnmarshalBinary(data []byte) (err error) {
	st.value = string(data)
	st.unmarshalCalled = true
	return nil
}

// Run executes the common test cases against the store returned by f.
func Run(t *testing.T, f func(t *testing.T) storage.StateStorer) {
	t.Helper()

	t.Run("put get", func(t *testing.T) {
		store := f(t)
		insertValues(t, store)
		testPersistedValues(t, store)
	})

	t.Run("not found", func(t *testing.T) {
		store := f(t)
		var v checkpoint
		if err := store.Get("missing", &v); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("got error %v, want %v", err, storage.ErrNotFound)
		}
	})

	t.Run("delete", func(t *testing.T) {
		store := f(t)
		insertValues(t, store)
		if err := store.Delete(key2); err != nil {
			t.Fatal(err)
		}
		var v checkpoint
		if err := store.Get(key2, &v); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("got error %v, want %v", err, storage.ErrNotFound)
		}
	})

	t.Run("iterate", func(t *testing.T) {
		store := f(t)
		for _, k := range []string{"a_1", "a_2", "b_1"} {
			if err := store.Put(k, value2); err != nil {
				t.Fatal(err)
			}
		}
		var got []string
		err := store.Iterate("a_", func(k, _ []byte) (bool, error) {
			got = append(got, string(k))
			return false, nil
		})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 2 {
			t.Fatalf("got %d keys, want 2", len(got))
		}
		for _, k := range got {
			if !strings.HasPrefix(k, "a_") {
				t.Errorf("key %q does not match prefix", k)
			}
		}
	})
}

// RunPersist checks that values survive closing and reopening the store
// in the same directory.
func RunPersist(t *testing.T, f func(t *testing.T, dir string) storage.StateStorer) {
	t.Helper()

	dir := t.TempDir()

	store := f(t, dir)
	insertValues(t, store)
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	store = f(t, dir)
	defer store.Close()
	testPersistedValues(t, store)
}

func insertValues(t *testing.T, store storage.StateStorer) {
	t.Helper()

	if err := store.Put(key1, value1); err != nil {
		t.Fatal(err)
	}
	if !value1.marshalCalled {
		t.Fatal("binaryMarshaller not called on serialized type")
	}
	if err := store.Put(key2, value2); err != nil {
		t.Fatal(err)
	}
}

func testPersistedValues(t *testing.T, store storage.StateStorer) {
	t.Helper()

	v := &Serializing{}
	if err := store.Get(key1, v); err != nil {
		t.Fatal(err)
	}
	if !v.unmarshalCalled {
		t.Fatal("unmarshaler not called")
	}
	if v.value != value1.value {
		t.Fatalf("expected persisted to be %s but got %s", value1.value, v.value)
	}

	var c checkpoint
	if err := store.Get(key2, &c); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(value2, c); diff != "" {
		t.Fatalf("checkpoint mismatch (-want +got):\n%s", diff)
	}
}
