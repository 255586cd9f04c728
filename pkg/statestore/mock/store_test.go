// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mock_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/viewshare/replicator/pkg/statestore/mock"
	"github.com/viewshare/replicator/pkg/statestore/test"
	"github.com/viewshare/replicator/pkg/storage"
)

func TestMockStateStore(t *testing.T) {
	test.Run(t, func(t *testing.T) storage.StateStorer {
		return mock.NewStateStore()
	})
}

func TestIterateOrdered(t *testing.T) {
	s := mock.NewStateStore()
	for _, k := range []string{"item-c", "item-a", "other", "item-b"} {
		if err := s.Put(k, k); err != nil {
			t.Fatal(err)
		}
	}

	var got []string
	if err := s.Iterate("item-", func(k, _ []byte) (bool, error) {
		got = append(got, string(k))
		return false, nil
	}); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"item-a", "item-b", "item-c"}, got); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestPutError(t *testing.T) {
	errFull := errors.New("disk full")
	s := mock.NewStateStore(mock.WithPutError(errFull))

	if err := s.Put("key", 1); !errors.Is(err, errFull) {
		t.Fatalf("got error %v, want %v", err, errFull)
	}
	var v int
	if err := s.Get("key", &v); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("got error %v, want %v", err, storage.ErrNotFound)
	}

	s.SetPutError(nil)
	if err := s.Put("key", 1); err != nil {
		t.Fatal(err)
	}
	if n := s.PutCalls(); n != 2 {
		t.Errorf("got %d put calls, want 2", n)
	}
}
