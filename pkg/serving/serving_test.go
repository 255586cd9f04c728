// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package serving_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	"github.com/viewshare/replicator/pkg/campaign"
	"github.com/viewshare/replicator/pkg/localstore"
	"github.com/viewshare/replicator/pkg/logging"
	"github.com/viewshare/replicator/pkg/serving"
)

func TestRegistry(t *testing.T) {
	r := serving.New(logging.NewNoop())

	if err := r.RegisterLink("b", "/data/content/b.bin", &campaign.Descriptor{ID: "b"}); err != nil {
		t.Fatal(err)
	}
	if err := r.RegisterLink("a", "/data/content/a.bin", &campaign.Descriptor{ID: "a", Title: "A"}); err != nil {
		t.Fatal(err)
	}

	l, ok := r.Link("a")
	if !ok {
		t.Fatal("link a not found")
	}
	want := serving.Link{ID: "a", Path: "/data/content/a.bin", Descriptor: campaign.Descriptor{ID: "a", Title: "A"}}
	if diff := cmp.Diff(want, l); diff != "" {
		t.Errorf("link mismatch (-want +got):\n%s", diff)
	}

	var ids []string
	for _, l := range r.Links() {
		ids = append(ids, l.ID)
	}
	if diff := cmp.Diff([]string{"a", "b"}, ids); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}

	r.UnregisterLink("a")
	r.UnregisterLink("missing")
	if _, ok := r.Link("a"); ok {
		t.Fatal("link a still registered")
	}
	if r.Len() != 1 {
		t.Fatalf("got %d links, want 1", r.Len())
	}
}

func TestRestoreLinks(t *testing.T) {
	store, err := localstore.New(localstore.Options{Fs: afero.NewMemMapFs(), Dir: "/data"})
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"full", "metadata-only"} {
		if err := store.PutDescriptor(&campaign.Descriptor{ID: id}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := store.PutPayload("full", []byte("payload")); err != nil {
		t.Fatal(err)
	}

	r := serving.New(logging.NewNoop())
	n, err := serving.RestoreLinks(r, store, logging.NewNoop())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("restored %d links, want 1", n)
	}
	l, ok := r.Link("full")
	if !ok {
		t.Fatal("link not restored")
	}
	if l.Path != store.PayloadPath("full") {
		t.Errorf("got path %s, want %s", l.Path, store.PayloadPath("full"))
	}
	if _, ok := r.Link("metadata-only"); ok {
		t.Error("metadata only item registered")
	}
}

func TestEvict(t *testing.T) {
	store, err := localstore.New(localstore.Options{Fs: afero.NewMemMapFs(), Dir: "/data"})
	if err != nil {
		t.Fatal(err)
	}
	d := &campaign.Descriptor{ID: "item"}
	if err := store.PutDescriptor(d); err != nil {
		t.Fatal(err)
	}
	path, err := store.PutPayload("item", []byte("payload"))
	if err != nil {
		t.Fatal(err)
	}
	r := serving.New(logging.NewNoop())
	if err := r.RegisterLink("item", path, d); err != nil {
		t.Fatal(err)
	}

	if err := serving.Evict(r, store, "item"); err != nil {
		t.Fatal(err)
	}
	if _, ok := r.Link("item"); ok {
		t.Error("link still registered")
	}
	hasD, hasP, err := store.Has("item")
	if err != nil {
		t.Fatal(err)
	}
	if hasD || hasP {
		t.Errorf("got descriptor %v payload %v after eviction", hasD, hasP)
	}
}
