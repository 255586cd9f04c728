// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package localstore_test

import (
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	"github.com/viewshare/replicator/pkg/campaign"
	"github.com/viewshare/replicator/pkg/localstore"
)

func newStore(t *testing.T, fs afero.Fs) *localstore.Store {
	t.Helper()
	s, err := localstore.New(localstore.Options{
		Fs:  fs,
		Dir: "/data",
		Usage: func(string) (float64, error) {
			return 0.25, nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestDescriptorAndPayload(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := newStore(t, fs)

	d := &campaign.Descriptor{ID: "item-1", Title: "Spot", Size: 3, Region: "eu"}

	if _, err := s.PutPayload("item-1", []byte("abc")); !errors.Is(err, localstore.ErrNotFound) {
		t.Fatalf("payload without descriptor: got error %v, want %v", err, localstore.ErrNotFound)
	}

	if err := s.PutDescriptor(d); err != nil {
		t.Fatal(err)
	}
	hasD, hasP, err := s.Has("item-1")
	if err != nil {
		t.Fatal(err)
	}
	if !hasD || hasP {
		t.Fatalf("got descriptor %v payload %v, want true false", hasD, hasP)
	}

	got, err := s.Descriptor("item-1")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(d, got); diff != "" {
		t.Errorf("descriptor mismatch (-want +got):\n%s", diff)
	}

	path, err := s.PutPayload("item-1", []byte("abc"))
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join("/data", "content", "item-1.bin"); path != want {
		t.Errorf("got payload path %s, want %s", path, want)
	}

	f, err := s.OpenPayload("item-1")
	if err != nil {
		t.Fatal(err)
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "abc" {
		t.Errorf("got payload %q", data)
	}

	if ok, _ := afero.Exists(fs, path+".tmp"); ok {
		t.Error("temporary file left behind")
	}

	if err := s.Remove("item-1"); err != nil {
		t.Fatal(err)
	}
	hasD, hasP, err = s.Has("item-1")
	if err != nil {
		t.Fatal(err)
	}
	if hasD || hasP {
		t.Fatalf("got descriptor %v payload %v after remove", hasD, hasP)
	}
	if _, err := s.Descriptor("item-1"); !errors.Is(err, localstore.ErrNotFound) {
		t.Fatalf("got error %v, want %v", err, localstore.ErrNotFound)
	}

	// removing a missing item is not an error
	if err := s.Remove("item-1"); err != nil {
		t.Fatal(err)
	}
}

func TestInvalidID(t *testing.T) {
	s := newStore(t, afero.NewMemMapFs())

	for _, id := range []string{"", "..", "../etc/passwd", "a/b"} {
		if _, _, err := s.Has(id); !errors.Is(err, localstore.ErrInvalidID) {
			t.Errorf("has %q: got error %v, want %v", id, err, localstore.ErrInvalidID)
		}
		if err := s.Remove(id); !errors.Is(err, localstore.ErrInvalidID) {
			t.Errorf("remove %q: got error %v, want %v", id, err, localstore.ErrInvalidID)
		}
	}
}

func TestList(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := newStore(t, fs)

	for _, id := range []string{"b", "a"} {
		if err := s.PutDescriptor(&campaign.Descriptor{ID: id}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.PutPayload("a", []byte("x")); err != nil {
		t.Fatal(err)
	}
	// orphaned payload and unrelated files
	if err := afero.WriteFile(fs, s.PayloadPath("c"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, filepath.Join(s.Dir(), "d.json.tmp"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, filepath.Join(s.Dir(), "README"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	descTime := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	payloadTime := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	for path, mt := range map[string]time.Time{
		filepath.Join(s.Dir(), "a.json"): descTime,
		filepath.Join(s.Dir(), "b.json"): descTime,
		s.PayloadPath("a"):               payloadTime,
		s.PayloadPath("c"):               payloadTime,
	} {
		if err := fs.Chtimes(path, mt, mt); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	want := []localstore.Entry{
		{ID: "a", Descriptor: true, Payload: true, ModTime: descTime},
		{ID: "b", Descriptor: true, ModTime: descTime},
		{ID: "c", Payload: true, ModTime: payloadTime},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestUsageRatio(t *testing.T) {
	errUsage := errors.New("usage")
	s, err := localstore.New(localstore.Options{
		Fs:  afero.NewMemMapFs(),
		Dir: "/data",
		Usage: func(path string) (float64, error) {
			if path != filepath.Join("/data", "content") {
				t.Errorf("got usage path %s", path)
			}
			return 0, errUsage
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.UsageRatio(); !errors.Is(err, errUsage) {
		t.Fatalf("got error %v, want %v", err, errUsage)
	}

	r, err := newStore(t, afero.NewMemMapFs()).UsageRatio()
	if err != nil {
		t.Fatal(err)
	}
	if r != 0.25 {
		t.Fatalf("got ratio %v, want 0.25", r)
	}
}

func TestDiskUsage(t *testing.T) {
	r, err := localstore.DiskUsage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if r < 0 || r > 1 {
		t.Fatalf("got ratio %v", r)
	}
}
