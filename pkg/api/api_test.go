// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package api_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	"github.com/viewshare/replicator/pkg/api"
	"github.com/viewshare/replicator/pkg/campaign"
	"github.com/viewshare/replicator/pkg/jsonhttp"
	"github.com/viewshare/replicator/pkg/jsonhttp/jsonhttptest"
	"github.com/viewshare/replicator/pkg/localstore"
	"github.com/viewshare/replicator/pkg/logging"
	"github.com/viewshare/replicator/pkg/serving"
	"github.com/viewshare/replicator/pkg/transfer"
)

var payload = []byte("campaign video bytes")

type testServer struct {
	url      string
	client   *http.Client
	store    *localstore.Store
	registry *serving.Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store, err := localstore.New(localstore.Options{Fs: afero.NewMemMapFs(), Dir: "/data"})
	if err != nil {
		t.Fatal(err)
	}
	registry := serving.New(logging.NewNoop())

	s := api.New(api.Options{
		Store:  store,
		Links:  registry,
		Logger: logging.NewNoop(),
	})
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)

	return &testServer{
		url:      ts.URL,
		client:   ts.Client(),
		store:    store,
		registry: registry,
	}
}

func testDescriptor(id string) *campaign.Descriptor {
	sum := sha256.Sum256(payload)
	return &campaign.Descriptor{
		ID:     id,
		Title:  "Spring campaign",
		Size:   int64(len(payload)),
		Hash:   hex.EncodeToString(sum[:]),
		Region: "eu",
	}
}

// hold stores the item and, when served is set, registers its payload.
func (s *testServer) hold(t *testing.T, id string, withPayload, served bool) *campaign.Descriptor {
	t.Helper()
	d := testDescriptor(id)
	if err := s.store.PutDescriptor(d); err != nil {
		t.Fatal(err)
	}
	if !withPayload {
		return d
	}
	path, err := s.store.PutPayload(id, payload)
	if err != nil {
		t.Fatal(err)
	}
	if served {
		if err := s.registry.RegisterLink(id, path, d); err != nil {
			t.Fatal(err)
		}
	}
	return d
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	jsonhttptest.Request(t, s.client, http.MethodGet, s.url+"/health", http.StatusOK,
		jsonhttptest.WithExpectedJSONResponse(map[string]string{"status": "ok"}),
	)
}

func TestDescriptor(t *testing.T) {
	s := newTestServer(t)
	d := s.hold(t, "item-1", false, false)

	t.Run("ok", func(t *testing.T) {
		jsonhttptest.Request(t, s.client, http.MethodGet, s.url+"/content/item-1/descriptor", http.StatusOK,
			jsonhttptest.WithExpectedJSONResponse(d),
		)
	})

	t.Run("not found", func(t *testing.T) {
		jsonhttptest.Request(t, s.client, http.MethodGet, s.url+"/content/missing/descriptor", http.StatusNotFound,
			jsonhttptest.WithExpectedJSONResponse(jsonhttp.StatusResponse{
				Message: http.StatusText(http.StatusNotFound),
				Code:    http.StatusNotFound,
			}),
		)
	})

	t.Run("invalid id", func(t *testing.T) {
		jsonhttptest.Request(t, s.client, http.MethodGet, s.url+"/content/bad%20id/descriptor", http.StatusBadRequest)
	})

	t.Run("method not allowed", func(t *testing.T) {
		jsonhttptest.Request(t, s.client, http.MethodPost, s.url+"/content/item-1/descriptor", http.StatusMethodNotAllowed)
	})
}

func TestPayload(t *testing.T) {
	s := newTestServer(t)
	s.hold(t, "served", true, true)
	s.hold(t, "unregistered", true, false)
	s.hold(t, "metadata-only", false, false)

	t.Run("served", func(t *testing.T) {
		h := jsonhttptest.Request(t, s.client, http.MethodGet, s.url+"/content/served", http.StatusOK,
			jsonhttptest.WithExpectedResponse(payload),
		)
		if v := h.Get("Content-Type"); v != "application/octet-stream" {
			t.Errorf("got content type %q", v)
		}
	})

	t.Run("range", func(t *testing.T) {
		jsonhttptest.Request(t, s.client, http.MethodGet, s.url+"/content/served", http.StatusPartialContent,
			jsonhttptest.WithRequestHeader("Range", "bytes=0-7"),
			jsonhttptest.WithExpectedResponse(payload[:8]),
		)
	})

	for _, id := range []string{"unregistered", "metadata-only", "missing"} {
		t.Run(id, func(t *testing.T) {
			jsonhttptest.Request(t, s.client, http.MethodGet, s.url+"/content/"+id, http.StatusNotFound)
		})
	}
}

// The content API is the protocol other replicators fetch from.
func TestTransferFromAPI(t *testing.T) {
	s := newTestServer(t)
	want := s.hold(t, "item-1", true, true)

	c := transfer.NewClient(transfer.Options{Client: s.client})

	d, err := c.FetchDescriptor(context.Background(), s.url, "item-1")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, d); diff != "" {
		t.Errorf("descriptor mismatch (-want +got):\n%s", diff)
	}

	got, err := c.FetchPayload(context.Background(), s.url, "item-1")
	if err != nil {
		t.Fatal(err)
	}
	if err := d.VerifyPayload(got); err != nil {
		t.Fatal(err)
	}
}
