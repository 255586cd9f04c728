// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transfer_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/viewshare/replicator/pkg/campaign"
	"github.com/viewshare/replicator/pkg/tracing"
	"github.com/viewshare/replicator/pkg/transfer"
)

func newPeer(t *testing.T, h http.Handler) string {
	t.Helper()
	s := httptest.NewServer(h)
	t.Cleanup(s.Close)
	return s.URL
}

func TestFetchDescriptor(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/content/item-1/descriptor", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("got method %s", r.Method)
		}
		_, _ = w.Write([]byte(`{"id":"item-1","title":"Spot","size":3,"region":"EU"}`))
	})
	mux.HandleFunc("/content/wrong/descriptor", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"other"}`))
	})
	mux.HandleFunc("/content/broken/descriptor", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	endpoint := newPeer(t, mux)

	c := transfer.NewClient(transfer.Options{})

	t.Run("ok", func(t *testing.T) {
		got, err := c.FetchDescriptor(context.Background(), endpoint+"/", "item-1")
		if err != nil {
			t.Fatal(err)
		}
		want := &campaign.Descriptor{ID: "item-1", Title: "Spot", Size: 3, Region: "eu"}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("descriptor mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("not found", func(t *testing.T) {
		_, err := c.FetchDescriptor(context.Background(), endpoint, "missing")
		if !errors.Is(err, transfer.ErrNotFound) {
			t.Fatalf("got error %v, want %v", err, transfer.ErrNotFound)
		}
	})

	t.Run("id mismatch", func(t *testing.T) {
		_, err := c.FetchDescriptor(context.Background(), endpoint, "wrong")
		if !errors.Is(err, campaign.ErrInvalidDescriptor) {
			t.Fatalf("got error %v, want %v", err, campaign.ErrInvalidDescriptor)
		}
	})

	t.Run("server error", func(t *testing.T) {
		_, err := c.FetchDescriptor(context.Background(), endpoint, "broken")
		if !errors.Is(err, transfer.ErrUnexpectedStatus) {
			t.Fatalf("got error %v, want %v", err, transfer.ErrUnexpectedStatus)
		}
	})
}

func TestFetchPayload(t *testing.T) {
	payload := bytes.Repeat([]byte{7}, 100)

	mux := http.NewServeMux()
	mux.HandleFunc("/content/item-1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	})
	mux.HandleFunc("/content/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})
	endpoint := newPeer(t, mux)

	t.Run("ok", func(t *testing.T) {
		c := transfer.NewClient(transfer.Options{})
		got, err := c.FetchPayload(context.Background(), endpoint, "item-1")
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("got %d bytes, want %d", len(got), len(payload))
		}
	})

	t.Run("too large", func(t *testing.T) {
		c := transfer.NewClient(transfer.Options{MaxPayloadSize: 10})
		_, err := c.FetchPayload(context.Background(), endpoint, "item-1")
		if !errors.Is(err, transfer.ErrPayloadTooLarge) {
			t.Fatalf("got error %v, want %v", err, transfer.ErrPayloadTooLarge)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		c := transfer.NewClient(transfer.Options{})
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := c.FetchPayload(ctx, endpoint, "slow")
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("got error %v, want %v", err, context.DeadlineExceeded)
		}
	})
}

func TestURLs(t *testing.T) {
	if got, want := transfer.DescriptorURL("http://peer:8080/", "a.b"), "http://peer:8080/content/a.b/descriptor"; got != want {
		t.Errorf("got %s, want %s", got, want)
	}
	if got, want := transfer.PayloadURL("https://peer", "a"), "https://peer/content/a"; got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestTraceHeader(t *testing.T) {
	tracer, closer, err := tracing.NewTracer(&tracing.Options{
		Enabled:     true,
		ServiceName: "test",
	})
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()

	var got string
	endpoint := newPeer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get(tracing.TraceContextHeaderName)
		_, _ = w.Write([]byte("abc"))
	}))

	c := transfer.NewClient(transfer.Options{Tracer: tracer})

	span, _, ctx := tracer.StartSpanFromContext(context.Background(), "fetch-payload", nil)
	defer span.Finish()

	if _, err := c.FetchPayload(ctx, endpoint, "item-1"); err != nil {
		t.Fatal(err)
	}
	if got == "" {
		t.Fatalf("header %q not sent", tracing.TraceContextHeaderName)
	}

	sc, err := tracer.FromHTTPHeaders(http.Header{tracing.TraceContextHeaderName: []string{got}})
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(sc) != fmt.Sprint(span.Context()) {
		t.Errorf("got span context %v, want %v", sc, span.Context())
	}

	// no span in the context, no header
	got = "unset"
	if _, err := c.FetchPayload(context.Background(), endpoint, "item-1"); err != nil {
		t.Fatal(err)
	}
	if got != "" {
		t.Errorf("got header %q without a span", got)
	}
}
