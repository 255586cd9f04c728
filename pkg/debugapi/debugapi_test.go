// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package debugapi_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"resenje.org/web"

	"github.com/viewshare/replicator"
	"github.com/viewshare/replicator/pkg/debugapi"
	"github.com/viewshare/replicator/pkg/jsonhttp"
	"github.com/viewshare/replicator/pkg/jsonhttp/jsonhttptest"
	"github.com/viewshare/replicator/pkg/listener"
	"github.com/viewshare/replicator/pkg/logging"
	"github.com/viewshare/replicator/pkg/replication"
	"github.com/viewshare/replicator/pkg/retention"
)

type agentMock struct {
	replicated []uint64
	err        error
	result     retention.Result
}

func (a *agentMock) Replicate(_ context.Context, id uint64) error {
	a.replicated = append(a.replicated, id)
	return a.err
}

func (a *agentMock) RunRetention(context.Context) (retention.Result, error) {
	return a.result, a.err
}

type syncMock struct {
	state      listener.State
	checkpoint uint64
	found      bool
}

func (s syncMock) State() listener.State { return s.state }

func (s syncMock) Checkpoint() (uint64, bool, error) { return s.checkpoint, s.found, nil }

type linksMock int

func (l linksMock) Len() int { return int(l) }

type testServerOptions struct {
	Agent        *agentMock
	Sync         syncMock
	Links        int
	Unconfigured bool
	ExtraMetrics []prometheus.Collector
}

func newTestServer(t *testing.T, o testServerOptions) *http.Client {
	t.Helper()

	s := debugapi.New("node-1", "eu", logging.NewNoop(), nil)
	if !o.Unconfigured {
		if o.Agent == nil {
			o.Agent = &agentMock{}
		}
		s.Configure(o.Agent, o.Sync, linksMock(o.Links))
	}
	s.MustRegisterMetrics(o.ExtraMetrics...)

	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)

	return &http.Client{
		Transport: web.RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			u, err := url.Parse(ts.URL + r.URL.String())
			if err != nil {
				return nil, err
			}
			r.URL = u
			return ts.Client().Transport.RoundTrip(r)
		}),
	}
}

func TestHealth(t *testing.T) {
	client := newTestServer(t, testServerOptions{Unconfigured: true})

	jsonhttptest.Request(t, client, http.MethodGet, "/health", http.StatusOK,
		jsonhttptest.WithExpectedJSONResponse(map[string]string{
			"status":  "ok",
			"version": replicator.Version,
		}),
	)
}

func TestReadiness(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		client := newTestServer(t, testServerOptions{Unconfigured: true})
		jsonhttptest.Request(t, client, http.MethodGet, "/readiness", http.StatusServiceUnavailable,
			jsonhttptest.WithExpectedJSONResponse(jsonhttp.StatusResponse{
				Message: "not configured",
				Code:    http.StatusServiceUnavailable,
			}),
		)
	})

	t.Run("configured", func(t *testing.T) {
		client := newTestServer(t, testServerOptions{})
		jsonhttptest.Request(t, client, http.MethodGet, "/readiness", http.StatusOK)
	})
}

func TestMetrics(t *testing.T) {
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "replicator",
		Name:      "test_counter",
		Help:      "Test counter.",
	})
	c.Add(3)
	client := newTestServer(t, testServerOptions{ExtraMetrics: []prometheus.Collector{c}})

	var body []byte
	jsonhttptest.Request(t, client, http.MethodGet, "/metrics", http.StatusOK,
		jsonhttptest.WithPutResponseBody(&body),
	)
	for _, want := range []string{"replicator_test_counter 3", "replicator_info{version=", "go_goroutines"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics do not contain %q", want)
		}
	}
}

func TestStatus(t *testing.T) {
	t.Run("synced", func(t *testing.T) {
		client := newTestServer(t, testServerOptions{
			Sync:  syncMock{state: listener.Polling, checkpoint: 5000, found: true},
			Links: 3,
		})
		cp := uint64(5000)
		jsonhttptest.Request(t, client, http.MethodGet, "/status", http.StatusOK,
			jsonhttptest.WithExpectedJSONResponse(struct {
				NodeID     string  `json:"nodeId"`
				Region     string  `json:"region,omitempty"`
				SyncState  string  `json:"syncState"`
				Checkpoint *uint64 `json:"checkpoint"`
				Links      int     `json:"links"`
			}{
				NodeID:     "node-1",
				Region:     "eu",
				SyncState:  "polling",
				Checkpoint: &cp,
				Links:      3,
			}),
		)
	})

	t.Run("no checkpoint", func(t *testing.T) {
		client := newTestServer(t, testServerOptions{})
		var resp struct {
			SyncState  string  `json:"syncState"`
			Checkpoint *uint64 `json:"checkpoint"`
		}
		jsonhttptest.Request(t, client, http.MethodGet, "/status", http.StatusOK,
			jsonhttptest.WithUnmarshalResponse(&resp),
		)
		if resp.SyncState != "idle" || resp.Checkpoint != nil {
			t.Errorf("got %+v", resp)
		}
	})
}

func TestReplicate(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		agent := &agentMock{}
		client := newTestServer(t, testServerOptions{Agent: agent})

		jsonhttptest.Request(t, client, http.MethodPost, "/replicate/42", http.StatusOK,
			jsonhttptest.WithExpectedJSONResponse(jsonhttp.StatusResponse{
				Message: http.StatusText(http.StatusOK),
				Code:    http.StatusOK,
			}),
		)
		if len(agent.replicated) != 1 || agent.replicated[0] != 42 {
			t.Errorf("got replicated %v, want [42]", agent.replicated)
		}
	})

	t.Run("invalid id", func(t *testing.T) {
		agent := &agentMock{}
		client := newTestServer(t, testServerOptions{Agent: agent})

		for _, id := range []string{"0", "abc", "-1"} {
			jsonhttptest.Request(t, client, http.MethodPost, "/replicate/"+id, http.StatusBadRequest)
		}
		if len(agent.replicated) != 0 {
			t.Errorf("replicated %v", agent.replicated)
		}
	})

	t.Run("malformed campaign", func(t *testing.T) {
		client := newTestServer(t, testServerOptions{Agent: &agentMock{err: replication.ErrMalformedCampaign}})
		jsonhttptest.Request(t, client, http.MethodPost, "/replicate/1", http.StatusBadRequest)
	})

	t.Run("failure", func(t *testing.T) {
		client := newTestServer(t, testServerOptions{Agent: &agentMock{err: errors.New("ledger unreachable")}})
		jsonhttptest.Request(t, client, http.MethodPost, "/replicate/1", http.StatusInternalServerError)
	})

	t.Run("method not allowed", func(t *testing.T) {
		client := newTestServer(t, testServerOptions{})
		jsonhttptest.Request(t, client, http.MethodGet, "/replicate/1", http.StatusMethodNotAllowed)
	})
}

func TestRetention(t *testing.T) {
	agent := &agentMock{result: retention.Result{Scanned: 4, Evicted: 1, Orphans: 1}}
	client := newTestServer(t, testServerOptions{Agent: agent})

	jsonhttptest.Request(t, client, http.MethodPost, "/retention", http.StatusOK,
		jsonhttptest.WithExpectedJSONResponse(retention.Result{Scanned: 4, Evicted: 1, Orphans: 1}),
	)
}

func TestPprofRedirect(t *testing.T) {
	client := newTestServer(t, testServerOptions{Unconfigured: true})
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	resp, err := client.Get("/debug/pprof")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusPermanentRedirect {
		t.Errorf("got status %d, want %d", resp.StatusCode, http.StatusPermanentRedirect)
	}
}
