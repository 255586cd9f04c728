// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jsonhttp_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/viewshare/replicator/pkg/jsonhttp"
)

func TestRespond(t *testing.T) {
	for _, tc := range []struct {
		name     string
		code     int
		response interface{}
		want     jsonhttp.StatusResponse
	}{
		{
			name: "nil response",
			code: http.StatusNotFound,
			want: jsonhttp.StatusResponse{Message: "Not Found", Code: http.StatusNotFound},
		},
		{
			name:     "string response",
			code:     http.StatusBadRequest,
			response: "invalid campaign id",
			want:     jsonhttp.StatusResponse{Message: "invalid campaign id", Code: http.StatusBadRequest},
		},
		{
			name:     "error response",
			code:     http.StatusInternalServerError,
			response: errors.New("ledger unreachable"),
			want:     jsonhttp.StatusResponse{Message: "ledger unreachable", Code: http.StatusInternalServerError},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			jsonhttp.Respond(w, tc.code, tc.response)

			if w.Code != tc.code {
				t.Errorf("got status code %d, want %d", w.Code, tc.code)
			}
			if got := w.Header().Get("Content-Type"); got != jsonhttp.DefaultContentTypeHeader {
				t.Errorf("got content type %q, want %q", got, jsonhttp.DefaultContentTypeHeader)
			}
			var got jsonhttp.StatusResponse
			if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Errorf("got response %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestRespondStruct(t *testing.T) {
	type status struct {
		Checkpoint uint64 `json:"checkpoint"`
	}
	w := httptest.NewRecorder()
	jsonhttp.OK(w, status{Checkpoint: 42})

	if got, want := strings.TrimSpace(w.Body.String()), `{"checkpoint":42}`; got != want {
		t.Errorf("got body %s, want %s", got, want)
	}
}

func TestMethodHandler(t *testing.T) {
	h := jsonhttp.MethodHandler{
		"POST": http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, err := io.ReadAll(r.Body)
			if err != nil {
				t.Fatal(err)
			}
			fmt.Fprint(w, "got: ", string(got))
		}),
	}

	t.Run("method allowed", func(t *testing.T) {
		body := "test body"

		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		w := httptest.NewRecorder()

		h.ServeHTTP(w, r)

		statusCode := w.Result().StatusCode
		if statusCode != http.StatusOK {
			t.Errorf("got status code %d, want %d", statusCode, http.StatusOK)
		}

		wantBody := "got: " + body
		gotBody := w.Body.String()

		if gotBody != wantBody {
			t.Errorf("got body %q, want %q", gotBody, wantBody)
		}
	})

	t.Run("method not allowed", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		w := httptest.NewRecorder()

		h.ServeHTTP(w, r)

		statusCode := w.Result().StatusCode
		wantCode := http.StatusMethodNotAllowed
		if statusCode != wantCode {
			t.Errorf("got status code %d, want %d", statusCode, wantCode)
		}

		var m *jsonhttp.StatusResponse

		if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
			t.Errorf("json unmarshal response body: %s", err)
		}

		if m.Code != wantCode {
			t.Errorf("got message code %d, want %d", m.Code, wantCode)
		}
	})
}

func TestNotFoundHandler(t *testing.T) {
	w := httptest.NewRecorder()

	jsonhttp.NotFoundHandler(w, nil)

	if w.Code != http.StatusNotFound {
		t.Errorf("got status code %d, want %d", w.Code, http.StatusNotFound)
	}
}
