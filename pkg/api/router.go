// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"resenje.org/web"

	"github.com/viewshare/replicator/pkg/jsonhttp"
	"github.com/viewshare/replicator/pkg/logging/httpaccess"
)

func (s *server) setupRouting() {
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(jsonhttp.NotFoundHandler)

	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "Campaign Content Replicator")
	})

	router.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "User-agent: *\nDisallow: /")
	})

	router.Handle("/health", web.ChainHandlers(
		httpaccess.SetAccessLogLevelHandler(0), // suppress access log messages
		web.FinalHandler(jsonhttp.MethodHandler{
			"GET": http.HandlerFunc(statusHandler),
		}),
	))

	router.Handle("/content/{id}/descriptor", jsonhttp.MethodHandler{
		"GET": http.HandlerFunc(s.descriptorHandler),
	})

	router.Handle("/content/{id}", jsonhttp.MethodHandler{
		"GET": web.ChainHandlers(
			s.payloadMetricsHandler,
			web.FinalHandlerFunc(s.payloadHandler),
		),
	})

	s.Handler = web.ChainHandlers(
		httpaccess.NewHTTPAccessLogHandler(s.Logger, logrus.InfoLevel, s.Tracer, "api access"),
		handlers.RecoveryHandler(handlers.RecoveryLogger(s.Logger.NewEntry()), handlers.PrintRecoveryStack(false)),
		s.pageviewMetricsHandler,
		web.FinalHandler(router),
	)
}

type statusResponse struct {
	Status string `json:"status"`
}

func statusHandler(w http.ResponseWriter, _ *http.Request) {
	jsonhttp.OK(w, statusResponse{
		Status: "ok",
	})
}
