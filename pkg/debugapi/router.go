// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package debugapi

import (
	"expvar"
	"net/http"
	"net/http/pprof"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"resenje.org/web"

	"github.com/viewshare/replicator/pkg/jsonhttp"
	"github.com/viewshare/replicator/pkg/logging/httpaccess"
)

// newBasicRouter constructs the routes that are served before the agent is
// configured: /health, /readiness, /metrics, pprof and vars. The readiness
// handler is passed in so that it can report 503 until Configure is called.
func (s *Service) newBasicRouter(readiness http.HandlerFunc) *mux.Router {
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(jsonhttp.NotFoundHandler)

	quiet(router, "/metrics", promhttp.InstrumentMetricHandler(
		s.metricsRegistry,
		promhttp.HandlerFor(s.metricsRegistry, promhttp.HandlerOpts{}),
	))
	quiet(router, "/health", http.HandlerFunc(statusHandler))
	quiet(router, "/readiness", readiness)

	router.Handle("/debug/pprof", http.RedirectHandler("/debug/pprof/", http.StatusPermanentRedirect))
	for name, h := range map[string]http.HandlerFunc{
		"cmdline": pprof.Cmdline,
		"profile": pprof.Profile,
		"symbol":  pprof.Symbol,
		"trace":   pprof.Trace,
	} {
		router.Handle("/debug/pprof/"+name, h)
	}
	router.PathPrefix("/debug/pprof/").Handler(http.HandlerFunc(pprof.Index))
	router.Handle("/debug/vars", expvar.Handler())

	return router
}

// newRouter adds the agent routes to the basic ones and switches /readiness
// to report success.
func (s *Service) newRouter() *mux.Router {
	router := s.newBasicRouter(statusHandler)

	router.Handle("/status", jsonhttp.MethodHandler{
		"GET": http.HandlerFunc(s.syncStatusHandler),
	})

	router.Handle("/replicate/{id}", jsonhttp.MethodHandler{
		"POST": http.HandlerFunc(s.replicateHandler),
	})

	router.Handle("/retention", jsonhttp.MethodHandler{
		"POST": http.HandlerFunc(s.retentionHandler),
	})

	return router
}

func notReadyHandler(w http.ResponseWriter, _ *http.Request) {
	jsonhttp.ServiceUnavailable(w, "not configured")
}

// quiet registers a handler with access logging suppressed.
func quiet(router *mux.Router, path string, h http.Handler) {
	router.Handle(path, web.ChainHandlers(
		httpaccess.SetAccessLogLevelHandler(0),
		web.FinalHandler(h),
	))
}

// setRouter sets the base Debug API handler with common middlewares.
func (s *Service) setRouter(router http.Handler) {
	h := http.NewServeMux()
	h.Handle("/", web.ChainHandlers(
		httpaccess.NewHTTPAccessLogHandler(s.logger, logrus.InfoLevel, s.tracer, "debug api access"),
		handlers.CompressHandler,
		web.NoCacheHeadersHandler,
		web.FinalHandler(router),
	))

	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()

	s.handler = h
}
