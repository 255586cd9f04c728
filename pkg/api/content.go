// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/opentracing/opentracing-go"
	olog "github.com/opentracing/opentracing-go/log"

	"github.com/viewshare/replicator/pkg/campaign"
	"github.com/viewshare/replicator/pkg/jsonhttp"
	"github.com/viewshare/replicator/pkg/localstore"
)

func (s *server) descriptorHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !campaign.ValidContentID(id) {
		s.Logger.Debugf("api: descriptor: invalid id %q", id)
		jsonhttp.BadRequest(w, "invalid content id")
		return
	}

	span, logger, _ := s.Tracer.StartSpanFromContext(r.Context(), "serve-descriptor", s.Logger, opentracing.Tag{Key: "item", Value: id})
	defer span.Finish()

	d, err := s.Store.Descriptor(id)
	if err != nil {
		span.LogFields(olog.Bool("found", false))
		if errors.Is(err, localstore.ErrNotFound) {
			jsonhttp.NotFound(w, nil)
			return
		}
		logger.Errorf("api: descriptor %s: %v", id, err)
		jsonhttp.InternalServerError(w, "read descriptor")
		return
	}

	jsonhttp.OK(w, d)
}

func (s *server) payloadHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !campaign.ValidContentID(id) {
		s.Logger.Debugf("api: payload: invalid id %q", id)
		jsonhttp.BadRequest(w, "invalid content id")
		return
	}

	span, logger, _ := s.Tracer.StartSpanFromContext(r.Context(), "serve-payload", s.Logger, opentracing.Tag{Key: "item", Value: id})
	defer span.Finish()

	link, ok := s.Links.Link(id)
	if !ok {
		span.LogFields(olog.Bool("found", false))
		jsonhttp.NotFound(w, nil)
		return
	}

	f, err := s.Store.OpenPayload(id)
	if err != nil {
		span.LogFields(olog.Bool("found", false))
		if errors.Is(err, localstore.ErrNotFound) {
			jsonhttp.NotFound(w, nil)
			return
		}
		logger.Errorf("api: payload %s: %v", id, err)
		jsonhttp.InternalServerError(w, "read payload")
		return
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		logger.Errorf("api: payload %s: %v", id, err)
		jsonhttp.InternalServerError(w, "read payload")
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	if link.Descriptor.Hash != "" {
		w.Header().Set("ETag", strconv.Quote(link.Descriptor.Hash))
	}
	span.LogFields(olog.Bool("found", true), olog.Int64("size", fi.Size()))
	http.ServeContent(w, r, id, fi.ModTime(), f)
}
