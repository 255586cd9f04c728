// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package debugapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/viewshare/replicator"
	"github.com/viewshare/replicator/pkg/jsonhttp"
	"github.com/viewshare/replicator/pkg/replication"
)

type statusResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func statusHandler(w http.ResponseWriter, _ *http.Request) {
	jsonhttp.OK(w, statusResponse{
		Status:  "ok",
		Version: replicator.Version,
	})
}

type syncStatusResponse struct {
	NodeID     string  `json:"nodeId"`
	Region     string  `json:"region,omitempty"`
	SyncState  string  `json:"syncState"`
	Checkpoint *uint64 `json:"checkpoint"`
	Links      int     `json:"links"`
}

func (s *Service) syncStatusHandler(w http.ResponseWriter, _ *http.Request) {
	cp, found, err := s.sync.Checkpoint()
	if err != nil {
		s.logger.Debugf("debug api: status: checkpoint: %v", err)
		s.logger.Error("debug api: status: cannot read checkpoint")
		jsonhttp.InternalServerError(w, "cannot read checkpoint")
		return
	}

	resp := syncStatusResponse{
		NodeID:    s.nodeID,
		Region:    s.region,
		SyncState: s.sync.State().String(),
		Links:     s.links.Len(),
	}
	if found {
		resp.Checkpoint = &cp
	}
	jsonhttp.OK(w, resp)
}

func (s *Service) replicateHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil || id == 0 {
		s.logger.Debugf("debug api: replicate: invalid campaign id %q", mux.Vars(r)["id"])
		jsonhttp.BadRequest(w, "invalid campaign id")
		return
	}

	if err := s.agent.Replicate(r.Context(), id); err != nil {
		if errors.Is(err, replication.ErrMalformedCampaign) {
			s.logger.Debugf("debug api: replicate %d: %v", id, err)
			jsonhttp.BadRequest(w, "malformed campaign")
			return
		}
		s.logger.Debugf("debug api: replicate %d: %v", id, err)
		s.logger.Errorf("debug api: replicate %d failed", id)
		jsonhttp.InternalServerError(w, "replication failed")
		return
	}

	jsonhttp.OK(w, nil)
}

func (s *Service) retentionHandler(w http.ResponseWriter, r *http.Request) {
	res, err := s.agent.RunRetention(r.Context())
	if err != nil {
		s.logger.Debugf("debug api: retention: %v", err)
		s.logger.Error("debug api: retention sweep failed")
		jsonhttp.InternalServerError(w, "retention sweep failed")
		return
	}
	jsonhttp.OK(w, res)
}
