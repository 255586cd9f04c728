// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package node

import (
	"errors"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/viewshare/replicator/pkg/logging"
	"github.com/viewshare/replicator/pkg/statestore/leveldb"
	"github.com/viewshare/replicator/pkg/storage"
)

const nodeIDKey = "node_id"

// InitStateStore will initialize the stateStore with the given path to the
// data directory. When given an empty directory path, the function will instead
// initialize an in-memory state store that will not be persisted.
func InitStateStore(logger logging.Logger, dataDir string) (storage.StateStorer, error) {
	if dataDir == "" {
		logger.Warning("using in-mem state store, no node state will be persisted")
		return leveldb.NewInMemoryStateStore(logger)
	}
	return leveldb.NewStateStore(filepath.Join(dataDir, "statestore"), logger)
}

// initNodeID returns the configured node id. Without one, the id persisted
// by a previous run is used, or a random one is generated and persisted.
// A configured id that differs from the persisted one replaces it.
func initNodeID(stateStore storage.StateStorer, configured string) (string, error) {
	if configured != "" {
		if err := stateStore.Put(nodeIDKey, configured); err != nil {
			return "", err
		}
		return configured, nil
	}

	var id string
	err := stateStore.Get(nodeIDKey, &id)
	switch {
	case err == nil && id != "":
		return id, nil
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		return "", err
	}

	id = uuid.NewString()
	if err := stateStore.Put(nodeIDKey, id); err != nil {
		return "", err
	}
	return id, nil
}
