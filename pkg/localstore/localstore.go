// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package localstore keeps the replicated descriptors and payloads on the
// local filesystem. Every item is kept in two files named by the content id,
// <id>.json holding the descriptor and <id>.bin holding the payload.
package localstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/disk"
	"github.com/spf13/afero"

	"github.com/viewshare/replicator/pkg/campaign"
	"github.com/viewshare/replicator/pkg/logging"
	m "github.com/viewshare/replicator/pkg/metrics"
)

const (
	contentDir       = "content"
	descriptorSuffix = ".json"
	payloadSuffix    = ".bin"
	tmpSuffix        = ".tmp"
)

var (
	ErrNotFound  = errors.New("localstore: not found")
	ErrInvalidID = errors.New("localstore: invalid content id")
)

// UsageFunc returns the used/total ratio of the volume holding path.
type UsageFunc func(path string) (float64, error)

// DiskUsage reports the usage ratio of the OS filesystem holding path.
func DiskUsage(path string) (float64, error) {
	u, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	if u.Total == 0 {
		return 0, fmt.Errorf("disk usage %s: zero total size", path)
	}
	return float64(u.Used) / float64(u.Total), nil
}

type Options struct {
	// Fs defaults to the OS filesystem.
	Fs afero.Fs
	// Dir is the data directory. Items are kept in its content
	// subdirectory.
	Dir string
	// Usage defaults to DiskUsage.
	Usage  UsageFunc
	Logger logging.Logger
}

type Store struct {
	fs      afero.Fs
	dir     string
	usage   UsageFunc
	logger  logging.Logger
	metrics metrics
}

// Entry describes the files held for one content id.
type Entry struct {
	ID         string
	Descriptor bool
	Payload    bool
	// ModTime is the descriptor modification time, or the payload
	// modification time for a payload without a descriptor.
	ModTime time.Time
}

func New(o Options) (*Store, error) {
	if o.Fs == nil {
		o.Fs = afero.NewOsFs()
	}
	if o.Usage == nil {
		o.Usage = DiskUsage
	}
	if o.Logger == nil {
		o.Logger = logging.NewNoop()
	}
	dir := filepath.Join(o.Dir, contentDir)
	if err := o.Fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create content dir: %w", err)
	}
	return &Store{
		fs:      o.Fs,
		dir:     dir,
		usage:   o.Usage,
		logger:  o.Logger,
		metrics: newMetrics(),
	}, nil
}

// Dir returns the directory holding the item files.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) descriptorPath(id string) string {
	return filepath.Join(s.dir, id+descriptorSuffix)
}

// PayloadPath returns the path of the payload file of the item.
func (s *Store) PayloadPath(id string) string {
	return filepath.Join(s.dir, id+payloadSuffix)
}

func (s *Store) exists(path string) (bool, error) {
	_, err := s.fs.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Has reports which of the item files are present.
func (s *Store) Has(id string) (descriptor, payload bool, err error) {
	if !campaign.ValidContentID(id) {
		return false, false, ErrInvalidID
	}
	if descriptor, err = s.exists(s.descriptorPath(id)); err != nil {
		return false, false, err
	}
	if payload, err = s.exists(s.PayloadPath(id)); err != nil {
		return false, false, err
	}
	return descriptor, payload, nil
}

// PutDescriptor writes the descriptor, replacing an existing one.
func (s *Store) PutDescriptor(d *campaign.Descriptor) error {
	if !campaign.ValidContentID(d.ID) {
		return ErrInvalidID
	}
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	if err := s.writeFile(s.descriptorPath(d.ID), data); err != nil {
		s.metrics.WriteErrors.Inc()
		return fmt.Errorf("write descriptor %s: %w", d.ID, err)
	}
	s.metrics.DescriptorWrites.Inc()
	return nil
}

// Descriptor reads the stored descriptor of the item.
func (s *Store) Descriptor(id string) (*campaign.Descriptor, error) {
	if !campaign.ValidContentID(id) {
		return nil, ErrInvalidID
	}
	data, err := afero.ReadFile(s.fs, s.descriptorPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return campaign.ParseDescriptor(data, id)
}

// PutPayload writes the payload and returns the path of its file. The
// descriptor of the item must already be stored.
func (s *Store) PutPayload(id string, data []byte) (string, error) {
	if !campaign.ValidContentID(id) {
		return "", ErrInvalidID
	}
	ok, err := s.exists(s.descriptorPath(id))
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("payload %s: descriptor %w", id, ErrNotFound)
	}
	path := s.PayloadPath(id)
	if err := s.writeFile(path, data); err != nil {
		s.metrics.WriteErrors.Inc()
		return "", fmt.Errorf("write payload %s: %w", id, err)
	}
	s.metrics.PayloadWrites.Inc()
	s.metrics.PayloadBytes.Add(float64(len(data)))
	return path, nil
}

// OpenPayload opens the payload file of the item for reading.
func (s *Store) OpenPayload(id string) (afero.File, error) {
	if !campaign.ValidContentID(id) {
		return nil, ErrInvalidID
	}
	f, err := s.fs.Open(s.PayloadPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// Remove deletes the payload and then the descriptor of the item.
// Missing files are not an error.
func (s *Store) Remove(id string) error {
	if !campaign.ValidContentID(id) {
		return ErrInvalidID
	}
	var errs *multierror.Error
	for _, path := range []string{s.PayloadPath(id), s.descriptorPath(id)} {
		if err := s.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = multierror.Append(errs, err)
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return fmt.Errorf("remove %s: %w", id, err)
	}
	s.metrics.Removals.Inc()
	return nil
}

// List returns the held items ordered by id. Temporary and unrelated
// files are ignored.
func (s *Store) List() ([]Entry, error) {
	infos, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, err
	}

	entries := make(map[string]*Entry)
	get := func(id string) *Entry {
		e, ok := entries[id]
		if !ok {
			e = &Entry{ID: id}
			entries[id] = e
		}
		return e
	}

	for _, fi := range infos {
		if fi.IsDir() {
			continue
		}
		name := fi.Name()
		switch {
		case strings.HasSuffix(name, descriptorSuffix):
			id := strings.TrimSuffix(name, descriptorSuffix)
			if !campaign.ValidContentID(id) {
				continue
			}
			e := get(id)
			e.Descriptor = true
			e.ModTime = fi.ModTime()
		case strings.HasSuffix(name, payloadSuffix):
			id := strings.TrimSuffix(name, payloadSuffix)
			if !campaign.ValidContentID(id) {
				continue
			}
			e := get(id)
			e.Payload = true
			if !e.Descriptor {
				e.ModTime = fi.ModTime()
			}
		}
	}

	list := make([]Entry, 0, len(entries))
	for _, e := range entries {
		list = append(list, *e)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].ID < list[j].ID
	})
	return list, nil
}

// UsageRatio returns the used/total ratio of the volume holding the store.
func (s *Store) UsageRatio() (float64, error) {
	r, err := s.usage(s.dir)
	if err != nil {
		return 0, err
	}
	s.metrics.DiskUsage.Set(r)
	return r, nil
}

// writeFile writes a complete file next to path and renames it into place
// so readers never observe a partial file.
func (s *Store) writeFile(path string, data []byte) error {
	tmp := path + tmpSuffix
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		_ = s.fs.Remove(tmp)
		return err
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		_ = s.fs.Remove(tmp)
		return err
	}
	return nil
}

func (s *Store) Metrics() []prometheus.Collector {
	return m.PrometheusCollectorsFromFields(s.metrics)
}
