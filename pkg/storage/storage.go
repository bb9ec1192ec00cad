// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package storage implements the durable retry queue for telemetry batches.
// Each file under the storage path holds exactly one export call's worth of
// envelopes, serialized as JSON. File names embed the creation time in
// zero-padded nanoseconds so that lexicographic order is FIFO order, plus a
// random suffix so that exporters sharing a directory never collide.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DataDog/opentelemetry-exporter-azuremonitor/pkg/contracts"
	"github.com/DataDog/opentelemetry-exporter-azuremonitor/pkg/log"
)

const (
	blobSuffix = ".blob"
	lockSuffix = ".lock"
	tmpSuffix  = ".tmp"
)

const (
	// DefaultLeaseDuration is how long a claimed batch stays invisible to
	// Get before it is considered abandoned and returned to the queue.
	DefaultLeaseDuration = time.Minute

	// DefaultRetention drops batches that have been pending for too long,
	// bounding disk usage under persistent transmission failure.
	DefaultRetention = 48 * time.Hour
)

// Storage is a filesystem-rooted FIFO queue of envelope batches.
//
// The zero value is not usable; construct with New. A single Storage is safe
// for concurrent use; two Storage instances on the same directory rely on
// rename atomicity rather than locking.
type Storage struct {
	mu        sync.Mutex
	path      string
	lease     time.Duration
	retention time.Duration
}

// Option configures a Storage.
type Option func(*Storage)

// WithLeaseDuration overrides DefaultLeaseDuration.
func WithLeaseDuration(d time.Duration) Option {
	return func(s *Storage) { s.lease = d }
}

// WithRetention overrides DefaultRetention. Zero disables age-based expiry.
func WithRetention(d time.Duration) Option {
	return func(s *Storage) { s.retention = d }
}

// New returns a Storage rooted at path. The directory is not created until
// the first Put.
func New(path string, opts ...Option) *Storage {
	s := &Storage{
		path:      path,
		lease:     DefaultLeaseDuration,
		retention: DefaultRetention,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the current storage directory.
func (s *Storage) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// SetPath rebinds the storage directory. Batches already written under the
// previous path are left where they are.
func (s *Storage) SetPath(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.path = path
}

// Put appends one batch to the queue. The file is written to a temp name and
// renamed into place so that Get never observes a partial batch.
func (s *Storage) Put(envelopes []*contracts.Envelope) error {
	if len(envelopes) == 0 {
		return nil
	}
	dir := s.Path()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("retry storage: %w", err)
	}
	buf, err := json.Marshal(envelopes)
	if err != nil {
		return fmt.Errorf("retry storage: serializing batch: %w", err)
	}
	name := fmt.Sprintf("%020d-%s%s", time.Now().UnixNano(), uuid.NewString(), blobSuffix)
	tmp := filepath.Join(dir, name+tmpSuffix)
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return fmt.Errorf("retry storage: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, name)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("retry storage: %w", err)
	}
	return nil
}

// Get claims the oldest unclaimed batch and returns it as a lease, or nil
// when the queue is empty. A missing storage directory is treated as an
// empty queue and is not created. Claiming renames the file so concurrent
// callers never see the same batch; the claim is completed with Remove or
// undone with Release on the returned lease.
//
// As a side effect Get drops batches older than the retention period and
// returns claims abandoned for longer than the lease duration to the queue.
func (s *Storage) Get() (*BatchLease, error) {
	s.mu.Lock()
	dir, lease, retention := s.path, s.lease, s.retention
	s.mu.Unlock()

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("retry storage: %w", err)
	}
	now := time.Now()
	// os.ReadDir sorts by name, which is creation order for blob names.
	for _, entry := range entries {
		name := entry.Name()
		full := filepath.Join(dir, name)
		switch {
		case strings.HasSuffix(name, lockSuffix):
			info, err := entry.Info()
			if err != nil {
				continue
			}
			if now.Sub(info.ModTime()) > lease {
				// Abandoned claim (e.g. crash mid-drain): requeue. It will
				// be picked up by a later Get in its original position.
				os.Rename(full, strings.TrimSuffix(full, lockSuffix)) //nolint:errcheck
			}
		case strings.HasSuffix(name, blobSuffix):
			if retention > 0 {
				if info, err := entry.Info(); err == nil && now.Sub(info.ModTime()) > retention {
					log.Warnf("retry storage: dropping batch %s past retention", name)
					os.Remove(full)
					continue
				}
			}
			locked := full + lockSuffix
			if err := os.Rename(full, locked); err != nil {
				// Lost the claim race with another exporter.
				continue
			}
			// Rename preserves mtime; touch the lock so the lease clock
			// starts at claim time, not at batch creation time.
			os.Chtimes(locked, now, now) //nolint:errcheck
			buf, err := os.ReadFile(locked)
			if err != nil {
				os.Remove(locked)
				continue
			}
			var envelopes []*contracts.Envelope
			if err := json.Unmarshal(buf, &envelopes); err != nil {
				log.Warnf("retry storage: dropping undecodable batch %s: %v", name, err)
				os.Remove(locked)
				continue
			}
			return &BatchLease{Envelopes: envelopes, path: locked}, nil
		}
	}
	return nil, nil
}

// BatchLease is a claimed batch. Exactly one of Remove or Release should be
// called once the caller is done with it.
type BatchLease struct {
	Envelopes []*contracts.Envelope

	path string
}

// Remove consumes the batch, deleting it from disk.
func (l *BatchLease) Remove() error {
	return os.Remove(l.path)
}

// Release returns the batch to the queue untouched, keeping its original
// position.
func (l *BatchLease) Release() error {
	return os.Rename(l.path, strings.TrimSuffix(l.path, lockSuffix))
}
