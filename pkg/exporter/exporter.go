// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package exporter implements an OpenTelemetry span exporter that ships
// spans to Azure Monitor as Application Insights envelopes, with a
// disk-backed retry queue for transiently failed batches.
package exporter

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/atomic"

	"github.com/DataDog/opentelemetry-exporter-azuremonitor/pkg/config"
	"github.com/DataDog/opentelemetry-exporter-azuremonitor/pkg/contracts"
	"github.com/DataDog/opentelemetry-exporter-azuremonitor/pkg/log"
	"github.com/DataDog/opentelemetry-exporter-azuremonitor/pkg/storage"
	"github.com/DataDog/opentelemetry-exporter-azuremonitor/pkg/transform"
	"github.com/DataDog/opentelemetry-exporter-azuremonitor/pkg/transport"
)

// ErrExportFailed is returned by ExportSpans when a batch could not be
// delivered, whether or not it was queued for retry.
var ErrExportFailed = errors.New("telemetry transmission failed")

// Exporter converts finished spans to envelopes and transmits them. It owns
// exactly one retry Storage for its lifetime. Export calls are expected to
// be serialized by the caller (one exporter per pipeline); the exporter adds
// no internal mutual exclusion.
type Exporter struct {
	cfg     *config.ExporterConfig
	sender  transport.Sender
	storage *storage.Storage
	stopped atomic.Bool
	stats   stats
}

var _ sdktrace.SpanExporter = (*Exporter)(nil)

type options struct {
	cfg              *config.ExporterConfig
	connectionString string
	sender           transport.Sender
	storageDir       string
	timeout          time.Duration
}

// Option configures an Exporter.
type Option func(*options)

// WithConnectionString supplies the Application Insights connection string
// instead of reading it from the environment.
func WithConnectionString(cs string) Option {
	return func(o *options) { o.connectionString = cs }
}

// WithConfig supplies a fully resolved config, bypassing connection string
// and environment resolution.
func WithConfig(cfg *config.ExporterConfig) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithSender substitutes the transmission sink. Mainly a test seam, but also
// the extension point for custom transports.
func WithSender(s transport.Sender) Option {
	return func(o *options) { o.sender = s }
}

// WithStorageDir overrides the retry storage directory.
func WithStorageDir(dir string) Option {
	return func(o *options) { o.storageDir = dir }
}

// WithTimeout overrides the per-call transmission timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// New returns a ready exporter. Without WithConfig or WithConnectionString
// the configuration is read from the environment.
func New(opts ...Option) (*Exporter, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	cfg := o.cfg
	var err error
	switch {
	case cfg != nil:
	case o.connectionString != "":
		if cfg, err = config.ParseConnectionString(o.connectionString); err != nil {
			return nil, err
		}
	default:
		if cfg, err = config.FromEnv(); err != nil {
			return nil, err
		}
	}
	if o.storageDir != "" {
		cfg.StorageDir = o.storageDir
	}
	if o.timeout > 0 {
		cfg.Timeout = o.timeout
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = config.DefaultTimeout
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sender := o.sender
	if sender == nil {
		sender = transport.NewHTTPSender(cfg.IngestionEndpoint, cfg.Timeout)
	}
	return &Exporter{
		cfg:     cfg,
		sender:  sender,
		storage: storage.New(cfg.StorageDir),
	}, nil
}

// Storage exposes the retry queue owned by this exporter.
func (e *Exporter) Storage() *storage.Storage { return e.storage }

// InstrumentationKey returns the key envelopes are stamped with.
func (e *Exporter) InstrumentationKey() string { return e.cfg.InstrumentationKey }

// ExportSpans implements sdktrace.SpanExporter.
//
// An empty span list succeeds immediately without touching storage. On a
// successful transmission one previously stored batch is opportunistically
// drained; on a retryable failure the current batch is persisted for a later
// drain; non-retryable failures and transmission faults drop the batch.
func (e *Exporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if e.stopped.Load() || len(spans) == 0 {
		return nil
	}
	envelopes := make([]*contracts.Envelope, 0, len(spans))
	for _, span := range spans {
		if env := transform.SpanToEnvelope(span, e.cfg.InstrumentationKey); env != nil {
			envelopes = append(envelopes, env)
		}
	}
	if len(envelopes) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()
	res, err := e.sender.Send(ctx, envelopes)
	if err != nil {
		e.stats.faults.Inc()
		log.Errorf("unexpected transmission fault, dropping %d envelopes: %v", len(envelopes), err) //nolint:errcheck
		return fmt.Errorf("%w: %v", ErrExportFailed, err)
	}
	switch res {
	case transport.Success:
		e.stats.exported.Add(int64(len(envelopes)))
		e.drainOne(ctx)
		return nil
	case transport.FailedRetryable:
		if err := e.storage.Put(envelopes); err != nil {
			log.Warnf("could not persist %d envelopes for retry: %v", len(envelopes), err) //nolint:errcheck
		} else {
			e.stats.stored.Inc()
		}
		return ErrExportFailed
	default:
		return ErrExportFailed
	}
}

// drainOne retransmits one previously stored batch. Best effort: any failure
// leaves the batch queued and never affects the export that triggered the
// drain.
func (e *Exporter) drainOne(ctx context.Context) {
	lease, err := e.storage.Get()
	if err != nil {
		log.Warnf("reading retry storage: %v", err) //nolint:errcheck
		return
	}
	if lease == nil {
		return
	}
	res, err := e.sender.Send(ctx, lease.Envelopes)
	if err != nil || res == transport.FailedRetryable {
		if err != nil {
			log.Debugf("stored batch retransmission fault: %v", err)
		}
		if rerr := lease.Release(); rerr != nil {
			log.Warnf("releasing stored batch: %v", rerr) //nolint:errcheck
		}
		return
	}
	// Accepted, or rejected for good: either way the batch is done.
	if err := lease.Remove(); err != nil {
		log.Warnf("removing stored batch: %v", err) //nolint:errcheck
	}
	if res == transport.Success {
		e.stats.drained.Inc()
	}
}

// Shutdown implements sdktrace.SpanExporter. Exports after Shutdown are
// no-ops returning nil.
func (e *Exporter) Shutdown(ctx context.Context) error {
	e.stopped.Store(true)
	log.Flush()
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
