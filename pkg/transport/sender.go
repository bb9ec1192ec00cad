// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package transport transmits envelope batches to the ingestion endpoint and
// classifies the outcome as retryable or not. The Sender interface is the
// seam the exporter is built against; tests substitute it freely.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/DataDog/opentelemetry-exporter-azuremonitor/pkg/contracts"
	"github.com/DataDog/opentelemetry-exporter-azuremonitor/pkg/log"
)

// Result classifies the outcome of one transmission attempt.
type Result int

const (
	// Success means the whole batch was accepted.
	Success Result = iota
	// FailedRetryable means the batch was not accepted but is safe to
	// replay later.
	FailedRetryable
	// FailedNotRetryable means the batch was rejected and must not be
	// replayed.
	FailedNotRetryable
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case FailedRetryable:
		return "failed-retryable"
	case FailedNotRetryable:
		return "failed-not-retryable"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// Sender transmits one batch of envelopes. A non-nil error is an unexpected
// fault: the caller reports failure without persisting the batch.
type Sender interface {
	Send(ctx context.Context, envelopes []*contracts.Envelope) (Result, error)
}

const trackPath = "/v2/track"

// retryableStatus lists the response codes the ingestion service documents
// as transient. 439 is the legacy daily-quota throttle code.
var retryableStatus = map[int]bool{
	http.StatusPartialContent:      true,
	http.StatusRequestTimeout:      true,
	http.StatusTooManyRequests:     true,
	439:                            true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// HTTPSender posts batches as gzip-compressed newline-delimited JSON to the
// /v2/track route of an ingestion endpoint.
type HTTPSender struct {
	client *http.Client
	url    string
}

var _ Sender = (*HTTPSender)(nil)

// NewHTTPSender returns a sender for the given ingestion endpoint, e.g.
// "https://dc.services.visualstudio.com". The timeout bounds each Send call
// in addition to any deadline on the caller's context.
func NewHTTPSender(endpoint string, timeout time.Duration) *HTTPSender {
	return &HTTPSender{
		client: &http.Client{Timeout: timeout},
		url:    strings.TrimRight(endpoint, "/") + trackPath,
	}
}

// Send implements Sender. Network level errors are transient by definition
// (DNS, refused connections, timeouts) and classify as FailedRetryable.
func (s *HTTPSender) Send(ctx context.Context, envelopes []*contracts.Envelope) (Result, error) {
	if len(envelopes) == 0 {
		return Success, nil
	}
	body, err := encode(envelopes)
	if err != nil {
		return FailedNotRetryable, fmt.Errorf("encoding payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return FailedNotRetryable, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-json-stream")
	req.Header.Set("Content-Encoding", "gzip")

	resp, err := s.client.Do(req)
	if err != nil {
		log.Debugf("transmission of %d envelopes failed: %v", len(envelopes), err)
		return FailedRetryable, nil
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusOK:
		return Success, nil
	case retryableStatus[resp.StatusCode]:
		log.Debugf("ingestion returned %d for %d envelopes, batch kept for retry", resp.StatusCode, len(envelopes))
		return FailedRetryable, nil
	default:
		log.Warnf("ingestion rejected batch of %d envelopes: status %d", len(envelopes), resp.StatusCode) //nolint:errcheck
		return FailedNotRetryable, nil
	}
}

// encode serializes the batch as gzip-compressed ndjson, one envelope per
// line.
func encode(envelopes []*contracts.Envelope) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	enc := json.NewEncoder(zw)
	for _, e := range envelopes {
		if err := enc.Encode(e); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
