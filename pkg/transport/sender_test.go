// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/cihub/seelog"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/opentelemetry-exporter-azuremonitor/pkg/contracts"
	"github.com/DataDog/opentelemetry-exporter-azuremonitor/pkg/log"
)

func TestMain(m *testing.M) {
	log.SetupLogger(seelog.Disabled, "error")
	os.Exit(m.Run())
}

func testEnvelope(name string) *contracts.Envelope {
	return &contracts.Envelope{
		Ver:  1,
		Name: name,
		Time: "2019-12-04T21:18:36.027613Z",
		IKey: "1234abcd-5678-4efa-8abc-1234567890ab",
		Data: &contracts.Data{
			BaseType: contracts.DependencyBaseType,
			BaseData: &contracts.RemoteDependencyData{Ver: 2, ID: "a6f5d48acb4d31d9", Duration: "0.00:00:01.001", Success: true},
		},
	}
}

func TestHTTPSenderClassification(t *testing.T) {
	tests := []struct {
		status int
		want   Result
	}{
		{200, Success},
		{206, FailedRetryable},
		{408, FailedRetryable},
		{429, FailedRetryable},
		{439, FailedRetryable},
		{500, FailedRetryable},
		{502, FailedRetryable},
		{503, FailedRetryable},
		{504, FailedRetryable},
		{400, FailedNotRetryable},
		{401, FailedNotRetryable},
		{403, FailedNotRetryable},
		{404, FailedNotRetryable},
	}
	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			s := NewHTTPSender(server.URL, time.Second)
			res, err := s.Send(context.Background(), []*contracts.Envelope{testEnvelope(contracts.DependencyEnvelopeName)})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res)
		})
	}
}

func TestHTTPSenderPayload(t *testing.T) {
	assert := assert.New(t)
	var (
		gotPath     string
		gotEncoding string
		gotType     string
		gotLines    []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotEncoding = r.Header.Get("Content-Encoding")
		gotType = r.Header.Get("Content-Type")
		zr, err := gzip.NewReader(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		scanner := bufio.NewScanner(zr)
		for scanner.Scan() {
			gotLines = append(gotLines, scanner.Text())
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := NewHTTPSender(server.URL, time.Second)
	batch := []*contracts.Envelope{
		testEnvelope(contracts.DependencyEnvelopeName),
		testEnvelope(contracts.RequestEnvelopeName),
	}
	res, err := s.Send(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(Success, res)

	assert.Equal("/v2/track", gotPath)
	assert.Equal("gzip", gotEncoding)
	assert.Equal("application/x-json-stream", gotType)
	require.Len(t, gotLines, 2, "one ndjson line per envelope")

	var first contracts.Envelope
	require.NoError(t, json.Unmarshal([]byte(gotLines[0]), &first))
	assert.Equal(contracts.DependencyEnvelopeName, first.Name)
	assert.Equal("1234abcd-5678-4efa-8abc-1234567890ab", first.IKey)
}

func TestHTTPSenderNetworkError(t *testing.T) {
	// Nothing listens on port 1; connection errors classify as retryable.
	s := NewHTTPSender("http://127.0.0.1:1", 100*time.Millisecond)
	res, err := s.Send(context.Background(), []*contracts.Envelope{testEnvelope(contracts.DependencyEnvelopeName)})
	require.NoError(t, err)
	assert.Equal(t, FailedRetryable, res)
}

func TestHTTPSenderEmptyBatch(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := NewHTTPSender(server.URL, time.Second)
	res, err := s.Send(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, Success, res)
	assert.Equal(t, 0, requests)
}

func TestResultString(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("success", Success.String())
	assert.Equal("failed-retryable", FailedRetryable.String())
	assert.Equal("failed-not-retryable", FailedNotRetryable.String())
}
