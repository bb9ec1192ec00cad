// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/opentelemetry-exporter-azuremonitor/pkg/contracts"
)

func testEnvelope(id string) *contracts.Envelope {
	return &contracts.Envelope{
		Ver:  1,
		Name: contracts.DependencyEnvelopeName,
		Time: "2019-12-04T21:18:36.027613Z",
		IKey: "1234abcd-5678-4efa-8abc-1234567890ab",
		Tags: map[string]string{contracts.TagOperationID: "1bbd944a73a05d89eab5d3740a213ee7"},
		Data: &contracts.Data{
			BaseType: contracts.DependencyBaseType,
			BaseData: &contracts.RemoteDependencyData{
				Ver:      2,
				ID:       id,
				Name:     "test",
				Duration: "0.00:00:01.001",
				Success:  true,
			},
		},
	}
}

func blobCount(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)
	n := 0
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), blobSuffix) || strings.HasSuffix(e.Name(), lockSuffix) {
			n++
		}
	}
	return n
}

func TestPutGetRoundTrip(t *testing.T) {
	assert := assert.New(t)
	dir := t.TempDir()
	s := New(dir)

	batch := []*contracts.Envelope{testEnvelope("a6f5d48acb4d31d9"), testEnvelope("a6f5d48acb4d31da")}
	require.NoError(t, s.Put(batch))
	assert.Equal(1, blobCount(t, dir), "one file per export call")

	lease, err := s.Get()
	require.NoError(t, err)
	require.NotNil(t, lease)
	require.Len(t, lease.Envelopes, 2)

	got := lease.Envelopes[0]
	assert.Equal(contracts.DependencyEnvelopeName, got.Name)
	assert.Equal("2019-12-04T21:18:36.027613Z", got.Time)
	assert.Equal("1234abcd-5678-4efa-8abc-1234567890ab", got.IKey)
	assert.Equal("1bbd944a73a05d89eab5d3740a213ee7", got.Tags[contracts.TagOperationID])
	base, ok := got.Data.BaseData.(map[string]interface{})
	require.True(t, ok)
	assert.Equal("a6f5d48acb4d31d9", base["id"])
	assert.Equal("0.00:00:01.001", base["duration"])
	assert.Equal(true, base["success"])

	require.NoError(t, lease.Remove())
	next, err := s.Get()
	require.NoError(t, err)
	assert.Nil(next)
	assert.Equal(0, blobCount(t, dir))
}

func TestGetMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "never-created")
	s := New(dir)

	lease, err := s.Get()
	require.NoError(t, err)
	assert.Nil(t, lease)

	// Get must not create the directory.
	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestPutEmptyBatch(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "never-created")
	s := New(dir)
	require.NoError(t, s.Put(nil))
	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestFIFOOrder(t *testing.T) {
	assert := assert.New(t)
	s := New(t.TempDir())

	for _, id := range []string{"first", "second", "third"} {
		require.NoError(t, s.Put([]*contracts.Envelope{testEnvelope(id)}))
		time.Sleep(time.Millisecond) // distinct creation timestamps in file names
	}

	var order []string
	for {
		lease, err := s.Get()
		require.NoError(t, err)
		if lease == nil {
			break
		}
		base := lease.Envelopes[0].Data.BaseData.(map[string]interface{})
		order = append(order, base["id"].(string))
		require.NoError(t, lease.Remove())
	}
	assert.Equal([]string{"first", "second", "third"}, order)
}

func TestLeaseClaimAndRelease(t *testing.T) {
	assert := assert.New(t)
	s := New(t.TempDir())
	require.NoError(t, s.Put([]*contracts.Envelope{testEnvelope("only")}))

	lease, err := s.Get()
	require.NoError(t, err)
	require.NotNil(t, lease)

	// Claimed batches are invisible to further Gets.
	second, err := s.Get()
	require.NoError(t, err)
	assert.Nil(second)

	require.NoError(t, lease.Release())
	third, err := s.Get()
	require.NoError(t, err)
	assert.NotNil(third)
}

func TestStaleClaimReclaimed(t *testing.T) {
	s := New(t.TempDir(), WithLeaseDuration(10*time.Millisecond))
	require.NoError(t, s.Put([]*contracts.Envelope{testEnvelope("abandoned")}))

	lease, err := s.Get()
	require.NoError(t, err)
	require.NotNil(t, lease)
	// Simulate a crashed drain: never Remove or Release.
	time.Sleep(20 * time.Millisecond)

	// First pass requeues the stale claim, second pass picks it up.
	first, err := s.Get()
	require.NoError(t, err)
	assert.Nil(t, first)
	second, err := s.Get()
	require.NoError(t, err)
	require.NotNil(t, second)
	base := second.Envelopes[0].Data.BaseData.(map[string]interface{})
	assert.Equal(t, "abandoned", base["id"])
}

func TestRetentionExpiry(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, WithRetention(10*time.Millisecond))
	require.NoError(t, s.Put([]*contracts.Envelope{testEnvelope("expired")}))
	time.Sleep(20 * time.Millisecond)

	lease, err := s.Get()
	require.NoError(t, err)
	assert.Nil(t, lease)
	assert.Equal(t, 0, blobCount(t, dir))
}

func TestSetPath(t *testing.T) {
	assert := assert.New(t)
	dirA, dirB := t.TempDir(), t.TempDir()
	s := New(dirA)
	require.NoError(t, s.Put([]*contracts.Envelope{testEnvelope("in-a")}))

	s.SetPath(dirB)
	assert.Equal(dirB, s.Path())
	lease, err := s.Get()
	require.NoError(t, err)
	assert.Nil(lease)

	s.SetPath(dirA)
	lease, err = s.Get()
	require.NoError(t, err)
	require.NotNil(t, lease)
	require.NoError(t, lease.Remove())
}

func TestUndecodableBatchDropped(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "00000000000000000001-x"+blobSuffix), []byte("not json"), 0o644))

	lease, err := s.Get()
	require.NoError(t, err)
	assert.Nil(t, lease)
	assert.Equal(t, 0, blobCount(t, dir))
}
