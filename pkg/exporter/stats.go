// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package exporter

import "go.uber.org/atomic"

type stats struct {
	exported atomic.Int64 // envelopes accepted by the ingestion service
	stored   atomic.Int64 // batches persisted for retry
	drained  atomic.Int64 // stored batches retransmitted successfully
	faults   atomic.Int64 // unexpected transmission faults
}

// Stats is a point-in-time snapshot of the exporter counters.
type Stats struct {
	EnvelopesExported  int64
	BatchesStored      int64
	BatchesDrained     int64
	TransmissionFaults int64
}

// Stats snapshots the exporter counters.
func (e *Exporter) Stats() Stats {
	return Stats{
		EnvelopesExported:  e.stats.exported.Load(),
		BatchesStored:      e.stats.stored.Load(),
		BatchesDrained:     e.stats.drained.Load(),
		TransmissionFaults: e.stats.faults.Load(),
	}
}
