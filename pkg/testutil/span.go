// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package testutil provides finished-span fixtures for the exporter test
// suites.
package testutil

import (
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// Reference ids shared by the test suites.
const (
	TraceID       = "1bbd944a73a05d89eab5d3740a213ee7"
	SpanID        = "a6f5d48acb4d31d9"
	ParentSpanID  = "a6f5d48acb4d31da"
	LinkedTraceID = "1bbd944a73a05d89eab5d3740a213ee8"
	LinkedSpanID  = "a6f5d48acb4d31da"
)

// StartTime is the reference start instant (epoch ns 1575494316027613500),
// EndTime exactly 1,001,000,000 ns later.
var (
	StartTime = time.Unix(0, 1575494316027613500)
	EndTime   = StartTime.Add(1001 * time.Millisecond)
)

// SpanContext builds a sampled span context from hex ids.
func SpanContext(traceID, spanID string) trace.SpanContext {
	tid, _ := trace.TraceIDFromHex(traceID)
	sid, _ := trace.SpanIDFromHex(spanID)
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    tid,
		SpanID:     sid,
		TraceFlags: trace.FlagsSampled,
	})
}

// Span returns a finished span with the reference ids and timing.
func Span(kind trace.SpanKind, status codes.Code, attrs ...attribute.KeyValue) sdktrace.ReadOnlySpan {
	return Stub(kind, status, attrs...).Snapshot()
}

// Stub returns the span as a SpanStub for callers that need to adjust fields
// before snapshotting.
func Stub(kind trace.SpanKind, status codes.Code, attrs ...attribute.KeyValue) tracetest.SpanStub {
	return tracetest.SpanStub{
		Name:        "test",
		SpanContext: SpanContext(TraceID, SpanID),
		Parent:      SpanContext(TraceID, ParentSpanID),
		SpanKind:    kind,
		StartTime:   StartTime,
		EndTime:     EndTime,
		Attributes:  attrs,
		Status:      sdktrace.Status{Code: status},
	}
}
