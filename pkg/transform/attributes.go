// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package transform

import (
	"encoding/json"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// attrMap indexes a span's attribute list for the ordered convention lookups
// in this package.
type attrMap map[attribute.Key]attribute.Value

func newAttrMap(kvs []attribute.KeyValue) attrMap {
	m := make(attrMap, len(kvs))
	for _, kv := range kvs {
		if kv.Key == "" {
			continue
		}
		m[kv.Key] = kv.Value
	}
	return m
}

// getStr returns the matched value as a string for the first present key.
// If none of the keys is present, the empty string is returned.
func (m attrMap) getStr(keys ...attribute.Key) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return stringify(v)
		}
	}
	return ""
}

// hasNamespace reports whether any attribute key starts with the given
// semantic convention namespace, e.g. "http.".
func (m attrMap) hasNamespace(ns string) bool {
	for k := range m {
		if strings.HasPrefix(string(k), ns) {
			return true
		}
	}
	return false
}

// Attribute namespaces consumed by the convention rules. Keys under these
// never overflow into envelope properties. "component" is the legacy
// OpenCensus key carried by some instrumentations.
var consumedNamespaces = []string{"http.", "db.", "rpc.", "messaging.", "net."}

func isConsumedKey(k attribute.Key) bool {
	if k == "component" {
		return true
	}
	for _, ns := range consumedNamespaces {
		if strings.HasPrefix(string(k), ns) {
			return true
		}
	}
	return false
}

// stringify coerces an attribute value to a string, best-effort: slice
// values are JSON-encoded, everything else uses the value's own emitter.
// It never fails; invalid values stringify to their emitter's placeholder.
func stringify(v attribute.Value) string {
	switch v.Type() {
	case attribute.BOOLSLICE:
		data, _ := json.Marshal(v.AsBoolSlice())
		return string(data)
	case attribute.INT64SLICE:
		data, _ := json.Marshal(v.AsInt64Slice())
		return string(data)
	case attribute.FLOAT64SLICE:
		data, _ := json.Marshal(v.AsFloat64Slice())
		return string(data)
	case attribute.STRINGSLICE:
		data, _ := json.Marshal(v.AsStringSlice())
		return string(data)
	default:
		return v.Emit()
	}
}
