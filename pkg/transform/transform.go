// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package transform implements the mapping from finished OpenTelemetry spans
// to Application Insights envelopes. It is pure: no I/O, no mutation of the
// input span.
package transform

import (
	"encoding/json"
	"net/url"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/DataDog/opentelemetry-exporter-azuremonitor/pkg/contracts"
)

// sdkVersion is reported on every envelope under ai.internal.sdkVersion.
const sdkVersion = "go:otel-azuremonitor-0.1.0"

// SpanToEnvelope maps one finished span to its telemetry envelope. It
// returns nil only when span is nil, as a pass-through for no-op callers.
//
// SERVER and CONSUMER spans become Request envelopes; every other kind
// becomes a RemoteDependency envelope. Attribute handling follows the fixed
// priority order http > db > rpc > messaging, first match wins; attributes
// not consumed by a matched convention overflow into the payload properties.
func SpanToEnvelope(span sdktrace.ReadOnlySpan, instrumentationKey string) *contracts.Envelope {
	if span == nil {
		return nil
	}

	sc := span.SpanContext()
	env := &contracts.Envelope{
		Ver:  1,
		IKey: instrumentationKey,
		Time: FormatTime(span.StartTime()),
		Tags: map[string]string{
			contracts.TagOperationID: sc.TraceID().String(),
			contracts.TagSDKVersion:  sdkVersion,
		},
	}
	if parent := span.Parent(); parent.SpanID().IsValid() {
		env.Tags[contracts.TagOperationParentID] = parent.SpanID().String()
	}
	resourceTags(span, env.Tags)

	attrs := newAttrMap(span.Attributes())
	props := make(map[string]string)
	duration := FormatDuration(span.EndTime().Sub(span.StartTime()))
	success := span.Status().Code != codes.Error

	switch span.SpanKind() {
	case trace.SpanKindServer, trace.SpanKindConsumer:
		data := &contracts.RequestData{
			Ver:          2,
			ID:           sc.SpanID().String(),
			Name:         span.Name(),
			Duration:     duration,
			ResponseCode: "0",
			Success:      success,
			Properties:   props,
		}
		fillRequest(span, attrs, data, env.Tags)
		env.Name = contracts.RequestEnvelopeName
		env.Data = &contracts.Data{BaseType: contracts.RequestBaseType, BaseData: data}
	default:
		data := &contracts.RemoteDependencyData{
			Ver:        2,
			ID:         sc.SpanID().String(),
			Name:       span.Name(),
			Duration:   duration,
			Success:    success,
			Properties: props,
		}
		fillDependency(span, attrs, data)
		env.Name = contracts.DependencyEnvelopeName
		env.Data = &contracts.Data{BaseType: contracts.DependencyBaseType, BaseData: data}
	}

	for k, v := range attrs {
		if isConsumedKey(k) {
			continue
		}
		props[string(k)] = stringify(v)
	}
	if links := span.Links(); len(links) > 0 {
		props[contracts.LinksProperty] = marshalLinks(links)
	}
	return env
}

// fillDependency resolves type, target, data and result code for
// RemoteDependency payloads. The convention rules are evaluated in priority
// order; the first matching namespace wins.
func fillDependency(span sdktrace.ReadOnlySpan, attrs attrMap, data *contracts.RemoteDependencyData) {
	switch {
	case attrs.hasNamespace("http."):
		data.Type = "HTTP"
		if code := attrs.getStr(semconv.HTTPStatusCodeKey); code != "" {
			data.ResultCode = code
		}
		u := attrs.getStr(semconv.HTTPURLKey)
		data.Data = u
		if target := peerAddress(attrs); target != "" {
			data.Target = target
		} else {
			data.Target = urlHost(u)
		}
	case attrs.hasNamespace("db."):
		data.Type = attrs.getStr(semconv.DBSystemKey)
		data.Target = attrs.getStr(semconv.DBNameKey)
		data.Data = attrs.getStr(semconv.DBStatementKey)
	case attrs.hasNamespace("rpc."):
		data.Type = attrs.getStr(semconv.RPCSystemKey)
		data.Target = attrs.getStr(semconv.RPCServiceKey)
	case attrs.hasNamespace("messaging."):
		data.Type = "Queue Message | " + attrs.getStr(semconv.MessagingSystemKey)
		data.Target = joinSlash(peerHost(attrs), attrs.getStr(semconv.MessagingDestinationKey))
	case span.SpanKind() == trace.SpanKindInternal:
		data.Type = "InProc"
	}
}

// fillRequest resolves response code, url, source and the operation name tag
// for Request payloads.
func fillRequest(span sdktrace.ReadOnlySpan, attrs attrMap, data *contracts.RequestData, tags map[string]string) {
	opName := span.Name()
	switch {
	case attrs.hasNamespace("http."):
		if route := attrs.getStr(semconv.HTTPRouteKey); route != "" {
			opName = route
		}
		if code := attrs.getStr(semconv.HTTPStatusCodeKey); code != "" {
			data.ResponseCode = code
		}
		if u := attrs.getStr(semconv.HTTPURLKey); u != "" {
			data.URL = u
			data.Properties["request.url"] = u
		}
	case attrs.hasNamespace("messaging."):
		if source := joinSlash(peerHost(attrs), attrs.getStr(semconv.MessagingDestinationKey)); source != "" {
			data.Source = source
			data.Properties["source"] = source
		}
	}
	tags[contracts.TagOperationName] = opName
}

// resourceTags maps resource metadata to the ai.cloud context tags.
func resourceTags(span sdktrace.ReadOnlySpan, tags map[string]string) {
	res := span.Resource()
	if res == nil {
		return
	}
	rattrs := newAttrMap(res.Attributes())
	if name := rattrs.getStr(semconv.ServiceNameKey); name != "" {
		if ns := rattrs.getStr(semconv.ServiceNamespaceKey); ns != "" {
			name = ns + "." + name
		}
		tags[contracts.TagCloudRole] = name
	}
	if instance := rattrs.getStr(semconv.ServiceInstanceIDKey); instance != "" {
		tags[contracts.TagCloudRoleInstance] = instance
	}
}

// peerHost returns the network peer, preferring the name over the raw ip.
func peerHost(attrs attrMap) string {
	return attrs.getStr(semconv.NetPeerNameKey, semconv.NetPeerIPKey)
}

// peerAddress returns host:port for the network peer, or just the host when
// no port attribute is set.
func peerAddress(attrs attrMap) string {
	host := peerHost(attrs)
	if host == "" {
		return ""
	}
	if port := attrs.getStr(semconv.NetPeerPortKey); port != "" {
		return host + ":" + port
	}
	return host
}

func urlHost(rawurl string) string {
	if rawurl == "" {
		return ""
	}
	u, err := url.Parse(rawurl)
	if err != nil {
		return ""
	}
	return u.Host
}

func joinSlash(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + "/" + b
	}
}

func marshalLinks(links []sdktrace.Link) string {
	refs := make([]contracts.Link, 0, len(links))
	for _, l := range links {
		refs = append(refs, contracts.Link{
			OperationID: l.SpanContext.TraceID().String(),
			ID:          l.SpanContext.SpanID().String(),
		})
	}
	buf, _ := json.Marshal(refs)
	return string(buf)
}
