// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package contracts holds the wire shapes of Application Insights telemetry
// items. The JSON layout is fixed by the ingestion service; do not rename
// fields or tags.
package contracts

// Envelope names and base types accepted by the ingestion endpoint.
const (
	RequestEnvelopeName    = "Microsoft.ApplicationInsights.Request"
	DependencyEnvelopeName = "Microsoft.ApplicationInsights.RemoteDependency"

	RequestBaseType    = "RequestData"
	DependencyBaseType = "RemoteDependencyData"
)

// Context tag keys understood by the backend.
const (
	TagOperationID       = "ai.operation.id"
	TagOperationParentID = "ai.operation.parentId"
	TagOperationName     = "ai.operation.name"
	TagCloudRole         = "ai.cloud.role"
	TagCloudRoleInstance = "ai.cloud.roleInstance"
	TagSDKVersion        = "ai.internal.sdkVersion"
)

// LinksProperty is the single properties key under which span links are
// serialized as a JSON array.
const LinksProperty = "_MS.links"

// Envelope is the outermost telemetry record sent to the ingestion service.
type Envelope struct {
	Ver  int               `json:"ver"`
	Name string            `json:"name"`
	Time string            `json:"time"`
	IKey string            `json:"iKey"`
	Tags map[string]string `json:"tags,omitempty"`
	Data *Data             `json:"data"`
}

// Data wraps the typed payload of an envelope.
type Data struct {
	BaseType string      `json:"baseType"`
	BaseData interface{} `json:"baseData"`
}

// RemoteDependencyData is the payload for outgoing calls (CLIENT, PRODUCER
// and INTERNAL spans).
type RemoteDependencyData struct {
	Ver        int               `json:"ver"`
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	ResultCode string            `json:"resultCode,omitempty"`
	Duration   string            `json:"duration"`
	Success    bool              `json:"success"`
	Data       string            `json:"data,omitempty"`
	Type       string            `json:"type,omitempty"`
	Target     string            `json:"target,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

// RequestData is the payload for incoming calls (SERVER and CONSUMER spans).
type RequestData struct {
	Ver          int               `json:"ver"`
	ID           string            `json:"id"`
	Name         string            `json:"name,omitempty"`
	Duration     string            `json:"duration"`
	ResponseCode string            `json:"responseCode"`
	Success      bool              `json:"success"`
	Source       string            `json:"source,omitempty"`
	URL          string            `json:"url,omitempty"`
	Properties   map[string]string `json:"properties,omitempty"`
}

// Link is one entry of the _MS.links property. The backend expects the
// operation_Id casing as-is.
type Link struct {
	OperationID string `json:"operation_Id"`
	ID          string `json:"id"`
}
