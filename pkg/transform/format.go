// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package transform

import (
	"fmt"
	"time"
)

// FormatDuration renders a span duration in the D.HH:MM:SS.fff form expected
// by the ingestion service. The day field is always present, sub-second
// precision is truncated (not rounded) to milliseconds, and negative
// durations clamp to zero.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second
	d -= seconds * time.Second
	millis := d / time.Millisecond
	return fmt.Sprintf("%d.%02d:%02d:%02d.%03d", days, hours, minutes, seconds, millis)
}

// FormatTime renders a timestamp as ISO-8601 UTC with microsecond precision,
// e.g. "2019-12-04T21:18:36.027613Z". Nanoseconds are truncated.
func FormatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000Z07:00")
}
