// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package log implements the exporter's logging, backed by seelog. Until
// SetupLogger is called every call is a no-op, so library users who do not
// care about logging pay nothing.
package log

import (
	"fmt"
	"sync"

	"github.com/cihub/seelog"
)

var (
	mu     sync.RWMutex
	logger seelog.LoggerInterface
	level  seelog.LogLevel = seelog.InfoLvl
)

// SetupLogger configures the package level logger singleton.
func SetupLogger(l seelog.LoggerInterface, lvl string) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
	if parsed, ok := seelog.LogLevelFromString(lvl); ok {
		level = parsed
	} else {
		level = seelog.InfoLvl
	}
}

func shouldLog(lvl seelog.LogLevel) (seelog.LoggerInterface, bool) {
	mu.RLock()
	defer mu.RUnlock()
	if logger == nil || lvl < level {
		return nil, false
	}
	return logger, true
}

// Debugf logs with format at the debug level.
func Debugf(format string, params ...interface{}) {
	if l, ok := shouldLog(seelog.DebugLvl); ok {
		l.Debugf(format, params...)
	}
}

// Infof logs with format at the info level.
func Infof(format string, params ...interface{}) {
	if l, ok := shouldLog(seelog.InfoLvl); ok {
		l.Infof(format, params...)
	}
}

// Warnf logs with format at the warn level and returns the formatted message
// as an error.
func Warnf(format string, params ...interface{}) error {
	err := fmt.Errorf(format, params...)
	if l, ok := shouldLog(seelog.WarnLvl); ok {
		l.Warn(err.Error()) //nolint:errcheck
	}
	return err
}

// Errorf logs with format at the error level and returns the formatted
// message as an error.
func Errorf(format string, params ...interface{}) error {
	err := fmt.Errorf(format, params...)
	if l, ok := shouldLog(seelog.ErrorLvl); ok {
		l.Error(err.Error()) //nolint:errcheck
	}
	return err
}

// Flush flushes the underlying logger's buffers.
func Flush() {
	mu.RLock()
	defer mu.RUnlock()
	if logger != nil {
		logger.Flush()
	}
}
