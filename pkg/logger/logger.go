// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package logger

import (
	"context"

	"github.com/AMD-AGI/primus-papi/pkg/logger/conf"
)

type Fields map[string]interface{}

// Logger is the logging interface every subsystem receives. Implementations
// live under pkg/logger/logrus; the process-wide instance is managed by
// pkg/logger/log.
type Logger interface {
	Log(level conf.Level, args ...interface{})
	Logf(level conf.Level, format string, args ...interface{})

	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Errorf(format string, args ...interface{})

	WithField(key string, value interface{}) Logger
	WithFields(fields Fields) Logger
	WithContext(ctx context.Context) Logger
}
