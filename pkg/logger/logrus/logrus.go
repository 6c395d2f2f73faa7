// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package logrus

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/AMD-AGI/primus-papi/pkg/logger"
	"github.com/AMD-AGI/primus-papi/pkg/logger/conf"
)

var levelMap = map[conf.Level]logrus.Level{
	conf.TraceLevel: logrus.TraceLevel,
	conf.DebugLevel: logrus.DebugLevel,
	conf.InfoLevel:  logrus.InfoLevel,
	conf.WarnLevel:  logrus.WarnLevel,
	conf.ErrorLevel: logrus.ErrorLevel,
	conf.FatalLevel: logrus.FatalLevel,
}

type Wrapper struct {
	entry *logrus.Entry
}

func NewLogrusWrapper(cfg *conf.LogConfig) (logger.Logger, error) {
	cfg.Normalize()
	core := logrus.New()

	level, ok := levelMap[cfg.Level]
	if !ok {
		level = logrus.InfoLevel
	}
	core.SetLevel(level)

	switch cfg.Formatter {
	case conf.JSONFormater:
		core.SetFormatter(&logrus.JSONFormatter{})
	default:
		core.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if cfg.File != "" {
		core.SetOutput(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		})
	} else {
		core.SetOutput(os.Stderr)
	}

	return &Wrapper{entry: logrus.NewEntry(core)}, nil
}

func (w *Wrapper) Log(level conf.Level, args ...interface{}) {
	w.entry.Log(levelMap[level], args...)
}

func (w *Wrapper) Logf(level conf.Level, format string, args ...interface{}) {
	w.entry.Logf(levelMap[level], format, args...)
}

func (w *Wrapper) Debugf(format string, args ...interface{}) {
	w.entry.Debugf(format, args...)
}

func (w *Wrapper) Infof(format string, args ...interface{}) {
	w.entry.Infof(format, args...)
}

func (w *Wrapper) Warningf(format string, args ...interface{}) {
	w.entry.Warningf(format, args...)
}

func (w *Wrapper) Errorf(format string, args ...interface{}) {
	w.entry.Errorf(format, args...)
}

func (w *Wrapper) WithField(key string, value interface{}) logger.Logger {
	return &Wrapper{entry: w.entry.WithField(key, value)}
}

func (w *Wrapper) WithFields(fields logger.Fields) logger.Logger {
	return &Wrapper{entry: w.entry.WithFields(logrus.Fields(fields))}
}

func (w *Wrapper) WithContext(ctx context.Context) logger.Logger {
	return &Wrapper{entry: w.entry.WithContext(ctx)}
}
