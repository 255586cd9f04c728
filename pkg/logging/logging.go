// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package logging provides the logger interface abstraction
// and implementation for the replicator. It uses logrus under the hood.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

type Logger interface {
	Tracef(format string, args ...interface{})
	Trace(args ...interface{})
	Debugf(format string, args ...interface{})
	Debug(args ...interface{})
	Infof(format string, args ...interface{})
	Info(args ...interface{})
	Warningf(format string, args ...interface{})
	Warning(args ...interface{})
	Errorf(format string, args ...interface{})
	Error(args ...interface{})
	WithField(key string, value interface{}) *logrus.Entry
	WithFields(fields logrus.Fields) *logrus.Entry
	WriterLevel(logrus.Level) *io.PipeWriter
	NewEntry() *logrus.Entry
}

type logger struct {
	*logrus.Logger
	metrics metrics
}

func New(w io.Writer, level logrus.Level) Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level)
	l.Formatter = &logrus.TextFormatter{
		FullTimestamp: true,
	}
	metrics := newMetrics()
	l.AddHook(metrics)
	return &logger{
		Logger:  l,
		metrics: metrics,
	}
}

// NewNoop returns a logger that discards everything. Used in tests and
// by components constructed without a logger.
func NewNoop() Logger {
	return New(io.Discard, 0)
}

func (l *logger) NewEntry() *logrus.Entry {
	return logrus.NewEntry(l.Logger)
}

// ParseVerbosity maps the verbosity option value, either a number
// or a level name, to a logrus level. The boolean result reports
// whether the logger should be silenced.
func ParseVerbosity(v string) (level logrus.Level, silent bool, err error) {
	switch strings.ToLower(v) {
	case "0", "silent":
		return 0, true, nil
	case "1", "error":
		return logrus.ErrorLevel, false, nil
	case "2", "warn":
		return logrus.WarnLevel, false, nil
	case "3", "info":
		return logrus.InfoLevel, false, nil
	case "4", "debug":
		return logrus.DebugLevel, false, nil
	case "5", "trace":
		return logrus.TraceLevel, false, nil
	}
	return 0, false, fmt.Errorf("unknown verbosity level %q", v)
}
