// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package logging_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/viewshare/replicator/pkg/logging"
)

func TestParseVerbosity(t *testing.T) {
	for _, tc := range []struct {
		in     string
		level  logrus.Level
		silent bool
		err    bool
	}{
		{in: "0", silent: true},
		{in: "silent", silent: true},
		{in: "1", level: logrus.ErrorLevel},
		{in: "warn", level: logrus.WarnLevel},
		{in: "INFO", level: logrus.InfoLevel},
		{in: "4", level: logrus.DebugLevel},
		{in: "trace", level: logrus.TraceLevel},
		{in: "loud", err: true},
	} {
		t.Run(tc.in, func(t *testing.T) {
			level, silent, err := logging.ParseVerbosity(tc.in)
			if tc.err {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if level != tc.level {
				t.Errorf("got level %v, want %v", level, tc.level)
			}
			if silent != tc.silent {
				t.Errorf("got silent %v, want %v", silent, tc.silent)
			}
		})
	}
}

func TestLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf, logrus.WarnLevel)

	logger.Infof("hidden %d", 1)
	logger.Warningf("shown %d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden 1") {
		t.Errorf("info message logged at warn level: %q", out)
	}
	if !strings.Contains(out, "shown 2") {
		t.Errorf("warning message missing: %q", out)
	}
}
