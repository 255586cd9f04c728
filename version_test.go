// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package replicator

import "testing"

func TestVersionString(t *testing.T) {
	for _, tc := range []struct {
		commit string
		want   string
	}{
		{"", "1.2.3-dev"},
		{"abc123", "1.2.3-abc123"},
		{"0123456789abcdef", "1.2.3-01234567"},
	} {
		if got := versionString("1.2.3", tc.commit); got != tc.want {
			t.Errorf("commit %q: got %q, want %q", tc.commit, got, tc.want)
		}
	}
}
