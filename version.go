// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package replicator holds the build version of the replicator node.
package replicator

var (
	version    = "0.3.0" // manually set semantic version number
	commitHash string    // set with -ldflags "-X github.com/viewshare/replicator.commitHash=<hash>"

	// Version is reported by the version command, /health and the
	// replicator_info metric.
	Version = versionString(version, commitHash)
)

// versionString marks builds without a commit hash as development builds.
func versionString(version, commit string) string {
	if commit == "" {
		return version + "-dev"
	}
	if len(commit) > 8 {
		commit = commit[:8]
	}
	return version + "-" + commit
}
