// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The cpiofs Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package version

import (
	"fmt"
	"runtime"
)

var (
	version   = "No version provided"
	commit    = "No commit provided"
	buildTime = "No build timestamp provided"
	agentName = "cpiofs"
)

// Version returns the cpiofs version string.
func Version() string {
	return version
}

// Commit returns the HEAD Git commit SHA of the build.
func Commit() string {
	return commit
}

// BuildTime returns the time in which the package or binary was built.
func BuildTime() string {
	return buildTime
}

// String returns all version information.
func String() string {
	return fmt.Sprintf("%s (%s) %s %s\n",
		version,
		commit,
		runtime.Version(),
		buildTime,
	)
}

// UserAgent returns the agent name and version used to identify the
// tool.
func UserAgent() string {
	if version != "No version provided" {
		return fmt.Sprintf("%s/%s", agentName, version)
	}

	return agentName
}
