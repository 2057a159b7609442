// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The cpiofs Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.
package main

import (
	"runtime"

	"github.com/klauspost/cpuid"
	"github.com/spf13/cobra"

	"cpiofs.sh/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("cpiofs %s", version.String())
			cmd.Printf("os/arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
			if cpuid.CPU.BrandName != "" {
				cmd.Printf("cpu: %s\n", cpuid.CPU.BrandName)
			}
		},
	}
}
