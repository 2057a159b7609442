// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The cpiofs Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

// cpiofs creates, lists and extracts CPIO archives in the new-ASCII
// format.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MakeNowJust/heredoc"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"cpiofs.sh/log"
)

var logLevel string

func main() {
	// Make args[0] just the name of the executable since it is used in
	// logs.
	os.Args[0] = filepath.Base(os.Args[0])

	cmd := &cobra.Command{
		Use:   "cpiofs",
		Short: "Manipulate CPIO (new-ASCII) archives",
		Long: heredoc.Doc(`
			Manipulate CPIO archives in the "newc" format, the format the
			Linux kernel accepts for initramfs images. Archives are staged
			through an in-memory filesystem, so hard links, device nodes
			and ownership survive intact in both directions.
		`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, ok := log.Levels()[logLevel]
			if !ok {
				return fmt.Errorf("unknown log level %q", logLevel)
			}
			logger := logrus.New()
			logger.SetOutput(os.Stderr)
			logger.SetLevel(level)
			logger.SetFormatter(&log.TextFormatter{})
			cmd.SetContext(log.WithLogger(cmd.Context(), logger))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")

	cmd.AddCommand(newCreateCmd())
	cmd.AddCommand(newExtractCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newVersionCmd())

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "cpiofs: %v\n", err)
		os.Exit(1)
	}
}
