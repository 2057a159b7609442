// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The cpiofs Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

// Package log carries a logrus logger through context.Context so that
// library code can emit structured trace output without owning a
// logger of its own.
package log

import (
	"context"

	"github.com/sirupsen/logrus"
)

var (
	// G is an alias for FromContext.
	//
	// We may want to define this locally to a package to get package
	// tagged log messages.
	G = FromContext

	// L is the global logger.
	L = logrus.StandardLogger()
)

// contextKey is used to retrieve the logger from the context.
type contextKey struct{}

// WithLogger returns a new context with the provided logger. Use in
// combination with logger.WithField(s) for great effect.
func WithLogger(ctx context.Context, logger *logrus.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger stored in the context, or the global
// logger if none is set.
func FromContext(ctx context.Context) *logrus.Logger {
	l, ok := ctx.Value(contextKey{}).(*logrus.Logger)
	if !ok || l == nil {
		return L
	}

	return l
}

// Levels returns a map of log level string names to their constant
// equivalent.
func Levels() map[string]logrus.Level {
	return map[string]logrus.Level{
		"panic":   logrus.PanicLevel,
		"fatal":   logrus.FatalLevel,
		"error":   logrus.ErrorLevel,
		"warning": logrus.WarnLevel,
		"warn":    logrus.WarnLevel,
		"info":    logrus.InfoLevel,
		"debug":   logrus.DebugLevel,
		"trace":   logrus.TraceLevel,
	}
}
