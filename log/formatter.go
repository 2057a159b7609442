// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2024, The cpiofs Authors.
// Licensed under the BSD-3-Clause License (the "License").
// You may not use this file except in compliance with the License.

package log

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

var levelStyles = map[logrus.Level]func(...string) string{
	logrus.TraceLevel: lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render,
	logrus.DebugLevel: lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Render,
	logrus.InfoLevel:  lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render,
	logrus.WarnLevel:  lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Render,
	logrus.ErrorLevel: lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Render,
	logrus.FatalLevel: lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true).Render,
	logrus.PanicLevel: lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true).Render,
}

var levelTags = map[logrus.Level]string{
	logrus.TraceLevel: "trace",
	logrus.DebugLevel: "debug",
	logrus.InfoLevel:  " info",
	logrus.WarnLevel:  " warn",
	logrus.ErrorLevel: "error",
	logrus.FatalLevel: "fatal",
	logrus.PanicLevel: "panic",
}

// TextFormatter renders log entries as a coloured level tag, the
// message, and the sorted structured fields. Colour is used only when
// the output is a terminal, unless forced.
type TextFormatter struct {
	// Set to true to bypass checking for a TTY before outputting
	// colors.
	ForceColors bool

	// Force disabling colors. For a TTY colors are enabled by default.
	DisableColors bool

	isTerminal bool
	once       sync.Once
}

func (f *TextFormatter) checkIfTerminal(w io.Writer) bool {
	if v, ok := w.(*os.File); ok {
		return term.IsTerminal(int(v.Fd()))
	}
	return false
}

// Format implements logrus.Formatter.
func (f *TextFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	f.once.Do(func() {
		if entry.Logger != nil {
			f.isTerminal = f.checkIfTerminal(entry.Logger.Out)
		}
	})

	b := entry.Buffer
	if b == nil {
		b = &bytes.Buffer{}
	}

	tag := levelTags[entry.Level]
	if (f.ForceColors || f.isTerminal) && !f.DisableColors {
		tag = levelStyles[entry.Level](tag)
	}
	fmt.Fprintf(b, "%s %s", tag, entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, " %s=%v", k, entry.Data[k])
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}
