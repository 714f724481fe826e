// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package log

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/json"
	"gopkg.in/natefinch/lumberjack.v2"
)

// InitLogger configures Apex logging for the process. The level comes from
// PREHEAT_LOG (default ERROR). With PREHEAT_LOG_FILE set, entries go to that
// file as JSON, rotated at 10MB; otherwise a compact line format goes to
// stdout.
func InitLogger() {
	log.SetHandler(newHandler(os.Getenv("PREHEAT_LOG_FILE")))

	level := os.Getenv("PREHEAT_LOG")
	if level == "" {
		level = "ERROR"
	}
	log.SetLevelFromString(strings.ToUpper(level))
}

func newHandler(file string) log.Handler {
	if file == "" {
		return &consoleHandler{}
	}
	return json.New(&lumberjack.Logger{
		Filename:   file,
		MaxSize:    10, //nolint:mnd // MB
		MaxBackups: 3,  //nolint:mnd
	})
}

// consoleHandler writes one compact line per entry to stdout.
type consoleHandler struct{}

func (h *consoleHandler) HandleLog(e *log.Entry) error {
	var b strings.Builder
	b.WriteString(time.Now().Format("2006-01-02 15:04:05"))
	b.WriteString(" ")
	b.WriteString(strings.ToUpper(e.Level.String())[:1])
	b.WriteString(" ")
	b.WriteString(e.Message)

	for _, name := range e.Fields.Names() {
		fmt.Fprintf(&b, " %s=%v", name, e.Fields.Get(name))
	}

	fmt.Fprintln(os.Stdout, b.String())
	return nil
}
