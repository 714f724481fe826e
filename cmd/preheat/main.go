// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/apex/log"

	"github.com/go-preheat/preheat/internal/cache"
	"github.com/go-preheat/preheat/internal/command"
	"github.com/go-preheat/preheat/internal/config"
	mylog "github.com/go-preheat/preheat/internal/log"
	"github.com/go-preheat/preheat/internal/version"
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	mylog.InitLogger()

	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "No command given.")
		args = append(args, "--help")
	} else {
		args = mangleArguments(args)
	}

	if slices.Contains(args, "--version") || slices.Contains(args, "-v") {
		fmt.Println(version.Version)
		return 0
	}

	// Best-effort: pre-create the cache directory when caching is enabled.
	if dir, ok := cache.Dir(); ok && cache.Enabled() {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}

	ctx := context.Background()

	app, err := command.InitApp(ctx, args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if err := app.Run(ctx, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	return 0
}

// mangleArguments expands the command's preset args into the line. The first
// @marker names the preset and marks where its args are spliced in; without
// one the command's defaults preset lands right after the command word. A
// help request drops everything else.
func mangleArguments(args []string) []string {
	if slices.Contains(args, "--help") || slices.Contains(args, "-h") {
		return []string{args[0], args[1], "--help"}
	}

	out := append([]string{}, args...)

	set, insert := "defaults", 2
	for i := 2; i < len(out); i++ {
		if strings.HasPrefix(out[i], "@") {
			set = out[i][1:]
			insert = i
			out = append(out[:i], out[i+1:]...)
			break
		}
	}

	// Each preset line may carry several words, inserted in order.
	preset, _ := config.GetStringSlice(args[1] + "." + set)
	for _, line := range preset {
		fields := strings.Fields(line)
		out = append(out[:insert], append(fields, out[insert:]...)...)
		insert += len(fields)
	}

	log.Debugf("set=%s insert=%d args=%v", set, insert, out)
	return out
}
