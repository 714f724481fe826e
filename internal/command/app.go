// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"os"
	"sort"
	"strings"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/go-preheat/preheat/internal/config"
	"github.com/go-preheat/preheat/internal/meta"
)

// InitApp assembles the root command with every subcommand wired to the
// loaded config and the invocation metadata.
func InitApp(ctx context.Context, args []string) (*cli.Command, error) {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}

	// The subcommand doubles as the config namespace so per-command keys
	// (get.output, warm.workers) resolve without repetition.
	ns := ""
	if len(args) > 1 && !strings.HasPrefix(args[1], "-") {
		ns = args[1]
	}

	cfg, err := config.Load(ns)
	if err != nil {
		log.WithError(err).Debug("config not loaded, continuing with defaults")
	}

	m := meta.Meta{
		Args:        args,
		Config:      cfg,
		Context:     ctx,
		StartingDir: wd,
	}

	app := &cli.Command{
		Name:      "preheat",
		Usage:     "warm, inspect, and read back cached web payloads",
		UsageText: `preheat <command> [options]`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "version",
				Aliases:     []string{"v"},
				Usage:       "print the version",
				HideDefault: true,
			},
		},
	}

	app.Commands = []*cli.Command{
		GetCommandBuilder(app, m),
		WarmCommandBuilder(app, m),
		StatusCommandBuilder(app, m),
		CacheCommandBuilder(app, m),
		WatchCommandBuilder(app, m),
		CompletionCommandBuilder(app, m),
	}

	for _, c := range app.Commands {
		sortFlags(c)
	}

	return app, nil
}

// sortFlags orders a command's flags by primary name so help output stays
// alphabetical no matter how builders assemble the list.
func sortFlags(c *cli.Command) {
	sort.Slice(c.Flags, func(i, j int) bool {
		return c.Flags[i].Names()[0] < c.Flags[j].Names()[0]
	})
	for _, sub := range c.Commands {
		sortFlags(sub)
	}
}
