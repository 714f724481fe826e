// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"
	"os"

	"github.com/apex/log"
	tea "github.com/charmbracelet/bubbletea"
	altsrc "github.com/urfave/cli-altsrc/v3"
	yaml "github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/go-preheat/preheat/internal/config"
	"github.com/go-preheat/preheat/internal/meta"
	"github.com/go-preheat/preheat/internal/preload"
	"github.com/go-preheat/preheat/internal/tui"
	"github.com/go-preheat/preheat/internal/viewstate"
)

// WatchCommandAction is the action handler for the "watch" subcommand. It
// runs the dashboard over the configured views until quit.
func WatchCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("argv: %v", m.Args)

	if ShortCircuitTLDR(ctx, cmd, "watch") {
		return nil
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("watch needs a terminal")
	}

	stack, err := InitWarmStack(ctx, cmd)
	if err != nil {
		return err
	}
	defer stack.Close()

	stack.Monitor.Start(ctx)

	session := viewstate.NewSession(stack.Preload, stack.Monitor)

	// Re-read the config file on every load so the reload path picks up
	// edits instead of the snapshot taken at startup.
	viewsFn := func() ([]preload.View, error) {
		cfg, cerr := config.Load(m.Config.Namespace)
		if cerr != nil {
			return nil, cerr
		}
		return preload.ViewsFromConfig(cfg)
	}

	dash, err := tui.NewDashboard(session, stack.Preload, stack.Requests, stack.Monitor, viewsFn)
	if err != nil {
		return err
	}

	if interval := cmd.Duration("rewarm"); interval > 0 {
		views, verr := viewsFn()
		if verr != nil {
			return verr
		}
		stack.Preload.StartBackground(ctx, views, interval)
	}

	p := tea.NewProgram(dash, tea.WithAltScreen())

	stop, err := tui.WatchConfig(m.Config.Source, tui.DefaultReloadDelay, func() {
		p.Send(tui.ReloadMsg{})
	})
	if err != nil {
		log.WithError(err).Debug("config watch unavailable")
	} else {
		defer stop()
	}

	_, err = p.Run()
	return err
}

// WatchCommandBuilder assembles the "watch" command and its polling flags.
func WatchCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "interactive dashboard over the configured views",
		UsageText: `preheat watch [options]`,
		Metadata: map[string]any{
			"meta": meta,
		},
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "rewarm",
				Usage: "rewarm all views on this interval, 0 disables",
				Sources: cli.NewValueSourceChain(
					yaml.YAML("watch.rewarm", altsrc.StringSourcer(meta.Config.Source)),
				),
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "number of concurrent fetches",
				Sources: cli.NewValueSourceChain(
					yaml.YAML("watch.workers", altsrc.StringSourcer(meta.Config.Source)),
					yaml.YAML("preload.workers", altsrc.StringSourcer(meta.Config.Source)),
				),
			},
			NewOriginFlag("watch", meta.Config.Source),
			NewProbeFlag("watch", meta.Config.Source),
			assumeOfflineFlag,
			tldrFlag,
		},
		Action: WatchCommandAction,
	}
}
