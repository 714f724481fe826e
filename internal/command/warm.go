// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/dustin/go-humanize"
	altsrc "github.com/urfave/cli-altsrc/v3"
	yaml "github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"

	"github.com/go-preheat/preheat/internal/meta"
	"github.com/go-preheat/preheat/internal/preload"
)

// warmRow is the emitted form of one warm outcome.
type warmRow struct {
	View       string `jsonapi:"primary,outcomes"`
	Status     string `jsonapi:"attr,status"`
	Reason     string `jsonapi:"attr,reason"`
	Latency    string `jsonapi:"attr,latency"`
	Size       string `jsonapi:"attr,size"`
	Attempts   int    `jsonapi:"attr,attempts"`
	Prefetched int    `jsonapi:"attr,prefetched"`
}

func newWarmRow(o preload.Outcome) *warmRow {
	row := &warmRow{
		View:       o.View.Name,
		Status:     o.Status.String(),
		Reason:     o.Reason,
		Attempts:   o.Attempts,
		Prefetched: o.PrefetchWarmed,
	}
	if row.Reason == "" && o.Err != nil {
		row.Reason = o.Err.Error()
	}
	if o.Latency > 0 {
		row.Latency = o.Latency.Round(time.Millisecond).String()
	}
	if o.Bytes > 0 {
		row.Size = humanize.Bytes(uint64(o.Bytes))
	}
	return row
}

// WarmCommandAction is the action handler for the "warm" subcommand. It runs
// one warm pass over the configured views and reports per-view outcomes.
func WarmCommandAction(ctx context.Context, cmd *cli.Command) error {
	var failed int

	runner := &QueryActionRunner[*warmRow]{
		CommandName:  "warm",
		SchemaType:   reflect.TypeOf(warmRow{}),
		DefaultAttrs: []string{".id:view", "status", "latency", "size"},
		FetchFn: func(ctx context.Context, cmd *cli.Command) ([]*warmRow, error) {
			m := GetMeta(cmd)

			views, err := preload.ViewsFromConfig(m.Config, cmd.Args().Slice()...)
			if err != nil {
				return nil, err
			}

			stack, err := InitWarmStack(ctx, cmd)
			if err != nil {
				return nil, err
			}
			defer stack.Close()

			// One up-front probe so the pass gates on the measured
			// connection state instead of on unknown.
			stack.Monitor.Probe(ctx)

			report := stack.Preload.WarmAll(ctx, views)
			failed = report.Failed

			rows := make([]*warmRow, 0, len(report.Outcomes))
			for _, o := range report.Outcomes {
				rows = append(rows, newWarmRow(o))
			}

			return rows, nil
		},
	}

	if err := runner.Run(ctx, cmd); err != nil {
		return err
	}

	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d view(s) failed to warm", failed), 1)
	}

	return nil
}

// WarmCommandBuilder assembles the "warm" command with its concurrency and
// policy flags.
func WarmCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return (&QueryCommandBuilder{
		Name:      "warm",
		Usage:     "warm the cache for configured views",
		UsageText: `preheat warm [view ...] [options]`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "number of concurrent fetches",
				Sources: cli.NewValueSourceChain(
					yaml.YAML("warm.workers", altsrc.StringSourcer(meta.Config.Source)),
					yaml.YAML("preload.workers", altsrc.StringSourcer(meta.Config.Source)),
				),
			},
			NewOriginFlag("warm", meta.Config.Source),
			NewProbeFlag("warm", meta.Config.Source),
			assumeOfflineFlag,
		},
		Action: WarmCommandAction,
		Meta:   meta,
	}).Build()
}
