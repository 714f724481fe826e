// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"reflect"
	"time"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"
	altsrc "github.com/urfave/cli-altsrc/v3"
	yaml "github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"

	"github.com/go-preheat/preheat/internal/config"
	"github.com/go-preheat/preheat/internal/meta"
	"github.com/go-preheat/preheat/internal/netstatus"
)

// statusRow is the emitted form of one connection probe.
type statusRow struct {
	Probe    string `jsonapi:"primary,probes"`
	Status   string `jsonapi:"attr,status"`
	Speed    string `jsonapi:"attr,speed"`
	Latency  string `jsonapi:"attr,latency"`
	Failures int    `jsonapi:"attr,failures"`
	Checked  string `jsonapi:"attr,checked"`
}

func newStatusRow(probe string, snap netstatus.Snapshot) *statusRow {
	row := &statusRow{
		Probe:    probe,
		Status:   snap.Status.String(),
		Speed:    snap.Speed.String(),
		Failures: snap.Failures,
	}
	if snap.Latency > 0 {
		row.Latency = snap.Latency.Round(time.Millisecond).String()
	}
	if !snap.LastProbe.IsZero() {
		row.Checked = humanize.Time(snap.LastProbe)
	}
	return row
}

// StatusCommandAction is the action handler for the "status" subcommand. One
// probe and a report by default, a streaming loop with --watch.
func StatusCommandAction(ctx context.Context, cmd *cli.Command) error {
	log.Debugf("argv: %v", GetMeta(cmd).Args)

	if ShortCircuitTLDR(ctx, cmd, "status") {
		return nil
	}
	if DumpSchemaIfRequested(cmd, reflect.TypeOf(statusRow{})) {
		return nil
	}

	probe := ProbeURL(cmd)

	mopts := []netstatus.Option{netstatus.WithProbeURL(probe)}
	if d, err := configDuration("netstatus.timeout"); err == nil {
		mopts = append(mopts, netstatus.WithTimeout(d))
	}
	if cmd.Bool("watch") {
		if n, err := config.GetInt("netstatus.failures"); err == nil {
			mopts = append(mopts, netstatus.WithFailureThreshold(n))
		}
	} else {
		// A single failed probe reports offline outright. The failure
		// threshold only makes sense across a stream of probes.
		mopts = append(mopts, netstatus.WithFailureThreshold(1))
	}

	mon := netstatus.NewMonitor(mopts...)
	if cmd.Bool("assume-offline") {
		mon.Force(netstatus.StatusOffline)
	}

	if cmd.Bool("watch") {
		return watchStatus(ctx, cmd, mon)
	}

	snap := mon.Probe(ctx)

	al := BuildAttrs(cmd, ".id:probe", "status", "speed", "latency")
	log.Debugf("attrs: %v", al)

	return EmitJSONAPISlice([]*statusRow{newStatusRow(probe, snap)}, al, cmd)
}

// watchStatus probes on an interval and prints one line per probe until
// interrupted.
func watchStatus(ctx context.Context, cmd *cli.Command, mon *netstatus.Monitor) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	interval := cmd.Duration("interval")
	if interval <= 0 {
		if d, err := configDuration("netstatus.interval"); err == nil {
			interval = d
		} else {
			interval = netstatus.DefaultInterval
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		snap := mon.Probe(ctx)
		latency := "-"
		if snap.Latency > 0 {
			latency = snap.Latency.Round(time.Millisecond).String()
		}
		fmt.Printf("%s  %-8s  %-8s  %8s  failures=%d\n",
			snap.LastProbe.Format(time.TimeOnly), snap.Status, snap.Speed, latency, snap.Failures)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// StatusCommandBuilder assembles the "status" command: connectivity probe
// plus cache summary.
func StatusCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return (&QueryCommandBuilder{
		Name:      "status",
		Usage:     "probe the connection and report its classification",
		UsageText: `preheat status [options]`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "watch",
				Usage:       "keep probing and print one line per probe",
				HideDefault: true,
			},
			&cli.DurationFlag{
				Name:    "interval",
				Aliases: []string{"i"},
				Usage:   "probe cadence for --watch",
				Sources: cli.NewValueSourceChain(
					yaml.YAML("status.interval", altsrc.StringSourcer(meta.Config.Source)),
					yaml.YAML("netstatus.interval", altsrc.StringSourcer(meta.Config.Source)),
				),
			},
			NewProbeFlag("status", meta.Config.Source),
			assumeOfflineFlag,
		},
		Action: StatusCommandAction,
		Meta:   meta,
	}).Build()
}
