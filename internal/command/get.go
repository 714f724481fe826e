// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/apex/log"
	altsrc "github.com/urfave/cli-altsrc/v3"
	yaml "github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"

	"github.com/go-preheat/preheat/internal/config"
	"github.com/go-preheat/preheat/internal/filters"
	"github.com/go-preheat/preheat/internal/meta"
	"github.com/go-preheat/preheat/internal/output"
	"github.com/go-preheat/preheat/internal/preload"
	"github.com/go-preheat/preheat/internal/request"
)

// GetCommandAction is the action handler for the "get" subcommand. It fetches
// one payload through the cache, connection, and retry machinery and emits it
// per common flags.
func GetCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("argv: %v", m.Args)

	if ShortCircuitTLDR(ctx, cmd, "get") {
		return nil
	}

	target := cmd.Args().First()
	if target == "" {
		return errors.New("a url or configured view name is required")
	}

	req, err := resolveTarget(cmd, m.Config, target)
	if err != nil {
		return err
	}

	// Origin-side filters ride the url, not the row filter.
	req.URL, err = foldOriginFilters(req.URL, cmd.String("filter"))
	if err != nil {
		return err
	}
	log.Debugf("target: %s policy: %s ttl: %s", req.URL, req.Policy, req.TTL)

	if timeout := cmd.Duration("timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	stack, err := InitRequestStack(ctx, cmd)
	if err != nil {
		return err
	}
	defer stack.Close()

	res, err := stack.Requests.Do(ctx, req)
	if err != nil {
		return err
	}
	if res.FromCache {
		log.Debugf("served from cache (age %s, stale %v)", res.Age, res.Stale)
	}

	// Payloads carry no static type, so --schema reads the shape off the
	// fetched rows instead of short-circuiting before the fetch.
	if cmd.Bool("schema") {
		output.DumpKeys(res.Data, cmd.String("query"))
		return nil
	}

	al := BuildAttrs(cmd, discoverDefaults(res.Data, cmd.String("query"))...)
	log.Debugf("attrs: %v", al)

	output.SliceDiceSpit(*bytes.NewBuffer(res.Data), al, cmd, cmd.String("query"), os.Stdout)

	return nil
}

// GetCommandBuilder assembles the "get" command on top of the shared query
// builder.
func GetCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return (&QueryCommandBuilder{
		Name:      "get",
		Usage:     "fetch one payload through the cache",
		UsageText: `preheat get <url | view | path> [options]`,
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "ttl",
				Usage: "freshness window for the fetched payload",
				Sources: cli.NewValueSourceChain(
					yaml.YAML("get.ttl", altsrc.StringSourcer(meta.Config.Source)),
					yaml.YAML("cache.ttl", altsrc.StringSourcer(meta.Config.Source)),
				),
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "overall deadline for the fetch",
				Sources: cli.NewValueSourceChain(
					yaml.YAML("get.timeout", altsrc.StringSourcer(meta.Config.Source)),
				),
			},
			&cli.StringFlag{
				Name:    "query",
				Aliases: []string{"q"},
				Usage:   "gjson path to the rows inside the payload",
			},
			NewPolicyFlag("get", meta.Config.Source),
			NewOriginFlag("get", meta.Config.Source),
			NewProbeFlag("get", meta.Config.Source),
			assumeOfflineFlag,
		},
		Action: GetCommandAction,
		Meta:   meta,
	}).Build()
}

// resolveTarget turns the positional arg into a request. The arg may be an
// absolute url, the name of a configured view, or a path relative to the
// origin.
func resolveTarget(cmd *cli.Command, cfg config.Type, target string) (request.Request, error) {
	req := request.Request{
		TTL: cmd.Duration("ttl"),
	}

	policy, err := request.ParsePolicy(cmd.String("policy"))
	if err != nil {
		return req, err
	}
	req.Policy = policy

	if strings.Contains(target, "://") {
		req.URL = target
		return req, nil
	}

	// A bare word can name a configured view. It rides with the view's ttl
	// unless the flag overrides it.
	if views, verr := preload.ViewsFromConfig(cfg); verr == nil {
		for _, v := range views {
			if v.Name == target {
				req.URL = v.URL
				if req.TTL == 0 {
					req.TTL = v.TTL
				}
				return req, nil
			}
		}
	}

	base := cmd.String("origin")
	if base == "" {
		base, _ = config.GetString("origin", "")
	}
	if base == "" {
		return req, fmt.Errorf(
			"%q is neither a url, a configured view, nor relative to a configured origin",
			target,
		)
	}

	joined, err := url.JoinPath(base, target)
	if err != nil {
		return req, err
	}
	req.URL = joined

	return req, nil
}

// foldOriginFilters moves origin-side filters (_key=value) onto the url as
// query parameters. Row filters pass through untouched and are applied by the
// output pipeline.
func foldOriginFilters(rawURL string, spec string) (string, error) {
	if spec == "" {
		return rawURL, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse url %q: %w", rawURL, err)
	}

	q := u.Query()
	for _, f := range filters.BuildFilters(spec) {
		if !strings.HasPrefix(f.Key, "_") || f.Operand != "=" || f.Negate {
			continue
		}
		q.Set(strings.TrimPrefix(f.Key, "_"), f.Target)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// discoverDefaults builds the default attr specs for an arbitrary payload
// from the scalar keys of its first row. Keys are root-level, hence the
// leading dot.
func discoverDefaults(raw []byte, query string) []string {
	keys := output.DiscoverKeys(raw, query)
	specs := make([]string, 0, len(keys))
	for _, k := range keys {
		specs = append(specs, "."+k)
	}
	return specs
}
