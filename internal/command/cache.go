// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"
	"fmt"
	"path"
	"reflect"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	altsrc "github.com/urfave/cli-altsrc/v3"
	yaml "github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"

	"github.com/go-preheat/preheat/internal/cache"
	"github.com/go-preheat/preheat/internal/meta"
	"github.com/go-preheat/preheat/internal/origin"
	"github.com/go-preheat/preheat/internal/output"
)

// cacheRow is the emitted form of one cache entry.
type cacheRow struct {
	Key    string `jsonapi:"primary,entries"`
	Age    string `jsonapi:"attr,age"`
	Size   string `jsonapi:"attr,size"`
	TTL    string `jsonapi:"attr,ttl"`
	State  string `jsonapi:"attr,state"`
	Digest string `jsonapi:"attr,digest"`
}

func newCacheRow(e *cache.Entry, now time.Time) *cacheRow {
	row := &cacheRow{
		Key:    e.Key,
		Age:    humanize.Time(e.StoredAt),
		Size:   humanize.Bytes(uint64(len(e.Data))),
		Digest: e.Digest,
		State:  "fresh",
	}
	if e.TTL > 0 {
		row.TTL = e.TTL.String()
	}
	if e.Stale || e.Expired(now) {
		row.State = "expired"
	}
	return row
}

// CacheLsAction lists cached entries, optionally narrowed by a glob pattern.
// Patterns follow path.Match, so a star does not cross slashes.
func CacheLsAction(ctx context.Context, cmd *cli.Command) error {
	runner := &QueryActionRunner[*cacheRow]{
		CommandName:  "cache",
		SchemaType:   reflect.TypeOf(cacheRow{}),
		DefaultAttrs: []string{".id:key", "age", "size", "ttl", "state"},
		FetchFn: func(ctx context.Context, cmd *cli.Command) ([]*cacheRow, error) {
			svc, err := NewCacheService()
			if err != nil {
				return nil, err
			}

			pattern := cmd.Args().First()
			if pattern != "" {
				if _, err := path.Match(pattern, ""); err != nil {
					return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
				}
			}

			now := time.Now()
			entries := svc.Entries()
			rows := make([]*cacheRow, 0, len(entries))
			for _, e := range entries {
				if pattern != "" {
					if ok, _ := path.Match(pattern, e.Key); !ok {
						continue
					}
				}
				rows = append(rows, newCacheRow(e, now))
			}

			return rows, nil
		},
	}

	return runner.Run(ctx, cmd)
}

// CacheRmAction removes one entry by key, or several by glob pattern.
func CacheRmAction(ctx context.Context, cmd *cli.Command) error {
	log.Debugf("argv: %v", GetMeta(cmd).Args)

	if ShortCircuitTLDR(ctx, cmd, "cache") {
		return nil
	}

	key := cmd.Args().First()
	if key == "" {
		return errors.New("a key or glob pattern is required")
	}

	svc, err := NewCacheService()
	if err != nil {
		return err
	}

	var removed int
	if strings.ContainsAny(key, "*?[") {
		if removed, err = svc.InvalidatePattern(key); err != nil {
			return err
		}
	} else if svc.Invalidate(key) {
		removed = 1
	}

	fmt.Printf("Removed %s.\n", english.Plural(removed, "entry", "entries"))

	return nil
}

// CachePurgeAction deletes entries older than a cutoff, or everything with
// --all.
func CachePurgeAction(ctx context.Context, cmd *cli.Command) error {
	log.Debugf("argv: %v", GetMeta(cmd).Args)

	if ShortCircuitTLDR(ctx, cmd, "cache") {
		return nil
	}

	svc, err := NewCacheService()
	if err != nil {
		return err
	}

	if cmd.Bool("all") {
		n := svc.Len()
		if err := svc.Flush(); err != nil {
			return err
		}
		fmt.Printf("Removed %s.\n", english.Plural(n, "entry", "entries"))
		return nil
	}

	hours := cmd.Int("older-than")
	if hours <= 0 {
		return errors.New("--older-than needs a positive number of hours, or use --all")
	}

	purged, err := svc.Purge(time.Duration(hours) * time.Hour)
	if err != nil {
		return err
	}

	fmt.Printf("Purged %s.\n", english.Plural(purged, "entry", "entries"))

	return nil
}

// CacheDiffAction compares the cached copy of a key against a fresh fetch
// from the origin. The fetch goes straight to the origin so the cached copy
// stays put.
func CacheDiffAction(ctx context.Context, cmd *cli.Command) error {
	log.Debugf("argv: %v", GetMeta(cmd).Args)

	if ShortCircuitTLDR(ctx, cmd, "cache") {
		return nil
	}

	key := cmd.Args().First()
	if key == "" {
		return errors.New("a cached key is required")
	}

	svc, err := NewCacheService()
	if err != nil {
		return err
	}

	entry, ok := svc.GetStale(key)
	if !ok {
		return fmt.Errorf("nothing cached under %q", key)
	}

	fresh, _, err := origin.Default().Fetch(ctx, key, nil)
	if err != nil {
		return fmt.Errorf("failed to fetch a fresh copy: %w", err)
	}

	text, changed, err := output.DiffJSON(entry.Data, fresh, cmd.Bool("color"))
	if err != nil {
		return err
	}
	if !changed {
		fmt.Println("No differences.")
		return nil
	}

	fmt.Print(text)

	return nil
}

// CacheCommandBuilder constructs the "cache" command and its subcommands for
// inspecting and maintaining the payload cache.
func CacheCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	md := map[string]any{"meta": meta}

	ls := (&QueryCommandBuilder{
		Name:      "ls",
		ConfigNS:  "cache",
		Usage:     "list cached entries",
		UsageText: `preheat cache ls [pattern] [options]`,
		Action:    CacheLsAction,
		Meta:      meta,
	}).Build()

	rm := &cli.Command{
		Name:      "rm",
		Usage:     "remove cached entries by key or glob pattern",
		UsageText: `preheat cache rm <key | pattern>`,
		Metadata:  md,
		Flags:     []cli.Flag{tldrFlag},
		Action:    CacheRmAction,
	}

	purge := &cli.Command{
		Name:      "purge",
		Usage:     "delete entries older than a cutoff",
		UsageText: `preheat cache purge [--older-than hours | --all]`,
		Metadata:  md,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "older-than",
				Usage: "age cutoff in hours",
				Sources: cli.NewValueSourceChain(
					yaml.YAML("cache.clean", altsrc.StringSourcer(meta.Config.Source)),
				),
			},
			&cli.BoolFlag{
				Name:        "all",
				Usage:       "flush every entry regardless of age",
				HideDefault: true,
				Validator: func(value bool) error {
					return FlagValidators(value, MustBeTrueValidator)
				},
			},
			tldrFlag,
		},
		Action: CachePurgeAction,
	}

	diff := &cli.Command{
		Name:      "diff",
		Usage:     "compare a cached entry against a fresh origin copy",
		UsageText: `preheat cache diff <key>`,
		Metadata:  md,
		Flags: []cli.Flag{
			&cli.BoolWithInverseFlag{
				Name:    "color",
				Aliases: []string{"c"},
				Usage:   "enable colored diff output",
				Sources: cli.NewValueSourceChain(
					yaml.YAML("cache.color", altsrc.StringSourcer(meta.Config.Source)),
					yaml.YAML("color", altsrc.StringSourcer(meta.Config.Source)),
				),
				Value: false,
			},
			tldrFlag,
		},
		Action: CacheDiffAction,
	}

	return &cli.Command{
		Name:      "cache",
		Usage:     "inspect and maintain the payload cache",
		UsageText: `preheat cache <ls | rm | purge | diff> [options]`,
		Metadata:  md,
		Commands:  []*cli.Command{ls, rm, purge, diff},
	}
}
