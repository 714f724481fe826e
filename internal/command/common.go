// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"reflect"
	"time"

	"github.com/apex/log"
	"github.com/hashicorp/jsonapi"
	"github.com/urfave/cli/v3"

	"github.com/go-preheat/preheat/internal/attrs"
	"github.com/go-preheat/preheat/internal/cache"
	"github.com/go-preheat/preheat/internal/config"
	"github.com/go-preheat/preheat/internal/meta"
	"github.com/go-preheat/preheat/internal/netstatus"
	"github.com/go-preheat/preheat/internal/origin"
	"github.com/go-preheat/preheat/internal/output"
	"github.com/go-preheat/preheat/internal/preload"
	"github.com/go-preheat/preheat/internal/request"
)

// quickExamples backs --tldr when no external tldr client is installed. The
// pages shipped under docs/tldr cover the same ground for the real client.
var quickExamples = map[string][][2]string{
	"get": {
		{"preheat get https://api.example.com/users", "fetch one payload through the cache"},
		{"preheat get inbox --policy revalidate", "refresh a configured view"},
		{"preheat get users --origin https://api.example.com --output json", "resolve a path against an origin"},
	},
	"warm": {
		{"preheat warm", "warm every configured view"},
		{"preheat warm inbox reports", "warm a subset of views"},
		{"preheat warm --workers 8 --output json", "widen the pool and emit rows"},
	},
	"status": {
		{"preheat status", "probe once and classify the connection"},
		{"preheat status --watch --interval 10s", "keep probing on an interval"},
	},
	"cache": {
		{"preheat cache ls", "list cached entries"},
		{"preheat cache purge --older-than 24", "drop entries older than a day"},
		{"preheat cache diff https://api.example.com/users", "compare cached against origin"},
	},
	"watch": {
		{"preheat watch", "open the dashboard"},
		{"preheat watch --rewarm 5m", "rewarm every view on an interval"},
	},
}

// ShortCircuitTLDR checks the --tldr flag and, if present, runs
// `tldr preheat <subcmd>` and returns true so the caller can exit early.
// Without a tldr client on PATH the built-in examples are shown instead.
func ShortCircuitTLDR(ctx context.Context, cmd *cli.Command, subcmd string) bool {
	if !cmd.Bool("tldr") {
		return false
	}

	if _, err := exec.LookPath("tldr"); err == nil {
		tl := exec.CommandContext(ctx, "tldr", "preheat", subcmd)
		tl.Stdout = os.Stdout
		tl.Stderr = os.Stderr
		_ = tl.Run()
		return true
	}

	output.DumpExamples(ctx, cmd, quickExamples[subcmd])
	return true
}

// DumpSchemaIfRequested prints the attribute schema for the provided row type
// when --schema is set, and returns true if it handled the request.
func DumpSchemaIfRequested(cmd *cli.Command, typ reflect.Type) bool {
	if !cmd.Bool("schema") {
		return false
	}

	output.DumpSchema("", typ)
	return true
}

// BuildAttrs seeds an AttrList with the command defaults, folds in any
// --attrs additions, and applies the global transform spec.
func BuildAttrs(cmd *cli.Command, defaults ...string) attrs.AttrList {
	var al attrs.AttrList

	for _, def := range defaults {
		al.Set(def) //nolint:errcheck
	}
	if spec := cmd.String("attrs"); spec != "" {
		al.Set(spec) //nolint:errcheck
	}
	al.SetGlobalTransformSpec()

	return al
}

// EmitJSONAPISlice marshals rows as JSONAPI and hands the payload to the
// renderer.
func EmitJSONAPISlice(results any, al attrs.AttrList, cmd *cli.Command) error {
	var payload bytes.Buffer
	if err := jsonapi.MarshalPayload(&payload, results); err != nil {
		return fmt.Errorf("marshal rows: %w", err)
	}

	output.SliceDiceSpit(payload, al, cmd, "data", os.Stdout)
	return nil
}

// GetMeta digs the meta.Meta out of the command's Metadata map. A missing or
// mistyped entry yields the zero value.
func GetMeta(cmd *cli.Command) meta.Meta {
	if cmd == nil || cmd.Metadata == nil {
		return meta.Meta{}
	}

	m, _ := cmd.Metadata["meta"].(meta.Meta)
	return m
}

// QueryCommandBuilder describes a row-emitting subcommand. Build folds in
// the tldr and schema flags, the global flag set, metadata, and the global
// flags validator, so the per-command files only declare what differs.
// ConfigNS overrides the config namespace used by the flag source chains; it
// defaults to Name.
type QueryCommandBuilder struct {
	Name      string
	ConfigNS  string
	Usage     string
	UsageText string
	Flags     []cli.Flag
	Action    func(context.Context, *cli.Command) error
	Meta      meta.Meta
}

// Build assembles the cli.Command described by the builder.
func (b *QueryCommandBuilder) Build() *cli.Command {
	ns := b.ConfigNS
	if ns == "" {
		ns = b.Name
	}

	flags := append([]cli.Flag{}, b.Flags...)
	flags = append(flags, tldrFlag, schemaFlag)
	flags = append(flags, NewGlobalFlags(ns)...)

	return &cli.Command{
		Name:      b.Name,
		Usage:     b.Usage,
		UsageText: b.UsageText,
		Metadata:  map[string]any{"meta": b.Meta},
		Flags:     flags,
		Before: func(ctx context.Context, cc *cli.Command) (context.Context, error) {
			return ctx, GlobalFlagsValidator(ctx, cc)
		},
		Action: b.Action,
	}
}

// QueryActionRunner holds the pieces a row-emitting action needs: the tldr
// page name, the schema type, the default attrs, and the fetch itself.
type QueryActionRunner[T any] struct {
	CommandName  string
	SchemaType   reflect.Type
	DefaultAttrs []string
	FetchFn      func(context.Context, *cli.Command) ([]T, error)
}

// Run drives the action: tldr and schema short circuits, attrs, fetch, emit.
func (r *QueryActionRunner[T]) Run(ctx context.Context, cmd *cli.Command) error {
	log.Debugf("argv: %v", GetMeta(cmd).Args)

	if ShortCircuitTLDR(ctx, cmd, r.CommandName) {
		return nil
	}
	if DumpSchemaIfRequested(cmd, r.SchemaType) {
		return nil
	}

	al := BuildAttrs(cmd, r.DefaultAttrs...)
	log.Debugf("attrs: %v", al)

	rows, err := r.FetchFn(ctx, cmd)
	if err != nil {
		return err
	}

	return EmitJSONAPISlice(rows, al, cmd)
}

// Stack bundles the subsystems a fetching command runs on: the two-tier
// cache, the connection monitor, and the request manager over them.
// InitWarmStack adds the preload manager.
type Stack struct {
	Cache    *cache.Service
	Monitor  *netstatus.Monitor
	Requests *request.Manager
	Preload  *preload.Manager
}

// Close releases background work in dependency order.
func (s *Stack) Close() {
	if s.Preload != nil {
		s.Preload.Stop()
	}
	if s.Requests != nil {
		s.Requests.Close()
	}
	if s.Monitor != nil {
		s.Monitor.Stop()
	}
}

// NewCacheService builds the disk-backed cache with defaults from config.
func NewCacheService() (*cache.Service, error) {
	var copts []cache.Option
	if d, err := configDuration("cache.ttl"); err == nil {
		copts = append(copts, cache.WithDefaultTTL(d))
	}
	if n, err := config.GetInt("cache.entries"); err == nil {
		copts = append(copts, cache.WithMaxEntries(n))
	}
	return cache.New(copts...)
}

// InitRequestStack builds the cache, monitor, and request manager from the
// command's flags and config. The monitor starts idle; commands that want a
// classification probe once or start the loop themselves.
func InitRequestStack(ctx context.Context, cmd *cli.Command) (*Stack, error) {
	svc, err := NewCacheService()
	if err != nil {
		return nil, err
	}

	mopts := []netstatus.Option{netstatus.WithProbeURL(ProbeURL(cmd))}
	if d, err := configDuration("netstatus.interval"); err == nil {
		mopts = append(mopts, netstatus.WithInterval(d))
	}
	if d, err := configDuration("netstatus.timeout"); err == nil {
		mopts = append(mopts, netstatus.WithTimeout(d))
	}
	if n, err := config.GetInt("netstatus.failures"); err == nil {
		mopts = append(mopts, netstatus.WithFailureThreshold(n))
	}
	mon := netstatus.NewMonitor(mopts...)
	if cmd.Bool("assume-offline") {
		mon.Force(netstatus.StatusOffline)
	}

	req := request.NewManager(svc, origin.Default(), mon)
	log.Debugf("stack up, probing %s", ProbeURL(cmd))

	return &Stack{Cache: svc, Monitor: mon, Requests: req}, nil
}

// InitWarmStack builds the request stack plus a preload manager sized by the
// --workers flag and the preload.workers config key.
func InitWarmStack(ctx context.Context, cmd *cli.Command) (*Stack, error) {
	s, err := InitRequestStack(ctx, cmd)
	if err != nil {
		return nil, err
	}

	var popts []preload.Option
	if w := workerCount(cmd); w > 0 {
		popts = append(popts, preload.WithConcurrency(w))
	}
	if d, err := configDuration("preload.gap"); err == nil {
		popts = append(popts, preload.WithHintGap(d))
	}

	pre, err := preload.NewManager(s.Requests, s.Monitor, popts...)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Preload = pre

	return s, nil
}

// ProbeURL picks the monitor endpoint: the --probe flag and its config
// chain, then the configured origin, then the built-in endpoint.
func ProbeURL(cmd *cli.Command) string {
	if p := cmd.String("probe"); p != "" {
		return p
	}
	if o := cmd.String("origin"); o != "" {
		return o
	}
	if o, err := config.GetString("origin"); err == nil && o != "" {
		return o
	}
	return netstatus.DefaultProbeURL
}

// workerCount resolves the warm pool size: flag first, then config, then the
// preload default.
func workerCount(cmd *cli.Command) int {
	if w := cmd.Int("workers"); w > 0 {
		return w
	}
	if n, err := config.GetInt("preload.workers"); err == nil {
		return n
	}
	return 0
}

// configDuration reads a duration-shaped config value ("30s", "5m").
func configDuration(key string) (time.Duration, error) {
	s, err := config.GetString(key)
	if err != nil {
		return 0, err
	}
	return time.ParseDuration(s)
}
