// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	altsrc "github.com/urfave/cli-altsrc/v3"
	yaml "github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"

	"github.com/go-preheat/preheat/internal/config"
)

func init() {
	conf, _ = config.Load("")
}

var (
	conf config.Type

	schemaFlag = &cli.BoolFlag{
		Name:        "schema",
		Usage:       "dump the row-level keys of the result",
		HideDefault: true,
	}

	tldrFlag = &cli.BoolFlag{
		Name:        "tldr",
		Usage:       "show quick usage examples",
		HideDefault: true,
	}

	assumeOfflineFlag = &cli.BoolFlag{
		Name:        "assume-offline",
		Usage:       "treat the connection as down and serve from cache only",
		HideDefault: true,
	}
)

// nsChain layers a command-namespaced config key over the bare key, so a
// get.output entry in the config file beats a top-level output entry.
func nsChain(ns string, key string) cli.ValueSourceChain {
	return cli.NewValueSourceChain(
		yaml.YAML(ns+"."+key, altsrc.StringSourcer(conf.Source)),
		yaml.YAML(key, altsrc.StringSourcer(conf.Source)),
	)
}

// unjammed rejects values that swallowed the next flag, as in
// --attrs --filter x.
func unjammed(value string) error {
	return FlagValidators(value, JammedFlagValidator)
}

func NewGlobalFlags(params ...string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:      "attrs",
			Aliases:   []string{"a"},
			Usage:     "comma-separated list of attributes to include in results",
			Validator: unjammed,
		},
		&cli.BoolWithInverseFlag{
			Name:    "color",
			Aliases: []string{"c"},
			Usage:   "colorize rendered output",
			Sources: nsChain(params[0], "color"),
			Value:   false,
		},
		&cli.StringFlag{
			Name:      "filter",
			Aliases:   []string{"f"},
			Usage:     "comma-separated list of filters to apply to results",
			Validator: unjammed,
		},
		&cli.BoolWithInverseFlag{
			Name:    "local",
			Usage:   "render timestamps in the local timezone",
			Sources: nsChain(params[0], "local"),
			Value:   false,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "rendering format for results",
			Sources: nsChain(params[0], "output"),
			Value:   "text",
			Validator: func(v string) error {
				return FlagValidators(v, OutputValidator)
			},
		},
		&cli.StringFlag{
			Name:      "sort",
			Aliases:   []string{"s"},
			Usage:     "comma-separated list of attributes to sort the results by",
			Sources:   cli.NewValueSourceChain(yaml.YAML(params[0]+".sort", altsrc.StringSourcer(conf.Source))),
			Validator: unjammed,
		},
		&cli.BoolWithInverseFlag{
			Name:    "titles",
			Aliases: []string{"t"},
			Usage:   "print column titles in text output",
			Sources: nsChain(params[0], "titles"),
			Value:   false,
		},
	}
}

// NewOriginFlag constructs a cli.StringFlag for the "origin" flag, optionally
// namespaced to a command and config file. params[1] is the config file.
// Relative urls and bare view paths are resolved against it.
func NewOriginFlag(params ...string) *cli.StringFlag {
	flag := &cli.StringFlag{
		Name:    "origin",
		Usage:   "base url relative payload paths are resolved against",
		Sources: cli.NewValueSourceChain(cli.EnvVar("PREHEAT_ORIGIN")),
	}

	if len(params) == 2 {
		flag = appendConfigSources(params[0], params[1], flag)
	}

	return flag
}

// NewProbeFlag constructs a cli.StringFlag for the "probe" flag, optionally
// namespaced to a command and config file. params[1] is the config file. The
// connection monitor pings this url; when unset it falls back to the origin
// and then the built-in endpoint.
func NewProbeFlag(params ...string) *cli.StringFlag {
	flag := &cli.StringFlag{
		Name:    "probe",
		Usage:   "url the connection monitor pings",
		Sources: cli.NewValueSourceChain(cli.EnvVar("PREHEAT_PROBE")),
	}

	if len(params) == 2 {
		flag = appendConfigSources(params[0], params[1], flag)
	}

	return flag
}

// NewPolicyFlag constructs a cli.StringFlag for the "policy" flag, namespaced
// to a command and config file.
func NewPolicyFlag(ns string, path string) *cli.StringFlag {
	flag := &cli.StringFlag{
		Name:    "policy",
		Aliases: []string{"p"},
		Usage:   "cache policy to fetch under",
		Value:   "cache-first",
		Validator: func(v string) error {
			return FlagValidators(v, PolicyValidator)
		},
	}
	return appendConfigSources(ns, path, flag)
}

// appendConfigSources layers the namespaced and bare config file keys onto
// whatever sources the flag already carries, typically an env var.
func appendConfigSources(ns string, path string, flag *cli.StringFlag) *cli.StringFlag {
	flag.Sources.Chain = append(flag.Sources.Chain,
		yaml.YAML(ns+"."+flag.Name, altsrc.StringSourcer(path)),
		yaml.YAML(flag.Name, altsrc.StringSourcer(path)))

	return flag
}
