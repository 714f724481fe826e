// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"gopkg.in/yaml.v3"
)

type Type struct {
	Source    string                 // path the file was loaded from
	Namespace string                 // subcommand consulted before bare keys
	Data      map[string]interface{} // parsed yaml document
}

var Config Type

func init() {
	_, _ = Load("")
}

// Load reads preheat.yaml from the standard locations (or PREHEAT_CFG) and
// caches it in the package-level Config. The namespace is the subcommand
// being run, so that "warm.workers" is consulted before bare "workers".
func Load(namespace string) (Type, error) {
	file, err := configPath()
	if err != nil {
		return Type{}, err
	}

	raw, err := os.ReadFile(file)
	if err != nil {
		return Type{}, err
	}

	data := map[string]interface{}{}
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return Type{}, err
	}

	Config = Type{Source: file, Namespace: namespace, Data: data}
	return Config, nil
}

// get resolves a dotted key against the loaded data, consulting the
// namespaced form of the key before the bare one.
func (cfg *Type) get(key string) (any, error) {
	if len(cfg.Data) == 0 {
		_, _ = Load(cfg.Namespace)
	}

	if cfg.Namespace != "" {
		if v, ok := lookup(Config.Data, cfg.Namespace+"."+key); ok {
			return v, nil
		}
	}
	if v, ok := lookup(Config.Data, key); ok {
		return v, nil
	}

	return nil, fmt.Errorf("no value found for %q", key)
}

// lookup walks a dotted path through nested maps.
func lookup(data map[string]interface{}, path string) (any, bool) {
	var current interface{} = data
	for _, key := range strings.Split(path, ".") {
		node, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		if current, ok = node[key]; !ok {
			return nil, false
		}
	}
	return current, true
}

// resolve is the shared front half of the typed getters: make sure a config
// is loaded, then look the key up.
func resolve(key string) (any, error) {
	if len(Config.Data) == 0 {
		_, _ = Load("")
	}
	return Config.get(key)
}

func GetString(key string, def ...string) (string, error) {
	raw, err := resolve(key)
	if err != nil {
		if len(def) == 1 {
			return def[0], nil
		}
		return "", err
	}

	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s is not a string", key)
	}

	return s, nil
}

func GetInt(key string, def ...int) (int, error) {
	raw, err := resolve(key)
	if err != nil {
		if len(def) == 1 {
			return def[0], nil
		}
		return 0, err
	}

	// YAML decodes numbers as int or float64 depending on the literal.
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("%s is not an int", key)
	}
}

func GetBool(key string, def ...bool) (bool, error) {
	raw, err := resolve(key)
	if err != nil {
		if len(def) == 1 {
			return def[0], nil
		}
		return false, err
	}

	b, ok := raw.(bool)
	if !ok {
		return false, fmt.Errorf("%s is not a bool", key)
	}

	return b, nil
}

// GetStringSlice returns a YAML list as []string. Scalar values are wrapped
// in a single-element slice so "warm.set-all: status" and a proper list both
// work as @set targets.
func GetStringSlice(key string, def ...[]string) ([]string, error) {
	raw, err := resolve(key)
	if err != nil {
		if len(def) == 1 {
			return def[0], nil
		}
		return nil, err
	}

	switch v := raw.(type) {
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprintf("%v", item))
		}
		return out, nil
	case string:
		return []string{v}, nil
	default:
		return nil, fmt.Errorf("%s is not a list", key)
	}
}

// configPath locates preheat.yaml: the PREHEAT_CFG override first, then the
// usual per-platform config directories.
func configPath() (string, error) {
	if override := os.Getenv("PREHEAT_CFG"); override != "" {
		info, err := os.Stat(override)
		if err != nil {
			return "", fmt.Errorf("config file not found: %s", override)
		}
		if info.IsDir() {
			return "", fmt.Errorf("PREHEAT_CFG points to a directory: %s", override)
		}
		log.Debugf("using config file: %s", override)
		return override, nil
	}

	for _, dir := range []string{os.Getenv("XDG_CONFIG_HOME"), os.Getenv("APPDATA"), os.Getenv("HOME")} {
		f := filepath.Join(dir, "preheat.yaml")
		if info, err := os.Stat(f); err == nil && !info.IsDir() {
			log.Debugf("using config file: %s", f)
			return f, nil
		}
	}

	return "", errors.New("no config file found in any standard location")
}
