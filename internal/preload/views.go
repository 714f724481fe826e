// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package preload

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-preheat/preheat/internal/config"
)

// ViewsFromConfig builds the view list from the "views" block of the config.
// Relative view URLs are resolved against the top-level "origin" value. When
// names are given, only those views are returned, in the order asked for.
func ViewsFromConfig(cfg config.Type, names ...string) ([]View, error) {
	raw, ok := cfg.Data["views"]
	if !ok {
		return nil, errors.New("no views defined in config")
	}

	list, ok := raw.([]interface{})
	if !ok {
		return nil, errors.New("views must be a list")
	}

	base, _ := cfg.Data["origin"].(string)

	views := make([]View, 0, len(list))
	for i, item := range list {
		entry, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("views[%d] is not a mapping", i)
		}

		v := View{}

		v.Name, _ = entry["name"].(string)
		if v.Name == "" {
			return nil, fmt.Errorf("views[%d] has no name", i)
		}

		rawURL, _ := entry["url"].(string)
		if rawURL == "" {
			return nil, fmt.Errorf("view %q has no url", v.Name)
		}
		resolved, err := resolveURL(base, rawURL)
		if err != nil {
			return nil, fmt.Errorf("view %q: %w", v.Name, err)
		}
		v.URL = resolved

		if p, ok := entry["priority"]; ok {
			pr, err := ParsePriority(fmt.Sprintf("%v", p))
			if err != nil {
				return nil, fmt.Errorf("view %q: %w", v.Name, err)
			}
			v.Priority = pr
		}

		if rawTTL, ok := entry["ttl"]; ok {
			ttl, err := parseTTL(rawTTL)
			if err != nil {
				return nil, fmt.Errorf("view %q: %w", v.Name, err)
			}
			v.TTL = ttl
		}

		if rawPrefetch, ok := entry["prefetch"].([]interface{}); ok {
			for _, p := range rawPrefetch {
				resolved, err := resolveURL(base, fmt.Sprintf("%v", p))
				if err != nil {
					return nil, fmt.Errorf("view %q: %w", v.Name, err)
				}
				v.Prefetch = append(v.Prefetch, resolved)
			}
		}

		views = append(views, v)
	}

	if len(names) == 0 {
		return views, nil
	}

	byName := make(map[string]View, len(views))
	for _, v := range views {
		byName[v.Name] = v
	}

	selected := make([]View, 0, len(names))
	for _, name := range names {
		v, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown view %q", name)
		}
		selected = append(selected, v)
	}
	return selected, nil
}

// resolveURL joins a relative path onto the configured origin. Absolute URLs
// pass through untouched.
func resolveURL(base, raw string) (string, error) {
	if strings.Contains(raw, "://") {
		return raw, nil
	}
	if base == "" {
		return "", fmt.Errorf("relative url %q with no origin configured", raw)
	}
	return url.JoinPath(base, raw)
}

// parseTTL accepts a duration string ("5m") or a bare number of seconds.
func parseTTL(v interface{}) (time.Duration, error) {
	switch t := v.(type) {
	case string:
		d, err := time.ParseDuration(t)
		if err != nil {
			return 0, fmt.Errorf("bad ttl %q: %w", t, err)
		}
		return d, nil
	case int:
		return time.Duration(t) * time.Second, nil
	case int64:
		return time.Duration(t) * time.Second, nil
	case float64:
		return time.Duration(t * float64(time.Second)), nil
	default:
		return 0, fmt.Errorf("bad ttl %v", v)
	}
}
