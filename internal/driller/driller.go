// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package driller

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

var indexRE = regexp.MustCompile(`\[(\d+)\]`)

// Driller resolves a dotted path against a JSON document and returns the
// matching gjson.Result. It differs from a plain gjson.Get in one way that
// matters for API payloads: a single-element array is transparent, so
// "items.id" works against {"items": [{"id": ...}]} without an explicit
// index. Multi-element arrays are returned as-is unless the path carries an
// explicit [N] index.
func Driller(json string, path string) gjson.Result {
	path = indexRE.ReplaceAllString(path, ".$1")

	current := gjson.Parse(json)
	segments := strings.Split(path, ".")

	for i, segment := range segments {
		// Drill through single-element arrays, unless the caller is
		// about to index the array explicitly.
		if current.IsArray() && !isIndex(segment) {
			if arr := current.Array(); len(arr) == 1 {
				current = arr[0]
			}
		}

		current = current.Get(segment)

		if !current.Exists() {
			return current
		}

		// Collapse a trailing single-element array to its element.
		if i == len(segments)-1 && current.IsArray() {
			if arr := current.Array(); len(arr) == 1 {
				current = arr[0]
			}
		}
	}

	return current
}

func isIndex(segment string) bool {
	if segment == "" {
		return false
	}
	for _, r := range segment {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
