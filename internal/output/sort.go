// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"sort"
	"strings"
)

type sortKey struct {
	key           string
	descending    bool
	caseSensitive bool
}

// SortDataset orders rows in place. The spec is a comma-separated list of
// keys; a "-" prefix sorts that key descending and a "!" prefix makes its
// string compares case-sensitive. An empty spec leaves the rows untouched.
func SortDataset(dataset []map[string]interface{}, spec string) {
	if spec == "" || len(dataset) < 2 {
		return
	}

	//nolint:prealloc // malformed entries are dropped, so len is unknown.
	var keys []sortKey
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)

		descending := strings.HasPrefix(part, "-")
		part = strings.TrimPrefix(part, "-")

		caseSensitive := strings.HasPrefix(part, "!")
		part = strings.TrimPrefix(part, "!")

		if part == "" {
			continue
		}
		keys = append(keys, sortKey{key: part, descending: descending, caseSensitive: caseSensitive})
	}

	sort.SliceStable(dataset, func(i, j int) bool {
		for _, k := range keys {
			cmp := compareValues(dataset[i][k.key], dataset[j][k.key], k.caseSensitive)
			if cmp == 0 {
				continue
			}
			if k.descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

// compareValues orders two cell values, numerically when both sides are
// numbers and as strings otherwise.
func compareValues(a, b interface{}, caseSensitive bool) int {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}

	as := InterfaceToString(a)
	bs := InterfaceToString(b)
	if !caseSensitive {
		as = strings.ToLower(as)
		bs = strings.ToLower(bs)
	}
	return strings.Compare(as, bs)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
