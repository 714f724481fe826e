// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"encoding/json"
	"fmt"

	gojsondiff "github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
)

// DiffJSON compares two JSON documents and renders a unified-style diff of
// before against after. The bool reports whether they differ at all.
func DiffJSON(before, after []byte, color bool) (string, bool, error) {
	d, err := gojsondiff.New().Compare(before, after)
	if err != nil {
		return "", false, fmt.Errorf("failed to diff: %w", err)
	}

	if !d.Modified() {
		return "", false, nil
	}

	var left map[string]interface{}
	if err := json.Unmarshal(before, &left); err != nil {
		return "", false, fmt.Errorf("failed to parse document: %w", err)
	}

	out, err := formatter.NewAsciiFormatter(left, formatter.AsciiFormatterConfig{
		ShowArrayIndex: true,
		Coloring:       color,
	}).Format(d)
	if err != nil {
		return "", false, fmt.Errorf("failed to format diff: %w", err)
	}

	return out, true, nil
}
