// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package filters

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/apex/log"
	"github.com/tidwall/gjson"

	"github.com/go-preheat/preheat/internal/attrs"
	"github.com/go-preheat/preheat/internal/driller"
)

// exprRe splits one filter expression into key, operand, and target. The
// operand is one of = ^ ~ < > @ /, optionally negated with a leading !.
var exprRe = regexp.MustCompile(`^(.*?)(!?[=^~<>@/])(.*)$`)

// Filter is one parsed filter expression.
type Filter struct {
	Key     string
	Negate  bool
	Operand string
	Target  string
}

// BuildFilters parses a filter spec into its individual filters. Expressions
// without a recognizable operand are logged and skipped, never fatal. The
// delimiter is a comma unless PREHEAT_FILTER_DELIM overrides it, for targets
// that themselves contain commas.
func BuildFilters(spec string) []Filter {
	if spec == "" {
		return nil
	}

	delim := ","
	if d, ok := os.LookupEnv("PREHEAT_FILTER_DELIM"); ok {
		delim = d
	}

	var out []Filter
	for _, expr := range strings.Split(spec, delim) {
		f, ok := parseFilter(expr)
		if !ok {
			log.Error("invalid filter: " + expr)
			continue
		}
		out = append(out, f)
	}

	return out
}

// parseFilter pulls one expression apart. The negation marker rides on the
// operand, so it is stripped off into Negate here.
func parseFilter(expr string) (Filter, bool) {
	m := exprRe.FindStringSubmatch(expr)
	if m == nil {
		return Filter{}, false
	}

	op := m[2]
	neg := strings.HasPrefix(op, "!")
	if neg {
		op = op[1:]
	}

	return Filter{
		Key:     m[1],
		Negate:  neg,
		Operand: op,
		Target:  m[3],
	}, true
}

// FilterDataset runs every candidate row through the parsed filter spec and
// projects the survivors onto the attr list. Transforms are not applied here;
// filtering sees raw values and the output phase does the transforming.
func FilterDataset(candidates gjson.Result, al attrs.AttrList, spec string) []map[string]interface{} {
	fs := BuildFilters(spec)

	var rows []map[string]interface{}
	for _, cand := range candidates.Array() {
		if !applyFilters(cand, al, fs) {
			continue
		}

		row := make(map[string]interface{}, len(al))
		for i := range al {
			row[al[i].OutputKey] = driller.Driller(cand.Raw, al[i].Key).Value()
		}
		rows = append(rows, row)
	}

	return rows
}

// applyFilters reports whether the candidate row survives every filter.
// Origin-side keys (prefixed with _) were already folded into the request and
// are not row filters, so they are skipped here.
func applyFilters(cand gjson.Result, al attrs.AttrList, fs []Filter) bool {
	for _, f := range fs {
		if strings.HasPrefix(f.Key, "_") {
			continue
		}

		// Filters address attrs by their output key.
		key := rowKey(al, f.Key)
		if key == "" {
			// An unknown key is reported but does not reject the row, so
			// one typo does not empty the whole result set.
			msg := "filter key not found: " + f.Key
			log.Error(msg)
			fmt.Fprintln(os.Stderr, "warning:", msg)
			continue
		}

		value := driller.Driller(cand.Raw, key).Value()
		if value == nil {
			return false
		}

		if !matchValue(value, f) {
			return false
		}
	}

	return true
}

// rowKey resolves a filter key to the row key of the attr it names.
func rowKey(al attrs.AttrList, filterKey string) string {
	for _, attr := range al {
		if attr.OutputKey == filterKey {
			return attr.Key
		}
	}
	return ""
}

// matchValue picks the comparison family for the value's type. Values that
// fit no family pass, matching the lenient treatment of unknown keys.
func matchValue(value interface{}, f Filter) bool {
	switch v := value.(type) {
	case string:
		return checkStringOperand(v, f)
	case bool:
		return checkStringOperand(strconv.FormatBool(v), f)
	}

	if num, ok := toFloat64(value); ok {
		return checkNumericOperand(num, f)
	}
	if f.Operand == "@" {
		return checkContainsOperand(value, f)
	}

	return true
}

// checkContainsOperand evaluates the membership operand @ against slice and
// map values. For slices the target must equal an element, for maps it must
// be a key.
func checkContainsOperand(value interface{}, f Filter) bool {
	var found bool

	switch val := value.(type) {
	case []any:
		for _, item := range val {
			if item == f.Target {
				found = true
				break
			}
		}
	case map[string]any:
		_, found = val[f.Target]
	default:
		log.Errorf("unsupported type for contains filtering: %T", value)
		return false
	}

	return found != f.Negate
}

// checkNumericOperand compares numerically. The target must parse as a
// number; one that does not fails the filter outright.
func checkNumericOperand(value float64, f Filter) bool {
	tgt, err := strconv.ParseFloat(strings.TrimSpace(f.Target), 64)
	if err != nil {
		log.Error("invalid numeric target: " + f.Target)
		return false
	}

	var hit bool
	switch f.Operand {
	case "=":
		hit = value == tgt
	case ">":
		hit = value > tgt
	case "<":
		hit = value < tgt
	default:
		log.Error("unsupported numeric operand: " + f.Operand)
		return false
	}

	return hit != f.Negate
}

// checkStringOperand compares as strings. > and < are lexicographic, ~ is a
// case fold, ^ anchors at the start, @ matches anywhere, and / is a regular
// expression.
func checkStringOperand(value string, f Filter) bool {
	var hit bool

	switch f.Operand {
	case "=":
		hit = value == f.Target
	case "~":
		hit = strings.EqualFold(value, f.Target)
	case "^":
		hit = strings.HasPrefix(value, f.Target)
	case ">":
		hit = value > f.Target
	case "<":
		hit = value < f.Target
	case "@":
		hit = strings.Contains(value, f.Target)
	case "/":
		matched, err := regexp.MatchString(f.Target, value)
		if err != nil {
			log.Error("invalid regex: " + f.Target)
			return false
		}
		hit = matched
	default:
		log.Error("unsupported filtering operand: " + f.Operand)
		return false
	}

	return hit != f.Negate
}

// toFloat64 normalizes the numeric types JSON decoding and test fixtures can
// produce. Anything else reports false.
func toFloat64(value interface{}) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
