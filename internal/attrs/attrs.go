// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package attrs

import (
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"

	"github.com/go-preheat/preheat/internal/config"
)

// Attr is one column selection parsed from an attrs spec: the key to pull out
// of each row, the name it is emitted under, and an optional transform applied
// to the value on the way out.
type Attr struct {
	// Key addresses the value inside the row JSON.
	Key string
	// Include marks the attr for output. Attrs that exist only so filters
	// and sorts can reach them carry false.
	Include bool
	// OutputKey names the value in the emitted row. It doubles as the
	// column title under text output.
	OutputKey string
	// TransformSpec holds the raw transform characters for this attr.
	TransformSpec string
}

// Transform applies the attr's transform spec to a single value. Only string
// values are transformable; everything else passes through untouched.
func (a *Attr) Transform(value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}

	s = a.localizeTime(s)
	s = a.recase(s)
	s = a.clip(s)

	return s
}

// localizeTime rewrites an RFC3339 timestamp into the configured timezone,
// under a t/T transform. Without a timezone from config or TZ the value is
// left alone. A value that does not parse as a timestamp drops the time
// transform so the remaining transforms still apply.
func (a *Attr) localizeTime(s string) string {
	if !strings.ContainsAny(a.TransformSpec, "tT") {
		return s
	}

	tz, _ := config.GetString("timezone", "")
	if tz == "" {
		tz = os.Getenv("TZ")
	}
	if tz == "" {
		return s
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return s
	}

	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		log.Error("failed to parse time: " + s)
		a.TransformSpec = strings.Map(func(r rune) rune {
			if r == 't' || r == 'T' {
				return -1
			}
			return r
		}, a.TransformSpec)
		return s
	}

	return t.In(loc).Format("2006-01-02T15:04:05MST")
}

// recase applies whichever case transform appears last in the transform
// spec. A global transform is prepended to the per-attr one, so the per-attr
// characters sit later and win. IOW... '*::U,key::l' comes out lower case.
func (a *Attr) recase(s string) string {
	lower := strings.LastIndexAny(a.TransformSpec, "lL")
	upper := strings.LastIndexAny(a.TransformSpec, "uU")

	switch {
	case lower > upper:
		return strings.ToLower(s)
	case upper > lower:
		return strings.ToUpper(s)
	}

	return s
}

var lengthRe = regexp.MustCompile(`-?\d+`)

// clip truncates the value to the last length in the transform spec, so a
// per-attr length overrides a global one. A negative length keeps both ends
// and elides the middle.
func (a *Attr) clip(s string) string {
	if a.TransformSpec == "" {
		return s
	}

	match := lengthRe.FindAllString(a.TransformSpec, -1)
	if len(match) == 0 {
		return s
	}

	n, _ := strconv.Atoi(match[len(match)-1])
	width := n
	if width < 0 {
		width = -width
	}
	if len(s) <= width {
		return s
	}

	if n < 0 {
		keep := width/2 - 1
		return s[:keep] + ".." + s[len(s)-keep:]
	}

	return s[:n]
}

type AttrList []Attr

// String renders the list back into the flag syntax it was parsed from.
func (al *AttrList) String() string {
	specs := make([]string, 0, len(*al))
	for _, attr := range *al {
		specs = append(specs, attr.Key+":"+attr.OutputKey+":"+attr.TransformSpec)
	}
	return strings.Join(specs, ",")
}

// Set parses a comma-separated attrs flag value into the list. Each spec has
// up to three colon-delimited fields: the row key, the output key, and the
// transform. The output key defaults to the last dot segment of the row key.
//
// A spec whose key matches an attr already in the list (one of a command's
// defaults, or a double entry) updates that attr in place instead of
// appending.
func (al *AttrList) Set(raw string) error {
	if raw == "" || raw == "*" {
		return nil
	}

	for _, spec := range strings.Split(raw, ",") {
		a := parseSpec(spec)

		if existing := al.find(a.Key); existing != nil {
			existing.Include = a.Include
			existing.OutputKey = a.OutputKey
			existing.TransformSpec = a.TransformSpec
			continue
		}

		// A leading dot addresses the row root. Anything else is reached
		// through the attributes object.
		if strings.HasPrefix(a.Key, ".") {
			a.Key = a.Key[1:]
		} else if a.Key != "*" {
			a.Key = "attributes." + a.Key
		}

		*al = append(*al, a)
	}

	return nil
}

// parseSpec splits one spec into its fields. A leading ! excludes the attr
// from output, as does the * key, which only carries a global transform.
func parseSpec(spec string) Attr {
	a := Attr{Include: true}

	parts := strings.Split(spec, ":")

	a.Key = strings.TrimSpace(parts[0])
	if strings.HasPrefix(a.Key, "!") {
		a.Include = false
		a.Key = a.Key[1:]
	}
	if a.Key == "*" {
		a.Include = false
	}

	switch {
	case len(parts) == 1:
		segs := strings.Split(a.Key, ".")
		a.OutputKey = segs[len(segs)-1]
	case parts[1] != "":
		a.OutputKey = strings.TrimSpace(parts[1])
	default:
		a.OutputKey = a.Key
	}

	if len(parts) > 2 {
		a.TransformSpec = strings.TrimSpace(parts[2])
	}

	return a
}

// find returns the attr whose key or output key matches, or nil.
func (al *AttrList) find(key string) *Attr {
	for i := range *al {
		if (*al)[i].Key == key || (*al)[i].OutputKey == key {
			return &(*al)[i]
		}
	}
	return nil
}

// SetGlobalTransformSpec prepends the * attr's transform, when one exists,
// onto every attr in the list. Per-attr transforms come later in the combined
// spec and therefore win.
func (al *AttrList) SetGlobalTransformSpec() error {
	var global string
	for i := range *al {
		if (*al)[i].Key == "*" {
			global = (*al)[i].TransformSpec
			break
		}
	}
	if global == "" {
		return nil
	}

	for i := range *al {
		(*al)[i].TransformSpec = global + "," + (*al)[i].TransformSpec
	}

	return nil
}

func (al *AttrList) Type() string {
	return "list"
}
