// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/apex/log"
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/charmbracelet/lipgloss/v2/table"
	"github.com/tidwall/gjson"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v2"

	"github.com/go-preheat/preheat/internal/attrs"
	"github.com/go-preheat/preheat/internal/config"
	"github.com/go-preheat/preheat/internal/filters"
)

// Tag is one discovered struct field tag, used by the --schema listing.
type Tag struct {
	Kind     string
	Name     string
	Encoding string
}

// NewTag parses a raw struct tag value into a Tag. Only attr tags matter for
// the schema listing; anything else comes back zero. The holder prefix builds
// hierarchical attribute names for nested structs.
func NewTag(holder string, raw string) Tag {
	parts := strings.Split(raw, ",")
	if parts[0] != "attr" {
		return Tag{}
	}

	tag := Tag{Kind: parts[0]}

	if len(parts) > 1 {
		tag.Name = parts[1]
		if holder != "" {
			tag.Name = holder + "." + parts[1]
		}
	}
	if len(parts) > 2 {
		tag.Encoding = parts[2]
	}

	return tag
}

// Print renders the tag for the schema listing.
func (t Tag) Print() string {
	return t.Name
}

// DumpExamples renders a table of example invocations, one command per row.
func DumpExamples(ctx context.Context, cmd *cli.Command, examples [][2]string) {
	if len(examples) == 0 {
		return
	}

	rows := make([][]string, 0, len(examples))
	for _, e := range examples {
		rows = append(rows, []string{e[0], e[1]})
	}

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderHeader(false).
		Headers("Command", "Description").
		Rows(rows...)

	fmt.Println(t.Render())
}

// DumpSchema prints the attribute names discovered on typ, sorted.
func DumpSchema(prefix string, typ reflect.Type) {
	tags := DumpSchemaWalker(prefix, typ, 0)
	if len(tags) == 0 {
		log.Debugf("no attr tags on type %s", typ.Name())
		return
	}

	sort.Slice(tags, func(i, j int) bool {
		a, b := tags[i], tags[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Name < b.Name
	})

	fmt.Printf("Attributes of %s --\n", typ.Name())

	for _, tag := range tags {
		fmt.Println(tag.Print())
	}

	fmt.Println()
	fmt.Println(
		`Row level attributes that are directly available to the --attrs flag.
For the full payload shape, use --output=raw and see the attrs help in the
documentation or man preheat-attrs.`)
}

const maxWalkDepth = 1

// DumpSchemaWalker walks a struct type collecting jsonapi attr tags, one
// level deep into nested structs.
func DumpSchemaWalker(prefix string, typ reflect.Type, depth int) []Tag {
	tags := []Tag{}

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)

		raw, ok := field.Tag.Lookup("jsonapi")
		if !ok {
			continue
		}

		tag := NewTag(prefix, raw)
		if tag.Kind != "attr" {
			continue
		}
		tags = append(tags, tag)

		if depth >= maxWalkDepth {
			continue
		}

		nested := field.Type
		if nested.Kind() == reflect.Ptr {
			nested = nested.Elem()
		}
		if nested.Kind() == reflect.Struct {
			tags = append(tags, DumpSchemaWalker(tag.Name, nested, depth+1)...)
		}
	}

	return tags
}

// DiscoverKeys returns the scalar keys on the first row of an arbitrary
// payload, sorted. parent optionally drills into the document first, the
// same path SliceDiceSpit uses. Nested objects and arrays are left out
// because a row cell can't render them usefully.
func DiscoverKeys(raw []byte, parent string) []string {
	dataset := gjson.ParseBytes(raw)
	if parent != "" {
		dataset = dataset.Get(parent)
	}

	rows := dataset.Array()
	if len(rows) == 0 {
		return nil
	}

	//nolint:prealloc
	var keys []string
	rows[0].ForEach(func(key, value gjson.Result) bool {
		if value.Type != gjson.JSON {
			keys = append(keys, key.String())
		}
		return true
	})

	sort.Strings(keys)
	return keys
}

// DumpKeys prints the row-level keys of a payload. Payloads carry no static
// type, so the shape is read off the first row the way DumpSchema reads
// struct tags.
func DumpKeys(raw []byte, parent string) {
	keys := DiscoverKeys(raw, parent)
	if len(keys) == 0 {
		fmt.Println("No row-level keys found in the payload.")
		return
	}

	fmt.Println("Keys in the first row --")
	for _, key := range keys {
		fmt.Println("." + key)
	}

	fmt.Println()
	fmt.Println(
		`Row level keys are directly available to the --attrs flag with a leading
dot. For the full payload shape, use --output=raw.`)
}

// SliceDiceSpit runs a dataset through the whole output pipeline: filter the
// rows, transform the values, sort, and render in the format the output flag
// asks for.
func SliceDiceSpit(raw bytes.Buffer, al attrs.AttrList, cmd *cli.Command,
	parent string, w io.Writer) {

	if w == nil {
		w = os.Stdout
	}

	// Raw skips the pipeline entirely.
	output := cmd.String("output")
	if output == "raw" {
		_, _ = w.Write(raw.Bytes())
		return
	}

	// Row emitters wrap their rows in "data"; payload passthrough hands an
	// empty parent and works off the document root.
	fullDataset := gjson.ParseBytes(raw.Bytes())
	if parent != "" {
		fullDataset = fullDataset.Get(parent)
	}

	// App payloads carry their tab rows nested under views[]. Flatten them so
	// the same attrs/filter/sort machinery works on every dataset shape.
	if views := fullDataset.Get("views"); views.Exists() && views.IsArray() {
		raw = flattenViews(views)
		fullDataset = gjson.ParseBytes(raw.Bytes())
	}

	// Filtering first shrinks the dataset for the transform and sort passes.
	rows := filters.FilterDataset(fullDataset, al, cmd.String("filter"))

	if cmd.Bool("local") {
		for i := range al {
			al[i].TransformSpec += "t"
		}
	}

	for _, rec := range rows {
		for _, attr := range al {
			if attr.TransformSpec != "" {
				rec[attr.OutputKey] = attr.Transform(rec[attr.OutputKey])
			}
		}
	}

	SortDataset(rows, cmd.String("sort"))

	switch output {
	case "json":
		// TODO json.Marshal alphabetizes map keys; emit in attrs order instead.
		body, err := json.Marshal(rows)
		if err != nil {
			log.Errorf("SliceDiceSpit: %v", err)
		}
		_, _ = w.Write(body)
	case "yaml":
		body, err := yaml.Marshal(rows)
		if err != nil {
			log.Errorf("SliceDiceSpit: %v", err)
		}
		_, _ = w.Write(body)
	default:
		TableWriter(rows, al, cmd, w)
	}
}

// TableWriter renders the result set in a tabular form honoring the color,
// titles, and padding options.
func TableWriter(dataset []map[string]interface{}, al attrs.AttrList,
	cmd *cli.Command, w io.Writer) {

	if len(dataset) == 0 {
		return
	}

	headerStyle := lipgloss.NewStyle().Align(lipgloss.Left)
	cellStyle := lipgloss.NewStyle().Padding(0, 0).Align(lipgloss.Left)
	evenRowStyle := cellStyle
	oddRowStyle := cellStyle

	if cmd.Bool("color") {
		headerColor, evenColor, oddColor := getColors()

		headerStyle = headerStyle.Foreground(lipgloss.Color(headerColor))
		evenRowStyle = evenRowStyle.Foreground(lipgloss.Color(evenColor))
		oddRowStyle = oddRowStyle.Foreground(lipgloss.Color(oddColor))
	}

	padding, _ := config.GetInt("padding", 0)

	rows := make([][]string, 0, len(dataset))
	for _, rec := range dataset {
		cells := make([]string, 0, len(al))
		for _, attr := range al {
			if attr.Include {
				cells = append(cells, InterfaceToString(rec[attr.OutputKey], "-"))
			}
		}
		rows = append(rows, cells)
	}

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		StyleFunc(func(row, col int) lipgloss.Style {
			var style lipgloss.Style
			switch {
			case row == table.HeaderRow:
				style = headerStyle
			case row%2 == 0:
				style = evenRowStyle
			default:
				style = oddRowStyle
			}

			if col > 0 {
				style = style.PaddingLeft(padding)
			}

			return style
		}).
		Rows(rows...)

	if cmd.Bool("titles") {
		headers := make([]string, 0, len(al))
		for _, attr := range al {
			if attr.Include {
				headers = append(headers, attr.OutputKey)
			}
		}

		// https://github.com/charmbracelet/lipgloss/issues/261
		t = t.Headers(headers...).BorderHeader(false)
	}

	fmt.Fprintln(w, t)
}

// getColors reads the table palette from config.
func getColors() (header string, even string, odd string) {
	header, _ = config.GetString("colors.title", "#ffb86c")
	even, _ = config.GetString("colors.even", "#f8f8f2")
	odd, _ = config.GetString("colors.odd", "#8be9fd")
	return
}

// flattenViews turns the nested views[].tabs[] payload shape into flat tab
// rows. Each tab inherits its view's fields and gains a "path" built from
// the view name and tab id, so one view with many tabs produces many rows
// addressable like status.overview.
func flattenViews(views gjson.Result) bytes.Buffer {
	var flatTabs []map[string]interface{}

	for _, view := range views.Array() {
		base := getCommonFields(view)
		name := view.Get("name").String()

		tabs := view.Get("tabs")
		if !tabs.Exists() || len(tabs.Array()) == 0 {
			row := make(map[string]interface{}, len(base)+1)
			for key, val := range base {
				row[key] = val
			}
			row["path"] = name
			flatTabs = append(flatTabs, row)
			continue
		}

		for i, tab := range tabs.Array() {
			flatTab := make(map[string]interface{})
			for key, val := range base {
				flatTab[key] = val
			}

			for key, val := range tab.Map() {
				flatTab[key] = val.Value()
			}

			if id := tab.Get("id").String(); id != "" {
				flatTab["path"] = fmt.Sprintf("%s.%s", name, id)
			} else {
				flatTab["path"] = fmt.Sprintf("%s[%d]", name, i)
			}

			flatTabs = append(flatTabs, flatTab)
		}
	}

	jsonBytes, err := json.Marshal(flatTabs)
	if err != nil {
		log.Errorf("flattenViews: %v", err)
		return bytes.Buffer{}
	}

	return *bytes.NewBuffer(jsonBytes)
}

// getCommonFields copies every view field except the tab list itself.
func getCommonFields(view gjson.Result) map[string]interface{} {
	shared := make(map[string]interface{})
	for key, val := range view.Map() {
		if key != "tabs" {
			shared[key] = val.Value()
		}
	}
	return shared
}

// InterfaceToString converts a cell value to its rendered form. Nil and zero
// values come out as the placeholder, or blank without one. Floats render as
// integers since counts and sizes are the only numbers payload rows carry.
func InterfaceToString(value interface{}, placeholder ...string) string {
	empty := ""
	if len(placeholder) > 0 {
		empty = placeholder[0]
	}

	if value == nil || reflect.ValueOf(value).IsZero() {
		return empty
	}

	switch value := value.(type) {
	case string:
		return value
	case int:
		return strconv.Itoa(value)
	case float64:
		return strconv.FormatFloat(value, 'f', 0, 64)
	case bool:
		return strconv.FormatBool(value)
	default:
		jsonBytes, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprintf("%v", value)
		}
		return string(jsonBytes)
	}
}
