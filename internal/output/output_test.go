// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/go-preheat/preheat/internal/attrs"
	"github.com/go-preheat/preheat/internal/config"
)

func TestSortDataset(t *testing.T) {
	rows := func() []map[string]interface{} {
		return []map[string]interface{}{
			{"view": "search", "hits": 2.0, "layout": "grid"},
			{"view": "browse", "hits": 9.0, "layout": "list"},
			{"view": "cart", "hits": 4.0, "layout": "grid"},
		}
	}

	cases := []struct {
		name string
		spec string
		want []string
	}{
		{"by view", "view", []string{"browse", "cart", "search"}},
		{"by view descending", "-view", []string{"search", "cart", "browse"}},
		{"by hits", "hits", []string{"search", "cart", "browse"}},
		{"by hits descending", "-hits", []string{"browse", "cart", "search"}},
		{"case sensitive", "!view", []string{"browse", "cart", "search"}},
		{"two keys", "layout,view", []string{"cart", "search", "browse"}},
		{"no spec keeps order", "", []string{"search", "browse", "cart"}},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			data := rows()
			SortDataset(data, tt.spec)

			var views []string
			for _, row := range data {
				views = append(views, fmt.Sprint(row["view"]))
			}
			assert.Equal(t, tt.want, views)
		})
	}
}

func TestInterfaceToString(t *testing.T) {
	cases := []struct {
		name  string
		value any
		empty string
		want  string
	}{
		{name: "string", value: "hello", want: "hello"},
		{name: "int", value: 42, want: "42"},
		{name: "float rounds down", value: 42.5, want: "42"},
		{name: "float rounds up", value: 42.7, want: "43"},
		{name: "true", value: true, want: "true"},
		{name: "false is a zero value", value: false, want: ""},
		{name: "nil", value: nil, want: ""},
		{name: "nil with placeholder", value: nil, empty: "-", want: "-"},
		{name: "slice renders as json", value: []string{"a", "b"}, want: `["a","b"]`},
		{name: "map renders as json", value: map[string]int{"x": 1}, want: `{"x":1}`},
		{name: "zero int", value: 0, want: ""},
		{name: "zero int with placeholder", value: 0, empty: "N/A", want: "N/A"},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			got := InterfaceToString(tt.value)
			if tt.empty != "" {
				got = InterfaceToString(tt.value, tt.empty)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewTag(t *testing.T) {
	cases := []struct {
		name   string
		holder string
		spec   string
		want   Tag
	}{
		{"attr", "", "attr,name", Tag{Kind: "attr", Name: "name"}},
		{"attr under holder", "entry", "attr,name", Tag{Kind: "attr", Name: "entry.name"}},
		{"attr with encoding", "", "attr,name,json", Tag{Kind: "attr", Name: "name", Encoding: "json"}},
		{"non-attr kind", "", "relation,name", Tag{}},
		{"empty spec", "", "", Tag{}},
		{"kind alone", "", "attr", Tag{Kind: "attr"}},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewTag(tt.holder, tt.spec))
		})
	}
}

func TestTagPrint(t *testing.T) {
	assert.Equal(t, "entry.name", Tag{Name: "entry.name"}.Print())
	assert.Equal(t, "", Tag{}.Print())
}

func TestDumpSchemaWalker(t *testing.T) {
	type tab struct {
		Label string `jsonapi:"attr,label"`
		Rank  int    `jsonapi:"attr,rank"`
	}

	type view struct {
		Title string `jsonapi:"attr,title"`
		Main  tab    `jsonapi:"attr,main"`
		Side  *tab   `jsonapi:"attr,side_tab"`
	}

	names := func(tags []Tag) []string {
		out := make([]string, len(tags))
		for i, tag := range tags {
			out[i] = tag.Name
		}
		return out
	}

	t.Run("flat struct", func(t *testing.T) {
		tags := DumpSchemaWalker("", reflect.TypeOf(tab{}), 0)
		assert.Equal(t, []string{"label", "rank"}, names(tags))
	})

	t.Run("nested structs walk one level", func(t *testing.T) {
		tags := DumpSchemaWalker("parent", reflect.TypeOf(view{}), 0)
		assert.Equal(t, []string{
			"parent.title",
			"parent.main",
			"parent.main.label",
			"parent.main.rank",
			"parent.side_tab",
			"parent.side_tab.label",
			"parent.side_tab.rank",
		}, names(tags))
	})
}

func TestFlattenViews(t *testing.T) {
	payload := `{"views": [
		{"name": "status", "title": "Status", "tabs": [
			{"id": "overview", "label": "Overview"},
			{"label": "Details"}
		]},
		{"name": "settings", "title": "Settings"}
	]}`

	runSpit := func(t *testing.T, args ...string) []byte {
		t.Helper()

		al := attrs.AttrList{
			{Key: "path", OutputKey: "path", Include: true},
			{Key: "title", OutputKey: "title", Include: true},
			{Key: "label", OutputKey: "label", Include: true},
		}

		var buf bytes.Buffer
		cmd := &cli.Command{
			Name: "test",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "output"},
				&cli.StringFlag{Name: "filter"},
				&cli.StringFlag{Name: "sort"},
				&cli.BoolFlag{Name: "local"},
				&cli.BoolFlag{Name: "titles"},
				&cli.BoolFlag{Name: "color"},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				SliceDiceSpit(*bytes.NewBufferString(payload), al, cmd, "", &buf)
				return nil
			},
		}
		require.NoError(t, cmd.Run(context.Background(), append([]string{"test"}, args...)))
		return buf.Bytes()
	}

	t.Run("json output", func(t *testing.T) {
		got := runSpit(t, "--output", "json", "--sort", "path")
		assert.JSONEq(t, `[
			{"path": "settings", "title": "Settings", "label": null},
			{"path": "status.overview", "title": "Status", "label": "Overview"},
			{"path": "status[1]", "title": "Status", "label": "Details"}
		]`, string(got))
	})

	t.Run("filtered", func(t *testing.T) {
		got := runSpit(t, "--output", "json", "--filter", "label=Overview")
		assert.JSONEq(t, `[{"path": "status.overview", "title": "Status", "label": "Overview"}]`, string(got))
	})

	t.Run("raw passthrough", func(t *testing.T) {
		got := runSpit(t, "--output", "raw")
		assert.JSONEq(t, payload, string(got))
	})

	t.Run("table", func(t *testing.T) {
		got := runSpit(t, "--titles", "--sort", "path")
		assert.Contains(t, string(got), "status.overview")
		assert.Contains(t, string(got), "Overview")
		assert.Contains(t, string(got), "path")
	})
}

func TestDiffJSON(t *testing.T) {
	before := []byte(`{"views": [{"name": "status", "count": 3}], "updated": "2024-01-01"}`)
	same := []byte(`{"views": [{"name": "status", "count": 3}], "updated": "2024-01-01"}`)
	after := []byte(`{"views": [{"name": "status", "count": 5}], "updated": "2024-02-01"}`)

	t.Run("identical", func(t *testing.T) {
		out, changed, err := DiffJSON(before, same, false)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Empty(t, out)
	})

	t.Run("changed", func(t *testing.T) {
		out, changed, err := DiffJSON(before, after, false)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Contains(t, out, "count")
		assert.Contains(t, out, "updated")
	})

	t.Run("malformed", func(t *testing.T) {
		_, _, err := DiffJSON([]byte(`{`), after, false)
		require.Error(t, err)
	})
}

func TestGetColors(t *testing.T) {
	// Point the loader at a missing file so the built-in palette applies.
	t.Setenv("PREHEAT_CFG", filepath.Join(t.TempDir(), "missing.yaml"))
	config.Config = config.Type{}
	t.Cleanup(func() { config.Config = config.Type{} })

	header, even, odd := getColors()
	assert.Equal(t, "#ffb86c", header)
	assert.Equal(t, "#f8f8f2", even)
	assert.Equal(t, "#8be9fd", odd)
}

func BenchmarkSortDataset(b *testing.B) {
	src := []map[string]interface{}{
		{"view": "search", "hits": 2.0},
		{"view": "browse", "hits": 9.0},
		{"view": "cart", "hits": 4.0},
	}

	for b.Loop() {
		data := make([]map[string]interface{}, len(src))
		copy(data, src)
		SortDataset(data, "view")
	}
}

func BenchmarkInterfaceToString(b *testing.B) {
	values := []any{"string", 42, 42.5, true, nil, []string{"a", "b"}}

	for b.Loop() {
		for _, v := range values {
			InterfaceToString(v)
		}
	}
}
