// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package attrs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttrListSet(t *testing.T) {
	type tc struct {
		Desc        string `yaml:"desc"`
		Seed        []Attr `yaml:"seed"`
		Spec        string `yaml:"spec"`
		ExpectLen   int    `yaml:"expectLen"`
		ExpectAttrs []Attr `yaml:"expectAttrs"`
	}

	for _, tt := range loadCases[tc](t, "set_cases.yaml") {
		t.Run(tt.Desc, func(t *testing.T) {
			got := AttrList(tt.Seed)
			require.NoError(t, got.Set(tt.Spec))
			require.Len(t, got, tt.ExpectLen)
			if tt.ExpectAttrs != nil {
				assert.Equal(t, AttrList(tt.ExpectAttrs), got)
			}
		})
	}
}

func TestSetGlobalTransformSpec(t *testing.T) {
	type tc struct {
		Desc        string   `yaml:"desc"`
		Seed        []Attr   `yaml:"seed"`
		ExpectSpecs []string `yaml:"expectSpecs"`
	}

	for _, tt := range loadCases[tc](t, "global_transform_cases.yaml") {
		t.Run(tt.Desc, func(t *testing.T) {
			got := AttrList(tt.Seed)
			require.NoError(t, got.SetGlobalTransformSpec())
			require.Len(t, got, len(tt.ExpectSpecs))
			for i, want := range tt.ExpectSpecs {
				assert.Equal(t, want, got[i].TransformSpec, "attr %d", i)
			}
		})
	}
}

func TestAttrTransform(t *testing.T) {
	type tc struct {
		Desc   string            `yaml:"desc"`
		Spec   string            `yaml:"spec"`
		In     interface{}       `yaml:"in"`
		Env    map[string]string `yaml:"env"`
		Expect interface{}       `yaml:"expect"`
	}

	for _, tt := range loadCases[tc](t, "transform_cases.yaml") {
		t.Run(tt.Desc, func(t *testing.T) {
			for k, v := range tt.Env {
				t.Setenv(k, v)
			}

			a := Attr{TransformSpec: tt.Spec}
			assert.Equal(t, tt.Expect, a.Transform(tt.In))
		})
	}
}

// Timestamps only localize when a timezone is available. An unset TZ leaves
// the value untouched.
func TestTransformTimezoneFromEnv(t *testing.T) {
	const stamp = "2024-01-15T10:00:00Z"

	t.Run("TZ set", func(t *testing.T) {
		t.Setenv("TZ", "America/Los_Angeles")
		a := Attr{TransformSpec: "t"}
		assert.Equal(t, "2024-01-15T02:00:00PST", a.Transform(stamp))
	})

	t.Run("TZ empty passes through", func(t *testing.T) {
		t.Setenv("TZ", "")
		a := Attr{TransformSpec: "t"}
		assert.Equal(t, stamp, a.Transform(stamp))
	})
}

func TestAttrListString(t *testing.T) {
	type tc struct {
		Desc   string `yaml:"desc"`
		List   []Attr `yaml:"list"`
		Expect string `yaml:"expect"`
	}

	for _, tt := range loadCases[tc](t, "string_cases.yaml") {
		t.Run(tt.Desc, func(t *testing.T) {
			list := AttrList(tt.List)
			assert.Equal(t, tt.Expect, list.String())
		})
	}
}

func TestAttrListType(t *testing.T) {
	var a AttrList
	assert.Equal(t, "list", a.Type())
}
