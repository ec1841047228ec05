// Copyright 2016 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	type NestedNested struct {
		Ccc int
		Ddd string
	}
	type Nested struct {
		Aaa  int
		Bbb  string
		More NestedNested
	}
	type Config struct {
		Foo int
		Bar string
		Baz string `json:"-"`
		Raw json.RawMessage
		Qux []string
		Box Nested
		Boq *Nested
		Arr []Nested
		T   time.Time
	}

	tests := []struct {
		input  string
		output Config
		err    string
	}{
		{
			`{"foo": 42}`,
			Config{
				Foo: 42,
			},
			"",
		},
		{
			`{"BAR": "Baz", "foo": 42}`,
			Config{
				Foo: 42,
				Bar: "Baz",
			},
			"",
		},
		{
			`{"foobar": 42}`,
			Config{},
			"unknown field 'foobar' in config",
		},
		{
			`{"foo": 1, "baz": "baz", "bar": "bar"}`,
			Config{},
			"unknown field 'baz' in config",
		},
		{
			`{"foo": 1, "box": {"aaa": 12, "bbb": "bbb"}}`,
			Config{
				Foo: 1,
				Box: Nested{
					Aaa: 12,
					Bbb: "bbb",
				},
			},
			"",
		},
		{
			`{"qux": ["aaa", "bbb"]}`,
			Config{
				Qux: []string{"aaa", "bbb"},
			},
			"",
		},
		{
			`{"box": {"aaa": 12, "ccc": "bbb"}}`,
			Config{},
			"unknown field 'box.ccc' in config",
		},
		{
			`{"foo": 1, "boq": {"aaa": 12, "bbb": "bbb"}}`,
			Config{
				Foo: 1,
				Boq: &Nested{
					Aaa: 12,
					Bbb: "bbb",
				},
			},
			"",
		},
		{
			`{"boq": {"aaa": 12, "ccc": "bbb"}}`,
			Config{},
			"unknown field 'boq.ccc' in config",
		},

		{
			`{"foo": 1, "arr": []}`,
			Config{
				Foo: 1,
				Arr: []Nested{},
			},
			"",
		},
		{
			`{"foo": 1, "arr": [{"aaa": 12, "bbb": "bbb"}, {"aaa": 13, "bbb": "ccc"}]}`,
			Config{
				Foo: 1,
				Arr: []Nested{
					{
						Aaa: 12,
						Bbb: "bbb",
					},
					{
						Aaa: 13,
						Bbb: "ccc",
					},
				},
			},
			"",
		},
		{
			`{"arr": [{"aaa": 12, "ccc": "bbb"}]}`,
			Config{},
			"unknown field 'arr[0].ccc' in config",
		},
		{
			`{"foo": 1, "boq": {"aaa": 12, "more": {"ccc": 13, "ddd": "ddd"}}}`,
			Config{
				Foo: 1,
				Boq: &Nested{
					Aaa: 12,
					More: NestedNested{
						Ccc: 13,
						Ddd: "ddd",
					},
				},
			},
			"",
		},
		{
			`{"foo": 1, "boq": {"aaa": 12, "more": {"ccc": 13, "eee": "eee"}}}`,
			Config{},
			"unknown field 'boq.more.eee' in config",
		},
		{
			`{"raw": {"zux": 11}}`,
			Config{
				Raw: []byte(`{"zux": 11}`),
			},
			"",
		},
		{
			`{"foo": null, "qux": null}`,
			Config{},
			"",
		},
		{
			`{"t": "2000-01-02T03:04:05Z"}`,
			Config{
				T: time.Date(2000, 1, 2, 3, 4, 5, 0, time.UTC),
			},
			"",
		},
	}
	for i, test := range tests {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			var cfg Config
			err := LoadData([]byte(test.input), &cfg)
			errStr := ""
			if err != nil {
				errStr = err.Error()
			}
			if test.err != errStr {
				t.Fatalf("bad err: want '%v', got '%v'", test.err, errStr)
			}
			if !reflect.DeepEqual(test.output, cfg) {
				t.Fatalf("bad output: want:\n%#v\n, got:\n%#v", test.output, cfg)
			}
		})
	}
}

func TestLoadBadType(t *testing.T) {
	want := "config type is not pointer to struct"
	if err := LoadData([]byte("{}"), 1); err == nil || err.Error() != want {
		t.Fatalf("got '%v', want '%v'", err, want)
	}
	i := 0
	if err := LoadData([]byte("{}"), &i); err == nil || err.Error() != want {
		t.Fatalf("got '%v', want '%v'", err, want)
	}
	s := struct{}{}
	if err := LoadData([]byte("{}"), s); err == nil || err.Error() != want {
		t.Fatalf("got '%v', want '%v'", err, want)
	}
}

func TestLoadComments(t *testing.T) {
	type Config struct {
		Foo int
		Bar string
	}
	data := `
# comment
{
	# another comment
	"foo": 1, // trailing comment
	/* block
	   comment */
	"bar": "# not a comment",
}`
	var cfg Config
	if err := LoadData([]byte(data), &cfg); err != nil {
		t.Fatal(err)
	}
	if want := (Config{Foo: 1, Bar: "# not a comment"}); cfg != want {
		t.Fatalf("got %+v, want %+v", cfg, want)
	}
}

func TestFileRoundTrip(t *testing.T) {
	type Nested struct {
		MaxDepth int `json:"max_depth"`
	}
	type Config struct {
		Name    string   `json:"name"`
		Procs   int      `json:"procs"`
		Inputs  []string `json:"inputs"`
		Mutator Nested   `json:"mutator"`
	}
	cfg := Config{
		Name:    "test",
		Procs:   4,
		Inputs:  []string{"a", "b"},
		Mutator: Nested{MaxDepth: 10},
	}
	dir := t.TempDir()
	for _, file := range []string{"cfg.json", "cfg.yaml", "cfg.yml"} {
		t.Run(file, func(t *testing.T) {
			file = filepath.Join(dir, file)
			require.NoError(t, SaveFile(file, cfg))
			var loaded Config
			require.NoError(t, LoadFile(file, &loaded))
			assert.Equal(t, cfg, loaded)
		})
	}
}

func TestLoadYAML(t *testing.T) {
	type Nested struct {
		MaxDepth int `json:"max_depth"`
	}
	type Config struct {
		Name    string `json:"name"`
		Mutator Nested `json:"mutator"`
	}
	file := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(file, []byte("name: foo\nmutator:\n  max_depth: 3\n"), 0644))
	var cfg Config
	require.NoError(t, LoadFile(file, &cfg))
	assert.Equal(t, Config{Name: "foo", Mutator: Nested{MaxDepth: 3}}, cfg)

	require.NoError(t, os.WriteFile(file, []byte("name: foo\nmutator:\n  max_dept: 3\n"), 0644))
	assert.EqualError(t, LoadFile(file, &cfg), "unknown field 'mutator.max_dept' in config")
	assert.Error(t, LoadFile("", &cfg))
}
