// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package output

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"

	"github.com/staranto/swcache/internal/attrs"
)

const entries = `[
  {"cache":"tqqq-tracker-v1","method":"GET","url":"https://x/","status":200,"size":1200,"header":{"Content-Type":["text/html"]}},
  {"cache":"tqqq-tracker-v1","method":"GET","url":"https://x/style.css","status":200,"size":300,"header":{"Content-Type":["text/css"]}},
  {"cache":"tqqq-tracker-v1","method":"GET","url":"https://x/logo.svg","status":200,"size":4500,"header":{"Content-Type":["image/svg+xml"]}},
  {"cache":"tqqq-tracker-v0","method":"GET","url":"https://x/old.css","status":200,"size":10}
]`

func testAttrs(t *testing.T, spec string) attrs.AttrList {
	t.Helper()
	var al attrs.AttrList
	require.NoError(t, al.Set(spec))
	al.SetGlobalTransformSpec()
	return al
}

func TestSortDataset(t *testing.T) {
	testData := []map[string]any{
		{"name": "zebra", "count": 3.0},
		{"name": "Alpha", "count": 1.0},
		{"name": "beta", "count": 2.0},
	}

	tests := []struct {
		name      string
		spec      string
		wantOrder []string
	}{
		{"ascending by name", "name", []string{"Alpha", "beta", "zebra"}},
		{"descending by name", "-name", []string{"zebra", "beta", "Alpha"}},
		{"ascending by count", "count", []string{"Alpha", "beta", "zebra"}},
		{"descending by count", "-count", []string{"zebra", "beta", "Alpha"}},
		{"case sensitive", "!name", []string{"Alpha", "beta", "zebra"}},
		{"case sensitive descending", "-!name", []string{"zebra", "beta", "Alpha"}},
		{"missing key keeps order", "nope", []string{"zebra", "Alpha", "beta"}},
		{"empty spec", "", []string{"zebra", "Alpha", "beta"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := make([]map[string]any, len(testData))
			copy(data, testData)
			SortDataset(data, tt.spec)
			for i, want := range tt.wantOrder {
				assert.Equal(t, want, data[i]["name"], "at index %d", i)
			}
		})
	}
}

func TestSortDataset_MultipleKeys(t *testing.T) {
	data := []map[string]any{
		{"cache": "b", "url": "2"},
		{"cache": "a", "url": "9"},
		{"cache": "b", "url": "1"},
		{"cache": "a", "url": "3"},
	}
	SortDataset(data, "cache,-url")
	var got []string
	for _, r := range data {
		got = append(got, r["cache"].(string)+r["url"].(string))
	}
	assert.Equal(t, []string{"a9", "a3", "b2", "b1"}, got)
}

func TestInterfaceToString(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		emptyVal string
		want     string
	}{
		{name: "string", value: "hello", want: "hello"},
		{name: "int", value: 42, want: "42"},
		{name: "float64", value: 200.0, want: "200"},
		{name: "float64 fraction", value: 71.5, want: "71.5"},
		{name: "bool true", value: true, want: "true"},
		{name: "bool false is zero value", value: false, want: ""},
		{name: "nil default", value: nil, want: ""},
		{name: "nil custom", value: nil, emptyVal: "-", want: "-"},
		{name: "slice", value: []string{"text/css"}, want: `["text/css"]`},
		{name: "map", value: map[string]int{"x": 1}, want: `{"x":1}`},
		{name: "zero with custom empty", value: 0, emptyVal: "N/A", want: "N/A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			if tt.emptyVal != "" {
				got = InterfaceToString(tt.value, tt.emptyVal)
			} else {
				got = InterfaceToString(tt.value)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildFilters(t *testing.T) {
	tests := []struct {
		name string
		spec string
		want []Filter
	}{
		{name: "empty", spec: "", want: nil},
		{
			name: "equals",
			spec: "status=200",
			want: []Filter{{Key: "status", Operand: "=", Target: "200"}},
		},
		{
			name: "negated prefix and regex",
			spec: "url!^https://x/s,type/css$",
			want: []Filter{
				{Key: "url", Negate: true, Operand: "^", Target: "https://x/s"},
				{Key: "type", Operand: "/", Target: "css$"},
			},
		},
		{
			name: "invalid dropped",
			spec: "nooperand,=novalue,size>100",
			want: []Filter{{Key: "size", Operand: ">", Target: "100"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildFilters(tt.spec))
		})
	}
}

func TestBuildFilters_Delimiter(t *testing.T) {
	t.Setenv("SWCACHE_FILTER_DELIM", ";")
	got := BuildFilters("url@a,b;status=200")
	assert.Equal(t, []Filter{
		{Key: "url", Operand: "@", Target: "a,b"},
		{Key: "status", Operand: "=", Target: "200"},
	}, got)
}

func TestFilter_Match(t *testing.T) {
	tests := []struct {
		name   string
		filter string
		value  any
		want   bool
	}{
		{"string equal", "k=GET", "GET", true},
		{"string not equal", "k!=GET", "GET", false},
		{"fold", "k~get", "GET", true},
		{"prefix", "k^https://x/", "https://x/a", true},
		{"contains", "k@style", "https://x/style.css", true},
		{"not contains", "k!@style", "https://x/style.css", false},
		{"regex", `k/\.css$`, "https://x/style.css", true},
		{"bad regex", "k/[", "x", false},
		{"number equal", "k=200", 200.0, true},
		{"number greater", "k>1000", 1200.0, true},
		{"number not less", "k!<1000", 1200.0, true},
		{"number prefix as text", "k^2", 204.0, true},
		{"bool", "k=true", true, true},
		{"nil never matches", "k=x", nil, false},
		{"slice contains", "k@text/css", []any{"text/css"}, true},
		{"slice negated contains", "k!@text/css", []any{"text/html"}, true},
		{"map has key", "k@Content-Type", map[string]any{"Content-Type": []any{"x"}}, true},
		{"slice without contains operand", "k=x", []any{"x"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := BuildFilters(tt.filter)
			require.Len(t, fs, 1)
			assert.Equal(t, tt.want, fs[0].Match(tt.value))
		})
	}
}

func TestSliceDiceSpit_JSON(t *testing.T) {
	al := testAttrs(t, "cache,url,size,!status")
	var buf bytes.Buffer
	err := SliceDiceSpit([]byte(entries), al, Options{
		Format: "json",
		Filter: "cache=tqqq-tracker-v1,status=200",
		Sort:   "-size",
	}, &buf)
	require.NoError(t, err)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, "https://x/logo.svg", rows[0]["url"])
	assert.Equal(t, "https://x/", rows[1]["url"])
	assert.Equal(t, "https://x/style.css", rows[2]["url"])
}

func TestSliceDiceSpit_EmptyJSON(t *testing.T) {
	al := testAttrs(t, "url")
	var buf bytes.Buffer
	require.NoError(t, SliceDiceSpit([]byte(`[]`), al, Options{Format: "json"}, &buf))
	assert.Equal(t, "[]\n", buf.String())
}

func TestSliceDiceSpit_YAMLWithTransform(t *testing.T) {
	al := testAttrs(t, "url::u,size::h")
	var buf bytes.Buffer
	err := SliceDiceSpit([]byte(entries), al, Options{Format: "yaml", Filter: "url@logo"}, &buf)
	require.NoError(t, err)

	var rows []map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "HTTPS://X/LOGO.SVG", rows[0]["url"])
	assert.Equal(t, "4.5 kB", rows[0]["size"])
}

func TestSliceDiceSpit_Raw(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SliceDiceSpit([]byte(entries), nil, Options{Format: "raw", Filter: "cache=nope"}, &buf))
	assert.Equal(t, entries, buf.String())
}

func TestSliceDiceSpit_Text(t *testing.T) {
	al := testAttrs(t, "cache,url,header.Content-Type.0:type")
	var buf bytes.Buffer
	err := SliceDiceSpit([]byte(entries), al, Options{Format: "text", Sort: "url", Titles: true}, &buf)
	require.NoError(t, err)

	out := buf.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], "cache")
	assert.Contains(t, lines[0], "type")
	assert.Contains(t, lines[1], "https://x/")
	assert.Contains(t, lines[1], "text/html")
	assert.Contains(t, lines[2], "https://x/logo.svg")
	// old.css has no header
	assert.Contains(t, lines[3], "https://x/old.css")
	assert.Contains(t, lines[3], "-")
}

func TestTableWriter_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, TableWriter(nil, testAttrs(t, "url"), Options{}, &buf))
	assert.Empty(t, buf.String())
}

func TestGetColors(t *testing.T) {
	header, even, odd := getColors("colors")
	assert.NotEmpty(t, header)
	assert.NotEmpty(t, even)
	assert.NotEmpty(t, odd)
}

func TestDumpSchema(t *testing.T) {
	type inner struct {
		ContentType string `json:"content_type"`
	}
	type row struct {
		URL      string    `json:"url"`
		Status   int       `json:"status,omitempty"`
		Inner    inner     `json:"inner"`
		StoredAt time.Time `json:"stored_at"`
		Skip     string    `json:"-"`
		NoTag    string
	}

	tags := DumpSchemaWalker("", reflect.TypeOf(row{}))
	var names []string
	for _, tag := range tags {
		names = append(names, tag.Name)
	}
	assert.Equal(t, []string{"url", "status", "inner.content_type", "stored_at"}, names)

	var buf bytes.Buffer
	DumpSchema(&buf, reflect.TypeOf(row{}))
	assert.Equal(t, "Schema for row --\ninner.content_type (string)\nstatus (int)\nstored_at (struct)\nurl (string)\n", buf.String())
}

func TestTag_Print(t *testing.T) {
	assert.Equal(t, "url (string)", Tag{Name: "url", Kind: "string"}.Print())
	assert.Equal(t, "url", Tag{Name: "url"}.Print())
}

func BenchmarkSortDataset(b *testing.B) {
	testData := []map[string]any{
		{"name": "zebra", "count": 3.0},
		{"name": "alpha", "count": 1.0},
		{"name": "beta", "count": 2.0},
	}
	for i := 0; i < b.N; i++ {
		data := make([]map[string]any, len(testData))
		copy(data, testData)
		SortDataset(data, "name")
	}
}
