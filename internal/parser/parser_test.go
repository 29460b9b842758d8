package parser

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"golang.org/x/text/encoding/charmap"

	"github.com/valpere/musicmanager/internal/config"
	"github.com/valpere/musicmanager/internal/grammar"
	"github.com/valpere/musicmanager/internal/utils"
)

func newDefaultParser(t *testing.T) *LineParser {
	t.Helper()
	g, err := config.DefaultParserConfig().Grammar()
	if err != nil {
		t.Fatalf("Grammar() error = %v", err)
	}
	return NewLineParser(g, utils.NewNopLogger())
}

func TestParseLineScenarios(t *testing.T) {
	p := newDefaultParser(t)

	tests := []struct {
		line string
		want map[string]string
	}{
		{"oneword", map[string]string{"title": "oneword"}},
		{"firstword https://google.com", map[string]string{"title": "firstword", "link_1": "https://google.com"}},
		{"title:test_title link:https://google.com", map[string]string{"title": "test_title", "link_1": "https://google.com"}},
		{
			"from:Someone addedat:05.03 https://soundcloud.com/x",
			map[string]string{"from__": "Someone", "added_at": "05.03", "link_1": "https://soundcloud.com/x"},
		},
		{
			`Artist - Some Mix https://a.com/1 https://b.com/2 genre:"deep house"`,
			map[string]string{"title": "Artist - Some Mix", "link_1": "https://a.com/1", "link_2": "https://b.com/2", "genre": "deep house"},
		},
		{
			"link:https://a.com/1 https://b.com/2",
			map[string]string{"link_1": "https://a.com/1", "link_2": "https://b.com/2"},
		},
		{
			"Some Mix link2:https://a.com/x https://b.com/y",
			map[string]string{"title": "Some Mix", "link_2": "https://a.com/x", "link_1": "https://b.com/y"},
		},
		{
			"Some Mix link3:https://a.com/3",
			map[string]string{"title": "Some Mix", "link_3": "https://a.com/3"},
		},
		{
			"Some Mix https://a.com/1 comment:https://ref.example/z",
			map[string]string{"title": "Some Mix", "link_1": "https://a.com/1", "comment": "https://ref.example/z"},
		},
		{
			"Some Mix genre:http://tags.example/techno https://a.com/1",
			map[string]string{"title": "Some Mix", "genre": "http://tags.example/techno", "link_1": "https://a.com/1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			rec := p.ParseLine(tt.line)
			if got := rec.Values(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseLine(%q) = %v, want %v", tt.line, got, tt.want)
			}
		})
	}
}

func TestParseLineReservedKeyLookup(t *testing.T) {
	rec := newDefaultParser(t).ParseLine("from:Someone addedat:05.03 https://soundcloud.com/x")
	if rec.Get("from") != "Someone" || rec.Get("from__") != "Someone" {
		t.Errorf("Get(from) = %q, Get(from__) = %q", rec.Get("from"), rec.Get("from__"))
	}
	if rec.Has("title") {
		t.Errorf("title should be absent, got %q", rec.Title())
	}
}

// Every optional field written as prefix:value parses back to value.
func TestParseLineRoundTrip(t *testing.T) {
	p := newDefaultParser(t)
	inputs := map[string]string{
		"title":             "MyTitle",
		"from__":            "Someone",
		"added_at":          "2021.05.03",
		"listened_at":       "05.04",
		"track_search":      "yes",
		"track_search_done": "no",
		"relisten":          "yes",
		"listen_count":      "3",
		"genre":             "techno",
		"comment":           "nice",
		"link_1":            "https://a.com/1",
		"link_2":            "https://b.com/2",
		"link_3":            "https://c.com/3",
	}

	var tokens []string
	for _, spec := range p.Grammar().Specs() {
		tokens = append(tokens, spec.Prefix+inputs[spec.Key])
	}
	line := strings.Join(tokens, " ")

	if got := p.ParseLine(line).Values(); !reflect.DeepEqual(got, inputs) {
		t.Errorf("round trip of %q:\n got  %v\n want %v", line, got, inputs)
	}
}

func TestParseLineIdempotent(t *testing.T) {
	p := newDefaultParser(t)
	line := "Some Title from:x lc:7 https://youtube.com/watch?v=1 relisten:no"
	a, b := p.ParseLine(line), p.ParseLine(line)
	if !a.Equal(b) {
		t.Errorf("parsing twice differs: %v vs %v", a.Values(), b.Values())
	}
}

func TestMergePrefixedOverridesGreedy(t *testing.T) {
	var buf bytes.Buffer
	p := &LineParser{logger: utils.NewLoggerWithWriter(&buf, "warn", "text")}

	got := p.merge([]match{
		{key: "title", value: "greedy value", greedy: true},
		{key: "title", value: "exact value"},
		{key: "genre", value: "a"},
		{key: "genre", value: "b", greedy: true},
	})
	want := map[string]string{"title": "exact value", "genre": "a"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("merge() = %v, want %v", got, want)
	}
	if !strings.Contains(buf.String(), "overrides greedy value") {
		t.Errorf("expected override warning, got %q", buf.String())
	}
}

func TestRecordLinks(t *testing.T) {
	rec := NewRecord([]string{"title", "link_1", "link_2", "link_3"}, map[string]string{
		"link_1": "https://a", "link_2": "https://a", "link_3": "https://b", "bogus": "x",
	})
	if got := rec.Links(); !reflect.DeepEqual(got, []string{"https://a", "https://b"}) {
		t.Errorf("Links() = %v", got)
	}
	if rec.Has("bogus") {
		t.Error("unknown keys must be dropped")
	}
	js, err := rec.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(js) != `{"link_1":"https://a","link_2":"https://a","link_3":"https://b"}` {
		t.Errorf("MarshalJSON() = %s", js)
	}
}

func TestParseSkipsBlankAndComments(t *testing.T) {
	p := newDefaultParser(t)
	input := "\ufefffirst\n\n# note\n  second https://x.com/a  \n"

	records, err := p.Parse(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Title() != "first" || records[0].LineNo != 1 {
		t.Errorf("unexpected first record %+v", records[0].Values())
	}
	if records[1].Title() != "second" || records[1].LineNo != 4 {
		t.Errorf("unexpected second record line %d values %v", records[1].LineNo, records[1].Values())
	}
}

func TestParseFileDecodesCharset(t *testing.T) {
	p := newDefaultParser(t)
	encoded, err := charmap.Windows1251.NewEncoder().String("Привет https://x.com/a")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "in.txt")
	if err := os.WriteFile(path, []byte(encoded), 0o644); err != nil {
		t.Fatal(err)
	}

	records, err := p.ParseFile(context.Background(), path, "windows-1251")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Title() != "Привет" {
		t.Fatalf("unexpected records %+v", records)
	}
}

func TestCollectInputFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.txt", "a.TXT", "skip.md", filepath.Join("sub", "c.txt")} {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	extra := filepath.Join(dir, "b.txt")

	files, err := CollectInputFiles([]string{extra}, dir)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join(dir, "a.TXT"), filepath.Join(dir, "b.txt"), filepath.Join(dir, "sub", "c.txt")}
	if !reflect.DeepEqual(files, want) {
		t.Errorf("CollectInputFiles() = %v, want %v", files, want)
	}
}

func TestSanitizedKeysMatchGrammar(t *testing.T) {
	p := newDefaultParser(t)
	for _, k := range p.Grammar().Keys() {
		if grammar.IsReserved(k) {
			t.Errorf("grammar key %q is reserved", k)
		}
	}
}
