package grammar

import (
	"fmt"
	"math/rand"
	"reflect"
	"strings"
	"testing"
	"testing/quick"
)

func patternSpec(name, prefix, pattern string, precedence int) FieldSpec {
	s := NewFieldSpec(name, KindPattern)
	s.Prefix = prefix
	s.Pattern = pattern
	s.Precedence = precedence
	s.Optional = true
	return s
}

func captureNames(g *Grammar) []string {
	names := make([]string, len(g.Captures))
	for i, c := range g.Captures {
		names[i] = c.Name
	}
	return names
}

func TestCompileOrdersByPrecedenceStable(t *testing.T) {
	title := patternSpec("title", "title:", `\S.*`, 1000)
	title.GreedyFallback = true
	specs := []FieldSpec{
		title,
		patternSpec("genre", "genre:", `\S+`, 50),
		patternSpec("comment", "comment:", `\S+`, 50),
		patternSpec("link_1", "link:", `https?://\S+`, 10),
	}

	g, err := Compile(specs, nil)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	want := []string{"link_1", "genre", "comment", "title", "title_greedy"}
	if got := captureNames(g); !reflect.DeepEqual(got, want) {
		t.Errorf("capture order = %v, want %v", got, want)
	}
	if got := g.Keys(); !reflect.DeepEqual(got, []string{"title", "genre", "comment", "link_1"}) {
		t.Errorf("Keys() = %v", got)
	}
}

func TestCompileAppendsGreedyAfterPrimaries(t *testing.T) {
	title := patternSpec("title", "title:", `\S.*`, 1000)
	title.GreedyFallback = true
	link1 := patternSpec("link_1", "link:", `https?://\S+`, 5)
	link1.GreedyFallback = true
	link2 := patternSpec("link_2", "link2:", `https?://\S+`, 6)
	link2.GreedyFallback = true
	specs := []FieldSpec{title, patternSpec("comment", "comment:", `\S+`, 30), link1, link2}

	g, err := Compile(specs, nil)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	want := []string{"link_1", "link_2", "comment", "title", "link_1_greedy", "link_2_greedy", "title_greedy"}
	if got := captureNames(g); !reflect.DeepEqual(got, want) {
		t.Errorf("capture order = %v, want %v", got, want)
	}
}

func TestCompileBoolRequiresAllowedValues(t *testing.T) {
	spec := NewFieldSpec("relisten", KindBool)
	spec.Prefix = "relisten:"

	_, err := Compile([]FieldSpec{spec}, nil)
	if err == nil || !strings.Contains(err.Error(), "allowedValues") {
		t.Fatalf("expected allowedValues error, got %v", err)
	}

	spec.AllowedValues = []string{"yes", "no"}
	if _, err := Compile([]FieldSpec{spec}, nil); err != nil {
		t.Fatalf("unexpected error with allowedValues: %v", err)
	}
}

func TestCompileDuplicateCaptureName(t *testing.T) {
	a := patternSpec("Genre", "genre:", `\S+`, 1)
	b := patternSpec("genre", "g:", `\S+`, 2)
	if _, err := Compile([]FieldSpec{a, b}, nil); err == nil {
		t.Fatal("expected duplicate capture name error")
	}
}

func TestCompileUndefinedVariable(t *testing.T) {
	spec := patternSpec("added_at", "addedat:", "VAR(NOPE)", 1)
	_, err := Compile([]FieldSpec{spec}, Variables{"DATE": `\d+`})
	if err == nil || !strings.Contains(err.Error(), "NOPE") {
		t.Fatalf("expected undefined variable error, got %v", err)
	}
}

func TestSubstitute(t *testing.T) {
	got, err := Substitute(`(VAR(DATE)|VAR(DATE))-VAR(X)`, Variables{"DATE": `\d+`, "X": "x"})
	if err != nil {
		t.Fatal(err)
	}
	if got != `(\d+|\d+)-x` {
		t.Errorf("Substitute() = %q", got)
	}
}

func TestCompileStripsQuotesFromPattern(t *testing.T) {
	g, err := Compile([]FieldSpec{patternSpec("genre", "genre:", `"\w+"`, 1)}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(g.Captures[0].Source, `"`) {
		t.Errorf("quotes not stripped: %s", g.Captures[0].Source)
	}
}

func TestCaptureMatchSkipsEmptyMatches(t *testing.T) {
	spec := patternSpec("lc", "lc:", "", 1)
	spec.Kind = KindInt
	g, err := Compile([]FieldSpec{spec}, nil)
	if err != nil {
		t.Fatal(err)
	}
	value, start, end, ok := g.Captures[0].Match("some words lc:42 more")
	if !ok || value != "42" {
		t.Fatalf("Match() = %q, %v", value, ok)
	}
	if got := "some words lc:42 more"[start:end]; got != " lc:42" {
		t.Errorf("matched span = %q", got)
	}
}

func TestSanitizeKey(t *testing.T) {
	tests := map[string]string{
		"from":         "from__",
		"FROM":         "from__",
		"Added At":     "added_at",
		"link_1":       "link_1",
		"1st":          "_1st",
		"from__":       "from__",
		"track-search": "track_search",
	}
	for in, want := range tests {
		if got := SanitizeKey(in); got != want {
			t.Errorf("SanitizeKey(%q) = %q, want %q", in, got, want)
		}
		if again := SanitizeKey(SanitizeKey(in)); again != SanitizeKey(in) {
			t.Errorf("SanitizeKey not idempotent for %q: %q", in, again)
		}
	}
}

func TestDatePattern(t *testing.T) {
	p, err := DatePattern([]string{"%m.%d", "%Y.%m.%d"})
	if err != nil {
		t.Fatal(err)
	}
	spec := patternSpec("added_at", "addedat:", "VAR(DATE)", 1)
	g, err := Compile([]FieldSpec{spec}, Variables{DateVariable: p})
	if err != nil {
		t.Fatal(err)
	}
	for line, want := range map[string]string{
		"addedat:05.03":      "05.03",
		"x addedat:2021.5.3": "2021.5.3",
	} {
		got, _, _, ok := g.Captures[0].Match(line)
		if !ok || got != want {
			t.Errorf("Match(%q) = %q, %v; want %q", line, got, ok, want)
		}
	}

	if _, err := DateFormatPattern("%Q"); err == nil {
		t.Error("expected unsupported directive error")
	}
}

// Capture names are pairwise distinct for any set of distinct field names.
func TestCompileCaptureNamesUnique(t *testing.T) {
	f := func(seed int64, n uint8) bool {
		r := rand.New(rand.NewSource(seed))
		count := int(n%12) + 1
		specs := make([]FieldSpec, 0, count)
		for i := 0; i < count; i++ {
			s := patternSpec(fmt.Sprintf("field_%d", i), fmt.Sprintf("f%d:", i), `\S+`, r.Intn(5))
			s.GreedyFallback = r.Intn(2) == 0
			specs = append(specs, s)
		}
		g, err := Compile(specs, nil)
		if err != nil {
			return false
		}
		seen := map[string]bool{}
		for _, c := range g.Captures {
			if seen[c.Name] {
				return false
			}
			seen[c.Name] = true
		}
		return true
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}
