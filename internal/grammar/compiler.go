package grammar

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// GreedySuffix marks the prefix-less fallback capture of a field.
const GreedySuffix = "_greedy"

var varRef = regexp.MustCompile(`VAR\(([A-Za-z0-9_]+)\)`)

// Variables maps names referenced as VAR(name) to regex fragments.
type Variables map[string]string

// Capture is one compiled named-capture pattern.
type Capture struct {
	Name   string
	Key    string
	Greedy bool
	Source string
	re     *regexp.Regexp
}

// Grammar is the ordered list of captures applied to every line.
type Grammar struct {
	Captures []Capture
	specs    []FieldSpec
}

// Specs returns the field specs in the order they were given.
func (g *Grammar) Specs() []FieldSpec {
	out := make([]FieldSpec, len(g.specs))
	copy(out, g.specs)
	return out
}

// Keys returns the field keys in declaration order.
func (g *Grammar) Keys() []string {
	keys := make([]string, len(g.specs))
	for i, s := range g.specs {
		keys[i] = s.Key
	}
	return keys
}

// Compile builds a Grammar from specs. Primary captures come first,
// ordered by ascending precedence with ties keeping declaration order.
// Greedy fallback captures follow all primaries in the same order.
func Compile(specs []FieldSpec, vars Variables) (*Grammar, error) {
	ordered := make([]FieldSpec, len(specs))
	copy(ordered, specs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Precedence < ordered[j].Precedence
	})

	g := &Grammar{specs: append([]FieldSpec(nil), specs...)}
	names := make(map[string]string, len(specs)*2)

	add := func(spec FieldSpec, name, source string, greedy bool) error {
		if owner, ok := names[name]; ok {
			return fmt.Errorf("duplicate capture name %q (fields %q and %q)", name, owner, spec.Name)
		}
		re, err := regexp.Compile(source)
		if err != nil {
			return fmt.Errorf("field %q: invalid pattern: %w", spec.Name, err)
		}
		names[name] = spec.Name
		g.Captures = append(g.Captures, Capture{Name: name, Key: spec.Key, Greedy: greedy, Source: source, re: re})
		return nil
	}

	bodies := make([]string, len(ordered))
	for i, spec := range ordered {
		if err := spec.Validate(); err != nil {
			return nil, err
		}
		body, err := bodyFor(spec, vars)
		if err != nil {
			return nil, err
		}
		bodies[i] = body
		if err := add(spec, spec.Key, buildPattern(spec.Key, spec.Prefix, body, spec.Optional), false); err != nil {
			return nil, err
		}
	}
	for i, spec := range ordered {
		if !spec.GreedyFallback {
			continue
		}
		name := spec.Key + GreedySuffix
		if err := add(spec, name, buildPattern(name, "", bodies[i], spec.Optional), true); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func bodyFor(spec FieldSpec, vars Variables) (string, error) {
	switch spec.Kind {
	case KindInt:
		return `\d+`, nil
	case KindBool:
		alts := make([]string, len(spec.AllowedValues))
		for i, v := range spec.AllowedValues {
			alts[i] = regexp.QuoteMeta(strings.TrimSpace(v))
		}
		return "(?:" + strings.Join(alts, "|") + `)\b`, nil
	default:
		return Substitute(stripQuotes(spec.Pattern), vars)
	}
}

// buildPattern returns {prefix}(?P<name>{body}). The prefix is kept out of
// the group so captured values never contain it and must start a token.
func buildPattern(name, prefix, body string, optional bool) string {
	var p string
	if prefix != "" {
		p = `(?:^|\s)` + regexp.QuoteMeta(prefix) + "(?P<" + name + ">" + body + ")"
	} else {
		p = "(?P<" + name + ">" + body + ")"
	}
	if optional {
		p = "(?:" + p + ")*"
	}
	return p
}

// Substitute replaces every VAR(x) in pattern with vars[x].
func Substitute(pattern string, vars Variables) (string, error) {
	var missing []string
	out := varRef.ReplaceAllStringFunc(pattern, func(m string) string {
		name := varRef.FindStringSubmatch(m)[1]
		v, ok := vars[name]
		if !ok {
			missing = append(missing, name)
			return m
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("undefined grammar variable(s): %s", strings.Join(missing, ", "))
	}
	return out, nil
}

func stripQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

// Match finds the first non-empty match of c in text and returns the
// captured value with the byte span of the whole match.
func (c Capture) Match(text string) (value string, start, end int, ok bool) {
	group := c.re.SubexpIndex(c.Name)
	for _, loc := range c.re.FindAllStringSubmatchIndex(text, -1) {
		if loc[0] == loc[1] || loc[2*group] < 0 {
			continue
		}
		return text[loc[2*group]:loc[2*group+1]], loc[0], loc[1], true
	}
	return "", 0, 0, false
}
