package grammar

import (
	"fmt"
	"strings"
	"unicode"
)

// Kind is the value type of a field.
type Kind int

const (
	KindPattern Kind = iota
	KindBool
	KindInt
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	default:
		return "regex"
	}
}

// ParseKind maps a configuration parseType to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "regex", "":
		return KindPattern, nil
	case "bool":
		return KindBool, nil
	case "int":
		return KindInt, nil
	}
	return KindPattern, fmt.Errorf("unknown parse type %q", s)
}

// DefaultPrecedence is used when a field does not declare one.
const DefaultPrecedence = 100

// FieldSpec describes one extractable field of an input line.
type FieldSpec struct {
	// Key is the sanitized field key used as capture name and Record key.
	Key            string
	Name           string
	DisplayName    string
	Kind           Kind
	Optional       bool
	Precedence     int
	Prefix         string
	Pattern        string
	AllowedValues  []string
	GreedyFallback bool
}

// NewFieldSpec returns a spec for name with its key sanitized.
func NewFieldSpec(name string, kind Kind) FieldSpec {
	return FieldSpec{
		Key:        SanitizeKey(name),
		Name:       name,
		Kind:       kind,
		Precedence: DefaultPrecedence,
	}
}

var reservedKeys = map[string]struct{}{
	// SQL
	"from": {}, "select": {}, "where": {}, "order": {}, "group": {}, "table": {},
	"index": {}, "key": {}, "limit": {}, "join": {}, "insert": {}, "update": {},
	"delete": {}, "values": {}, "by": {}, "as": {}, "and": {}, "or": {}, "not": {},
	"null": {}, "in": {}, "is": {},
	// Go
	"break": {}, "case": {}, "chan": {}, "const": {}, "continue": {}, "default": {},
	"defer": {}, "else": {}, "fallthrough": {}, "for": {}, "func": {}, "go": {},
	"goto": {}, "if": {}, "import": {}, "interface": {}, "map": {}, "package": {},
	"range": {}, "return": {}, "struct": {}, "switch": {}, "type": {}, "var": {},
}

// IsReserved reports whether key collides with a reserved identifier.
func IsReserved(key string) bool {
	_, ok := reservedKeys[key]
	return ok
}

// SanitizeKey lower-cases name, replaces characters that are not valid in a
// capture name with '_' and suffixes reserved identifiers with "__".
// It is idempotent.
func SanitizeKey(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if r == '_' || r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	key := b.String()
	if key != "" && unicode.IsDigit(rune(key[0])) {
		key = "_" + key
	}
	if IsReserved(key) {
		key += "__"
	}
	return key
}

// Validate checks the invariants that do not depend on other specs.
func (s FieldSpec) Validate() error {
	if s.Key == "" {
		return fmt.Errorf("field %q: empty key", s.Name)
	}
	if strings.HasSuffix(s.Key, GreedySuffix) {
		return fmt.Errorf("field %q: key must not end with %q", s.Name, GreedySuffix)
	}
	switch s.Kind {
	case KindBool:
		if len(s.AllowedValues) == 0 {
			return fmt.Errorf("field %q: bool field requires allowedValues", s.Name)
		}
		for _, v := range s.AllowedValues {
			if strings.TrimSpace(v) == "" {
				return fmt.Errorf("field %q: empty allowed value", s.Name)
			}
		}
	case KindPattern:
		if strings.TrimSpace(s.Pattern) == "" {
			return fmt.Errorf("field %q: regex field requires parseRegexValue", s.Name)
		}
	}
	return nil
}
