// internal/config/parserconfig.go
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"

	apperrors "github.com/valpere/musicmanager/internal/errors"
	"github.com/valpere/musicmanager/internal/grammar"
)

//go:embed parserconfig.json
var defaultParserConfig []byte

// Entity types a sheet can hold.
var entityTypes = map[string]bool{"mix": true, "track": true, "unknown": true, "notfound": true}

// ParserConfig is the JSON document describing the line grammar and the
// sheets new entities are written to.
type ParserConfig struct {
	GenericParserSettings *ParserSettings `json:"genericParserSettings,omitempty"`
	ParserSettings        ParserSettings  `json:"parserSettings"`
	SheetSettings         SheetSettings   `json:"sheetSettings"`
}

// ParserSettings holds the field definitions of one grammar.
type ParserSettings struct {
	Fields      FieldSet          `json:"fields"`
	DateFormats []string          `json:"dateFormats,omitempty"`
	Variables   map[string]string `json:"variables,omitempty"`
}

// FieldSettings is the configuration of a single field.
type FieldSettings struct {
	Name                        string `json:"-"`
	NameInSheet                 string `json:"nameInSheet"`
	HumanReadableName           string `json:"humanReadableName"`
	ParseType                   string `json:"parseType"`
	Optional                    bool   `json:"optional"`
	Precedence                  *int   `json:"precedence,omitempty"`
	EatGreedyWithoutParsePrefix bool   `json:"eatGreedyWithoutParsePrefix"`
	ParsePrefix                 string `json:"parsePrefix,omitempty"`
	ParseRegexValue             string `json:"parseRegexValue,omitempty"`
	AllowedValues               string `json:"allowedValues,omitempty"`
}

// FieldSet is a JSON object of fields that remembers declaration order.
type FieldSet []FieldSettings

// UnmarshalJSON decodes the object while keeping key order.
func (fs *FieldSet) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("fields must be a JSON object")
	}
	var out FieldSet
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name := tok.(string)
		var f FieldSettings
		if err := dec.Decode(&f); err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
		f.Name = name
		out = append(out, f)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*fs = out
	return nil
}

// MarshalJSON encodes the set as an object in declaration order.
func (fs FieldSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range fs {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, _ := json.Marshal(f.Name)
		body, err := json.Marshal(f)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(body)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Names returns the field names in declaration order.
func (fs FieldSet) Names() []string {
	names := make([]string, len(fs))
	for i, f := range fs {
		names[i] = f.Name
	}
	return names
}

// Get returns the field named name.
func (fs FieldSet) Get(name string) (FieldSettings, bool) {
	for _, f := range fs {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSettings{}, false
}

// SheetSettings lists the output sheets.
type SheetSettings struct {
	Sheets []SheetConfig `json:"sheets"`
}

// SheetConfig describes one output sheet.
type SheetConfig struct {
	Name            string   `json:"name"`
	EntityType      string   `json:"entityType"`
	SpreadsheetName string   `json:"spreadsheetName"`
	WorksheetName   string   `json:"worksheetName"`
	Fields          []string `json:"fields"`
}

// Column maps a field key to its sheet header.
type Column struct {
	Key    string
	Header string
}

// LoadParserConfig reads and validates a parser configuration. An empty
// path selects the built-in configuration.
func LoadParserConfig(path string) (*ParserConfig, error) {
	if path == "" {
		return ParseParserConfig(defaultParserConfig)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindConfig, "read parser config", err)
	}
	return ParseParserConfig(data)
}

// DefaultParserConfig returns the built-in parser configuration.
func DefaultParserConfig() *ParserConfig {
	pc, err := ParseParserConfig(defaultParserConfig)
	if err != nil {
		panic(fmt.Sprintf("built-in parser config is invalid: %v", err))
	}
	return pc
}

// ParseParserConfig decodes and validates a parser configuration.
func ParseParserConfig(data []byte) (*ParserConfig, error) {
	var pc ParserConfig
	if err := json.Unmarshal(data, &pc); err != nil {
		return nil, apperrors.Wrap(apperrors.KindConfig, "decode parser config", err)
	}
	if err := pc.Validate(); err != nil {
		return nil, err
	}
	return &pc, nil
}

// Base returns the settings the grammar is compiled from: the generic
// settings when present, otherwise the parser settings.
func (pc *ParserConfig) Base() *ParserSettings {
	if pc.GenericParserSettings != nil {
		return pc.GenericParserSettings
	}
	return &pc.ParserSettings
}

// Validate checks the whole parser configuration.
func (pc *ParserConfig) Validate() error {
	return pc.ValidateWithDetails().Err("parser configuration")
}

// ValidateWithDetails returns every problem found in the configuration.
func (pc *ParserConfig) ValidateWithDetails() *ValidationResult {
	result := newValidationResult()
	base := pc.Base()
	extended := &pc.ParserSettings

	if len(extended.Fields) == 0 {
		result.addError("parserSettings.fields", "", "no fields defined")
		return result
	}

	baseNames := toSet(base.Fields.Names())
	extNames := toSet(extended.Fields.Names())
	if missing, extra := setDiff(baseNames, extNames); len(missing) > 0 || len(extra) > 0 {
		result.addError("parserSettings.fields", "",
			"generic and extended field sets differ: only in generic %v, only in extended %v", missing, extra)
	}

	for _, settings := range []*ParserSettings{base, extended} {
		for _, f := range settings.Fields {
			validateField(f, result)
		}
		if settings == extended && base == extended {
			break
		}
	}

	seenSheets := map[string]bool{}
	for i, s := range pc.SheetSettings.Sheets {
		path := fmt.Sprintf("sheetSettings.sheets[%d]", i)
		if s.Name == "" {
			result.addError(path+".name", "", "sheet name is required")
		} else if seenSheets[s.Name] {
			result.addError(path+".name", s.Name, "duplicate sheet name")
		}
		seenSheets[s.Name] = true
		if !entityTypes[strings.ToLower(s.EntityType)] {
			result.addError(path+".entityType", s.EntityType, "must be one of mix, track, unknown, notfound")
		}
		if len(s.Fields) == 0 {
			result.addError(path+".fields", "", "sheet %q declares no fields", s.Name)
		}
		var unknown []string
		for _, name := range s.Fields {
			if !extNames[name] {
				unknown = append(unknown, name)
			}
		}
		if len(unknown) > 0 {
			result.addError(path+".fields", strings.Join(unknown, ","), "unknown fields for sheet %q", s.Name)
		}
	}

	if result.Valid {
		if _, err := pc.Grammar(); err != nil {
			result.addError("parserSettings", "", "%v", err)
		}
	}
	return result
}

func validateField(f FieldSettings, result *ValidationResult) {
	path := "fields." + f.Name
	kind, err := grammar.ParseKind(f.ParseType)
	if err != nil {
		result.addError(path+".parseType", f.ParseType, "%v", err)
		return
	}
	switch kind {
	case grammar.KindBool:
		if len(splitCSV(f.AllowedValues)) == 0 {
			result.addError(path+".allowedValues", "", "bool field requires allowedValues")
		}
	case grammar.KindPattern:
		if strings.TrimSpace(f.ParseRegexValue) == "" {
			result.addError(path+".parseRegexValue", "", "regex field requires parseRegexValue")
		}
	}
	if f.EatGreedyWithoutParsePrefix && f.ParsePrefix == "" {
		result.addWarning("field %s: eatGreedyWithoutParsePrefix has no effect without parsePrefix", f.Name)
	}
}

// GrammarVariables returns the grammar variables, with DATE bound to the
// configured date formats unless defined explicitly.
func (ps *ParserSettings) GrammarVariables() (grammar.Variables, error) {
	vars := grammar.Variables{}
	for k, v := range ps.Variables {
		vars[k] = v
	}
	if _, ok := vars[grammar.DateVariable]; !ok && len(ps.DateFormats) > 0 {
		p, err := grammar.DatePattern(ps.DateFormats)
		if err != nil {
			return nil, err
		}
		vars[grammar.DateVariable] = p
	}
	return vars, nil
}

// FieldSpecs converts the base fields into grammar specs, taking display
// names from the extended settings.
func (pc *ParserConfig) FieldSpecs() ([]grammar.FieldSpec, error) {
	base := pc.Base()
	specs := make([]grammar.FieldSpec, 0, len(base.Fields))
	for _, f := range base.Fields {
		kind, err := grammar.ParseKind(f.ParseType)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		spec := grammar.NewFieldSpec(f.Name, kind)
		spec.DisplayName = f.HumanReadableName
		if ext, ok := pc.ParserSettings.Fields.Get(f.Name); ok && ext.HumanReadableName != "" {
			spec.DisplayName = ext.HumanReadableName
		}
		spec.Optional = f.Optional
		if f.Precedence != nil {
			spec.Precedence = *f.Precedence
		}
		spec.Prefix = f.ParsePrefix
		spec.Pattern = f.ParseRegexValue
		spec.AllowedValues = splitCSV(f.AllowedValues)
		spec.GreedyFallback = f.EatGreedyWithoutParsePrefix
		specs = append(specs, spec)
	}
	return specs, nil
}

// Grammar compiles the base fields.
func (pc *ParserConfig) Grammar() (*grammar.Grammar, error) {
	specs, err := pc.FieldSpecs()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindConfig, "compile grammar", err)
	}
	vars, err := pc.Base().GrammarVariables()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindConfig, "compile grammar", err)
	}
	g, err := grammar.Compile(specs, vars)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindConfig, "compile grammar", err)
	}
	return g, nil
}

// SheetFor returns the first sheet holding entityType.
func (pc *ParserConfig) SheetFor(entityType string) (SheetConfig, bool) {
	for _, s := range pc.SheetSettings.Sheets {
		if strings.EqualFold(s.EntityType, entityType) {
			return s, true
		}
	}
	return SheetConfig{}, false
}

// Columns returns the sheet's fields as key/header pairs in sheet order.
// The header is nameInSheet, falling back to the field name.
func (pc *ParserConfig) Columns(sheet SheetConfig) []Column {
	cols := make([]Column, 0, len(sheet.Fields))
	for _, name := range sheet.Fields {
		header := name
		if f, ok := pc.ParserSettings.Fields.Get(name); ok && f.NameInSheet != "" {
			header = f.NameInSheet
		}
		cols = append(cols, Column{Key: grammar.SanitizeKey(name), Header: header})
	}
	return cols
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

func setDiff(a, b map[string]bool) (onlyA, onlyB []string) {
	for k := range a {
		if !b[k] {
			onlyA = append(onlyA, k)
		}
	}
	for k := range b {
		if !a[k] {
			onlyB = append(onlyB, k)
		}
	}
	sort.Strings(onlyA)
	sort.Strings(onlyB)
	return onlyA, onlyB
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
	return enc, nil
}
