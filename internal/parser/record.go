package parser

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/valpere/musicmanager/internal/grammar"
)

// LinkKeyPrefix identifies link fields (link_1, link_2, ...).
const LinkKeyPrefix = "link_"

// TitleKey is the field holding the entity title.
const TitleKey = "title"

// Record is the structured result of parsing one input line. Keys follow
// the grammar's declaration order; absent fields read as "".
type Record struct {
	LineNo int
	Raw    string
	keys   []string
	values map[string]string
}

// NewRecord builds a Record over keys. Values for unknown keys are dropped.
func NewRecord(keys []string, values map[string]string) Record {
	r := Record{keys: append([]string(nil), keys...), values: make(map[string]string, len(values))}
	for _, k := range r.keys {
		if v, ok := values[k]; ok && v != "" {
			r.values[k] = v
		}
	}
	return r
}

// Get returns the value of a field by its natural or sanitized name.
func (r Record) Get(name string) string {
	return r.values[grammar.SanitizeKey(name)]
}

// Has reports whether the field holds a non-empty value.
func (r Record) Has(name string) bool {
	_, ok := r.values[grammar.SanitizeKey(name)]
	return ok
}

// Keys returns the field keys in declaration order.
func (r Record) Keys() []string {
	return append([]string(nil), r.keys...)
}

// Values returns a copy of the present field values.
func (r Record) Values() map[string]string {
	out := make(map[string]string, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// Title returns the title field.
func (r Record) Title() string {
	return r.values[TitleKey]
}

// Links returns the non-empty link field values in declaration order with
// duplicates collapsed.
func (r Record) Links() []string {
	var links []string
	seen := map[string]bool{}
	for _, k := range r.keys {
		if !strings.HasPrefix(k, LinkKeyPrefix) {
			continue
		}
		v := strings.TrimSpace(r.values[k])
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		links = append(links, v)
	}
	return links
}

// Equal reports whether both records hold the same keys and values.
func (r Record) Equal(o Record) bool {
	if len(r.keys) != len(o.keys) || len(r.values) != len(o.values) {
		return false
	}
	for i := range r.keys {
		if r.keys[i] != o.keys[i] {
			return false
		}
	}
	for k, v := range r.values {
		if o.values[k] != v {
			return false
		}
	}
	return true
}

// MarshalJSON writes the present fields as an object in key order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for _, k := range r.keys {
		v, ok := r.values[k]
		if !ok {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		kb, _ := json.Marshal(k)
		vb, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
