package parser

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/unicode/norm"

	"github.com/valpere/musicmanager/internal/grammar"
	"github.com/valpere/musicmanager/internal/utils"
)

// LineParser applies a compiled grammar to input lines.
type LineParser struct {
	grammar *grammar.Grammar
	logger  utils.Logger
}

// NewLineParser creates a LineParser for g.
func NewLineParser(g *grammar.Grammar, logger utils.Logger) *LineParser {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &LineParser{grammar: g, logger: logger.WithField("component", "parser")}
}

// Grammar returns the grammar the parser applies.
func (p *LineParser) Grammar() *grammar.Grammar {
	return p.grammar
}

type match struct {
	key    string
	value  string
	greedy bool
}

// ParseLine parses one line into a Record. Every capture is tried against
// the text left over by the previous ones; a matched span is replaced by a
// single space.
func (p *LineParser) ParseLine(line string) Record {
	text := norm.NFC.String(line)
	found := make(map[string]bool)
	var matches []match

	for _, c := range p.grammar.Captures {
		if c.Greedy && found[c.Key] {
			continue
		}
		value, start, end, ok := c.Match(text)
		if !ok {
			continue
		}
		text = text[:start] + " " + text[end:]
		value = cleanValue(value)
		if value == "" {
			continue
		}
		found[c.Key] = true
		matches = append(matches, match{key: c.Key, value: value, greedy: c.Greedy})
	}

	r := NewRecord(p.grammar.Keys(), p.merge(matches))
	r.Raw = line
	return r
}

// merge folds greedy captures into their base key. An exact-prefix value
// replaces an earlier greedy one.
func (p *LineParser) merge(matches []match) map[string]string {
	values := make(map[string]string, len(matches))
	fromGreedy := make(map[string]bool, len(matches))
	for _, m := range matches {
		prev, ok := values[m.key]
		switch {
		case !ok:
			values[m.key] = m.value
			fromGreedy[m.key] = m.greedy
		case fromGreedy[m.key] && !m.greedy:
			p.logger.Warnf("field %q: prefixed value %q overrides greedy value %q", m.key, m.value, prev)
			values[m.key] = m.value
			fromGreedy[m.key] = false
		}
	}
	return values
}

func cleanValue(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		v = strings.TrimSpace(v[1 : len(v)-1])
	}
	return v
}

// Parse reads lines from r and parses every non-blank line that is not a
// '#' comment.
func (p *LineParser) Parse(ctx context.Context, r io.Reader) ([]Record, error) {
	var records []Record
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rec := p.ParseLine(line)
		rec.LineNo = lineNo
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read line %d: %w", lineNo+1, err)
	}
	p.logger.Debugf("parsed %d records from %d lines", len(records), lineNo)
	return records, nil
}

// ParseFile parses a file decoded from the named charset ("" means utf-8).
func (p *LineParser) ParseFile(ctx context.Context, path, charset string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := DecodeReader(f, charset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	records, err := p.Parse(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	p.logger.Infof("parsed %d records from %s", len(records), path)
	return records, nil
}

// DecodeReader wraps r with a decoder for the named charset.
func DecodeReader(r io.Reader, charset string) (io.Reader, error) {
	if charset == "" || strings.EqualFold(charset, "utf-8") || strings.EqualFold(charset, "utf8") {
		return r, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", charset, err)
	}
	return enc.NewDecoder().Reader(r), nil
}

// CollectInputFiles returns files plus every *.txt file below dir, sorted
// and without duplicates.
func CollectInputFiles(files []string, dir string) ([]string, error) {
	out := append([]string(nil), files...)
	if dir != "" {
		err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".txt") {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	out = utils.UniqueStrings(out)
	sort.Strings(out)
	return out, nil
}
