// internal/pipeline/pipeline_test.go
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/valpere/musicmanager/internal/config"
	"github.com/valpere/musicmanager/internal/entity"
	"github.com/valpere/musicmanager/internal/grammar"
	"github.com/valpere/musicmanager/internal/output"
	"github.com/valpere/musicmanager/internal/parser"
	"github.com/valpere/musicmanager/internal/provider"
	"github.com/valpere/musicmanager/internal/resolver"
)

// media classifies media.example URLs by the minutes table. Titles are
// left empty so the record title is used.
type media struct {
	minutes map[string]int
}

func (m *media) Name() string              { return "media" }
func (m *media) CanHandle(url string) bool { return strings.Contains(url, "media.example") }
func (m *media) IsTerminal() bool          { return true }
func (m *media) URLMatchers() []string     { return []string{"media.example"} }

func (m *media) Classify(_ context.Context, url string) (entity.IntermediateEntity, error) {
	d := entity.UnknownDuration
	if mins, ok := m.minutes[url]; ok {
		d = entity.Seconds(mins * 60)
	}
	return entity.NewIntermediateEntity("", d, url), nil
}

type recorder struct {
	mu         sync.Mutex
	records    map[string]int
	duplicates map[string]int
	written    map[string]int
	runs       int
}

func newRecorder() *recorder {
	return &recorder{records: map[string]int{}, duplicates: map[string]int{}, written: map[string]int{}}
}

func (r *recorder) ObserveRecord(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[outcome]++
}

func (r *recorder) ObserveDuplicate(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.duplicates[reason]++
}

func (r *recorder) ObserveRowsWritten(sheet string, rows int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.written[sheet] += rows
}

func (r *recorder) ObserveRun(time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs++
}

var testMinutes = map[string]int{
	"https://media.example/known":  60,
	"https://media.example/new":    30,
	"https://media.example/track":  5,
	"https://media.example/seen":   45,
	"https://media.example/mix2":   90,
	"https://media.example/track2": 3,
}

func newTestPipeline(t *testing.T, cfg Config, opts ...Option) (*Pipeline, *config.ParserConfig) {
	t.Helper()
	pc := config.DefaultParserConfig()
	g, err := pc.Grammar()
	if err != nil {
		t.Fatal(err)
	}
	reg, err := provider.NewRegistry(&media{minutes: testMinutes})
	if err != nil {
		t.Fatal(err)
	}
	r := resolver.New(reg, resolver.DefaultConfig(), nil)
	return New(parser.NewLineParser(g, nil), r, pc, cfg, nil, opts...), pc
}

func record(lineNo int, title string, links ...string) parser.Record {
	values := map[string]string{"title": title}
	keys := []string{"title", grammar.SanitizeKey("from")}
	for i, l := range links {
		k := parser.LinkKeyPrefix + string(rune('1'+i))
		keys = append(keys, k)
		values[k] = l
	}
	rec := parser.NewRecord(keys, values)
	rec.LineNo = lineNo
	return rec
}

func testRecords() []parser.Record {
	return []parser.Record{
		record(1, "Known Mix", "https://media.example/known"),
		record(2, "New Mix", "https://media.example/new"),
		record(3, "Fresh Track", "https://media.example/track"),
		record(4, "Lost", "https://media.example/gone"),
		record(5, "Seen Elsewhere", "https://media.example/seen"),
		record(6, "Confused", "https://media.example/mix2", "https://media.example/track2"),
	}
}

// seedMixes writes the mixes header and one known row.
func seedMixes(t *testing.T, s output.Store, pc *config.ParserConfig) {
	t.Helper()
	sheet, _ := pc.SheetFor("mix")
	cols := pc.Columns(sheet)
	header := make([]string, len(cols))
	row := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.Header
		switch c.Key {
		case "title":
			row[i] = "Known Mix"
		case "link_1":
			row[i] = "https://media.example/seen"
		}
	}
	if err := s.Append(context.Background(), sheet.WorksheetName, header, [][]string{row}); err != nil {
		t.Fatal(err)
	}
}

func TestRunSheetMode(t *testing.T) {
	store, err := output.NewCSVStore(filepath.Join(t.TempDir(), "sheets"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	obs := newRecorder()
	p, pc := newTestPipeline(t, Config{Workers: 3, Mode: config.ModeSheet, DuplicateDetection: true},
		WithStore(store), WithObserver(obs))
	seedMixes(t, store, pc)

	run, err := p.Run(context.Background(), testRecords())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if run.RunID == "" {
		t.Error("missing run id")
	}

	want := Stats{Records: 6, Entities: 7, ValidationErrors: 1, Duplicates: 2, RowsAdded: 2}
	if run.Stats != want {
		t.Errorf("Stats = %+v, want %+v", run.Stats, want)
	}

	// results keep record order
	for i, rr := range run.Records {
		if rr.Record.LineNo != i+1 {
			t.Errorf("result %d is line %d", i, rr.Record.LineNo)
		}
	}
	var ve *entity.ValidationError
	errs := run.ValidationErrors()
	if len(errs) != 1 || !errors.As(errs[0], &ve) {
		t.Errorf("ValidationErrors() = %v", errs)
	}
	if got := len(run.Groups[entity.Unknown]); got != 1 {
		t.Errorf("unknown groups = %d", got)
	}

	mixes, err := store.Read(context.Background(), "Mixes")
	if err != nil {
		t.Fatal(err)
	}
	if len(mixes.Rows) != 2 || mixes.Rows[1][0] != "New Mix" {
		t.Errorf("Mixes rows = %v", mixes.Rows)
	}
	tracks, err := store.Read(context.Background(), "Tracks")
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks.Rows) != 1 || tracks.Rows[0][0] != "Fresh Track" {
		t.Errorf("Tracks rows = %v", tracks.Rows)
	}
	if len(tracks.Header) == 0 || tracks.Header[0] != "Title" {
		t.Errorf("Tracks header = %v", tracks.Header)
	}

	if obs.records[RecordResolved] != 5 || obs.records[RecordInvalid] != 1 {
		t.Errorf("record observations = %v", obs.records)
	}
	if obs.duplicates["title"] != 1 || obs.duplicates["link"] != 1 {
		t.Errorf("duplicate observations = %v", obs.duplicates)
	}
	if obs.written["mixes"] != 1 || obs.written["tracks"] != 1 || obs.runs != 1 {
		t.Errorf("written = %v, runs = %d", obs.written, obs.runs)
	}
}

func TestRunDryRunPrintsWithoutWriting(t *testing.T) {
	store, err := output.NewCSVStore(filepath.Join(t.TempDir(), "sheets"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	var out bytes.Buffer
	p, pc := newTestPipeline(t, Config{Workers: 2, Mode: config.ModeDryRun, DuplicateDetection: true},
		WithStore(store), WithOutput(&out))
	seedMixes(t, store, pc)

	run, err := p.Run(context.Background(), testRecords())
	if err != nil {
		t.Fatal(err)
	}
	if run.Stats.RowsAdded != 0 {
		t.Errorf("RowsAdded = %d in dry-run", run.Stats.RowsAdded)
	}
	for _, u := range run.Updates {
		if u.Written {
			t.Errorf("sheet %s written in dry-run", u.Sheet.Name)
		}
	}
	printed := out.String()
	for _, want := range []string{"Mixes (1 new rows)", "New Mix", "Fresh Track"} {
		if !strings.Contains(printed, want) {
			t.Errorf("output lacks %q:\n%s", want, printed)
		}
	}
	if strings.Contains(printed, "Known Mix") {
		t.Errorf("duplicate printed:\n%s", printed)
	}

	mixes, _ := store.Read(context.Background(), "Mixes")
	if len(mixes.Rows) != 1 {
		t.Errorf("dry-run changed the store: %v", mixes.Rows)
	}
}

func TestRunWithoutDuplicateDetection(t *testing.T) {
	var out bytes.Buffer
	p, _ := newTestPipeline(t, Config{Workers: 1}, WithOutput(&out))

	run, err := p.Run(context.Background(), append(testRecords(), record(7, "New Mix", "https://media.example/new")))
	if err != nil {
		t.Fatal(err)
	}
	if run.Stats.Duplicates != 0 {
		t.Errorf("Duplicates = %d", run.Stats.Duplicates)
	}
	for _, u := range run.Updates {
		if u.Sheet.Name == "mixes" && len(u.Rows) != 4 {
			t.Errorf("mix rows = %v", u.Rows)
		}
	}
}

func TestRunSheetModeNeedsStore(t *testing.T) {
	p, _ := newTestPipeline(t, Config{Mode: config.ModeSheet})
	if _, err := p.Run(context.Background(), testRecords()); !errors.Is(err, ErrNoStore) {
		t.Errorf("Run() error = %v, want ErrNoStore", err)
	}
}

func TestResolveRecordsCancelled(t *testing.T) {
	p, _ := newTestPipeline(t, Config{Workers: 2})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.ResolveRecords(ctx, testRecords()); !errors.Is(err, context.Canceled) {
		t.Errorf("ResolveRecords() error = %v, want context.Canceled", err)
	}
}

func TestParseFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	if err := os.WriteFile(a, []byte("# comment\nlink:https://media.example/new title:New Mix\n\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("link:https://media.example/track title:Fresh Track\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	p, _ := newTestPipeline(t, Config{})
	records, err := p.ParseFiles(context.Background(), []string{a, b}, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d", len(records))
	}
	if got := records[0].Links(); len(got) != 1 || got[0] != "https://media.example/new" {
		t.Errorf("links = %v", got)
	}
	if records[0].LineNo != 2 {
		t.Errorf("LineNo = %d", records[0].LineNo)
	}

	if _, err := p.ParseFiles(context.Background(), []string{filepath.Join(dir, "missing.txt")}, ""); err == nil {
		t.Error("expected error for a missing file")
	}
}
