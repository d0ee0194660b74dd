package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func fixtureReader(t *testing.T) (*Reader, string) {
	t.Helper()
	dir := t.TempDir()

	playlist := writeFile(t, dir, "playlist.csv", `session_number,file_name,play_order,is_paper,paper_id,cycle,presenter
7,c.mp4,3,True,12,cscw21d,
7,a.mp4,1,True,11,cscw21d,Fallback Presenter
7,filler.mp4,2,False,,,
8,other.mp4,1,False,,,
x,broken.mp4,1,False,,,
7,bad-order.mp4,abc,False,,,
`)
	papers := writeFile(t, dir, "papers.csv", `cycle,paper_id,title,talk_number,presenter,session_number
CSCW21d,11,Paper A,1,,7
cscw21d,12,Paper B,2,Bea Presenter,7
`)
	authors := writeFile(t, dir, "authors.csv", `cycle,id,author_1,author_2,author_3
apr,11,Ada Lovelace,Grace Hopper,
apr,12,Solo Author,x,Ignored Name
`)

	r := NewReader(Files{Playlist: playlist, Papers: papers, Authors: authors}, "videos", nil, zerolog.Nop())
	return r, dir
}

func TestReader_ListItemsSortsAndResolvesPapers(t *testing.T) {
	r, _ := fixtureReader(t)

	items, err := r.ListItems(context.Background(), 7)
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}

	wantOrder := []int{1, 2, 3}
	for i, item := range items {
		if item.PlayOrder != wantOrder[i] {
			t.Fatalf("item %d: play order %d, want %d", i, item.PlayOrder, wantOrder[i])
		}
	}

	if items[0].Media != filepath.Join("videos", "a.mp4") {
		t.Fatalf("media path: %q", items[0].Media)
	}
	a := items[0].Presentation
	if a == nil || a.Title != "Paper A" {
		t.Fatalf("expected Paper A, got %+v", a)
	}
	if a.Presenter != "Fallback Presenter" {
		t.Fatalf("presenter fallback: %q", a.Presenter)
	}
	if strings.Join(a.Authors, "|") != "Ada Lovelace|Grace Hopper" {
		t.Fatalf("authors A: %v", a.Authors)
	}

	if items[1].Presentation != nil {
		t.Fatalf("filler must not carry a presentation")
	}

	b := items[2].Presentation
	if b == nil || b.Presenter != "Bea Presenter" {
		t.Fatalf("expected Paper B with presenter, got %+v", b)
	}
	if len(b.Authors) != 1 || b.Authors[0] != "Solo Author" {
		t.Fatalf("short cell must end the author list, got %v", b.Authors)
	}
}

func TestReader_ListItemsReadsFresh(t *testing.T) {
	r, dir := fixtureReader(t)

	items, err := r.ListItems(context.Background(), 8)
	if err != nil || len(items) != 1 {
		t.Fatalf("first read: items=%d err=%v", len(items), err)
	}

	writeFile(t, dir, "playlist.csv", "session_number,file_name,play_order,is_paper\n8,one.mp4,1,False\n8,two.mp4,2,False\n")
	items, err = r.ListItems(context.Background(), 8)
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("edit not picked up, got %d items", len(items))
	}
}

func TestReader_EmptySession(t *testing.T) {
	r, _ := fixtureReader(t)
	items, err := r.ListItems(context.Background(), 99)
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no items, got %d", len(items))
	}
}

func TestReader_MissingPlaylistFails(t *testing.T) {
	r := NewReader(Files{Playlist: filepath.Join(t.TempDir(), "missing.csv")}, "", nil, zerolog.Nop())
	if _, err := r.ListItems(context.Background(), 1); err == nil {
		t.Fatal("expected error for missing playlist")
	}
}

func TestReader_ResolvePresentation(t *testing.T) {
	r, _ := fixtureReader(t)

	p, ok, err := r.ResolvePresentation(12, "CSCW21D")
	if err != nil || !ok {
		t.Fatalf("resolve: ok=%v err=%v", ok, err)
	}
	if p.Title != "Paper B" {
		t.Fatalf("title: %q", p.Title)
	}

	_, ok, err = r.ResolvePresentation(404, "cscw21d")
	if err != nil || ok {
		t.Fatalf("expected absent paper, ok=%v err=%v", ok, err)
	}
}

func TestReader_UnknownCycleOmitsAuthors(t *testing.T) {
	dir := t.TempDir()
	playlist := writeFile(t, dir, "playlist.csv", "session_number,file_name,play_order,is_paper,paper_id,cycle\n1,v.mp4,1,True,5,cscw99z\n")
	papers := writeFile(t, dir, "papers.csv", "cycle,paper_id,title,talk_number,presenter\ncscw99z,5,Future Paper,1,\n")
	authors := writeFile(t, dir, "authors.csv", "cycle,id,author_1\ncscw99z,5,Someone Else\n")

	r := NewReader(Files{Playlist: playlist, Papers: papers, Authors: authors}, "", nil, zerolog.Nop())
	items, err := r.ListItems(context.Background(), 1)
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if items[0].Presentation == nil || len(items[0].Presentation.Authors) != 0 {
		t.Fatalf("expected presentation without authors, got %+v", items[0].Presentation)
	}
}

func TestCycleMap(t *testing.T) {
	m := DefaultAuthorCycles()
	tests := []struct {
		cycle string
		want  string
		ok    bool
	}{
		{"cscw21b", "jan", true},
		{"CSCW21D", "apr", true},
		{" cscw22a ", "jul21", true},
		{"cscw22b", "jan22", true},
		{"cscw23a", "", false},
	}
	for _, tt := range tests {
		got, err := m.Map(tt.cycle)
		if tt.ok && (err != nil || got != tt.want) {
			t.Errorf("Map(%q) = %q, %v; want %q", tt.cycle, got, err, tt.want)
		}
		if !tt.ok && !errors.Is(err, ErrUnknownCycle) {
			t.Errorf("Map(%q) error = %v; want ErrUnknownCycle", tt.cycle, err)
		}
	}
}

func TestLoadCycleMaps(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cycles.yaml", "authors:\n  CSCW23A: jan23\n")

	authors, submissions, err := LoadCycleMaps(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got, err := authors.Map("cscw23a"); err != nil || got != "jan23" {
		t.Fatalf("override not applied: %q %v", got, err)
	}
	if _, err := authors.Map("cscw21b"); err == nil {
		t.Fatal("override replaces the authors table")
	}
	if got, _ := submissions.Map("cscw21b"); got != "apr" {
		t.Fatalf("submission defaults kept: %q", got)
	}

	if _, _, err := LoadCycleMaps(writeFile(t, dir, "bad.yaml", "authors: [unterminated")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestReadTimetable(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "sessions.csv", `session_number,session_name,w1_time_utc,w2_time_utc
1,Opening & Welcome,2026-11-02 14:00,2026-11-09 14:00
2,Broken,not a date,2026-11-09 15:00
3,Closing,2026-11-03T16:30:00Z,2026-11-10T16:30:00Z
`)

	slots, rowErrs, err := ReadTimetable(path)
	if err != nil {
		t.Fatalf("read timetable: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	if len(rowErrs) != 1 || rowErrs[0].Line != 3 {
		t.Fatalf("expected one row error on line 3, got %v", rowErrs)
	}

	want := time.Date(2026, 11, 2, 14, 0, 0, 0, time.UTC)
	if !slots[0].Week1.Equal(want) || slots[0].Week1.Location() != time.UTC {
		t.Fatalf("week 1: got %v want %v", slots[0].Week1, want)
	}
	if slots[0].SessionName != "Opening & Welcome" {
		t.Fatalf("name: %q", slots[0].SessionName)
	}
	if got := slots[1].Week2; !got.Equal(time.Date(2026, 11, 10, 16, 30, 0, 0, time.UTC)) {
		t.Fatalf("week 2: %v", got)
	}
}

func TestGeneratePlaylist(t *testing.T) {
	dir := t.TempDir()
	media := filepath.Join(dir, "videos")
	if err := os.MkdirAll(media, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, media, "cscw21b_101.mp4", "x")
	writeFile(t, media, "cscw21b_102.mp4", "x")
	writeFile(t, media, "cscw99x_1.mp4", "x")

	subs := writeFile(t, dir, "links.csv", `URL of your paper's PCS submission page,Name of the Presenting Author
https://new.precisionconference.com/cscw21b/author/subs/101,Pat
https://new.precisionconference.com/cscw21b/author/subs/102,Lee
https://new.precisionconference.com/cscw21b/author/subs/103,Missing Video
https://new.precisionconference.com/cscw99x/author/subs/1,Bad Cycle
short/url,Nobody
`)
	papers := writeFile(t, dir, "papers.csv", `cycle,paper_id,title,session_number
apr,101,First,4
apr,102,Second,4
`)
	out := filepath.Join(dir, "playlist.csv")

	summary, err := GeneratePlaylist(GenerateOptions{
		SubmissionsFile: subs,
		PapersFile:      papers,
		MediaDir:        media,
		OutFile:         out,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if summary.Processed != 5 || summary.VideosFound != 3 || summary.ItemsAdded != 2 || len(summary.Skipped) != 3 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(records))
	}
	if records[2][0] != "cscw21b_102.mp4" || records[2][1] != "4" || records[2][6] != "2" {
		t.Fatalf("second row: %v", records[2])
	}

	// The generated table is readable by the catalog reader.
	r := NewReader(Files{Playlist: out, Papers: papers}, media, nil, zerolog.Nop())
	items, err := r.ListItems(context.Background(), 4)
	if err != nil {
		t.Fatalf("list generated: %v", err)
	}
	if len(items) != 2 || items[0].Presentation == nil || items[0].Presentation.Presenter != "Pat" {
		t.Fatalf("generated items: %+v", items)
	}
}
