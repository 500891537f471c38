// ABOUTME: Tests for LRC parsing, lookup and the display reporter
// ABOUTME: Covers metadata skipping, ordering and throttling
package lyrics

import "testing"

const sampleLRC = "[ti:Example]\r\n" +
	"[ar:Somebody]\r\n" +
	"[00:12.00]First line\r\n" +
	"[00:05.50]Out of order\r\n" +
	"[01:00.123]Minute mark\r\n" +
	"not a tag\r\n" +
	"[00:30]No fraction\r\n"

func TestParseLRC(t *testing.T) {
	lines := ParseLRC(sampleLRC)
	if len(lines) != 4 {
		t.Fatalf("parsed %d lines, want 4", len(lines))
	}

	want := []Line{
		{TimeMs: 5500, Text: "Out of order"},
		{TimeMs: 12000, Text: "First line"},
		{TimeMs: 30000, Text: "No fraction"},
		{TimeMs: 60123, Text: "Minute mark"},
	}
	for i, w := range want {
		if lines[i] != w {
			t.Errorf("lines[%d] = %+v, want %+v", i, lines[i], w)
		}
	}
}

func TestParseLRCHundredths(t *testing.T) {
	lines := ParseLRC("[01:02.50]Hello")
	if len(lines) != 1 {
		t.Fatal("expected one line")
	}
	if lines[0].TimeMs != 62500 || lines[0].Text != "Hello" {
		t.Errorf("line = %+v, want 62500ms %q", lines[0], "Hello")
	}
}

func TestParseLRCSkipsMetadata(t *testing.T) {
	lines := ParseLRC("[ar:Band]\n[al:Record]\n[by:editor]\n")
	if len(lines) != 0 {
		t.Errorf("metadata-only input gave %d lines", len(lines))
	}
}

func TestParseLRCKeepsTextVerbatim(t *testing.T) {
	lines := ParseLRC("[00:01.00]  spaced  text  ")
	if len(lines) != 1 {
		t.Fatal("expected one line")
	}
	if lines[0].Text != "  spaced  text  " {
		t.Errorf("Text = %q", lines[0].Text)
	}
}

func TestStoreLookup(t *testing.T) {
	s := NewStore([]Line{
		{TimeMs: 1000, Text: "a"},
		{TimeMs: 2000, Text: "b"},
		{TimeMs: 5000, Text: "c"},
	})

	if _, _, ok := s.Lookup(500); ok {
		t.Error("lookup before first line should miss")
	}
	if l, i, ok := s.Lookup(1000); !ok || i != 0 || l.Text != "a" {
		t.Errorf("Lookup(1000) = %+v %d %v", l, i, ok)
	}
	if l, i, ok := s.Lookup(2500); !ok || i != 1 || l.Text != "b" {
		t.Errorf("Lookup(2500) = %+v %d %v", l, i, ok)
	}
	if l, i, ok := s.Lookup(99999); !ok || i != 2 || l.Text != "c" {
		t.Errorf("Lookup(99999) = %+v %d %v", l, i, ok)
	}
}

func TestStoreLookupEmpty(t *testing.T) {
	s := NewStore(nil)
	if _, _, ok := s.Lookup(1000); ok {
		t.Error("empty store should never match")
	}
}

func TestReporterFiresOncePerLine(t *testing.T) {
	s := NewStore([]Line{
		{TimeMs: 1000, Text: "a"},
		{TimeMs: 2000, Text: "b"},
	})
	var shown []string
	r := NewReporter(s, func(l Line) { shown = append(shown, l.Text) })

	for ms := 0; ms <= 3000; ms += 200 {
		r.Tick(ms)
	}
	if len(shown) != 2 || shown[0] != "a" || shown[1] != "b" {
		t.Errorf("shown = %v, want [a b]", shown)
	}
}

func TestReporterThrottles(t *testing.T) {
	s := NewStore([]Line{{TimeMs: 0, Text: "a"}, {TimeMs: 100, Text: "b"}})
	var shown []string
	r := NewReporter(s, func(l Line) { shown = append(shown, l.Text) })

	r.Tick(0)
	// Within the 200 ms window; the cursor must not be consulted.
	r.Tick(150)
	if len(shown) != 1 || shown[0] != "a" {
		t.Fatalf("shown = %v, want [a]", shown)
	}

	r.Tick(300)
	if len(shown) != 2 || shown[1] != "b" {
		t.Errorf("shown = %v, want [a b]", shown)
	}
}
