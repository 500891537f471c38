// ABOUTME: LRC lyric parsing and time-indexed lookup
// ABOUTME: Stores lines sorted by timestamp with a forward cursor
package lyrics

import (
	"sort"
	"strings"
)

// Line is one timed lyric line.
type Line struct {
	TimeMs int
	Text   string
}

// ParseLRC parses LRC text into timed lines sorted ascending.
// Timestamp tags look like [mm:ss.xx]; a tag whose part before the
// colon is not all digits is metadata ([ar:...], [ti:...]) and the
// line is skipped. Text after the tag is kept verbatim.
func ParseLRC(text string) []Line {
	var lines []Line
	for _, raw := range strings.Split(text, "\n") {
		raw = strings.TrimSuffix(raw, "\r")
		if len(raw) == 0 || raw[0] != '[' {
			continue
		}
		end := strings.IndexByte(raw, ']')
		if end < 0 {
			continue
		}
		ms, ok := parseTimestamp(raw[1:end])
		if !ok {
			continue
		}
		lines = append(lines, Line{TimeMs: ms, Text: raw[end+1:]})
	}
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].TimeMs < lines[j].TimeMs
	})
	return lines
}

// parseTimestamp converts "mm:ss.xx" (or "mm:ss" / "mm:ss.xxx") to
// milliseconds.
func parseTimestamp(tag string) (int, bool) {
	colon := strings.IndexByte(tag, ':')
	if colon <= 0 {
		return 0, false
	}
	minutes, ok := atoiDigits(tag[:colon])
	if !ok {
		return 0, false
	}

	secPart := tag[colon+1:]
	fracMs := 0
	if dot := strings.IndexByte(secPart, '.'); dot >= 0 {
		frac := secPart[dot+1:]
		secPart = secPart[:dot]
		f, ok := atoiDigits(frac)
		if !ok {
			return 0, false
		}
		switch len(frac) {
		case 2:
			fracMs = f * 10
		case 3:
			fracMs = f
		case 1:
			fracMs = f * 100
		default:
			return 0, false
		}
	}
	seconds, ok := atoiDigits(secPart)
	if !ok {
		return 0, false
	}
	return minutes*60000 + seconds*1000 + fracMs, true
}

func atoiDigits(s string) (int, bool) {
	if len(s) == 0 {
		return 0, false
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

// Store answers "which line is current at time t" with an amortized
// O(1) forward cursor. Playback time only moves forward within a
// session, so the cursor never rewinds.
type Store struct {
	lines  []Line
	cursor int
}

func NewStore(lines []Line) *Store {
	return &Store{lines: lines}
}

// Lookup returns the line active at ms and its index. ok is false
// before the first line's timestamp or when the store is empty.
func (s *Store) Lookup(ms int) (Line, int, bool) {
	if len(s.lines) == 0 || ms < s.lines[0].TimeMs {
		return Line{}, 0, false
	}
	for s.cursor+1 < len(s.lines) && s.lines[s.cursor+1].TimeMs <= ms {
		s.cursor++
	}
	return s.lines[s.cursor], s.cursor, true
}

// Len returns the number of lines.
func (s *Store) Len() int {
	return len(s.lines)
}

// reportIntervalMs is the minimum playback time between lyric
// checks; display updates are pointless at a finer grain.
const reportIntervalMs = 200

// Reporter throttles lyric lookups and fires the display callback
// only when the current line changes.
type Reporter struct {
	store   *Store
	display func(Line)

	lastCheckMs int
	lastIndex   int
	started     bool
}

func NewReporter(store *Store, display func(Line)) *Reporter {
	return &Reporter{store: store, display: display, lastIndex: -1}
}

// Tick advances the reporter to playback time ms. Callers apply any
// display lead offset before calling.
func (r *Reporter) Tick(ms int) {
	if r.started && ms-r.lastCheckMs < reportIntervalMs {
		return
	}
	r.started = true
	r.lastCheckMs = ms

	line, idx, ok := r.store.Lookup(ms)
	if !ok || idx == r.lastIndex {
		return
	}
	r.lastIndex = idx
	if r.display != nil {
		r.display(line)
	}
}
