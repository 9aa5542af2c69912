package layout

import (
	"strings"
	"unicode/utf8"

	"epubcore/common"
	"epubcore/style"
)

// segment is one styled run placed on a committed line.
type segment struct {
	text  string
	style style.ComputedStyle
}

// line is one committed, wrapped line: a sequence of styled segments
// plus the vertical metrics of its tallest segment. isLast marks the
// final line of its enclosing block, so justification can skip it (a
// paragraph's last line is conventionally left-aligned even under
// Justify).
type line struct {
	segments  []segment
	widthPx   float64
	ascentPx  float64
	descentPx float64
	lineGapPx float64
	isLast    bool
}

func (l line) height() float64 {
	return l.ascentPx + l.descentPx + l.lineGapPx
}

// wrapper accumulates one block's (paragraph, heading or list item)
// worth of styled runs into committed lines via greedy word-wrap, per
// spec.md section 4.7's line-breaking algorithm: a line ends when the
// next word's measured width plus a single space would exceed the
// remaining column width.
type wrapper struct {
	lines []line
	cur   []segment
	width float64
	align common.TextAlign
}

func (w *wrapper) reset(align common.TextAlign) {
	w.lines = w.lines[:0]
	w.cur = w.cur[:0]
	w.width = 0
	w.align = align
}

func (w *wrapper) commitLine(e *Engine) {
	if len(w.cur) == 0 {
		return
	}
	var ascent, descent, gap float64
	for _, seg := range w.cur {
		lm := e.measurer.LineMetrics(seg.style)
		if lm.AscentPx > ascent {
			ascent = lm.AscentPx
		}
		if lm.DescentPx > descent {
			descent = lm.DescentPx
		}
		if lm.LineGapPx > gap {
			gap = lm.LineGapPx
		}
	}
	w.lines = append(w.lines, line{
		segments:  append([]segment(nil), w.cur...),
		widthPx:   w.width,
		ascentPx:  ascent,
		descentPx: descent,
		lineGapPx: gap,
	})
	w.cur = w.cur[:0]
	w.width = 0
}

// finish commits any pending partial line and marks the last committed
// line of the block, returning the finished line set.
func (w *wrapper) finish(e *Engine) []line {
	w.commitLine(e)
	if n := len(w.lines); n > 0 {
		w.lines[n-1].isLast = true
	}
	return w.lines
}

// addRun splits text on whitespace and places each word in turn,
// available is the column width words must fit within (already
// narrowed for list indent, if any).
func (w *wrapper) addRun(e *Engine, text string, st style.ComputedStyle, available float64) {
	for _, word := range strings.Fields(text) {
		e.placeWord(w, word, st, available)
	}
}

// placeWord greedily places word on the wrapper's current line,
// wrapping to a new line when it doesn't fit, and falling back to a
// hyphenation break (or, failing that, an overflow break) when the
// word alone is wider than the available column.
func (e *Engine) placeWord(w *wrapper, word string, st style.ComputedStyle, available float64) {
	for {
		wordWidth := e.measurer.Measure(word, st)
		if len(w.cur) > 0 {
			spaceWidth := e.measurer.Measure(" ", st)
			if w.width+spaceWidth+wordWidth <= available {
				w.cur = append(w.cur, segment{text: word, style: st})
				w.width += spaceWidth + wordWidth
				return
			}
			w.commitLine(e)
			continue
		}

		if wordWidth <= available {
			w.cur = append(w.cur, segment{text: word, style: st})
			w.width = wordWidth
			return
		}

		if part, remainder, ok := e.tryHyphenate(word, st, available); ok {
			w.cur = append(w.cur, segment{text: part + "-", style: st})
			w.width = e.measurer.Measure(part+"-", st)
			w.commitLine(e)
			word = remainder
			continue
		}

		// Single-word-too-wide: place it anyway (overflow-break).
		w.cur = append(w.cur, segment{text: word, style: st})
		w.width = wordWidth
		return
	}
}

// tryHyphenate looks for a break candidate that lets the word's prefix
// (plus a trailing visible hyphen) fit within available. Under
// SoftHyphenRespect, literal U+00AD characters already in the word are
// the candidates; when the policy is SoftHyphenIgnore or the word
// carries none, the pattern engine (package hyphen), if configured,
// supplies them.
func (e *Engine) tryHyphenate(word string, st style.ComputedStyle, available float64) (part, remainder string, ok bool) {
	if e.cfg.SoftHyphenPolicy == common.SoftHyphenRespect {
		if candidates := softHyphenOffsets(word); len(candidates) > 0 {
			return e.bestBreak(word, candidates, st, available, true)
		}
	}
	if e.hyph != nil {
		return e.bestBreak(word, e.hyph.Breaks(word), st, available, false)
	}
	return "", "", false
}

func softHyphenOffsets(word string) []int {
	const marker = "­"
	var offsets []int
	for i := 0; i < len(word); {
		if strings.HasPrefix(word[i:], marker) {
			offsets = append(offsets, i)
			i += len(marker)
			continue
		}
		_, size := utf8.DecodeRuneInString(word[i:])
		i += size
	}
	return offsets
}

// bestBreak picks the rightmost candidate offset whose prefix plus a
// hyphen glyph still fits available, per candidates already in
// ascending byte-offset order.
func (e *Engine) bestBreak(word string, candidates []int, st style.ComputedStyle, available float64, stripMarker bool) (part, remainder string, ok bool) {
	if len(candidates) == 0 {
		return "", "", false
	}
	hyphenWidth := e.measurer.Measure("-", st)
	best := -1
	for _, c := range candidates {
		prefix := word[:c]
		if stripMarker {
			prefix = strings.ReplaceAll(prefix, "­", "")
		}
		if e.measurer.Measure(prefix, st)+hyphenWidth > available {
			break
		}
		best = c
	}
	if best < 0 {
		return "", "", false
	}
	prefix, suffix := word[:best], word[best:]
	if stripMarker {
		prefix = strings.ReplaceAll(prefix, "­", "")
		suffix = strings.TrimPrefix(suffix, "­")
	}
	return prefix, suffix, true
}
