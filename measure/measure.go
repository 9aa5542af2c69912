// Package measure implements the TextMeasurer capability LayoutEngine
// (package layout) delegates all width and line-metric arithmetic to,
// per spec.md section 4.7's "the engine never estimates widths
// directly". It ships one default implementation, a fixed-advance
// monospace metric for zero-config use; an embedded host wraps its own
// font tables behind the same interface.
//
// Nothing in the retrieved teacher repo measures text width for layout
// purposes (fbc only ever writes EPUB/KFX markup and lets the reading
// device's own renderer do line-breaking), so there is no teacher file
// to ground this on; the interface shape instead mirrors spec.md's own
// contract verbatim. The monospace metric below is plain arithmetic
// over style.ComputedStyle.SizePx, so no third-party font or shaping
// library is pulled in for it (see DESIGN.md).
package measure

import (
	"unicode/utf8"

	"epubcore/style"
)

// LineMetrics describes the vertical geometry of one line set in a
// given style (spec.md section 4.7).
type LineMetrics struct {
	AscentPx  float64
	DescentPx float64
	LineGapPx float64
}

// TextMeasurer is the capability layout.Engine consumes for every width
// and line-metric query; implementations must be pure functions of
// their inputs and allocate nothing on the hot path.
type TextMeasurer interface {
	Measure(text string, st style.ComputedStyle) float64
	LineMetrics(st style.ComputedStyle) LineMetrics
}

// Monospace is the built-in default measurer: every rune advances by a
// fixed fraction of the style's font size, regardless of font_id. It
// gives the layout engine something deterministic to paginate against
// without any font data at all.
type Monospace struct {
	// AdvanceEm is the per-rune advance width as a fraction of SizePx.
	AdvanceEm float64
}

// NewMonospace returns a Monospace measurer with a typical monospace
// advance width (0.6em).
func NewMonospace() *Monospace {
	return &Monospace{AdvanceEm: 0.6}
}

func (m *Monospace) advanceEm() float64 {
	if m.AdvanceEm > 0 {
		return m.AdvanceEm
	}
	return 0.6
}

func (m *Monospace) Measure(text string, st style.ComputedStyle) float64 {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	advance := st.SizePx * m.advanceEm()
	width := float64(n) * advance
	if n > 1 {
		width += float64(n-1) * st.LetterSpacingPx
	}
	return width
}

func (m *Monospace) LineMetrics(st style.ComputedStyle) LineMetrics {
	lineGap := st.LineHeightPx - st.SizePx
	if lineGap < 0 {
		lineGap = 0
	}
	return LineMetrics{
		AscentPx:  st.SizePx * 0.8,
		DescentPx: st.SizePx * 0.2,
		LineGapPx: lineGap,
	}
}
