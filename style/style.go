// Package style implements component C6, the StyleEngine: parses the
// supported CSS subset with the teacher's css.Parser, builds a
// selector-indexed rule table, and resolves cascaded + inline computed
// styles over an element stack with font_id interning.
package style

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	cssv "epubcore/css"
	"epubcore/common"
	"epubcore/epuberr"
	"epubcore/limits"
)

// ComputedStyle is the resolved style of one element, per spec.md
// section 4.3's text-style data model.
type ComputedStyle struct {
	FontID         int
	Family         string // normalized; carried for interning only, never re-resolved downstream
	SizePx         float64
	Weight         int
	Italic         bool
	Align          common.TextAlign
	LineHeightPx   float64
	MarginTopPx    float64
	MarginBottomPx float64
	IndentPx       float64
	LetterSpacingPx float64
}

// Default returns the root computed style new chapters inherit from.
func Default() ComputedStyle {
	return ComputedStyle{
		Family:       "serif",
		SizePx:       16,
		Weight:       400,
		Align:        common.AlignLeft,
		LineHeightPx: 16 * 1.2,
	}
}

type matchRule struct {
	sel   cssv.Selector
	order int
	props map[string]cssv.Value
}

func (m matchRule) specificity() int {
	spec := 0
	if m.sel.Element != "" {
		spec++
	}
	if m.sel.Class != "" {
		spec++
	}
	return spec
}

// Engine holds an indexed, bounded rule table built from one stylesheet.
type Engine struct {
	byTag      map[string][]matchRule
	byClass    map[string][]matchRule
	byTagClass map[string][]matchRule
	parser     *cssv.Parser
	fonts      *FontTable
	lim        limits.StyleLimits
}

// New parses css with the supported subset and indexes its simple
// selectors (tag, .class, tag.class). css.Parser already drops
// descendant combinators, attribute selectors and pseudo-classes/
// elements before a Rule ever reaches Stylesheet.Rules, so every entry
// here is indexable.
func New(css []byte, lim limits.StyleLimits, log *zap.Logger) (*Engine, error) {
	if len(css) > lim.MaxCSSBytes {
		return nil, epuberr.Limit("style.max_css_bytes")
	}
	p := cssv.NewParser(log)
	sheet := p.Parse(css, "stylesheet")

	e := &Engine{
		byTag:      make(map[string][]matchRule),
		byClass:    make(map[string][]matchRule),
		byTagClass: make(map[string][]matchRule),
		parser:     p,
		fonts:      NewFontTable(64),
		lim:        lim,
	}
	// Seed the table with Default()'s font so its zero FontID names it.
	d := Default()
	if _, err := e.fonts.Intern(d.Family, d.Weight >= 700, d.Italic); err != nil {
		return nil, err
	}

	if len(sheet.Rules) > lim.MaxSelectors {
		return nil, epuberr.Limit("style.max_selectors")
	}
	for i, rule := range sheet.Rules {
		sel := rule.Selector
		mr := matchRule{sel: sel, order: i, props: rule.Properties}
		switch {
		case sel.Element != "" && sel.Class != "":
			key := sel.Element + "." + sel.Class
			e.byTagClass[key] = append(e.byTagClass[key], mr)
		case sel.Element != "":
			e.byTag[sel.Element] = append(e.byTag[sel.Element], mr)
		case sel.Class != "":
			e.byClass[sel.Class] = append(e.byClass[sel.Class], mr)
		}
	}
	return e, nil
}

// Compute resolves tag/classes/inlineStyle against parent's computed
// style, matching rules by specificity (tag? + class_count) with a
// stable sort so ties keep declaration order, then applying inline
// style last. font_id is assigned from the (family, weight, italic)
// intern table.
func (e *Engine) Compute(tag string, classes []string, inlineStyle string, parent ComputedStyle) (ComputedStyle, error) {
	var matches []matchRule
	matches = append(matches, e.byTag[tag]...)
	for _, c := range classes {
		matches = append(matches, e.byClass[c]...)
		matches = append(matches, e.byTagClass[tag+"."+c]...)
	}
	sortStableBySpecificity(matches)

	final := make(map[string]cssv.Value)
	for _, m := range matches {
		for name, v := range m.props {
			final[name] = v
		}
	}
	if inlineStyle != "" {
		inlineProps := e.parseInlineStyle(inlineStyle)
		for name, v := range inlineProps {
			final[name] = v
		}
	}

	style := parent
	style.MarginTopPx = 0
	style.MarginBottomPx = 0

	if v, ok := final["font-family"]; ok {
		style.Family = normalizeFamily(v)
	}
	if v, ok := final["font-size"]; ok {
		style.SizePx = resolveSizePx(v, parent.SizePx)
	}
	if v, ok := final["font-weight"]; ok {
		style.Weight = resolveWeight(v)
	}
	if v, ok := final["font-style"]; ok {
		style.Italic = resolveItalic(v)
	}
	if v, ok := final["text-align"]; ok {
		style.Align = resolveAlign(v)
	}
	if v, ok := final["line-height"]; ok {
		style.LineHeightPx = resolveLineHeight(v, style.SizePx)
	} else {
		style.LineHeightPx = 1.2 * style.SizePx
	}
	if v, ok := final["margin"]; ok {
		m := pxValue(v)
		style.MarginTopPx, style.MarginBottomPx = m, m
	}
	if v, ok := final["margin-top"]; ok {
		style.MarginTopPx = pxValue(v)
	}
	if v, ok := final["margin-bottom"]; ok {
		style.MarginBottomPx = pxValue(v)
	}
	if v, ok := final["letter-spacing"]; ok {
		style.LetterSpacingPx = pxValue(v)
	}

	id, err := e.fonts.Intern(style.Family, style.Weight >= 700, style.Italic)
	if err != nil {
		return ComputedStyle{}, err
	}
	style.FontID = id
	return style, nil
}

// parseInlineStyle parses a style="" attribute value by wrapping it in a
// throwaway rule and harvesting its declarations, reusing the same
// declaration grammar the stylesheet parser already drives.
func (e *Engine) parseInlineStyle(attr string) map[string]cssv.Value {
	sheet := e.parser.Parse([]byte("x{" + attr + "}"))
	if len(sheet.Rules) > 0 {
		return sheet.Rules[0].Properties
	}
	return nil
}

// sortStableBySpecificity sorts matches ascending by specificity,
// keeping ties in their original declaration order (matches is already
// in that order since each bucket was appended in parse order and
// bucket-merge re-sorts by the preserved order index).
func sortStableBySpecificity(matches []matchRule) {
	sortStableByOrder(matches)
	n := len(matches)
	for i := 1; i < n; i++ {
		for j := i; j > 0 && matches[j-1].specificity() > matches[j].specificity(); j-- {
			matches[j-1], matches[j] = matches[j], matches[j-1]
		}
	}
}

func sortStableByOrder(matches []matchRule) {
	n := len(matches)
	for i := 1; i < n; i++ {
		for j := i; j > 0 && matches[j-1].order > matches[j].order; j-- {
			matches[j-1], matches[j] = matches[j], matches[j-1]
		}
	}
}

func normalizeFamily(v cssv.Value) string {
	s := v.Raw
	if v.Keyword != "" {
		s = v.Keyword
	}
	first, _, _ := strings.Cut(s, ",")
	first = strings.TrimSpace(first)
	first = strings.Trim(first, `"'`)
	return strings.ToLower(first)
}

func resolveSizePx(v cssv.Value, parentPx float64) float64 {
	switch v.Unit {
	case "px":
		return v.Value
	case "em":
		return v.Value * parentPx
	default:
		return parentPx
	}
}

func resolveWeight(v cssv.Value) int {
	switch strings.ToLower(v.Keyword) {
	case "bold":
		return 700
	case "normal":
		return 400
	}
	if v.Value > 0 {
		return int(v.Value)
	}
	if n, err := strconv.Atoi(strings.TrimSpace(v.Raw)); err == nil {
		return n
	}
	return 400
}

func resolveItalic(v cssv.Value) bool {
	switch strings.ToLower(v.Keyword) {
	case "italic", "oblique":
		return true
	default:
		return false
	}
}

func resolveAlign(v cssv.Value) common.TextAlign {
	switch strings.ToLower(v.Keyword) {
	case "center":
		return common.AlignCenter
	case "right":
		return common.AlignRight
	case "justify":
		return common.AlignJustify
	default:
		return common.AlignLeft
	}
}

func resolveLineHeight(v cssv.Value, sizePx float64) float64 {
	if v.Unit == "px" {
		return v.Value
	}
	if v.Unit == "" && v.Keyword == "" && v.Value > 0 {
		return v.Value * sizePx
	}
	return 1.2 * sizePx
}

func pxValue(v cssv.Value) float64 {
	return v.Value
}
