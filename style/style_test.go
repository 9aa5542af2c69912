package style

import (
	"testing"

	"epubcore/limits"
)

func mustEngine(t *testing.T, css string) *Engine {
	t.Helper()
	e, err := New([]byte(css), limits.Embedded().Style, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e
}

func TestComputeTagSelector(t *testing.T) {
	e := mustEngine(t, `h1 { font-size: 24px; font-weight: bold; }`)
	got, err := e.Compute("h1", nil, "", Default())
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if got.SizePx != 24 {
		t.Errorf("SizePx = %v, want 24", got.SizePx)
	}
	if got.Weight != 700 {
		t.Errorf("Weight = %v, want 700", got.Weight)
	}
}

func TestComputeClassBeatsTagOnSpecificity(t *testing.T) {
	e := mustEngine(t, `
p { text-align: left; }
.callout { text-align: center; }
`)
	got, err := e.Compute("p", []string{"callout"}, "", Default())
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if got.Align.String() != "center" {
		t.Errorf("Align = %v, want center (class beats tag)", got.Align)
	}
}

func TestComputeTagClassBeatsClassAlone(t *testing.T) {
	e := mustEngine(t, `
.note { font-size: 12px; }
p.note { font-size: 20px; }
`)
	got, err := e.Compute("p", []string{"note"}, "", Default())
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if got.SizePx != 20 {
		t.Errorf("SizePx = %v, want 20 (tag.class beats class)", got.SizePx)
	}
}

func TestComputeInlineStyleWinsOverRules(t *testing.T) {
	e := mustEngine(t, `p { font-size: 20px; }`)
	got, err := e.Compute("p", nil, "font-size: 40px;", Default())
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if got.SizePx != 40 {
		t.Errorf("SizePx = %v, want 40 (inline wins)", got.SizePx)
	}
}

func TestComputeEmRelativeToParent(t *testing.T) {
	e := mustEngine(t, `span { font-size: 1.5em; }`)
	parent := Default()
	parent.SizePx = 20
	got, err := e.Compute("span", nil, "", parent)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if got.SizePx != 30 {
		t.Errorf("SizePx = %v, want 30 (1.5em of 20px parent)", got.SizePx)
	}
}

func TestComputeInheritsUnsetProperties(t *testing.T) {
	e := mustEngine(t, `em { font-style: italic; }`)
	parent := Default()
	parent.Family = "georgia"
	got, err := e.Compute("em", nil, "", parent)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if got.Family != "georgia" {
		t.Errorf("Family = %q, want inherited %q", got.Family, "georgia")
	}
	if !got.Italic {
		t.Error("Italic = false, want true")
	}
}

func TestComputeMarginsResetEachElement(t *testing.T) {
	e := mustEngine(t, `p { margin: 10px; }`)
	parent := Default()
	parent.MarginTopPx = 99
	got, err := e.Compute("div", nil, "", parent)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if got.MarginTopPx != 0 {
		t.Errorf("MarginTopPx = %v, want 0 (margins don't inherit)", got.MarginTopPx)
	}
}

func TestComputeMarginShorthand(t *testing.T) {
	e := mustEngine(t, `p { margin: 8px; }`)
	got, err := e.Compute("p", nil, "", Default())
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if got.MarginTopPx != 8 || got.MarginBottomPx != 8 {
		t.Errorf("margins = (%v, %v), want (8, 8)", got.MarginTopPx, got.MarginBottomPx)
	}
}

func TestComputeFontIDStableForSameTriple(t *testing.T) {
	e := mustEngine(t, `strong { font-weight: bold; }`)
	a, err := e.Compute("strong", nil, "", Default())
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	b, err := e.Compute("strong", nil, "", Default())
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if a.FontID != b.FontID {
		t.Errorf("FontID differs across identical computations: %d vs %d", a.FontID, b.FontID)
	}
	if e.fonts.Len() != 2 { // Default() family/weight, plus bold strong
		t.Errorf("interned %d distinct fonts, want 2", e.fonts.Len())
	}
}

func TestNewRejectsOversizedCSS(t *testing.T) {
	lim := limits.Embedded().Style
	lim.MaxCSSBytes = 8
	_, err := New([]byte(`p { color: red; }`), lim, nil)
	if err == nil {
		t.Fatal("New() = nil error, want LimitExceeded for max_css_bytes")
	}
}

func TestNewRejectsTooManySelectors(t *testing.T) {
	lim := limits.Embedded().Style
	lim.MaxSelectors = 1
	_, err := New([]byte(`p { color: red; } h1 { color: blue; }`), lim, nil)
	if err == nil {
		t.Fatal("New() = nil error, want LimitExceeded for max_selectors")
	}
}
