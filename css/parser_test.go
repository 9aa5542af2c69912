package css_test

import (
	"strings"
	"testing"

	"epubcore/css"
)

func parse(t *testing.T, input string) *css.Stylesheet {
	t.Helper()
	p := css.NewParser(nil)
	return p.Parse([]byte(input))
}

func TestParserElementSelector(t *testing.T) {
	sheet := parse(t, `p { font-size: 1em; }`)
	if len(sheet.Rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(sheet.Rules))
	}
	sel := sheet.Rules[0].Selector
	if sel.Element != "p" || sel.Class != "" {
		t.Errorf("Selector = %+v, want Element=p", sel)
	}
}

func TestParserClassSelector(t *testing.T) {
	sheet := parse(t, `.epigraph { text-align: center; }`)
	if len(sheet.Rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(sheet.Rules))
	}
	sel := sheet.Rules[0].Selector
	if sel.Class != "epigraph" || sel.Element != "" {
		t.Errorf("Selector = %+v, want Class=epigraph", sel)
	}
}

func TestParserTagClassSelector(t *testing.T) {
	sheet := parse(t, `p.epigraph { text-align: center; }`)
	sel := sheet.Rules[0].Selector
	if sel.Element != "p" || sel.Class != "epigraph" {
		t.Errorf("Selector = %+v, want Element=p Class=epigraph", sel)
	}
}

func TestParserGroupedSelectorsEachGetTheirOwnRule(t *testing.T) {
	sheet := parse(t, `h1, h2, h3 { font-weight: bold; }`)
	if len(sheet.Rules) != 3 {
		t.Fatalf("expected 3 rules from the grouped selector, got %d", len(sheet.Rules))
	}
	var tags []string
	for _, r := range sheet.Rules {
		tags = append(tags, r.Selector.Element)
	}
	for _, want := range []string{"h1", "h2", "h3"} {
		found := false
		for _, got := range tags {
			if got == want {
				found = true
			}
		}
		if !found {
			t.Errorf("missing rule for %q, got %v", want, tags)
		}
	}
}

func TestParserUnsupportedSelectorsAreWarnedAndDropped(t *testing.T) {
	cases := []string{
		"p code",      // descendant combinator
		"p > code",    // child combinator
		"p:first-child",
		"p::before",
		`a[href^="http"]`, // attribute selector
	}
	for _, selStr := range cases {
		sheet := parse(t, selStr+` { color: red; }`)
		if len(sheet.Rules) != 0 {
			t.Errorf("selector %q: expected no indexed rule, got %d", selStr, len(sheet.Rules))
		}
		if len(sheet.Warnings) == 0 {
			t.Errorf("selector %q: expected a warning to be recorded", selStr)
		}
	}
}

func TestParserFontFaceBlockIsDroppedNotIndexed(t *testing.T) {
	sheet := parse(t, `
		@font-face { font-family: "Body"; src: url("body.ttf"); }
		p { font-family: "Body"; }
	`)
	if len(sheet.Rules) != 1 {
		t.Fatalf("expected only the plain p rule, got %d rules", len(sheet.Rules))
	}
	if sheet.Rules[0].Selector.Element != "p" {
		t.Errorf("unexpected surviving rule: %+v", sheet.Rules[0].Selector)
	}
}

func TestParserImportIsDropped(t *testing.T) {
	sheet := parse(t, `
		@import url("other.css");
		p { color: black; }
	`)
	if len(sheet.Rules) != 1 {
		t.Fatalf("expected only the plain p rule, got %d rules", len(sheet.Rules))
	}
}

func TestParserMediaBlockContentNeverReachesRules(t *testing.T) {
	sheet := parse(t, `
		@media amzn-kf8 {
			p { font-size: 2em; }
		}
		p { font-size: 1em; }
	`)
	if len(sheet.Rules) != 1 {
		t.Fatalf("expected only the top-level p rule, got %d", len(sheet.Rules))
	}
	if v, _ := sheet.Rules[0].GetProperty("font-size"); v.Raw != "1em" {
		t.Errorf("font-size = %q, want the top-level 1em, not the @media one", v.Raw)
	}
}

func TestParserDimensionAndPercentageValues(t *testing.T) {
	sheet := parse(t, `p { font-size: 1.5em; margin-top: 12px; width: 50%; z-index: 3; }`)
	props := sheet.Rules[0].Properties

	if v := props["font-size"]; v.Value != 1.5 || v.Unit != "em" {
		t.Errorf("font-size = %+v, want {1.5 em}", v)
	}
	if v := props["margin-top"]; v.Value != 12 || v.Unit != "px" {
		t.Errorf("margin-top = %+v, want {12 px}", v)
	}
	if v := props["width"]; v.Value != 50 || v.Unit != "%" {
		t.Errorf("width = %+v, want {50 %%}", v)
	}
	if v := props["z-index"]; !v.IsNumeric() || v.Value != 3 {
		t.Errorf("z-index = %+v, want numeric 3", v)
	}
}

func TestParserKeywordAndColorValues(t *testing.T) {
	sheet := parse(t, `p { text-align: center; color: #ff0000; }`)
	props := sheet.Rules[0].Properties

	if v := props["text-align"]; !v.IsKeyword() || v.Keyword != "center" {
		t.Errorf("text-align = %+v, want keyword center", v)
	}
	if v := props["color"]; v.Keyword != "#ff0000" {
		t.Errorf("color = %+v, want keyword #ff0000", v)
	}
}

func TestParserFunctionAndShorthandValuesKeepRawForm(t *testing.T) {
	sheet := parse(t, `p { background: rgb(1, 2, 3); margin: 4px 8px; }`)
	props := sheet.Rules[0].Properties

	if v := props["background"]; !strings.HasPrefix(v.Raw, "rgb(") || !strings.Contains(v.Raw, "1") {
		t.Errorf("background.Raw = %q, want something starting with rgb( and carrying its arguments", v.Raw)
	}
	if v := props["margin"]; v.Raw != "4px 8px" {
		t.Errorf("margin.Raw = %q, want \"4px 8px\"", v.Raw)
	}
}

func TestStylesheetRulesBySelector(t *testing.T) {
	sheet := parse(t, `p { color: red; } .note { color: blue; }`)
	if got := sheet.RulesBySelector("p"); len(got) != 1 {
		t.Errorf("RulesBySelector(\"p\") = %d rules, want 1", len(got))
	}
	if got := sheet.RulesBySelector(".note"); len(got) != 1 {
		t.Errorf("RulesBySelector(\".note\") = %d rules, want 1", len(got))
	}
	if got := sheet.RulesBySelector("h1"); len(got) != 0 {
		t.Errorf("RulesBySelector(\"h1\") = %d rules, want 0", len(got))
	}
}

func TestStylesheetWriteToRoundTripsSimpleRules(t *testing.T) {
	sheet := parse(t, `p { color: red; }`)
	out := sheet.String()
	if !strings.Contains(out, "p {") || !strings.Contains(out, "color: red;") {
		t.Errorf("String() = %q, missing expected rule text", out)
	}

	reparsed := parse(t, out)
	if len(reparsed.Rules) != 1 || reparsed.Rules[0].Selector.Element != "p" {
		t.Errorf("round-tripped stylesheet parsed back to %+v", reparsed.Rules)
	}
}

func TestStylesheetRewriteURLsRewritesRawValue(t *testing.T) {
	sheet := parse(t, `p { background: url("old.png"); }`)
	sheet.RewriteURLs(func(u string) string { return "new/" + u })

	v := sheet.Rules[0].Properties["background"]
	if !strings.Contains(v.Raw, "new/old.png") {
		t.Errorf("RewriteURLs did not update Raw: %q", v.Raw)
	}
}
