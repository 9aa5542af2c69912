package token

import (
	"testing"

	"epubcore/limits"
)

func kinds(toks []Token) []Kind {
	out := make([]Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func equalKinds(t *testing.T, got []Kind, want ...Kind) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d tokens %v, want %d %v", len(got), got, len(want), want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("token[%d] = %v, want %v (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestCollectBasicParagraphs(t *testing.T) {
	data := []byte(`<html><body><p>Hello, world.</p><p>Second.</p></body></html>`)
	toks, err := Collect(data, limits.Embedded().Tokenize)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	equalKinds(t, kinds(toks), Text, ParagraphBreak, Text, ParagraphBreak)
	if toks[0].Text != "Hello, world." {
		t.Errorf("toks[0].Text = %q", toks[0].Text)
	}
	if toks[2].Text != "Second." {
		t.Errorf("toks[2].Text = %q", toks[2].Text)
	}
}

func TestCollectHeadingAndEmphasis(t *testing.T) {
	data := []byte(`<body><h1>Title</h1><p>An <em>emphasized</em> word.</p></body>`)
	toks, err := Collect(data, limits.Embedded().Tokenize)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	equalKinds(t, kinds(toks),
		Heading, Text, ParagraphBreak,
		Text, Emphasis, Text, Emphasis, Text, ParagraphBreak)
	if toks[0].Level != 1 {
		t.Errorf("heading level = %d, want 1", toks[0].Level)
	}
	if !toks[4].On {
		t.Errorf("Emphasis On = false, want true at start")
	}
	if toks[6].On {
		t.Errorf("Emphasis On = true, want false at end")
	}
}

func TestCollectList(t *testing.T) {
	data := []byte(`<body><ul><li>One</li><li>Two</li></ul></body>`)
	toks, err := Collect(data, limits.Embedded().Tokenize)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	equalKinds(t, kinds(toks),
		ListStart, ListItemStart, Text, ListItemEnd,
		ListItemStart, Text, ListItemEnd, ListEnd)
	if toks[0].Ordered {
		t.Error("ul should not be Ordered")
	}
}

func TestCollectLink(t *testing.T) {
	data := []byte(`<body><p>See <a href="chapter2.xhtml">chapter two</a>.</p></body>`)
	toks, err := Collect(data, limits.Embedded().Tokenize)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	equalKinds(t, kinds(toks), Text, LinkStart, Text, LinkEnd, Text, ParagraphBreak)
	if toks[1].Href != "chapter2.xhtml" {
		t.Errorf("LinkStart Href = %q", toks[1].Href)
	}
}

func TestCollectLinkWithoutHrefHasNoTokens(t *testing.T) {
	data := []byte(`<body><p>See <a>anchor</a>.</p></body>`)
	toks, err := Collect(data, limits.Embedded().Tokenize)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	for _, tok := range toks {
		if tok.Kind == LinkStart || tok.Kind == LinkEnd {
			t.Fatalf("unexpected link token for anchor with no href: %v", toks)
		}
	}
}

func TestCollectImage(t *testing.T) {
	data := []byte(`<body><img src="cover.jpg" alt="Cover"/></body>`)
	toks, err := Collect(data, limits.Embedded().Tokenize)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	equalKinds(t, kinds(toks), Image)
	if toks[0].Src != "cover.jpg" || toks[0].Alt != "Cover" {
		t.Errorf("Image token = %+v", toks[0])
	}
}

func TestCollectSkipsScriptAndStyleSubtrees(t *testing.T) {
	data := []byte(`<body><script>if (1 < 2) { alert("x"); }</script><style>p { color: red; }</style><p>Real text.</p></body>`)
	toks, err := Collect(data, limits.Embedded().Tokenize)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	equalKinds(t, kinds(toks), Text, ParagraphBreak)
	if toks[0].Text != "Real text." {
		t.Errorf("toks[0].Text = %q, want %q", toks[0].Text, "Real text.")
	}
}

func TestCollectCollapsesWhitespace(t *testing.T) {
	data := []byte("<p>One\n   two\t\tthree</p>")
	toks, err := Collect(data, limits.Embedded().Tokenize)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(toks) == 0 || toks[0].Text != "One two three" {
		t.Fatalf("got %v, want collapsed text", toks)
	}
}

func TestCollectEntityUnescape(t *testing.T) {
	data := []byte(`<p>Tom &amp; Jerry &#8217;s adventure</p>`)
	toks, err := Collect(data, limits.Embedded().Tokenize)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	want := "Tom & Jerry ’s adventure"
	if toks[0].Text != want {
		t.Errorf("toks[0].Text = %q, want %q", toks[0].Text, want)
	}
}

func TestTokenizeEnforcesMaxTokens(t *testing.T) {
	lim := limits.Embedded().Tokenize
	lim.MaxTokens = 2
	data := []byte(`<body><p>One</p><p>Two</p><p>Three</p></body>`)
	_, err := Collect(data, lim)
	if err == nil {
		t.Fatal("Collect() = nil error, want LimitExceeded for max_tokens")
	}
}

func TestTokenizeEnforcesMaxNesting(t *testing.T) {
	lim := limits.Embedded().Tokenize
	lim.MaxNesting = 2
	data := []byte(`<body><div><div><div>deep</div></div></div></body>`)
	_, err := Collect(data, lim)
	if err == nil {
		t.Fatal("Collect() = nil error, want LimitExceeded for max_nesting")
	}
}

func TestTokenizeSplitsTextOnMaxTextBytes(t *testing.T) {
	lim := limits.Embedded().Tokenize
	lim.MaxTextBytes = 64
	long := ""
	for i := 0; i < 20; i++ {
		long += "0123456789"
	}
	data := []byte("<p>" + long + "</p>")
	toks, err := Collect(data, lim)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	var rebuilt string
	for _, tok := range toks {
		if tok.Kind != Text {
			continue
		}
		if len(tok.Text) > lim.MaxTextBytes {
			t.Errorf("text chunk length %d exceeds MaxTextBytes %d", len(tok.Text), lim.MaxTextBytes)
		}
		rebuilt += tok.Text
	}
	if rebuilt != long {
		t.Errorf("rebuilt text = %q, want %q", rebuilt, long)
	}
}

func TestTokenizeSinkCanStopEarly(t *testing.T) {
	data := []byte(`<body><p>One</p><p>Two</p><p>Three</p></body>`)
	var count int
	err := Tokenize(data, limits.Embedded().Tokenize, func(Token) (bool, error) {
		count++
		return count < 2, nil
	})
	if err != nil {
		t.Fatalf("Tokenize() error = %v", err)
	}
	if count != 2 {
		t.Errorf("sink called %d times, want 2", count)
	}
}
