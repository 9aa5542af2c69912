package book

import (
	"context"
	"testing"

	"epubcore/common"
	"epubcore/config"
	"epubcore/style"
	"epubcore/testutil/fixtures"
	"epubcore/token"
	"epubcore/zipfile"
)

func mustBuild(t *testing.T, opts fixtures.Options) []byte {
	t.Helper()
	data, err := fixtures.Build(opts)
	if err != nil {
		t.Fatalf("fixtures.Build() error = %v", err)
	}
	return data
}

func TestOpenEPUB3ParsesPackageAndNav(t *testing.T) {
	data := mustBuild(t, fixtures.Options{
		Title: "Sample Book",
		EPUB3: true,
		Chapters: []fixtures.Chapter{
			{Title: "Chapter One", Body: "<p>Hello.</p>"},
			{Title: "Chapter Two", Body: "<p>World.</p>"},
		},
	})

	b, err := Open(zipfile.NewSliceSource(data), config.Default(), nil, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer b.Close()

	if b.Package.Metadata.Title != "Sample Book" {
		t.Errorf("Title = %q, want %q", b.Package.Metadata.Title, "Sample Book")
	}
	if len(b.Package.Spine) != 2 {
		t.Errorf("Spine length = %d, want 2", len(b.Package.Spine))
	}

	nav, err := b.Nav()
	if err != nil {
		t.Fatalf("Nav() error = %v", err)
	}
	if len(nav.Toc) != 2 {
		t.Errorf("Toc length = %d, want 2", len(nav.Toc))
	}
}

func TestOpenEPUB2ParsesNCX(t *testing.T) {
	data := mustBuild(t, fixtures.Options{
		Title: "Legacy Book",
		EPUB3: false,
		Chapters: []fixtures.Chapter{
			{Title: "Only Chapter", Body: "<p>Text.</p>"},
		},
	})

	cfg := config.Default()
	b, err := Open(zipfile.NewSliceSource(data), cfg, nil, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer b.Close()

	nav, err := b.Nav()
	if err != nil {
		t.Fatalf("Nav() error = %v", err)
	}
	if len(nav.Toc) != 1 {
		t.Errorf("Toc length = %d, want 1", len(nav.Toc))
	}
}

func TestOpenLazyNavigationDefersParse(t *testing.T) {
	data := mustBuild(t, fixtures.Options{EPUB3: true})

	cfg := config.Default()
	cfg.Open.LazyNavigation = true
	b, err := Open(zipfile.NewSliceSource(data), cfg, nil, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer b.Close()

	if b.nav != nil {
		t.Error("expected nav to be unparsed before first Nav() call")
	}
	if _, err := b.Nav(); err != nil {
		t.Fatalf("Nav() error = %v", err)
	}
	if b.nav == nil {
		t.Error("expected nav to be cached after first Nav() call")
	}
}

func TestOpenMissingContainerXML(t *testing.T) {
	data := mustBuild(t, fixtures.Options{EPUB3: true})
	// Truncate the archive so it no longer decodes as a usable package
	// (sanity check that Open surfaces a wrapped error, not a panic).
	if len(data) > 100 {
		data = data[:100]
	}
	if _, err := Open(zipfile.NewSliceSource(data), config.Default(), nil, nil); err == nil {
		t.Error("expected Open() to fail on truncated archive")
	}
}

func TestContextWithBookRoundTrip(t *testing.T) {
	data := mustBuild(t, fixtures.Options{EPUB3: true})
	b, err := Open(zipfile.NewSliceSource(data), config.Default(), nil, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer b.Close()

	ctx := ContextWithBook(context.Background(), b)
	if got := FromContext(ctx); got != b {
		t.Error("FromContext() did not return the stored book")
	}
}

func TestFromContextPanicsWithoutBook(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected FromContext to panic without a book in context")
		}
	}()
	FromContext(context.Background())
}

func TestChapterTokenizesAndResolvesStyle(t *testing.T) {
	data := mustBuild(t, fixtures.Options{
		Title: "Styled Book",
		EPUB3: true,
		CSS:   "h1 { text-align: center; } p { text-align: justify; }",
		Chapters: []fixtures.Chapter{
			{Title: "Chapter One", Body: "<h1>Hello</h1><p>Some body text.</p>"},
			{Title: "Chapter Two", Body: "<p>More text.</p>"},
		},
	})
	b, err := Open(zipfile.NewSliceSource(data), config.Default(), nil, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer b.Close()

	ch, err := b.Chapter(0)
	if err != nil {
		t.Fatalf("Chapter(0) error = %v", err)
	}
	if len(ch.Tokens) == 0 {
		t.Fatal("expected a non-empty token stream")
	}
	var sawHeading bool
	for _, tok := range ch.Tokens {
		if tok.Kind == token.Heading {
			sawHeading = true
		}
	}
	if !sawHeading {
		t.Error("expected the chapter's heading token to survive tokenizing")
	}

	cs, err := ch.Style.Compute("p", nil, "", style.Default())
	if err != nil {
		t.Fatalf("Compute(\"p\") error = %v", err)
	}
	if cs.Align != common.AlignJustify {
		t.Errorf("p Align = %v, want justify (from the chapter's stylesheet)", cs.Align)
	}
}

func TestChapterIndexOutOfRange(t *testing.T) {
	data := mustBuild(t, fixtures.Options{EPUB3: true})
	b, err := Open(zipfile.NewSliceSource(data), config.Default(), nil, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer b.Close()

	if _, err := b.Chapter(99); err == nil {
		t.Error("expected Chapter() to fail for an out-of-range index")
	}
}
