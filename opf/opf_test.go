package opf

import (
	"testing"

	"epubcore/limits"
)

const sampleContainer = `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

const sampleOPF = `<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata>
    <dc:title>Hello</dc:title>
    <dc:creator>X</dc:creator>
    <dc:language>en</dc:language>
    <meta name="cover" content="chapter1"/>
  </metadata>
  <manifest>
    <item id="chapter1" href="chapter1.xhtml" media-type="application/xhtml+xml"/>
    <item id="cover-img" href="images/cover.jpg" media-type="image/jpeg" properties="cover-image"/>
    <item id="style" href="style.css" media-type="text/css"/>
  </manifest>
  <spine>
    <itemref idref="chapter1"/>
  </spine>
</package>`

func TestResolveRootfile(t *testing.T) {
	path, err := ResolveRootfile([]byte(sampleContainer))
	if err != nil {
		t.Fatalf("ResolveRootfile() error = %v", err)
	}
	if path != "OEBPS/content.opf" {
		t.Errorf("ResolveRootfile() = %q, want OEBPS/content.opf", path)
	}
}

func TestResolveRootfileMissing(t *testing.T) {
	_, err := ResolveRootfile([]byte(`<container><rootfiles></rootfiles></container>`))
	if err == nil {
		t.Fatal("ResolveRootfile() = nil error, want error")
	}
}

func TestParse(t *testing.T) {
	pkg, err := Parse([]byte(sampleOPF), "OEBPS", limits.Embedded().Package, nil)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if pkg.Metadata.Title != "Hello" {
		t.Errorf("Title = %q, want Hello", pkg.Metadata.Title)
	}
	if len(pkg.Metadata.Creators) != 1 || pkg.Metadata.Creators[0] != "X" {
		t.Errorf("Creators = %v, want [X]", pkg.Metadata.Creators)
	}
	if pkg.Metadata.Language != "en" {
		t.Errorf("Language = %q, want en", pkg.Metadata.Language)
	}

	if len(pkg.Manifest) != 3 {
		t.Fatalf("Manifest has %d items, want 3", len(pkg.Manifest))
	}
	ch1, ok := pkg.Manifest["chapter1"]
	if !ok {
		t.Fatal("manifest missing chapter1")
	}
	if ch1.Href != "OEBPS/chapter1.xhtml" {
		t.Errorf("chapter1.Href = %q, want OEBPS/chapter1.xhtml", ch1.Href)
	}

	if len(pkg.Spine) != 1 || pkg.Spine[0].ItemID != "chapter1" {
		t.Fatalf("Spine = %v, want one itemref chapter1", pkg.Spine)
	}

	// EPUB3 properties="cover-image" must win over the EPUB2 <meta
	// name="cover"> declaration, per spec section 4.2.
	if pkg.CoverItemID != "cover-img" {
		t.Errorf("CoverItemID = %q, want cover-img", pkg.CoverItemID)
	}
}

func TestParseSpineReferencesUnknownItem(t *testing.T) {
	bad := `<package><metadata></metadata><manifest></manifest><spine><itemref idref="nope"/></spine></package>`
	_, err := Parse([]byte(bad), "", limits.Embedded().Package, nil)
	if err == nil {
		t.Fatal("Parse() = nil error, want error for unknown spine item")
	}
}

func TestParseManifestItemCap(t *testing.T) {
	lim := limits.Embedded().Package
	lim.MaxManifestItems = 1
	opfXML := `<package><metadata></metadata><manifest>
		<item id="a" href="a.xhtml" media-type="application/xhtml+xml"/>
		<item id="b" href="b.xhtml" media-type="application/xhtml+xml"/>
	</manifest><spine></spine></package>`

	pkg, err := Parse([]byte(opfXML), "", lim, nil)
	if pkg == nil {
		t.Fatalf("Parse() pkg = nil, err = %v", err)
	}
	if len(pkg.Manifest) != 1 {
		t.Errorf("Manifest has %d items, want 1 (cap enforced)", len(pkg.Manifest))
	}
}
