// Package fixtures builds synthetic EPUB archives in memory for tests,
// the way convert/epub/epub.go's writeContainer/writeOPF/writeNav/
// writeNCX build real ones for output — but repurposed here to
// generate input for the SAX parsers instead of being a production
// write path. Nothing in this package is on the library's parse path;
// it exists only for _test.go files across the module.
package fixtures

import (
	"bytes"
	"fmt"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	fixzip "github.com/hidez8891/zip"
)

// Chapter is one spine entry: a chapter title plus its XHTML body
// content (the inner markup of <body>, not a whole document).
type Chapter struct {
	Title string
	Body  string // inner XHTML, e.g. "<p>hello</p>"
}

// Options describes the EPUB archive Build produces.
type Options struct {
	Title    string
	Language string // BCP-47 tag, defaults to "en"
	EPUB3    bool   // true: nav.xhtml + properties="nav"; false: toc.ncx
	CSS      string // stylesheet.css contents, omitted if empty
	Chapters []Chapter
}

func (o Options) withDefaults() Options {
	if o.Title == "" {
		o.Title = "Untitled"
	}
	if o.Language == "" {
		o.Language = "en"
	}
	if len(o.Chapters) == 0 {
		o.Chapters = []Chapter{{Title: "Chapter 1", Body: "<p>Empty chapter.</p>"}}
	}
	return o
}

// Build returns a well-formed EPUB archive as bytes: META-INF/container.xml,
// OEBPS/content.opf, one XHTML chapter per entry in opts.Chapters, and
// either OEBPS/nav.xhtml (EPUB3) or OEBPS/toc.ncx (EPUB2), plus
// OEBPS/stylesheet.css when opts.CSS is set.
func Build(opts Options) ([]byte, error) {
	opts = opts.withDefaults()

	var buf bytes.Buffer
	zw := fixzip.NewWriter(&buf)

	if err := writeEntry(zw, "mimetype", fixzip.Store, []byte("application/epub+zip")); err != nil {
		return nil, err
	}
	if err := writeXML(zw, "META-INF/container.xml", buildContainer()); err != nil {
		return nil, err
	}

	bookID := uuid.New().String()
	filenames := make([]string, len(opts.Chapters))
	for i, ch := range opts.Chapters {
		filenames[i] = fmt.Sprintf("%s.xhtml", slug.Make(fmt.Sprintf("chapter-%d-%s", i+1, ch.Title)))
		if err := writeXML(zw, "OEBPS/"+filenames[i], buildChapter(ch)); err != nil {
			return nil, err
		}
	}

	if opts.CSS != "" {
		if err := writeEntry(zw, "OEBPS/stylesheet.css", fixzip.Deflate, []byte(opts.CSS)); err != nil {
			return nil, err
		}
	}

	if opts.EPUB3 {
		if err := writeXML(zw, "OEBPS/nav.xhtml", buildNav(opts, filenames)); err != nil {
			return nil, err
		}
	} else {
		if err := writeXML(zw, "OEBPS/toc.ncx", buildNCX(opts, bookID, filenames)); err != nil {
			return nil, err
		}
	}

	if err := writeXML(zw, "OEBPS/content.opf", buildOPF(opts, bookID, filenames)); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("closing fixture archive: %w", err)
	}
	return buf.Bytes(), nil
}

// BuildWithBadCRC behaves like Build but corrupts the compressed data
// of the first chapter entry, so the result fails C1's online CRC32
// check — used to exercise epuberr.CrcMismatch.
func BuildWithBadCRC(opts Options) ([]byte, error) {
	data, err := Build(opts)
	if err != nil {
		return nil, err
	}
	// Flip a byte in the local file data area following the chapter
	// entry's local header; any byte past the fixed 30-byte header and
	// the short (ASCII) name is safely within the deflate stream.
	idx := bytes.Index(data, []byte("OEBPS/chapter-1"))
	if idx < 0 {
		return data, nil
	}
	corruptAt := idx + 64
	if corruptAt < len(data) {
		data[corruptAt] ^= 0xFF
	}
	return data, nil
}

func writeEntry(zw *fixzip.Writer, name string, method uint16, data []byte) error {
	w, err := zw.CreateHeader(&fixzip.FileHeader{Name: name, Method: method})
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func writeXML(zw *fixzip.Writer, name string, doc *etree.Document) error {
	doc.Indent(0)
	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		return err
	}
	return writeEntry(zw, name, fixzip.Deflate, buf.Bytes())
}

func buildContainer() *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	container := doc.CreateElement("container")
	container.CreateAttr("version", "1.0")
	container.CreateAttr("xmlns", "urn:oasis:names:tc:opendocument:xmlns:container")
	rootfiles := container.CreateElement("rootfiles")
	rootfile := rootfiles.CreateElement("rootfile")
	rootfile.CreateAttr("full-path", "OEBPS/content.opf")
	rootfile.CreateAttr("media-type", "application/oebps-package+xml")
	return doc
}

func buildChapter(ch Chapter) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	html := doc.CreateElement("html")
	html.CreateAttr("xmlns", "http://www.w3.org/1999/xhtml")
	head := html.CreateElement("head")
	head.CreateElement("title").SetText(ch.Title)
	body := html.CreateElement("body")
	frag := etree.NewDocument()
	if err := frag.ReadFromString("<root>" + ch.Body + "</root>"); err == nil {
		if root := frag.Root(); root != nil {
			for _, child := range root.ChildElements() {
				body.AddChild(child.Copy())
			}
		}
	}
	return doc
}

func buildOPF(opts Options, bookID string, filenames []string) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	pkg := doc.CreateElement("package")
	pkg.CreateAttr("xmlns", "http://www.idpf.org/2007/opf")
	pkg.CreateAttr("unique-identifier", "BookId")
	if opts.EPUB3 {
		pkg.CreateAttr("version", "3.0")
	} else {
		pkg.CreateAttr("version", "2.0")
	}

	metadata := pkg.CreateElement("metadata")
	metadata.CreateAttr("xmlns:dc", "http://purl.org/dc/elements/1.1/")
	metadata.CreateAttr("xmlns:opf", "http://www.idpf.org/2007/opf")
	metadata.CreateElement("dc:title").SetText(opts.Title)
	id := metadata.CreateElement("dc:identifier")
	id.CreateAttr("id", "BookId")
	id.SetText(bookID)
	metadata.CreateElement("dc:language").SetText(opts.Language)

	manifest := pkg.CreateElement("manifest")
	if opts.EPUB3 {
		nav := manifest.CreateElement("item")
		nav.CreateAttr("id", "nav")
		nav.CreateAttr("href", "nav.xhtml")
		nav.CreateAttr("media-type", "application/xhtml+xml")
		nav.CreateAttr("properties", "nav")
	} else {
		ncx := manifest.CreateElement("item")
		ncx.CreateAttr("id", "ncx")
		ncx.CreateAttr("href", "toc.ncx")
		ncx.CreateAttr("media-type", "application/x-dtbncx+xml")
	}
	if opts.CSS != "" {
		css := manifest.CreateElement("item")
		css.CreateAttr("id", "stylesheet")
		css.CreateAttr("href", "stylesheet.css")
		css.CreateAttr("media-type", "text/css")
	}
	for i, name := range filenames {
		item := manifest.CreateElement("item")
		item.CreateAttr("id", fmt.Sprintf("chapter%d", i+1))
		item.CreateAttr("href", name)
		item.CreateAttr("media-type", "application/xhtml+xml")
	}

	spine := pkg.CreateElement("spine")
	if !opts.EPUB3 {
		spine.CreateAttr("toc", "ncx")
	}
	for i := range filenames {
		itemref := spine.CreateElement("itemref")
		itemref.CreateAttr("idref", fmt.Sprintf("chapter%d", i+1))
	}
	return doc
}

func buildNav(opts Options, filenames []string) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	html := doc.CreateElement("html")
	html.CreateAttr("xmlns", "http://www.w3.org/1999/xhtml")
	html.CreateAttr("xmlns:epub", "http://www.idpf.org/2007/ops")
	body := html.CreateElement("body")
	nav := body.CreateElement("nav")
	nav.CreateAttr("epub:type", "toc")
	ol := nav.CreateElement("ol")
	for i, ch := range opts.Chapters {
		li := ol.CreateElement("li")
		a := li.CreateElement("a")
		a.CreateAttr("href", filenames[i])
		a.SetText(ch.Title)
	}
	return doc
}

func buildNCX(opts Options, bookID string, filenames []string) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	ncx := doc.CreateElement("ncx")
	ncx.CreateAttr("xmlns", "http://www.daisy.org/z3986/2005/ncx/")
	head := ncx.CreateElement("head")
	meta := head.CreateElement("meta")
	meta.CreateAttr("name", "dtb:uid")
	meta.CreateAttr("content", bookID)
	ncx.CreateElement("docTitle").CreateElement("text").SetText(opts.Title)
	navMap := ncx.CreateElement("navMap")
	for i, ch := range opts.Chapters {
		navPoint := navMap.CreateElement("navPoint")
		navPoint.CreateAttr("id", fmt.Sprintf("navpoint-%d", i+1))
		navLabel := navPoint.CreateElement("navLabel")
		navLabel.CreateElement("text").SetText(ch.Title)
		content := navPoint.CreateElement("content")
		content.CreateAttr("src", filenames[i])
	}
	return doc
}
