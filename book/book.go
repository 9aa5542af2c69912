// Package book ties components C1-C4 together into the single handle a
// caller opens once per archive: the ZIP reader, the parsed package
// view, the (possibly lazy) navigation table and the resource reader,
// plus the scratch memory they share.
//
// Grounded on state/env.go's LocalEnv: one struct owning everything the
// rest of the program needs, with a context.Context-keyed accessor for
// callers (like cmd/epubcore) that thread a book handle through request
// handling instead of passing it explicitly.
package book

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"epubcore/config"
	"epubcore/epuberr"
	"epubcore/navdoc"
	"epubcore/opf"
	"epubcore/resource"
	"epubcore/style"
	"epubcore/token"
	"epubcore/zipfile"
)

// maxOPFBytes bounds the OPF package document read into memory. Unlike
// the element/manifest/spine counts in limits.PackageLimits, spec.md
// never caps the OPF's own byte size directly, so a generous fixed
// ceiling is used here instead of growing the Policy surface for a
// single call site.
const maxOPFBytes = 8 << 20

// maxChapterBytes bounds one spine item's XHTML plus the manifest's
// combined stylesheets, read whole into memory for tokenizing and
// cascade resolution - the same "fixed generous ceiling, not a Policy
// knob" reasoning as maxOPFBytes.
const maxChapterBytes = 8 << 20

const navMediaTypeNCX = "application/x-dtbncx+xml"
const cssMediaType = "text/css"

type bookKey struct{}

// Book is the opened-archive handle: spec.md section 5's "the caller
// holds one Book handle per open archive."
type Book struct {
	Cfg *config.Config
	Rpt *config.Report
	Log *zap.Logger

	Zip       *zipfile.Reader
	Package   *opf.Package
	Resources *resource.Reader

	scratch *zipfile.Scratch
	closer  io.Closer

	navHref string // manifest href of the resolved nav/NCX document, "" if none
	nav     *navdoc.Nav

	start time.Time
}

// Open parses container.xml, resolves and parses the OPF package, and
// (unless cfg.Open.LazyNavigation is set) eagerly parses the navigation
// document. src must outlive the returned Book; if src also implements
// io.Closer, Book.Close closes it.
func Open(src zipfile.ByteSource, cfg *config.Config, rpt *config.Report, log *zap.Logger) (*Book, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = zap.NewNop()
	}

	zr, err := zipfile.Open(src, cfg.Open.Limits.Zip)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}

	scratch := zipfile.NewScratch(cfg.Open.Limits.Chunk.ReadChunkBytes)

	containerEntry, ok := zr.Find("META-INF/container.xml")
	if !ok {
		err := epuberr.New(epuberr.MissingResource, "META-INF/container.xml")
		bundleDiagnostics(rpt, "META-INF-container.xml", nil, err)
		return nil, err
	}
	containerXML, err := readEntry(zr, containerEntry.Name, maxOPFBytes, scratch)
	if err != nil {
		return nil, fmt.Errorf("reading container.xml: %w", err)
	}

	rootfile, err := opf.ResolveRootfile(containerXML)
	if err != nil {
		bundleDiagnostics(rpt, "META-INF-container.xml", containerXML, err)
		return nil, fmt.Errorf("resolving rootfile: %w", err)
	}

	opfXML, err := readEntry(zr, rootfile, maxOPFBytes, scratch)
	if err != nil {
		return nil, fmt.Errorf("reading package document %s: %w", rootfile, err)
	}

	pkg, err := opf.Parse(opfXML, dirOf(rootfile), cfg.Open.Limits.Package, log.Named("opf"))
	if err != nil {
		bundleDiagnostics(rpt, rootfile, opfXML, err)
		return nil, fmt.Errorf("parsing package document %s: %w", rootfile, err)
	}

	b := &Book{
		Cfg:       cfg,
		Rpt:       rpt,
		Log:       log,
		Zip:       zr,
		Package:   pkg,
		Resources: resource.New(zr, pkg),
		scratch:   scratch,
		navHref:   resolveNavHref(pkg),
		start:     time.Now(),
	}
	if c, ok := src.(io.Closer); ok {
		b.closer = c
	}

	if !cfg.Open.LazyNavigation {
		if _, err := b.Nav(); err != nil {
			return nil, fmt.Errorf("parsing navigation document: %w", err)
		}
	}
	return b, nil
}

// Nav returns the parsed navigation table, parsing it on first call
// when cfg.Open.LazyNavigation is set (spec.md section 6's
// "lazy_navigation" knob). Returns an empty, non-nil Nav if the package
// declares neither a nav document nor an NCX.
func (b *Book) Nav() (*navdoc.Nav, error) {
	if b.nav != nil {
		return b.nav, nil
	}
	if b.navHref == "" {
		b.nav = &navdoc.Nav{}
		return b.nav, nil
	}

	data, err := readEntry(b.Zip, b.navHref, maxOPFBytes, b.scratch)
	if err != nil {
		return nil, fmt.Errorf("reading navigation document %s: %w", b.navHref, err)
	}

	item, _ := b.Resources.Item(b.navHref)
	var nav *navdoc.Nav
	if item.MediaType == navMediaTypeNCX {
		nav, err = navdoc.ParseNCX(data, dirOf(b.navHref), b.Cfg.Open.Limits.Nav)
	} else {
		nav, err = navdoc.ParseXHTMLNav(data, dirOf(b.navHref), b.Cfg.Open.Limits.Nav)
	}
	if err != nil {
		bundleDiagnostics(b.Rpt, b.navHref, data, err)
		return nil, err
	}
	b.nav = nav
	return nav, nil
}

// Uptime reports how long the book has been open.
func (b *Book) Uptime() time.Duration {
	return time.Since(b.start)
}

// Close releases the underlying archive source (if it is an io.Closer)
// and finalizes the diagnostics report, if one was requested.
func (b *Book) Close() error {
	var err error
	if b.closer != nil {
		err = b.closer.Close()
	}
	if rptErr := b.Rpt.Close(); rptErr != nil {
		if err == nil {
			err = rptErr
		}
	}
	return err
}

func readEntry(zr *zipfile.Reader, name string, maxBytes int64, scratch *zipfile.Scratch) ([]byte, error) {
	var buf growBuffer
	if err := zr.ReadEntryInto(name, &buf, maxBytes, scratch); err != nil {
		return nil, err
	}
	return buf.data, nil
}

var diagSeq atomic.Uint64

// bundleDiagnostics stores the failing resource's raw bytes alongside the
// causing error's context into rpt (when a debug report was requested),
// so a failed Open/Chapter run leaves behind exactly what's needed to
// reproduce the failure rather than a log line someone has to match
// back to an archive by hand. Only Parse and MissingResource failures
// are captured: I/O, zip-format and limit errors already describe
// themselves adequately via Error(), per spec.md section 7, and
// bundling every failure kind would mean re-storing archive bytes on
// ordinary truncation/corruption errors that carry no useful context.
func bundleDiagnostics(rpt *config.Report, label string, data []byte, cause error) {
	if rpt == nil || cause == nil {
		return
	}
	kind, ok := epuberr.KindOf(cause)
	if !ok || (kind != epuberr.Parse && kind != epuberr.MissingResource) {
		return
	}
	seq := diagSeq.Add(1)
	base := fmt.Sprintf("diagnostics/%04d-%s", seq, label)
	if len(data) > 0 {
		rpt.StoreData(base, data)
	}
	rpt.StoreData(base+".error.txt", []byte(cause.Error()))
}

// growBuffer is a minimal io.Writer sink for the handful of
// whole-document reads Open performs (container.xml, the OPF, the nav
// document): these are parsed once per archive, not streamed per spec
// section 4's per-chapter budget, so an allocating sink is acceptable
// here in a way it would not be inside the tokenizer's hot path.
type growBuffer struct{ data []byte }

func (g *growBuffer) Write(p []byte) (int, error) {
	g.data = append(g.data, p...)
	return len(p), nil
}

// Chapter is one spine item, fully resolved through components C4-C6:
// its token stream and the style engine the cascade was computed
// against. Index is the item's position in Package.Spine, used as
// render.Page.ChapterIndex; layout's progress denominator is
// len(Tokens).
type Chapter struct {
	Index  int
	Href   string
	Tokens []token.Token
	Style  *style.Engine
}

// Chapter reads, tokenizes and resolves the style cascade for the
// spine item at index, per spec.md section 5's "one chapter resident
// at a time" model: callers render one Chapter, discard it, and move
// to the next rather than holding the whole book's token streams at
// once.
func (b *Book) Chapter(index int) (*Chapter, error) {
	if index < 0 || index >= len(b.Package.Spine) {
		return nil, epuberr.New(epuberr.Parse, "spine index out of range")
	}
	item, ok := b.Package.Manifest[b.Package.Spine[index].ItemID]
	if !ok {
		return nil, epuberr.New(epuberr.MissingResource, b.Package.Spine[index].ItemID)
	}

	xhtml, err := readEntry(b.Zip, item.Href, maxChapterBytes, b.scratch)
	if err != nil {
		return nil, fmt.Errorf("reading chapter %s: %w", item.Href, err)
	}

	css, err := b.collectCSS()
	if err != nil {
		return nil, fmt.Errorf("reading stylesheets: %w", err)
	}
	styleEngine, err := style.New(css, b.Cfg.Open.Limits.Style, b.Log.Named("style"))
	if err != nil {
		bundleDiagnostics(b.Rpt, "stylesheet", css, err)
		return nil, fmt.Errorf("building style engine for %s: %w", item.Href, err)
	}

	tokens, err := token.Collect(xhtml, b.Cfg.Open.Limits.Tokenize)
	if err != nil {
		bundleDiagnostics(b.Rpt, item.Href, xhtml, err)
		return nil, fmt.Errorf("tokenizing chapter %s: %w", item.Href, err)
	}

	return &Chapter{Index: index, Href: item.Href, Tokens: tokens, Style: styleEngine}, nil
}

// collectCSS concatenates every manifest entry whose declared media
// type is text/css, in manifest order, into one stylesheet - the
// book's full cascade source, since spec.md's StyleEngine takes one
// CSS buffer rather than per-document includes.
func (b *Book) collectCSS() ([]byte, error) {
	var out []byte
	for _, id := range b.Package.ManifestIDs {
		item := b.Package.Manifest[id]
		if item.MediaType != cssMediaType {
			continue
		}
		data, err := readEntry(b.Zip, item.Href, maxChapterBytes, b.scratch)
		if err != nil {
			return nil, fmt.Errorf("reading stylesheet %s: %w", item.Href, err)
		}
		out = append(out, data...)
		out = append(out, '\n')
	}
	return out, nil
}

func resolveNavHref(pkg *opf.Package) string {
	for _, id := range pkg.ManifestIDs {
		item := pkg.Manifest[id]
		for _, prop := range item.Properties {
			if prop == "nav" {
				return item.Href
			}
		}
	}
	for _, id := range pkg.ManifestIDs {
		item := pkg.Manifest[id]
		if item.MediaType == navMediaTypeNCX {
			return item.Href
		}
	}
	return ""
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return ""
}

// ContextWithBook returns a context carrying b, for handlers (like
// cmd/epubcore's command tree) that thread the open book through
// context instead of an explicit parameter.
func ContextWithBook(ctx context.Context, b *Book) context.Context {
	return context.WithValue(ctx, bookKey{}, b)
}

// FromContext retrieves the book stored by ContextWithBook. It panics
// if none is present: a handler reached without an open book is a
// wiring bug, not a runtime condition to recover from.
func FromContext(ctx context.Context) *Book {
	if b, ok := ctx.Value(bookKey{}).(*Book); ok {
		return b
	}
	panic("book: no Book in context")
}
