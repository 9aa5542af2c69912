// Package resource implements component C4, the ResourceReader: bounded
// resolve-and-read of a manifest resource into a caller buffer, with
// UTF-8-safe truncation for text and exact-byte truncation for binary.
//
// Href resolution reuses hrefpath's zip-slip guard (generalized from
// archive/walker.go's isSafePath); the stream itself goes through
// zipfile.ReadEntryInto (C1).
package resource

import (
	"strings"
	"unicode/utf8"

	"github.com/h2non/filetype"

	"epubcore/epuberr"
	"epubcore/hrefpath"
	"epubcore/opf"
	"epubcore/zipfile"
)

// Reader resolves manifest hrefs and streams their content through a
// zipfile.Reader.
type Reader struct {
	zr         *zipfile.Reader
	pkg        *opf.Package
	itemByHref map[string]opf.ManifestItem
}

// New builds a Reader over an already-open archive and parsed package.
func New(zr *zipfile.Reader, pkg *opf.Package) *Reader {
	byHref := make(map[string]opf.ManifestItem, len(pkg.Manifest))
	for _, item := range pkg.Manifest {
		byHref[item.Href] = item
	}
	return &Reader{zr: zr, pkg: pkg, itemByHref: byHref}
}

// ReadInto resolves href against the package's OPF directory, looks it
// up in the manifest, and streams its content into buf. For text media
// types the returned length is truncated on a UTF-8 boundary when
// maxBytes would otherwise split a codepoint; truncated reports whether
// the entry's content was cut short. BufferTooSmall is returned only
// when buf cannot hold maxBytes bytes.
func (r *Reader) ReadInto(href string, buf []byte, maxBytes int, scratch *zipfile.Scratch) (n int, truncated bool, err error) {
	if maxBytes > len(buf) {
		return 0, false, epuberr.New(epuberr.BufferTooSmall, "buffer smaller than max_bytes")
	}

	path, _, rerr := hrefpath.Resolve(r.pkg.OPFDir, href)
	if rerr != nil {
		path = href
	}
	item, ok := r.itemByHref[path]
	if !ok {
		return 0, false, epuberr.WrapAt(epuberr.MissingResource, href, 0, nil)
	}

	w := &capWriter{buf: buf}
	readErr := r.zr.ReadEntryInto(item.Href, w, int64(maxBytes), scratch)
	if readErr != nil {
		if kind, ok := epuberr.KindOf(readErr); ok && kind == epuberr.FileTooLarge {
			n = w.n
			if isText(item.MediaType) {
				n = utf8SafeTruncate(buf[:n])
			}
			return n, true, nil
		}
		return w.n, false, readErr
	}
	return w.n, false, nil
}

// Item returns the manifest entry href resolves to.
func (r *Reader) Item(href string) (opf.ManifestItem, bool) {
	path, _, err := hrefpath.Resolve(r.pkg.OPFDir, href)
	if err != nil {
		path = href
	}
	item, ok := r.itemByHref[path]
	return item, ok
}

// SniffMismatch reports whether data's magic-byte-detected media type
// disagrees with declared, a desktop-tier optional cross-check (spec
// section 4.4 does not mandate it; embedded targets should skip this
// to avoid the extra header peek).
func SniffMismatch(declared string, data []byte) bool {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return false
	}
	return kind.MIME.Value != "" && !strings.EqualFold(kind.MIME.Value, declared)
}

func isText(mediaType string) bool {
	mt := strings.ToLower(mediaType)
	return strings.HasPrefix(mt, "text/") ||
		strings.Contains(mt, "xml") ||
		strings.Contains(mt, "html")
}

// utf8SafeTruncate trims b back to the last full rune boundary,
// returning the resulting length.
func utf8SafeTruncate(b []byte) int {
	if utf8.Valid(b) {
		return len(b)
	}
	n := len(b)
	for n > 0 {
		n--
		if utf8.RuneStart(b[n]) {
			break
		}
	}
	return n
}

type capWriter struct {
	buf []byte
	n   int
}

func (w *capWriter) Write(p []byte) (int, error) {
	if len(w.buf)-w.n < len(p) {
		return 0, epuberr.New(epuberr.BufferTooSmall, "resource exceeded buffer capacity")
	}
	copy(w.buf[w.n:], p)
	w.n += len(p)
	return len(p), nil
}
