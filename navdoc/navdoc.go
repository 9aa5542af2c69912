// Package navdoc implements component C3, the NavigationParser: a
// lazy, flat depth-tagged table of contents parsed from either an
// EPUB 3 XHTML nav document or a legacy NCX, exposing the same shape
// either way.
//
// Neither source document has a direct teacher equivalent in the read
// direction (fbc only ever writes NCX/NAV); the element shapes this
// package parses against are convert/epub/epub.go's writeNCX/writeNav
// read in reverse — navMap/navPoint/navLabel, <nav epub:type="toc">
// with nested <ol>/<li>.
package navdoc

import (
	"epubcore/common"
	"epubcore/epuberr"
	"epubcore/hrefpath"
	"epubcore/limits"
	"epubcore/xmlsax"
)

// Entry is one flattened, depth-tagged navigation node (spec section 3).
type Entry struct {
	Depth    int
	Title    string
	Href     string
	Fragment string
	Kind     common.TocKind
}

// Nav holds the three kind-tagged segments a nav document or NCX can
// produce.
type Nav struct {
	Toc       []Entry
	PageList  []Entry
	Landmarks []Entry
}

// ParseXHTMLNav parses an EPUB 3 navigation document.
func ParseXHTMLNav(data []byte, baseDir string, lim limits.NavLimits) (*Nav, error) {
	sc := xmlsax.NewScanner(data)
	nav := &Nav{}

	var (
		inNav       bool
		navKind     common.TocKind
		haveKind    bool
		depth       int
		stack       []string
		inAnchor    bool
		anchorHref  string
		anchorTitle string
		total       int
	)

	target := func() *[]Entry {
		switch navKind {
		case common.PageListEntry:
			return &nav.PageList
		case common.LandmarkEntry:
			return &nav.Landmarks
		default:
			return &nav.Toc
		}
	}

	appendEntry := func(title, href string) error {
		if total >= lim.MaxNavEntries {
			return epuberr.Limit("nav.max_nav_entries")
		}
		total++
		path, frag, err := hrefpath.Resolve(baseDir, href)
		if err != nil {
			path, frag = href, ""
		}
		t := target()
		*t = append(*t, Entry{Depth: depth, Title: title, Href: path, Fragment: frag, Kind: navKind})
		return nil
	}

	for {
		ev, ok := sc.Next()
		if !ok {
			break
		}
		switch ev.Kind {
		case xmlsax.StartTag:
			stack = append(stack, ev.Name)
			switch ev.Name {
			case "nav":
				inNav = true
				haveKind = false
			case "ol":
				if inNav {
					depth++
					if depth > lim.MaxNavDepth {
						return nil, epuberr.Limit("nav.max_nav_depth")
					}
				}
			case "a":
				if inNav {
					inAnchor = true
					anchorHref = ""
					anchorTitle = ""
				}
			}
		case xmlsax.Attr:
			if len(stack) == 0 {
				continue
			}
			top := stack[len(stack)-1]
			if top == "nav" && (ev.Name == "epub:type" || ev.Name == "type") {
				navKind = kindFromEpubType(ev.Value)
				haveKind = true
			}
			if top == "a" && ev.Name == "href" {
				anchorHref = ev.Value
			}
		case xmlsax.Text:
			if inAnchor {
				anchorTitle += ev.Value
			}
		case xmlsax.TagClose:
			if ev.SelfClosing && len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xmlsax.EndTag:
			switch ev.Name {
			case "nav":
				inNav = false
				haveKind = false
			case "ol":
				if inNav && depth > 0 {
					depth--
				}
			case "a":
				if inAnchor {
					inAnchor = false
					if haveKind {
						if err := appendEntry(anchorTitle, anchorHref); err != nil {
							return nil, err
						}
					}
				}
			}
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return nav, nil
}

func kindFromEpubType(v string) common.TocKind {
	switch {
	case contains(v, "page-list"):
		return common.PageListEntry
	case contains(v, "landmarks"):
		return common.LandmarkEntry
	default:
		return common.TocEntry
	}
}

func contains(haystack, needle string) bool {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return needle == ""
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

// ParseNCX parses a legacy toc.ncx, producing only the Toc segment;
// NCX has no page-list/landmarks equivalent this parser models.
func ParseNCX(data []byte, baseDir string, lim limits.NavLimits) (*Nav, error) {
	sc := xmlsax.NewScanner(data)
	nav := &Nav{}

	var (
		depth       int
		total       int
		inText      bool
		inLabel     bool
		label       string
		contentSrc  string
		pendingOpen bool // a navPoint is open, waiting for its navLabel+content before children
	)

	for {
		ev, ok := sc.Next()
		if !ok {
			break
		}
		switch ev.Kind {
		case xmlsax.StartTag:
			switch ev.Name {
			case "navPoint":
				depth++
				if depth > lim.MaxNavDepth {
					return nil, epuberr.Limit("nav.max_nav_depth")
				}
				label, contentSrc = "", ""
				pendingOpen = true
			case "navLabel":
				inLabel = true
			case "text":
				if inLabel {
					inText = true
				}
			}
		case xmlsax.Attr:
			if ev.Name == "src" {
				contentSrc = ev.Value
			}
		case xmlsax.Text:
			if inText {
				label += ev.Value
			}
		case xmlsax.TagClose:
			if ev.Name == "content" && ev.SelfClosing && pendingOpen {
				if total >= lim.MaxNavEntries {
					return nil, epuberr.Limit("nav.max_nav_entries")
				}
				total++
				path, frag, _ := hrefpath.Resolve(baseDir, contentSrc)
				nav.Toc = append(nav.Toc, Entry{Depth: depth - 1, Title: label, Href: path, Fragment: frag, Kind: common.TocEntry})
				pendingOpen = false
			}
		case xmlsax.EndTag:
			switch ev.Name {
			case "text":
				inText = false
			case "navLabel":
				inLabel = false
			case "navPoint":
				if depth > 0 {
					depth--
				}
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return nav, nil
}
