// Package opf implements component C2, the PackageParser: container.xml
// rootfile resolution and a SAX-driven OPF parse producing metadata,
// manifest, spine and cover-resolution data without ever building a DOM.
//
// The element-stack-bounded pull parse is grounded on css/parser.go's
// shape of driving a tdewolff/parse/v2 lexer with a explicit state
// switch; the cover-resolution precedence mirrors convert/epub/epub.go's
// writeOPF cover handling, read in reverse.
package opf

import (
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"epubcore/epuberr"
	"epubcore/hrefpath"
	"epubcore/limits"
	"epubcore/xmlsax"
)

// Metadata holds the Dublin Core fields the cascade and UI layer read.
// All fields are optional; the zero value means "not present".
type Metadata struct {
	Title       string
	Creators    []string
	Language    string
	Identifier  string
	Date        string
	Publisher   string
	Rights      string
	Description string
	Subjects    []string
}

// ManifestItem is one manifest entry, keyed by ID in Package.Manifest.
type ManifestItem struct {
	ID         string
	Href       string // resolved archive-relative path
	MediaType  string
	Properties []string
}

// SpineItem is one reading-order entry.
type SpineItem struct {
	ItemID     string
	Linear     bool
	Properties []string
}

// Package is the immutable-after-parse package view (spec section 3).
type Package struct {
	Metadata    Metadata
	Manifest    map[string]ManifestItem
	ManifestIDs []string // insertion order, mirrors the OPF's own order
	Spine       []SpineItem
	CoverItemID string // empty if unresolved
	OPFDir      string
}

// ResolveRootfile extracts the first rootfile's full-path from
// META-INF/container.xml. Per spec section 4.2 the first rootfile with
// media-type="application/oebps-package+xml" wins; if none declares
// that media type explicitly, the first rootfile is used.
func ResolveRootfile(containerXML []byte) (string, error) {
	sc := xmlsax.NewScanner(containerXML)
	var fallback, preferred string
	var inRootfile bool
	var fullPath, mediaType string

	for {
		ev, ok := sc.Next()
		if !ok {
			break
		}
		switch ev.Kind {
		case xmlsax.StartTag:
			if ev.Name == "rootfile" {
				inRootfile = true
				fullPath, mediaType = "", ""
			}
		case xmlsax.Attr:
			if inRootfile {
				switch ev.Name {
				case "full-path":
					fullPath = ev.Value
				case "media-type":
					mediaType = ev.Value
				}
			}
		case xmlsax.TagClose:
			if inRootfile && ev.Name == "rootfile" {
				inRootfile = false
				if fullPath == "" {
					continue
				}
				if fallback == "" {
					fallback = fullPath
				}
				if mediaType == "application/oebps-package+xml" && preferred == "" {
					preferred = fullPath
				}
			}
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	if preferred != "" {
		return preferred, nil
	}
	if fallback != "" {
		return fallback, nil
	}
	return "", epuberr.New(epuberr.Parse, "container.xml: no rootfile found")
}

const (
	sectionNone = iota
	sectionMetadata
	sectionManifest
	sectionSpine
	sectionGuide
)

// Parse reads the OPF document at opfDir/<rootfile-name> (opfDir is
// passed in already, the caller resolved it from the rootfile path) and
// builds the Package view. An unresolved cover item id is logged to log
// and cleared, not returned as an error. Duplicate manifest ids,
// unresolvable hrefs and manifest/spine cap hits are aggregated into
// the returned error, alongside the partially built Package.
func Parse(opfXML []byte, opfDir string, lim limits.PackageLimits, log *zap.Logger) (*Package, error) {
	pkg := &Package{
		Manifest: make(map[string]ManifestItem),
		OPFDir:   opfDir,
	}

	sc := xmlsax.NewScanner(opfXML)

	var stack []string
	section := sectionNone
	var textBuf string
	var currentTag string
	var attrs map[string]string
	var coverMetaID string   // EPUB2 <meta name="cover" content="ID">
	var coverPropertyID string // EPUB3 item with properties containing cover-image
	var warnings error

	pushSection := func(tag string) {
		switch tag {
		case "metadata":
			section = sectionMetadata
		case "manifest":
			section = sectionManifest
		case "spine":
			section = sectionSpine
		case "guide":
			section = sectionGuide
		}
	}
	popSection := func(tag string) {
		switch tag {
		case "metadata", "manifest", "spine", "guide":
			section = sectionNone
		}
	}

	for {
		ev, ok := sc.Next()
		if !ok {
			break
		}
		switch ev.Kind {
		case xmlsax.StartTag:
			if len(stack) >= lim.MaxElementStack {
				return nil, epuberr.Limit("package.max_element_stack")
			}
			stack = append(stack, ev.Name)
			currentTag = ev.Name
			attrs = make(map[string]string)
			textBuf = ""
			pushSection(ev.Name)

		case xmlsax.Attr:
			attrs[ev.Name] = ev.Value

		case xmlsax.TagClose:
			if ev.SelfClosing {
				handleElement(pkg, section, currentTag, attrs, "", lim, &coverMetaID, &coverPropertyID, &warnings)
				if len(stack) > 0 {
					stack = stack[:len(stack)-1]
				}
				popSection(currentTag)
			}

		case xmlsax.Text:
			textBuf += ev.Value

		case xmlsax.EndTag:
			handleElement(pkg, section, ev.Name, attrs, textBuf, lim, &coverMetaID, &coverPropertyID, &warnings)
			textBuf = ""
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			popSection(ev.Name)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	if coverPropertyID != "" {
		pkg.CoverItemID = coverPropertyID
	} else if coverMetaID != "" {
		pkg.CoverItemID = coverMetaID
	}
	if pkg.CoverItemID != "" {
		if _, ok := pkg.Manifest[pkg.CoverItemID]; !ok {
			if log != nil {
				log.Warn("unresolved cover item", zap.String("item_id", pkg.CoverItemID))
			}
			pkg.CoverItemID = ""
		}
	}

	for _, s := range pkg.Spine {
		if _, ok := pkg.Manifest[s.ItemID]; !ok {
			return nil, epuberr.New(epuberr.Parse, "spine references unknown item id: "+s.ItemID)
		}
	}

	return pkg, warnings
}

func handleElement(pkg *Package, section int, tag string, attrs map[string]string, text string, lim limits.PackageLimits, coverMetaID, coverPropertyID *string, warnings *error) {
	switch {
	case section == sectionMetadata:
		handleMetadata(pkg, tag, attrs, text, coverMetaID)
	case section == sectionManifest && tag == "item":
		handleManifestItem(pkg, attrs, lim, coverPropertyID, warnings)
	case section == sectionSpine && tag == "itemref":
		handleSpineItem(pkg, attrs, lim, warnings)
	}
}

func handleMetadata(pkg *Package, tag string, attrs map[string]string, text string, coverMetaID *string) {
	switch tag {
	case "title", "dc:title":
		if pkg.Metadata.Title == "" {
			pkg.Metadata.Title = text
		}
	case "creator", "dc:creator":
		pkg.Metadata.Creators = append(pkg.Metadata.Creators, text)
	case "language", "dc:language":
		if pkg.Metadata.Language == "" {
			pkg.Metadata.Language = text
		}
	case "identifier", "dc:identifier":
		if pkg.Metadata.Identifier == "" {
			pkg.Metadata.Identifier = text
		}
	case "date", "dc:date":
		if pkg.Metadata.Date == "" {
			pkg.Metadata.Date = text
		}
	case "publisher", "dc:publisher":
		if pkg.Metadata.Publisher == "" {
			pkg.Metadata.Publisher = text
		}
	case "rights", "dc:rights":
		if pkg.Metadata.Rights == "" {
			pkg.Metadata.Rights = text
		}
	case "description", "dc:description":
		if pkg.Metadata.Description == "" {
			pkg.Metadata.Description = text
		}
	case "subject", "dc:subject":
		pkg.Metadata.Subjects = append(pkg.Metadata.Subjects, text)
	case "meta":
		if attrs["name"] == "cover" {
			*coverMetaID = attrs["content"]
		}
	}
}

func handleManifestItem(pkg *Package, attrs map[string]string, lim limits.PackageLimits, coverPropertyID *string, warnings *error) {
	if len(pkg.ManifestIDs) >= lim.MaxManifestItems {
		*warnings = multierr.Append(*warnings, epuberr.Limit("package.max_manifest_items"))
		return
	}
	id := attrs["id"]
	if id == "" {
		return
	}
	if _, dup := pkg.Manifest[id]; dup {
		*warnings = multierr.Append(*warnings, epuberr.New(epuberr.Parse, "duplicate manifest id: "+id))
		return
	}

	href := attrs["href"]
	resolved, _, err := hrefpath.Resolve(pkg.OPFDir, href)
	if err != nil {
		*warnings = multierr.Append(*warnings, err)
		resolved = href
	}

	var props []string
	if p := attrs["properties"]; p != "" {
		props = splitSpace(p)
		if len(props) > 64 {
			props = props[:64]
		}
	}

	pkg.Manifest[id] = ManifestItem{
		ID:         id,
		Href:       resolved,
		MediaType:  attrs["media-type"],
		Properties: props,
	}
	pkg.ManifestIDs = append(pkg.ManifestIDs, id)

	for _, p := range props {
		if p == "cover-image" {
			*coverPropertyID = id
		}
	}
}

func handleSpineItem(pkg *Package, attrs map[string]string, lim limits.PackageLimits, warnings *error) {
	if len(pkg.Spine) >= lim.MaxSpineItems {
		*warnings = multierr.Append(*warnings, epuberr.Limit("package.max_spine_items"))
		return
	}
	idref := attrs["idref"]
	if idref == "" {
		return
	}
	linear := attrs["linear"] != "no"
	var props []string
	if p := attrs["properties"]; p != "" {
		props = splitSpace(p)
	}
	pkg.Spine = append(pkg.Spine, SpineItem{ItemID: idref, Linear: linear, Properties: props})
}

func splitSpace(s string) []string {
	var out []string
	start := -1
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' || s[i] == '\t' || s[i] == '\n' {
			if start >= 0 {
				out = append(out, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, s[start:])
	}
	return out
}
