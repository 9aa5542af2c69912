// Package hrefpath resolves manifest/nav hrefs against their containing
// document's directory inside the archive, rejecting anything that
// would escape the archive root. The zip-slip guard is the same shape
// as archive/walker.go's isSafePath, generalized from "is this zip
// entry name safe" to "does this relative href, once joined and
// normalized, stay within the archive".
package hrefpath

import (
	"strings"

	"epubcore/epuberr"
)

// Resolve joins href against baseDir (the directory of the document
// that referenced it, archive-relative with no leading slash) and
// normalizes "." and ".." segments. Fragment identifiers are split off
// and returned separately rather than merged into the path, per
// spec section 4.3's "preserved as a separate field" rule.
func Resolve(baseDir, href string) (path, fragment string, err error) {
	href, fragment = splitFragment(href)
	if href == "" {
		return "", fragment, nil
	}
	if isAbsolute(href) {
		return "", fragment, epuberr.New(epuberr.Parse, "href must be archive-relative: "+href)
	}

	joined := href
	if baseDir != "" {
		joined = baseDir + "/" + href
	}

	normalized, ok := normalize(joined)
	if !ok {
		return "", fragment, epuberr.New(epuberr.Parse, "href escapes archive root: "+href)
	}
	return normalized, fragment, nil
}

// Dir returns the archive-relative directory containing path ("" for a
// root-level file).
func Dir(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return ""
}

func splitFragment(href string) (path, fragment string) {
	if i := strings.IndexByte(href, '#'); i >= 0 {
		return href[:i], href[i+1:]
	}
	return href, ""
}

func isAbsolute(p string) bool {
	return strings.HasPrefix(p, "/") || strings.HasPrefix(p, `\`) || strings.Contains(p, "://")
}

// normalize resolves "." and ".." segments without ever escaping above
// the archive root; returns ok=false if it would.
func normalize(p string) (string, bool) {
	parts := strings.Split(p, "/")
	stack := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			if len(stack) == 0 {
				return "", false
			}
			stack = stack[:len(stack)-1]
		default:
			stack = append(stack, part)
		}
	}
	return strings.Join(stack, "/"), true
}
