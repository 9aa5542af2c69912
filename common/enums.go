// Package common holds small value types shared across every package in
// the module: enums, alignments and similar leaf vocabulary that would
// otherwise create import cycles if they lived next to their main
// consumer.
package common

import "fmt"

// TextAlign is the resolved horizontal alignment of a paragraph or line.
type TextAlign int

const (
	AlignLeft TextAlign = iota
	AlignCenter
	AlignRight
	AlignJustify
)

func (a TextAlign) String() string {
	switch a {
	case AlignLeft:
		return "left"
	case AlignCenter:
		return "center"
	case AlignRight:
		return "right"
	case AlignJustify:
		return "justify"
	default:
		return fmt.Sprintf("TextAlign(%d)", int(a))
	}
}

// JustifyMode controls whether and how a line's inter-word space is
// stretched to fill the column width.
type JustifyMode int

const (
	JustifyNone JustifyMode = iota
	JustifyInterWord
	JustifyAdaptiveInterWord
)

func (m JustifyMode) String() string {
	switch m {
	case JustifyNone:
		return "none"
	case JustifyInterWord:
		return "inter-word"
	case JustifyAdaptiveInterWord:
		return "adaptive-inter-word"
	default:
		return fmt.Sprintf("JustifyMode(%d)", int(m))
	}
}

// SoftHyphenPolicy controls whether U+00AD soft hyphens already present
// in source text are honored as break candidates.
type SoftHyphenPolicy int

const (
	SoftHyphenRespect SoftHyphenPolicy = iota
	SoftHyphenIgnore
)

func (p SoftHyphenPolicy) String() string {
	if p == SoftHyphenIgnore {
		return "ignore"
	}
	return "respect"
}

// EntryMethod is the ZIP compression method of an archive entry. Only
// Stored and Deflate are supported; anything else is Unsupported.
type EntryMethod uint16

const (
	MethodStored  EntryMethod = 0
	MethodDeflate EntryMethod = 8
)

func (m EntryMethod) String() string {
	switch m {
	case MethodStored:
		return "stored"
	case MethodDeflate:
		return "deflate"
	default:
		return fmt.Sprintf("method(%d)", uint16(m))
	}
}

// Supported reports whether the core's ZipReader can stream this method.
func (m EntryMethod) Supported() bool {
	return m == MethodStored || m == MethodDeflate
}

// TocKind classifies a flattened navigation entry.
type TocKind int

const (
	TocEntry TocKind = iota
	PageListEntry
	LandmarkEntry
)

func (k TocKind) String() string {
	switch k {
	case TocEntry:
		return "toc"
	case PageListEntry:
		return "page-list"
	case LandmarkEntry:
		return "landmark"
	default:
		return fmt.Sprintf("TocKind(%d)", int(k))
	}
}
