// Package render implements component C8, RenderIR: the stable,
// append-only draw-command vocabulary LayoutEngine emits and any
// backend consumes. There is no third-party dependency here by design
// (spec.md section 4.8 specifies the command set directly and keeps
// concrete draw backends out of scope) - this package is plain
// structs, same as the teacher carries no runtime vocabulary type for
// its own output formats (EPUB/KFX markup is generated and discarded
// in the same pass, never held as an intermediate command list).
package render

import "epubcore/common"

// CommandKind tags which fields of Command are populated.
type CommandKind int

const (
	DrawText CommandKind = iota
	DrawImageRef
	DrawRule
	PageHeader
	PageFooter
)

// Command is one entry in a page's append-only command vector
// (spec.md section 3's DrawCommand sum type, flattened into one
// struct rather than an interface - the page holds one Command slice,
// never a mix of boxed values, keeping command iteration allocation-
// free for a backend).
type Command struct {
	Kind CommandKind

	// DrawText
	X, Y, Baseline float64
	Text           string
	FontID         int
	Weight         int
	Italic         bool
	TrackingPx     float64

	// DrawImageRef (W, H reuse DrawText's absence of those fields)
	W, H     float64
	Src, Alt string

	// DrawRule
	X0, Y0, X1, Y1, Thickness float64

	// PageHeader / PageFooter
	Align        common.TextAlign
	HasProgress  bool
	ProgressNum  int
	ProgressDen  int
}

// PageMeta carries the progress and token-range bookkeeping spec.md
// section 3 requires alongside a sealed page's commands.
type PageMeta struct {
	ProgressNum       int
	ProgressDen       int
	FirstTokenOffset  int
	LastTokenOffset   int
}

// Page is one sealed, emitted page: spec.md section 3's render page
// record. Commands is the single command vector - no mirrored buffer.
type Page struct {
	PageIndex    int
	ChapterIndex int
	Commands     []Command
	Meta         PageMeta
}
