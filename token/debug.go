package token

import (
	"fmt"

	"epubcore/utils/debug"
)

// kindLabel maps a Kind to the name used in Dump output. Kind has no
// String() method of its own; the label table lives here rather than on
// Kind since it exists solely for the dump, not for production code.
var kindLabel = map[Kind]string{
	Text:           "Text",
	ParagraphBreak: "ParagraphBreak",
	Heading:        "Heading",
	ListStart:      "ListStart",
	ListItemStart:  "ListItemStart",
	ListItemEnd:    "ListItemEnd",
	ListEnd:        "ListEnd",
	Emphasis:       "Emphasis",
	Strong:         "Strong",
	LinkStart:      "LinkStart",
	LinkEnd:        "LinkEnd",
	Image:          "Image",
	LineBreak:      "LineBreak",
}

func (k Kind) label() string {
	if s, ok := kindLabel[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Dump renders a token stream as an indented tree, nesting under
// ListStart/ListItemStart and unnesting on their *End counterparts, so a
// reviewer can see structural mistakes (an unbalanced list, a stray
// LinkEnd) at a glance. It exists solely for manual inspection, the
// same role fb2.FictionBook.String plays for the teacher's parse tree.
func Dump(tokens []Token) string {
	tw := debug.NewTreeWriter()
	depth := 0
	for i, t := range tokens {
		switch t.Kind {
		case ListItemEnd, ListEnd:
			if depth > 0 {
				depth--
			}
		}

		switch t.Kind {
		case Text:
			tw.TextBlock(depth, fmt.Sprintf("Text[%d]", i), t.Text)
		case Heading:
			tw.Line(depth, "Heading[%d] level=%d", i, t.Level)
		case ListStart:
			tw.Line(depth, "ListStart[%d] ordered=%t", i, t.Ordered)
		case Emphasis:
			tw.Line(depth, "Emphasis[%d] on=%t", i, t.On)
		case Strong:
			tw.Line(depth, "Strong[%d] on=%t", i, t.On)
		case LinkStart:
			tw.Line(depth, "LinkStart[%d] href=%q", i, t.Href)
		case Image:
			tw.Line(depth, "Image[%d] src=%q alt=%q", i, t.Src, t.Alt)
		default:
			tw.Line(depth, "%s[%d]", t.Kind.label(), i)
		}

		switch t.Kind {
		case ListStart, ListItemStart:
			depth++
		}
	}
	return tw.String()
}
