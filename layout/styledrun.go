package layout

import (
	"fmt"

	"epubcore/style"
	"epubcore/token"
)

// event is the internal styled-event stream layout.Paginate consumes,
// spec.md section 3's "styled event": either a structural event or a
// StyledRun carrying text plus its computed style.
type event struct {
	kind eventKind

	// Text
	text  string
	style style.ComputedStyle

	// Heading
	level int

	// ListStart
	ordered bool

	// Image
	src, alt string

	// token offset this event was produced from, for page progress
	offset int
}

type eventKind int

const (
	evText eventKind = iota
	evParagraphBreak
	evHeadingStart
	evHeadingEnd
	evListStart
	evListEnd
	evListItemStart
	evListItemEnd
	evLineBreak
	evImage
)

// styleRunProducer walks a token stream and resolves a ComputedStyle for
// every run of text, synthesizing an element tag/class pair per token
// Kind since the tokenizer (component C5) already collapses raw XHTML
// elements into semantic token kinds and does not carry the original
// tag name or class list forward. The synthesized tag names mirror
// the tokenizer's own dispatch table (token/token.go's tag -> Kind
// mapping, read in reverse): Heading(level) -> "h1".."h6", Emphasis ->
// "em", Strong -> "strong", ListStart(ordered) -> "ul"/"ol".
type styleRunProducer struct {
	engine      *style.Engine
	stack       []style.ComputedStyle
	em          bool
	strong      bool
	headingOpen bool
}

func newStyleRunProducer(engine *style.Engine) *styleRunProducer {
	return &styleRunProducer{
		engine: engine,
		stack:  []style.ComputedStyle{style.Default()},
	}
}

func (p *styleRunProducer) current() style.ComputedStyle {
	return p.stack[len(p.stack)-1]
}

func (p *styleRunProducer) push(tag string) (style.ComputedStyle, error) {
	cs, err := p.engine.Compute(tag, nil, "", p.current())
	if err != nil {
		return style.ComputedStyle{}, err
	}
	p.stack = append(p.stack, cs)
	return cs, nil
}

func (p *styleRunProducer) pop() {
	if len(p.stack) > 1 {
		p.stack = p.stack[:len(p.stack)-1]
	}
}

// inlineStyle resolves the currently-active inline overlay (em/strong)
// on top of the current block style, without mutating the stack - text
// runs need this ephemeral computation, block elements don't.
func (p *styleRunProducer) inlineStyle() (style.ComputedStyle, error) {
	cs := p.current()
	if p.em {
		var err error
		if cs, err = p.engine.Compute("em", nil, "", cs); err != nil {
			return style.ComputedStyle{}, err
		}
	}
	if p.strong {
		var err error
		if cs, err = p.engine.Compute("strong", nil, "", cs); err != nil {
			return style.ComputedStyle{}, err
		}
	}
	return cs, nil
}

// produce converts one token into zero or more styled events, appending
// to out and returning the extended slice.
func (p *styleRunProducer) produce(tok token.Token, offset int, out []event) ([]event, error) {
	switch tok.Kind {
	case token.Text:
		cs, err := p.inlineStyle()
		if err != nil {
			return nil, err
		}
		return append(out, event{kind: evText, text: tok.Text, style: cs, offset: offset}), nil
	case token.ParagraphBreak:
		if p.headingOpen {
			p.pop()
			p.headingOpen = false
			return append(out, event{kind: evHeadingEnd, offset: offset}), nil
		}
		return append(out, event{kind: evParagraphBreak, offset: offset}), nil
	case token.Heading:
		tag := headingTag(tok.Level)
		cs, err := p.push(tag)
		if err != nil {
			return nil, err
		}
		p.headingOpen = true
		out = append(out, event{kind: evHeadingStart, level: tok.Level, style: cs, offset: offset})
		return out, nil
	case token.Emphasis:
		p.em = tok.On
		return out, nil
	case token.Strong:
		p.strong = tok.On
		return out, nil
	case token.ListStart:
		tag := "ul"
		if tok.Ordered {
			tag = "ol"
		}
		if _, err := p.push(tag); err != nil {
			return nil, err
		}
		return append(out, event{kind: evListStart, ordered: tok.Ordered, offset: offset}), nil
	case token.ListEnd:
		p.pop()
		return append(out, event{kind: evListEnd, offset: offset}), nil
	case token.ListItemStart:
		if _, err := p.push("li"); err != nil {
			return nil, err
		}
		return append(out, event{kind: evListItemStart, offset: offset}), nil
	case token.ListItemEnd:
		p.pop()
		return append(out, event{kind: evListItemEnd, offset: offset}), nil
	case token.LineBreak:
		return append(out, event{kind: evLineBreak, offset: offset}), nil
	case token.Image:
		return append(out, event{kind: evImage, src: tok.Src, alt: tok.Alt, offset: offset}), nil
	case token.LinkStart, token.LinkEnd:
		// Transparent to layout: links carry no visual styling of their
		// own beyond the text they wrap, which arrives as Text tokens.
		return out, nil
	default:
		return out, nil
	}
}

func headingTag(level int) string {
	if level < 1 {
		level = 1
	}
	if level > 6 {
		level = 6
	}
	return fmt.Sprintf("h%d", level)
}
