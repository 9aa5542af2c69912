// Package token implements component C5, the Tokenizer: a SAX-driven
// conversion of one buffered XHTML chapter into a typed token stream
// with bounded element nesting and coalesced text runs.
//
// The element-dispatch-table shape (tag name -> emitted token) mirrors
// convert/epub/xhtml.go's writeFlowItemsWithContext tag switch, inverted
// from "build an element for this source node" to "emit a token for
// this XHTML element".
package token

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"unicode"
	"unicode/utf8"

	"epubcore/epuberr"
	"epubcore/limits"
	"epubcore/xmlsax"
)

// Kind is the token stream's sum-type tag (spec section 3).
type Kind int

const (
	Text Kind = iota
	ParagraphBreak
	Heading
	ListStart
	ListItemStart
	ListItemEnd
	ListEnd
	Emphasis
	Strong
	LinkStart
	LinkEnd
	Image
	LineBreak
)

// Token is one emitted event. Only the fields relevant to Kind are
// populated; the rest are zero.
type Token struct {
	Kind     Kind
	Text     string // Text
	Level    int    // Heading: 1..6
	Ordered  bool   // ListStart
	On       bool   // Emphasis, Strong
	Href     string // LinkStart
	Src, Alt string // Image
}

var skipSubtree = map[string]bool{
	"script": true, "style": true, "head": true, "nav": true,
	"header": true, "footer": true, "aside": true, "noscript": true,
}

var blockElements = map[string]bool{"p": true, "div": true}

// Sink receives one token at a time; returning cont=false stops
// tokenizing early without error (the streaming API, spec section 2).
type Sink func(Token) (cont bool, err error)

// Tokenize SAX-drives data, calling sink for every emitted token and
// enforcing lim's bounds. It never panics on malformed input.
func Tokenize(data []byte, lim limits.TokenizeLimits, sink Sink) error {
	sc := xmlsax.NewScanner(data)

	var (
		stack        []string
		skipDepth    int
		tokenCount   int
		textBuf      strings.Builder
		atBlockStart = true
		pendingHref  string
		pendingAlt   string
		pendingSrc   string
		inAnchor     bool
		anchorOpened bool
		inImg        bool
	)

	emit := func(tok Token) (bool, error) {
		if tokenCount >= lim.MaxTokens {
			return false, epuberr.Limit("tokenize.max_tokens")
		}
		tokenCount++
		return sink(tok)
	}

	flushText := func() (bool, error) {
		s := collapseWhitespace(textBuf.String())
		textBuf.Reset()
		if s == "" {
			return true, nil
		}
		for len(s) > lim.MaxTextBytes {
			cut := safeCut(s, lim.MaxTextBytes)
			cont, err := emit(Token{Kind: Text, Text: s[:cut]})
			if err != nil || !cont {
				return cont, err
			}
			s = s[cut:]
		}
		return emit(Token{Kind: Text, Text: s})
	}

	for {
		ev, ok := sc.Next()
		if !ok {
			break
		}
		switch ev.Kind {
		case xmlsax.StartTag:
			if len(stack) >= lim.MaxNesting {
				return epuberr.Limit("tokenize.max_nesting")
			}
			stack = append(stack, ev.Name)

			if skipDepth > 0 {
				if skipSubtree[ev.Name] {
					skipDepth++
				}
				continue
			}
			if skipSubtree[ev.Name] {
				skipDepth = 1
				continue
			}

			switch {
			case blockElements[ev.Name]:
				if cont, err := flushText(); err != nil || !cont {
					return err
				}
				if !atBlockStart {
					if cont, err := emit(Token{Kind: ParagraphBreak}); err != nil || !cont {
						return err
					}
				}
				atBlockStart = true
			case isHeading(ev.Name):
				if cont, err := flushText(); err != nil || !cont {
					return err
				}
				if cont, err := emit(Token{Kind: Heading, Level: int(ev.Name[1] - '0')}); err != nil || !cont {
					return err
				}
				atBlockStart = false
			case ev.Name == "em" || ev.Name == "i":
				if cont, err := flushText(); err != nil || !cont {
					return err
				}
				if cont, err := emit(Token{Kind: Emphasis, On: true}); err != nil || !cont {
					return err
				}
			case ev.Name == "strong" || ev.Name == "b":
				if cont, err := flushText(); err != nil || !cont {
					return err
				}
				if cont, err := emit(Token{Kind: Strong, On: true}); err != nil || !cont {
					return err
				}
			case ev.Name == "br":
				if cont, err := flushText(); err != nil || !cont {
					return err
				}
				if cont, err := emit(Token{Kind: LineBreak}); err != nil || !cont {
					return err
				}
			case ev.Name == "ul" || ev.Name == "ol":
				if cont, err := flushText(); err != nil || !cont {
					return err
				}
				if cont, err := emit(Token{Kind: ListStart, Ordered: ev.Name == "ol"}); err != nil || !cont {
					return err
				}
				atBlockStart = true
			case ev.Name == "li":
				if cont, err := flushText(); err != nil || !cont {
					return err
				}
				if cont, err := emit(Token{Kind: ListItemStart}); err != nil || !cont {
					return err
				}
				atBlockStart = true
			case ev.Name == "a":
				inAnchor = true
				anchorOpened = false
				pendingHref = ""
			case ev.Name == "img":
				inImg = true
				pendingSrc, pendingAlt = "", ""
			}

		case xmlsax.Attr:
			if skipDepth > 0 {
				continue
			}
			if inAnchor && ev.Name == "href" {
				pendingHref = ev.Value
			}
			if inImg {
				switch ev.Name {
				case "src":
					pendingSrc = ev.Value
				case "alt":
					pendingAlt = ev.Value
				}
			}

		case xmlsax.Text:
			if skipDepth == 0 {
				textBuf.WriteString(ev.Value)
			}

		case xmlsax.TagClose:
			if ev.Name == "a" && inAnchor && ev.SelfClosing {
				inAnchor = false
				anchorOpened = false
			}
			if ev.Name == "img" {
				if skipDepth == 0 && pendingSrc != "" {
					if cont, err := flushText(); err != nil || !cont {
						return err
					}
					if cont, err := emit(Token{Kind: Image, Src: pendingSrc, Alt: pendingAlt}); err != nil || !cont {
						return err
					}
					atBlockStart = false
				}
				inImg = false
			}
			if ev.SelfClosing && len(stack) > 0 {
				name := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if skipDepth > 0 && skipSubtree[name] {
					skipDepth--
				}
			}
			if ev.Name == "a" && inAnchor && skipDepth == 0 && pendingHref != "" {
				if cont, err := flushText(); err != nil || !cont {
					return err
				}
				if cont, err := emit(Token{Kind: LinkStart, Href: pendingHref}); err != nil || !cont {
					return err
				}
				anchorOpened = true
			}

		case xmlsax.EndTag:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			if skipDepth > 0 {
				if skipSubtree[ev.Name] {
					skipDepth--
				}
				continue
			}

			switch {
			case blockElements[ev.Name]:
				if cont, err := flushText(); err != nil || !cont {
					return err
				}
				if cont, err := emit(Token{Kind: ParagraphBreak}); err != nil || !cont {
					return err
				}
				atBlockStart = true
			case isHeading(ev.Name):
				if cont, err := flushText(); err != nil || !cont {
					return err
				}
				if cont, err := emit(Token{Kind: ParagraphBreak}); err != nil || !cont {
					return err
				}
				atBlockStart = true
			case ev.Name == "em" || ev.Name == "i":
				if cont, err := flushText(); err != nil || !cont {
					return err
				}
				if cont, err := emit(Token{Kind: Emphasis, On: false}); err != nil || !cont {
					return err
				}
			case ev.Name == "strong" || ev.Name == "b":
				if cont, err := flushText(); err != nil || !cont {
					return err
				}
				if cont, err := emit(Token{Kind: Strong, On: false}); err != nil || !cont {
					return err
				}
			case ev.Name == "ul" || ev.Name == "ol":
				if cont, err := flushText(); err != nil || !cont {
					return err
				}
				if cont, err := emit(Token{Kind: ListEnd}); err != nil || !cont {
					return err
				}
				atBlockStart = true
			case ev.Name == "li":
				if cont, err := flushText(); err != nil || !cont {
					return err
				}
				if cont, err := emit(Token{Kind: ListItemEnd}); err != nil || !cont {
					return err
				}
				atBlockStart = true
			case ev.Name == "a":
				if inAnchor {
					inAnchor = false
					if anchorOpened {
						anchorOpened = false
						if cont, err := flushText(); err != nil || !cont {
							return err
						}
						if cont, err := emit(Token{Kind: LinkEnd}); err != nil || !cont {
							return err
						}
					}
				}
			}
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	_, err := flushText()
	return err
}

// Collect runs Tokenize and returns the full bounded token slice (the
// collecting API).
func Collect(data []byte, lim limits.TokenizeLimits) ([]Token, error) {
	out := make([]Token, 0, 256)
	err := Tokenize(data, lim, func(t Token) (bool, error) {
		out = append(out, t)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func isHeading(tag string) bool {
	if len(tag) != 2 || tag[0] != 'h' {
		return false
	}
	return tag[1] >= '1' && tag[1] <= '6'
}

// collapseWhitespace folds runs of whitespace to a single space, the
// way every XHTML renderer without a pre-equivalent context does.
func collapseWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastWasSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				b.WriteByte(' ')
			}
			lastWasSpace = true
			continue
		}
		b.WriteRune(r)
		lastWasSpace = false
	}
	return b.String()
}

// safeCut finds a UTF-8-safe split point at or before max in s.
func safeCut(s string, max int) int {
	if max >= len(s) {
		return len(s)
	}
	n := max
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	if n == 0 {
		return max
	}
	return n
}

// ImageIntrinsicSize peeks data's header to discover the pixel
// dimensions of a JPEG/PNG/GIF image without decoding the pixel buffer,
// satisfying Image.intrinsic without the out-of-scope full image
// decode (see SPEC_FULL.md section B).
func ImageIntrinsicSize(data []byte) (w, h int, ok bool) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}
