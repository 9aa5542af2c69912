// Package xmlsax normalizes github.com/tdewolff/parse/v2/xml's lexer
// into a small event vocabulary shared by the OPF, navigation and
// XHTML tokenizer stages, so none of them has to know the lexer's raw
// token shapes (tag delimiters still attached, attribute values still
// quoted, entities still escaped).
package xmlsax

import (
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/xml"

	"epubcore/epuberr"
)

// Kind classifies one normalized event.
type Kind int

const (
	StartTag Kind = iota
	Attr
	TagClose
	EndTag
	Text
	EOF
)

// Event is one normalized SAX event. Name holds the tag name for
// StartTag/EndTag and the attribute key for Attr; Value holds the
// unescaped, unquoted attribute value for Attr and the unescaped
// character data for Text.
type Event struct {
	Kind        Kind
	Name        string
	Value       string
	SelfClosing bool
}

// Scanner drives the lexer over one in-memory document. The document
// must stay alive for the scanner's lifetime; returned Event fields are
// independent strings (entity-unescaping already forces a copy, so
// there is no further borrowing contract at this layer).
type Scanner struct {
	lex        *xml.Lexer
	pendingTag string
	offset     int64
	err        error
}

// NewScanner starts scanning data.
func NewScanner(data []byte) *Scanner {
	input := parse.NewInput(bytes.NewReader(data))
	return &Scanner{lex: xml.NewLexer(input)}
}

// Offset returns the current byte offset into the document, for
// Parse-error context.
func (s *Scanner) Offset() int64 { return s.offset }

// Next returns the next normalized event. ok is false at end of
// document or on error; callers must check Err after a false return.
func (s *Scanner) Next() (Event, bool) {
	for {
		tt, data := s.lex.Next()
		s.offset += int64(len(data))
		switch tt {
		case xml.ErrorToken:
			if err := s.lex.Err(); err != nil && err != io.EOF {
				s.err = epuberr.WrapAt(epuberr.Parse, "", s.offset, err)
			}
			return Event{}, false
		case xml.StartTagToken:
			name := strings.TrimPrefix(string(data), "<")
			s.pendingTag = name
			return Event{Kind: StartTag, Name: name}, true
		case xml.AttributeToken:
			key := strings.TrimSuffix(string(data), "=")
			val := unquote(s.lex.AttrVal())
			return Event{Kind: Attr, Name: key, Value: unescape(val)}, true
		case xml.StartTagCloseToken:
			return Event{Kind: TagClose, Name: s.pendingTag}, true
		case xml.StartTagCloseVoidToken:
			return Event{Kind: TagClose, Name: s.pendingTag, SelfClosing: true}, true
		case xml.EndTagToken:
			name := strings.Trim(string(data), "</>")
			return Event{Kind: EndTag, Name: name}, true
		case xml.TextToken, xml.CDATAToken:
			return Event{Kind: Text, Value: unescape(string(data))}, true
		default:
			continue
		}
	}
}

// Err reports the fatal parse error, if scanning stopped early because
// of one rather than reaching end of document.
func (s *Scanner) Err() error { return s.err }

func unquote(b []byte) string {
	s := string(b)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// unescape handles the XML entity set plus numeric character references
// ("&#NN;", "&#xNN;"); no pack library exposes entity unescaping
// separately from DOM construction, so this stays on stdlib strings.
func unescape(s string) string {
	if !strings.ContainsRune(s, '&') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] != '&' {
			b.WriteByte(s[i])
			i++
			continue
		}
		end := strings.IndexByte(s[i:], ';')
		if end < 0 {
			b.WriteByte(s[i])
			i++
			continue
		}
		ent := s[i+1 : i+end]
		if r, ok := namedEntity(ent); ok {
			b.WriteRune(r)
			i += end + 1
			continue
		}
		if strings.HasPrefix(ent, "#x") || strings.HasPrefix(ent, "#X") {
			if v, err := strconv.ParseInt(ent[2:], 16, 32); err == nil {
				b.WriteRune(rune(v))
				i += end + 1
				continue
			}
		} else if strings.HasPrefix(ent, "#") {
			if v, err := strconv.ParseInt(ent[1:], 10, 32); err == nil {
				b.WriteRune(rune(v))
				i += end + 1
				continue
			}
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

func namedEntity(name string) (rune, bool) {
	switch name {
	case "amp":
		return '&', true
	case "lt":
		return '<', true
	case "gt":
		return '>', true
	case "quot":
		return '"', true
	case "apos":
		return '\'', true
	case "nbsp":
		return ' ', true
	}
	return 0, false
}
