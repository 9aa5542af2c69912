// Package layout implements component C7, LayoutEngine: it turns a
// chapter's token stream into paginated render.Page values, per
// spec.md section 4.7's word-wrap, justification, pagination and
// widow/orphan rules. Grounded on the overall streaming-producer shape
// of convert/text/hyphenator.go and the teacher's preference for
// small, single-purpose files over one large method; there is no
// teacher pagination engine to adapt directly (fbc hands markup to an
// e-reader's own renderer), so the algorithm itself follows spec.md's
// contract verbatim.
package layout

import (
	"epubcore/common"
	"epubcore/config"
	"epubcore/epuberr"
	"epubcore/hyphen"
	"epubcore/measure"
	"epubcore/render"
	"epubcore/style"
	"epubcore/token"
)

// Sink receives sealed pages one at a time. Returning cont=false stops
// pagination, for a caller that only needs the first N pages of a
// chapter; Paginate then returns an epuberr.Cancelled error.
type Sink func(render.Page) (cont bool, err error)

var errCancelled = epuberr.New(epuberr.Cancelled, "layout: sink requested stop")

// Engine is component C7. It holds no per-chapter state - Paginate is
// safe to call repeatedly and concurrently from one Engine value.
type Engine struct {
	cfg      config.LayoutConfig
	measurer measure.TextMeasurer
	hyph     *hyphen.Patterns
}

// NewEngine builds a LayoutEngine. measurer defaults to
// measure.NewMonospace when nil; hyph may be nil to disable pattern-
// based mid-word breaks (soft_hyphen_policy still applies either way).
func NewEngine(cfg config.LayoutConfig, measurer measure.TextMeasurer, hyph *hyphen.Patterns) *Engine {
	if measurer == nil {
		measurer = measure.NewMonospace()
	}
	return &Engine{cfg: cfg, measurer: measurer, hyph: hyph}
}

// Paginate walks tokens (one chapter's full token stream, as produced
// by token.Tokenize) and emits render.Page values to sink until the
// chapter is exhausted or the sink asks to stop.
func (e *Engine) Paginate(tokens []token.Token, styleEngine *style.Engine, chapterIndex int, sink Sink) error {
	contentW := float64(e.cfg.Viewport.WidthPx - e.cfg.Margins.LeftPx - e.cfg.Margins.RightPx)
	contentH := float64(e.cfg.Viewport.HeightPx - e.cfg.Margins.TopPx - e.cfg.Margins.BottomPx)
	if contentW <= 0 || contentH <= 0 {
		return epuberr.Unsup("layout: viewport too small for configured margins")
	}

	producer := newStyleRunProducer(styleEngine)
	pg := newPager(e, contentW, contentH, chapterIndex, len(tokens), sink)

	var w wrapper
	listDepth := 0
	var evBuf []event

	flush := func(firstTok, lastTok int, isHeading, isListItem bool) error {
		lines := w.finish(e)
		if len(lines) == 0 {
			return nil
		}
		leftOffset := float64(listDepth) * float64(e.cfg.ListIndentPx)
		firstIndent := 0.0
		if !isHeading && !isListItem {
			firstIndent = float64(e.cfg.FirstLineIndentPx)
		}
		err := pg.placeBlock(lines, w.align, isHeading, leftOffset, firstIndent, firstTok, lastTok)
		w.reset(common.AlignLeft)
		return err
	}

	blockFirstTok := -1
	isHeadingBlock := false
	isListItemBlock := false

	for i, tok := range tokens {
		var err error
		evBuf, err = producer.produce(tok, i, evBuf[:0])
		if err != nil {
			return err
		}
		for _, ev := range evBuf {
			if blockFirstTok < 0 && ev.kind == evText {
				blockFirstTok = ev.offset
			}
			switch ev.kind {
			case evText:
				available := contentW - float64(listDepth)*float64(e.cfg.ListIndentPx)
				if !isHeadingBlock && !isListItemBlock && len(w.lines) == 0 && len(w.cur) == 0 {
					available -= float64(e.cfg.FirstLineIndentPx)
				}
				w.align = ev.style.Align
				w.addRun(e, ev.text, ev.style, available)
			case evLineBreak:
				w.commitLine(e)
			case evParagraphBreak:
				if err := flush(blockFirstTok, ev.offset, isHeadingBlock, isListItemBlock); err != nil {
					return err
				}
				blockFirstTok = -1
			case evHeadingStart:
				isHeadingBlock = true
				w.align = ev.style.Align
			case evHeadingEnd:
				if err := flush(blockFirstTok, ev.offset, true, false); err != nil {
					return err
				}
				isHeadingBlock = false
				blockFirstTok = -1
			case evListStart:
				listDepth++
			case evListEnd:
				if listDepth > 0 {
					listDepth--
				}
			case evListItemStart:
				isListItemBlock = true
			case evListItemEnd:
				if err := flush(blockFirstTok, ev.offset, false, true); err != nil {
					return err
				}
				isListItemBlock = false
				blockFirstTok = -1
			case evImage:
				if err := flush(blockFirstTok, ev.offset, isHeadingBlock, isListItemBlock); err != nil {
					return err
				}
				blockFirstTok = -1
				if err := pg.placeImage(ev.src, ev.alt, ev.offset, ev.offset); err != nil {
					return err
				}
			}
		}
	}

	if err := flush(blockFirstTok, len(tokens)-1, isHeadingBlock, isListItemBlock); err != nil {
		return err
	}
	if pg.y > 0 || len(pg.cmds) > 0 {
		return pg.sealPage()
	}
	return nil
}
