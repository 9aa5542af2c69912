package layout

import (
	"epubcore/common"
	"epubcore/render"
)

// pager owns one chapter's worth of page-cursor state: the current
// page's command vector and vertical cursor, plus the token-range and
// progress bookkeeping a sealed page's Meta carries.
type pager struct {
	e            *Engine
	contentW     float64
	contentH     float64
	chapterIndex int
	totalTokens  int
	sink         Sink

	pageIndex int
	y         float64
	cmds      []render.Command

	firstOffset int
	lastOffset  int
	haveFirst   bool
}

func newPager(e *Engine, contentW, contentH float64, chapterIndex, totalTokens int, sink Sink) *pager {
	return &pager{e: e, contentW: contentW, contentH: contentH, chapterIndex: chapterIndex, totalTokens: totalTokens, sink: sink}
}

// startPageIfNeeded emits the configured page header, once, the first
// time content is about to be written to an empty page.
func (pg *pager) startPageIfNeeded() {
	if pg.y > 0 || len(pg.cmds) > 0 {
		return
	}
	if pg.e.cfg.PageChrome.Header != "" {
		pg.cmds = append(pg.cmds, render.Command{Kind: render.PageHeader, Text: pg.e.cfg.PageChrome.Header, Align: common.AlignCenter})
	}
}

// sealPage appends the footer/progress command, hands the page to the
// sink and resets cursor state for the next page. Returns an error
// wrapping cancellation if the sink asks to stop.
func (pg *pager) sealPage() error {
	if pg.e.cfg.PageChrome.Footer != "" || pg.e.cfg.PageChrome.ProgressEnabled {
		cmd := render.Command{Kind: render.PageFooter, Text: pg.e.cfg.PageChrome.Footer, Align: common.AlignCenter}
		if pg.e.cfg.PageChrome.ProgressEnabled {
			cmd.HasProgress = true
			cmd.ProgressNum = pg.lastOffset + 1
			cmd.ProgressDen = pg.totalTokens
		}
		pg.cmds = append(pg.cmds, cmd)
	}

	page := render.Page{
		PageIndex:    pg.pageIndex,
		ChapterIndex: pg.chapterIndex,
		Commands:     pg.cmds,
		Meta: render.PageMeta{
			ProgressNum:      pg.lastOffset + 1,
			ProgressDen:      pg.totalTokens,
			FirstTokenOffset: pg.firstOffset,
			LastTokenOffset:  pg.lastOffset,
		},
	}
	cont, err := pg.sink(page)
	if err != nil {
		return err
	}
	if !cont {
		return errCancelled
	}

	pg.pageIndex++
	pg.y = 0
	pg.cmds = nil
	pg.haveFirst = false
	return nil
}

func (pg *pager) noteOffsets(first, last int) {
	if !pg.haveFirst {
		pg.firstOffset = first
		pg.haveFirst = true
	}
	pg.lastOffset = last
}

// placeBlock lays out lines onto the current and, as needed, subsequent
// pages, honoring the widow/orphan clamp for non-heading blocks and the
// "heading never ends a page alone" rule for headings. leftOffset
// narrows the column for indented blocks (list items); firstIndent
// additionally indents only the block's first line.
func (pg *pager) placeBlock(lines []line, align common.TextAlign, isHeading bool, leftOffset, firstIndent float64, firstTok, lastTok int) error {
	if len(lines) == 0 {
		return nil
	}
	gapBefore, gapAfter := pg.e.cfg.ParagraphGapPx, pg.e.cfg.ParagraphGapPx
	if isHeading {
		gapBefore, gapAfter = pg.e.cfg.HeadingGapBeforePx, pg.e.cfg.HeadingGapAfterPx
	}
	available := pg.contentW - leftOffset

	clamp := pg.e.cfg.WidowOrphanClamp
	for len(lines) > 0 {
		before := 0.0
		if pg.y > 0 {
			before = float64(gapBefore)
		}
		avail := pg.contentH - pg.y - before

		used, k := 0.0, 0
		for k < len(lines) {
			h := lines[k].height()
			if used+h > avail {
				break
			}
			used += h
			k++
		}
		full := k == len(lines)

		switch {
		case full && isHeading:
			// A heading that fits completely still must not be the very
			// last thing on the page: require slack for at least one
			// more line underneath it.
			if pg.y > 0 && avail-used < lines[len(lines)-1].height() {
				k = 0
			}
		case !full && isHeading:
			// Headings are never split across pages.
			k = 0
		case !full && clamp > 0 && len(lines) > 2*clamp:
			if k < clamp {
				k = 0
			} else if len(lines)-k < clamp {
				k = len(lines) - clamp
			}
		case !full && clamp > 0:
			// Too short to satisfy both guards while splitting: move the
			// whole block rather than leave an orphan or a widow.
			k = 0
		}

		if k == 0 {
			if pg.y == 0 {
				// An empty page still can't fit it even unclamped: force
				// progress with the best unclamped fit so we never loop
				// forever, letting the block overflow the box if needed.
				fitK := 0
				used := 0.0
				for fitK < len(lines) {
					h := lines[fitK].height()
					if used+h > avail {
						break
					}
					used += h
					fitK++
				}
				if fitK == 0 {
					fitK = 1
				}
				k = fitK
			} else {
				if err := pg.sealPage(); err != nil {
					return err
				}
				continue
			}
		}

		pg.startPageIfNeeded()
		if pg.y > 0 {
			pg.y += float64(gapBefore)
		}
		for i := 0; i < k; i++ {
			indent := leftOffset
			if i == 0 {
				indent += firstIndent
			}
			lineAvail := available
			if i == 0 {
				lineAvail -= firstIndent
			}
			pg.emitLine(lines[i], align, indent, lineAvail)
			pg.y += lines[i].height()
		}
		pg.noteOffsets(firstTok, lastTok)

		lines = lines[k:]
		if len(lines) > 0 {
			if err := pg.sealPage(); err != nil {
				return err
			}
		} else {
			pg.y += float64(gapAfter)
		}
	}
	return nil
}

// placeImage lays out a single image reference as its own block. No
// raster decoding happens at this layer (out of scope); the box uses a
// conservative 4:3 placeholder aspect ratio until a caller resolves the
// resource's real intrinsic size.
func (pg *pager) placeImage(src, alt string, firstTok, lastTok int) error {
	gap := float64(pg.e.cfg.ParagraphGapPx)
	w := pg.contentW
	h := w * 0.75

	if pg.y > 0 && pg.contentH-pg.y-gap < h {
		if err := pg.sealPage(); err != nil {
			return err
		}
	}
	pg.startPageIfNeeded()
	if pg.y > 0 {
		pg.y += gap
	}
	pg.cmds = append(pg.cmds, render.Command{Kind: render.DrawImageRef, X: 0, Y: pg.y, W: w, H: h, Src: src, Alt: alt})
	pg.y += h + gap
	pg.noteOffsets(firstTok, lastTok)
	return nil
}

// emitLine converts one wrapped line into DrawText commands, resolving
// alignment and (for Justify) inter-word stretch against available.
func (pg *pager) emitLine(l line, align common.TextAlign, leftOffset, available float64) {
	baseline := pg.y + l.ascentPx
	x := float64(pg.e.cfg.Margins.LeftPx) + leftOffset
	slack := available - l.widthPx
	if slack < 0 {
		slack = 0
	}

	extra := 0.0
	switch align {
	case common.AlignCenter:
		x += slack / 2
	case common.AlignRight:
		x += slack
	case common.AlignJustify:
		if n := len(l.segments) - 1; n > 0 && pg.e.cfg.JustifyMode != common.JustifyNone && !l.isLast {
			stretch := slack / float64(n)
			spaceWidth := pg.e.measurer.Measure(" ", l.segments[0].style)
			ratio := 0.0
			if spaceWidth > 0 {
				ratio = stretch / spaceWidth
			}
			if ratio <= pg.e.cfg.JustifyMaxSpaceStretch {
				extra = stretch
			}
		}
	}

	cx := x
	for i, seg := range l.segments {
		pg.cmds = append(pg.cmds, render.Command{
			Kind:       render.DrawText,
			X:          cx,
			Y:          pg.y,
			Baseline:   baseline,
			Text:       seg.text,
			FontID:     seg.style.FontID,
			Weight:     seg.style.Weight,
			Italic:     seg.style.Italic,
			TrackingPx: seg.style.LetterSpacingPx,
		})
		cx += pg.e.measurer.Measure(seg.text, seg.style)
		if i < len(l.segments)-1 {
			sw := pg.e.measurer.Measure(" ", seg.style) + extra
			cx += sw
		}
	}
}
