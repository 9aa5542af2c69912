package style

import "epubcore/epuberr"

type fontKey struct {
	family string
	bold   bool
	italic bool
}

// FontTable interns (family, weight, italic) triples into small stable
// integers, bounded at max entries (spec.md section 4.6: 64).
type FontTable struct {
	index map[fontKey]int
	keys  []fontKey
	max   int
}

// NewFontTable creates an empty table bounded at max entries.
func NewFontTable(max int) *FontTable {
	return &FontTable{index: make(map[fontKey]int), max: max}
}

// Intern returns the stable font_id for (family, bold, italic), adding a
// new entry if this triple has not been seen before. Returns
// LimitExceeded once the table would grow past max.
func (t *FontTable) Intern(family string, bold, italic bool) (int, error) {
	k := fontKey{family: family, bold: bold, italic: italic}
	if id, ok := t.index[k]; ok {
		return id, nil
	}
	if len(t.keys) >= t.max {
		return 0, epuberr.Limit("style.font_table")
	}
	id := len(t.keys)
	t.keys = append(t.keys, k)
	t.index[k] = id
	return id, nil
}

// Len reports how many distinct font identities have been interned.
func (t *FontTable) Len() int { return len(t.keys) }

// Lookup resolves a previously interned font_id back to its triple, for
// a backend's once-per-page resolution at render entry.
func (t *FontTable) Lookup(id int) (family string, bold, italic bool, ok bool) {
	if id < 0 || id >= len(t.keys) {
		return "", false, false, false
	}
	k := t.keys[id]
	return k.family, k.bold, k.italic, true
}
