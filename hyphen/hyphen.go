// Package hyphen is the lazy hyphenation break-candidate engine
// SPEC_FULL.md §C.1 adds to feed LayoutEngine's soft_hyphen_policy: a
// Knuth-Liang pattern trie that is asked for break points one word at a
// time, only when that word doesn't fit a line, instead of eagerly
// rewriting a whole chapter's text with inserted soft hyphens.
//
// Grounded on content/text/trie.go + content/text/hyphen_trie.go (the
// pattern trie and its addPatternString encoder) and
// convert/text/hyphenator.go's hyphenateWord (the per-position
// substring scan and odd/even break-weight rule), adapted from
// "eagerly hyphenate the whole string" to "return break offsets for one
// word on request". The dictionary-loading/language-selection
// machinery around those two files (embedded per-language .gz
// dictionaries, BCP-47 language-tag fallback chain) has no equivalent
// here: this package ships one small built-in pattern set and a Load
// for a caller-supplied pattern file, rather than an embedded multi-
// language corpus (no dictionary files were present anywhere in the
// retrieved pack to embed).
package hyphen

import (
	"bufio"
	"io"
	"strings"
)

// Patterns is a loaded Knuth-Liang hyphenation pattern set.
type Patterns struct {
	trie *trie
}

// Load builds a Patterns set from Knuth-Liang pattern lines (one
// pattern per line, e.g. "hy3ph"), skipping blank lines and lines that
// look like TeX boilerplate (a leading '%' comment or a bare brace).
func Load(r io.Reader) (*Patterns, error) {
	t := newTrie()
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "%") || strings.ContainsAny(line, "{}") {
			continue
		}
		t.addPatternString(line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return &Patterns{trie: t}, nil
}

// Default returns a small built-in English pattern subset, enough to
// hyphenate common affixes and consonant clusters without any
// configuration. It is not a substitute for a complete language
// dictionary; callers who need full coverage supply one via Load.
func Default() *Patterns {
	t := newTrie()
	for _, p := range defaultEnglishPatterns {
		t.addPatternString(p)
	}
	return &Patterns{trie: t}
}

var defaultEnglishPatterns = []string{
	".ab3le", ".af1ter", ".al3ly", ".ar1tic", ".be2", ".con3",
	".de3", ".dis1", ".en3", ".er2", ".ful3", ".ing1", ".ize4",
	".ly2", ".ness4", ".pre3", ".re3", ".sub1", ".tion2", ".un3",
	"1bl", "1br", "1cl", "1cr", "1dr", "1fl", "1fr", "1gl", "1gr",
	"1pl", "1pr", "1sl", "1sp", "1st", "1tr",
	"ck1", "ct2", "dg2", "gh1", "ph2", "qu2", "sh4", "sk1", "th2",
}

// Breaks returns candidate hyphenation offsets within word, as byte
// offsets into word where a soft hyphen could be inserted. It mirrors
// hyphenateWord's algorithm: word is scanned between two word-boundary
// markers, overlapping pattern matches are merged by keeping the
// maximum weight at each position, and odd weights between the second
// and second-to-last character become break points.
func (p *Patterns) Breaks(word string) []int {
	if p == nil || len(word) == 0 {
		return nil
	}
	runes := []rune("." + word + ".")
	n := len(runes)
	weights := make([]int, n)

	for start := 0; start < n; start++ {
		lens, values := p.trie.allSubstringsAndValues(runes[start:])
		for k, matchLen := range lens {
			val := values[k]
			diff := len(val) - matchLen
			base := start - diff
			for i, w := range val {
				idx := base + i
				if idx < 0 || idx >= n {
					continue
				}
				if w > weights[idx] {
					weights[idx] = w
				}
			}
		}
	}

	markers := weights[1 : n-1]

	offsets := make([]int, 0, len(word)+1)
	for i := range word {
		offsets = append(offsets, i)
	}
	offsets = append(offsets, len(word))

	var breaks []int
	for mIndex := 0; mIndex < len(offsets)-1; mIndex++ {
		if mIndex < 1 || mIndex >= len(markers)-2 {
			continue
		}
		if markers[mIndex]%2 != 0 {
			breaks = append(breaks, offsets[mIndex+1])
		}
	}
	return breaks
}
