package keyword

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/crawlai/crawl-engine/app/apperr"
)

type target struct {
	group   int
	keyword int
}

type pattern struct {
	text    string
	runes   int
	targets []target
}

type compiledGroup struct {
	name     string
	keywords []string
	weights  []float64
}

// Index is an immutable compiled matcher. It is safe for concurrent use.
type Index struct {
	groups        []compiledGroup
	patterns      []pattern
	normalization float64
}

func (g Group) Validate() error {
	return validation.ValidateStruct(&g,
		validation.Field(&g.Name, validation.Required),
		validation.Field(&g.Keywords, validation.Required),
	)
}

func (k Keyword) Validate() error {
	return validation.ValidateStruct(&k,
		validation.Field(&k.Keyword, validation.Required),
		validation.Field(&k.Synonyms, validation.Each(validation.Required)),
		validation.Field(&k.Weight, validation.Min(0.0)),
	)
}

// Build compiles groups into an Index. A non-positive normalization selects
// DefaultNormalization. Any invalid group fails the whole build.
func Build(groups []Group, normalization float64) (*Index, error) {
	if normalization <= 0 {
		normalization = DefaultNormalization
	}

	idx := &Index{
		groups:        make([]compiledGroup, 0, len(groups)),
		normalization: normalization,
	}
	byText := make(map[string]int)
	seenGroups := make(map[string]bool, len(groups))

	for gi, group := range groups {
		if err := group.Validate(); err != nil {
			return nil, invalidGroup(group, gi, err)
		}

		groupKey := Normalize(group.Name)
		if seenGroups[groupKey] {
			return nil, invalidGroup(group, gi, fmt.Errorf("duplicate group name"))
		}
		seenGroups[groupKey] = true

		compiled := compiledGroup{name: strings.TrimSpace(group.Name)}
		seenKeywords := make(map[string]bool, len(group.Keywords))

		for ki, kw := range group.Keywords {
			primary := Normalize(kw.Keyword)
			if primary == "" {
				return nil, invalidGroup(group, gi, fmt.Errorf("keyword %d is blank", ki))
			}
			if seenKeywords[primary] {
				return nil, invalidGroup(group, gi, fmt.Errorf("duplicate keyword %q", kw.Keyword))
			}
			seenKeywords[primary] = true

			weight := kw.Weight
			if weight == 0 {
				weight = DefaultWeight
			}

			compiled.keywords = append(compiled.keywords, strings.TrimSpace(kw.Keyword))
			compiled.weights = append(compiled.weights, weight)

			t := target{group: gi, keyword: ki}
			phrases := make([]string, 0, 1+len(kw.Synonyms))
			phrases = append(phrases, primary)
			for _, syn := range kw.Synonyms {
				s := Normalize(syn)
				if s == "" {
					return nil, invalidGroup(group, gi, fmt.Errorf("blank synonym for keyword %q", kw.Keyword))
				}
				phrases = append(phrases, s)
			}

			for _, phrase := range phrases {
				pi, ok := byText[phrase]
				if !ok {
					pi = len(idx.patterns)
					byText[phrase] = pi
					idx.patterns = append(idx.patterns, pattern{text: phrase, runes: utf8.RuneCountInString(phrase)})
				}
				idx.patterns[pi].addTarget(t)
			}
		}

		idx.groups = append(idx.groups, compiled)
	}

	sort.SliceStable(idx.patterns, func(i, j int) bool {
		if idx.patterns[i].runes != idx.patterns[j].runes {
			return idx.patterns[i].runes > idx.patterns[j].runes
		}
		return idx.patterns[i].text < idx.patterns[j].text
	})

	return idx, nil
}

func (p *pattern) addTarget(t target) {
	for _, existing := range p.targets {
		if existing == t {
			return
		}
	}
	p.targets = append(p.targets, t)
}

func invalidGroup(group Group, position int, err error) error {
	name := group.Name
	if name == "" {
		name = fmt.Sprintf("#%d", position)
	}
	return &apperr.ConfigError{Kind: apperr.InvalidKeywordGroup, Name: name, Err: err}
}

// Normalize folds case, applies NFKC and collapses whitespace. Both patterns
// and scanned text go through it so byte offsets are comparable.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}

func (idx *Index) Normalization() float64 {
	return idx.normalization
}

func (idx *Index) GroupCount() int {
	return len(idx.groups)
}

func (idx *Index) PatternCount() int {
	return len(idx.patterns)
}

type span struct{ start, end int }

// Score matches text against every pattern, longest phrase first. A region of
// text claimed by a longer phrase cannot be matched again by a shorter one.
func (idx *Index) Score(text string) Result {
	result := Result{MatchedKeywords: []string{}, Categories: []string{}}

	text = Normalize(text)
	if text == "" || len(idx.patterns) == 0 {
		return result
	}

	var claimed []span
	firstSeen := make(map[target]int)

	for _, p := range idx.patterns {
		offset := 0
		for offset < len(text) {
			i := strings.Index(text[offset:], p.text)
			if i < 0 {
				break
			}
			start := offset + i
			end := start + len(p.text)

			if onBoundary(text, start, end) && !overlaps(claimed, start, end) {
				claimed = append(claimed, span{start, end})
				for _, t := range p.targets {
					if pos, ok := firstSeen[t]; !ok || start < pos {
						firstSeen[t] = start
					}
				}
			}

			_, size := utf8.DecodeRuneInString(text[start:])
			offset = start + size
		}
	}

	if len(firstSeen) == 0 {
		return result
	}

	hits := make([]target, 0, len(firstSeen))
	for t := range firstSeen {
		hits = append(hits, t)
	}
	sort.Slice(hits, func(i, j int) bool {
		pi, pj := firstSeen[hits[i]], firstSeen[hits[j]]
		if pi != pj {
			return pi < pj
		}
		if hits[i].group != hits[j].group {
			return hits[i].group < hits[j].group
		}
		return hits[i].keyword < hits[j].keyword
	})

	raw := 0.0
	matchedGroups := make([]bool, len(idx.groups))
	seenNames := make(map[string]bool, len(hits))

	for _, t := range hits {
		g := idx.groups[t.group]
		raw += g.weights[t.keyword]
		matchedGroups[t.group] = true

		name := g.keywords[t.keyword]
		if !seenNames[name] {
			seenNames[name] = true
			result.MatchedKeywords = append(result.MatchedKeywords, name)
		}
	}

	for gi, matched := range matchedGroups {
		if matched {
			result.Categories = append(result.Categories, idx.groups[gi].name)
		}
	}

	result.Score = raw / idx.normalization
	if result.Score > 1 {
		result.Score = 1
	}

	return result
}

func overlaps(claimed []span, start, end int) bool {
	for _, s := range claimed {
		if start < s.end && s.start < end {
			return true
		}
	}
	return false
}

// onBoundary rejects matches glued to surrounding letters or digits, e.g. "ai"
// inside "said". Scripts written without spaces (Hangul, Han, kana) never need
// a boundary, so Korean particles may follow a keyword directly.
func onBoundary(text string, start, end int) bool {
	if start > 0 {
		first, _ := utf8.DecodeRuneInString(text[start:])
		prev, _ := utf8.DecodeLastRuneInString(text[:start])
		if isSpaced(first) && isSpaced(prev) {
			return false
		}
	}
	if end < len(text) {
		last, _ := utf8.DecodeLastRuneInString(text[:end])
		next, _ := utf8.DecodeRuneInString(text[end:])
		if isSpaced(last) && isSpaced(next) {
			return false
		}
	}
	return true
}

func isSpaced(r rune) bool {
	if r == '_' {
		return true
	}
	if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
		return false
	}
	return !unicode.In(r, unicode.Han, unicode.Hangul, unicode.Hiragana, unicode.Katakana)
}
