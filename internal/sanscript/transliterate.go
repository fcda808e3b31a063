package sanscript

import (
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

type tokenKind int

const (
	kindNone tokenKind = iota
	kindVowel
	kindMark
	kindVirama
	kindConsonant
	kindOther
)

// mapping: 某一 (from, to) 方案对的预计算码表。
type mapping struct {
	from, to *Scheme
	kinds    map[string]tokenKind
	values   map[string]string
	// marks: 元音 → 目标元音符号（罗马→婆罗米）或 元音符号 → 罗马元音（婆罗米→罗马）。
	marks  map[string]string
	maxLen int
}

var (
	cacheMu sync.RWMutex
	cache   = map[[2]*Scheme]*mapping{}
)

func mappingFor(from, to *Scheme) *mapping {
	key := [2]*Scheme{from, to}
	cacheMu.RLock()
	m, ok := cache[key]
	cacheMu.RUnlock()
	if ok {
		return m
	}
	m = newMapping(from, to)
	cacheMu.Lock()
	cache[key] = m
	cacheMu.Unlock()
	return m
}

func newMapping(from, to *Scheme) *mapping {
	m := &mapping{
		from:   from,
		to:     to,
		kinds:  map[string]tokenKind{},
		values: map[string]string{},
		marks:  map[string]string{},
	}
	add := func(kind tokenKind, src, dst []string) {
		for i, k := range src {
			if k == "" || i >= len(dst) || dst[i] == "" {
				continue
			}
			if _, seen := m.kinds[k]; seen {
				continue
			}
			m.kinds[k] = kind
			m.values[k] = dst[i]
		}
	}
	add(kindVowel, from.vowels, to.vowels)
	add(kindConsonant, from.consonants, to.consonants)
	add(kindOther, from.others, to.others)
	switch {
	case from.brahmic && to.brahmic:
		add(kindMark, from.marks, to.marks)
		if from.virama != "" {
			m.kinds[from.virama] = kindVirama
			m.values[from.virama] = to.virama
		}
	case from.brahmic:
		for i, k := range from.marks {
			if k == "" || i >= len(to.vowels) {
				continue
			}
			m.kinds[k] = kindMark
			m.marks[k] = to.vowels[i]
		}
		m.kinds[from.virama] = kindVirama
	case to.brahmic:
		for i, k := range from.vowels {
			if i < len(to.marks) {
				m.marks[k] = to.marks[i]
			}
		}
	}
	for k := range m.kinds {
		if len(k) > m.maxLen {
			m.maxLen = len(k)
		}
	}
	return m
}

// next 以最长匹配取下一个记号；未知字符按单个 rune 返回 kindNone。
func (m *mapping) next(s string) (string, tokenKind) {
	n := m.maxLen
	if n > len(s) {
		n = len(s)
	}
	for l := n; l > 0; l-- {
		if k, ok := m.kinds[s[:l]]; ok {
			return s[:l], k
		}
	}
	_, size := utf8.DecodeRuneInString(s)
	return s[:size], kindNone
}

// Transliterate 将 s 从 from 方案转写为 to 方案。
// 未映射字符原样保留；输入与输出均为 NFC。
func Transliterate(s string, from, to *Scheme) string {
	s = norm.NFC.String(s)
	if from == to || s == "" {
		return s
	}
	m := mappingFor(from, to)
	var out string
	switch {
	case !from.brahmic && to.brahmic:
		out = m.romanToBrahmic(s)
	case from.brahmic && !to.brahmic:
		out = m.brahmicToRoman(s)
	default:
		out = m.direct(s)
	}
	return norm.NFC.String(out)
}

func (m *mapping) romanToBrahmic(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 3)
	hadConsonant := false
	for len(s) > 0 {
		tok, kind := m.next(s)
		s = s[len(tok):]
		switch kind {
		case kindVowel:
			if hadConsonant {
				b.WriteString(m.marks[tok])
			} else {
				b.WriteString(m.values[tok])
			}
			hadConsonant = false
		case kindConsonant:
			if hadConsonant {
				b.WriteString(m.to.virama)
			}
			b.WriteString(m.values[tok])
			hadConsonant = true
		default:
			if hadConsonant {
				b.WriteString(m.to.virama)
			}
			hadConsonant = false
			if kind == kindOther {
				b.WriteString(m.values[tok])
			} else {
				b.WriteString(tok)
			}
		}
	}
	if hadConsonant {
		b.WriteString(m.to.virama)
	}
	return b.String()
}

func (m *mapping) brahmicToRoman(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inherent := m.to.vowels[0]
	hadConsonant := false
	for len(s) > 0 {
		tok, kind := m.next(s)
		s = s[len(tok):]
		switch kind {
		case kindConsonant:
			if hadConsonant {
				b.WriteString(inherent)
			}
			b.WriteString(m.values[tok])
			hadConsonant = true
		case kindMark:
			b.WriteString(m.marks[tok])
			hadConsonant = false
		case kindVirama:
			hadConsonant = false
		default:
			if hadConsonant {
				b.WriteString(inherent)
			}
			hadConsonant = false
			if kind == kindNone {
				b.WriteString(tok)
			} else {
				b.WriteString(m.values[tok])
			}
		}
	}
	if hadConsonant {
		b.WriteString(inherent)
	}
	return b.String()
}

func (m *mapping) direct(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for len(s) > 0 {
		tok, kind := m.next(s)
		s = s[len(tok):]
		if kind == kindNone {
			b.WriteString(tok)
			continue
		}
		b.WriteString(m.values[tok])
	}
	return b.String()
}

// Func 返回固定方案对的转写函数，便于作为依赖注入。
func Func(from, to *Scheme) func(string) string {
	return func(s string) string { return Transliterate(s, from, to) }
}
