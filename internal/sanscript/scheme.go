// Package sanscript 实现 Sanskrit 书写方案之间的表驱动转写。
//
// 各方案按相同顺序列出元音、辅音、随韵（anusvāra/visarga/candrabindu）、符号、数字与声调符，
// 不同方案之间按下标一一对应。罗马方案的元音同时充当元音符号（mātrā）；
// 天城体的元音符号表首项为空串，表示辅音固有的 a。
package sanscript

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownScheme: 未注册的方案名。
var ErrUnknownScheme = errors.New("unknown scheme")

// Scheme: 一个书写方案的码表（只读）。
type Scheme struct {
	name       string
	brahmic    bool
	vowels     []string
	marks      []string
	virama     string
	consonants []string
	// others: 随韵、符号、数字、声调符（非元音、非辅音的一切映射项）。
	others []string
}

// Name 返回方案名（小写）。
func (s *Scheme) Name() string { return s.name }

// Brahmic 报告方案是否为婆罗米系文字（天城体）。
func (s *Scheme) Brahmic() bool { return s.brahmic }

func fields(s string) []string { return strings.Fields(s) }

func romanOthers(yogavaha, symbols, accents string) []string {
	out := fields(yogavaha)
	out = append(out, fields(symbols)...)
	out = append(out, fields("0 1 2 3 4 5 6 7 8 9")...)
	acc := fields(accents)
	for len(acc) < 2 {
		acc = append(acc, "")
	}
	return append(out, acc...)
}

// 天城体码表。
var Devanagari = &Scheme{
	name:       "devanagari",
	brahmic:    true,
	vowels:     fields("अ आ इ ई उ ऊ ऋ ॠ ऌ ॡ ए ऐ ओ औ"),
	marks:      append([]string{""}, fields("ा ि ी ु ू ृ ॄ ॢ ॣ े ै ो ौ")...),
	virama:     "्",
	consonants: fields("क ख ग घ ङ च छ ज झ ञ ट ठ ड ढ ण त थ द ध न प फ ब भ म य र ल व श ष स ह ळ"),
	others: append(append(fields("ं ः ँ ऽ । ॥"),
		fields("० १ २ ३ ४ ५ ६ ७ ८ ९")...),
		"॑", "॒"),
}

// SLP1: 每个音素一个 ASCII 字符。
var SLP1 = &Scheme{
	name:       "slp1",
	vowels:     fields("a A i I u U f F x X e E o O"),
	consonants: fields("k K g G N c C j J Y w W q Q R t T d D n p P b B m y r l v S z s h L"),
	others:     romanOthers("M H ~", "' | ||", "/ \\"),
}

// HK: Harvard-Kyoto。
var HK = &Scheme{
	name:       "hk",
	vowels:     fields("a A i I u U R RR lR lRR e ai o au"),
	consonants: fields("k kh g gh G c ch j jh J T Th D Dh N t th d dh n p ph b bh m y r l v z S s h L"),
	others:     romanOthers("M H ~", "' | ||", ""),
}

// IAST: 国际梵语转写字母（NFC）。
var IAST = &Scheme{
	name:       "iast",
	vowels:     fields("a ā i ī u ū ṛ ṝ ḷ ḹ e ai o au"),
	consonants: fields("k kh g gh ṅ c ch j jh ñ ṭ ṭh ḍ ḍh ṇ t th d dh n p ph b bh m y r l v ś ṣ s h ḻ"),
	others:     romanOthers("ṃ ḥ m̐", "' | ||", ""),
}

var schemes = map[string]*Scheme{
	Devanagari.name: Devanagari,
	SLP1.name:       SLP1,
	HK.name:         HK,
	IAST.name:       IAST,
}

// Lookup 按名称（大小写不敏感）查找方案。
func Lookup(name string) (*Scheme, error) {
	s, ok := schemes[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, name)
	}
	return s, nil
}

// Names 返回已注册方案名（固定顺序）。
func Names() []string {
	return []string{SLP1.name, HK.name, IAST.name, Devanagari.name}
}
