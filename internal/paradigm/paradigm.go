// Package paradigm 定义透视表的固定范式表：lakāra、人称词尾及其（人称, 数, 语态）归属。
//
// 数据列按 lakāra 为主序、词尾为次序枚举；表头标签由同一列表生成，
// 因此标签 i 恒描述数据列 i。词尾与（人称, 数, 语态）三元组的对应关系属于领域数据，
// 由 Validate 校验其完备且无重复。
package paradigm

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"prakriya/pkg/contract"
)

// Suffix: 人称词尾（tiṅ）及其语法归属（下标指向 Table 的标签表）。
type Suffix struct {
	Tag    string `json:"tag" yaml:"tag"`
	Person int    `json:"person" yaml:"person"`
	Number int    `json:"number" yaml:"number"`
	Voice  int    `json:"voice" yaml:"voice"`
}

// Table: 不可变范式配置。
type Table struct {
	Lakaras       []string `json:"lakaras" yaml:"lakaras"`
	Suffixes      []Suffix `json:"suffixes" yaml:"suffixes"`
	Persons       []string `json:"persons" yaml:"persons"`
	Numbers       []string `json:"numbers" yaml:"numbers"`
	Voices        []string `json:"voices" yaml:"voices"`
	DetailHeaders []string `json:"detail_headers" yaml:"detail_headers"`
}

// CellKey: 透视单元键（均为源方案拼写）。
type CellKey struct {
	Lakara string
	Suffix string
}

// Column: 一个数据列。
type Column struct {
	Lakara string
	Suffix Suffix
}

// Key 返回列对应的单元键。
func (c Column) Key() CellKey { return CellKey{Lakara: c.Lakara, Suffix: c.Suffix.Tag} }

// Default 返回内置范式表（每次调用返回独立副本）。
// 人称顺序：प्र(第三) म(第二) उ(第一)；语态：परस्मै 在前。
func Default() Table {
	return Table{
		Lakaras: []string{"law", "liw", "luw", "lfw", "low", "laN", "viDiliN", "ASIrliN", "luN", "lfN"},
		Suffixes: []Suffix{
			{"tip", 0, 0, 0}, {"tas", 0, 1, 0}, {"Ji", 0, 2, 0},
			{"sip", 1, 0, 0}, {"Tas", 1, 1, 0}, {"Ta", 1, 2, 0},
			{"mip", 2, 0, 0}, {"vas", 2, 1, 0}, {"mas", 2, 2, 0},
			{"ta", 0, 0, 1}, {"AtAm", 0, 1, 1}, {"Ja", 0, 2, 1},
			{"TAs", 1, 0, 1}, {"ATAm", 1, 1, 1}, {"Dvam", 1, 2, 1},
			{"iw", 2, 0, 1}, {"vahi", 2, 1, 1}, {"mahiN", 2, 2, 1},
		},
		Persons:       []string{"प्र", "म", "उ"},
		Numbers:       []string{"एक", "द्वि", "बहु"},
		Voices:        []string{"परस्मै", "आत्मने"},
		DetailHeaders: []string{"धातुः", "धातुपाठे", "अर्थः", "गणः", "संख्या"},
	}
}

// Load 从 YAML/JSON 文件读取范式表并校验（严格拒绝未知字段）。
func Load(path string) (Table, error) {
	var t Table
	b, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		return t, fmt.Errorf("paradigm %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("paradigm %s: %w", path, err)
	}
	return t, nil
}

// Validate 校验表的完备性：
//  1. lakāra 与词尾标签非空且不重复；
//  2. 词尾下标均在标签表范围内；
//  3. 每个（人称, 数, 语态）三元组恰好被一个词尾覆盖；
//  4. 细节表头恰为 5 列。
func (t Table) Validate() error {
	if len(t.Lakaras) == 0 || len(t.Suffixes) == 0 {
		return fmt.Errorf("%w: empty paradigm table", contract.ErrInvariantViolation)
	}
	if len(t.DetailHeaders) != 5 {
		return fmt.Errorf("%w: want 5 detail headers, got %d", contract.ErrInvariantViolation, len(t.DetailHeaders))
	}
	seen := make(map[string]struct{}, len(t.Lakaras))
	for _, l := range t.Lakaras {
		if strings.TrimSpace(l) == "" {
			return fmt.Errorf("%w: empty lakara tag", contract.ErrInvariantViolation)
		}
		if _, dup := seen[l]; dup {
			return fmt.Errorf("%w: duplicate lakara %q", contract.ErrInvariantViolation, l)
		}
		seen[l] = struct{}{}
	}
	want := len(t.Persons) * len(t.Numbers) * len(t.Voices)
	if len(t.Suffixes) != want {
		return fmt.Errorf("%w: %d suffixes for %d person×number×voice cells",
			contract.ErrInvariantViolation, len(t.Suffixes), want)
	}
	tags := make(map[string]struct{}, len(t.Suffixes))
	cells := make(map[[3]int]string, len(t.Suffixes))
	for _, s := range t.Suffixes {
		if strings.TrimSpace(s.Tag) == "" {
			return fmt.Errorf("%w: empty suffix tag", contract.ErrInvariantViolation)
		}
		if _, dup := tags[s.Tag]; dup {
			return fmt.Errorf("%w: duplicate suffix %q", contract.ErrInvariantViolation, s.Tag)
		}
		tags[s.Tag] = struct{}{}
		if s.Person < 0 || s.Person >= len(t.Persons) ||
			s.Number < 0 || s.Number >= len(t.Numbers) ||
			s.Voice < 0 || s.Voice >= len(t.Voices) {
			return fmt.Errorf("%w: suffix %q label index out of range", contract.ErrInvariantViolation, s.Tag)
		}
		k := [3]int{s.Person, s.Number, s.Voice}
		if prev, dup := cells[k]; dup {
			return fmt.Errorf("%w: suffixes %q and %q share person/number/voice", contract.ErrInvariantViolation, prev, s.Tag)
		}
		cells[k] = s.Tag
	}
	return nil
}

// Columns 按 lakāra 主序 × 词尾次序枚举全部数据列。
func (t Table) Columns() []Column {
	out := make([]Column, 0, len(t.Lakaras)*len(t.Suffixes))
	for _, l := range t.Lakaras {
		for _, s := range t.Suffixes {
			out = append(out, Column{Lakara: l, Suffix: s})
		}
	}
	return out
}

// Label 生成列标签：<lakāra 转写>-<人称>-<数>-<语态>。
func (t Table) Label(c Column, translit func(string) string) string {
	l := c.Lakara
	if translit != nil {
		l = translit(l)
	}
	return strings.Join([]string{l, t.Persons[c.Suffix.Person], t.Numbers[c.Suffix.Number], t.Voices[c.Suffix.Voice]}, "-")
}

// Header 返回完整表头：5 个细节列 + 每个数据列一个标签。
func (t Table) Header(translit func(string) string) []string {
	cols := t.Columns()
	out := make([]string, 0, len(t.DetailHeaders)+len(cols))
	out = append(out, t.DetailHeaders...)
	for _, c := range cols {
		out = append(out, t.Label(c, translit))
	}
	return out
}
