// Package pivot 把投影记录聚合为“词根 × 范式单元”的透视表。
//
// 两级索引：root-details（词根序号 → 5 元组，先写者胜）与
// root-forms（词根序号 → 单元键 → 词形列表）。内层在首次见到词根时
// 按范式表全部单元预先建立，未出现的单元即为空列表。
package pivot

import (
	"sort"
	"strings"

	"prakriya/internal/paradigm"
	"prakriya/pkg/contract"
)

// DetailFields: 细节 5 元组对应的记录字段（顺序即输出顺序）。
var DetailFields = []string{
	contract.FieldRootForm,
	contract.FieldVerbAccent,
	contract.FieldMeaning,
	contract.FieldGana,
	contract.FieldNumber,
}

// Aggregator: 单写者、单读者（先累积后输出）。
type Aggregator struct {
	table   paradigm.Table
	columns []paradigm.Column
	known   map[paradigm.CellKey]bool
	details map[string][]string
	forms   map[string]map[paradigm.CellKey][]string
}

// New 基于范式表构造聚合器。
func New(t paradigm.Table) *Aggregator {
	cols := t.Columns()
	known := make(map[paradigm.CellKey]bool, len(cols))
	for _, c := range cols {
		known[c.Key()] = true
	}
	return &Aggregator{
		table:   t,
		columns: cols,
		known:   known,
		details: make(map[string][]string),
		forms:   make(map[string]map[paradigm.CellKey][]string),
	}
}

// Validate 校验一个成员的记录能否被无副作用地加入（细节与单元字段齐全）。
func (a *Aggregator) Validate(recs []contract.Record) error {
	for _, r := range recs {
		if _, err := r.Values(DetailFields); err != nil {
			return err
		}
		if _, err := cellKey(r); err != nil {
			return err
		}
	}
	return nil
}

// Add 记录一个成员：细节先写者胜；词形追加到 (lakara, suffix) 单元。
// 先整体校验，失败时索引保持不变。范式表之外的单元照常记录但不输出，
// 以列表返回供调用方告警。
func (a *Aggregator) Add(form string, recs []contract.Record) ([]paradigm.CellKey, error) {
	if err := a.Validate(recs); err != nil {
		return nil, err
	}
	var unknown []paradigm.CellKey
	for _, r := range recs {
		vals, _ := r.Values(DetailFields)
		root := r[contract.FieldNumber]
		if _, seen := a.details[root]; !seen {
			a.details[root] = vals
			a.forms[root] = a.emptyCells()
		}
		k, _ := cellKey(r)
		if !a.known[k] {
			unknown = append(unknown, k)
		}
		a.forms[root][k] = append(a.forms[root][k], form)
	}
	return unknown, nil
}

func cellKey(r contract.Record) (paradigm.CellKey, error) {
	l, err := r.Get(contract.FieldLakara)
	if err != nil {
		return paradigm.CellKey{}, err
	}
	s, err := r.Get(contract.FieldSuffix)
	if err != nil {
		return paradigm.CellKey{}, err
	}
	return paradigm.CellKey{Lakara: l, Suffix: s}, nil
}

func (a *Aggregator) emptyCells() map[paradigm.CellKey][]string {
	m := make(map[paradigm.CellKey][]string, len(a.columns))
	for _, c := range a.columns {
		m[c.Key()] = nil
	}
	return m
}

// Len 返回不同词根数。
func (a *Aggregator) Len() int { return len(a.details) }

// Roots 返回按字节序升序排列的词根序号。
func (a *Aggregator) Roots() []string {
	out := make([]string, 0, len(a.details))
	for r := range a.details {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// Row 返回词根的输出行：5 个细节字段 + 每列一个逗号连接的词形列表。
func (a *Aggregator) Row(root string) []string {
	d, ok := a.details[root]
	if !ok {
		return nil
	}
	cells := a.forms[root]
	out := make([]string, 0, len(d)+len(a.columns))
	out = append(out, d...)
	for _, c := range a.columns {
		out = append(out, strings.Join(cells[c.Key()], ","))
	}
	return out
}

// Header 返回表头（lakāra 标签经 translit 转写）。
func (a *Aggregator) Header(translit func(string) string) []string {
	return a.table.Header(translit)
}
