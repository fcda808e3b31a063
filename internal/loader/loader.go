// Package loader 解析归档成员（推导记录 JSON 数组）并投影为 contract.Record。
package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"prakriya/pkg/contract"
)

// RootSutra: 产出词根本体的推导步骤（其 form 即 dhAtu）。
const RootSutra = "3.4.69"

var api = jsoniter.Config{
	UseNumber:              true,
	EscapeHTML:             false,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
}.Froze()

// Projection: 需转写的字段白名单。
type Projection struct {
	Name     string
	Translit []string
}

// 两条管线的投影：透视表的 number/lakara/suffix 保持源方案拼写，用作范式表与词根排序的键。
var (
	Flat = Projection{Name: "flat", Translit: []string{
		"gana", "padadecider_id", "padadecider_sutra", "number", "meaning", "lakara", "verb",
		"it_status", "it_sutra", "purusha", "vachana", "upasarga", "suffix",
	}}
	Pivot = Projection{Name: "pivot", Translit: []string{
		"gana", "padadecider_id", "padadecider_sutra", "meaning", "verb",
		"it_status", "it_sutra", "purusha", "vachana", "upasarga",
	}}
)

// 仅这两个字段可能含重音标记 '!'。
var stressFields = map[string]bool{contract.FieldVerb: true, contract.FieldMeaning: true}

// Loader: 成员解析 + 投影（无状态，可复用）。
type Loader struct {
	translit map[string]bool
	tr       func(string) string
}

// New 构造 Loader；tr 为源→目标转写函数（nil 表示不转写）。
func New(p Projection, tr func(string) string) *Loader {
	set := make(map[string]bool, len(p.Translit))
	for _, f := range p.Translit {
		set[f] = true
	}
	if tr == nil {
		tr = func(s string) string { return s }
	}
	return &Loader{translit: set, tr: tr}
}

type step struct {
	SutraNum jsoniter.RawMessage `json:"sutra_num"`
	Form     jsoniter.RawMessage `json:"form"`
}

// Load 读取并投影一个成员的全部记录（保持输入顺序）。
// 语法错误返回包裹 ErrParse 的错误；缺少 3.4.69 步骤不在此处报错。
func (l *Loader) Load(ctx context.Context, member string, r io.Reader) ([]contract.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", contract.ErrArchive, member, err)
	}
	if t := bytes.TrimSpace(data); len(t) == 0 || t[0] != '[' {
		return nil, fmt.Errorf("%w: %s: not a JSON array", contract.ErrParse, member)
	}
	var raws []map[string]jsoniter.RawMessage
	if err := api.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", contract.ErrParse, member, err)
	}
	out := make([]contract.Record, 0, len(raws))
	for i, raw := range raws {
		if raw == nil {
			return nil, fmt.Errorf("%w: %s: record %d is not an object", contract.ErrParse, member, i)
		}
		rec, err := l.project(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: record %d: %v", contract.ErrParse, member, i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (l *Loader) project(raw map[string]jsoniter.RawMessage) (contract.Record, error) {
	rec := make(contract.Record, len(raw)+1)
	for k, v := range raw {
		if k == contract.FieldDerivation {
			root, ok, err := l.rootForm(v)
			if err != nil {
				return nil, err
			}
			if ok {
				rec[contract.FieldRootForm] = root
			}
			continue
		}
		s, err := text(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %v", k, err)
		}
		if l.translit[k] {
			if stressFields[k] {
				s = strings.ReplaceAll(s, "!", "~")
			}
			s = l.tr(s)
		}
		rec[k] = s
	}
	return rec, nil
}

// rootForm 取第一个 sutra_num == 3.4.69 的步骤的 form（已转写）。
func (l *Loader) rootForm(v jsoniter.RawMessage) (string, bool, error) {
	var steps []step
	if err := api.Unmarshal(v, &steps); err != nil {
		return "", false, fmt.Errorf("derivation: %v", err)
	}
	for _, s := range steps {
		var num string
		if api.Unmarshal(s.SutraNum, &num) != nil || num != RootSutra {
			continue
		}
		form, err := text(s.Form)
		if err != nil {
			return "", false, fmt.Errorf("derivation form: %v", err)
		}
		return l.tr(form), true, nil
	}
	return "", false, nil
}

// text 把 JSON 值转为文本：字符串取值，数字保留字面量，其他值紧凑序列化。
func text(v jsoniter.RawMessage) (string, error) {
	t := bytes.TrimSpace(v)
	if len(t) == 0 {
		return "", fmt.Errorf("empty value")
	}
	switch c := t[0]; {
	case c == '"':
		var s string
		err := api.Unmarshal(t, &s)
		return s, err
	case c == '-' || (c >= '0' && c <= '9'):
		return string(t), nil
	default:
		var val interface{}
		if err := api.Unmarshal(t, &val); err != nil {
			return "", err
		}
		return api.MarshalToString(val)
	}
}
