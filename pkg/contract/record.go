package contract

import "fmt"

// 常用字段名（原始数据使用 SLP1 拼写的键）。
const (
	FieldRootForm   = "dhAtu"
	FieldVerbAccent = "verbaccent"
	FieldVerb       = "verb"
	FieldMeaning    = "meaning"
	FieldGana       = "gana"
	FieldNumber     = "number"
	FieldLakara     = "lakara"
	FieldSuffix     = "suffix"
	FieldDerivation = "derivation"
	// FieldForm: 平铺导出追加的词形列名。
	FieldForm = "form"
)

// Record: 投影后的推导记录（Loader 输出）。
// 值一律为文本：JSON 字符串原样，数字保留字面量，其他值为紧凑 JSON。
type Record map[string]string

// Get 取必需字段；缺失时返回包裹 ErrMissingField 的错误。
func (r Record) Get(field string) (string, error) {
	v, ok := r[field]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrMissingField, field)
	}
	return v, nil
}

// Values 按 fields 顺序取值；任一字段缺失即失败。
func (r Record) Values(fields []string) ([]string, error) {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		v, err := r.Get(f)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
