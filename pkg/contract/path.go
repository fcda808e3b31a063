package contract

import (
	"path"
	"strings"
)

// NormalizeMemberName 规范化成员路径，统一为跨平台稳定的名称。
// 规则：
// - 使用正斜杠分隔符
// - 清理多余分隔符与路径片段（.、..）
// - 保留相对/绝对语义，不做隐式绝对化
func NormalizeMemberName(p string) string {
	return path.Clean(strings.ReplaceAll(p, "\\", "/"))
}

// FormName 由成员路径得到词形名：去掉目录与扩展名（仅最后一个扩展名）。
// 文件名开头的点不算扩展名分隔符（".json" 原样保留）。
func FormName(member string) string {
	base := path.Base(NormalizeMemberName(member))
	rest := strings.TrimLeft(base, ".")
	return strings.TrimSuffix(base, path.Ext(rest))
}
