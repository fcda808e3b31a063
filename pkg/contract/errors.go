package contract

import "errors"

// 最小错误分类（用于上层策略判定与 diag.Classify）。
var (
	// ErrArchive: 归档缺失、损坏或无法解压。
	ErrArchive = errors.New("archive invalid")
	// ErrParse: 成员内容不是合法的记录 JSON 数组。
	ErrParse = errors.New("parse failed")
	// ErrMissingField: 记录缺少导出所需字段（例如无 3.4.69 步骤时的 dhAtu）。
	ErrMissingField = errors.New("missing field")
	// ErrUnknownCell: (lakara, suffix) 组合不在范式表中。
	ErrUnknownCell = errors.New("unknown paradigm cell")
	// ErrPathInvalid: 产物标识映射为无效/越界路径（例如绝对路径或 '..' 逃逸）。
	ErrPathInvalid = errors.New("path invalid")
	// ErrInvariantViolation: 领域不变量违例（通用哨兵）。
	ErrInvariantViolation = errors.New("invariant violation")
)
