package diag

import (
	"context"
	"errors"
	"io/fs"

	"prakriya/pkg/contract"
)

// Code 是最小错误分类代码。
// 仅用于日志/指标汇总，与退出码解耦。
type Code string

const (
	CodeUnknown      Code = "unknown"
	CodeArchive      Code = "archive"
	CodeParse        Code = "parse"
	CodeMissingField Code = "missing_field"
	CodeInvariant    Code = "invariant"
	CodeCancel       Code = "cancel"
	CodeIO           Code = "io"
)

// Classify 将错误归为最小分类。
// 说明：仅依赖哨兵错误与标准库错误类型，不做字符串匹配。
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	// 取消/超时优先
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCancel
	}
	switch {
	case errors.Is(err, contract.ErrArchive):
		return CodeArchive
	case errors.Is(err, contract.ErrParse):
		return CodeParse
	case errors.Is(err, contract.ErrMissingField):
		return CodeMissingField
	case errors.Is(err, contract.ErrInvariantViolation),
		errors.Is(err, contract.ErrUnknownCell),
		errors.Is(err, contract.ErrPathInvalid):
		return CodeInvariant
	}
	var perr *fs.PathError
	if errors.As(err, &perr) {
		return CodeIO
	}
	return CodeUnknown
}

// Report 记录一次组件失败：error 日志 + 操作/错误计数。
func Report(logger *Logger, comp, msg, fileID string, err error) Code {
	code := Classify(err)
	if logger != nil {
		logger.ErrorWithKV(comp, string(code), msg, nil, fileID, map[string]string{"err": err.Error()})
	}
	IncOp(comp, "error", "error")
	if code != CodeUnknown {
		IncError(comp, string(code))
	}
	return code
}
