package contract

import "context"

// RowSink: 表格输出抽象（分隔文本 / SQLite）。
// 约束：
//  1. Begin 恰好调用一次，确定列数；
//  2. WriteRow 的值个数必须等于列数，否则返回 ErrInvariantViolation；
//  3. Commit 与 Abort 互斥，且任一调用后均释放底层资源；
//  4. Abort 在 Begin 之前调用为 no-op。
type RowSink interface {
	Begin(ctx context.Context, columns []string) error
	WriteRow(ctx context.Context, values []string) error
	Commit() error
	Abort() error
}
