package contract

import (
	"context"
	"io"
)

// Member: 归档中的单个条目。
type Member struct {
	// Name: 归档内路径（统一为 '/' 分隔）。
	Name string
	// Index: 条目在归档列表中的位置（自 0 起，目录等非文件条目同样计数）。
	Index int
}

// ArchiveReader: 归档输入抽象（tar 流 / 已解包目录）。
// 约束：
//  1. 按归档列表顺序回调，不排序、不并发；
//  2. 仅对常规文件调用 yield，r 仅在回调期间有效；
//  3. 打开/解压失败返回包裹 ErrArchive 的错误；
//  4. yield 返回的错误原样向上返回并终止遍历。
type ArchiveReader interface {
	Iterate(ctx context.Context, path string, yield func(m Member, r io.Reader) error) error
}
