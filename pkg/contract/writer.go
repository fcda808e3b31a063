package contract

import (
	"context"
	"io"
)

// ArtifactID: 逻辑产物标识（例如相对输出目录的文件名）。
type ArtifactID string

// Artifact: 打开中的输出产物。
// Commit 使内容可见（原子实现下为 rename）；Abort 丢弃或保留截断内容（取决于实现）。
// 二者均释放句柄，重复调用为 no-op。
type Artifact interface {
	io.Writer
	Commit() error
	Abort() error
}

// Writer: 输出目标抽象。
// 约束：
// 1) 覆盖写；
// 2) 路径映射不得越界，违例返回 ErrPathInvalid；
// 3) 不在内部起并发。
type Writer interface {
	Open(ctx context.Context, id ArtifactID) (Artifact, error)
}
