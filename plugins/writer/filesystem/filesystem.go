package filesystem

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/c2h5oh/datasize"

	"prakriya/pkg/contract"
)

// Options: 最小必要选项。
type Options struct {
	// OutputDir: 输出根目录（必需）。
	OutputDir string `json:"output_dir"`
	// Atomic: 是否使用原子替换（同目录临时文件 + rename）。
	// 默认 true；显式 false 时直接截断写目标文件，失败时保留已写出的部分。
	Atomic *bool `json:"atomic,omitempty"`
	// Flat: 是否扁平化输出（仅保留文件名，不保留目录层级）。默认 true。
	Flat *bool `json:"flat,omitempty"`
	// PermFile/PermDir: 可选权限；为 0 表示使用默认。
	PermFile os.FileMode `json:"perm_file,omitempty"`
	PermDir  os.FileMode `json:"perm_dir,omitempty"`
	// BufSize: 写缓冲区大小，例如 "64KB"、"1MB"；为 0 使用默认 64KiB。
	BufSize datasize.ByteSize `json:"buf_size,omitempty"`
}

type FS struct {
	root    string
	atomic  bool
	flat    bool
	permF   os.FileMode
	permD   os.FileMode
	bufSize int
}

// New 创建文件系统 Writer 实现。
func New(opts *Options) (*FS, error) {
	if opts == nil || strings.TrimSpace(opts.OutputDir) == "" {
		return nil, os.ErrInvalid
	}
	bsz := int(opts.BufSize.Bytes())
	if bsz <= 0 {
		bsz = int((64 * datasize.KB).Bytes())
	}
	pf := opts.PermFile
	if pf == 0 {
		pf = 0o644
	}
	pd := opts.PermDir
	if pd == 0 {
		pd = 0o755
	}
	flat := true
	if opts.Flat != nil {
		flat = *opts.Flat
	}
	atomic := true
	if opts.Atomic != nil {
		atomic = *opts.Atomic
	}
	return &FS{root: opts.OutputDir, atomic: atomic, flat: flat, permF: pf, permD: pd, bufSize: bsz}, nil
}

var _ contract.Writer = (*FS)(nil)

// Open 打开 id 映射的目标产物。原子模式下写入同目录临时文件，Commit 时替换目标。
func (w *FS) Open(ctx context.Context, id contract.ArtifactID) (contract.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dest, err := w.mapPath(id)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(dest), w.permD); err != nil {
		return nil, err
	}
	if !w.atomic {
		f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, w.permF)
		if err != nil {
			return nil, err
		}
		return &artifact{f: f, bw: bufio.NewWriterSize(f, w.bufSize), dest: dest}, nil
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-*")
	if err != nil {
		return nil, err
	}
	// 目标权限：尽量与期望一致
	_ = os.Chmod(tmp.Name(), w.permF)
	return &artifact{f: tmp, bw: bufio.NewWriterSize(tmp, w.bufSize), dest: dest, tmp: tmp.Name()}, nil
}

// mapPath: Clean + Join + 越界校验。
func (w *FS) mapPath(id contract.ArtifactID) (string, error) {
	rel := filepath.Clean(string(id))
	if w.flat {
		rel = filepath.Base(rel)
		if rel == "." || rel == ".." || rel == "" || rel == string(filepath.Separator) {
			return "", fmt.Errorf("%w: %q", contract.ErrPathInvalid, id)
		}
		return filepath.Join(w.root, rel), nil
	}
	// 非扁平：禁止绝对路径、父级逃逸、Windows 卷名
	if rel == "." || rel == "" || filepath.IsAbs(rel) || filepath.VolumeName(rel) != "" ||
		rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", contract.ErrPathInvalid, id)
	}
	return filepath.Join(w.root, rel), nil
}

// artifact: 打开中的输出文件。tmp 非空表示原子模式。
type artifact struct {
	f    *os.File
	bw   *bufio.Writer
	dest string
	tmp  string
	done bool
}

func (a *artifact) Write(p []byte) (int, error) {
	if a.done {
		return 0, os.ErrClosed
	}
	return a.bw.Write(p)
}

// Commit 刷新缓冲；原子模式下 fsync + 替换目标 + 同步父目录。
func (a *artifact) Commit() error {
	if a.done {
		return nil
	}
	a.done = true
	if err := a.bw.Flush(); err != nil {
		a.discard()
		return err
	}
	if a.tmp == "" {
		return a.f.Close()
	}
	if err := a.f.Sync(); err != nil {
		a.discard()
		return err
	}
	if err := a.f.Close(); err != nil {
		_ = os.Remove(a.tmp)
		return err
	}
	// 平台特定的原子替换（或最佳努力）
	if err := osReplace(a.tmp, a.dest); err != nil {
		_ = os.Remove(a.tmp)
		return err
	}
	_ = syncDir(filepath.Dir(a.dest))
	return nil
}

// Abort 释放句柄：原子模式删除临时文件，目标保持原状；非原子模式保留已写出的截断内容。
func (a *artifact) Abort() error {
	if a.done {
		return nil
	}
	a.done = true
	if a.tmp == "" {
		_ = a.bw.Flush()
		return a.f.Close()
	}
	a.discard()
	return nil
}

func (a *artifact) discard() {
	_ = a.f.Close()
	if a.tmp != "" {
		_ = os.Remove(a.tmp)
	}
}
