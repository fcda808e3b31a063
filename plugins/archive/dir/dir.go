// Package dir 把已解包的归档目录当作归档读取。
package dir

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/c2h5oh/datasize"

	"prakriya/pkg/contract"
)

// Options 为目录 Reader 的可选配置。
type Options struct {
	// BufSize 为读缓冲区大小，例如 "64KB"。默认 64KiB。
	BufSize datasize.ByteSize `json:"buf_size,omitempty"`
	// ExcludeDirNames: 扫描时跳过这些目录名（基名匹配，不区分大小写），例如 [".git"]。
	ExcludeDirNames []string `json:"exclude_dir_names,omitempty"`
}

// Reader 以稳定字典序遍历目录树；成员名为相对根目录的 '/' 路径。
type Reader struct {
	bufSize    int
	excludeDir map[string]struct{}
}

// New 创建目录 Reader。
func New(opts *Options) *Reader {
	b := int((64 * datasize.KB).Bytes())
	if opts != nil && opts.BufSize > 0 {
		b = int(opts.BufSize.Bytes())
	}
	ex := make(map[string]struct{})
	if opts != nil {
		for _, name := range opts.ExcludeDirNames {
			if name = strings.Trim(name, "/\\ "); name != "" {
				ex[strings.ToLower(name)] = struct{}{}
			}
		}
	}
	return &Reader{bufSize: b, excludeDir: ex}
}

var _ contract.ArchiveReader = (*Reader)(nil)

// Iterate 遍历 root；目录与其他非常规条目计入索引但不回调。符号链接不跟随。
func (r *Reader) Iterate(ctx context.Context, root string, yield func(m contract.Member, rd io.Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("%w: %v", contract.ErrArchive, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", contract.ErrArchive, root)
	}
	idx := 0
	return r.walkDir(ctx, root, "", &idx, yield)
}

func (r *Reader) walkDir(ctx context.Context, dir, rel string, idx *int, yield func(contract.Member, io.Reader) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("%w: %v", contract.ErrArchive, err)
	}
	// 稳定顺序：字典序
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := e.Name()
		if rel != "" {
			name = rel + "/" + name
		}
		if e.IsDir() {
			if _, skip := r.excludeDir[strings.ToLower(e.Name())]; skip {
				continue
			}
			*idx++
			if err := r.walkDir(ctx, filepath.Join(dir, e.Name()), name, idx, yield); err != nil {
				return err
			}
			continue
		}
		m := contract.Member{Name: contract.NormalizeMemberName(name), Index: *idx}
		*idx++
		if !e.Type().IsRegular() {
			continue
		}
		if err := r.yieldFile(filepath.Join(dir, e.Name()), m, yield); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reader) yieldFile(p string, m contract.Member, yield func(contract.Member, io.Reader) error) error {
	f, err := os.Open(p)
	if err != nil {
		return fmt.Errorf("%w: %v", contract.ErrArchive, err)
	}
	defer f.Close()
	return yield(m, bufio.NewReaderSize(f, r.bufSize))
}
