// Package tar 读取（可压缩的）tar 归档，按列表顺序回调常规文件成员。
package tar

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"

	"prakriya/pkg/contract"
)

// 压缩格式。
const (
	CompressionAuto  = "auto"
	CompressionGzip  = "gzip"
	CompressionPgzip = "pgzip"
	CompressionZstd  = "zstd"
	CompressionNone  = "none"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Options 为 tar Reader 的可选配置。
type Options struct {
	// Compression: auto|gzip|pgzip|zstd|none；默认 auto（按魔数识别）。
	Compression string `json:"compression,omitempty"`
	// BufSize: 读缓冲，例如 "256KB"；默认 256KiB。
	BufSize datasize.ByteSize `json:"buf_size,omitempty"`
	// Blocks: pgzip 预读块数（每块 BufSize 字节）；默认 4。
	Blocks int `json:"blocks,omitempty"`
}

// Reader 实现 contract.ArchiveReader。
type Reader struct {
	compression string
	bufSize     int
	blocks      int
}

// New 创建 tar Reader；未知压缩格式返回错误。
func New(opts *Options) (*Reader, error) {
	r := &Reader{compression: CompressionAuto, bufSize: int((256 * datasize.KB).Bytes()), blocks: 4}
	if opts == nil {
		return r, nil
	}
	if c := strings.ToLower(strings.TrimSpace(opts.Compression)); c != "" {
		switch c {
		case CompressionAuto, CompressionGzip, CompressionPgzip, CompressionZstd, CompressionNone:
			r.compression = c
		default:
			return nil, fmt.Errorf("tar: unknown compression %q", opts.Compression)
		}
	}
	if opts.BufSize > 0 {
		r.bufSize = int(opts.BufSize.Bytes())
	}
	if opts.Blocks > 0 {
		r.blocks = opts.Blocks
	}
	return r, nil
}

var _ contract.ArchiveReader = (*Reader)(nil)

// Iterate 打开归档并按列表顺序遍历；非常规文件计入索引但不回调。
func (r *Reader) Iterate(ctx context.Context, path string, yield func(m contract.Member, rd io.Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", contract.ErrArchive, err)
	}
	defer f.Close()
	return r.iterate(ctx, bufio.NewReaderSize(f, r.bufSize), yield)
}

func (r *Reader) iterate(ctx context.Context, br *bufio.Reader, yield func(contract.Member, io.Reader) error) error {
	stream, closeFn, err := r.decompress(br)
	if err != nil {
		return fmt.Errorf("%w: %v", contract.ErrArchive, err)
	}
	defer closeFn()

	tr := tar.NewReader(stream)
	for idx := 0; ; idx++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: entry %d: %v", contract.ErrArchive, idx, err)
		}
		if !hdr.FileInfo().Mode().IsRegular() {
			continue
		}
		m := contract.Member{Name: contract.NormalizeMemberName(hdr.Name), Index: idx}
		if err := yield(m, tr); err != nil {
			return err
		}
	}
}

// decompress 按配置（或魔数）包装解压流；closeFn 释放解压器。
func (r *Reader) decompress(br *bufio.Reader) (io.Reader, func(), error) {
	c := r.compression
	if c == CompressionAuto {
		c = sniff(br)
	}
	switch c {
	case CompressionGzip:
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, nil, err
		}
		return zr, func() { _ = zr.Close() }, nil
	case CompressionPgzip:
		zr, err := pgzip.NewReaderN(br, r.bufSize, r.blocks)
		if err != nil {
			return nil, nil, err
		}
		return zr, func() { _ = zr.Close() }, nil
	case CompressionZstd:
		zr, err := zstd.NewReader(br, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, nil, err
		}
		return zr, zr.Close, nil
	default:
		return br, func() {}, nil
	}
}

func sniff(br *bufio.Reader) string {
	head, _ := br.Peek(len(zstdMagic))
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		return CompressionGzip
	case bytes.HasPrefix(head, zstdMagic):
		return CompressionZstd
	default:
		return CompressionNone
	}
}
