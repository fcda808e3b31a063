// Package delimited 把行写为分隔文本（CSV/TSV）。
package delimited

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"prakriya/pkg/contract"
)

// Options: 分隔文本选项。
type Options struct {
	// Delimiter: 列分隔符；为空时由调用方默认值决定（平铺 ","，透视 "\t"）。
	Delimiter string `json:"delimiter,omitempty"`
	// Quote: 按 RFC 4180 加引号（仅支持单字符分隔符）。默认 false：直接拼接。
	Quote bool `json:"quote,omitempty"`
}

// Sink 实现 contract.RowSink；内容经 Writer 的 Artifact 落盘。
type Sink struct {
	w     contract.Writer
	id    contract.ArtifactID
	delim string
	quote bool

	art  contract.Artifact
	csvw *csv.Writer
	cols int
}

// New 创建分隔文本 Sink；defaultDelim 在 opts 未指定分隔符时使用。
func New(w contract.Writer, id contract.ArtifactID, defaultDelim string, opts *Options) (*Sink, error) {
	if w == nil || strings.TrimSpace(string(id)) == "" {
		return nil, fmt.Errorf("delimited: writer and output are required")
	}
	s := &Sink{w: w, id: id, delim: defaultDelim}
	if opts != nil {
		if opts.Delimiter != "" {
			s.delim = opts.Delimiter
		}
		s.quote = opts.Quote
	}
	if s.delim == "" || strings.ContainsAny(s.delim, "\r\n") {
		return nil, fmt.Errorf("delimited: invalid delimiter %q", s.delim)
	}
	if s.quote && utf8.RuneCountInString(s.delim) != 1 {
		return nil, fmt.Errorf("delimited: quote requires a single-character delimiter, got %q", s.delim)
	}
	return s, nil
}

var _ contract.RowSink = (*Sink)(nil)

// Begin 打开产物并写表头。
func (s *Sink) Begin(ctx context.Context, columns []string) error {
	if s.art != nil {
		return fmt.Errorf("%w: delimited sink already begun", contract.ErrInvariantViolation)
	}
	art, err := s.w.Open(ctx, s.id)
	if err != nil {
		return err
	}
	s.art = art
	s.cols = len(columns)
	if s.quote {
		s.csvw = csv.NewWriter(art)
		s.csvw.Comma, _ = utf8.DecodeRuneInString(s.delim)
	}
	return s.write(columns)
}

// WriteRow 写一行；列数必须与表头一致。
func (s *Sink) WriteRow(ctx context.Context, values []string) error {
	if s.art == nil {
		return fmt.Errorf("%w: WriteRow before Begin", contract.ErrInvariantViolation)
	}
	if len(values) != s.cols {
		return fmt.Errorf("%w: row has %d values, header has %d", contract.ErrInvariantViolation, len(values), s.cols)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.write(values)
}

func (s *Sink) write(values []string) error {
	if s.csvw != nil {
		return s.csvw.Write(values)
	}
	_, err := io.WriteString(s.art, strings.Join(values, s.delim)+"\n")
	return err
}

// Commit 刷新并提交产物。
func (s *Sink) Commit() error {
	if s.art == nil {
		return nil
	}
	if s.csvw != nil {
		s.csvw.Flush()
		if err := s.csvw.Error(); err != nil {
			_ = s.art.Abort()
			return err
		}
	}
	return s.art.Commit()
}

// Abort 放弃产物（Begin 之前为 no-op）。
func (s *Sink) Abort() error {
	if s.art == nil {
		return nil
	}
	if s.csvw != nil {
		s.csvw.Flush()
	}
	return s.art.Abort()
}
