// Package sqlite 把行写入 SQLite 数据库的单张表（全部 TEXT 列）。
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"prakriya/pkg/contract"
)

// Options: SQLite 选项。
type Options struct {
	// Table: 表名；默认 "rows"。
	Table string `json:"table,omitempty"`
}

// Sink 在一个事务内建表并插入全部行；Commit 时把临时库替换为目标文件。
type Sink struct {
	dest  string
	table string

	tmp  string
	db   *sql.DB
	tx   *sql.Tx
	stmt *sql.Stmt
	cols int
}

// New 创建 SQLite Sink；output 为 outputDir 下的文件名（不得含目录）。
func New(outputDir, output string, opts *Options) (*Sink, error) {
	if strings.TrimSpace(outputDir) == "" {
		return nil, fmt.Errorf("sqlite: output_dir is required")
	}
	if output == "" || output == "." || output == ".." || filepath.Base(output) != output {
		return nil, fmt.Errorf("%w: %q", contract.ErrPathInvalid, output)
	}
	s := &Sink{dest: filepath.Join(outputDir, output), table: "rows"}
	if opts != nil && strings.TrimSpace(opts.Table) != "" {
		s.table = opts.Table
	}
	return s, nil
}

var _ contract.RowSink = (*Sink)(nil)

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// Begin 创建临时库、开启事务、建表并预编译插入语句。
func (s *Sink) Begin(ctx context.Context, columns []string) error {
	if s.db != nil {
		return fmt.Errorf("%w: sqlite sink already begun", contract.ErrInvariantViolation)
	}
	if len(columns) == 0 {
		return fmt.Errorf("%w: no columns", contract.ErrInvariantViolation)
	}
	dir := filepath.Dir(s.dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".tmp-*.db")
	if err != nil {
		return err
	}
	s.tmp = f.Name()
	_ = f.Close()

	db, err := sql.Open("sqlite", s.tmp)
	if err != nil {
		s.cleanup()
		return err
	}
	s.db = db
	db.SetMaxOpenConns(1)
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		s.cleanup()
		return err
	}
	s.tx = tx

	defs := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = quoteIdent(c) + " TEXT"
		marks[i] = "?"
	}
	ddl := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(s.table), strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		s.cleanup()
		return fmt.Errorf("sqlite create table: %w", err)
	}
	ins := fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(s.table), strings.Join(marks, ", "))
	stmt, err := tx.PrepareContext(ctx, ins)
	if err != nil {
		s.cleanup()
		return err
	}
	s.stmt = stmt
	s.cols = len(columns)
	return nil
}

// WriteRow 插入一行；列数必须与表头一致。
func (s *Sink) WriteRow(ctx context.Context, values []string) error {
	if s.stmt == nil {
		return fmt.Errorf("%w: WriteRow before Begin", contract.ErrInvariantViolation)
	}
	if len(values) != s.cols {
		return fmt.Errorf("%w: row has %d values, header has %d", contract.ErrInvariantViolation, len(values), s.cols)
	}
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	_, err := s.stmt.ExecContext(ctx, args...)
	return err
}

// Commit 提交事务并原子替换目标库。
func (s *Sink) Commit() error {
	if s.db == nil {
		return nil
	}
	_ = s.stmt.Close()
	s.stmt = nil
	if err := s.tx.Commit(); err != nil {
		s.tx = nil
		s.cleanup()
		return err
	}
	s.tx = nil
	if err := s.db.Close(); err != nil {
		s.db = nil
		s.cleanup()
		return err
	}
	s.db = nil
	if err := os.Rename(s.tmp, s.dest); err != nil {
		s.cleanup()
		return err
	}
	s.tmp = ""
	return nil
}

// Abort 回滚并删除临时库（Begin 之前为 no-op）。
func (s *Sink) Abort() error {
	s.cleanup()
	return nil
}

func (s *Sink) cleanup() {
	if s.stmt != nil {
		_ = s.stmt.Close()
		s.stmt = nil
	}
	if s.tx != nil {
		_ = s.tx.Rollback()
		s.tx = nil
	}
	if s.db != nil {
		_ = s.db.Close()
		s.db = nil
	}
	if s.tmp != "" {
		_ = os.Remove(s.tmp)
		_ = os.Remove(s.tmp + "-journal")
		s.tmp = ""
	}
}
