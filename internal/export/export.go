// Package export 驱动两条批处理管线：平铺 CSV（逐记录出行）与透视 TSV（先累积后输出）。
package export

// - 单 goroutine：归档按列表顺序顺次处理，成员之间检查 ctx 取消。
// - 惰性 Begin：首个成员被接受时才打开输出，归档打不开时不产生任何输出。
// - 失败即 Abort：任何返回错误的路径都会放弃 Sink（原子 Writer 下目标保持原状）。
// - skip 策略：解析/缺字段类错误按成员隔离，先整体校验再写出，被跳过成员不留下部分行。

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"prakriya/internal/diag"
	"prakriya/internal/paradigm"
	"prakriya/internal/sanscript"
	"prakriya/pkg/contract"
)

// 错误策略。
const (
	OnErrorAbort = "abort"
	OnErrorSkip  = "skip"
)

// DefaultFlatFields: 平铺导出的默认列（其后追加 form）。
var DefaultFlatFields = []string{
	contract.FieldRootForm, contract.FieldVerbAccent, contract.FieldMeaning, contract.FieldGana,
	contract.FieldNumber, contract.FieldLakara, "purusha", "vachana", contract.FieldSuffix, "it_status",
}

// Components 聚合运行所需的组件。
type Components struct {
	Archive contract.ArchiveReader
	Sink    contract.RowSink
}

// Settings 运行期配置（最小必要）。
type Settings struct {
	ArchivePath string
	// Source/Target: 转写方案（源数据一般为 SLP1，输出为天城体）。
	Source *sanscript.Scheme
	Target *sanscript.Scheme
	// Fields: 平铺导出列（为空使用 DefaultFlatFields）。
	Fields []string
	// Table: 透视范式表。
	Table paradigm.Table
	// ProgressEvery: 每隔多少个成员索引记录一次进度；<=0 使用 1000。
	ProgressEvery int
	// OnError: abort|skip；空为 abort。
	OnError string
}

// Stats 为一次运行的汇总。
type Stats struct {
	// Members: 已回调的文件成员数。
	Members  int
	Records  int
	Rows     int64
	Skipped  int
	// Unplaced: 落在范式表之外、未进入任何列的词形数（仅透视）。
	Unplaced int
	// Roots: 透视表的不同词根数。
	Roots int
}

func sanity(comp Components, set *Settings) error {
	if comp.Archive == nil || comp.Sink == nil {
		return errors.New("export: missing components")
	}
	if strings.TrimSpace(set.ArchivePath) == "" {
		return errors.New("export: empty archive path")
	}
	if set.Source == nil || set.Target == nil {
		return errors.New("export: missing transliteration schemes")
	}
	if set.ProgressEvery <= 0 {
		set.ProgressEvery = 1000
	}
	switch set.OnError {
	case "":
		set.OnError = OnErrorAbort
	case OnErrorAbort, OnErrorSkip:
	default:
		return fmt.Errorf("export: unknown on_error %q", set.OnError)
	}
	return nil
}

// skippable: skip 策略下可按成员隔离的错误。
func skippable(set Settings, err error) bool {
	if set.OnError != OnErrorSkip {
		return false
	}
	return errors.Is(err, contract.ErrParse) ||
		errors.Is(err, contract.ErrMissingField)
}

// memberError 标记已在成员层记录过的失败。
type memberError struct {
	name string
	err  error
}

func (e *memberError) Error() string { return fmt.Sprintf("member %s: %v", e.name, e.err) }
func (e *memberError) Unwrap() error { return e.err }

// runner 是两条管线共用的外壳：遍历、进度、skip 判定、惰性 Begin、Abort/Commit。
type runner struct {
	comp    string
	comps   Components
	set     Settings
	logger  *diag.Logger
	stats   Stats
	begun   bool
	columns []string
}

func (rn *runner) begin(ctx context.Context) error {
	if rn.begun {
		return nil
	}
	if err := rn.comps.Sink.Begin(ctx, rn.columns); err != nil {
		diag.Report(rn.logger, "sink", "begin failed", "", err)
		return fmt.Errorf("sink begin: %w", err)
	}
	rn.begun = true
	return nil
}

// abort 放弃输出；原错误优先。
func (rn *runner) abort() {
	if err := rn.comps.Sink.Abort(); err != nil {
		diag.Report(rn.logger, "sink", "abort failed", "", err)
	}
}

// commit 确保表头已写（空归档也产出表头）并提交。
func (rn *runner) commit(ctx context.Context) error {
	if err := rn.begin(ctx); err != nil {
		return err
	}
	if err := rn.comps.Sink.Commit(); err != nil {
		diag.Report(rn.logger, "sink", "commit failed", "", err)
		return fmt.Errorf("sink commit: %w", err)
	}
	diag.IncOp("sink", "commit", "success")
	return nil
}

// iterate 遍历归档，对每个文件成员调用 member。
// 进度按成员索引（含目录等非文件条目）每 ProgressEvery 记录一次。
func (rn *runner) iterate(ctx context.Context, member func(m contract.Member, r io.Reader) error) error {
	timer := rn.logger.StartWithKV("archive", "iterate", rn.set.ArchivePath, map[string]string{"on_error": rn.set.OnError})
	err := rn.comps.Archive.Iterate(ctx, rn.set.ArchivePath, func(m contract.Member, r io.Reader) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		rn.stats.Members++
		if err := member(m, r); err != nil {
			if skippable(rn.set, err) {
				rn.stats.Skipped++
				code := diag.Classify(err)
				rn.logger.Warn(rn.comp, string(code), err.Error(), m.Name)
				diag.IncOp(rn.comp, "member", "skip")
				diag.IncError(rn.comp, string(code))
				diag.GetTerminal().Skip(m.Name)
			} else {
				diag.Report(rn.logger, rn.comp, "member failed", m.Name, err)
				return &memberError{name: m.Name, err: err}
			}
		} else {
			diag.IncOp(rn.comp, "member", "success")
		}
		if m.Index%rn.set.ProgressEvery == 0 {
			rn.logger.Progress(rn.comp, m.Index, rn.stats.Rows)
			diag.GetTerminal().Progress(m.Index, rn.stats.Rows)
		}
		return nil
	})
	if err != nil {
		var me *memberError
		if !errors.As(err, &me) {
			diag.Report(rn.logger, "archive", "iterate failed", rn.set.ArchivePath, err)
		}
		return fmt.Errorf("archive iterate: %w", err)
	}
	timer.Finish("iterate", int64(rn.stats.Members))
	return nil
}
