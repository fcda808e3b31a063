package export

import (
	"context"
	"fmt"
	"io"
	"time"

	"prakriya/internal/diag"
	"prakriya/internal/loader"
	"prakriya/internal/pivot"
	"prakriya/internal/sanscript"
	"prakriya/pkg/contract"
)

// Pivot 透视导出：完整消费归档建立索引后，按词根序号升序每个词根输出一行。
func Pivot(ctx context.Context, comp Components, set Settings, logger *diag.Logger) (st Stats, err error) {
	if err := sanity(comp, &set); err != nil {
		return Stats{}, fmt.Errorf("sanity: %w", err)
	}
	if err := set.Table.Validate(); err != nil {
		return Stats{}, fmt.Errorf("paradigm: %w", err)
	}
	tr := sanscript.Func(set.Source, set.Target)
	ld := loader.New(loader.Pivot, tr)
	agg := pivot.New(set.Table)

	rn := &runner{comp: "pivot", comps: comp, set: set, logger: logger}
	rn.columns = agg.Header(tr)

	start := time.Now()
	diag.GetTerminal().RunStart("pivot", set.ArchivePath)
	defer func() {
		st = rn.stats
		st.Roots = agg.Len()
		if err != nil {
			rn.abort()
		}
		diag.GetTerminal().RunFinish(err == nil, st.Members, st.Rows, time.Since(start))
	}()

	itimer := logger.StartWithKV("pivot", "index", set.ArchivePath, map[string]string{"columns": fmt.Sprint(len(set.Table.Columns()))})
	err = rn.iterate(ctx, func(m contract.Member, r io.Reader) error {
		recs, err := ld.Load(ctx, m.Name, r)
		if err != nil {
			return err
		}
		unknown, err := agg.Add(tr(contract.FormName(m.Name)), recs)
		if err != nil {
			return err
		}
		for _, k := range unknown {
			// 不在范式表中的单元：词形不输出，词根照常保留。
			uerr := fmt.Errorf("%w: lakara %q suffix %q", contract.ErrUnknownCell, k.Lakara, k.Suffix)
			code := diag.Classify(uerr)
			logger.Warn("pivot", string(code), uerr.Error(), m.Name)
			diag.IncError("pivot", string(code))
			rn.stats.Unplaced++
		}
		rn.stats.Records += len(recs)
		return nil
	})
	if err != nil {
		return rn.stats, err
	}
	itimer.Finish("index", int64(agg.Len()))

	wtimer := logger.Start("pivot", "write")
	if err = rn.begin(ctx); err != nil {
		return rn.stats, err
	}
	for _, root := range agg.Roots() {
		if err = ctx.Err(); err != nil {
			return rn.stats, err
		}
		if err = comp.Sink.WriteRow(ctx, agg.Row(root)); err != nil {
			diag.Report(logger, "sink", "write failed", root, err)
			return rn.stats, fmt.Errorf("sink write: %w", err)
		}
		rn.stats.Rows++
	}
	if err = rn.commit(ctx); err != nil {
		return rn.stats, err
	}
	wtimer.Finish("write", rn.stats.Rows)
	return rn.stats, nil
}
