package export

import (
	"context"
	"fmt"
	"io"
	"time"

	"prakriya/internal/diag"
	"prakriya/internal/loader"
	"prakriya/internal/sanscript"
	"prakriya/pkg/contract"
)

// Flat 平铺导出：表头 = Fields + form；每个成员的每条记录一行（成员序 → 记录序，不排序）。
func Flat(ctx context.Context, comp Components, set Settings, logger *diag.Logger) (st Stats, err error) {
	if err := sanity(comp, &set); err != nil {
		return Stats{}, fmt.Errorf("sanity: %w", err)
	}
	fields := set.Fields
	if len(fields) == 0 {
		fields = DefaultFlatFields
	}
	tr := sanscript.Func(set.Source, set.Target)
	ld := loader.New(loader.Flat, tr)

	rn := &runner{comp: "flat", comps: comp, set: set, logger: logger}
	rn.columns = append(append([]string(nil), fields...), contract.FieldForm)

	start := time.Now()
	diag.GetTerminal().RunStart("csv", set.ArchivePath)
	defer func() {
		st = rn.stats
		if err != nil {
			rn.abort()
		}
		diag.GetTerminal().RunFinish(err == nil, st.Members, st.Rows, time.Since(start))
	}()

	timer := logger.StartWithKV("flat", "export", set.ArchivePath, map[string]string{"fields": fmt.Sprint(fields)})
	err = rn.iterate(ctx, func(m contract.Member, r io.Reader) error {
		recs, err := ld.Load(ctx, m.Name, r)
		if err != nil {
			return err
		}
		form := tr(contract.FormName(m.Name))
		// 先组装整成员的行，缺字段时不写出任何一行
		rows := make([][]string, 0, len(recs))
		for i, rec := range recs {
			vals, err := rec.Values(fields)
			if err != nil {
				return fmt.Errorf("record %d: %w", i, err)
			}
			rows = append(rows, append(vals, form))
		}
		if err := rn.begin(ctx); err != nil {
			return err
		}
		for _, row := range rows {
			if err := comp.Sink.WriteRow(ctx, row); err != nil {
				return fmt.Errorf("sink write: %w", err)
			}
			rn.stats.Rows++
		}
		rn.stats.Records += len(recs)
		return nil
	})
	if err != nil {
		return rn.stats, err
	}
	if err = rn.commit(ctx); err != nil {
		return rn.stats, err
	}
	timer.Finish("export", rn.stats.Rows)
	return rn.stats, nil
}
