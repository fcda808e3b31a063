package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"prakriya/internal/export"
	"prakriya/internal/paradigm"
	"prakriya/internal/sanscript"
	"prakriya/pkg/registry"
)

// 命令名。
const (
	CommandFlat  = "csv"
	CommandPivot = "pivot"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate 对最小必要边界做静态校验：结构标签 + 注册表名 + 方案名。
func Validate(cfg Config) error {
	if err := structValidator().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config: %s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("config: %w", err)
	}
	d := Defaults()
	if _, err := registry.Lookup("archive", registry.Archive, effName(cfg.Components.Archive, d.Components.Archive)); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := registry.Lookup("writer", registry.Writer, effName(cfg.Components.Writer, d.Components.Writer)); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	for _, o := range []struct {
		name string
		out  Output
		def  Output
	}{{"flat", cfg.Flat, d.Flat}, {"pivot", cfg.Pivot, d.Pivot}} {
		if _, err := registry.Lookup(o.name+" sink", registry.Sink, effName(o.out.Sink, o.def.Sink)); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	for _, f := range cfg.Flat.Fields {
		if strings.TrimSpace(f) == "" {
			return errors.New("config: flat.fields cannot contain empty names")
		}
	}
	if _, err := sanscript.Lookup(effName(cfg.Scheme.Source, d.Scheme.Source)); err != nil {
		return fmt.Errorf("config: scheme.source: %w", err)
	}
	if _, err := sanscript.Lookup(effName(cfg.Scheme.Target, d.Scheme.Target)); err != nil {
		return fmt.Errorf("config: scheme.target: %w", err)
	}
	return nil
}

// Assemble 为 command（csv|pivot）构造 Components 与 Settings。
// 严格 Options 解析在 registry （工厂）层进行；此处只传 raw JSON。
func Assemble(cfg Config, command string) (export.Components, export.Settings, error) {
	var comp export.Components
	var set export.Settings
	if err := Validate(cfg); err != nil {
		return comp, set, err
	}
	d := Defaults()
	var out, def Output
	delim := ","
	switch command {
	case CommandFlat:
		out, def = cfg.Flat, d.Flat
	case CommandPivot:
		out, def = cfg.Pivot, d.Pivot
		delim = "\t"
	default:
		return comp, set, fmt.Errorf("config: unknown command %q", command)
	}

	newArchive := registry.Archive[effName(cfg.Components.Archive, d.Components.Archive)]
	arc, err := newArchive(cfg.Options.Archive)
	if err != nil {
		return comp, set, fmt.Errorf("config: options.archive: %w", err)
	}
	wraw, err := withOutputDir(cfg.Options.Writer, cfg.OutputDir)
	if err != nil {
		return comp, set, fmt.Errorf("config: options.writer: %w", err)
	}
	w, err := registry.Writer[effName(cfg.Components.Writer, d.Components.Writer)](wraw)
	if err != nil {
		return comp, set, fmt.Errorf("config: options.writer: %w", err)
	}
	target := registry.Target{
		Writer:    w,
		OutputDir: cfg.OutputDir,
		Output:    effName(out.Output, def.Output),
		Delimiter: delim,
	}
	sink, err := registry.Sink[effName(out.Sink, def.Sink)](out.SinkOptions, target)
	if err != nil {
		return comp, set, fmt.Errorf("config: %s.sink_options: %w", command, err)
	}

	table := paradigm.Default()
	if command == CommandPivot && cfg.ParadigmFile != "" {
		if table, err = paradigm.Load(cfg.ParadigmFile); err != nil {
			return comp, set, fmt.Errorf("config: %w", err)
		}
	}
	src, _ := sanscript.Lookup(effName(cfg.Scheme.Source, d.Scheme.Source))
	dst, _ := sanscript.Lookup(effName(cfg.Scheme.Target, d.Scheme.Target))

	comp = export.Components{Archive: arc, Sink: sink}
	set = export.Settings{
		ArchivePath:   cfg.Archive,
		Source:        src,
		Target:        dst,
		Fields:        cloneStrings(cfg.Flat.Fields),
		Table:         table,
		ProgressEvery: cfg.ProgressEvery,
		OnError:       effName(cfg.OnError, d.OnError),
	}
	return comp, set, nil
}

// withOutputDir: writer options 未指定 output_dir 时注入顶层 output_dir。
func withOutputDir(raw json.RawMessage, dir string) (json.RawMessage, error) {
	m := map[string]json.RawMessage{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		if m == nil {
			m = map[string]json.RawMessage{}
		}
	}
	if _, ok := m["output_dir"]; !ok {
		b, _ := json.Marshal(dir)
		m["output_dir"] = b
	}
	return json.Marshal(m)
}

func effName(got, def string) string {
	if strings.TrimSpace(got) == "" {
		return def
	}
	return got
}
