package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults 返回带有安全默认值的 Config 雏形。
// 注意：archive 的默认路径仅作约定，文件是否存在在运行期检查。
func Defaults() Config {
	return Config{
		Archive:       filepath.Join("data", "derivation_v003.tar.gz"),
		OutputDir:     "data",
		Scheme:        Scheme{Source: "slp1", Target: "devanagari"},
		ProgressEvery: 1000,
		OnError:       "abort",
		Logging:       Logging{Level: "info", Dir: "logs"},
		Components:    Components{Archive: "tar", Writer: "fs"},
		Flat:          Output{Output: "dhaval_prakriya_forms.csv", Sink: "delimited"},
		Pivot:         Output{Output: "dhaval_verb_forms.tsv", Sink: "delimited"},
	}
}

// Load 从文件路径或原始字节解析 Config（严格拒绝未知字段）。
// .yaml/.yml 先经 yaml.v3 解码再按 JSON 严格解析，其余按 JSON。
func Load(path string, raw []byte) (Config, error) {
	var cfg Config
	switch {
	case len(raw) > 0:
	case path != "":
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		raw = b
	default:
		return cfg, errors.New("no config source provided")
	}
	if isYAML(path) {
		j, err := yamlToJSON(raw)
		if err != nil {
			return cfg, fmt.Errorf("config %s: %w", path, err)
		}
		raw = j
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func yamlToJSON(raw []byte) ([]byte, error) {
	var v interface{}
	if err := yaml.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	if v == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(v)
}

// Merge 按优先级合并（后者覆盖前者）。
// 仅标量/字符串/原样 JSON 为“替换”；不做深度合并。
func Merge(base, over Config) Config {
	out := base
	setStr(&out.Archive, over.Archive)
	setStr(&out.OutputDir, over.OutputDir)
	setStr(&out.Scheme.Source, over.Scheme.Source)
	setStr(&out.Scheme.Target, over.Scheme.Target)
	if over.ProgressEvery != 0 {
		out.ProgressEvery = over.ProgressEvery
	}
	setStr(&out.OnError, over.OnError)
	setStr(&out.MetricsFile, over.MetricsFile)
	setStr(&out.ParadigmFile, over.ParadigmFile)
	setStr(&out.Logging.Level, over.Logging.Level)
	setStr(&out.Logging.Dir, over.Logging.Dir)

	// 组件名（空不覆盖）
	setStr(&out.Components.Archive, over.Components.Archive)
	setStr(&out.Components.Writer, over.Components.Writer)

	// Options（完整替换对应键）
	if len(over.Options.Archive) > 0 {
		out.Options.Archive = cloneRaw(over.Options.Archive)
	}
	if len(over.Options.Writer) > 0 {
		out.Options.Writer = cloneRaw(over.Options.Writer)
	}
	out.Flat = mergeOutput(out.Flat, over.Flat)
	out.Pivot = mergeOutput(out.Pivot, over.Pivot)
	return out
}

func mergeOutput(base, over Output) Output {
	out := base
	setStr(&out.Output, over.Output)
	setStr(&out.Sink, over.Sink)
	if len(over.SinkOptions) > 0 {
		out.SinkOptions = cloneRaw(over.SinkOptions)
	}
	if len(over.Fields) > 0 {
		out.Fields = cloneStrings(over.Fields)
	}
	return out
}

func setStr(dst *string, v string) {
	if t := strings.TrimSpace(v); t != "" {
		*dst = t
	}
}

// EnvPrefix: 环境变量前缀。
const EnvPrefix = "PRAKRIYA_"

// EnvOverlay 从环境变量构建一个 Config 覆盖（仅解析有限键集合，其他键忽略）。
// 支持：ARCHIVE, OUTPUT_DIR, SCHEME_SOURCE, SCHEME_TARGET, PROGRESS_EVERY, ON_ERROR,
// METRICS_FILE, PARADIGM_FILE, LOG_LEVEL, LOG_DIR, COMPONENTS_{ARCHIVE,WRITER},
// OPTIONS_{ARCHIVE,WRITER}_JSON, {FLAT,PIVOT}_{OUTPUT,SINK,SINK_OPTIONS_JSON}, FLAT_FIELDS。
func EnvOverlay(environ []string) (Config, error) {
	var over Config
	for _, kv := range environ {
		if !strings.HasPrefix(kv, EnvPrefix) {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq <= len(EnvPrefix) {
			continue
		}
		key, val := kv[len(EnvPrefix):eq], kv[eq+1:]
		// 空值视为未设置（.env 模板中的占位键）
		if strings.TrimSpace(val) == "" {
			continue
		}
		switch key {
		case "ARCHIVE":
			over.Archive = val
		case "OUTPUT_DIR":
			over.OutputDir = val
		case "SCHEME_SOURCE":
			over.Scheme.Source = val
		case "SCHEME_TARGET":
			over.Scheme.Target = val
		case "PROGRESS_EVERY":
			n, err := atoi(val)
			if err != nil {
				return over, fmt.Errorf("%sPROGRESS_EVERY: %w", EnvPrefix, err)
			}
			over.ProgressEvery = n
		case "ON_ERROR":
			over.OnError = val
		case "METRICS_FILE":
			over.MetricsFile = val
		case "PARADIGM_FILE":
			over.ParadigmFile = val
		case "LOG_LEVEL":
			over.Logging.Level = val
		case "LOG_DIR":
			over.Logging.Dir = val
		case "COMPONENTS_ARCHIVE":
			over.Components.Archive = val
		case "COMPONENTS_WRITER":
			over.Components.Writer = val
		case "OPTIONS_ARCHIVE_JSON":
			over.Options.Archive = rawIfSet(val)
		case "OPTIONS_WRITER_JSON":
			over.Options.Writer = rawIfSet(val)
		case "FLAT_OUTPUT":
			over.Flat.Output = val
		case "FLAT_SINK":
			over.Flat.Sink = val
		case "FLAT_SINK_OPTIONS_JSON":
			over.Flat.SinkOptions = rawIfSet(val)
		case "FLAT_FIELDS":
			over.Flat.Fields = splitComma(val)
		case "PIVOT_OUTPUT":
			over.Pivot.Output = val
		case "PIVOT_SINK":
			over.Pivot.Sink = val
		case "PIVOT_SINK_OPTIONS_JSON":
			over.Pivot.SinkOptions = rawIfSet(val)
		}
	}
	return over, nil
}

// rawIfSet: 空值视为未设置，避免清空现有配置。
func rawIfSet(val string) json.RawMessage {
	if strings.TrimSpace(val) == "" {
		return nil
	}
	return json.RawMessage(val)
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneRaw(in json.RawMessage) json.RawMessage {
	if len(in) == 0 {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

func splitComma(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func atoi(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}
