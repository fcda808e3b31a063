package config

import (
	"encoding/json"
)

// Config: 运行期只读配置（一次解析，运行期不变）。
// 键使用 snake_case；未知字段在解析期失败。
type Config struct {
	// Archive: 输入归档（tar/tar.gz/tar.zst 文件或已解包目录）。
	Archive   string `json:"archive" validate:"required"`
	OutputDir string `json:"output_dir" validate:"required"`
	Scheme    Scheme `json:"scheme"`
	// ProgressEvery: 每隔多少个成员记录一次进度；0 使用默认 1000。
	ProgressEvery int `json:"progress_every" validate:"gte=0"`
	// OnError: abort（首错终止）| skip（按成员隔离并跳过）。
	OnError string `json:"on_error" validate:"omitempty,oneof=abort skip"`
	// MetricsFile: 可选，运行结束时写出 Prometheus 文本格式指标。
	MetricsFile string `json:"metrics_file"`
	// ParadigmFile: 可选，覆盖内置范式表（YAML/JSON）。
	ParadigmFile string  `json:"paradigm_file"`
	Logging      Logging `json:"logging"`

	// 组件名选择（空则使用默认名）。
	Components Components `json:"components"`
	// 各组件 Options 子树，原样 JSON 传入工厂。
	Options Options `json:"options"`

	Flat  Output `json:"flat"`
	Pivot Output `json:"pivot"`
}

// Scheme: 转写方案名（见 sanscript.Names）。
type Scheme struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Logging: 日志等级与目录（轮转策略固定）。
type Logging struct {
	Level string `json:"level" validate:"omitempty,oneof=debug info warn error"`
	Dir   string `json:"dir"`
}

// Components: 组件名选择（注册表中的实现名）。
type Components struct {
	Archive string `json:"archive"`
	Writer  string `json:"writer"`
}

// Options: 各组件的原样 JSON Options。
type Options struct {
	Archive json.RawMessage `json:"archive"`
	Writer  json.RawMessage `json:"writer"`
}

// Output: 单条管线的输出定义。
type Output struct {
	// Output: 产物名（相对 output_dir）。
	Output string `json:"output"`
	// Sink: delimited | sqlite。
	Sink        string          `json:"sink"`
	SinkOptions json.RawMessage `json:"sink_options"`
	// Fields: 仅平铺导出使用；为空使用默认列。
	Fields []string `json:"fields"`
}
