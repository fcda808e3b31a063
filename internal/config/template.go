package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultTemplateConfig 返回一个可运行的默认配置模板：
// 组件名采用仓库内置实现，选项给出全部键与中性默认值。
func DefaultTemplateConfig() Config {
	cfg := Defaults()
	cfg.Flat.Fields = []string{"dhAtu", "verbaccent", "meaning", "gana", "number",
		"lakara", "purusha", "vachana", "suffix", "it_status"}
	cfg.Options.Archive = json.RawMessage(`{"compression": "auto", "buf_size": "256KB", "blocks": 4}`)
	cfg.Options.Writer = json.RawMessage(`{"atomic": true, "flat": true, "buf_size": "64KB"}`)
	cfg.Flat.SinkOptions = json.RawMessage(`{"delimiter": ",", "quote": false}`)
	cfg.Pivot.SinkOptions = json.RawMessage(`{"delimiter": "\t", "quote": false}`)
	return cfg
}

// WriteTemplate 把模板写入 dir/name；已存在时不覆盖（返回 os.ErrExist）。
// name 以 .yaml/.yml 结尾时写 YAML，否则写缩进 JSON。
func WriteTemplate(dir, name string) (string, error) {
	if name == "" {
		name = "prakriya.yaml"
	}
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err == nil {
		return path, os.ErrExist
	} else if !errors.Is(err, os.ErrNotExist) {
		return path, err
	}
	b, err := json.MarshalIndent(DefaultTemplateConfig(), "", "  ")
	if err != nil {
		return path, err
	}
	if isYAML(name) {
		var v interface{}
		if err := json.Unmarshal(b, &v); err != nil {
			return path, err
		}
		if b, err = yaml.Marshal(v); err != nil {
			return path, err
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return path, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return path, err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return path, err
	}
	return path, f.Close()
}
