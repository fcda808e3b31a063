package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"prakriya/pkg/contract"
	adir "prakriya/plugins/archive/dir"
	atar "prakriya/plugins/archive/tar"
	sdelim "prakriya/plugins/sink/delimited"
	ssql "prakriya/plugins/sink/sqlite"
	wfs "prakriya/plugins/writer/filesystem"
)

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// Target: Sink 的输出落点。
type Target struct {
	// Writer: 字节流产物的落地方式（delimited 使用）。
	Writer contract.Writer
	// OutputDir: 输出根目录（sqlite 直接写文件时使用）。
	OutputDir string
	// Output: 产物名（相对 OutputDir）。
	Output string
	// Delimiter: 管线默认分隔符（平铺 ","，透视 "\t"）。
	Delimiter string
}

// NewArchive 工厂签名：接收原样 JSON Options。
type NewArchive func(raw json.RawMessage) (contract.ArchiveReader, error)

// NewWriter 工厂签名：接收原样 JSON Options。
type NewWriter func(raw json.RawMessage) (contract.Writer, error)

// NewSink 工厂签名：接收原样 JSON Options 与输出落点。
type NewSink func(raw json.RawMessage, t Target) (contract.RowSink, error)

// Archive 工厂注册表（显式、零反射）。
var Archive = map[string]NewArchive{
	// tar: tar / tar.gz / tar.zst 归档
	"tar": func(raw json.RawMessage) (contract.ArchiveReader, error) {
		var opts atar.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return atar.New(&opts)
	},
	// dir: 已解包目录
	"dir": func(raw json.RawMessage) (contract.ArchiveReader, error) {
		var opts adir.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return adir.New(&opts), nil
	},
}

// Writer 工厂注册表。
var Writer = map[string]NewWriter{
	// fs: 文件系统 Writer（原子替换可配置）
	"fs": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wfs.New(&opts)
	},
}

// Sink 工厂注册表。
var Sink = map[string]NewSink{
	"delimited": func(raw json.RawMessage, t Target) (contract.RowSink, error) {
		var opts sdelim.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return sdelim.New(t.Writer, contract.ArtifactID(t.Output), t.Delimiter, &opts)
	},
	"sqlite": func(raw json.RawMessage, t Target) (contract.RowSink, error) {
		var opts ssql.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return ssql.New(t.OutputDir, t.Output, &opts)
	},
}

// Names 返回某注册表的全部名称（用于错误提示）。
func Names[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Lookup 按名称取工厂；未注册时返回带候选名的错误。
func Lookup[V any](kind string, m map[string]V, name string) (V, error) {
	f, ok := m[name]
	if !ok {
		var zero V
		return zero, fmt.Errorf("unknown %s %q (available: %v)", kind, name, Names(m))
	}
	return f, nil
}
