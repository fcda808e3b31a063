package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	cfgpkg "prakriya/internal/config"
	"prakriya/internal/diag"
	"prakriya/internal/export"
	"prakriya/internal/sanscript"
)

// 可在测试中替换。
var (
	flatRun  = export.Flat
	pivotRun = export.Pivot
)

// version 由构建时 -ldflags "-X main.version=..." 注入。
var version = "dev"

// 退出码：0 成功，1 运行期失败，3 配置/参数失败。
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 3
)

// exitError 携带退出码。
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func configError(format string, a ...any) error {
	return &exitError{code: exitConfig, err: fmt.Errorf(format, a...)}
}

func runtimeError(format string, a ...any) error {
	return &exitError{code: exitRuntime, err: fmt.Errorf(format, a...)}
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// 在任何 ENV 读取前加载工作目录下的 .env（不覆盖已有 ENV；不存在时忽略）。
	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), stopSignals...)
	defer stop()
	return execute(ctx, args, os.Stdin, os.Stdout, os.Stderr)
}

// execute 运行命令树并把错误映射为退出码；未分类错误（旗标/参数）按配置失败处理。
func execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := newRootCommand(stdin, stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	if !errors.Is(err, context.Canceled) {
		_, _ = fmt.Fprintf(stderr, "错误: %v\n", err)
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitConfig
}

// globalFlags: 所有子命令共享的持久旗标。
type globalFlags struct {
	config    string
	archive   string
	outputDir string
	logLevel  string
	onError   string
	status    bool
}

func newRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "prakriya",
		Short:         "把 SLP1 派生归档转换为平铺 CSV 与透视 TSV",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&g.config, "config", "", "配置文件路径（YAML/JSON）；缺省读取 ./prakriya.yaml（若存在）")
	flags.StringVar(&g.archive, "archive", "", "输入归档路径（覆盖配置）")
	flags.StringVar(&g.outputDir, "output-dir", "", "输出目录（覆盖配置）")
	flags.StringVar(&g.logLevel, "log-level", "", "日志级别 debug|info|warn|error（覆盖配置）")
	flags.StringVar(&g.onError, "on-error", "", "成员错误策略 abort|skip（覆盖配置）")
	flags.BoolVar(&g.status, "status", true, "终端状态提示（stderr）。TTY 动态刷新；非 TTY 打点输出")

	root.AddCommand(
		exportCommand(g, cfgpkg.CommandFlat, "平铺导出：每条派生记录一行（CSV）"),
		exportCommand(g, cfgpkg.CommandPivot, "透视导出：每个词根一行，按 lakara×suffix 展开（TSV）"),
		translitCommand(),
		initConfigCommand(),
		versionCommand(),
	)
	return root
}

func exportCommand(g *globalFlags, command, short string) *cobra.Command {
	return &cobra.Command{
		Use:   command,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), g, command, cmd.ErrOrStderr())
		},
	}
}

func runExport(ctx context.Context, g *globalFlags, command string, stderr io.Writer) error {
	start := time.Now()
	cfg, err := loadConfig(g, stderr)
	if err != nil {
		return err
	}
	logger := diag.NewLogger(uuid.NewString(), cfg.Logging.Level, cfg.Logging.Dir)
	defer func() { _ = logger.Close() }()

	// 预检：输出目录可写性
	if err := preflightCheckOutputDir(cfg.OutputDir); err != nil {
		logger.Error("cli", string(diag.Classify(err)), "first error", &start)
		return configError("输出目录不可写或无法创建: %w", err)
	}
	comp, set, err := cfgpkg.Assemble(cfg, command)
	if err != nil {
		logger.Error("cli", string(diag.Classify(err)), "first error", &start)
		return configError("装配失败: %w", err)
	}

	// 终端信息提示（非日志）
	term := diag.NewTerminal(stderr, g.status)
	diag.SetTerminal(term)
	defer diag.SetTerminal(nil)

	logger.DebugStart("config", "effective", "", map[string]string{
		"command":    command,
		"archive":    cfg.Archive,
		"output_dir": cfg.OutputDir,
		"source":     set.Source.Name(),
		"target":     set.Target.Name(),
		"on_error":   set.OnError,
		"reader":     cfg.Components.Archive,
		"writer":     cfg.Components.Writer,
	})

	runFn := flatRun
	if command == cfgpkg.CommandPivot {
		runFn = pivotRun
	}
	t := logger.Start("cli", command)
	st, err := runFn(ctx, comp, set, logger)
	if err != nil {
		code := diag.Classify(err)
		logger.Error("cli", string(code), "first error", &start)
		diag.IncOp("cli", command, "error")
		writeMetrics(cfg.MetricsFile, logger, stderr)
		return runtimeError("运行失败: %w", err)
	}
	t.Finish(command, st.Rows)
	diag.IncOp("cli", command, "success")
	writeMetrics(cfg.MetricsFile, logger, stderr)
	if st.Skipped > 0 {
		_, _ = fmt.Fprintf(stderr, "提示：已跳过 %d 个成员，详见日志\n", st.Skipped)
	}
	return nil
}

// loadConfig 按 Defaults → 文件 → ENV → CLI 合并并校验。
func loadConfig(g *globalFlags, stderr io.Writer) (cfgpkg.Config, error) {
	cfg := cfgpkg.Defaults()

	var raw []byte
	if s := os.Getenv(cfgpkg.EnvPrefix + "CONFIG_JSON"); s != "" {
		raw = []byte(s)
	}
	path := g.config
	if path == "" {
		path = os.Getenv(cfgpkg.EnvPrefix + "CONFIG_FILE")
	}
	// 默认读取工作目录下的配置（若存在）
	if path == "" && len(raw) == 0 {
		for _, p := range []string{"prakriya.yaml", "prakriya.yml", "prakriya.json"} {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}
	if path != "" || len(raw) > 0 {
		base, err := cfgpkg.Load(path, raw)
		if err != nil {
			return cfg, configError("配置解析失败: %w", err)
		}
		cfg = cfgpkg.Merge(cfg, base)
	}

	over, err := cfgpkg.EnvOverlay(os.Environ())
	if err != nil {
		return cfg, configError("环境变量解析失败: %w", err)
	}
	cfg = cfgpkg.Merge(cfg, over)

	cfg = cfgpkg.Merge(cfg, cfgpkg.Config{
		Archive:   g.archive,
		OutputDir: g.outputDir,
		OnError:   g.onError,
		Logging:   cfgpkg.Logging{Level: g.logLevel},
	})

	if err := cfgpkg.Validate(cfg); err != nil {
		// 打印有效配置，便于诊断
		_ = dumpConfig(stderr, cfg)
		return cfg, configError("配置校验失败: %w", err)
	}
	return cfg, nil
}

func writeMetrics(path string, logger *diag.Logger, stderr io.Writer) {
	if strings.TrimSpace(path) == "" {
		return
	}
	if err := diag.WriteMetrics(path); err != nil {
		logger.Warn("cli", string(diag.CodeIO), "metrics write failed: "+err.Error(), path)
		_, _ = fmt.Fprintf(stderr, "提示：指标文件写出失败（已跳过）：%v\n", err)
	}
}

func dumpConfig(w io.Writer, c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	_, _ = w.Write(append([]byte("有效配置:\n"), b...))
	_, _ = w.Write([]byte("\n"))
	return nil
}

func translitCommand() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "translit [TEXT...]",
		Short: "转写文本；无参数时逐行读取 stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := sanscript.Lookup(from)
			if err != nil {
				return configError("--from: %w", err)
			}
			dst, err := sanscript.Lookup(to)
			if err != nil {
				return configError("--to: %w", err)
			}
			tr := sanscript.Func(src, dst)
			out := cmd.OutOrStdout()
			if len(args) > 0 {
				for _, a := range args {
					_, _ = fmt.Fprintln(out, tr(a))
				}
				return nil
			}
			sc := bufio.NewScanner(cmd.InOrStdin())
			sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
			for sc.Scan() {
				_, _ = fmt.Fprintln(out, tr(sc.Text()))
			}
			if err := sc.Err(); err != nil {
				return runtimeError("读取 stdin 失败: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "slp1", "源方案（"+strings.Join(sanscript.Names(), "|")+"）")
	cmd.Flags().StringVar(&to, "to", "devanagari", "目标方案")
	return cmd
}

func initConfigCommand() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "init-config [dir]",
		Short: "在目录中生成默认配置与 .env 模板（已存在则不覆盖）",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
				dir = strings.TrimSpace(args[0])
			}
			path, err := cfgpkg.WriteTemplate(dir, name)
			if errors.Is(err, os.ErrExist) {
				return configError("配置已存在，未覆盖: %s", path)
			}
			if err != nil {
				return configError("生成默认配置失败: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), path)
			envPath := filepath.Join(dir, ".env")
			if err := writeDotEnv(envPath); err != nil {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "提示：.env 生成失败（已跳过）：%v\n", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "prakriya.yaml", "配置文件名（.yaml/.yml 写 YAML，其余写 JSON）")
	return cmd
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "打印版本",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "prakriya %s\n", version)
		},
	}
}

// dotEnvKeys: .env 模板中列出的覆盖键（值留空即未设置）。
var dotEnvKeys = []string{
	"CONFIG_FILE", "CONFIG_JSON",
	"ARCHIVE", "OUTPUT_DIR", "SCHEME_SOURCE", "SCHEME_TARGET", "PROGRESS_EVERY", "ON_ERROR",
	"METRICS_FILE", "PARADIGM_FILE", "LOG_LEVEL", "LOG_DIR",
	"COMPONENTS_ARCHIVE", "COMPONENTS_WRITER", "OPTIONS_ARCHIVE_JSON", "OPTIONS_WRITER_JSON",
	"FLAT_OUTPUT", "FLAT_SINK", "FLAT_SINK_OPTIONS_JSON", "FLAT_FIELDS",
	"PIVOT_OUTPUT", "PIVOT_SINK", "PIVOT_SINK_OPTIONS_JSON",
}

// writeDotEnv 生成 .env 模板（若文件已存在则跳过）。
func writeDotEnv(path string) error {
	if st, err := os.Stat(path); err == nil && !st.IsDir() {
		return nil
	} else if err != nil && !os.IsNotExist(err) {
		return err
	}
	m := make(map[string]string, len(dotEnvKeys))
	for _, k := range dotEnvKeys {
		m[cfgpkg.EnvPrefix+k] = ""
	}
	return godotenv.Write(m, path)
}

// preflightCheckOutputDir: 启动前检查输出目录可写性。
// 目录存在时尝试创建并删除临时文件；不存在时检查父目录可写。
func preflightCheckOutputDir(dir string) error {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil
	}
	if st, err := os.Stat(dir); err == nil && st.IsDir() {
		f, err := os.CreateTemp(dir, ".wcheck-*")
		if err != nil {
			return err
		}
		name := f.Name()
		_ = f.Close()
		_ = os.Remove(name)
		return nil
	} else if err == nil && !st.IsDir() {
		return fmt.Errorf("路径存在但不是目录: %s", dir)
	} else if err != nil && !os.IsNotExist(err) {
		return err
	}
	parent := filepath.Dir(filepath.Clean(dir))
	pst, err := os.Stat(parent)
	if err != nil {
		return err
	}
	if !pst.IsDir() {
		return fmt.Errorf("父路径不是目录: %s", parent)
	}
	tmpd, err := os.MkdirTemp(parent, ".wcheck-*")
	if err != nil {
		return err
	}
	_ = os.RemoveAll(tmpd)
	return nil
}
