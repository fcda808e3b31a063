package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prakriya/internal/diag"
	"prakriya/internal/export"
	"prakriya/pkg/contract"
)

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var out, errb bytes.Buffer
	code := execute(context.Background(), args, strings.NewReader(stdin), &out, &errb)
	return code, out.String(), errb.String()
}

// stubRuns 替换两条管线，返回捕获到的 Settings。
func stubRuns(t *testing.T, err error) *[]export.Settings {
	t.Helper()
	var got []export.Settings
	fn := func(ctx context.Context, comp export.Components, set export.Settings, logger *diag.Logger) (export.Stats, error) {
		got = append(got, set)
		return export.Stats{Members: 1, Rows: 2}, err
	}
	origF, origP := flatRun, pivotRun
	flatRun, pivotRun = fn, fn
	t.Cleanup(func() { flatRun, pivotRun = origF, origP })
	return &got
}

func TestTranslit(t *testing.T) {
	chdir(t, t.TempDir())
	code, out, _ := runCLI(t, "", "translit", "rAma")
	require.Equal(t, exitOK, code)
	assert.Equal(t, "राम\n", out)

	code, out, _ = runCLI(t, "rAma\nsItA\n", "translit")
	require.Equal(t, exitOK, code)
	assert.Equal(t, "राम\nसीता\n", out)

	code, out, _ = runCLI(t, "", "translit", "--from", "devanagari", "--to", "slp1", "राम")
	require.Equal(t, exitOK, code)
	assert.Equal(t, "rAma\n", out)

	code, _, errOut := runCLI(t, "", "translit", "--to", "klingon", "x")
	assert.Equal(t, exitConfig, code)
	assert.Contains(t, errOut, "--to")
}

func TestVersion(t *testing.T) {
	code, out, _ := runCLI(t, "", "version")
	require.Equal(t, exitOK, code)
	assert.Equal(t, "prakriya "+version+"\n", out)
}

func TestInitConfig(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	outDir := filepath.Join(dir, "out")

	code, out, _ := runCLI(t, "", "init-config", outDir)
	require.Equal(t, exitOK, code)
	assert.Equal(t, filepath.Join(outDir, "prakriya.yaml")+"\n", out)
	_, err := os.Stat(filepath.Join(outDir, "prakriya.yaml"))
	require.NoError(t, err)

	env, err := godotenv.Read(filepath.Join(outDir, ".env"))
	require.NoError(t, err)
	assert.Contains(t, env, "PRAKRIYA_ARCHIVE")
	assert.Empty(t, env["PRAKRIYA_ARCHIVE"])

	// 已存在：不覆盖
	code, _, errOut := runCLI(t, "", "init-config", outDir)
	assert.Equal(t, exitConfig, code)
	assert.Contains(t, errOut, "未覆盖")

	// 缺省为当前目录
	code, _, _ = runCLI(t, "", "init-config", "--name", "c.json")
	require.Equal(t, exitOK, code)
	_, err = os.Stat(filepath.Join(dir, "c.json"))
	assert.NoError(t, err)
}

func TestRunCSVFlags(t *testing.T) {
	chdir(t, t.TempDir())
	got := stubRuns(t, nil)

	code, _, _ := runCLI(t, "", "csv", "--archive", "in.tar", "--output-dir", "out", "--on-error", "skip", "--status=false")
	require.Equal(t, exitOK, code)
	require.Len(t, *got, 1)
	set := (*got)[0]
	assert.Equal(t, "in.tar", set.ArchivePath)
	assert.Equal(t, export.OnErrorSkip, set.OnError)
	assert.Equal(t, "devanagari", set.Target.Name())
}

func TestRunPivot(t *testing.T) {
	chdir(t, t.TempDir())
	got := stubRuns(t, nil)

	code, _, _ := runCLI(t, "", "pivot", "--status=false")
	require.Equal(t, exitOK, code)
	require.Len(t, *got, 1)
	assert.NoError(t, (*got)[0].Table.Validate())
	assert.Equal(t, filepath.Join("data", "derivation_v003.tar.gz"), (*got)[0].ArchivePath)
}

func TestRunPrecedence(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	got := stubRuns(t, nil)

	cfg := "archive: file.tar\noutput_dir: file-out\non_error: skip\nprogress_every: 7\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prakriya.yaml"), []byte(cfg), 0o644))
	t.Setenv("PRAKRIYA_ARCHIVE", "env.tar")
	t.Setenv("PRAKRIYA_PROGRESS_EVERY", "9")

	code, _, _ := runCLI(t, "", "csv", "--on-error", "abort", "--status=false")
	require.Equal(t, exitOK, code)
	require.Len(t, *got, 1)
	set := (*got)[0]
	assert.Equal(t, "env.tar", set.ArchivePath)
	assert.Equal(t, 9, set.ProgressEvery)
	assert.Equal(t, export.OnErrorAbort, set.OnError)
}

func TestRunConfigJSONEnv(t *testing.T) {
	chdir(t, t.TempDir())
	got := stubRuns(t, nil)
	t.Setenv("PRAKRIYA_CONFIG_JSON", `{"archive":"j.tar","scheme":{"target":"iast"}}`)

	code, _, _ := runCLI(t, "", "csv", "--status=false")
	require.Equal(t, exitOK, code)
	require.Len(t, *got, 1)
	assert.Equal(t, "j.tar", (*got)[0].ArchivePath)
	assert.Equal(t, "iast", (*got)[0].Target.Name())
}

func TestRunConfigErrors(t *testing.T) {
	chdir(t, t.TempDir())
	got := stubRuns(t, nil)

	cases := [][]string{
		{"csv", "--on-error", "retry"},
		{"pivot", "--log-level", "trace"},
		{"csv", "--config", "missing.yaml"},
		{"csv", "--no-such-flag"},
		{"csv", "extra"},
	}
	for _, args := range cases {
		code, _, _ := runCLI(t, "", args...)
		assert.Equal(t, exitConfig, code, "args %v", args)
	}
	assert.Empty(t, *got)
}

func TestRunRuntimeFailure(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	stubRuns(t, errors.Join(contract.ErrArchive, errors.New("open: no such file")))
	diag.ResetMetrics()

	metrics := filepath.Join(dir, "metrics.prom")
	t.Setenv("PRAKRIYA_METRICS_FILE", metrics)
	code, _, errOut := runCLI(t, "", "csv", "--status=false")
	assert.Equal(t, exitRuntime, code)
	assert.Contains(t, errOut, "运行失败")

	b, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(b), `result="error"`)
}

func TestRunCanceledIsQuiet(t *testing.T) {
	chdir(t, t.TempDir())
	stubRuns(t, context.Canceled)
	code, _, errOut := runCLI(t, "", "csv", "--status=false")
	assert.Equal(t, exitRuntime, code)
	assert.Empty(t, errOut)
}

func TestPreflightCheckOutputDir(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, preflightCheckOutputDir(dir))
	assert.NoError(t, preflightCheckOutputDir(filepath.Join(dir, "new")))

	file := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	assert.Error(t, preflightCheckOutputDir(file))
	assert.Error(t, preflightCheckOutputDir(filepath.Join(dir, "missing", "sub")))
}

func TestWriteDotEnvKeepsExisting(t *testing.T) {
	p := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(p, []byte("A=1\n"), 0o644))
	require.NoError(t, writeDotEnv(p))
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "A=1\n", string(b))
}

// chdir 切换工作目录并在测试结束时恢复（等价于 Go 1.24 的 t.Chdir）。
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
