package testdata

import (
	"archive/tar"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "prakriya/internal/config"
	"prakriya/internal/export"
	"prakriya/pkg/contract"
)

// record 构造一条派生记录（SLP1）。
func record(root, lakara, suffix string) string {
	return fmt.Sprintf(`{"gana": "1", "number": %q, "meaning": "sattAyAm", "lakara": %q, "verb": "BU",
 "verbaccent": "BU/", "suffix": %q, "purusha": "praTama", "vachana": "eka", "it_status": "sew",
 "derivation": [{"sutra_num": "1.3.1", "form": "BU"}, {"sutra_num": "3.4.69", "form": "BU"}]}`, root, lakara, suffix)
}

// writeArchive 写出 tar.gz；body 为空的条目写为目录。
func writeArchive(t *testing.T, path string, entries [][2]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	for _, e := range entries {
		if e[1] == "" {
			require.NoError(t, tw.WriteHeader(&tar.Header{Name: e[0], Typeflag: tar.TypeDir, Mode: 0o755}))
			continue
		}
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: e[0], Typeflag: tar.TypeReg, Mode: 0o644, Size: int64(len(e[1]))}))
		_, err := tw.Write([]byte(e[1]))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
}

func baseConfig(archive, outDir string) cfgpkg.Config {
	cfg := cfgpkg.DefaultTemplateConfig()
	cfg.Archive = archive
	cfg.OutputDir = outDir
	cfg.Logging.Level = "error"
	return cfg
}

func fixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "derivation.tar.gz")
	writeArchive(t, path, [][2]string{
		{"derivations/", ""},
		{"derivations/Bavati.json", "[" + record("01.0001", "law", "tip") + "]"},
		{"derivations/BavataH.json", "[" + record("01.0001", "law", "tas") + "]"},
		{"derivations/aBavat.json", "[" + record("01.0001", "laN", "tip") + "]"},
		{"derivations/eDate.json", "[" + strings.Replace(record("01.0002", "law", "ta"), `"BU"`, `"eDa~"`, 1) + "]"},
	})
	return path
}

func run(t *testing.T, cfg cfgpkg.Config, command string) (export.Stats, error) {
	t.Helper()
	comp, set, err := cfgpkg.Assemble(cfg, command)
	require.NoError(t, err)
	if command == cfgpkg.CommandPivot {
		return export.Pivot(context.Background(), comp, set, nil)
	}
	return export.Flat(context.Background(), comp, set, nil)
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(b), "\n"), "\n")
}

func TestE2EFlat(t *testing.T) {
	outDir := t.TempDir()
	st, err := run(t, baseConfig(fixture(t), outDir), cfgpkg.CommandFlat)
	require.NoError(t, err)
	assert.Equal(t, int64(4), st.Rows)

	lines := readLines(t, filepath.Join(outDir, "dhaval_prakriya_forms.csv"))
	require.Len(t, lines, 5)
	assert.Equal(t, "dhAtu,verbaccent,meaning,gana,number,lakara,purusha,vachana,suffix,it_status,form", lines[0])
	assert.Equal(t, "भू,BU/,सत्तायाम्,१,०१.०००१,लट्,प्रथम,एक,तिप्,सेट्,भवति", lines[1])
	assert.True(t, strings.HasSuffix(lines[2], ",भवतः"), lines[2])
	assert.True(t, strings.HasSuffix(lines[3], ",अभवत्"), lines[3])
}

func TestE2EPivot(t *testing.T) {
	outDir := t.TempDir()
	st, err := run(t, baseConfig(fixture(t), outDir), cfgpkg.CommandPivot)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Roots)

	lines := readLines(t, filepath.Join(outDir, "dhaval_verb_forms.tsv"))
	require.Len(t, lines, 3)
	header := strings.Split(lines[0], "\t")
	assert.Len(t, header, 185)

	row := strings.Split(lines[1], "\t")
	require.Len(t, row, 185)
	assert.Equal(t, []string{"भू", "BU/", "सत्तायाम्", "१", "01.0001"}, row[:5])
	assert.Equal(t, "भवति", row[5])
	assert.Equal(t, "भवतः", row[6])
	assert.Equal(t, "अभवत्", row[5+5*18])
	assert.Equal(t, "01.0002", strings.Split(lines[2], "\t")[4])
}

func TestE2EMissingArchive(t *testing.T) {
	outDir := t.TempDir()
	_, err := run(t, baseConfig(filepath.Join(outDir, "none.tar.gz"), outDir), cfgpkg.CommandFlat)
	require.ErrorIs(t, err, contract.ErrArchive)
	_, statErr := os.Stat(filepath.Join(outDir, "dhaval_prakriya_forms.csv"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestE2ESqliteSink(t *testing.T) {
	outDir := t.TempDir()
	cfg := baseConfig(fixture(t), outDir)
	cfg.Pivot.Sink = "sqlite"
	cfg.Pivot.Output = "verbs.db"
	cfg.Pivot.SinkOptions = json.RawMessage(`{"table":"verbs"}`)
	_, err := run(t, cfg, cfgpkg.CommandPivot)
	require.NoError(t, err)
	st, err := os.Stat(filepath.Join(outDir, "verbs.db"))
	require.NoError(t, err)
	assert.Positive(t, st.Size())
}
