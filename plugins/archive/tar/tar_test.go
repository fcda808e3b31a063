package tar

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prakriya/pkg/contract"
)

type entry struct {
	name string
	body string
	dir  bool
}

var fixture = []entry{
	{name: "derivations/", dir: true},
	{name: "derivations/Bavati.json", body: `[{"a":"1"}]`},
	{name: "derivations/links/", dir: true},
	{name: "derivations/aBavat.json", body: `[]`},
}

func tarBytes(t *testing.T, entries []entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: 0o644, Size: int64(len(e.body)), Typeflag: tar.TypeReg}
		if e.dir {
			hdr = &tar.Header{Name: e.name, Mode: 0o755, Typeflag: tar.TypeDir}
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if !e.dir {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func compress(t *testing.T, kind string, raw []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	var w io.WriteCloser
	switch kind {
	case CompressionGzip:
		w = gzip.NewWriter(&buf)
	case CompressionPgzip:
		w = pgzip.NewWriter(&buf)
	case CompressionZstd:
		zw, err := zstd.NewWriter(&buf)
		require.NoError(t, err)
		w = zw
	default:
		return raw
	}
	_, err := w.Write(raw)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func writeArchive(t *testing.T, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "forms.tar")
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

type seen struct {
	m    contract.Member
	body string
}

func collect(t *testing.T, r *Reader, path string) ([]seen, error) {
	t.Helper()
	var out []seen
	err := r.Iterate(context.Background(), path, func(m contract.Member, rd io.Reader) error {
		b, err := io.ReadAll(rd)
		if err != nil {
			return err
		}
		out = append(out, seen{m, string(b)})
		return nil
	})
	return out, err
}

func TestIterateCompressions(t *testing.T) {
	raw := tarBytes(t, fixture)
	cases := []struct{ write, opt string }{
		{CompressionNone, ""},
		{CompressionGzip, CompressionAuto},
		{CompressionGzip, CompressionGzip},
		{CompressionPgzip, CompressionAuto},
		{CompressionPgzip, CompressionPgzip},
		{CompressionZstd, ""},
		{CompressionZstd, CompressionZstd},
		{CompressionNone, CompressionNone},
	}
	for _, c := range cases {
		t.Run(c.write+"/"+c.opt, func(t *testing.T) {
			r, err := New(&Options{Compression: c.opt, BufSize: 4096, Blocks: 2})
			require.NoError(t, err)
			got, err := collect(t, r, writeArchive(t, compress(t, c.write, raw)))
			require.NoError(t, err)
			require.Len(t, got, 2)
			// 目录计入索引但不回调
			assert.Equal(t, contract.Member{Name: "derivations/Bavati.json", Index: 1}, got[0].m)
			assert.Equal(t, `[{"a":"1"}]`, got[0].body)
			assert.Equal(t, contract.Member{Name: "derivations/aBavat.json", Index: 3}, got[1].m)
		})
	}
}

func TestIterateArchiveErrors(t *testing.T) {
	r, err := New(nil)
	require.NoError(t, err)

	err = r.Iterate(context.Background(), filepath.Join(t.TempDir(), "missing.tar.gz"), func(contract.Member, io.Reader) error { return nil })
	assert.True(t, errors.Is(err, contract.ErrArchive), "got %v", err)

	// gzip 魔数但内容损坏
	_, err = collect(t, r, writeArchive(t, []byte{0x1f, 0x8b, 0x00, 0x01, 0x02}))
	assert.True(t, errors.Is(err, contract.ErrArchive), "got %v", err)

	// 非 tar 内容
	_, err = collect(t, r, writeArchive(t, bytes.Repeat([]byte("not a tar file "), 64)))
	assert.True(t, errors.Is(err, contract.ErrArchive), "got %v", err)

	_, err = New(&Options{Compression: "bz2"})
	assert.Error(t, err)
}

func TestIterateYieldErrorStops(t *testing.T) {
	r, _ := New(nil)
	path := writeArchive(t, tarBytes(t, fixture))
	stop := errors.New("stop")
	calls := 0
	err := r.Iterate(context.Background(), path, func(contract.Member, io.Reader) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Iterate(ctx, path, func(contract.Member, io.Reader) error { return nil }), context.Canceled)
}

func TestIterateNormalizesNames(t *testing.T) {
	r, _ := New(nil)
	path := writeArchive(t, tarBytes(t, []entry{{name: "./a//b/../c.json", body: "[]"}}))
	got, err := collect(t, r, path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a/c.json", got[0].m.Name)
}
