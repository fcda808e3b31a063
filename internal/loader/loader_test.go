package loader

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prakriya/internal/sanscript"
	"prakriya/pkg/contract"
)

const member = `[
 {"gana": "BvAdi", "number": "01.0001", "meaning": "sattAyAm", "lakara": "law",
  "verb": "BU", "verbaccent": "BU/", "suffix": "tip", "purusha": "praTama", "vachana": "eka",
  "it_status": "sew", "extra": 7,
  "derivation": [{"sutra_num": "1.3.1", "form": "BU"}, {"sutra_num": "3.4.69", "form": "BU"}, {"sutra_num": "3.4.69", "form": "x"}]},
 {"gana": "BvAdi", "number": "01.0001", "meaning": "go!fast", "lakara": "law", "verb": "BU!",
  "suffix": "tas", "tags": ["a", 1], "derivation": [{"sutra_num": "1.3.1", "form": "BU"}]}
]`

func slp1ToDeva() func(string) string {
	return sanscript.Func(sanscript.SLP1, sanscript.Devanagari)
}

func TestLoadProjectsFlat(t *testing.T) {
	recs, err := New(Flat, slp1ToDeva()).Load(context.Background(), "Bavati.json", strings.NewReader(member))
	require.NoError(t, err)
	require.Len(t, recs, 2)

	r := recs[0]
	assert.Equal(t, "भू", r[contract.FieldRootForm])
	assert.Equal(t, "भ्वादि", r["gana"])
	assert.Equal(t, "०१.०००१", r["number"])
	assert.Equal(t, "लट्", r["lakara"])
	assert.Equal(t, "तिप्", r["suffix"])
	// 不在白名单：原样透传。
	assert.Equal(t, "BU/", r["verbaccent"])
	assert.Equal(t, "7", r["extra"])
	_, hasDerivation := r[contract.FieldDerivation]
	assert.False(t, hasDerivation)

	// 无 3.4.69：不报错，但没有 dhAtu。
	_, err = recs[1].Get(contract.FieldRootForm)
	assert.True(t, errors.Is(err, contract.ErrMissingField))
	assert.Equal(t, `["a",1]`, recs[1]["tags"])
}

func TestLoadPivotKeepsKeys(t *testing.T) {
	recs, err := New(Pivot, slp1ToDeva()).Load(context.Background(), "Bavati.json", strings.NewReader(member))
	require.NoError(t, err)
	assert.Equal(t, "01.0001", recs[0]["number"])
	assert.Equal(t, "law", recs[0]["lakara"])
	assert.Equal(t, "tip", recs[0]["suffix"])
	assert.Equal(t, "सत्तायाम्", recs[0]["meaning"])
}

func TestStressMarker(t *testing.T) {
	recs, err := New(Flat, nil).Load(context.Background(), "m.json", strings.NewReader(member))
	require.NoError(t, err)
	assert.Equal(t, "go~fast", recs[1]["meaning"])
	assert.Equal(t, "BU~", recs[1]["verb"])
	// 其他字段中的 '!' 不替换。
	recs, err = New(Flat, nil).Load(context.Background(), "m.json",
		strings.NewReader(`[{"gana": "a!b", "verbaccent": "c!d"}]`))
	require.NoError(t, err)
	assert.Equal(t, "a!b", recs[0]["gana"])
	assert.Equal(t, "c!d", recs[0]["verbaccent"])

	recs, err = New(Flat, slp1ToDeva()).Load(context.Background(), "m.json", strings.NewReader(member))
	require.NoError(t, err)
	assert.NotContains(t, recs[1]["meaning"], "!")
	assert.Contains(t, recs[1]["meaning"], "ँ")
}

func TestLoadOrderAndValues(t *testing.T) {
	in := `[{"number": 3, "a": "x"}, {"number": -1.50, "a": null}, {"number": "2", "a": true}]`
	recs, err := New(Projection{}, nil).Load(context.Background(), "m.json", strings.NewReader(in))
	require.NoError(t, err)
	var got [][]string
	for _, r := range recs {
		v, err := r.Values([]string{"number", "a"})
		require.NoError(t, err)
		got = append(got, v)
	}
	want := [][]string{{"3", "x"}, {"-1.50", "null"}, {"2", "true"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadErrors(t *testing.T) {
	l := New(Flat, nil)
	cases := map[string]string{
		"语法错误":         `[{"a": }`,
		"非数组":          `{"a": "b"}`,
		"元素非对象":        `[1, 2]`,
		"空输入":          ``,
		"null 元素":      `[null]`,
		"derivation 非列表": `[{"derivation": "3.4.69"}]`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := l.Load(context.Background(), "bad.json", strings.NewReader(in))
			require.Error(t, err)
			assert.True(t, errors.Is(err, contract.ErrParse), "got %v", err)
			assert.Contains(t, err.Error(), "bad.json")
		})
	}
}

func TestLoadEmptyAndMissingDerivation(t *testing.T) {
	l := New(Flat, nil)
	recs, err := l.Load(context.Background(), "e.json", strings.NewReader(" [] "))
	require.NoError(t, err)
	assert.Empty(t, recs)

	recs, err = l.Load(context.Background(), "e.json", strings.NewReader(`[{"gana": "1"}]`))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	_, ok := recs[0][contract.FieldRootForm]
	assert.False(t, ok)
}

func TestLoadCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Flat, nil).Load(ctx, "m.json", strings.NewReader(member))
	assert.ErrorIs(t, err, context.Canceled)
}
