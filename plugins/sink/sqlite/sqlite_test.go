package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prakriya/pkg/contract"
)

func TestCommitWritesTable(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, "pivot.db", &Options{Table: "pivot"})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.Begin(ctx, []string{"धातुः", `we"ird`, "लट्-प्र-एक-परस्मै"}))
	require.NoError(t, s.WriteRow(ctx, []string{"भू", "x", "भवति,भवति"}))
	require.NoError(t, s.WriteRow(ctx, []string{"गम्", "y", ""}))
	require.NoError(t, s.Commit())
	require.NoError(t, s.Commit(), "second commit is a no-op")

	db, err := sql.Open("sqlite", filepath.Join(dir, "pivot.db"))
	require.NoError(t, err)
	defer db.Close()
	rows, err := db.Query(`SELECT "धातुः", "लट्-प्र-एक-परस्मै" FROM pivot ORDER BY rowid`)
	require.NoError(t, err)
	defer rows.Close()
	var got []string
	for rows.Next() {
		var a, b string
		require.NoError(t, rows.Scan(&a, &b))
		got = append(got, a+"|"+b)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"भू|भवति,भवति", "गम्|"}, got)

	ents, _ := os.ReadDir(dir)
	for _, e := range ents {
		assert.False(t, strings.HasPrefix(e.Name(), ".tmp-"), "tmp left: %s", e.Name())
	}
}

func TestAbortLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, "flat.db", nil)
	require.NoError(t, err)
	require.NoError(t, s.Abort(), "abort before begin")
	ctx := context.Background()
	require.NoError(t, s.Begin(ctx, []string{"a"}))
	require.NoError(t, s.WriteRow(ctx, []string{"1"}))
	require.NoError(t, s.Abort())

	ents, _ := os.ReadDir(dir)
	assert.Empty(t, ents)
}

func TestValidation(t *testing.T) {
	_, err := New("", "x.db", nil)
	assert.Error(t, err)
	_, err = New(t.TempDir(), "../x.db", nil)
	assert.True(t, errors.Is(err, contract.ErrPathInvalid))

	s, err := New(t.TempDir(), "x.db", nil)
	require.NoError(t, err)
	ctx := context.Background()
	assert.ErrorIs(t, s.WriteRow(ctx, []string{"1"}), contract.ErrInvariantViolation)
	assert.ErrorIs(t, s.Begin(ctx, nil), contract.ErrInvariantViolation)
	require.NoError(t, s.Begin(ctx, []string{"a", "b"}))
	assert.ErrorIs(t, s.WriteRow(ctx, []string{"1"}), contract.ErrInvariantViolation)
	assert.ErrorIs(t, s.Begin(ctx, []string{"a"}), contract.ErrInvariantViolation)
	require.NoError(t, s.Abort())
}
