package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fennecml/fennec/internal/runtime"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournalRoundTrip(t *testing.T) {
	j := openTestJournal(t)

	recs := []runtime.Record{
		{Seq: 1, Effect: "log", Context: "ctx-a", Program: "abc", Callback: "log", Args: []float64{2}, IRVersion: "1"},
		{Seq: 2, Effect: "log", Context: "ctx-a", Program: "abc", Callback: "log", Args: []float64{3}, IRVersion: "1"},
		{Seq: 3, Effect: "note", Context: "ctx-b", Program: "abc", Callback: "note", Args: nil, IRVersion: "1"},
	}
	for _, rec := range recs {
		require.NoError(t, j.Record(rec))
	}

	got, err := j.List(Filter{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int64(1), got[0].Seq)
	assert.Equal(t, []float64{2}, got[0].Args)
	assert.Equal(t, "log", got[0].Effect)
	assert.Equal(t, "1", got[0].IRVersion)

	byEffect, err := j.List(Filter{Effect: "log"})
	require.NoError(t, err)
	require.Len(t, byEffect, 2)
	assert.Equal(t, []float64{3}, byEffect[1].Args)

	byContext, err := j.List(Filter{Context: "ctx-b"})
	require.NoError(t, err)
	require.Len(t, byContext, 1)
	assert.Equal(t, "note", byContext[0].Effect)
}

func TestJournalFiringOrder(t *testing.T) {
	j := openTestJournal(t)

	// Records land in write order even when seq values interleave
	// across contexts.
	require.NoError(t, j.Record(runtime.Record{Seq: 5, Effect: "log", Context: "a"}))
	require.NoError(t, j.Record(runtime.Record{Seq: 2, Effect: "log", Context: "b"}))

	got, err := j.List(Filter{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(5), got[0].Seq)
	assert.Equal(t, int64(2), got[1].Seq)
}

func TestJournalReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j.Record(runtime.Record{Seq: 1, Effect: "log"}))
	require.NoError(t, j.Close())

	j2, err := Open(path)
	require.NoError(t, err)
	defer j2.Close()

	got, err := j2.List(Filter{})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
