package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradedash/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndListFetches(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	events := []store.FetchEvent{
		{ID: "a", Provider: "comtrade", Reporter: "NGA", Partner: "WLD", Year: "2024", Classification: "HS", Status: 200, Rows: 3, Elapsed: 120 * time.Millisecond, FetchedAt: base},
		{ID: "b", Provider: "comtrade", Reporter: "USA", Partner: "CHN", Year: "2023", Classification: "HS", Status: 500, Error: "comtrade: unexpected status", Elapsed: 40 * time.Millisecond, FetchedAt: base.Add(time.Second)},
		{ID: "c", Provider: "comtrade", Reporter: "CHN", Partner: "IND", Year: "2022", Classification: "SITC", Status: 200, FetchedAt: base.Add(500 * time.Millisecond)},
	}
	for _, event := range events {
		require.NoError(t, s.RecordFetch(ctx, event))
	}

	got, err := s.ListFetches(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"b", "c", "a"}, []string{got[0].ID, got[1].ID, got[2].ID})

	assert.Equal(t, 500, got[0].Status)
	assert.Equal(t, "comtrade: unexpected status", got[0].Error)
	assert.Equal(t, 40*time.Millisecond, got[0].Elapsed)
	assert.True(t, base.Add(time.Second).Equal(got[0].FetchedAt))
	assert.Equal(t, 3, got[2].Rows)
	assert.Empty(t, got[2].Error)

	limited, err := s.ListFetches(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "b", limited[0].ID)
}

func TestRecordFetchRequiresID(t *testing.T) {
	s := openTestStore(t)
	assert.Error(t, s.RecordFetch(context.Background(), store.FetchEvent{Reporter: "NGA"}))
}

func TestRecordFetchRejectsDuplicateID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.RecordFetch(ctx, store.FetchEvent{ID: "dup"}))
	assert.Error(t, s.RecordFetch(ctx, store.FetchEvent{ID: "dup"}))
}

func TestMigrateIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	first, err := New(path)
	require.NoError(t, err)
	require.NoError(t, first.RecordFetch(context.Background(), store.FetchEvent{ID: "x"}))
	require.NoError(t, first.Close())

	second, err := New(path)
	require.NoError(t, err)
	defer second.Close()
	got, err := second.ListFetches(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestNewRequiresPath(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}
