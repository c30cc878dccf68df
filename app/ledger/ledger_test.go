package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/news-relay/app/state"
)

type failingBackend struct {
	*state.MemoryBackend
	writeErr error
}

func (b *failingBackend) Write(ctx context.Context, key string, data []byte) error {
	if b.writeErr != nil {
		return b.writeErr
	}
	return b.MemoryBackend.Write(ctx, key, data)
}

func TestLedger_RecordIsIdempotent(t *testing.T) {
	ctx := context.Background()
	backend := state.NewMemoryBackend()
	l := New(backend, 10)

	require.NoError(t, l.Record(ctx, "a"))
	require.NoError(t, l.Record(ctx, "a"))

	assert.True(t, l.Contains("a"))
	assert.Equal(t, 1, l.Len())
	assert.Equal(t, []string{"a"}, l.Snapshot())
}

func TestLedger_EvictsOldestBeyondCapacity(t *testing.T) {
	ctx := context.Background()
	l := New(state.NewMemoryBackend(), 3)

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, l.Record(ctx, id))
	}

	assert.Equal(t, 3, l.Len())
	assert.Equal(t, []string{"c", "d", "e"}, l.Snapshot())
	assert.False(t, l.Contains("a"))
	assert.False(t, l.Contains("b"))
	assert.True(t, l.Contains("e"))
}

func TestLedger_EvictedIDCanBeRecordedAgain(t *testing.T) {
	ctx := context.Background()
	l := New(state.NewMemoryBackend(), 2)

	require.NoError(t, l.Record(ctx, "a"))
	require.NoError(t, l.Record(ctx, "b"))
	require.NoError(t, l.Record(ctx, "c"))
	require.False(t, l.Contains("a"))

	require.NoError(t, l.Record(ctx, "a"))
	assert.Equal(t, []string{"c", "a"}, l.Snapshot())
}

func TestLedger_RecordPersistsImmediately(t *testing.T) {
	ctx := context.Background()
	backend := state.NewMemoryBackend()
	l := New(backend, 10)

	require.NoError(t, l.Record(ctx, "first"))
	require.NoError(t, l.Record(ctx, "second"))

	data, err := backend.Read(ctx, StateKey)
	require.NoError(t, err)
	assert.JSONEq(t, `["first","second"]`, string(data))

	reloaded := New(backend, 10)
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, []string{"first", "second"}, reloaded.Snapshot())
}

func TestLedger_RecordReportsPersistenceFailure(t *testing.T) {
	backend := &failingBackend{MemoryBackend: state.NewMemoryBackend(), writeErr: errors.New("disk full")}
	l := New(backend, 10)

	err := l.Record(context.Background(), "a")
	require.Error(t, err)
	assert.ErrorIs(t, err, backend.writeErr)
	assert.True(t, l.Contains("a"), "in-memory state keeps the id")
}

func TestLedger_LoadMissingStateIsEmpty(t *testing.T) {
	l := New(state.NewMemoryBackend(), 10)

	require.NoError(t, l.Load(context.Background()))
	assert.Equal(t, 0, l.Len())
}

func TestLedger_LoadCorruptStateIsEmpty(t *testing.T) {
	ctx := context.Background()
	backend := state.NewMemoryBackend()
	require.NoError(t, backend.Write(ctx, StateKey, []byte("{not json")))

	l := New(backend, 10)
	require.NoError(t, l.Load(ctx))
	assert.Equal(t, 0, l.Len())
}

func TestLedger_LoadTrimsToCapacity(t *testing.T) {
	ctx := context.Background()
	backend := state.NewMemoryBackend()

	var ids []string
	for i := range 250 {
		ids = append(ids, fmt.Sprintf("id-%d", i))
	}
	l := New(backend, 250)
	for _, id := range ids {
		require.NoError(t, l.Record(ctx, id))
	}

	smaller := New(backend, DefaultCapacity)
	require.NoError(t, smaller.Load(ctx))

	assert.Equal(t, DefaultCapacity, smaller.Len())
	assert.False(t, smaller.Contains("id-49"))
	assert.True(t, smaller.Contains("id-50"))
	assert.True(t, smaller.Contains("id-249"))
}

func TestLedger_PersistEmptyWritesArray(t *testing.T) {
	ctx := context.Background()
	backend := state.NewMemoryBackend()

	require.NoError(t, New(backend, 0).Persist(ctx))

	data, err := backend.Read(ctx, StateKey)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}
