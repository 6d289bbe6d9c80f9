package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ze-codes/invest-agent/internal/domain/snapshot"
)

func testSnapshot() *snapshot.Snapshot {
	return &snapshot.Snapshot{
		AsOf:           time.Date(2025, time.June, 12, 15, 0, 0, 0, time.UTC),
		Horizon:        "1w",
		FrozenInputsID: "abc123",
		Regime: snapshot.Regime{
			Label:    snapshot.LabelNeutral,
			Tilt:     snapshot.TiltFlat,
			MaxScore: 3,
		},
	}
}

func TestSnapshotCache_Miss(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := NewWithClient(client, time.Minute)

	mock.ExpectGet("snapshot:1w:abc123").RedisNil()

	snap, ok, err := c.Get(context.Background(), "1w", "abc123")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, snap)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotCache_PutThenGet(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := NewWithClient(client, time.Minute)

	want := testSnapshot()
	data, err := json.Marshal(want)
	require.NoError(t, err)

	mock.ExpectSet("snapshot:1w:abc123", data, time.Minute).SetVal("OK")
	require.NoError(t, c.Put(context.Background(), "1w", "abc123", want))

	mock.ExpectGet("snapshot:1w:abc123").SetVal(string(data))
	got, ok, err := c.Get(context.Background(), "1w", "abc123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want.FrozenInputsID, got.FrozenInputsID)
	assert.Equal(t, want.Regime, got.Regime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotCache_CorruptPayloadIsAnError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := NewWithClient(client, time.Minute)

	mock.ExpectGet("snapshot:1w:abc123").SetVal("{not json")

	_, ok, err := c.Get(context.Background(), "1w", "abc123")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestSnapshotCache_KeysScopedByHorizon(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := NewWithClient(client, time.Minute)

	mock.ExpectGet("snapshot:1m:abc123").RedisNil()

	_, ok, err := c.Get(context.Background(), "1m", "abc123")
	require.NoError(t, err)
	assert.False(t, ok, "same frozen id under another horizon is a distinct key")
	assert.NoError(t, mock.ExpectationsWereMet())
}
