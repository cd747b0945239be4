package journal

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashToken(t *testing.T) {
	h := HashToken("token")
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashToken("token"))
	assert.NotEqual(t, h, HashToken("other"))
}

func TestMemoryStoreRecordAndList(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Now()

	require.NoError(t, s.Record(ctx, Entry{Username: "alice", Kind: KindEnrollmentIssued, CreatedAt: base}))
	require.NoError(t, s.Record(ctx, Entry{Username: "bob", Kind: KindDeviceRegistered, CreatedAt: base.Add(time.Second)}))
	require.NoError(t, s.Record(ctx, Entry{Username: "alice", Kind: KindDeviceRegistered, DeviceName: "laptop", CreatedAt: base.Add(2 * time.Second)}))

	alice, err := s.List(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, alice, 2)
	assert.Equal(t, KindDeviceRegistered, alice[0].Kind)
	assert.Equal(t, "laptop", alice[0].DeviceName)
	assert.NotEqual(t, uuid.Nil, alice[0].ID)

	all, err := s.List(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, "alice", all[0].Username)
	assert.Equal(t, "bob", all[1].Username)
}

func TestMemoryStoreFillsDefaults(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Record(context.Background(), Entry{Username: "alice", Kind: KindEnrollmentIssued}))

	entries, err := s.List(context.Background(), "alice", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].CreatedAt.IsZero())
	assert.NotEqual(t, uuid.Nil, entries[0].ID)
}
