package cache_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formulahunter/recordsync-go/internal/cache"
	"github.com/formulahunter/recordsync-go/internal/recordstore"
)

// memKV is a minimal in-memory KVStore for tests.
type memKV struct {
	data map[string]string
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string]string)}
}

func (m *memKV) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) Set(_ context.Context, key, value string) error {
	m.data[key] = value
	return nil
}

func TestReadData_MissingReturnsNotFound(t *testing.T) {
	c := cache.New(newMemKV(), "pw", nil, "")

	_, _, found, err := c.ReadData(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestWriteThenReadData_RoundTripsPlaintext(t *testing.T) {
	c := cache.New(newMemKV(), "pw", nil, "")
	ctx := context.Background()

	plaintext := []byte(`{"note":[{"_created":1,"text":"hi"}]}`)

	writeHash, err := c.WriteData(ctx, plaintext)
	require.NoError(t, err)

	got, readHash, found, err := c.ReadData(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, plaintext, got)
	assert.Equal(t, writeHash, readHash, "write and read must agree on the plaintext hash")
}

func TestReadData_WrongPasswordFails(t *testing.T) {
	kv := newMemKV()
	writer := cache.New(kv, "correct-password", nil, "")
	reader := cache.New(kv, "wrong-password", nil, "")

	_, err := writer.WriteData(context.Background(), []byte("secret"))
	require.NoError(t, err)

	_, _, _, err = reader.ReadData(context.Background())
	require.Error(t, err)
}

func TestNew_DistinctPrefixesShareOneKVStoreWithoutColliding(t *testing.T) {
	kv := newMemKV()
	ctx := context.Background()

	notes := cache.New(kv, "pw", nil, "notes")
	contacts := cache.New(kv, "pw", nil, "contacts")

	_, err := notes.WriteData(ctx, []byte(`{"note":[]}`))
	require.NoError(t, err)
	require.NoError(t, notes.WriteSync(ctx, recordstore.Timestamp(111)))

	_, err = contacts.WriteData(ctx, []byte(`{"contact":[]}`))
	require.NoError(t, err)
	require.NoError(t, contacts.WriteSync(ctx, recordstore.Timestamp(222)))

	notesData, _, found, err := notes.ReadData(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte(`{"note":[]}`), notesData)

	contactsData, _, found, err := contacts.ReadData(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte(`{"contact":[]}`), contactsData)

	notesSync, found, err := notes.ReadSync(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, recordstore.Timestamp(111), notesSync)

	contactsSync, found, err := contacts.ReadSync(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, recordstore.Timestamp(222), contactsSync)
}

func TestNew_EmptyPrefixFallsBackToDefault(t *testing.T) {
	kv := newMemKV()
	ctx := context.Background()

	withDefault := cache.New(kv, "pw", nil, "")
	explicit := cache.New(kv, "pw", nil, cache.DefaultPrefix)

	_, err := withDefault.WriteData(ctx, []byte("x"))
	require.NoError(t, err)

	_, _, found, err := explicit.ReadData(ctx)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestSyncRoundTrip(t *testing.T) {
	c := cache.New(newMemKV(), "pw", nil, "")
	ctx := context.Background()

	_, found, err := c.ReadSync(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.WriteSync(ctx, recordstore.Timestamp(123456)))

	ts, found, err := c.ReadSync(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, recordstore.Timestamp(123456), ts)
}
