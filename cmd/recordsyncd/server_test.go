package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formulahunter/recordsync-go/internal/cache/sqlitekv"
	"github.com/formulahunter/recordsync-go/internal/codec"
	"github.com/formulahunter/recordsync-go/internal/noterecord"
	"github.com/formulahunter/recordsync-go/internal/recordhash"
	"github.com/formulahunter/recordsync-go/internal/recordstore"
	"github.com/formulahunter/recordsync-go/internal/syncengine"
)

func newTestDaemon(t *testing.T) (*httptest.Server, *recordstore.Store) {
	t.Helper()

	registry, err := noterecord.Registry()
	require.NoError(t, err)

	store := recordstore.NewStore(registry)

	kv, err := sqlitekv.Open(context.Background(), filepath.Join(t.TempDir(), "daemon.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	srv := newServer(store, kv, nil)

	return httptest.NewServer(newRouter(srv)), store
}

func postQuery(t *testing.T, ts *httptest.Server, body *codec.OrderedMap) *codec.OrderedMap {
	t.Helper()

	data, err := codec.Serialize(body)
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/query", "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	value, err := codec.Parse(readAll(t, resp))
	require.NoError(t, err)

	obj, ok := value.(*codec.OrderedMap)
	require.True(t, ok, "response is not an object")

	return obj
}

func readAll(t *testing.T, resp *http.Response) []byte {
	t.Helper()

	buf := &bytes.Buffer{}
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)

	return buf.Bytes()
}

func TestHash_EmptyStoreMatchesDirectComputation(t *testing.T) {
	ts, store := newTestDaemon(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/hash")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	value, err := codec.Parse(readAll(t, resp))
	require.NoError(t, err)

	hash, ok := value.(string)
	require.True(t, ok)

	top, err := store.ToCanonical()
	require.NoError(t, err)

	data, err := codec.Serialize(top)
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.Equal(t, recordhash.Sum(data), hash)
}

func TestQueryAdd_InsertsRecordAndReturnsHash(t *testing.T) {
	ts, store := newTestDaemon(t)
	defer ts.Close()

	instance, err := recordstore.RecordToCanonical(&recordstore.Record{
		Type:    noterecord.TypeName,
		Created: 100,
		Payload: &noterecord.Note{Text: "hello"},
	})
	require.NoError(t, err)

	body := codec.NewOrderedMap().
		Set("query", "add").
		Set("type", noterecord.TypeName).
		Set("instance", instance)

	data, err := codec.Serialize(body)
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/query", "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	value, err := codec.Parse(readAll(t, resp))
	require.NoError(t, err)

	hash, ok := value.(string)
	require.True(t, ok)
	assert.NotEmpty(t, hash)

	rec, found := store.Get(noterecord.TypeName, 100)
	require.True(t, found)
	assert.Equal(t, "hello", rec.Payload.String())
}

func TestQueryEdit_ReplacesExistingPayload(t *testing.T) {
	ts, store := newTestDaemon(t)
	defer ts.Close()

	require.NoError(t, store.Add(&recordstore.Record{
		Type: noterecord.TypeName, Created: 10, Payload: &noterecord.Note{Text: "v1"},
	}))

	instance, err := recordstore.RecordToCanonical(&recordstore.Record{
		Type: noterecord.TypeName, Created: 10, Payload: &noterecord.Note{Text: "v2"},
	})
	require.NoError(t, err)

	body := codec.NewOrderedMap().
		Set("query", "edit").
		Set("type", noterecord.TypeName).
		Set("instance", instance)

	postQueryRaw(t, ts, body)

	rec, found := store.Get(noterecord.TypeName, 10)
	require.True(t, found)
	assert.Equal(t, "v2", rec.Payload.String())
}

func TestQueryDelete_RemovesRecord(t *testing.T) {
	ts, store := newTestDaemon(t)
	defer ts.Close()

	require.NoError(t, store.Add(&recordstore.Record{
		Type: noterecord.TypeName, Created: 20, Payload: &noterecord.Note{Text: "gone soon"},
	}))

	instance, err := recordstore.RecordToCanonical(&recordstore.Record{
		Type: noterecord.TypeName, Created: 20, Payload: &noterecord.Note{Text: "gone soon"},
	})
	require.NoError(t, err)

	body := codec.NewOrderedMap().
		Set("query", "delete").
		Set("type", noterecord.TypeName).
		Set("instance", instance)

	postQueryRaw(t, ts, body)

	_, found := store.Get(noterecord.TypeName, 20)
	assert.False(t, found)

	tombs := store.Tombstones(noterecord.TypeName)
	require.Len(t, tombs, 1)
	assert.Equal(t, recordstore.RecordId(20), tombs[0].Created)
}

func TestQueryReconcile_AppliesClientDeltaAndReportsHash(t *testing.T) {
	ts, store := newTestDaemon(t)
	defer ts.Close()

	delta := recordstore.TypeIndex{}
	delta.Put(noterecord.TypeName, recordstore.RankNew, 30, recordstore.NewRecordEntry(&recordstore.Record{
		Type: noterecord.TypeName, Created: 30, Payload: &noterecord.Note{Text: "from client"},
	}))

	instances, err := syncengine.EncodeTypeIndex(delta)
	require.NoError(t, err)

	data := codec.NewOrderedMap().Set("sync", int64(0)).Set("instances", instances)
	body := codec.NewOrderedMap().Set("query", "reconcile").Set("data", data)

	resp := postQuery(t, ts, body)

	hashRaw, ok := resp.Get("hash")
	require.True(t, ok)
	assert.NotEmpty(t, hashRaw)

	rec, found := store.Get(noterecord.TypeName, 30)
	require.True(t, found)
	assert.Equal(t, "from client", rec.Payload.String())
}

func TestQueryResolve_AppliesChosenServerVersionWithoutReconciling(t *testing.T) {
	ts, store := newTestDaemon(t)
	defer ts.Close()

	require.NoError(t, store.Add(&recordstore.Record{
		Type: noterecord.TypeName, Created: 40, Payload: &noterecord.Note{Text: "original"},
	}))

	chosen := recordstore.TypeIndex{}
	chosen.Put(noterecord.TypeName, recordstore.RankModified, 40, recordstore.NewRecordEntry(&recordstore.Record{
		Type: noterecord.TypeName, Created: 40, Payload: &noterecord.Note{Text: "resolved"},
	}))

	data, err := syncengine.EncodeTypeIndex(chosen)
	require.NoError(t, err)

	body := codec.NewOrderedMap().Set("query", "resolve").Set("data", data)

	postQuery(t, ts, body)

	rec, found := store.Get(noterecord.TypeName, 40)
	require.True(t, found)
	assert.Equal(t, "resolved", rec.Payload.String())
}

func TestHandleQuery_UnknownQueryIsBadRequest(t *testing.T) {
	ts, _ := newTestDaemon(t)
	defer ts.Close()

	body := codec.NewOrderedMap().Set("query", "bogus")

	data, err := codec.Serialize(body)
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/query", "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func postQueryRaw(t *testing.T, ts *httptest.Server, body *codec.OrderedMap) {
	t.Helper()

	data, err := codec.Serialize(body)
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/query", "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
}
