package localcache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/archivist/catalog"
)

func openTestKV(t *testing.T) *SQLiteKV {
	t.Helper()
	kv, err := OpenSQLite(filepath.Join(t.TempDir(), "data", "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	return kv
}

func sampleObjects() []catalog.Object {
	return []catalog.Object{
		{
			ID:       "1",
			Title:    "Original Redwood Ceiling Beam",
			Keywords: []string{"redwood", "original"},
			Parts:    []string{"beam"},
			Images: []catalog.Image{
				{URL: "https://drive.example/1.jpg", Caption: "Full view", Primary: true},
				{URL: "data:image/jpeg;base64,AAAA", Caption: "Pending", State: catalog.ImageLocal},
			},
		},
		{ID: "2", Title: "Hammered Copper Lantern", Keywords: []string{}, Parts: []string{}},
	}
}

func TestSQLiteKV(t *testing.T) {
	ctx := context.Background()
	kv := openTestKV(t)

	_, ok, err := kv.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Set(ctx, "k", "v1"))
	require.NoError(t, kv.Set(ctx, "k", "v2"))
	v, ok, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", v)

	require.NoError(t, kv.Delete(ctx, "k"))
	_, ok, err = kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestObjectCacheRoundTripStripsLocalImages(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	cache := NewObjectCache(openTestKV(t), false, WithClock(func() time.Time { return now }))

	assert.Nil(t, cache.Read(ctx))
	require.NoError(t, cache.Write(ctx, sampleObjects()))

	entry := cache.Read(ctx)
	require.NotNil(t, entry)
	assert.Equal(t, now.UnixMilli(), entry.UpdatedAt)
	assert.Equal(t, catalog.StripLocalImages(sampleObjects()), entry.Objects)
	require.Len(t, entry.Objects[0].Images, 1)
	assert.True(t, entry.Objects[0].Images[0].Primary)
	assert.True(t, entry.Fresh(now.Add(4*time.Minute), 5*time.Minute))
	assert.False(t, entry.Fresh(now.Add(5*time.Minute), 5*time.Minute))
}

func TestObjectCacheEmbedKeepsLocalImages(t *testing.T) {
	ctx := context.Background()
	cache := NewObjectCache(NewMemory(), true)
	require.NoError(t, cache.Write(ctx, sampleObjects()))

	entry := cache.Read(ctx)
	require.NotNil(t, entry)
	assert.Equal(t, sampleObjects(), entry.Objects)
}

func TestObjectCacheCorruptBlobReadsNil(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()
	require.NoError(t, kv.Set(ctx, ObjectsKey, "{not json"))
	assert.Nil(t, NewObjectCache(kv, false).Read(ctx))
}

func TestPendingImages(t *testing.T) {
	ctx := context.Background()
	kv := openTestKV(t)
	pending := NewPendingImages(kv)

	assert.Empty(t, pending.Read(ctx))

	img := catalog.Image{URL: "data:image/jpeg;base64,AAAA", Caption: "new", State: catalog.ImageLocal}
	require.NoError(t, pending.Put(ctx, "1", []catalog.Image{img}))
	require.NoError(t, pending.Put(ctx, "2", []catalog.Image{img}))

	m := pending.Read(ctx)
	require.Len(t, m, 2)
	assert.True(t, m["1"][0].IsLocal())

	merged := pending.Merge(ctx, []catalog.Object{{ID: "1", Title: "Beam"}})
	require.Len(t, merged[0].Images, 1)
	assert.True(t, merged[0].Images[0].Primary)

	require.NoError(t, pending.Remove(ctx, "1"))
	require.NoError(t, pending.Remove(ctx, "1"))
	assert.Len(t, pending.Read(ctx), 1)

	require.NoError(t, pending.Remove(ctx, "2"))
	_, ok, err := kv.Get(ctx, LocalImagesKey)
	require.NoError(t, err)
	assert.False(t, ok, "empty side-cache deletes its key")
}

func TestPendingImagesCorruptBlobReadsEmpty(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()
	require.NoError(t, kv.Set(ctx, LocalImagesKey, "[]oops"))
	pending := NewPendingImages(kv)
	assert.Empty(t, pending.Read(ctx))
	require.NoError(t, pending.Put(ctx, "3", []catalog.Image{{URL: "data:x;base64,AA", State: catalog.ImageLocal}}))
	assert.Len(t, pending.Read(ctx), 1)
}
