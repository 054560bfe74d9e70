package dynamo

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/regtree/hive"
	"github.com/jacentio/regtree/hive/hivetest"
)

func newTestHive(t *testing.T, cfg Config) (*Hive, *fakeDB) {
	t.Helper()
	db := newFakeDB(cfg)
	return New(db, cfg), db
}

func newTestRoot(t *testing.T, cfg Config) (hive.Key, *Hive, *fakeDB) {
	t.Helper()
	h, db := newTestHive(t, cfg)
	root, err := h.Root(context.Background(), hive.CurrentUser)
	require.NoError(t, err)
	return root, h, db
}

func genOf(k hive.Key) string {
	return k.(*key).section.Gen
}

func TestConformance(t *testing.T) {
	for _, shards := range []int{1, 16} {
		t.Run(fmt.Sprintf("shards=%d", shards), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.NumShards = shards
			hivetest.Run(t, func(t *testing.T) hive.Key {
				root, _, _ := newTestRoot(t, cfg)
				return root
			}, hivetest.Features{Volatile: true, DeletedHandles: true})
		})
	}
}

func TestRoot_Idempotent(t *testing.T) {
	ctx := context.Background()
	h, _ := newTestHive(t, DefaultConfig())

	first, err := h.Root(ctx, hive.CurrentUser)
	require.NoError(t, err)
	second, err := h.Root(ctx, "hkey_current_user")
	require.NoError(t, err)

	assert.Equal(t, genOf(first), genOf(second))
	assert.Equal(t, hive.CurrentUser, second.Name())
}

func TestRoot_InvalidName(t *testing.T) {
	h, _ := newTestHive(t, DefaultConfig())
	_, err := h.Root(context.Background(), `HKEY_CURRENT_USER\Software`)
	assert.ErrorIs(t, err, hive.ErrInvalidPath)

	_, err = h.Root(context.Background(), "")
	assert.ErrorIs(t, err, hive.ErrInvalidPath)
}

func TestName_DisplayPath(t *testing.T) {
	root, _, _ := newTestRoot(t, DefaultConfig())
	k, err := root.CreateSubKey(context.Background(), `Software\Acme`, hive.CreateOptions{Writable: true})
	require.NoError(t, err)
	assert.Equal(t, `HKEY_CURRENT_USER\Software\Acme`, k.Name())
}

func TestSubKeyNames_FanOut(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.NumShards = 16
	root, _, db := newTestRoot(t, cfg)

	var want []string
	for i := 0; i < 40; i++ {
		name := fmt.Sprintf("Key%02d", i)
		want = append(want, name)
		k, err := root.CreateSubKey(ctx, name, hive.CreateOptions{Writable: true})
		require.NoError(t, err)
		require.NoError(t, k.Close())
	}

	names, err := root.SubKeyNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, names)

	n, err := root.SubKeyCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 40, n)

	shards := 0
	for pk := range db.queried {
		if strings.HasPrefix(pk, "C#"+genOf(root)+"#") {
			shards++
		}
	}
	assert.Equal(t, 16, shards, "every shard is queried")
}

func TestDeleteSubKeyTree_Synchronous(t *testing.T) {
	ctx := context.Background()
	root, _, db := newTestRoot(t, DefaultConfig())

	k, err := root.CreateSubKey(ctx, `a\b\c`, hive.CreateOptions{Writable: true})
	require.NoError(t, err)
	require.NoError(t, k.SetValue(ctx, "leaf", hive.NewDWord(1)))
	require.NoError(t, root.DeleteSubKeyTree(ctx, "a"))

	assert.Equal(t, 1, db.count(defaultTable, "S#"), "only the root section remains")
	assert.Equal(t, 0, db.count(defaultTable, "G#"))
	assert.Equal(t, 0, db.count(defaultRelationshipTable, "C#"))
}

func TestDeleteSubKeyTree_Deferred(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.DeferredTreeDelete = true
	root, h, db := newTestRoot(t, cfg)

	a, err := root.CreateSubKey(ctx, "a", hive.CreateOptions{Writable: true})
	require.NoError(t, err)
	require.NoError(t, a.SetValue(ctx, "x", hive.NewString("y")))
	b, err := a.CreateSubKey(ctx, "b", hive.CreateOptions{Writable: true})
	require.NoError(t, err)
	require.NoError(t, b.SetValue(ctx, "z", hive.NewDWord(2)))

	require.NoError(t, root.DeleteSubKeyTree(ctx, "a"))

	_, found, err := root.OpenSubKey(ctx, "a", false)
	require.NoError(t, err)
	assert.False(t, found)

	// The orphaned child and both value partitions are still stored
	assert.Equal(t, 2, db.count(defaultTable, "S#"))
	assert.Equal(t, 2, db.count(defaultTable, "G#"))

	// Stream event for a
	require.NoError(t, h.PurgeSection(ctx, genOf(a)))
	assert.Equal(t, 1, db.count(defaultTable, "S#"))
	assert.Equal(t, 1, db.count(defaultTable, "G#"))

	// Stream event for b
	require.NoError(t, h.PurgeSection(ctx, genOf(b)))
	assert.Equal(t, 0, db.count(defaultTable, "G#"))
	assert.Equal(t, 0, db.count(defaultRelationshipTable, "C#"))

	// Replays are harmless
	require.NoError(t, h.PurgeSection(ctx, genOf(a)))
}

func TestRecreateBeforePurge(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.DeferredTreeDelete = true
	root, h, _ := newTestRoot(t, cfg)

	old, err := root.CreateSubKey(ctx, `a\b`, hive.CreateOptions{Writable: true})
	require.NoError(t, err)
	require.NoError(t, old.SetValue(ctx, "stale", hive.NewDWord(1)))
	oldA, found, err := root.OpenSubKey(ctx, "a", false)
	require.NoError(t, err)
	require.True(t, found)
	require.NoError(t, root.DeleteSubKeyTree(ctx, "a"))

	a, err := root.CreateSubKey(ctx, "a", hive.CreateOptions{Writable: true})
	require.NoError(t, err)

	n, err := a.SubKeyCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, found, err = a.OpenSubKey(ctx, "b", false)
	require.NoError(t, err)
	assert.False(t, found, "orphan from the old generation is not visible")

	// Re-creating over the orphan starts with an empty value set
	b, err := a.CreateSubKey(ctx, "b", hive.CreateOptions{Writable: true})
	require.NoError(t, err)
	require.NoError(t, b.SetValue(ctx, "fresh", hive.NewDWord(2)))

	// A late purge of the old generation leaves the new sections alone
	require.NoError(t, h.PurgeSection(ctx, genOf(oldA)))

	names, err := b.ValueNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, names)

	_, err = old.ValueCount(ctx)
	assert.ErrorIs(t, err, hive.ErrKeyDeleted)
}

func TestDeleteSubKeyTree_ReclaimsReplacedChild(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.DeferredTreeDelete = true
	root, h, db := newTestRoot(t, cfg)

	c, err := root.CreateSubKey(ctx, `a\b\c`, hive.CreateOptions{Writable: true})
	require.NoError(t, err)
	require.NoError(t, c.SetValue(ctx, "leaf", hive.NewDWord(3)))
	oldA, _, err := root.OpenSubKey(ctx, "a", false)
	require.NoError(t, err)
	oldB, _, err := root.OpenSubKey(ctx, `a\b`, true)
	require.NoError(t, err)
	require.NoError(t, oldB.SetValue(ctx, "stale", hive.NewDWord(1)))
	require.NoError(t, root.DeleteSubKeyTree(ctx, "a"))

	// a\b now belongs to a newer generation, so the old b section item is gone
	fresh, err := root.CreateSubKey(ctx, `a\b`, hive.CreateOptions{Writable: true})
	require.NoError(t, err)
	require.NoError(t, fresh.SetValue(ctx, "fresh", hive.NewDWord(2)))

	require.NoError(t, h.purge(ctx, genOf(oldA), true))

	assert.Equal(t, 0, db.count(defaultTable, "G#"+genOf(oldB)), "old b values")
	assert.Equal(t, 0, db.count(defaultTable, "G#"+genOf(c)), "old c values")
	assert.Equal(t, 0, db.count(defaultRelationshipTable, "C#"+genOf(oldB)), "old b relationships")

	names, err := fresh.ValueNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, names)
}

func TestCreateSubKey_BackupRestoreUnsupported(t *testing.T) {
	root, _, _ := newTestRoot(t, DefaultConfig())
	_, err := root.CreateSubKey(context.Background(), "x", hive.CreateOptions{Writable: true, Option: hive.CreateBackupRestore})
	assert.ErrorIs(t, err, hive.ErrUnsupported)
}

func TestCreateSubKey_ReadOnlyParent(t *testing.T) {
	ctx := context.Background()
	root, _, _ := newTestRoot(t, DefaultConfig())

	ro, found, err := root.OpenSubKey(ctx, "", false)
	require.NoError(t, err)
	require.True(t, found)

	_, err = ro.CreateSubKey(ctx, "new", hive.CreateOptions{Writable: true})
	assert.ErrorIs(t, err, hive.ErrReadOnly)
}

func TestValueNames_Ordered(t *testing.T) {
	ctx := context.Background()
	root, _, _ := newTestRoot(t, DefaultConfig())

	for _, name := range []string{"zeta", "Alpha", "mid"} {
		require.NoError(t, root.SetValue(ctx, name, hive.NewString(name)))
	}
	names, err := root.ValueNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha", "mid", "zeta"}, names)
}
