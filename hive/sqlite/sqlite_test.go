package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/regtree/hive"
	"github.com/jacentio/regtree/hive/hivetest"
	"github.com/jacentio/regtree/hive/sqlite"
)

func openTemp(t *testing.T) (*sqlite.Hive, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hive.db")
	h, err := sqlite.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h, path
}

func TestConformance(t *testing.T) {
	hivetest.Run(t, func(t *testing.T) hive.Key {
		h, _ := openTemp(t)
		root, err := h.Root(context.Background(), hive.CurrentUser)
		require.NoError(t, err)
		return root
	}, hivetest.Features{Volatile: true, DeletedHandles: true})
}

func TestOpen_Pragmas(t *testing.T) {
	h, _ := openTemp(t)

	var fk int
	require.NoError(t, h.DB().QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)

	var mode string
	require.NoError(t, h.DB().QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var version int
	require.NoError(t, h.DB().QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, 1, version)
}

func TestOpen_SettingsSurviveReconnect(t *testing.T) {
	ctx := context.Background()
	h, _ := openTemp(t)

	// No idle connection: every statement runs on a freshly opened one
	h.DB().SetMaxIdleConns(0)

	var fk, timeout int
	require.NoError(t, h.DB().QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
	require.NoError(t, h.DB().QueryRow("PRAGMA busy_timeout").Scan(&timeout))
	assert.Equal(t, 5000, timeout)

	root, err := h.Root(ctx, hive.CurrentUser)
	require.NoError(t, err)
	k, err := root.CreateSubKey(ctx, `a\b`, hive.CreateOptions{Writable: true})
	require.NoError(t, err)
	require.NoError(t, k.SetValue(ctx, "x", hive.NewDWord(1)))
	require.NoError(t, root.DeleteSubKeyTree(ctx, "a"))

	var sections, params int
	require.NoError(t, h.DB().QueryRow("SELECT COUNT(*) FROM sections").Scan(&sections))
	assert.Equal(t, 1, sections, "only the root remains")
	require.NoError(t, h.DB().QueryRow("SELECT COUNT(*) FROM parameters").Scan(&params))
	assert.Equal(t, 0, params)
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	h, path := openTemp(t)

	root, err := h.Root(ctx, hive.CurrentUser)
	require.NoError(t, err)
	k, err := root.CreateSubKey(ctx, `Software\Acme`, hive.CreateOptions{Writable: true})
	require.NoError(t, err)
	require.NoError(t, k.SetValue(ctx, "Build", hive.NewQWord(20261019)))
	require.NoError(t, h.Close())

	reopened, err := sqlite.Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	root, err = reopened.Root(ctx, "hkey_current_user")
	require.NoError(t, err)
	assert.Equal(t, hive.CurrentUser, root.Name())

	k, found, err := root.OpenSubKey(ctx, `software\acme`, false)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, `HKEY_CURRENT_USER\Software\Acme`, k.Name())

	v, found, err := k.GetValue(ctx, "build")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, hive.NewQWord(20261019).Equal(v))
}

func TestVolatileDroppedOnReopen(t *testing.T) {
	ctx := context.Background()
	h, path := openTemp(t)

	root, err := h.Root(ctx, hive.CurrentUser)
	require.NoError(t, err)
	vol, err := root.CreateSubKey(ctx, `session\state`, hive.CreateOptions{Writable: true, Option: hive.CreateVolatile})
	require.NoError(t, err)
	require.NoError(t, vol.SetValue(ctx, "pid", hive.NewDWord(1234)))
	stable, err := root.CreateSubKey(ctx, "prefs", hive.CreateOptions{Writable: true})
	require.NoError(t, err)
	require.NoError(t, stable.Close())
	require.NoError(t, h.Close())

	reopened, err := sqlite.Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	root, err = reopened.Root(ctx, hive.CurrentUser)
	require.NoError(t, err)

	names, err := root.SubKeyNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"prefs"}, names)
}

func TestTreeDeleteRemovesParameters(t *testing.T) {
	ctx := context.Background()
	h, _ := openTemp(t)

	root, err := h.Root(ctx, hive.CurrentUser)
	require.NoError(t, err)
	k, err := root.CreateSubKey(ctx, `a\b\c`, hive.CreateOptions{Writable: true})
	require.NoError(t, err)
	require.NoError(t, k.SetValue(ctx, "x", hive.NewString("y")))
	require.NoError(t, root.DeleteSubKeyTree(ctx, "a"))

	var params, sections int
	require.NoError(t, h.DB().QueryRow("SELECT COUNT(*) FROM parameters").Scan(&params))
	require.NoError(t, h.DB().QueryRow("SELECT COUNT(*) FROM sections").Scan(&sections))
	assert.Equal(t, 0, params)
	assert.Equal(t, 1, sections, "only the root remains")
}

func TestMultipleRoots(t *testing.T) {
	ctx := context.Background()
	h, _ := openTemp(t)

	cu, err := h.Root(ctx, hive.CurrentUser)
	require.NoError(t, err)
	lm, err := h.Root(ctx, hive.LocalMachine)
	require.NoError(t, err)

	k, err := cu.CreateSubKey(ctx, "only-in-cu", hive.CreateOptions{Writable: true})
	require.NoError(t, err)
	require.NoError(t, k.Close())

	n, err := lm.SubKeyCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
