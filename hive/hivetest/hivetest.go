// Package hivetest provides a conformance suite for hive.Key backends.
package hivetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/regtree/hive"
)

// Features lists optional behaviour a backend supports.
type Features struct {
	// Volatile is set when CreateVolatile is honoured.
	Volatile bool

	// DeletedHandles is set when handles to deleted sections report ErrKeyDeleted.
	DeletedHandles bool
}

// Run exercises a backend. newRoot must return a fresh, empty, writable section for each call.
func Run(t *testing.T, newRoot func(t *testing.T) hive.Key, features Features) {
	t.Helper()

	ctx := context.Background()

	t.Run("CreateAndOpen", func(t *testing.T) {
		root := newRoot(t)
		k, err := root.CreateSubKey(ctx, `a\b\c`, hive.CreateOptions{Writable: true})
		require.NoError(t, err)
		require.NoError(t, k.Close())

		sub, found, err := root.OpenSubKey(ctx, `a\b`, false)
		require.NoError(t, err)
		require.True(t, found)
		defer sub.Close()

		n, err := sub.SubKeyCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("OpenMissing", func(t *testing.T) {
		root := newRoot(t)
		k, found, err := root.OpenSubKey(ctx, `missing\path`, false)
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, k)
	})

	t.Run("OpenSelf", func(t *testing.T) {
		root := newRoot(t)
		self, found, err := root.OpenSubKey(ctx, "", false)
		require.NoError(t, err)
		require.True(t, found)
		defer self.Close()
		assert.Equal(t, root.Name(), self.Name())
	})

	t.Run("CaseInsensitive", func(t *testing.T) {
		root := newRoot(t)
		k, err := root.CreateSubKey(ctx, `Software\Acme`, hive.CreateOptions{Writable: true})
		require.NoError(t, err)
		defer k.Close()
		require.NoError(t, k.SetValue(ctx, "Version", hive.NewString("1.0")))

		again, found, err := root.OpenSubKey(ctx, `SOFTWARE\acme`, false)
		require.NoError(t, err)
		require.True(t, found)
		defer again.Close()

		v, found, err := again.GetValue(ctx, "VERSION")
		require.NoError(t, err)
		require.True(t, found)
		assert.True(t, hive.NewString("1.0").Equal(v))

		names, err := again.ValueNames(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"Version"}, names)

		subs, err := root.SubKeyNames(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"Software"}, subs)
	})

	t.Run("ValueRoundTrip", func(t *testing.T) {
		root := newRoot(t)
		values := map[string]hive.Value{
			"s":     hive.NewString("text"),
			"e":     hive.NewExpandString(`%TEMP%\x`),
			"dw":    hive.NewDWord(42),
			"qw":    hive.NewQWord(1 << 40),
			"bin":   hive.NewBinary([]byte{0, 1, 2, 255}),
			"multi": hive.NewMultiString([]string{"a", "b"}),
			"":      hive.NewString("default"),
		}
		for name, v := range values {
			require.NoError(t, root.SetValue(ctx, name, v), name)
		}
		for name, want := range values {
			got, found, err := root.GetValue(ctx, name)
			require.NoError(t, err, name)
			require.True(t, found, name)
			assert.True(t, want.Equal(got), "%s: want %v, got %v", name, want, got)
		}

		n, err := root.ValueCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, len(values), n)
	})

	t.Run("Overwrite", func(t *testing.T) {
		root := newRoot(t)
		require.NoError(t, root.SetValue(ctx, "x", hive.NewDWord(1)))
		require.NoError(t, root.SetValue(ctx, "x", hive.NewString("two")))

		v, _, err := root.GetValue(ctx, "x")
		require.NoError(t, err)
		assert.Equal(t, hive.KindString, v.Kind())

		n, err := root.ValueCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("MissingValue", func(t *testing.T) {
		root := newRoot(t)
		_, found, err := root.GetValue(ctx, "absent")
		require.NoError(t, err)
		assert.False(t, found)

		assert.ErrorIs(t, root.DeleteValue(ctx, "absent"), hive.ErrValueNotFound)
	})

	t.Run("DeleteValue", func(t *testing.T) {
		root := newRoot(t)
		require.NoError(t, root.SetValue(ctx, "x", hive.NewDWord(1)))
		require.NoError(t, root.DeleteValue(ctx, "X"))

		n, err := root.ValueCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("ReadOnlyHandle", func(t *testing.T) {
		root := newRoot(t)
		k, err := root.CreateSubKey(ctx, "ro", hive.CreateOptions{Writable: false})
		require.NoError(t, err)
		defer k.Close()

		assert.ErrorIs(t, k.SetValue(ctx, "x", hive.NewDWord(1)), hive.ErrReadOnly)

		_, found, err := root.OpenSubKey(ctx, "ro", false)
		require.NoError(t, err)
		assert.True(t, found, "section is created even though the handle is read-only")
	})

	t.Run("DeleteSubKey", func(t *testing.T) {
		root := newRoot(t)
		k, err := root.CreateSubKey(ctx, `p\c`, hive.CreateOptions{Writable: true})
		require.NoError(t, err)
		require.NoError(t, k.Close())

		assert.ErrorIs(t, root.DeleteSubKey(ctx, "p"), hive.ErrHasSubKeys)
		require.NoError(t, root.DeleteSubKey(ctx, `p\c`))
		require.NoError(t, root.DeleteSubKey(ctx, "p"))
		assert.ErrorIs(t, root.DeleteSubKey(ctx, "p"), hive.ErrKeyNotFound)

		n, err := root.SubKeyCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("DeleteSubKeyTree", func(t *testing.T) {
		root := newRoot(t)
		k, err := root.CreateSubKey(ctx, `t\a\b`, hive.CreateOptions{Writable: true})
		require.NoError(t, err)
		require.NoError(t, k.SetValue(ctx, "leaf", hive.NewDWord(1)))
		require.NoError(t, k.Close())

		require.NoError(t, root.DeleteSubKeyTree(ctx, "T"))

		for _, p := range []string{"t", `t\a`, `t\a\b`} {
			_, found, err := root.OpenSubKey(ctx, p, false)
			require.NoError(t, err)
			assert.False(t, found, p)
		}
		assert.ErrorIs(t, root.DeleteSubKeyTree(ctx, "t"), hive.ErrKeyNotFound)
	})

	t.Run("RecreateAfterDelete", func(t *testing.T) {
		root := newRoot(t)
		k, err := root.CreateSubKey(ctx, "r", hive.CreateOptions{Writable: true})
		require.NoError(t, err)
		require.NoError(t, k.SetValue(ctx, "old", hive.NewDWord(1)))
		require.NoError(t, k.Close())
		require.NoError(t, root.DeleteSubKeyTree(ctx, "r"))

		k, err = root.CreateSubKey(ctx, "r", hive.CreateOptions{Writable: true})
		require.NoError(t, err)
		defer k.Close()

		n, err := k.ValueCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("ClosedHandle", func(t *testing.T) {
		root := newRoot(t)
		k, err := root.CreateSubKey(ctx, "c", hive.CreateOptions{Writable: true})
		require.NoError(t, err)
		require.NoError(t, k.Close())

		_, err = k.ValueCount(ctx)
		assert.ErrorIs(t, err, hive.ErrKeyClosed)
		assert.ErrorIs(t, k.SetValue(ctx, "x", hive.NewDWord(1)), hive.ErrKeyClosed)
	})

	t.Run("InvalidOption", func(t *testing.T) {
		root := newRoot(t)
		_, err := root.CreateSubKey(ctx, "x", hive.CreateOptions{Writable: true, Option: hive.CreateOption(42)})
		assert.ErrorIs(t, err, hive.ErrInvalidOption)
	})

	if features.DeletedHandles {
		t.Run("DeletedHandle", func(t *testing.T) {
			root := newRoot(t)
			k, err := root.CreateSubKey(ctx, `d\e`, hive.CreateOptions{Writable: true})
			require.NoError(t, err)
			defer k.Close()
			require.NoError(t, root.DeleteSubKeyTree(ctx, "d"))

			_, err = k.ValueCount(ctx)
			assert.ErrorIs(t, err, hive.ErrKeyDeleted)
			assert.ErrorIs(t, k.SetValue(ctx, "x", hive.NewDWord(1)), hive.ErrKeyDeleted)
		})
	}

	if features.Volatile {
		t.Run("VolatileParent", func(t *testing.T) {
			root := newRoot(t)
			k, err := root.CreateSubKey(ctx, "vol", hive.CreateOptions{Writable: true, Option: hive.CreateVolatile})
			require.NoError(t, err)
			defer k.Close()

			_, err = root.CreateSubKey(ctx, `vol\stable`, hive.CreateOptions{Writable: true})
			assert.ErrorIs(t, err, hive.ErrChildMustBeVolatile)

			child, err := root.CreateSubKey(ctx, `vol\child`, hive.CreateOptions{Writable: true, Option: hive.CreateVolatile})
			require.NoError(t, err)
			require.NoError(t, child.Close())
		})
	}
}
