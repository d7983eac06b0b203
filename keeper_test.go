package gantry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeeperResolve(t *testing.T) {
	t.Run("unique handles resolve to declaration order", func(t *testing.T) {
		k := newKeeper[string]()
		k.insert("db", "first")
		k.insert("cache", "second")
		k.insert("app", "third")

		for handle, want := range map[string]string{
			"db":    "first",
			"cache": "second",
			"app":   "third",
		} {
			got, err := k.resolve(handle)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	})

	t.Run("unknown handle", func(t *testing.T) {
		k := newKeeper[string]()
		k.insert("db", "first")

		_, err := k.resolve("cache")
		var handleErr *HandleError
		require.ErrorAs(t, err, &handleErr)
		assert.Equal(t, "cache", handleErr.Handle)
		assert.False(t, handleErr.Collided)
	})

	t.Run("duplicated handle always collides", func(t *testing.T) {
		k := newKeeper[string]()
		k.insert("db", "first")
		k.insert("db", "second")

		// Both entities stay in the sequence, but the handle is dead.
		require.Len(t, k.kept, 2)
		_, err := k.resolve("db")
		var handleErr *HandleError
		require.ErrorAs(t, err, &handleErr)
		assert.True(t, handleErr.Collided)
	})

	t.Run("collision does not disturb other handles", func(t *testing.T) {
		k := newKeeper[string]()
		k.insert("db", "first")
		k.insert("db", "second")
		k.insert("app", "third")

		got, err := k.resolve("app")
		require.NoError(t, err)
		assert.Equal(t, "third", got)
	})
}

func TestKeeperRekey(t *testing.T) {
	t.Run("carries tables to the next stage", func(t *testing.T) {
		k := newKeeper[string]()
		k.insert("db", "a")
		k.insert("db", "b")
		k.insert("app", "c")

		next, err := rekey(k, []int{1, 2, 3})
		require.NoError(t, err)

		got, err := next.resolve("app")
		require.NoError(t, err)
		assert.Equal(t, 3, got)

		_, err = next.resolve("db")
		var handleErr *HandleError
		require.ErrorAs(t, err, &handleErr)
		assert.True(t, handleErr.Collided)
	})

	t.Run("rejects mismatched entity count", func(t *testing.T) {
		k := newKeeper[string]()
		k.insert("db", "a")

		_, err := rekey(k, []int{1, 2})
		var procErr *ProcessingError
		require.True(t, errors.As(err, &procErr))
	})
}
