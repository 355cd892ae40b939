package indexledger

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestLedger(t *testing.T) {
	t.Run("Add_IndexIsPositionPlusOne", func(t *testing.T) {
		l := New[string, int]()

		pos, err := l.Add("a", 10)
		require.NoError(t, err)
		assert.Equal(t, 0, pos)
		assert.Equal(t, 1, l.IndexOf("a", 10), "position 0 must be stored as 1")

		pos, err = l.Add("a", 20)
		require.NoError(t, err)
		assert.Equal(t, 1, pos)
		assert.Equal(t, 2, l.IndexOf("a", 20))

		assert.Equal(t, 0, l.IndexOf("a", 30), "absent items report 0")
		assert.Equal(t, 0, l.IndexOf("b", 10), "owners do not share entries")
	})

	t.Run("Add_Duplicate", func(t *testing.T) {
		l := New[string, int]()
		_, err := l.Add("a", 1)
		require.NoError(t, err)

		_, err = l.Add("a", 1)
		assert.ErrorIs(t, err, ErrAlreadyPresent)
		assert.Equal(t, 1, l.Len("a"))

		_, err = l.Add("b", 1)
		assert.NoError(t, err, "the same item may be indexed under another owner")
	})

	t.Run("Remove_Missing", func(t *testing.T) {
		l := New[string, int]()
		_, err := l.Remove("a", 1)
		assert.ErrorIs(t, err, ErrNotPresent)
	})

	t.Run("Remove_RepointsMovedElement", func(t *testing.T) {
		l := New[string, int]()
		for _, v := range []int{1, 2, 3, 4} {
			_, err := l.Add("a", v)
			require.NoError(t, err)
		}

		pos, err := l.Remove("a", 2)
		require.NoError(t, err)
		assert.Equal(t, 1, pos)

		// 4 was swapped into the vacated slot and must now report position 1.
		assert.Equal(t, []int{1, 4, 3}, l.Items("a"))
		assert.Equal(t, 2, l.IndexOf("a", 4), "moved element must be re-pointed")
		assert.Equal(t, 0, l.IndexOf("a", 2), "removed element must not be reported present")
		assert.False(t, l.Contains("a", 2))

		// Removing the moved element afterwards must hit the right slot.
		_, err = l.Remove("a", 4)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 3}, l.Items("a"))
		assert.Equal(t, 2, l.IndexOf("a", 3))
	})

	t.Run("Remove_Last", func(t *testing.T) {
		l := New[string, int]()
		_, _ = l.Add("a", 1)
		_, _ = l.Add("a", 2)

		pos, err := l.Remove("a", 2)
		require.NoError(t, err)
		assert.Equal(t, 1, pos)
		assert.Equal(t, []int{1}, l.Items("a"))
		assert.Equal(t, 1, l.IndexOf("a", 1))
	})

	t.Run("Reinsert_InvertsRemove", func(t *testing.T) {
		l := New[string, int]()
		for _, v := range []int{1, 2, 3, 4, 5} {
			_, _ = l.Add("a", v)
		}
		before := l.Items("a")

		for _, v := range []int{1, 3, 5} {
			pos, err := l.Remove("a", v)
			require.NoError(t, err)
			require.NoError(t, l.Reinsert("a", v, pos))
			assert.Equal(t, before, l.Items("a"), "reinsert of %d must restore order", v)
			assertConsistent(t, l, "a")
		}

		assert.ErrorIs(t, l.Reinsert("a", 1, 0), ErrAlreadyPresent)
		assert.ErrorIs(t, l.Reinsert("a", 9, 7), ErrBadPosition)
	})

	t.Run("Clear_ErasesChildEntries", func(t *testing.T) {
		l := New[string, int]()
		_, _ = l.Add("a", 1)
		_, _ = l.Add("a", 2)
		_, _ = l.Add("b", 1)

		removed := l.Clear("a")
		assert.Equal(t, []int{1, 2}, removed)
		assert.Equal(t, 0, l.Len("a"))
		assert.False(t, l.Contains("a", 1))
		assert.False(t, l.Contains("a", 2))
		assert.True(t, l.Contains("b", 1), "other owners are untouched")
		assert.Equal(t, 1, l.Entries(), "no index entry of a may survive")

		require.NoError(t, l.Restore("a", removed))
		assert.Equal(t, []int{1, 2}, l.Items("a"))
		assertConsistent(t, l, "a")
		assert.ErrorIs(t, l.Restore("a", []int{7}), ErrNotEmpty)
	})

	t.Run("Items_DefensiveCopy", func(t *testing.T) {
		l := New[string, int]()
		_, _ = l.Add("a", 1)
		items := l.Items("a")
		items[0] = 99
		assert.Equal(t, []int{1}, l.Items("a"))
		assert.Nil(t, l.Items("missing"))
	})
}

// TestProperty_IndexIntegrityUnderChurn drives random add/remove sequences against a
// reference model and checks every stored index after each step.
func TestProperty_IndexIntegrityUnderChurn(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		l := New[int, int]()
		model := map[int]map[int]bool{}

		steps := rapid.IntRange(1, 200).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			owner := rapid.IntRange(0, 2).Draw(t, fmt.Sprintf("owner-%d", i))
			item := rapid.IntRange(0, 15).Draw(t, fmt.Sprintf("item-%d", i))
			if model[owner] == nil {
				model[owner] = map[int]bool{}
			}

			switch rapid.IntRange(0, 3).Draw(t, fmt.Sprintf("op-%d", i)) {
			case 0, 1:
				_, err := l.Add(owner, item)
				if model[owner][item] {
					require.ErrorIs(t, err, ErrAlreadyPresent)
				} else {
					require.NoError(t, err)
					model[owner][item] = true
				}
			case 2:
				_, err := l.Remove(owner, item)
				if model[owner][item] {
					require.NoError(t, err)
					delete(model[owner], item)
				} else {
					require.ErrorIs(t, err, ErrNotPresent)
				}
			case 3:
				pos, err := l.Remove(owner, item)
				if !model[owner][item] {
					require.ErrorIs(t, err, ErrNotPresent)
					continue
				}
				require.NoError(t, err)
				require.NoError(t, l.Reinsert(owner, item, pos))
			}

			total := 0
			for o, set := range model {
				items := l.Items(o)
				require.Len(t, items, len(set))
				for pos, it := range items {
					require.Equal(t, pos+1, l.IndexOf(o, it), "stale index for %d under %d", it, o)
					require.True(t, set[it])
				}
				for candidate := 0; candidate <= 15; candidate++ {
					if !set[candidate] {
						require.False(t, l.Contains(o, candidate), "removed item %d still present", candidate)
					}
				}
				total += len(set)
			}
			require.Equal(t, total, l.Entries())
		}
	})
}

func assertConsistent(t *testing.T, l *Ledger[string, int], owner string) {
	t.Helper()
	for pos, item := range l.Items(owner) {
		assert.Equal(t, pos+1, l.IndexOf(owner, item))
	}
}
