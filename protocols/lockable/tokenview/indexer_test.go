package tokenview

import (
	"testing"

	"github.com/Iwinswap/lockable-token-registry-go/protocols/lockable"
	"github.com/Iwinswap/lockable-token-registry-go/protocols/tokenref"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexableTokenSet(t *testing.T) {
	registry := common.HexToAddress("0x01")
	other := common.HexToAddress("0x02")
	alice := common.HexToAddress("0xa1")
	bob := common.HexToAddress("0xb0")
	lockedTo := tokenref.New(other, uint256.NewInt(9))

	tokens := []lockable.TokenView{
		{ID: uint256.NewInt(1), Owner: alice},
		{ID: uint256.NewInt(2), Owner: bob, LockedTo: &lockedTo},
		{ID: uint256.NewInt(3), Owner: alice},
		{Owner: bob},
	}

	set := New().Index(registry, tokens)
	require.NotNil(t, set)
	assert.Equal(t, registry, set.Registry())
	assert.Equal(t, 3, set.Len(), "views without an id are skipped")

	t.Run("GetByID", func(t *testing.T) {
		got, ok := set.GetByID(uint256.NewInt(2))
		require.True(t, ok)
		assert.Equal(t, bob, got.Owner)

		_, ok = set.GetByID(uint256.NewInt(42))
		assert.False(t, ok)
		_, ok = set.GetByID(nil)
		assert.False(t, ok)
	})

	t.Run("ByOwner", func(t *testing.T) {
		owned := set.ByOwner(alice)
		require.Len(t, owned, 2)
		assert.Equal(t, uint64(1), owned[0].ID.Uint64())
		assert.Equal(t, uint64(3), owned[1].ID.Uint64())
		assert.Empty(t, set.ByOwner(common.HexToAddress("0xdead")))
	})

	t.Run("Locked", func(t *testing.T) {
		locked := set.Locked()
		require.Len(t, locked, 1)
		assert.Equal(t, lockedTo, *locked[0].LockedTo)
	})

	t.Run("AllReturnsDefensiveCopy", func(t *testing.T) {
		all := set.All()
		require.Len(t, all, 3)
		all[0].Owner = bob
		assert.Equal(t, alice, set.All()[0].Owner)

		owned := set.ByOwner(alice)
		owned[0].Owner = bob
		assert.Equal(t, alice, set.ByOwner(alice)[0].Owner)
	})
}
