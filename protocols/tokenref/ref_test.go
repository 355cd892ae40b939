package tokenref

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRef(t *testing.T) {
	registry := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	id := uint256.NewInt(42)

	t.Run("New_CopiesID", func(t *testing.T) {
		ref := New(registry, id)
		id.SetUint64(7)

		assert.Equal(t, uint64(42), ref.Token.Uint64(), "ref must not alias the caller's id")
		assert.Equal(t, registry, ref.Registry)
		id.SetUint64(42)
	})

	t.Run("ID_ReturnsCopy", func(t *testing.T) {
		ref := New(registry, id)
		got := ref.ID()
		got.SetUint64(1)

		assert.Equal(t, uint64(42), ref.Token.Uint64())
	})

	t.Run("Zero", func(t *testing.T) {
		assert.True(t, Ref{}.IsZero())
		assert.True(t, New(common.Address{}, nil).IsZero())
		assert.False(t, New(registry, id).IsZero())
	})

	t.Run("String_RoundTrip", func(t *testing.T) {
		ref := New(registry, id)
		str := ref.String()
		assert.Equal(t, registry.Hex()+"/42", str)

		parsed, err := Parse(str)
		require.NoError(t, err)
		assert.Equal(t, ref, parsed)
	})

	t.Run("Parse_Validation", func(t *testing.T) {
		_, err := Parse("0x00000000000000000000000000000000000000aa")
		assert.ErrorIs(t, err, ErrInvalidRef, "missing token part")

		_, err = Parse("not-an-address/1")
		assert.ErrorIs(t, err, ErrInvalidRef)

		_, err = Parse("0x00000000000000000000000000000000000000aa/abc")
		assert.ErrorIs(t, err, ErrInvalidTokenID)
	})

	t.Run("JSON_RoundTrip", func(t *testing.T) {
		ref := New(registry, id)

		data, err := ref.MarshalJSON()
		require.NoError(t, err)
		assert.JSONEq(t, `{"registry":"0x00000000000000000000000000000000000000aa","token":"42"}`, string(data))

		var decoded Ref
		require.NoError(t, decoded.UnmarshalJSON(data))
		assert.Equal(t, ref, decoded)
	})

	t.Run("JSON_HexToken", func(t *testing.T) {
		var decoded Ref
		err := decoded.UnmarshalJSON([]byte(`{"registry":"` + registry.Hex() + `","token":"0x2a"}`))
		require.NoError(t, err)
		assert.Equal(t, uint64(42), decoded.Token.Uint64())
	})

	t.Run("JSON_Validation", func(t *testing.T) {
		var decoded Ref
		assert.Error(t, decoded.UnmarshalJSON([]byte(`123`)), "should fail on non-object JSON")
		assert.Error(t, decoded.UnmarshalJSON([]byte(`{"registry":"0x01","token":""}`)), "should fail on empty token")
	})
}

func TestParseTokenID(t *testing.T) {
	id, err := ParseTokenID("115792089237316195423570985008687907853269984665640564039457584007913129639935")
	require.NoError(t, err)
	assert.Equal(t, new(uint256.Int).SetAllOne(), id, "max uint256 should parse")

	id, err = ParseTokenID(" 0xff ")
	require.NoError(t, err)
	assert.Equal(t, uint64(255), id.Uint64())

	_, err = ParseTokenID("")
	assert.ErrorIs(t, err, ErrInvalidTokenID)

	_, err = ParseTokenID("-1")
	assert.ErrorIs(t, err, ErrInvalidTokenID)
}
