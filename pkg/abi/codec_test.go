package abi

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safekit/safed/pkg/ethtypes"
)

func TestEncodeUint(t *testing.T) {
	out := EncodeUint(big.NewInt(1))
	require.Len(t, out, WordSize)
	assert.Equal(t, byte(1), out[31])
	assert.Equal(t, make([]byte, 31), out[:31])

	assert.Equal(t, make([]byte, WordSize), EncodeUint(nil))
	assert.Equal(t, make([]byte, WordSize), EncodeUint(big.NewInt(0)))
}

func TestEncodeUintTruncatesTo256Bits(t *testing.T) {
	// 2^256 + 5 keeps only the low 256 bits.
	wide := new(big.Int).Lsh(big.NewInt(1), 256)
	wide.Add(wide, big.NewInt(5))
	assert.Equal(t, EncodeUint(big.NewInt(5)), EncodeUint(wide))
}

func TestDecodeUint(t *testing.T) {
	assert.Equal(t, int64(0), DecodeUint(nil).Int64())
	assert.Equal(t, int64(0), DecodeUint([]byte{}).Int64())

	n := big.NewInt(123456789)
	assert.Equal(t, n, DecodeUint(EncodeUint(n)))

	// Extra trailing words are ignored.
	data := append(EncodeUint(n), EncodeUint(big.NewInt(7))...)
	assert.Equal(t, n, DecodeUint(data))
}

func TestAddressRoundTrip(t *testing.T) {
	addr := ethtypes.NewAddress("0x8c89f5758Ac145a10d8380A4A4F24fBDd27BAE05")
	out := EncodeAddress(addr)
	require.Len(t, out, WordSize)
	assert.Equal(t, make([]byte, 12), out[:12])
	assert.True(t, addr.Equals(DecodeAddress(out)))
}

func TestBool(t *testing.T) {
	assert.Equal(t, EncodeUint64(1), EncodeBool(true))
	assert.Equal(t, EncodeUint64(0), EncodeBool(false))
	assert.True(t, DecodeBool(EncodeBool(true)))
	assert.False(t, DecodeBool(EncodeBool(false)))
	assert.False(t, DecodeBool(nil))
	// Any nonzero word is true.
	assert.True(t, DecodeBool(EncodeUint64(42)))
}

func TestBytesRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{0x01},
		make([]byte, 32),
		[]byte("hello, ethereum abi encoding test vector here!!"),
	}
	for _, in := range cases {
		out := EncodeBytes(in)
		assert.Equal(t, 0, (len(out)-WordSize)%WordSize)
		assert.Equal(t, in, DecodeBytes(out))
	}
}

func TestEncodeBytesPads(t *testing.T) {
	out := EncodeBytes([]byte{0xaa, 0xbb})
	require.Len(t, out, 2*WordSize)
	assert.Equal(t, int64(2), DecodeUint(out[:WordSize]).Int64())
	assert.Equal(t, byte(0xaa), out[WordSize])
	assert.Equal(t, byte(0xbb), out[WordSize+1])
	assert.Equal(t, make([]byte, 30), out[WordSize+2:])
}

func TestDecodeBytesShortInput(t *testing.T) {
	assert.Nil(t, DecodeBytes(nil))
	assert.Nil(t, DecodeBytes(make([]byte, 10)))

	// Declared length longer than remaining data yields the prefix.
	data := append(EncodeUint64(100), 0x01, 0x02)
	assert.Equal(t, []byte{0x01, 0x02}, DecodeBytes(data))
}

func TestTupleUint(t *testing.T) {
	values := []*big.Int{big.NewInt(1), big.NewInt(2), big.NewInt(3)}
	out := EncodeTupleUint(values)
	require.Len(t, out, 3*WordSize)
	assert.Equal(t, values, DecodeTupleUint(out, 3))
	assert.Empty(t, DecodeTupleUint(out, 4))
	assert.Empty(t, DecodeTupleUint(nil, 1))
}

func TestArrayUintRoundTrip(t *testing.T) {
	values := []*big.Int{big.NewInt(10), big.NewInt(20)}
	out := EncodeArrayUint(values)
	require.Len(t, out, 4*WordSize)
	assert.Equal(t, int64(32), DecodeUint(out[:WordSize]).Int64())
	assert.Equal(t, int64(2), DecodeUint(out[WordSize:2*WordSize]).Int64())
	assert.Equal(t, values, DecodeArrayUint(out))

	assert.Empty(t, DecodeArrayUint(nil))
	assert.Empty(t, DecodeArrayUint(EncodeUint64(64)))
	assert.Equal(t, []*big.Int{}, DecodeArrayUint(EncodeArrayUint(nil)))
}

func TestArrayAddressRoundTrip(t *testing.T) {
	addrs := []ethtypes.Address{
		ethtypes.NewAddress("0x0000000000000000000000000000000000000001"),
		ethtypes.NewAddress("0x8c89f5758ac145a10d8380a4a4f24fbdd27bae05"),
	}
	assert.Equal(t, addrs, DecodeArrayAddress(EncodeArrayAddress(addrs)))
}

func TestStringRoundTrip(t *testing.T) {
	// Contract return data: offset word then length-prefixed bytes.
	payload := append(EncodeUint64(WordSize), EncodeString("Gnosis")...)
	assert.Equal(t, "Gnosis", DecodeString(payload))
	assert.Equal(t, "", DecodeString(nil))
}

func TestSelector(t *testing.T) {
	// keccak256("transfer(address,uint256)")[:4] == a9059cbb
	assert.Equal(t, "a9059cbb", hex.EncodeToString(Selector("transfer(address,uint256)")))
	assert.Equal(t, "70a08231", hex.EncodeToString(Selector("balanceOf(address)")))
}

func TestInvocation(t *testing.T) {
	arg := EncodeUint(big.NewInt(7))
	data := Invocation("foo(uint256)", arg)
	require.Len(t, data, 4+WordSize)
	assert.Equal(t, Selector("foo(uint256)"), data[:4])
	assert.Equal(t, arg, data[4:])
}

func TestKeccak256(t *testing.T) {
	// Well-known vector: keccak256("") =
	// c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470
	assert.Equal(t,
		"c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470",
		hex.EncodeToString(Keccak256(nil)))

	// Hashing in chunks equals hashing the concatenation.
	assert.Equal(t, Keccak256([]byte("ab"), []byte("cd")), Keccak256([]byte("abcd")))
}
