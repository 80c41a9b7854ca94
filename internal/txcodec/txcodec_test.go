package txcodec

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTx() *Transaction {
	return &Transaction{
		ChainID:      big.NewInt(84532),
		Nonce:        7,
		MaxFeePerGas: big.NewInt(2_000_000_000),
		Gas:          200_000,
		To:           common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Value:        big.NewInt(0),
		Data:         []byte{0xde, 0xad, 0xbe, 0xef},
		AuthType:     AuthTypeSecp256k1,
		FeeToken:     common.HexToAddress("0x2222222222222222222222222222222222222222"),
		Sponsor:      common.HexToAddress("0x3333333333333333333333333333333333333333"),
	}
}

func TestUnsignedRoundTrip(t *testing.T) {
	tx := sampleTx()

	raw, err := EncodeUnsigned(tx)
	require.NoError(t, err)
	assert.Equal(t, TxType, raw[0])

	out, err := Decode(raw)
	require.NoError(t, err)
	assert.Zero(t, tx.ChainID.Cmp(out.ChainID))
	assert.Equal(t, tx.Nonce, out.Nonce)
	assert.Equal(t, tx.To, out.To)
	assert.Equal(t, tx.Data, out.Data)
	assert.Equal(t, tx.AuthType, out.AuthType)
	assert.Equal(t, tx.FeeToken, out.FeeToken)
	assert.Empty(t, out.Signature)
}

func TestSignedRoundTrip(t *testing.T) {
	tx := sampleTx()
	tx.Signature = []byte{0x01, 0x02, 0x03}

	raw, err := EncodeSigned(tx)
	require.NoError(t, err)

	out, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, tx.Signature, out.Signature)
}

func TestEncodeSignedRequiresSignature(t *testing.T) {
	_, err := EncodeSigned(sampleTx())
	require.Error(t, err)
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	raw, err := EncodeUnsigned(sampleTx())
	require.NoError(t, err)
	raw[0] = 0x99

	_, err = Decode(raw)
	require.Error(t, err)
}

func TestDecodeRejectsTruncated(t *testing.T) {
	_, err := Decode([]byte{TxType})
	require.Error(t, err)
	_, err = Decode(nil)
	require.Error(t, err)
}

func TestHashIgnoresSignature(t *testing.T) {
	tx := sampleTx()
	h1, err := Hash(tx)
	require.NoError(t, err)

	tx.Signature = []byte{0xff, 0xee}
	h2, err := Hash(tx)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	// 内容变化哈希必须变化
	tx.Nonce++
	h3, err := Hash(tx)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestKeychainSignatureRoundTrip(t *testing.T) {
	root := common.HexToAddress("0x4444444444444444444444444444444444444444")
	inner := []byte{0xaa, 0xbb, 0xcc}

	sig := WrapKeychainSignature(root, inner)
	assert.Equal(t, KeychainSigPrefix, sig[0])
	assert.True(t, IsKeychainSignature(sig))

	gotRoot, gotInner, err := ParseKeychainSignature(sig)
	require.NoError(t, err)
	assert.Equal(t, root, gotRoot)
	assert.Equal(t, inner, gotInner)
}

func TestParseKeychainSignatureRejectsBadInput(t *testing.T) {
	_, _, err := ParseKeychainSignature([]byte{0x03, 0x01})
	require.Error(t, err)

	_, _, err = ParseKeychainSignature(make([]byte, 30))
	require.Error(t, err)
}

func TestKeyAuthorizationRoundTrip(t *testing.T) {
	auth := &KeyAuthorization{
		ChainID: big.NewInt(84532),
		KeyType: AuthTypeSecp256k1,
		KeyID:   common.HexToAddress("0x5555555555555555555555555555555555555555"),
		Expiry:  1_900_000_000,
		Limits: []KeyLimit{
			{Token: common.HexToAddress("0x6666666666666666666666666666666666666666"), Amount: big.NewInt(5_000_000)},
		},
	}

	raw, err := EncodeKeyAuthorization(auth)
	require.NoError(t, err)

	out, err := DecodeKeyAuthorization(raw)
	require.NoError(t, err)
	assert.Equal(t, auth.KeyID, out.KeyID)
	assert.Equal(t, auth.Expiry, out.Expiry)
	require.Len(t, out.Limits, 1)
	assert.Zero(t, auth.Limits[0].Amount.Cmp(out.Limits[0].Amount))

	h1, err := HashKeyAuthorization(auth)
	require.NoError(t, err)
	auth.Expiry++
	h2, err := HashKeyAuthorization(auth)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}
