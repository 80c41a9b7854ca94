package signing

import (
	"context"
	"encoding/asn1"
	"math/big"
	"sync"
	"testing"

	"github.com/wozhendeai/grip-sub002/internal/txcodec"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTx(authType uint8) *txcodec.Transaction {
	return &txcodec.Transaction{
		ChainID:      big.NewInt(84532),
		Nonce:        1,
		MaxFeePerGas: big.NewInt(1_000_000_000),
		Gas:          100_000,
		To:           common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		Value:        big.NewInt(0),
		Data:         []byte{0x01, 0x02},
		AuthType:     authType,
		FeeToken:     common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"),
	}
}

func TestKeychainSignerProducesRecoverableSignature(t *testing.T) {
	hsm, err := GenerateLocalHSM()
	require.NoError(t, err)
	root := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")

	signer := NewKeychainSigner(hsm, root)
	tx := testTx(txcodec.AuthTypeSecp256k1)

	signed, err := signer.Sign(context.Background(), tx)
	require.NoError(t, err)

	// 签名后的交易可以解码，签名字段带委托前缀
	decoded, err := txcodec.Decode(signed.Raw)
	require.NoError(t, err)
	require.True(t, txcodec.IsKeychainSignature(decoded.Signature))

	gotRoot, inner, err := txcodec.ParseKeychainSignature(decoded.Signature)
	require.NoError(t, err)
	assert.Equal(t, root, gotRoot)

	// 内层签名可恢复出HSM密钥的地址
	require.Len(t, inner, 65)
	pub, err := crypto.SigToPub(signed.Hash.Bytes(), inner)
	require.NoError(t, err)
	assert.Equal(t, hsm.Address(), crypto.PubkeyToAddress(*pub))
}

func TestKeychainSignerRejectsPasskeyAuthType(t *testing.T) {
	hsm, err := GenerateLocalHSM()
	require.NoError(t, err)
	signer := NewKeychainSigner(hsm, common.Address{})

	_, err = signer.Sign(context.Background(), testTx(txcodec.AuthTypePasskey))
	require.Error(t, err)
}

func TestKeychainSignerDoesNotMutateInput(t *testing.T) {
	hsm, err := GenerateLocalHSM()
	require.NoError(t, err)
	signer := NewKeychainSigner(hsm, common.Address{})

	tx := testTx(txcodec.AuthTypeSecp256k1)
	_, err = signer.Sign(context.Background(), tx)
	require.NoError(t, err)
	assert.Empty(t, tx.Signature)
}

type derSig struct {
	R *big.Int
	S *big.Int
}

func TestDecomposeDERSignature(t *testing.T) {
	r := new(big.Int).SetBytes([]byte{0x01, 0xff, 0xee})
	s := new(big.Int).SetBytes([]byte{0x7f, 0xaa})
	der, err := asn1.Marshal(derSig{R: r, S: s})
	require.NoError(t, err)

	r32, s32, err := DecomposeDERSignature(der)
	require.NoError(t, err)
	assert.Equal(t, r.Bytes(), new(big.Int).SetBytes(r32[:]).Bytes())
	assert.Equal(t, s.Bytes(), new(big.Int).SetBytes(s32[:]).Bytes())
}

func TestDecomposeDERSignatureRejectsGarbage(t *testing.T) {
	_, _, err := DecomposeDERSignature([]byte{0x30, 0x01, 0x00})
	require.Error(t, err)
	_, _, err = DecomposeDERSignature(nil)
	require.Error(t, err)
}

func TestPasskeySignerEmbedsAssertion(t *testing.T) {
	der, err := asn1.Marshal(derSig{R: big.NewInt(12345), S: big.NewInt(67890)})
	require.NoError(t, err)

	signer := NewPasskeySigner(PasskeyAssertion{
		DERSignature:      der,
		AuthenticatorData: []byte{0xa0, 0xa1},
		ClientDataJSON:    []byte(`{"type":"webauthn.get"}`),
	})

	signed, err := signer.Sign(context.Background(), testTx(txcodec.AuthTypePasskey))
	require.NoError(t, err)

	decoded, err := txcodec.Decode(signed.Raw)
	require.NoError(t, err)
	assert.NotEmpty(t, decoded.Signature)
	assert.False(t, txcodec.IsKeychainSignature(decoded.Signature))
}

func TestNonceLockerSerializesPerAddress(t *testing.T) {
	locker := NewNonceLocker()
	addr := common.HexToAddress("0x1111111111111111111111111111111111111111")

	var mu sync.Mutex
	inFlight := 0
	maxInFlight := 0

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locker.Lock(addr)
			defer unlock()

			mu.Lock()
			inFlight++
			if inFlight > maxInFlight {
				maxInFlight = inFlight
			}
			mu.Unlock()

			mu.Lock()
			inFlight--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInFlight)
}
