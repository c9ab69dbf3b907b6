package wallet

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/sponsor-go/fault"
	"github.com/bitfsorg/sponsor-go/storage"
)

// testKDF keeps Argon2id cheap in tests.
var testKDF = KDFParams{Time: 1, Memory: 64, Parallelism: 1}

const keyOneHex = "0000000000000000000000000000000000000000000000000000000000000001"

func newTestProvisioner(t *testing.T) (*Provisioner, *storage.MemStore) {
	t.Helper()
	store := storage.NewMemStore()
	p, err := NewProvisioner(store, "test-passphrase", &MainNet, WithKDFParams(testKDF))
	require.NoError(t, err)
	return p, store
}

// --- Key tests ---

func TestGenerateKey(t *testing.T) {
	k, err := GenerateKey(&MainNet)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(k.Address, "1"), "mainnet P2PKH starts with 1")
	assert.Len(t, k.PublicKeyHex(), 66)
	assert.True(t, ValidateAddress(k.Address))
}

func TestGenerateKey_Unique(t *testing.T) {
	k1, err := GenerateKey(nil)
	require.NoError(t, err)
	k2, err := GenerateKey(nil)
	require.NoError(t, err)
	assert.NotEqual(t, k1.Address, k2.Address)
}

func TestGenerateKey_TestNetAddress(t *testing.T) {
	k, err := GenerateKey(&TestNet)
	require.NoError(t, err)
	assert.Contains(t, "mn", k.Address[:1], "testnet P2PKH starts with m or n")
}

func TestParseKeyMaterial_HexKnownVector(t *testing.T) {
	k, err := ParseKeyMaterial(keyOneHex, &MainNet)
	require.NoError(t, err)
	assert.Equal(t, "1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH", k.Address)
}

func TestParseKeyMaterial_WIFRoundTrip(t *testing.T) {
	k, err := GenerateKey(&MainNet)
	require.NoError(t, err)

	parsed, err := ParseKeyMaterial("  "+k.WIF()+"\n", &MainNet)
	require.NoError(t, err)
	assert.Equal(t, k.Address, parsed.Address)
}

func TestParseKeyMaterial_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		material string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"zero scalar", strings.Repeat("0", 64)},
		{"above curve order", strings.Repeat("f", 64)},
		{"short hex", "abcd"},
		{"garbage", "not-a-key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseKeyMaterial(tt.material, &MainNet)
			assert.ErrorIs(t, err, ErrInvalidKeyMaterial)
			assert.Equal(t, fault.KindValidation, fault.KindOf(err))
		})
	}
}

func TestKey_SignVerifies(t *testing.T) {
	k, err := GenerateKey(&MainNet)
	require.NoError(t, err)

	digest := sha256.Sum256([]byte("bundle"))
	der, err := k.Sign(digest[:])
	require.NoError(t, err)

	sig, err := ec.ParseDERSignature(der)
	require.NoError(t, err)
	assert.True(t, sig.Verify(digest[:], k.PublicKey()))
}

func TestKey_StringHidesSecret(t *testing.T) {
	k, err := ParseKeyMaterial(keyOneHex, &MainNet)
	require.NoError(t, err)
	assert.NotContains(t, k.String(), keyOneHex)
	assert.NotContains(t, k.String(), k.WIF())
	assert.Contains(t, k.String(), k.Address)
}

func TestParsePublicKeyHex(t *testing.T) {
	k, err := GenerateKey(&MainNet)
	require.NoError(t, err)

	pub, err := ParsePublicKeyHex(k.PublicKeyHex())
	require.NoError(t, err)
	addr, err := DeriveAddress(pub, &MainNet)
	require.NoError(t, err)
	assert.Equal(t, k.Address, addr)

	_, err = ParsePublicKeyHex("zz")
	assert.ErrorIs(t, err, ErrInvalidPublicKey)
	_, err = ParsePublicKeyHex("04" + strings.Repeat("00", 64))
	assert.ErrorIs(t, err, ErrInvalidPublicKey)
}

func TestDeriveAddress_NilKey(t *testing.T) {
	_, err := DeriveAddress(nil, &MainNet)
	assert.ErrorIs(t, err, ErrInvalidPublicKey)
}

// --- Seal tests ---

func TestSealOpenKey_RoundTrip(t *testing.T) {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(i + 1)
	}

	sealed, err := SealKey(raw, "test-password-123", testKDF)
	require.NoError(t, err)
	assert.Greater(t, len(sealed), len(raw))

	opened, err := OpenKey(sealed, "test-password-123", testKDF)
	require.NoError(t, err)
	assert.Equal(t, raw, opened)
}

func TestOpenKey_WrongPassphrase(t *testing.T) {
	sealed, err := SealKey(make([]byte, 32), "correct-password", testKDF)
	require.NoError(t, err)

	_, err = OpenKey(sealed, "wrong-password", testKDF)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestOpenKey_Tampered(t *testing.T) {
	sealed, err := SealKey(make([]byte, 32), "pw", testKDF)
	require.NoError(t, err)

	sealed[SaltLen+NonceLen+5] ^= 0xFF
	_, err = OpenKey(sealed, "pw", testKDF)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestOpenKey_TooShort(t *testing.T) {
	_, err := OpenKey([]byte{0x01, 0x02, 0x03}, "pw", testKDF)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestSealKey_Rejects(t *testing.T) {
	_, err := SealKey(nil, "pw", testKDF)
	assert.ErrorIs(t, err, ErrInvalidKeyMaterial)

	_, err = SealKey(make([]byte, 32), "", testKDF)
	assert.ErrorIs(t, err, ErrEmptyPassphrase)

	_, err = SealKey(make([]byte, 32), "pw", KDFParams{})
	assert.ErrorIs(t, err, ErrInvalidKDFParams)
}

func TestSealKey_DifferentCiphertexts(t *testing.T) {
	raw := make([]byte, 32)
	enc1, err := SealKey(raw, "same", testKDF)
	require.NoError(t, err)
	enc2, err := SealKey(raw, "same", testKDF)
	require.NoError(t, err)

	// Random salt and nonce.
	assert.NotEqual(t, enc1, enc2)
}

func TestDefaultKDFParams(t *testing.T) {
	p := DefaultKDFParams()
	assert.Equal(t, uint32(Argon2Time), p.Time)
	assert.Equal(t, uint32(Argon2Memory), p.Memory)
	assert.Equal(t, uint8(Argon2Parallelism), p.Parallelism)
}

// --- Network tests ---

func TestGetNetwork(t *testing.T) {
	for _, name := range []string{"mainnet", "testnet", "regtest"} {
		net, err := GetNetwork(name)
		require.NoError(t, err)
		assert.Equal(t, name, net.Name)
	}

	_, err := GetNetwork("teranet")
	assert.ErrorIs(t, err, ErrInvalidNetwork)
}

func TestNetworkConfig_IsMainnet(t *testing.T) {
	assert.True(t, MainNet.IsMainnet())
	assert.False(t, TestNet.IsMainnet())
	assert.False(t, RegTest.IsMainnet())
}

// --- Provisioner tests ---

func TestNewProvisioner_EmptyPassphrase(t *testing.T) {
	_, err := NewProvisioner(storage.NewMemStore(), "", &MainNet)
	assert.ErrorIs(t, err, ErrEmptyPassphrase)
}

func TestProvisionDedicated_LoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	p, store := newTestProvisioner(t)

	key, ref, err := p.ProvisionDedicated(ctx, "pool1")
	require.NoError(t, err)
	assert.Equal(t, "pool_wallets/pool1", ref)

	loaded, err := p.LoadDedicated(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, key.Address, loaded.Address)

	// Secret material is sealed at rest.
	data, err := store.Get(BucketPoolWallets, "pool1")
	require.NoError(t, err)
	assert.NotContains(t, string(data), key.WIF())
	var rec keyRecord
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, key.Address, rec.Address)
	assert.Equal(t, testKDF, rec.KDF)
}

func TestProvisionDedicated_UniquePerPool(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProvisioner(t)

	k1, _, err := p.ProvisionDedicated(ctx, "pool1")
	require.NoError(t, err)
	k2, _, err := p.ProvisionDedicated(ctx, "pool2")
	require.NoError(t, err)
	assert.NotEqual(t, k1.Address, k2.Address)

	_, _, err = p.ProvisionDedicated(ctx, "pool1")
	assert.ErrorIs(t, err, ErrWalletExists)
}

func TestLoadDedicated_Errors(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProvisioner(t)

	_, err := p.LoadDedicated(ctx, DedicatedRef("missing"))
	assert.ErrorIs(t, err, ErrWalletNotFound)
	assert.Equal(t, fault.KindNotFound, fault.KindOf(err))

	_, err = p.LoadDedicated(ctx, "community_wallets/1abc")
	assert.ErrorIs(t, err, ErrInvalidWalletRef)
}

func TestLoadDedicated_WrongPassphrase(t *testing.T) {
	ctx := context.Background()
	p, store := newTestProvisioner(t)
	_, ref, err := p.ProvisionDedicated(ctx, "pool1")
	require.NoError(t, err)

	other, err := NewProvisioner(store, "different", &MainNet, WithKDFParams(testKDF))
	require.NoError(t, err)
	_, err = other.LoadDedicated(ctx, ref)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestLoadDedicated_CorruptRecord(t *testing.T) {
	ctx := context.Background()
	p, store := newTestProvisioner(t)
	require.NoError(t, store.Put(BucketPoolWallets, "pool1", []byte("{not json")))

	_, err := p.LoadDedicated(ctx, DedicatedRef("pool1"))
	assert.ErrorIs(t, err, ErrCorruptKeyRecord)
}

func TestDestroyDedicated(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProvisioner(t)
	_, ref, err := p.ProvisionDedicated(ctx, "pool1")
	require.NoError(t, err)

	require.NoError(t, p.DestroyDedicated(ctx, ref))

	_, err = p.LoadDedicated(ctx, ref)
	assert.ErrorIs(t, err, ErrWalletNotFound)
	assert.ErrorIs(t, p.DestroyDedicated(ctx, ref), ErrWalletNotFound)
}

func TestPickCommunity_Empty(t *testing.T) {
	p, _ := newTestProvisioner(t)
	_, err := p.PickCommunity(context.Background())
	assert.ErrorIs(t, err, ErrNoCommunityWalletsAvailable)
	assert.Equal(t, fault.KindCapacity, fault.KindOf(err))
}

func TestEnrollCommunity_Idempotent(t *testing.T) {
	ctx := context.Background()
	p, store := newTestProvisioner(t)

	addr, err := p.EnrollCommunity(ctx, keyOneHex)
	require.NoError(t, err)
	assert.Equal(t, "1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH", addr)
	first, err := store.Get(BucketCommunityWallets, addr)
	require.NoError(t, err)

	again, err := p.EnrollCommunity(ctx, keyOneHex)
	require.NoError(t, err)
	assert.Equal(t, addr, again)

	second, err := store.Get(BucketCommunityWallets, addr)
	require.NoError(t, err)
	assert.Equal(t, first, second, "re-enrollment must not rewrite the record")

	addrs, err := p.CommunityAddresses(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{addr}, addrs)
}

func TestEnrollCommunity_InvalidMaterial(t *testing.T) {
	p, _ := newTestProvisioner(t)
	_, err := p.EnrollCommunity(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrInvalidKeyMaterial)
}

func TestPickCommunity_CoversAllWallets(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProvisioner(t)

	enrolled := map[string]bool{}
	for i := 0; i < 3; i++ {
		k, err := GenerateKey(&MainNet)
		require.NoError(t, err)
		addr, err := p.EnrollCommunity(ctx, k.WIF())
		require.NoError(t, err)
		enrolled[addr] = true
	}

	seen := map[string]bool{}
	for i := 0; i < 200 && len(seen) < len(enrolled); i++ {
		k, err := p.PickCommunity(ctx)
		require.NoError(t, err)
		require.True(t, enrolled[k.Address])
		seen[k.Address] = true
	}
	assert.Len(t, seen, len(enrolled))
}

func TestProvisioner_CanceledContext(t *testing.T) {
	p, _ := newTestProvisioner(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := p.ProvisionDedicated(ctx, "pool1")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = p.PickCommunity(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProvisionDedicated_Concurrent(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestProvisioner(t)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = p.ProvisionDedicated(ctx, "same-pool")
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, ErrWalletExists)
		}
	}
	assert.Equal(t, 1, ok)
}
