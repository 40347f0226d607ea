package keystore_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-wallet-engine/internal/wallet/keystore"
)

//nolint:dupword
const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestEncryptDecrypt(t *testing.T) {
	blob, err := keystore.Encrypt(testMnemonic, "correct horse", keystore.LightScryptParams())
	require.NoError(t, err)
	assert.NotContains(t, string(blob), "abandon")

	var parsed keystore.KeystoreJSON
	require.NoError(t, json.Unmarshal(blob, &parsed))
	assert.Equal(t, 3, parsed.Version)
	assert.Equal(t, "aes-128-ctr", parsed.Crypto.Cipher)
	assert.Equal(t, "scrypt", parsed.Crypto.KDF)
	assert.Equal(t, 1<<12, parsed.Crypto.KDFParams.N)
	assert.Len(t, parsed.Crypto.MAC, 64)

	mnemonic, err := keystore.Decrypt(blob, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, testMnemonic, mnemonic)

	again, err := keystore.Encrypt(testMnemonic, "correct horse", keystore.LightScryptParams())
	require.NoError(t, err)
	assert.NotEqual(t, blob, again, "salt and iv must be fresh")
}

func TestDecryptWrongPassword(t *testing.T) {
	blob, err := keystore.Encrypt(testMnemonic, "correct horse", keystore.LightScryptParams())
	require.NoError(t, err)

	_, err = keystore.Decrypt(blob, "battery staple")
	require.Error(t, err)
	assert.True(t, errors.Is(err, keystore.ErrInvalidPassword))
	assert.Equal(t, "invalid password", err.Error())
}

func TestDecryptRejectsTampering(t *testing.T) {
	blob, err := keystore.Encrypt(testMnemonic, "pw", keystore.LightScryptParams())
	require.NoError(t, err)

	var parsed keystore.KeystoreJSON
	require.NoError(t, json.Unmarshal(blob, &parsed))

	flipped := []byte(parsed.Crypto.Ciphertext)
	if flipped[0] == 'a' {
		flipped[0] = 'b'
	} else {
		flipped[0] = 'a'
	}
	parsed.Crypto.Ciphertext = string(flipped)
	tampered, err := json.Marshal(parsed)
	require.NoError(t, err)

	_, err = keystore.Decrypt(tampered, "pw")
	assert.True(t, errors.Is(err, keystore.ErrInvalidPassword))

	parsed.Crypto.Cipher = "aes-256-gcm"
	unsupported, err := json.Marshal(parsed)
	require.NoError(t, err)
	_, err = keystore.Decrypt(unsupported, "pw")
	require.Error(t, err)
	assert.False(t, errors.Is(err, keystore.ErrInvalidPassword))

	_, err = keystore.Decrypt([]byte("{"), "pw")
	require.Error(t, err)
}

func TestEncryptValidatesParams(t *testing.T) {
	params := keystore.LightScryptParams()
	params.N = 1000
	_, err := keystore.Encrypt(testMnemonic, "pw", params)
	require.Error(t, err)

	params = keystore.LightScryptParams()
	params.DKLen = 16
	_, err = keystore.Encrypt(testMnemonic, "pw", params)
	require.Error(t, err)

	assert.Equal(t, 1<<18, keystore.DefaultScryptParams().N)
}

func TestServiceCreateOpen(t *testing.T) {
	ctx := context.Background()
	svc, err := keystore.NewService(keystore.NewMemoryStore(), keystore.LightScryptParams())
	require.NoError(t, err)

	record, err := svc.Create(ctx, "treasury", testMnemonic, "pw")
	require.NoError(t, err)
	assert.Equal(t, "treasury", record.Name)
	assert.NotEmpty(t, record.ID)
	assert.False(t, record.CreatedAt.IsZero())

	mnemonic, err := svc.Open(ctx, record.ID, "pw")
	require.NoError(t, err)
	assert.Equal(t, testMnemonic, mnemonic)

	_, err = svc.Open(ctx, record.ID, "nope")
	assert.True(t, errors.Is(err, keystore.ErrInvalidPassword))

	_, err = svc.Open(ctx, "missing", "pw")
	assert.True(t, errors.Is(err, keystore.ErrNotFound))

	exists, err := svc.Exists(ctx, record.ID)
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = svc.Exists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = svc.Create(ctx, " ", testMnemonic, "pw")
	require.Error(t, err)

	_, err = keystore.NewService(nil, keystore.LightScryptParams())
	require.Error(t, err)
}

func TestStores(t *testing.T) {
	fileStore, err := keystore.NewFileStore(t.TempDir())
	require.NoError(t, err)

	stores := map[string]keystore.Store{
		"memory": keystore.NewMemoryStore(),
		"file":   fileStore,
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			svc, err := keystore.NewService(store, keystore.LightScryptParams())
			require.NoError(t, err)

			first, err := svc.Create(ctx, "first", testMnemonic, "pw")
			require.NoError(t, err)
			second, err := svc.Create(ctx, "second", testMnemonic, "pw")
			require.NoError(t, err)

			got, err := store.Get(ctx, first.ID)
			require.NoError(t, err)
			assert.Equal(t, first.Blob, got.Blob)
			assert.True(t, first.CreatedAt.Equal(got.CreatedAt))

			require.Error(t, store.Save(ctx, got), "duplicate ids are rejected")

			records, err := svc.List(ctx)
			require.NoError(t, err)
			require.Len(t, records, 2)
			ids := []string{records[0].ID, records[1].ID}
			assert.ElementsMatch(t, []string{first.ID, second.ID}, ids)

			require.NoError(t, store.Delete(ctx, first.ID))
			_, err = store.Get(ctx, first.ID)
			assert.True(t, errors.Is(err, keystore.ErrNotFound))
			assert.True(t, errors.Is(store.Delete(ctx, first.ID), keystore.ErrNotFound))
		})
	}
}

func TestFileStoreRejectsPathIDs(t *testing.T) {
	store, err := keystore.NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "../../etc/passwd")
	assert.True(t, errors.Is(err, keystore.ErrNotFound))

	err = store.Save(context.Background(), &keystore.Record{ID: "../escape", Blob: []byte("{}")})
	require.Error(t, err)
}

func TestMemoryStoreConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	store := keystore.NewMemoryStore()
	svc, err := keystore.NewService(store, keystore.LightScryptParams())
	require.NoError(t, err)

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(ctx, "w", testMnemonic, "pw")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	records, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, n)
}
