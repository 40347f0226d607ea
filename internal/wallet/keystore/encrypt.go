package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/scrypt"
)

// Encrypt seals mnemonic under password in keystore v3 format and returns the JSON blob.
//
//nolint:varnamelen // iv is a common abbreviation for initialization vector
func Encrypt(mnemonic string, password string, params ScryptParams) ([]byte, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	//nolint:mnd // 32 is the standard salt size for scrypt
	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return nil, errors.Wrap(err, "failed to generate salt")
	}

	//nolint:mnd // 16 is the standard IV size for AES-128-CTR
	iv := make([]byte, 16)
	if _, err := rand.Read(iv); err != nil {
		return nil, errors.Wrap(err, "failed to generate IV")
	}

	derivedKey, err := scrypt.Key([]byte(password), salt, params.N, params.R, params.P, params.DKLen)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive key")
	}
	defer wipe(derivedKey)

	plaintext := []byte(mnemonic)
	defer wipe(plaintext)

	// 前 16 字节用于 AES-128，后 16 字节用于 MAC
	ciphertext, err := aes128CTR(derivedKey[:16], iv, plaintext)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encrypt mnemonic")
	}

	keystoreJSON := &KeystoreJSON{
		Version: keystoreVersion,
		ID:      uuid.New().String(),
	}

	keystoreJSON.Crypto.Ciphertext = hex.EncodeToString(ciphertext)
	keystoreJSON.Crypto.CipherParams.IV = hex.EncodeToString(iv)
	keystoreJSON.Crypto.Cipher = cipherName
	keystoreJSON.Crypto.KDF = kdfName
	keystoreJSON.Crypto.KDFParams.DKLen = params.DKLen
	keystoreJSON.Crypto.KDFParams.Salt = hex.EncodeToString(salt)
	keystoreJSON.Crypto.KDFParams.N = params.N
	keystoreJSON.Crypto.KDFParams.R = params.R
	keystoreJSON.Crypto.KDFParams.P = params.P
	keystoreJSON.Crypto.MAC = hex.EncodeToString(calculateMAC(derivedKey[16:32], ciphertext))

	blob, err := json.Marshal(keystoreJSON)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal keystore JSON")
	}

	return blob, nil
}

// aes128CTR applies the AES-128-CTR keystream; encryption and decryption are the same operation.
//
//nolint:varnamelen // iv is a common abbreviation for initialization vector
func aes128CTR(key []byte, iv []byte, in []byte) ([]byte, error) {
	if len(iv) != aes.BlockSize {
		return nil, errors.Errorf("IV must be %d bytes, got %d", aes.BlockSize, len(iv))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create cipher")
	}

	out := make([]byte, len(in))
	cipher.NewCTR(block, iv).XORKeyStream(out, in)

	return out, nil
}

// calculateMAC is Keccak-256(derivedKey[16:32] || ciphertext), as in Ethereum keystore v3.
func calculateMAC(key []byte, ciphertext []byte) []byte {
	return crypto.Keccak256(key, ciphertext)
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
