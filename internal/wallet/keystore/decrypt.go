package keystore

import (
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"

	"github.com/pkg/errors"
	"golang.org/x/crypto/scrypt"
)

// Decrypt opens a blob produced by Encrypt. A wrong password yields ErrInvalidPassword.
func Decrypt(blob []byte, password string) (string, error) {
	var keystoreJSON KeystoreJSON
	if err := json.Unmarshal(blob, &keystoreJSON); err != nil {
		return "", errors.Wrap(err, "failed to unmarshal keystore JSON")
	}

	return decryptMnemonic(&keystoreJSON, password)
}

func decryptMnemonic(keystoreJSON *KeystoreJSON, password string) (string, error) {
	if keystoreJSON.Version != keystoreVersion {
		return "", errors.Errorf("unsupported keystore version %d", keystoreJSON.Version)
	}
	if keystoreJSON.Crypto.Cipher != cipherName || keystoreJSON.Crypto.KDF != kdfName {
		return "", errors.Errorf("unsupported keystore cipher %q / kdf %q", keystoreJSON.Crypto.Cipher, keystoreJSON.Crypto.KDF)
	}

	kdf := keystoreJSON.Crypto.KDFParams
	params := ScryptParams{DKLen: kdf.DKLen, N: kdf.N, R: kdf.R, P: kdf.P}
	if err := params.validate(); err != nil {
		return "", err
	}

	salt, err := hex.DecodeString(kdf.Salt)
	if err != nil {
		return "", errors.Wrap(err, "failed to decode salt")
	}

	//nolint:varnamelen // iv is a common abbreviation for initialization vector
	iv, err := hex.DecodeString(keystoreJSON.Crypto.CipherParams.IV)
	if err != nil {
		return "", errors.Wrap(err, "failed to decode IV")
	}

	ciphertext, err := hex.DecodeString(keystoreJSON.Crypto.Ciphertext)
	if err != nil {
		return "", errors.Wrap(err, "failed to decode ciphertext")
	}

	expectedMAC, err := hex.DecodeString(keystoreJSON.Crypto.MAC)
	if err != nil {
		return "", errors.Wrap(err, "failed to decode MAC")
	}

	derivedKey, err := scrypt.Key([]byte(password), salt, params.N, params.R, params.P, params.DKLen)
	if err != nil {
		return "", errors.Wrap(err, "failed to derive key")
	}
	defer wipe(derivedKey)

	mac := calculateMAC(derivedKey[16:32], ciphertext)
	if subtle.ConstantTimeCompare(mac, expectedMAC) != 1 {
		return "", ErrInvalidPassword
	}

	plaintext, err := aes128CTR(derivedKey[:16], iv, ciphertext)
	if err != nil {
		return "", errors.Wrap(err, "failed to decrypt mnemonic")
	}
	defer wipe(plaintext)

	return string(plaintext), nil
}
