package seed

import (
	"crypto/sha512"
	"strings"

	"github.com/tyler-smith/go-bip39"
	"github/chapool/go-wallet-engine/internal/wallet/werrors"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/text/unicode/norm"
)

const (
	pbkdf2Iterations = 2048 // BIP39 standard iterations
	pbkdf2KeyLength  = 64   // BIP39 standard key length (512 bits)
	saltPrefix       = "mnemonic"
)

// manager implements Manager on top of the BIP39 English wordlist
type manager struct{}

// NewManager creates a new Manager
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewManager() Manager {
	return &manager{}
}

// Generate creates a new mnemonic for entropyBits in {128,160,192,224,256}
func (m *manager) Generate(entropyBits int) (string, error) {
	if !ValidEntropyBits(entropyBits) {
		return "", werrors.Newf(werrors.KindInvalidMnemonic, "invalid entropy size: %d bits", entropyBits)
	}

	entropy, err := bip39.NewEntropy(entropyBits)
	if err != nil {
		return "", werrors.Wrap(werrors.KindInvalidMnemonic, err, "failed to generate entropy")
	}
	defer zero(entropy)

	phrase, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", werrors.Wrap(werrors.KindInvalidMnemonic, err, "failed to encode mnemonic")
	}

	return phrase, nil
}

// Validate checks word membership and the checksum
func (m *manager) Validate(phrase string) bool {
	return bip39.IsMnemonicValid(Normalize(phrase))
}

// ToSeed converts mnemonic to seed using PBKDF2
// BIP39: seed = PBKDF2(NFKD(mnemonic), NFKD("mnemonic" + passphrase), 2048, 64, SHA512)
func (m *manager) ToSeed(phrase string, passphrase string) (*Seed, error) {
	normalized := Normalize(phrase)
	if !bip39.IsMnemonicValid(normalized) {
		return nil, werrors.New(werrors.KindInvalidMnemonic, "mnemonic checksum or wordlist mismatch")
	}

	password := []byte(normalized)
	salt := []byte(norm.NFKD.String(saltPrefix + passphrase))
	defer zero(password)
	defer zero(salt)

	return &Seed{b: pbkdf2.Key(password, salt, pbkdf2Iterations, pbkdf2KeyLength, sha512.New)}, nil
}

// Normalize applies NFKD and collapses runs of whitespace to single spaces.
func Normalize(phrase string) string {
	return strings.Join(strings.Fields(norm.NFKD.String(phrase)), " ")
}

// ValidEntropyBits reports whether bits is an allowed BIP39 entropy size.
func ValidEntropyBits(bits int) bool {
	switch bits {
	case 128, 160, 192, 224, 256:
		return true
	default:
		return false
	}
}

// WordCount returns the phrase length produced for the entropy size, 0 if invalid.
func WordCount(entropyBits int) int {
	if !ValidEntropyBits(entropyBits) {
		return 0
	}
	return (entropyBits + entropyBits/32) / 11
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
