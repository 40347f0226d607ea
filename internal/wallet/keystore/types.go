package keystore

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidPassword is returned when the MAC of a blob does not match the password.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrNotFound is returned by stores for unknown wallet ids.
	ErrNotFound = errors.New("wallet not found")
)

// Record is a stored wallet: the encrypted mnemonic plus metadata.
type Record struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Blob      []byte    `json:"blob"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store persists wallet records. Implementations must be safe for concurrent use.
type Store interface {
	Save(ctx context.Context, record *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context) ([]*Record, error)
	Delete(ctx context.Context, id string) error
}

// KeystoreJSON represents the Ethereum keystore v3 JSON structure
//
//nolint:revive // KeystoreJSON is the standard name for Ethereum keystore JSON structure
type KeystoreJSON struct {
	Version int    `json:"version"`
	ID      string `json:"id"`
	Crypto  struct {
		Ciphertext   string `json:"ciphertext"`
		CipherParams struct {
			IV string `json:"iv"`
		} `json:"cipherparams"`
		Cipher    string `json:"cipher"`
		KDF       string `json:"kdf"`
		KDFParams struct {
			DKLen int    `json:"dklen"`
			Salt  string `json:"salt"`
			N     int    `json:"n"`
			R     int    `json:"r"`
			P     int    `json:"p"`
		} `json:"kdfparams"`
		MAC string `json:"mac"`
	} `json:"crypto"`
}

// ScryptParams defines scrypt KDF parameters
type ScryptParams struct {
	DKLen int // Derived key length (32 bytes)
	N     int // CPU/memory cost parameter
	R     int // Block size parameter
	P     int // Parallelization parameter
}

const (
	keystoreVersion = 3
	cipherName      = "aes-128-ctr"
	kdfName         = "scrypt"
)

// DefaultScryptParams returns default scrypt parameters for Ethereum keystore v3
func DefaultScryptParams() ScryptParams {
	const (
		scryptDKLen = 32     // Derived key length (32 bytes)
		scryptN     = 262144 // CPU/memory cost parameter (2^18)
		scryptR     = 8      // Block size parameter
		scryptP     = 1      // Parallelization parameter
	)

	return ScryptParams{
		DKLen: scryptDKLen,
		N:     scryptN,
		R:     scryptR,
		P:     scryptP,
	}
}

// LightScryptParams trades strength for speed (2^12), for tests and throwaway wallets.
func LightScryptParams() ScryptParams {
	params := DefaultScryptParams()
	params.N = 1 << 12
	return params
}

func (p ScryptParams) validate() error {
	const minDKLen = 32
	if p.N <= 1 || p.N&(p.N-1) != 0 {
		return errors.Errorf("scrypt N must be a power of two > 1, got %d", p.N)
	}
	if p.R <= 0 || p.P <= 0 {
		return errors.Errorf("scrypt r and p must be positive, got r=%d p=%d", p.R, p.P)
	}
	if p.DKLen < minDKLen {
		return errors.Errorf("scrypt dklen must be at least %d, got %d", minDKLen, p.DKLen)
	}
	return nil
}
