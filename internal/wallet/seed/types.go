package seed

// Manager provides BIP39 mnemonic functionality. Implementations are stateless:
// every returned buffer is owned by the caller, who must zero it after use.
type Manager interface {
	// Generate draws entropyBits of entropy and encodes it as a checksummed phrase
	Generate(entropyBits int) (string, error)

	// Validate recomputes the checksum from the word indices
	Validate(phrase string) bool

	// ToSeed stretches the phrase into the 64-byte BIP39 seed
	ToSeed(phrase string, passphrase string) (*Seed, error)
}

// Seed is a BIP39 seed. Call Zero as soon as derivation is done.
type Seed struct {
	b []byte
}

// FromBytes wraps raw seed bytes (copied).
func FromBytes(b []byte) *Seed {
	c := make([]byte, len(b))
	copy(c, b)
	return &Seed{b: c}
}

// Bytes returns the underlying buffer; it is zeroed by Zero.
func (s *Seed) Bytes() []byte {
	if s == nil {
		return nil
	}
	return s.b
}

// Zero clears the seed from memory.
func (s *Seed) Zero() {
	if s == nil {
		return
	}
	for i := range s.b {
		s.b[i] = 0
	}
	s.b = nil
}
