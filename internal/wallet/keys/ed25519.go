package keys

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"

	"github/chapool/go-wallet-engine/internal/wallet/werrors"
)

var ed25519SeedKey = []byte("ed25519 seed")

// slip10Node is a node of the SLIP-0010 ed25519 tree. Only hardened children exist.
type slip10Node struct {
	key       []byte
	chainCode []byte
}

func slip10Master(seed []byte) *slip10Node {
	mac := hmac.New(sha512.New, ed25519SeedKey)
	mac.Write(seed)
	sum := mac.Sum(nil)

	return &slip10Node{key: sum[:32], chainCode: sum[32:]}
}

func (n *slip10Node) child(index uint32, hardened bool) (*slip10Node, error) {
	if !hardened {
		return nil, werrors.Newf(werrors.KindUnsupportedDerivation,
			"ed25519 supports hardened derivation only, got non-hardened index %d", index)
	}

	// I = HMAC-SHA512(c_par, 0x00 || k_par || ser32(i))
	data := make([]byte, 0, 1+len(n.key)+4)
	data = append(data, 0x00)
	data = append(data, n.key...)
	data = binary.BigEndian.AppendUint32(data, index+HardenedOffset)
	defer zero(data)

	mac := hmac.New(sha512.New, n.chainCode)
	mac.Write(data)
	sum := mac.Sum(nil)

	return &slip10Node{key: sum[:32], chainCode: sum[32:]}, nil
}

func (n *slip10Node) zero() {
	zero(n.key)
	zero(n.chainCode)
}
