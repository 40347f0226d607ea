package keys

import (
	"strconv"
	"strings"

	"github/chapool/go-wallet-engine/internal/wallet/werrors"
)

// HardenedOffset is added to an index to mark it hardened (BIP32 i ≥ 2^31).
const HardenedOffset uint32 = 0x80000000

// Segment is one level of a derivation path.
type Segment struct {
	Index    uint32
	Hardened bool
}

// ChildIndex returns the BIP32 child number including the hardened offset.
func (s Segment) ChildIndex() uint32 {
	if s.Hardened {
		return s.Index + HardenedOffset
	}
	return s.Index
}

func (s Segment) String() string {
	if s.Hardened {
		return strconv.FormatUint(uint64(s.Index), 10) + "'"
	}
	return strconv.FormatUint(uint64(s.Index), 10)
}

// Path is an immutable ordered list of segments. An empty path addresses the master key.
type Path []Segment

// ParsePath parses a BIP32 path string.
// Example: "m/44'/60'/0'/0/0" or "44h/501h/0h/0h"
func ParsePath(s string) (Path, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return nil, werrors.New(werrors.KindDerivationPath, "empty derivation path")
	}

	switch {
	case raw == "m" || raw == "M":
		return Path{}, nil
	case strings.HasPrefix(raw, "m/") || strings.HasPrefix(raw, "M/"):
		raw = raw[2:]
	}

	parts := strings.Split(raw, "/")
	path := make(Path, 0, len(parts))
	for i, part := range parts {
		seg, err := parseSegment(part)
		if err != nil {
			return nil, werrors.Wrapf(werrors.KindDerivationPath, err, "invalid path segment %d %q", i, part)
		}
		path = append(path, seg)
	}

	return path, nil
}

// MustParsePath is ParsePath for constants; it panics on malformed input.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

func parseSegment(part string) (Segment, error) {
	if part == "" {
		return Segment{}, werrors.New(werrors.KindDerivationPath, "empty segment")
	}

	hardened := false
	switch part[len(part)-1] {
	case '\'', 'h', 'H':
		hardened = true
		part = part[:len(part)-1]
	}

	if part == "" {
		return Segment{}, werrors.New(werrors.KindDerivationPath, "missing index")
	}
	for _, c := range part {
		if c < '0' || c > '9' {
			return Segment{}, werrors.New(werrors.KindDerivationPath, "index must be decimal digits")
		}
	}

	idx, err := strconv.ParseUint(part, 10, 32)
	if err != nil || uint32(idx) >= HardenedOffset {
		return Segment{}, werrors.New(werrors.KindDerivationPath, "index out of range")
	}

	return Segment{Index: uint32(idx), Hardened: hardened}, nil
}

// String renders the path with the m/ prefix and ' hardened markers.
func (p Path) String() string {
	var b strings.Builder
	b.WriteString("m")
	for _, seg := range p {
		b.WriteByte('/')
		b.WriteString(seg.String())
	}
	return b.String()
}

// Child returns a copy of p extended by one segment.
func (p Path) Child(index uint32, hardened bool) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, Segment{Index: index, Hardened: hardened})
}

// AllHardened reports whether every segment is hardened.
func (p Path) AllHardened() bool {
	for _, seg := range p {
		if !seg.Hardened {
			return false
		}
	}
	return true
}
