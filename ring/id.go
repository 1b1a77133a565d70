// Package ring implements the Chord identifier space: hashing endpoints and
// keys onto an m-bit ring, and the directed-arc predicate every lookup in
// the node and job packages is built on top of.
package ring

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"math/big"

	"golang.org/x/xerrors"
)

// ID is a big-endian identifier on the ring, fixed at len(id) bytes
// (Width(id) bits) for the lifetime of a ring (every peer must agree on the same width).
type ID []byte

// Width returns m in bits for this identifier.
func (id ID) Width() int {
	return len(id) * 8
}

// Equal reports whether two identifiers denote the same ring position.
func (id ID) Equal(other ID) bool {
	return bytes.Equal(id, other)
}

// String renders the identifier as lowercase hex.
func (id ID) String() string {
	return hex.EncodeToString(id)
}

func (id ID) big() *big.Int {
	return new(big.Int).SetBytes(id)
}

func modulus(widthBits int) *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), uint(widthBits))
}

// HashID hashes arbitrary bytes onto the ring, truncating the SHA-1 digest
// to widthBytes. widthBytes must be between 1 and sha1.Size inclusive.
func HashID(key []byte, widthBytes int) (ID, error) {
	if widthBytes < 1 || widthBytes > sha1.Size {
		return nil, xerrors.Errorf("ring: invalid identifier width %d bytes", widthBytes)
	}
	sum := sha1.Sum(key)
	out := make(ID, widthBytes)
	copy(out, sum[:widthBytes])
	return out, nil
}

// AddPow2 returns (id + 2^i) mod 2^m, the start of the i-th finger interval.
func AddPow2(id ID, i int) ID {
	widthBits := id.Width()
	offset := new(big.Int).Lsh(big.NewInt(1), uint(i))
	sum := new(big.Int).Add(id.big(), offset)
	sum.Mod(sum, modulus(widthBits))
	return padTo(sum, len(id))
}

func padTo(v *big.Int, byteLen int) ID {
	raw := v.Bytes()
	if len(raw) >= byteLen {
		return ID(raw[len(raw)-byteLen:])
	}
	out := make(ID, byteLen)
	copy(out[byteLen-len(raw):], raw)
	return out
}

// Between reports whether x lies on the clockwise arc strictly after a and,
// depending on inclusiveB, up to (inclusive) or before (exclusive) b. x is
// never considered to lie on the arc when x equals a.
//
// When a equals b the arc degenerates to "everything but a" — this mirrors
// the single-node-ring bootstrap case, where a node's successor and
// predecessor both collapse to itself and every other identifier is still
// reachable from it.
func Between(x, a, b ID, inclusiveB bool) bool {
	if a.Equal(b) {
		return !x.Equal(a)
	}

	widthBits := a.Width()
	mod := modulus(widthBits)

	left := a.big()
	right := b.big()
	if inclusiveB {
		right = new(big.Int).Add(right, big.NewInt(1))
		right.Mod(right, mod)
	}
	xv := x.big()

	if left.Cmp(right) < 0 {
		return left.Cmp(xv) < 0 && xv.Cmp(right) < 0
	}
	// Wraps around the ring origin.
	return xv.Cmp(left) > 0 || xv.Cmp(right) < 0
}
