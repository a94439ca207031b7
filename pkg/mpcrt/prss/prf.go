package prss

import (
	"crypto/sha256"
	"encoding/binary"
	"io"
	"math/big"

	"golang.org/x/crypto/hkdf"
)

// PRF maps byte strings to integers in [0, max). It is HKDF-SHA256 keyed by
// the subset key, with the bound folded into the salt so the same key yields
// independent functions for different bounds. Outputs are drawn by rejection
// sampling over the minimal number of bits.
type PRF struct {
	prk    []byte
	max    *big.Int
	nbytes int
	mask   byte
}

// NewPRF returns a PRF with outputs in [0, max). max must be positive.
func NewPRF(key []byte, max *big.Int) *PRF {
	bitLen := new(big.Int).Sub(max, big.NewInt(1)).BitLen()
	nbytes := (bitLen + 7) / 8
	mask := byte(0xff)
	if r := bitLen % 8; r != 0 {
		mask = byte(1<<uint(r)) - 1
	}
	return &PRF{
		prk:    hkdf.Extract(sha256.New, key, max.Bytes()),
		max:    new(big.Int).Set(max),
		nbytes: nbytes,
		mask:   mask,
	}
}

// Max returns the exclusive upper bound.
func (p *PRF) Max() *big.Int { return new(big.Int).Set(p.max) }

// Eval evaluates the PRF on input.
func (p *PRF) Eval(input []byte) *big.Int {
	if p.nbytes == 0 {
		return new(big.Int)
	}
	buf := make([]byte, p.nbytes)
	info := make([]byte, len(input)+4)
	copy(info, input)
	for ctr := uint32(0); ; ctr++ {
		binary.BigEndian.PutUint32(info[len(input):], ctr)
		if _, err := io.ReadFull(hkdf.Expand(sha256.New, p.prk, info), buf); err != nil {
			// Only reachable past 255 hash blocks, far beyond any field size.
			panic("prss: hkdf output exhausted")
		}
		buf[0] &= p.mask
		v := new(big.Int).SetBytes(buf)
		if v.Cmp(p.max) < 0 {
			return v
		}
	}
}

// Keys maps subsets to their shared PRF keys.
type Keys map[Subset][]byte

// PRFs keys one PRF per subset with the given output bound.
func (k Keys) PRFs(max *big.Int) map[Subset]*PRF {
	out := make(map[Subset]*PRF, len(k))
	for s, key := range k {
		out[s] = NewPRF(key, max)
	}
	return out
}
