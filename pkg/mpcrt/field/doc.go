// Package field defines the finite-field element contract consumed by the
// runtime and provides three implementations:
//
//   - Prime fields Z_p over math/big (NewPrime, MustPrime).
//   - GF(2^8) with lookup-table arithmetic (GF256).
//   - The scalar field of secp256k1, backed by btcec's ModNScalar (Secp256k1N).
//
// Elements are immutable values. Every arithmetic method returns a fresh
// element and never modifies its receiver or argument. Mixing elements from
// different fields is a programming error and panics, as does division by
// zero.
//
// # Serialization
//
// Bytes returns a fixed-width big-endian encoding whose length is
// Field.ByteLen(). FromBytes rejects inputs of the wrong width or values
// outside the field, which lets the network layer treat malformed shares as
// protocol violations instead of silently reducing them.
package field
