// Package prss implements pseudo-random secret sharing (Cramer, Damgård and
// Ishai, TCC 2005).
//
// Every maximal unqualified subset of players (size n-t) shares a PRF key.
// A player's share of a fresh random value is the sum, over the subsets it
// belongs to, of the subset's PRF output times the degree-t polynomial that
// is one at zero and vanishes on the players outside the subset. Evaluating
// the PRFs on the same input (the runtime uses the encoded program counter)
// therefore yields a consistent Shamir sharing without any communication.
//
// Dealer keys extend the same idea: the keys for dealer d are shared by each
// subset together with d, so the dealer can compute every player's share and
// publish a single correction to turn the random sharing into a sharing of
// its chosen value.
package prss
