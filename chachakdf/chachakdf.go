// Package chachakdf derives ChaCha20-Poly1305 keys from long-term secrets
// using HKDF over BLAKE2b, the same derivation this module's lineage uses
// ahead of its own AEAD calls, and computes the keyed BLAKE2b key
// fingerprints the nonce-reuse sentinel tracks. It is
// a caller convenience, not part of the RFC 8439 algorithmic core: the
// core itself always takes a raw 32-byte key.
package chachakdf

import (
	"crypto/sha256"
	"hash"
	"io"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/hkdf"
)

// newBLAKE2b512 adapts blake2b.New512's (hash.Hash, error) signature to the
// argument-less hash.Hash constructor hkdf.New requires. An unkeyed
// BLAKE2b-512 never returns an error, so the panic below is unreachable.
func newBLAKE2b512() hash.Hash {
	h, err := blake2b.New512(nil)
	if err != nil {
		panic(err)
	}
	return h
}

// KeySize is the size in bytes of a derived ChaCha20-Poly1305 key.
const KeySize = 32

// DeriveKey expands secret into a fresh KeySize-byte key using
// HKDF-BLAKE2b512, with info as the HKDF context string distinguishing this
// derivation from any other use of the same secret. info should uniquely
// identify the purpose of the derived key (e.g. a peer identifier or a
// protocol label); it is not secret.
//
// Two calls with the same (secret, info) always derive the same key: callers
// that need a fresh key per message should vary info per message, e.g. by
// including a message counter.
func DeriveKey(secret, info []byte) ([KeySize]byte, error) {
	var key [KeySize]byte
	h := hkdf.New(newBLAKE2b512, secret, nil, info)
	if _, err := io.ReadFull(h, key[:]); err != nil {
		return key, err
	}
	return key, nil
}

// Fingerprint returns a keyed BLAKE2b-256 digest of key, suitable for use
// as a lookup tag in state that must never retain raw key material (the
// nonce-reuse sentinel's tracking table). The same key always yields the
// same fingerprint; a fingerprint alone cannot be used to recover key.
func Fingerprint(key []byte) ([32]byte, error) {
	mac, err := blake2b.New256(fingerprintPersonalization())
	if err != nil {
		return [32]byte{}, err
	}
	mac.Write(key)
	var out [32]byte
	copy(out[:], mac.Sum(nil))
	return out, nil
}

// fingerprintPersonalization derives a fixed, non-secret 64-byte BLAKE2b key
// from a domain-separation label, so Fingerprint's digests cannot collide
// with a BLAKE2b hash computed for an unrelated purpose over the same bytes.
func fingerprintPersonalization() []byte {
	sum := sha256.Sum256([]byte("chacha20poly1305-nonce-sentinel-fingerprint"))
	return sum[:]
}
