// Package chacha20poly1305 implements the AEAD_CHACHA20_POLY1305
// construction from RFC 8439, section 2.8: encrypt-then-MAC authenticated
// encryption with associated data, built from the chacha20 and poly1305
// packages.
package chacha20poly1305

import (
	"crypto/cipher"
	"encoding/binary"
	"errors"

	"github.com/carlosmakin/chacha/chacha20"
	"github.com/carlosmakin/chacha/poly1305"
)

// KeySize is the size in bytes of a ChaCha20-Poly1305 key.
const KeySize = chacha20.KeySize

// NonceSize is the size in bytes of a ChaCha20-Poly1305 nonce.
const NonceSize = chacha20.NonceSize

// Overhead is the size in bytes the AEAD adds to the plaintext: the
// 16-byte Poly1305 tag.
const Overhead = poly1305.TagSize

var (
	// ErrInvalidKey is returned when a key is not exactly KeySize bytes.
	ErrInvalidKey = chacha20.ErrInvalidKey
	// ErrInvalidNonce is returned when a nonce is not exactly NonceSize bytes.
	ErrInvalidNonce = chacha20.ErrInvalidNonce
	// ErrMessageTooLong is returned when a plaintext would require more
	// key stream than a 32-bit block counter can address.
	ErrMessageTooLong = chacha20.ErrMessageTooLong
	// ErrInvalidEnvelope is returned by Open when its input is shorter
	// than the 16-byte tag it must contain.
	ErrInvalidEnvelope = errors.New("chacha20poly1305: ciphertext shorter than tag")
	// ErrAuthFailed is returned by Open when the computed tag does not
	// match the tag carried in the envelope. No plaintext is returned
	// alongside this error.
	ErrAuthFailed = errors.New("chacha20poly1305: message authentication failed")
)

// AEAD is a ChaCha20-Poly1305 instance bound to a single 32-byte key. It
// implements crypto/cipher.AEAD.
type AEAD struct {
	key [KeySize]byte
}

var _ cipher.AEAD = (*AEAD)(nil)

// New returns a ChaCha20-Poly1305 AEAD keyed by key, which must be
// exactly KeySize bytes.
func New(key []byte) (*AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	a := &AEAD{}
	copy(a.key[:], key)
	return a, nil
}

// NonceSize implements cipher.AEAD.
func (a *AEAD) NonceSize() int { return NonceSize }

// Overhead implements cipher.AEAD.
func (a *AEAD) Overhead() int { return Overhead }

var zeroBlock [64]byte

// oneTimeKey derives the Poly1305 one-time key for (a.key, nonce): the
// first 32 bytes of the ChaCha20 key stream at block counter 0, per
// RFC 8439 section 2.6.
func (a *AEAD) oneTimeKey(nonce []byte) ([poly1305.KeySize]byte, error) {
	var key [poly1305.KeySize]byte
	c, err := chacha20.NewCipher(a.key[:], nonce, 0)
	if err != nil {
		return key, err
	}
	var block [64]byte
	c.XORKeyStream(block[:], zeroBlock[:])
	copy(key[:], block[:32])
	c.Zero()
	for i := range block {
		block[i] = 0
	}
	return key, nil
}

// pad16 writes the zero padding RFC 8439 requires after a MAC input
// segment, rounding its length up to the next multiple of 16, into mac.
func pad16(mac *poly1305.MAC, n int) {
	if r := n % 16; r != 0 {
		var zeros [16]byte
		mac.Write(zeros[:16-r])
	}
}

// authenticate builds the Poly1305 input for (aad, ciphertext) exactly as
// RFC 8439 section 2.8 specifies and returns the resulting tag:
//
//	aad || pad16(aad) || ciphertext || pad16(ciphertext) ||
//	len(aad) as u64-LE || len(ciphertext) as u64-LE
func authenticate(otk [poly1305.KeySize]byte, aad, ciphertext []byte) ([poly1305.TagSize]byte, error) {
	mac, err := poly1305.New(otk[:])
	if err != nil {
		return [poly1305.TagSize]byte{}, err
	}

	mac.Write(aad)
	pad16(mac, len(aad))
	mac.Write(ciphertext)
	pad16(mac, len(ciphertext))

	var lengths [16]byte
	binary.LittleEndian.PutUint64(lengths[0:8], uint64(len(aad)))
	binary.LittleEndian.PutUint64(lengths[8:16], uint64(len(ciphertext)))
	mac.Write(lengths[:])

	return mac.Sum(), nil
}

// Seal encrypts and authenticates plaintext, authenticates additionalData,
// and appends the result to dst, returning the updated slice. The nonce
// must be NonceSize bytes and must never be reused for this key. The
// output is len(plaintext)+Overhead bytes: ciphertext followed by the
// 16-byte tag. Seal panics if the nonce is the wrong size or the
// plaintext is too long to encrypt, matching the crypto/cipher.AEAD
// contract; callers that want a recoverable error should check sizes
// themselves or use SealWithError.
func (a *AEAD) Seal(dst, nonce, plaintext, additionalData []byte) []byte {
	out, err := a.SealWithError(dst, nonce, plaintext, additionalData)
	if err != nil {
		panic("chacha20poly1305: " + err.Error())
	}
	return out
}

// SealWithError is Seal without the panic: it returns ErrInvalidNonce or
// ErrMessageTooLong instead of panicking on bad input.
func (a *AEAD) SealWithError(dst, nonce, plaintext, additionalData []byte) ([]byte, error) {
	if len(nonce) != NonceSize {
		return nil, ErrInvalidNonce
	}

	otk, err := a.oneTimeKey(nonce)
	if err != nil {
		return nil, err
	}

	ciphertext, err := chacha20.Encrypt(a.key[:], nonce, 1, plaintext)
	if err != nil {
		return nil, err
	}

	tag, err := authenticate(otk, additionalData, ciphertext)
	for i := range otk {
		otk[i] = 0
	}
	if err != nil {
		return nil, err
	}

	ret, out := sliceForAppend(dst, len(plaintext)+Overhead)
	copy(out, ciphertext)
	copy(out[len(ciphertext):], tag[:])
	return ret, nil
}

// Open authenticates additionalData and the ciphertext carried in
// ciphertextAndTag, and if authentication succeeds, decrypts and appends
// the resulting plaintext to dst, returning the updated slice. The nonce
// must be the same NonceSize-byte value used to Seal. If authentication
// fails, Open returns ErrAuthFailed and no plaintext, dst is unmodified,
// and no information about the location of the mismatch is observable.
// Open panics if the nonce is the wrong size or the ciphertext is too long
// to decrypt, matching the crypto/cipher.AEAD contract; callers that want a
// recoverable error should check sizes themselves or use OpenWithError.
func (a *AEAD) Open(dst, nonce, ciphertextAndTag, additionalData []byte) ([]byte, error) {
	plaintext, err := a.OpenWithError(dst, nonce, ciphertextAndTag, additionalData)
	if err == ErrInvalidNonce || err == ErrMessageTooLong {
		panic("chacha20poly1305: " + err.Error())
	}
	return plaintext, err
}

// OpenWithError is Open without the panic: it returns ErrInvalidNonce or
// ErrMessageTooLong instead of panicking on bad input.
func (a *AEAD) OpenWithError(dst, nonce, ciphertextAndTag, additionalData []byte) ([]byte, error) {
	if len(nonce) != NonceSize {
		return nil, ErrInvalidNonce
	}
	if len(ciphertextAndTag) < Overhead {
		return nil, ErrInvalidEnvelope
	}
	if uint64(len(ciphertextAndTag)-Overhead) > chacha20.MaxMessageLen(1) {
		return nil, ErrMessageTooLong
	}

	ciphertext := ciphertextAndTag[:len(ciphertextAndTag)-Overhead]
	tag := ciphertextAndTag[len(ciphertextAndTag)-Overhead:]

	otk, err := a.oneTimeKey(nonce)
	if err != nil {
		return nil, err
	}

	expected, err := authenticate(otk, additionalData, ciphertext)
	for i := range otk {
		otk[i] = 0
	}
	if err != nil {
		return nil, err
	}

	if !poly1305.ConstantTimeCompare(tag, expected[:]) {
		return nil, ErrAuthFailed
	}

	plaintext, err := chacha20.Decrypt(a.key[:], nonce, 1, ciphertext)
	if err != nil {
		return nil, err
	}

	ret, out := sliceForAppend(dst, len(plaintext))
	copy(out, plaintext)
	return ret, nil
}

// sliceForAppend extends in by n bytes and returns the whole (head) and
// just-added (tail) slices, reusing in's backing array when it already
// has enough spare capacity. This mirrors the append-growth pattern
// crypto/cipher.AEAD implementations in the standard library use so that
// repeated Seal/Open calls against a preallocated buffer don't reallocate.
func sliceForAppend(in []byte, n int) (head, tail []byte) {
	if total := len(in) + n; cap(in) >= total {
		head = in[:total]
	} else {
		head = make([]byte, total)
		copy(head, in)
	}
	tail = head[len(in):]
	return
}
