// Package poly1305 implements the Poly1305 one-time message
// authenticator as specified in RFC 8439, section 2.5.
//
// Poly1305 takes a fresh 32-byte key for every message, accumulates the
// message in 16-byte blocks into a field element modulo the prime
// 2^130 - 5, and finalizes by adding a secret 128-bit value. A key used
// to authenticate more than one message leaks enough information to
// forge subsequent tags; callers (the AEAD layer) are responsible for
// deriving a fresh key per message.
package poly1305

import (
	"encoding/binary"
	"errors"
)

// KeySize is the size in bytes of a Poly1305 key.
const KeySize = 32

// TagSize is the size in bytes of a Poly1305 tag.
const TagSize = 16

// ErrInvalidKey is returned when a key is not exactly KeySize bytes.
var ErrInvalidKey = errors.New("poly1305: invalid key size, must be 32 bytes")

// mask26 isolates the low 26 bits of a limb.
const mask26 = 0x3ffffff

// MAC is a Poly1305 accumulator. Each instance authenticates exactly one
// message: construct with New, feed the message through one or more
// calls to Write, then call Sum once to obtain the tag.
//
// The accumulator uses five 26-bit limbs (radix 2^26) rather than the
// four-32-bit-plus-overflow-limb split RFC 8439's own pseudocode walks
// through: h0..h4 hold 130 bits of state in chunks small enough that
// h_i*r_j always fits a uint64 product with headroom to spare, and the
// fold-the-top-bits-back-in-times-5 reduction (2^130 = 5 mod p) happens
// a limb at a time through plain carry propagation instead of a single
// wide shift-and-mask step.
type MAC struct {
	h0, h1, h2, h3, h4     uint32
	r0, r1, r2, r3, r4     uint32
	s1, s2, s3, s4         uint32 // 5*r1..5*r4, precomputed once per key
	pad0, pad1, pad2, pad3 uint32

	// buf holds up to 15 bytes of message not yet absorbed because a
	// full 16-byte block has not arrived. Absorption of the final,
	// possibly short, block happens in Sum.
	buf    [TagSize]byte
	buflen int

	done bool
}

// New returns a Poly1305 MAC keyed by key, which must be exactly
// KeySize bytes: the first 16 bytes become the clamped multiplier r
// (unpacked into five 26-bit windows), the last 16 bytes the additive
// pad applied at finalization.
func New(key []byte) (*MAC, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}

	m := &MAC{
		r0: binary.LittleEndian.Uint32(key[0:4]) & 0x3ffffff,
		r1: (binary.LittleEndian.Uint32(key[3:7]) >> 2) & 0x3ffff03,
		r2: (binary.LittleEndian.Uint32(key[6:10]) >> 4) & 0x3ffc0ff,
		r3: (binary.LittleEndian.Uint32(key[9:13]) >> 6) & 0x3f03fff,
		r4: (binary.LittleEndian.Uint32(key[12:16]) >> 8) & 0x00fffff,

		pad0: binary.LittleEndian.Uint32(key[16:20]),
		pad1: binary.LittleEndian.Uint32(key[20:24]),
		pad2: binary.LittleEndian.Uint32(key[24:28]),
		pad3: binary.LittleEndian.Uint32(key[28:32]),
	}
	m.s1 = m.r1 * 5
	m.s2 = m.r2 * 5
	m.s3 = m.r3 * 5
	m.s4 = m.r4 * 5
	return m, nil
}

// Write absorbs more of the message. It never fails; err is always nil.
// Write may be called any number of times with chunks of any size before
// a single terminal call to Sum.
func (m *MAC) Write(p []byte) (n int, err error) {
	if m.done {
		panic("poly1305: Write after Sum")
	}
	n = len(p)

	if m.buflen > 0 {
		take := TagSize - m.buflen
		if take > len(p) {
			take = len(p)
		}
		copy(m.buf[m.buflen:], p[:take])
		m.buflen += take
		p = p[take:]
		if m.buflen < TagSize {
			return n, nil
		}
		m.absorb(m.buf[:], true)
		m.buflen = 0
	}

	full := len(p) - len(p)%TagSize
	if full > 0 {
		m.absorb(p[:full], true)
		p = p[full:]
	}

	if len(p) > 0 {
		copy(m.buf[:], p)
		m.buflen = len(p)
	}

	return n, nil
}

// absorb folds 16-byte blocks of in into the accumulator, one block at a
// time: unpack the block into five 26-bit pieces and add them to h, then
// multiply h by r and reduce the 260-bit product back down to five
// 26-bit limbs. withBit selects whether each block carries the implicit
// high bit that a full-size block always contributes to the top limb;
// Sum calls this with false for a final short block it has already
// padded into the 17-byte form itself.
func (m *MAC) absorb(in []byte, withBit bool) {
	h0, h1, h2, h3, h4 := m.h0, m.h1, m.h2, m.h3, m.h4
	r0, r1, r2, r3, r4 := m.r0, m.r1, m.r2, m.r3, m.r4
	s1, s2, s3, s4 := m.s1, m.s2, m.s3, m.s4

	var hibit uint32
	if withBit {
		hibit = 1 << 24 // the block's 17th byte, 0x01, lands 24 bits into h4
	}

	for len(in) >= TagSize {
		h0 += binary.LittleEndian.Uint32(in[0:4]) & mask26
		h1 += (binary.LittleEndian.Uint32(in[3:7]) >> 2) & mask26
		h2 += (binary.LittleEndian.Uint32(in[6:10]) >> 4) & mask26
		h3 += (binary.LittleEndian.Uint32(in[9:13]) >> 6) & mask26
		h4 += (binary.LittleEndian.Uint32(in[12:16]) >> 8) | hibit
		in = in[TagSize:]

		// h *= r, as five limb dot products; each term multiplies an h
		// limb of about 27 bits by an r or 5*r limb below 2^29, so it
		// stays under about 2^56, and summing five of them still leaves
		// headroom in a uint64 before any reduction is needed.
		d0 := uint64(h0)*uint64(r0) + uint64(h1)*uint64(s4) + uint64(h2)*uint64(s3) + uint64(h3)*uint64(s2) + uint64(h4)*uint64(s1)
		d1 := uint64(h0)*uint64(r1) + uint64(h1)*uint64(r0) + uint64(h2)*uint64(s4) + uint64(h3)*uint64(s3) + uint64(h4)*uint64(s2)
		d2 := uint64(h0)*uint64(r2) + uint64(h1)*uint64(r1) + uint64(h2)*uint64(r0) + uint64(h3)*uint64(s4) + uint64(h4)*uint64(s3)
		d3 := uint64(h0)*uint64(r3) + uint64(h1)*uint64(r2) + uint64(h2)*uint64(r1) + uint64(h3)*uint64(r0) + uint64(h4)*uint64(s4)
		d4 := uint64(h0)*uint64(r4) + uint64(h1)*uint64(r3) + uint64(h2)*uint64(r2) + uint64(h3)*uint64(r1) + uint64(h4)*uint64(r0)

		// Partial carry chain, limb by limb; the carry out of d4 folds
		// back into h0 multiplied by 5, since 2^130 = 5 (mod p).
		c := uint32(d0 >> 26)
		h0 = uint32(d0) & mask26

		d1 += uint64(c)
		c = uint32(d1 >> 26)
		h1 = uint32(d1) & mask26

		d2 += uint64(c)
		c = uint32(d2 >> 26)
		h2 = uint32(d2) & mask26

		d3 += uint64(c)
		c = uint32(d3 >> 26)
		h3 = uint32(d3) & mask26

		d4 += uint64(c)
		c = uint32(d4 >> 26)
		h4 = uint32(d4) & mask26

		h0 += c * 5
		c = h0 >> 26
		h0 &= mask26
		h1 += c
	}

	m.h0, m.h1, m.h2, m.h3, m.h4 = h0, h1, h2, h3, h4
}

// Sum finalizes the MAC and returns the 16-byte tag. It must be called
// exactly once, after all message bytes have been passed to Write. The
// MAC must not be reused for another message afterward: the accumulator
// and buffered bytes are zeroed before returning.
func (m *MAC) Sum() [TagSize]byte {
	if m.done {
		panic("poly1305: Sum called twice")
	}
	m.done = true

	if m.buflen > 0 {
		// The final short block is m[0:buflen] ‖ 0x01 ‖ zeros, per
		// RFC 8439 2.5.1; absorb with withBit=false since this block
		// contributes no extra high bit beyond the 0x01 marker already
		// folded into the padded bytes.
		var last [TagSize]byte
		copy(last[:], m.buf[:m.buflen])
		last[m.buflen] = 1
		m.absorb(last[:], false)
	}

	h0, h1, h2, h3, h4 := m.h0, m.h1, m.h2, m.h3, m.h4

	// absorb's inner loop only partially carries h1 on exit (it may
	// briefly exceed 26 bits); finish the carry chain here before
	// comparing against p.
	c := h1 >> 26
	h1 &= mask26
	h2 += c
	c = h2 >> 26
	h2 &= mask26
	h3 += c
	c = h3 >> 26
	h3 &= mask26
	h4 += c
	c = h4 >> 26
	h4 &= mask26
	h0 += c * 5
	c = h0 >> 26
	h0 &= mask26
	h1 += c

	// g = h - p, computed as h + (-p) with -p = (5, 0, 0, 0, -2^26) in
	// this radix. If g doesn't underflow (g4's top bit stays clear),
	// h >= p and g is the canonical reduced value; otherwise h already
	// was canonical.
	g0 := h0 + 5
	c = g0 >> 26
	g0 &= mask26
	g1 := h1 + c
	c = g1 >> 26
	g1 &= mask26
	g2 := h2 + c
	c = g2 >> 26
	g2 &= mask26
	g3 := h3 + c
	c = g3 >> 26
	g3 &= mask26
	g4 := h4 + c - (1 << 26)

	mask := (g4 >> 31) - 1 // all-ones if h >= p, all-zeros otherwise
	g0 &= mask
	g1 &= mask
	g2 &= mask
	g3 &= mask
	g4 &= mask
	notMask := ^mask
	h0 = (h0 & notMask) | g0
	h1 = (h1 & notMask) | g1
	h2 = (h2 & notMask) | g2
	h3 = (h3 & notMask) | g3
	h4 = (h4 & notMask) | g4

	// Repack the five 26-bit limbs into four 32-bit words.
	w0 := h0 | h1<<26
	w1 := h1>>6 | h2<<20
	w2 := h2>>12 | h3<<14
	w3 := h3>>18 | h4<<8

	// Add the pad mod 2^128 (no further reduction mod p, per RFC 8439
	// 2.5.1).
	f := uint64(w0) + uint64(m.pad0)
	w0 = uint32(f)
	f = uint64(w1) + uint64(m.pad1) + f>>32
	w1 = uint32(f)
	f = uint64(w2) + uint64(m.pad2) + f>>32
	w2 = uint32(f)
	f = uint64(w3) + uint64(m.pad3) + f>>32
	w3 = uint32(f)

	var tag [TagSize]byte
	binary.LittleEndian.PutUint32(tag[0:4], w0)
	binary.LittleEndian.PutUint32(tag[4:8], w1)
	binary.LittleEndian.PutUint32(tag[8:12], w2)
	binary.LittleEndian.PutUint32(tag[12:16], w3)

	m.zero()
	return tag
}

func (m *MAC) zero() {
	m.h0, m.h1, m.h2, m.h3, m.h4 = 0, 0, 0, 0, 0
	m.r0, m.r1, m.r2, m.r3, m.r4 = 0, 0, 0, 0, 0
	m.s1, m.s2, m.s3, m.s4 = 0, 0, 0, 0
	m.pad0, m.pad1, m.pad2, m.pad3 = 0, 0, 0, 0
	for i := range m.buf {
		m.buf[i] = 0
	}
	m.buflen = 0
}

// Sum computes the Poly1305 tag of msg under key in one shot.
func Sum(key, msg []byte) ([TagSize]byte, error) {
	m, err := New(key)
	if err != nil {
		return [TagSize]byte{}, err
	}
	m.Write(msg)
	return m.Sum(), nil
}

// Verify reports whether tag is the correct Poly1305 tag of msg under
// key, using a constant-time comparison so that no information about
// where a mismatch occurs is observable.
func Verify(tag []byte, key, msg []byte) (bool, error) {
	want, err := Sum(key, msg)
	if err != nil {
		return false, err
	}
	return ConstantTimeCompare(tag, want[:]), nil
}

// ConstantTimeCompare reports whether a and b have equal length and
// equal content. Its running time depends only on len(a) and len(b),
// never on where the first differing byte falls: every byte is XORed
// into a running accumulator and the length check happens once at
// entry, not per iteration.
func ConstantTimeCompare(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := 0; i < len(a); i++ {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
