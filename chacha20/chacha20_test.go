package chacha20

import (
	"bytes"
	cr "crypto/rand"
	"encoding/hex"
	mr "math/rand"
	"testing"

	yawningchacha20 "gitlab.com/yawning/chacha20.git"
	xchacha20 "golang.org/x/crypto/chacha20"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex fixture: %v", err)
	}
	return b
}

// RFC 8439 section 2.1.1.
func TestQuarterRound(t *testing.T) {
	a, b, c, d := quarterRound(0x11111111, 0x01020304, 0x9b8d6f43, 0x01234567)
	if a != 0xea2a92f4 || b != 0xcb1cf8ce || c != 0x4581472e || d != 0x5881c4bb {
		t.Fatalf("quarterRound() = %08x %08x %08x %08x", a, b, c, d)
	}
}

// RFC 8439 section 2.3.2.
func TestBlockVector(t *testing.T) {
	var key [32]byte
	for i := range key {
		key[i] = byte(i)
	}
	var nonce [12]byte
	nonce[3] = 0x09
	nonce[7] = 0x4a

	out := Block(&key, &nonce, 1)

	wantStart := mustHex(t, "10f1e7e4d13b5915500fdd1fa32071c4")
	wantEnd := mustHex(t, "e883d0cb4e3c50a2eb65e5d5e4030eca")

	if !bytes.Equal(out[:16], wantStart) {
		t.Errorf("block prefix = %x, want %x", out[:16], wantStart)
	}
	if !bytes.Equal(out[48:], wantEnd) {
		t.Errorf("block suffix = %x, want %x", out[48:], wantEnd)
	}
}

// RFC 8439 section 2.4.2.
func TestEncryptVector(t *testing.T) {
	var key [32]byte
	for i := range key {
		key[i] = byte(i)
	}
	nonce := mustHex(t, "000000000000004a00000000")
	plaintext := []byte("Ladies and Gentlemen of the class of '99: If I could offer you " +
		"only one tip for the future, sunscreen would be it.")

	ct, err := Encrypt(key[:], nonce, 1, plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	wantPrefix := mustHex(t, "6e2e359a2568f98041ba0728dd0d6981")
	if !bytes.Equal(ct[:16], wantPrefix) {
		t.Errorf("ciphertext prefix = %x, want %x", ct[:16], wantPrefix)
	}

	pt, err := Decrypt(key[:], nonce, 1, ct)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(pt, plaintext) {
		t.Errorf("round trip mismatch: got %q", pt)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	var key [32]byte
	var nonce [12]byte
	for i := range key {
		key[i] = byte(i * 7)
	}
	for i := range nonce {
		nonce[i] = byte(i * 3)
	}

	for _, n := range []int{0, 1, 15, 16, 17, 63, 64, 65, 1000, 8192} {
		pt := make([]byte, n)
		for i := range pt {
			pt[i] = byte(i)
		}
		ct, err := Encrypt(key[:], nonce[:], 1, pt)
		if err != nil {
			t.Fatalf("len %d: Encrypt: %v", n, err)
		}
		if len(ct) != n {
			t.Fatalf("len %d: ciphertext length = %d", n, len(ct))
		}
		pt2, err := Decrypt(key[:], nonce[:], 1, ct)
		if err != nil {
			t.Fatalf("len %d: Decrypt: %v", n, err)
		}
		if !bytes.Equal(pt, pt2) {
			t.Errorf("len %d: round trip mismatch", n)
		}
	}
}

// Chunking the same message across many XORKeyStream calls must produce
// the same key stream as a single call, regardless of how the input is
// sliced.
func TestXORKeyStreamChunking(t *testing.T) {
	var key [32]byte
	var nonce [12]byte
	for i := range key {
		key[i] = byte(i)
	}
	msg := make([]byte, 500)
	for i := range msg {
		msg[i] = byte(i)
	}

	whole := make([]byte, len(msg))
	c1, _ := NewCipher(key[:], nonce[:], 1)
	c1.XORKeyStream(whole, msg)

	chunked := make([]byte, len(msg))
	c2, _ := NewCipher(key[:], nonce[:], 1)
	off := 0
	for _, size := range []int{1, 3, 60, 64, 65, 200, 1000} {
		if off >= len(msg) {
			break
		}
		if off+size > len(msg) {
			size = len(msg) - off
		}
		c2.XORKeyStream(chunked[off:off+size], msg[off:off+size])
		off += size
	}

	if !bytes.Equal(whole, chunked) {
		t.Fatalf("chunked XORKeyStream diverged from single-call output")
	}
}

func TestInvalidSizes(t *testing.T) {
	var key [32]byte
	var nonce [12]byte

	if _, err := Encrypt(key[:31], nonce[:], 1, nil); err != ErrInvalidKey {
		t.Errorf("short key: err = %v, want ErrInvalidKey", err)
	}
	if _, err := Encrypt(key[:], nonce[:11], 1, nil); err != ErrInvalidNonce {
		t.Errorf("short nonce: err = %v, want ErrInvalidNonce", err)
	}
}

func TestMessageTooLong(t *testing.T) {
	var key [32]byte
	var nonce [12]byte
	// With counter at MaxBlocks, only one more block (64 bytes) fits.
	_, err := Encrypt(key[:], nonce[:], MaxBlocks, make([]byte, 65))
	if err != ErrMessageTooLong {
		t.Errorf("err = %v, want ErrMessageTooLong", err)
	}
	if _, err := Encrypt(key[:], nonce[:], MaxBlocks, make([]byte, 64)); err != nil {
		t.Errorf("exact fit at MaxBlocks should succeed, got %v", err)
	}
}

func TestCounterOverflowPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on counter overflow")
		}
	}()
	var key [32]byte
	var nonce [12]byte
	c, _ := NewCipher(key[:], nonce[:], MaxBlocks)
	buf := make([]byte, 128)
	c.XORKeyStream(buf, buf)
}

// Differential test: our key stream must agree byte-for-byte with
// gitlab.com/yawning/chacha20.git, an independent IETF-variant ChaCha20
// implementation, across randomized keys, nonces, starting counters, and
// message lengths.
func TestAgreesWithReferenceImplementation(t *testing.T) {
	for i := 0; i < 200; i++ {
		var key [KeySize]byte
		var nonce [NonceSize]byte
		cr.Read(key[:])
		cr.Read(nonce[:])
		counter := uint32(mr.Intn(1 << 16))

		msg := make([]byte, mr.Intn(4096))
		cr.Read(msg)

		ourCT, err := Encrypt(key[:], nonce[:], counter, msg)
		if err != nil {
			t.Fatalf("#%d: our Encrypt: %v", i, err)
		}

		theirs, err := yawningchacha20.New(key[:], nonce[:])
		if err != nil {
			t.Fatalf("#%d: reference New: %v", i, err)
		}
		if err := theirs.Seek(uint64(counter)); err != nil {
			t.Fatalf("#%d: reference Seek: %v", i, err)
		}
		theirCT := make([]byte, len(msg))
		theirs.XORKeyStream(theirCT, msg)

		if !bytes.Equal(ourCT, theirCT) {
			t.Fatalf("#%d: key stream mismatch:\nours:   %x\ntheirs: %x", i, ourCT, theirCT)
		}
	}
}

// Differential test: our key stream must also agree byte-for-byte with
// golang.org/x/crypto/chacha20, the reference implementation this package's
// sibling chacha20poly1305 package is itself cross-checked against. Testing
// against two independently-authored implementations (this one and the
// yawning one above) catches a bug that happens to agree with just one of
// them.
func TestAgreesWithXCryptoReferenceImplementation(t *testing.T) {
	for i := 0; i < 200; i++ {
		var key [KeySize]byte
		var nonce [NonceSize]byte
		cr.Read(key[:])
		cr.Read(nonce[:])
		counter := uint32(mr.Intn(1 << 16))

		msg := make([]byte, mr.Intn(4096))
		cr.Read(msg)

		ourCT, err := Encrypt(key[:], nonce[:], counter, msg)
		if err != nil {
			t.Fatalf("#%d: our Encrypt: %v", i, err)
		}

		theirs, err := xchacha20.NewUnauthenticatedCipher(key[:], nonce[:])
		if err != nil {
			t.Fatalf("#%d: reference NewUnauthenticatedCipher: %v", i, err)
		}
		theirs.SetCounter(counter)
		theirCT := make([]byte, len(msg))
		theirs.XORKeyStream(theirCT, msg)

		if !bytes.Equal(ourCT, theirCT) {
			t.Fatalf("#%d: key stream mismatch:\nours:   %x\ntheirs: %x", i, ourCT, theirCT)
		}
	}
}

// Differential test against the block function directly, bypassing the
// streaming Cipher on both sides.
func TestBlockAgreesWithReferenceImplementation(t *testing.T) {
	for i := 0; i < 50; i++ {
		var key [KeySize]byte
		var nonce [NonceSize]byte
		cr.Read(key[:])
		cr.Read(nonce[:])
		counter := uint32(mr.Intn(1 << 16))

		ourBlock := Block(&key, &nonce, counter)

		theirs, err := yawningchacha20.New(key[:], nonce[:])
		if err != nil {
			t.Fatalf("#%d: reference New: %v", i, err)
		}
		if err := theirs.Seek(uint64(counter)); err != nil {
			t.Fatalf("#%d: reference Seek: %v", i, err)
		}
		var theirBlock [64]byte
		theirs.KeyStream(theirBlock[:])

		if !bytes.Equal(ourBlock[:], theirBlock[:]) {
			t.Fatalf("#%d: block mismatch:\nours:   %x\ntheirs: %x", i, ourBlock, theirBlock)
		}
	}
}
