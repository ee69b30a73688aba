// Package sentinel implements an optional, in-memory nonce-reuse aid for
// callers of chacha20poly1305. It is not part of the RFC 8439 AEAD
// construction and does not change Seal or Open's semantics in any way;
// ChaCha20-Poly1305 itself provides no nonce-misuse resistance, and this
// package does not pretend otherwise. It exists only to give a caller that
// wants one an early, best-effort warning before a nonce gets reused.
package sentinel

import (
	"encoding/hex"
	"errors"
	"sync"

	"github.com/carlosmakin/chacha/chachaerr"
	"github.com/carlosmakin/chacha/chachakdf"
	"github.com/carlosmakin/chacha/chachalog"
)

// ErrNonceReused is the sentinel error Observe wraps (via chachaerr) when
// the (key, nonce) pair passed to it has already been observed by this
// Sentinel instance. errors.Is(err, ErrNonceReused) still holds against the
// wrapped error Observe actually returns.
var ErrNonceReused = errors.New("sentinel: nonce reused for this key")

// Sentinel tracks (key-fingerprint, nonce) pairs already passed to Observe.
// A Sentinel is safe for concurrent use. It keeps no state beyond the
// current process's memory: there is no on-disk journal, and a Sentinel
// created fresh at process start has no knowledge of nonces used before it
// existed.
type Sentinel struct {
	mu   sync.Mutex
	seen map[string]struct{}
	log  chachalog.Logger
}

// New returns an empty Sentinel. A nil log is replaced with a silent no-op
// logger.
func New(log chachalog.Logger) *Sentinel {
	return &Sentinel{
		seen: make(map[string]struct{}),
		log:  chachalog.OrNop(log),
	}
}

// Observe records that nonce is about to be used to Seal under key, and
// reports ErrNonceReused if this Sentinel has already observed the same
// pair. key is never stored directly; Observe only retains a keyed BLAKE2b
// fingerprint of it (chachakdf.Fingerprint).
func (s *Sentinel) Observe(key, nonce []byte) error {
	fp, err := chachakdf.Fingerprint(key)
	if err != nil {
		return err
	}

	entry := hex.EncodeToString(fp[:]) + ":" + hex.EncodeToString(nonce)

	s.mu.Lock()
	_, reused := s.seen[entry]
	if !reused {
		s.seen[entry] = struct{}{}
	}
	s.mu.Unlock()

	if reused {
		s.log.Error("nonce reused", map[string]any{
			"key_fingerprint": hex.EncodeToString(fp[:]),
		})
		return chachaerr.Wrapf(ErrNonceReused, chachaerr.CodeNonceReused,
			"nonce reused for key fingerprint %s", hex.EncodeToString(fp[:]))
	}
	return nil
}

// Reset discards every pair this Sentinel has observed so far.
func (s *Sentinel) Reset() {
	s.mu.Lock()
	s.seen = make(map[string]struct{})
	s.mu.Unlock()
}
