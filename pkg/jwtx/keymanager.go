package jwtx

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/aussiebroadwan/brokerx/pkg/cryptox"
)

// KeyManager owns the in-memory signing keys for a process. Keys are never
// persisted, so a restart invalidates every JWT session token.
type KeyManager struct {
	Verifier Verifier
	KeySet   *KeySet

	mu      sync.RWMutex
	signers []Signer
}

// KeyManagerOptions configures NewEphemeralKeyManager.
type KeyManagerOptions struct {
	Issuer   string
	Audience []string
	Leeway   time.Duration
	Now      func() time.Time

	// NumKeys defaults to 1 and is capped at 10.
	NumKeys int
}

// NewEphemeralKeyManager generates NumKeys Ed25519 keys and a verifier
// that accepts any of them.
func NewEphemeralKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	if opts.Issuer == "" {
		return nil, fmt.Errorf("jwtx: Issuer is required")
	}

	n := min(max(opts.NumKeys, 1), 10)

	keyset := NewKeySet()
	km := &KeyManager{KeySet: keyset}
	for i := range n {
		kid, err := cryptox.GenerateToken(cryptox.TokenSize128)
		if err != nil {
			return nil, fmt.Errorf("jwtx: key id: %w", err)
		}
		pemKey, err := cryptox.GenerateEd25519Key()
		if err != nil {
			return nil, fmt.Errorf("jwtx: generate key %d: %w", i+1, err)
		}
		s, err := NewSignerEdDSA("brokerx-"+kid, pemKey)
		if err != nil {
			return nil, err
		}
		if err := km.AddSigner(s); err != nil {
			return nil, err
		}
	}

	km.Verifier = NewVerifierEdDSA(keyset, VerifyOptions{
		Issuer:   opts.Issuer,
		Audience: opts.Audience,
		Leeway:   opts.Leeway,
		Now:      opts.Now,
	})
	return km, nil
}

// GetSigner picks one of the active signers at random.
func (km *KeyManager) GetSigner() Signer {
	km.mu.RLock()
	defer km.mu.RUnlock()

	switch len(km.signers) {
	case 0:
		return nil
	case 1:
		return km.signers[0]
	}
	return km.signers[rand.IntN(len(km.signers))]
}

// NumSigners returns the number of active signing keys.
func (km *KeyManager) NumSigners() int {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return len(km.signers)
}

// AddSigner makes s available for signing and verification.
func (km *KeyManager) AddSigner(s Signer) error {
	if s == nil {
		return fmt.Errorf("jwtx: signer cannot be nil")
	}

	km.mu.Lock()
	defer km.mu.Unlock()
	if err := km.KeySet.AddSigner(s); err != nil {
		return fmt.Errorf("jwtx: add signer: %w", err)
	}
	km.signers = append(km.signers, s)
	return nil
}

// RetireSigner stops signing with kid. Its public key stays in the KeySet
// so tokens already issued still verify until they expire.
func (km *KeyManager) RetireSigner(kid string) error {
	km.mu.Lock()
	defer km.mu.Unlock()

	if len(km.signers) <= 1 {
		return fmt.Errorf("jwtx: cannot retire the last signing key")
	}
	for i, s := range km.signers {
		if s.KID() == kid {
			km.signers = append(km.signers[:i:i], km.signers[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("jwtx: signer with kid %q not found", kid)
}

// IsReady reports whether any keys are loaded.
func (km *KeyManager) IsReady() bool {
	return km.KeySet.IsReady()
}
