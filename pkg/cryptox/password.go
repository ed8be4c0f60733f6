package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id cost parameters for new hashes. Verification reads the
// parameters back from each stored hash.
const (
	memory      = 19 * 1024 // KiB
	iterations  = 2
	parallelism = 1
	keyLength   = 32
	saltLength  = 16
)

var (
	// ErrMismatch is returned when a secret does not match its stored hash.
	ErrMismatch = errors.New("cryptox: secret does not match")

	// ErrMalformedHash wraps every problem decoding a stored hash.
	ErrMalformedHash = errors.New("cryptox: malformed argon2id hash")
)

// phc is a decoded "$argon2id$v=19$m=..,t=..,p=..$salt$key" string.
type phc struct {
	memory, iterations uint32
	parallelism        uint8
	salt, key          []byte
}

func (p phc) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.memory, p.iterations, p.parallelism,
		base64.RawStdEncoding.EncodeToString(p.salt),
		base64.RawStdEncoding.EncodeToString(p.key),
	)
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedHash, fmt.Sprintf(format, args...))
}

func parsePHC(s string) (phc, error) {
	fields := strings.Split(s, "$")
	if len(fields) != 6 || fields[0] != "" {
		return phc{}, malformed("expected 6 fields, got %d", len(fields))
	}
	if fields[1] != "argon2id" {
		return phc{}, malformed("algorithm %q", fields[1])
	}
	if fields[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return phc{}, malformed("version %q", fields[2])
	}

	var p phc
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &p.memory, &p.iterations, &p.parallelism); err != nil {
		return phc{}, malformed("parameters %q", fields[3])
	}
	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(fields[4]); err != nil {
		return phc{}, malformed("salt encoding")
	}
	if p.key, err = base64.RawStdEncoding.DecodeString(fields[5]); err != nil || len(p.key) == 0 {
		return phc{}, malformed("key encoding")
	}
	return p, nil
}

func derive(secret string, p phc) []byte {
	return argon2.IDKey([]byte(secret+GetPepper()), p.salt, p.iterations, p.memory, p.parallelism,
		uint32(len(p.key))) // #nosec G115 -- key length comes from our own encoder
}

// HashPassword returns a salted, peppered Argon2id hash in PHC form. Client
// passwords and one-time codes are both stored this way.
func HashPassword(secret string) (string, error) {
	p := phc{
		memory:      memory,
		iterations:  iterations,
		parallelism: parallelism,
		salt:        make([]byte, saltLength),
		key:         make([]byte, keyLength),
	}
	if _, err := rand.Read(p.salt); err != nil {
		return "", fmt.Errorf("cryptox: read salt: %w", err)
	}
	p.key = derive(secret, p)
	return p.String(), nil
}

// VerifyPassword checks secret against a HashPassword result using the
// parameters stored in the hash. A wrong secret is ErrMismatch; an
// undecodable hash is ErrMalformedHash.
func VerifyPassword(secret, encoded string) error {
	p, err := parsePHC(encoded)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(derive(secret, p), p.key) != 1 {
		return ErrMismatch
	}
	return nil
}

// MatchesHash is the boolean form of VerifyPassword, for code checks where
// a malformed hash and a wrong code mean the same thing.
func MatchesHash(secret, encoded string) bool {
	return VerifyPassword(secret, encoded) == nil
}
