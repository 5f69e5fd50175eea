// AngelaMos | 2026
// security.go

package core

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Current argon2id parameters. Digests made with anything else verify but are
// reported for rehash.
var currentArgon = argonDigest{
	time:    1,
	memory:  64 * 1024,
	threads: 4,
	keyLen:  32,
}

const (
	saltLength         = 16
	recoveryTokenBytes = 32
)

var (
	ErrMalformedDigest = errors.New("malformed password digest")

	b64 = base64.RawStdEncoding
)

// argonDigest is a decoded "$argon2id$v=19$m=..,t=..,p=..$salt$hash" string.
type argonDigest struct {
	time    uint32
	memory  uint32
	threads uint8
	keyLen  uint32
	salt    []byte
	hash    []byte
}

func (d argonDigest) derive(password string) []byte {
	return argon2.IDKey([]byte(password), d.salt, d.time, d.memory, d.threads, d.keyLen)
}

func (d argonDigest) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, d.memory, d.time, d.threads,
		b64.EncodeToString(d.salt), b64.EncodeToString(d.hash))
}

func (d argonDigest) current() bool {
	return d.time == currentArgon.time &&
		d.memory == currentArgon.memory &&
		d.threads == currentArgon.threads &&
		d.keyLen == currentArgon.keyLen
}

func parseArgonDigest(encoded string) (argonDigest, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return argonDigest{}, ErrMalformedDigest
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return argonDigest{}, fmt.Errorf("%w: version %q", ErrMalformedDigest, parts[2])
	}

	var d argonDigest
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &d.memory, &d.time, &d.threads); err != nil {
		return argonDigest{}, fmt.Errorf("%w: params: %w", ErrMalformedDigest, err)
	}

	var err error
	if d.salt, err = b64.DecodeString(parts[4]); err != nil {
		return argonDigest{}, fmt.Errorf("%w: salt: %w", ErrMalformedDigest, err)
	}
	if d.hash, err = b64.DecodeString(parts[5]); err != nil {
		return argonDigest{}, fmt.Errorf("%w: hash: %w", ErrMalformedDigest, err)
	}

	//nolint:gosec // G115: argon2id keys are a few dozen bytes
	d.keyLen = uint32(len(d.hash))
	return d, nil
}

// HashPassword returns an argon2id digest with a fresh random salt, so equal
// passwords never share a digest.
func HashPassword(password string) (string, error) {
	d := currentArgon
	d.salt = make([]byte, saltLength)
	if _, err := rand.Read(d.salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	d.hash = d.derive(password)
	return d.String(), nil
}

// VerifyPassword accepts argon2id digests and legacy bcrypt digests. Both
// comparisons are constant time.
func VerifyPassword(password, encoded string) (bool, error) {
	if isBcrypt(encoded) {
		err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, fmt.Errorf("compare bcrypt digest: %w", err)
		}
	}

	d, err := parseArgonDigest(encoded)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(d.hash, d.derive(password)) == 1, nil
}

// VerifyPasswordWithRehash also returns a replacement digest when the stored
// one is bcrypt or uses outdated argon2id parameters. A failed rehash is not
// an error; the old digest keeps working.
func VerifyPasswordWithRehash(password, encoded string) (bool, string, error) {
	valid, err := VerifyPassword(password, encoded)
	if err != nil || !valid {
		return false, "", err
	}

	if !needsRehash(encoded) {
		return true, "", nil
	}

	upgraded, err := HashPassword(password)
	if err != nil {
		return true, "", nil //nolint:nilerr // verified; upgrade is best effort
	}
	return true, upgraded, nil
}

var dummyDigest = sync.OnceValue(func() string {
	digest, err := HashPassword("timing-equalizer")
	if err != nil {
		panic(fmt.Sprintf("security: dummy digest: %v", err))
	}
	return digest
})

// VerifyPasswordTimingSafe spends the same work whether or not an account
// exists. A nil or empty digest always fails.
func VerifyPasswordTimingSafe(password string, encoded *string) (bool, string, error) {
	if encoded == nil || *encoded == "" {
		//nolint:errcheck // the result is discarded on purpose
		_, _, _ = VerifyPasswordWithRehash(password, dummyDigest())
		return false, "", nil
	}
	return VerifyPasswordWithRehash(password, *encoded)
}

func isBcrypt(encoded string) bool {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(encoded, prefix) {
			return true
		}
	}
	return false
}

func needsRehash(encoded string) bool {
	if isBcrypt(encoded) {
		return true
	}
	d, err := parseArgonDigest(encoded)
	return err != nil || !d.current()
}

// GenerateRecoveryToken returns 256 random bits, hex encoded.
func GenerateRecoveryToken() (string, error) {
	buf := make([]byte, recoveryTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate recovery token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// HashToken is the SHA-256 hex digest under which recovery tokens are stored
// and sessions are listed.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
