package passwords

import (
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"hash"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

const DefaultCost = 12

// Iteration count the portal's previous framework used when the stored hash omits it
const legacyDefaultIterations = 260000

var ErrEmptyPassword = errors.New("password must not be empty")

// Hasher hashes new passwords with bcrypt and still verifies the pbkdf2 and scrypt hashes
// written by the portal's previous framework.
type Hasher struct {
	cost int

	decoyOnce sync.Once
	decoy     []byte
}

// New returns a Hasher using the given bcrypt cost. Out of range costs fall back to DefaultCost.
func New(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

func (h *Hasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// Verify reports whether plaintext matches encoded. Malformed or unknown encodings never match.
func (h *Hasher) Verify(plaintext, encoded string) bool {
	switch {
	case encoded == "" || plaintext == "":
		return false
	case strings.HasPrefix(encoded, "pbkdf2:"):
		return verifyPBKDF2(plaintext, encoded)
	case strings.HasPrefix(encoded, "scrypt:"):
		return verifyScrypt(plaintext, encoded)
	case strings.HasPrefix(encoded, "$2"):
		return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(plaintext)) == nil
	}
	return false
}

// NeedsRehash is true for legacy encodings and bcrypt hashes below the configured cost
func (h *Hasher) NeedsRehash(encoded string) bool {
	cost, err := bcrypt.Cost([]byte(encoded))
	if err != nil {
		return true
	}
	return cost < h.cost
}

// CompareDecoy burns the same time as a real bcrypt comparison. Call it when the account being
// logged into does not exist.
func (h *Hasher) CompareDecoy(plaintext string) {
	h.decoyOnce.Do(func() {
		h.decoy, _ = bcrypt.GenerateFromPassword([]byte("decoy-password-not-used"), h.cost)
	})
	_ = bcrypt.CompareHashAndPassword(h.decoy, []byte(plaintext))
}

// pbkdf2:<sha256|sha512>[:<iterations>]$<salt>$<hex digest>
func verifyPBKDF2(plaintext, encoded string) bool {
	method, salt, digest, ok := splitLegacy(encoded)
	if !ok {
		return false
	}
	parts := strings.Split(method, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return false
	}

	var newHash func() hash.Hash
	switch parts[1] {
	case "sha256":
		newHash = sha256.New
	case "sha512":
		newHash = sha512.New
	default:
		return false
	}

	iterations := legacyDefaultIterations
	if len(parts) == 3 {
		n, err := strconv.Atoi(parts[2])
		if err != nil || n <= 0 {
			return false
		}
		iterations = n
	}

	got := pbkdf2.Key([]byte(plaintext), []byte(salt), iterations, len(digest), newHash)
	return subtle.ConstantTimeCompare(got, digest) == 1
}

// scrypt:<N>:<r>:<p>$<salt>$<hex digest>
func verifyScrypt(plaintext, encoded string) bool {
	method, salt, digest, ok := splitLegacy(encoded)
	if !ok {
		return false
	}
	parts := strings.Split(method, ":")
	if len(parts) != 4 {
		return false
	}
	params := make([]int, 3)
	for i, s := range parts[1:] {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return false
		}
		params[i] = n
	}

	got, err := scrypt.Key([]byte(plaintext), []byte(salt), params[0], params[1], params[2], len(digest))
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(got, digest) == 1
}

func splitLegacy(encoded string) (method, salt string, digest []byte, ok bool) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 3 || fields[1] == "" || fields[2] == "" {
		return "", "", nil, false
	}
	digest, err := hex.DecodeString(fields[2])
	if err != nil {
		return "", "", nil, false
	}
	return fields[0], fields[1], digest, true
}
