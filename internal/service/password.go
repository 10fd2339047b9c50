package service

import (
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"hash"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

// Default iteration count of "pbkdf2:sha256" hashes that omit it.
const legacyDefaultIterations = 260000

var legacyDigests = map[string]func() hash.Hash{
	"sha256": sha256.New,
	"sha512": sha512.New,
}

// checkPassword verifies password against a stored hash. Besides bcrypt it
// accepts werkzeug style "pbkdf2:<digest>[:<iterations>]$<salt>$<hex>"
// hashes carried over from the previous system; legacy reports such a match.
func checkPassword(stored, password string) (ok, legacy bool) {
	if !strings.HasPrefix(stored, "pbkdf2:") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil, false
	}
	return checkLegacyPBKDF2(stored, password), true
}

func checkLegacyPBKDF2(stored, password string) bool {
	parts := strings.Split(stored, "$")
	if len(parts) != 3 {
		return false
	}
	method, salt, digest := parts[0], parts[1], parts[2]

	fields := strings.Split(method, ":")
	if len(fields) < 2 || len(fields) > 3 {
		return false
	}
	newHash, ok := legacyDigests[fields[1]]
	if !ok {
		return false
	}
	iterations := legacyDefaultIterations
	if len(fields) == 3 {
		n, err := strconv.Atoi(fields[2])
		if err != nil || n <= 0 {
			return false
		}
		iterations = n
	}

	want, err := hex.DecodeString(digest)
	if err != nil || len(want) == 0 {
		return false
	}
	got := pbkdf2.Key([]byte(password), []byte(salt), iterations, len(want), newHash)
	return subtle.ConstantTimeCompare(got, want) == 1
}
