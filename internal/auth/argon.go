package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// RFC 9106 second recommended option. Fine for interactive logins
// without starving a small host.
var defaultArgonParams = argonParams{
	memory:      64 * 1024,
	iterations:  3,
	parallelism: 4,
	keyLength:   32,
}

const (
	argonSaltLength = 16

	// Cap input size so a huge password can't burn CPU and memory
	// during hashing.
	maxPasswordLength = 1024
)

type argonParams struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
	keyLength   uint32
}

func (p argonParams) key(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, p.iterations, p.memory, p.parallelism, p.keyLength)
}

// HashPassword creates an argon2id hash of the password in the standard
// $argon2id$v=...$m=...,t=...,p=...$salt$hash encoding.
func HashPassword(password string) (string, error) {
	switch {
	case password == "":
		return "", errors.New("password cannot be empty")
	case len(password) > maxPasswordLength:
		return "", errors.New("password exceeds maximum length")
	}

	salt := make([]byte, argonSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	p := defaultArgonParams
	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.memory, p.iterations, p.parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(p.key(password, salt)))
	return encoded, nil
}

// VerifyPassword verifies a password against an argon2id encoded hash.
// Malformed stored hashes read as a failed match rather than an error,
// so no detail about the stored value leaks.
func VerifyPassword(encodedHash, password string) (bool, error) {
	if len(password) > maxPasswordLength {
		return false, nil
	}

	salt, hash, params, err := decodeHash(encodedHash)
	if err != nil {
		//nolint:nilerr
		return false, nil
	}

	computed := params.key(password, salt)
	return subtle.ConstantTimeCompare(hash, computed) == 1, nil
}

// decodeHash splits an encoded hash into salt, hash, and parameters.
func decodeHash(encodedHash string) (salt, hash []byte, params argonParams, err error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		err = errors.New("invalid hash format")
		return
	}
	if parts[1] != "argon2id" {
		err = fmt.Errorf("unsupported algorithm: %s", parts[1])
		return
	}

	var version int
	if _, err = fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		err = fmt.Errorf("invalid version: %w", err)
		return
	}
	if version != argon2.Version {
		err = fmt.Errorf("incompatible version: %d", version)
		return
	}

	if _, err = fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.memory, &params.iterations, &params.parallelism); err != nil {
		err = fmt.Errorf("invalid parameters: %w", err)
		return
	}

	if salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		err = fmt.Errorf("invalid salt encoding: %w", err)
		return
	}
	if hash, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		err = fmt.Errorf("invalid hash encoding: %w", err)
		return
	}

	//nolint:gosec // hash length is the configured key length
	params.keyLength = uint32(len(hash))
	return salt, hash, params, nil
}
