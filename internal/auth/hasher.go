// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// Argon2Params controls the cost of argon2id hashing.
type Argon2Params struct {
	Time    uint32 // iterations
	Memory  uint32 // KiB
	Threads uint8
	SaltLen uint32 // bytes
	KeyLen  uint32 // bytes
}

// DefaultArgon2Params are the OWASP-recommended argon2id parameters.
var DefaultArgon2Params = Argon2Params{
	Time:    1,
	Memory:  64 * 1024,
	Threads: 4,
	SaltLen: 16,
	KeyLen:  32,
}

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a salted one-way hash of the password.
	Hash(password string) (string, error)

	// Verify checks if the password matches the hash.
	// Returns (true, nil) on match, (false, nil) on mismatch, or error on invalid hash.
	Verify(password, hash string) (bool, error)
}

// Argon2idHasher implements PasswordHasher using argon2id.
type Argon2idHasher struct {
	params Argon2Params
}

// NewArgon2idHasher creates an Argon2idHasher with DefaultArgon2Params.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{params: DefaultArgon2Params}
}

// NewArgon2idHasherWithParams creates an Argon2idHasher with custom cost parameters.
// Hashes produced with any parameters verify with any Argon2idHasher because the
// parameters are encoded in the hash.
func NewArgon2idHasherWithParams(params Argon2Params) *Argon2idHasher {
	return &Argon2idHasher{params: params}
}

// Hash produces an argon2id hash of the password in PHC string format.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	rec := phcHash{
		params: h.params,
		salt:   salt,
		key:    argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen),
	}
	return rec.String(), nil
}

// Verify checks if the password matches the hash using the parameters
// encoded in the hash.
func (h *Argon2idHasher) Verify(password, encodedHash string) (bool, error) {
	rec, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	p := rec.params
	computed := argon2.IDKey([]byte(password), rec.salt, p.Time, p.Memory, p.Threads, p.KeyLen)
	return subtle.ConstantTimeCompare(computed, rec.key) == 1, nil
}

// phcHash is a decoded $argon2id$v=19$m=..,t=..,p=..$<salt>$<key> string.
type phcHash struct {
	params Argon2Params
	salt   []byte
	key    []byte
}

func (r phcHash) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		r.params.Memory,
		r.params.Time,
		r.params.Threads,
		base64.RawStdEncoding.EncodeToString(r.salt),
		base64.RawStdEncoding.EncodeToString(r.key),
	)
}

func invalidHash(format string, args ...any) error {
	return oops.Code("AUTH_INVALID_HASH").Errorf(format, args...)
}

func parsePHC(encoded string) (phcHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return phcHash{}, invalidHash("invalid hash format")
	}
	if parts[1] != "argon2id" {
		return phcHash{}, invalidHash("unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return phcHash{}, invalidHash("invalid version segment %q", parts[2])
	}
	if version != argon2.Version {
		return phcHash{}, invalidHash("unsupported argon2 version: %d", version)
	}

	var memory, iterations, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return phcHash{}, invalidHash("invalid parameter segment %q", parts[3])
	}
	if threads == 0 || threads > 255 {
		return phcHash{}, invalidHash("threads value %d out of range", threads)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return phcHash{}, invalidHash("invalid salt encoding")
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return phcHash{}, invalidHash("invalid key encoding")
	}
	if len(key) == 0 || len(key) > 1<<30 {
		return phcHash{}, invalidHash("invalid hash key length: %d", len(key))
	}

	return phcHash{
		params: Argon2Params{
			Time:    iterations,
			Memory:  memory,
			Threads: uint8(threads),
			SaltLen: uint32(len(salt)),
			KeyLen:  uint32(len(key)),
		},
		salt: salt,
		key:  key,
	}, nil
}
