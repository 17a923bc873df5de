package hashing

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// LegacyScheme names a foreign password hash format that a [Hasher] can
// verify and migrate to an adaptive record when
// [HasherOptions.AcceptLegacy] is set.
type LegacyScheme string

const (
	// LegacyBcrypt is the Modular Crypt Format produced by bcrypt
	// ($2a$, $2b$ and $2y$ prefixes).
	LegacyBcrypt LegacyScheme = "bcrypt"

	// LegacyArgon2i is an Argon2i PHC string.
	LegacyArgon2i LegacyScheme = "argon2i"

	// LegacyArgon2id is an Argon2id PHC string.
	LegacyArgon2id LegacyScheme = "argon2id"
)

// DetectLegacy inspects the prefix of s and returns the foreign scheme it
// appears to use.  Like [DetectRecord] it does not validate the string.
func DetectLegacy(s string) (LegacyScheme, bool) {
	switch {
	case strings.HasPrefix(s, "$2a$"), strings.HasPrefix(s, "$2b$"), strings.HasPrefix(s, "$2y$"):
		return LegacyBcrypt, true
	case strings.HasPrefix(s, "$argon2id$"):
		return LegacyArgon2id, true
	case strings.HasPrefix(s, "$argon2i$"):
		return LegacyArgon2i, true
	}
	return "", false
}

// checkLegacy verifies password against a bcrypt or Argon2 string.
// Mismatch is (false, nil); a malformed string wraps [ErrDeserialization].
func checkLegacy(scheme LegacyScheme, password, encoded string) (bool, error) {
	if scheme == LegacyBcrypt {
		err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("%w: bcrypt: %v", ErrDeserialization, err)
		}
		return true, nil
	}

	p, err := decodeArgon2(encoded)
	if err != nil {
		return false, err
	}
	var got []byte
	if p.variant == LegacyArgon2id {
		got = argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.threads, uint32(len(p.hash)))
	} else {
		got = argon2.Key([]byte(password), p.salt, p.time, p.memory, p.threads, uint32(len(p.hash)))
	}
	return subtle.ConstantTimeCompare(got, p.hash) == 1, nil
}

// Upper bounds on the cost parameters of accepted Argon2 strings.  Larger
// values are rejected before any key derivation runs.
const (
	maxArgon2Memory uint64 = 4 * 1024 * 1024 // KiB (4 GiB)
	maxArgon2Passes uint64 = 32
)

type argon2Params struct {
	variant LegacyScheme
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	hash    []byte
}

// decodeArgon2 parses a PHC string of the form
//
//	$argon2id$v=19$m=65536,t=3,p=2$<salt>$<hash>
//
// with unpadded standard base64 salt and hash.
func decodeArgon2(encoded string) (*argon2Params, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, fmt.Errorf("%w: argon2: expected 5 segments, got %d", ErrDeserialization, len(parts)-1)
	}

	variant := LegacyScheme(parts[1])
	if variant != LegacyArgon2i && variant != LegacyArgon2id {
		return nil, fmt.Errorf("%w: argon2: unknown variant %q", ErrDeserialization, parts[1])
	}
	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return nil, fmt.Errorf("%w: argon2: unsupported version segment %q", ErrDeserialization, parts[2])
	}

	var m, t, par uint64
	seen := 0
	for _, kv := range strings.Split(parts[3], ",") {
		key, val, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("%w: argon2: malformed parameter %q", ErrDeserialization, kv)
		}
		n, err := strconv.ParseUint(val, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: argon2: parameter %q: %v", ErrDeserialization, kv, err)
		}
		switch key {
		case "m":
			m = n
		case "t":
			t = n
		case "p":
			par = n
		default:
			return nil, fmt.Errorf("%w: argon2: unknown parameter %q", ErrDeserialization, key)
		}
		seen++
	}
	if seen != 3 || t < 1 || par < 1 || par > 255 || m < 8*par {
		return nil, fmt.Errorf("%w: argon2: invalid parameters %q", ErrDeserialization, parts[3])
	}
	if m > maxArgon2Memory || t > maxArgon2Passes {
		return nil, fmt.Errorf("%w: argon2: cost %q exceeds m=%d,t=%d", ErrDeserialization, parts[3], maxArgon2Memory, maxArgon2Passes)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, fmt.Errorf("%w: argon2: salt: %v", ErrDeserialization, err)
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, fmt.Errorf("%w: argon2: hash: %v", ErrDeserialization, err)
	}
	if len(hash) == 0 {
		return nil, fmt.Errorf("%w: argon2: empty hash", ErrDeserialization)
	}

	return &argon2Params{
		variant: variant,
		memory:  uint32(m),
		time:    uint32(t),
		threads: uint8(par),
		salt:    salt,
		hash:    hash,
	}, nil
}
