package hashing

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"sort"
	"sync"

	"github.com/dchest/blake256"
	"github.com/dchest/blake512"
	"github.com/jzelinskie/whirlpool"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/md4"
	"golang.org/x/crypto/ripemd160"
	"golang.org/x/crypto/sha3"
	"lukechampine.com/blake3"
)

// Algorithm identifies a digest function.
// Using a named string type prevents accidental confusion with plain strings.
type Algorithm string

// Built-in digest names.
const (
	MD5        Algorithm = "md5"
	MD4        Algorithm = "md4"
	SHA1       Algorithm = "sha1"
	SHA224     Algorithm = "sha224"
	SHA256     Algorithm = "sha256"
	SHA384     Algorithm = "sha384"
	SHA512     Algorithm = "sha512"
	SHA512_224 Algorithm = "sha512/224"
	SHA512_256 Algorithm = "sha512/256"
	SHA3_224   Algorithm = "sha3-224"
	SHA3_256   Algorithm = "sha3-256"
	SHA3_384   Algorithm = "sha3-384"
	SHA3_512   Algorithm = "sha3-512"
	BLAKE2b256 Algorithm = "blake2b-256"
	BLAKE2b384 Algorithm = "blake2b-384"
	BLAKE2b512 Algorithm = "blake2b-512"
	BLAKE2s256 Algorithm = "blake2s-256"
	BLAKE3     Algorithm = "blake3"
	BLAKE224   Algorithm = "blake224"
	BLAKE256   Algorithm = "blake256"
	BLAKE384   Algorithm = "blake384"
	BLAKE512   Algorithm = "blake512"
	RIPEMD160  Algorithm = "ripemd160"
	Whirlpool  Algorithm = "whirlpool"
)

// Registry is a thread-safe set of named digest constructors.
//
// The package-level registry returned by [DefaultRegistry] is pre-populated
// with every built-in [Algorithm] and is what [State] uses unless
// [Options.Registry] says otherwise.
type Registry struct {
	mu      sync.RWMutex
	digests map[Algorithm]registeredDigest
}

type registeredDigest struct {
	new  func() hash.Hash
	size int
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{digests: make(map[Algorithm]registeredDigest)}
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the shared registry holding the built-in digests.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		r := NewRegistry()
		for name, fn := range builtinDigests() {
			_ = r.Register(name, fn)
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

func builtinDigests() map[Algorithm]func() hash.Hash {
	return map[Algorithm]func() hash.Hash{
		MD5:        md5.New,
		MD4:        md4.New,
		SHA1:       sha1.New,
		SHA224:     sha256.New224,
		SHA256:     sha256.New,
		SHA384:     sha512.New384,
		SHA512:     sha512.New,
		SHA512_224: sha512.New512_224,
		SHA512_256: sha512.New512_256,
		SHA3_224:   sha3.New224,
		SHA3_256:   sha3.New256,
		SHA3_384:   sha3.New384,
		SHA3_512:   sha3.New512,
		BLAKE2b256: unkeyed(blake2b.New256),
		BLAKE2b384: unkeyed(blake2b.New384),
		BLAKE2b512: unkeyed(blake2b.New512),
		BLAKE2s256: unkeyed(blake2s.New256),
		BLAKE3:     func() hash.Hash { return blake3.New(32, nil) },
		BLAKE224:   blake256.New224,
		BLAKE256:   blake256.New,
		BLAKE384:   blake512.New384,
		BLAKE512:   blake512.New,
		RIPEMD160:  ripemd160.New,
		Whirlpool:  whirlpool.New,
	}
}

// unkeyed adapts the BLAKE2 constructors, which only fail for oversized keys.
func unkeyed(fn func(key []byte) (hash.Hash, error)) func() hash.Hash {
	return func() hash.Hash {
		h, err := fn(nil)
		if err != nil {
			panic(err)
		}
		return h
	}
}

// Register adds or replaces a named digest.
// It is safe to call Register while other goroutines are hashing.
//
// The constructor must return a deterministic [hash.Hash] with a fixed,
// non-zero output size:
//
//	r.Register("my-digest", mydigest.New)
func (r *Registry) Register(name Algorithm, fn func() hash.Hash) error {
	if name == "" {
		return fmt.Errorf("%w: algorithm name must not be empty", ErrInvalidOption)
	}
	if fn == nil {
		return fmt.Errorf("%w: digest constructor for %q must not be nil", ErrInvalidOption, name)
	}
	size := fn().Size()
	if size <= 0 {
		return fmt.Errorf("%w: digest %q has output size %d", ErrInvalidOption, name, size)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.digests[name] = registeredDigest{new: fn, size: size}
	return nil
}

// Supported reports whether a digest with the given name is registered.
func (r *Registry) Supported(name Algorithm) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.digests[name]
	return ok
}

// Size returns the output length in bytes of the named digest, or
// [ErrUnsupportedAlgorithm] if it has not been registered.
func (r *Registry) Size(name Algorithm) (int, error) {
	d, err := r.lookup(name)
	if err != nil {
		return 0, err
	}
	return d.size, nil
}

// New returns a fresh [hash.Hash] for the named digest.
func (r *Registry) New(name Algorithm) (hash.Hash, error) {
	d, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	return d.new(), nil
}

// Algorithms returns the registered digest names in sorted order.
func (r *Registry) Algorithms() []Algorithm {
	r.mu.RLock()
	out := make([]Algorithm, 0, len(r.digests))
	for name := range r.digests {
		out = append(out, name)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Registry) lookup(name Algorithm) (registeredDigest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.digests[name]
	if !ok {
		return registeredDigest{}, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, name)
	}
	return d, nil
}

// Algorithms lists the digests of the [DefaultRegistry].
func Algorithms() []Algorithm { return DefaultRegistry().Algorithms() }

// Supported reports whether name is registered in the [DefaultRegistry].
func Supported(name Algorithm) bool { return DefaultRegistry().Supported(name) }
