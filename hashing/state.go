package hashing

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"hash"
	"io"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/klog/v2"
	"k8s.io/utils/clock"
)

// ──────────────────────────────────────────────────────────────────────────────
// Defaults
// ──────────────────────────────────────────────────────────────────────────────

const (
	// DefaultAlgorithm is the digest used when the caller does not pick one.
	DefaultAlgorithm = Whirlpool

	// DefaultMinTime is the default minimum cumulative hashing time.
	DefaultMinTime = 2 * time.Second

	// DefaultMinIterationsLog2 is the default minimum work exponent
	// (2^17 = 131072 digest applications).
	DefaultMinIterationsLog2 uint = 17

	// MaxIterationsLog2 bounds the work exponent so 2^k fits in a uint64
	// round counter with room to spare.
	MaxIterationsLog2 uint = 62
)

// Options configures the collaborators of a [State].
//
// The zero value is valid: every nil field falls back to the default shown
// on it.
type Options struct {
	// Registry resolves algorithm names.  Default: [DefaultRegistry].
	Registry *Registry

	// Clock times hashing rounds.  Default: [clock.RealClock], whose
	// readings carry the monotonic clock.
	Clock clock.PassiveClock

	// Rand supplies salt bytes.  Default: [crypto/rand.Reader].
	Rand io.Reader

	// Logger receives calibration progress at V(2) and V(4).  Plaintexts,
	// salts and digests are never logged.  Default: klog.Background().
	Logger logr.Logger

	// NoPlaintextCache disables the fast path of [State.Matches] that
	// returns immediately when the candidate equals the already-verified
	// plaintext.  With it set, every check performs the full 2^k work so
	// repeat checks are indistinguishable by timing from first checks.
	NoPlaintextCache bool
}

// DefaultOptions returns Options with every collaborator set to its default.
func DefaultOptions() Options {
	return Options{}.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.Registry == nil {
		o.Registry = DefaultRegistry()
	}
	if o.Clock == nil {
		o.Clock = clock.RealClock{}
	}
	if o.Rand == nil {
		o.Rand = rand.Reader
	}
	if o.Logger.GetSink() == nil {
		o.Logger = klog.Background()
	}
	return o
}

func validateTargets(minTime time.Duration, minIterationsLog2 uint) error {
	if minTime < 0 {
		return fmt.Errorf("%w: min time must be ≥ 0, got %s", ErrInvalidOption, minTime)
	}
	if minIterationsLog2 > MaxIterationsLog2 {
		return fmt.Errorf("%w: min iterations_log2 must be ≤ %d, got %d",
			ErrInvalidOption, MaxIterationsLog2, minIterationsLog2)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// State
// ──────────────────────────────────────────────────────────────────────────────

// State is a self-calibrating password hash.
//
// A State is created either by [State.HashPlaintext], which hashes a secret
// until the calibration targets are met, or by unmarshalling a record
// produced earlier ([Parse], [State.UnmarshalJSON]).  A restored State does
// not know its plaintext until [State.Matches] succeeds.
//
// The digest always holds H^(2^k)(salt‖plaintext) where k is
// [State.IterationsLog2].  Calibration doubles the chain one round at a
// time, timing every round, until k ≥ MinIterationsLog2 and the cumulative
// time ≥ MinTime.  Because rounds grow exponentially the clock is read only
// twice per round, and the overshoot past the time target is bounded by the
// cost of the last round.
//
// # Thread safety
//
// A State is not safe for concurrent use.  Callers sharing one must
// serialise access.  Work is committed once per round, so a calibration
// abandoned through [State.HashContext] leaves a consistent State that can
// be resumed.
type State struct {
	opts Options

	plaintext []byte
	known     bool

	digest    []byte
	salt      []byte
	algorithm Algorithm

	elapsed           time.Duration
	minTime           time.Duration
	iterationsLog2    uint
	minIterationsLog2 uint
}

// New returns an empty State using the given collaborators.
func New(opts Options) *State {
	return &State{opts: opts}
}

func (s *State) options() Options { return s.opts.withDefaults() }

// Plaintext returns the secret if it is known, i.e. after
// [State.HashPlaintext] or a successful [State.Matches].
func (s *State) Plaintext() ([]byte, bool) {
	if !s.known {
		return nil, false
	}
	return clone(s.plaintext), true
}

// Digest returns a copy of the current digest.
func (s *State) Digest() []byte { return clone(s.digest) }

// Salt returns a copy of the salt.
func (s *State) Salt() []byte { return clone(s.salt) }

// Algorithm returns the selected digest.
func (s *State) Algorithm() Algorithm { return s.algorithm }

// Elapsed returns the cumulative calibration time, or the duration of the
// most recent full verification if one has run since.
func (s *State) Elapsed() time.Duration { return s.elapsed }

// IterationsLog2 returns the work exponent reached so far.
func (s *State) IterationsLog2() uint { return s.iterationsLog2 }

// MinTime returns the time target.
func (s *State) MinTime() time.Duration { return s.minTime }

// MinIterationsLog2 returns the work exponent target.
func (s *State) MinIterationsLog2() uint { return s.minIterationsLog2 }

// SetMinTime replaces the time target.
func (s *State) SetMinTime(minTime time.Duration) error {
	return s.SetMinRequirements(minTime, s.minIterationsLog2)
}

// SetMinIterationsLog2 replaces the work exponent target.
func (s *State) SetMinIterationsLog2(minIterationsLog2 uint) error {
	return s.SetMinRequirements(s.minTime, minIterationsLog2)
}

// SetMinRequirements replaces both calibration targets.  It performs no
// hashing; call [State.Hash] to meet the new targets.
func (s *State) SetMinRequirements(minTime time.Duration, minIterationsLog2 uint) error {
	if err := validateTargets(minTime, minIterationsLog2); err != nil {
		return err
	}
	s.minTime, s.minIterationsLog2 = minTime, minIterationsLog2
	return nil
}

// NeedsHashing reports whether either calibration target is unmet.
func (s *State) NeedsHashing() bool {
	return s.iterationsLog2 < s.minIterationsLog2 || s.elapsed < s.minTime
}

// HashPlaintext hashes plaintext from scratch with a fresh salt until both
// targets are met and returns the serialised record.
//
// It fails with [ErrUnsupportedAlgorithm] or [ErrInvalidOption] before
// touching the State.
func (s *State) HashPlaintext(plaintext []byte, algorithm Algorithm, minTime time.Duration, minIterationsLog2 uint) ([]byte, error) {
	return s.HashPlaintextContext(context.Background(), plaintext, algorithm, minTime, minIterationsLog2)
}

// HashPlaintextContext is [State.HashPlaintext] with a context that is
// checked between calibration rounds.
func (s *State) HashPlaintextContext(ctx context.Context, plaintext []byte, algorithm Algorithm, minTime time.Duration, minIterationsLog2 uint) ([]byte, error) {
	if err := validateTargets(minTime, minIterationsLog2); err != nil {
		return nil, err
	}
	salt, err := s.newSalt(algorithm)
	if err != nil {
		return nil, err
	}

	s.algorithm = algorithm
	s.plaintext, s.known = clone(plaintext), true
	s.minTime, s.minIterationsLog2 = minTime, minIterationsLog2
	if err := s.restart(salt); err != nil {
		return nil, err
	}
	if err := s.calibrate(ctx); err != nil {
		return nil, err
	}
	return s.MarshalJSON()
}

// HashOption overrides the algorithm or a calibration target for one
// [State.Hash] call.
type HashOption func(*hashRequest)

type hashRequest struct {
	algorithm         Algorithm
	minTime           time.Duration
	minIterationsLog2 uint

	setAlgorithm, setMinTime, setMinIterationsLog2 bool
}

// WithAlgorithm switches the digest.  Switching restarts the chain from the
// plaintext with a new salt, so the plaintext must be known.
func WithAlgorithm(a Algorithm) HashOption {
	return func(r *hashRequest) { r.algorithm, r.setAlgorithm = a, true }
}

// WithMinTime replaces the time target.
func WithMinTime(d time.Duration) HashOption {
	return func(r *hashRequest) { r.minTime, r.setMinTime = d, true }
}

// WithMinIterationsLog2 replaces the work exponent target.
func WithMinIterationsLog2(n uint) HashOption {
	return func(r *hashRequest) { r.minIterationsLog2, r.setMinIterationsLog2 = n, true }
}

// Hash continues hashing until the calibration targets are met.
//
// The State must already hold a digest, otherwise [ErrNoExistingHash] is
// returned.  Requesting a different algorithm without a known plaintext
// fails with [ErrPlaintextRequired].  The returned bool reports whether any
// hashing was needed and performed; when it is false the digest, elapsed
// time and work exponent are untouched.
//
// Switching algorithm restarts the chain with the single seed application
// of the new digest, so elapsed starts from the duration of that
// application rather than from zero.
func (s *State) Hash(opts ...HashOption) (bool, error) {
	return s.HashContext(context.Background(), opts...)
}

// HashContext is [State.Hash] with a context that is checked between
// calibration rounds.  On cancellation the rounds already completed are
// kept and the context error is returned wrapped.
func (s *State) HashContext(ctx context.Context, opts ...HashOption) (bool, error) {
	if len(s.digest) == 0 {
		return false, ErrNoExistingHash
	}

	var req hashRequest
	for _, opt := range opts {
		opt(&req)
	}
	minTime, minIterationsLog2 := s.minTime, s.minIterationsLog2
	if req.setMinTime {
		minTime = req.minTime
	}
	if req.setMinIterationsLog2 {
		minIterationsLog2 = req.minIterationsLog2
	}
	if err := validateTargets(minTime, minIterationsLog2); err != nil {
		return false, err
	}

	if req.setAlgorithm && req.algorithm != s.algorithm {
		if !s.known {
			return false, ErrPlaintextRequired
		}
		salt, err := s.newSalt(req.algorithm)
		if err != nil {
			return false, err
		}
		s.algorithm = req.algorithm
		if err := s.restart(salt); err != nil {
			return false, err
		}
	}

	s.minTime, s.minIterationsLog2 = minTime, minIterationsLog2
	if !s.NeedsHashing() {
		return false, nil
	}
	if err := s.calibrate(ctx); err != nil {
		return true, err
	}
	return true, nil
}

// Matches reports whether candidate is the plaintext this State was
// derived from.
//
// When the plaintext is already known and equals candidate, Matches
// returns true without hashing unless [Options.NoPlaintextCache] is set.
// Otherwise it applies the digest exactly 2^k times to salt‖candidate,
// records the duration of that single check as the elapsed time, and
// compares the result with the stored digest in constant time.  On a match
// candidate becomes the known plaintext; a mismatch leaves it unchanged.
func (s *State) Matches(candidate []byte) (bool, error) {
	o := s.options()
	if s.known && !o.NoPlaintextCache && subtle.ConstantTimeCompare(s.plaintext, candidate) == 1 {
		return true, nil
	}
	if len(s.digest) == 0 {
		return false, ErrEmptyHash
	}
	h, err := o.Registry.New(s.algorithm)
	if err != nil {
		return false, err
	}

	start := o.Clock.Now()
	computed := chain(h, concat(s.salt, candidate), uint64(1)<<s.iterationsLog2)
	s.elapsed = o.Clock.Since(start)

	ok := subtle.ConstantTimeCompare(computed, s.digest) == 1
	o.Logger.V(4).Info("Verified plaintext", "algorithm", s.algorithm,
		"iterationsLog2", s.iterationsLog2, "elapsed", s.elapsed, "match", ok)
	if !ok {
		return false, nil
	}
	s.plaintext, s.known = clone(candidate), true
	return true, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────────────────────────────────

// newSalt returns digest-size random bytes for algorithm.
func (s *State) newSalt(algorithm Algorithm) ([]byte, error) {
	o := s.options()
	size, err := o.Registry.Size(algorithm)
	if err != nil {
		return nil, err
	}
	b := make([]byte, size)
	if _, err := io.ReadFull(o.Rand, b); err != nil {
		return nil, fmt.Errorf("hashing: failed to generate salt: %w", err)
	}
	return b, nil
}

// restart begins a new chain from salt‖plaintext.  The seed application
// makes the chain length 2^0 so that it equals 2^k for every k reached.
func (s *State) restart(salt []byte) error {
	o := s.options()
	h, err := o.Registry.New(s.algorithm)
	if err != nil {
		return err
	}
	start := o.Clock.Now()
	digest := chain(h, concat(salt, s.plaintext), 1)
	s.elapsed = o.Clock.Since(start)
	s.salt, s.digest, s.iterationsLog2 = salt, digest, 0
	return nil
}

// calibrate runs doubling rounds until both targets are met.
func (s *State) calibrate(ctx context.Context) error {
	o := s.options()
	h, err := o.Registry.New(s.algorithm)
	if err != nil {
		return err
	}
	log := o.Logger.WithValues("algorithm", s.algorithm)

	for s.NeedsHashing() {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("hashing: calibration stopped at iterations_log2=%d: %w", s.iterationsLog2, err)
		}
		if s.iterationsLog2 >= MaxIterationsLog2 {
			return fmt.Errorf("%w: time target %s not reached within iterations_log2=%d",
				ErrInvalidOption, s.minTime, MaxIterationsLog2)
		}

		start := o.Clock.Now()
		digest := chain(h, s.digest, uint64(1)<<s.iterationsLog2)
		round := o.Clock.Since(start)

		s.digest = digest
		s.iterationsLog2++
		s.elapsed += round
		log.V(4).Info("Calibration round", "iterationsLog2", s.iterationsLog2, "round", round, "elapsed", s.elapsed)
	}
	log.V(2).Info("Calibrated", "iterationsLog2", s.iterationsLog2, "elapsed", s.elapsed,
		"minIterationsLog2", s.minIterationsLog2, "minTime", s.minTime)
	return nil
}

// chain applies h to in n times, feeding each output back in.
func chain(h hash.Hash, in []byte, n uint64) []byte {
	out := make([]byte, 0, h.Size())
	buf := in
	for ; n > 0; n-- {
		h.Reset()
		h.Write(buf)
		buf = h.Sum(out[:0])
	}
	return buf
}

func concat(a, b []byte) []byte {
	out := make([]byte, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte{}, b...)
}
