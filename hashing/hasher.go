package hashing

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// HasherOptions configures a [Hasher]: the policy applied to new and
// upgraded hashes, plus the collaborators handed to every [State].
type HasherOptions struct {
	// Algorithm is the digest for new hashes.
	// Default: [DefaultAlgorithm].
	Algorithm Algorithm

	// MinTime is the minimum cumulative hashing time.
	// Default: [DefaultMinTime].
	MinTime time.Duration

	// MinIterationsLog2 is the minimum work exponent.
	// Maximum: [MaxIterationsLog2].  Default: [DefaultMinIterationsLog2].
	MinIterationsLog2 uint

	// AcceptLegacy lets Check and Rehash verify bcrypt and Argon2 strings
	// (see [DetectLegacy]) so that existing user tables can be migrated on
	// the next successful login.  Default: false.
	AcceptLegacy bool

	// State holds the collaborators (registry, clock, randomness, logger).
	State Options
}

// DefaultHasherOptions returns HasherOptions with the recommended defaults.
func DefaultHasherOptions() HasherOptions {
	return HasherOptions{
		Algorithm:         DefaultAlgorithm,
		MinTime:           DefaultMinTime,
		MinIterationsLog2: DefaultMinIterationsLog2,
	}
}

// Hasher hashes and checks passwords using encoded records, for callers that
// keep hashes as strings in a user table rather than holding a [State].
//
//	h, _ := hashing.NewHasher(hashing.DefaultHasherOptions())
//	record, _ := h.Make("my-secret-password")
//	ok, _ := h.Check("my-secret-password", record)
//
// # Thread safety
//
// Hasher is immutable after construction and safe for concurrent use; every
// call works on its own [State].
type Hasher struct {
	opts HasherOptions
}

// NewHasher constructs a Hasher.  It returns [ErrUnsupportedAlgorithm] for
// an unknown digest and [ErrInvalidOption] for out-of-range targets.
func NewHasher(opts HasherOptions) (*Hasher, error) {
	if opts.Algorithm == "" {
		return nil, fmt.Errorf("%w: algorithm must not be empty", ErrInvalidOption)
	}
	if _, err := opts.State.withDefaults().Registry.Size(opts.Algorithm); err != nil {
		return nil, err
	}
	if err := validateTargets(opts.MinTime, opts.MinIterationsLog2); err != nil {
		return nil, err
	}
	return &Hasher{opts: opts}, nil
}

// Options returns the configured policy.
func (h *Hasher) Options() HasherOptions { return h.opts }

// Make hashes password under the configured policy and returns the record.
// A fresh salt is generated for every call, so two calls with the same
// password produce different records.
func (h *Hasher) Make(password string) (string, error) {
	return h.MakeContext(context.Background(), password)
}

// MakeContext is [Hasher.Make] with cancellation between rounds.
func (h *Hasher) MakeContext(ctx context.Context, password string) (string, error) {
	s := New(h.opts.State)
	out, err := s.HashPlaintextContext(ctx, []byte(password),
		h.opts.Algorithm, h.opts.MinTime, h.opts.MinIterationsLog2)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Check verifies that password matches record.
// Returns (true, nil) on match, (false, nil) on mismatch, or (false, err)
// if the record is malformed.
func (h *Hasher) Check(password, record string) (bool, error) {
	if scheme, ok := h.legacy(record); ok {
		return checkLegacy(scheme, password, record)
	}
	s, err := h.parse(record)
	if err != nil {
		return false, err
	}
	return s.Matches([]byte(password))
}

// NeedsRehash reports whether record was produced with a different
// algorithm or falls short of either calibration target.
//
// A shortfall in time or iterations alone can be fixed without the password
// by [Hasher.Upgrade]; an algorithm change needs [Hasher.Rehash].  Accepted
// legacy strings always need rehashing.
func (h *Hasher) NeedsRehash(record string) (bool, error) {
	if _, ok := h.legacy(record); ok {
		return true, nil
	}
	s, err := h.parse(record)
	if err != nil {
		return false, err
	}
	if s.Algorithm() != h.opts.Algorithm {
		return true, nil
	}
	h.applyTargets(s)
	return s.NeedsHashing(), nil
}

// Upgrade continues hashing record up to the configured targets without
// the password.  The upgraded record verifies against the same password.
//
// It returns the record unchanged and false when no work was needed.  A
// record using a different algorithm cannot be upgraded this way and yields
// [ErrPlaintextRequired].
func (h *Hasher) Upgrade(record string) (string, bool, error) {
	return h.UpgradeContext(context.Background(), record)
}

// UpgradeContext is [Hasher.Upgrade] with cancellation between rounds.
func (h *Hasher) UpgradeContext(ctx context.Context, record string) (string, bool, error) {
	if scheme, ok := h.legacy(record); ok {
		return "", false, fmt.Errorf("%w: %s string", ErrPlaintextRequired, scheme)
	}
	s, err := h.parse(record)
	if err != nil {
		return "", false, err
	}
	return h.continueHashing(ctx, s, record)
}

// Rehash verifies password against record and, on a match, brings the
// record up to the configured policy, switching algorithm if needed.
//
// It returns ("", false, nil) on mismatch and (record, false, nil) when the
// record already satisfies the policy.  An accepted legacy string is
// replaced by a freshly made record.
func (h *Hasher) Rehash(password, record string) (string, bool, error) {
	return h.RehashContext(context.Background(), password, record)
}

// RehashContext is [Hasher.Rehash] with cancellation between rounds.
func (h *Hasher) RehashContext(ctx context.Context, password, record string) (string, bool, error) {
	if scheme, ok := h.legacy(record); ok {
		ok, err := checkLegacy(scheme, password, record)
		if err != nil || !ok {
			return "", false, err
		}
		out, err := h.MakeContext(ctx, password)
		if err != nil {
			return "", false, err
		}
		return out, true, nil
	}
	s, err := h.parse(record)
	if err != nil {
		return "", false, err
	}
	stored := s.elapsed
	ok, err := s.Matches([]byte(password))
	if err != nil || !ok {
		return "", false, err
	}
	// Matches replaced elapsed with the duration of this one check; the
	// policy is judged against the time stored in the record.
	s.elapsed = stored
	return h.continueHashing(ctx, s, record)
}

// HashInfo carries metadata parsed from a record.
type HashInfo struct {
	Algorithm      Algorithm
	IterationsLog2 uint
	// Elapsed is the hashing time stored in the record.
	Elapsed time.Duration
	SaltLen int
}

// Info extracts metadata from record without verifying it.
// Useful for auditing, migration tooling, or logging.
func (h *Hasher) Info(record string) (HashInfo, error) {
	s, err := h.parse(record)
	if err != nil {
		return HashInfo{}, err
	}
	return HashInfo{
		Algorithm:      s.Algorithm(),
		IterationsLog2: s.IterationsLog2(),
		Elapsed:        s.Elapsed(),
		SaltLen:        len(s.salt),
	}, nil
}

// DetectRecord reports whether s looks like a serialised [Record].  It is a
// best-effort heuristic and does not validate the record.
func DetectRecord(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "{") && strings.Contains(s, `"iterations_log2"`)
}

// ──────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────────────────────────────────

func (h *Hasher) legacy(record string) (LegacyScheme, bool) {
	if !h.opts.AcceptLegacy {
		return "", false
	}
	return DetectLegacy(record)
}

func (h *Hasher) parse(record string) (*State, error) {
	return Parse([]byte(record), h.opts.State)
}

func (h *Hasher) applyTargets(s *State) {
	s.minTime, s.minIterationsLog2 = h.opts.MinTime, h.opts.MinIterationsLog2
}

func (h *Hasher) continueHashing(ctx context.Context, s *State, record string) (string, bool, error) {
	before := s.Algorithm()
	worked, err := s.HashContext(ctx,
		WithAlgorithm(h.opts.Algorithm),
		WithMinTime(h.opts.MinTime),
		WithMinIterationsLog2(h.opts.MinIterationsLog2),
	)
	if err != nil {
		return "", false, err
	}
	if !worked && s.Algorithm() == before {
		return record, false, nil
	}
	out, err := s.MarshalJSON()
	if err != nil {
		return "", false, err
	}
	return string(out), true, nil
}
