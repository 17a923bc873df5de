package hashing_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hasbyte1/go-adaptive-hash/hashing"
)

// ──────────────────────────────────────────────────────────────────────────────
// HashPlaintext
// ──────────────────────────────────────────────────────────────────────────────

func TestState_HashPlaintext_ReachesIterationFloor(t *testing.T) {
	reg, sums := newCountingRegistry(t)
	opts := testOptions(t)
	opts.Registry = reg
	s := hashing.New(opts)

	if _, err := s.HashPlaintext([]byte("secret"), "counting-sha256", 0, 3); err != nil {
		t.Fatalf("HashPlaintext: %v", err)
	}
	if s.IterationsLog2() != 3 {
		t.Errorf("IterationsLog2 = %d, want 3", s.IterationsLog2())
	}
	// Seed application plus rounds of 1, 2 and 4.
	if got := sums.Load(); got != 8 {
		t.Errorf("digest applications = %d, want 8", got)
	}
}

func TestState_HashPlaintext_ReachesTimeFloor(t *testing.T) {
	opts := hashing.Options{Clock: newSteppingClock(10 * time.Millisecond)}
	s := hashing.New(opts)

	if _, err := s.HashPlaintext([]byte("secret"), hashing.SHA256, 35*time.Millisecond, 0); err != nil {
		t.Fatalf("HashPlaintext: %v", err)
	}
	// The seed takes 10ms and every round another 10ms: 10, 20, 30, 40.
	if s.IterationsLog2() != 3 {
		t.Errorf("IterationsLog2 = %d, want 3", s.IterationsLog2())
	}
	if s.Elapsed() != 40*time.Millisecond {
		t.Errorf("Elapsed = %s, want 40ms", s.Elapsed())
	}
}

func TestState_HashPlaintext_CalibrationFloor(t *testing.T) {
	tests := []struct {
		name     string
		minTime  time.Duration
		minLog2  uint
		wantLog2 uint
	}{
		{"zero targets", 0, 0, 0},
		{"iterations only", 0, 5, 5},
		{"time only", 4 * time.Millisecond, 0, 3},
		{"time dominates", 9 * time.Millisecond, 2, 8},
		{"iterations dominate", 2 * time.Millisecond, 6, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := hashing.New(testOptions(t))
			if _, err := s.HashPlaintext([]byte("pw"), hashing.SHA3_256, tt.minTime, tt.minLog2); err != nil {
				t.Fatalf("HashPlaintext: %v", err)
			}
			if s.IterationsLog2() < tt.minLog2 || s.Elapsed() < tt.minTime {
				t.Errorf("targets unmet: log2=%d elapsed=%s", s.IterationsLog2(), s.Elapsed())
			}
			if s.IterationsLog2() != tt.wantLog2 {
				t.Errorf("IterationsLog2 = %d, want %d", s.IterationsLog2(), tt.wantLog2)
			}
			if s.NeedsHashing() {
				t.Error("NeedsHashing = true after calibration")
			}
		})
	}
}

func TestState_HashPlaintext_ChainIsPowerOfTwo(t *testing.T) {
	s := hashing.New(testOptions(t))
	if _, err := s.HashPlaintext([]byte("pw"), hashing.SHA256, 0, 4); err != nil {
		t.Fatal(err)
	}
	want := iterate(t, hashing.SHA256, append(s.Salt(), "pw"...), 1<<4)
	if !bytes.Equal(s.Digest(), want) {
		t.Error("digest is not H^(2^k)(salt‖plaintext)")
	}
}

func TestState_HashPlaintext_SaltMatchesDigestSize(t *testing.T) {
	for _, a := range []hashing.Algorithm{hashing.MD5, hashing.SHA1, hashing.SHA256, hashing.SHA512, hashing.RIPEMD160, hashing.Whirlpool} {
		t.Run(string(a), func(t *testing.T) {
			s := hashing.New(testOptions(t))
			if _, err := s.HashPlaintext([]byte("pw"), a, 0, 0); err != nil {
				t.Fatal(err)
			}
			size, _ := hashing.DefaultRegistry().Size(a)
			if len(s.Salt()) != size || len(s.Digest()) != size {
				t.Errorf("salt=%d digest=%d, want %d", len(s.Salt()), len(s.Digest()), size)
			}
		})
	}
}

func TestState_HashPlaintext_UniqueSalts(t *testing.T) {
	a := hashing.New(testOptions(t))
	b := hashing.New(testOptions(t))
	_, _ = a.HashPlaintext([]byte("same"), hashing.SHA256, 0, 2)
	_, _ = b.HashPlaintext([]byte("same"), hashing.SHA256, 0, 2)
	if bytes.Equal(a.Salt(), b.Salt()) || bytes.Equal(a.Digest(), b.Digest()) {
		t.Error("two hashes of the same plaintext must differ (different salts)")
	}
}

func TestState_HashPlaintext_UnsupportedAlgorithmMutatesNothing(t *testing.T) {
	s := hashing.New(testOptions(t))
	if _, err := s.HashPlaintext([]byte("pw"), hashing.SHA256, 0, 2); err != nil {
		t.Fatal(err)
	}
	before := s.Record()

	_, err := s.HashPlaintext([]byte("other"), "rot13", 0, 2)
	if !errors.Is(err, hashing.ErrUnsupportedAlgorithm) {
		t.Fatalf("expected ErrUnsupportedAlgorithm, got %v", err)
	}
	after := s.Record()
	if !bytes.Equal(before.Hash, after.Hash) || before.Algorithm != after.Algorithm {
		t.Error("rejected HashPlaintext mutated the state")
	}
	if pt, _ := s.Plaintext(); string(pt) != "pw" {
		t.Errorf("plaintext = %q, want pw", pt)
	}
}

func TestState_HashPlaintext_InvalidTargets(t *testing.T) {
	tests := []struct {
		name    string
		minTime time.Duration
		minLog2 uint
	}{
		{"negative time", -time.Second, 0},
		{"log2 too large", 0, hashing.MaxIterationsLog2 + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := hashing.New(testOptions(t))
			_, err := s.HashPlaintext([]byte("pw"), hashing.SHA256, tt.minTime, tt.minLog2)
			if !errors.Is(err, hashing.ErrInvalidOption) {
				t.Errorf("expected ErrInvalidOption, got %v", err)
			}
		})
	}
}

func TestState_HashPlaintext_ReturnsRecord(t *testing.T) {
	s := hashing.New(testOptions(t))
	out, err := s.HashPlaintext([]byte("pw"), hashing.SHA256, 0, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !hashing.DetectRecord(string(out)) {
		t.Errorf("HashPlaintext output is not a record: %s", out)
	}
}

func TestState_HashPlaintextContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := hashing.New(testOptions(t))
	_, err := s.HashPlaintextContext(ctx, []byte("pw"), hashing.SHA256, 0, 10)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	// The seeded chain is still consistent and resumable.
	if s.IterationsLog2() != 0 || len(s.Digest()) == 0 {
		t.Fatalf("unexpected partial state: log2=%d digest=%d", s.IterationsLog2(), len(s.Digest()))
	}
	worked, err := s.Hash()
	if err != nil || !worked {
		t.Fatalf("resume: worked=%v err=%v", worked, err)
	}
	if s.IterationsLog2() != 10 {
		t.Errorf("IterationsLog2 = %d after resume, want 10", s.IterationsLog2())
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Hash (continue)
// ──────────────────────────────────────────────────────────────────────────────

func TestState_Hash_NoExistingHash(t *testing.T) {
	s := hashing.New(testOptions(t))
	_, err := s.Hash(hashing.WithMinIterationsLog2(3))
	if !errors.Is(err, hashing.ErrNoExistingHash) {
		t.Errorf("expected ErrNoExistingHash, got %v", err)
	}
}

func TestState_Hash_NoOpWhenSatisfied(t *testing.T) {
	s := hashing.New(testOptions(t))
	if _, err := s.HashPlaintext([]byte("pw"), hashing.SHA256, 2*time.Millisecond, 4); err != nil {
		t.Fatal(err)
	}
	before := s.Record()

	for _, opts := range [][]hashing.HashOption{
		nil,
		{hashing.WithMinIterationsLog2(4)},
		{hashing.WithMinIterationsLog2(1), hashing.WithMinTime(0)},
		{hashing.WithAlgorithm(hashing.SHA256)},
	} {
		worked, err := s.Hash(opts...)
		if err != nil {
			t.Fatalf("Hash: %v", err)
		}
		if worked {
			t.Error("Hash reported work on a calibrated state")
		}
	}
	after := s.Record()
	if !bytes.Equal(before.Hash, after.Hash) || before.Time != after.Time || before.IterationsLog2 != after.IterationsLog2 {
		t.Error("no-op Hash mutated digest, time, or iterations")
	}
}

func TestState_Hash_RaisesTargets(t *testing.T) {
	s := hashing.New(testOptions(t))
	if _, err := s.HashPlaintext([]byte("pw"), hashing.SHA256, 0, 3); err != nil {
		t.Fatal(err)
	}
	worked, err := s.Hash(hashing.WithMinIterationsLog2(6))
	if err != nil || !worked {
		t.Fatalf("Hash: worked=%v err=%v", worked, err)
	}
	if s.IterationsLog2() != 6 || s.MinIterationsLog2() != 6 {
		t.Errorf("log2=%d min=%d, want 6/6", s.IterationsLog2(), s.MinIterationsLog2())
	}
	want := iterate(t, hashing.SHA256, append(s.Salt(), "pw"...), 1<<6)
	if !bytes.Equal(s.Digest(), want) {
		t.Error("continued chain is not H^(2^k)(salt‖plaintext)")
	}
}

func TestState_Hash_WithoutPlaintextKeepsVerifying(t *testing.T) {
	src := hashing.New(testOptions(t))
	rec, err := src.HashPlaintext([]byte("pw"), hashing.BLAKE2b256, 0, 2)
	if err != nil {
		t.Fatal(err)
	}

	s, err := hashing.Parse(rec, testOptions(t))
	if err != nil {
		t.Fatal(err)
	}
	worked, err := s.Hash(hashing.WithMinIterationsLog2(5))
	if err != nil || !worked {
		t.Fatalf("Hash: worked=%v err=%v", worked, err)
	}
	ok, err := s.Matches([]byte("pw"))
	if err != nil || !ok {
		t.Fatalf("Matches after upgrade: ok=%v err=%v", ok, err)
	}
}

func TestState_Hash_AlgorithmSwitchRequiresPlaintext(t *testing.T) {
	src := hashing.New(testOptions(t))
	rec, _ := src.HashPlaintext([]byte("pw"), hashing.SHA256, 0, 2)

	s, err := hashing.Parse(rec, testOptions(t))
	if err != nil {
		t.Fatal(err)
	}
	_, err = s.Hash(hashing.WithAlgorithm(hashing.SHA3_512))
	if !errors.Is(err, hashing.ErrPlaintextRequired) {
		t.Fatalf("expected ErrPlaintextRequired, got %v", err)
	}
	if s.Algorithm() != hashing.SHA256 {
		t.Errorf("algorithm changed to %q", s.Algorithm())
	}
}

func TestState_Hash_AlgorithmSwitchRestartsChain(t *testing.T) {
	s := hashing.New(testOptions(t))
	if _, err := s.HashPlaintext([]byte("pw"), hashing.SHA256, 0, 4); err != nil {
		t.Fatal(err)
	}
	oldSalt := s.Salt()

	worked, err := s.Hash(hashing.WithAlgorithm(hashing.SHA3_512), hashing.WithMinIterationsLog2(2))
	if err != nil || !worked {
		t.Fatalf("Hash: worked=%v err=%v", worked, err)
	}
	if s.Algorithm() != hashing.SHA3_512 {
		t.Errorf("Algorithm = %q", s.Algorithm())
	}
	if len(s.Salt()) != 64 || bytes.Equal(s.Salt(), oldSalt) {
		t.Error("salt was not regenerated for the new digest size")
	}
	if s.IterationsLog2() != 2 {
		t.Errorf("IterationsLog2 = %d, want 2 (chain restarted)", s.IterationsLog2())
	}
	want := iterate(t, hashing.SHA3_512, append(s.Salt(), "pw"...), 1<<2)
	if !bytes.Equal(s.Digest(), want) {
		t.Error("switched chain does not start from salt‖plaintext")
	}
}

func TestState_Hash_SwitchAfterVerification(t *testing.T) {
	src := hashing.New(testOptions(t))
	rec, _ := src.HashPlaintext([]byte("pw"), hashing.SHA1, 0, 2)

	s, _ := hashing.Parse(rec, testOptions(t))
	if ok, err := s.Matches([]byte("pw")); err != nil || !ok {
		t.Fatalf("Matches: ok=%v err=%v", ok, err)
	}
	if _, err := s.Hash(hashing.WithAlgorithm(hashing.BLAKE3), hashing.WithMinIterationsLog2(3)); err != nil {
		t.Fatalf("Hash after verification: %v", err)
	}
	if s.Algorithm() != hashing.BLAKE3 {
		t.Errorf("Algorithm = %q, want blake3", s.Algorithm())
	}
}

func TestState_Hash_UnsupportedAlgorithm(t *testing.T) {
	s := hashing.New(testOptions(t))
	_, _ = s.HashPlaintext([]byte("pw"), hashing.SHA256, 0, 1)
	_, err := s.Hash(hashing.WithAlgorithm("crc32"))
	if !errors.Is(err, hashing.ErrUnsupportedAlgorithm) {
		t.Errorf("expected ErrUnsupportedAlgorithm, got %v", err)
	}
}

func TestState_HashContext_CancelledKeepsCompletedRounds(t *testing.T) {
	s := hashing.New(testOptions(t))
	if _, err := s.HashPlaintext([]byte("pw"), hashing.SHA256, 0, 3); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	worked, err := s.HashContext(ctx, hashing.WithMinIterationsLog2(8))
	if !errors.Is(err, context.Canceled) || !worked {
		t.Fatalf("worked=%v err=%v", worked, err)
	}
	if s.IterationsLog2() != 3 {
		t.Errorf("IterationsLog2 = %d, want 3", s.IterationsLog2())
	}
	if ok, _ := s.Matches([]byte("pw")); !ok {
		t.Error("state is inconsistent after cancellation")
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Matches
// ──────────────────────────────────────────────────────────────────────────────

func TestState_Matches_EmptyHash(t *testing.T) {
	s := hashing.New(testOptions(t))
	_, err := s.Matches([]byte("pw"))
	if !errors.Is(err, hashing.ErrEmptyHash) {
		t.Errorf("expected ErrEmptyHash, got %v", err)
	}
}

func TestState_Matches_AppliesExactlyTwoToTheK(t *testing.T) {
	reg, sums := newCountingRegistry(t)
	opts := testOptions(t)
	opts.Registry = reg

	src := hashing.New(opts)
	rec, err := src.HashPlaintext([]byte("pw"), "counting-sha256", 0, 3)
	if err != nil {
		t.Fatal(err)
	}
	s, err := hashing.Parse(rec, opts)
	if err != nil {
		t.Fatal(err)
	}

	sums.Store(0)
	ok, err := s.Matches([]byte("pw"))
	if err != nil || !ok {
		t.Fatalf("Matches: ok=%v err=%v", ok, err)
	}
	if got := sums.Load(); got != 8 {
		t.Errorf("verification applied the digest %d times, want 8", got)
	}
}

func TestState_Matches_WrongPlaintext(t *testing.T) {
	src := hashing.New(testOptions(t))
	rec, _ := src.HashPlaintext([]byte("correct"), hashing.SHA256, 0, 3)

	s, _ := hashing.Parse(rec, testOptions(t))
	ok, err := s.Matches([]byte("wrong"))
	if err != nil {
		t.Fatalf("Matches: unexpected error %v", err)
	}
	if ok {
		t.Error("Matches returned true for wrong plaintext")
	}
	if _, known := s.Plaintext(); known {
		t.Error("failed verification must not set the plaintext")
	}
}

func TestState_Matches_WrongPlaintextKeepsKnownPlaintext(t *testing.T) {
	s := hashing.New(testOptions(t))
	_, _ = s.HashPlaintext([]byte("correct"), hashing.SHA256, 0, 3)

	if ok, _ := s.Matches([]byte("wrong")); ok {
		t.Fatal("Matches returned true for wrong plaintext")
	}
	if pt, known := s.Plaintext(); !known || string(pt) != "correct" {
		t.Errorf("plaintext = %q (known=%v), want correct", pt, known)
	}
}

func TestState_Matches_SetsPlaintextOnSuccess(t *testing.T) {
	src := hashing.New(testOptions(t))
	rec, _ := src.HashPlaintext([]byte("pw"), hashing.SHA256, 0, 3)

	s, _ := hashing.Parse(rec, testOptions(t))
	if _, known := s.Plaintext(); known {
		t.Fatal("restored state must not know its plaintext")
	}
	if ok, err := s.Matches([]byte("pw")); err != nil || !ok {
		t.Fatalf("Matches: ok=%v err=%v", ok, err)
	}
	if pt, known := s.Plaintext(); !known || string(pt) != "pw" {
		t.Errorf("plaintext = %q (known=%v), want pw", pt, known)
	}
}

func TestState_Matches_CachedPlaintextSkipsWork(t *testing.T) {
	reg, sums := newCountingRegistry(t)
	opts := testOptions(t)
	opts.Registry = reg

	s := hashing.New(opts)
	if _, err := s.HashPlaintext([]byte("pw"), "counting-sha256", 0, 4); err != nil {
		t.Fatal(err)
	}
	elapsed := s.Elapsed()

	sums.Store(0)
	if ok, _ := s.Matches([]byte("pw")); !ok {
		t.Fatal("expected match")
	}
	if sums.Load() != 0 {
		t.Errorf("cached match applied the digest %d times", sums.Load())
	}
	if s.Elapsed() != elapsed {
		t.Error("cached match changed the elapsed time")
	}
}

func TestState_Matches_NoPlaintextCache(t *testing.T) {
	reg, sums := newCountingRegistry(t)
	opts := testOptions(t)
	opts.Registry = reg
	opts.NoPlaintextCache = true

	s := hashing.New(opts)
	if _, err := s.HashPlaintext([]byte("pw"), "counting-sha256", 0, 4); err != nil {
		t.Fatal(err)
	}
	sums.Store(0)
	if ok, _ := s.Matches([]byte("pw")); !ok {
		t.Fatal("expected match")
	}
	if sums.Load() != 16 {
		t.Errorf("applications = %d, want 16", sums.Load())
	}
}

func TestState_Matches_OverwritesElapsed(t *testing.T) {
	opts := hashing.Options{Clock: newSteppingClock(10 * time.Millisecond), NoPlaintextCache: true}
	s := hashing.New(opts)
	if _, err := s.HashPlaintext([]byte("pw"), hashing.SHA256, 0, 5); err != nil {
		t.Fatal(err)
	}
	if s.Elapsed() != 60*time.Millisecond {
		t.Fatalf("calibration Elapsed = %s, want 60ms", s.Elapsed())
	}
	if ok, _ := s.Matches([]byte("pw")); !ok {
		t.Fatal("expected match")
	}
	if s.Elapsed() != 10*time.Millisecond {
		t.Errorf("verification Elapsed = %s, want 10ms (overwritten, not accumulated)", s.Elapsed())
	}
}

func TestState_Matches_EmptyPlaintext(t *testing.T) {
	src := hashing.New(testOptions(t))
	rec, _ := src.HashPlaintext(nil, hashing.SHA256, 0, 2)

	s, _ := hashing.Parse(rec, testOptions(t))
	ok, err := s.Matches([]byte{})
	if err != nil || !ok {
		t.Fatalf("empty plaintext round-trip: ok=%v err=%v", ok, err)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Targets and accessors
// ──────────────────────────────────────────────────────────────────────────────

func TestState_SetMinRequirements(t *testing.T) {
	s := hashing.New(testOptions(t))
	if err := s.SetMinRequirements(time.Second, 9); err != nil {
		t.Fatal(err)
	}
	if s.MinTime() != time.Second || s.MinIterationsLog2() != 9 {
		t.Errorf("targets = %s/%d", s.MinTime(), s.MinIterationsLog2())
	}
	if err := s.SetMinTime(-1); !errors.Is(err, hashing.ErrInvalidOption) {
		t.Errorf("SetMinTime(-1): expected ErrInvalidOption, got %v", err)
	}
	if err := s.SetMinIterationsLog2(63); !errors.Is(err, hashing.ErrInvalidOption) {
		t.Errorf("SetMinIterationsLog2(63): expected ErrInvalidOption, got %v", err)
	}
	if s.MinTime() != time.Second || s.MinIterationsLog2() != 9 {
		t.Error("rejected setter changed the targets")
	}
}

func TestState_Hash_AfterSetMinRequirements(t *testing.T) {
	s := hashing.New(testOptions(t))
	_, _ = s.HashPlaintext([]byte("pw"), hashing.SHA256, 0, 1)
	_ = s.SetMinIterationsLog2(4)
	if !s.NeedsHashing() {
		t.Fatal("NeedsHashing = false after raising the target")
	}
	if worked, err := s.Hash(); err != nil || !worked {
		t.Fatalf("Hash: worked=%v err=%v", worked, err)
	}
	if s.IterationsLog2() != 4 {
		t.Errorf("IterationsLog2 = %d, want 4", s.IterationsLog2())
	}
}

func TestState_AccessorsReturnCopies(t *testing.T) {
	s := hashing.New(testOptions(t))
	_, _ = s.HashPlaintext([]byte("pw"), hashing.SHA256, 0, 1)

	d := s.Digest()
	d[0] ^= 0xff
	salt := s.Salt()
	salt[0] ^= 0xff
	pt, _ := s.Plaintext()
	pt[0] = 'X'

	if bytes.Equal(d, s.Digest()) || bytes.Equal(salt, s.Salt()) {
		t.Error("mutating a returned slice changed the state")
	}
	if got, _ := s.Plaintext(); string(got) != "pw" {
		t.Errorf("plaintext = %q, want pw", got)
	}
}

func TestState_ZeroValueIsUsable(t *testing.T) {
	var s hashing.State
	if _, err := s.HashPlaintext([]byte("pw"), hashing.SHA256, 0, 2); err != nil {
		t.Fatalf("zero-value HashPlaintext: %v", err)
	}
	if ok, err := s.Matches([]byte("pw")); err != nil || !ok {
		t.Fatalf("zero-value Matches: ok=%v err=%v", ok, err)
	}
}
