package hashing_test

import (
	"bytes"
	"crypto/sha256"
	"hash"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/hasbyte1/go-adaptive-hash/hashing"
)

// steppingClock advances by step on every Now, so each timed section of
// code measures exactly step.
type steppingClock struct {
	*testingclock.FakePassiveClock
	step time.Duration
}

func newSteppingClock(step time.Duration) *steppingClock {
	return &steppingClock{
		FakePassiveClock: testingclock.NewFakePassiveClock(time.Unix(1_700_000_000, 0)),
		step:             step,
	}
}

func (c *steppingClock) Now() time.Time {
	now := c.FakePassiveClock.Now()
	c.SetTime(now.Add(c.step))
	return now
}

// countingSHA256 counts completed applications of SHA-256.
type countingSHA256 struct {
	hash.Hash
	sums *atomic.Int64
}

func (c countingSHA256) Sum(b []byte) []byte {
	c.sums.Add(1)
	return c.Hash.Sum(b)
}

// newCountingRegistry returns a registry holding "counting-sha256" and the
// counter it increments.
func newCountingRegistry(tb testing.TB) (*hashing.Registry, *atomic.Int64) {
	tb.Helper()
	var sums atomic.Int64
	r := hashing.NewRegistry()
	err := r.Register("counting-sha256", func() hash.Hash {
		return countingSHA256{Hash: sha256.New(), sums: &sums}
	})
	if err != nil {
		tb.Fatalf("Register: %v", err)
	}
	return r, &sums
}

// testOptions returns State options with a deterministic clock that
// measures every round as 1ms and a testr logger.
func testOptions(t *testing.T) hashing.Options {
	t.Helper()
	return hashing.Options{
		Clock:  newSteppingClock(time.Millisecond),
		Logger: testr.New(t),
	}
}

// fastHasherOpts returns a policy that calibrates in a handful of rounds.
// These are intentionally weak. Do NOT use in production.
func fastHasherOpts(t *testing.T) hashing.HasherOptions {
	return hashing.HasherOptions{
		Algorithm:         hashing.SHA256,
		MinTime:           0,
		MinIterationsLog2: 4,
		State:             testOptions(t),
	}
}

// iterate applies the named digest n times to in.
func iterate(t *testing.T, a hashing.Algorithm, in []byte, n int) []byte {
	t.Helper()
	h, err := hashing.DefaultRegistry().New(a)
	if err != nil {
		t.Fatalf("New(%q): %v", a, err)
	}
	buf := bytes.Clone(in)
	for i := 0; i < n; i++ {
		h.Reset()
		h.Write(buf)
		buf = h.Sum(nil)
	}
	return buf
}
