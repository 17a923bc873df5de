// Package hashing provides self-calibrating, iterated-digest password hashing.
//
// # Architecture
//
// The central type is [State].  It holds a salt, an algorithm, and a digest
// chain H(H(…H(salt‖plaintext)…)) whose length is always 2^k, where k is the
// work exponent ([State.IterationsLog2]).  Instead of a hand-tuned cost
// factor the caller states two targets:
//
//   - a minimum cumulative hashing time, and
//   - a minimum work exponent.
//
// [State.HashPlaintext] doubles the chain round by round until both are
// met, so the cost adapts to the speed of the host.  Because a chain can be
// extended without knowing the plaintext, stored hashes can be strengthened
// later ([State.Hash], [Hasher.Upgrade]) as hardware gets faster.
//
// Digests are looked up by name in a [Registry].  The built-in set covers
// the SHA-2, SHA-3, BLAKE, BLAKE2, BLAKE3, RIPEMD-160, Whirlpool, MD4 and
// MD5 families; [Registry.Register] adds more.
//
// [Hasher] wraps [State] for callers that store hashes as strings.
//
// # Quick start
//
//	h, err := hashing.NewHasher(hashing.DefaultHasherOptions()) // whirlpool, ≥ 2s, ≥ 2^17
//	if err != nil { log.Fatal(err) }
//
//	record, _ := h.Make("my-secret-password")
//	ok, _     := h.Check("my-secret-password", record) // true
//
// # Record format
//
// A [State] serialises to a JSON object holding exactly the fields needed to
// verify and continue it:
//
//	{"hash":"<base64>","salt":"<base64>","algorithm":"whirlpool","time":2.13,"iterations_log2":21}
//
// Records missing a field or carrying an unknown one are rejected with
// [ErrDeserialization].
//
// # Upgrading stored hashes
//
// Call [Hasher.NeedsRehash] on every successful login.  A record that only
// falls short of the time or work targets can be upgraded offline with
// [Hasher.Upgrade]; moving to a different algorithm needs the password:
//
//	ok, _ := h.Check(password, stored)
//	if ok {
//	    if needs, _ := h.NeedsRehash(stored); needs {
//	        upgraded, _, _ := h.Rehash(password, stored)
//	        persist(userID, upgraded)
//	    }
//	}
//
// # Migrating bcrypt and Argon2 hashes
//
// With [HasherOptions.AcceptLegacy] set, [Hasher.Check] also verifies
// bcrypt ($2y$, $2a$, $2b$) and Argon2 PHC strings, [Hasher.NeedsRehash]
// reports them as stale, and [Hasher.Rehash] replaces them with an adaptive
// record once the password has been verified.
package hashing
