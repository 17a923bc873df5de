package hashing

import "errors"

// Sentinel errors returned by hashing operations.
//
// Use [errors.Is] for comparisons:
//
//	_, err := state.Hash(hashing.WithAlgorithm(hashing.SHA3_512))
//	if errors.Is(err, hashing.ErrPlaintextRequired) {
//	    // verify the password first, then retry
//	}
var (
	// ErrUnsupportedAlgorithm is returned when an algorithm name is not
	// registered in the [Registry] in use.
	ErrUnsupportedAlgorithm = errors.New("hashing: unsupported hash algorithm")

	// ErrEmptyHash is returned by [State.Matches] when the state holds no
	// digest to compare against.
	ErrEmptyHash = errors.New("hashing: cannot compare plaintext without hash")

	// ErrNoExistingHash is returned by [State.Hash] when there is no digest
	// to continue from.  Hash a plaintext or unmarshal a record first.
	ErrNoExistingHash = errors.New("hashing: cannot continue hashing without hash")

	// ErrPlaintextRequired is returned by [State.Hash] when a different
	// algorithm is requested but the plaintext is unknown.  The digest chain
	// must restart from the raw secret, so call [State.Matches] first.
	ErrPlaintextRequired = errors.New("hashing: cannot re-hash with different algorithm without plaintext")

	// ErrDeserialization is returned when a serialised record is malformed,
	// is missing a required field, or carries an unexpected one.
	ErrDeserialization = errors.New("hashing: invalid hash record")

	// ErrInvalidOption is returned when a calibration target or constructor
	// option falls outside the allowed range.
	ErrInvalidOption = errors.New("hashing: invalid option value")
)
