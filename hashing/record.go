package hashing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Record is the persisted form of a [State].
//
// Only the fields needed to verify and continue a hash are stored.  The
// plaintext is secret and the calibration targets are policy supplied by the
// caller on every load, so neither is persisted.
//
// Binary fields are standard base64 in JSON:
//
//	{"hash":"…","salt":"…","algorithm":"sha3-512","time":2.04,"iterations_log2":19}
type Record struct {
	// Hash is the digest after 2^IterationsLog2 applications.
	Hash []byte `json:"hash"`

	// Salt is prepended to the plaintext; its length is the digest size.
	Salt []byte `json:"salt"`

	// Algorithm names the digest.
	Algorithm Algorithm `json:"algorithm"`

	// Time is the recorded hashing time in seconds.
	Time float64 `json:"time"`

	// IterationsLog2 is the work exponent.
	IterationsLog2 uint `json:"iterations_log2"`
}

// recordSchema rejects missing and unknown fields before the record is
// decoded into typed values.
const recordSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["hash", "salt", "algorithm", "time", "iterations_log2"],
	"additionalProperties": false,
	"properties": {
		"hash":            {"type": "string", "minLength": 1},
		"salt":            {"type": "string"},
		"algorithm":       {"type": "string", "minLength": 1},
		"time":            {"type": "number", "minimum": 0},
		"iterations_log2": {"type": "integer", "minimum": 0, "maximum": 62}
	}
}`

// maxRecordSeconds is the largest time that fits in a time.Duration.
const maxRecordSeconds = float64(math.MaxInt64 / int64(time.Second))

var compiledRecordSchema = sync.OnceValue(func() *jsonschema.Schema {
	return jsonschema.MustCompileString("hash-record.schema.json", recordSchema)
})

// Record returns the persisted fields of s.
func (s *State) Record() Record {
	return Record{
		Hash:           clone(s.digest),
		Salt:           clone(s.salt),
		Algorithm:      s.algorithm,
		Time:           s.elapsed.Seconds(),
		IterationsLog2: s.iterationsLog2,
	}
}

// MarshalJSON serialises the persisted fields of s.
func (s *State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Record())
}

// UnmarshalJSON restores s from a record.  The plaintext becomes unknown and
// both calibration targets are reset to zero.  s is left untouched when the
// record is rejected.
func (s *State) UnmarshalJSON(data []byte) error {
	rec, err := decodeRecord(data)
	if err != nil {
		return err
	}
	if err := s.validateRecord(rec); err != nil {
		return err
	}

	s.digest = rec.Hash
	s.salt = rec.Salt
	s.algorithm = rec.Algorithm
	s.elapsed = secondsToDuration(rec.Time)
	s.iterationsLog2 = rec.IterationsLog2
	s.plaintext, s.known = nil, false
	s.minTime, s.minIterationsLog2 = 0, 0
	return nil
}

// Parse restores a [State] from a serialised record.
//
// All [ErrDeserialization] failures can be detected with [errors.Is]; a
// record naming an unregistered digest additionally matches
// [ErrUnsupportedAlgorithm].
func Parse(data []byte, opts Options) (*State, error) {
	s := New(opts)
	if err := s.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return s, nil
}

func decodeRecord(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrDeserialization, err)
	}
	if dec.More() {
		return Record{}, fmt.Errorf("%w: trailing data after record", ErrDeserialization)
	}
	if err := compiledRecordSchema().Validate(raw); err != nil {
		return Record{}, fmt.Errorf("%w: %s", ErrDeserialization, schemaMessage(err))
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrDeserialization, err)
	}
	return rec, nil
}

func (s *State) validateRecord(rec Record) error {
	size, err := s.options().Registry.Size(rec.Algorithm)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeserialization, err)
	}
	if len(rec.Hash) != size {
		return fmt.Errorf("%w: hash is %d bytes, %s produces %d", ErrDeserialization, len(rec.Hash), rec.Algorithm, size)
	}
	if len(rec.Salt) != size {
		return fmt.Errorf("%w: salt is %d bytes, %s requires %d", ErrDeserialization, len(rec.Salt), rec.Algorithm, size)
	}
	if math.IsInf(rec.Time, 0) || math.IsNaN(rec.Time) || rec.Time > maxRecordSeconds {
		return fmt.Errorf("%w: time %v out of range", ErrDeserialization, rec.Time)
	}
	return nil
}

// schemaMessage flattens a multi-line validation error onto one line.
func schemaMessage(err error) string {
	lines := strings.Split(strings.TrimSpace(err.Error()), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.Join(lines, "; ")
}

func secondsToDuration(sec float64) time.Duration {
	return time.Duration(math.Round(sec * float64(time.Second)))
}
