// Package bfverr defines the error taxonomy shared by bfv, cuckoo, and pir:
// sentinel categories a caller can match with errors.Is, wrapped with the
// offending value by the site that detects the problem. See spec.md §7.
package bfverr

import "errors"

var (
	// ErrValidation: a configuration, sharding, cuckoo parameter, or PIR
	// algorithm identifier violates an invariant.
	ErrValidation = errors.New("validation error")

	// ErrInsufficientNoiseBudget: noise-budget below threshold detected
	// during validation; the measured budget accompanies this error.
	ErrInsufficientNoiseBudget = errors.New("cryptographic insufficiency: noise budget too low")

	// ErrMissingKey: the operation needed a Galois key or relinearization
	// key that is not present in the evaluation key.
	ErrMissingKey = errors.New("missing evaluation key material")

	// ErrLevelMismatch: operands disagree on RNS level.
	ErrLevelMismatch = errors.New("level mismatch")

	// ErrFormatMismatch: operands disagree on Coeff/Eval format. Resolves
	// spec.md §9's open question in favor of rejecting the mismatch rather
	// than returning nonsense.
	ErrFormatMismatch = errors.New("format mismatch")

	// ErrDomainOverflow: a keyword-value pair whose single-entry bucket
	// would exceed the configured maximum serialized bucket size.
	ErrDomainOverflow = errors.New("entry exceeds maximum serialized bucket size")

	// ErrCuckooExhausted: cuckoo insertion exhausted its eviction budget
	// with expansion disabled.
	ErrCuckooExhausted = errors.New("cuckoo insertion exhausted eviction budget")

	// ErrUnsupportedAlgorithm: a PIR algorithm identifier is reserved but
	// not implemented (spec.md §9, the "aclsPir" open question).
	ErrUnsupportedAlgorithm = errors.New("unsupported PIR algorithm")
)
