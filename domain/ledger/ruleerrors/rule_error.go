package ruleerrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// These constants are used to identify a specific RuleError.
var (
	// ErrNegativeDifficulty indicates a mining request with a difficulty
	// below zero.
	ErrNegativeDifficulty = newRuleError("ErrNegativeDifficulty")

	// ErrDifficultyTooHigh indicates a difficulty that requires more
	// leading zeros than a fingerprint has digits.
	ErrDifficultyTooHigh = newRuleError("ErrDifficultyTooHigh")

	// ErrNoMiningAttempts indicates an attempt cap of zero, which would
	// seal blocks without ever computing a fingerprint.
	ErrNoMiningAttempts = newRuleError("ErrNoMiningAttempts")

	// ErrUnserializablePayload indicates a payload that cannot be brought
	// into its canonical form.
	ErrUnserializablePayload = newRuleError("ErrUnserializablePayload")

	// ErrNoGenesis indicates an append to a chain that has not been
	// bootstrapped with a genesis block yet.
	ErrNoGenesis = newRuleError("ErrNoGenesis")

	// ErrNilBlock indicates a nil block where a sealed block is required.
	ErrNilBlock = newRuleError("ErrNilBlock")

	// ErrInvalidBlockDocument indicates a persisted block record that
	// cannot be decoded.
	ErrInvalidBlockDocument = newRuleError("ErrInvalidBlockDocument")
)

// RuleError identifies a rule violation. It is used to indicate that
// a ledger operation was refused because one of its preconditions does not
// hold, as opposed to an unexpected failure. The caller can use
// errors.As or errors.Is to distinguish between the two.
type RuleError struct {
	message string
	inner   error
}

// Error satisfies the error interface and prints human-readable errors.
func (e RuleError) Error() string {
	if e.inner != nil {
		return e.message + ": " + e.inner.Error()
	}
	return e.message
}

// Unwrap satisfies the errors.Unwrap interface
func (e RuleError) Unwrap() error {
	return e.inner
}

// Cause satisfies the github.com/pkg/errors.Cause interface
func (e RuleError) Cause() error {
	return e.inner
}

func newRuleError(message string) RuleError {
	return RuleError{message: message, inner: nil}
}

// ErrTailAdvanced indicates that the chain tail moved between the moment a
// block started being mined and the moment it was about to be appended.
type ErrTailAdvanced struct {
	ExpectedIndex       uint64
	ExpectedFingerprint string
	ActualIndex         uint64
	ActualFingerprint   string
}

func (e ErrTailAdvanced) Error() string {
	return fmt.Sprintf("expected tail %d (%s) but found %d (%s)",
		e.ExpectedIndex, e.ExpectedFingerprint, e.ActualIndex, e.ActualFingerprint)
}

// NewErrTailAdvanced creates a new ErrTailAdvanced error wrapped in a RuleError
func NewErrTailAdvanced(expectedIndex uint64, expectedFingerprint string,
	actualIndex uint64, actualFingerprint string) error {

	return errors.WithStack(RuleError{
		message: "ErrTailAdvanced",
		inner: ErrTailAdvanced{
			ExpectedIndex:       expectedIndex,
			ExpectedFingerprint: expectedFingerprint,
			ActualIndex:         actualIndex,
			ActualFingerprint:   actualFingerprint,
		},
	})
}

// IsTailAdvanced returns whether err reports a compare-and-append conflict.
func IsTailAdvanced(err error) bool {
	var tailAdvanced ErrTailAdvanced
	return errors.As(err, &tailAdvanced)
}
