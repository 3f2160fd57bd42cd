package validator

import (
	"fmt"

	"github.com/kaspanet/ledgerd/domain/ledger/model"
	"github.com/kaspanet/ledgerd/domain/ledger/utils/fingerprint"
)

// Reason names the kind of divergence that made a chain invalid.
type Reason int

const (
	// ReasonNone is the reason of a valid chain.
	ReasonNone Reason = iota

	// ReasonFingerprintMismatch means the stored fingerprint differs from
	// the one recomputed from the block's fields.
	ReasonFingerprintMismatch

	// ReasonBrokenLinkage means the block doesn't point at the fingerprint
	// of its predecessor.
	ReasonBrokenLinkage

	// ReasonIndexDiscontinuity means the block index isn't its
	// predecessor's index plus one.
	ReasonIndexDiscontinuity

	// ReasonMissingBlock means the chain holds no block at that position.
	ReasonMissingBlock
)

var reasonStrings = map[Reason]string{
	ReasonNone:                "none",
	ReasonFingerprintMismatch: "fingerprint mismatch",
	ReasonBrokenLinkage:       "broken linkage",
	ReasonIndexDiscontinuity:  "index discontinuity",
	ReasonMissingBlock:        "missing block",
}

func (r Reason) String() string {
	if s, ok := reasonStrings[r]; ok {
		return s
	}
	return fmt.Sprintf("Reason(%d)", int(r))
}

// Options selects how strictly a chain is checked.
type Options struct {
	// VerifyGenesis also checks block 0: its index, its sentinel
	// predecessor and its fingerprint, and enables index continuity
	// checks. Without it block 0 is trusted as is.
	VerifyGenesis bool

	// Difficulty is used to report blocks sealed below it. It never
	// affects validity.
	Difficulty int
}

// ValidationResult is the integrity verdict over a chain.
type ValidationResult struct {
	IsValid bool

	// FirstInvalidIndex is the position of the first divergent block, or
	// -1 for a valid chain.
	FirstInvalidIndex int
	Reason            Reason

	// BelowDifficulty lists the positions of verified blocks whose
	// fingerprint doesn't meet Options.Difficulty, typically blocks whose
	// mining was abandoned.
	BelowDifficulty []int
}

func (r *ValidationResult) String() string {
	if r.IsValid {
		return "valid"
	}
	return fmt.Sprintf("invalid at %d: %s", r.FirstInvalidIndex, r.Reason)
}

func validResult(belowDifficulty []int) *ValidationResult {
	return &ValidationResult{IsValid: true, FirstInvalidIndex: -1, Reason: ReasonNone, BelowDifficulty: belowDifficulty}
}

func invalidResult(position int, reason Reason, belowDifficulty []int) *ValidationResult {
	return &ValidationResult{IsValid: false, FirstInvalidIndex: position, Reason: reason, BelowDifficulty: belowDifficulty}
}

// ValidateChain walks chain in order and reports the first block that
// breaks digest integrity, linkage or, when genesis is verified, index
// continuity. Empty and genesis-only chains are valid. ValidateChain never
// fails: every divergence is part of the result.
func ValidateChain(chain []*model.Block, options Options) *ValidationResult {
	return validateFrom(chain, 0, options, nil)
}

// validateFrom validates chain assuming chain[:start] was already verified
// and produced belowDifficulty.
func validateFrom(chain []*model.Block, start int, options Options, belowDifficulty []int) *ValidationResult {
	below := append([]int(nil), belowDifficulty...)
	for position := start; position < len(chain); position++ {
		block := chain[position]
		if block == nil {
			return invalidResult(position, ReasonMissingBlock, below)
		}

		if position == 0 {
			if options.VerifyGenesis {
				reason, ok := checkGenesis(block)
				if !ok {
					return invalidResult(position, reason, below)
				}
			}
		} else {
			reason, ok := checkBlock(block, chain[position-1], options)
			if !ok {
				return invalidResult(position, reason, below)
			}
		}

		if !fingerprint.HasLeadingZeros(block.Hash, options.Difficulty) {
			below = append(below, position)
		}
	}
	return validResult(below)
}

func checkGenesis(genesis *model.Block) (Reason, bool) {
	if genesis.Index != 0 {
		return ReasonIndexDiscontinuity, false
	}
	if genesis.PreviousHash != model.GenesisPreviousHash {
		return ReasonBrokenLinkage, false
	}
	if !hasValidFingerprint(genesis) {
		return ReasonFingerprintMismatch, false
	}
	return ReasonNone, true
}

func checkBlock(block *model.Block, previous *model.Block, options Options) (Reason, bool) {
	if !hasValidFingerprint(block) {
		return ReasonFingerprintMismatch, false
	}
	if previous == nil || block.PreviousHash != previous.Hash {
		return ReasonBrokenLinkage, false
	}
	if options.VerifyGenesis && block.Index != previous.Index+1 {
		return ReasonIndexDiscontinuity, false
	}
	return ReasonNone, true
}

func hasValidFingerprint(block *model.Block) bool {
	recomputed, err := fingerprint.HashBlock(block)
	if err != nil {
		// A payload that can't be canonicalized can't have been sealed
		return false
	}
	return recomputed == block.Hash
}
