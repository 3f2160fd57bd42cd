package validator

import (
	"sync"

	"github.com/kaspanet/ledgerd/domain/ledger/model"
	"github.com/kaspanet/ledgerd/infrastructure/logger"
)

// Incremental validates successive snapshots of the same chain. It
// remembers the longest prefix it verified so that a snapshot which only
// appended blocks costs a digest per new block. Prefix blocks are compared
// field by field against the verified copies, so a tampered prefix still
// triggers a full walk.
type Incremental struct {
	options Options

	mutex           sync.Mutex
	verified        []*model.Block
	belowDifficulty []int
}

// NewIncremental creates an Incremental validator with the given options.
func NewIncremental(options Options) *Incremental {
	return &Incremental{options: options}
}

// Validate returns the verdict over chain, identical to what ValidateChain
// would return.
func (v *Incremental) Validate(chain []*model.Block) *ValidationResult {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	start := 0
	var below []int
	if v.extendsVerified(chain) {
		start = len(v.verified)
		below = v.belowDifficulty
		log.Tracef("Validating %d new blocks on top of %d verified blocks", len(chain)-start, start)
	} else {
		onEnd := logger.LogAndMeasureExecutionTime(log, "Incremental.Validate full walk")
		defer onEnd()
	}

	result := validateFrom(chain, start, v.options, below)
	verifiedLength := len(chain)
	if !result.IsValid {
		verifiedLength = result.FirstInvalidIndex
	}
	// Only blocks before the divergence can be below difficulty
	v.verified = model.CloneBlocks(chain[:verifiedLength])
	v.belowDifficulty = append([]int(nil), result.BelowDifficulty...)
	return result
}

// Reset forgets the verified prefix.
func (v *Incremental) Reset() {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	v.verified = nil
	v.belowDifficulty = nil
}

func (v *Incremental) extendsVerified(chain []*model.Block) bool {
	if len(v.verified) == 0 || len(chain) < len(v.verified) {
		return false
	}
	for i, verifiedBlock := range v.verified {
		if !verifiedBlock.Equal(chain[i]) {
			return false
		}
	}
	return true
}
