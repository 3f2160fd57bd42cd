package ledgerconfig

import (
	"strconv"

	"github.com/kaspanet/ledgerd/domain/ledger/model"
	"github.com/kaspanet/ledgerd/domain/ledger/ruleerrors"
	"github.com/kaspanet/ledgerd/domain/ledger/utils/fingerprint"
	"github.com/pkg/errors"
)

const (
	// DefaultDifficulty is the number of leading zero hex digits a block
	// fingerprint is mined for.
	DefaultDifficulty = 2

	// DefaultMaxMiningAttempts is the number of fingerprints the miner
	// computes before it abandons the search and seals the block anyway.
	DefaultMaxMiningAttempts = 100000

	// DefaultBlockIDPrefix is prepended to a block index to form its
	// persistence identifier.
	DefaultBlockIDPrefix = "block_"

	// DefaultCollection is the name of the document collection blocks are
	// stored under.
	DefaultCollection = "blockchain_data"
)

// Params defines a ledger by its mining parameters and by how its blocks
// are named in the persistence layer.
type Params struct {
	// Name is a human-readable identifier for the parameter set.
	Name string

	// Difficulty is the required number of leading zero hex digits.
	Difficulty int

	// MaxMiningAttempts caps the proof-of-work search of a single block.
	MaxMiningAttempts uint64

	// BlockIDPrefix and Collection define where blocks are persisted.
	BlockIDPrefix string
	Collection    string

	// GenesisPayload is the sentinel content of block 0.
	GenesisPayload model.Payload

	// VerifyGenesis selects hardened validation, which re-derives the
	// genesis block as well. Baseline validation starts at block 1.
	VerifyGenesis bool
}

// Clone returns a copy of the params that can be modified freely.
func (p *Params) Clone() *Params {
	clone := *p
	clone.GenesisPayload = p.GenesisPayload.Clone()
	return &clone
}

func defaultGenesisPayload() model.Payload {
	return model.Payload{
		"sender":   "System",
		"receiver": "System",
		"item":     "Genesis Block",
	}
}

// DefaultParams defines the parameters of a regular ledger.
var DefaultParams = Params{
	Name:              "default",
	Difficulty:        DefaultDifficulty,
	MaxMiningAttempts: DefaultMaxMiningAttempts,
	BlockIDPrefix:     DefaultBlockIDPrefix,
	Collection:        DefaultCollection,
	GenesisPayload:    defaultGenesisPayload(),
	VerifyGenesis:     true,
}

// SimnetParams defines a ledger for tests and simulations: mining is
// trivially fast and the attempt cap is small.
var SimnetParams = Params{
	Name:              "simnet",
	Difficulty:        1,
	MaxMiningAttempts: 1000,
	BlockIDPrefix:     DefaultBlockIDPrefix,
	Collection:        "simnet_blockchain_data",
	GenesisPayload:    defaultGenesisPayload(),
	VerifyGenesis:     true,
}

// BlockID returns the persistence identifier of the block at index.
func (p *Params) BlockID(index uint64) string {
	return p.BlockIDPrefix + strconv.FormatUint(index, 10)
}

// Validate checks that the params can drive a ledger.
func (p *Params) Validate() error {
	if p.Difficulty < 0 {
		return errors.Wrapf(ruleerrors.ErrNegativeDifficulty, "difficulty %d", p.Difficulty)
	}
	if p.Difficulty > fingerprint.Length {
		return errors.Wrapf(ruleerrors.ErrDifficultyTooHigh, "difficulty %d exceeds %d digits",
			p.Difficulty, fingerprint.Length)
	}
	if p.MaxMiningAttempts == 0 {
		return errors.WithStack(ruleerrors.ErrNoMiningAttempts)
	}
	if p.BlockIDPrefix == "" {
		return errors.New("block id prefix must not be empty")
	}
	if p.Collection == "" {
		return errors.New("collection must not be empty")
	}
	if p.GenesisPayload == nil {
		return errors.New("genesis payload must not be nil")
	}
	return nil
}
