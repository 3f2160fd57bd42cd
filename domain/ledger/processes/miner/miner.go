package miner

import (
	"sync/atomic"
	"time"

	"github.com/kaspanet/ledgerd/domain/ledger/model"
	"github.com/kaspanet/ledgerd/domain/ledger/ruleerrors"
	"github.com/kaspanet/ledgerd/domain/ledger/utils/fingerprint"
	"github.com/kaspanet/ledgerd/domain/ledger/utils/serialization"
	"github.com/kaspanet/ledgerd/util/mstime"
	"github.com/pkg/errors"
)

var hashesTried uint64

// SampleHashesTried returns the number of fingerprints computed by all
// miners since the previous sample.
func SampleHashesTried() uint64 {
	return atomic.SwapUint64(&hashesTried, 0)
}

// TimeSource returns the instant a block starts being mined at.
type TimeSource func() time.Time

// Config holds the proof-of-work parameters of a Miner.
type Config struct {
	// Difficulty is the number of leading zero hex digits a fingerprint
	// must have.
	Difficulty int

	// MaxAttempts is the number of nonces tried before the search is
	// abandoned.
	MaxAttempts uint64

	// TimeSource defaults to mstime.Now.
	TimeSource TimeSource
}

// Miner seals blocks by searching for a nonce whose block fingerprint
// satisfies the difficulty. It holds no chain state and is safe for
// concurrent use.
type Miner struct {
	difficulty  int
	maxAttempts uint64
	now         TimeSource
}

// New creates a Miner, rejecting parameters no search could ever honor.
func New(config *Config) (*Miner, error) {
	if config.Difficulty < 0 {
		return nil, errors.Wrapf(ruleerrors.ErrNegativeDifficulty, "difficulty %d", config.Difficulty)
	}
	if config.Difficulty > fingerprint.Length {
		return nil, errors.Wrapf(ruleerrors.ErrDifficultyTooHigh, "difficulty %d exceeds %d digits",
			config.Difficulty, fingerprint.Length)
	}
	if config.MaxAttempts == 0 {
		return nil, errors.WithStack(ruleerrors.ErrNoMiningAttempts)
	}

	now := config.TimeSource
	if now == nil {
		now = mstime.Now
	}
	return &Miner{
		difficulty:  config.Difficulty,
		maxAttempts: config.MaxAttempts,
		now:         now,
	}, nil
}

// Difficulty returns the difficulty the miner searches for.
func (m *Miner) Difficulty() int {
	return m.difficulty
}

// Mine builds the block at index on top of previousHash carrying payload.
//
// The timestamp is taken once, before the search. Nonces are tried from 0
// upwards. When MaxAttempts nonces fail the search is abandoned and the
// block is sealed with the last nonce tried and its fingerprint; the
// outcome tells the two cases apart. A cap of n tries nonces 0..n-1, so
// an abandoned block carries nonce n-1.
func (m *Miner) Mine(index uint64, previousHash string, payload model.Payload) (
	*model.Block, *MiningOutcome, error) {

	canonicalPayload, err := serialization.CanonicalPayload(payload)
	if err != nil {
		return nil, nil, err
	}
	// The block carries the payload the way a store reads it back
	data, err := model.DecodePayload([]byte(canonicalPayload))
	if err != nil {
		return nil, nil, errors.Wrap(ruleerrors.ErrUnserializablePayload, err.Error())
	}
	timestamp := mstime.ReduceToMillisecondPrecision(m.now())
	prefix := fingerprint.NewBlockPrefixFromCanonical(index, previousHash, timestamp, canonicalPayload)

	outcome := m.search(prefix)
	if outcome.Kind == OutcomeAbandoned {
		log.Warnf("Gave up mining block %d after %d attempts, sealing it with fingerprint %s below difficulty %d",
			index, outcome.Attempts, outcome.Fingerprint, m.difficulty)
	} else {
		log.Debugf("Mined block %d with fingerprint %s after %d attempts", index, outcome.Fingerprint, outcome.Attempts)
	}

	block := &model.Block{
		Index:        index,
		Timestamp:    timestamp,
		Data:         data,
		PreviousHash: previousHash,
		Hash:         outcome.Fingerprint,
		Nonce:        outcome.Nonce,
	}
	return block, outcome, nil
}

func (m *Miner) search(prefix *fingerprint.BlockPrefix) *MiningOutcome {
	var nonce uint64
	var blockFingerprint string
	for attempts := uint64(1); ; attempts++ {
		blockFingerprint = fingerprint.BlockFingerprintFromPrefix(prefix, nonce)
		atomic.AddUint64(&hashesTried, 1)
		if fingerprint.HasLeadingZeros(blockFingerprint, m.difficulty) {
			return &MiningOutcome{Kind: OutcomeFound, Nonce: nonce, Fingerprint: blockFingerprint, Attempts: attempts}
		}
		if attempts == m.maxAttempts {
			return &MiningOutcome{Kind: OutcomeAbandoned, Nonce: nonce, Fingerprint: blockFingerprint, Attempts: attempts}
		}
		nonce++
	}
}
