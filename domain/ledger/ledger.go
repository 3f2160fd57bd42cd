package ledger

import (
	"sync"

	"github.com/kaspanet/ledgerd/domain/ledger/model"
	"github.com/kaspanet/ledgerd/domain/ledger/processes/miner"
	"github.com/kaspanet/ledgerd/domain/ledger/processes/validator"
	"github.com/kaspanet/ledgerd/domain/ledger/ruleerrors"
	"github.com/kaspanet/ledgerd/domain/ledgerconfig"
	"github.com/pkg/errors"
)

// Ledger appends mined blocks to a chain owned by a BlockStore and checks
// the integrity of that chain.
type Ledger struct {
	store   model.BlockStore
	params  *ledgerconfig.Params
	miner   *miner.Miner
	options validator.Options

	// writeLock serializes the operations that append to the store, from
	// the tail check to the put.
	writeLock sync.Mutex
}

// ChainVerdict is the integrity verdict over a snapshot of the chain.
type ChainVerdict struct {
	Blocks []*model.Block
	Result *validator.ValidationResult
}

// AppendResult is the result of an asynchronous append.
type AppendResult struct {
	Block *model.Block
	Err   error
}

// New creates a Ledger from config.
func New(config *Config) (*Ledger, error) {
	if config.Store == nil {
		return nil, errors.New("a block store is required")
	}
	params := config.Params
	if params == nil {
		params = &ledgerconfig.DefaultParams
	}
	params = params.Clone()
	err := params.Validate()
	if err != nil {
		return nil, err
	}

	blockMiner, err := miner.New(&miner.Config{
		Difficulty:  params.Difficulty,
		MaxAttempts: params.MaxMiningAttempts,
		TimeSource:  config.TimeSource,
	})
	if err != nil {
		return nil, err
	}

	return &Ledger{
		store:  config.Store,
		params: params,
		miner:  blockMiner,
		options: validator.Options{
			VerifyGenesis: params.VerifyGenesis,
			Difficulty:    params.Difficulty,
		},
	}, nil
}

// Params returns the parameters the ledger runs with.
func (l *Ledger) Params() *ledgerconfig.Params {
	return l.params.Clone()
}

// EnsureGenesis mines and stores the genesis block if the store holds no
// block yet. It returns the new genesis block, or nil if the chain was
// already bootstrapped.
func (l *Ledger) EnsureGenesis() (*model.Block, error) {
	l.writeLock.Lock()
	defer l.writeLock.Unlock()

	blocks, err := l.store.Blocks()
	if err != nil {
		return nil, errors.Wrap(err, "failed reading the chain")
	}
	if len(blocks) > 0 {
		log.Debugf("Chain already holds %d blocks, not creating a genesis block", len(blocks))
		return nil, nil
	}

	genesis, outcome, err := l.miner.Mine(0, model.GenesisPreviousHash, l.params.GenesisPayload)
	if err != nil {
		return nil, err
	}
	blockID := l.params.BlockID(0)
	err = l.store.Put(blockID, genesis)
	if err != nil {
		return nil, errors.Wrapf(err, "failed storing genesis block %s", blockID)
	}
	log.Infof("Created genesis block %s (%s)", genesis.Hash, outcome.Kind)
	return genesis, nil
}

// AppendTransaction mines a block carrying payload on top of the tail of
// chain and appends it to the store.
//
// chain is the snapshot the caller decided to extend. If the store's tail
// moved since, the mined block is discarded and an ErrTailAdvanced rule
// error is returned; the caller may take a new snapshot and retry.
func (l *Ledger) AppendTransaction(chain []*model.Block, payload model.Payload) (*model.Block, error) {
	if len(chain) == 0 {
		return nil, errors.WithStack(ruleerrors.ErrNoGenesis)
	}
	tail := chain[len(chain)-1]
	if tail == nil {
		return nil, errors.Wrap(ruleerrors.ErrNilBlock, "the chain tail is missing")
	}

	l.writeLock.Lock()
	defer l.writeLock.Unlock()

	block, outcome, err := l.miner.Mine(tail.Index+1, tail.Hash, payload)
	if err != nil {
		return nil, err
	}

	current, err := l.store.Blocks()
	if err != nil {
		return nil, errors.Wrap(err, "failed reading the chain")
	}
	if len(current) == 0 {
		return nil, ruleerrors.NewErrTailAdvanced(tail.Index, tail.Hash, 0, "")
	}
	currentTail := current[len(current)-1]
	if currentTail.Index != tail.Index || currentTail.Hash != tail.Hash {
		return nil, ruleerrors.NewErrTailAdvanced(tail.Index, tail.Hash, currentTail.Index, currentTail.Hash)
	}

	blockID := l.params.BlockID(block.Index)
	err = l.store.Put(blockID, block)
	if err != nil {
		return nil, errors.Wrapf(err, "failed storing %s", blockID)
	}
	log.Infof("Appended block %d with fingerprint %s (%s after %d attempts)",
		block.Index, block.Hash, outcome.Kind, outcome.Attempts)
	return block, nil
}

// Append extends the store's current chain with a block carrying payload.
func (l *Ledger) Append(payload model.Payload) (*model.Block, error) {
	chain, err := l.store.Blocks()
	if err != nil {
		return nil, errors.Wrap(err, "failed reading the chain")
	}
	return l.AppendTransaction(chain, payload)
}

// AppendAsync runs Append in the background, so that the caller isn't
// blocked by the proof-of-work search. The returned channel receives
// exactly one result.
func (l *Ledger) AppendAsync(payload model.Payload) <-chan *AppendResult {
	results := make(chan *AppendResult, 1)
	payload = payload.Clone()
	spawn("Ledger.AppendAsync", func() {
		block, err := l.Append(payload)
		results <- &AppendResult{Block: block, Err: err}
		close(results)
	})
	return results
}

// Validate returns the verdict over the store's current chain.
func (l *Ledger) Validate() (*validator.ValidationResult, error) {
	blocks, err := l.store.Blocks()
	if err != nil {
		return nil, errors.Wrap(err, "failed reading the chain")
	}
	return validator.ValidateChain(blocks, l.options), nil
}

// Watch re-validates the chain every time the store changes and reports
// the verdict to onVerdict. onVerdict is first called with the current
// chain. Calls never overlap.
func (l *Ledger) Watch(onVerdict func(verdict *ChainVerdict)) (unsubscribe func(), err error) {
	incremental := validator.NewIncremental(l.options)
	unsubscribe, err = l.store.Subscribe(func(blocks []*model.Block) {
		result := incremental.Validate(blocks)
		if result.IsValid {
			log.Debugf("Chain of %d blocks is valid", len(blocks))
		} else {
			log.Warnf("Chain of %d blocks is tampered: %s", len(blocks), result)
		}
		onVerdict(&ChainVerdict{Blocks: blocks, Result: result})
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed subscribing to the block store")
	}
	return unsubscribe, nil
}

// Blocks returns the store's current chain.
func (l *Ledger) Blocks() ([]*model.Block, error) {
	blocks, err := l.store.Blocks()
	if err != nil {
		return nil, errors.Wrap(err, "failed reading the chain")
	}
	return blocks, nil
}

// Tail returns the last block of the chain, or nil for an empty chain.
func (l *Ledger) Tail() (*model.Block, error) {
	blocks, err := l.Blocks()
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, nil
	}
	return blocks[len(blocks)-1], nil
}
