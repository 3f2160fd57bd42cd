package ledger

import (
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/kaspanet/ledgerd/domain/ledger/datastructures/blockstore"
	"github.com/kaspanet/ledgerd/domain/ledger/model"
	"github.com/kaspanet/ledgerd/domain/ledger/processes/miner"
	"github.com/kaspanet/ledgerd/domain/ledger/processes/validator"
	"github.com/kaspanet/ledgerd/domain/ledger/ruleerrors"
	"github.com/kaspanet/ledgerd/domain/ledgerconfig"
	"github.com/kaspanet/ledgerd/util/mstime"
	"github.com/pkg/errors"
)

const verdictTimeout = 5 * time.Second

// sequenceTimeSource returns the given instants one after the other, then
// keeps advancing by a millisecond.
func sequenceTimeSource(t *testing.T, instants ...string) miner.TimeSource {
	times := make([]time.Time, len(instants))
	for i, instant := range instants {
		parsed, err := mstime.ParseISO(instant)
		if err != nil {
			t.Fatalf("ParseISO(%s): %s", instant, err)
		}
		times[i] = parsed
	}
	next := 0
	last := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		if next < len(times) {
			last = times[next]
			next++
			return last
		}
		last = last.Add(time.Millisecond)
		return last
	}
}

// fastParams mine every block at the first nonce.
func fastParams() *ledgerconfig.Params {
	params := ledgerconfig.SimnetParams.Clone()
	params.Difficulty = 0
	params.MaxMiningAttempts = 1
	return params
}

func newTestLedger(t *testing.T, store model.BlockStore, params *ledgerconfig.Params, timeSource miner.TimeSource) *Ledger {
	ledger, err := New(&Config{Store: store, Params: params, TimeSource: timeSource})
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	return ledger
}

func TestLedgerScenario(t *testing.T) {
	store := blockstore.NewMemoryStore()
	defer store.Close()
	ledger := newTestLedger(t, store, &ledgerconfig.DefaultParams,
		sequenceTimeSource(t, "2024-01-01T00:00:00.099Z", "2024-01-01T00:00:00.395Z"))

	genesis, err := ledger.EnsureGenesis()
	if err != nil {
		t.Fatalf("EnsureGenesis: %s", err)
	}
	if genesis.Hash != "00b6e1ae" || genesis.Nonce != 0 || genesis.PreviousHash != "0" || genesis.Index != 0 {
		t.Fatalf("TestLedgerScenario: unexpected genesis %s", spew.Sdump(genesis))
	}
	if !genesis.Data.Equal(ledgerconfig.DefaultParams.GenesisPayload) {
		t.Fatalf("TestLedgerScenario: unexpected genesis payload %v", genesis.Data)
	}

	again, err := ledger.EnsureGenesis()
	if err != nil {
		t.Fatalf("EnsureGenesis: %s", err)
	}
	if again != nil {
		t.Fatalf("TestLedgerScenario: EnsureGenesis created a second genesis block")
	}

	chain, err := ledger.Blocks()
	if err != nil {
		t.Fatalf("Blocks: %s", err)
	}
	block, err := ledger.AppendTransaction(chain, model.Payload{"item": "X"})
	if err != nil {
		t.Fatalf("AppendTransaction: %s", err)
	}
	if block.Index != 1 || block.PreviousHash != genesis.Hash || block.Hash != "00018673" {
		t.Fatalf("TestLedgerScenario: unexpected block %s", spew.Sdump(block))
	}

	result, err := ledger.Validate()
	if err != nil {
		t.Fatalf("Validate: %s", err)
	}
	if !result.IsValid || len(result.BelowDifficulty) != 0 {
		t.Fatalf("TestLedgerScenario: expected a valid chain, got %s", spew.Sdump(result))
	}

	tail, err := ledger.Tail()
	if err != nil {
		t.Fatalf("Tail: %s", err)
	}
	if !tail.Equal(block) {
		t.Fatalf("TestLedgerScenario: tail %s is not the appended block", tail)
	}

	// Flip a single character of the stored payload
	tampered := block.Clone()
	tampered.Data["item"] = "Y"
	err = store.Put("block_1", tampered)
	if err != nil {
		t.Fatalf("Put: %s", err)
	}
	result, err = ledger.Validate()
	if err != nil {
		t.Fatalf("Validate: %s", err)
	}
	if result.IsValid || result.FirstInvalidIndex != 1 || result.Reason != validator.ReasonFingerprintMismatch {
		t.Fatalf("TestLedgerScenario: expected tampering at block 1, got %s", spew.Sdump(result))
	}
}

func TestGenesisIsDeterministic(t *testing.T) {
	var fingerprints []string
	for i := 0; i < 2; i++ {
		store := blockstore.NewMemoryStore()
		ledger := newTestLedger(t, store, &ledgerconfig.DefaultParams,
			sequenceTimeSource(t, "2024-01-01T00:00:00.024Z"))
		genesis, err := ledger.EnsureGenesis()
		if err != nil {
			t.Fatalf("EnsureGenesis: %s", err)
		}
		fingerprints = append(fingerprints, genesis.Hash)
		store.Close()
	}
	if fingerprints[0] != fingerprints[1] || fingerprints[0] != "00ed497f" {
		t.Fatalf("TestGenesisIsDeterministic: unexpected genesis fingerprints %v", fingerprints)
	}
}

func TestAppendRequiresGenesis(t *testing.T) {
	store := blockstore.NewMemoryStore()
	defer store.Close()
	ledger := newTestLedger(t, store, fastParams(), nil)

	_, err := ledger.AppendTransaction(nil, model.Payload{"item": "X"})
	if !errors.Is(err, ruleerrors.ErrNoGenesis) {
		t.Fatalf("TestAppendRequiresGenesis: expected ErrNoGenesis, got %v", err)
	}
	_, err = ledger.Append(model.Payload{"item": "X"})
	if !errors.Is(err, ruleerrors.ErrNoGenesis) {
		t.Fatalf("TestAppendRequiresGenesis: expected ErrNoGenesis from Append, got %v", err)
	}
	blocks, err := store.Blocks()
	if err != nil {
		t.Fatalf("Blocks: %s", err)
	}
	if len(blocks) != 0 {
		t.Fatalf("TestAppendRequiresGenesis: a rejected append stored a block")
	}
}

func TestLinkageRoundTrip(t *testing.T) {
	store := blockstore.NewMemoryStore()
	defer store.Close()
	ledger := newTestLedger(t, store, fastParams(), nil)

	_, err := ledger.EnsureGenesis()
	if err != nil {
		t.Fatalf("EnsureGenesis: %s", err)
	}
	for i := 0; i < 10; i++ {
		_, err := ledger.Append(model.Payload{"sender": "alice", "receiver": "bob", "item": "X", "n": i})
		if err != nil {
			t.Fatalf("Append: %s", err)
		}
	}

	blocks, err := ledger.Blocks()
	if err != nil {
		t.Fatalf("Blocks: %s", err)
	}
	if len(blocks) != 11 {
		t.Fatalf("TestLinkageRoundTrip: expected 11 blocks, got %d", len(blocks))
	}
	for i := 1; i < len(blocks); i++ {
		if blocks[i].PreviousHash != blocks[i-1].Hash || blocks[i].Index != uint64(i) {
			t.Fatalf("TestLinkageRoundTrip: block %d is not linked to its predecessor: %s", i, spew.Sdump(blocks))
		}
	}
	result := validator.ValidateChain(blocks, validator.Options{VerifyGenesis: true})
	if !result.IsValid {
		t.Fatalf("TestLinkageRoundTrip: expected a valid chain, got %s", result)
	}
}

func TestCompareAndAppend(t *testing.T) {
	store := blockstore.NewMemoryStore()
	defer store.Close()
	ledger := newTestLedger(t, store, fastParams(), nil)

	_, err := ledger.EnsureGenesis()
	if err != nil {
		t.Fatalf("EnsureGenesis: %s", err)
	}
	staleChain, err := ledger.Blocks()
	if err != nil {
		t.Fatalf("Blocks: %s", err)
	}

	winner, err := ledger.Append(model.Payload{"item": "first"})
	if err != nil {
		t.Fatalf("Append: %s", err)
	}

	_, err = ledger.AppendTransaction(staleChain, model.Payload{"item": "second"})
	if !ruleerrors.IsTailAdvanced(err) {
		t.Fatalf("TestCompareAndAppend: expected ErrTailAdvanced, got %v", err)
	}
	var tailAdvanced ruleerrors.ErrTailAdvanced
	if !errors.As(err, &tailAdvanced) {
		t.Fatalf("TestCompareAndAppend: errors.As failed on %v", err)
	}
	if tailAdvanced.ExpectedIndex != 0 || tailAdvanced.ActualIndex != 1 || tailAdvanced.ActualFingerprint != winner.Hash {
		t.Fatalf("TestCompareAndAppend: unexpected conflict %s", spew.Sdump(tailAdvanced))
	}

	blocks, err := ledger.Blocks()
	if err != nil {
		t.Fatalf("Blocks: %s", err)
	}
	if len(blocks) != 2 || !blocks[1].Equal(winner) {
		t.Fatalf("TestCompareAndAppend: the losing block was stored: %s", spew.Sdump(blocks))
	}
}

func TestConcurrentAppends(t *testing.T) {
	store := blockstore.NewMemoryStore()
	defer store.Close()
	ledger := newTestLedger(t, store, fastParams(), nil)

	_, err := ledger.EnsureGenesis()
	if err != nil {
		t.Fatalf("EnsureGenesis: %s", err)
	}

	const appends = 8
	results := make([]<-chan *AppendResult, appends)
	for i := range results {
		results[i] = ledger.AppendAsync(model.Payload{"item": "X", "n": i})
	}
	succeeded := 0
	for _, resultChan := range results {
		select {
		case result := <-resultChan:
			if result.Err == nil {
				succeeded++
				continue
			}
			if !ruleerrors.IsTailAdvanced(result.Err) {
				t.Fatalf("TestConcurrentAppends: unexpected error %+v", result.Err)
			}
		case <-time.After(verdictTimeout):
			t.Fatalf("TestConcurrentAppends: timed out waiting for an append")
		}
	}
	if succeeded == 0 {
		t.Fatalf("TestConcurrentAppends: no append succeeded")
	}

	blocks, err := ledger.Blocks()
	if err != nil {
		t.Fatalf("Blocks: %s", err)
	}
	if len(blocks) != succeeded+1 {
		t.Fatalf("TestConcurrentAppends: %d appends succeeded but the chain has %d blocks", succeeded, len(blocks))
	}
	result := validator.ValidateChain(blocks, validator.Options{VerifyGenesis: true})
	if !result.IsValid {
		t.Fatalf("TestConcurrentAppends: concurrent appends forked the chain: %s", result)
	}
}

type failingStore struct {
	*blockstore.MemoryStore
	putErr error
}

func (fs *failingStore) Put(blockID string, block *model.Block) error {
	return fs.putErr
}

func TestPersistenceErrorsPropagate(t *testing.T) {
	putErr := errors.New("disk full")
	memoryStore := blockstore.NewMemoryStore()
	defer memoryStore.Close()
	store := &failingStore{MemoryStore: memoryStore, putErr: putErr}

	_, err := newTestLedger(t, store, fastParams(), nil).EnsureGenesis()
	if !errors.Is(err, putErr) {
		t.Fatalf("TestPersistenceErrorsPropagate: expected the put error from EnsureGenesis, got %v", err)
	}

	_, err = newTestLedger(t, memoryStore, fastParams(), nil).EnsureGenesis()
	if err != nil {
		t.Fatalf("EnsureGenesis: %s", err)
	}
	_, err = newTestLedger(t, store, fastParams(), nil).Append(model.Payload{"item": "X"})
	if !errors.Is(err, putErr) {
		t.Fatalf("TestPersistenceErrorsPropagate: expected the put error from Append, got %v", err)
	}
}

func TestAppendAsync(t *testing.T) {
	store := blockstore.NewMemoryStore()
	defer store.Close()
	ledger := newTestLedger(t, store, fastParams(), nil)

	_, err := ledger.EnsureGenesis()
	if err != nil {
		t.Fatalf("EnsureGenesis: %s", err)
	}
	payload := model.Payload{"item": "X"}
	resultChan := ledger.AppendAsync(payload)
	// The caller's payload may change right after the call
	payload["item"] = "changed"

	select {
	case result := <-resultChan:
		if result.Err != nil {
			t.Fatalf("AppendAsync: %s", result.Err)
		}
		if result.Block.Index != 1 || result.Block.Data["item"] != "X" {
			t.Fatalf("TestAppendAsync: unexpected block %s", spew.Sdump(result.Block))
		}
	case <-time.After(verdictTimeout):
		t.Fatalf("TestAppendAsync: timed out")
	}
}

func waitForVerdict(t *testing.T, verdicts <-chan *ChainVerdict, length int) *ChainVerdict {
	deadline := time.After(verdictTimeout)
	for {
		select {
		case verdict := <-verdicts:
			if len(verdict.Blocks) == length {
				return verdict
			}
		case <-deadline:
			t.Fatalf("timed out waiting for a verdict over %d blocks", length)
		}
	}
}

func TestWatch(t *testing.T) {
	store := blockstore.NewMemoryStore()
	defer store.Close()
	ledger := newTestLedger(t, store, fastParams(), nil)

	verdicts := make(chan *ChainVerdict, 100)
	unsubscribe, err := ledger.Watch(func(verdict *ChainVerdict) {
		verdicts <- verdict
	})
	if err != nil {
		t.Fatalf("Watch: %s", err)
	}
	defer unsubscribe()

	verdict := waitForVerdict(t, verdicts, 0)
	if !verdict.Result.IsValid {
		t.Fatalf("TestWatch: an empty chain should be valid")
	}

	_, err = ledger.EnsureGenesis()
	if err != nil {
		t.Fatalf("EnsureGenesis: %s", err)
	}
	block, err := ledger.Append(model.Payload{"item": "X"})
	if err != nil {
		t.Fatalf("Append: %s", err)
	}
	verdict = waitForVerdict(t, verdicts, 2)
	if !verdict.Result.IsValid {
		t.Fatalf("TestWatch: expected a valid chain, got %s", verdict.Result)
	}

	tampered := block.Clone()
	tampered.Data["item"] = "Y"
	err = store.Put("block_1", tampered)
	if err != nil {
		t.Fatalf("Put: %s", err)
	}
	deadline := time.After(verdictTimeout)
	for {
		select {
		case verdict = <-verdicts:
		case <-deadline:
			t.Fatalf("TestWatch: tampering was never reported")
		}
		if !verdict.Result.IsValid {
			break
		}
	}
	if verdict.Result.FirstInvalidIndex != 1 || verdict.Result.Reason != validator.ReasonFingerprintMismatch {
		t.Fatalf("TestWatch: unexpected verdict %s", spew.Sdump(verdict.Result))
	}
}

func TestNewErrors(t *testing.T) {
	_, err := New(&Config{})
	if err == nil {
		t.Fatalf("TestNewErrors: expected an error without a store")
	}

	params := ledgerconfig.DefaultParams.Clone()
	params.Difficulty = 9
	_, err = New(&Config{Store: blockstore.NewMemoryStore(), Params: params})
	if !errors.Is(err, ruleerrors.ErrDifficultyTooHigh) {
		t.Fatalf("TestNewErrors: expected ErrDifficultyTooHigh, got %v", err)
	}
}
