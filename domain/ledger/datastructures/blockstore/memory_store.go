package blockstore

import (
	"sort"
	"sync"

	"github.com/kaspanet/ledgerd/domain/ledger/model"
	"github.com/kaspanet/ledgerd/domain/ledger/ruleerrors"
	"github.com/pkg/errors"
)

// MemoryStore is a BlockStore that keeps blocks in memory only.
type MemoryStore struct {
	mutex    sync.Mutex
	blocks   map[string]*model.Block
	notifier *notifier
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blocks:   make(map[string]*model.Block),
		notifier: newNotifier(),
	}
}

// Put stores a copy of block under blockID and notifies subscribers.
func (ms *MemoryStore) Put(blockID string, block *model.Block) error {
	if block == nil {
		return errors.Wrapf(ruleerrors.ErrNilBlock, "putting %s", blockID)
	}

	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	ms.blocks[blockID] = block.Clone()
	log.Tracef("Stored %s in memory", blockID)
	ms.notifier.notify(ms.snapshot())
	return nil
}

// Blocks returns a copy of every stored block, ordered by index.
func (ms *MemoryStore) Blocks() ([]*model.Block, error) {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	return ms.snapshot(), nil
}

// Subscribe registers onChange. See model.BlockStore.
func (ms *MemoryStore) Subscribe(onChange func(blocks []*model.Block)) (unsubscribe func(), err error) {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	return ms.notifier.subscribe(onChange, ms.snapshot()), nil
}

// Close cancels every subscription.
func (ms *MemoryStore) Close() {
	ms.notifier.close()
}

func (ms *MemoryStore) snapshot() []*model.Block {
	ids := make([]string, 0, len(ms.blocks))
	for id := range ms.blocks {
		ids = append(ids, id)
	}
	blocks := make([]*model.Block, len(ids))
	for i, id := range ids {
		blocks[i] = ms.blocks[id].Clone()
	}
	sortBlocks(ids, blocks)
	return blocks
}

// sortBlocks orders blocks by index, breaking ties by id so that the order
// never depends on map iteration. ids[i] must be the id of blocks[i].
func sortBlocks(ids []string, blocks []*model.Block) {
	sort.Sort(&blocksByIndex{ids: ids, blocks: blocks})
}

type blocksByIndex struct {
	ids    []string
	blocks []*model.Block
}

func (b *blocksByIndex) Len() int {
	return len(b.blocks)
}

func (b *blocksByIndex) Less(i, j int) bool {
	if b.blocks[i].Index != b.blocks[j].Index {
		return b.blocks[i].Index < b.blocks[j].Index
	}
	return b.ids[i] < b.ids[j]
}

func (b *blocksByIndex) Swap(i, j int) {
	b.ids[i], b.ids[j] = b.ids[j], b.ids[i]
	b.blocks[i], b.blocks[j] = b.blocks[j], b.blocks[i]
}
