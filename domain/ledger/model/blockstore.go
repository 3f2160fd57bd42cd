package model

// BlockStore is the persistence collaborator of the ledger. It owns the
// chain: the ledger only reads snapshots of it and hands it new blocks.
type BlockStore interface {
	// Put stores block under blockID, overwriting any previous record.
	Put(blockID string, block *Block) error

	// Blocks returns a snapshot of every stored block, ordered by index.
	Blocks() ([]*Block, error)

	// Subscribe registers onChange to be called with the ordered block set
	// once immediately and then after every change. Calls for a single
	// subscription never overlap. The returned function cancels the
	// subscription and waits for an in-flight call to return.
	Subscribe(onChange func(blocks []*Block)) (unsubscribe func(), err error)
}
