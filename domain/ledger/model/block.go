package model

import (
	"fmt"
	"time"
)

// GenesisPreviousHash is the sentinel predecessor fingerprint of the genesis block.
const GenesisPreviousHash = "0"

// Block is a sealed ledger record. Blocks are never modified once mined;
// any change to a stored block is tampering.
type Block struct {
	Index        uint64
	Timestamp    time.Time
	Data         Payload
	PreviousHash string
	Hash         string
	Nonce        uint64
}

// IsGenesis returns whether the block sits at index 0.
func (b *Block) IsGenesis() bool {
	return b.Index == 0
}

// Clone returns a deep copy of the block, so that callers holding a
// snapshot can never observe or cause mutations of the stored block.
func (b *Block) Clone() *Block {
	if b == nil {
		return nil
	}
	clone := *b
	clone.Data = b.Data.Clone()
	return &clone
}

// Equal returns whether both blocks hold the same fields. Payloads are
// compared structurally.
func (b *Block) Equal(other *Block) bool {
	if b == nil || other == nil {
		return b == other
	}
	return b.Index == other.Index &&
		b.Timestamp.Equal(other.Timestamp) &&
		b.PreviousHash == other.PreviousHash &&
		b.Hash == other.Hash &&
		b.Nonce == other.Nonce &&
		b.Data.Equal(other.Data)
}

func (b *Block) String() string {
	return fmt.Sprintf("block %d (%s, previous %s, nonce %d)", b.Index, b.Hash, b.PreviousHash, b.Nonce)
}

// CloneBlocks deep-copies an ordered block sequence.
func CloneBlocks(blocks []*Block) []*Block {
	clones := make([]*Block, len(blocks))
	for i, block := range blocks {
		clones[i] = block.Clone()
	}
	return clones
}
