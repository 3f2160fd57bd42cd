package ledger

import (
	"github.com/kaspanet/ledgerd/domain/ledger/model"
	"github.com/kaspanet/ledgerd/domain/ledger/processes/miner"
	"github.com/kaspanet/ledgerd/domain/ledgerconfig"
)

// Config holds everything a Ledger depends on.
type Config struct {
	// Store persists the chain. Required.
	Store model.BlockStore

	// Params defaults to ledgerconfig.DefaultParams.
	Params *ledgerconfig.Params

	// TimeSource stamps newly mined blocks. Defaults to the wall clock.
	TimeSource miner.TimeSource
}
