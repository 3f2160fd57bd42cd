package main

import (
	"github.com/kaspanet/ledgerd/infrastructure/logger"
	"github.com/pkg/errors"
	"github.com/pterm/pterm"
)

// tamper rewrites the payload of a stored block in place, keeping its
// fingerprint, the way an attacker with write access to the store would.
func tamper(conf *tamperConfig) error {
	if conf.MemDB {
		return errors.New("tamper needs a persistent chain, it cannot be used with --memdb")
	}
	initLog(&conf.LedgerFlags, logger.LevelWarn)

	store, teardown, err := openStore(&conf.LedgerFlags)
	if err != nil {
		return err
	}
	defer teardown()

	blocks, err := store.Blocks()
	if err != nil {
		return err
	}
	for _, block := range blocks {
		if block.Index != conf.Index {
			continue
		}
		tampered := block.Clone()
		tampered.Data[conf.Field] = conf.Value
		blockID := conf.Params().BlockID(block.Index)
		err = store.Put(blockID, tampered)
		if err != nil {
			return errors.Wrapf(err, "failed rewriting %s", blockID)
		}
		log.Warnf("Rewrote field '%s' of %s without re-mining it", conf.Field, blockID)
		pterm.Warning.Printfln("Block %d now has %s=%s and a stale fingerprint %s",
			block.Index, conf.Field, conf.Value, block.Hash)
		return nil
	}
	return errors.Errorf("the chain has no block at index %d", conf.Index)
}
