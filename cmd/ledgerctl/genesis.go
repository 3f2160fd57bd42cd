package main

import (
	"github.com/kaspanet/ledgerd/domain/ledger/utils/fingerprint"
	"github.com/kaspanet/ledgerd/infrastructure/logger"
	"github.com/pterm/pterm"
)

func genesis(conf *genesisConfig) error {
	ledgerInstance, teardown, err := openLedger(&conf.LedgerFlags, logger.LevelWarn)
	if err != nil {
		return err
	}
	defer teardown()

	spinner, _ := pterm.DefaultSpinner.Start("Mining the genesis block...")
	block, err := ledgerInstance.EnsureGenesis()
	if err != nil {
		spinner.Fail("Failed creating the genesis block")
		return err
	}
	if block == nil {
		spinner.Info("The chain already has a genesis block")
		return nil
	}
	spinner.Success(pterm.Sprintf("Created genesis block %s", pterm.LightCyan(block.Hash)))
	if !fingerprint.HasLeadingZeros(block.Hash, conf.Params().Difficulty) {
		pterm.Warning.Printfln("Mining was abandoned after %d attempts: the genesis block is below difficulty %d",
			conf.Params().MaxMiningAttempts, conf.Params().Difficulty)
	}
	return nil
}
