package main

import (
	"os"

	"github.com/kaspanet/ledgerd/infrastructure/logger"
)

func verify(conf *verifyConfig) error {
	ledgerInstance, teardown, err := openLedger(&conf.LedgerFlags, logger.LevelWarn)
	if err != nil {
		return err
	}

	err = ensureGenesis(&conf.LedgerFlags, ledgerInstance)
	if err != nil {
		teardown()
		return err
	}

	blocks, err := ledgerInstance.Blocks()
	if err != nil {
		teardown()
		return err
	}
	result, err := ledgerInstance.Validate()
	teardown()
	if err != nil {
		return err
	}

	printVerdict(result, len(blocks))
	if !result.IsValid {
		os.Exit(exitCodeTampered)
	}
	return nil
}
