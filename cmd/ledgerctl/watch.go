package main

import (
	"github.com/kaspanet/ledgerd/domain/ledger"
	"github.com/kaspanet/ledgerd/infrastructure/logger"
	"github.com/kaspanet/ledgerd/infrastructure/os/signal"
	"github.com/kaspanet/ledgerd/version"
	"github.com/pkg/errors"
)

func watch(conf *watchConfig) error {
	if conf.PollInterval <= 0 {
		return errors.Errorf("--poll-interval must be positive, got %s", conf.PollInterval)
	}
	interrupt := signal.InterruptListener()

	initLog(&conf.LedgerFlags, logger.LevelInfo)
	log.Infof("ledgerctl version %s", version.Version())

	store, teardown, err := openPollingStore(&conf.LedgerFlags, conf.PollInterval)
	if err != nil {
		return err
	}
	ledgerInstance, teardown, err := newLedger(&conf.LedgerFlags, store, teardown)
	if err != nil {
		return err
	}
	defer teardown()

	block, err := ledgerInstance.EnsureGenesis()
	if err != nil {
		return err
	}
	if block != nil {
		log.Infof("Created genesis block %s", block.Hash)
	}

	unsubscribe, err := ledgerInstance.Watch(func(verdict *ledger.ChainVerdict) {
		printVerdict(verdict.Result, len(verdict.Blocks))
	})
	if err != nil {
		return err
	}
	defer unsubscribe()

	log.Infof("Watching the %s chain. Press Ctrl+C to stop", conf.Params().Name)
	<-interrupt
	return nil
}
