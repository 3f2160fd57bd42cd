package main

import (
	"time"

	"github.com/kaspanet/ledgerd/domain/ledger/model"
	"github.com/kaspanet/ledgerd/domain/ledger/processes/miner"
	"github.com/kaspanet/ledgerd/domain/ledger/utils/fingerprint"
	"github.com/kaspanet/ledgerd/infrastructure/logger"
	"github.com/pkg/errors"
	"github.com/pterm/pterm"
	"github.com/shopspring/decimal"
)

const logHashRateInterval = 2 * time.Second

func mine(conf *mineConfig) error {
	payload, err := transactionPayload(conf)
	if err != nil {
		return err
	}

	ledgerInstance, teardown, err := openLedger(&conf.LedgerFlags, logger.LevelWarn)
	if err != nil {
		return err
	}
	defer teardown()

	err = ensureGenesis(&conf.LedgerFlags, ledgerInstance)
	if err != nil {
		return err
	}

	stopHashRate := logHashRate()
	defer stopHashRate()

	spinner, _ := pterm.DefaultSpinner.Start(pterm.Sprintf("Mining a block at difficulty %d...", conf.Params().Difficulty))
	result := <-ledgerInstance.AppendAsync(payload)
	if result.Err != nil {
		spinner.Fail("Failed appending the transaction")
		return result.Err
	}

	block := result.Block
	spinner.Success(pterm.Sprintf("Appended block %d with fingerprint %s (nonce %d)",
		block.Index, pterm.LightCyan(block.Hash), block.Nonce))
	if !fingerprint.HasLeadingZeros(block.Hash, conf.Params().Difficulty) {
		pterm.Warning.Printfln("Mining was abandoned after %d attempts: the block is below difficulty %d",
			conf.Params().MaxMiningAttempts, conf.Params().Difficulty)
	}
	return nil
}

// transactionPayload builds the reference transaction payload. Every field
// is kept as a string so that the amount keeps the exact text it was given.
func transactionPayload(conf *mineConfig) (model.Payload, error) {
	payload := model.Payload{
		"sender":   conf.Sender,
		"receiver": conf.Receiver,
		"item":     conf.Item,
	}
	if conf.Amount != "" {
		amount, err := decimal.NewFromString(conf.Amount)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid amount '%s'", conf.Amount)
		}
		if amount.IsNegative() {
			return nil, errors.Errorf("amount %s must not be negative", amount)
		}
		payload["amount"] = conf.Amount
	}
	if conf.Method != "" {
		payload["method"] = conf.Method
	}
	return payload, nil
}

// logHashRate periodically logs the rate at which the miner computes
// fingerprints, until the returned function is called.
func logHashRate() (stop func()) {
	quit := make(chan struct{})
	spawn("logHashRate", func() {
		ticker := time.NewTicker(logHashRateInterval)
		defer ticker.Stop()
		lastCheck := time.Now()
		for {
			select {
			case <-quit:
				return
			case currentTime := <-ticker.C:
				kiloHashesTried := float64(miner.SampleHashesTried()) / 1000.0
				hashRate := kiloHashesTried / currentTime.Sub(lastCheck).Seconds()
				log.Infof("Current hash rate is %.2f Khash/s", hashRate)
				lastCheck = currentTime
			}
		}
	})
	return func() {
		close(quit)
	}
}
