package main

import (
	"strconv"

	"github.com/kaspanet/ledgerd/domain/ledger/model"
	"github.com/kaspanet/ledgerd/domain/ledger/processes/validator"
	"github.com/kaspanet/ledgerd/domain/ledger/utils/serialization"
	"github.com/kaspanet/ledgerd/infrastructure/logger"
	"github.com/kaspanet/ledgerd/util/mstime"
	"github.com/pterm/pterm"
)

func show(conf *showConfig) error {
	ledgerInstance, teardown, err := openLedger(&conf.LedgerFlags, logger.LevelWarn)
	if err != nil {
		return err
	}
	defer teardown()

	err = ensureGenesis(&conf.LedgerFlags, ledgerInstance)
	if err != nil {
		return err
	}

	blocks, err := ledgerInstance.Blocks()
	if err != nil {
		return err
	}
	result := validator.ValidateChain(blocks, validator.Options{
		VerifyGenesis: conf.Params().VerifyGenesis,
		Difficulty:    conf.Params().Difficulty,
	})

	tableData, err := blocksTable(blocks, result)
	if err != nil {
		return err
	}
	err = pterm.DefaultTable.WithHasHeader().WithData(tableData).Render()
	if err != nil {
		return err
	}
	printVerdict(result, len(blocks))
	return nil
}

func blocksTable(blocks []*model.Block, result *validator.ValidationResult) (pterm.TableData, error) {
	tableData := pterm.TableData{{"Index", "Timestamp", "Data", "Previous", "Fingerprint", "Nonce"}}
	for position, block := range blocks {
		data, err := serialization.CanonicalPayload(block.Data)
		if err != nil {
			return nil, err
		}
		hash := block.Hash
		if !result.IsValid && position == result.FirstInvalidIndex {
			hash = pterm.LightRed(hash)
		}
		tableData = append(tableData, []string{
			strconv.FormatUint(block.Index, 10),
			mstime.FormatISO(block.Timestamp),
			data,
			block.PreviousHash,
			hash,
			strconv.FormatUint(block.Nonce, 10),
		})
	}
	return tableData, nil
}
